package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"vkbot/internal/longpoll"
	"vkbot/internal/vkapi"
)

// Config for creating a new Bot
type Config struct {
	GroupID      int64
	Wait         int
	RetryDelay   int // ms
	RequestSlack int // ms
	DedupSize    int
	Logger       zerolog.Logger
}

// Bot ties the API client and the long poll client together: it
// acquires a session, converts raw updates into enriched events and
// restores the session when the server invalidates it.
type Bot struct {
	api     *vkapi.Client
	poller  *longpoll.Poller
	groupID int64
	logger  zerolog.Logger
}

// New acquires a long poll session for the group and builds the poller
// around it. Polling does not start until Start is called.
func New(ctx context.Context, api *vkapi.Client, cfg Config) (*Bot, error) {
	lp, err := api.GetLongPollServer(ctx, cfg.GroupID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire long poll server: %w", err)
	}

	poller, err := longpoll.New(longpoll.Config{
		Server:       lp.Server,
		Key:          lp.Key,
		TS:           int64(lp.TS),
		Wait:         cfg.Wait,
		RetryDelay:   msDuration(cfg.RetryDelay),
		RequestSlack: msDuration(cfg.RequestSlack),
		DedupSize:    cfg.DedupSize,
		Logger:       cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	b := &Bot{
		api:     api,
		poller:  poller,
		groupID: cfg.GroupID,
		logger:  cfg.Logger.With().Str("component", "bot").Logger(),
	}

	poller.Prepare(prepareUpdate(api))
	poller.OnFailure(b.recoverSession)

	return b, nil
}

// API returns the underlying API client
func (b *Bot) API() *vkapi.Client {
	return b.api
}

// Poller returns the underlying long poll client
func (b *Bot) Poller() *longpoll.Poller {
	return b.poller
}

// On binds a handler for an update type
func (b *Bot) On(updateType string, h longpoll.Handler) *Bot {
	b.poller.On(updateType, h)
	return b
}

// OnMessage binds a handler for message_new updates
func (b *Bot) OnMessage(h func(ctx context.Context, msg *Message) error) *Bot {
	b.poller.On("message_new", func(ctx context.Context, event any) error {
		msg, ok := event.(*Message)
		if !ok {
			return fmt.Errorf("unexpected message_new event type %T", event)
		}
		return h(ctx, msg)
	})
	return b
}

// OnMessageEvent binds a handler for message_event updates
func (b *Bot) OnMessageEvent(h func(ctx context.Context, ev *MessageEvent) error) *Bot {
	b.poller.On("message_event", func(ctx context.Context, event any) error {
		ev, ok := event.(*MessageEvent)
		if !ok {
			return fmt.Errorf("unexpected message_event event type %T", event)
		}
		return h(ctx, ev)
	})
	return b
}

// Default binds the fallback handler
func (b *Bot) Default(h longpoll.Handler) *Bot {
	b.poller.Default(h)
	return b
}

// Ignore drops updates of the given type
func (b *Bot) Ignore(updateType string) *Bot {
	b.poller.Ignore(updateType)
	return b
}

// OnError installs the error handler
func (b *Bot) OnError(h longpoll.ErrorHandler) *Bot {
	b.poller.OnError(h)
	return b
}

// Start begins polling
func (b *Bot) Start() {
	b.poller.Start()
}

// Stop stops polling and waits for the loop to exit
func (b *Bot) Stop() {
	b.poller.Stop()
}

// Dispose stops polling and releases poller-owned resources. The API
// client is left to its owner.
func (b *Bot) Dispose() {
	b.poller.Dispose()
}

// recoverSession restores the long poll session after a server-signalled
// failure. Code 1 only needs the cursor the server handed back; codes 2
// and 3 require a fresh key, and code 3 additionally a fresh server URL.
func (b *Bot) recoverSession(ctx context.Context, f longpoll.Failure) {
	b.logger.Info().Int("code", f.Code).Msg("long poll session failed")

	session := b.poller.Session()

	if f.Code == longpoll.FailHistoryLost {
		if f.HasTS {
			session.ApplyTS(f.TS)
		}
		return
	}

	b.logger.Info().Msg("requesting new long poll session")

	lp, err := b.api.GetLongPollServer(ctx, b.groupID)
	if err != nil {
		// The next poll iteration fails again with the same code and
		// lands back here, so this retries naturally.
		b.logger.Error().Err(err).Msg("failed to reacquire long poll session")
		return
	}

	session.SetKey(lp.Key)
	if f.Code == longpoll.FailSessionLost {
		session.SetServer(lp.Server)
	}

	b.logger.Info().Msg("resuming polling")
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
