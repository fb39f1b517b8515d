package longpoll

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Handler processes one dispatched event. The event is the raw Update
// unless a Prepare hook converted it to a richer type.
type Handler func(ctx context.Context, event any) error

// ErrorHandler receives every error raised out of a dispatched handler
// (and operational anomalies like malformed bodies). Returning true
// means handled; returning false falls through to the built-in reporter.
// The loop continues either way.
type ErrorHandler func(err error) bool

// FailureHandler is invoked when the server signals a session failure.
// Installing one replaces the built-in recovery entirely.
type FailureHandler func(ctx context.Context, failure Failure)

// PrepareFunc converts a raw update into a domain event before dispatch
type PrepareFunc func(u Update) any

// Config for creating a new Poller
type Config struct {
	Server string
	Key    string
	TS     int64
	Wait   int // seconds, 1..90

	// Transport performs the long poll requests. When nil, the poller
	// creates an HTTP transport and owns it: Dispose closes an owned
	// transport and never a supplied one.
	Transport Transport

	// RetryDelay is the pause before retrying after a transport or
	// protocol error. The loop never gives up on such errors; it logs,
	// waits and retries until stopped.
	RetryDelay time.Duration

	// RequestSlack is added on top of Wait for the owned transport's
	// request timeout so a held request is not cut short.
	RequestSlack time.Duration

	// DedupSize enables replay deduplication when positive
	DedupSize int

	Logger zerolog.Logger
}

// Poller drives one long poll session: fetch, classify, dispatch,
// recover, repeat. A single goroutine runs the cycle, so handlers see
// the updates of a batch sequentially in server order and the next
// fetch starts only after the whole batch is dispatched.
type Poller struct {
	session       *Session
	transport     Transport
	ownsTransport bool
	retryDelay    time.Duration
	dedup         *Deduplicator
	logger        zerolog.Logger

	mu             sync.Mutex
	handlers       map[string]Handler // nil value marks an ignored type
	defaultHandler Handler
	errorHandler   ErrorHandler
	failureHandler FailureHandler
	prepare        PrepareFunc

	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	disposeOnce sync.Once
}

// New creates a new Poller positioned at the given session
func New(cfg Config) (*Poller, error) {
	if cfg.Wait == 0 {
		cfg.Wait = 25
	}
	if cfg.TS == 0 {
		cfg.TS = 1
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 3 * time.Second
	}
	if cfg.RequestSlack == 0 {
		cfg.RequestSlack = 10 * time.Second
	}

	transport := cfg.Transport
	ownsTransport := false
	if transport == nil {
		transport = NewHTTPTransport(time.Duration(cfg.Wait)*time.Second + cfg.RequestSlack)
		ownsTransport = true
	}

	var dedup *Deduplicator
	if cfg.DedupSize > 0 {
		var err error
		dedup, err = NewDeduplicator(cfg.DedupSize)
		if err != nil {
			return nil, err
		}
	}

	return &Poller{
		session:       NewSession(cfg.Server, cfg.Key, cfg.TS, cfg.Wait),
		transport:     transport,
		ownsTransport: ownsTransport,
		retryDelay:    cfg.RetryDelay,
		dedup:         dedup,
		logger:        cfg.Logger.With().Str("component", "longpoll").Logger(),
		handlers:      make(map[string]Handler),
	}, nil
}

// Session returns the session for inspection and failure recovery
func (p *Poller) Session() *Session {
	return p.session
}

// On binds a handler for an update type. Registering again overwrites.
func (p *Poller) On(updateType string, h Handler) *Poller {
	p.mu.Lock()
	p.handlers[updateType] = h
	p.mu.Unlock()
	return p
}

// Default binds the fallback handler used for update types with no
// explicit binding
func (p *Poller) Default(h Handler) *Poller {
	p.mu.Lock()
	p.defaultHandler = h
	p.mu.Unlock()
	return p
}

// Ignore drops updates of the given type without passing them to the
// default handler
func (p *Poller) Ignore(updateType string) *Poller {
	p.mu.Lock()
	p.handlers[updateType] = nil
	p.mu.Unlock()
	return p
}

// OnError installs the error handler
func (p *Poller) OnError(h ErrorHandler) *Poller {
	p.mu.Lock()
	p.errorHandler = h
	p.mu.Unlock()
	return p
}

// OnFailure installs the failure handler
func (p *Poller) OnFailure(h FailureHandler) *Poller {
	p.mu.Lock()
	p.failureHandler = h
	p.mu.Unlock()
	return p
}

// Prepare installs the event conversion hook
func (p *Poller) Prepare(fn PrepareFunc) *Poller {
	p.mu.Lock()
	p.prepare = fn
	p.mu.Unlock()
	return p
}

// Start launches the polling goroutine. Calling Start while running is
// a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg.Add(1)
	go p.poll(ctx)
}

// Stop cancels the polling goroutine, interrupting an in-flight
// request, and returns once it has fully exited. Safe to call twice.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.running {
		p.running = false
		p.cancel()
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// Dispose stops polling and closes the transport if the poller created
// it. A borrowed transport is left open.
func (p *Poller) Dispose() {
	p.Stop()
	p.disposeOnce.Do(func() {
		if p.ownsTransport {
			p.transport.Close()
		}
	})
}

// poll is the polling loop
func (p *Poller) poll(ctx context.Context) {
	defer p.wg.Done()

	p.logger.Info().Str("server", p.session.Server()).Msg("polling started")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("polling stopped")
			return
		default:
		}

		body, err := p.transport.Fetch(ctx, p.session.Server(), p.session.Params())
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info().Msg("polling stopped")
				return
			}
			p.reportError(fmt.Errorf("long poll request failed: %w", err))
			if !p.pause(ctx) {
				return
			}
			continue
		}

		batch, failure, err := classify(body)
		if err != nil {
			p.reportError(err)
			if !p.pause(ctx) {
				return
			}
			continue
		}

		if failure != nil {
			p.logger.Info().Int("code", failure.Code).Msg("long poll session failed")
			p.handleFailure(ctx, *failure)
			continue
		}

		p.session.ApplyTS(batch.TS)

		for _, u := range batch.Updates {
			if ctx.Err() != nil {
				p.logger.Info().Msg("polling stopped")
				return
			}
			if p.dedup != nil && p.dedup.Seen(u) {
				p.logger.Debug().Str("type", u.Type).Str("eventId", u.EventID).Msg("dropping replayed update")
				continue
			}
			p.dispatch(ctx, u)
		}
	}
}

// dispatch routes one update to its handler. Handler errors and panics
// never escape: they are routed through the error handler and the loop
// moves on to the next update.
func (p *Poller) dispatch(ctx context.Context, u Update) {
	p.mu.Lock()
	h, bound := p.handlers[u.Type]
	if !bound {
		h = p.defaultHandler
	}
	prepare := p.prepare
	p.mu.Unlock()

	if bound && h == nil {
		// Ignored type: not passed even to the default handler
		return
	}
	if h == nil {
		p.logger.Debug().Str("type", u.Type).Msg("no handler for update type")
		return
	}

	event := any(u)
	if prepare != nil {
		event = prepare(u)
	}

	if err := p.invoke(ctx, h, event); err != nil {
		p.reportError(fmt.Errorf("handler for %q: %w", u.Type, err))
	}
}

func (p *Poller) invoke(ctx context.Context, h Handler, event any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, event)
}

// handleFailure runs the installed failure handler, or the built-in
// recovery: code 1 resumes from the supplied cursor; codes 2 and 3 need
// a fresh session from the API, which is outside this package, so
// without an installed handler they are only logged.
func (p *Poller) handleFailure(ctx context.Context, f Failure) {
	p.mu.Lock()
	fh := p.failureHandler
	p.mu.Unlock()

	if fh != nil {
		fh(ctx, f)
		return
	}

	if f.Code == FailHistoryLost && f.HasTS {
		p.session.ApplyTS(f.TS)
		p.logger.Info().Int64("ts", f.TS).Msg("resuming from recovered cursor")
		return
	}

	p.logger.Warn().Int("code", f.Code).Msg("session needs reacquisition and no failure handler is installed")
}

// reportError routes an error through the installed handler, falling
// back to the built-in reporter when none is installed or it declines
func (p *Poller) reportError(err error) {
	p.mu.Lock()
	handler := p.errorHandler
	p.mu.Unlock()

	if handler != nil && handler(err) {
		return
	}
	p.logger.Error().Err(err).Msg("long poll error")
}

// pause waits for the retry delay; returns false when stopped
func (p *Poller) pause(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		p.logger.Info().Msg("polling stopped")
		return false
	case <-time.After(p.retryDelay):
		return true
	}
}
