package bot

import (
	"context"
	"encoding/json"

	"vkbot/internal/longpoll"
	"vkbot/internal/vkapi"
)

// Message is a message_new update enriched with reply helpers
type Message struct {
	api *vkapi.Client

	PeerID                int64  `json:"peer_id"`
	FromID                int64  `json:"from_id"`
	ConversationMessageID int64  `json:"conversation_message_id"`
	Text                  string `json:"text"`
	// Payload is the JSON string attached by a pressed text button,
	// empty for plain messages
	Payload string `json:"payload"`

	// ClientInfo describes the peer's client capabilities, opaque here
	ClientInfo json.RawMessage `json:"-"`
}

// IsPrivate reports whether the message was sent in a private dialog
// rather than a conversation
func (m *Message) IsPrivate() bool {
	return m.PeerID < 2e9
}

// Reply sends a message back to the same peer
func (m *Message) Reply(ctx context.Context, text string, keyboard *vkapi.Keyboard) (int64, error) {
	return m.api.SendMessage(ctx, vkapi.OutgoingMessage{
		PeerID:   m.PeerID,
		Message:  text,
		Keyboard: keyboard,
	})
}

// MessageEvent is a message_event update (callback button press)
// enriched with response helpers
type MessageEvent struct {
	api *vkapi.Client

	EventID string          `json:"event_id"`
	UserID  int64           `json:"user_id"`
	PeerID  int64           `json:"peer_id"`
	Payload json.RawMessage `json:"payload"`
}

// ShowSnackbar shows a disappearing message to the user who pressed the
// button
func (e *MessageEvent) ShowSnackbar(ctx context.Context, text string) error {
	return e.Respond(ctx, map[string]string{"type": "show_snackbar", "text": text})
}

// OpenLink opens a link on the user's side
func (e *MessageEvent) OpenLink(ctx context.Context, link string) error {
	return e.Respond(ctx, map[string]string{"type": "open_link", "link": link})
}

// Respond answers the event with the given data
func (e *MessageEvent) Respond(ctx context.Context, eventData any) error {
	return e.api.SendMessageEventAnswer(ctx, e.EventID, e.UserID, e.PeerID, eventData)
}

// Reply sends a message to the chat the event came from
func (e *MessageEvent) Reply(ctx context.Context, text string, keyboard *vkapi.Keyboard) (int64, error) {
	return e.api.SendMessage(ctx, vkapi.OutgoingMessage{
		PeerID:   e.PeerID,
		Message:  text,
		Keyboard: keyboard,
	})
}

// prepareUpdate converts known update types into their enriched event
// types; everything else passes through as the raw update
func prepareUpdate(api *vkapi.Client) longpoll.PrepareFunc {
	return func(u longpoll.Update) any {
		switch u.Type {
		case "message_new":
			var wrapper struct {
				Message    json.RawMessage `json:"message"`
				ClientInfo json.RawMessage `json:"client_info"`
			}
			if err := json.Unmarshal(u.Object, &wrapper); err != nil {
				return u
			}
			msg := &Message{api: api}
			if wrapper.Message != nil {
				// Older group API versions put the message fields
				// directly into object
				if err := json.Unmarshal(wrapper.Message, msg); err != nil {
					return u
				}
			} else if err := json.Unmarshal(u.Object, msg); err != nil {
				return u
			}
			msg.ClientInfo = wrapper.ClientInfo
			return msg

		case "message_event":
			ev := &MessageEvent{api: api}
			if err := json.Unmarshal(u.Object, ev); err != nil {
				return u
			}
			return ev
		}

		return u
	}
}
