package vkapi

import (
	"encoding/json"
	"fmt"
)

// Button color
const (
	ColorPrimary   = "primary"
	ColorSecondary = "secondary"
	ColorPositive  = "positive"
	ColorNegative  = "negative"
)

// Keyboard layout limits
const (
	maxButtonsPerRow = 5
	maxRows          = 10
	maxRowsInline    = 6
)

type keyboardButton struct {
	Color  string         `json:"color,omitempty"`
	Action keyboardAction `json:"action"`
}

type keyboardAction struct {
	Type    string `json:"type"`
	Label   string `json:"label,omitempty"`
	Link    string `json:"link,omitempty"`
	Payload string `json:"payload,omitempty"`
}

// Keyboard describes a keyboard attached to a message.
// Builder methods chain; the first layout violation is remembered and
// surfaced by JSON.
type Keyboard struct {
	oneTime bool
	inline  bool
	rows    [][]keyboardButton
	err     error
}

// NewKeyboard creates a keyboard. An inline keyboard is rendered inside
// the message instead of under the input field.
func NewKeyboard(oneTime, inline bool) *Keyboard {
	return &Keyboard{
		oneTime: oneTime,
		inline:  inline,
		rows:    [][]keyboardButton{{}},
	}
}

// EmptyKeyboard returns a keyboard with no buttons, used to clear the
// currently shown keyboard.
func EmptyKeyboard() *Keyboard {
	return &Keyboard{rows: [][]keyboardButton{}}
}

func (k *Keyboard) maxRows() int {
	if k.inline {
		return maxRowsInline
	}
	return maxRows
}

func (k *Keyboard) addButton(b keyboardButton) {
	if k.err != nil {
		return
	}
	row := &k.rows[len(k.rows)-1]
	if len(*row) >= maxButtonsPerRow {
		k.err = fmt.Errorf("too many buttons in a row (max %d)", maxButtonsPerRow)
		return
	}
	*row = append(*row, b)
}

func marshalPayload(payload any) string {
	if payload == nil {
		return ""
	}
	if s, ok := payload.(string); ok {
		return s
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return string(data)
}

// NewRow starts a new button row
func (k *Keyboard) NewRow() *Keyboard {
	if k.err != nil {
		return k
	}
	if len(k.rows) >= k.maxRows() {
		k.err = fmt.Errorf("too many rows (max %d)", k.maxRows())
		return k
	}
	k.rows = append(k.rows, []keyboardButton{})
	return k
}

// TextButton adds a button that sends its label as a message when pressed
func (k *Keyboard) TextButton(label, color string, payload any) *Keyboard {
	k.addButton(keyboardButton{
		Color: color,
		Action: keyboardAction{
			Type:    "text",
			Label:   label,
			Payload: marshalPayload(payload),
		},
	})
	return k
}

// CallbackButton adds a button that produces a message_event when pressed
// instead of sending a message
func (k *Keyboard) CallbackButton(label, color string, payload any) *Keyboard {
	k.addButton(keyboardButton{
		Color: color,
		Action: keyboardAction{
			Type:    "callback",
			Label:   label,
			Payload: marshalPayload(payload),
		},
	})
	return k
}

// OpenLinkButton adds a button that opens a link when pressed
func (k *Keyboard) OpenLinkButton(label, link string) *Keyboard {
	k.addButton(keyboardButton{
		Action: keyboardAction{
			Type:  "open_link",
			Label: label,
			Link:  link,
		},
	})
	return k
}

// JSON serializes the keyboard for the "keyboard" request parameter
func (k *Keyboard) JSON() (string, error) {
	if k.err != nil {
		return "", k.err
	}

	layout := struct {
		Inline  bool               `json:"inline"`
		OneTime bool               `json:"one_time"`
		Buttons [][]keyboardButton `json:"buttons"`
	}{
		Inline:  k.inline,
		OneTime: k.oneTime,
		Buttons: k.rows,
	}

	data, err := json.Marshal(layout)
	if err != nil {
		return "", fmt.Errorf("failed to marshal keyboard: %w", err)
	}
	return string(data), nil
}
