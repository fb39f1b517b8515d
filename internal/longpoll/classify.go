package longpoll

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Failure codes signalled by the long poll server
const (
	// FailHistoryLost: part of the update history was dropped; resume
	// from the supplied ts.
	FailHistoryLost = 1
	// FailKeyExpired: the session key expired; a new key must be
	// requested out of band.
	FailKeyExpired = 2
	// FailSessionLost: the session is gone entirely; both server and key
	// must be reacquired.
	FailSessionLost = 3
)

// ErrMalformedResponse is returned when a long poll body cannot be
// decoded or a success body is missing its ts
var ErrMalformedResponse = errors.New("malformed long poll response")

// Update is one item of a polled batch, tagged with the type used for
// handler routing. The payload stays opaque.
type Update struct {
	Type    string          `json:"type"`
	EventID string          `json:"event_id"`
	GroupID int64           `json:"group_id"`
	Object  json.RawMessage `json:"object"`
	Raw     json.RawMessage `json:"-"`
}

// Batch is a successfully polled set of updates with the new cursor
type Batch struct {
	TS      int64
	Updates []Update
}

// Failure is a well-formed server signal that the session needs
// correction. It is a value, not an error: the distinction between a
// batch and a failure is meant to be matched explicitly.
type Failure struct {
	Code  int
	TS    int64
	HasTS bool
}

// flexInt64 decodes an integer the server may send as a number or a
// quoted string
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", string(data), err)
	}
	*f = flexInt64(v)
	return nil
}

// classify inspects a long poll response body and returns either a batch
// or a failure. Exactly one of the two is non-nil on success.
func classify(body []byte) (*Batch, *Failure, error) {
	var resp struct {
		Failed  *int              `json:"failed"`
		TS      *flexInt64        `json:"ts"`
		Updates []json.RawMessage `json:"updates"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if resp.Failed != nil {
		failure := &Failure{Code: *resp.Failed}
		if resp.TS != nil {
			failure.TS = int64(*resp.TS)
			failure.HasTS = true
		}
		return nil, failure, nil
	}

	if resp.TS == nil {
		return nil, nil, fmt.Errorf("%w: missing ts", ErrMalformedResponse)
	}

	updates := make([]Update, 0, len(resp.Updates))
	for _, raw := range resp.Updates {
		var u Update
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil, nil, fmt.Errorf("%w: bad update: %v", ErrMalformedResponse, err)
		}
		u.Raw = raw
		updates = append(updates, u)
	}

	return &Batch{TS: int64(*resp.TS), Updates: updates}, nil, nil
}
