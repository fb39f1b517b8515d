package vkapi

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"
	"strconv"
)

// LongPollServer is a fresh long poll session triple returned by
// groups.getLongPollServer.
type LongPollServer struct {
	Server string    `json:"server"`
	Key    string    `json:"key"`
	TS     FlexInt64 `json:"ts"`
}

// GetLongPollServer requests a new long poll session for the group
func (c *Client) GetLongPollServer(ctx context.Context, groupID int64) (LongPollServer, error) {
	params := url.Values{}
	params.Set("group_id", strconv.FormatInt(groupID, 10))

	raw, err := c.Call(ctx, "groups.getLongPollServer", params)
	if err != nil {
		return LongPollServer{}, err
	}

	var lp LongPollServer
	if err := json.Unmarshal(raw, &lp); err != nil {
		return LongPollServer{}, fmt.Errorf("failed to parse long poll server: %w", err)
	}
	return lp, nil
}

// OutgoingMessage describes a messages.send call
type OutgoingMessage struct {
	PeerID   int64
	Message  string
	Keyboard *Keyboard
}

// SendMessage sends a message to a peer and returns the sent message id.
// A random_id is generated for every call so the API can drop duplicates.
func (c *Client) SendMessage(ctx context.Context, msg OutgoingMessage) (int64, error) {
	params := url.Values{}
	params.Set("peer_id", strconv.FormatInt(msg.PeerID, 10))
	params.Set("message", msg.Message)
	params.Set("random_id", strconv.FormatInt(randomID(), 10))

	if msg.Keyboard != nil {
		kb, err := msg.Keyboard.JSON()
		if err != nil {
			return 0, fmt.Errorf("invalid keyboard: %w", err)
		}
		params.Set("keyboard", kb)
	}

	raw, err := c.Call(ctx, "messages.send", params)
	if err != nil {
		return 0, err
	}

	var id int64
	if err := json.Unmarshal(raw, &id); err != nil {
		// Sends to conversations return an array of descriptors instead of
		// a bare id; the id is not meaningful there.
		return 0, nil
	}
	return id, nil
}

// SendMessageEventAnswer responds to a callback button press
func (c *Client) SendMessageEventAnswer(ctx context.Context, eventID string, userID, peerID int64, eventData any) error {
	params := url.Values{}
	params.Set("event_id", eventID)
	params.Set("user_id", strconv.FormatInt(userID, 10))
	params.Set("peer_id", strconv.FormatInt(peerID, 10))

	if eventData != nil {
		data, err := json.Marshal(eventData)
		if err != nil {
			return fmt.Errorf("failed to marshal event data: %w", err)
		}
		params.Set("event_data", string(data))
	}

	_, err := c.Call(ctx, "messages.sendMessageEventAnswer", params)
	return err
}

// randomID generates a signed 31-bit id for messages.send
func randomID() int64 {
	id := int64(rand.Int31())
	if rand.Intn(2) == 0 {
		return -id
	}
	return id
}
