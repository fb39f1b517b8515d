package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"

	"vkbot/internal/vkapi"
)

// ClientCaller implements APICaller over a vkapi.Client. Plugin calls
// run under the caller's base context so shutdown cancels them.
type ClientCaller struct {
	ctx    context.Context
	api    *vkapi.Client
	logger zerolog.Logger
}

// NewClientCaller creates a new ClientCaller
func NewClientCaller(ctx context.Context, api *vkapi.Client, logger zerolog.Logger) *ClientCaller {
	return &ClientCaller{
		ctx:    ctx,
		api:    api,
		logger: logger.With().Str("component", "plugin-caller").Logger(),
	}
}

// Call implements APICaller
func (c *ClientCaller) Call(method string, params map[string]any) (json.RawMessage, error) {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, fmt.Sprint(v))
	}

	c.logger.Debug().Str("method", method).Msg("plugin api call")
	return c.api.Call(c.ctx, method, values)
}

// Send implements APICaller
func (c *ClientCaller) Send(peerID int64, message string) (int64, error) {
	return c.api.SendMessage(c.ctx, vkapi.OutgoingMessage{
		PeerID:  peerID,
		Message: message,
	})
}
