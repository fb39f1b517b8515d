package plugin

import "encoding/json"

// Plugin represents a loaded JavaScript handler plugin
type Plugin struct {
	Name   string   // plugin name (filename without extension)
	Types  []string // update types this plugin handles
	Script string   // JavaScript source code
}

// APICaller provides API access to plugins
type APICaller interface {
	// Call invokes an arbitrary API method
	Call(method string, params map[string]any) (json.RawMessage, error)
	// Send sends a plain text message to a peer
	Send(peerID int64, message string) (int64, error)
}

// ScriptError is an error raised during plugin execution
type ScriptError struct {
	Plugin  string
	Message string
}

// Error implements the error interface
func (e *ScriptError) Error() string {
	return "plugin " + e.Plugin + ": " + e.Message
}
