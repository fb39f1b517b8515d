package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/rs/zerolog"

	"vkbot/internal/longpoll"
)

// DefaultExecutionTimeout is the default timeout for plugin execution
const DefaultExecutionTimeout = 10 * time.Second

// updateDirectiveRegex matches @update directives in comments
var updateDirectiveRegex = regexp.MustCompile(`(?m)^//\s*@update\s+(\S+)`)

// Manager manages JavaScript handler plugins
type Manager struct {
	plugins map[string]*Plugin // update type -> plugin
	logger  zerolog.Logger
	timeout time.Duration
	mu      sync.RWMutex
}

// NewManager creates a new Manager
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		plugins: make(map[string]*Plugin),
		logger:  logger.With().Str("component", "plugin-manager").Logger(),
		timeout: DefaultExecutionTimeout,
	}
}

// SetTimeout sets the execution timeout for plugins
func (m *Manager) SetTimeout(timeout time.Duration) {
	m.timeout = timeout
}

// LoadFromDirectory loads all .js plugins from a directory
func (m *Manager) LoadFromDirectory(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		m.logger.Warn().Str("directory", dir).Msg("plugins directory does not exist")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat plugins directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("plugins path is not a directory: %s", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read plugins directory: %w", err)
	}

	loadedCount := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".js") {
			continue
		}

		pluginPath := filepath.Join(dir, entry.Name())
		if err := m.loadPlugin(pluginPath); err != nil {
			m.logger.Error().
				Err(err).
				Str("file", entry.Name()).
				Msg("failed to load plugin")
			continue
		}
		loadedCount++
	}

	m.logger.Info().
		Int("loaded", loadedCount).
		Str("directory", dir).
		Msg("plugins loaded")

	return nil
}

// loadPlugin loads a single plugin from a file
func (m *Manager) loadPlugin(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read plugin file: %w", err)
	}

	script := string(content)

	types := extractUpdateDirectives(script)
	if len(types) == 0 {
		return fmt.Errorf("plugin missing @update directive")
	}

	for _, t := range types {
		if existing, exists := m.plugins[t]; exists {
			return fmt.Errorf("update type %q already handled by plugin %q", t, existing.Name)
		}
	}

	name := strings.TrimSuffix(filepath.Base(path), ".js")
	p := &Plugin{
		Name:   name,
		Types:  types,
		Script: script,
	}

	for _, t := range types {
		m.plugins[t] = p
	}

	m.logger.Info().
		Str("name", name).
		Strs("types", types).
		Str("file", filepath.Base(path)).
		Msg("plugin loaded")

	return nil
}

// extractUpdateDirectives collects the update types from @update directives
func extractUpdateDirectives(script string) []string {
	matches := updateDirectiveRegex.FindAllStringSubmatch(script, -1)
	types := make([]string, 0, len(matches))
	for _, match := range matches {
		types = append(types, match[1])
	}
	return types
}

// HasPlugin checks if a plugin handles the given update type
func (m *Manager) HasPlugin(updateType string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.plugins[updateType]
	return exists
}

// GetTypes returns all update types with a registered plugin
func (m *Manager) GetTypes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	types := make([]string, 0, len(m.plugins))
	for t := range m.plugins {
		types = append(types, t)
	}
	return types
}

// Register binds a poller handler for every plugin-handled update type
func (m *Manager) Register(p *longpoll.Poller, caller APICaller) {
	for _, t := range m.GetTypes() {
		updateType := t
		p.On(updateType, func(ctx context.Context, event any) error {
			return m.Execute(ctx, updateType, event, caller)
		})
	}
}

// Execute runs the plugin for the given update type. The event is
// converted to a plain JSON object before it is handed to the script.
func (m *Manager) Execute(ctx context.Context, updateType string, event any, caller APICaller) error {
	m.mu.RLock()
	p, exists := m.plugins[updateType]
	timeout := m.timeout
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("no plugin for update type %q", updateType)
	}

	jsEvent, err := toScriptValue(event)
	if err != nil {
		return &ScriptError{Plugin: p.Name, Message: fmt.Sprintf("event not serializable: %v", err)}
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Run in a goroutine so a runaway script cannot block dispatch
	// beyond the timeout
	resultCh := make(chan error, 1)
	go func() {
		resultCh <- m.executePlugin(p, jsEvent, caller)
	}()

	select {
	case <-execCtx.Done():
		if execCtx.Err() == context.DeadlineExceeded {
			m.logger.Warn().
				Str("plugin", p.Name).
				Dur("timeout", timeout).
				Msg("plugin execution timed out")
			return &ScriptError{Plugin: p.Name, Message: "execution timed out"}
		}
		return execCtx.Err()
	case err := <-resultCh:
		return err
	}
}

// executePlugin runs the plugin's handle function with the given event
func (m *Manager) executePlugin(p *Plugin, event any, caller APICaller) error {
	// New runtime per execution: goja VMs are not goroutine safe
	runtime := NewRuntime(m.logger)
	runtime.SetupAPICaller(caller)

	if _, err := runtime.RunScript(p.Script); err != nil {
		return &ScriptError{Plugin: p.Name, Message: fmt.Sprintf("script error: %v", err)}
	}

	vm := runtime.VM()
	handleVal := vm.Get("handle")
	if handleVal == nil || goja.IsUndefined(handleVal) {
		return &ScriptError{Plugin: p.Name, Message: "handle function not defined"}
	}

	handle, ok := goja.AssertFunction(handleVal)
	if !ok {
		return &ScriptError{Plugin: p.Name, Message: "handle is not a function"}
	}

	vkVal := vm.Get("vk")
	if _, err := handle(goja.Undefined(), vm.ToValue(event), vkVal); err != nil {
		if jsErr, ok := err.(*goja.Exception); ok {
			return &ScriptError{Plugin: p.Name, Message: jsErr.String()}
		}
		return &ScriptError{Plugin: p.Name, Message: err.Error()}
	}

	return nil
}

// toScriptValue roundtrips the event through JSON so the script sees a
// plain object with the wire field names, whatever Go type it was
func toScriptValue(event any) (any, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, err
	}
	return value, nil
}

// Close releases all loaded plugins
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plugins = make(map[string]*Plugin)
	m.logger.Info().Msg("plugin manager closed")
}
