package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/rs/zerolog"
)

func writePlugin(t *testing.T, dir, name, script string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(script), 0644); err != nil {
		t.Fatalf("failed to write plugin: %v", err)
	}
}

func loadedManager(t *testing.T, scripts map[string]string) *Manager {
	t.Helper()
	dir := t.TempDir()
	for name, script := range scripts {
		writePlugin(t, dir, name, script)
	}

	m := NewManager(zerolog.Nop())
	if err := m.LoadFromDirectory(dir); err != nil {
		t.Fatalf("LoadFromDirectory: %v", err)
	}
	return m
}

func TestExtractUpdateDirectives(t *testing.T) {
	script := `// @update message_new
// @update message_event
// not a directive: @update nope
function handle(update, vk) {}
`
	types := extractUpdateDirectives(script)
	sort.Strings(types)
	want := []string{"message_event", "message_new"}
	if len(types) != len(want) {
		t.Fatalf("types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("types[%d] = %s, want %s", i, types[i], want[i])
		}
	}
}

func TestLoadFromDirectory(t *testing.T) {
	m := loadedManager(t, map[string]string{
		"echo.js": `// @update message_new
function handle(update, vk) {}`,
		"notes.txt": "not a plugin",
	})

	if !m.HasPlugin("message_new") {
		t.Error("message_new plugin not registered")
	}
	if m.HasPlugin("message_event") {
		t.Error("unexpected message_event plugin")
	}
	if types := m.GetTypes(); len(types) != 1 {
		t.Errorf("GetTypes = %v, want one entry", types)
	}
}

func TestLoadFromDirectory_SkipsBrokenPlugins(t *testing.T) {
	// A plugin without a directive is logged and skipped, not fatal
	m := loadedManager(t, map[string]string{
		"bad.js": `function handle(update, vk) {}`,
		"ok.js": `// @update message_new
function handle(update, vk) {}`,
	})

	if !m.HasPlugin("message_new") {
		t.Error("valid plugin not loaded alongside the broken one")
	}
	if len(m.GetTypes()) != 1 {
		t.Errorf("GetTypes = %v", m.GetTypes())
	}
}

func TestLoadFromDirectory_MissingDir(t *testing.T) {
	m := NewManager(zerolog.Nop())
	if err := m.LoadFromDirectory(filepath.Join(t.TempDir(), "nope")); err != nil {
		t.Errorf("missing directory should not be fatal: %v", err)
	}
}

func TestLoadPlugin_DuplicateType(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "a.js", `// @update message_new
function handle(update, vk) {}`)

	m := NewManager(zerolog.Nop())
	if err := m.LoadFromDirectory(dir); err != nil {
		t.Fatalf("LoadFromDirectory: %v", err)
	}

	err := m.loadPlugin(filepath.Join(dir, "a.js"))
	if err == nil {
		t.Error("expected an error for a duplicate update type")
	}
}

func TestExecute(t *testing.T) {
	m := loadedManager(t, map[string]string{
		"echo.js": `// @update message_new
function handle(update, vk) {
	vk.send(update.peer_id, "got: " + update.text);
}`,
	})

	caller := &fakeCaller{}
	event := map[string]any{"peer_id": 42, "text": "hi"}
	if err := m.Execute(context.Background(), "message_new", event, caller); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if caller.sentPeer != 42 {
		t.Errorf("sent peer = %d, want 42", caller.sentPeer)
	}
	if caller.sentMessage != "got: hi" {
		t.Errorf("sent message = %s", caller.sentMessage)
	}
}

func TestExecute_Call(t *testing.T) {
	m := loadedManager(t, map[string]string{
		"caller.js": `// @update message_new
function handle(update, vk) {
	var resp = vk.call("users.get", {user_ids: "1"});
	if (resp[0].id !== 1) {
		throw new Error("unexpected response");
	}
}`,
	})

	caller := &fakeCaller{callResult: json.RawMessage(`[{"id": 1}]`)}
	if err := m.Execute(context.Background(), "message_new", map[string]any{}, caller); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if caller.calledMethod != "users.get" {
		t.Errorf("called method = %s", caller.calledMethod)
	}
	if caller.calledParams["user_ids"] != "1" {
		t.Errorf("params = %v", caller.calledParams)
	}
}

func TestExecute_UnknownType(t *testing.T) {
	m := NewManager(zerolog.Nop())
	if err := m.Execute(context.Background(), "message_new", nil, &fakeCaller{}); err == nil {
		t.Error("expected an error for an unhandled update type")
	}
}

func TestExecute_MissingHandle(t *testing.T) {
	m := loadedManager(t, map[string]string{
		"nohandle.js": `// @update message_new
var x = 1;`,
	})

	err := m.Execute(context.Background(), "message_new", map[string]any{}, &fakeCaller{})
	var scriptErr *ScriptError
	if !errors.As(err, &scriptErr) {
		t.Fatalf("err = %v, want *ScriptError", err)
	}
	if scriptErr.Plugin != "nohandle" {
		t.Errorf("Plugin = %s", scriptErr.Plugin)
	}
}

func TestExecute_ScriptThrow(t *testing.T) {
	m := loadedManager(t, map[string]string{
		"thrower.js": `// @update message_new
function handle(update, vk) {
	throw new Error("boom");
}`,
	})

	err := m.Execute(context.Background(), "message_new", map[string]any{}, &fakeCaller{})
	var scriptErr *ScriptError
	if !errors.As(err, &scriptErr) {
		t.Fatalf("err = %v, want *ScriptError", err)
	}
}

func TestExecute_SendFailureSurfaces(t *testing.T) {
	m := loadedManager(t, map[string]string{
		"echo.js": `// @update message_new
function handle(update, vk) {
	vk.send(1, "hi");
}`,
	})

	caller := &fakeCaller{sendErr: errors.New("flood control")}
	if err := m.Execute(context.Background(), "message_new", map[string]any{}, caller); err == nil {
		t.Error("expected the send error to surface as a script error")
	}
}

type fakeCaller struct {
	sentPeer     int64
	sentMessage  string
	sendErr      error
	calledMethod string
	calledParams map[string]any
	callResult   json.RawMessage
}

func (f *fakeCaller) Send(peerID int64, message string) (int64, error) {
	f.sentPeer = peerID
	f.sentMessage = message
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	return 1, nil
}

func (f *fakeCaller) Call(method string, params map[string]any) (json.RawMessage, error) {
	f.calledMethod = method
	f.calledParams = params
	if f.callResult == nil {
		return json.RawMessage(`1`), nil
	}
	return f.callResult, nil
}
