package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"vkbot/internal/longpoll"
	"vkbot/internal/vkapi"
)

// fakeVK serves groups.getLongPollServer with a session that changes on
// every request
type fakeVK struct {
	calls int32
}

func (f *fakeVK) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/method/groups.getLongPollServer" {
			http.NotFound(w, r)
			return
		}
		n := atomic.AddInt32(&f.calls, 1)
		resp := map[string]any{
			"response": map[string]any{
				"server": fmt.Sprintf("https://lp.example/%d", n),
				"key":    fmt.Sprintf("key%d", n),
				"ts":     "10",
			},
		}
		json.NewEncoder(w).Encode(resp)
	}
}

func newTestBot(t *testing.T) (*Bot, *fakeVK) {
	t.Helper()
	fake := &fakeVK{}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	api := vkapi.New(vkapi.Config{
		Token:   "tok",
		BaseURL: srv.URL + "/method/",
		Logger:  zerolog.Nop(),
	})
	t.Cleanup(api.Close)

	b, err := New(context.Background(), api, Config{
		GroupID: 1,
		Logger:  zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(b.Dispose)
	return b, fake
}

func TestNew_AcquiresSession(t *testing.T) {
	b, fake := newTestBot(t)

	session := b.Poller().Session()
	if session.Server() != "https://lp.example/1" {
		t.Errorf("Server = %s", session.Server())
	}
	if got := session.Params().Get("key"); got != "key1" {
		t.Errorf("key = %s", got)
	}
	if session.TS() != 10 {
		t.Errorf("TS = %d, want 10", session.TS())
	}
	if n := atomic.LoadInt32(&fake.calls); n != 1 {
		t.Errorf("getLongPollServer calls = %d, want 1", n)
	}
}

func TestRecoverSession_HistoryLost(t *testing.T) {
	b, fake := newTestBot(t)

	b.recoverSession(context.Background(), longpoll.Failure{
		Code:  longpoll.FailHistoryLost,
		TS:    42,
		HasTS: true,
	})

	session := b.Poller().Session()
	if session.TS() != 42 {
		t.Errorf("TS = %d, want 42", session.TS())
	}
	// Code 1 resumes with the supplied cursor, no new session needed
	if n := atomic.LoadInt32(&fake.calls); n != 1 {
		t.Errorf("getLongPollServer calls = %d, want 1", n)
	}
}

func TestRecoverSession_KeyExpired(t *testing.T) {
	b, fake := newTestBot(t)

	b.recoverSession(context.Background(), longpoll.Failure{Code: longpoll.FailKeyExpired})

	session := b.Poller().Session()
	if got := session.Params().Get("key"); got != "key2" {
		t.Errorf("key = %s, want key2", got)
	}
	// Code 2 keeps the server URL
	if session.Server() != "https://lp.example/1" {
		t.Errorf("Server = %s, want original", session.Server())
	}
	if n := atomic.LoadInt32(&fake.calls); n != 2 {
		t.Errorf("getLongPollServer calls = %d, want 2", n)
	}
}

func TestRecoverSession_SessionLost(t *testing.T) {
	b, _ := newTestBot(t)

	b.recoverSession(context.Background(), longpoll.Failure{Code: longpoll.FailSessionLost})

	session := b.Poller().Session()
	if got := session.Params().Get("key"); got != "key2" {
		t.Errorf("key = %s, want key2", got)
	}
	if session.Server() != "https://lp.example/2" {
		t.Errorf("Server = %s, want refreshed", session.Server())
	}
}

func TestNew_SessionAcquisitionFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": {"error_code": 5, "error_msg": "User authorization failed"}}`))
	}))
	defer srv.Close()

	api := vkapi.New(vkapi.Config{
		Token:   "bad",
		BaseURL: srv.URL + "/method/",
		Logger:  zerolog.Nop(),
	})
	defer api.Close()

	if _, err := New(context.Background(), api, Config{GroupID: 1, Logger: zerolog.Nop()}); err == nil {
		t.Error("expected an error when the session cannot be acquired")
	}
}
