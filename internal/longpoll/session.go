package longpoll

import (
	"net/url"
	"strconv"
	"sync"
)

// Session holds the mutable long poll cursor: server URL, session key,
// ts and the wait timeout. The cursor only moves forward during normal
// polling; a failure recovery may replace it wholesale.
type Session struct {
	mu     sync.Mutex
	server string
	key    string
	ts     int64
	wait   int
}

// NewSession creates a session positioned at the given cursor
func NewSession(server, key string, ts int64, wait int) *Session {
	return &Session{
		server: server,
		key:    key,
		ts:     ts,
		wait:   wait,
	}
}

// Params builds the query parameters for the next long poll request
func (s *Session) Params() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()

	params := url.Values{}
	params.Set("act", "a_check")
	params.Set("key", s.key)
	params.Set("ts", strconv.FormatInt(s.ts, 10))
	params.Set("wait", strconv.Itoa(s.wait))
	return params
}

// Server returns the current long poll server URL
func (s *Session) Server() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server
}

// TS returns the current cursor value
func (s *Session) TS() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ts
}

// ApplyTS overwrites the cursor. The server is the sole source of cursor
// values, so no validation is done here.
func (s *Session) ApplyTS(ts int64) {
	s.mu.Lock()
	s.ts = ts
	s.mu.Unlock()
}

// SetKey installs a new session key (failure code 2 recovery)
func (s *Session) SetKey(key string) {
	s.mu.Lock()
	s.key = key
	s.mu.Unlock()
}

// SetServer installs a new server URL (failure code 3 recovery)
func (s *Session) SetServer(server string) {
	s.mu.Lock()
	s.server = server
	s.mu.Unlock()
}
