package daemon

import (
	"sync"

	"github.com/google/uuid"
)

// Session tracks the application instance behind one run process.
type Session struct {
	id string

	mutex    sync.RWMutex
	appID    string
	attached bool
}

// NewSession creates a session with a fresh identifier.
func NewSession() *Session {
	return &Session{id: uuid.NewString()}
}

// ID identifies the session in logs.
func (s *Session) ID() string {
	return s.id
}

// SetAppID records the application id. Only the first call per session
// takes effect; it returns true when it did.
func (s *Session) SetAppID(appID string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.appID != "" || appID == "" {
		return false
	}
	s.appID = appID
	s.attached = true
	return true
}

// AppID returns the application id, if one has been assigned.
func (s *Session) AppID() (string, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.appID, s.appID != ""
}

// Attached reports whether the application is running and accepts requests.
func (s *Session) Attached() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.attached
}

// Detach marks the application as stopped. The id is kept.
func (s *Session) Detach() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.attached = false
}
