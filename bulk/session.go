package bulk

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrNoSession is returned by a SessionStore when the owner has no session.
var ErrNoSession = errors.New("no session for owner")

// A SessionStore holds the building session for each owner. Implementations
// must isolate owners from each other, but they are not required to
// serialize concurrent operations on one owner; the Aggregator does that.
type SessionStore interface {
	// Get returns the owner's session, or ErrNoSession.
	Get(owner string) (*Session, error)
	// Put saves the session, overwriting any previous one for the owner.
	Put(owner string, s *Session) error
	// Delete removes the owner's session. Deleting a missing session is
	// not an error.
	Delete(owner string) error
}

// MemorySessions is a volatile SessionStore.
type MemorySessions struct {
	m        sync.RWMutex
	sessions map[string]Session
}

var _ SessionStore = &MemorySessions{}

// NewMemorySessions returns an empty in-memory session store.
func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: make(map[string]Session)}
}

func (ms *MemorySessions) Get(owner string) (*Session, error) {
	ms.m.RLock()
	s, ok := ms.sessions[owner]
	ms.m.RUnlock()
	if !ok {
		return nil, ErrNoSession
	}
	// copy so callers cannot mutate the stored session in place
	cp := s
	cp.Files = append([]FileRef(nil), s.Files...)
	return &cp, nil
}

func (ms *MemorySessions) Put(owner string, s *Session) error {
	cp := *s
	cp.Files = append([]FileRef(nil), s.Files...)
	ms.m.Lock()
	ms.sessions[owner] = cp
	ms.m.Unlock()
	return nil
}

func (ms *MemorySessions) Delete(owner string) error {
	ms.m.Lock()
	delete(ms.sessions, owner)
	ms.m.Unlock()
	return nil
}
