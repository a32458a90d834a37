package app

import (
	"sync"

	"go.aimuz.me/meetstream/internal/types"
	"go.aimuz.me/meetstream/stream"
)

// LiveAdapter manages the viewer connection with proper synchronization.
// Session hooks must not call back into the adapter: Stop delivers the
// final state change while the adapter lock is held.
type LiveAdapter struct {
	mu      sync.RWMutex
	session *stream.Session
}

// Start connects to target. Stops any existing session first.
func (la *LiveAdapter) Start(target stream.Target, cfg stream.Config) error {
	if err := target.Validate(); err != nil {
		return err
	}

	la.mu.Lock()
	defer la.mu.Unlock()

	if la.session != nil {
		la.session.Stop()
		la.session = nil
	}
	la.session = stream.Connect(target, cfg)
	return nil
}

// Stop closes the viewer connection.
func (la *LiveAdapter) Stop() error {
	la.mu.Lock()
	defer la.mu.Unlock()

	if la.session == nil {
		return nil
	}
	la.session.Stop()
	la.session = nil
	return nil
}

// Session returns the current session, or nil.
func (la *LiveAdapter) Session() *stream.Session {
	la.mu.RLock()
	defer la.mu.RUnlock()
	return la.session
}

// Status returns the current status, safe for concurrent access.
func (la *LiveAdapter) Status() types.LiveStatus {
	la.mu.RLock()
	defer la.mu.RUnlock()

	if la.session == nil {
		return types.LiveStatus{}
	}
	return liveStatus(la.session, len(la.session.Entries()))
}

func liveStatus(s *stream.Session, entries int) types.LiveStatus {
	dl := s.Download()
	t := s.Target()
	return types.LiveStatus{
		Active:       true,
		Role:         string(t.Role),
		SessionID:    t.SessionID,
		State:        string(s.State()),
		EntryCount:   entries,
		Downloadable: dl.Downloadable,
		ExpiresAt:    dl.ExpiresAt,
	}
}
