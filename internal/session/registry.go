// Package session holds the in-process registry of live calls.
//
// Every mutation goes through one of three atomic operations: Create,
// AttachRemoteSession and TakeForTermination. Readers only ever receive
// copies of a record.
package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/millionx-hackathon/educational-voice-agent/internal/domain"
)

var (
	// ErrDuplicateSession is returned by Create when a live record already
	// exists for the call. Callers should treat it as "already being handled".
	ErrDuplicateSession = errors.New("session already exists")
	// ErrSessionNotFound is returned when a call has no live record.
	ErrSessionNotFound = errors.New("session not found")
)

// Registry is a concurrent map from telephony call id to session record.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*domain.Session), now: time.Now}
}

// Create registers a new record in state CREATING.
func (r *Registry) Create(callID, callerID string) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[callID]; ok {
		return *existing, ErrDuplicateSession
	}
	s := &domain.Session{
		ExternalCallID: callID,
		CallerID:       callerID,
		State:          domain.StateCreating,
		CreatedAt:      r.now(),
	}
	r.sessions[callID] = s
	return *s, nil
}

// AttachRemoteSession moves a CREATING record to ACTIVE. The remote id is
// set once; a second attach on an ACTIVE record is ignored.
// It returns ErrSessionNotFound when the call already ended.
func (r *Registry) AttachRemoteSession(callID, remoteSessionID, joinURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[callID]
	if !ok {
		return ErrSessionNotFound
	}
	if s.State != domain.StateCreating {
		return nil
	}
	s.RemoteSessionID = remoteSessionID
	s.JoinURL = joinURL
	s.State = domain.StateActive
	return nil
}

// TakeForTermination atomically removes the record and returns it in state
// ENDING. Of any number of concurrent callers for one id, exactly one gets ok.
func (r *Registry) TakeForTermination(callID string) (domain.Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[callID]
	if ok {
		delete(r.sessions, callID)
	}
	r.mu.Unlock()
	if !ok {
		return domain.Session{}, false
	}
	out := *s
	out.State = domain.StateEnding
	out.EndedAt = r.now()
	return out, true
}

// Get returns a copy of the live record for callID.
func (r *Registry) Get(callID string) (domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[callID]
	if !ok {
		return domain.Session{}, false
	}
	return *s, true
}

// Snapshot returns copies of all live records, oldest first.
func (r *Registry) Snapshot() []domain.Session {
	r.mu.Lock()
	out := make([]domain.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Expired lists the ids of records created more than maxAge ago.
func (r *Registry) Expired(maxAge time.Duration) []string {
	cutoff := r.now().Add(-maxAge)
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, s := range r.sessions {
		if s.CreatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
