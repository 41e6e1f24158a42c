// Package registry tracks the live listen sessions of this process, bucketed
// by user. The dispatcher reads it on every incoming cue; the listen handler
// inserts on accept and removes on disconnect.
package registry

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/faatca/cue/internal/cue"
)

// Sink is the outbound side of a listen session. Send must be safe to call
// from the dispatcher's fan-out goroutines; a failed send is the session's
// problem, not the dispatcher's. Close tears the transport down, which
// unblocks the session's read loop.
type Sink interface {
	Send(ctx context.Context, env cue.Envelope) error
	Close()
}

// Session is one connected listener. Patterns is the subscription set;
// KeyPattern is the restriction of the key used to authenticate, nil when
// the key is unrestricted.
type Session struct {
	ID         string
	UID        string
	Patterns   []string
	KeyPattern *string
	Sink       Sink
}

// NewSession builds a Session with a fresh id.
func NewSession(uid string, patterns []string, keyPattern *string, sink Sink) *Session {
	return &Session{
		ID:         uuid.NewString(),
		UID:        uid,
		Patterns:   patterns,
		KeyPattern: keyPattern,
		Sink:       sink,
	}
}

// Registry is the per-process listener map. Buckets for users with no
// remaining sessions are pruned on removal.
type Registry struct {
	mu    sync.RWMutex
	users map[string]map[string]*Session
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{users: make(map[string]map[string]*Session)}
}

// Add inserts a session into its user's bucket.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bucket := r.users[s.UID]
	if bucket == nil {
		bucket = make(map[string]*Session)
		r.users[s.UID] = bucket
	}
	bucket[s.ID] = s
}

// Remove deletes a session, pruning the user bucket when it empties.
// Removing an already-removed session is a no-op, so the disconnect path is
// safe to run from both the read loop and shutdown.
func (r *Registry) Remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bucket := r.users[s.UID]
	if bucket == nil {
		return
	}
	delete(bucket, s.ID)
	if len(bucket) == 0 {
		delete(r.users, s.UID)
	}
}

// Sessions returns a snapshot of uid's live sessions.
func (r *Registry) Sessions(uid string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bucket := r.users[uid]
	if len(bucket) == 0 {
		return nil
	}
	out := make([]*Session, 0, len(bucket))
	for _, s := range bucket {
		out = append(out, s)
	}
	return out
}

// CloseAll tears down every live session's transport. Each session's own
// read loop observes the close and performs its removal.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	sinks := make([]Sink, 0)
	for _, bucket := range r.users {
		for _, s := range bucket {
			sinks = append(sinks, s.Sink)
		}
	}
	r.mu.RUnlock()
	for _, s := range sinks {
		s.Close()
	}
}

// Len reports the total number of live sessions across all users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, bucket := range r.users {
		n += len(bucket)
	}
	return n
}
