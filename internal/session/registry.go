package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"studylab/internal/practice"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrActiveSession   = errors.New("learner already has an active session")
)

// Registry owns the live in-memory sessions and the single scheduler that
// drives every timer. One goroutine beats once per second and fans the tick
// out; sessions never run their own timers.
type Registry struct {
	mu        sync.Mutex
	sessions  map[string]*practice.Session
	byLearner map[int64]string
	idleTTL   time.Duration
	done      chan struct{}
	closeOnce sync.Once
}

func NewRegistry(idleTTL time.Duration) *Registry {
	return &Registry{
		sessions:  make(map[string]*practice.Session),
		byLearner: make(map[int64]string),
		idleTTL:   idleTTL,
		done:      make(chan struct{}),
	}
}

// Start launches the shared scheduler. interval is 1s in production; tests
// pass something shorter or drive Tick directly.
func (r *Registry) Start(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				return
			case <-ticker.C:
				r.TickAll()
				r.sweep(time.Now())
			}
		}
	}()
}

func (r *Registry) Close() {
	r.closeOnce.Do(func() { close(r.done) })
}

// Add registers a session under a fresh opaque id. A learner may hold at most
// one live session; starting a second one while the first is unfinalized is
// rejected.
func (r *Registry) Add(s *practice.Session) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existingID, ok := r.byLearner[s.LearnerID()]; ok {
		if existing, live := r.sessions[existingID]; live && existing.State() != practice.StateFinalized {
			return "", ErrActiveSession
		}
		delete(r.sessions, existingID)
	}

	id, err := newSessionID()
	if err != nil {
		return "", err
	}
	r.sessions[id] = s
	r.byLearner[s.LearnerID()] = id
	return id, nil
}

func (r *Registry) Get(id string) (*practice.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(r.sessions, id)
	if r.byLearner[s.LearnerID()] == id {
		delete(r.byLearner, s.LearnerID())
	}
}

// Len reports the number of live sessions, for the metrics endpoint.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// TickAll delivers one scheduler beat to every live session. The snapshot is
// taken under the registry lock but each Tick runs against the session's own
// lock, so a slow finalization on one session cannot stall the others.
func (r *Registry) TickAll() {
	r.mu.Lock()
	live := make([]*practice.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		live = append(live, s)
	}
	r.mu.Unlock()

	for _, s := range live {
		s.Tick()
	}
}

// sweep drops sessions that finalized or idled out. Finalized sessions linger
// until the next beat so the finalize response can still be served.
func (r *Registry) sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.State() == practice.StateFinalized || now.Sub(s.LastTouched()) > r.idleTTL {
			delete(r.sessions, id)
			if r.byLearner[s.LearnerID()] == id {
				delete(r.byLearner, s.LearnerID())
			}
		}
	}
}

func newSessionID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
