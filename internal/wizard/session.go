package wizard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultSessionTTL = 30 * time.Minute

var ErrSessionNotFound = errors.New("wizard: session not found")

type session struct {
	wizard   *Wizard
	lastSeen time.Time
}

// Sessions keeps wizards in memory between requests. A session idle for
// longer than the TTL is aborted and forgotten.
type Sessions struct {
	mu     sync.Mutex
	items  map[string]*session
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

func NewSessions(ttl time.Duration, logger *zap.Logger) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sessions{items: map[string]*session{}, ttl: ttl, now: time.Now, logger: logger}
}

// Add registers the wizard under a fresh id and returns it.
func (s *Sessions) Add(w *Wizard) string {
	id := uuid.NewString()
	w.mu.Lock()
	w.id = id
	w.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = &session{wizard: w, lastSeen: s.now()}
	return id
}

// Get returns a live session and extends its lifetime.
func (s *Sessions) Get(id string) (*Wizard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.items[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	now := s.now()
	if now.Sub(entry.lastSeen) > s.ttl {
		delete(s.items, id)
		entry.wizard.Abort()
		return nil, ErrSessionNotFound
	}
	entry.lastSeen = now
	return entry.wizard, nil
}

// Remove aborts the session's in-flight work and forgets it.
func (s *Sessions) Remove(id string) error {
	s.mu.Lock()
	entry, ok := s.items[id]
	delete(s.items, id)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	entry.wizard.Abort()
	return nil
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Sweep drops every expired session and returns how many were dropped.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	now := s.now()
	var expired []*Wizard
	for id, entry := range s.items {
		if now.Sub(entry.lastSeen) > s.ttl {
			expired = append(expired, entry.wizard)
			delete(s.items, id)
		}
	}
	s.mu.Unlock()
	for _, w := range expired {
		w.Abort()
	}
	return len(expired)
}

// Run sweeps on every tick until ctx is done.
func (s *Sessions) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Info("expired wizard sessions", zap.Int("count", n))
			}
		}
	}
}
