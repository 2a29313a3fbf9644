package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/toolagent/core"
)

// InMemoryStore is a volatile ThreadStore implementation storing threads in a
// process local map. It is safe for concurrent access and best suited for
// tests or ephemeral chat sessions. Each returned thread is cloned to prevent
// external mutation of internal state.
type InMemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*core.Thread
	locks   *keyedLocker
}

var _ core.ThreadStore = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in‑memory thread store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{threads: make(map[string]*core.Thread), locks: newKeyedLocker()}
}

// Load returns an existing thread (clone) or creates a new one lazily.
func (s *InMemoryStore) Load(_ context.Context, id string) (*core.Thread, error) {
	if err := ValidateThreadID(id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadLocked(id).Clone(), nil
}

// Append adds messages to an existing or newly created thread.
func (s *InMemoryStore) Append(_ context.Context, id string, msgs ...core.Content) error {
	if err := ValidateThreadID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.threadLocked(id)
	t.Messages = append(t.Messages, core.Conversation(msgs).Clone()...)
	t.Updated = time.Now().UTC()
	return nil
}

// Lock grants exclusive access to id until unlock is called.
func (s *InMemoryStore) Lock(ctx context.Context, id string) (func(), error) {
	if err := ValidateThreadID(id); err != nil {
		return nil, err
	}
	return s.locks.Lock(ctx, id)
}

// List returns all threads, most recently updated first.
func (s *InMemoryStore) List(_ context.Context) ([]core.ThreadInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.ThreadInfo, 0, len(s.threads))
	for _, t := range s.threads {
		out = append(out, core.ThreadInfo{ID: t.ID, Messages: len(t.Messages), Updated: t.Updated})
	}
	sortThreadInfos(out)
	return out, nil
}

// Delete removes a thread.
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[id]; !ok {
		return core.ErrThreadNotFound
	}
	delete(s.threads, id)
	return nil
}

// Close is a no-op.
func (s *InMemoryStore) Close() error { return nil }

// threadLocked returns the stored thread, allocating it if needed; caller
// must hold the write lock.
func (s *InMemoryStore) threadLocked(id string) *core.Thread {
	t, ok := s.threads[id]
	if !ok {
		t = core.NewThread(id)
		s.threads[id] = t
	}
	return t
}

func sortThreadInfos(infos []core.ThreadInfo) {
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].Updated.Equal(infos[j].Updated) {
			return infos[i].Updated.After(infos[j].Updated)
		}
		return infos[i].ID < infos[j].ID
	})
}
