package core

import (
	"context"
	"errors"
	"time"
)

// ErrThreadNotFound is returned by stores when an operation requires an
// existing thread.
var ErrThreadNotFound = errors.New("thread not found")

// ErrInvalidThreadID is returned for identifiers a store cannot key on.
var ErrInvalidThreadID = errors.New("invalid thread id")

// Thread is a persisted conversation keyed by a thread identifier.
//
// Contract:
//   - Messages only ever grow through ThreadStore.Append
//   - Clone performs a copy of the message slice for safe divergence
type Thread struct {
	ID       string            `json:"id"`
	Messages Conversation      `json:"messages"`
	Created  time.Time         `json:"created"`
	Updated  time.Time         `json:"updated"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewThread creates an empty thread with the given ID.
func NewThread(id string) *Thread {
	now := time.Now().UTC()
	return &Thread{ID: id, Messages: Conversation{}, Created: now, Updated: now, Metadata: map[string]string{}}
}

// Clone returns a copy of the thread safe for independent mutation.
func (t *Thread) Clone() *Thread {
	clone := &Thread{
		ID:       t.ID,
		Messages: t.Messages.Clone(),
		Created:  t.Created,
		Updated:  t.Updated,
		Metadata: make(map[string]string, len(t.Metadata)),
	}
	for k, v := range t.Metadata {
		clone.Metadata[k] = v
	}
	return clone
}

// ThreadInfo is a lightweight listing entry.
type ThreadInfo struct {
	ID       string    `json:"id"`
	Messages int       `json:"messages"`
	Updated  time.Time `json:"updated"`
}

// ThreadStore persists conversations keyed by thread id.
//
// Load returns the existing thread or creates a new empty one. Append commits
// messages in order. Lock grants exclusive access to a thread until the
// returned unlock function is called.
type ThreadStore interface {
	Load(ctx context.Context, id string) (*Thread, error)
	Append(ctx context.Context, id string, msgs ...Content) error
	Lock(ctx context.Context, id string) (unlock func(), err error)
	List(ctx context.Context) ([]ThreadInfo, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
