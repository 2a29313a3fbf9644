package testutil

import (
	"context"

	"github.com/hupe1980/toolagent/core"
)

// ThreadBuilder helps construct threads with fluent chaining for tests.
// Example:
//
//	th := NewThreadBuilder("weather1").Metadata("user", "u1").Messages(conv...).Build()
type ThreadBuilder struct {
	id       string
	metadata map[string]string
	msgs     core.Conversation
}

// NewThreadBuilder creates a new builder for a thread with the given id.
func NewThreadBuilder(id string) *ThreadBuilder {
	return &ThreadBuilder{id: id, metadata: map[string]string{}}
}

// Metadata sets a metadata key/value pair (chainable).
func (b *ThreadBuilder) Metadata(key, val string) *ThreadBuilder {
	b.metadata[key] = val
	return b
}

// Messages appends messages to the thread history (chainable).
func (b *ThreadBuilder) Messages(msgs ...core.Content) *ThreadBuilder {
	b.msgs = append(b.msgs, msgs...)
	return b
}

// Build returns a *core.Thread with the history and metadata.
func (b *ThreadBuilder) Build() *core.Thread {
	th := core.NewThread(b.id)
	for k, v := range b.metadata {
		th.Metadata[k] = v
	}
	th.Messages = append(th.Messages, b.msgs...)
	return th
}

// Seed appends the history to store under the builder's id.
func (b *ThreadBuilder) Seed(ctx context.Context, store core.ThreadStore) error {
	if _, err := store.Load(ctx, b.id); err != nil {
		return err
	}
	if len(b.msgs) == 0 {
		return nil
	}
	return store.Append(ctx, b.id, b.msgs...)
}
