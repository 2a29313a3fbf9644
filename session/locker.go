package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/hupe1980/toolagent/core"
)

// keyedLocker grants exclusive access per key within the process. Waiting for
// a held key honours context cancellation.
type keyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func newKeyedLocker() *keyedLocker {
	return &keyedLocker{locks: make(map[string]*keyLock)}
}

func (l *keyedLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, kl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.ch
			l.release(key, kl)
		})
	}, nil
}

func (l *keyedLocker) release(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// maxThreadIDLen bounds thread identifiers.
const maxThreadIDLen = 256

// ValidateThreadID rejects identifiers that cannot be used as storage keys.
func ValidateThreadID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty thread id", core.ErrInvalidThreadID)
	}
	if len(id) > maxThreadIDLen {
		return fmt.Errorf("%w: longer than %d bytes", core.ErrInvalidThreadID, maxThreadIDLen)
	}
	if strings.ContainsRune(id, '/') || strings.IndexFunc(id, unicode.IsControl) >= 0 || strings.IndexFunc(id, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: %q", core.ErrInvalidThreadID, id)
	}
	return nil
}
