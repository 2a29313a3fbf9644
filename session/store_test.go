package session

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/toolagent/core"
)

// testThreadStore exercises the ThreadStore contract shared by all backends.
func testThreadStore(t *testing.T, store core.ThreadStore) {
	ctx := context.Background()

	t.Run("load creates empty thread", func(t *testing.T) {
		th, err := store.Load(ctx, "fresh")
		require.NoError(t, err)
		assert.Equal(t, "fresh", th.ID)
		assert.Empty(t, th.Messages)
		assert.False(t, th.Created.IsZero())
	})

	t.Run("append preserves order across calls", func(t *testing.T) {
		id := "weather1"
		require.NoError(t, store.Append(ctx, id, core.NewUserContent("Will it rain in Trivandrum today?")))
		require.NoError(t, store.Append(ctx, id,
			core.NewToolCallContent(core.FunctionCall{ID: "c1", Name: "get_weather", Arguments: `{"query":"Trivandrum"}`}),
			core.NewToolResultContent(core.FunctionResponse{ID: "c1", Name: "get_weather", Response: map[string]any{"temp_c": 29.0}}),
		))
		require.NoError(t, store.Append(ctx, id, core.NewAssistantContent("Light rain expected.")))

		th, err := store.Load(ctx, id)
		require.NoError(t, err)
		require.Len(t, th.Messages, 4)
		assert.Equal(t, core.RoleUser, th.Messages[0].Role)
		assert.Equal(t, "c1", th.Messages[1].FunctionCalls()[0].ID)
		assert.Equal(t, "c1", th.Messages[2].FunctionResponses()[0].ID)
		assert.Equal(t, "Light rain expected.", th.Messages[3].Text())
		require.NoError(t, th.Messages.Validate())
	})

	t.Run("list includes appended threads", func(t *testing.T) {
		infos, err := store.List(ctx)
		require.NoError(t, err)
		var found bool
		for _, info := range infos {
			if info.ID == "weather1" {
				found = true
				assert.Equal(t, 4, info.Messages)
			}
		}
		assert.True(t, found)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Append(ctx, "doomed", core.NewUserContent("x")))
		require.NoError(t, store.Delete(ctx, "doomed"))
		assert.ErrorIs(t, store.Delete(ctx, "doomed"), core.ErrThreadNotFound)

		th, err := store.Load(ctx, "doomed")
		require.NoError(t, err)
		assert.Empty(t, th.Messages)
	})

	t.Run("invalid id", func(t *testing.T) {
		_, err := store.Load(ctx, "a/b")
		assert.ErrorIs(t, err, core.ErrInvalidThreadID)
		assert.ErrorIs(t, store.Append(ctx, "", core.NewUserContent("x")), core.ErrInvalidThreadID)
	})

	t.Run("lock is exclusive", func(t *testing.T) {
		var (
			inside  atomic.Int32
			overlap atomic.Bool
			wg      sync.WaitGroup
		)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock, err := store.Lock(ctx, "locked")
				if !assert.NoError(t, err) {
					return
				}
				if inside.Add(1) > 1 {
					overlap.Store(true)
				}
				time.Sleep(5 * time.Millisecond)
				inside.Add(-1)
				unlock()
			}()
		}
		wg.Wait()
		assert.False(t, overlap.Load())
	})

	t.Run("lock honours context", func(t *testing.T) {
		unlock, err := store.Lock(ctx, "held")
		require.NoError(t, err)
		defer unlock()

		cctx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
		defer cancel()
		_, err = store.Lock(cctx, "held")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestInMemoryStore(t *testing.T) {
	testThreadStore(t, NewInMemoryStore())
}

func TestInMemoryStore_LoadReturnsClone(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, "t", core.NewUserContent("hi")))

	th, err := s.Load(ctx, "t")
	require.NoError(t, err)
	th.Messages = append(th.Messages, core.NewUserContent("mutated"))

	again, err := s.Load(ctx, "t")
	require.NoError(t, err)
	assert.Len(t, again.Messages, 1)
}

func TestBadgerStore(t *testing.T) {
	store, err := NewBadgerStore(func(o *BadgerOptions) { o.InMemory = true })
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	testThreadStore(t, store)
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewBadgerStore(func(o *BadgerOptions) { o.Dir = dir })
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, "durable", core.NewUserContent("remember me")))
	require.NoError(t, store.Close())

	store, err = NewBadgerStore(func(o *BadgerOptions) { o.Dir = dir })
	require.NoError(t, err)
	defer store.Close()

	th, err := store.Load(ctx, "durable")
	require.NoError(t, err)
	require.Len(t, th.Messages, 1)
	assert.Equal(t, "remember me", th.Messages[0].Text())
}

func TestBadgerStore_RequiresDir(t *testing.T) {
	_, err := NewBadgerStore()
	assert.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set")
	}
	prefix := "toolagent-test-" + core.NewID()
	store, err := NewRedisStore(redisURL, func(o *RedisOptions) {
		o.KeyPrefix = prefix
		o.LockRetry = 5 * time.Millisecond
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Ping(context.Background()))

	testThreadStore(t, store)
}

func TestNewRedisStore_InvalidURL(t *testing.T) {
	_, err := NewRedisStore("http://nope")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	for _, raw := range []string{"", "memory://"} {
		s, err := Open(raw)
		require.NoError(t, err)
		assert.IsType(t, &InMemoryStore{}, s)
	}

	s, err := Open("badger://memory")
	require.NoError(t, err)
	assert.IsType(t, &BadgerStore{}, s)
	require.NoError(t, s.Close())

	s, err = Open("badger://" + t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &BadgerStore{}, s)
	require.NoError(t, s.Close())

	s, err = Open("redis://localhost:6379/0")
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open("mongodb://localhost:27017")
	assert.Error(t, err)
}

func TestValidateThreadID(t *testing.T) {
	assert.NoError(t, ValidateThreadID("weather1"))
	for _, bad := range []string{"", "a b", "a/b", "tab\there", string(make([]byte, 300))} {
		assert.ErrorIs(t, ValidateThreadID(bad), core.ErrInvalidThreadID, "%q", bad)
	}
}
