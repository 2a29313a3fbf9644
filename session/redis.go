package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/hupe1980/toolagent/core"
)

// RedisOptions configures the Redis store.
type RedisOptions struct {
	// KeyPrefix namespaces every key, default "toolagent".
	KeyPrefix string
	// TTL expires idle threads; 0 keeps them forever.
	TTL time.Duration
	// LockTTL bounds how long a crashed holder can block a thread.
	LockTTL time.Duration
	// LockRetry is the polling interval while waiting for a lock.
	LockRetry time.Duration
}

// RedisStore persists threads in Redis so several processes can share them.
//
// Redis data structure:
//   - "<prefix>:thread:<id>:msgs"  list of JSON messages (RPUSH)
//   - "<prefix>:thread:<id>:meta"  hash with created/updated unix nanos
//   - "<prefix>:thread:<id>:lock"  lock token (SET NX PX)
//   - "<prefix>:threads"           sorted set of ids scored by update time
type RedisStore struct {
	client *redis.Client
	opts   RedisOptions
}

var _ core.ThreadStore = (*RedisStore)(nil)

// releaseScript deletes the lock only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// NewRedisStore connects to the Redis server at redisURL.
func NewRedisStore(redisURL string, optFns ...func(o *RedisOptions)) (*RedisStore, error) {
	ropts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	return NewRedisStoreFromClient(redis.NewClient(ropts), optFns...), nil
}

// NewRedisStoreFromClient wraps an existing client. Close closes it.
func NewRedisStoreFromClient(client *redis.Client, optFns ...func(o *RedisOptions)) *RedisStore {
	opts := RedisOptions{
		KeyPrefix: "toolagent",
		LockTTL:   2 * time.Minute,
		LockRetry: 50 * time.Millisecond,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &RedisStore{client: client, opts: opts}
}

func (s *RedisStore) key(id, suffix string) string {
	return fmt.Sprintf("%s:thread:%s:%s", s.opts.KeyPrefix, id, suffix)
}

func (s *RedisStore) indexKey() string { return s.opts.KeyPrefix + ":threads" }

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Load returns the stored thread, creating an empty one when absent.
func (s *RedisStore) Load(ctx context.Context, id string) (*core.Thread, error) {
	if err := ValidateThreadID(id); err != nil {
		return nil, err
	}
	now := strconv.FormatInt(time.Now().UTC().UnixNano(), 10)
	metaKey := s.key(id, "meta")

	var (
		meta *redis.MapStringStringCmd
		msgs *redis.StringSliceCmd
	)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSetNX(ctx, metaKey, "created", now)
		p.HSetNX(ctx, metaKey, "updated", now)
		meta = p.HGetAll(ctx, metaKey)
		msgs = p.LRange(ctx, s.key(id, "msgs"), 0, -1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load thread: %w", err)
	}

	fields := meta.Val()
	thread := &core.Thread{
		ID:       id,
		Messages: make(core.Conversation, 0, len(msgs.Val())),
		Created:  parseNanos(fields["created"]),
		Updated:  parseNanos(fields["updated"]),
		Metadata: map[string]string{},
	}
	for _, raw := range msgs.Val() {
		var c core.Content
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, fmt.Errorf("failed to deserialize message: %w", err)
		}
		thread.Messages = append(thread.Messages, c)
	}
	return thread, nil
}

// Append pushes msgs onto the thread in one transaction.
func (s *RedisStore) Append(ctx context.Context, id string, msgs ...core.Content) error {
	if err := ValidateThreadID(id); err != nil {
		return err
	}
	values := make([]any, 0, len(msgs))
	for _, m := range msgs {
		raw, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to serialize message: %w", err)
		}
		values = append(values, string(raw))
	}

	now := time.Now().UTC()
	nanos := strconv.FormatInt(now.UnixNano(), 10)
	msgKey, metaKey := s.key(id, "msgs"), s.key(id, "meta")

	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if len(values) > 0 {
			p.RPush(ctx, msgKey, values...)
		}
		p.HSetNX(ctx, metaKey, "created", nanos)
		p.HSet(ctx, metaKey, "updated", nanos)
		p.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(now.UnixNano()), Member: id})
		if s.opts.TTL > 0 {
			p.Expire(ctx, msgKey, s.opts.TTL)
			p.Expire(ctx, metaKey, s.opts.TTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store messages: %w", err)
	}
	return nil
}

// Lock acquires a distributed lock on id, polling until ctx is done.
func (s *RedisStore) Lock(ctx context.Context, id string) (func(), error) {
	if err := ValidateThreadID(id); err != nil {
		return nil, err
	}
	lockKey := s.key(id, "lock")
	token := core.NewID()

	op := func() error {
		ok, err := s.client.SetNX(ctx, lockKey, token, s.opts.LockTTL).Result()
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return errLockHeld
		}
		return nil
	}
	b := backoff.WithContext(backoff.NewConstantBackOff(s.opts.LockRetry), ctx)
	if err := backoff.Retry(op, b); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("failed to lock thread %s: %w", id, err)
	}

	return func() {
		// Release with a fresh context so a canceled run still frees the lock.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, s.client, []string{lockKey}, token).Err()
	}, nil
}

var errLockHeld = errors.New("lock held")

// List returns all indexed threads, most recently updated first.
func (s *RedisStore) List(ctx context.Context) ([]core.ThreadInfo, error) {
	entries, err := s.client.ZRevRangeWithScores(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	if len(entries) == 0 {
		return []core.ThreadInfo{}, nil
	}

	lens := make([]*redis.IntCmd, len(entries))
	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, e := range entries {
			lens[i] = p.LLen(ctx, s.key(fmt.Sprint(e.Member), "msgs"))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}

	out := make([]core.ThreadInfo, 0, len(entries))
	for i, e := range entries {
		n := lens[i].Val()
		if n == 0 && s.opts.TTL > 0 {
			// Expired by TTL; the index entry is stale.
			continue
		}
		out = append(out, core.ThreadInfo{
			ID:       fmt.Sprint(e.Member),
			Messages: int(n),
			Updated:  time.Unix(0, int64(e.Score)).UTC(),
		})
	}
	return out, nil
}

// Delete removes a thread.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := ValidateThreadID(id); err != nil {
		return err
	}
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		del = p.Del(ctx, s.key(id, "msgs"), s.key(id, "meta"))
		p.ZRem(ctx, s.indexKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}
	if del.Val() == 0 {
		return core.ErrThreadNotFound
	}
	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error { return s.client.Close() }

func parseNanos(s string) time.Time {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
