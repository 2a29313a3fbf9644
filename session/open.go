package session

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hupe1980/toolagent/core"
	"github.com/hupe1980/toolagent/logging"
)

// OpenOptions tunes stores created by Open.
type OpenOptions struct {
	Logger logging.Logger
	// TTL applies to Redis threads.
	TTL time.Duration
}

// Open creates a ThreadStore from a URL:
//
//	memory://            volatile in-process store (also the empty string)
//	badger:///var/lib/x  embedded Badger database in the given directory
//	badger://memory      Badger in memory-only mode
//	redis://host:6379/0  Redis (rediss:// for TLS)
func Open(rawURL string, optFns ...func(o *OpenOptions)) (core.ThreadStore, error) {
	opts := OpenOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if rawURL == "" || rawURL == "memory" {
		return NewInMemoryStore(), nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("session: invalid store url: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "memory", "mem":
		return NewInMemoryStore(), nil
	case "badger":
		return NewBadgerStore(func(o *BadgerOptions) {
			o.Logger = opts.Logger
			if u.Host == "memory" {
				o.InMemory = true
				return
			}
			o.Dir = u.Host + u.Path
		})
	case "redis", "rediss":
		return NewRedisStore(rawURL, func(o *RedisOptions) { o.TTL = opts.TTL })
	default:
		return nil, fmt.Errorf("session: unsupported store scheme %q", u.Scheme)
	}
}
