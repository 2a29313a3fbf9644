package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/hupe1980/toolagent/core"
	"github.com/hupe1980/toolagent/logging"
)

// BadgerOptions configures the embedded Badger store.
type BadgerOptions struct {
	// Dir is the directory for Badger data files. Required unless InMemory.
	Dir string
	// InMemory runs Badger without disk persistence.
	InMemory bool
	Logger   logging.Logger
}

// BadgerStore persists threads in an embedded BadgerDB. Keys:
//
//	thread/<id>/meta       JSON threadMeta
//	thread/<id>/msg/<seq>  JSON core.Content, seq zero padded
//
// Locks are process local; a Badger directory is owned by one process.
type BadgerStore struct {
	db    *badger.DB
	locks *keyedLocker
}

var _ core.ThreadStore = (*BadgerStore)(nil)

type threadMeta struct {
	ID       string            `json:"id"`
	Created  time.Time         `json:"created"`
	Updated  time.Time         `json:"updated"`
	Count    int               `json:"count"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewBadgerStore opens (or creates) a Badger database.
func NewBadgerStore(optFns ...func(o *BadgerOptions)) (*BadgerStore, error) {
	opts := BadgerOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("session: badger dir is required for on-disk mode")
	}

	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	dbOpts = dbOpts.WithLogger(badgerLogger{logger: opts.Logger})

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("session: open badger: %w", err)
	}
	return &BadgerStore{db: db, locks: newKeyedLocker()}, nil
}

func metaKey(id string) []byte { return []byte("thread/" + id + "/meta") }

func msgPrefix(id string) []byte { return []byte("thread/" + id + "/msg/") }

func msgKey(id string, seq int) []byte {
	return []byte(fmt.Sprintf("thread/%s/msg/%020d", id, seq))
}

func getMeta(txn *badger.Txn, id string) (*threadMeta, error) {
	item, err := txn.Get(metaKey(id))
	if err != nil {
		return nil, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	meta := &threadMeta{}
	if err := json.Unmarshal(raw, meta); err != nil {
		return nil, fmt.Errorf("session: decode meta %s: %w", id, err)
	}
	return meta, nil
}

func putMeta(txn *badger.Txn, meta *threadMeta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return txn.Set(metaKey(meta.ID), raw)
}

// loadOrCreateMeta must run inside an update transaction.
func loadOrCreateMeta(txn *badger.Txn, id string) (*threadMeta, error) {
	meta, err := getMeta(txn, id)
	if errors.Is(err, badger.ErrKeyNotFound) {
		now := time.Now().UTC()
		meta = &threadMeta{ID: id, Created: now, Updated: now}
		return meta, putMeta(txn, meta)
	}
	return meta, err
}

// Load returns the stored thread, creating an empty one when absent.
func (s *BadgerStore) Load(_ context.Context, id string) (*core.Thread, error) {
	if err := ValidateThreadID(id); err != nil {
		return nil, err
	}
	var thread *core.Thread
	err := s.db.Update(func(txn *badger.Txn) error {
		meta, err := loadOrCreateMeta(txn, id)
		if err != nil {
			return err
		}
		thread = &core.Thread{
			ID:       id,
			Messages: make(core.Conversation, 0, meta.Count),
			Created:  meta.Created,
			Updated:  meta.Updated,
			Metadata: meta.Metadata,
		}

		prefix := msgPrefix(id)
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var c core.Content
			if err := json.Unmarshal(raw, &c); err != nil {
				return fmt.Errorf("session: decode message %s: %w", it.Item().Key(), err)
			}
			thread.Messages = append(thread.Messages, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if thread.Metadata == nil {
		thread.Metadata = map[string]string{}
	}
	return thread, nil
}

// Append commits msgs after the stored messages in one transaction.
func (s *BadgerStore) Append(_ context.Context, id string, msgs ...core.Content) error {
	if err := ValidateThreadID(id); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		meta, err := loadOrCreateMeta(txn, id)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			raw, err := json.Marshal(m)
			if err != nil {
				return fmt.Errorf("session: encode message: %w", err)
			}
			if err := txn.Set(msgKey(id, meta.Count), raw); err != nil {
				return err
			}
			meta.Count++
		}
		meta.Updated = time.Now().UTC()
		return putMeta(txn, meta)
	})
}

// Lock grants exclusive access to id within this process.
func (s *BadgerStore) Lock(ctx context.Context, id string) (func(), error) {
	if err := ValidateThreadID(id); err != nil {
		return nil, err
	}
	return s.locks.Lock(ctx, id)
}

// List returns all threads, most recently updated first.
func (s *BadgerStore) List(_ context.Context) ([]core.ThreadInfo, error) {
	var out []core.ThreadInfo
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte("thread/")
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if !strings.HasSuffix(string(it.Item().Key()), "/meta") {
				continue
			}
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var meta threadMeta
			if err := json.Unmarshal(raw, &meta); err != nil {
				return err
			}
			out = append(out, core.ThreadInfo{ID: meta.ID, Messages: meta.Count, Updated: meta.Updated})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortThreadInfos(out)
	return out, nil
}

// Delete removes a thread and all its messages.
func (s *BadgerStore) Delete(_ context.Context, id string) error {
	if err := ValidateThreadID(id); err != nil {
		return err
	}
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(metaKey(id))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return core.ErrThreadNotFound
	}
	if err != nil {
		return err
	}
	return s.db.DropPrefix([]byte("thread/" + id + "/"))
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error { return s.db.Close() }

// badgerLogger routes Badger output to a logging.Logger, dropping info and
// debug chatter.
type badgerLogger struct {
	logger logging.Logger
}

func (l badgerLogger) Errorf(f string, v ...interface{}) {
	if l.logger != nil {
		l.logger.Error("badger.error", "message", strings.TrimSpace(fmt.Sprintf(f, v...)))
	}
}

func (l badgerLogger) Warningf(f string, v ...interface{}) {
	if l.logger != nil {
		l.logger.Warn("badger.warning", "message", strings.TrimSpace(fmt.Sprintf(f, v...)))
	}
}

func (badgerLogger) Infof(string, ...interface{})  {}
func (badgerLogger) Debugf(string, ...interface{}) {}
