// Package local implements the storage gateway on an embedded badger
// database. It serves development setups and tests.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"daisy-dictation-service/internal/observability/logging"
	"daisy-dictation-service/internal/observability/metrics"
	"daisy-dictation-service/internal/service/storage"
)

const backend = "local"

var errClosed = errors.New("store is closed")

// object is the stored record for one key.
type object struct {
	Data         []byte    `msgpack:"d"`
	ContentType  string    `msgpack:"ct"`
	CacheControl string    `msgpack:"cc"`
	CreatedAt    time.Time `msgpack:"c"`
	UpdatedAt    time.Time `msgpack:"u"`
}

// Gateway stores objects of one bucket in badger under "<bucket>/<key>".
type Gateway struct {
	db      *badger.DB
	bucket  string
	metrics *metrics.Metrics
	now     func() time.Time

	mu     sync.RWMutex
	closed bool
}

// Open opens an on-disk store rooted at dir.
func Open(dir, bucket string) (*Gateway, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return open(badger.DefaultOptions(dir), bucket)
}

// OpenInMemory opens a store that lives only in memory.
func OpenInMemory(bucket string) (*Gateway, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), bucket)
}

func open(opts badger.Options, bucket string) (*Gateway, error) {
	opts.Logger = badgerLogger{log: logging.WithComponent("badger")}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &Gateway{
		db:      db,
		bucket:  bucket,
		metrics: metrics.DefaultMetrics,
		now:     time.Now,
	}, nil
}

// Close closes the database. Idempotent.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	return g.db.Close()
}

func (g *Gateway) isClosed() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.closed
}

func (g *Gateway) key(name string) []byte {
	return []byte(g.bucket + "/" + name)
}

// List returns the objects directly under prefix, filtered, sorted and paged.
func (g *Gateway) List(ctx context.Context, prefix string, opts storage.ListOptions) (entries []storage.Entry, err error) {
	defer g.observe("list", time.Now(), &err)
	if g.isClosed() {
		return nil, errClosed
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	scan := g.key(prefix)
	err = g.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(scan); it.ValidForPrefix(scan); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			name := strings.TrimPrefix(string(item.Key()), g.bucket+"/"+prefix)
			if strings.Contains(name, "/") {
				continue
			}
			var obj object
			if err := item.Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &obj)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", name, err)
			}
			entries = append(entries, obj.entry(name))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return storage.Apply(entries, opts), nil
}

// Download returns the object body.
func (g *Gateway) Download(ctx context.Context, key string) (data []byte, err error) {
	defer g.observe("download", time.Now(), &err)
	if err := g.check(ctx, key); err != nil {
		return nil, err
	}

	err = g.db.View(func(txn *badger.Txn) error {
		obj, err := g.get(txn, key)
		if err != nil {
			return err
		}
		data = obj.Data
		return nil
	})
	return data, err
}

// Upload creates key. Without Upsert an existing key is ErrAlreadyExists.
func (g *Gateway) Upload(ctx context.Context, key string, data []byte, opts storage.UploadOptions) (err error) {
	defer g.observe("upload", time.Now(), &err)
	if err := g.check(ctx, key); err != nil {
		return err
	}

	return g.db.Update(func(txn *badger.Txn) error {
		now := g.now().UTC()
		obj := object{CreatedAt: now}
		existing, err := g.get(txn, key)
		switch {
		case err == nil && !opts.Upsert:
			return fmt.Errorf("%s: %w", key, storage.ErrAlreadyExists)
		case err == nil:
			obj.CreatedAt = existing.CreatedAt
		case !errors.Is(err, storage.ErrNotFound):
			return err
		}
		obj.Data = data
		obj.ContentType = opts.ContentType
		obj.CacheControl = opts.CacheControl
		obj.UpdatedAt = now
		return g.put(txn, key, obj)
	})
}

// Update overwrites an existing key.
func (g *Gateway) Update(ctx context.Context, key string, data []byte, opts storage.UploadOptions) (err error) {
	defer g.observe("update", time.Now(), &err)
	if err := g.check(ctx, key); err != nil {
		return err
	}

	return g.db.Update(func(txn *badger.Txn) error {
		obj, err := g.get(txn, key)
		if err != nil {
			return err
		}
		obj.Data = data
		if opts.ContentType != "" {
			obj.ContentType = opts.ContentType
		}
		if opts.CacheControl != "" {
			obj.CacheControl = opts.CacheControl
		}
		obj.UpdatedAt = g.now().UTC()
		return g.put(txn, key, obj)
	})
}

// Copy duplicates src to dst. An existing dst is ErrAlreadyExists.
func (g *Gateway) Copy(ctx context.Context, src, dst string) (err error) {
	defer g.observe("copy", time.Now(), &err)
	if err := g.check(ctx, src); err != nil {
		return err
	}
	if err := storage.ValidateKey(dst); err != nil {
		return err
	}

	return g.db.Update(func(txn *badger.Txn) error {
		obj, err := g.get(txn, src)
		if err != nil {
			return err
		}
		if _, err := g.get(txn, dst); err == nil {
			return fmt.Errorf("%s: %w", dst, storage.ErrAlreadyExists)
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		now := g.now().UTC()
		obj.CreatedAt = now
		obj.UpdatedAt = now
		return g.put(txn, dst, obj)
	})
}

// Remove deletes keys. Missing keys are ignored.
func (g *Gateway) Remove(ctx context.Context, keys []string) (err error) {
	defer g.observe("remove", time.Now(), &err)
	if g.isClosed() {
		return errClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return g.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := storage.ValidateKey(k); err != nil {
				return err
			}
			if err := txn.Delete(g.key(k)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (g *Gateway) check(ctx context.Context, key string) error {
	if g.isClosed() {
		return errClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return storage.ValidateKey(key)
}

func (g *Gateway) get(txn *badger.Txn, key string) (object, error) {
	var obj object
	item, err := txn.Get(g.key(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return obj, fmt.Errorf("%s: %w", key, storage.ErrNotFound)
	}
	if err != nil {
		return obj, err
	}
	err = item.Value(func(val []byte) error {
		return msgpack.Unmarshal(val, &obj)
	})
	return obj, err
}

func (g *Gateway) put(txn *badger.Txn, key string, obj object) error {
	val, err := msgpack.Marshal(&obj)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return txn.Set(g.key(key), val)
}

func (g *Gateway) observe(op string, start time.Time, err *error) {
	g.metrics.RecordStorageOp(backend, op, *err, time.Since(start).Seconds())
}

func (o object) entry(name string) storage.Entry {
	return storage.Entry{
		Name:         name,
		Size:         int64(len(o.Data)),
		ContentType:  o.ContentType,
		CacheControl: o.CacheControl,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

// badgerLogger routes badger's internal logging through zerolog.
type badgerLogger struct {
	log zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Trace().Msgf(strings.TrimSpace(format), args...)
}
