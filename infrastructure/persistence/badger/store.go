// Package badger stores discussion trees in an embedded BadgerDB. Each
// ports.Tx maps onto one badger read-write transaction, so a failed
// recalculation never commits a partial cascade.
package badger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"calctree/application/ports"
	pkgerrors "calctree/pkg/errors"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// Config holds configuration for the badger store.
type Config struct {
	// Path is the data directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM; used by tests and the CLI's --ephemeral flag.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool
}

// DefaultConfig returns a durable on-disk configuration rooted at path.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns a configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// zapLogger adapts zap to badger's Logger interface.
type zapLogger struct {
	s *zap.SugaredLogger
}

func (l zapLogger) Errorf(format string, args ...interface{})   { l.s.Errorf(format, args...) }
func (l zapLogger) Warningf(format string, args ...interface{}) { l.s.Warnf(format, args...) }
func (l zapLogger) Infof(format string, args ...interface{})    { l.s.Debugf(format, args...) }
func (l zapLogger) Debugf(format string, args ...interface{})   { l.s.Debugf(format, args...) }

// Store implements ports.TxManager on top of BadgerDB.
type Store struct {
	db     *badger.DB
	logger *zap.Logger

	// writes are serialized so concurrent cascades never hit ErrConflict
	// halfway through; readers are not blocked.
	writeMu sync.Mutex
}

// Open opens (or creates) the database described by cfg.
func Open(cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger path is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(zapLogger{s: logger.Named("badger").Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	logger.Info("badger store opened",
		zap.String("path", cfg.Path),
		zap.Bool("in_memory", cfg.InMemory),
	)
	return &Store{db: db, logger: logger}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithinTx implements ports.TxManager.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	if err := fn(ctx, &tx{txn: txn}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return pkgerrors.NewDatabaseError("commit", err)
	}
	return nil
}

// View implements ports.TxManager.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	return fn(ctx, &tx{txn: txn, readOnly: true})
}

type tx struct {
	txn      *badger.Txn
	readOnly bool
}

func (t *tx) Operations() ports.OperationRepository   { return &operationRepo{t} }
func (t *tx) Discussions() ports.DiscussionRepository { return &discussionRepo{t} }

func (t *tx) writable(method string) error {
	if t.readOnly {
		return pkgerrors.NewInternalError(method + " called in a read-only transaction")
	}
	return nil
}
