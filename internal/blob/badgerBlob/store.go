// Package badgerBlob keeps blobs in an embedded Badger database, for
// single-node deployments without an object store.
package badgerBlob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"drive-service/internal/errs"
)

type Config struct {
	Dir string `env:"BADGER_DIR" env-default:"./data/blobs"`
	// InMemory keeps everything in RAM; Dir is ignored.
	InMemory bool `env:"BADGER_IN_MEMORY" env-default:"false"`
}

type Store struct {
	db *badger.DB
}

func Open(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

func blobKey(handle string) []byte {
	return []byte("blob:" + handle)
}

func (s *Store) Put(ctx context.Context, r io.Reader, size int64, _ string) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, size))
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	handle := uuid.NewString()
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blobKey(handle), data)
	})
	if err != nil {
		return "", fmt.Errorf("failed to store blob: %w", err)
	}
	return handle, nil
}

func (s *Store) Open(_ context.Context, handle string) (io.ReadCloser, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blobKey(handle))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("blob %s: %w", handle, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *Store) Delete(_ context.Context, handle string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(blobKey(handle))
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}
