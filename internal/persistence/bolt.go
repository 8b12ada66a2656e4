package persistence

import (
	"context"
	"errors"
	"time"

	bolt "github.com/boltdb/bolt"
	"go.uber.org/zap"

	"github.com/prefeitura-canaa/demanda-service/internal/config"
)

// Bolt wraps a single-file embedded database.
type Bolt struct {
	DB *bolt.DB
}

// NewBolt opens (or creates) the database file and ensures the given buckets.
func NewBolt(cfg config.BoltConfig, logger *zap.Logger, buckets ...string) (*Bolt, error) {
	db, err := bolt.Open(cfg.Path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("opened bolt database", zap.String("path", cfg.Path))
	return &Bolt{DB: db}, nil
}

// Close releases the file lock.
func (b *Bolt) Close() {
	if b != nil && b.DB != nil {
		_ = b.DB.Close()
	}
}

// Ping verifies the database can start a read transaction.
func (b *Bolt) Ping(ctx context.Context) error {
	if b == nil || b.DB == nil {
		return errors.New("bolt database not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.DB.View(func(*bolt.Tx) error { return nil })
}
