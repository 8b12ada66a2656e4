package repository

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	bolt "github.com/boltdb/bolt"
	"github.com/google/uuid"

	"github.com/prefeitura-canaa/demanda-service/internal/domain"
)

const (
	demandasBucket   = "demandas"
	countersBucket   = "demanda_counters"
	requestersBucket = "requesters"
)

// BoltBuckets lists the buckets the bolt stores expect to exist.
var BoltBuckets = []string{demandasBucket, countersBucket, requestersBucket}

// BoltDemandaRepository stores each demanda as a JSON value keyed by id.
// Bolt allows one writer at a time, which serializes Update calls.
type BoltDemandaRepository struct {
	db *bolt.DB
}

// NewBoltDemandaRepository wraps an opened database.
func NewBoltDemandaRepository(db *bolt.DB) *BoltDemandaRepository {
	return &BoltDemandaRepository{db: db}
}

func (r *BoltDemandaRepository) Create(ctx context.Context, d *domain.Demanda) error {
	if err := ctx.Err(); err != nil {
		return unavailable("insert demanda", err)
	}
	stored := d.Clone()
	stored.Normalize()
	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	err = r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(demandasBucket)).Put([]byte(d.ID), data)
	})
	return unavailable("insert demanda", err)
}

func (r *BoltDemandaRepository) GetByID(ctx context.Context, id string) (*domain.Demanda, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("get demanda", err)
	}
	var d domain.Demanda
	err := r.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(demandasBucket)).Get([]byte(id))
		if v == nil {
			return notFound(id)
		}
		return json.Unmarshal(v, &d)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, unavailable("get demanda", err)
	}
	d.Normalize()
	return &d, nil
}

func (r *BoltDemandaRepository) Update(ctx context.Context, id string, mutate MutateFunc) (*domain.Demanda, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("update demanda", err)
	}
	var (
		result    domain.Demanda
		mutateErr error
	)
	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(demandasBucket))
		v := b.Get([]byte(id))
		if v == nil {
			return notFound(id)
		}
		if err := json.Unmarshal(v, &result); err != nil {
			return err
		}
		if mutateErr = mutate(&result); mutateErr != nil {
			return mutateErr
		}
		result.Normalize()
		data, err := json.Marshal(&result)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), data)
	})
	switch {
	case mutateErr != nil:
		return nil, mutateErr
	case errors.Is(err, domain.ErrNotFound):
		return nil, err
	case err != nil:
		return nil, unavailable("update demanda", err)
	}
	return &result, nil
}

func (r *BoltDemandaRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return unavailable("delete demanda", err)
	}
	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(demandasBucket))
		if b.Get([]byte(id)) == nil {
			return notFound(id)
		}
		return b.Delete([]byte(id))
	})
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return unavailable("delete demanda", err)
}

func (r *BoltDemandaRepository) List(ctx context.Context, filter DemandaFilter) ([]domain.Demanda, error) {
	out, err := r.scan(ctx, filter.Matches)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *BoltDemandaRepository) ListByPeriod(ctx context.Context, periodKey string) ([]domain.Demanda, error) {
	out, err := r.scan(ctx, func(d *domain.Demanda) bool { return d.PeriodKey == periodKey })
	if err != nil {
		return nil, err
	}
	sortOldestFirst(out)
	return out, nil
}

func (r *BoltDemandaRepository) Periods(ctx context.Context) ([]string, error) {
	all, err := r.scan(ctx, func(*domain.Demanda) bool { return true })
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var keys []string
	for _, d := range all {
		if _, ok := seen[d.PeriodKey]; ok || d.PeriodKey == "" {
			continue
		}
		seen[d.PeriodKey] = struct{}{}
		keys = append(keys, d.PeriodKey)
	}
	domain.SortPeriodsDesc(keys)
	return keys, nil
}

func (r *BoltDemandaRepository) scan(ctx context.Context, keep func(*domain.Demanda) bool) ([]domain.Demanda, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("scan demandas", err)
	}
	var out []domain.Demanda
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(demandasBucket)).ForEach(func(_, v []byte) error {
			var d domain.Demanda
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			d.Normalize()
			if keep(&d) {
				out = append(out, d)
			}
			return nil
		})
	})
	if err != nil {
		return nil, unavailable("scan demandas", err)
	}
	return out, nil
}

// BoltSequence keeps one big-endian counter per year.
type BoltSequence struct {
	db *bolt.DB
}

// NewBoltSequence wraps an opened database.
func NewBoltSequence(db *bolt.DB) *BoltSequence {
	return &BoltSequence{db: db}
}

func (s *BoltSequence) Allocate(ctx context.Context, year int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, unavailable("allocate sequence", err)
	}
	var next uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(countersBucket))
		key := []byte(strconv.Itoa(year))
		if v := b.Get(key); len(v) == 8 {
			next = binary.BigEndian.Uint64(v)
		}
		next++
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, next)
		return b.Put(key, buf)
	})
	if err != nil {
		return 0, unavailable("allocate sequence", err)
	}
	return int64(next), nil
}

// BoltRequesterRepository keys requesters by lower-cased name.
type BoltRequesterRepository struct {
	db *bolt.DB
}

// NewBoltRequesterRepository wraps an opened database.
func NewBoltRequesterRepository(db *bolt.DB) *BoltRequesterRepository {
	return &BoltRequesterRepository{db: db}
}

func (r *BoltRequesterRepository) Ensure(ctx context.Context, name string) (*domain.Requester, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("ensure requester", err)
	}
	name = strings.TrimSpace(name)
	key := []byte(domain.RequesterKey(name))

	var out domain.Requester
	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(requestersBucket))
		if v := b.Get(key); v != nil {
			return json.Unmarshal(v, &out)
		}
		out = domain.Requester{ID: uuid.NewString(), Name: name}
		data, err := json.Marshal(out)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
	if err != nil {
		return nil, unavailable("ensure requester", err)
	}
	return &out, nil
}

// List returns requesters ordered by key, which is the lower-cased name.
func (r *BoltRequesterRepository) List(ctx context.Context) ([]domain.Requester, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("list requesters", err)
	}
	var out []domain.Requester
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(requestersBucket)).ForEach(func(_, v []byte) error {
			var item domain.Requester
			if err := json.Unmarshal(v, &item); err != nil {
				return err
			}
			out = append(out, item)
			return nil
		})
	})
	if err != nil {
		return nil, unavailable("list requesters", err)
	}
	return out, nil
}
