package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/prefeitura-canaa/demanda-service/internal/domain"
)

// DemandaFilter captures listing parameters. Zero values disable a clause.
type DemandaFilter struct {
	PeriodKey  string
	Status     domain.Status
	Requester  string
	SearchTerm string
}

// MutateFunc changes a loaded demanda inside an atomic update. Returning an
// error aborts the update and leaves the stored record unchanged.
type MutateFunc func(d *domain.Demanda) error

// DemandaRepository encapsulates demanda persistence.
type DemandaRepository interface {
	Create(ctx context.Context, d *domain.Demanda) error
	GetByID(ctx context.Context, id string) (*domain.Demanda, error)
	// Update serializes concurrent mutations of the same id.
	Update(ctx context.Context, id string, mutate MutateFunc) (*domain.Demanda, error)
	Delete(ctx context.Context, id string) error
	// List returns matches newest first.
	List(ctx context.Context, filter DemandaFilter) ([]domain.Demanda, error)
	// ListByPeriod returns the period's demandas oldest first.
	ListByPeriod(ctx context.Context, periodKey string) ([]domain.Demanda, error)
	Periods(ctx context.Context) ([]string, error)
}

// SequenceAllocator hands out per-year sequence numbers starting at 1. Each
// call increments atomically; numbers are never reused.
type SequenceAllocator interface {
	Allocate(ctx context.Context, year int) (int64, error)
}

// RequesterRepository is the registry of distinct requester names.
type RequesterRepository interface {
	// Ensure returns the existing entry matching name case-insensitively or
	// stores a new one.
	Ensure(ctx context.Context, name string) (*domain.Requester, error)
	List(ctx context.Context) ([]domain.Requester, error)
}

// Matches applies the filter in memory for the embedded backends.
func (f DemandaFilter) Matches(d *domain.Demanda) bool {
	if f.PeriodKey != "" && d.PeriodKey != f.PeriodKey {
		return false
	}
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	if f.Requester != "" && !containsFold(d.Requester, f.Requester) {
		return false
	}
	if term := strings.TrimSpace(f.SearchTerm); term != "" {
		if !containsFold(d.Number, term) && !containsFold(d.Description, term) && !containsFold(d.Requester, term) {
			return false
		}
	}
	return true
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func sortNewestFirst(items []domain.Demanda) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

func sortOldestFirst(items []domain.Demanda) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}

func sortRequesters(items []domain.Requester) {
	sort.SliceStable(items, func(i, j int) bool {
		return domain.RequesterKey(items[i].Name) < domain.RequesterKey(items[j].Name)
	})
}

// unavailable tags a backend failure so callers can classify it while the
// cause stays inspectable.
func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%s: %w", op, errors.Join(domain.ErrStorageUnavailable, err))
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
}
