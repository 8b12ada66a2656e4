package repository

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/prefeitura-canaa/demanda-service/internal/domain"
)

// InMemoryDemandaRepository keeps demandas in process memory. Reads return
// deep copies.
type InMemoryDemandaRepository struct {
	mu    sync.RWMutex
	items map[string]*domain.Demanda
}

// NewInMemoryDemandaRepository creates an empty store.
func NewInMemoryDemandaRepository() *InMemoryDemandaRepository {
	return &InMemoryDemandaRepository{items: make(map[string]*domain.Demanda)}
}

func (r *InMemoryDemandaRepository) Create(_ context.Context, d *domain.Demanda) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := d.Clone()
	stored.Normalize()
	r.items[d.ID] = stored
	return nil
}

func (r *InMemoryDemandaRepository) GetByID(_ context.Context, id string) (*domain.Demanda, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.items[id]
	if !ok {
		return nil, notFound(id)
	}
	return d.Clone(), nil
}

func (r *InMemoryDemandaRepository) Update(_ context.Context, id string, mutate MutateFunc) (*domain.Demanda, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.items[id]
	if !ok {
		return nil, notFound(id)
	}
	working := current.Clone()
	if err := mutate(working); err != nil {
		return nil, err
	}
	working.Normalize()
	r.items[id] = working
	return working.Clone(), nil
}

func (r *InMemoryDemandaRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return notFound(id)
	}
	delete(r.items, id)
	return nil
}

func (r *InMemoryDemandaRepository) List(_ context.Context, filter DemandaFilter) ([]domain.Demanda, error) {
	out := r.collect(filter.Matches)
	sortNewestFirst(out)
	return out, nil
}

func (r *InMemoryDemandaRepository) ListByPeriod(_ context.Context, periodKey string) ([]domain.Demanda, error) {
	out := r.collect(func(d *domain.Demanda) bool { return d.PeriodKey == periodKey })
	sortOldestFirst(out)
	return out, nil
}

func (r *InMemoryDemandaRepository) Periods(_ context.Context) ([]string, error) {
	r.mu.RLock()
	seen := make(map[string]struct{})
	for _, d := range r.items {
		if d.PeriodKey != "" {
			seen[d.PeriodKey] = struct{}{}
		}
	}
	r.mu.RUnlock()

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	domain.SortPeriodsDesc(keys)
	return keys, nil
}

func (r *InMemoryDemandaRepository) collect(keep func(*domain.Demanda) bool) []domain.Demanda {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Demanda
	for _, d := range r.items {
		if keep(d) {
			out = append(out, *d.Clone())
		}
	}
	return out
}

// InMemorySequence is a mutex-guarded per-year counter.
type InMemorySequence struct {
	mu       sync.Mutex
	counters map[int]int64
}

// NewInMemorySequence creates counters starting at zero.
func NewInMemorySequence() *InMemorySequence {
	return &InMemorySequence{counters: make(map[int]int64)}
}

func (s *InMemorySequence) Allocate(ctx context.Context, year int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, unavailable("allocate sequence", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[year]++
	return s.counters[year], nil
}

// InMemoryRequesterRepository keys requesters by lower-cased name.
type InMemoryRequesterRepository struct {
	mu    sync.RWMutex
	items map[string]domain.Requester
}

// NewInMemoryRequesterRepository creates an empty registry.
func NewInMemoryRequesterRepository() *InMemoryRequesterRepository {
	return &InMemoryRequesterRepository{items: make(map[string]domain.Requester)}
}

func (r *InMemoryRequesterRepository) Ensure(_ context.Context, name string) (*domain.Requester, error) {
	name = strings.TrimSpace(name)
	key := domain.RequesterKey(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.items[key]; ok {
		return &existing, nil
	}
	item := domain.Requester{ID: uuid.NewString(), Name: name}
	r.items[key] = item
	return &item, nil
}

func (r *InMemoryRequesterRepository) List(_ context.Context) ([]domain.Requester, error) {
	r.mu.RLock()
	out := make([]domain.Requester, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, item)
	}
	r.mu.RUnlock()
	sortRequesters(out)
	return out, nil
}
