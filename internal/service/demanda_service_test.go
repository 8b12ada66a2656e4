package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/prefeitura-canaa/demanda-service/internal/domain"
	"github.com/prefeitura-canaa/demanda-service/internal/events"
	"github.com/prefeitura-canaa/demanda-service/internal/observability"
	"github.com/prefeitura-canaa/demanda-service/internal/repository"
)

type failingSequence struct{}

func (failingSequence) Allocate(context.Context, int) (int64, error) {
	return 0, errors.Join(domain.ErrStorageUnavailable, errors.New("connection refused"))
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc      *DemandaService
	repo     *repository.InMemoryDemandaRepository
	events   *recorder
	metrics  *observability.Metrics
	logs     *observer.ObservedLogs
	now      time.Time
	location *time.Location
}

func newFixture(t *testing.T, seq repository.SequenceAllocator) *fixture {
	t.Helper()
	loc, err := time.LoadLocation("America/Belem")
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	f := &fixture{
		repo:     repository.NewInMemoryDemandaRepository(),
		events:   &recorder{},
		metrics:  observability.NewMetrics(),
		logs:     logs,
		now:      time.Date(2025, 10, 15, 14, 30, 0, 0, time.UTC),
		location: loc,
	}
	if seq == nil {
		seq = repository.NewInMemorySequence()
	}

	dispatcher := events.NewInMemoryDispatcher()
	events.SubscribeAll(dispatcher, f.events.handle,
		events.EventDemandaCreated, events.EventDemandaStatusChanged, events.EventDemandaEdited,
		events.EventDeliveriesAppended, events.EventDeliveryRemoved, events.EventDemandaDeleted,
	)

	f.svc = NewDemandaService(DemandaDependencies{
		DemandaRepo:   f.repo,
		RequesterRepo: repository.NewInMemoryRequesterRepository(),
		Sequence:      seq,
		Dispatcher:    dispatcher,
		Logger:        zap.New(core),
		Metrics:       f.metrics,
		Clock:         func() time.Time { return f.now },
		Location:      loc,
	})
	return f
}

func (f *fixture) create(t *testing.T, requester, description string) *domain.Demanda {
	t.Helper()
	d, err := f.svc.Create(context.Background(), CreateDemandaInput{Requester: requester, Description: description})
	require.NoError(t, err)
	return d
}

func TestCreateAssignsNumberAndDefaults(t *testing.T) {
	f := newFixture(t, nil)

	d, err := f.svc.Create(context.Background(), CreateDemandaInput{
		Requester:      "  Ana ",
		Description:    "Arte para evento",
		ReferenceLinks: "https://a.test, https://b.test",
		ReferenceFiles: []domain.Upload{{Filename: "brief.png", MimeType: "image/png", Payload: []byte{1}}, {Filename: ""}},
	})
	require.NoError(t, err)

	assert.Equal(t, "#2025-001", d.Number)
	assert.Equal(t, "Ana", d.Requester)
	assert.Equal(t, domain.StatusOpen, d.Status)
	assert.Equal(t, "10/2025", d.PeriodKey)
	assert.Nil(t, d.Deliveries)
	require.Len(t, d.References, 3)
	assert.Equal(t, domain.AttachmentFile, d.References[2].Kind)

	second := f.create(t, "Bruno", "Video")
	assert.Equal(t, "#2025-002", second.Number)

	requesters, err := f.svc.ListRequesters(context.Background())
	require.NoError(t, err)
	assert.Len(t, requesters, 2)
	assert.Equal(t, []events.EventType{events.EventDemandaCreated, events.EventDemandaCreated}, f.events.types())
}

func TestCreateUsesConfiguredCalendar(t *testing.T) {
	f := newFixture(t, nil)
	// 01:30 UTC on Nov 1st is still Oct 31st in Belem.
	f.now = time.Date(2025, 11, 1, 1, 30, 0, 0, time.UTC)

	d := f.create(t, "Ana", "Arte")
	assert.Equal(t, "10/2025", d.PeriodKey)

	f.now = time.Date(2026, 1, 1, 2, 0, 0, 0, time.UTC)
	d = f.create(t, "Ana", "Arte")
	assert.Equal(t, "#2025-002", d.Number)
	assert.Equal(t, "12/2025", d.PeriodKey)

	f.now = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d = f.create(t, "Ana", "Arte")
	assert.Equal(t, "#2026-001", d.Number)
}

func TestCreateRequiresFields(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Create(context.Background(), CreateDemandaInput{Requester: " ", Description: "x"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.svc.Create(context.Background(), CreateDemandaInput{Requester: "Ana"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreateConcurrentNumbersAreDistinct(t *testing.T) {
	f := newFixture(t, nil)
	const n = 40

	numbers := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := f.svc.Create(context.Background(), CreateDemandaInput{Requester: "Ana", Description: "Arte"})
			if assert.NoError(t, err) {
				numbers <- d.Number
			}
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[string]bool)
	for num := range numbers {
		assert.False(t, seen[num], "duplicate %s", num)
		seen[num] = true
	}
	assert.Len(t, seen, n)
	assert.True(t, seen["#2025-040"])
}

func TestCreateStopsWhenSequenceFails(t *testing.T) {
	f := newFixture(t, failingSequence{})

	_, err := f.svc.Create(context.Background(), CreateDemandaInput{Requester: "Ana", Description: "Arte"})

	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	all, listErr := f.repo.List(context.Background(), repository.DemandaFilter{})
	require.NoError(t, listErr)
	assert.Empty(t, all)
	assert.Empty(t, f.events.types())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SequenceFailures))
}

func TestSetStatus(t *testing.T) {
	f := newFixture(t, nil)
	d := f.create(t, "Ana", "Arte")

	status, err := f.svc.SetStatus(context.Background(), d.ID, "Finalizado")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, status)

	status, err = f.svc.SetStatus(context.Background(), d.ID, "Em aberto")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, status)

	_, err = f.svc.SetStatus(context.Background(), d.ID, "Bogus")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	got, err := f.svc.Get(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, got.Status)

	_, err = f.svc.SetStatus(context.Background(), "nope", "Finalizado")
	assert.ErrorIs(t, err, domain.ErrInvalidIdentifier)
	_, err = f.svc.SetStatus(context.Background(), uuid.NewString(), "Finalizado")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEditAppliesOnlyProvidedFields(t *testing.T) {
	f := newFixture(t, nil)
	d := f.create(t, "Ana", "Arte")
	blank := "  "
	desc := "Arte revisada"

	updated, err := f.svc.Edit(context.Background(), d.ID, EditDemandaInput{Requester: &blank, Description: &desc})
	require.NoError(t, err)

	assert.Equal(t, "Ana", updated.Requester)
	assert.Equal(t, "Arte revisada", updated.Description)
	assert.Equal(t, d.Number, updated.Number)
	assert.Equal(t, domain.StatusOpen, updated.Status)
}

func TestEditIgnoresInvalidStatus(t *testing.T) {
	f := newFixture(t, nil)
	d := f.create(t, "Ana", "Arte")
	bad := "Quase pronto"
	requester := "Carla"

	updated, err := f.svc.Edit(context.Background(), d.ID, EditDemandaInput{Status: &bad, Requester: &requester})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusOpen, updated.Status)
	assert.Equal(t, "Carla", updated.Requester)
	assert.Equal(t, 1, f.logs.FilterMessage("ignoring invalid status on edit").Len())

	requesters, err := f.svc.ListRequesters(context.Background())
	require.NoError(t, err)
	assert.Len(t, requesters, 2)
}

func TestAppendDeliveriesIsNotIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	d := f.create(t, "Ana", "Arte")
	files := []domain.Upload{{Filename: "final.png", MimeType: "image/png", Payload: []byte{9}}}

	total, err := f.svc.AppendDeliveries(context.Background(), d.ID, "https://x.test", files)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	total, err = f.svc.AppendDeliveries(context.Background(), d.ID, "https://x.test", files)
	require.NoError(t, err)
	assert.Equal(t, 4, total)

	got, err := f.svc.Get(context.Background(), d.ID)
	require.NoError(t, err)
	require.Len(t, got.Deliveries, 4)
	assert.Equal(t, "https://x.test", got.Deliveries[0].URL)
	assert.Equal(t, "final.png", got.Deliveries[1].Filename)
	for _, item := range got.Deliveries {
		require.NotNil(t, item.AddedAt)
		assert.True(t, item.AddedAt.Equal(f.now))
	}
}

func TestRemoveDelivery(t *testing.T) {
	f := newFixture(t, nil)
	d := f.create(t, "Ana", "Arte")
	_, err := f.svc.AppendDeliveries(context.Background(), d.ID, "a,b,c", nil)
	require.NoError(t, err)

	require.NoError(t, f.svc.RemoveDelivery(context.Background(), d.ID, 1))
	got, err := f.svc.Get(context.Background(), d.ID)
	require.NoError(t, err)
	require.Len(t, got.Deliveries, 2)
	assert.Equal(t, "a", got.Deliveries[0].URL)
	assert.Equal(t, "c", got.Deliveries[1].URL)

	err = f.svc.RemoveDelivery(context.Background(), d.ID, 2)
	assert.ErrorIs(t, err, domain.ErrIndexOutOfRange)

	require.NoError(t, f.svc.RemoveDelivery(context.Background(), d.ID, 0))
	require.NoError(t, f.svc.RemoveDelivery(context.Background(), d.ID, 0))
	got, err = f.svc.Get(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Deliveries)
}

func TestDeleteTwice(t *testing.T) {
	f := newFixture(t, nil)
	d := f.create(t, "Ana", "Arte")

	require.NoError(t, f.svc.Delete(context.Background(), d.ID))
	assert.ErrorIs(t, f.svc.Delete(context.Background(), d.ID), domain.ErrNotFound)
	_, err := f.svc.Get(context.Background(), d.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWhatsAppTextHasNoSideEffects(t *testing.T) {
	f := newFixture(t, nil)
	d := f.create(t, "Ana", "Arte")
	before := len(f.events.types())

	text, err := f.svc.WhatsAppText(context.Background(), d.ID)
	require.NoError(t, err)

	assert.Equal(t, "*Demanda #2025-001*\nSolicitante: Ana\nDescrição: Arte\nStatus: Em aberto", text)
	assert.Len(t, f.events.types(), before)
}

func TestListFiltersAndPeriods(t *testing.T) {
	f := newFixture(t, nil)
	f.create(t, "Ana", "Arte outubro")
	f.now = time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)
	nov := f.create(t, "Bruno", "Video novembro")
	_, err := f.svc.SetStatus(context.Background(), nov.ID, "Confirmado")
	require.NoError(t, err)

	all, err := f.svc.List(context.Background(), ListDemandasInput{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, nov.ID, all[0].ID)

	oct, err := f.svc.List(context.Background(), ListDemandasInput{Month: "10", Year: "2025"})
	require.NoError(t, err)
	require.Len(t, oct, 1)
	assert.Equal(t, "Ana", oct[0].Requester)

	onlyMonth, err := f.svc.List(context.Background(), ListDemandasInput{Month: "10"})
	require.NoError(t, err)
	assert.Len(t, onlyMonth, 2)

	confirmed, err := f.svc.List(context.Background(), ListDemandasInput{Status: "Confirmado"})
	require.NoError(t, err)
	assert.Len(t, confirmed, 1)

	unknown, err := f.svc.List(context.Background(), ListDemandasInput{Status: "Bogus"})
	require.NoError(t, err)
	assert.Empty(t, unknown)
	_, err = f.svc.List(context.Background(), ListDemandasInput{Month: "13", Year: "2025"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	periods, err := f.svc.Periods(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"11/2025", "10/2025"}, periods)
}

func TestAddRequester(t *testing.T) {
	f := newFixture(t, nil)

	a, err := f.svc.AddRequester(context.Background(), "Ana")
	require.NoError(t, err)
	b, err := f.svc.AddRequester(context.Background(), "ana")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	_, err = f.svc.AddRequester(context.Background(), " ")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestActivityServiceCountsEvents(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	core, logs := observer.New(zapcore.InfoLevel)
	NewActivityService(dispatcher, zap.New(core), metrics).RegisterHandlers()

	svc := NewDemandaService(DemandaDependencies{
		DemandaRepo:   repository.NewInMemoryDemandaRepository(),
		RequesterRepo: repository.NewInMemoryRequesterRepository(),
		Sequence:      repository.NewInMemorySequence(),
		Dispatcher:    dispatcher,
		Metrics:       metrics,
	})
	d, err := svc.Create(context.Background(), CreateDemandaInput{Requester: "Ana", Description: "Arte"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), d.ID))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DemandaEvents.WithLabelValues(string(events.EventDemandaCreated))))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DemandaEvents.WithLabelValues(string(events.EventDemandaDeleted))))
	assert.Equal(t, 2, logs.FilterMessage("activity").Len())
}
