package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/prefeitura-canaa/demanda-service/internal/domain"
	"github.com/prefeitura-canaa/demanda-service/internal/events"
	"github.com/prefeitura-canaa/demanda-service/internal/observability"
	"github.com/prefeitura-canaa/demanda-service/internal/repository"
)

var tracer = otel.Tracer("github.com/prefeitura-canaa/demanda-service/internal/service")

// DemandaService coordinates demanda workflows.
type DemandaService struct {
	demandas   repository.DemandaRepository
	requesters repository.RequesterRepository
	sequence   repository.SequenceAllocator
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	clock      func() time.Time
	location   *time.Location
}

// DemandaDependencies bundles collaborators for the demanda service.
type DemandaDependencies struct {
	DemandaRepo   repository.DemandaRepository
	RequesterRepo repository.RequesterRepository
	Sequence      repository.SequenceAllocator
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	Metrics       *observability.Metrics
	// Clock defaults to time.Now.
	Clock func() time.Time
	// Location fixes the calendar used for numbering years and period keys.
	Location *time.Location
}

// CreateDemandaInput describes a new demanda.
type CreateDemandaInput struct {
	Requester      string
	Description    string
	ReferenceLinks string
	ReferenceFiles []domain.Upload
}

// EditDemandaInput carries optional replacements. Nil or blank fields are
// left untouched.
type EditDemandaInput struct {
	Requester   *string
	Description *string
	Status      *string
}

// ListDemandasInput mirrors the listing query parameters.
type ListDemandasInput struct {
	Month     string
	Year      string
	Status    string
	Requester string
	Search    string
}

// NewDemandaService constructs the service.
func NewDemandaService(deps DemandaDependencies) *DemandaService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &DemandaService{
		demandas:   deps.DemandaRepo,
		requesters: deps.RequesterRepo,
		sequence:   deps.Sequence,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		metrics:    deps.Metrics,
		clock:      clock,
		location:   loc,
	}
}

// Create registers a demanda with the next number of the current year.
// A number consumed by a failed write is not reused.
func (s *DemandaService) Create(ctx context.Context, input CreateDemandaInput) (*domain.Demanda, error) {
	ctx, span := tracer.Start(ctx, "demanda.Create")
	defer span.End()

	requester := strings.TrimSpace(input.Requester)
	description := strings.TrimSpace(input.Description)
	if requester == "" || description == "" {
		return nil, fmt.Errorf("%w: solicitante and demanda are required", domain.ErrValidation)
	}

	if _, err := s.requesters.Ensure(ctx, requester); err != nil {
		return nil, err
	}

	now := s.clock().In(s.location)
	seq, err := s.sequence.Allocate(ctx, now.Year())
	if err != nil {
		s.metrics.IncrementSequenceFailure()
		return nil, err
	}

	d := &domain.Demanda{
		ID:          uuid.NewString(),
		Number:      domain.FormatNumber(now.Year(), seq),
		Requester:   requester,
		Description: description,
		References:  domain.BuildAttachments(input.ReferenceLinks, input.ReferenceFiles),
		Status:      domain.StatusOpen,
		CreatedAt:   now,
		PeriodKey:   domain.PeriodKeyOf(now),
	}
	span.SetAttributes(attribute.String("demanda.number", d.Number))

	if err := s.demandas.Create(ctx, d); err != nil {
		s.logger.Error("demanda write failed; number left unused",
			zap.String("number", d.Number), zap.Error(err))
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventDemandaCreated,
		DemandaID: d.ID,
		Payload: events.DemandaCreatedPayload{
			Number:     d.Number,
			Requester:  d.Requester,
			PeriodKey:  d.PeriodKey,
			References: len(d.References),
		},
	})
	return d, nil
}

// Get loads one demanda.
func (s *DemandaService) Get(ctx context.Context, rawID string) (*domain.Demanda, error) {
	id, err := domain.ParseID(rawID)
	if err != nil {
		return nil, err
	}
	return s.demandas.GetByID(ctx, id)
}

// List returns demandas newest first. Month and year filter only when both
// are given. An unknown status filter matches nothing.
func (s *DemandaService) List(ctx context.Context, input ListDemandasInput) ([]domain.Demanda, error) {
	filter := repository.DemandaFilter{
		Requester:  strings.TrimSpace(input.Requester),
		SearchTerm: strings.TrimSpace(input.Search),
	}
	if strings.TrimSpace(input.Month) != "" && strings.TrimSpace(input.Year) != "" {
		key, err := domain.ParsePeriod(input.Month, input.Year)
		if err != nil {
			return nil, err
		}
		filter.PeriodKey = key
	}
	if raw := strings.TrimSpace(input.Status); raw != "" {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			// no record can carry an unknown status
			return []domain.Demanda{}, nil
		}
		filter.Status = status
	}
	return s.demandas.List(ctx, filter)
}

// Periods returns the MM/YYYY keys that have demandas, newest first.
func (s *DemandaService) Periods(ctx context.Context) ([]string, error) {
	return s.demandas.Periods(ctx)
}

// AppendDeliveries adds delivery attachments stamped with the current time and
// returns the new delivery count. Repeated calls append again.
func (s *DemandaService) AppendDeliveries(ctx context.Context, rawID, links string, files []domain.Upload) (int, error) {
	id, err := domain.ParseID(rawID)
	if err != nil {
		return 0, err
	}
	items := domain.BuildAttachments(links, files)
	domain.StampAdded(items, s.clock().UTC())

	var total int
	updated, err := s.demandas.Update(ctx, id, func(d *domain.Demanda) error {
		total = d.AppendDeliveries(items)
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventDeliveriesAppended,
		DemandaID: id,
		Payload:   events.DeliveriesChangedPayload{Number: updated.Number, Delta: len(items), Total: total},
	})
	return total, nil
}

// RemoveDelivery drops the delivery at index; later deliveries shift down.
func (s *DemandaService) RemoveDelivery(ctx context.Context, rawID string, index int) error {
	id, err := domain.ParseID(rawID)
	if err != nil {
		return err
	}
	updated, err := s.demandas.Update(ctx, id, func(d *domain.Demanda) error {
		return d.RemoveDelivery(index)
	})
	if err != nil {
		return err
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventDeliveryRemoved,
		DemandaID: id,
		Payload:   events.DeliveriesChangedPayload{Number: updated.Number, Delta: -1, Total: len(updated.Deliveries)},
	})
	return nil
}

// SetStatus moves the demanda to any enumerated state.
func (s *DemandaService) SetStatus(ctx context.Context, rawID, rawStatus string) (domain.Status, error) {
	id, err := domain.ParseID(rawID)
	if err != nil {
		return "", err
	}
	status, err := domain.ParseStatus(rawStatus)
	if err != nil {
		return "", err
	}

	var previous domain.Status
	updated, err := s.demandas.Update(ctx, id, func(d *domain.Demanda) error {
		previous = d.Status
		d.Status = status
		return nil
	})
	if err != nil {
		return "", err
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventDemandaStatusChanged,
		DemandaID: id,
		Payload:   events.DemandaStatusChangedPayload{Number: updated.Number, OldStatus: previous, NewStatus: status},
	})
	return status, nil
}

// Edit applies a partial update. An unknown status value is ignored rather
// than rejected; SetStatus is the strict path.
func (s *DemandaService) Edit(ctx context.Context, rawID string, input EditDemandaInput) (*domain.Demanda, error) {
	id, err := domain.ParseID(rawID)
	if err != nil {
		return nil, err
	}

	requester := trimmed(input.Requester)
	description := trimmed(input.Description)
	var status domain.Status
	if raw := trimmed(input.Status); raw != "" {
		parsed, err := domain.ParseStatus(raw)
		if err != nil {
			s.logger.Warn("ignoring invalid status on edit", zap.String("id", id), zap.String("status", raw))
		} else {
			status = parsed
		}
	}

	if requester != "" {
		if _, err := s.requesters.Ensure(ctx, requester); err != nil {
			return nil, err
		}
	}

	var fields []string
	updated, err := s.demandas.Update(ctx, id, func(d *domain.Demanda) error {
		fields = fields[:0]
		if requester != "" && requester != d.Requester {
			d.Requester = requester
			fields = append(fields, "requester")
		}
		if description != "" && description != d.Description {
			d.Description = description
			fields = append(fields, "description")
		}
		if status != "" && status != d.Status {
			d.Status = status
			fields = append(fields, "status")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(fields) > 0 {
		s.publishEvent(ctx, events.Event{
			Type:      events.EventDemandaEdited,
			DemandaID: id,
			Payload:   events.DemandaEditedPayload{Number: updated.Number, Fields: fields},
		})
	}
	return updated, nil
}

// Delete removes a demanda. Deleting twice reports ErrNotFound.
func (s *DemandaService) Delete(ctx context.Context, rawID string) error {
	id, err := domain.ParseID(rawID)
	if err != nil {
		return err
	}
	if err := s.demandas.Delete(ctx, id); err != nil {
		return err
	}
	s.publishEvent(ctx, events.Event{Type: events.EventDemandaDeleted, DemandaID: id})
	return nil
}

// WhatsAppText renders the chat summary of a demanda. It has no side effects.
func (s *DemandaService) WhatsAppText(ctx context.Context, rawID string) (string, error) {
	d, err := s.Get(ctx, rawID)
	if err != nil {
		return "", err
	}
	return d.WhatsAppText(), nil
}

// ListRequesters returns registered requesters sorted by name.
func (s *DemandaService) ListRequesters(ctx context.Context) ([]domain.Requester, error) {
	return s.requesters.List(ctx)
}

// AddRequester registers a name, returning the existing entry when one
// matches case-insensitively.
func (s *DemandaService) AddRequester(ctx context.Context, name string) (*domain.Requester, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: nome is required", domain.ErrValidation)
	}
	return s.requesters.Ensure(ctx, name)
}

func (s *DemandaService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}

func trimmed(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}
