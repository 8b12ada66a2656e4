package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prefeitura-canaa/demanda-service/internal/domain"
	"github.com/prefeitura-canaa/demanda-service/internal/events"
	"github.com/prefeitura-canaa/demanda-service/internal/observability"
	"github.com/prefeitura-canaa/demanda-service/internal/report"
	"github.com/prefeitura-canaa/demanda-service/internal/repository"
)

// ReportService loads a period and hands it to the renderer.
type ReportService struct {
	demandas   repository.DemandaRepository
	renderer   *report.Renderer
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	timeout    time.Duration
}

// ReportDependencies bundles collaborators for the report service.
type ReportDependencies struct {
	DemandaRepo   repository.DemandaRepository
	Renderer      *report.Renderer
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	Metrics       *observability.Metrics
	RenderTimeout time.Duration
}

// NewReportService constructs the service.
func NewReportService(deps ReportDependencies) *ReportService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		demandas:   deps.DemandaRepo,
		renderer:   deps.Renderer,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		metrics:    deps.Metrics,
		timeout:    deps.RenderTimeout,
	}
}

// MonthlyReport renders every demanda of month/year, oldest first.
func (s *ReportService) MonthlyReport(ctx context.Context, month, year string) (*report.Document, error) {
	ctx, span := tracer.Start(ctx, "report.Monthly")
	defer span.End()

	periodKey, err := domain.ParsePeriod(month, year)
	if err != nil {
		return nil, err
	}

	items, err := s.demandas.ListByPeriod(ctx, periodKey)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		s.metrics.IncrementReportNoData()
		return nil, fmt.Errorf("%w: %s", domain.ErrNoDataForPeriod, periodKey)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	doc, err := s.renderer.Render(ctx, periodKey, items)
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementReportGenerated()

	if s.dispatcher != nil {
		event := events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventReportGenerated,
			Timestamp: time.Now(),
			Payload: events.ReportGeneratedPayload{
				PeriodKey:     periodKey,
				Demandas:      len(items),
				Images:        doc.Images,
				SkippedImages: doc.SkippedImages,
				Bytes:         len(doc.Content),
			},
		}
		if err := s.dispatcher.Publish(ctx, event); err != nil {
			s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
		}
	}
	return doc, nil
}
