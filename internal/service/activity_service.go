package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/prefeitura-canaa/demanda-service/internal/events"
	"github.com/prefeitura-canaa/demanda-service/internal/observability"
)

// ActivityService records domain events in the log and in metrics.
type ActivityService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewActivityService creates the service.
func NewActivityService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to events.
func (a *ActivityService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	events.SubscribeAll(a.dispatcher, a.record,
		events.EventDemandaCreated,
		events.EventDemandaStatusChanged,
		events.EventDemandaEdited,
		events.EventDeliveriesAppended,
		events.EventDeliveryRemoved,
		events.EventDemandaDeleted,
		events.EventReportGenerated,
	)
}

func (a *ActivityService) record(_ context.Context, event events.Event) error {
	a.metrics.RecordEvent(string(event.Type))
	a.logger.Info("activity",
		zap.String("event", string(event.Type)),
		zap.String("event_id", event.ID),
		zap.String("demanda_id", event.DemandaID),
		zap.Time("at", event.Timestamp),
		zap.Any("payload", event.Payload),
	)
	return nil
}
