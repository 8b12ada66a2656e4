package events

import (
	"time"

	"github.com/prefeitura-canaa/demanda-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventDemandaCreated       EventType = "demanda_created"
	EventDemandaStatusChanged EventType = "demanda_status_changed"
	EventDemandaEdited        EventType = "demanda_edited"
	EventDeliveriesAppended   EventType = "demanda_deliveries_appended"
	EventDeliveryRemoved      EventType = "demanda_delivery_removed"
	EventDemandaDeleted       EventType = "demanda_deleted"
	EventReportGenerated      EventType = "report_generated"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	DemandaID string    `json:"demanda_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// DemandaCreatedPayload payload.
type DemandaCreatedPayload struct {
	Number     string `json:"number"`
	Requester  string `json:"requester"`
	PeriodKey  string `json:"period_key"`
	References int    `json:"references"`
}

// DemandaStatusChangedPayload payload.
type DemandaStatusChangedPayload struct {
	Number    string        `json:"number"`
	OldStatus domain.Status `json:"old_status"`
	NewStatus domain.Status `json:"new_status"`
}

// DemandaEditedPayload lists the fields that changed.
type DemandaEditedPayload struct {
	Number string   `json:"number"`
	Fields []string `json:"fields"`
}

// DeliveriesChangedPayload payload for append and remove.
type DeliveriesChangedPayload struct {
	Number string `json:"number"`
	Delta  int    `json:"delta"`
	Total  int    `json:"total"`
}

// ReportGeneratedPayload payload.
type ReportGeneratedPayload struct {
	PeriodKey     string `json:"period_key"`
	Demandas      int    `json:"demandas"`
	Images        int    `json:"images"`
	SkippedImages int    `json:"skipped_images"`
	Bytes         int    `json:"bytes"`
}
