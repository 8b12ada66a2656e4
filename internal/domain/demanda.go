package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Demanda is the aggregate for a tracked work request.
type Demanda struct {
	ID          string       `json:"id"`
	Number      string       `json:"number"`
	Requester   string       `json:"requester"`
	Description string       `json:"description"`
	References  []Attachment `json:"references,omitempty"`
	Deliveries  []Attachment `json:"deliveries,omitempty"`
	Status      Status       `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	PeriodKey   string       `json:"period_key"`
}

// FormatNumber renders the human-facing number, e.g. #2025-007. Sequences
// above 999 are printed in full.
func FormatNumber(year int, seq int64) string {
	return fmt.Sprintf("#%d-%03d", year, seq)
}

// ParseID validates an opaque identifier.
func ParseID(raw string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, raw)
	}
	return id.String(), nil
}

// Clone returns a deep copy so callers never share attachment buffers.
func (d *Demanda) Clone() *Demanda {
	if d == nil {
		return nil
	}
	out := *d
	out.References = CloneAttachments(d.References)
	out.Deliveries = CloneAttachments(d.Deliveries)
	return &out
}

// Normalize collapses empty attachment sequences to nil.
func (d *Demanda) Normalize() {
	d.References = NormalizeAttachments(d.References)
	d.Deliveries = NormalizeAttachments(d.Deliveries)
}

// AppendDeliveries adds items in order and returns the new total.
func (d *Demanda) AppendDeliveries(items []Attachment) int {
	d.Deliveries = NormalizeAttachments(append(d.Deliveries, items...))
	return len(d.Deliveries)
}

// RemoveDelivery drops the delivery at index and compacts the sequence. An
// emptied sequence becomes absent.
func (d *Demanda) RemoveDelivery(index int) error {
	if index < 0 || index >= len(d.Deliveries) {
		return fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(d.Deliveries))
	}
	remaining := make([]Attachment, 0, len(d.Deliveries)-1)
	remaining = append(remaining, d.Deliveries[:index]...)
	remaining = append(remaining, d.Deliveries[index+1:]...)
	d.Deliveries = NormalizeAttachments(remaining)
	return nil
}

// IsDone reports whether the demanda reached the Finalizado state.
func (d *Demanda) IsDone() bool {
	return d.Status == StatusDone
}

// WhatsAppText renders the plain-text summary shared over chat.
func (d *Demanda) WhatsAppText() string {
	lines := []string{
		fmt.Sprintf("*Demanda %s*", d.Number),
		"Solicitante: " + d.Requester,
		"Descrição: " + d.Description,
		"Status: " + string(d.Status),
	}
	if len(d.Deliveries) > 0 {
		items := make([]string, 0, len(d.Deliveries))
		for _, e := range d.Deliveries {
			if e.Kind == AttachmentLink {
				items = append(items, e.URL)
				continue
			}
			items = append(items, fmt.Sprintf("[Arquivo: %s]", e.Filename))
		}
		lines = append(lines, "Entrega: "+strings.Join(items, ", "))
	}
	return strings.Join(lines, "\n")
}
