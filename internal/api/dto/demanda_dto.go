package dto

import (
	"time"

	"github.com/prefeitura-canaa/demanda-service/internal/domain"
)

// CreateDemandaRequest form payload. Files arrive as referencia_files parts.
type CreateDemandaRequest struct {
	Solicitante     string `form:"solicitante" json:"solicitante"`
	Demanda         string `form:"demanda" json:"demanda"`
	ReferenciaLinks string `form:"referencia_links" json:"referencia_links"`
}

// UpdateDemandaRequest form payload; blank fields are left unchanged.
type UpdateDemandaRequest struct {
	Solicitante string `form:"solicitante" json:"solicitante"`
	Demanda     string `form:"demanda" json:"demanda"`
	Status      string `form:"status" json:"status"`
}

// UpdateStatusRequest form payload.
type UpdateStatusRequest struct {
	Status string `form:"status" json:"status"`
}

// AddEntregasRequest form payload. Files arrive as entrega_files parts.
type AddEntregasRequest struct {
	EntregaLinks string `form:"entrega_links" json:"entrega_links"`
}

// AddSolicitanteRequest form payload.
type AddSolicitanteRequest struct {
	Nome string `form:"nome" json:"nome"`
}

// DemandaListQuery captures listing filters.
type DemandaListQuery struct {
	Month       string `query:"month"`
	Year        string `query:"year"`
	Status      string `query:"status"`
	Solicitante string `query:"solicitante"`
	Search      string `query:"search"`
}

// AttachmentResponse mirrors domain.Attachment; file_data is base64.
type AttachmentResponse struct {
	Type     string     `json:"type"`
	URL      string     `json:"url,omitempty"`
	Filename string     `json:"filename,omitempty"`
	MimeType string     `json:"mime_type,omitempty"`
	FileData []byte     `json:"file_data,omitempty"`
	AddedAt  *time.Time `json:"added_at,omitempty"`
}

// DemandaResponse is the public shape of a demanda. Empty attachment lists
// are null.
type DemandaResponse struct {
	ID          string               `json:"id"`
	Numero      string               `json:"numero"`
	Solicitante string               `json:"solicitante"`
	Demanda     string               `json:"demanda"`
	Referencias []AttachmentResponse `json:"referencias"`
	Status      domain.Status        `json:"status"`
	Entregas    []AttachmentResponse `json:"entregas"`
	CreatedAt   time.Time            `json:"created_at"`
	MonthYear   string               `json:"month_year"`
}

// SolicitanteResponse is a registry entry.
type SolicitanteResponse struct {
	ID   string `json:"id"`
	Nome string `json:"nome"`
}

// NewDemandaResponse maps the aggregate.
func NewDemandaResponse(d *domain.Demanda) DemandaResponse {
	return DemandaResponse{
		ID:          d.ID,
		Numero:      d.Number,
		Solicitante: d.Requester,
		Demanda:     d.Description,
		Referencias: attachments(d.References),
		Status:      d.Status,
		Entregas:    attachments(d.Deliveries),
		CreatedAt:   d.CreatedAt,
		MonthYear:   d.PeriodKey,
	}
}

// NewSolicitanteResponse maps a registry entry.
func NewSolicitanteResponse(r *domain.Requester) SolicitanteResponse {
	return SolicitanteResponse{ID: r.ID, Nome: r.Name}
}

func attachments(items []domain.Attachment) []AttachmentResponse {
	if len(items) == 0 {
		return nil
	}
	out := make([]AttachmentResponse, 0, len(items))
	for _, a := range items {
		out = append(out, AttachmentResponse{
			Type:     string(a.Kind),
			URL:      a.URL,
			Filename: a.Filename,
			MimeType: a.MimeType,
			FileData: a.Payload,
			AddedAt:  a.AddedAt,
		})
	}
	return out
}
