package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/prefeitura-canaa/demanda-service/internal/api/dto"
	"github.com/prefeitura-canaa/demanda-service/internal/domain"
	"github.com/prefeitura-canaa/demanda-service/internal/service"
	apperrors "github.com/prefeitura-canaa/demanda-service/pkg/util/errorutil"
)

// DemandasHandler manages demanda endpoints.
type DemandasHandler struct {
	service *service.DemandaService
}

// NewDemandasHandler constructs handler.
func NewDemandasHandler(demandaService *service.DemandaService) *DemandasHandler {
	return &DemandasHandler{service: demandaService}
}

// CreateDemanda POST /api/demandas.
func (h *DemandasHandler) CreateDemanda(c *fiber.Ctx) error {
	var req dto.CreateDemandaRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Solicitante) == "" || strings.TrimSpace(req.Demanda) == "" {
		return apperrors.NewValidationError("solicitante, demanda required", nil)
	}
	files, err := readUploads(c, "referencia_files")
	if err != nil {
		return err
	}

	d, err := h.service.Create(c.UserContext(), service.CreateDemandaInput{
		Requester:      req.Solicitante,
		Description:    req.Demanda,
		ReferenceLinks: req.ReferenciaLinks,
		ReferenceFiles: files,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewDemandaResponse(d)})
}

// ListDemandas GET /api/demandas.
func (h *DemandasHandler) ListDemandas(c *fiber.Ctx) error {
	var q dto.DemandaListQuery
	if err := c.QueryParser(&q); err != nil {
		return apperrors.NewValidationError("invalid query", nil)
	}
	items, err := h.service.List(c.UserContext(), service.ListDemandasInput{
		Month:     q.Month,
		Year:      q.Year,
		Status:    q.Status,
		Requester: q.Solicitante,
		Search:    q.Search,
	})
	if err != nil {
		return err
	}
	resp := make([]dto.DemandaResponse, 0, len(items))
	for i := range items {
		resp = append(resp, dto.NewDemandaResponse(&items[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// GetDemanda GET /api/demandas/:id.
func (h *DemandasHandler) GetDemanda(c *fiber.Ctx) error {
	d, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewDemandaResponse(d)})
}

// UpdateDemanda PUT /api/demandas/:id.
func (h *DemandasHandler) UpdateDemanda(c *fiber.Ctx) error {
	var req dto.UpdateDemandaRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	d, err := h.service.Edit(c.UserContext(), c.Params("id"), service.EditDemandaInput{
		Requester:   optional(req.Solicitante),
		Description: optional(req.Demanda),
		Status:      optional(req.Status),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewDemandaResponse(d)})
}

// UpdateStatus PUT /api/demandas/:id/status.
func (h *DemandasHandler) UpdateStatus(c *fiber.Ctx) error {
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	status, err := h.service.SetStatus(c.UserContext(), c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": status}})
}

// AddEntregas POST /api/demandas/:id/entregas.
func (h *DemandasHandler) AddEntregas(c *fiber.Ctx) error {
	var req dto.AddEntregasRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	files, err := readUploads(c, "entrega_files")
	if err != nil {
		return err
	}
	total, err := h.service.AppendDeliveries(c.UserContext(), c.Params("id"), req.EntregaLinks, files)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"total": total}})
}

// RemoveEntrega DELETE /api/demandas/:id/entregas/:index.
func (h *DemandasHandler) RemoveEntrega(c *fiber.Ctx) error {
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return apperrors.NewValidationError("index must be an integer", map[string]any{"index": c.Params("index")})
	}
	if err := h.service.RemoveDelivery(c.UserContext(), c.Params("id"), index); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// DeleteDemanda DELETE /api/demandas/:id.
func (h *DemandasHandler) DeleteDemanda(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// WhatsAppText GET /api/demandas/:id/whatsapp.
func (h *DemandasHandler) WhatsAppText(c *fiber.Ctx) error {
	text, err := h.service.WhatsAppText(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"text": text}})
}

// ListMonths GET /api/months.
func (h *DemandasHandler) ListMonths(c *fiber.Ctx) error {
	keys, err := h.service.Periods(c.UserContext())
	if err != nil {
		return err
	}
	if keys == nil {
		keys = []string{}
	}
	return c.JSON(fiber.Map{"data": keys})
}

// readUploads collects the named multipart file parts. Non-multipart bodies
// carry no files.
func readUploads(c *fiber.Ctx, field string) ([]domain.Upload, error) {
	form, err := c.MultipartForm()
	if errors.Is(err, fasthttp.ErrNoMultipartForm) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewValidationError("invalid multipart form", nil)
	}

	headers := form.File[field]
	uploads := make([]domain.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, apperrors.NewValidationError("unreadable upload", map[string]any{"filename": fh.Filename})
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, apperrors.NewValidationError("unreadable upload", map[string]any{"filename": fh.Filename})
		}
		uploads = append(uploads, domain.Upload{
			Filename: fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Payload:  data,
		})
	}
	return uploads, nil
}

func optional(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}
