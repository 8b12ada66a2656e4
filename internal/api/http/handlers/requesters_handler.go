package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/prefeitura-canaa/demanda-service/internal/api/dto"
	"github.com/prefeitura-canaa/demanda-service/internal/service"
	apperrors "github.com/prefeitura-canaa/demanda-service/pkg/util/errorutil"
)

// RequestersHandler manages the requester registry.
type RequestersHandler struct {
	service *service.DemandaService
}

// NewRequestersHandler constructs handler.
func NewRequestersHandler(demandaService *service.DemandaService) *RequestersHandler {
	return &RequestersHandler{service: demandaService}
}

// ListSolicitantes GET /api/solicitantes.
func (h *RequestersHandler) ListSolicitantes(c *fiber.Ctx) error {
	items, err := h.service.ListRequesters(c.UserContext())
	if err != nil {
		return err
	}
	resp := make([]dto.SolicitanteResponse, 0, len(items))
	for i := range items {
		resp = append(resp, dto.NewSolicitanteResponse(&items[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// AddSolicitante POST /api/solicitantes.
func (h *RequestersHandler) AddSolicitante(c *fiber.Ctx) error {
	var req dto.AddSolicitanteRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	item, err := h.service.AddRequester(c.UserContext(), req.Nome)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": dto.NewSolicitanteResponse(item)})
}
