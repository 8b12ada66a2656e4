package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/prefeitura-canaa/demanda-service/internal/service"
)

// ReportsHandler serves rendered reports.
type ReportsHandler struct {
	service *service.ReportService
}

// NewReportsHandler constructs handler.
func NewReportsHandler(reportService *service.ReportService) *ReportsHandler {
	return &ReportsHandler{service: reportService}
}

// MonthlyPDF GET /api/relatorio/:month/:year/pdf.
func (h *ReportsHandler) MonthlyPDF(c *fiber.Ctx) error {
	doc, err := h.service.MonthlyReport(c.UserContext(), c.Params("month"), c.Params("year"))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, doc.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s", doc.Filename))
	return c.Send(doc.Content)
}
