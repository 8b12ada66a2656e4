package http

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/prefeitura-canaa/demanda-service/internal/api/http/handlers"
	"github.com/prefeitura-canaa/demanda-service/internal/config"
	"github.com/prefeitura-canaa/demanda-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health     *handlers.HealthHandler
	Demandas   *handlers.DemandasHandler
	Requesters *handlers.RequestersHandler
	Reports    *handlers.ReportsHandler
	Metrics    fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics)
	}

	api := app.Group("/api")
	api.Get("/health", cfg.Health.Live)

	api.Get("/solicitantes", cfg.Requesters.ListSolicitantes)
	api.Post("/solicitantes", cfg.Requesters.AddSolicitante)

	demandas := api.Group("/demandas")
	demandas.Post("", cfg.Demandas.CreateDemanda)
	demandas.Get("", cfg.Demandas.ListDemandas)
	demandas.Get("/:id", cfg.Demandas.GetDemanda)
	demandas.Put("/:id", cfg.Demandas.UpdateDemanda)
	demandas.Delete("/:id", cfg.Demandas.DeleteDemanda)
	demandas.Put("/:id/status", cfg.Demandas.UpdateStatus)
	demandas.Post("/:id/entregas", cfg.Demandas.AddEntregas)
	demandas.Delete("/:id/entregas/:index", cfg.Demandas.RemoveEntrega)
	demandas.Get("/:id/whatsapp", cfg.Demandas.WhatsAppText)

	api.Get("/relatorio/:month/:year/pdf", cfg.Reports.MonthlyPDF)
	api.Get("/months", cfg.Demandas.ListMonths)
}

// NewApp builds the fiber application with middlewares and routes.
func NewApp(appCfg config.AppConfig, logger *zap.Logger, metrics *observability.Metrics, routes RouteConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               appCfg.Name,
		BodyLimit:             appCfg.BodyLimit(),
		DisableStartupMessage: true,
		// Form values end up in stored records, so they must not alias
		// fasthttp's reused request buffers.
		Immutable: true,
	})
	RegisterMiddlewares(app, logger, metrics, appCfg.RequestTimeout())
	RegisterRoutes(app, routes)
	return app
}
