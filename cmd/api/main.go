package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/prefeitura-canaa/demanda-service/internal/api/http"
	"github.com/prefeitura-canaa/demanda-service/internal/api/http/handlers"
	"github.com/prefeitura-canaa/demanda-service/internal/config"
	"github.com/prefeitura-canaa/demanda-service/internal/events"
	"github.com/prefeitura-canaa/demanda-service/internal/observability"
	"github.com/prefeitura-canaa/demanda-service/internal/persistence"
	"github.com/prefeitura-canaa/demanda-service/internal/report"
	"github.com/prefeitura-canaa/demanda-service/internal/repository"
	"github.com/prefeitura-canaa/demanda-service/internal/service"
)

// backends is the set of stores selected by configuration.
type backends struct {
	demandas     repository.DemandaRepository
	requesters   repository.RequesterRepository
	sequence     repository.SequenceAllocator
	dependencies []handlers.Dependency
	closers      []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	stores, err := openBackends(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open storage", zap.Error(err))
	}
	defer stores.close()

	dispatcher := events.NewInMemoryDispatcher()
	service.NewActivityService(dispatcher, logger, metrics).RegisterHandlers()

	demandaService := service.NewDemandaService(service.DemandaDependencies{
		DemandaRepo:   stores.demandas,
		RequesterRepo: stores.requesters,
		Sequence:      stores.sequence,
		Dispatcher:    dispatcher,
		Logger:        logger,
		Metrics:       metrics,
		Location:      cfg.App.Location(),
	})
	reportService := service.NewReportService(service.ReportDependencies{
		DemandaRepo:   stores.demandas,
		Renderer:      report.NewRenderer(report.OptionsFromConfig(cfg.Report), logger, metrics),
		Dispatcher:    dispatcher,
		Logger:        logger,
		Metrics:       metrics,
		RenderTimeout: cfg.Report.RenderTimeout(),
	})

	app := httptransport.NewApp(cfg.App, logger, metrics, httptransport.RouteConfig{
		Health:     handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, stores.dependencies...),
		Demandas:   handlers.NewDemandasHandler(demandaService),
		Requesters: handlers.NewRequestersHandler(demandaService),
		Reports:    handlers.NewReportsHandler(reportService),
		Metrics:    observability.MetricsHandler(metrics),
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("store", cfg.Store.Driver))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func openBackends(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backends, error) {
	b := &backends{}

	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, cfg.App.Name, logger)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pg.Close)
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				b.close()
				return nil, err
			}
		}
		pool := pg.PoolHandle()
		b.demandas = repository.NewDemandaRepository(pool)
		b.requesters = repository.NewRequesterRepository(pool)
		b.sequence = repository.NewPostgresSequence(pool)
		b.dependencies = append(b.dependencies, handlers.Dependency{Name: "postgres", Pinger: pg})
	case config.StoreDriverBolt:
		db, err := persistence.NewBolt(cfg.Bolt, logger, repository.BoltBuckets...)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		b.demandas = repository.NewBoltDemandaRepository(db.DB)
		b.requesters = repository.NewBoltRequesterRepository(db.DB)
		b.sequence = repository.NewBoltSequence(db.DB)
		b.dependencies = append(b.dependencies, handlers.Dependency{Name: "bolt", Pinger: db})
	default:
		logger.Warn("using in-memory storage; data is lost on restart")
		b.demandas = repository.NewInMemoryDemandaRepository()
		b.requesters = repository.NewInMemoryRequesterRepository()
		b.sequence = repository.NewInMemorySequence()
	}

	if cfg.Store.SequenceDriver == config.SequenceDriverRedis {
		redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			b.close()
			return nil, err
		}
		b.closers = append(b.closers, redis.Close)
		b.sequence = repository.NewRedisSequence(redis.Client, cfg.Redis.KeyPrefix)
		b.dependencies = append(b.dependencies, handlers.Dependency{Name: "redis", Pinger: redis})
	}

	return b, nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
