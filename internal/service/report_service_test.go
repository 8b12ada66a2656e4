package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prefeitura-canaa/demanda-service/internal/domain"
	"github.com/prefeitura-canaa/demanda-service/internal/events"
	"github.com/prefeitura-canaa/demanda-service/internal/observability"
	"github.com/prefeitura-canaa/demanda-service/internal/report"
	"github.com/prefeitura-canaa/demanda-service/internal/repository"
)

func TestMonthlyReport(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewInMemoryDemandaRepository()
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	rec := &recorder{}
	dispatcher.Subscribe(events.EventReportGenerated, rec.handle)

	demandas := NewDemandaService(DemandaDependencies{
		DemandaRepo:   repo,
		RequesterRepo: repository.NewInMemoryRequesterRepository(),
		Sequence:      repository.NewInMemorySequence(),
		Clock:         func() time.Time { return time.Date(2025, 10, 5, 12, 0, 0, 0, time.UTC) },
	})
	_, err := demandas.Create(ctx, CreateDemandaInput{Requester: "Ana", Description: "Arte"})
	require.NoError(t, err)

	svc := NewReportService(ReportDependencies{
		DemandaRepo:   repo,
		Renderer:      report.NewRenderer(report.Options{}, nil, metrics),
		Dispatcher:    dispatcher,
		Metrics:       metrics,
		RenderTimeout: 10 * time.Second,
	})

	doc, err := svc.MonthlyReport(ctx, "10", "2025")
	require.NoError(t, err)
	assert.Equal(t, "relatorio_10-2025.pdf", doc.Filename)
	assert.True(t, bytes.HasPrefix(doc.Content, []byte("%PDF")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ReportsGenerated))
	require.Len(t, rec.events, 1)
	payload, ok := rec.events[0].Payload.(events.ReportGeneratedPayload)
	require.True(t, ok)
	assert.Equal(t, 1, payload.Demandas)

	_, err = svc.MonthlyReport(ctx, "9", "2025")
	assert.ErrorIs(t, err, domain.ErrNoDataForPeriod)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ReportsNoDataHits))

	_, err = svc.MonthlyReport(ctx, "13", "2025")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
