// Package report renders the monthly production report as a PDF.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/prefeitura-canaa/demanda-service/internal/config"
	"github.com/prefeitura-canaa/demanda-service/internal/domain"
	"github.com/prefeitura-canaa/demanda-service/internal/observability"
)

const (
	pageMargin = 20.0
	fontFamily = "Times"
)

var tracer = otel.Tracer("github.com/prefeitura-canaa/demanda-service/internal/report")

// Options controls layout and decoding.
type Options struct {
	Title          string
	HeaderLines    []string
	ImageMaxWidth  float64 // mm
	ImageMaxHeight float64 // mm
	DecodeWorkers  int
	Compress       bool
}

// OptionsFromConfig maps env configuration onto renderer options.
func OptionsFromConfig(cfg config.ReportConfig) Options {
	return Options{
		Title:          cfg.Title,
		HeaderLines:    cfg.HeaderLines,
		ImageMaxWidth:  cfg.ImageMaxWidthMM,
		ImageMaxHeight: cfg.ImageMaxHeightMM,
		DecodeWorkers:  cfg.DecodeWorkers,
		Compress:       cfg.Compress,
	}
}

// Document is a finished report.
type Document struct {
	Filename      string
	ContentType   string
	Content       []byte
	Images        int
	SkippedImages int
}

// Renderer lays out demandas of one period. It never mutates its input.
type Renderer struct {
	opts    Options
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewRenderer constructs a renderer. metrics may be nil.
func NewRenderer(opts Options, logger *zap.Logger, metrics *observability.Metrics) *Renderer {
	if opts.Title == "" {
		opts.Title = "Relatório de Produção"
	}
	if opts.ImageMaxWidth <= 0 {
		opts.ImageMaxWidth = 120
	}
	if opts.ImageMaxHeight <= 0 {
		opts.ImageMaxHeight = 80
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{opts: opts, logger: logger, metrics: metrics}
}

// Filename returns the download name for a period, e.g. relatorio_10-2025.pdf.
func Filename(periodKey string) string {
	return "relatorio_" + domain.PeriodFileSuffix(periodKey) + ".pdf"
}

// Render produces the report for demandas in the given order. An empty input
// yields domain.ErrNoDataForPeriod. Cancellation aborts with ctx's error and
// no bytes.
func (r *Renderer) Render(ctx context.Context, periodKey string, demandas []domain.Demanda) (doc *Document, err error) {
	ctx, span := tracer.Start(ctx, "report.Render", trace.WithAttributes(
		attribute.String("report.period", periodKey),
		attribute.Int("report.demandas", len(demandas)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if len(demandas) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoDataForPeriod, periodKey)
	}
	start := time.Now()
	defer r.metrics.ObserveReport(start)

	images, err := r.prepareImages(ctx, demandas)
	if err != nil {
		return nil, fmt.Errorf("prepare images: %w", err)
	}

	l := newLayout(r.opts)
	l.header(periodKey)
	l.summary(demandas)

	doc = &Document{
		Filename:    Filename(periodKey),
		ContentType: "application/pdf",
	}
	for i := range demandas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d := &demandas[i]
		l.record(d)
		for j, delivery := range d.Deliveries {
			l.deliveryItem(delivery)
			if !delivery.IsImage() {
				continue
			}
			img, ok := images[imageKey{record: i, delivery: j}]
			if !ok {
				doc.SkippedImages++
				continue
			}
			name := fmt.Sprintf("demanda-%d-entrega-%d", i, j)
			if err := l.image(name, img); err != nil {
				r.skipImage(d.Number, delivery.Filename, err)
				doc.SkippedImages++
				continue
			}
			r.metrics.IncrementReportImage("embedded")
			doc.Images++
		}
		l.endRecord()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := l.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	doc.Content = buf.Bytes()

	r.logger.Info("report rendered",
		zap.String("period", periodKey),
		zap.Int("demandas", len(demandas)),
		zap.Int("images", doc.Images),
		zap.Int("skipped_images", doc.SkippedImages),
		zap.Int("bytes", len(doc.Content)),
	)
	span.SetAttributes(attribute.Int("report.images", doc.Images), attribute.Int("report.skipped_images", doc.SkippedImages))
	return doc, nil
}

// layout wraps the fpdf document with the report's typographic styles.
type layout struct {
	pdf   *fpdf.Fpdf
	tr    func(string) string
	opts  Options
	width float64
}

func newLayout(opts Options) *layout {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetCompression(opts.Compress)
	pdf.SetCreator("demanda-service", true)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	return &layout{
		pdf:   pdf,
		tr:    pdf.UnicodeTranslatorFromDescriptor(""),
		opts:  opts,
		width: pageW - 2*pageMargin,
	}
}

func (l *layout) header(periodKey string) {
	l.pdf.SetTitle(l.opts.Title+" - "+domain.PeriodTitle(periodKey), true)

	l.pdf.SetFont(fontFamily, "B", 18)
	l.pdf.CellFormat(0, 8, l.tr(l.opts.Title), "", 1, "C", false, 0, "")
	l.pdf.CellFormat(0, 8, l.tr(domain.PeriodTitle(periodKey)), "", 1, "C", false, 0, "")
	l.pdf.Ln(4)

	l.pdf.SetFont(fontFamily, "", 11)
	for _, line := range l.opts.HeaderLines {
		l.pdf.CellFormat(0, 5.5, l.tr(line), "", 1, "C", false, 0, "")
	}
	l.pdf.Ln(7)
}

func (l *layout) summary(demandas []domain.Demanda) {
	done := 0
	for i := range demandas {
		if demandas[i].IsDone() {
			done++
		}
	}
	l.pdf.SetFont(fontFamily, "", 10)
	l.pdf.MultiCell(0, 5, l.tr(fmt.Sprintf("Total de demandas: %d | Finalizadas: %d", len(demandas), done)), "", "L", false)
	l.pdf.Ln(7)
}

func (l *layout) record(d *domain.Demanda) {
	x := l.pdf.GetX()
	y := l.pdf.GetY()
	l.pdf.SetDrawColor(150, 150, 150)
	l.pdf.SetLineWidth(0.3)
	l.pdf.Line(x, y, x+l.width, y)
	l.pdf.Ln(4)

	l.pdf.SetFont(fontFamily, "B", 12)
	l.pdf.Write(6, l.tr(d.Number))
	l.pdf.SetFont(fontFamily, "", 12)
	l.pdf.Write(6, l.tr(" - "+d.Requester))
	l.pdf.Ln(7)

	l.muted(func() {
		l.pdf.MultiCell(0, 4.5, l.tr("Status: "+string(d.Status)), "", "L", false)
	})
	l.pdf.Ln(1.5)

	l.labelled("Demanda: ", d.Description, 10, 5)
	l.pdf.Ln(2)

	if len(d.References) > 0 {
		parts := make([]string, 0, len(d.References))
		for _, ref := range d.References {
			parts = append(parts, ref.Label())
		}
		l.muted(func() {
			l.labelled("Referências: ", strings.Join(parts, "; "), 9, 4.5)
		})
		l.pdf.Ln(1.5)
	}

	if len(d.Deliveries) > 0 {
		l.pdf.SetFont(fontFamily, "B", 10)
		l.pdf.MultiCell(0, 5, l.tr("Entregas:"), "", "L", false)
	}
}

func (l *layout) deliveryItem(a domain.Attachment) {
	l.muted(func() {
		l.pdf.MultiCell(0, 4.5, l.tr("• "+a.Label()), "", "L", false)
	})
}

// image embeds a prepared image under the current line. Any writer error is
// cleared so the rest of the document is unaffected.
func (l *layout) image(name string, img *preparedImage) error {
	w, h, ok := FitWithin(img.width, img.height, l.opts.ImageMaxWidth, l.opts.ImageMaxHeight)
	if !ok {
		return errors.New("image has no area")
	}
	opts := fpdf.ImageOptions{ImageType: img.imageType}
	l.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.data))
	if err := l.takeError(); err != nil {
		return err
	}
	l.pdf.Ln(1.5)
	l.pdf.ImageOptions(name, l.pdf.GetX(), 0, w, h, true, opts, 0, "")
	if err := l.takeError(); err != nil {
		return err
	}
	l.pdf.Ln(1.5)
	return nil
}

func (l *layout) endRecord() {
	l.pdf.Ln(5)
}

func (l *layout) takeError() error {
	if l.pdf.Ok() {
		return nil
	}
	err := l.pdf.Error()
	l.pdf.ClearError()
	return err
}

func (l *layout) labelled(label, text string, size, lineHeight float64) {
	l.pdf.SetFont(fontFamily, "B", size)
	l.pdf.Write(lineHeight, l.tr(label))
	l.pdf.SetFont(fontFamily, "", size)
	l.pdf.Write(lineHeight, l.tr(text))
	l.pdf.Ln(lineHeight)
}

func (l *layout) muted(fn func()) {
	l.pdf.SetFont(fontFamily, "", 9)
	l.pdf.SetTextColor(110, 110, 110)
	fn()
	l.pdf.SetTextColor(0, 0, 0)
}
