package report

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/prefeitura-canaa/demanda-service/internal/domain"
)

// maxImagePixels rejects payloads whose decoded bitmap would be unreasonably large.
const maxImagePixels = 40_000_000

type imageKey struct {
	record   int
	delivery int
}

// preparedImage is a payload already decoded and re-encoded into a format the
// PDF writer embeds directly.
type preparedImage struct {
	data      []byte
	imageType string
	width     int
	height    int
}

type imageJob struct {
	key      imageKey
	number   string
	filename string
	payload  []byte
}

// prepareImages decodes every image delivery with bounded parallelism. A
// payload that fails to decode is logged and left out of the result; only
// context cancellation is returned as an error.
func (r *Renderer) prepareImages(ctx context.Context, demandas []domain.Demanda) (map[imageKey]*preparedImage, error) {
	var jobs []imageJob
	for i := range demandas {
		for j, delivery := range demandas[i].Deliveries {
			if !delivery.IsImage() {
				continue
			}
			jobs = append(jobs, imageJob{
				key:      imageKey{record: i, delivery: j},
				number:   demandas[i].Number,
				filename: delivery.Filename,
				payload:  delivery.Payload,
			})
		}
	}

	results := make([]*preparedImage, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.opts.DecodeWorkers, 1))
	for idx, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := decodeForPDF(job.payload)
			if err != nil {
				r.skipImage(job.number, job.filename, err)
				return nil
			}
			results[idx] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	prepared := make(map[imageKey]*preparedImage, len(jobs))
	for idx, job := range jobs {
		if results[idx] != nil {
			prepared[job.key] = results[idx]
		}
	}
	return prepared, nil
}

func (r *Renderer) skipImage(number, filename string, err error) {
	r.logger.Warn("skipping report image",
		zap.String("demanda", number),
		zap.String("filename", filename),
		zap.Error(fmt.Errorf("%w: %v", domain.ErrAttachmentDecode, err)),
	)
	r.metrics.IncrementReportImage("skipped")
}

// decodeForPDF validates the payload and converts it to JPEG passthrough or an
// opaque 8-bit PNG.
func decodeForPDF(payload []byte) (*preparedImage, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("read image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Width*cfg.Height > maxImagePixels {
		return nil, fmt.Errorf("image too large: %dx%d", cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}
	bounds := img.Bounds()

	if format == "jpeg" && (cfg.ColorModel == color.YCbCrModel || cfg.ColorModel == color.GrayModel) {
		return &preparedImage{data: payload, imageType: "JPG", width: bounds.Dx(), height: bounds.Dy()}, nil
	}

	flat := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(flat, flat.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), img, bounds.Min, draw.Over)

	var buf bytes.Buffer
	if format == "jpeg" {
		if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: 90}); err != nil {
			return nil, fmt.Errorf("re-encode jpeg: %w", err)
		}
		return &preparedImage{data: buf.Bytes(), imageType: "JPG", width: bounds.Dx(), height: bounds.Dy()}, nil
	}
	if err := png.Encode(&buf, flat); err != nil {
		return nil, fmt.Errorf("re-encode png: %w", err)
	}
	return &preparedImage{data: buf.Bytes(), imageType: "PNG", width: bounds.Dx(), height: bounds.Dy()}, nil
}
