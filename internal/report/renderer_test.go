package report

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prefeitura-canaa/demanda-service/internal/domain"
)

func newTestRenderer() *Renderer {
	return NewRenderer(Options{
		HeaderLines:   []string{"Nome: Teste", "Cargo: Designer"},
		DecodeWorkers: 2,
	}, nil, nil)
}

func pngPayload(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 10), G: 120, B: uint8(y * 10), A: 200})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegPayload(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func sampleDemanda(number string, deliveries ...domain.Attachment) domain.Demanda {
	at := time.Date(2025, 10, 2, 9, 0, 0, 0, time.UTC)
	domain.StampAdded(deliveries, at)
	return domain.Demanda{
		ID:          "0b8f3a5e-0c53-4d8f-9d5b-2a6d3e4f1a10",
		Number:      number,
		Requester:   "Ana",
		Description: "Arte para evento",
		References:  domain.ParseLinks("https://ref.test/briefing"),
		Deliveries:  domain.NormalizeAttachments(deliveries),
		Status:      domain.StatusDone,
		CreatedAt:   at,
		PeriodKey:   "10/2025",
	}
}

func TestRenderEmptyPeriod(t *testing.T) {
	doc, err := newTestRenderer().Render(context.Background(), "10/2025", nil)

	assert.ErrorIs(t, err, domain.ErrNoDataForPeriod)
	assert.Nil(t, doc)
}

func TestRenderEmbedsImages(t *testing.T) {
	demandas := []domain.Demanda{
		sampleDemanda("#2025-001",
			domain.Attachment{Kind: domain.AttachmentLink, URL: "https://drive.test/final"},
			domain.Attachment{Kind: domain.AttachmentFile, Filename: "arte.png", MimeType: "image/png", Payload: pngPayload(t, 24, 12)},
		),
		sampleDemanda("#2025-002",
			domain.Attachment{Kind: domain.AttachmentFile, Filename: "foto.jpg", MimeType: "image/jpeg", Payload: jpegPayload(t, 16, 16)},
			domain.Attachment{Kind: domain.AttachmentFile, Filename: "roteiro.pdf", MimeType: "application/pdf", Payload: []byte("%PDF-1.4")},
		),
	}

	doc, err := newTestRenderer().Render(context.Background(), "10/2025", demandas)
	require.NoError(t, err)

	assert.Equal(t, "relatorio_10-2025.pdf", doc.Filename)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.True(t, bytes.HasPrefix(doc.Content, []byte("%PDF")))
	assert.Equal(t, 2, doc.Images)
	assert.Zero(t, doc.SkippedImages)
}

func TestRenderSkipsCorruptImage(t *testing.T) {
	demandas := []domain.Demanda{
		sampleDemanda("#2025-003",
			domain.Attachment{Kind: domain.AttachmentFile, Filename: "quebrada.png", MimeType: "image/png", Payload: []byte("not an image")},
			domain.Attachment{Kind: domain.AttachmentFile, Filename: "ok.png", MimeType: "image/png", Payload: pngPayload(t, 8, 8)},
		),
		sampleDemanda("#2025-005", domain.Attachment{Kind: domain.AttachmentLink, URL: "https://drive.test/final"}),
	}

	doc, err := newTestRenderer().Render(context.Background(), "10/2025", demandas)
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(doc.Content, []byte("%PDF")))
	assert.Equal(t, 1, doc.Images)
	assert.Equal(t, 1, doc.SkippedImages)
	content := string(doc.Content)
	assert.Contains(t, content, "#2025-003")
	assert.Contains(t, content, "#2025-005")
	assert.Contains(t, content, "Link: https://drive.test/final")
}

func TestRenderWritesRecordText(t *testing.T) {
	r := NewRenderer(Options{Title: "Relatorio Teste", HeaderLines: []string{"Secretaria X"}}, nil, nil)
	demandas := []domain.Demanda{
		sampleDemanda("#2025-010", domain.Attachment{Kind: domain.AttachmentLink, URL: "https://drive.test/v"}),
		sampleDemanda("#2025-011"),
	}

	doc, err := r.Render(context.Background(), "10/2025", demandas)
	require.NoError(t, err)

	content := string(doc.Content)
	assert.Contains(t, content, "Relatorio Teste")
	assert.Contains(t, content, "Secretaria X")
	assert.Contains(t, content, "#2025-010")
	assert.Contains(t, content, "#2025-011")
	assert.Contains(t, content, "Total de demandas: 2 | Finalizadas: 2")
	assert.Contains(t, content, "Link: https://drive.test/v")
	assert.Contains(t, content, "Link: https://ref.test/briefing")
}

func TestRenderDoesNotMutateInput(t *testing.T) {
	payload := pngPayload(t, 4, 4)
	demandas := []domain.Demanda{
		sampleDemanda("#2025-004", domain.Attachment{Kind: domain.AttachmentFile, Filename: "a.png", MimeType: "image/png", Payload: payload}),
	}
	before := demandas[0].Clone()

	_, err := newTestRenderer().Render(context.Background(), "10/2025", demandas)
	require.NoError(t, err)

	assert.Equal(t, *before, demandas[0])
}

func TestRenderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	demandas := []domain.Demanda{
		sampleDemanda("#2025-005", domain.Attachment{Kind: domain.AttachmentFile, Filename: "a.png", MimeType: "image/png", Payload: pngPayload(t, 4, 4)}),
	}

	doc, err := newTestRenderer().Render(ctx, "10/2025", demandas)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, doc)
}

func TestDecodeForPDFPassesJPEGThrough(t *testing.T) {
	payload := jpegPayload(t, 10, 6)

	img, err := decodeForPDF(payload)
	require.NoError(t, err)

	assert.Equal(t, "JPG", img.imageType)
	assert.Equal(t, payload, img.data)
	assert.Equal(t, 10, img.width)
	assert.Equal(t, 6, img.height)
}

func TestDecodeForPDFFlattensPNG(t *testing.T) {
	img, err := decodeForPDF(pngPayload(t, 5, 3))
	require.NoError(t, err)

	assert.Equal(t, "PNG", img.imageType)
	decoded, err := png.Decode(bytes.NewReader(img.data))
	require.NoError(t, err)
	_, _, _, a := decoded.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), a)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "relatorio_03-2026.pdf", Filename("03/2026"))
}
