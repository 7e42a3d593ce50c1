package service

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"net/http"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"finsight/internal/models"
)

// renderDPI is high enough for the vision model to read small statement
// print without producing oversized uploads.
const renderDPI = 200

type RenderService struct {
	logger *zap.Logger
}

func NewRenderService(logger *zap.Logger) *RenderService {
	return &RenderService{logger: logger}
}

// Render turns source document bytes into an ordered sequence of page
// images. PDFs are rasterized page by page via go-fitz; single-page image
// inputs pass through as a one-element sequence without rendering. Any
// failure here is a RenderError and fatal for the document, partial
// rendering is not meaningful.
func (s *RenderService) Render(ctx context.Context, data []byte, contentType string) ([]models.PageImage, error) {
	if len(data) == 0 {
		return nil, &RenderError{Reason: "empty document blob"}
	}

	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	switch {
	case contentType == "application/pdf":
		return s.renderPDF(ctx, data)
	case strings.HasPrefix(contentType, "image/"):
		return []models.PageImage{{Index: 1, Data: data, ContentType: contentType}}, nil
	default:
		return nil, &RenderError{Reason: fmt.Sprintf("unsupported content type %s", contentType)}
	}
}

func (s *RenderService) renderPDF(ctx context.Context, data []byte) ([]models.PageImage, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, &RenderError{Reason: "failed to open PDF", Err: err}
	}
	defer doc.Close()

	numPages := doc.NumPage()
	if numPages == 0 {
		return nil, &RenderError{Reason: "PDF has zero pages"}
	}

	pages := make([]models.PageImage, 0, numPages)
	for i := 0; i < numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := doc.ImageDPI(i, renderDPI)
		if err != nil {
			return nil, &RenderError{Reason: fmt.Sprintf("failed to rasterize page %d", i+1), Err: err}
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, &RenderError{Reason: fmt.Sprintf("failed to encode page %d", i+1), Err: err}
		}

		pages = append(pages, models.PageImage{
			Index:       i + 1,
			Data:        buf.Bytes(),
			ContentType: "image/png",
		})
	}

	s.logger.Info("PDF rendered",
		zap.Int("pages", numPages),
		zap.Int("dpi", renderDPI),
	)

	return pages, nil
}
