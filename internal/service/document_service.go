package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"finsight/internal/models"
	"finsight/internal/storage"
)

// maxUploadSize caps a single document upload at 25 MB.
const maxUploadSize = 25 << 20

// DocumentCatalog is the slice of the document repository the catalog
// operations need.
type DocumentCatalog interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	List(ctx context.Context, limit, offset int) ([]*models.Document, error)
}

// RecordReader loads persisted extraction results for completed documents.
type RecordReader interface {
	GetPaystubByDocumentID(ctx context.Context, documentID uuid.UUID) (*models.PaystubFields, error)
	GetStatementByDocumentID(ctx context.Context, documentID uuid.UUID) (*models.StatementRecord, error)
}

// DocumentService handles the document catalog: uploads into blob storage,
// metadata rows, and result lookups. Processing itself lives in
// PipelineService.
type DocumentService struct {
	blobs     storage.BlobStore
	documents DocumentCatalog
	records   RecordReader
	logger    *zap.Logger
}

func NewDocumentService(blobs storage.BlobStore, documents DocumentCatalog, records RecordReader, logger *zap.Logger) *DocumentService {
	return &DocumentService{
		blobs:     blobs,
		documents: documents,
		records:   records,
		logger:    logger,
	}
}

// UploadDocument stores the file in blob storage and registers a pending
// document row. The blob name is keyed by the document ID so re-uploads of
// the same file never collide.
func (s *DocumentService) UploadDocument(ctx context.Context, file io.Reader, fileName string, kind models.DocumentKind) (*models.Document, error) {
	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("uploaded file is empty")
	}
	if len(data) > maxUploadSize {
		return nil, fmt.Errorf("uploaded file exceeds %d bytes", maxUploadSize)
	}

	id := uuid.New()
	ext := strings.ToLower(filepath.Ext(fileName))
	blobName := fmt.Sprintf("documents/%s%s", id, ext)

	sourceRef, err := s.blobs.Put(ctx, blobName, data, contentTypeForExt(ext))
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	now := time.Now()
	doc := &models.Document{
		ID:        id,
		Kind:      kind,
		FileName:  fileName,
		FileSize:  int64(len(data)),
		SourceRef: sourceRef,
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	s.logger.Info("Document uploaded",
		zap.String("document_id", id.String()),
		zap.String("kind", string(kind)),
		zap.Int("size", len(data)),
	)

	return doc, nil
}

func (s *DocumentService) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	return s.documents.GetByID(ctx, id)
}

func (s *DocumentService) ListDocuments(ctx context.Context, limit, offset int) ([]*models.Document, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	return s.documents.List(ctx, limit, offset)
}

// GetResult returns the document together with whichever record its kind
// produced. Both record pointers are nil until processing completes.
func (s *DocumentService) GetResult(ctx context.Context, id uuid.UUID) (*models.Document, *models.PaystubFields, *models.StatementRecord, error) {
	doc, err := s.documents.GetByID(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}

	if doc.Status != models.StatusCompleted {
		return doc, nil, nil, nil
	}

	switch doc.Kind {
	case models.KindPaystub:
		fields, err := s.records.GetPaystubByDocumentID(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, nil, nil, ErrRecordMissing
			}
			return nil, nil, nil, fmt.Errorf("load paystub record: %w", err)
		}
		return doc, fields, nil, nil
	case models.KindBankStatement:
		record, err := s.records.GetStatementByDocumentID(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, nil, nil, ErrRecordMissing
			}
			return nil, nil, nil, fmt.Errorf("load statement record: %w", err)
		}
		return doc, nil, record, nil
	}

	return doc, nil, nil, nil
}

func contentTypeForExt(ext string) string {
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
