package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"finsight/internal/models"
	"finsight/internal/storage"
	"finsight/pkg/config"
)

// pipelineState tracks where a document is in its run. Page-level failures
// during extracting never reach stateFailed; only rendering and
// selecting/aggregating can take the whole document down.
type pipelineState string

const (
	stateRendering   pipelineState = "rendering"
	stateExtracting  pipelineState = "extracting"
	stateAggregating pipelineState = "aggregating"
	statePersisting  pipelineState = "persisting"
	stateDone        pipelineState = "done"
	stateFailed      pipelineState = "failed"
)

// PageRenderer renders a stored document into ordered page images.
type PageRenderer interface {
	Render(ctx context.Context, data []byte, contentType string) ([]models.PageImage, error)
}

// FieldExtractor extracts raw structured data from one page image.
type FieldExtractor interface {
	ExtractPage(ctx context.Context, page models.PageImage, kind models.DocumentKind) (models.RawExtraction, error)
}

// DocumentStore is the slice of the document repository the pipeline needs.
type DocumentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	SetStatus(ctx context.Context, id uuid.UUID, status models.DocumentStatus, errorMessage string) error
}

// RecordStore persists canonical extraction results keyed by document ID.
type RecordStore interface {
	UpsertPaystub(ctx context.Context, documentID uuid.UUID, fields *models.PaystubFields) error
	UpsertStatement(ctx context.Context, documentID uuid.UUID, record *models.StatementRecord) error
}

// PipelineService drives one document through
// rendering -> extracting -> aggregating -> persisting. Runs for different
// documents are independent and share no state; within one run, per-page
// extraction fans out under a bounded worker limit and results are re-ordered
// by page index before aggregation, because the merge rules depend on page
// order rather than completion order.
type PipelineService struct {
	renderer   PageRenderer
	extractor  FieldExtractor
	normalizer *Normalizer
	blobs      storage.BlobStore
	documents  DocumentStore
	records    RecordStore
	cfg        config.PipelineConfig
	auditPages bool
	logger     *zap.Logger
}

func NewPipelineService(
	renderer PageRenderer,
	extractor FieldExtractor,
	blobs storage.BlobStore,
	documents DocumentStore,
	records RecordStore,
	cfg config.PipelineConfig,
	auditPages bool,
	logger *zap.Logger,
) *PipelineService {
	return &PipelineService{
		renderer:   renderer,
		extractor:  extractor,
		normalizer: NewNormalizer(DateOrder(cfg.DateOrder)),
		blobs:      blobs,
		documents:  documents,
		records:    records,
		cfg:        cfg,
		auditPages: auditPages,
		logger:     logger,
	}
}

// Run processes one document end to end and returns the canonical result
// that was persisted. Fatal failures flip the document to failed and come
// back as typed errors (RenderError, NoUsableDataError); a cancelled run
// persists nothing and leaves the document status untouched.
func (s *PipelineService) Run(ctx context.Context, documentID uuid.UUID) (*models.CanonicalResult, error) {
	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}

	log := s.logger.With(
		zap.String("document_id", doc.ID.String()),
		zap.String("kind", string(doc.Kind)),
	)
	started := time.Now()

	s.transition(log, stateRendering)
	pages, err := s.renderPages(ctx, doc)
	if err != nil {
		return nil, s.fail(ctx, log, doc, err)
	}

	s.transition(log, stateExtracting)
	outcomes := s.extractAllPages(ctx, doc.Kind, pages)
	if err := ctx.Err(); err != nil {
		// Cancelled mid-extraction: discard everything, persist nothing.
		log.Info("Pipeline run cancelled", zap.Error(err))
		return nil, err
	}

	s.transition(log, stateAggregating)
	result, err := s.buildResult(doc, pages, outcomes)
	if err != nil {
		return nil, s.fail(ctx, log, doc, err)
	}

	s.transition(log, statePersisting)
	if err := ctx.Err(); err != nil {
		log.Info("Pipeline run cancelled before persisting", zap.Error(err))
		return nil, err
	}
	if err := s.persist(ctx, doc, result); err != nil {
		return nil, s.fail(ctx, log, doc, err)
	}

	s.transition(log, stateDone)
	log.Info("Document processed",
		zap.Int("pages", len(pages)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

func (s *PipelineService) transition(log *zap.Logger, state pipelineState) {
	log.Debug("Pipeline state", zap.String("state", string(state)))
}

func (s *PipelineService) renderPages(ctx context.Context, doc *models.Document) ([]models.PageImage, error) {
	data, err := s.blobs.Fetch(ctx, doc.SourceRef)
	if err != nil {
		return nil, &RenderError{Reason: "failed to fetch source blob", Err: err}
	}

	pages, err := s.renderer.Render(ctx, data, "")
	if err != nil {
		return nil, err
	}

	if s.auditPages {
		s.persistAuditPages(ctx, doc, pages)
	}

	return pages, nil
}

// persistAuditPages stores rendered pages next to the source document for
// debugging. Best effort: audit failures never affect the run.
func (s *PipelineService) persistAuditPages(ctx context.Context, doc *models.Document, pages []models.PageImage) {
	for _, page := range pages {
		name := fmt.Sprintf("pages/%s/page-%d.png", doc.ID, page.Index)
		if _, err := s.blobs.Put(ctx, name, page.Data, page.ContentType); err != nil {
			s.logger.Warn("Failed to persist audit page",
				zap.String("document_id", doc.ID.String()),
				zap.Int("page", page.Index),
				zap.Error(err),
			)
		}
	}
}

// pageOutcome carries one page through extract+normalize. Exactly one of the
// typed fields is set on success; a dropped page leaves both nil.
type pageOutcome struct {
	paystub   *models.PaystubPage
	statement *models.StatementPage
}

// extractAllPages fans extraction out over a bounded worker pool and collects
// results indexed by page so downstream order-sensitive reducers see pages in
// page order, not completion order. A failed page is logged and dropped; it
// never fails the document here.
func (s *PipelineService) extractAllPages(ctx context.Context, kind models.DocumentKind, pages []models.PageImage) []pageOutcome {
	outcomes := make([]pageOutcome, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.PageWorkers)

	for i, page := range pages {
		g.Go(func() error {
			raw, err := s.extractPageWithRetry(gctx, page, kind)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					s.logger.Warn("Page dropped from candidate set",
						zap.Int("page", page.Index),
						zap.Error(err),
					)
				}
				return nil
			}

			switch kind {
			case models.KindPaystub:
				normalized := s.normalizer.NormalizePaystub(raw, page.Index)
				outcomes[i] = pageOutcome{paystub: &normalized}
			case models.KindBankStatement:
				normalized := s.normalizer.NormalizeStatement(raw, page.Index)
				outcomes[i] = pageOutcome{statement: &normalized}
			}
			return nil
		})
	}

	_ = g.Wait()
	return outcomes
}

// extractPageWithRetry runs one page extraction with a per-attempt timeout
// and the configured number of retries. A timed-out page is treated exactly
// like any other extraction failure.
func (s *PipelineService) extractPageWithRetry(ctx context.Context, page models.PageImage, kind models.DocumentKind) (models.RawExtraction, error) {
	var lastErr error
	attempts := 1 + s.cfg.PageRetries
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if s.cfg.PageTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, s.cfg.PageTimeout)
		}
		raw, err := s.extractor.ExtractPage(attemptCtx, page, kind)
		cancel()

		if err == nil {
			return raw, nil
		}
		lastErr = err

		if attempt < attempts {
			s.logger.Debug("Retrying page extraction",
				zap.Int("page", page.Index),
				zap.Int("attempt", attempt),
			)
		}
	}
	return nil, lastErr
}

// buildResult runs the kind-specific selection or aggregation over the
// surviving candidate set.
func (s *PipelineService) buildResult(doc *models.Document, pages []models.PageImage, outcomes []pageOutcome) (*models.CanonicalResult, error) {
	result := &models.CanonicalResult{
		DocumentID: doc.ID,
		Kind:       doc.Kind,
	}

	switch doc.Kind {
	case models.KindPaystub:
		candidates := make([]models.PaystubPage, 0, len(outcomes))
		for _, o := range outcomes {
			if o.paystub != nil {
				candidates = append(candidates, *o.paystub)
			}
		}
		fields, pageIndex, err := SelectPaystub(candidates)
		if err != nil {
			var noData *NoUsableDataError
			if errors.As(err, &noData) {
				noData.Pages = len(pages)
			}
			return nil, err
		}
		s.logger.Debug("Paystub page selected", zap.Int("page", pageIndex))
		result.Paystub = &fields

	case models.KindBankStatement:
		candidates := make([]models.StatementPage, 0, len(outcomes))
		for _, o := range outcomes {
			if o.statement != nil {
				candidates = append(candidates, *o.statement)
			}
		}
		if len(candidates) == 0 {
			// Every page failed extraction; an empty statement is only
			// acceptable when pages were actually read.
			return nil, &NoUsableDataError{Pages: len(pages)}
		}
		record := AggregateStatement(candidates)
		result.Statement = &record

	default:
		return nil, fmt.Errorf("unknown document kind %q", doc.Kind)
	}

	return result, nil
}

// persist writes the canonical record and flips the document to completed.
// Exactly one record upsert and one status update per successful run.
func (s *PipelineService) persist(ctx context.Context, doc *models.Document, result *models.CanonicalResult) error {
	switch {
	case result.Paystub != nil:
		if err := s.records.UpsertPaystub(ctx, doc.ID, result.Paystub); err != nil {
			return fmt.Errorf("upsert paystub record: %w", err)
		}
	case result.Statement != nil:
		if err := s.records.UpsertStatement(ctx, doc.ID, result.Statement); err != nil {
			return fmt.Errorf("upsert statement record: %w", err)
		}
	}

	if err := s.documents.SetStatus(ctx, doc.ID, models.StatusCompleted, ""); err != nil {
		return fmt.Errorf("mark document completed: %w", err)
	}
	return nil
}

// fail marks the document failed and hands the fatal error back to the
// caller as a typed result. The status write is best effort; the original
// error always wins.
func (s *PipelineService) fail(ctx context.Context, log *zap.Logger, doc *models.Document, cause error) error {
	s.transition(log, stateFailed)
	log.Error("Document processing failed", zap.Error(cause))

	if err := s.documents.SetStatus(ctx, doc.ID, models.StatusFailed, cause.Error()); err != nil {
		log.Error("Failed to mark document failed", zap.Error(err))
	}
	return cause
}
