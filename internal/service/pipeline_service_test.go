package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"finsight/internal/models"
	"finsight/pkg/config"
)

type fakeBlobStore struct {
	data     map[string][]byte
	fetchErr error
	mu       sync.Mutex
	puts     []string
}

func (f *fakeBlobStore) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	data, ok := f.data[ref]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (f *fakeBlobStore) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, name)
	return "gs://test-bucket/" + name, nil
}

type fakeRenderer struct {
	pages []models.PageImage
	err   error
}

func (f *fakeRenderer) Render(ctx context.Context, data []byte, contentType string) ([]models.PageImage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pages, nil
}

// fakeExtractor replays a queue of responses per page index, so retry
// behavior is scriptable. Safe for concurrent use.
type fakeExtractor struct {
	mu        sync.Mutex
	responses map[int][]extractReply
	calls     map[int]int
	onCall    func()
}

type extractReply struct {
	raw models.RawExtraction
	err error
}

func (f *fakeExtractor) ExtractPage(ctx context.Context, page models.PageImage, kind models.DocumentKind) (models.RawExtraction, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[int]int{}
	}
	f.calls[page.Index]++
	queue := f.responses[page.Index]
	var reply extractReply
	if len(queue) > 0 {
		reply = queue[0]
		f.responses[page.Index] = queue[1:]
	} else {
		reply = extractReply{err: errors.New("no scripted reply")}
	}
	onCall := f.onCall
	f.mu.Unlock()

	if onCall != nil {
		onCall()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return reply.raw, reply.err
}

type statusChange struct {
	status       models.DocumentStatus
	errorMessage string
}

type fakeDocStore struct {
	doc      *models.Document
	mu       sync.Mutex
	statuses []statusChange
}

func (f *fakeDocStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	if f.doc == nil || f.doc.ID != id {
		return nil, errors.New("document not found")
	}
	return f.doc, nil
}

func (f *fakeDocStore) SetStatus(ctx context.Context, id uuid.UUID, status models.DocumentStatus, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, statusChange{status: status, errorMessage: errorMessage})
	return nil
}

func (f *fakeDocStore) lastStatus() (statusChange, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return statusChange{}, false
	}
	return f.statuses[len(f.statuses)-1], true
}

type fakeRecordStore struct {
	mu         sync.Mutex
	paystubs   map[uuid.UUID]*models.PaystubFields
	statements map[uuid.UUID]*models.StatementRecord
}

func (f *fakeRecordStore) UpsertPaystub(ctx context.Context, documentID uuid.UUID, fields *models.PaystubFields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paystubs == nil {
		f.paystubs = map[uuid.UUID]*models.PaystubFields{}
	}
	f.paystubs[documentID] = fields
	return nil
}

func (f *fakeRecordStore) UpsertStatement(ctx context.Context, documentID uuid.UUID, record *models.StatementRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statements == nil {
		f.statements = map[uuid.UUID]*models.StatementRecord{}
	}
	f.statements[documentID] = record
	return nil
}

func (f *fakeRecordStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.paystubs) + len(f.statements)
}

func pipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		PageWorkers: 2,
		PageTimeout: 0,
		PageRetries: 0,
		DateOrder:   "MDY",
	}
}

func testDocument(kind models.DocumentKind) *models.Document {
	return &models.Document{
		ID:        uuid.New(),
		Kind:      kind,
		FileName:  "statement.pdf",
		SourceRef: "gs://test-bucket/documents/doc.pdf",
		Status:    models.StatusPending,
	}
}

func newTestPipeline(doc *models.Document, extractor *fakeExtractor, pages int, cfg config.PipelineConfig) (*PipelineService, *fakeDocStore, *fakeRecordStore) {
	rendered := make([]models.PageImage, 0, pages)
	for i := 1; i <= pages; i++ {
		rendered = append(rendered, models.PageImage{Index: i, Data: []byte("page"), ContentType: "image/png"})
	}

	blobs := &fakeBlobStore{data: map[string][]byte{doc.SourceRef: []byte("%PDF")}}
	docs := &fakeDocStore{doc: doc}
	records := &fakeRecordStore{}

	svc := NewPipelineService(
		&fakeRenderer{pages: rendered},
		extractor,
		blobs,
		docs,
		records,
		cfg,
		false,
		zap.NewNop(),
	)
	return svc, docs, records
}

func TestPipelineStatementEndToEnd(t *testing.T) {
	doc := testDocument(models.KindBankStatement)

	extractor := &fakeExtractor{responses: map[int][]extractReply{
		1: {{raw: models.RawExtraction{
			"statement_month":   "2024-01-01",
			"total_deposits":    200.0,
			"total_withdrawals": 0.0,
			"ending_balance":    1200.0,
			"transactions": []any{
				map[string]any{"date": "01/03/2024", "description": "PAYROLL", "category": "Income", "amount": 200.0, "balance": 1200.0},
			},
		}}},
		2: {{raw: models.RawExtraction{
			"total_deposits":    0.0,
			"total_withdrawals": 50.0,
			"transactions": []any{
				map[string]any{"date": "01/02/2024", "description": "RENT", "amount": -50.0, "balance": 1150.0},
			},
		}}},
	}}

	svc, docs, records := newTestPipeline(doc, extractor, 2, pipelineConfig())

	result, err := svc.Run(context.Background(), doc.ID)
	require.NoError(t, err)
	require.NotNil(t, result.Statement)
	assert.Nil(t, result.Paystub)

	stmt := result.Statement
	require.NotNil(t, stmt.StatementMonth)
	assert.Equal(t, "2024-01-01", *stmt.StatementMonth)
	assert.Equal(t, 200.0, stmt.TotalDeposits)
	assert.Equal(t, 50.0, stmt.TotalWithdrawals)
	// Page 2 reported no explicit ending balance; its last transaction
	// balance stands in and, being the later page, wins.
	assert.Equal(t, 1150.0, stmt.EndingBalance)

	require.Len(t, stmt.Transactions, 2)
	assert.Equal(t, "2024-01-02", stmt.Transactions[0].Date)
	assert.Equal(t, "RENT", stmt.Transactions[0].Description)
	assert.Equal(t, DefaultCategory, stmt.Transactions[0].Category)
	assert.Equal(t, "2024-01-03", stmt.Transactions[1].Date)
	assert.Equal(t, "Income", stmt.Transactions[1].Category)

	assert.Equal(t, stmt, records.statements[doc.ID])

	last, ok := docs.lastStatus()
	require.True(t, ok)
	assert.Equal(t, models.StatusCompleted, last.status)
}

func TestPipelinePaystubPicksDensestPage(t *testing.T) {
	doc := testDocument(models.KindPaystub)

	extractor := &fakeExtractor{responses: map[int][]extractReply{
		1: {{raw: models.RawExtraction{"gross_pay": 5000.0}}},
		2: {{raw: models.RawExtraction{
			"gross_pay":        5000.0,
			"net_pay":          3750.0,
			"pay_period_start": "2024-01-01",
			"pay_period_end":   "2024-01-15",
		}}},
	}}

	svc, docs, records := newTestPipeline(doc, extractor, 2, pipelineConfig())

	result, err := svc.Run(context.Background(), doc.ID)
	require.NoError(t, err)
	require.NotNil(t, result.Paystub)
	assert.Equal(t, 4, result.Paystub.FieldCount())
	assert.Equal(t, result.Paystub, records.paystubs[doc.ID])

	last, ok := docs.lastStatus()
	require.True(t, ok)
	assert.Equal(t, models.StatusCompleted, last.status)
}

func TestPipelinePageFailureIsNotFatal(t *testing.T) {
	doc := testDocument(models.KindBankStatement)

	extractor := &fakeExtractor{responses: map[int][]extractReply{
		1: {{err: &ExtractionError{Page: 1, Err: errors.New("model refused")}}},
		2: {{raw: models.RawExtraction{
			"statement_month": "2024-02-01",
			"transactions": []any{
				map[string]any{"date": "2024-02-05", "description": "GROCERY", "amount": -20.0, "balance": 480.0},
			},
		}}},
	}}

	svc, docs, _ := newTestPipeline(doc, extractor, 2, pipelineConfig())

	result, err := svc.Run(context.Background(), doc.ID)
	require.NoError(t, err)
	require.NotNil(t, result.Statement)
	require.Len(t, result.Statement.Transactions, 1)

	last, ok := docs.lastStatus()
	require.True(t, ok)
	assert.Equal(t, models.StatusCompleted, last.status)
}

func TestPipelineAllPagesFailed(t *testing.T) {
	doc := testDocument(models.KindBankStatement)

	extractor := &fakeExtractor{responses: map[int][]extractReply{
		1: {{err: &ExtractionError{Page: 1, Err: errors.New("bad output")}}},
		2: {{err: &ExtractionError{Page: 2, Err: errors.New("bad output")}}},
	}}

	svc, docs, records := newTestPipeline(doc, extractor, 2, pipelineConfig())

	_, err := svc.Run(context.Background(), doc.ID)
	var noData *NoUsableDataError
	require.ErrorAs(t, err, &noData)
	assert.Equal(t, 2, noData.Pages)
	assert.Zero(t, records.count())

	last, ok := docs.lastStatus()
	require.True(t, ok)
	assert.Equal(t, models.StatusFailed, last.status)
	assert.NotEmpty(t, last.errorMessage)
}

func TestPipelinePaystubAllNullPages(t *testing.T) {
	doc := testDocument(models.KindPaystub)

	extractor := &fakeExtractor{responses: map[int][]extractReply{
		1: {{raw: models.RawExtraction{}}},
	}}

	svc, _, records := newTestPipeline(doc, extractor, 1, pipelineConfig())

	_, err := svc.Run(context.Background(), doc.ID)
	var noData *NoUsableDataError
	require.ErrorAs(t, err, &noData)
	assert.Equal(t, 1, noData.Pages)
	assert.Zero(t, records.count())
}

func TestPipelineRenderFailureIsFatal(t *testing.T) {
	doc := testDocument(models.KindBankStatement)

	blobs := &fakeBlobStore{fetchErr: errors.New("bucket unreachable")}
	docs := &fakeDocStore{doc: doc}
	records := &fakeRecordStore{}
	svc := NewPipelineService(
		&fakeRenderer{},
		&fakeExtractor{},
		blobs,
		docs,
		records,
		pipelineConfig(),
		false,
		zap.NewNop(),
	)

	_, err := svc.Run(context.Background(), doc.ID)
	var renderErr *RenderError
	require.ErrorAs(t, err, &renderErr)
	assert.Zero(t, records.count())

	last, ok := docs.lastStatus()
	require.True(t, ok)
	assert.Equal(t, models.StatusFailed, last.status)
}

func TestPipelineRetriesFailedPage(t *testing.T) {
	doc := testDocument(models.KindPaystub)

	extractor := &fakeExtractor{responses: map[int][]extractReply{
		1: {
			{err: &ExtractionError{Page: 1, Err: errors.New("transient")}},
			{raw: models.RawExtraction{"gross_pay": 5000.0}},
		},
	}}

	cfg := pipelineConfig()
	cfg.PageRetries = 1
	svc, docs, _ := newTestPipeline(doc, extractor, 1, cfg)

	result, err := svc.Run(context.Background(), doc.ID)
	require.NoError(t, err)
	require.NotNil(t, result.Paystub)
	assert.Equal(t, 2, extractor.calls[1])

	last, ok := docs.lastStatus()
	require.True(t, ok)
	assert.Equal(t, models.StatusCompleted, last.status)
}

func TestPipelineCancellationPersistsNothing(t *testing.T) {
	doc := testDocument(models.KindBankStatement)

	ctx, cancel := context.WithCancel(context.Background())
	extractor := &fakeExtractor{
		responses: map[int][]extractReply{
			1: {{raw: models.RawExtraction{"statement_month": "2024-01-01"}}},
			2: {{raw: models.RawExtraction{}}},
		},
		onCall: cancel,
	}

	svc, docs, records := newTestPipeline(doc, extractor, 2, pipelineConfig())

	_, err := svc.Run(ctx, doc.ID)
	require.ErrorIs(t, err, context.Canceled)

	// A cancelled run leaves no trace: no records, no status transitions.
	assert.Zero(t, records.count())
	_, ok := docs.lastStatus()
	assert.False(t, ok)
}

func TestPipelineUnknownDocument(t *testing.T) {
	doc := testDocument(models.KindPaystub)
	svc, _, _ := newTestPipeline(doc, &fakeExtractor{}, 1, pipelineConfig())

	_, err := svc.Run(context.Background(), uuid.New())
	require.Error(t, err)
}
