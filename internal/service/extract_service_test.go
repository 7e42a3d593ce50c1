package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"finsight/internal/models"
)

type fakeVision struct {
	uploadErr    error
	completeErr  error
	response     string
	textResponse string
	textErr      error
	uploads      int
	completions  int
	textCalls    int
}

func (f *fakeVision) UploadImage(ctx context.Context, data []byte, fileName, contentType string) (string, error) {
	f.uploads++
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return "file-123", nil
}

func (f *fakeVision) CompleteWithImage(ctx context.Context, instructions, fileID string) (string, error) {
	f.completions++
	if f.completeErr != nil {
		return "", f.completeErr
	}
	return f.response, nil
}

func (f *fakeVision) CompleteText(ctx context.Context, prompt string) (string, error) {
	f.textCalls++
	if f.textErr != nil {
		return "", f.textErr
	}
	return f.textResponse, nil
}

func testPage(index int) models.PageImage {
	return models.PageImage{Index: index, Data: []byte("png-bytes"), ContentType: "image/png"}
}

func TestExtractPage(t *testing.T) {
	vision := &fakeVision{response: `{"gross_pay": 5000, "net_pay": 3750}`}
	svc := NewExtractService(vision, zap.NewNop())

	raw, err := svc.ExtractPage(context.Background(), testPage(1), models.KindPaystub)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, raw["gross_pay"])
	assert.Equal(t, 1, vision.uploads)
	assert.Equal(t, 1, vision.completions)
	assert.Zero(t, vision.textCalls)
}

func TestExtractPageFencedResponse(t *testing.T) {
	vision := &fakeVision{response: "```json\n{\"net_pay\": 3750}\n```"}
	svc := NewExtractService(vision, zap.NewNop())

	raw, err := svc.ExtractPage(context.Background(), testPage(1), models.KindPaystub)
	require.NoError(t, err)
	assert.Equal(t, 3750.0, raw["net_pay"])
}

func TestExtractPageWrappedInProse(t *testing.T) {
	vision := &fakeVision{response: "Here is the extracted data: {\"net_pay\": 100} hope that helps"}
	svc := NewExtractService(vision, zap.NewNop())

	raw, err := svc.ExtractPage(context.Background(), testPage(1), models.KindBankStatement)
	require.NoError(t, err)
	assert.Equal(t, 100.0, raw["net_pay"])
}

func TestExtractPageUploadFailure(t *testing.T) {
	vision := &fakeVision{uploadErr: errors.New("boom")}
	svc := NewExtractService(vision, zap.NewNop())

	_, err := svc.ExtractPage(context.Background(), testPage(3), models.KindPaystub)
	var extractErr *ExtractionError
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, 3, extractErr.Page)
	assert.Zero(t, vision.completions)
}

func TestExtractPageRepairsMalformedResponse(t *testing.T) {
	vision := &fakeVision{
		response:     `{"gross_pay": 5000,, "net_pay": 3750}`,
		textResponse: `{"gross_pay": 5000, "net_pay": 3750}`,
	}
	svc := NewExtractService(vision, zap.NewNop())

	raw, err := svc.ExtractPage(context.Background(), testPage(1), models.KindPaystub)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, raw["gross_pay"])
	assert.Equal(t, 1, vision.textCalls)
}

func TestExtractPageNonObjectResponse(t *testing.T) {
	// Repair pass cannot save output that carries no object at all.
	vision := &fakeVision{
		response:     "I could not read this page.",
		textResponse: "Still cannot read it.",
	}
	svc := NewExtractService(vision, zap.NewNop())

	_, err := svc.ExtractPage(context.Background(), testPage(2), models.KindPaystub)
	var extractErr *ExtractionError
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, 2, extractErr.Page)
	assert.Equal(t, 1, vision.textCalls)
}

func TestExtractPageRepairFailure(t *testing.T) {
	vision := &fakeVision{
		response: "not json",
		textErr:  errors.New("model unavailable"),
	}
	svc := NewExtractService(vision, zap.NewNop())

	_, err := svc.ExtractPage(context.Background(), testPage(4), models.KindBankStatement)
	var extractErr *ExtractionError
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, 4, extractErr.Page)
}

func TestExtractPageUnknownKind(t *testing.T) {
	svc := NewExtractService(&fakeVision{}, zap.NewNop())

	_, err := svc.ExtractPage(context.Background(), testPage(1), models.DocumentKind("invoice"))
	var extractErr *ExtractionError
	require.ErrorAs(t, err, &extractErr)
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fence without language", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"leading prose", `Sure: {"a": 1}`, `{"a": 1}`},
		{"trailing prose", `{"a": 1} Done.`, `{"a": 1}`},
		{"whitespace", "  \n {\"a\": 1} \n ", `{"a": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanModelJSON(tt.input))
		})
	}
}
