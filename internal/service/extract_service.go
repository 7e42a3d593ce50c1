package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"finsight/internal/models"
)

// paystubPrompt fixes the exact output shape for paystub pages. Constraining
// the model to one rigid schema per document kind is what keeps downstream
// normalization tractable.
const paystubPrompt = `You are a payroll document parser. The attached image is one page of a paystub.

Extract these fields and return a bare JSON object with EXACTLY these keys:
{
  "gross_pay": number or null,
  "net_pay": number or null,
  "pay_period_start": "YYYY-MM-DD" or null,
  "pay_period_end": "YYYY-MM-DD" or null
}

Rules:
- gross_pay and net_pay are the totals for this pay period, not year-to-date.
- Use null for any field not visible on this page. Never invent values.
- Return ONLY valid raw JSON with no other text.
- Do NOT wrap the response in code fences. Do NOT use ` + "```json" + ` or any Markdown.
- Output must begin with "{" and end with "}".`

// statementPrompt fixes the output shape for bank statement pages.
const statementPrompt = `You are a bank statement parser. The attached image is one page of a bank statement.

Extract the data and return a bare JSON object with EXACTLY these keys:
{
  "statement_month": "YYYY-MM-DD" or null,
  "total_deposits": number or null,
  "total_withdrawals": number or null,
  "ending_balance": number or null,
  "transactions": [
    {
      "date": "YYYY-MM-DD",
      "description": string,
      "category": string,
      "amount": number,
      "balance": number
    }
  ]
}

Rules:
- statement_month is the first day of the statement period.
- amount is signed: negative for withdrawals and payments, positive for deposits.
- balance is the account balance immediately after the transaction.
- Include EVERY transaction line visible on this page, in the order shown.
- If this page has no transactions (cover or summary page), use an empty array.
- Use null for any other field not visible on this page. Never invent values.
- Return ONLY valid raw JSON with no other text.
- Do NOT wrap the response in code fences. Do NOT use ` + "```json" + ` or any Markdown.
- Output must begin with "{" and end with "}".`

// repairPrompt asks the model to reshape its own malformed output into the
// bare object the instructions demanded. Text-only, no attachment needed.
const repairPrompt = `The text below was produced by a document parser and was supposed to be a single bare JSON object, but it is not valid JSON.

Reformat it into ONE valid JSON object. Keep every key and value that is present; never add, invent, or translate anything.

Return ONLY the JSON object with no other text and no code fences. Output must begin with "{" and end with "}".

Text:
%s`

// visionBackend is the slice of VisionService the extractor needs.
type visionBackend interface {
	UploadImage(ctx context.Context, data []byte, fileName, contentType string) (string, error)
	CompleteWithImage(ctx context.Context, instructions, fileID string) (string, error)
	CompleteText(ctx context.Context, prompt string) (string, error)
}

// ExtractService turns one page image into raw, untrusted structured output
// via a single vision model call. Failures here are per-page: the caller
// drops the page and continues with the rest of the document.
type ExtractService struct {
	vision visionBackend
	logger *zap.Logger
}

func NewExtractService(vision visionBackend, logger *zap.Logger) *ExtractService {
	return &ExtractService{vision: vision, logger: logger}
}

func (s *ExtractService) ExtractPage(ctx context.Context, page models.PageImage, kind models.DocumentKind) (models.RawExtraction, error) {
	var prompt string
	switch kind {
	case models.KindPaystub:
		prompt = paystubPrompt
	case models.KindBankStatement:
		prompt = statementPrompt
	default:
		return nil, &ExtractionError{Page: page.Index, Err: fmt.Errorf("unknown document kind %q", kind)}
	}

	ext := ".png"
	if page.ContentType == "image/jpeg" {
		ext = ".jpg"
	}
	fileName := fmt.Sprintf("page-%d%s", page.Index, ext)

	fileID, err := s.vision.UploadImage(ctx, page.Data, fileName, page.ContentType)
	if err != nil {
		return nil, &ExtractionError{Page: page.Index, Err: fmt.Errorf("upload: %w", err)}
	}

	content, err := s.vision.CompleteWithImage(ctx, prompt, fileID)
	if err != nil {
		return nil, &ExtractionError{Page: page.Index, Err: fmt.Errorf("completion: %w", err)}
	}

	raw, err := parseModelObject(content)
	if err != nil {
		raw, err = s.repairModelObject(ctx, content)
		if err != nil {
			s.logger.Warn("Model returned unparseable content",
				zap.Int("page", page.Index),
				zap.Int("length", len(content)),
			)
			return nil, &ExtractionError{Page: page.Index, Err: err}
		}
		s.logger.Debug("Model output repaired", zap.Int("page", page.Index))
	}

	s.logger.Debug("Page extracted",
		zap.Int("page", page.Index),
		zap.String("kind", string(kind)),
		zap.Int("fields", len(raw)),
	)

	return raw, nil
}

// repairModelObject gives malformed output one text-only pass through the
// model, asking it to reshape its own answer into a bare JSON object.
func (s *ExtractService) repairModelObject(ctx context.Context, content string) (models.RawExtraction, error) {
	repaired, err := s.vision.CompleteText(ctx, fmt.Sprintf(repairPrompt, content))
	if err != nil {
		return nil, fmt.Errorf("repair completion: %w", err)
	}
	return parseModelObject(repaired)
}

// parseModelObject unmarshals the model response into a generic object,
// tolerating the markdown fencing and stray prose models produce despite
// instructions.
func parseModelObject(content string) (models.RawExtraction, error) {
	clean := cleanModelJSON(content)

	var raw models.RawExtraction
	if err := json.Unmarshal([]byte(clean), &raw); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	return raw, nil
}

// cleanModelJSON strips ```json fences and keeps only the outermost object
// when the model wrapped its answer in extra text.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
