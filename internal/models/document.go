package models

import (
	"time"

	"github.com/google/uuid"
)

type DocumentKind string

const (
	KindPaystub       DocumentKind = "paystub"
	KindBankStatement DocumentKind = "bank_statement"
)

// ParseDocumentKind validates a user-supplied kind string.
func ParseDocumentKind(s string) (DocumentKind, bool) {
	switch DocumentKind(s) {
	case KindPaystub, KindBankStatement:
		return DocumentKind(s), true
	}
	return "", false
}

type DocumentStatus string

const (
	StatusPending   DocumentStatus = "pending"
	StatusCompleted DocumentStatus = "completed"
	StatusFailed    DocumentStatus = "failed"
)

type Document struct {
	ID           uuid.UUID      `db:"id"`
	Kind         DocumentKind   `db:"kind"`
	FileName     string         `db:"file_name"`
	FileSize     int64          `db:"file_size"`
	SourceRef    string         `db:"source_ref"`
	Status       DocumentStatus `db:"status"`
	ErrorMessage string         `db:"error_message"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	ProcessedAt  *time.Time     `db:"processed_at"`
}
