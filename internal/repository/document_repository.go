package repository

import (
	"context"
	"finsight/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type DocumentRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewDocumentRepository(db *pgxpool.Pool, logger *zap.Logger) *DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	query := squirrel.Insert("documents").
		Columns("id", "kind", "file_name", "file_size", "source_ref", "status", "error_message", "created_at", "updated_at").
		Values(doc.ID, doc.Kind, doc.FileName, doc.FileSize, doc.SourceRef, doc.Status, doc.ErrorMessage, doc.CreatedAt, doc.UpdatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	query := squirrel.Select("id", "kind", "file_name", "file_size", "source_ref", "status", "error_message", "created_at", "updated_at", "processed_at").
		From("documents").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var doc models.Document
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&doc.ID, &doc.Kind, &doc.FileName, &doc.FileSize, &doc.SourceRef, &doc.Status, &doc.ErrorMessage, &doc.CreatedAt, &doc.UpdatedAt, &doc.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}

	return &doc, nil
}

// SetStatus records a terminal (or reset) processing status. Terminal states
// also stamp processed_at.
func (r *DocumentRepository) SetStatus(ctx context.Context, id uuid.UUID, status models.DocumentStatus, errorMessage string) error {
	const maxErrLen = 2000
	if len(errorMessage) > maxErrLen {
		errorMessage = errorMessage[:maxErrLen]
	}

	query := squirrel.Update("documents").
		Set("status", status).
		Set("error_message", errorMessage).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)

	if status == models.StatusCompleted || status == models.StatusFailed {
		query = query.Set("processed_at", squirrel.Expr("NOW()"))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *DocumentRepository) List(ctx context.Context, limit, offset int) ([]*models.Document, error) {
	query := squirrel.Select("id", "kind", "file_name", "file_size", "source_ref", "status", "error_message", "created_at", "updated_at", "processed_at").
		From("documents").
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var documents []*models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(
			&doc.ID, &doc.Kind, &doc.FileName, &doc.FileSize, &doc.SourceRef, &doc.Status, &doc.ErrorMessage, &doc.CreatedAt, &doc.UpdatedAt, &doc.ProcessedAt,
		); err != nil {
			return nil, err
		}
		documents = append(documents, &doc)
	}

	return documents, nil
}
