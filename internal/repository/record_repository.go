package repository

import (
	"context"
	"time"

	"finsight/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type RecordRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewRecordRepository(db *pgxpool.Pool, logger *zap.Logger) *RecordRepository {
	return &RecordRepository{
		db:     db,
		logger: logger,
	}
}

// UpsertPaystub stores the selected paystub fields for a document, replacing
// any record from a previous run.
func (r *RecordRepository) UpsertPaystub(ctx context.Context, documentID uuid.UUID, fields *models.PaystubFields) error {
	query := squirrel.Insert("paystub_records").
		Columns("document_id", "gross_pay", "net_pay", "pay_period_start", "pay_period_end", "updated_at").
		Values(documentID, fields.GrossPay, fields.NetPay, isoDateOrNil(fields.PayPeriodStart), isoDateOrNil(fields.PayPeriodEnd), time.Now()).
		Suffix(`ON CONFLICT (document_id) DO UPDATE SET
			gross_pay = EXCLUDED.gross_pay,
			net_pay = EXCLUDED.net_pay,
			pay_period_start = EXCLUDED.pay_period_start,
			pay_period_end = EXCLUDED.pay_period_end,
			updated_at = EXCLUDED.updated_at`).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// UpsertStatement stores the aggregated statement and its transactions in one
// transaction. Transactions are replaced wholesale: a rerun must not leave
// rows from the previous extraction behind.
func (r *RecordRepository) UpsertStatement(ctx context.Context, documentID uuid.UUID, record *models.StatementRecord) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	upsert := squirrel.Insert("statement_records").
		Columns("document_id", "statement_month", "total_deposits", "total_withdrawals", "ending_balance", "updated_at").
		Values(documentID, isoDateOrNil(record.StatementMonth), record.TotalDeposits, record.TotalWithdrawals, record.EndingBalance, time.Now()).
		Suffix(`ON CONFLICT (document_id) DO UPDATE SET
			statement_month = EXCLUDED.statement_month,
			total_deposits = EXCLUDED.total_deposits,
			total_withdrawals = EXCLUDED.total_withdrawals,
			ending_balance = EXCLUDED.ending_balance,
			updated_at = EXCLUDED.updated_at`).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := upsert.ToSql()
	if err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, sql, args...); err != nil {
		return err
	}

	del := squirrel.Delete("statement_transactions").
		Where(squirrel.Eq{"document_id": documentID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err = del.ToSql()
	if err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, sql, args...); err != nil {
		return err
	}

	if len(record.Transactions) > 0 {
		insert := squirrel.Insert("statement_transactions").
			Columns("document_id", "position", "tx_date", "description", "category", "amount", "balance").
			PlaceholderFormat(squirrel.Dollar)

		for i, t := range record.Transactions {
			date := t.Date
			insert = insert.Values(documentID, i, isoDateOrNil(&date), t.Description, t.Category, t.Amount, t.Balance)
		}

		sql, args, err = insert.ToSql()
		if err != nil {
			return err
		}
		if _, err = tx.Exec(ctx, sql, args...); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// GetPaystubByDocumentID returns the stored paystub record or pgx.ErrNoRows.
func (r *RecordRepository) GetPaystubByDocumentID(ctx context.Context, documentID uuid.UUID) (*models.PaystubFields, error) {
	query := squirrel.Select("gross_pay", "net_pay", "pay_period_start", "pay_period_end").
		From("paystub_records").
		Where(squirrel.Eq{"document_id": documentID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var fields models.PaystubFields
	var start, end *time.Time
	err = r.db.QueryRow(ctx, sql, args...).Scan(&fields.GrossPay, &fields.NetPay, &start, &end)
	if err != nil {
		return nil, err
	}

	fields.PayPeriodStart = isoDateString(start)
	fields.PayPeriodEnd = isoDateString(end)
	return &fields, nil
}

// GetStatementByDocumentID returns the stored statement with its transactions
// in persisted order, or pgx.ErrNoRows when no record exists.
func (r *RecordRepository) GetStatementByDocumentID(ctx context.Context, documentID uuid.UUID) (*models.StatementRecord, error) {
	query := squirrel.Select("statement_month", "total_deposits", "total_withdrawals", "ending_balance").
		From("statement_records").
		Where(squirrel.Eq{"document_id": documentID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var record models.StatementRecord
	var month *time.Time
	err = r.db.QueryRow(ctx, sql, args...).Scan(&month, &record.TotalDeposits, &record.TotalWithdrawals, &record.EndingBalance)
	if err != nil {
		return nil, err
	}
	record.StatementMonth = isoDateString(month)

	txQuery := squirrel.Select("tx_date", "description", "category", "amount", "balance").
		From("statement_transactions").
		Where(squirrel.Eq{"document_id": documentID}).
		OrderBy("position ASC").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err = txQuery.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	record.Transactions = []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		var date *time.Time
		if err := rows.Scan(&date, &t.Description, &t.Category, &t.Amount, &t.Balance); err != nil {
			return nil, err
		}
		if s := isoDateString(date); s != nil {
			t.Date = *s
		}
		record.Transactions = append(record.Transactions, t)
	}

	return &record, nil
}

// isoDateOrNil converts a normalized YYYY-MM-DD string to a DATE value,
// mapping absent or empty strings to NULL.
func isoDateOrNil(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.ParseInLocation("2006-01-02", *s, time.UTC)
	if err != nil {
		return nil
	}
	return &t
}

func isoDateString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}
