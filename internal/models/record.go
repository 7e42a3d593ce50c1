package models

import "github.com/google/uuid"

// PageImage is one rendered page of a source document. Pages are 1-indexed
// and live only for the duration of a single pipeline run.
type PageImage struct {
	Index       int
	Data        []byte
	ContentType string
}

// RawExtraction is the untrusted per-page output of the vision model.
// Monetary fields may arrive as strings with currency symbols, dates in
// arbitrary formats, and any field may be absent or null.
type RawExtraction map[string]any

// PaystubFields is the typed per-page result for a paystub. Every field is
// optional: a nil value means the page did not yield it.
type PaystubFields struct {
	GrossPay       *float64 `json:"gross_pay"`
	NetPay         *float64 `json:"net_pay"`
	PayPeriodStart *string  `json:"pay_period_start"`
	PayPeriodEnd   *string  `json:"pay_period_end"`
}

// FieldCount reports how many of the four paystub fields are populated.
func (f PaystubFields) FieldCount() int {
	n := 0
	if f.GrossPay != nil {
		n++
	}
	if f.NetPay != nil {
		n++
	}
	if f.PayPeriodStart != nil {
		n++
	}
	if f.PayPeriodEnd != nil {
		n++
	}
	return n
}

// PaystubPage pairs normalized paystub fields with the page they came from.
type PaystubPage struct {
	PageIndex int
	Fields    PaystubFields
}

// Transaction is one ledger line from a bank statement. Amount is signed:
// negative for expenses/withdrawals, positive for income/deposits. Balance is
// the account balance immediately after the transaction. Duplicates are
// preserved, they represent real duplicate ledger lines.
type Transaction struct {
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Amount      float64 `json:"amount"`
	Balance     float64 `json:"balance"`
}

// StatementPage is the typed per-page result for a bank statement. Totals
// default to zero when the page did not report them; EndingBalance stays nil
// when the page reported none.
type StatementPage struct {
	PageIndex        int
	StatementMonth   *string
	TotalDeposits    float64
	TotalWithdrawals float64
	EndingBalance    *float64
	Transactions     []Transaction
}

// StatementRecord is the aggregated, canonical bank statement built from all
// pages of one document.
type StatementRecord struct {
	StatementMonth   *string       `json:"statement_month"`
	TotalDeposits    float64       `json:"total_deposits"`
	TotalWithdrawals float64       `json:"total_withdrawals"`
	EndingBalance    float64       `json:"ending_balance"`
	Transactions     []Transaction `json:"transactions"`
}

// CanonicalResult is the single record persisted for a document. Exactly one
// of Paystub or Statement is set, discriminated by Kind.
type CanonicalResult struct {
	DocumentID uuid.UUID        `json:"document_id"`
	Kind       DocumentKind     `json:"kind"`
	Paystub    *PaystubFields   `json:"paystub,omitempty"`
	Statement  *StatementRecord `json:"statement,omitempty"`
}
