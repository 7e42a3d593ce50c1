package service

import (
	"math"
	"strconv"
	"strings"
	"time"

	"finsight/internal/models"
)

// DateOrder resolves ambiguous slash-formatted dates ("01/02/2024").
type DateOrder string

const (
	MonthDayYear DateOrder = "MDY"
	DayMonthYear DateOrder = "DMY"
)

// DefaultCategory is assigned to transactions the model left uncategorized.
const DefaultCategory = "Uncategorized"

// Normalizer converts untrusted raw extractions into typed records. It never
// fails: any unparseable value degrades to null (paystub) or zero (statement
// totals) instead of aborting the page.
type Normalizer struct {
	dateOrder DateOrder
}

func NewNormalizer(dateOrder DateOrder) *Normalizer {
	if dateOrder != DayMonthYear {
		dateOrder = MonthDayYear
	}
	return &Normalizer{dateOrder: dateOrder}
}

// NormalizePaystub extracts the four paystub fields from raw model output.
func (n *Normalizer) NormalizePaystub(raw models.RawExtraction, pageIndex int) models.PaystubPage {
	return models.PaystubPage{
		PageIndex: pageIndex,
		Fields: models.PaystubFields{
			GrossPay:       parseMoney(raw["gross_pay"]),
			NetPay:         parseMoney(raw["net_pay"]),
			PayPeriodStart: n.normalizeDateValue(raw["pay_period_start"]),
			PayPeriodEnd:   n.normalizeDateValue(raw["pay_period_end"]),
		},
	}
}

// NormalizeStatement extracts one page of a bank statement. Totals default to
// zero because absence there means "not reported" rather than "unknown".
// When the model omitted ending_balance, the balance after the page's last
// transaction stands in for it.
func (n *Normalizer) NormalizeStatement(raw models.RawExtraction, pageIndex int) models.StatementPage {
	page := models.StatementPage{
		PageIndex:        pageIndex,
		StatementMonth:   n.normalizeDateValue(raw["statement_month"]),
		TotalDeposits:    moneyOrZero(raw["total_deposits"]),
		TotalWithdrawals: moneyOrZero(raw["total_withdrawals"]),
		EndingBalance:    parseMoney(raw["ending_balance"]),
		Transactions:     []models.Transaction{},
	}

	var lastBalance *float64
	for _, item := range asSlice(raw["transactions"]) {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}

		tx := models.Transaction{
			Description: sanitizeUTF8(asString(obj["description"])),
			Category:    sanitizeUTF8(asString(obj["category"])),
			Amount:      moneyOrZero(obj["amount"]),
		}
		if tx.Category == "" {
			tx.Category = DefaultCategory
		}
		if date := n.normalizeDateValue(obj["date"]); date != nil {
			tx.Date = *date
		}
		if balance := parseMoney(obj["balance"]); balance != nil {
			tx.Balance = *balance
			lastBalance = balance
		}

		page.Transactions = append(page.Transactions, tx)
	}

	if page.EndingBalance == nil && lastBalance != nil {
		page.EndingBalance = lastBalance
	}

	return page
}

// parseMoney turns an untrusted monetary value into a finite float. Strings
// are stripped of every character that is not a digit, minus sign, or decimal
// point before parsing ("$1,234.56" -> 1234.56). Returns nil on anything
// unparseable.
func parseMoney(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return finiteOrNil(t)
	case int:
		f := float64(t)
		return &f
	case string:
		var b strings.Builder
		for _, r := range t {
			if (r >= '0' && r <= '9') || r == '-' || r == '.' {
				b.WriteRune(r)
			}
		}
		cleaned := b.String()
		if cleaned == "" {
			return nil
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil
		}
		return finiteOrNil(f)
	default:
		return nil
	}
}

func moneyOrZero(v any) float64 {
	if f := parseMoney(v); f != nil {
		return *f
	}
	return 0
}

func finiteOrNil(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// unambiguousLayouts are tried before the slash-date fallback. All of them
// pin the month position, so they parse the same in every locale.
var unambiguousLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"2006-01-02T15:04:05Z07:00",
	"January 2006",
	"Jan 2006",
}

// normalizeDate parses a date in a permissive set of formats and renders it
// as YYYY-MM-DD. The result is built at UTC midnight so the day of month is
// never shifted by the executing timezone, and normalizing an already-ISO
// date returns it unchanged. Returns nil on failure.
func (n *Normalizer) normalizeDate(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	for _, layout := range unambiguousLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			out := t.Format("2006-01-02")
			return &out
		}
	}

	// Slash and dash dates with the year last are ambiguous; the configured
	// order decides which component is the month.
	sep := "/"
	if !strings.Contains(s, "/") {
		sep = "-"
	}
	parts := strings.Split(s, sep)
	if len(parts) != 3 {
		return nil
	}

	a, errA := strconv.Atoi(strings.TrimSpace(parts[0]))
	b, errB := strconv.Atoi(strings.TrimSpace(parts[1]))
	year, errY := strconv.Atoi(strings.TrimSpace(parts[2]))
	if errA != nil || errB != nil || errY != nil || year < 1000 {
		return nil
	}

	month, day := a, b
	if n.dateOrder == DayMonthYear {
		month, day = b, a
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (month 13, day 40); reject those.
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return nil
	}

	out := t.Format("2006-01-02")
	return &out
}

func (n *Normalizer) normalizeDateValue(v any) *string {
	return n.normalizeDate(asString(v))
}

func asString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}
