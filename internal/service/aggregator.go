package service

import (
	"slices"
	"strings"

	"finsight/internal/models"
)

// AggregateStatement folds normalized statement pages into one canonical
// record. Each field has its own merge rule, kept as a named reducer so the
// policy stays auditable and testable per field:
//
//   - statement month: first page that reported one wins
//   - totals: summed over pages that contributed at least one transaction
//   - ending balance: last page that reported one wins
//   - transactions: concatenated in page order, then stably sorted by date
//
// Pages must arrive in page order; callers re-order concurrent extraction
// results before aggregating. Zero contributing pages is not an error, the
// result is simply an empty statement.
func AggregateStatement(pages []models.StatementPage) models.StatementRecord {
	record := models.StatementRecord{
		StatementMonth: firstMonth(pages),
		Transactions:   mergeTransactions(pages),
	}
	record.TotalDeposits, record.TotalWithdrawals = sumTotals(pages)
	if balance := lastReportedBalance(pages); balance != nil {
		record.EndingBalance = *balance
	}
	return record
}

// firstMonth: first non-null statement month in page order, never
// overwritten by later pages.
func firstMonth(pages []models.StatementPage) *string {
	for _, page := range pages {
		if page.StatementMonth != nil {
			return page.StatementMonth
		}
	}
	return nil
}

// sumTotals sums deposits and withdrawals over pages that contributed at
// least one transaction. A cover or summary page with no transactions would
// otherwise double-count the statement against itself.
func sumTotals(pages []models.StatementPage) (deposits, withdrawals float64) {
	for _, page := range pages {
		if len(page.Transactions) == 0 {
			continue
		}
		deposits += page.TotalDeposits
		withdrawals += page.TotalWithdrawals
	}
	return deposits, withdrawals
}

// lastReportedBalance: later pages reflect a more final balance, so the last
// page that reported one wins.
func lastReportedBalance(pages []models.StatementPage) *float64 {
	for i := len(pages) - 1; i >= 0; i-- {
		if pages[i].EndingBalance != nil {
			return pages[i].EndingBalance
		}
	}
	return nil
}

// mergeTransactions concatenates every page's transactions in page order and
// re-sorts the whole list by ascending date. The sort is stable: transactions
// sharing a date keep their page/extraction order.
func mergeTransactions(pages []models.StatementPage) []models.Transaction {
	merged := []models.Transaction{}
	for _, page := range pages {
		merged = append(merged, page.Transactions...)
	}

	// ISO dates compare correctly as strings; transactions whose date failed
	// normalization have an empty date and sort first.
	slices.SortStableFunc(merged, func(a, b models.Transaction) int {
		return strings.Compare(a.Date, b.Date)
	})

	return merged
}
