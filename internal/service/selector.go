package service

import "finsight/internal/models"

// SelectPaystub picks the densest page from a set of normalized paystub
// pages. Score is the count of populated fields; the earliest page wins ties,
// so the choice is deterministic. A multi-page paystub scan often contains a
// cover page or a duplicate, and the densest page is a simple, auditable
// heuristic for the real one.
//
// When every field on every page is null there is nothing to persist and the
// document fails with NoUsableDataError.
func SelectPaystub(pages []models.PaystubPage) (models.PaystubFields, int, error) {
	best := -1
	bestScore := 0
	for i, page := range pages {
		if score := page.Fields.FieldCount(); score > bestScore {
			bestScore = score
			best = i
		}
	}

	if best == -1 {
		return models.PaystubFields{}, 0, &NoUsableDataError{Pages: len(pages)}
	}

	return pages[best].Fields, pages[best].PageIndex, nil
}
