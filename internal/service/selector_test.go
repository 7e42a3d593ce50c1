package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/internal/models"
)

func paystubPage(index int, fields models.PaystubFields) models.PaystubPage {
	return models.PaystubPage{PageIndex: index, Fields: fields}
}

func TestSelectPaystubPicksDensestPage(t *testing.T) {
	pages := []models.PaystubPage{
		paystubPage(1, models.PaystubFields{GrossPay: fptr(5000)}),
		paystubPage(2, models.PaystubFields{
			GrossPay:       fptr(5000),
			NetPay:         fptr(3750),
			PayPeriodStart: sptr("2024-01-01"),
		}),
		paystubPage(3, models.PaystubFields{GrossPay: fptr(5000), NetPay: fptr(3750)}),
	}

	fields, pageIndex, err := SelectPaystub(pages)
	require.NoError(t, err)
	assert.Equal(t, 2, pageIndex)
	assert.Equal(t, 3, fields.FieldCount())
}

func TestSelectPaystubTieKeepsEarliestPage(t *testing.T) {
	pages := []models.PaystubPage{
		paystubPage(1, models.PaystubFields{GrossPay: fptr(5000), NetPay: fptr(3750)}),
		paystubPage(2, models.PaystubFields{GrossPay: fptr(4000), NetPay: fptr(3000)}),
	}

	fields, pageIndex, err := SelectPaystub(pages)
	require.NoError(t, err)
	assert.Equal(t, 1, pageIndex)
	require.NotNil(t, fields.GrossPay)
	assert.Equal(t, 5000.0, *fields.GrossPay)
}

func TestSelectPaystubAllNullFails(t *testing.T) {
	pages := []models.PaystubPage{
		paystubPage(1, models.PaystubFields{}),
		paystubPage(2, models.PaystubFields{}),
	}

	_, _, err := SelectPaystub(pages)
	var noData *NoUsableDataError
	require.ErrorAs(t, err, &noData)
	assert.Equal(t, 2, noData.Pages)
}

func TestSelectPaystubNoPages(t *testing.T) {
	_, _, err := SelectPaystub(nil)
	var noData *NoUsableDataError
	require.ErrorAs(t, err, &noData)
}
