package dto

import "finsight/internal/models"

type PaystubResponse struct {
	GrossPay       *float64 `json:"gross_pay"`
	NetPay         *float64 `json:"net_pay"`
	PayPeriodStart *string  `json:"pay_period_start"`
	PayPeriodEnd   *string  `json:"pay_period_end"`
}

type StatementResponse struct {
	StatementMonth   *string               `json:"statement_month"`
	TotalDeposits    float64               `json:"total_deposits"`
	TotalWithdrawals float64               `json:"total_withdrawals"`
	EndingBalance    float64               `json:"ending_balance"`
	Transactions     []TransactionResponse `json:"transactions"`
}

type TransactionResponse struct {
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Amount      float64 `json:"amount"`
	Balance     float64 `json:"balance"`
}

func ToPaystubResponse(fields *models.PaystubFields) *PaystubResponse {
	if fields == nil {
		return nil
	}
	return &PaystubResponse{
		GrossPay:       fields.GrossPay,
		NetPay:         fields.NetPay,
		PayPeriodStart: fields.PayPeriodStart,
		PayPeriodEnd:   fields.PayPeriodEnd,
	}
}

func ToStatementResponse(record *models.StatementRecord) *StatementResponse {
	if record == nil {
		return nil
	}
	resp := &StatementResponse{
		StatementMonth:   record.StatementMonth,
		TotalDeposits:    record.TotalDeposits,
		TotalWithdrawals: record.TotalWithdrawals,
		EndingBalance:    record.EndingBalance,
		Transactions:     make([]TransactionResponse, 0, len(record.Transactions)),
	}
	for _, t := range record.Transactions {
		resp.Transactions = append(resp.Transactions, TransactionResponse{
			Date:        t.Date,
			Description: t.Description,
			Category:    t.Category,
			Amount:      t.Amount,
			Balance:     t.Balance,
		})
	}
	return resp
}
