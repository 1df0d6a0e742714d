package domain

import "github.com/shopspring/decimal"

// Account is one of the user's bank accounts as shown on the dashboard.
type Account struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Kind     string          `json:"kind"` // checking, savings, credit
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

// LoanApplication is a submitted loan request. The demo backend echoes it
// back with a generated id and a pending decision.
type LoanApplication struct {
	ID        string          `json:"id"`
	Purpose   string          `json:"purpose"`
	Amount    decimal.Decimal `json:"amount"`
	TermMonth int             `json:"term_months"`
	Decision  string          `json:"decision"`
}

// InvestmentHolding is one row of the investment summary.
type InvestmentHolding struct {
	Symbol   string          `json:"symbol"`
	Name     string          `json:"name"`
	Units    decimal.Decimal `json:"units"`
	Value    decimal.Decimal `json:"value"`
	DayPct   decimal.Decimal `json:"day_pct"`
	Currency string          `json:"currency"`
}
