package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/harborbank/demo/internal/api/middleware"
	"github.com/harborbank/demo/internal/domain"
)

// DemoHandler serves the static dashboard surfaces: accounts, investment
// summaries and loan applications. The data is hard-coded sample data, same
// as the demo UI it backs.
type DemoHandler struct {
	log zerolog.Logger
}

// NewDemoHandler creates a new demo handler.
func NewDemoHandler(log zerolog.Logger) *DemoHandler {
	return &DemoHandler{log: log}
}

// Accounts handles GET /api/accounts
func (h *DemoHandler) Accounts(w http.ResponseWriter, r *http.Request) {
	accounts := []domain.Account{
		{ID: "A1", Name: "Everyday Checking", Kind: "checking", Balance: decimal.NewFromFloat(2543.77), Currency: "USD"},
		{ID: "A2", Name: "Rainy Day Savings", Kind: "savings", Balance: decimal.NewFromFloat(15200.00), Currency: "USD"},
		{ID: "A3", Name: "Harbor Rewards Card", Kind: "credit", Balance: decimal.NewFromFloat(-431.20), Currency: "USD"},
	}
	middleware.WriteJSON(w, http.StatusOK, accounts)
}

// Investments handles GET /api/investments
func (h *DemoHandler) Investments(w http.ResponseWriter, r *http.Request) {
	holdings := []domain.InvestmentHolding{
		{Symbol: "VTI", Name: "Total Stock Market ETF", Units: decimal.NewFromInt(42), Value: decimal.NewFromFloat(10831.38), DayPct: decimal.NewFromFloat(0.42), Currency: "USD"},
		{Symbol: "BND", Name: "Total Bond Market ETF", Units: decimal.NewFromInt(120), Value: decimal.NewFromFloat(8652.00), DayPct: decimal.NewFromFloat(-0.11), Currency: "USD"},
		{Symbol: "VXUS", Name: "International Stock ETF", Units: decimal.NewFromInt(65), Value: decimal.NewFromFloat(4112.55), DayPct: decimal.NewFromFloat(0.27), Currency: "USD"},
	}
	middleware.WriteJSON(w, http.StatusOK, holdings)
}

// ApplyLoan handles POST /api/loans
func (h *DemoHandler) ApplyLoan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Purpose   string          `json:"purpose"`
		Amount    decimal.Decimal `json:"amount"`
		TermMonth int             `json:"term_months"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Purpose == "" || !req.Amount.IsPositive() || req.TermMonth <= 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Purpose, positive amount and term are required")
		return
	}

	app := domain.LoanApplication{
		ID:        uuid.New().String(),
		Purpose:   req.Purpose,
		Amount:    req.Amount,
		TermMonth: req.TermMonth,
		Decision:  "pending_review",
	}
	middleware.WriteJSON(w, http.StatusCreated, app)
}
