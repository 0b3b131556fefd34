package ledger

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/garuda-dms/garuda-dms/internal/closure"
	"github.com/garuda-dms/garuda-dms/internal/platform/httpx"
)

// Handler exposes the read-only reporting endpoints. Dashboards and report
// pages consume these views; they never write the underlying stores.
type Handler struct {
	logger *slog.Logger
	store  *Store
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, store *Store) *Handler {
	return &Handler{logger: logger, store: store}
}

// MountRoutes registers ledger read routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/ledger", func(r chi.Router) {
		r.Get("/cash-entries", h.cashEntries)
		r.Get("/capital", h.capital)
		r.Get("/capital/{companyID}", h.companyCapital)
		r.Get("/profit", h.profit)
		r.Get("/overview", h.overview)
	})
}

type cashEntryResponse struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	Division    string `json:"division"`
	CompanyID   int64  `json:"company_id"`
	Description string `json:"description"`
	Debit       string `json:"debit"`
	Kredit      string `json:"kredit"`
	RequestID   string `json:"request_id,omitempty"`
}

type capitalResponse struct {
	CompanyID       int64  `json:"company_id"`
	Division        string `json:"division"`
	Balance         string `json:"balance"`
	NegativeBalance bool   `json:"negative_balance_warning"`
}

type profitResponse struct {
	Division         string `json:"division"`
	Month            string `json:"month"`
	Year             int    `json:"year"`
	SalesTotal       string `json:"sales_total"`
	OperationalCosts string `json:"operational_costs"`
	Deductions       string `json:"deductions"`
	Net              string `json:"net"`
}

func (h *Handler) cashEntries(w http.ResponseWriter, r *http.Request) {
	division, year, month, ok := h.divisionMonth(w, r)
	if !ok {
		return
	}
	entries, err := h.store.ListCashEntries(r.Context(), division, year, month)
	if err != nil {
		h.logger.Error("list cash entries", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]cashEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toCashEntryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (h *Handler) capital(w http.ResponseWriter, r *http.Request) {
	division := strings.TrimSpace(r.URL.Query().Get("division"))
	if division == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "division is required")
		return
	}
	balances, err := h.store.ListCapitalBalances(r.Context(), division)
	if err != nil {
		h.logger.Error("list capital balances", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]capitalResponse, 0, len(balances))
	for _, c := range balances {
		out = append(out, toCapitalResponse(c))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"balances": out})
}

func (h *Handler) companyCapital(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "companyID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid company id")
		return
	}
	capital, err := h.store.GetCompanyCapital(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCapitalResponse(capital))
}

func (h *Handler) profit(w http.ResponseWriter, r *http.Request) {
	division, year, month, ok := h.divisionMonth(w, r)
	if !ok {
		return
	}
	profit, err := h.store.MonthlyProfit(r.Context(), division, year, month)
	if err != nil {
		h.logger.Error("monthly profit", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProfitResponse(profit))
}

// overview fans out the three reads for one division month.
func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	division, year, month, ok := h.divisionMonth(w, r)
	if !ok {
		return
	}
	var (
		entries  []CashEntry
		balances []CompanyCapital
		profit   MonthlyProfit
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		entries, err = h.store.ListCashEntries(ctx, division, year, month)
		return err
	})
	g.Go(func() error {
		var err error
		balances, err = h.store.ListCapitalBalances(ctx, division)
		return err
	})
	g.Go(func() error {
		var err error
		profit, err = h.store.MonthlyProfit(ctx, division, year, month)
		return err
	})
	if err := g.Wait(); err != nil {
		h.logger.Error("ledger overview", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	entryViews := make([]cashEntryResponse, 0, len(entries))
	for _, e := range entries {
		entryViews = append(entryViews, toCashEntryResponse(e))
	}
	capitalViews := make([]capitalResponse, 0, len(balances))
	for _, c := range balances {
		capitalViews = append(capitalViews, toCapitalResponse(c))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"entries":  entryViews,
		"balances": capitalViews,
		"profit":   toProfitResponse(profit),
	})
}

func (h *Handler) divisionMonth(w http.ResponseWriter, r *http.Request) (string, int, int, bool) {
	division := strings.TrimSpace(r.URL.Query().Get("division"))
	if division == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "division is required")
		return "", 0, 0, false
	}
	year, month, err := closure.SplitMonthKey(r.URL.Query().Get("month"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "month must be YYYY-MM")
		return "", 0, 0, false
	}
	return division, year, month, true
}

func toCashEntryResponse(e CashEntry) cashEntryResponse {
	out := cashEntryResponse{
		ID:          e.ID,
		Date:        e.Date.Format("2006-01-02"),
		Division:    e.Division,
		CompanyID:   e.CompanyID,
		Description: e.Description,
		Debit:       e.Debit.String(),
		Kredit:      e.Kredit.String(),
	}
	if e.RequestID != nil {
		out.RequestID = e.RequestID.String()
	}
	return out
}

func toCapitalResponse(c CompanyCapital) capitalResponse {
	return capitalResponse{
		CompanyID:       c.CompanyID,
		Division:        c.Division,
		Balance:         c.Balance.String(),
		NegativeBalance: c.NegativeBalance(),
	}
}

func toProfitResponse(p MonthlyProfit) profitResponse {
	return profitResponse{
		Division:         p.Division,
		Month:            closure.MonthKey(p.Year, p.Month),
		Year:             p.Year,
		SalesTotal:       p.SalesTotal.String(),
		OperationalCosts: p.OperationalCosts.String(),
		Deductions:       p.Deductions.String(),
		Net:              p.Net.String(),
	}
}
