package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/lottodesk/platform/internal/domain"
	"github.com/lottodesk/platform/internal/service"
	"github.com/shopspring/decimal"
)

// BillHandler serves bill submission, preview and history.
type BillHandler struct {
	bills  *service.BillService
	loc    *time.Location
	logger *slog.Logger
}

// NewBillHandler creates a BillHandler. Bare dates in list filters are read in loc.
func NewBillHandler(bills *service.BillService, loc *time.Location, logger *slog.Logger) *BillHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &BillHandler{bills: bills, loc: loc, logger: logger}
}

type submitResponse struct {
	Bill       billView        `json:"bill"`
	Outcomes   []outcomeView   `json:"outcomes"`
	Total      decimal.Decimal `json:"total"`
	Idempotent bool            `json:"idempotent"`
	Reconcile  bool            `json:"reconcile,omitempty"`
}

// Submit handles POST /bills. Items are evaluated in array order, so two lines
// on the same limited number are cut in the order they were sent.
func (h *BillHandler) Submit(w http.ResponseWriter, r *http.Request) {
	op, err := operatorID(r)
	if err != nil {
		RespondError(w, r, h.logger, err)
		return
	}
	var input service.SubmitInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondError(w, r, h.logger, err)
		return
	}
	input.IdempotencyKey = r.Header.Get("Idempotency-Key")

	out, err := h.bills.Submit(r.Context(), op, input)
	if err != nil {
		RespondError(w, r, h.logger, err)
		return
	}

	status := http.StatusCreated
	if out.Idempotent {
		status = http.StatusOK
	}
	RespondJSON(w, status, submitResponse{
		Bill:       newBillView(*out.Bill),
		Outcomes:   outcomeViews(out.Outcomes),
		Total:      out.Bill.Amount,
		Idempotent: out.Idempotent,
		Reconcile:  out.Reconcile,
	})
}

// Preview handles POST /bills/preview.
func (h *BillHandler) Preview(w http.ResponseWriter, r *http.Request) {
	op, err := operatorID(r)
	if err != nil {
		RespondError(w, r, h.logger, err)
		return
	}
	var input service.SubmitInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondError(w, r, h.logger, err)
		return
	}

	out, err := h.bills.Preview(r.Context(), op, input)
	if err != nil {
		RespondError(w, r, h.logger, err)
		return
	}

	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"outcomes": outcomeViews(out.Outcomes),
		"total":    out.Total,
	})
}

// List handles GET /bills?start=&end=.
func (h *BillHandler) List(w http.ResponseWriter, r *http.Request) {
	op, err := operatorID(r)
	if err != nil {
		RespondError(w, r, h.logger, err)
		return
	}

	q := r.URL.Query()
	var filter domain.BillFilter
	if filter.From, err = parseRangeBound(q.Get("start"), false, h.loc); err != nil {
		RespondError(w, r, h.logger, err)
		return
	}
	if filter.Before, err = parseRangeBound(q.Get("end"), true, h.loc); err != nil {
		RespondError(w, r, h.logger, err)
		return
	}

	bills, err := h.bills.List(r.Context(), op, filter)
	if err != nil {
		RespondError(w, r, h.logger, err)
		return
	}

	views := make([]billView, len(bills))
	for i, b := range bills {
		views[i] = newBillView(b)
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"bills": views})
}
