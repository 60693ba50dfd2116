package handler

import (
	"log/slog"
	"net/http"

	"github.com/lottodesk/platform/internal/domain"
	"github.com/lottodesk/platform/internal/service"
	"github.com/shopspring/decimal"
)

// RateHandler serves the payout rate endpoints.
type RateHandler struct {
	rates  *service.RateService
	logger *slog.Logger
}

// NewRateHandler creates a RateHandler.
func NewRateHandler(rates *service.RateService, logger *slog.Logger) *RateHandler {
	return &RateHandler{rates: rates, logger: logger}
}

// List handles GET /rates.
func (h *RateHandler) List(w http.ResponseWriter, r *http.Request) {
	op, err := operatorID(r)
	if err != nil {
		RespondError(w, r, h.logger, err)
		return
	}
	rates, err := h.rates.List(r.Context(), op)
	if err != nil {
		RespondError(w, r, h.logger, err)
		return
	}
	if rates == nil {
		rates = []domain.Rate{}
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"rates": rates})
}

// UpdatePrice handles PATCH /rates/{id}.
func (h *RateHandler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	op, err := operatorID(r)
	if err != nil {
		RespondError(w, r, h.logger, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		RespondError(w, r, h.logger, err)
		return
	}
	var input struct {
		Price *decimal.Decimal `json:"price"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondError(w, r, h.logger, err)
		return
	}
	if input.Price == nil {
		RespondError(w, r, h.logger, domain.ErrValidation("price is required"))
		return
	}
	rate, err := h.rates.UpdatePrice(r.Context(), op, id, *input.Price)
	if err != nil {
		RespondError(w, r, h.logger, err)
		return
	}
	RespondJSON(w, http.StatusOK, rate)
}
