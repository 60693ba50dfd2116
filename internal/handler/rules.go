package handler

import (
	"log/slog"
	"net/http"

	"github.com/lottodesk/platform/internal/domain"
	"github.com/lottodesk/platform/internal/service"
	"github.com/shopspring/decimal"
)

// RuleHandler serves the closed-number and limit-number endpoints.
type RuleHandler struct {
	rules  *service.RuleService
	logger *slog.Logger
}

// NewRuleHandler creates a RuleHandler.
func NewRuleHandler(rules *service.RuleService, logger *slog.Logger) *RuleHandler {
	return &RuleHandler{rules: rules, logger: logger}
}

// ListClosed handles GET /close-numbers.
func (h *RuleHandler) ListClosed(w http.ResponseWriter, r *http.Request) {
	op, err := operatorID(r)
	if err != nil {
		RespondError(w, r, h.logger, err)
		return
	}
	list, err := h.rules.ListClosed(r.Context(), op)
	if err != nil {
		RespondError(w, r, h.logger, err)
		return
	}
	if list == nil {
		list = []domain.ClosedNumber{}
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"close_numbers": list})
}

// AddClosed handles POST /close-numbers.
func (h *RuleHandler) AddClosed(w http.ResponseWriter, r *http.Request) {
	op, err := operatorID(r)
	if err != nil {
		RespondError(w, r, h.logger, err)
		return
	}
	var input service.AddClosedInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondError(w, r, h.logger, err)
		return
	}
	entry, err := h.rules.AddClosed(r.Context(), op, input)
	if err != nil {
		RespondError(w, r, h.logger, err)
		return
	}
	RespondJSON(w, http.StatusCreated, entry)
}

// RemoveClosed handles DELETE /close-numbers/{id}.
func (h *RuleHandler) RemoveClosed(w http.ResponseWriter, r *http.Request) {
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
	if err := h.rules.RemoveClosed(r.Context(), op, id); err != nil {
		RespondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListLimits handles GET /limit-numbers.
func (h *RuleHandler) ListLimits(w http.ResponseWriter, r *http.Request) {
	op, err := operatorID(r)
	if err != nil {
		RespondError(w, r, h.logger, err)
		return
	}
	list, err := h.rules.ListLimits(r.Context(), op)
	if err != nil {
		RespondError(w, r, h.logger, err)
		return
	}
	if list == nil {
		list = []domain.LimitNumber{}
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"limit_numbers": list})
}

// AddLimit handles POST /limit-numbers.
func (h *RuleHandler) AddLimit(w http.ResponseWriter, r *http.Request) {
	op, err := operatorID(r)
	if err != nil {
		RespondError(w, r, h.logger, err)
		return
	}
	var input service.AddLimitInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondError(w, r, h.logger, err)
		return
	}
	entry, err := h.rules.AddLimit(r.Context(), op, input)
	if err != nil {
		RespondError(w, r, h.logger, err)
		return
	}
	RespondJSON(w, http.StatusCreated, entry)
}

// UpdateLimitAmount handles PATCH /limit-numbers/{id}.
func (h *RuleHandler) UpdateLimitAmount(w http.ResponseWriter, r *http.Request) {
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
		AmountLimit *decimal.Decimal `json:"amount_limit"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondError(w, r, h.logger, err)
		return
	}
	if input.AmountLimit == nil {
		RespondError(w, r, h.logger, domain.ErrValidation("amount_limit is required"))
		return
	}
	entry, err := h.rules.UpdateLimitAmount(r.Context(), op, id, *input.AmountLimit)
	if err != nil {
		RespondError(w, r, h.logger, err)
		return
	}
	RespondJSON(w, http.StatusOK, entry)
}

// RemoveLimit handles DELETE /limit-numbers/{id}.
func (h *RuleHandler) RemoveLimit(w http.ResponseWriter, r *http.Request) {
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
	if err := h.rules.RemoveLimit(r.Context(), op, id); err != nil {
		RespondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
