package handler

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/lottodesk/platform/internal/infra"
)

// LimitBoardHandler upgrades GET /ws/limits and streams limit usage for the
// authenticated operator.
type LimitBoardHandler struct {
	hub      *infra.WSHub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewLimitBoardHandler creates a LimitBoardHandler. allowedOrigins containing
// "*" accepts any Origin header.
func NewLimitBoardHandler(hub *infra.WSHub, allowedOrigins []string, logger *slog.Logger) *LimitBoardHandler {
	h := &LimitBoardHandler{hub: hub, logger: logger}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
		},
	}
	return h
}

// Serve handles GET /ws/limits.
func (h *LimitBoardHandler) Serve(w http.ResponseWriter, r *http.Request) {
	op, err := operatorID(r)
	if err != nil {
		RespondError(w, r, h.logger, err)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Debug("websocket upgrade failed", "operator_id", op, "error", err)
		return
	}

	h.logger.Debug("limit board connected", "operator_id", op)
	h.hub.Serve(ws, infra.OperatorRoom(op.String()))
	h.logger.Debug("limit board disconnected", "operator_id", op)
}
