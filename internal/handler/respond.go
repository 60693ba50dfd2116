package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lottodesk/platform/internal/domain"
)

const maxBodyBytes = 1 << 20

// RespondJSON writes a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// RespondError writes a JSON error response, detecting domain.AppError for
// status codes. Causes of server errors are logged, never returned.
func RespondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var appErr *domain.AppError
	if !errors.As(err, &appErr) {
		appErr = domain.ErrInternal("internal server error", err)
	}
	if appErr.Status >= 500 {
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", GetRequestID(r.Context()),
			"error", err,
		)
		appErr = &domain.AppError{Code: appErr.Code, Message: "internal server error", Status: appErr.Status}
	}
	RespondJSON(w, appErr.Status, map[string]string{
		"code":    appErr.Code,
		"message": appErr.Message,
	})
}

// DecodeJSON reads a JSON request body of at most 1 MiB into dst. Unknown
// fields are rejected.
func DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.ErrValidation(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}
