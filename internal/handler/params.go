package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lottodesk/platform/internal/auth"
	"github.com/lottodesk/platform/internal/domain"
)

const dateLayout = "2006-01-02"

// operatorID returns the authenticated operator. Routes using it sit behind
// auth.Authenticate.
func operatorID(r *http.Request) (uuid.UUID, error) {
	id, ok := auth.OperatorIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, domain.ErrUnauthorized("no operator in context")
	}
	return id, nil
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, domain.ErrValidation("invalid " + name)
	}
	return id, nil
}

// parseRangeBound accepts RFC3339 or a bare YYYY-MM-DD date in loc. With end
// set it returns an exclusive upper bound: the next local midnight for a bare
// date, one microsecond (created_at resolution) past an RFC3339 instant.
func parseRangeBound(raw string, end bool, loc *time.Location) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		if end {
			t = t.Add(time.Microsecond)
		}
		return &t, nil
	}
	day, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return nil, domain.ErrValidation("dates must be RFC3339 or YYYY-MM-DD, got " + raw)
	}
	if end {
		day = day.AddDate(0, 0, 1)
	}
	return &day, nil
}
