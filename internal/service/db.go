package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lottodesk/platform/internal/domain"
	"github.com/lottodesk/platform/internal/repository"
)

// DB is the pool surface services need. *pgxpool.Pool satisfies it.
type DB interface {
	repository.DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Clock supplies the current time in the zone period boundaries are computed in.
type Clock struct {
	Location *time.Location
	Now      func() time.Time
}

// SystemClock returns a clock reading time.Now in loc.
func SystemClock(loc *time.Location) Clock {
	return Clock{Location: loc, Now: time.Now}
}

func (c Clock) now() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	if c.Location == nil {
		return now()
	}
	return now().In(c.Location)
}

// periodEnd is the default closing timestamp for entries created now.
func (c Clock) periodEnd() time.Time {
	return domain.PeriodEnd(c.now())
}
