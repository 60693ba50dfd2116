package guard

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/lottodesk/platform/internal/domain"
	"github.com/lottodesk/platform/internal/repository"
)

const (
	MaxAttempts   = 5
	LockoutWindow = 15 * time.Minute
)

// Lockout blocks logins for a username after repeated failures.
type Lockout struct {
	db       repository.DBTX
	attempts repository.LoginAttemptRepository
	logger   *slog.Logger
	now      func() time.Time
}

// NewLockout creates a lockout guard over the login_attempts table.
func NewLockout(db repository.DBTX, attempts repository.LoginAttemptRepository, logger *slog.Logger) *Lockout {
	return &Lockout{db: db, attempts: attempts, logger: logger, now: time.Now}
}

// RecordAttempt stores one attempt. Failures to record are logged and ignored.
func (l *Lockout) RecordAttempt(ctx context.Context, username, ip string, success bool) {
	err := l.attempts.Record(ctx, l.db, domain.LoginAttempt{
		Username:  strings.ToLower(username),
		IPAddress: ip,
		Success:   success,
	})
	if err != nil {
		l.logger.Warn("record login attempt", "error", err)
	}
}

// CheckLocked returns ErrAccountLocked if the username has >= MaxAttempts failed
// logins within the lockout window. It fails open on storage errors.
func (l *Lockout) CheckLocked(ctx context.Context, username string) error {
	count, err := l.attempts.CountFailuresSince(ctx, l.db, username, l.now().Add(-LockoutWindow))
	if err != nil {
		l.logger.Warn("check lockout", "error", err)
		return nil
	}
	if count >= MaxAttempts {
		return domain.ErrAccountLocked("too many failed login attempts, try again later")
	}
	return nil
}
