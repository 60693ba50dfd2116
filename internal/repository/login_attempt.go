package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/lottodesk/platform/internal/domain"
)

type loginAttemptRepo struct{}

// NewLoginAttemptRepository returns a pgx-backed LoginAttemptRepository.
func NewLoginAttemptRepository() LoginAttemptRepository {
	return &loginAttemptRepo{}
}

func (r *loginAttemptRepo) Record(ctx context.Context, db DBTX, attempt domain.LoginAttempt) error {
	_, err := db.Exec(ctx, `
		INSERT INTO login_attempts (username, ip_address, success)
		VALUES ($1, $2, $3)`,
		attempt.Username, attempt.IPAddress, attempt.Success)
	if err != nil {
		return fmt.Errorf("record login attempt: %w", err)
	}
	return nil
}

func (r *loginAttemptRepo) CountFailuresSince(ctx context.Context, db DBTX, username string, since time.Time) (int, error) {
	var n int
	err := db.QueryRow(ctx, `
		SELECT count(*) FROM login_attempts
		WHERE lower(username) = lower($1) AND success = false AND created_at > $2`,
		username, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count login failures: %w", err)
	}
	return n, nil
}
