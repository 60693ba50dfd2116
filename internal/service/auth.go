package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lottodesk/platform/internal/auth"
	"github.com/lottodesk/platform/internal/domain"
	"github.com/lottodesk/platform/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// LoginGuard throttles repeated failed logins.
type LoginGuard interface {
	CheckLocked(ctx context.Context, username string) error
	RecordAttempt(ctx context.Context, username, ip string, success bool)
}

// AuthService handles operator registration, login and token checks.
type AuthService struct {
	db         DB
	operators  repository.OperatorRepository
	rates      repository.RateRepository
	outbox     repository.OutboxRepository
	guard      LoginGuard
	jwtMgr     *auth.JWTManager
	logger     *slog.Logger
	bcryptCost int
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	db DB,
	operators repository.OperatorRepository,
	rates repository.RateRepository,
	outbox repository.OutboxRepository,
	guard LoginGuard,
	jwtMgr *auth.JWTManager,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		db:         db,
		operators:  operators,
		rates:      rates,
		outbox:     outbox,
		guard:      guard,
		jwtMgr:     jwtMgr,
		logger:     logger,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// RegisterInput holds the registration request fields.
type RegisterInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register creates an operator and seeds its default rates in one transaction.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.Operator, error) {
	input.Username = strings.TrimSpace(input.Username)
	if err := domain.ValidateUsername(input.Username); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if err := domain.ValidatePassword(input.Password); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	existing, err := s.operators.FindByUsername(ctx, s.db, input.Username)
	if err != nil {
		return nil, domain.ErrInternal("find operator", err)
	}
	if existing != nil {
		return nil, domain.ErrConflict("username already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, domain.ErrInternal("hash password", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	op := &domain.Operator{
		ID:           uuid.New(),
		Username:     input.Username,
		PasswordHash: string(hash),
	}
	if err := s.operators.Create(ctx, tx, op); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, domain.ErrConflict("username already registered")
		}
		return nil, domain.ErrInternal("create operator", err)
	}

	for _, spec := range domain.BetTypes() {
		rate := &domain.Rate{
			ID:         uuid.New(),
			OperatorID: op.ID,
			BetType:    spec.Type,
			Text:       spec.Text,
			Price:      spec.DefaultPrice,
		}
		if err := s.rates.Create(ctx, tx, rate); err != nil {
			return nil, domain.ErrInternal("seed rate", err)
		}
	}

	if err := s.outbox.Insert(ctx, tx, domain.NewOperatorRegisteredEvent(op)); err != nil {
		return nil, domain.ErrInternal("insert outbox event", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.ErrInternal("commit tx", err)
	}

	s.logger.Info("operator registered", "operator_id", op.ID, "username", op.Username)
	return op, nil
}

// LoginInput holds the login request fields.
type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Operator  *domain.Operator `json:"operator"`
}

// Login authenticates an operator and returns a JWT. Every mismatch returns
// the same error so usernames cannot be probed.
func (s *AuthService) Login(ctx context.Context, input LoginInput, ip string) (*LoginResult, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" || input.Password == "" {
		return nil, domain.ErrValidation("username and password are required")
	}

	if err := s.guard.CheckLocked(ctx, username); err != nil {
		return nil, err
	}

	op, err := s.operators.FindByUsername(ctx, s.db, username)
	if err != nil {
		return nil, domain.ErrInternal("find operator", err)
	}
	if op == nil {
		s.guard.RecordAttempt(ctx, username, ip, false)
		return nil, domain.ErrUnauthorized("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(input.Password)); err != nil {
		s.guard.RecordAttempt(ctx, username, ip, false)
		return nil, domain.ErrUnauthorized("invalid credentials")
	}
	s.guard.RecordAttempt(ctx, username, ip, true)

	token, err := s.jwtMgr.GenerateToken(op.ID, op.Username)
	if err != nil {
		return nil, domain.ErrInternal("generate token", err)
	}

	return &LoginResult{
		Token:     token,
		ExpiresAt: time.Now().Add(s.jwtMgr.Expiry()),
		Operator:  op,
	}, nil
}

// ValidateToken resolves a token to its operator.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*domain.Operator, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrValidation("token is required")
	}
	claims, err := s.jwtMgr.ValidateToken(token)
	if err != nil {
		return nil, domain.ErrUnauthorized("invalid or expired token")
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, domain.ErrUnauthorized("invalid or expired token")
	}
	return s.Me(ctx, id)
}

// Me returns the operator behind an authenticated request.
func (s *AuthService) Me(ctx context.Context, operatorID uuid.UUID) (*domain.Operator, error) {
	op, err := s.operators.FindByID(ctx, s.db, operatorID)
	if err != nil {
		return nil, domain.ErrInternal("find operator", err)
	}
	if op == nil {
		return nil, domain.ErrNotFound("operator", operatorID.String())
	}
	return op, nil
}
