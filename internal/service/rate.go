package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/lottodesk/platform/internal/domain"
	"github.com/lottodesk/platform/internal/repository"
	"github.com/shopspring/decimal"
)

// RateService exposes an operator's payout rates.
type RateService struct {
	db    DB
	rates repository.RateRepository
}

// NewRateService creates a RateService.
func NewRateService(db DB, rates repository.RateRepository) *RateService {
	return &RateService{db: db, rates: rates}
}

// List returns the operator's rates in bet-type table order.
func (s *RateService) List(ctx context.Context, operatorID uuid.UUID) ([]domain.Rate, error) {
	rates, err := s.rates.ListByOperator(ctx, s.db, operatorID)
	if err != nil {
		return nil, domain.ErrInternal("list rates", err)
	}
	return rates, nil
}

// UpdatePrice sets the price of one of the operator's rates.
func (s *RateService) UpdatePrice(ctx context.Context, operatorID, id uuid.UUID, price decimal.Decimal) (*domain.Rate, error) {
	if err := domain.ValidateMoney("price", price); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	rate, err := s.rates.UpdatePrice(ctx, s.db, operatorID, id, price)
	if err != nil {
		return nil, domain.ErrInternal("update rate", err)
	}
	if rate == nil {
		return nil, domain.ErrNotFound("rate", id.String())
	}
	return rate, nil
}
