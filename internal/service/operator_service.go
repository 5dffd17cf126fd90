package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/hitl-service/internal/auth"
	"github.com/spec-kit/hitl-service/internal/config"
	"github.com/spec-kit/hitl-service/internal/domain"
	"github.com/spec-kit/hitl-service/internal/repository"
	apperrors "github.com/spec-kit/hitl-service/pkg/util"
)

// OperatorService coordinates operator registration and login.
type OperatorService struct {
	operators  repository.OperatorRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// NewOperatorService builds the service.
func NewOperatorService(cfg config.AuthConfig, operators repository.OperatorRepository) *OperatorService {
	return &OperatorService{
		operators:  operators,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.SessionTTLMinutes),
		bcryptCost: cfg.BcryptCost,
	}
}

// TokenManager exposes the session token manager for middleware wiring.
func (s *OperatorService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// Register creates a new operator account and issues a session token.
func (s *OperatorService) Register(ctx context.Context, email, fullName, password string) (*domain.Operator, string, time.Time, error) {
	if _, err := s.operators.GetByEmail(ctx, email); err == nil {
		return nil, "", time.Time{}, apperrors.NewValidationError("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", time.Time{}, apperrors.NewStoreError(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}

	operator := &domain.Operator{
		Email:        email,
		FullName:     fullName,
		PasswordHash: hash,
	}
	if err := s.operators.Create(ctx, operator); err != nil {
		return nil, "", time.Time{}, apperrors.NewStoreError(err)
	}

	token, exp, err := s.tokenMgr.GenerateToken(operator.ID)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return operator, token, exp, nil
}

// Login authenticates an operator.
func (s *OperatorService) Login(ctx context.Context, email, password string) (*domain.Operator, string, time.Time, error) {
	operator, err := s.operators.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, apperrors.NewStoreError(err)
	}
	if err := auth.ComparePassword(operator.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}

	token, exp, err := s.tokenMgr.GenerateToken(operator.ID)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return operator, token, exp, nil
}
