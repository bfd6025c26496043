package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/pelita-edu/pelita/internal/shared"
)

// Service verifies credentials within a tenant.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate checks the email/password pair against the tenant's accounts.
// Unknown account and wrong password are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, tenantID, email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if tenantID == "" || email == "" || password == "" {
		return nil, shared.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, tenantID, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// RecordLogin persists a login event for auditing.
func (s *Service) RecordLogin(ctx context.Context, sessionID, userID, ip, userAgent string) error {
	return s.repo.RecordLogin(ctx, sessionID, userID, ip, userAgent)
}

// RecordLogout marks the login session ended.
func (s *Service) RecordLogout(ctx context.Context, sessionID string) error {
	return s.repo.RecordLogout(ctx, sessionID)
}
