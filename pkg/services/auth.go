package services

import (
	"context"
	"time"

	"taskboard-backend/pkg/apperr"
	"taskboard-backend/pkg/models"
)

// Session is the result of a successful login.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Login checks credentials and issues a token carrying the actor descriptor.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Validation("", "email and password are required")
	}
	user, err := s.db.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	ok, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.log.WithField("user_id", user.ID).Debug("login rejected")
		return nil, apperr.Forbidden("auth.login", user.Role, "invalid credentials")
	}
	token, expiresAt, err := s.tokens.IssueToken(user)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}
