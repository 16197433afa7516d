package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/api-yamdb/internal/application/verification"
	"github.com/api-yamdb/internal/domain"
	"github.com/api-yamdb/internal/pkg/id"
)

const fieldEmailConfirmed = "email_confirmed"

// SignUpResult echoes the accepted registration.
type SignUpResult struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Service runs the two-step handshake: sign up to receive a code by mail, then
// trade the code for a session token.
type Service interface {
	SignUp(ctx context.Context, req domain.SignUpRequest) (*SignUpResult, error)
	IssueToken(ctx context.Context, req domain.TokenRequest) (string, error)
}

type userStore interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	Delete(ctx context.Context, u *domain.User) error
}

type tokenSigner interface {
	Sign(u *domain.User) (string, error)
}

type service struct {
	users      userStore
	verifier   verification.Service
	signer     tokenSigner
	codeLength int
}

type ServiceDeps struct {
	UserRepo   userStore
	Verifier   verification.Service
	Signer     tokenSigner
	CodeLength int
}

func NewService(deps ServiceDeps) Service {
	n := deps.CodeLength
	if n <= 0 {
		n = verification.DefaultCodeLength
	}
	return &service{
		users:      deps.UserRepo,
		verifier:   deps.Verifier,
		signer:     deps.Signer,
		codeLength: n,
	}
}

// SignUp registers (or re-registers) req and mails a fresh confirmation code.
// Repeating a sign-up with the same username and email is allowed and only
// re-issues the code.
func (s *service) SignUp(ctx context.Context, req domain.SignUpRequest) (*SignUpResult, error) {
	byName, err := s.lookup(ctx, s.users.GetByUsername, req.Username)
	if err != nil {
		return nil, err
	}
	byEmail, err := s.lookup(ctx, s.users.GetByEmail, req.Email)
	if err != nil {
		return nil, err
	}

	var u *domain.User
	created := false
	switch {
	case byName != nil && byName.SamePair(req.Username, req.Email):
		u = byName
	case byEmail != nil:
		return nil, domain.DuplicateField("email")
	case byName != nil:
		return nil, domain.DuplicateField("username")
	default:
		u, err = s.create(ctx, req)
		if err != nil {
			return nil, err
		}
		created = true
	}

	code, err := s.verifier.Generate(ctx, u.Username)
	if err != nil {
		if created {
			s.rollback(ctx, u)
		}
		return nil, err
	}
	if err := s.verifier.SendCode(ctx, u.Email, code); err != nil {
		if cerr := s.verifier.Cleanup(context.WithoutCancel(ctx), u.Username); cerr != nil {
			slog.Warn("failed to purge undelivered code", "username", u.Username, "err", cerr)
		}
		if created {
			s.rollback(ctx, u)
		}
		return nil, err
	}
	return &SignUpResult{Email: req.Email, Username: req.Username}, nil
}

// IssueToken redeems the confirmation code and returns a signed session token.
func (s *service) IssueToken(ctx context.Context, req domain.TokenRequest) (string, error) {
	u, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		return "", fmt.Errorf("user %q: %w", req.Username, err)
	}
	// An unknown username is reported before a malformed code.
	if len(req.ConfirmationCode) != s.codeLength {
		ve := domain.ValidationErrors{}
		ve.Add("confirmation_code", fmt.Sprintf("The code must contain %d numbers.", s.codeLength))
		return "", ve
	}
	if _, err := s.verifier.CheckCode(ctx, u.Username, req.ConfirmationCode); err != nil {
		return "", err
	}
	if !u.EmailConfirmed {
		if err := s.users.Update(ctx, u.UserID, map[string]interface{}{fieldEmailConfirmed: true}); err != nil {
			slog.Warn("failed to mark email confirmed", "username", u.Username, "err", err)
		} else {
			u.EmailConfirmed = true
		}
	}
	return s.signer.Sign(u)
}

func (s *service) lookup(ctx context.Context, get func(context.Context, string) (*domain.User, error), key string) (*domain.User, error) {
	u, err := get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return u, err
}

func (s *service) create(ctx context.Context, req domain.SignUpRequest) (*domain.User, error) {
	now := time.Now().UTC()
	u := &domain.User{
		UserID:    id.New(),
		Username:  req.Username,
		Email:     req.Email,
		Role:      domain.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Put(ctx, u); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Lost a race with a concurrent sign-up for the same name or address.
			return nil, &domain.FieldError{
				Field:   domain.NonFieldErrors,
				Message: "A user with that username or email already exists.",
				Err:     err,
			}
		}
		return nil, err
	}
	return u, nil
}

// rollback removes a user created by a sign-up that could not deliver its code.
func (s *service) rollback(ctx context.Context, u *domain.User) {
	if err := s.users.Delete(context.WithoutCancel(ctx), u); err != nil {
		slog.Warn("failed to roll back sign-up", "username", u.Username, "err", err)
	}
}
