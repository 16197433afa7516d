package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/api-yamdb/internal/domain"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

type Service interface {
	Get(ctx context.Context, username string) (*domain.User, error)
	// GetByID resolves the caller of a /users/me request from the token subject.
	GetByID(ctx context.Context, userID string) (*domain.User, error)
	List(ctx context.Context, limit int, cursor string) ([]domain.User, string, error)
	// Update applies req to the user. Role changes are dropped unless allowRole is set.
	Update(ctx context.Context, username string, req domain.UpdateUserRequest, allowRole bool) (*domain.User, error)
	Delete(ctx context.Context, username string) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.User, string, error)
	Replace(ctx context.Context, prev, next *domain.User) error
	Delete(ctx context.Context, u *domain.User) error
}

type service struct {
	repo userStore
}

type ServiceDeps struct {
	UserRepo userStore
}

func NewService(deps ServiceDeps) Service {
	return &service{repo: deps.UserRepo}
}

func (s *service) Get(ctx context.Context, username string) (*domain.User, error) {
	return s.repo.GetByUsername(ctx, username)
}

func (s *service) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.Get(ctx, userID)
}

func (s *service) List(ctx context.Context, limit int, cursor string) ([]domain.User, string, error) {
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	users, next, err := s.repo.ScanPage(ctx, int32(limit), cursor)
	if err != nil {
		return nil, "", err
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, next, nil
}

func (s *service) Update(ctx context.Context, username string, req domain.UpdateUserRequest, allowRole bool) (*domain.User, error) {
	prev, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	next := *prev
	if req.Username != nil && !strings.EqualFold(*req.Username, prev.Username) {
		if err := s.ensureFree(ctx, s.repo.GetByUsername, *req.Username, prev.UserID, "username"); err != nil {
			return nil, err
		}
	}
	if req.Email != nil && !strings.EqualFold(*req.Email, prev.Email) {
		if err := s.ensureFree(ctx, s.repo.GetByEmail, *req.Email, prev.UserID, "email"); err != nil {
			return nil, err
		}
	}
	if req.Username != nil {
		next.Username = *req.Username
	}
	if req.Email != nil {
		next.Email = *req.Email
	}
	if req.FirstName != nil {
		next.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		next.LastName = *req.LastName
	}
	if req.Bio != nil {
		next.Bio = *req.Bio
	}
	if req.Role != nil && allowRole {
		if !domain.ValidRole(*req.Role) {
			return nil, fmt.Errorf("invalid role %q: %w", *req.Role, domain.ErrBadRequest)
		}
		next.Role = *req.Role
	}
	if next == *prev {
		return prev, nil
	}
	if err := s.repo.Replace(ctx, prev, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

func (s *service) Delete(ctx context.Context, username string) error {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, u)
}

func (s *service) ensureFree(ctx context.Context, get func(context.Context, string) (*domain.User, error), value, ownerID, field string) error {
	other, err := get(ctx, value)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case err != nil:
		return err
	case other.UserID != ownerID:
		return domain.DuplicateField(field)
	}
	return nil
}
