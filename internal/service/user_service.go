package service

import (
	"context"
	"fmt"
	"strings"

	"shareit/internal/database"
	"shareit/internal/domain"
	"shareit/internal/models"

	"github.com/rs/zerolog"
)

type UserService struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

func NewUserService(repo domain.Repository, logger *zerolog.Logger) *UserService {
	return &UserService{repo: repo, logger: logger}
}

func (s *UserService) CreateUser(ctx context.Context, name, email string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return nil, fmt.Errorf("name is required: %w", database.ErrValidation)
	}
	if !validEmail(email) {
		return nil, fmt.Errorf("email %q is malformed: %w", email, database.ErrValidation)
	}

	user := &models.User{Name: name, Email: email}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("user_id", user.ID).Str("email", email).Msg("user created")
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.repo.GetUser(ctx, id)
}

func (s *UserService) UpdateUser(ctx context.Context, id int64, name, email *string) (*models.User, error) {
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, fmt.Errorf("name must not be blank: %w", database.ErrValidation)
		}
		name = &trimmed
	}
	if email != nil {
		trimmed := strings.TrimSpace(*email)
		if !validEmail(trimmed) {
			return nil, fmt.Errorf("email %q is malformed: %w", trimmed, database.ErrValidation)
		}
		email = &trimmed
	}

	return s.repo.UpdateUser(ctx, id, name, email)
}

func (s *UserService) DeleteUser(ctx context.Context, id int64) error {
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("user_id", id).Msg("user deleted")
	return nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]*models.User, error) {
	return s.repo.ListUsers(ctx)
}

// validEmail keeps the check shallow: non-empty, one @, a dot in the
// domain part. Full RFC parsing buys nothing here.
func validEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domainPart := email[at+1:]
	return strings.Contains(domainPart, ".") && !strings.Contains(domainPart, "@")
}
