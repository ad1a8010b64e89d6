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

type RequestService struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

func NewRequestService(repo domain.Repository, logger *zerolog.Logger) *RequestService {
	return &RequestService{repo: repo, logger: logger}
}

func (s *RequestService) CreateRequest(ctx context.Context, requesterID int64, description string) (*models.ItemRequest, error) {
	if ok, err := s.repo.UserExists(ctx, requesterID); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("user %d: %w", requesterID, database.ErrUserNotFound)
	}
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("description is required: %w", database.ErrValidation)
	}

	req := &models.ItemRequest{RequesterID: requesterID, Description: description}
	if err := s.repo.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("request_id", req.ID).Int64("requester_id", requesterID).Msg("item request created")
	return req, nil
}

func (s *RequestService) GetRequest(ctx context.Context, userID, requestID int64) (*models.ItemRequestView, error) {
	if ok, err := s.repo.UserExists(ctx, userID); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("user %d: %w", userID, database.ErrUserNotFound)
	}

	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return s.toView(ctx, req)
}

func (s *RequestService) ListOwnRequests(ctx context.Context, requesterID int64) ([]*models.ItemRequestView, error) {
	if ok, err := s.repo.UserExists(ctx, requesterID); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("user %d: %w", requesterID, database.ErrUserNotFound)
	}

	requests, err := s.repo.ListRequestsByRequester(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	return s.toViews(ctx, requests)
}

func (s *RequestService) ListOtherRequests(ctx context.Context, requesterID int64, from, size int) ([]*models.ItemRequestView, error) {
	if ok, err := s.repo.UserExists(ctx, requesterID); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("user %d: %w", requesterID, database.ErrUserNotFound)
	}

	offset, limit, err := pageWindow(from, size)
	if err != nil {
		return nil, err
	}

	requests, err := s.repo.ListOtherRequests(ctx, requesterID, offset, limit)
	if err != nil {
		return nil, err
	}
	return s.toViews(ctx, requests)
}

func (s *RequestService) toViews(ctx context.Context, requests []*models.ItemRequest) ([]*models.ItemRequestView, error) {
	views := make([]*models.ItemRequestView, 0, len(requests))
	for _, req := range requests {
		v, err := s.toView(ctx, req)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *RequestService) toView(ctx context.Context, req *models.ItemRequest) (*models.ItemRequestView, error) {
	items, err := s.repo.ListItemsByRequest(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	offered := make([]models.Item, 0, len(items))
	for _, item := range items {
		offered = append(offered, *item)
	}
	return &models.ItemRequestView{
		ID:          req.ID,
		Description: req.Description,
		Created:     req.CreatedAt,
		Items:       offered,
	}, nil
}
