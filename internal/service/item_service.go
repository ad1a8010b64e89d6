package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shareit/internal/database"
	"shareit/internal/domain"
	"shareit/internal/events"
	"shareit/internal/models"

	"github.com/rs/zerolog"
)

type ItemService struct {
	repo     domain.Repository
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewItemService(repo domain.Repository, eventBus domain.EventPublisher, logger *zerolog.Logger) *ItemService {
	return &ItemService{repo: repo, eventBus: eventBus, logger: logger, now: time.Now}
}

func (s *ItemService) CreateItem(ctx context.Context, ownerID int64, item *models.Item) (*models.Item, error) {
	if ok, err := s.repo.UserExists(ctx, ownerID); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("user %d: %w", ownerID, database.ErrUserNotFound)
	}

	if strings.TrimSpace(item.Name) == "" || strings.TrimSpace(item.Description) == "" {
		return nil, fmt.Errorf("name and description are required: %w", database.ErrValidation)
	}

	// An item may answer a request; the request must exist then.
	if item.RequestID != 0 {
		if _, err := s.repo.GetRequest(ctx, item.RequestID); err != nil {
			return nil, err
		}
	}

	item.OwnerID = ownerID
	if err := s.repo.CreateItem(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("item_id", item.ID).Int64("owner_id", ownerID).Msg("item created")
	return item, nil
}

func (s *ItemService) UpdateItem(ctx context.Context, ownerID, itemID int64, patch models.ItemPatch) (*models.Item, error) {
	if ok, err := s.repo.UserExists(ctx, ownerID); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("user %d: %w", ownerID, database.ErrUserNotFound)
	}
	return s.repo.UpdateItem(ctx, itemID, ownerID, patch)
}

// GetItemDetail returns the item with comments for anyone, plus last/next
// booking references when the caller owns it.
func (s *ItemService) GetItemDetail(ctx context.Context, userID, itemID int64) (*models.ItemDetail, error) {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, userID, item)
}

func (s *ItemService) ListOwnerItems(ctx context.Context, ownerID int64, from, size int) ([]*models.ItemDetail, error) {
	if ok, err := s.repo.UserExists(ctx, ownerID); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("user %d: %w", ownerID, database.ErrUserNotFound)
	}

	offset, limit, err := pageWindow(from, size)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListItemsByOwner(ctx, ownerID, offset, limit)
	if err != nil {
		return nil, err
	}

	details := make([]*models.ItemDetail, 0, len(items))
	for _, item := range items {
		d, err := s.detail(ctx, ownerID, item)
		if err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, nil
}

func (s *ItemService) SearchItems(ctx context.Context, userID int64, text string, from, size int) ([]*models.Item, error) {
	if ok, err := s.repo.UserExists(ctx, userID); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("user %d: %w", userID, database.ErrUserNotFound)
	}

	offset, limit, err := pageWindow(from, size)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(text) == "" {
		return []*models.Item{}, nil
	}
	items, err := s.repo.SearchItems(ctx, text, offset, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*models.Item{}
	}
	return items, nil
}

// AddComment lets a user review an item after a booking of it has finished.
// The booking's status does not matter, only that its window is over.
func (s *ItemService) AddComment(ctx context.Context, authorID, itemID int64, text string) (*models.CommentView, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("comment text is required: %w", database.ErrValidation)
	}

	author, err := s.repo.GetUser(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetItem(ctx, itemID); err != nil {
		return nil, err
	}

	ok, err := s.repo.HasFinishedBooking(ctx, itemID, authorID, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("user %d has no finished booking of item %d: %w", authorID, itemID, database.ErrCommentNotAllowed)
	}

	comment := &models.Comment{ItemID: itemID, AuthorID: authorID, Text: text}
	if err := s.repo.CreateComment(ctx, comment); err != nil {
		return nil, err
	}

	if s.eventBus != nil {
		_ = s.eventBus.PublishJSON(events.EventCommentAdded, comment)
	}

	return &models.CommentView{
		ID:         comment.ID,
		Text:       comment.Text,
		AuthorName: author.Name,
		Created:    comment.CreatedAt,
	}, nil
}

func (s *ItemService) detail(ctx context.Context, userID int64, item *models.Item) (*models.ItemDetail, error) {
	comments, err := s.repo.ListCommentsByItem(ctx, item.ID)
	if err != nil {
		return nil, err
	}

	d := &models.ItemDetail{Item: *item, Comments: comments}

	// Booking references are the owner's view only
	if item.OwnerID == userID {
		now := s.now()
		last, err := s.repo.FindLastBooking(ctx, item.ID, now)
		if err != nil {
			return nil, err
		}
		next, err := s.repo.FindNextBooking(ctx, item.ID, now)
		if err != nil {
			return nil, err
		}
		d.LastBooking = toBookingRef(last)
		d.NextBooking = toBookingRef(next)
	}

	return d, nil
}

func toBookingRef(b *models.Booking) *models.BookingRef {
	if b == nil {
		return nil
	}
	return &models.BookingRef{ID: b.ID, BookerID: b.BookerID, Start: b.Start, End: b.End}
}
