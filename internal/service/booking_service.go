package service

import (
	"context"
	"fmt"
	"time"

	"shareit/internal/database"
	"shareit/internal/domain"
	"shareit/internal/events"
	"shareit/internal/models"

	"github.com/rs/zerolog"
)

// creationGrace tolerates client clock skew on the "start is in the past"
// check during booking creation.
const creationGrace = time.Minute

type BookingService struct {
	repo         domain.Repository
	eventBus     domain.EventPublisher
	sheetsWorker domain.SyncWorker
	logger       *zerolog.Logger
	now          func() time.Time
}

func NewBookingService(repo domain.Repository, eventBus domain.EventPublisher, sheetsWorker domain.SyncWorker, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		repo:         repo,
		eventBus:     eventBus,
		sheetsWorker: sheetsWorker,
		logger:       logger,
		now:          time.Now,
	}
}

// ValidateBookingTime checks the requested window. The start may lag the
// wall clock by up to a minute.
func (s *BookingService) ValidateBookingTime(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("start and end are required: %w", database.ErrValidation)
	}
	if !end.After(start) {
		return fmt.Errorf("end must be after start: %w", database.ErrValidation)
	}
	if start.Before(s.now().Add(-creationGrace)) {
		return fmt.Errorf("start must not be in the past: %w", database.ErrValidation)
	}
	return nil
}

// CreateBooking books an item for the user. Owners cannot book their own
// items; to them the item reads as nonexistent.
func (s *BookingService) CreateBooking(ctx context.Context, bookerID int64, req models.BookingRequest) (*models.BookingView, error) {
	if err := s.ValidateBookingTime(req.Start, req.End); err != nil {
		return nil, err
	}

	booker, err := s.repo.GetUser(ctx, bookerID)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.GetItem(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	if !item.Available {
		return nil, fmt.Errorf("item %d: %w", item.ID, database.ErrNotAvailable)
	}
	if item.OwnerID == bookerID {
		return nil, fmt.Errorf("item %d belongs to booker %d: %w", item.ID, bookerID, database.ErrBookingNotFound)
	}

	booking := &models.Booking{
		ItemID:   item.ID,
		BookerID: bookerID,
		Start:    req.Start.UTC(),
		End:      req.End.UTC(),
		Status:   models.StatusWaiting,
	}
	if err := s.repo.CreateBooking(ctx, booking); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("item_id", item.ID).
		Int64("booker_id", bookerID).
		Time("start", booking.Start).
		Time("end", booking.End).
		Msg("booking created")

	s.publishEvent(events.EventBookingCreated, booking, item, booker)
	s.enqueueSync(ctx, booking, models.SyncTaskBookingCreated)

	return s.toView(booking, item, booker), nil
}

// DecideBooking records the owner's approval or rejection. Only the item's
// owner may decide, only once, and only while the booking is waiting.
func (s *BookingService) DecideBooking(ctx context.Context, ownerID, bookingID int64, approved bool) (*models.BookingView, error) {
	if ok, err := s.repo.UserExists(ctx, ownerID); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("user %d: %w", ownerID, database.ErrUserNotFound)
	}

	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.GetItem(ctx, booking.ItemID)
	if err != nil {
		return nil, err
	}
	if item.OwnerID != ownerID {
		return nil, fmt.Errorf("booking %d is not decidable by user %d: %w", bookingID, ownerID, database.ErrBookingNotFound)
	}

	target := models.StatusApproved
	eventType := events.EventBookingApproved
	if !approved {
		target = models.StatusRejected
		eventType = events.EventBookingRejected
	}
	if !models.CanTransitionTo(booking.Status, target) {
		return nil, fmt.Errorf("booking %d is %s: %w", bookingID, booking.Status, database.ErrAlreadyDecided)
	}

	if err := s.repo.DecideBooking(ctx, bookingID, target); err != nil {
		return nil, err
	}
	booking.Status = target

	s.logger.Info().
		Int64("booking_id", bookingID).
		Int64("owner_id", ownerID).
		Str("status", target).
		Msg("booking decided")

	booker, err := s.repo.GetUser(ctx, booking.BookerID)
	if err != nil {
		return nil, err
	}

	s.publishEvent(eventType, booking, item, booker)
	s.enqueueSync(ctx, booking, models.SyncTaskBookingDecided)

	return s.toView(booking, item, booker), nil
}

// GetBooking returns the booking to its booker or the item's owner. Anyone
// else gets a not-found answer, not a forbidden one.
func (s *BookingService) GetBooking(ctx context.Context, userID, bookingID int64) (*models.BookingView, error) {
	if ok, err := s.repo.UserExists(ctx, userID); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("user %d: %w", userID, database.ErrUserNotFound)
	}

	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.GetItem(ctx, booking.ItemID)
	if err != nil {
		return nil, err
	}
	if booking.BookerID != userID && item.OwnerID != userID {
		return nil, fmt.Errorf("booking %d is not visible to user %d: %w", bookingID, userID, database.ErrBookingNotFound)
	}

	booker, err := s.repo.GetUser(ctx, booking.BookerID)
	if err != nil {
		return nil, err
	}

	return s.toView(booking, item, booker), nil
}

// ListByBooker returns the user's own bookings filtered by state, newest
// start first. An empty result is an empty list.
func (s *BookingService) ListByBooker(ctx context.Context, bookerID int64, state string, from, size int) ([]*models.BookingView, error) {
	bookings, err := s.list(ctx, database.ScopeBooker, bookerID, state, from, size)
	if err != nil {
		return nil, err
	}
	return s.assembleViews(ctx, bookings)
}

// ListByOwner returns bookings of the user's items filtered by state. A
// user who owns bookings of nothing gets a not-found answer; that quirk is
// kept for compatibility with existing clients.
func (s *BookingService) ListByOwner(ctx context.Context, ownerID int64, state string, from, size int) ([]*models.BookingView, error) {
	bookings, err := s.list(ctx, database.ScopeOwner, ownerID, state, from, size)
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, fmt.Errorf("user %d has no bookings of own items: %w", ownerID, database.ErrBookingNotFound)
	}
	return s.assembleViews(ctx, bookings)
}

func (s *BookingService) list(ctx context.Context, scope database.BookingScope, userID int64, state string, from, size int) ([]*models.Booking, error) {
	parsed, ok := models.ParseState(state)
	if !ok {
		return nil, database.ErrUnsupportedStatus
	}

	if exists, err := s.repo.UserExists(ctx, userID); err != nil {
		return nil, err
	} else if !exists {
		return nil, fmt.Errorf("user %d: %w", userID, database.ErrUserNotFound)
	}

	offset, limit, err := pageWindow(from, size)
	if err != nil {
		return nil, err
	}

	return s.repo.ListBookings(ctx, scope, userID, parsed, s.now(), offset, limit)
}

// pageWindow converts the from/size query pair into an SQL window. The
// offset snaps down to a page boundary: page number from/size, page length
// size.
func pageWindow(from, size int) (offset, limit int, err error) {
	if from < 0 || size <= 0 {
		return 0, 0, fmt.Errorf("from must be >= 0 and size > 0: %w", database.ErrValidation)
	}
	return (from / size) * size, size, nil
}

func (s *BookingService) assembleViews(ctx context.Context, bookings []*models.Booking) ([]*models.BookingView, error) {
	views := make([]*models.BookingView, 0, len(bookings))
	items := map[int64]*models.Item{}
	users := map[int64]*models.User{}

	for _, b := range bookings {
		item, ok := items[b.ItemID]
		if !ok {
			var err error
			item, err = s.repo.GetItem(ctx, b.ItemID)
			if err != nil {
				return nil, err
			}
			items[b.ItemID] = item
		}
		booker, ok := users[b.BookerID]
		if !ok {
			var err error
			booker, err = s.repo.GetUser(ctx, b.BookerID)
			if err != nil {
				return nil, err
			}
			users[b.BookerID] = booker
		}
		views = append(views, s.toView(b, item, booker))
	}
	return views, nil
}

func (s *BookingService) toView(b *models.Booking, item *models.Item, booker *models.User) *models.BookingView {
	return &models.BookingView{
		ID:     b.ID,
		Start:  b.Start,
		End:    b.End,
		Status: b.Status,
		Item: models.ItemView{
			ID:          item.ID,
			Name:        item.Name,
			Description: item.Description,
			Available:   item.Available,
			OwnerID:     item.OwnerID,
		},
		Booker: models.UserView{
			ID:    booker.ID,
			Name:  booker.Name,
			Email: booker.Email,
		},
		BookerID: booker.ID,
	}
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, item *models.Item, booker *models.User) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:  booking.ID,
		BookerID:   booker.ID,
		BookerName: booker.Name,
		ItemID:     item.ID,
		ItemName:   item.Name,
		OwnerID:    item.OwnerID,
		Status:     booking.Status,
		Start:      booking.Start,
		End:        booking.End,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, booking *models.Booking, taskType string) {
	if s.sheetsWorker == nil {
		return
	}

	if err := s.sheetsWorker.EnqueueTask(ctx, taskType, booking.ID, booking, booking.Status); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Str("task", taskType).Msg("sheets enqueue error")
	}
}
