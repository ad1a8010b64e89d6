package domain

import (
	"context"
	"time"

	"shareit/internal/database"
	"shareit/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Repository interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	DecideBooking(ctx context.Context, id int64, status string) error
	ListBookings(ctx context.Context, scope database.BookingScope, userID int64, state models.State, now time.Time, offset, limit int) ([]*models.Booking, error)
	FindLastBooking(ctx context.Context, itemID int64, now time.Time) (*models.Booking, error)
	FindNextBooking(ctx context.Context, itemID int64, now time.Time) (*models.Booking, error)
	HasFinishedBooking(ctx context.Context, itemID, bookerID int64, now time.Time) (bool, error)
	GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)

	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	UserExists(ctx context.Context, id int64) (bool, error)
	UpdateUser(ctx context.Context, id int64, name, email *string) (*models.User, error)
	DeleteUser(ctx context.Context, id int64) error
	ListUsers(ctx context.Context) ([]*models.User, error)

	CreateItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, id int64) (*models.Item, error)
	UpdateItem(ctx context.Context, id, ownerID int64, patch models.ItemPatch) (*models.Item, error)
	ListItemsByOwner(ctx context.Context, ownerID int64, offset, limit int) ([]*models.Item, error)
	SearchItems(ctx context.Context, text string, offset, limit int) ([]*models.Item, error)
	ListItemsByRequest(ctx context.Context, requestID int64) ([]*models.Item, error)

	CreateRequest(ctx context.Context, req *models.ItemRequest) error
	GetRequest(ctx context.Context, id int64) (*models.ItemRequest, error)
	ListRequestsByRequester(ctx context.Context, requesterID int64) ([]*models.ItemRequest, error)
	ListOtherRequests(ctx context.Context, requesterID int64, offset, limit int) ([]*models.ItemRequest, error)

	CreateComment(ctx context.Context, comment *models.Comment) error
	ListCommentsByItem(ctx context.Context, itemID int64) ([]models.CommentView, error)
}

// RateLimiter is the per-user request throttle backed by Redis with a
// memory fallback.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type SheetsWriter interface {
	ReplaceBookingsSheet(ctx context.Context, bookings []*models.Booking) error
	AppendBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, bookingID int64, status string) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, bookingID int64, booking *models.Booking, status string) error
}

type BookingService interface {
	CreateBooking(ctx context.Context, bookerID int64, req models.BookingRequest) (*models.BookingView, error)
	DecideBooking(ctx context.Context, ownerID, bookingID int64, approved bool) (*models.BookingView, error)
	GetBooking(ctx context.Context, userID, bookingID int64) (*models.BookingView, error)
	ListByBooker(ctx context.Context, bookerID int64, state string, from, size int) ([]*models.BookingView, error)
	ListByOwner(ctx context.Context, ownerID int64, state string, from, size int) ([]*models.BookingView, error)
}

type UserService interface {
	CreateUser(ctx context.Context, name, email string) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	UpdateUser(ctx context.Context, id int64, name, email *string) (*models.User, error)
	DeleteUser(ctx context.Context, id int64) error
	ListUsers(ctx context.Context) ([]*models.User, error)
}

type ItemService interface {
	CreateItem(ctx context.Context, ownerID int64, item *models.Item) (*models.Item, error)
	UpdateItem(ctx context.Context, ownerID, itemID int64, patch models.ItemPatch) (*models.Item, error)
	GetItemDetail(ctx context.Context, userID, itemID int64) (*models.ItemDetail, error)
	ListOwnerItems(ctx context.Context, ownerID int64, from, size int) ([]*models.ItemDetail, error)
	SearchItems(ctx context.Context, userID int64, text string, from, size int) ([]*models.Item, error)
	AddComment(ctx context.Context, authorID, itemID int64, text string) (*models.CommentView, error)
}

type RequestService interface {
	CreateRequest(ctx context.Context, requesterID int64, description string) (*models.ItemRequest, error)
	GetRequest(ctx context.Context, userID, requestID int64) (*models.ItemRequestView, error)
	ListOwnRequests(ctx context.Context, requesterID int64) ([]*models.ItemRequestView, error)
	ListOtherRequests(ctx context.Context, requesterID int64, from, size int) ([]*models.ItemRequestView, error)
}
