package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shareit/internal/models"
)

// BookingScope selects whose bookings a listing query covers: the user who
// made them or the owner of the booked items.
type BookingScope int

const (
	ScopeBooker BookingScope = iota
	ScopeOwner
)

const bookingColumns = `b.id, b.item_id, b.booker_id, b.start_date, b.end_date, b.status, b.created_at, b.updated_at`

func scanBooking(row interface{ Scan(...any) error }) (*models.Booking, error) {
	var b models.Booking
	err := row.Scan(
		&b.ID, &b.ItemID, &b.BookerID, &b.Start, &b.End, &b.Status,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	query := `INSERT INTO bookings (item_id, booker_id, start_date, end_date, status, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		booking.ItemID,
		booking.BookerID,
		booking.Start.UTC(),
		booking.End.UTC(),
		booking.Status,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now

	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking %d: %w", id, ErrBookingNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// DecideBooking moves a booking out of the waiting status atomically. The
// conditional update closes the race between two concurrent decisions: the
// second one matches zero rows and fails with ErrAlreadyDecided.
func (db *DB) DecideBooking(ctx context.Context, id int64, status string) error {
	query := `UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now().UTC(), id, models.StatusWaiting)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("booking %d: %w", id, ErrAlreadyDecided)
	}
	return nil
}

// ListBookings runs the six-way state-classified listing for one scope. The
// same query serves booker and owner listings; only the id predicate
// changes. Results are ordered by start descending and windowed by
// (offset, limit). The caller captures "now" once per request.
func (db *DB) ListBookings(ctx context.Context, scope BookingScope, userID int64, state models.State, now time.Time, offset, limit int) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b`
	if scope == ScopeOwner {
		query += ` JOIN items i ON i.id = b.item_id WHERE i.owner_id = ?`
	} else {
		query += ` WHERE b.booker_id = ?`
	}
	args := []any{userID}

	// datetime() normalizes the stored text before comparison, same as the
	// date() wrapping in the availability queries.
	switch state {
	case models.StateCurrent:
		query += ` AND datetime(b.start_date) < datetime(?) AND datetime(b.end_date) > datetime(?)`
		args = append(args, now.UTC(), now.UTC())
	case models.StatePast:
		query += ` AND datetime(b.start_date) < datetime(?) AND datetime(b.end_date) < datetime(?)`
		args = append(args, now.UTC(), now.UTC())
	case models.StateFuture:
		query += ` AND datetime(b.start_date) > datetime(?) AND datetime(b.end_date) > datetime(?)`
		args = append(args, now.UTC(), now.UTC())
	case models.StateWaiting:
		query += ` AND b.status = ?`
		args = append(args, models.StatusWaiting)
	case models.StateRejected:
		query += ` AND b.status = ?`
		args = append(args, models.StatusRejected)
	case models.StateAll:
		// no extra filter
	default:
		return nil, ErrUnsupportedStatus
	}

	query += ` ORDER BY datetime(b.start_date) DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read bookings: %w", err)
	}
	return bookings, nil
}

// FindLastBooking returns the most recent approved booking of the item that
// already ended, or nil when there is none.
func (db *DB) FindLastBooking(ctx context.Context, itemID int64, now time.Time) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b
              WHERE b.item_id = ? AND b.status = ? AND datetime(b.end_date) < datetime(?)
              ORDER BY datetime(b.end_date) DESC LIMIT 1`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, itemID, models.StatusApproved, now.UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find last booking: %w", err)
	}
	return booking, nil
}

// FindNextBooking returns the soonest approved booking of the item that
// starts after now, or nil when there is none.
func (db *DB) FindNextBooking(ctx context.Context, itemID int64, now time.Time) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b
              WHERE b.item_id = ? AND b.status = ? AND datetime(b.start_date) > datetime(?)
              ORDER BY datetime(b.start_date) ASC LIMIT 1`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, itemID, models.StatusApproved, now.UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find next booking: %w", err)
	}
	return booking, nil
}

// HasFinishedBooking reports whether the user had a booking of the item
// that already ended. Comment creation is gated on this.
func (db *DB) HasFinishedBooking(ctx context.Context, itemID, bookerID int64, now time.Time) (bool, error) {
	query := `SELECT COUNT(*) FROM bookings
              WHERE item_id = ? AND booker_id = ? AND datetime(end_date) < datetime(?)`
	var count int
	err := db.QueryRowContext(ctx, query, itemID, bookerID, now.UTC()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check finished bookings: %w", err)
	}
	return count > 0, nil
}

// GetBookingsByDateRange returns bookings whose window intersects the given
// period, ordered by start. Used by the export and the sheets mirror.
func (db *DB) GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b
              WHERE datetime(b.start_date) <= datetime(?) AND datetime(b.end_date) >= datetime(?)
              ORDER BY datetime(b.start_date) ASC`
	rows, err := db.QueryContext(ctx, query, end.UTC(), start.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by date range: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read bookings: %w", err)
	}
	return bookings, nil
}
