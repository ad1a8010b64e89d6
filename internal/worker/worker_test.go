package worker

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"shareit/internal/database"
	"shareit/internal/models"
)

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{}, nil)

	booking := &models.Booking{
		ID:        1,
		ItemID:    10,
		BookerID:  1,
		Start:     time.Now(),
		End:       time.Now().Add(time.Hour),
		Status:    models.StatusWaiting,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	ctx := context.Background()
	if err := worker.EnqueueTask(ctx, models.SyncTaskBookingCreated, booking.ID, booking, ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != "completed" {
		t.Fatalf("expected status=completed, got %s", status)
	}
	if retryCount != 0 {
		t.Fatalf("expected retry_count=0, got %d", retryCount)
	}
	if nextRetry.Valid {
		t.Fatalf("expected next_retry_at NULL on success")
	}
	if sheets.appendCalls != 1 {
		t.Fatalf("expected append call, got %d", sheets.appendCalls)
	}
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{err: errors.New("boom")}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{MaxRetries: 3, InitialDelay: time.Second}, nil)

	booking := &models.Booking{ID: 2, ItemID: 10, BookerID: 1, Status: models.StatusWaiting}

	ctx := context.Background()
	if err := worker.EnqueueTask(ctx, models.SyncTaskBookingCreated, booking.ID, booking, ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != "retry" {
		t.Fatalf("expected status=retry, got %s", status)
	}
	if retryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", retryCount)
	}
	if !nextRetry.Valid || nextRetry.Time.Before(time.Now()) {
		t.Fatalf("expected next_retry_at in future, got %v", nextRetry)
	}
}

func TestProcessTaskFail(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{err: errors.New("fatal")}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{MaxRetries: 1}, nil)

	booking := &models.Booking{ID: 3, ItemID: 10, BookerID: 1, Status: models.StatusWaiting}

	ctx := context.Background()
	worker.EnqueueTask(ctx, models.SyncTaskBookingCreated, booking.ID, booking, "")
	task, _ := worker.tryLocalQueue()
	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != "failed" {
		t.Fatalf("expected status=failed, got %s", status)
	}
}

func TestHandleSheetTask(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{MaxRetries: 3}, nil)

	ctx := context.Background()

	t.Run("Created", func(t *testing.T) {
		booking := &models.Booking{ID: 1, ItemID: 5}
		err := worker.handleSheetTask(ctx, models.SyncTaskBookingCreated, sheetTaskPayload{Booking: booking})
		if err != nil {
			t.Fatalf("handle: %v", err)
		}
		if sheets.appendCalls != 1 {
			t.Fatalf("expected 1 append call, got %d", sheets.appendCalls)
		}
	})

	t.Run("Decided", func(t *testing.T) {
		err := worker.handleSheetTask(ctx, models.SyncTaskBookingDecided, sheetTaskPayload{BookingID: 123, Status: models.StatusApproved})
		if err != nil {
			t.Fatalf("handle: %v", err)
		}
		if sheets.statusCalls != 1 {
			t.Fatalf("expected 1 status call, got %d", sheets.statusCalls)
		}
	})

	t.Run("DecidedMissingStatus", func(t *testing.T) {
		err := worker.handleSheetTask(ctx, models.SyncTaskBookingDecided, sheetTaskPayload{BookingID: 123})
		if err == nil {
			t.Fatalf("expected error for missing status")
		}
	})

	t.Run("FullResync", func(t *testing.T) {
		err := worker.handleSheetTask(ctx, models.SyncTaskFullResync, sheetTaskPayload{})
		if err != nil {
			t.Fatalf("handle: %v", err)
		}
		if sheets.replaceCalls != 1 {
			t.Fatalf("expected 1 replace call, got %d", sheets.replaceCalls)
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		err := worker.handleSheetTask(ctx, "nonsense", sheetTaskPayload{})
		if err == nil {
			t.Fatalf("expected error for unknown task type")
		}
	})
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}
	d1 := policy.NextDelay(1)
	d2 := policy.NextDelay(2)
	d3 := policy.NextDelay(5)

	if d1 != time.Second {
		t.Fatalf("attempt1 expected 1s, got %s", d1)
	}
	if d2 != 2*time.Second {
		t.Fatalf("attempt2 expected 2s, got %s", d2)
	}
	if d3 != 5*time.Second {
		t.Fatalf("attempt5 expected capped 5s, got %s", d3)
	}
}

func TestEnqueueTaskValidation(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{}, nil)

	ctx := context.Background()
	booking := &models.Booking{ID: 1}

	t.Run("ValidTask", func(t *testing.T) {
		err := worker.EnqueueTask(ctx, models.SyncTaskBookingCreated, 1, booking, "")
		if err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	})

	t.Run("EmptyTaskType", func(t *testing.T) {
		err := worker.EnqueueTask(ctx, "", 1, booking, "")
		if err == nil {
			t.Fatalf("expected error for empty task type")
		}
	})

	t.Run("MissingBookingID", func(t *testing.T) {
		err := worker.EnqueueTask(ctx, models.SyncTaskBookingCreated, 0, nil, "")
		if err == nil {
			t.Fatalf("expected error for missing booking id")
		}
	})

	t.Run("ResyncNeedsNoBooking", func(t *testing.T) {
		err := worker.EnqueueTask(ctx, models.SyncTaskFullResync, 0, nil, "")
		if err != nil {
			t.Fatalf("enqueue resync: %v", err)
		}
	})
}

func TestDecodePayload(t *testing.T) {
	worker := NewSheetsWorker(nil, nil, nil, RetryPolicy{}, nil)

	t.Run("ValidPayload", func(t *testing.T) {
		payload := `{"booking_id":123,"status":"APPROVED"}`
		decoded, err := worker.decodePayload(payload)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if decoded.BookingID != 123 || decoded.Status != "APPROVED" {
			t.Fatalf("unexpected decoded payload: %+v", decoded)
		}
	})

	t.Run("InvalidPayload", func(t *testing.T) {
		payload := `invalid json`
		_, err := worker.decodePayload(payload)
		if err == nil {
			t.Fatalf("expected error for invalid json")
		}
	})
}

// Helpers

type fakeSheets struct {
	err          error
	appendCalls  int
	statusCalls  int
	replaceCalls int
}

func (f *fakeSheets) AppendBooking(ctx context.Context, b *models.Booking) error {
	f.appendCalls++
	return f.err
}

func (f *fakeSheets) UpdateBookingStatus(ctx context.Context, id int64, status string) error {
	f.statusCalls++
	return f.err
}

func (f *fakeSheets) ReplaceBookingsSheet(ctx context.Context, bookings []*models.Booking) error {
	f.replaceCalls++
	return f.err
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.db")
	db, err := database.NewDB(path)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func loadTaskStatus(t *testing.T, db *database.DB, id int64) (status string, retryCount int, nextRetry sql.NullTime) {
	t.Helper()
	row := db.QueryRowContext(context.Background(), `SELECT status, retry_count, next_retry_at FROM sync_queue WHERE id = ?`, id)
	if err := row.Scan(&status, &retryCount, &nextRetry); err != nil {
		t.Fatalf("scan task: %v", err)
	}
	return status, retryCount, nextRetry
}
