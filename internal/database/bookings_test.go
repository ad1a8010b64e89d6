package database

import (
	"context"
	"testing"
	"time"

	"shareit/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	db, err := NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, name, email string) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: email}
	require.NoError(t, db.CreateUser(context.Background(), u))
	return u
}

func createTestItem(t *testing.T, db *DB, ownerID int64, name string) *models.Item {
	t.Helper()
	i := &models.Item{OwnerID: ownerID, Name: name, Description: name + " description", Available: true}
	require.NoError(t, db.CreateItem(context.Background(), i))
	return i
}

func createTestBooking(t *testing.T, db *DB, itemID, bookerID int64, start, end time.Time, status string) *models.Booking {
	t.Helper()
	b := &models.Booking{ItemID: itemID, BookerID: bookerID, Start: start, End: end, Status: status}
	require.NoError(t, db.CreateBooking(context.Background(), b))
	return b
}

func TestCreateAndGetBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	owner := createTestUser(t, db, "Owner", "owner@example.com")
	booker := createTestUser(t, db, "Booker", "booker@example.com")
	item := createTestItem(t, db, owner.ID, "Drill")

	start := time.Now().Add(time.Hour).UTC()
	end := start.Add(2 * time.Hour)
	booking := createTestBooking(t, db, item.ID, booker.ID, start, end, models.StatusWaiting)

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.ID, got.ID)
	assert.Equal(t, item.ID, got.ItemID)
	assert.Equal(t, booker.ID, got.BookerID)
	assert.Equal(t, models.StatusWaiting, got.Status)
	assert.WithinDuration(t, start, got.Start, time.Second)
	assert.WithinDuration(t, end, got.End, time.Second)
}

func TestGetBookingNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetBooking(context.Background(), 999)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestDecideBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	owner := createTestUser(t, db, "Owner", "owner@example.com")
	booker := createTestUser(t, db, "Booker", "booker@example.com")
	item := createTestItem(t, db, owner.ID, "Drill")

	start := time.Now().Add(time.Hour)
	booking := createTestBooking(t, db, item.ID, booker.ID, start, start.Add(time.Hour), models.StatusWaiting)

	err := db.DecideBooking(ctx, booking.ID, models.StatusApproved)
	require.NoError(t, err)

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)

	// Repeat decision hits zero rows
	err = db.DecideBooking(ctx, booking.ID, models.StatusRejected)
	assert.ErrorIs(t, err, ErrAlreadyDecided)

	got, _ = db.GetBooking(ctx, booking.ID)
	assert.Equal(t, models.StatusApproved, got.Status)
}

func TestListBookingsStates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	owner := createTestUser(t, db, "Owner", "owner@example.com")
	booker := createTestUser(t, db, "Booker", "booker@example.com")
	item := createTestItem(t, db, owner.ID, "Drill")

	now := time.Now().UTC()

	past := createTestBooking(t, db, item.ID, booker.ID, now.Add(-3*time.Hour), now.Add(-2*time.Hour), models.StatusApproved)
	current := createTestBooking(t, db, item.ID, booker.ID, now.Add(-time.Hour), now.Add(time.Hour), models.StatusApproved)
	future := createTestBooking(t, db, item.ID, booker.ID, now.Add(2*time.Hour), now.Add(3*time.Hour), models.StatusWaiting)
	rejected := createTestBooking(t, db, item.ID, booker.ID, now.Add(4*time.Hour), now.Add(5*time.Hour), models.StatusRejected)

	tests := []struct {
		state models.State
		want  []int64
	}{
		{models.StateAll, []int64{rejected.ID, future.ID, current.ID, past.ID}},
		{models.StateCurrent, []int64{current.ID}},
		{models.StatePast, []int64{past.ID}},
		{models.StateFuture, []int64{rejected.ID, future.ID}},
		{models.StateWaiting, []int64{future.ID}},
		{models.StateRejected, []int64{rejected.ID}},
	}

	for _, scope := range []BookingScope{ScopeBooker, ScopeOwner} {
		userID := booker.ID
		if scope == ScopeOwner {
			userID = owner.ID
		}
		for _, tt := range tests {
			got, err := db.ListBookings(ctx, scope, userID, tt.state, now, 0, 100)
			require.NoError(t, err, "state %s", tt.state)
			ids := make([]int64, 0, len(got))
			for _, b := range got {
				ids = append(ids, b.ID)
			}
			assert.Equal(t, tt.want, ids, "scope %d state %s", scope, tt.state)
		}
	}
}

func TestListBookingsOrderAndPagination(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	owner := createTestUser(t, db, "Owner", "owner@example.com")
	booker := createTestUser(t, db, "Booker", "booker@example.com")
	item := createTestItem(t, db, owner.ID, "Drill")

	now := time.Now().UTC()
	for i := 0; i < 10; i++ {
		start := now.Add(time.Duration(i+1) * time.Hour)
		createTestBooking(t, db, item.ID, booker.ID, start, start.Add(30*time.Minute), models.StatusWaiting)
	}

	// Newest start first
	all, err := db.ListBookings(ctx, ScopeBooker, booker.ID, models.StateAll, now, 0, 100)
	require.NoError(t, err)
	require.Len(t, all, 10)
	for i := 1; i < len(all); i++ {
		assert.True(t, !all[i-1].Start.Before(all[i].Start))
	}

	page, err := db.ListBookings(ctx, ScopeBooker, booker.ID, models.StateAll, now, 7, 7)
	require.NoError(t, err)
	assert.Len(t, page, 3)
	assert.Equal(t, all[7].ID, page[0].ID)
}

func TestListBookingsOwnerScopeExcludesOthers(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	owner := createTestUser(t, db, "Owner", "owner@example.com")
	other := createTestUser(t, db, "Other", "other@example.com")
	booker := createTestUser(t, db, "Booker", "booker@example.com")
	ownItem := createTestItem(t, db, owner.ID, "Drill")
	otherItem := createTestItem(t, db, other.ID, "Saw")

	now := time.Now().UTC()
	mine := createTestBooking(t, db, ownItem.ID, booker.ID, now.Add(time.Hour), now.Add(2*time.Hour), models.StatusWaiting)
	createTestBooking(t, db, otherItem.ID, booker.ID, now.Add(time.Hour), now.Add(2*time.Hour), models.StatusWaiting)

	got, err := db.ListBookings(ctx, ScopeOwner, owner.ID, models.StateAll, now, 0, 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, mine.ID, got[0].ID)
}

func TestFindLastAndNextBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	owner := createTestUser(t, db, "Owner", "owner@example.com")
	booker := createTestUser(t, db, "Booker", "booker@example.com")
	item := createTestItem(t, db, owner.ID, "Drill")

	now := time.Now().UTC()

	// Two finished approved bookings, one future approved, one future waiting
	createTestBooking(t, db, item.ID, booker.ID, now.Add(-6*time.Hour), now.Add(-5*time.Hour), models.StatusApproved)
	last := createTestBooking(t, db, item.ID, booker.ID, now.Add(-3*time.Hour), now.Add(-2*time.Hour), models.StatusApproved)
	next := createTestBooking(t, db, item.ID, booker.ID, now.Add(2*time.Hour), now.Add(3*time.Hour), models.StatusApproved)
	createTestBooking(t, db, item.ID, booker.ID, now.Add(time.Hour), now.Add(90*time.Minute), models.StatusWaiting)

	gotLast, err := db.FindLastBooking(ctx, item.ID, now)
	require.NoError(t, err)
	require.NotNil(t, gotLast)
	assert.Equal(t, last.ID, gotLast.ID)

	gotNext, err := db.FindNextBooking(ctx, item.ID, now)
	require.NoError(t, err)
	require.NotNil(t, gotNext)
	assert.Equal(t, next.ID, gotNext.ID)
}

func TestFindLastBookingNone(t *testing.T) {
	db := setupTestDB(t)

	got, err := db.FindLastBooking(context.Background(), 1, time.Now())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHasFinishedBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	owner := createTestUser(t, db, "Owner", "owner@example.com")
	booker := createTestUser(t, db, "Booker", "booker@example.com")
	item := createTestItem(t, db, owner.ID, "Drill")

	now := time.Now().UTC()

	ok, err := db.HasFinishedBooking(ctx, item.ID, booker.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	// Future booking does not count
	createTestBooking(t, db, item.ID, booker.ID, now.Add(time.Hour), now.Add(2*time.Hour), models.StatusApproved)
	ok, err = db.HasFinishedBooking(ctx, item.ID, booker.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	// Finished one does, regardless of status
	createTestBooking(t, db, item.ID, booker.ID, now.Add(-2*time.Hour), now.Add(-time.Hour), models.StatusRejected)
	ok, err = db.HasFinishedBooking(ctx, item.ID, booker.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)
}
