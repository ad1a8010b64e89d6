package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"shareit/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentDecision(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "concurrency.db")
	db, err := NewDB(dbPath)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()

	owner := createTestUser(t, db, "Owner", "owner@example.com")
	booker := createTestUser(t, db, "Booker", "booker@example.com")
	item := createTestItem(t, db, owner.ID, "Drill")

	start := time.Now().Add(time.Hour)
	booking := createTestBooking(t, db, item.ID, booker.ID, start, start.Add(time.Hour), models.StatusWaiting)

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			status := models.StatusApproved
			if id%2 == 0 {
				status = models.StatusRejected
			}
			results <- db.DecideBooking(ctx, booking.ID, status)
		}(i)
	}

	wg.Wait()
	close(results)

	successCount := 0
	alreadyDecided := 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, ErrAlreadyDecided):
			alreadyDecided++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// Exactly one decision wins, the rest see the closed transition
	assert.Equal(t, 1, successCount)
	assert.Equal(t, numGoroutines-1, alreadyDecided)

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.True(t, models.IsTerminalStatus(got.Status))
}
