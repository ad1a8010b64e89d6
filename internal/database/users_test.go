package database

import (
	"context"
	"testing"

	"shareit/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUserDuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	createTestUser(t, db, "First", "dup@example.com")

	second := &models.User{Name: "Second", Email: "dup@example.com"}
	err := db.CreateUser(ctx, second)
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestUpdateUserPartial(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	user := createTestUser(t, db, "Alice", "alice@example.com")

	newName := "Alice B"
	updated, err := db.UpdateUser(ctx, user.ID, &newName, nil)
	require.NoError(t, err)
	assert.Equal(t, "Alice B", updated.Name)
	assert.Equal(t, "alice@example.com", updated.Email)

	newEmail := "alice.b@example.com"
	updated, err = db.UpdateUser(ctx, user.ID, nil, &newEmail)
	require.NoError(t, err)
	assert.Equal(t, "Alice B", updated.Name)
	assert.Equal(t, "alice.b@example.com", updated.Email)
}

func TestUpdateUserEmailConflict(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	createTestUser(t, db, "Alice", "alice@example.com")
	bob := createTestUser(t, db, "Bob", "bob@example.com")

	taken := "alice@example.com"
	_, err := db.UpdateUser(ctx, bob.ID, nil, &taken)
	assert.ErrorIs(t, err, ErrEmailExists)

	// Keeping your own email is not a conflict
	own := "bob@example.com"
	updated, err := db.UpdateUser(ctx, bob.ID, nil, &own)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", updated.Email)
}

func TestDeleteUser(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	user := createTestUser(t, db, "Alice", "alice@example.com")

	require.NoError(t, db.DeleteUser(ctx, user.ID))

	_, err := db.GetUser(ctx, user.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)

	err = db.DeleteUser(ctx, user.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserExists(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	ok, err := db.UserExists(ctx, 42)
	require.NoError(t, err)
	assert.False(t, ok)

	user := createTestUser(t, db, "Alice", "alice@example.com")
	ok, err = db.UserExists(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestListUsers(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	createTestUser(t, db, "Alice", "alice@example.com")
	createTestUser(t, db, "Bob", "bob@example.com")

	users, err := db.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Alice", users[0].Name)
	assert.Equal(t, "Bob", users[1].Name)
}
