package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shareit/internal/models"
)

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	taken, err := db.emailTaken(ctx, user.Email, 0)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("email %s: %w", user.Email, ErrEmailExists)
	}

	query := `INSERT INTO users (name, email, created_at, updated_at) VALUES (?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query, user.Name, user.Email, now, now)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now

	return nil
}

func (db *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT id, name, email, created_at, updated_at FROM users WHERE id = ?`
	var u models.User
	err := db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// UserExists is the cheap precondition check used before booking and item
// operations. It does not load the row.
func (db *DB) UserExists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return true, nil
}

// UpdateUser applies a partial update. Nil fields keep their stored values.
func (db *DB) UpdateUser(ctx context.Context, id int64, name, email *string) (*models.User, error) {
	user, err := db.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if email != nil && *email != user.Email {
		taken, err := db.emailTaken(ctx, *email, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, fmt.Errorf("email %s: %w", *email, ErrEmailExists)
		}
		user.Email = *email
	}
	if name != nil {
		user.Name = *name
	}

	query := `UPDATE users SET name = ?, email = ?, updated_at = ? WHERE id = ?`
	now := time.Now().UTC()
	if _, err := db.ExecContext(ctx, query, user.Name, user.Email, now, id); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	user.UpdatedAt = now

	return user, nil
}

func (db *DB) DeleteUser(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("user %d: %w", id, ErrUserNotFound)
	}
	return nil
}

func (db *DB) ListUsers(ctx context.Context) ([]*models.User, error) {
	query := `SELECT id, name, email, created_at, updated_at FROM users ORDER BY id`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read users: %w", err)
	}
	return users, nil
}

// emailTaken checks the email against all users except excludeID. The UNIQUE
// index on the column backs this up under concurrency.
func (db *DB) emailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE email = ? AND id != ?`, email, excludeID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return true, nil
}
