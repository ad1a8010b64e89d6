package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shareit/internal/models"
)

func (db *DB) CreateRequest(ctx context.Context, req *models.ItemRequest) error {
	query := `INSERT INTO requests (requester_id, description, created_at) VALUES (?, ?, ?)`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query, req.RequesterID, req.Description, now)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	req.ID = id
	req.CreatedAt = now

	return nil
}

func (db *DB) GetRequest(ctx context.Context, id int64) (*models.ItemRequest, error) {
	query := `SELECT id, requester_id, description, created_at FROM requests WHERE id = ?`
	var r models.ItemRequest
	err := db.QueryRowContext(ctx, query, id).Scan(&r.ID, &r.RequesterID, &r.Description, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("request %d: %w", id, ErrRequestNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return &r, nil
}

// ListRequestsByRequester returns the user's own requests, newest first.
func (db *DB) ListRequestsByRequester(ctx context.Context, requesterID int64) ([]*models.ItemRequest, error) {
	query := `SELECT id, requester_id, description, created_at FROM requests
              WHERE requester_id = ? ORDER BY datetime(created_at) DESC`
	rows, err := db.QueryContext(ctx, query, requesterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()
	return collectRequests(rows)
}

// ListOtherRequests returns everyone else's requests for browsing, newest
// first, paginated.
func (db *DB) ListOtherRequests(ctx context.Context, requesterID int64, offset, limit int) ([]*models.ItemRequest, error) {
	query := `SELECT id, requester_id, description, created_at FROM requests
              WHERE requester_id != ? ORDER BY datetime(created_at) DESC LIMIT ? OFFSET ?`
	rows, err := db.QueryContext(ctx, query, requesterID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()
	return collectRequests(rows)
}

func collectRequests(rows *sql.Rows) ([]*models.ItemRequest, error) {
	var requests []*models.ItemRequest
	for rows.Next() {
		var r models.ItemRequest
		if err := rows.Scan(&r.ID, &r.RequesterID, &r.Description, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read requests: %w", err)
	}
	return requests, nil
}
