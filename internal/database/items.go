package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shareit/internal/models"
)

const itemColumns = `id, owner_id, name, description, available, request_id, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }) (*models.Item, error) {
	var i models.Item
	err := row.Scan(
		&i.ID, &i.OwnerID, &i.Name, &i.Description, &i.Available, &i.RequestID,
		&i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (db *DB) CreateItem(ctx context.Context, item *models.Item) error {
	query := `INSERT INTO items (owner_id, name, description, available, request_id, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		item.OwnerID, item.Name, item.Description, item.Available, item.RequestID, now, now)
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	item.ID = id
	item.CreatedAt = now
	item.UpdatedAt = now

	return nil
}

func (db *DB) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = ?`
	item, err := scanItem(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %d: %w", id, ErrItemNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// UpdateItem applies a patch to an item after verifying ownership. A patch
// from anyone but the owner reads as a missing item.
func (db *DB) UpdateItem(ctx context.Context, id, ownerID int64, patch models.ItemPatch) (*models.Item, error) {
	item, err := db.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.OwnerID != ownerID {
		return nil, fmt.Errorf("item %d is not owned by user %d: %w", id, ownerID, ErrItemNotFound)
	}

	if patch.Name != nil {
		item.Name = *patch.Name
	}
	if patch.Description != nil {
		item.Description = *patch.Description
	}
	if patch.Available != nil {
		item.Available = *patch.Available
	}

	query := `UPDATE items SET name = ?, description = ?, available = ?, updated_at = ? WHERE id = ?`
	now := time.Now().UTC()
	if _, err := db.ExecContext(ctx, query, item.Name, item.Description, item.Available, now, id); err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	item.UpdatedAt = now

	return item, nil
}

func (db *DB) ListItemsByOwner(ctx context.Context, ownerID int64, offset, limit int) ([]*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE owner_id = ? ORDER BY id LIMIT ? OFFSET ?`
	rows, err := db.QueryContext(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// SearchItems matches the text against name and description of available
// items, case-insensitively. A blank query returns nothing.
func (db *DB) SearchItems(ctx context.Context, text string, offset, limit int) ([]*models.Item, error) {
	if text == "" {
		return nil, nil
	}
	pattern := "%" + text + "%"
	query := `SELECT ` + itemColumns + ` FROM items
              WHERE available = 1 AND (name LIKE ? COLLATE NOCASE OR description LIKE ? COLLATE NOCASE)
              ORDER BY id LIMIT ? OFFSET ?`
	rows, err := db.QueryContext(ctx, query, pattern, pattern, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to search items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// ListItemsByRequest returns the items offered in response to a request.
func (db *DB) ListItemsByRequest(ctx context.Context, requestID int64) ([]*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE request_id = ? ORDER BY id`
	rows, err := db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items by request: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

func collectItems(rows *sql.Rows) ([]*models.Item, error) {
	var items []*models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read items: %w", err)
	}
	return items, nil
}
