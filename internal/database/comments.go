package database

import (
	"context"
	"fmt"
	"time"

	"shareit/internal/models"
)

func (db *DB) CreateComment(ctx context.Context, comment *models.Comment) error {
	query := `INSERT INTO comments (item_id, author_id, text, created_at) VALUES (?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query, comment.ItemID, comment.AuthorID, comment.Text, now)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	comment.ID = id
	comment.CreatedAt = now

	return nil
}

// ListCommentsByItem returns the item's comments with author names resolved,
// oldest first.
func (db *DB) ListCommentsByItem(ctx context.Context, itemID int64) ([]models.CommentView, error) {
	query := `SELECT c.id, c.text, u.name, c.created_at
              FROM comments c JOIN users u ON u.id = c.author_id
              WHERE c.item_id = ? ORDER BY datetime(c.created_at) ASC`
	rows, err := db.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []models.CommentView{}
	for rows.Next() {
		var c models.CommentView
		if err := rows.Scan(&c.ID, &c.Text, &c.AuthorName, &c.Created); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read comments: %w", err)
	}
	return comments, nil
}
