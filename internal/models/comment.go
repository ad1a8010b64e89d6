package models

import "time"

type Comment struct {
	ID        int64     `json:"id"`
	ItemID    int64     `json:"item_id"`
	AuthorID  int64     `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created"`
}

// CommentView is the comment as it appears in item payloads, with the
// author's display name joined in.
type CommentView struct {
	ID         int64     `json:"id"`
	Text       string    `json:"text"`
	AuthorName string    `json:"authorName"`
	Created    time.Time `json:"created"`
}
