package models

import "time"

type ItemRequest struct {
	ID          int64     `json:"id"`
	RequesterID int64     `json:"requester_id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created"`
}

// ItemRequestView is a request together with the items offered in answer.
type ItemRequestView struct {
	ID          int64     `json:"id"`
	Description string    `json:"description"`
	Created     time.Time `json:"created"`
	Items       []Item    `json:"items"`
}
