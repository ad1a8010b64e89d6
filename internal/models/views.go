package models

import "time"

// UserView and ItemView are the nested projections embedded in booking
// payloads.
type UserView struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type ItemView struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Available   bool   `json:"available"`
	OwnerID     int64  `json:"owner_id"`
}

// BookingView is the outbound booking representation: the booking itself,
// item and booker snapshots, and the booker id duplicated flat for client
// convenience.
type BookingView struct {
	ID       int64     `json:"id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Status   string    `json:"status"`
	Item     ItemView  `json:"item"`
	Booker   UserView  `json:"booker"`
	BookerID int64     `json:"bookerId"`
}

// BookingRef is the short last/next booking reference attached to item
// detail payloads.
type BookingRef struct {
	ID       int64     `json:"id"`
	BookerID int64     `json:"bookerId"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// ItemDetail is an item with its booking context and comments, as returned
// to the owner (last/next are omitted for everyone else).
type ItemDetail struct {
	Item
	LastBooking *BookingRef   `json:"lastBooking,omitempty"`
	NextBooking *BookingRef   `json:"nextBooking,omitempty"`
	Comments    []CommentView `json:"comments"`
}
