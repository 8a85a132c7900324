package model

import "time"

type Activity struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"uid"`
	RequestID   string    `json:"requestId,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Time        time.Time `json:"time"`
}
