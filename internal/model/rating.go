package model

import "time"

const (
	MinStars = 1
	MaxStars = 5
)

type Rating struct {
	ID        int64     `json:"id"`
	RequestID string    `json:"requestId"`
	RaterID   string    `json:"raterUid"`
	RatedID   string    `json:"ratedUid"`
	Stars     int       `json:"stars"`
	CreatedAt time.Time `json:"createdAt"`
}

// RatingPrompt asks RaterID to rate RatedID after a completed request.
type RatingPrompt struct {
	RequestID   string     `json:"requestId"`
	RaterID     string     `json:"raterUid"`
	RatedID     string     `json:"ratedUid"`
	CreatedAt   time.Time  `json:"createdAt"`
	FulfilledAt *time.Time `json:"fulfilledAt,omitempty"`
}
