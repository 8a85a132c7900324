package model

import "time"

// DaysPerWeek is the number of weekly completion slots, Monday first.
const DaysPerWeek = 7

type Stats struct {
	UserID              string           `json:"uid"`
	Level               int              `json:"level"`
	Points              int              `json:"points"`
	TotalCompletedTasks int              `json:"totalCompletedTasks"`
	WeekCompletedTasks  [DaysPerWeek]int `json:"weekCompletedTasks"`
	TasksInProgress     int              `json:"tasksInProgress"`
	Reputation          float64          `json:"reputation"`
	RatingCount         int              `json:"ratingCount"`
	JoinedAt            time.Time        `json:"joinedIn"`
}

// WeekdayIndex maps t onto the weekly slots: Monday=0 ... Sunday=6.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % DaysPerWeek
}
