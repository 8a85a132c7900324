package model

import (
	"strings"
	"time"
)

type Status string

const (
	StatusCreated   Status = "Creada"
	StatusAccepted  Status = "Aceptada"
	StatusCompleted Status = "Completada"
	StatusCancelled Status = "Cancelada"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Urgency string

const (
	UrgencyNone   Urgency = ""
	UrgencyHigh   Urgency = "Alta"
	UrgencyMedium Urgency = "Media"
	UrgencyLow    Urgency = "Baja"
)

// ParseUrgency accepts the stored values and their English names.
func ParseUrgency(s string) (Urgency, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return UrgencyNone, true
	case "alta", "high":
		return UrgencyHigh, true
	case "media", "medium":
		return UrgencyMedium, true
	case "baja", "low":
		return UrgencyLow, true
	}
	return UrgencyNone, false
}

// Party is the contact snapshot of one side of a request.
type Party struct {
	UserID   string `json:"uid"`
	Username string `json:"username"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
}

func (p Party) withoutContact() Party {
	return Party{UserID: p.UserID, Username: p.Username}
}

// Empty reports whether nobody occupies the slot.
func (p Party) Empty() bool {
	return p.UserID == ""
}

type Request struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Urgency     Urgency    `json:"urgency"`
	CreatedBy   Role       `json:"createdBy"`
	Elder       Party      `json:"older"`
	Helper      Party      `json:"helper"`
	AcceptedBy  string     `json:"acceptedByUid"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"dateCreated"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
}

// Slot returns the party slot belonging to role.
func (r *Request) Slot(role Role) *Party {
	if role == RoleElder {
		return &r.Elder
	}
	return &r.Helper
}

// Creator returns the party that opened the request.
func (r *Request) Creator() Party {
	return *r.Slot(r.CreatedBy)
}

// Seeking returns the role the request is waiting for.
func (r *Request) Seeking() Role {
	return r.CreatedBy.Opposite()
}

// IsParty reports whether userID occupies either slot.
func (r *Request) IsParty(userID string) bool {
	return userID != "" && (r.Elder.UserID == userID || r.Helper.UserID == userID)
}

// Counterpart returns the user on the other side from userID.
func (r *Request) Counterpart(userID string) (string, bool) {
	switch userID {
	case "":
		return "", false
	case r.Elder.UserID:
		return r.Helper.UserID, r.Helper.UserID != ""
	case r.Helper.UserID:
		return r.Elder.UserID, r.Elder.UserID != ""
	}
	return "", false
}

// Public returns the copy shown to users outside the request. Phone and
// address survive only on the creator's slot while the request is still
// open, since helpers need them to decide whether to accept.
func (r *Request) Public() *Request {
	out := *r
	out.Elder = r.Elder.withoutContact()
	out.Helper = r.Helper.withoutContact()
	if r.Status == StatusCreated {
		*out.Slot(r.CreatedBy) = r.Creator()
	}
	return &out
}

// ViewFor returns r as userID may see it: whole for its parties, Public
// for everyone else.
func (r *Request) ViewFor(userID string) *Request {
	if r.IsParty(userID) {
		return r
	}
	return r.Public()
}

// NewRequest is the input for creating a request.
type NewRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Urgency     Urgency `json:"urgency"`
}
