package models

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusPending            Status = "pending"
	StatusApproved           Status = "approved"
	StatusActive             Status = "active"
	StatusExtensionRequested Status = "extension_requested"
	StatusCompleted          Status = "completed"
	StatusEndedEarly         Status = "ended_early"
	StatusCancelled          Status = "cancelled"
	StatusExpired            Status = "expired"
)

// LiveStatuses hold their interval in the room; two live reservations of one room never overlap.
var LiveStatuses = []Status{StatusPending, StatusApproved, StatusActive, StatusExtensionRequested}

// TerminalStatuses allow no further transition other than archival.
var TerminalStatuses = []Status{StatusCompleted, StatusEndedEarly, StatusCancelled, StatusExpired}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s.Live() || s.Terminal()
}

// Live reports whether s still occupies the room.
func (s Status) Live() bool {
	for _, l := range LiveStatuses {
		if s == l {
			return true
		}
	}
	return false
}

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	for _, t := range TerminalStatuses {
		if s == t {
			return true
		}
	}
	return false
}

// ExtensionStatus tracks the extension sub-workflow.
type ExtensionStatus string

const (
	ExtensionNone      ExtensionStatus = "none"
	ExtensionRequested ExtensionStatus = "requested"
	ExtensionApproved  ExtensionStatus = "approved"
	ExtensionDenied    ExtensionStatus = "denied"
)

// ExtensionRequest is the most recent request to push a reservation's end back.
type ExtensionRequest struct {
	NewEnd      time.Time       `json:"new_end"`
	RequestedBy uuid.UUID       `json:"requested_by"`
	Status      ExtensionStatus `json:"status"`
	RequestedAt time.Time       `json:"requested_at"`
	DecidedAt   *time.Time      `json:"decided_at,omitempty"`
}

// Participant is an additional occupant of a reservation, unique by UserID within the roster.
type Participant struct {
	UserID  string    `json:"user_id"`
	Name    string    `json:"name"`
	Email   string    `json:"email,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

// Reservation holds one room for [Start, End).
type Reservation struct {
	ID           uuid.UUID         `json:"id"`
	UserID       uuid.UUID         `json:"user_id"`
	Department   string            `json:"department,omitempty"`
	Floor        string            `json:"floor"`
	Room         string            `json:"room"`
	Start        time.Time         `json:"start"`
	End          time.Time         `json:"end"`
	Status       Status            `json:"status"`
	Purpose      string            `json:"purpose"`
	Participants []Participant     `json:"participants"`
	Extension    *ExtensionRequest `json:"extension,omitempty"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	EndedAt      *time.Time        `json:"ended_at,omitempty"`
	Version      int64             `json:"version"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// RoomRef identifies the reserved room.
func (r *Reservation) RoomRef() RoomRef {
	return RoomRef{Floor: r.Floor, Name: r.Room}
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (r *Reservation) Clone() *Reservation {
	if r == nil {
		return nil
	}
	c := *r
	if r.Participants != nil {
		c.Participants = append([]Participant(nil), r.Participants...)
	}
	if r.Extension != nil {
		ext := *r.Extension
		if ext.DecidedAt != nil {
			t := *ext.DecidedAt
			ext.DecidedAt = &t
		}
		c.Extension = &ext
	}
	if r.StartedAt != nil {
		t := *r.StartedAt
		c.StartedAt = &t
	}
	if r.EndedAt != nil {
		t := *r.EndedAt
		c.EndedAt = &t
	}
	return &c
}

// HasParticipant reports whether userID is already on the roster.
func (r *Reservation) HasParticipant(userID string) bool {
	for _, p := range r.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}
