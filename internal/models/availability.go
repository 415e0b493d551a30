package models

import (
	"time"

	"github.com/google/uuid"
)

// OccupiedInterval is one held slot in the public occupancy view.
type OccupiedInterval struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Mine          bool      `json:"mine"`
	Status        Status    `json:"status"`
}

// RoomAvailability is the occupancy of one room for a date. Inactive rooms carry no intervals.
type RoomAvailability struct {
	Floor    string             `json:"floor"`
	Room     string             `json:"room"`
	IsActive bool               `json:"is_active"`
	Capacity int                `json:"capacity"`
	Occupied []OccupiedInterval `json:"occupied"`
}
