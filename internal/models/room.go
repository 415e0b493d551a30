package models

import "time"

// RoomFeatures are the amenity flags shown on the booking screen.
type RoomFeatures struct {
	Wifi           bool `json:"wifi"`
	AirConditioner bool `json:"air_conditioner"`
	Projector      bool `json:"projector"`
	Monitor        bool `json:"monitor"`
}

// Room is a bookable library room. (Floor, Name) is unique.
type Room struct {
	Floor       string       `json:"floor"`
	Name        string       `json:"name"`
	Capacity    int          `json:"capacity"`
	IsActive    bool         `json:"is_active"`
	Features    RoomFeatures `json:"features"`
	Description string       `json:"description,omitempty"`
	ImageURL    string       `json:"image_url,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// RoomRef is the composite (Floor, Name) identity of a room. It is comparable, so it serves
// as a map key without joining the parts into one ambiguous string.
type RoomRef struct {
	Floor string
	Name  string
}

// String is for logs and messages only.
func (r RoomRef) String() string {
	return r.Floor + "/" + r.Name
}

// Ref returns the room's identity.
func (r Room) Ref() RoomRef {
	return RoomRef{Floor: r.Floor, Name: r.Name}
}
