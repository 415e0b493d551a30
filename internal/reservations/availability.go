package reservations

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/libroom/reservations/internal/models"
)

// DateLayout is the calendar date format accepted by the availability query.
const DateLayout = "2006-01-02"

// ParseDate reads a YYYY-MM-DD date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, newError(KindValidation, "date must be YYYY-MM-DD")
	}
	return d, nil
}

// dayWindow returns [00:00, next 00:00) of date's calendar day in loc.
func dayWindow(date time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := date.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// ComputeAvailability returns the occupancy of every room on date, marking the caller's own
// reservations. Inactive rooms are listed with no intervals and are never looked up.
func (s *Service) ComputeAvailability(ctx context.Context, date time.Time, userID uuid.UUID) ([]models.RoomAvailability, error) {
	from, to := dayWindow(date, s.policy.Location)

	var rooms []models.Room
	if err := s.do(ctx, func(ctx context.Context) error {
		var err error
		rooms, err = s.store.ListRooms(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	sort.SliceStable(rooms, func(i, j int) bool {
		if rooms[i].Floor != rooms[j].Floor {
			return rooms[i].Floor < rooms[j].Floor
		}
		return rooms[i].Name < rooms[j].Name
	})

	out := make([]models.RoomAvailability, 0, len(rooms))
	for _, room := range rooms {
		ra := models.RoomAvailability{
			Floor:    room.Floor,
			Room:     room.Name,
			IsActive: room.IsActive,
			Capacity: room.Capacity,
			Occupied: []models.OccupiedInterval{},
		}
		if !room.IsActive {
			out = append(out, ra)
			continue
		}
		var held []models.Reservation
		if err := s.do(ctx, func(ctx context.Context) error {
			var err error
			held, err = s.store.ListLiveByRoom(ctx, room.Floor, room.Name, from, to)
			return err
		}); err != nil {
			return nil, err
		}
		sort.SliceStable(held, func(i, j int) bool { return held[i].Start.Before(held[j].Start) })
		for _, r := range held {
			ra.Occupied = append(ra.Occupied, models.OccupiedInterval{
				ReservationID: r.ID,
				Start:         r.Start,
				End:           r.End,
				Mine:          r.UserID == userID,
				Status:        r.Status,
			})
		}
		out = append(out, ra)
	}
	return out, nil
}
