package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomRefKeepsPartsApart(t *testing.T) {
	a := Room{Floor: "2/A", Name: "B"}.Ref()
	b := Room{Floor: "2", Name: "A/B"}.Ref()
	assert.NotEqual(t, a, b)

	rooms := map[RoomRef]int{a: 1, b: 2}
	assert.Len(t, rooms, 2)
	assert.Equal(t, "2/A-201", RoomRef{Floor: "2", Name: "A-201"}.String())

	r := &Reservation{Floor: "3", Room: "B-301"}
	assert.Equal(t, Room{Floor: "3", Name: "B-301"}.Ref(), r.RoomRef())
}
