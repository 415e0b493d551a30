package reservations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libroom/reservations/internal/models"
)

func TestMemoryStoreRoomsWithSlashes(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.PutRoom(models.Room{Floor: "2/A", Name: "B", Capacity: 3, IsActive: true})
	store.PutRoom(models.Room{Floor: "2", Name: "A/B", Capacity: 9, IsActive: true})

	rooms, err := store.ListRooms(ctx)
	require.NoError(t, err)
	assert.Len(t, rooms, 2)

	got, err := store.GetRoom(ctx, "2/A", "B")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Capacity)
	got, err = store.GetRoom(ctx, "2", "A/B")
	require.NoError(t, err)
	assert.Equal(t, 9, got.Capacity)

	assert.NotEqual(t, roomLockKey("2/A", "B"), roomLockKey("2", "A/B"))
}
