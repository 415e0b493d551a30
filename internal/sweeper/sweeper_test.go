package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libroom/reservations/internal/models"
	"github.com/libroom/reservations/internal/reservations"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func setup(t *testing.T) (*reservations.Service, *reservations.MemoryStore, *clock) {
	t.Helper()
	store := reservations.NewMemoryStore()
	store.PutRoom(models.Room{Floor: "2", Name: "A-201", Capacity: 6, IsActive: true})
	store.PutRoom(models.Room{Floor: "2", Name: "A-202", Capacity: 6, IsActive: true})
	clk := &clock{now: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
	policy := reservations.DefaultPolicy()
	policy.MaxLivePerUser = 10
	svc := reservations.NewService(store, reservations.Options{Policy: policy, Now: clk.Now})
	return svc, store, clk
}

func book(t *testing.T, svc *reservations.Service, room string, start, end time.Time) *models.Reservation {
	t.Helper()
	r, err := svc.Create(context.Background(), reservations.CreateParams{
		UserID: uuid.New(),
		Floor:  "2",
		Room:   room,
		Start:  start,
		End:    end,
	})
	require.NoError(t, err)
	return r
}

func TestSweepExpiresAndCompletes(t *testing.T) {
	svc, store, clk := setup(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	pending := book(t, svc, "A-201", day.Add(9*time.Hour), day.Add(10*time.Hour))
	approved := book(t, svc, "A-202", day.Add(9*time.Hour), day.Add(10*time.Hour))
	_, err := svc.Approve(ctx, approved.ID)
	require.NoError(t, err)

	started := book(t, svc, "A-201", day.Add(10*time.Hour), day.Add(11*time.Hour))
	_, err = svc.Approve(ctx, started.ID)
	require.NoError(t, err)
	clk.Set(day.Add(10*time.Hour + 5*time.Minute))
	_, err = svc.Start(ctx, started.ID)
	require.NoError(t, err)

	future := book(t, svc, "A-202", day.Add(12*time.Hour), day.Add(13*time.Hour))

	clk.Set(day.Add(11 * time.Hour))
	sw := New(svc, nil, 0)
	res, err := sw.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Scanned: 3, Expired: 2, Completed: 1}, res)

	for id, want := range map[uuid.UUID]models.Status{
		pending.ID:  models.StatusExpired,
		approved.ID: models.StatusExpired,
		started.ID:  models.StatusCompleted,
		future.ID:   models.StatusPending,
	} {
		got, err := store.GetReservation(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status, id.String())
	}

	again, err := sw.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{}, again)
}

type flakyEngine struct {
	due    []models.Reservation
	failID uuid.UUID
}

func (f *flakyEngine) ListDue(context.Context) ([]models.Reservation, error) { return f.due, nil }

func (f *flakyEngine) Reconcile(_ context.Context, id uuid.UUID) (models.Status, bool, error) {
	if id == f.failID {
		return "", false, reservations.ErrTransient
	}
	return models.StatusExpired, true, nil
}

func TestSweepContinuesPastFailures(t *testing.T) {
	bad := uuid.New()
	eng := &flakyEngine{
		due:    []models.Reservation{{ID: uuid.New()}, {ID: bad}, {ID: uuid.New()}},
		failID: bad,
	}
	res, err := New(eng, nil, 0).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Scanned: 3, Expired: 2, Failed: 1}, res)
}

type brokenEngine struct{}

func (brokenEngine) ListDue(context.Context) ([]models.Reservation, error) {
	return nil, errors.New("store down")
}

func (brokenEngine) Reconcile(context.Context, uuid.UUID) (models.Status, bool, error) {
	return "", false, nil
}

func TestSweepListFailure(t *testing.T) {
	_, err := New(brokenEngine{}, nil, 0).Sweep(context.Background())
	require.Error(t, err)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	sw := New(brokenEngine{}, nil, 0)
	require.Error(t, sw.Start("not a schedule"))
	sw.Stop()
}

func TestStartStop(t *testing.T) {
	sw := New(&flakyEngine{}, nil, 0)
	require.NoError(t, sw.Start("@every 1h"))
	sw.Stop()
}
