package reservations

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/libroom/reservations/internal/eligibility"
	"github.com/libroom/reservations/internal/models"
	"github.com/libroom/reservations/internal/notify"
)

// day is the calendar day most tests book on; the clock starts at 08:00.
var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type sentEvent struct {
	audience notify.Audience
	event    string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (n *recordingNotifier) Notify(audience notify.Audience, event string, _ any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{audience: audience, event: event})
}

func (n *recordingNotifier) sent(event string) []notify.Audience {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Audience
	for _, e := range n.events {
		if e.event == event {
			out = append(out, e.audience)
		}
	}
	return out
}

type recordingQueue struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (q *recordingQueue) EnqueueArchive(_ context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, id)
	return nil
}

func (q *recordingQueue) queued() []uuid.UUID {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]uuid.UUID(nil), q.ids...)
}

type fixture struct {
	svc      *Service
	store    *MemoryStore
	clock    *testClock
	notifier *recordingNotifier
	queue    *recordingQueue
}

type fixtureOption func(*Options)

func withPolicy(fn func(*Policy)) fixtureOption {
	return func(o *Options) { fn(&o.Policy) }
}

// withInlineArchive drops the queue so terminal reservations are archived directly.
func withInlineArchive() fixtureOption {
	return func(o *Options) {
		o.ArchiveQueue = nil
		o.ArchiveInline = true
	}
}

func withEligibility(p eligibility.Predicate) fixtureOption {
	return func(o *Options) { o.Eligibility = p }
}

// newFixture builds a service over a memory store holding floor 2 rooms A-201 (capacity 4),
// A-202 (capacity 8) and the inactive A-203.
func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	store := NewMemoryStore()
	store.PutRoom(models.Room{Floor: "2", Name: "A-201", Capacity: 4, IsActive: true})
	store.PutRoom(models.Room{Floor: "2", Name: "A-202", Capacity: 8, IsActive: true})
	store.PutRoom(models.Room{Floor: "2", Name: "A-203", Capacity: 8, IsActive: false})

	f := &fixture{
		store:    store,
		clock:    &testClock{now: at(8, 0)},
		notifier: &recordingNotifier{},
		queue:    &recordingQueue{},
	}
	o := Options{
		Policy:       DefaultPolicy(),
		Notifier:     f.notifier,
		ArchiveQueue: f.queue,
		Now:          f.clock.Now,
	}
	for _, fn := range opts {
		fn(&o)
	}
	f.svc = NewService(store, o)
	return f
}

func params(user uuid.UUID, room string, start, end time.Time) CreateParams {
	return CreateParams{UserID: user, Department: "CS", Floor: "2", Room: room, Start: start, End: end}
}

func (f *fixture) book(t *testing.T, user uuid.UUID, room string, start, end time.Time) *models.Reservation {
	t.Helper()
	r, err := f.svc.Create(context.Background(), params(user, room, start, end))
	require.NoError(t, err)
	return r
}

// activate books, approves and starts a reservation, leaving the clock at start.
func (f *fixture) activate(t *testing.T, user uuid.UUID, room string, start, end time.Time) *models.Reservation {
	t.Helper()
	ctx := context.Background()
	r := f.book(t, user, room, start, end)
	_, err := f.svc.Approve(ctx, r.ID)
	require.NoError(t, err)
	f.clock.Set(start)
	r, err = f.svc.Start(ctx, r.ID)
	require.NoError(t, err)
	return r
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, KindOf(err), err.Error())
}
