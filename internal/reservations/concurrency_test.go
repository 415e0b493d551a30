package reservations

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libroom/reservations/internal/models"
)

func TestConcurrentCreatesOneWinner(t *testing.T) {
	f := newFixture(t)
	const n = 32

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.Create(context.Background(), params(uuid.New(), "A-201", at(10, 0), at(11, 0)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, conflicts)
	assert.Equal(t, 0, f.svc.locks.Len())
}

func TestConcurrentLimitPerUser(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	rooms := []string{"A-201", "A-202"}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := at(9+i, 0)
			_, err := f.svc.Create(context.Background(), params(user, rooms[i%2], start, start.Add(time.Hour)))
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, ErrLimitExceeded), err.Error())
		}(i)
	}
	wg.Wait()
	assert.Equal(t, DefaultPolicy().MaxLivePerUser, wins)
}

// Random creates, cancels and extensions from many goroutines must never leave two live
// reservations of one room overlapping.
func TestNoOverlapUnderRandomLoad(t *testing.T) {
	f := newFixture(t, withPolicy(func(p *Policy) { p.MaxLivePerUser = 1000 }))
	ctx := context.Background()
	rooms := []string{"A-201", "A-202"}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 60; i++ {
				start := at(8, 0).Add(time.Duration(rng.Intn(48)) * 15 * time.Minute)
				end := start.Add(time.Duration(1+rng.Intn(8)) * 15 * time.Minute)
				r, err := f.svc.Create(ctx, params(uuid.New(), rooms[rng.Intn(len(rooms))], start, end))
				if err != nil {
					if !errors.Is(err, ErrConflict) {
						t.Errorf("create: %v", err)
					}
					continue
				}
				if rng.Intn(4) == 0 {
					if _, err := f.svc.Cancel(ctx, r.ID); err != nil {
						t.Errorf("cancel: %v", err)
					}
				}
			}
		}(int64(w + 1))
	}
	wg.Wait()

	live := make(map[string][]models.Reservation)
	for _, room := range rooms {
		held, err := f.store.ListLiveByRoom(ctx, "2", room, day, day.AddDate(0, 0, 2))
		require.NoError(t, err)
		live[room] = held
	}
	total := 0
	for room, held := range live {
		total += len(held)
		for i := range held {
			for j := i + 1; j < len(held); j++ {
				a, b := held[i], held[j]
				assert.False(t, Overlaps(a.Start, a.End, b.Start, b.End),
					"%s: %s-%s overlaps %s-%s", room, a.Start.Format("15:04"), a.End.Format("15:04"), b.Start.Format("15:04"), b.End.Format("15:04"))
			}
		}
	}
	assert.Positive(t, total)
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name       string
		a, b       [2]int
		overlapped bool
	}{
		{"disjoint", [2]int{9, 10}, [2]int{11, 12}, false},
		{"touching", [2]int{10, 11}, [2]int{11, 12}, false},
		{"partial", [2]int{10, 11}, [2]int{10, 12}, true},
		{"contained", [2]int{9, 13}, [2]int{10, 11}, true},
		{"identical", [2]int{10, 11}, [2]int{10, 11}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Overlaps(at(tc.a[0], 0), at(tc.a[1], 0), at(tc.b[0], 0), at(tc.b[1], 0))
			assert.Equal(t, tc.overlapped, got)
			assert.Equal(t, tc.overlapped, Overlaps(at(tc.b[0], 0), at(tc.b[1], 0), at(tc.a[0], 0), at(tc.a[1], 0)))
		})
	}
}

func TestLockTimeoutIsTransient(t *testing.T) {
	f := newFixture(t, withPolicy(func(p *Policy) { p.LockTimeout = 20 * time.Millisecond }))
	unlock, err := f.svc.locks.Lock(context.Background(), roomLockKey("2", "A-201"))
	require.NoError(t, err)
	defer unlock()

	_, err = f.svc.Create(context.Background(), params(uuid.New(), "A-201", at(10, 0), at(11, 0)))
	requireKind(t, err, KindTransient)
	assert.True(t, IsRetryable(err))

	_, err = f.svc.Create(context.Background(), params(uuid.New(), "A-202", at(10, 0), at(11, 0)))
	require.NoError(t, err, "other rooms are not blocked")
}

// slowStore blocks room lookups until the caller's deadline.
type slowStore struct {
	*MemoryStore
}

func (s slowStore) GetRoom(ctx context.Context, floor, name string) (*models.Room, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestStoreTimeoutIsTransient(t *testing.T) {
	f := newFixture(t)
	svc := NewService(slowStore{f.store}, Options{
		Policy: func() Policy {
			p := DefaultPolicy()
			p.StoreTimeout = 20 * time.Millisecond
			return p
		}(),
		Now: f.clock.Now,
	})

	_, err := svc.Create(context.Background(), params(uuid.New(), "A-201", at(10, 0), at(11, 0)))
	requireKind(t, err, KindTransient)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 0, svc.locks.Len(), "locks released after failure")
}

func TestStaleVersionIsTransient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.book(t, uuid.New(), "A-201", at(10, 0), at(11, 0))

	stale := r.Clone()
	stale.Status = models.StatusApproved
	require.NoError(t, f.store.UpdateReservation(ctx, stale, r.Version))

	err := f.svc.do(ctx, func(ctx context.Context) error {
		return f.store.UpdateReservation(ctx, r, r.Version)
	})
	requireKind(t, err, KindTransient)
}

func TestStoreOverlapBackstop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.book(t, uuid.New(), "A-201", at(10, 0), at(11, 0))

	dup := r.Clone()
	dup.ID = uuid.New()
	err := f.svc.do(ctx, func(ctx context.Context) error {
		return f.store.InsertReservation(ctx, dup)
	})
	requireKind(t, err, KindConflict)
}

// userLockingStore records cross-process user locks around a MemoryStore.
type userLockingStore struct {
	*MemoryStore
	mu             sync.Mutex
	held           map[uuid.UUID]bool
	heldAtInsert   bool
	lockErr        error
	locks, unlocks int
}

func (s *userLockingStore) LockUser(_ context.Context, userID uuid.UUID) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lockErr != nil {
		return nil, s.lockErr
	}
	s.locks++
	s.held[userID] = true
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.unlocks++
		delete(s.held, userID)
	}, nil
}

func (s *userLockingStore) InsertReservation(ctx context.Context, r *models.Reservation) error {
	s.mu.Lock()
	s.heldAtInsert = s.held[r.UserID]
	s.mu.Unlock()
	return s.MemoryStore.InsertReservation(ctx, r)
}

func TestCreateHoldsStoreUserLock(t *testing.T) {
	f := newFixture(t)
	store := &userLockingStore{MemoryStore: f.store, held: map[uuid.UUID]bool{}}
	svc := NewService(store, Options{Now: f.clock.Now})

	_, err := svc.Create(context.Background(), params(uuid.New(), "A-201", at(10, 0), at(11, 0)))
	require.NoError(t, err)
	assert.True(t, store.heldAtInsert, "user lock held while inserting")
	assert.Equal(t, 1, store.locks)
	assert.Equal(t, 1, store.unlocks)
	assert.Empty(t, store.held)
}

func TestStoreUserLockFailureIsTransient(t *testing.T) {
	f := newFixture(t)
	store := &userLockingStore{
		MemoryStore: f.store,
		held:        map[uuid.UUID]bool{},
		lockErr:     errors.New("advisory lock: connection reset"),
	}
	svc := NewService(store, Options{Now: f.clock.Now})

	_, err := svc.Create(context.Background(), params(uuid.New(), "A-201", at(10, 0), at(11, 0)))
	requireKind(t, err, KindTransient)
	assert.Equal(t, 0, svc.locks.Len(), "in-process locks released")

	held, err := f.store.ListLiveByRoom(context.Background(), "2", "A-201", day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, held)
}
