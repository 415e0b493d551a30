package reservations

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libroom/reservations/internal/models"
	"github.com/libroom/reservations/internal/notify"
)

func TestExtensionApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := uuid.New()
	r := f.activate(t, user, "A-201", at(10, 0), at(11, 0))

	req, err := f.svc.RequestExtension(ctx, r.ID, user, at(11, 30))
	require.NoError(t, err)
	assert.Equal(t, models.StatusExtensionRequested, req.Status)
	require.NotNil(t, req.Extension)
	assert.Equal(t, models.ExtensionRequested, req.Extension.Status)
	assert.Equal(t, at(11, 0), req.End, "end moves only on approval")
	assert.Equal(t, []notify.Audience{notify.Admins}, f.notifier.sent(notify.EventExtensionRequested))

	ok, err := f.svc.HandleExtension(ctx, r.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, ok.Status)
	assert.Equal(t, at(11, 30), ok.End)
	assert.Equal(t, models.ExtensionApproved, ok.Extension.Status)
	require.NotNil(t, ok.Extension.DecidedAt)

	_, err = f.svc.Create(ctx, params(uuid.New(), "A-201", at(11, 0), at(12, 0)))
	requireKind(t, err, KindConflict)
}

func TestExtensionDeniedKeepsEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := uuid.New()
	r := f.activate(t, user, "A-201", at(10, 0), at(11, 0))

	_, err := f.svc.RequestExtension(ctx, r.ID, user, at(11, 30))
	require.NoError(t, err)
	denied, err := f.svc.HandleExtension(ctx, r.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, denied.Status)
	assert.Equal(t, at(11, 0), denied.End)
	assert.Equal(t, models.ExtensionDenied, denied.Extension.Status)
	assert.Equal(t, []notify.Audience{notify.User(user)}, f.notifier.sent(notify.EventExtensionDenied))

	f.book(t, uuid.New(), "A-201", at(11, 0), at(12, 0))
}

func TestExtensionApprovalRechecksConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := uuid.New()
	r := f.activate(t, user, "A-201", at(10, 0), at(11, 0))

	_, err := f.svc.RequestExtension(ctx, r.ID, user, at(11, 30))
	require.NoError(t, err)
	f.book(t, uuid.New(), "A-201", at(11, 0), at(12, 0))

	_, err = f.svc.HandleExtension(ctx, r.ID, true)
	requireKind(t, err, KindConflict)

	cur, err := f.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExtensionRequested, cur.Status)
	assert.Equal(t, at(11, 0), cur.End)

	denied, err := f.svc.HandleExtension(ctx, r.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, denied.Status)
}

func TestExtensionRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := uuid.New()

	pending := f.book(t, user, "A-202", at(12, 0), at(13, 0))
	_, err := f.svc.RequestExtension(ctx, pending.ID, user, at(13, 30))
	requireKind(t, err, KindInvalidTransition)

	r := f.activate(t, user, "A-201", at(10, 0), at(11, 0))
	_, err = f.svc.RequestExtension(ctx, r.ID, user, at(11, 0))
	requireKind(t, err, KindValidation)
	_, err = f.svc.RequestExtension(ctx, r.ID, user, at(14, 30))
	requireKind(t, err, KindValidation)

	_, err = f.svc.HandleExtension(ctx, r.ID, true)
	requireKind(t, err, KindInvalidTransition)

	_, err = f.svc.RequestExtension(ctx, r.ID, user, at(12, 0))
	require.NoError(t, err)
	_, err = f.svc.RequestExtension(ctx, r.ID, user, at(12, 30))
	requireKind(t, err, KindInvalidTransition)
}
