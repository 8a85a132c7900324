package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/ayudame/internal/apperr"
	"github.com/dukerupert/ayudame/internal/model"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to model.Status
		want     bool
	}{
		{model.StatusCreated, model.StatusAccepted, true},
		{model.StatusCreated, model.StatusCompleted, false},
		{model.StatusCreated, model.StatusCancelled, false},
		{model.StatusAccepted, model.StatusCompleted, true},
		{model.StatusAccepted, model.StatusCancelled, true},
		{model.StatusAccepted, model.StatusCreated, true},
		{model.StatusCompleted, model.StatusCancelled, false},
		{model.StatusCompleted, model.StatusAccepted, false},
		{model.StatusCancelled, model.StatusCreated, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

// acceptedRequest returns an elder, a helper and a request the helper has accepted.
func acceptedRequest(t *testing.T, e *Engine) (*model.User, *model.User, *model.Request) {
	t.Helper()
	elder := register(t, e, "elder", model.RoleElder)
	helper := register(t, e, "helper", model.RoleHelper)
	r := openRequest(t, e, elder, "Compra semanal")
	r, err := e.Accept(context.Background(), r.ID, helper.ID)
	require.NoError(t, err)
	return elder, helper, r
}

func TestCompleteSideEffects(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	ctx := context.Background()
	elder, helper, r := acceptedRequest(t, e)

	done, err := e.Complete(ctx, r.ID, elder.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	assert.True(t, done.CompletedAt.Equal(wednesday))

	st := statsOf(t, e, helper.ID)
	assert.Equal(t, 1, st.TotalCompletedTasks)
	assert.Equal(t, 0, st.TasksInProgress)
	assert.Equal(t, [model.DaysPerWeek]int{0, 0, 1, 0, 0, 0, 0}, st.WeekCompletedTasks)
	assert.Equal(t, DefaultPointsPerTask, st.Points)

	u, err := e.GetUser(ctx, helper.ID)
	require.NoError(t, err)
	assert.Equal(t, DefaultPointsPerTask, u.Points, "profile mirrors stats")

	assert.Equal(t, 0, statsOf(t, e, elder.ID).TotalCompletedTasks, "creator is not credited")

	for _, uid := range []string{elder.ID, helper.ID} {
		entries, err := e.Activity(ctx, uid, 0)
		require.NoError(t, err)
		require.Len(t, entries, 2, "accepted + completed for %s", uid)
		assert.Equal(t, activityCompleted, entries[0].Title)
		assert.Equal(t, r.ID, entries[0].RequestID)
	}

	prompts, err := e.PendingPrompts(ctx, elder.ID)
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.Equal(t, helper.ID, prompts[0].RatedID)

	prompts, err = e.PendingPrompts(ctx, helper.ID)
	require.NoError(t, err)
	assert.Empty(t, prompts)
}

func TestCompleteTwice(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	ctx := context.Background()
	elder, helper, r := acceptedRequest(t, e)

	_, err := e.Complete(ctx, r.ID, helper.ID)
	require.NoError(t, err)

	_, err = e.Complete(ctx, r.ID, elder.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	st := statsOf(t, e, helper.ID)
	assert.Equal(t, 1, st.TotalCompletedTasks)
	assert.Equal(t, 1, st.WeekCompletedTasks[2])
	assert.Equal(t, 0, st.TasksInProgress)
}

func TestCompleteRejections(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	ctx := context.Background()
	elder, _, r := acceptedRequest(t, e)
	stranger := register(t, e, "stranger", model.RoleHelper)

	_, err := e.Complete(ctx, r.ID, stranger.ID)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = e.Complete(ctx, "missing", elder.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	open := openRequest(t, e, elder, "Sin aceptar")
	_, err = e.Complete(ctx, open.ID, elder.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestCancelIsTerminal(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	ctx := context.Background()
	elder, helper, r := acceptedRequest(t, e)

	cancelled, err := e.Cancel(ctx, r.ID, elder.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	assert.Equal(t, helper.ID, cancelled.AcceptedBy)
	require.NotNil(t, cancelled.CancelledAt)

	st := statsOf(t, e, helper.ID)
	assert.Equal(t, 0, st.TasksInProgress)
	assert.Equal(t, 0, st.TotalCompletedTasks)

	_, err = e.Cancel(ctx, r.ID, helper.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	_, err = e.Complete(ctx, r.ID, helper.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	_, err = e.Release(ctx, r.ID, helper.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	entries, err := e.Activity(ctx, helper.ID, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, activityCancelled, entries[0].Title)
}

func TestReleaseReturnsToPool(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	ctx := context.Background()
	elder, helper, r := acceptedRequest(t, e)

	_, err := e.Release(ctx, r.ID, elder.ID)
	assert.Equal(t, "not_acceptor", apperr.CodeOf(err))

	released, err := e.Release(ctx, r.ID, helper.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCreated, released.Status)
	assert.Empty(t, released.AcceptedBy)
	assert.True(t, released.Helper.Empty())
	assert.Equal(t, elder.ID, released.Elder.UserID)
	assert.Equal(t, 0, statsOf(t, e, helper.ID).TasksInProgress)

	other := register(t, e, "helper2", model.RoleHelper)
	again, err := e.Accept(ctx, r.ID, other.ID)
	require.NoError(t, err)
	assert.Equal(t, other.ID, again.AcceptedBy)
}

func TestReconcileRepairsDrift(t *testing.T) {
	e, db := newTestEngine(t, Config{})
	ctx := context.Background()
	_, helper, _ := acceptedRequest(t, e)

	_, err := db.Exec(`UPDATE stats SET tasks_in_progress = 3 WHERE uid = ?`, helper.ID)
	require.NoError(t, err)

	n, err := e.Reconcile(ctx, helper.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, statsOf(t, e, helper.ID).TasksInProgress)

	n, err = e.Reconcile(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestResetWeek(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	ctx := context.Background()
	elder, helper, r := acceptedRequest(t, e)
	_, err := e.Complete(ctx, r.ID, elder.ID)
	require.NoError(t, err)

	n, err := e.ResetWeek(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	st := statsOf(t, e, helper.ID)
	assert.Equal(t, [model.DaysPerWeek]int{}, st.WeekCompletedTasks)
	assert.Equal(t, 1, st.TotalCompletedTasks)
}
