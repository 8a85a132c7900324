package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/ayudame/internal/apperr"
	"github.com/dukerupert/ayudame/internal/model"
)

func TestSubmitRatingRejectsStarsBeforeStore(t *testing.T) {
	e, db := newTestEngine(t, Config{})
	require.NoError(t, db.Close())

	// The database is closed, so reaching the store would fail differently.
	_, err := e.SubmitRating(context.Background(), "r1", "a", "b", 6)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "invalid_stars", apperr.CodeOf(err))

	_, err = e.SubmitRating(context.Background(), "r1", "a", "b", 0)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestSubmitRatingFoldsReputation(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	ctx := context.Background()
	elder, helper, r := acceptedRequest(t, e)
	_, err := e.Complete(ctx, r.ID, elder.ID)
	require.NoError(t, err)

	rating, err := e.SubmitRating(ctx, r.ID, elder.ID, helper.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, rating.Stars)

	st := statsOf(t, e, helper.ID)
	assert.InDelta(t, 5.0, st.Reputation, 0.0001)
	assert.Equal(t, 1, st.RatingCount)

	u, err := e.GetUser(ctx, helper.ID)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, u.Reputation, 0.0001)

	prompts, err := e.PendingPrompts(ctx, elder.ID)
	require.NoError(t, err)
	assert.Empty(t, prompts, "prompt fulfilled")

	_, err = e.SubmitRating(ctx, r.ID, elder.ID, helper.ID, 1)
	assert.ErrorIs(t, err, apperr.ErrDuplicateRating)
	assert.InDelta(t, 5.0, statsOf(t, e, helper.ID).Reputation, 0.0001)

	// The helper may rate the elder back without a prompt.
	_, err = e.SubmitRating(ctx, r.ID, helper.ID, elder.ID, 4)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, statsOf(t, e, elder.ID).Reputation, 0.0001)

	ratings, err := e.RatingsFor(ctx, helper.ID)
	require.NoError(t, err)
	assert.Len(t, ratings, 1)
}

func TestSubmitRatingRunningMean(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	ctx := context.Background()
	elder := register(t, e, "elder", model.RoleElder)
	helper := register(t, e, "helper", model.RoleHelper)

	for _, stars := range []int{5, 3, 4} {
		r := openRequest(t, e, elder, "Tarea")
		_, err := e.Accept(ctx, r.ID, helper.ID)
		require.NoError(t, err)
		_, err = e.Complete(ctx, r.ID, elder.ID)
		require.NoError(t, err)
		_, err = e.SubmitRating(ctx, r.ID, elder.ID, helper.ID, stars)
		require.NoError(t, err)
	}

	st := statsOf(t, e, helper.ID)
	assert.InDelta(t, 4.0, st.Reputation, 0.0001)
	assert.Equal(t, 3, st.RatingCount)
	assert.Equal(t, 3, st.TotalCompletedTasks)
}

func TestSubmitRatingRejections(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	ctx := context.Background()
	elder, helper, r := acceptedRequest(t, e)
	stranger := register(t, e, "stranger", model.RoleHelper)

	_, err := e.SubmitRating(ctx, r.ID, elder.ID, helper.ID, 5)
	assert.Equal(t, "not_completed", apperr.CodeOf(err))

	_, err = e.Complete(ctx, r.ID, elder.ID)
	require.NoError(t, err)

	_, err = e.SubmitRating(ctx, r.ID, stranger.ID, helper.ID, 5)
	assert.Equal(t, "not_party", apperr.CodeOf(err))

	_, err = e.SubmitRating(ctx, r.ID, elder.ID, elder.ID, 5)
	assert.Equal(t, "not_party", apperr.CodeOf(err))

	_, err = e.SubmitRating(ctx, "missing", elder.ID, helper.ID, 5)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPolicies(t *testing.T) {
	progress := FlatProgression(10, 25)
	points, level := progress(model.Stats{Points: 10, Level: 1})
	assert.Equal(t, 20, points)
	assert.Equal(t, 1, level)

	points, level = progress(model.Stats{Points: 40, Level: 2})
	assert.Equal(t, 50, points)
	assert.Equal(t, 3, level)

	_, level = FlatProgression(10, 0)(model.Stats{Points: 1000})
	assert.Equal(t, 1, level)

	assert.InDelta(t, 3.0, MeanReputation(0, 0, 3), 0.0001)
	assert.InDelta(t, 4.5, MeanReputation(4, 1, 5), 0.0001)
	assert.InDelta(t, 3.0, MeanReputation(4, 3, 0), 0.0001)
}
