package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/softwaremap/errors"
	swtest "github.com/teranos/softwaremap/internal/testing"
)

func newTestRunStore(t *testing.T) (*RunStore, *time.Time) {
	t.Helper()
	clock := time.Date(2026, 5, 1, 3, 0, 0, 0, time.UTC)
	s := NewRunStore(swtest.CreateTestDB(t))
	s.now = func() time.Time { return clock }
	return s, &clock
}

func TestStartAndFinishRun(t *testing.T) {
	s, clock := newTestRunStore(t)
	ctx := context.Background()

	run, err := s.StartRun(ctx, "dates")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusRunning, run.Status)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "dates", got.Task)
	assert.Nil(t, got.FinishedAt)
	assert.Nil(t, got.Error)
	assert.Zero(t, got.Duration())

	*clock = clock.Add(90 * time.Second)
	require.NoError(t, s.FinishRun(ctx, run, RunStatusFailed, Counts{Processed: 40, Skipped: 2}, errors.New("endpoint down")))

	got, err = s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.Equal(t, 40, got.Processed)
	assert.Equal(t, 2, got.Skipped)
	require.NotNil(t, got.Error)
	assert.Equal(t, "endpoint down", *got.Error)
	assert.Equal(t, 90*time.Second, got.Duration())
}

func TestGetRun_NotFound(t *testing.T) {
	s, _ := newTestRunStore(t)
	_, err := s.GetRun(context.Background(), "missing")
	assert.True(t, errors.IsNotFoundError(err))

	err = s.FinishRun(context.Background(), &Run{ID: "missing"}, RunStatusCompleted, Counts{}, nil)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestListRuns(t *testing.T) {
	s, clock := newTestRunStore(t)
	ctx := context.Background()

	for _, task := range []string{"software", "dates", "dates"} {
		_, err := s.StartRun(ctx, task)
		require.NoError(t, err)
		*clock = clock.Add(time.Minute)
	}

	all, err := s.ListRuns(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].StartedAt.After(all[2].StartedAt), "newest first")

	dates, err := s.ListRuns(ctx, "dates", 10)
	require.NoError(t, err)
	assert.Len(t, dates, 2)

	last, err := s.LastRun(ctx, "software")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "software", last.Task)

	none, err := s.LastRun(ctx, "blurbs")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestMarkAbandoned(t *testing.T) {
	s, _ := newTestRunStore(t)
	ctx := context.Background()

	stale, err := s.StartRun(ctx, "genres")
	require.NoError(t, err)
	done, err := s.StartRun(ctx, "blurbs")
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, done, RunStatusCompleted, Counts{Processed: 1}, nil))

	n, err := s.MarkAbandoned(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.GetRun(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
}
