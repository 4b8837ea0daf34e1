package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillbadge/internal/badge/models"
	id "skillbadge/pkg/domain"
	dErrors "skillbadge/pkg/domain-errors"
)

type fakeRepairer struct {
	mu         sync.Mutex
	candidates []*models.Attempt
	results    map[id.AttemptID]error
	before     time.Time
	repaired   []id.AttemptID
}

func (f *fakeRepairer) RepairCandidates(_ context.Context, updatedBefore time.Time, _ int) ([]*models.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.before = updatedBefore
	return f.candidates, nil
}

func (f *fakeRepairer) Repair(_ context.Context, attemptID id.AttemptID) (models.WorkflowResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repaired = append(f.repaired, attemptID)
	if err := f.results[attemptID]; err != nil {
		return models.WorkflowResult{}, err
	}
	return models.WorkflowResult{Outcome: models.OutcomeIssued, AttemptID: attemptID}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnce(t *testing.T) {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	ok := models.NewAttempt("user_1", "bafk1", now)
	pending := models.NewAttempt("user_2", "bafk2", now)
	broken := models.NewAttempt("user_3", "bafk3", now)

	repairer := &fakeRepairer{
		candidates: []*models.Attempt{ok, pending, broken},
		results: map[id.AttemptID]error{
			pending.ID: dErrors.WithRef(dErrors.CodeTimeout, "mint transaction still pending", pending.ID.String(), nil),
			broken.ID:  errors.New("store down"),
		},
	}
	s := New(repairer,
		WithMinAge(10*time.Minute),
		WithLogger(quietLogger()),
		WithClock(func() time.Time { return now }),
	)

	report, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Candidates: 3, Issued: 1, Pending: 1, Failed: 1}, report)
	assert.Equal(t, now.Add(-10*time.Minute), repairer.before)
	assert.Equal(t, []id.AttemptID{ok.ID, pending.ID, broken.ID}, repairer.repaired)
}

func TestRunOnceStopsWhenCancelled(t *testing.T) {
	repairer := &fakeRepairer{candidates: []*models.Attempt{models.NewAttempt("user_1", "bafk", time.Now())}}
	s := New(repairer, WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.RunOnce(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, repairer.repaired)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := New(&fakeRepairer{}, WithSchedule("every now and then"), WithLogger(quietLogger()))
	require.Error(t, s.Start(context.Background()))
}

func TestStartRunsOnSchedule(t *testing.T) {
	repairer := &fakeRepairer{candidates: []*models.Attempt{models.NewAttempt("user_1", "bafk", time.Now())}}
	s := New(repairer, WithSchedule("@every 1s"), WithLogger(quietLogger()))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool {
		repairer.mu.Lock()
		defer repairer.mu.Unlock()
		return len(repairer.repaired) > 0
	}, 3*time.Second, 50*time.Millisecond)
}
