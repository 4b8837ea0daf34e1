package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "skillbadge/pkg/domain-errors"
)

func TestEligibility(t *testing.T) {
	eligible := VerificationOutcome{
		ValidCertificate: true,
		PlatformVerified: true,
		CoursesFound: []Course{
			{CourseName: "ML101", Cluster: "Machine Learning"},
			{CourseName: "WEB200", Cluster: "Web Developer"},
		},
	}

	t.Run("first course cluster is authoritative", func(t *testing.T) {
		cluster, _, ok := eligible.Eligibility()
		require.True(t, ok)
		assert.Equal(t, "Machine Learning", cluster)
	})

	cases := []struct {
		name   string
		mutate func(o *VerificationOutcome)
		reason Reason
	}{
		{"invalid certificate", func(o *VerificationOutcome) { o.ValidCertificate = false }, ReasonInvalidCertificate},
		{"platform not verified", func(o *VerificationOutcome) { o.PlatformVerified = false }, ReasonPlatformNotVerified},
		{"no courses", func(o *VerificationOutcome) { o.CoursesFound = nil }, ReasonNoCoursesFound},
		{"synthesized error", func(o *VerificationOutcome) { o.Error = "unreachable" }, ReasonVerificationFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := eligible
			o.CoursesFound = append([]Course(nil), eligible.CoursesFound...)
			tc.mutate(&o)
			_, reason, ok := o.Eligibility()
			assert.False(t, ok)
			assert.Equal(t, tc.reason, reason)
		})
	}

	t.Run("unverified outcome is never eligible", func(t *testing.T) {
		o := UnverifiedOutcome("verification service unavailable")
		_, _, ok := o.Eligibility()
		assert.False(t, ok)
		assert.False(t, o.ValidCertificate || o.PlatformVerified || o.UserNameVerified)
		assert.NotNil(t, o.CoursesFound)
	})
}

func TestAttemptTransitions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("happy path", func(t *testing.T) {
		a := NewAttempt("user_1", "bafk", now)
		for _, next := range []State{StateEligible, StateMinting, StateMintConfirmed, StatePersisting, StateIssued} {
			require.NoError(t, a.Transition(next, "", now))
		}
		assert.True(t, a.State.Terminal())
	})

	t.Run("cannot skip minting", func(t *testing.T) {
		a := NewAttempt("user_1", "bafk", now)
		require.NoError(t, a.Transition(StateEligible, "", now))
		err := a.Transition(StateMintConfirmed, "", now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		assert.Equal(t, StateEligible, a.State)
	})

	t.Run("issued is final", func(t *testing.T) {
		assert.Error(t, StateIssued.CanTransitionTo(StatePersisting))
		assert.Error(t, StateRejected.CanTransitionTo(StateEligible))
	})

	t.Run("late confirmation and repair are allowed", func(t *testing.T) {
		assert.NoError(t, StateMintFailed.CanTransitionTo(StateMintConfirmed))
		assert.NoError(t, StatePersistFailed.CanTransitionTo(StatePersisting))
	})
}

func TestResultOf(t *testing.T) {
	now := time.Now()
	a := NewAttempt("user_1", "bafk", now)

	_, ok := ResultOf(a)
	assert.False(t, ok, "verifying attempt has no result yet")

	a.State = StatePersistFailed
	a.Receipt = &MintReceipt{TokenID: "7"}
	res, ok := ResultOf(a)
	require.True(t, ok)
	assert.Equal(t, OutcomePersistFailed, res.Outcome)
	assert.Equal(t, "7", res.TokenID)

	a.State = StateIssued
	a.Badge = &BadgeRecord{TokenID: "7", Cluster: "Machine Learning"}
	res, ok = ResultOf(a)
	require.True(t, ok)
	assert.Equal(t, OutcomeIssued, res.Outcome)
	assert.Equal(t, "7", res.Badge.TokenID)
}

func TestReasonRetryable(t *testing.T) {
	assert.True(t, ReasonReverted.Retryable())
	assert.True(t, ReasonSignerRejected.Retryable())
	assert.False(t, ReasonUnconfirmed.Retryable())
	assert.False(t, ReasonEventNotFound.Retryable())
	assert.False(t, ReasonSubmissionUnknown.Retryable())
}
