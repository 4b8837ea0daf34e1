package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type BreakerSuite struct {
	suite.Suite
	now time.Time
	b   *Breaker
}

func TestBreakerSuite(t *testing.T) {
	suite.Run(t, new(BreakerSuite))
}

func (s *BreakerSuite) SetupTest() {
	s.now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.b = New("verifier",
		WithFailureThreshold(2),
		WithCooldown(time.Minute),
		WithClock(func() time.Time { return s.now }),
	)
}

func (s *BreakerSuite) TestOpensAfterThreshold() {
	s.True(s.b.Allow())
	s.False(s.b.RecordFailure().Opened)
	s.True(s.b.RecordFailure().Opened)
	s.Equal(StateOpen, s.b.State())
	s.False(s.b.Allow())
}

func (s *BreakerSuite) TestSuccessResetsFailureCount() {
	s.b.RecordFailure()
	s.b.RecordSuccess()
	s.False(s.b.RecordFailure().Opened)
	s.Equal(StateClosed, s.b.State())
}

func (s *BreakerSuite) TestHalfOpenAdmitsSingleProbe() {
	s.b.RecordFailure()
	s.b.RecordFailure()

	s.now = s.now.Add(2 * time.Minute)
	s.True(s.b.Allow())
	s.Equal(StateHalfOpen, s.b.State())
	s.False(s.b.Allow(), "second caller must wait for the probe")

	s.True(s.b.RecordSuccess().Closed)
	s.Equal(StateClosed, s.b.State())
	s.True(s.b.Allow())
}

func (s *BreakerSuite) TestProbeFailureReopens() {
	s.b.RecordFailure()
	s.b.RecordFailure()
	s.now = s.now.Add(2 * time.Minute)
	s.Require().True(s.b.Allow())

	s.b.RecordFailure()
	s.Equal(StateOpen, s.b.State())
	s.False(s.b.Allow())
}

func (s *BreakerSuite) TestReset() {
	s.b.RecordFailure()
	s.b.RecordFailure()
	s.b.Reset()
	s.Equal(StateClosed, s.b.State())
	s.True(s.b.Allow())
	s.Equal("verifier", s.b.Name())
	s.Equal("closed", s.b.State().String())
}
