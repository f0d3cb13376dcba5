package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestNewAssignsTimestampID(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 17, 9, 3, 7, 0, time.Local)}
	s := New(clock.Now)
	assert.Equal(t, "20240517090307", s.ID())
	assert.True(t, s.IsActive())
}

func TestQuotaIsSticky(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := New(clock.Now)

	clock.Advance(Quota)
	assert.True(t, s.CheckQuota(), "exactly at the quota is still allowed")

	clock.Advance(time.Second)
	assert.False(t, s.CheckQuota())

	// Rewinding the clock does not reactivate the session.
	clock.Advance(-time.Hour)
	assert.False(t, s.CheckQuota())
	assert.False(t, s.IsActive())
}

func TestStatus(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := New(clock.Now)
	clock.Advance(75 * time.Second)

	st := s.Status()
	assert.Equal(t, "2024-01-01T12:00:00Z", st.StartedAt)
	assert.Equal(t, "00:01:15", st.ElapsedFormatted)
	assert.Equal(t, "00:08:45", st.RemainingFormatted)
	assert.True(t, st.IsActive)
	assert.False(t, st.QuotaReached)

	clock.Advance(time.Hour)
	st = s.Status()
	assert.Equal(t, "01:01:15", st.ElapsedFormatted)
	assert.Equal(t, "00:00:00", st.RemainingFormatted)
	assert.False(t, st.IsActive)
	assert.True(t, st.QuotaReached)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatDuration(-time.Second))
	assert.Equal(t, "00:00:59", FormatDuration(59*time.Second+900*time.Millisecond))
	assert.Equal(t, "10:00:01", FormatDuration(10*time.Hour+time.Second))
}
