// Package session tracks the per-process usage quota.
package session

import (
	"fmt"
	"sync"
	"time"
)

const Quota = 600 * time.Second

type Session struct {
	id    string
	start time.Time
	clock func() time.Time

	mu     sync.Mutex
	active bool
}

// New starts a session now. A nil clock means time.Now.
func New(clock func() time.Time) *Session {
	if clock == nil {
		clock = time.Now
	}
	start := clock()
	return &Session{
		id:     start.Format("20060102150405"),
		start:  start,
		clock:  clock,
		active: true,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) StartTime() time.Time { return s.start }

func (s *Session) Elapsed() time.Duration {
	return s.clock().Sub(s.start)
}

func (s *Session) Remaining() time.Duration {
	if r := Quota - s.Elapsed(); r > 0 {
		return r
	}
	return 0
}

// CheckQuota reports whether work may continue. Once the quota has been
// exceeded the session stays inactive.
func (s *Session) CheckQuota() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active && s.Elapsed() > Quota {
		s.active = false
	}
	return s.active
}

func (s *Session) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

type Status struct {
	SessionID          string `json:"session_id"`
	StartedAt          string `json:"started_at"`
	ElapsedFormatted   string `json:"elapsed_formatted"`
	RemainingFormatted string `json:"remaining_formatted"`
	IsActive           bool   `json:"is_active"`
	QuotaReached       bool   `json:"quota_reached"`
}

func (s *Session) Status() Status {
	active := s.CheckQuota()
	return Status{
		SessionID:          s.id,
		StartedAt:          s.StartTime().Format(time.RFC3339),
		ElapsedFormatted:   FormatDuration(s.Elapsed()),
		RemainingFormatted: FormatDuration(s.Remaining()),
		IsActive:           active,
		QuotaReached:       !active,
	}
}

// FormatDuration renders d as HH:MM:SS, truncating fractions of a second.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}
