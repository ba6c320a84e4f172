// Package sla computes SLA clock state from timestamps. Nothing here performs
// I/O; every function takes the evaluation instant explicitly.
package sla

import (
	"time"

	"github.com/spec-kit/guest-requests/internal/domain"
)

// Budget returns the full target duration of the state's policy.
func Budget(s domain.SLAState) time.Duration {
	return time.Duration(s.TargetMinutes) * time.Minute
}

// ElapsedActive returns the running (unpaused) time accrued up to now.
// A stopped clock does not accrue past StoppedAt.
func ElapsedActive(s domain.SLAState, now time.Time) time.Duration {
	if s.StartedAt == nil {
		return 0
	}
	end := now
	if s.StoppedAt != nil && s.StoppedAt.Before(end) {
		end = *s.StoppedAt
	}
	elapsed := end.Sub(*s.StartedAt) - time.Duration(s.TotalPausedSeconds)*time.Second
	if s.PausedAt != nil && end.After(*s.PausedAt) {
		elapsed -= end.Sub(*s.PausedAt)
	}
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// RemainingSeconds returns the seconds left on the clock. The boolean is false
// when the ticket is exempted and no countdown applies.
func RemainingSeconds(s domain.SLAState, now time.Time) (int64, bool) {
	if s.Exempted {
		return 0, false
	}
	if s.Breached {
		return 0, true
	}
	return rawRemaining(s, now), true
}

func rawRemaining(s domain.SLAState, now time.Time) int64 {
	budget := Budget(s)
	if s.StartedAt == nil {
		return int64(budget / time.Second)
	}
	remaining := budget - ElapsedActive(s, now)
	if remaining < 0 {
		return 0
	}
	return int64(remaining / time.Second)
}

// ShouldBreach reports whether a running, unexempted clock has run out at now
// without the breach having been recorded yet.
func ShouldBreach(s domain.SLAState, now time.Time) bool {
	if s.Exempted || s.Breached || s.StartedAt == nil {
		return false
	}
	return rawRemaining(s, now) == 0
}

// Deadline projects the instant the clock runs out. It is nil while the clock
// is not running: not started, paused, stopped, breached or exempted.
func Deadline(s domain.SLAState) *time.Time {
	if s.StartedAt == nil || s.PausedAt != nil || s.StoppedAt != nil || s.Breached || s.Exempted {
		return nil
	}
	at := s.StartedAt.Add(Budget(s) + time.Duration(s.TotalPausedSeconds)*time.Second)
	return &at
}

// Start begins the clock if it has not begun yet.
func Start(s domain.SLAState, now time.Time) domain.SLAState {
	if s.StartedAt == nil {
		s.StartedAt = timePtr(now)
	}
	return s
}

// Pause opens a pause window. Pausing an already paused clock is a no-op.
func Pause(s domain.SLAState, now time.Time) domain.SLAState {
	if s.PausedAt == nil {
		s.PausedAt = timePtr(now)
	}
	return s
}

// Resume folds the open pause window into TotalPausedSeconds.
func Resume(s domain.SLAState, now time.Time) domain.SLAState {
	if s.PausedAt == nil {
		return s
	}
	if paused := now.Sub(*s.PausedAt); paused > 0 {
		s.TotalPausedSeconds += int64(paused / time.Second)
	}
	s.PausedAt = nil
	return s
}

// Stop freezes the clock at now. An open pause is folded first.
func Stop(s domain.SLAState, now time.Time) domain.SLAState {
	s = Resume(s, now)
	if s.StoppedAt == nil {
		s.StoppedAt = timePtr(now)
	}
	return s
}

// MarkBreached records the breach. It never clears an earlier breach.
func MarkBreached(s domain.SLAState, now time.Time) domain.SLAState {
	if !s.Breached {
		s.Breached = true
		s.BreachedAt = timePtr(now)
	}
	return s
}

// Exempt permanently removes the ticket from breach accounting.
func Exempt(s domain.SLAState) domain.SLAState {
	s.Exempted = true
	return s
}

func timePtr(t time.Time) *time.Time {
	return &t
}
