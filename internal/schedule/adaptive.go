// Package schedule decides when the bulletin job runs next. The bulletin is
// usually published around midday, so checks are frequent until today's
// edition has been found and sparse afterwards.
package schedule

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// Phase names the polling regime in effect
type Phase string

const (
	PhaseWaiting    Phase = "waiting"
	PhaseHunting    Phase = "hunting"
	PhaseMonitoring Phase = "monitoring"
	PhaseRelax      Phase = "relax"
)

// State tracks whether today's bulletin was already found. It resets on
// the first check of a new day.
type State struct {
	mu        sync.Mutex
	found     bool
	lastCheck string
}

// MarkFound records that the bulletin issued on day was retrieved. Bulletins
// of other days do not count.
func (s *State) MarkFound(day, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetIfNewDay(now)
	if day.Format(time.DateOnly) == now.Format(time.DateOnly) {
		s.found = true
	}
}

// FoundToday reports whether today's bulletin was already retrieved
func (s *State) FoundToday(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetIfNewDay(now)
	return s.found
}

func (s *State) resetIfNewDay(now time.Time) {
	today := now.Format(time.DateOnly)
	if s.lastCheck != today {
		s.found = false
		s.lastCheck = today
	}
}

// Adaptive is a cron.Schedule whose interval depends on the time of day and
// on whether today's bulletin was found
type Adaptive struct {
	State    *State
	Location *time.Location
	// Jitter is added to every wait, 60 to 240 seconds by default
	Jitter func() time.Duration

	now   func() time.Time
	after func(d time.Duration) <-chan time.Time
}

// NewAdaptive creates a schedule evaluated in loc
func NewAdaptive(state *State, loc *time.Location) *Adaptive {
	if loc == nil {
		loc = time.Local
	}
	return &Adaptive{
		State:    state,
		Location: loc,
		Jitter: func() time.Duration {
			return time.Duration(60+rand.IntN(181)) * time.Second
		},
		now:   time.Now,
		after: time.After,
	}
}

// Wait returns how long to sleep after a check made at now
func (a *Adaptive) Wait(now time.Time) (time.Duration, Phase) {
	local := now.In(a.Location)
	hour, minute := local.Hour(), local.Minute()
	found := a.State.FoundToday(local)

	var wait time.Duration
	var phase Phase
	switch {
	case hour >= 11 && hour <= 14 && !found:
		if hour == 11 && minute < 30 {
			wait, phase = 30*time.Minute, PhaseWaiting
		} else {
			wait, phase = 10*time.Minute, PhaseHunting
		}
	case hour >= 15 && hour < 19:
		wait, phase = 60*time.Minute, PhaseMonitoring
	default:
		wait, phase = 120*time.Minute, PhaseRelax
	}
	if a.Jitter != nil {
		wait += a.Jitter()
	}
	return wait, phase
}

// Run calls check, then sleeps for the wait computed once check returned,
// until ctx is done. A check that finds today's bulletin relaxes the very
// next wait.
func (a *Adaptive) Run(ctx context.Context, check func(ctx context.Context)) {
	for ctx.Err() == nil {
		check(ctx)

		now := a.now()
		wait, phase := a.Wait(now)
		slog.Info("schedule: next bulletin check", "phase", phase, "in", wait.Round(time.Second), "at", now.Add(wait).In(a.Location).Format(time.DateTime))
		select {
		case <-ctx.Done():
		case <-a.after(wait):
		}
	}
}

// Next implements cron.Schedule. cron asks for the next time when it starts
// a job, so a state change made by that job only shows one cycle later; Run
// has no such lag.
func (a *Adaptive) Next(t time.Time) time.Time {
	wait, phase := a.Wait(t)
	next := t.Add(wait)
	slog.Info("schedule: next bulletin check", "phase", phase, "in", wait.Round(time.Second), "at", next.In(a.Location).Format(time.DateTime))
	return next
}
