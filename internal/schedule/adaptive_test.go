package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
)

func rome(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Rome")
	require.NoError(t, err)
	return loc
}

func noJitter(state *State, loc *time.Location) *Adaptive {
	a := NewAdaptive(state, loc)
	a.Jitter = nil
	return a
}

func TestAdaptiveWindows(t *testing.T) {
	loc := rome(t)
	a := noJitter(&State{}, loc)
	at := func(h, m int) time.Time { return time.Date(2025, 4, 18, h, m, 0, 0, loc) }

	tests := []struct {
		name  string
		now   time.Time
		wait  time.Duration
		phase Phase
	}{
		{"early morning", at(7, 0), 120 * time.Minute, PhaseRelax},
		{"before publication", at(11, 10), 30 * time.Minute, PhaseWaiting},
		{"hunting start", at(11, 30), 10 * time.Minute, PhaseHunting},
		{"hunting end", at(14, 59), 10 * time.Minute, PhaseHunting},
		{"afternoon", at(15, 0), 60 * time.Minute, PhaseMonitoring},
		{"evening", at(19, 0), 120 * time.Minute, PhaseRelax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wait, phase := a.Wait(tt.now)
			require.Equal(t, tt.wait, wait)
			require.Equal(t, tt.phase, phase)
		})
	}
}

func TestAdaptiveRelaxesOnceFound(t *testing.T) {
	loc := rome(t)
	state := &State{}
	a := noJitter(state, loc)
	noon := time.Date(2025, 4, 18, 12, 0, 0, 0, loc)

	// yesterday's bulletin does not stop the hunt
	state.MarkFound(noon.AddDate(0, 0, -1), noon)
	_, phase := a.Wait(noon)
	require.Equal(t, PhaseHunting, phase)

	state.MarkFound(noon, noon)
	wait, phase := a.Wait(noon)
	require.Equal(t, PhaseRelax, phase)
	require.Equal(t, 120*time.Minute, wait)

	// new day, hunting again
	_, phase = a.Wait(noon.AddDate(0, 0, 1))
	require.Equal(t, PhaseHunting, phase)
	require.False(t, state.FoundToday(noon))
}

func TestAdaptiveJitterAndCron(t *testing.T) {
	loc := rome(t)
	a := NewAdaptive(&State{}, loc)
	now := time.Date(2025, 4, 18, 16, 0, 0, 0, loc)

	for range 50 {
		wait, _ := a.Wait(now)
		require.GreaterOrEqual(t, wait, 61*time.Minute)
		require.LessOrEqual(t, wait, 64*time.Minute)
	}

	var s cron.Schedule = a
	next := s.Next(now)
	require.True(t, next.After(now.Add(time.Hour)))
}

func TestRunWaitsAfterTheCheck(t *testing.T) {
	loc := rome(t)
	state := &State{}
	a := noJitter(state, loc)
	noon := time.Date(2025, 4, 18, 12, 0, 0, 0, loc)
	a.now = func() time.Time { return noon }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var waits []time.Duration
	a.after = func(d time.Duration) <-chan time.Time {
		waits = append(waits, d)
		if ctx.Err() != nil {
			return nil
		}
		ch := make(chan time.Time, 1)
		ch <- noon
		return ch
	}

	checks := 0
	a.Run(ctx, func(ctx context.Context) {
		checks++
		switch checks {
		case 1:
			// not published yet
		case 2:
			state.MarkFound(noon, noon)
		case 3:
			cancel()
		}
	})

	require.Equal(t, 3, checks)
	require.Equal(t, []time.Duration{10 * time.Minute, 120 * time.Minute, 120 * time.Minute}, waits)
}
