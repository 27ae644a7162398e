package utils

import (
	"sync"
	"time"
)

// Stopwatch is an explicit timing context for a pipeline run. Stage durations
// are recorded against it instead of a process-level start time, so concurrent
// runs keep independent clocks.
type Stopwatch struct {
	mu      sync.Mutex
	started time.Time
	laps    []Lap
}

// Lap is one named timed stage
type Lap struct {
	Name     string
	Duration time.Duration
}

// NewStopwatch creates a stopwatch started at the current time
func NewStopwatch() *Stopwatch {
	return &Stopwatch{started: time.Now()}
}

// Lap records the duration of a stage that began when the previous lap ended
// (or when the stopwatch started).
func (s *Stopwatch) Lap(name string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	last := s.started
	for _, l := range s.laps {
		last = last.Add(l.Duration)
	}
	d := time.Since(last)
	s.laps = append(s.laps, Lap{Name: name, Duration: d})
	return d
}

// Elapsed returns the total time since the stopwatch started
func (s *Stopwatch) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.started)
}

// Laps returns a copy of the recorded laps
func (s *Stopwatch) Laps() []Lap {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Lap, len(s.laps))
	copy(out, s.laps)
	return out
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return d.Round(time.Microsecond).String()
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	if d < time.Minute {
		return d.Round(10 * time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
