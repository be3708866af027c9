package sprout

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// TimerStore persists the running timer set so timers survive a restart.
// Timers are device-local and never written to the remote store.
type TimerStore interface {
	LoadTimers() ([]ActiveTimer, error)
	PutTimer(t ActiveTimer) error
	DeleteTimer(timerID string) error
}

// TimerTracker maintains zero or more independently running stopwatches,
// at most one per category. Stopping a timer does not create a LogEntry;
// the explicit save action in the app layer does that before stopping.
type TimerTracker struct {
	mu     sync.Mutex
	clock  Clock
	store  TimerStore
	logger Logger
	timers map[TimerCategory]ActiveTimer
}

// NewTimerTracker creates a tracker. store may be nil for a purely
// in-memory tracker (tests).
func NewTimerTracker(store TimerStore, clock Clock, logger Logger) *TimerTracker {
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &TimerTracker{
		clock:  clock,
		store:  store,
		logger: logger,
		timers: make(map[TimerCategory]ActiveTimer),
	}
}

// Load rehydrates running timers from the store.
func (tt *TimerTracker) Load() error {
	if tt.store == nil {
		return nil
	}
	timers, err := tt.store.LoadTimers()
	if err != nil {
		return fmt.Errorf("loading timers: %w", err)
	}

	tt.mu.Lock()
	defer tt.mu.Unlock()
	for _, t := range timers {
		tt.timers[t.Category] = t
	}
	return nil
}

// Start begins a stopwatch for the category. Returns ErrTimerRunning when a
// timer of that category is already running; categories, not timer ids, are
// the uniqueness key.
func (tt *TimerTracker) Start(category TimerCategory) (ActiveTimer, error) {
	if !ValidTimerCategory(category) {
		return ActiveTimer{}, fmt.Errorf("%w: unknown timer category %q", ErrValidation, category)
	}

	tt.mu.Lock()
	if _, running := tt.timers[category]; running {
		tt.mu.Unlock()
		return ActiveTimer{}, fmt.Errorf("%w: %s", ErrTimerRunning, category)
	}

	meta := timerMetas[category]
	start := tt.clock.Now()
	t := ActiveTimer{
		ID:       fmt.Sprintf("%s-%d", category, start.UnixMilli()),
		Category: category,
		Start:    start.UnixMilli(),
		Label:    meta.Label,
		Icon:     meta.Icon,
		Color:    meta.Color,
	}
	tt.timers[category] = t
	tt.mu.Unlock()

	if tt.store != nil {
		if err := tt.store.PutTimer(t); err != nil {
			return ActiveTimer{}, fmt.Errorf("persisting timer: %w", err)
		}
	}
	tt.logger.Debug("timer started", "category", category, "id", t.ID)
	return t, nil
}

// Find returns the running timer with the given id.
func (tt *TimerTracker) Find(timerID string) (ActiveTimer, bool) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	for _, t := range tt.timers {
		if t.ID == timerID {
			return t, true
		}
	}
	return ActiveTimer{}, false
}

// Active returns the running timers ordered by start instant.
func (tt *TimerTracker) Active() []ActiveTimer {
	tt.mu.Lock()
	out := make([]ActiveTimer, 0, len(tt.timers))
	for _, t := range tt.timers {
		out = append(out, t)
	}
	tt.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// Elapsed returns wall-clock now minus the timer's start instant.
func (tt *TimerTracker) Elapsed(timerID string) (time.Duration, error) {
	t, ok := tt.Find(timerID)
	if !ok {
		return 0, fmt.Errorf("%w: timer %q", ErrNotFound, timerID)
	}
	return tt.clock.Now().Sub(t.StartTime()), nil
}

// Stop removes the timer without creating a LogEntry.
func (tt *TimerTracker) Stop(timerID string) error {
	tt.mu.Lock()
	var stopped *ActiveTimer
	for cat, t := range tt.timers {
		if t.ID == timerID {
			delete(tt.timers, cat)
			stopped = &t
			break
		}
	}
	tt.mu.Unlock()
	if stopped == nil {
		return fmt.Errorf("%w: timer %q", ErrNotFound, timerID)
	}

	if tt.store != nil {
		if err := tt.store.DeleteTimer(timerID); err != nil {
			return fmt.Errorf("removing persisted timer: %w", err)
		}
	}
	tt.logger.Debug("timer stopped", "category", stopped.Category, "id", timerID)
	return nil
}

// LogEntryFor converts a running timer's elapsed time into a LogEntry,
// stamped with the timer's display attributes. It does not stop the timer.
func (tt *TimerTracker) LogEntryFor(timerID string, id string, notes string) (LogEntry, error) {
	t, ok := tt.Find(timerID)
	if !ok {
		return LogEntry{}, fmt.Errorf("%w: timer %q", ErrNotFound, timerID)
	}

	now := tt.clock.Now()
	elapsed := now.Sub(t.StartTime()).Milliseconds()
	meta := timerMetas[t.Category]
	return LogEntry{
		ID:          id,
		Type:        meta.Log,
		Icon:        t.Icon,
		Color:       t.Color,
		Details:     fmt.Sprintf("%s for %s", t.Label, time.Duration(elapsed)*time.Millisecond),
		Timestamp:   now.UnixMilli(),
		RawDuration: &elapsed,
		Notes:       notes,
	}, nil
}
