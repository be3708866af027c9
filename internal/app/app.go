package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/yadielglz/littlesprout-sub001/internal/config"
	"github.com/yadielglz/littlesprout-sub001/internal/export"
	"github.com/yadielglz/littlesprout-sub001/internal/remote"
	"github.com/yadielglz/littlesprout-sub001/internal/sprout"
	"github.com/yadielglz/littlesprout-sub001/internal/state"
)

// App is the application layer between the CLI and the core packages.
// It constructs all dependencies from config, exposes high-level operations,
// and manages lifecycles on Close.
//
// Mutating operations are local-first: the container (and through it the
// local database) is updated before the remote store. When no principal is
// logged in the remote write is skipped entirely.
type App struct {
	cfg       *config.Config
	store     *state.SQLiteStore
	remote    sprout.RemoteStore
	container *sprout.Container
	timers    *sprout.TimerTracker
	coord     *sprout.Coordinator
	backfill  *sprout.Backfiller
	session   *sessionFile
	logger    sprout.Logger
	clock     sprout.Clock
	ids       sprout.IDGenerator
	logCloser io.Closer
}

// NewApp creates a fully wired App from the given config.
// The caller must call Close when done.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	slogger, logCloser, err := newLogger(cfg.LogDir, cfg.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	store, err := state.NewStoreFromConfig(cfg.Database, cfg.DeviceID)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("creating local database: %w", err)
	}

	container := sprout.NewContainer(store, logger)
	if err := container.Load(); err != nil {
		store.Close()
		logCloser.Close()
		return nil, fmt.Errorf("loading local state: %w", err)
	}

	timers := sprout.NewTimerTracker(store, sprout.RealClock{}, logger)
	if err := timers.Load(); err != nil {
		store.Close()
		logCloser.Close()
		return nil, fmt.Errorf("loading timers: %w", err)
	}

	rs, err := remote.NewStoreFromConfig(ctx, cfg.Remote)
	if err != nil {
		store.Close()
		logCloser.Close()
		return nil, fmt.Errorf("creating remote store: %w", err)
	}

	return &App{
		cfg:       cfg,
		store:     store,
		remote:    rs,
		container: container,
		timers:    timers,
		coord:     sprout.NewCoordinator(rs, container, logger),
		backfill:  sprout.NewBackfiller(rs, container, store, logger),
		session:   newSessionFile(cfg.BaseDir),
		logger:    logger,
		clock:     sprout.RealClock{},
		ids:       sprout.UUIDGenerator{},
		logCloser: logCloser,
	}, nil
}

// Close tears down sync activity and releases every resource.
func (a *App) Close() error {
	a.coord.Teardown()
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	record(a.remote.Close())
	record(a.store.Close())
	record(a.logCloser.Close())
	return firstErr
}

// Container exposes the local state container for read-only presentation.
func (a *App) Container() *sprout.Container { return a.container }

// Timers exposes the timer tracker for read-only presentation.
func (a *App) Timers() *sprout.TimerTracker { return a.timers }

// Session and sync

// Principal returns the logged-in principal, or "" when logged out.
func (a *App) Principal() (string, error) {
	return a.session.Principal()
}

// Login stores the principal and runs the initial pull. Pull failures do
// not revert the login; the session survives for a later sync.
func (a *App) Login(ctx context.Context, principal string) error {
	if principal == "" {
		return fmt.Errorf("%w: principal required", sprout.ErrValidation)
	}
	if err := a.session.Save(principal); err != nil {
		return err
	}
	a.logger.Info("logged in", "principal", principal)
	return a.coord.Pull(ctx, principal)
}

// Logout tears down sync state and clears the session.
func (a *App) Logout() error {
	a.coord.Teardown()
	if err := a.session.Clear(); err != nil {
		return err
	}
	a.logger.Info("logged out")
	return nil
}

// SyncPull runs a one-shot pull for the logged-in principal.
func (a *App) SyncPull(ctx context.Context) error {
	principal, err := a.requirePrincipal()
	if err != nil {
		return err
	}
	return a.coord.Pull(ctx, principal)
}

// SyncWatch pulls and then applies live remote changes until ctx is
// cancelled. Subscription errors are logged and surfaced but do not stop
// the watch.
func (a *App) SyncWatch(ctx context.Context) error {
	principal, err := a.requirePrincipal()
	if err != nil {
		return err
	}

	if err := a.coord.Start(ctx, principal); err != nil {
		return err
	}
	defer a.coord.Teardown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-a.coord.Errors():
			a.logger.Warn("sync error", "error", err)
		}
	}
}

// Backfill pushes pre-existing local data to the remote store for the
// logged-in principal.
func (a *App) Backfill(ctx context.Context) (sprout.BackfillResult, error) {
	principal, err := a.requirePrincipal()
	if err != nil {
		return sprout.BackfillResult{}, err
	}
	return a.backfill.Run(ctx, principal)
}

// Profiles

// AddProfile creates a profile locally and, when logged in, remotely.
func (a *App) AddProfile(ctx context.Context, userName, babyName, dob string) (sprout.Profile, error) {
	p := sprout.Profile{
		ID:        a.ids.New(),
		UserName:  userName,
		BabyName:  babyName,
		DOB:       dob,
		CreatedAt: a.clock.Now().UTC().Format(time.RFC3339),
	}
	if err := a.container.AddProfile(p); err != nil {
		return sprout.Profile{}, err
	}
	return p, a.mirror(ctx, func(principal string) error {
		return a.remote.Set(ctx, sprout.ProfilePath(principal, p.ID), p)
	})
}

// SelectProfile switches the current profile.
func (a *App) SelectProfile(profileID string) error {
	return a.container.SelectProfile(profileID)
}

// DeleteProfile removes a profile locally and remotely.
func (a *App) DeleteProfile(ctx context.Context, profileID string) error {
	if err := a.container.DeleteProfile(profileID); err != nil {
		return err
	}
	return a.mirror(ctx, func(principal string) error {
		return a.remote.Delete(ctx, sprout.ProfilePath(principal, profileID))
	})
}

// Logs

// AddLog records a care event for the current profile.
func (a *App) AddLog(ctx context.Context, entryType sprout.LogCategory, details, notes string, rawAmount *float64, rawDuration *int64) (sprout.LogEntry, error) {
	profileID, err := a.requireProfile()
	if err != nil {
		return sprout.LogEntry{}, err
	}

	e := sprout.LogEntry{
		ID:          a.ids.New(),
		Type:        entryType,
		Details:     details,
		Timestamp:   a.clock.Now().UnixMilli(),
		RawAmount:   rawAmount,
		RawDuration: rawDuration,
		Notes:       notes,
	}
	if err := a.container.AddLog(profileID, e); err != nil {
		return sprout.LogEntry{}, err
	}
	return e, a.mirror(ctx, func(principal string) error {
		return a.remote.Create(ctx, sprout.LogsPath(principal, profileID)+"/"+e.ID, e)
	})
}

// DeleteLog removes a care event from the current profile.
func (a *App) DeleteLog(ctx context.Context, logID string) error {
	profileID, err := a.requireProfile()
	if err != nil {
		return err
	}
	if err := a.container.DeleteLog(profileID, logID); err != nil {
		return err
	}
	return a.mirror(ctx, func(principal string) error {
		return a.remote.Delete(ctx, sprout.LogsPath(principal, profileID)+"/"+logID)
	})
}

// Inventory

// SetInventory overwrites the current profile's supply counters.
func (a *App) SetInventory(ctx context.Context, inv sprout.Inventory) error {
	profileID, err := a.requireProfile()
	if err != nil {
		return err
	}
	if err := a.container.SetInventory(profileID, inv); err != nil {
		return err
	}
	return a.mirror(ctx, func(principal string) error {
		return a.remote.Set(ctx, sprout.InventoryPath(principal, profileID), inv)
	})
}

// AdjustInventory applies deltas to the current profile's counters,
// clamping at zero.
func (a *App) AdjustInventory(ctx context.Context, diapers, formula int) (sprout.Inventory, error) {
	profileID, err := a.requireProfile()
	if err != nil {
		return sprout.Inventory{}, err
	}

	inv := a.container.GetInventory(profileID)
	inv.Diapers = max(0, inv.Diapers+diapers)
	inv.Formula = max(0, inv.Formula+formula)
	return inv, a.SetInventory(ctx, inv)
}

// Reminders

// AddReminder creates a reminder for the current profile.
func (a *App) AddReminder(ctx context.Context, text string, at int64, frequency sprout.ReminderFrequency) (sprout.Reminder, error) {
	profileID, err := a.requireProfile()
	if err != nil {
		return sprout.Reminder{}, err
	}

	r := sprout.Reminder{
		ID:        a.ids.New(),
		Text:      text,
		Time:      at,
		Frequency: frequency,
		IsActive:  true,
	}
	if err := a.container.AddReminder(profileID, r); err != nil {
		return sprout.Reminder{}, err
	}
	return r, a.mirror(ctx, func(principal string) error {
		return a.remote.Create(ctx, sprout.RemindersPath(principal, profileID)+"/"+r.ID, r)
	})
}

// ToggleReminder flips a reminder's active flag.
func (a *App) ToggleReminder(ctx context.Context, reminderID string) error {
	profileID, err := a.requireProfile()
	if err != nil {
		return err
	}
	if err := a.container.ToggleReminder(profileID, reminderID); err != nil {
		return err
	}

	var active bool
	for _, r := range a.container.Reminders(profileID) {
		if r.ID == reminderID {
			active = r.IsActive
			break
		}
	}
	return a.mirror(ctx, func(principal string) error {
		return a.remote.Update(ctx, sprout.RemindersPath(principal, profileID)+"/"+reminderID,
			map[string]any{"isActive": active})
	})
}

// DeleteReminder removes a reminder.
func (a *App) DeleteReminder(ctx context.Context, reminderID string) error {
	profileID, err := a.requireProfile()
	if err != nil {
		return err
	}
	if err := a.container.DeleteReminder(profileID, reminderID); err != nil {
		return err
	}
	return a.mirror(ctx, func(principal string) error {
		return a.remote.Delete(ctx, sprout.RemindersPath(principal, profileID)+"/"+reminderID)
	})
}

// Appointments

// AddAppointment creates an appointment for the current profile.
func (a *App) AddAppointment(ctx context.Context, appt sprout.Appointment) (sprout.Appointment, error) {
	profileID, err := a.requireProfile()
	if err != nil {
		return sprout.Appointment{}, err
	}

	appt.ID = a.ids.New()
	if err := a.container.AddAppointment(profileID, appt); err != nil {
		return sprout.Appointment{}, err
	}
	return appt, a.mirror(ctx, func(principal string) error {
		return a.remote.Create(ctx, sprout.AppointmentsPath(principal, profileID)+"/"+appt.ID, appt)
	})
}

// DeleteAppointment removes an appointment.
func (a *App) DeleteAppointment(ctx context.Context, appointmentID string) error {
	profileID, err := a.requireProfile()
	if err != nil {
		return err
	}
	if err := a.container.DeleteAppointment(profileID, appointmentID); err != nil {
		return err
	}
	return a.mirror(ctx, func(principal string) error {
		return a.remote.Delete(ctx, sprout.AppointmentsPath(principal, profileID)+"/"+appointmentID)
	})
}

// Timers

// StartTimer begins a stopwatch for the category.
func (a *App) StartTimer(category sprout.TimerCategory) (sprout.ActiveTimer, error) {
	return a.timers.Start(category)
}

// StopTimer discards a running timer without logging it.
func (a *App) StopTimer(timerID string) error {
	return a.timers.Stop(timerID)
}

// SaveTimer converts a running timer into a log entry for the current
// profile, then stops the timer. The timer keeps running if recording the
// entry fails.
func (a *App) SaveTimer(ctx context.Context, timerID, notes string) (sprout.LogEntry, error) {
	profileID, err := a.requireProfile()
	if err != nil {
		return sprout.LogEntry{}, err
	}

	e, err := a.timers.LogEntryFor(timerID, a.ids.New(), notes)
	if err != nil {
		return sprout.LogEntry{}, err
	}
	if err := a.container.AddLog(profileID, e); err != nil {
		return sprout.LogEntry{}, err
	}
	if err := a.timers.Stop(timerID); err != nil {
		return sprout.LogEntry{}, err
	}
	return e, a.mirror(ctx, func(principal string) error {
		return a.remote.Create(ctx, sprout.LogsPath(principal, profileID)+"/"+e.ID, e)
	})
}

// Export and import

// Export writes the full local dataset to an encrypted archive at path.
func (a *App) Export(path, passphrase string) error {
	if err := export.WriteFile(path, a.container.Snapshot(), passphrase); err != nil {
		return err
	}
	a.logger.Info("exported local data", "path", path)
	return nil
}

// Import replaces the local dataset with the archive's contents.
func (a *App) Import(path, passphrase string) error {
	st, err := export.ReadFile(path, passphrase)
	if err != nil {
		return err
	}
	if err := a.container.Restore(st); err != nil {
		return err
	}
	a.logger.Info("imported local data", "path", path, "profiles", len(st.Profiles))
	return nil
}

// Summary

// Summary aggregates the current profile's recent state for display.
type Summary struct {
	Profile      sprout.Profile
	Counts       map[sprout.LogCategory]int
	Inventory    sprout.Inventory
	Reminders    int
	Appointments int
	ActiveTimers []sprout.ActiveTimer
}

// Summarize builds a Summary for the current profile.
func (a *App) Summarize() (Summary, error) {
	profileID, err := a.requireProfile()
	if err != nil {
		return Summary{}, err
	}

	counts := make(map[sprout.LogCategory]int)
	for _, e := range a.container.Logs(profileID) {
		counts[e.Type]++
	}

	profile := a.container.CurrentProfile()
	if profile == nil {
		return Summary{}, fmt.Errorf("%w: no profile selected", sprout.ErrValidation)
	}
	return Summary{
		Profile:      *profile,
		Counts:       counts,
		Inventory:    a.container.GetInventory(profileID),
		Reminders:    len(a.container.Reminders(profileID)),
		Appointments: len(a.container.Appointments(profileID)),
		ActiveTimers: a.timers.Active(),
	}, nil
}

// Helpers

// mirror runs the remote write when a principal is logged in; local-only
// sessions skip it silently.
func (a *App) mirror(ctx context.Context, write func(principal string) error) error {
	principal, err := a.session.Principal()
	if err != nil {
		return err
	}
	if principal == "" {
		return nil
	}
	if err := write(principal); err != nil {
		return fmt.Errorf("updating remote: %w", err)
	}
	return nil
}

func (a *App) requirePrincipal() (string, error) {
	principal, err := a.session.Principal()
	if err != nil {
		return "", err
	}
	if principal == "" {
		return "", fmt.Errorf("%w: not logged in", sprout.ErrValidation)
	}
	return principal, nil
}

func (a *App) requireProfile() (string, error) {
	profileID := a.container.CurrentProfileID()
	if profileID == "" {
		return "", fmt.Errorf("%w: no profile selected", sprout.ErrValidation)
	}
	return profileID, nil
}
