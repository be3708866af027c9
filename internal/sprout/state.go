package sprout

import (
	"fmt"
	"sort"
	"sync"
)

// LocalState is the full persisted shape of the local dataset, used to
// rehydrate the Container at startup.
type LocalState struct {
	Profiles         []Profile
	CurrentProfileID string
	Logs             map[string][]LogEntry
	Inventory        map[string]Inventory
	Reminders        map[string][]Reminder
	Appointments     map[string][]Appointment
	Prefs            Preferences
}

// StateStore is the durable write-through backing for the Container.
// Every Container mutation is mirrored here synchronously so a restart
// rehydrates the exact in-memory state.
type StateStore interface {
	Load() (*LocalState, error)

	UpsertProfile(p Profile) error
	DeleteProfile(profileID string) error
	ReplaceProfiles(profiles []Profile) error
	SetCurrentProfile(profileID string) error

	UpsertLog(profileID string, e LogEntry) error
	DeleteLog(profileID, logID string) error
	ReplaceLogs(profileID string, logs []LogEntry) error

	SetInventory(profileID string, inv Inventory) error

	UpsertReminder(profileID string, r Reminder) error
	DeleteReminder(profileID, reminderID string) error
	ReplaceReminders(profileID string, reminders []Reminder) error

	UpsertAppointment(profileID string, a Appointment) error
	DeleteAppointment(profileID, appointmentID string) error
	ReplaceAppointments(profileID string, appointments []Appointment) error

	SetPreferences(p Preferences) error

	// Migration ledger for the backfill routine, keyed by remote document
	// path. A marked path has been pushed successfully and is skipped on
	// re-runs.
	IsMigrated(path string) (bool, error)
	MarkMigrated(path string) error

	Close() error
}

// Container is the local state container: the single source of truth for
// all entity collections, keyed by profile id, plus the current-profile
// pointer and UI preferences. Absence of a profile key is an empty
// collection, not an error.
//
// Mutations are synchronous: they validate, apply in memory, write through
// to the StateStore, and notify change subscribers. The Container never
// talks to a RemoteStore; reconciliation of remote snapshots is the
// SyncCoordinator's job, applied through the Replace* operations.
type Container struct {
	mu               sync.RWMutex
	profiles         []Profile
	currentProfileID string
	logs             map[string][]LogEntry
	inventory        map[string]Inventory
	reminders        map[string][]Reminder
	appointments     map[string][]Appointment
	prefs            Preferences

	store    StateStore
	logger   Logger
	onChange []func()
}

// NewContainer creates an empty Container writing through to store.
// store may be nil for a purely in-memory container (tests).
func NewContainer(store StateStore, logger Logger) *Container {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Container{
		logs:         make(map[string][]LogEntry),
		inventory:    make(map[string]Inventory),
		reminders:    make(map[string][]Reminder),
		appointments: make(map[string][]Appointment),
		prefs:        Preferences{Unit: "metric"},
		store:        store,
		logger:       logger,
	}
}

// Load rehydrates the container from the StateStore. Must be called before
// the container is read; a nil store leaves the container empty.
func (c *Container) Load() error {
	if c.store == nil {
		return nil
	}
	st, err := c.store.Load()
	if err != nil {
		return fmt.Errorf("loading local state: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.profiles = st.Profiles
	c.currentProfileID = st.CurrentProfileID
	if st.Logs != nil {
		c.logs = st.Logs
	}
	if st.Inventory != nil {
		c.inventory = st.Inventory
	}
	if st.Reminders != nil {
		c.reminders = st.Reminders
	}
	if st.Appointments != nil {
		c.appointments = st.Appointments
	}
	if st.Prefs != (Preferences{}) {
		c.prefs = st.Prefs
	}
	return nil
}

// OnChange registers fn to be called after every successful mutation.
// Used by presentation code for re-render notifications.
func (c *Container) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = append(c.onChange, fn)
}

// notify runs outside the container lock.
func (c *Container) notify() {
	c.mu.RLock()
	subs := c.onChange
	c.mu.RUnlock()
	for _, fn := range subs {
		fn()
	}
}

func (c *Container) hasProfileLocked(profileID string) bool {
	for _, p := range c.profiles {
		if p.ID == profileID {
			return true
		}
	}
	return false
}

// Profiles returns a copy of the profile list in insertion order.
func (c *Container) Profiles() []Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Profile, len(c.profiles))
	copy(out, c.profiles)
	return out
}

// CurrentProfileID returns the selected profile id, or "" when none is
// selected.
func (c *Container) CurrentProfileID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentProfileID
}

// CurrentProfile returns the selected profile, or nil when none is selected.
func (c *Container) CurrentProfile() *Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.profiles {
		if c.profiles[i].ID == c.currentProfileID {
			p := c.profiles[i]
			return &p
		}
	}
	return nil
}

// SelectProfile makes profileID the current profile.
func (c *Container) SelectProfile(profileID string) error {
	c.mu.Lock()
	if !c.hasProfileLocked(profileID) {
		c.mu.Unlock()
		return fmt.Errorf("%w: unknown profile %q", ErrValidation, profileID)
	}
	c.currentProfileID = profileID
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.SetCurrentProfile(profileID); err != nil {
			return fmt.Errorf("persisting profile selection: %w", err)
		}
	}
	c.notify()
	return nil
}

// AddProfile appends a profile. The first profile added becomes current.
func (c *Container) AddProfile(p Profile) error {
	if p.ID == "" || p.BabyName == "" {
		return fmt.Errorf("%w: profile requires id and babyName", ErrValidation)
	}

	c.mu.Lock()
	if c.hasProfileLocked(p.ID) {
		c.mu.Unlock()
		return fmt.Errorf("%w: duplicate profile %q", ErrValidation, p.ID)
	}
	c.profiles = append(c.profiles, p)
	selected := false
	if c.currentProfileID == "" {
		c.currentProfileID = p.ID
		selected = true
	}
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.UpsertProfile(p); err != nil {
			return fmt.Errorf("persisting profile: %w", err)
		}
		if selected {
			if err := c.store.SetCurrentProfile(p.ID); err != nil {
				return fmt.Errorf("persisting profile selection: %w", err)
			}
		}
	}
	c.notify()
	return nil
}

// DeleteProfile removes a profile and all of its dependent collections from
// local state. Remote cascade is the remote store's responsibility.
func (c *Container) DeleteProfile(profileID string) error {
	c.mu.Lock()
	if !c.hasProfileLocked(profileID) {
		c.mu.Unlock()
		return fmt.Errorf("%w: unknown profile %q", ErrValidation, profileID)
	}
	kept := c.profiles[:0]
	for _, p := range c.profiles {
		if p.ID != profileID {
			kept = append(kept, p)
		}
	}
	c.profiles = kept
	delete(c.logs, profileID)
	delete(c.inventory, profileID)
	delete(c.reminders, profileID)
	delete(c.appointments, profileID)
	if c.currentProfileID == profileID {
		c.currentProfileID = ""
		if len(c.profiles) > 0 {
			c.currentProfileID = c.profiles[0].ID
		}
	}
	current := c.currentProfileID
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.DeleteProfile(profileID); err != nil {
			return fmt.Errorf("deleting profile: %w", err)
		}
		if err := c.store.SetCurrentProfile(current); err != nil {
			return fmt.Errorf("persisting profile selection: %w", err)
		}
	}
	c.notify()
	return nil
}

// UpdateProfile replaces the matching profile entry in place. Updates for
// profiles not present locally are ignored; the profile-list snapshot is
// authoritative for membership.
func (c *Container) UpdateProfile(p Profile) error {
	c.mu.Lock()
	found := false
	for i := range c.profiles {
		if c.profiles[i].ID == p.ID {
			c.profiles[i] = p
			found = true
			break
		}
	}
	c.mu.Unlock()
	if !found {
		return nil
	}

	if c.store != nil {
		if err := c.store.UpsertProfile(p); err != nil {
			return fmt.Errorf("persisting profile: %w", err)
		}
	}
	c.notify()
	return nil
}

// ReplaceProfiles applies a full profile-list snapshot. When the previously
// selected profile is no longer present the selection falls back to the
// first remaining profile, or to none when the set is empty.
func (c *Container) ReplaceProfiles(profiles []Profile) error {
	c.mu.Lock()
	c.profiles = profiles
	if !c.hasProfileLocked(c.currentProfileID) {
		c.currentProfileID = ""
		if len(profiles) > 0 {
			c.currentProfileID = profiles[0].ID
		}
	}
	current := c.currentProfileID
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.ReplaceProfiles(profiles); err != nil {
			return fmt.Errorf("persisting profiles: %w", err)
		}
		if err := c.store.SetCurrentProfile(current); err != nil {
			return fmt.Errorf("persisting profile selection: %w", err)
		}
	}
	c.notify()
	return nil
}

// Logs returns the profile's log entries ordered by event timestamp,
// newest first.
func (c *Container) Logs(profileID string) []LogEntry {
	c.mu.RLock()
	out := make([]LogEntry, len(c.logs[profileID]))
	copy(out, c.logs[profileID])
	c.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	return out
}

// AddLog records a new log entry for a profile.
func (c *Container) AddLog(profileID string, e LogEntry) error {
	if e.ID == "" {
		return fmt.Errorf("%w: log entry requires an id", ErrValidation)
	}

	c.mu.Lock()
	if !c.hasProfileLocked(profileID) {
		c.mu.Unlock()
		return fmt.Errorf("%w: unknown profile %q", ErrValidation, profileID)
	}
	c.logs[profileID] = append(c.logs[profileID], e)
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.UpsertLog(profileID, e); err != nil {
			return fmt.Errorf("persisting log entry: %w", err)
		}
	}
	c.notify()
	return nil
}

// UpdateLog replaces an existing log entry (explicit edit action).
func (c *Container) UpdateLog(profileID string, e LogEntry) error {
	c.mu.Lock()
	entries := c.logs[profileID]
	found := false
	for i := range entries {
		if entries[i].ID == e.ID {
			entries[i] = e
			found = true
			break
		}
	}
	c.mu.Unlock()
	if !found {
		return fmt.Errorf("%w: log entry %q", ErrNotFound, e.ID)
	}

	if c.store != nil {
		if err := c.store.UpsertLog(profileID, e); err != nil {
			return fmt.Errorf("persisting log entry: %w", err)
		}
	}
	c.notify()
	return nil
}

// DeleteLog removes a log entry (explicit delete action).
func (c *Container) DeleteLog(profileID, logID string) error {
	c.mu.Lock()
	entries := c.logs[profileID]
	kept := entries[:0]
	for _, e := range entries {
		if e.ID != logID {
			kept = append(kept, e)
		}
	}
	c.logs[profileID] = kept
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.DeleteLog(profileID, logID); err != nil {
			return fmt.Errorf("deleting log entry: %w", err)
		}
	}
	c.notify()
	return nil
}

// ReplaceLogs applies a full log-collection snapshot for a profile.
func (c *Container) ReplaceLogs(profileID string, logs []LogEntry) error {
	c.mu.Lock()
	c.logs[profileID] = logs
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.ReplaceLogs(profileID, logs); err != nil {
			return fmt.Errorf("persisting log entries: %w", err)
		}
	}
	c.notify()
	return nil
}

// GetInventory returns the profile's inventory counters. An absent entry is
// the zero Inventory.
func (c *Container) GetInventory(profileID string) Inventory {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inventory[profileID]
}

// SetInventory upserts the profile's inventory singleton.
func (c *Container) SetInventory(profileID string, inv Inventory) error {
	c.mu.Lock()
	if !c.hasProfileLocked(profileID) {
		c.mu.Unlock()
		return fmt.Errorf("%w: unknown profile %q", ErrValidation, profileID)
	}
	c.inventory[profileID] = inv
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.SetInventory(profileID, inv); err != nil {
			return fmt.Errorf("persisting inventory: %w", err)
		}
	}
	c.notify()
	return nil
}

// ReplaceInventory applies an inventory snapshot without validating profile
// membership; the coordinator calls this only for the subscribed profile.
func (c *Container) ReplaceInventory(profileID string, inv Inventory) error {
	c.mu.Lock()
	c.inventory[profileID] = inv
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.SetInventory(profileID, inv); err != nil {
			return fmt.Errorf("persisting inventory: %w", err)
		}
	}
	c.notify()
	return nil
}

// Reminders returns a copy of the profile's reminders.
func (c *Container) Reminders(profileID string) []Reminder {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Reminder, len(c.reminders[profileID]))
	copy(out, c.reminders[profileID])
	return out
}

// AddReminder records a new reminder for a profile.
func (c *Container) AddReminder(profileID string, r Reminder) error {
	if r.ID == "" || r.Text == "" {
		return fmt.Errorf("%w: reminder requires id and text", ErrValidation)
	}

	c.mu.Lock()
	if !c.hasProfileLocked(profileID) {
		c.mu.Unlock()
		return fmt.Errorf("%w: unknown profile %q", ErrValidation, profileID)
	}
	c.reminders[profileID] = append(c.reminders[profileID], r)
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.UpsertReminder(profileID, r); err != nil {
			return fmt.Errorf("persisting reminder: %w", err)
		}
	}
	c.notify()
	return nil
}

// ToggleReminder flips a reminder's active flag.
func (c *Container) ToggleReminder(profileID, reminderID string) error {
	c.mu.Lock()
	var toggled *Reminder
	reminders := c.reminders[profileID]
	for i := range reminders {
		if reminders[i].ID == reminderID {
			reminders[i].IsActive = !reminders[i].IsActive
			r := reminders[i]
			toggled = &r
			break
		}
	}
	c.mu.Unlock()
	if toggled == nil {
		return fmt.Errorf("%w: reminder %q", ErrNotFound, reminderID)
	}

	if c.store != nil {
		if err := c.store.UpsertReminder(profileID, *toggled); err != nil {
			return fmt.Errorf("persisting reminder: %w", err)
		}
	}
	c.notify()
	return nil
}

// DeleteReminder removes a reminder.
func (c *Container) DeleteReminder(profileID, reminderID string) error {
	c.mu.Lock()
	reminders := c.reminders[profileID]
	kept := reminders[:0]
	for _, r := range reminders {
		if r.ID != reminderID {
			kept = append(kept, r)
		}
	}
	c.reminders[profileID] = kept
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.DeleteReminder(profileID, reminderID); err != nil {
			return fmt.Errorf("deleting reminder: %w", err)
		}
	}
	c.notify()
	return nil
}

// ReplaceReminders applies a full reminder-collection snapshot for a profile.
func (c *Container) ReplaceReminders(profileID string, reminders []Reminder) error {
	c.mu.Lock()
	c.reminders[profileID] = reminders
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.ReplaceReminders(profileID, reminders); err != nil {
			return fmt.Errorf("persisting reminders: %w", err)
		}
	}
	c.notify()
	return nil
}

// Appointments returns a copy of the profile's appointments.
func (c *Container) Appointments(profileID string) []Appointment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Appointment, len(c.appointments[profileID]))
	copy(out, c.appointments[profileID])
	return out
}

// AddAppointment records a new appointment for a profile.
func (c *Container) AddAppointment(profileID string, a Appointment) error {
	if a.ID == "" || a.Date == "" {
		return fmt.Errorf("%w: appointment requires id and date", ErrValidation)
	}

	c.mu.Lock()
	if !c.hasProfileLocked(profileID) {
		c.mu.Unlock()
		return fmt.Errorf("%w: unknown profile %q", ErrValidation, profileID)
	}
	c.appointments[profileID] = append(c.appointments[profileID], a)
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.UpsertAppointment(profileID, a); err != nil {
			return fmt.Errorf("persisting appointment: %w", err)
		}
	}
	c.notify()
	return nil
}

// DeleteAppointment removes an appointment.
func (c *Container) DeleteAppointment(profileID, appointmentID string) error {
	c.mu.Lock()
	appointments := c.appointments[profileID]
	kept := appointments[:0]
	for _, a := range appointments {
		if a.ID != appointmentID {
			kept = append(kept, a)
		}
	}
	c.appointments[profileID] = kept
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.DeleteAppointment(profileID, appointmentID); err != nil {
			return fmt.Errorf("deleting appointment: %w", err)
		}
	}
	c.notify()
	return nil
}

// ReplaceAppointments applies a full appointment-collection snapshot.
func (c *Container) ReplaceAppointments(profileID string, appointments []Appointment) error {
	c.mu.Lock()
	c.appointments[profileID] = appointments
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.ReplaceAppointments(profileID, appointments); err != nil {
			return fmt.Errorf("persisting appointments: %w", err)
		}
	}
	c.notify()
	return nil
}

// Preferences returns the device-local UI preferences.
func (c *Container) Preferences() Preferences {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.prefs
}

// ToggleDarkMode flips the dark-mode preference.
func (c *Container) ToggleDarkMode() error {
	c.mu.Lock()
	c.prefs.DarkMode = !c.prefs.DarkMode
	prefs := c.prefs
	c.mu.Unlock()
	return c.persistPrefs(prefs)
}

// SetUnit sets the measurement unit preference.
func (c *Container) SetUnit(unit string) error {
	if unit != "metric" && unit != "imperial" {
		return fmt.Errorf("%w: unit must be metric or imperial", ErrValidation)
	}
	c.mu.Lock()
	c.prefs.Unit = unit
	prefs := c.prefs
	c.mu.Unlock()
	return c.persistPrefs(prefs)
}

func (c *Container) persistPrefs(prefs Preferences) error {
	if c.store != nil {
		if err := c.store.SetPreferences(prefs); err != nil {
			return fmt.Errorf("persisting preferences: %w", err)
		}
	}
	c.notify()
	return nil
}

// Snapshot returns a deep copy of the full local dataset, used by the
// export feature.
func (c *Container) Snapshot() LocalState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := LocalState{
		Profiles:         make([]Profile, len(c.profiles)),
		CurrentProfileID: c.currentProfileID,
		Logs:             make(map[string][]LogEntry, len(c.logs)),
		Inventory:        make(map[string]Inventory, len(c.inventory)),
		Reminders:        make(map[string][]Reminder, len(c.reminders)),
		Appointments:     make(map[string][]Appointment, len(c.appointments)),
		Prefs:            c.prefs,
	}
	copy(st.Profiles, c.profiles)
	for id, logs := range c.logs {
		st.Logs[id] = append([]LogEntry(nil), logs...)
	}
	for id, inv := range c.inventory {
		st.Inventory[id] = inv
	}
	for id, reminders := range c.reminders {
		st.Reminders[id] = append([]Reminder(nil), reminders...)
	}
	for id, appts := range c.appointments {
		st.Appointments[id] = append([]Appointment(nil), appts...)
	}
	return st
}

// Restore replaces the entire local dataset with st, writing every
// collection through to the StateStore. Used by the import feature.
func (c *Container) Restore(st LocalState) error {
	if err := c.ReplaceProfiles(st.Profiles); err != nil {
		return err
	}
	for id, logs := range st.Logs {
		if err := c.ReplaceLogs(id, logs); err != nil {
			return err
		}
	}
	for id, inv := range st.Inventory {
		if err := c.ReplaceInventory(id, inv); err != nil {
			return err
		}
	}
	for id, reminders := range st.Reminders {
		if err := c.ReplaceReminders(id, reminders); err != nil {
			return err
		}
	}
	for id, appts := range st.Appointments {
		if err := c.ReplaceAppointments(id, appts); err != nil {
			return err
		}
	}
	if st.CurrentProfileID != "" {
		// ReplaceProfiles already picked a fallback when the id is unknown.
		_ = c.SelectProfile(st.CurrentProfileID)
	}
	if st.Prefs.Unit != "" {
		c.mu.Lock()
		c.prefs = st.Prefs
		prefs := c.prefs
		c.mu.Unlock()
		if err := c.persistPrefs(prefs); err != nil {
			return err
		}
	}
	return nil
}
