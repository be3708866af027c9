package state

import (
	"testing"

	"github.com/yadielglz/littlesprout-sub001/internal/config"
	"github.com/yadielglz/littlesprout-sub001/internal/sprout"
)

func configFor(typ, dataDir string) config.DatabaseConfig {
	return config.DatabaseConfig{Type: typ, DataDir: dataDir}
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore() error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_ProfileRoundTrip(t *testing.T) {
	store := newTestStore(t)

	p := sprout.Profile{
		ID:        "p1",
		UserName:  "Dana",
		BabyName:  "Emma",
		DOB:       "2025-04-01",
		CreatedAt: "2025-04-02T10:00:00Z",
	}
	if err := store.UpsertProfile(p); err != nil {
		t.Fatalf("UpsertProfile() error: %v", err)
	}
	if err := store.SetCurrentProfile("p1"); err != nil {
		t.Fatalf("SetCurrentProfile() error: %v", err)
	}

	st, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(st.Profiles) != 1 || st.Profiles[0] != p {
		t.Errorf("Load() profiles = %+v, want [%+v]", st.Profiles, p)
	}
	if st.CurrentProfileID != "p1" {
		t.Errorf("Load() currentProfileID = %q, want p1", st.CurrentProfileID)
	}
}

func TestSQLiteStore_UpsertProfileOverwrites(t *testing.T) {
	store := newTestStore(t)

	p := sprout.Profile{ID: "p1", UserName: "Dana", BabyName: "Emma", DOB: "2025-04-01", CreatedAt: "2025-04-02T10:00:00Z"}
	if err := store.UpsertProfile(p); err != nil {
		t.Fatalf("UpsertProfile() error: %v", err)
	}
	p.BabyName = "Emily"
	if err := store.UpsertProfile(p); err != nil {
		t.Fatalf("UpsertProfile() second error: %v", err)
	}

	st, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(st.Profiles) != 1 {
		t.Fatalf("Load() returned %d profiles, want 1", len(st.Profiles))
	}
	if st.Profiles[0].BabyName != "Emily" {
		t.Errorf("Load() babyName = %q, want Emily", st.Profiles[0].BabyName)
	}
}

func TestSQLiteStore_LogRoundTrip(t *testing.T) {
	store := newTestStore(t)

	amount := 120.0
	duration := int64(1800000)
	logs := []sprout.LogEntry{
		{ID: "l1", Type: sprout.LogFeed, Details: "bottle", Timestamp: 200, RawAmount: &amount},
		{ID: "l2", Type: sprout.LogSleep, Details: "nap", Timestamp: 100, RawDuration: &duration, Notes: "restless"},
	}
	for _, e := range logs {
		if err := store.UpsertLog("p1", e); err != nil {
			t.Fatalf("UpsertLog(%s) error: %v", e.ID, err)
		}
	}

	st, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	got := st.Logs["p1"]
	if len(got) != 2 {
		t.Fatalf("Load() returned %d logs, want 2", len(got))
	}
	// Loaded newest first.
	if got[0].ID != "l1" || got[1].ID != "l2" {
		t.Errorf("Load() log order = [%s %s], want [l1 l2]", got[0].ID, got[1].ID)
	}
	if got[0].RawAmount == nil || *got[0].RawAmount != amount {
		t.Errorf("Load() rawAmount = %v, want %v", got[0].RawAmount, amount)
	}
	if got[1].RawDuration == nil || *got[1].RawDuration != duration {
		t.Errorf("Load() rawDuration = %v, want %v", got[1].RawDuration, duration)
	}
	if got[0].RawDuration != nil {
		t.Errorf("Load() l1 rawDuration = %v, want nil", got[0].RawDuration)
	}
}

func TestSQLiteStore_ReplaceLogs(t *testing.T) {
	store := newTestStore(t)

	if err := store.UpsertLog("p1", sprout.LogEntry{ID: "old", Type: sprout.LogDiaper, Timestamp: 1}); err != nil {
		t.Fatalf("UpsertLog() error: %v", err)
	}
	if err := store.UpsertLog("p2", sprout.LogEntry{ID: "other", Type: sprout.LogDiaper, Timestamp: 1}); err != nil {
		t.Fatalf("UpsertLog() error: %v", err)
	}

	replacement := []sprout.LogEntry{
		{ID: "n1", Type: sprout.LogFeed, Timestamp: 10},
		{ID: "n2", Type: sprout.LogFeed, Timestamp: 20},
	}
	if err := store.ReplaceLogs("p1", replacement); err != nil {
		t.Fatalf("ReplaceLogs() error: %v", err)
	}

	st, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(st.Logs["p1"]) != 2 {
		t.Errorf("Load() p1 logs = %d, want 2", len(st.Logs["p1"]))
	}
	// Other profile untouched.
	if len(st.Logs["p2"]) != 1 {
		t.Errorf("Load() p2 logs = %d, want 1", len(st.Logs["p2"]))
	}
}

func TestSQLiteStore_DeleteProfilePurgesData(t *testing.T) {
	store := newTestStore(t)

	if err := store.UpsertProfile(sprout.Profile{ID: "p1", CreatedAt: "2025-01-01T00:00:00Z"}); err != nil {
		t.Fatalf("UpsertProfile() error: %v", err)
	}
	if err := store.UpsertLog("p1", sprout.LogEntry{ID: "l1", Type: sprout.LogFeed, Timestamp: 1}); err != nil {
		t.Fatalf("UpsertLog() error: %v", err)
	}
	if err := store.SetInventory("p1", sprout.Inventory{Diapers: 5}); err != nil {
		t.Fatalf("SetInventory() error: %v", err)
	}
	if err := store.UpsertReminder("p1", sprout.Reminder{ID: "r1", Text: "feed", Frequency: sprout.FrequencyDaily}); err != nil {
		t.Fatalf("UpsertReminder() error: %v", err)
	}
	if err := store.UpsertAppointment("p1", sprout.Appointment{ID: "a1", Date: "2025-05-01", Time: "09:00"}); err != nil {
		t.Fatalf("UpsertAppointment() error: %v", err)
	}

	if err := store.DeleteProfile("p1"); err != nil {
		t.Fatalf("DeleteProfile() error: %v", err)
	}

	st, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(st.Profiles) != 0 {
		t.Errorf("Load() profiles = %d, want 0", len(st.Profiles))
	}
	if len(st.Logs["p1"]) != 0 || len(st.Reminders["p1"]) != 0 || len(st.Appointments["p1"]) != 0 {
		t.Error("profile data survived DeleteProfile")
	}
	if _, ok := st.Inventory["p1"]; ok {
		t.Error("inventory survived DeleteProfile")
	}
}

func TestSQLiteStore_ReplaceProfiles(t *testing.T) {
	store := newTestStore(t)

	if err := store.UpsertProfile(sprout.Profile{ID: "p1", CreatedAt: "2025-01-01T00:00:00Z"}); err != nil {
		t.Fatalf("UpsertProfile() error: %v", err)
	}

	replacement := []sprout.Profile{
		{ID: "p2", BabyName: "Liam", CreatedAt: "2025-02-01T00:00:00Z"},
		{ID: "p3", BabyName: "Noah", CreatedAt: "2025-03-01T00:00:00Z"},
	}
	if err := store.ReplaceProfiles(replacement); err != nil {
		t.Fatalf("ReplaceProfiles() error: %v", err)
	}

	st, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(st.Profiles) != 2 {
		t.Fatalf("Load() profiles = %d, want 2", len(st.Profiles))
	}
	if st.Profiles[0].ID != "p2" || st.Profiles[1].ID != "p3" {
		t.Errorf("Load() profile ids = [%s %s], want [p2 p3]", st.Profiles[0].ID, st.Profiles[1].ID)
	}
}

func TestSQLiteStore_Preferences(t *testing.T) {
	store := newTestStore(t)

	// Defaults before anything is stored.
	st, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if st.Prefs.DarkMode || st.Prefs.Unit != "metric" {
		t.Errorf("Load() default prefs = %+v", st.Prefs)
	}

	if err := store.SetPreferences(sprout.Preferences{DarkMode: true, Unit: "imperial"}); err != nil {
		t.Fatalf("SetPreferences() error: %v", err)
	}
	st, err = store.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !st.Prefs.DarkMode || st.Prefs.Unit != "imperial" {
		t.Errorf("Load() prefs = %+v, want dark imperial", st.Prefs)
	}
}

func TestSQLiteStore_MigrationLedger(t *testing.T) {
	store := newTestStore(t)

	path := "users/u1/profiles/p1"
	migrated, err := store.IsMigrated(path)
	if err != nil {
		t.Fatalf("IsMigrated() error: %v", err)
	}
	if migrated {
		t.Error("IsMigrated() fresh path = true, want false")
	}

	if err := store.MarkMigrated(path); err != nil {
		t.Fatalf("MarkMigrated() error: %v", err)
	}
	// Marking twice is fine.
	if err := store.MarkMigrated(path); err != nil {
		t.Fatalf("MarkMigrated() repeat error: %v", err)
	}

	migrated, err = store.IsMigrated(path)
	if err != nil {
		t.Fatalf("IsMigrated() error: %v", err)
	}
	if !migrated {
		t.Error("IsMigrated() after mark = false, want true")
	}
}

func TestSQLiteStore_Timers(t *testing.T) {
	store := newTestStore(t)

	timer := sprout.ActiveTimer{
		ID:       "sleep-1000",
		Category: sprout.TimerSleep,
		Start:    1000,
		Label:    "Sleep",
		Icon:     "moon",
		Color:    "#6366f1",
	}
	if err := store.PutTimer(timer); err != nil {
		t.Fatalf("PutTimer() error: %v", err)
	}

	timers, err := store.LoadTimers()
	if err != nil {
		t.Fatalf("LoadTimers() error: %v", err)
	}
	if len(timers) != 1 || timers[0] != timer {
		t.Errorf("LoadTimers() = %+v, want [%+v]", timers, timer)
	}

	if err := store.DeleteTimer(timer.ID); err != nil {
		t.Fatalf("DeleteTimer() error: %v", err)
	}
	timers, err = store.LoadTimers()
	if err != nil {
		t.Fatalf("LoadTimers() error: %v", err)
	}
	if len(timers) != 0 {
		t.Errorf("LoadTimers() after delete = %d timers, want 0", len(timers))
	}
}

func TestNewStoreFromConfig(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		store, err := NewStoreFromConfig(configFor("memory", ""), "dev1")
		if err != nil {
			t.Fatalf("NewStoreFromConfig() error: %v", err)
		}
		store.Close()
	})

	t.Run("sqlite", func(t *testing.T) {
		store, err := NewStoreFromConfig(configFor("sqlite", t.TempDir()), "dev1")
		if err != nil {
			t.Fatalf("NewStoreFromConfig() error: %v", err)
		}
		store.Close()
	})

	t.Run("sqlite without data_dir", func(t *testing.T) {
		if _, err := NewStoreFromConfig(configFor("sqlite", ""), "dev1"); err == nil {
			t.Error("NewStoreFromConfig() expected error for missing data_dir")
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := NewStoreFromConfig(configFor("etcd", ""), "dev1"); err == nil {
			t.Error("NewStoreFromConfig() expected error for unknown type")
		}
	})
}
