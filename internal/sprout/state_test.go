package sprout

import (
	"errors"
	"testing"
)

func TestContainer_AddProfile(t *testing.T) {
	c := NewContainer(nil, nil)

	p1 := Profile{ID: "p1", BabyName: "Emma", CreatedAt: "2025-01-01T00:00:00Z"}
	if err := c.AddProfile(p1); err != nil {
		t.Fatalf("AddProfile() error: %v", err)
	}

	// First profile becomes current.
	if got := c.CurrentProfileID(); got != "p1" {
		t.Errorf("CurrentProfileID() = %q, want p1", got)
	}

	p2 := Profile{ID: "p2", BabyName: "Liam", CreatedAt: "2025-02-01T00:00:00Z"}
	if err := c.AddProfile(p2); err != nil {
		t.Fatalf("AddProfile() second error: %v", err)
	}
	// Adding another does not steal the selection.
	if got := c.CurrentProfileID(); got != "p1" {
		t.Errorf("CurrentProfileID() after second add = %q, want p1", got)
	}

	if err := c.AddProfile(p1); !errors.Is(err, ErrValidation) {
		t.Errorf("AddProfile() duplicate error = %v, want ErrValidation", err)
	}
	if err := c.AddProfile(Profile{ID: "p3"}); !errors.Is(err, ErrValidation) {
		t.Errorf("AddProfile() without babyName error = %v, want ErrValidation", err)
	}
}

func TestContainer_SelectProfile(t *testing.T) {
	c := NewContainer(nil, nil)
	mustAddProfile(t, c, "p1")
	mustAddProfile(t, c, "p2")

	if err := c.SelectProfile("p2"); err != nil {
		t.Fatalf("SelectProfile() error: %v", err)
	}
	if got := c.CurrentProfileID(); got != "p2" {
		t.Errorf("CurrentProfileID() = %q, want p2", got)
	}

	if err := c.SelectProfile("ghost"); !errors.Is(err, ErrValidation) {
		t.Errorf("SelectProfile() unknown error = %v, want ErrValidation", err)
	}
}

func TestContainer_DeleteProfile(t *testing.T) {
	c := NewContainer(nil, nil)
	mustAddProfile(t, c, "p1")
	mustAddProfile(t, c, "p2")

	if err := c.AddLog("p1", LogEntry{ID: "l1", Type: LogFeed, Timestamp: 1}); err != nil {
		t.Fatalf("AddLog() error: %v", err)
	}
	if err := c.SetInventory("p1", Inventory{Diapers: 4}); err != nil {
		t.Fatalf("SetInventory() error: %v", err)
	}

	if err := c.DeleteProfile("p1"); err != nil {
		t.Fatalf("DeleteProfile() error: %v", err)
	}

	// Selection falls back to the first remaining profile.
	if got := c.CurrentProfileID(); got != "p2" {
		t.Errorf("CurrentProfileID() after delete = %q, want p2", got)
	}
	if logs := c.Logs("p1"); len(logs) != 0 {
		t.Errorf("Logs() after delete = %d entries, want 0", len(logs))
	}
	if inv := c.GetInventory("p1"); inv != (Inventory{}) {
		t.Errorf("GetInventory() after delete = %+v, want zero", inv)
	}

	if err := c.DeleteProfile("p1"); !errors.Is(err, ErrValidation) {
		t.Errorf("DeleteProfile() repeated error = %v, want ErrValidation", err)
	}
}

func TestContainer_ReplaceProfiles_KeepsSelection(t *testing.T) {
	c := NewContainer(nil, nil)
	mustAddProfile(t, c, "p1")
	mustAddProfile(t, c, "p2")

	// Snapshot still contains the current profile: selection unchanged.
	err := c.ReplaceProfiles([]Profile{
		{ID: "p1", BabyName: "Emma"},
		{ID: "p2", BabyName: "Liam"},
	})
	if err != nil {
		t.Fatalf("ReplaceProfiles() error: %v", err)
	}
	if got := c.CurrentProfileID(); got != "p1" {
		t.Errorf("CurrentProfileID() = %q, want p1", got)
	}
}

func TestContainer_ReplaceProfiles_ReselectsOnDeletion(t *testing.T) {
	c := NewContainer(nil, nil)
	mustAddProfile(t, c, "p1")
	mustAddProfile(t, c, "p2")

	// The current profile vanished from the snapshot: fall back to the
	// first remaining one.
	if err := c.ReplaceProfiles([]Profile{{ID: "p2", BabyName: "Liam"}}); err != nil {
		t.Fatalf("ReplaceProfiles() error: %v", err)
	}
	if got := c.CurrentProfileID(); got != "p2" {
		t.Errorf("CurrentProfileID() = %q, want p2", got)
	}

	// Empty snapshot clears the selection entirely.
	if err := c.ReplaceProfiles(nil); err != nil {
		t.Fatalf("ReplaceProfiles(nil) error: %v", err)
	}
	if got := c.CurrentProfileID(); got != "" {
		t.Errorf("CurrentProfileID() after empty snapshot = %q, want empty", got)
	}
}

func TestContainer_LogsNewestFirst(t *testing.T) {
	c := NewContainer(nil, nil)
	mustAddProfile(t, c, "p1")

	for _, e := range []LogEntry{
		{ID: "old", Type: LogFeed, Timestamp: 100},
		{ID: "newest", Type: LogFeed, Timestamp: 300},
		{ID: "mid", Type: LogFeed, Timestamp: 200},
	} {
		if err := c.AddLog("p1", e); err != nil {
			t.Fatalf("AddLog(%s) error: %v", e.ID, err)
		}
	}

	logs := c.Logs("p1")
	want := []string{"newest", "mid", "old"}
	for i, id := range want {
		if logs[i].ID != id {
			t.Errorf("Logs()[%d] = %s, want %s", i, logs[i].ID, id)
		}
	}
}

func TestContainer_AddLogValidation(t *testing.T) {
	c := NewContainer(nil, nil)
	mustAddProfile(t, c, "p1")

	if err := c.AddLog("p1", LogEntry{Type: LogFeed}); !errors.Is(err, ErrValidation) {
		t.Errorf("AddLog() without id error = %v, want ErrValidation", err)
	}
	if err := c.AddLog("ghost", LogEntry{ID: "l1", Type: LogFeed}); !errors.Is(err, ErrValidation) {
		t.Errorf("AddLog() unknown profile error = %v, want ErrValidation", err)
	}
}

func TestContainer_UpdateAndDeleteLog(t *testing.T) {
	c := NewContainer(nil, nil)
	mustAddProfile(t, c, "p1")

	if err := c.AddLog("p1", LogEntry{ID: "l1", Type: LogFeed, Details: "bottle", Timestamp: 1}); err != nil {
		t.Fatalf("AddLog() error: %v", err)
	}

	if err := c.UpdateLog("p1", LogEntry{ID: "l1", Type: LogFeed, Details: "breast", Timestamp: 1}); err != nil {
		t.Fatalf("UpdateLog() error: %v", err)
	}
	if got := c.Logs("p1")[0].Details; got != "breast" {
		t.Errorf("Logs()[0].Details = %q, want breast", got)
	}

	if err := c.UpdateLog("p1", LogEntry{ID: "ghost"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateLog() unknown error = %v, want ErrNotFound", err)
	}

	if err := c.DeleteLog("p1", "l1"); err != nil {
		t.Fatalf("DeleteLog() error: %v", err)
	}
	if got := len(c.Logs("p1")); got != 0 {
		t.Errorf("Logs() after delete = %d entries, want 0", got)
	}
}

func TestContainer_Inventory(t *testing.T) {
	c := NewContainer(nil, nil)
	mustAddProfile(t, c, "p1")

	// Absent inventory is the zero value, not an error.
	if inv := c.GetInventory("p1"); inv != (Inventory{}) {
		t.Errorf("GetInventory() default = %+v, want zero", inv)
	}

	if err := c.SetInventory("p1", Inventory{Diapers: 10, Formula: 2}); err != nil {
		t.Fatalf("SetInventory() error: %v", err)
	}
	if inv := c.GetInventory("p1"); inv.Diapers != 10 || inv.Formula != 2 {
		t.Errorf("GetInventory() = %+v", inv)
	}

	if err := c.SetInventory("ghost", Inventory{}); !errors.Is(err, ErrValidation) {
		t.Errorf("SetInventory() unknown profile error = %v, want ErrValidation", err)
	}
}

func TestContainer_Reminders(t *testing.T) {
	c := NewContainer(nil, nil)
	mustAddProfile(t, c, "p1")

	r := Reminder{ID: "r1", Text: "vitamin D", Time: 1700000000000, Frequency: FrequencyDaily, IsActive: true}
	if err := c.AddReminder("p1", r); err != nil {
		t.Fatalf("AddReminder() error: %v", err)
	}

	if err := c.ToggleReminder("p1", "r1"); err != nil {
		t.Fatalf("ToggleReminder() error: %v", err)
	}
	if got := c.Reminders("p1")[0].IsActive; got {
		t.Error("ToggleReminder() left reminder active, want inactive")
	}

	if err := c.DeleteReminder("p1", "r1"); err != nil {
		t.Fatalf("DeleteReminder() error: %v", err)
	}
	if got := len(c.Reminders("p1")); got != 0 {
		t.Errorf("Reminders() after delete = %d, want 0", got)
	}
}

func TestContainer_Preferences(t *testing.T) {
	c := NewContainer(nil, nil)

	if got := c.Preferences().Unit; got != "metric" {
		t.Errorf("Preferences().Unit default = %q, want metric", got)
	}

	if err := c.ToggleDarkMode(); err != nil {
		t.Fatalf("ToggleDarkMode() error: %v", err)
	}
	if !c.Preferences().DarkMode {
		t.Error("ToggleDarkMode() did not enable dark mode")
	}

	if err := c.SetUnit("imperial"); err != nil {
		t.Fatalf("SetUnit() error: %v", err)
	}
	if err := c.SetUnit("furlongs"); !errors.Is(err, ErrValidation) {
		t.Errorf("SetUnit() invalid error = %v, want ErrValidation", err)
	}
}

func TestContainer_OnChange(t *testing.T) {
	c := NewContainer(nil, nil)

	var calls int
	c.OnChange(func() { calls++ })

	mustAddProfile(t, c, "p1")
	if err := c.AddLog("p1", LogEntry{ID: "l1", Type: LogFeed, Timestamp: 1}); err != nil {
		t.Fatalf("AddLog() error: %v", err)
	}

	if calls != 2 {
		t.Errorf("change callback ran %d times, want 2", calls)
	}
}

func TestContainer_SnapshotRestore(t *testing.T) {
	c := NewContainer(nil, nil)
	mustAddProfile(t, c, "p1")
	if err := c.AddLog("p1", LogEntry{ID: "l1", Type: LogFeed, Timestamp: 1}); err != nil {
		t.Fatalf("AddLog() error: %v", err)
	}
	if err := c.SetInventory("p1", Inventory{Diapers: 3}); err != nil {
		t.Fatalf("SetInventory() error: %v", err)
	}

	snap := c.Snapshot()

	other := NewContainer(nil, nil)
	if err := other.Restore(snap); err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	if got := other.CurrentProfileID(); got != "p1" {
		t.Errorf("CurrentProfileID() after restore = %q, want p1", got)
	}
	if got := len(other.Logs("p1")); got != 1 {
		t.Errorf("Logs() after restore = %d entries, want 1", got)
	}
	if inv := other.GetInventory("p1"); inv.Diapers != 3 {
		t.Errorf("GetInventory() after restore = %+v", inv)
	}
}

func mustAddProfile(t *testing.T, c *Container, id string) {
	t.Helper()
	if err := c.AddProfile(Profile{ID: id, BabyName: "Baby " + id, CreatedAt: "2025-01-01T00:00:00Z"}); err != nil {
		t.Fatalf("AddProfile(%s) error: %v", id, err)
	}
}
