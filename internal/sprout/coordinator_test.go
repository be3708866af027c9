package sprout_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yadielglz/littlesprout-sub001/internal/remote"
	"github.com/yadielglz/littlesprout-sub001/internal/sprout"
)

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func seedProfile(t *testing.T, store *remote.MemoryStore, principal string, p sprout.Profile) {
	t.Helper()
	if err := store.Create(context.Background(), sprout.ProfilePath(principal, p.ID), p); err != nil {
		t.Fatalf("seeding profile %s: %v", p.ID, err)
	}
}

func TestCoordinator_PullEmptyPrincipal(t *testing.T) {
	store := remote.NewMemoryStore()
	defer store.Close()

	container := sprout.NewContainer(nil, nil)
	coord := sprout.NewCoordinator(store, container, nil)

	// A principal with no remote data pulls cleanly into an empty
	// container: no error, no profiles, no selection.
	if err := coord.Pull(context.Background(), "u-fresh"); err != nil {
		t.Fatalf("Pull() error: %v", err)
	}
	if got := len(container.Profiles()); got != 0 {
		t.Errorf("Profiles() = %d, want 0", got)
	}
	if got := container.CurrentProfileID(); got != "" {
		t.Errorf("CurrentProfileID() = %q, want empty", got)
	}
}

func TestCoordinator_PullPopulatesContainer(t *testing.T) {
	store := remote.NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	seedProfile(t, store, "u1", sprout.Profile{ID: "p1", BabyName: "Emma", CreatedAt: "2025-01-01T00:00:00Z"})
	seedProfile(t, store, "u1", sprout.Profile{ID: "p2", BabyName: "Liam", CreatedAt: "2025-02-01T00:00:00Z"})

	if err := store.Create(ctx, sprout.LogsPath("u1", "p1")+"/l1",
		sprout.LogEntry{ID: "l1", Type: sprout.LogFeed, Timestamp: 100}); err != nil {
		t.Fatalf("seeding log: %v", err)
	}
	if err := store.Set(ctx, sprout.InventoryPath("u1", "p1"), sprout.Inventory{Diapers: 7}); err != nil {
		t.Fatalf("seeding inventory: %v", err)
	}
	if err := store.Create(ctx, sprout.RemindersPath("u1", "p1")+"/r1",
		sprout.Reminder{ID: "r1", Text: "vitamin D", Frequency: sprout.FrequencyDaily, IsActive: true}); err != nil {
		t.Fatalf("seeding reminder: %v", err)
	}
	if err := store.Create(ctx, sprout.AppointmentsPath("u1", "p1")+"/a1",
		sprout.Appointment{ID: "a1", Date: "2025-05-01", Time: "09:00"}); err != nil {
		t.Fatalf("seeding appointment: %v", err)
	}

	container := sprout.NewContainer(nil, nil)
	coord := sprout.NewCoordinator(store, container, nil)

	if err := coord.Pull(ctx, "u1"); err != nil {
		t.Fatalf("Pull() error: %v", err)
	}

	if got := len(container.Profiles()); got != 2 {
		t.Fatalf("Profiles() = %d, want 2", got)
	}
	// First profile by creation order becomes current.
	if got := container.CurrentProfileID(); got != "p1" {
		t.Errorf("CurrentProfileID() = %q, want p1", got)
	}
	if got := len(container.Logs("p1")); got != 1 {
		t.Errorf("Logs(p1) = %d entries, want 1", got)
	}
	if inv := container.GetInventory("p1"); inv.Diapers != 7 {
		t.Errorf("GetInventory(p1) = %+v, want diapers 7", inv)
	}
	if got := len(container.Reminders("p1")); got != 1 {
		t.Errorf("Reminders(p1) = %d, want 1", got)
	}
	if got := len(container.Appointments("p1")); got != 1 {
		t.Errorf("Appointments(p1) = %d, want 1", got)
	}
}

func TestCoordinator_PullMissingInventoryKeepsDefault(t *testing.T) {
	store := remote.NewMemoryStore()
	defer store.Close()

	seedProfile(t, store, "u1", sprout.Profile{ID: "p1", BabyName: "Emma", CreatedAt: "2025-01-01T00:00:00Z"})

	container := sprout.NewContainer(nil, nil)
	coord := sprout.NewCoordinator(store, container, nil)

	// No inventory document exists remotely: not an error, local default
	// stays.
	if err := coord.Pull(context.Background(), "u1"); err != nil {
		t.Fatalf("Pull() error: %v", err)
	}
	if inv := container.GetInventory("p1"); inv != (sprout.Inventory{}) {
		t.Errorf("GetInventory() = %+v, want zero", inv)
	}
}

func TestCoordinator_PullSkipsProfileFetchWhenPopulated(t *testing.T) {
	store := remote.NewMemoryStore()
	defer store.Close()

	seedProfile(t, store, "u1", sprout.Profile{ID: "remote", BabyName: "Remote", CreatedAt: "2025-01-01T00:00:00Z"})

	container := sprout.NewContainer(nil, nil)
	if err := container.AddProfile(sprout.Profile{ID: "local", BabyName: "Local"}); err != nil {
		t.Fatalf("AddProfile() error: %v", err)
	}

	coord := sprout.NewCoordinator(store, container, nil)
	if err := coord.Pull(context.Background(), "u1"); err != nil {
		t.Fatalf("Pull() error: %v", err)
	}

	// The populated container's profile list is left alone.
	profiles := container.Profiles()
	if len(profiles) != 1 || profiles[0].ID != "local" {
		t.Errorf("Profiles() = %+v, want the local profile only", profiles)
	}
}

func TestCoordinator_PullRemoteFailure(t *testing.T) {
	store := remote.NewMemoryStore()
	defer store.Close()

	store.SetFailure(sprout.ErrRemoteUnavailable)

	container := sprout.NewContainer(nil, nil)
	coord := sprout.NewCoordinator(store, container, nil)

	err := coord.Pull(context.Background(), "u1")
	if !errors.Is(err, sprout.ErrRemoteUnavailable) {
		t.Errorf("Pull() error = %v, want ErrRemoteUnavailable", err)
	}
	// Local state untouched by the failed pull.
	if got := len(container.Profiles()); got != 0 {
		t.Errorf("Profiles() after failed pull = %d, want 0", got)
	}
}

func TestCoordinator_StartAppliesLiveUpdates(t *testing.T) {
	store := remote.NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	seedProfile(t, store, "u1", sprout.Profile{ID: "p1", BabyName: "Emma", CreatedAt: "2025-01-01T00:00:00Z"})

	container := sprout.NewContainer(nil, nil)
	coord := sprout.NewCoordinator(store, container, nil)

	if err := coord.Start(ctx, "u1"); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer coord.Teardown()

	if got := coord.Phase(); got != sprout.StateSubscribed {
		t.Fatalf("Phase() = %v, want subscribed", got)
	}

	// A remote write lands in the container via the live subscription.
	if err := store.Create(ctx, sprout.LogsPath("u1", "p1")+"/l-new",
		sprout.LogEntry{ID: "l-new", Type: sprout.LogDiaper, Timestamp: 500}); err != nil {
		t.Fatalf("creating remote log: %v", err)
	}
	waitFor(t, "log to arrive", func() bool {
		return len(container.Logs("p1")) == 1
	})

	// So does an inventory change.
	if err := store.Set(ctx, sprout.InventoryPath("u1", "p1"), sprout.Inventory{Diapers: 3}); err != nil {
		t.Fatalf("setting remote inventory: %v", err)
	}
	waitFor(t, "inventory to arrive", func() bool {
		return container.GetInventory("p1").Diapers == 3
	})
}

func TestCoordinator_ProfileDeletionReselects(t *testing.T) {
	store := remote.NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	seedProfile(t, store, "u1", sprout.Profile{ID: "p1", BabyName: "Emma", CreatedAt: "2025-01-01T00:00:00Z"})
	seedProfile(t, store, "u1", sprout.Profile{ID: "p2", BabyName: "Liam", CreatedAt: "2025-02-01T00:00:00Z"})

	if err := store.Create(ctx, sprout.LogsPath("u1", "p2")+"/l2",
		sprout.LogEntry{ID: "l2", Type: sprout.LogFeed, Timestamp: 100}); err != nil {
		t.Fatalf("seeding log: %v", err)
	}

	container := sprout.NewContainer(nil, nil)
	coord := sprout.NewCoordinator(store, container, nil)

	if err := coord.Start(ctx, "u1"); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer coord.Teardown()

	if got := container.CurrentProfileID(); got != "p1" {
		t.Fatalf("CurrentProfileID() = %q, want p1", got)
	}

	// Another device deletes the selected profile. The snapshot drops p1,
	// selection falls to p2, and the per-profile subscriptions follow.
	if err := store.Delete(ctx, sprout.ProfilePath("u1", "p1")); err != nil {
		t.Fatalf("deleting remote profile: %v", err)
	}

	waitFor(t, "selection to move to p2", func() bool {
		return container.CurrentProfileID() == "p2"
	})
	waitFor(t, "p2 logs to arrive", func() bool {
		return len(container.Logs("p2")) == 1
	})
}

func TestCoordinator_TeardownIdempotent(t *testing.T) {
	store := remote.NewMemoryStore()
	defer store.Close()

	seedProfile(t, store, "u1", sprout.Profile{ID: "p1", BabyName: "Emma", CreatedAt: "2025-01-01T00:00:00Z"})

	container := sprout.NewContainer(nil, nil)
	coord := sprout.NewCoordinator(store, container, nil)

	if err := coord.Start(context.Background(), "u1"); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	coord.Teardown()
	coord.Teardown()
	coord.Teardown()

	if got := coord.Phase(); got != sprout.StateTornDown {
		t.Errorf("Phase() after teardown = %v, want torn down", got)
	}

	// The coordinator is terminal after teardown.
	if err := coord.Pull(context.Background(), "u1"); !errors.Is(err, sprout.ErrTornDown) {
		t.Errorf("Pull() after teardown error = %v, want ErrTornDown", err)
	}
}

func TestCoordinator_NoApplyAfterTeardown(t *testing.T) {
	store := remote.NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	seedProfile(t, store, "u1", sprout.Profile{ID: "p1", BabyName: "Emma", CreatedAt: "2025-01-01T00:00:00Z"})

	container := sprout.NewContainer(nil, nil)
	coord := sprout.NewCoordinator(store, container, nil)

	if err := coord.Start(ctx, "u1"); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	coord.Teardown()

	// A remote write after teardown must never reach the container.
	if err := store.Create(ctx, sprout.LogsPath("u1", "p1")+"/l-late",
		sprout.LogEntry{ID: "l-late", Type: sprout.LogDiaper, Timestamp: 900}); err != nil {
		t.Fatalf("creating remote log: %v", err)
	}

	// Give any straggling snapshot time to (wrongly) apply.
	time.Sleep(300 * time.Millisecond)

	if got := len(container.Logs("p1")); got != 0 {
		t.Errorf("Logs(p1) after teardown = %d, want 0", got)
	}
}

func TestCoordinator_TeardownWithoutStart(t *testing.T) {
	store := remote.NewMemoryStore()
	defer store.Close()

	coord := sprout.NewCoordinator(store, sprout.NewContainer(nil, nil), nil)

	// Teardown before any sync activity must not panic.
	coord.Teardown()

	if got := coord.Phase(); got != sprout.StateTornDown {
		t.Errorf("Phase() = %v, want torn down", got)
	}
}
