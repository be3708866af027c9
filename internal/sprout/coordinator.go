package sprout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// SyncState is the coordinator's lifecycle phase.
type SyncState int

const (
	// StateIdle means no principal is authenticated and no remote activity
	// is in flight. The container may still hold a previous local session.
	StateIdle SyncState = iota
	// StatePulling means the initial pull for a principal is running.
	StatePulling
	// StateSubscribed means live subscriptions are established.
	StateSubscribed
	// StateTornDown means all subscriptions have been released. Terminal.
	StateTornDown
)

// String returns a human-readable phase name.
func (s SyncState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePulling:
		return "pulling"
	case StateSubscribed:
		return "subscribed"
	case StateTornDown:
		return "torn down"
	default:
		return "unknown"
	}
}

// pathKind classifies a subscribed remote path.
type pathKind int

const (
	kindUnknown pathKind = iota
	kindProfiles
	kindProfileDoc
	kindLogs
	kindInventory
	kindReminders
	kindAppointments
)

// appliedSnapshot pairs a snapshot with the principal it was subscribed
// under, so stale deliveries after a principal change can be dropped.
type appliedSnapshot struct {
	snap      Snapshot
	principal string
}

// Coordinator reconciles the remote store with the local state container
// for one authenticated principal at a time.
//
// It is the sole holder of subscription handles and the single writer of
// remote snapshots into the container: every subscription forwards into one
// apply channel consumed by one goroutine, preserving single-writer
// discipline. UI mutations go to the container directly and race with
// snapshots; last write observed wins.
type Coordinator struct {
	remote RemoteStore
	state  *Container
	logger Logger

	mu           sync.Mutex
	phase        SyncState
	principal    string
	subs         map[string]Subscription // subscribed path -> handle
	profilePaths []string                // per-profile paths, reopened on reselect
	watched      string                  // profile id the per-profile subs follow

	apply chan appliedSnapshot
	errs  chan error
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

// NewCoordinator creates a coordinator in the Idle state.
func NewCoordinator(remote RemoteStore, state *Container, logger Logger) *Coordinator {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Coordinator{
		remote: remote,
		state:  state,
		logger: logger,
		phase:  StateIdle,
		subs:   make(map[string]Subscription),
		apply:  make(chan appliedSnapshot, 64),
		errs:   make(chan error, 16),
		done:   make(chan struct{}),
	}
}

// Phase returns the coordinator's current lifecycle phase.
func (c *Coordinator) Phase() SyncState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Errors returns the channel surfacing subscription failures. Failures are
// logged and delivered here; the coordinator does not retry.
func (c *Coordinator) Errors() <-chan error {
	return c.errs
}

// Pull performs the initial pull-based sync for principal.
//
// The profile fetch is guarded: when the container already holds profiles it
// is skipped, so re-entering Pull for the same session never refetches the
// list. After profile selection the current profile's logs, inventory,
// reminders, and appointments are fetched and overwrite the container's
// entries. A collection that fails to fetch is left unchanged; the first
// failure is returned after all collections have been attempted.
func (c *Coordinator) Pull(ctx context.Context, principal string) error {
	c.mu.Lock()
	if c.phase == StateTornDown {
		c.mu.Unlock()
		return ErrTornDown
	}
	c.phase = StatePulling
	c.principal = principal
	c.mu.Unlock()

	c.logger.Info("sync pull starting", "principal", principal)

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if len(c.state.Profiles()) == 0 {
		profiles, err := c.fetchProfiles(ctx, principal)
		if err != nil {
			record(fmt.Errorf("fetching profiles: %w", err))
		} else if c.stillCurrent(principal) {
			record(c.state.ReplaceProfiles(profiles))
		}
	}

	profileID := c.state.CurrentProfileID()
	if profileID == "" {
		c.logger.Info("sync pull complete", "principal", principal, "profiles", 0)
		return firstErr
	}

	logs, err := c.fetchLogs(ctx, principal, profileID)
	if err != nil {
		record(fmt.Errorf("fetching logs: %w", err))
	} else if c.stillCurrent(principal) {
		record(c.state.ReplaceLogs(profileID, logs))
	}

	var inv Inventory
	err = c.remote.Read(ctx, InventoryPath(principal, profileID), &inv)
	switch {
	case IsAbsent(err):
		// No inventory yet; keep the local default.
	case err != nil:
		record(fmt.Errorf("fetching inventory: %w", err))
	case c.stillCurrent(principal):
		record(c.state.ReplaceInventory(profileID, inv))
	}

	reminders, err := fetchCollection[Reminder](ctx, c.remote, RemindersPath(principal, profileID), ListOptions{})
	if err != nil {
		record(fmt.Errorf("fetching reminders: %w", err))
	} else if c.stillCurrent(principal) {
		record(c.state.ReplaceReminders(profileID, reminders))
	}

	appointments, err := fetchCollection[Appointment](ctx, c.remote, AppointmentsPath(principal, profileID), ListOptions{})
	if err != nil {
		record(fmt.Errorf("fetching appointments: %w", err))
	} else if c.stillCurrent(principal) {
		record(c.state.ReplaceAppointments(profileID, appointments))
	}

	c.logger.Info("sync pull complete", "principal", principal, "profile", profileID)
	return firstErr
}

// Start runs the initial pull and then establishes live subscriptions.
// Subscriptions are established even when the pull partially fails; the
// pull error is returned so the caller can notify the user.
func (c *Coordinator) Start(ctx context.Context, principal string) error {
	pullErr := c.Pull(ctx, principal)

	c.mu.Lock()
	if c.phase == StateTornDown {
		c.mu.Unlock()
		return ErrTornDown
	}
	c.mu.Unlock()

	if err := c.subscribe(ctx, ProfilesPath(principal), principal); err != nil {
		return fmt.Errorf("subscribing to profiles: %w", err)
	}
	if profileID := c.state.CurrentProfileID(); profileID != "" {
		c.subscribeProfile(ctx, principal, profileID)
	}

	c.mu.Lock()
	if c.phase != StateTornDown {
		c.phase = StateSubscribed
	}
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run(ctx)

	return pullErr
}

// Teardown releases every subscription exactly once and stops applying
// snapshots. Unconditional and idempotent: tearing down twice is a no-op.
func (c *Coordinator) Teardown() {
	c.once.Do(func() {
		c.mu.Lock()
		c.phase = StateTornDown
		subs := c.subs
		c.subs = map[string]Subscription{}
		c.profilePaths = nil
		c.mu.Unlock()

		close(c.done)
		for _, sub := range subs {
			sub.Unsubscribe()
		}
		c.wg.Wait()
		c.logger.Info("sync torn down", "subscriptions", len(subs))
	})
}

// run is the single consumer applying subscription snapshots to the
// container.
func (c *Coordinator) run(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case as := <-c.apply:
			c.applySnapshot(ctx, as)
		}
	}
}

// subscribe opens a subscription on path and starts a forwarder feeding the
// apply channel.
func (c *Coordinator) subscribe(ctx context.Context, path, principal string) error {
	sub, err := c.remote.Subscribe(ctx, path)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.phase == StateTornDown {
		c.mu.Unlock()
		sub.Unsubscribe()
		return ErrTornDown
	}
	c.subs[path] = sub
	c.mu.Unlock()

	c.wg.Add(1)
	go c.forward(sub, principal)
	return nil
}

// subscribeProfile opens the per-profile subscriptions: the profile's log
// collection, its profile document, and its inventory document. Failures
// are surfaced on the error channel rather than aborting the others.
func (c *Coordinator) subscribeProfile(ctx context.Context, principal, profileID string) {
	paths := []string{
		LogsPath(principal, profileID),
		ProfilePath(principal, profileID),
		InventoryPath(principal, profileID),
	}

	var opened []string
	for _, path := range paths {
		if err := c.subscribe(ctx, path, principal); err != nil {
			c.reportError(fmt.Errorf("subscribing to %s: %w", path, err))
			continue
		}
		opened = append(opened, path)
	}

	c.mu.Lock()
	c.profilePaths = opened
	c.watched = profileID
	c.mu.Unlock()
}

// unsubscribeProfile releases the per-profile subscriptions, leaving the
// profile-list subscription open.
func (c *Coordinator) unsubscribeProfile() {
	c.mu.Lock()
	var stale []Subscription
	for _, path := range c.profilePaths {
		if sub, ok := c.subs[path]; ok {
			stale = append(stale, sub)
			delete(c.subs, path)
		}
	}
	c.profilePaths = nil
	c.watched = ""
	c.mu.Unlock()

	for _, sub := range stale {
		sub.Unsubscribe()
	}
}

// forward relays one subscription's snapshots and errors until the
// subscription closes or the coordinator tears down.
func (c *Coordinator) forward(sub Subscription, principal string) {
	defer c.wg.Done()

	snaps := sub.Snapshots()
	errs := sub.Errs()
	for snaps != nil || errs != nil {
		select {
		case <-c.done:
			return
		case snap, ok := <-snaps:
			if !ok {
				snaps = nil
				continue
			}
			select {
			case c.apply <- appliedSnapshot{snap: snap, principal: principal}:
			case <-c.done:
				return
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			c.reportError(err)
		}
	}
}

// applySnapshot reconciles one snapshot into the container. Snapshots for a
// principal that is no longer current, or arriving after teardown, are
// dropped.
func (c *Coordinator) applySnapshot(ctx context.Context, as appliedSnapshot) {
	c.mu.Lock()
	if c.phase == StateTornDown || as.principal != c.principal {
		c.mu.Unlock()
		return
	}
	watched := c.watched
	c.mu.Unlock()

	principal := as.principal
	kind, profileID := classifyPath(principal, as.snap.Path)

	switch kind {
	case kindProfiles:
		profiles, err := decodeDocs[Profile](as.snap.Docs)
		if err != nil {
			c.reportError(fmt.Errorf("decoding profile snapshot: %w", err))
			return
		}
		before := c.state.CurrentProfileID()
		if err := c.state.ReplaceProfiles(profiles); err != nil {
			c.reportError(err)
			return
		}
		// Reselection moves the per-profile subscriptions with it.
		if after := c.state.CurrentProfileID(); after != before || after != watched {
			c.unsubscribeProfile()
			if after != "" {
				c.subscribeProfile(ctx, principal, after)
			}
		}

	case kindProfileDoc:
		if len(as.snap.Docs) == 0 {
			return // deletion arrives via the profile-list snapshot
		}
		var p Profile
		if err := json.Unmarshal(as.snap.Docs[0], &p); err != nil {
			c.reportError(fmt.Errorf("decoding profile document: %w", err))
			return
		}
		if err := c.state.UpdateProfile(p); err != nil {
			c.reportError(err)
		}

	case kindLogs:
		logs, err := decodeDocs[LogEntry](as.snap.Docs)
		if err != nil {
			c.reportError(fmt.Errorf("decoding log snapshot: %w", err))
			return
		}
		if err := c.state.ReplaceLogs(profileID, logs); err != nil {
			c.reportError(err)
		}

	case kindInventory:
		var inv Inventory
		if len(as.snap.Docs) > 0 {
			if err := json.Unmarshal(as.snap.Docs[0], &inv); err != nil {
				c.reportError(fmt.Errorf("decoding inventory document: %w", err))
				return
			}
		}
		if err := c.state.ReplaceInventory(profileID, inv); err != nil {
			c.reportError(err)
		}

	case kindReminders:
		reminders, err := decodeDocs[Reminder](as.snap.Docs)
		if err != nil {
			c.reportError(fmt.Errorf("decoding reminder snapshot: %w", err))
			return
		}
		if err := c.state.ReplaceReminders(profileID, reminders); err != nil {
			c.reportError(err)
		}

	case kindAppointments:
		appointments, err := decodeDocs[Appointment](as.snap.Docs)
		if err != nil {
			c.reportError(fmt.Errorf("decoding appointment snapshot: %w", err))
			return
		}
		if err := c.state.ReplaceAppointments(profileID, appointments); err != nil {
			c.reportError(err)
		}

	default:
		c.logger.Warn("unrecognized snapshot path", "path", as.snap.Path)
	}
}

// reportError logs err and surfaces it on the error channel without
// blocking.
func (c *Coordinator) reportError(err error) {
	c.logger.Warn("subscription error", "error", err)
	select {
	case c.errs <- err:
	default:
	}
}

func (c *Coordinator) stillCurrent(principal string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase != StateTornDown && c.principal == principal
}

func (c *Coordinator) fetchProfiles(ctx context.Context, principal string) ([]Profile, error) {
	return fetchCollection[Profile](ctx, c.remote, ProfilesPath(principal),
		ListOptions{OrderBy: "createdAt"})
}

func (c *Coordinator) fetchLogs(ctx context.Context, principal, profileID string) ([]LogEntry, error) {
	return fetchCollection[LogEntry](ctx, c.remote, LogsPath(principal, profileID),
		ListOptions{OrderBy: "timestamp", Descending: true})
}

// fetchCollection lists a collection and decodes every document into T.
func fetchCollection[T any](ctx context.Context, remote RemoteStore, path string, opts ListOptions) ([]T, error) {
	docs, err := remote.List(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	return decodeDocs[T](docs)
}

func decodeDocs[T any](docs []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := json.Unmarshal(doc, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// IsAbsent reports whether err means "expected document missing", which
// callers usually treat as the empty value rather than a failure.
func IsAbsent(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// classifyPath maps a subscribed path to the entity collection it names.
func classifyPath(principal, path string) (pathKind, string) {
	prefix := ProfilesPath(principal)
	if path == prefix {
		return kindProfiles, ""
	}
	rest, ok := strings.CutPrefix(path, prefix+"/")
	if !ok {
		return kindUnknown, ""
	}

	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 1:
		return kindProfileDoc, parts[0]
	case len(parts) == 2 && parts[1] == "logs":
		return kindLogs, parts[0]
	case len(parts) == 3 && parts[1] == "data" && parts[2] == "inventory":
		return kindInventory, parts[0]
	case len(parts) == 2 && parts[1] == "reminders":
		return kindReminders, parts[0]
	case len(parts) == 2 && parts[1] == "appointments":
		return kindAppointments, parts[0]
	default:
		return kindUnknown, ""
	}
}
