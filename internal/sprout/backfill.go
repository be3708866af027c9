package sprout

import (
	"context"
	"fmt"
)

// BackfillResult summarizes one backfill run.
type BackfillResult struct {
	Pushed  int // records written to the remote store
	Skipped int // records already in the migration ledger
}

// Backfiller pushes pre-existing local-only data into the remote store when
// a principal first authenticates. It runs on demand, never automatically.
//
// Each pushed record is tracked in the StateStore's migration ledger keyed
// by remote document path, so re-running after a partial failure pushes
// only what is still missing instead of creating duplicates.
type Backfiller struct {
	remote RemoteStore
	state  *Container
	ledger StateStore
	logger Logger
}

// NewBackfiller creates a backfill routine over the given remote and local
// state. ledger is the store holding the migration ledger.
func NewBackfiller(remote RemoteStore, state *Container, ledger StateStore, logger Logger) *Backfiller {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Backfiller{
		remote: remote,
		state:  state,
		ledger: ledger,
		logger: logger,
	}
}

// Run pushes all local collections for principal: one upsert per profile and
// per inventory, one batched create per profile's log set, one create per
// reminder and appointment. Returns the counts and the first error; a
// partial run leaves the ledger reflecting exactly what was pushed.
func (b *Backfiller) Run(ctx context.Context, principal string) (BackfillResult, error) {
	var res BackfillResult
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	b.logger.Info("backfill starting", "principal", principal)

	for _, p := range b.state.Profiles() {
		record(b.pushOne(ctx, ProfilePath(principal, p.ID), &res, func(path string) error {
			return b.remote.Set(ctx, path, p)
		}))

		record(b.pushLogs(ctx, principal, p.ID, &res))

		if inv := b.state.GetInventory(p.ID); inv != (Inventory{}) {
			record(b.pushOne(ctx, InventoryPath(principal, p.ID), &res, func(path string) error {
				return b.remote.Set(ctx, path, inv)
			}))
		}

		for _, r := range b.state.Reminders(p.ID) {
			record(b.pushOne(ctx, RemindersPath(principal, p.ID)+"/"+r.ID, &res, func(path string) error {
				return b.remote.Create(ctx, path, r)
			}))
		}

		for _, a := range b.state.Appointments(p.ID) {
			record(b.pushOne(ctx, AppointmentsPath(principal, p.ID)+"/"+a.ID, &res, func(path string) error {
				return b.remote.Create(ctx, path, a)
			}))
		}
	}

	b.logger.Info("backfill complete", "pushed", res.Pushed, "skipped", res.Skipped)
	return res, firstErr
}

// pushOne pushes a single record unless the ledger already has its path.
func (b *Backfiller) pushOne(ctx context.Context, path string, res *BackfillResult, push func(path string) error) error {
	migrated, err := b.ledger.IsMigrated(path)
	if err != nil {
		return fmt.Errorf("checking migration ledger for %s: %w", path, err)
	}
	if migrated {
		res.Skipped++
		return nil
	}

	if err := push(path); err != nil {
		return fmt.Errorf("pushing %s: %w", path, err)
	}
	if err := b.ledger.MarkMigrated(path); err != nil {
		return fmt.Errorf("recording migration of %s: %w", path, err)
	}
	res.Pushed++
	return nil
}

// pushLogs batches the profile's not-yet-migrated log entries into a single
// remote CreateBatch, then marks each entry in the ledger.
func (b *Backfiller) pushLogs(ctx context.Context, principal, profileID string, res *BackfillResult) error {
	collection := LogsPath(principal, profileID)

	batch := make(map[string]any)
	for _, e := range b.state.Logs(profileID) {
		path := collection + "/" + e.ID
		migrated, err := b.ledger.IsMigrated(path)
		if err != nil {
			return fmt.Errorf("checking migration ledger for %s: %w", path, err)
		}
		if migrated {
			res.Skipped++
			continue
		}
		batch[e.ID] = e
	}
	if len(batch) == 0 {
		return nil
	}

	if err := b.remote.CreateBatch(ctx, collection, batch); err != nil {
		return fmt.Errorf("pushing log batch for profile %s: %w", profileID, err)
	}
	for id := range batch {
		if err := b.ledger.MarkMigrated(collection + "/" + id); err != nil {
			return fmt.Errorf("recording migration of %s: %w", collection+"/"+id, err)
		}
		res.Pushed++
	}
	return nil
}
