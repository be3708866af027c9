package sprout

import (
	"context"
	"encoding/json"
	"fmt"
)

// RemoteStore provides an interface over a remote document database.
// Documents live at hierarchical slash-separated paths; a collection path
// holds documents keyed by id at collectionPath/id.
//
// All operations honor the caller's context and report failures wrapping
// ErrRemoteUnavailable, ErrPermissionDenied, or ErrNotFound so callers can
// branch with errors.Is regardless of the backend.
type RemoteStore interface {
	// Create stores a new document at path. Fails if the document exists.
	Create(ctx context.Context, path string, doc any) error

	// Set stores a document at path, creating or fully replacing it.
	Set(ctx context.Context, path string, doc any) error

	// Read fetches the document at path and decodes it into out.
	// Returns an error wrapping ErrNotFound when the document is absent.
	Read(ctx context.Context, path string, out any) error

	// List returns the raw documents under collectionPath, ordered per opts.
	// A missing collection is an empty result, not an error.
	List(ctx context.Context, collectionPath string, opts ListOptions) ([]json.RawMessage, error)

	// Update merges fields into the existing document at path.
	// Returns an error wrapping ErrNotFound when the document is absent.
	Update(ctx context.Context, path string, fields map[string]any) error

	// Delete removes the document at path. Deleting an absent document is
	// a no-op.
	Delete(ctx context.Context, path string) error

	// CreateBatch stores docs (keyed by document id) under collectionPath
	// in a single batched operation.
	CreateBatch(ctx context.Context, collectionPath string, docs map[string]any) error

	// Subscribe opens a live subscription on a collection or document path.
	// The subscription delivers an initial snapshot immediately, then a new
	// snapshot after every observed change, until Unsubscribe is called or
	// ctx is canceled. Delivery order across independent documents is not
	// guaranteed, but snapshots for a single path are monotonic.
	Subscribe(ctx context.Context, path string) (Subscription, error)

	// Close releases backend resources. No subscription delivers after Close.
	Close() error
}

// ListOptions controls the ordering of List results.
type ListOptions struct {
	// OrderBy names a top-level document field to sort by. Numeric fields
	// sort numerically, everything else lexically. Empty means unordered.
	OrderBy string
	// Descending reverses the sort order.
	Descending bool
}

// Snapshot is the full contents of a subscribed path at a point in time.
// For a collection path Docs holds every document in the collection; for a
// document path it holds zero (deleted/absent) or one document.
type Snapshot struct {
	// Path is the subscribed path this snapshot belongs to.
	Path string
	// Docs are the raw documents, in unspecified order.
	Docs []json.RawMessage
}

// Subscription is a live change feed for a single subscribed path.
// The caller owns the unsubscribe handle; after Unsubscribe both channels
// are closed and no further snapshots are delivered.
type Subscription interface {
	// Snapshots returns the channel delivering state snapshots.
	Snapshots() <-chan Snapshot

	// Errs returns the channel delivering subscription failures. A terminal
	// backend failure is delivered here; the subscription does not retry.
	Errs() <-chan error

	// Unsubscribe stops delivery and releases resources. Idempotent.
	Unsubscribe()
}

// Remote document paths, hierarchical per principal:
//
//	users/{principal}/profiles/{profileID}
//	users/{principal}/profiles/{profileID}/logs/{logID}
//	users/{principal}/profiles/{profileID}/data/inventory
//	users/{principal}/profiles/{profileID}/reminders/{reminderID}
//	users/{principal}/profiles/{profileID}/appointments/{appointmentID}

// ProfilesPath returns the collection path for a principal's profiles.
func ProfilesPath(principal string) string {
	return fmt.Sprintf("users/%s/profiles", principal)
}

// ProfilePath returns the document path for a single profile.
func ProfilePath(principal, profileID string) string {
	return ProfilesPath(principal) + "/" + profileID
}

// LogsPath returns the collection path for a profile's log entries.
func LogsPath(principal, profileID string) string {
	return ProfilePath(principal, profileID) + "/logs"
}

// InventoryPath returns the document path for a profile's inventory singleton.
func InventoryPath(principal, profileID string) string {
	return ProfilePath(principal, profileID) + "/data/inventory"
}

// RemindersPath returns the collection path for a profile's reminders.
func RemindersPath(principal, profileID string) string {
	return ProfilePath(principal, profileID) + "/reminders"
}

// AppointmentsPath returns the collection path for a profile's appointments.
func AppointmentsPath(principal, profileID string) string {
	return ProfilePath(principal, profileID) + "/appointments"
}
