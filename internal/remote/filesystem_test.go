package remote

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/yadielglz/littlesprout-sub001/internal/sprout"
)

func newTestFSStore(t *testing.T) *FileSystemStore {
	t.Helper()
	store, err := NewFileSystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStore() error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestFileSystemStore_CreateAndRead(t *testing.T) {
	store := newTestFSStore(t)
	ctx := context.Background()

	doc := testDoc{ID: "p1", Name: "Emma"}
	if err := store.Create(ctx, "users/u1/profiles/p1", doc); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	var got testDoc
	if err := store.Read(ctx, "users/u1/profiles/p1", &got); err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if got != doc {
		t.Errorf("Read() = %+v, want %+v", got, doc)
	}

	// Documents land as .json files under the root.
	path := filepath.Join(store.root, "users", "u1", "profiles", "p1.json")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected document file at %s: %v", path, err)
	}
}

func TestFileSystemStore_CreateDuplicate(t *testing.T) {
	store := newTestFSStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, "users/u1/profiles/p1", testDoc{ID: "p1"}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := store.Create(ctx, "users/u1/profiles/p1", testDoc{ID: "p1"}); err == nil {
		t.Error("Create() on existing path should fail")
	}
}

func TestFileSystemStore_ReadNotFound(t *testing.T) {
	store := newTestFSStore(t)

	var got testDoc
	err := store.Read(context.Background(), "users/u1/profiles/missing", &got)
	if !errors.Is(err, sprout.ErrNotFound) {
		t.Errorf("Read() error = %v, want ErrNotFound", err)
	}
}

func TestFileSystemStore_ListOrdering(t *testing.T) {
	store := newTestFSStore(t)
	ctx := context.Background()

	logs := []testDoc{
		{ID: "l1", Timestamp: 100},
		{ID: "l2", Timestamp: 300},
		{ID: "l3", Timestamp: 200},
	}
	for _, l := range logs {
		if err := store.Create(ctx, "users/u1/profiles/p1/logs/"+l.ID, l); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
	}

	docs, err := store.List(ctx, "users/u1/profiles/p1/logs", sprout.ListOptions{
		OrderBy:    "timestamp",
		Descending: true,
	})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}

	var order []string
	for _, raw := range docs {
		var d testDoc
		if err := json.Unmarshal(raw, &d); err != nil {
			t.Fatalf("decoding listed doc: %v", err)
		}
		order = append(order, d.ID)
	}
	want := []string{"l2", "l3", "l1"}
	if len(order) != len(want) {
		t.Fatalf("List() returned %d docs, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("List() order = %v, want %v", order, want)
			break
		}
	}
}

func TestFileSystemStore_ListMissingCollection(t *testing.T) {
	store := newTestFSStore(t)

	docs, err := store.List(context.Background(), "users/u1/profiles", sprout.ListOptions{})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("List() on missing collection returned %d docs, want 0", len(docs))
	}
}

func TestFileSystemStore_UpdateMergesFields(t *testing.T) {
	store := newTestFSStore(t)
	ctx := context.Background()

	path := "users/u1/reminders/r1"
	if err := store.Create(ctx, path, map[string]any{"id": "r1", "text": "feed", "isActive": true}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := store.Update(ctx, path, map[string]any{"isActive": false}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	var got map[string]any
	if err := store.Read(ctx, path, &got); err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if got["text"] != "feed" || got["isActive"] != false {
		t.Errorf("Update() result = %v", got)
	}
}

func TestFileSystemStore_DeleteAbsentIsNoOp(t *testing.T) {
	store := newTestFSStore(t)

	if err := store.Delete(context.Background(), "users/u1/profiles/missing"); err != nil {
		t.Errorf("Delete() on absent document error: %v", err)
	}
}

func TestFileSystemStore_CreateBatch(t *testing.T) {
	store := newTestFSStore(t)
	ctx := context.Background()

	err := store.CreateBatch(ctx, "users/u1/profiles/p1/logs", map[string]any{
		"l1": testDoc{ID: "l1", Timestamp: 100},
		"l2": testDoc{ID: "l2", Timestamp: 200},
	})
	if err != nil {
		t.Fatalf("CreateBatch() error: %v", err)
	}

	docs, err := store.List(ctx, "users/u1/profiles/p1/logs", sprout.ListOptions{})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("List() after batch returned %d docs, want 2", len(docs))
	}
}

func TestFileSystemStore_SubscribeDeliversOnWrite(t *testing.T) {
	store := newTestFSStore(t)
	ctx := context.Background()

	sub, err := store.Subscribe(ctx, "users/u1/profiles")
	if err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	defer sub.Unsubscribe()

	snap := waitSnapshot(t, sub) // initial, empty
	if len(snap.Docs) != 0 {
		t.Fatalf("initial snapshot has %d docs, want 0", len(snap.Docs))
	}

	if err := store.Create(ctx, "users/u1/profiles/p1", testDoc{ID: "p1"}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	// The watcher may fire more than once for a single write; wait until a
	// snapshot carries the document.
	for i := 0; i < 5; i++ {
		snap = waitSnapshot(t, sub)
		if len(snap.Docs) == 1 {
			return
		}
	}
	t.Fatalf("never observed snapshot with the created document")
}

func TestFileSystemStore_SubscribeDocumentPath(t *testing.T) {
	store := newTestFSStore(t)
	ctx := context.Background()

	path := "users/u1/data/inventory"
	if err := store.Set(ctx, path, map[string]any{"diapers": 10}); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	sub, err := store.Subscribe(ctx, path)
	if err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	defer sub.Unsubscribe()

	snap := waitSnapshot(t, sub)
	if len(snap.Docs) != 1 {
		t.Fatalf("initial document snapshot has %d docs, want 1", len(snap.Docs))
	}

	if err := store.Set(ctx, path, map[string]any{"diapers": 9}); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	for i := 0; i < 5; i++ {
		snap = waitSnapshot(t, sub)
		var got map[string]any
		if len(snap.Docs) == 1 {
			if err := json.Unmarshal(snap.Docs[0], &got); err != nil {
				t.Fatalf("decoding snapshot doc: %v", err)
			}
			if got["diapers"] == float64(9) {
				return
			}
		}
	}
	t.Fatal("never observed snapshot with the updated document")
}

func TestFileSystemStore_UnsubscribeIdempotent(t *testing.T) {
	store := newTestFSStore(t)

	sub, err := store.Subscribe(context.Background(), "users/u1/profiles")
	if err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}

	sub.Unsubscribe()
	sub.Unsubscribe()
}

func TestFileSystemStore_CloseStopsSubscriptions(t *testing.T) {
	store, err := NewFileSystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStore() error: %v", err)
	}

	sub, err := store.Subscribe(context.Background(), "users/u1/profiles")
	if err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	waitSnapshot(t, sub)

	if err := store.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	// The snapshot channel drains and closes after Close.
	for range sub.Snapshots() {
	}
}
