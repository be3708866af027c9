package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/yadielglz/littlesprout-sub001/internal/sprout"
)

// MemoryStore is an in-memory implementation of the RemoteStore interface.
// It keeps every document in memory and fans snapshots out to subscribers
// synchronously, making it useful for tests and local development.
// This implementation is safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	docs    map[string][]byte // document path -> encoded document
	feeds   map[*feed]struct{}
	failure error
	closed  bool
}

// NewMemoryStore creates an empty in-memory remote store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[string][]byte),
		feeds: make(map[*feed]struct{}),
	}
}

// SetFailure makes every subsequent operation fail with err until cleared
// with SetFailure(nil). Used to exercise error paths in tests.
func (m *MemoryStore) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = err
}

func (m *MemoryStore) check() error {
	if m.closed {
		return fmt.Errorf("%w: store closed", sprout.ErrRemoteUnavailable)
	}
	return m.failure
}

// Create stores a new document at path. Fails if the document exists.
func (m *MemoryStore) Create(ctx context.Context, path string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	m.mu.Lock()
	if err := m.check(); err != nil {
		m.mu.Unlock()
		return err
	}
	if _, exists := m.docs[path]; exists {
		m.mu.Unlock()
		return fmt.Errorf("document already exists: %s", path)
	}
	m.docs[path] = data
	deliveries := m.snapshotDeliveriesLocked(path)
	m.mu.Unlock()

	deliver(deliveries)
	return nil
}

// Set stores a document at path, creating or fully replacing it.
func (m *MemoryStore) Set(ctx context.Context, path string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	m.mu.Lock()
	if err := m.check(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.docs[path] = data
	deliveries := m.snapshotDeliveriesLocked(path)
	m.mu.Unlock()

	deliver(deliveries)
	return nil
}

// Read fetches the document at path and decodes it into out.
func (m *MemoryStore) Read(ctx context.Context, path string, out any) error {
	m.mu.Lock()
	if err := m.check(); err != nil {
		m.mu.Unlock()
		return err
	}
	data, ok := m.docs[path]
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", sprout.ErrNotFound, path)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding document %s: %w", path, err)
	}
	return nil
}

// List returns the documents directly under collectionPath, ordered per opts.
func (m *MemoryStore) List(ctx context.Context, collectionPath string, opts sprout.ListOptions) ([]json.RawMessage, error) {
	m.mu.Lock()
	if err := m.check(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	docs := m.collectionLocked(collectionPath)
	m.mu.Unlock()

	sortDocs(docs, opts)
	return docs, nil
}

// Update merges fields into the existing document at path.
func (m *MemoryStore) Update(ctx context.Context, path string, fields map[string]any) error {
	m.mu.Lock()
	if err := m.check(); err != nil {
		m.mu.Unlock()
		return err
	}
	data, ok := m.docs[path]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", sprout.ErrNotFound, path)
	}

	var merged map[string]any
	if err := json.Unmarshal(data, &merged); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("decoding document %s: %w", path, err)
	}
	for k, v := range fields {
		merged[k] = v
	}
	encoded, err := json.Marshal(merged)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("encoding document %s: %w", path, err)
	}
	m.docs[path] = encoded
	deliveries := m.snapshotDeliveriesLocked(path)
	m.mu.Unlock()

	deliver(deliveries)
	return nil
}

// Delete removes the document at path. Deleting an absent document is a
// no-op.
func (m *MemoryStore) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	if err := m.check(); err != nil {
		m.mu.Unlock()
		return err
	}
	if _, ok := m.docs[path]; !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.docs, path)
	deliveries := m.snapshotDeliveriesLocked(path)
	m.mu.Unlock()

	deliver(deliveries)
	return nil
}

// CreateBatch stores docs under collectionPath in one operation. The batch
// is all-or-nothing: an existing id fails the whole batch before any write.
func (m *MemoryStore) CreateBatch(ctx context.Context, collectionPath string, docs map[string]any) error {
	encoded := make(map[string][]byte, len(docs))
	for id, doc := range docs {
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encoding document %s: %w", id, err)
		}
		encoded[collectionPath+"/"+id] = data
	}

	m.mu.Lock()
	if err := m.check(); err != nil {
		m.mu.Unlock()
		return err
	}
	for path := range encoded {
		if _, exists := m.docs[path]; exists {
			m.mu.Unlock()
			return fmt.Errorf("document already exists: %s", path)
		}
	}
	for path, data := range encoded {
		m.docs[path] = data
	}
	deliveries := m.collectionDeliveriesLocked(collectionPath)
	m.mu.Unlock()

	deliver(deliveries)
	return nil
}

// Subscribe opens a subscription on a collection or document path. The
// initial snapshot is queued before Subscribe returns.
func (m *MemoryStore) Subscribe(ctx context.Context, path string) (sprout.Subscription, error) {
	m.mu.Lock()
	if err := m.check(); err != nil {
		m.mu.Unlock()
		return nil, err
	}

	f := newFeed(path, func(f *feed) {
		m.mu.Lock()
		delete(m.feeds, f)
		m.mu.Unlock()
	})
	m.feeds[f] = struct{}{}
	snap := m.snapshotLocked(path)
	m.mu.Unlock()

	f.send(snap)

	go func() {
		<-ctx.Done()
		f.Unsubscribe()
	}()
	return f, nil
}

// Close releases all subscriptions. Subsequent operations fail.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	feeds := make([]*feed, 0, len(m.feeds))
	for f := range m.feeds {
		feeds = append(feeds, f)
	}
	m.feeds = make(map[*feed]struct{})
	m.mu.Unlock()

	for _, f := range feeds {
		f.Unsubscribe()
	}
	return nil
}

// collectionLocked returns copies of the documents directly under path,
// ordered by document path for determinism.
func (m *MemoryStore) collectionLocked(path string) []json.RawMessage {
	var paths []string
	for p := range m.docs {
		if parentPath(p) == path {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	docs := make([]json.RawMessage, 0, len(paths))
	for _, p := range paths {
		doc := make(json.RawMessage, len(m.docs[p]))
		copy(doc, m.docs[p])
		docs = append(docs, doc)
	}
	return docs
}

// snapshotLocked builds the current snapshot for a subscribed path: the
// single document when one exists at the exact path, otherwise the
// collection of direct children (possibly empty).
func (m *MemoryStore) snapshotLocked(path string) sprout.Snapshot {
	if data, ok := m.docs[path]; ok {
		doc := make(json.RawMessage, len(data))
		copy(doc, data)
		return sprout.Snapshot{Path: path, Docs: []json.RawMessage{doc}}
	}
	return sprout.Snapshot{Path: path, Docs: m.collectionLocked(path)}
}

type delivery struct {
	feed *feed
	snap sprout.Snapshot
}

// snapshotDeliveriesLocked collects the feeds affected by a write at
// docPath: subscribers of the document itself and of its parent collection.
func (m *MemoryStore) snapshotDeliveriesLocked(docPath string) []delivery {
	parent := parentPath(docPath)
	var out []delivery
	for f := range m.feeds {
		if f.path == docPath || f.path == parent {
			out = append(out, delivery{feed: f, snap: m.snapshotLocked(f.path)})
		}
	}
	return out
}

// collectionDeliveriesLocked collects the feeds subscribed to
// collectionPath itself.
func (m *MemoryStore) collectionDeliveriesLocked(collectionPath string) []delivery {
	var out []delivery
	for f := range m.feeds {
		if f.path == collectionPath {
			out = append(out, delivery{feed: f, snap: m.snapshotLocked(f.path)})
		}
	}
	return out
}

func deliver(deliveries []delivery) {
	for _, d := range deliveries {
		d.feed.send(d.snap)
	}
}

// Compile-time check that MemoryStore implements the RemoteStore interface
var _ sprout.RemoteStore = (*MemoryStore)(nil)
