package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/yadielglz/littlesprout-sub001/internal/sprout"
)

// FileSystemStore implements the RemoteStore interface on a directory tree.
// A document at path p lives at <root>/p.json; a collection is the
// directory <root>/p. Subscriptions watch the relevant directories with
// fsnotify and re-deliver a full snapshot after every observed change.
//
// Intended for a shared/synced directory or local development; it is the
// default remote backend.
type FileSystemStore struct {
	root string

	mu     sync.Mutex
	feeds  map[*feed]*fsnotify.Watcher
	wg     sync.WaitGroup
	closed bool
}

// NewFileSystemStore creates a store rooted at the given directory,
// creating it when missing.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating remote root: %w", err)
	}
	return &FileSystemStore{
		root:  root,
		feeds: make(map[*feed]*fsnotify.Watcher),
	}, nil
}

func (s *FileSystemStore) docFile(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path)+".json")
}

func (s *FileSystemStore) collectionDir(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path))
}

// wrapErr maps filesystem failures onto the shared error taxonomy.
func wrapErr(op, path string, err error) error {
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("%w: %s", sprout.ErrNotFound, path)
	case os.IsPermission(err):
		return fmt.Errorf("%w: %s %s: %v", sprout.ErrPermissionDenied, op, path, err)
	default:
		return fmt.Errorf("%s %s: %w", op, path, err)
	}
}

// Create stores a new document at path. Fails if the document exists.
func (s *FileSystemStore) Create(ctx context.Context, path string, doc any) error {
	if _, err := os.Stat(s.docFile(path)); err == nil {
		return fmt.Errorf("document already exists: %s", path)
	}
	return s.Set(ctx, path, doc)
}

// Set stores a document at path, creating or fully replacing it.
// The write is atomic (temp file + rename).
func (s *FileSystemStore) Set(ctx context.Context, path string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	dest := s.docFile(path)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return wrapErr("creating collection for", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return wrapErr("writing", path, err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return wrapErr("writing", path, err)
	}
	if err := tmp.Close(); err != nil {
		return wrapErr("writing", path, err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return wrapErr("writing", path, err)
	}
	success = true
	return nil
}

// Read fetches the document at path and decodes it into out.
func (s *FileSystemStore) Read(ctx context.Context, path string, out any) error {
	data, err := os.ReadFile(s.docFile(path))
	if err != nil {
		return wrapErr("reading", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding document %s: %w", path, err)
	}
	return nil
}

// List returns the documents directly under collectionPath, ordered per
// opts. A missing collection directory is an empty result.
func (s *FileSystemStore) List(ctx context.Context, collectionPath string, opts sprout.ListOptions) ([]json.RawMessage, error) {
	docs, err := s.readCollection(collectionPath)
	if err != nil {
		return nil, err
	}
	sortDocs(docs, opts)
	return docs, nil
}

// Update merges fields into the existing document at path.
func (s *FileSystemStore) Update(ctx context.Context, path string, fields map[string]any) error {
	var merged map[string]any
	if err := s.Read(ctx, path, &merged); err != nil {
		return err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return s.Set(ctx, path, merged)
}

// Delete removes the document at path. Deleting an absent document is a
// no-op.
func (s *FileSystemStore) Delete(ctx context.Context, path string) error {
	if err := os.Remove(s.docFile(path)); err != nil && !os.IsNotExist(err) {
		return wrapErr("deleting", path, err)
	}
	return nil
}

// CreateBatch stores docs under collectionPath. Existing ids fail the batch
// before any write.
func (s *FileSystemStore) CreateBatch(ctx context.Context, collectionPath string, docs map[string]any) error {
	for id := range docs {
		if _, err := os.Stat(s.docFile(collectionPath + "/" + id)); err == nil {
			return fmt.Errorf("document already exists: %s/%s", collectionPath, id)
		}
	}
	for id, doc := range docs {
		if err := s.Set(ctx, collectionPath+"/"+id, doc); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe opens a live subscription on a collection or document path.
// Both the path's collection directory and its parent directory are
// watched, so the subscription works for either interpretation.
func (s *FileSystemStore) Subscribe(ctx context.Context, path string) (sprout.Subscription, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: store closed", sprout.ErrRemoteUnavailable)
	}
	s.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	dir := s.collectionDir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		watcher.Close()
		return nil, wrapErr("creating collection for", path, err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", path, err)
	}
	// The parent directory carries the path's own document file.
	if parent := filepath.Dir(dir); parent != dir {
		if err := watcher.Add(parent); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("watching parent of %s: %w", path, err)
		}
	}

	f := newFeed(path, func(f *feed) {
		s.mu.Lock()
		if w, ok := s.feeds[f]; ok {
			w.Close()
			delete(s.feeds, f)
		}
		s.mu.Unlock()
	})

	s.mu.Lock()
	s.feeds[f] = watcher
	s.mu.Unlock()

	f.send(s.snapshot(path))

	s.wg.Add(1)
	go s.watch(f, watcher, path)

	go func() {
		<-ctx.Done()
		f.Unsubscribe()
	}()
	return f, nil
}

// watch relays filesystem events as snapshots until the feed closes.
func (s *FileSystemStore) watch(f *feed, watcher *fsnotify.Watcher, path string) {
	defer s.wg.Done()

	for {
		select {
		case <-f.done:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if s.relevant(event.Name, path) {
				f.send(s.snapshot(path))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			f.fail(fmt.Errorf("watching %s: %w", path, err))
		}
	}
}

// relevant reports whether a filesystem event path concerns the
// subscription: the path's own document file or a direct child document.
func (s *FileSystemStore) relevant(eventPath, subPath string) bool {
	if !strings.HasSuffix(eventPath, ".json") {
		return false
	}
	if eventPath == s.docFile(subPath) {
		return true
	}
	return filepath.Dir(eventPath) == s.collectionDir(subPath)
}

// snapshot builds the current snapshot for a subscribed path, mirroring the
// memory backend: the single document when the path's file exists,
// otherwise the collection of direct children.
func (s *FileSystemStore) snapshot(path string) sprout.Snapshot {
	if data, err := os.ReadFile(s.docFile(path)); err == nil {
		return sprout.Snapshot{Path: path, Docs: []json.RawMessage{json.RawMessage(data)}}
	}
	docs, err := s.readCollection(path)
	if err != nil {
		docs = nil
	}
	return sprout.Snapshot{Path: path, Docs: docs}
}

// readCollection reads every document file directly under the collection
// directory, ordered by file name for determinism.
func (s *FileSystemStore) readCollection(collectionPath string) ([]json.RawMessage, error) {
	dir := s.collectionDir(collectionPath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, wrapErr("listing", collectionPath, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	docs := make([]json.RawMessage, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue // removed mid-listing
			}
			return nil, wrapErr("reading", collectionPath+"/"+name, err)
		}
		docs = append(docs, json.RawMessage(data))
	}
	return docs, nil
}

// Close releases every subscription and watcher.
func (s *FileSystemStore) Close() error {
	s.mu.Lock()
	s.closed = true
	feeds := make([]*feed, 0, len(s.feeds))
	for f := range s.feeds {
		feeds = append(feeds, f)
	}
	s.mu.Unlock()

	for _, f := range feeds {
		f.Unsubscribe()
	}
	s.wg.Wait()
	return nil
}

// Compile-time check that FileSystemStore implements the RemoteStore interface
var _ sprout.RemoteStore = (*FileSystemStore)(nil)
