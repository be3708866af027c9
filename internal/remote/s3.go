package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/yadielglz/littlesprout-sub001/internal/sprout"
)

// defaultPollInterval is the subscription poll cadence when the config does
// not override it. S3 has no change notifications we can consume from a
// client, so subscriptions poll object listings and compare ETags.
const defaultPollInterval = 5 * time.Second

// S3Store implements the RemoteStore interface on an S3 bucket. A document
// at path p is the object <prefix>/p.json. Subscriptions are poll-based: a
// goroutine per subscription lists the path at a fixed interval and
// delivers a fresh snapshot whenever the combined ETags change.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
	poll     time.Duration

	mu     sync.Mutex
	feeds  map[*feed]struct{}
	wg     sync.WaitGroup
	closed bool
}

// NewS3Store creates a store over the given client and bucket. prefix may
// be empty; poll <= 0 selects the default interval.
func NewS3Store(client *s3.Client, bucket, prefix string, poll time.Duration) *S3Store {
	if poll <= 0 {
		poll = defaultPollInterval
	}
	prefix = strings.Trim(prefix, "/")
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
		poll:     poll,
		feeds:    make(map[*feed]struct{}),
	}
}

func (s *S3Store) key(path string) string {
	if s.prefix == "" {
		return path + ".json"
	}
	return s.prefix + "/" + path + ".json"
}

func (s *S3Store) collectionPrefix(path string) string {
	if s.prefix == "" {
		return path + "/"
	}
	return s.prefix + "/" + path + "/"
}

// mapErr translates S3 failures onto the shared error taxonomy.
func mapErr(op, path string, err error) error {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return fmt.Errorf("%w: %s", sprout.ErrNotFound, path)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %s", sprout.ErrNotFound, path)
		case "AccessDenied":
			return fmt.Errorf("%w: %s %s", sprout.ErrPermissionDenied, op, path)
		}
	}
	return fmt.Errorf("%w: %s %s: %v", sprout.ErrRemoteUnavailable, op, path, err)
}

// Create stores a new document at path. Fails if the object exists.
func (s *S3Store) Create(ctx context.Context, path string, doc any) error {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
	})
	if err == nil {
		return fmt.Errorf("document already exists: %s", path)
	}
	if !sprout.IsAbsent(mapErr("checking", path, err)) {
		return mapErr("checking", path, err)
	}
	return s.Set(ctx, path, doc)
}

// Set stores a document at path, creating or fully replacing it. Uploads go
// through the transfer manager.
func (s *S3Store) Set(ctx context.Context, path string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(path)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return mapErr("writing", path, err)
	}
	return nil
}

// Read fetches the document at path and decodes it into out.
func (s *S3Store) Read(ctx context.Context, path string, out any) error {
	obj, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
	})
	if err != nil {
		return mapErr("reading", path, err)
	}
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return mapErr("reading", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding document %s: %w", path, err)
	}
	return nil
}

// List returns the documents directly under collectionPath, ordered per
// opts.
func (s *S3Store) List(ctx context.Context, collectionPath string, opts sprout.ListOptions) ([]json.RawMessage, error) {
	keys, _, err := s.listKeys(ctx, collectionPath)
	if err != nil {
		return nil, err
	}

	docs := make([]json.RawMessage, 0, len(keys))
	for _, key := range keys {
		doc, err := s.getRaw(ctx, key)
		if err != nil {
			if sprout.IsAbsent(err) {
				continue // removed between listing and fetch
			}
			return nil, err
		}
		docs = append(docs, doc)
	}
	sortDocs(docs, opts)
	return docs, nil
}

// Update merges fields into the existing document at path.
func (s *S3Store) Update(ctx context.Context, path string, fields map[string]any) error {
	var merged map[string]any
	if err := s.Read(ctx, path, &merged); err != nil {
		return err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return s.Set(ctx, path, merged)
}

// Delete removes the document at path. Deleting an absent object is a
// no-op for S3.
func (s *S3Store) Delete(ctx context.Context, path string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
	})
	if err != nil {
		return mapErr("deleting", path, err)
	}
	return nil
}

// CreateBatch stores docs under collectionPath. An existing id fails the
// batch before any write.
func (s *S3Store) CreateBatch(ctx context.Context, collectionPath string, docs map[string]any) error {
	for id := range docs {
		path := collectionPath + "/" + id
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key(path)),
		})
		if err == nil {
			return fmt.Errorf("document already exists: %s", path)
		}
		if mapped := mapErr("checking", path, err); !sprout.IsAbsent(mapped) {
			return mapped
		}
	}
	for id, doc := range docs {
		if err := s.Set(ctx, collectionPath+"/"+id, doc); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe opens a poll-based subscription on a collection or document
// path. The initial snapshot is queued before Subscribe returns.
func (s *S3Store) Subscribe(ctx context.Context, path string) (sprout.Subscription, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: store closed", sprout.ErrRemoteUnavailable)
	}
	s.mu.Unlock()

	f := newFeed(path, func(f *feed) {
		s.mu.Lock()
		delete(s.feeds, f)
		s.mu.Unlock()
	})

	s.mu.Lock()
	s.feeds[f] = struct{}{}
	s.mu.Unlock()

	snap, fingerprint, err := s.fetchState(ctx, path)
	if err != nil {
		f.fail(err)
	} else {
		f.send(snap)
	}

	s.wg.Add(1)
	go s.pollLoop(ctx, f, path, fingerprint)

	go func() {
		<-ctx.Done()
		f.Unsubscribe()
	}()
	return f, nil
}

// pollLoop re-fetches the path at the poll interval and delivers a snapshot
// whenever the ETag fingerprint changes.
func (s *S3Store) pollLoop(ctx context.Context, f *feed, path, fingerprint string) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, next, err := s.fetchState(ctx, path)
			if err != nil {
				f.fail(err)
				continue
			}
			if next != fingerprint {
				fingerprint = next
				f.send(snap)
			}
		}
	}
}

// fetchState builds the current snapshot for a path plus an ETag-derived
// fingerprint used for change detection.
func (s *S3Store) fetchState(ctx context.Context, path string) (sprout.Snapshot, string, error) {
	// Document interpretation first.
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
	})
	if err == nil {
		doc, err := s.getRaw(ctx, s.key(path))
		if err != nil {
			return sprout.Snapshot{}, "", err
		}
		return sprout.Snapshot{Path: path, Docs: []json.RawMessage{doc}},
			aws.ToString(head.ETag), nil
	}
	if mapped := mapErr("checking", path, err); !sprout.IsAbsent(mapped) {
		return sprout.Snapshot{}, "", mapped
	}

	keys, fingerprint, err := s.listKeys(ctx, path)
	if err != nil {
		return sprout.Snapshot{}, "", err
	}
	docs := make([]json.RawMessage, 0, len(keys))
	for _, key := range keys {
		doc, err := s.getRaw(ctx, key)
		if err != nil {
			if sprout.IsAbsent(err) {
				continue
			}
			return sprout.Snapshot{}, "", err
		}
		docs = append(docs, doc)
	}
	return sprout.Snapshot{Path: path, Docs: docs}, fingerprint, nil
}

// listKeys lists the direct child document keys of a collection path,
// sorted, plus a fingerprint of their ETags.
func (s *S3Store) listKeys(ctx context.Context, collectionPath string) ([]string, string, error) {
	var keys []string
	etags := make(map[string]string)

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(s.collectionPrefix(collectionPath)),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, "", mapErr("listing", collectionPath, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, ".json") {
				continue
			}
			keys = append(keys, key)
			etags[key] = aws.ToString(obj.ETag)
		}
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, key := range keys {
		sb.WriteString(key)
		sb.WriteByte('=')
		sb.WriteString(etags[key])
		sb.WriteByte(';')
	}
	return keys, sb.String(), nil
}

func (s *S3Store) getRaw(ctx context.Context, key string) (json.RawMessage, error) {
	obj, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapErr("reading", key, err)
	}
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, mapErr("reading", key, err)
	}
	return json.RawMessage(data), nil
}

// Close releases every subscription and stops all poll loops.
func (s *S3Store) Close() error {
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

// Compile-time check that S3Store implements the RemoteStore interface
var _ sprout.RemoteStore = (*S3Store)(nil)
