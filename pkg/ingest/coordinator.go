// Package ingest drives population of a vector index from an embedding
// snapshot, coordinating the many worker processes that share one index
// directory. Exactly one process ingests; the rest wait on an advisory
// file lock and proceed read-only once the ready marker matches.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clipdex/clipdex/pkg/eventstream"
	"github.com/clipdex/clipdex/pkg/eventstream/nop"
	"github.com/clipdex/clipdex/pkg/snapshot"
	"github.com/clipdex/clipdex/pkg/vector"
)

// ErrIngestionTimeout is returned when the ingestion lock cannot be
// acquired within the configured wait. Restarting the worker retries.
var ErrIngestionTimeout = errors.New("timed out waiting for ingestion lock")

// State is the coordinator's position in the ingestion lifecycle.
type State string

const (
	StateEmpty     State = "empty"
	StateIngesting State = "ingesting"
	StateReady     State = "ready"
	StateFailed    State = "failed"
)

const (
	// LockFileName is the advisory lock file inside the index directory.
	LockFileName = "ingest.lock"

	// DefaultBatchSize bounds memory and write-transaction size during
	// ingestion. Matches the snapshot producer's batching.
	DefaultBatchSize = 500

	// DefaultLockTimeout bounds how long a worker waits for a sibling's
	// ingestion before failing startup.
	DefaultLockTimeout = 5 * time.Minute

	// DefaultRetryDelay is the poll interval while waiting on the lock.
	DefaultRetryDelay = 250 * time.Millisecond
)

// OpenFunc opens the vector index stored under the given index file name
// inside the shared directory. The coordinator assigns one index per
// snapshot fingerprint, so a committed index being served never shares
// storage with an in-flight ingestion.
type OpenFunc func(ctx context.Context, indexFile string) (vector.Driver, error)

// Config holds configuration for the Coordinator.
type Config struct {
	// Dir is the shared index directory holding the lock and ready marker.
	Dir string

	// Open opens the index for a given per-snapshot index file name.
	Open OpenFunc

	// BatchSize is the upsert batch size (defaults to DefaultBatchSize).
	BatchSize int

	// LockTimeout is the maximum wait for the ingestion lock
	// (defaults to DefaultLockTimeout).
	LockTimeout time.Duration

	// RetryDelay is the lock poll interval (defaults to DefaultRetryDelay).
	RetryDelay time.Duration

	// Publisher receives ingestion lifecycle events. Defaults to a nop publisher.
	Publisher eventstream.Publisher

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Coordinator drives idempotent, mutually exclusive ingestion of a
// snapshot into the shared vector index.
type Coordinator struct {
	config  Config
	ownerID string
	state   State
	logger  *zap.Logger
}

// NewCoordinator creates a Coordinator over the given index directory,
// creating the directory if it does not exist.
func NewCoordinator(c Config) (*Coordinator, error) {
	if c.Dir == "" {
		return nil, fmt.Errorf("index directory is required")
	}
	if c.Open == nil {
		return nil, fmt.Errorf("index open function is required")
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = DefaultLockTimeout
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.Publisher == nil {
		c.Publisher = nop.NewPublisher()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	ownerID := uuid.NewString()
	return &Coordinator{
		config:  c,
		ownerID: ownerID,
		state:   StateEmpty,
		logger:  c.Logger.With(zap.String("owner_id", ownerID[:8])),
	}, nil
}

// State returns the coordinator's current lifecycle state.
func (c *Coordinator) State() State {
	return c.state
}

// indexFileName derives the per-fingerprint index file for a snapshot.
// Distinct snapshot versions never share an index, so committing the
// marker atomically retargets later workers while readers of the old
// version keep serving their open handles.
func indexFileName(snap *snapshot.Snapshot) string {
	return "index-" + snap.Checksum[:12] + ".db"
}

// EnsureReady makes the shared index ready for the given snapshot,
// ingesting it if no completed ingestion with a matching fingerprint is
// recorded. Safe to call concurrently from any number of processes
// pointed at the same directory: the flock serializes ingestion, and the
// double-checked ready marker makes every later caller a no-op.
//
// The returned driver is open on the committed index the returned
// IndexState names; the caller owns closing it.
func (c *Coordinator) EnsureReady(ctx context.Context, snap *snapshot.Snapshot) (*IndexState, vector.Driver, error) {
	// Fast path: a prior worker already committed this snapshot.
	state, driver, err := c.openCommitted(ctx, snap)
	if err != nil {
		return nil, nil, err
	}
	if driver != nil {
		c.state = StateReady
		c.logger.Info("index already ingested, skipping",
			zap.String("version", state.Version),
			zap.String("index_file", state.IndexFile),
			zap.Int("records", state.Records),
		)
		return state, driver, nil
	}

	lock := flock.New(filepath.Join(c.config.Dir, LockFileName))

	lockCtx, cancel := context.WithTimeout(ctx, c.config.LockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(lockCtx, c.config.RetryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, fmt.Errorf("%w: waited %s for %s", ErrIngestionTimeout, c.config.LockTimeout, lock.Path())
		}
		return nil, nil, fmt.Errorf("acquiring ingestion lock: %w", err)
	}
	if !locked {
		return nil, nil, fmt.Errorf("%w: waited %s for %s", ErrIngestionTimeout, c.config.LockTimeout, lock.Path())
	}
	// The flock is released on Unlock or process death, so a crashed
	// holder never strands waiters.
	defer lock.Unlock()

	// Double-check: the previous holder may have finished this ingestion
	// while we were waiting on the lock.
	state, driver, err = c.openCommitted(ctx, snap)
	if err != nil {
		return nil, nil, err
	}
	if driver != nil {
		c.state = StateReady
		c.logger.Info("sibling worker completed ingestion while waiting",
			zap.String("version", state.Version),
		)
		return state, driver, nil
	}

	indexFile := indexFileName(snap)
	driver, err = c.config.Open(ctx, indexFile)
	if err != nil {
		return nil, nil, fmt.Errorf("opening index %s: %w", indexFile, err)
	}

	newState, err := c.ingest(ctx, driver, snap, indexFile)
	if err != nil {
		driver.Close()
		c.state = StateFailed
		c.publish(ctx, &eventstream.IngestEvent{
			SchemaVersion:   eventstream.SchemaVersionV1,
			EventType:       eventstream.EventTypeIngestFailed,
			EventID:         uuid.NewString(),
			EmittedAt:       time.Now().UTC(),
			SnapshotVersion: snap.Manifest.Version,
			Checksum:        snap.Checksum,
			Error:           err.Error(),
		})
		return nil, nil, err
	}

	c.state = StateReady
	c.publish(ctx, &eventstream.IngestEvent{
		SchemaVersion:   eventstream.SchemaVersionV1,
		EventType:       eventstream.EventTypeIngestCompleted,
		EventID:         uuid.NewString(),
		EmittedAt:       time.Now().UTC(),
		SnapshotVersion: snap.Manifest.Version,
		Checksum:        snap.Checksum,
		Records:         newState.Records,
	})
	c.removeStaleIndexes(indexFile)
	return newState, driver, nil
}

// openCommitted opens the index the ready marker names, or returns a nil
// driver when there is no matching committed ingestion to serve. A marker
// whose index does not actually hold the recorded documents — a
// non-durable store after a restart, or a lost index file — is treated
// as absent so the caller re-ingests instead of serving an empty index
// as ready.
func (c *Coordinator) openCommitted(ctx context.Context, snap *snapshot.Snapshot) (*IndexState, vector.Driver, error) {
	state, err := ReadState(c.config.Dir)
	if err != nil {
		return nil, nil, err
	}
	if state == nil || state.Fingerprint() != snap.Fingerprint() {
		return nil, nil, nil
	}

	driver, err := c.config.Open(ctx, state.IndexFile)
	if err != nil {
		return nil, nil, fmt.Errorf("opening committed index %s: %w", state.IndexFile, err)
	}

	count, err := driver.Count(ctx)
	if err != nil {
		driver.Close()
		return nil, nil, fmt.Errorf("verifying committed index %s: %w", state.IndexFile, err)
	}
	if count != state.Records {
		driver.Close()
		c.logger.Warn("ready marker names an index without its records, re-ingesting",
			zap.String("index_file", state.IndexFile),
			zap.Int("expected", state.Records),
			zap.Int("found", count),
		)
		return nil, nil, nil
	}

	return state, driver, nil
}

// ingest runs while holding the lock, writing into the fresh index file
// reserved for this snapshot. Any error returns before the marker write,
// so a partial ingestion is never observable as ready, and readers of
// the previously committed index are untouched throughout.
func (c *Coordinator) ingest(ctx context.Context, driver vector.Driver, snap *snapshot.Snapshot, indexFile string) (*IndexState, error) {
	c.state = StateIngesting
	c.logger.Info("starting ingestion",
		zap.String("version", snap.Manifest.Version),
		zap.String("index_file", indexFile),
		zap.Int("records", len(snap.Records)),
		zap.Int("batch_size", c.config.BatchSize),
	)
	start := time.Now()

	for begin := 0; begin < len(snap.Records); begin += c.config.BatchSize {
		end := min(begin+c.config.BatchSize, len(snap.Records))

		docs := make([]vector.Document, 0, end-begin)
		for _, rec := range snap.Records[begin:end] {
			docs = append(docs, vector.Document{
				ID:        rec.ID,
				Embedding: rec.Vector,
				Metadata:  rec.Metadata,
			})
		}

		if err := driver.Upsert(ctx, docs); err != nil {
			return nil, fmt.Errorf("upserting batch %d-%d: %w", begin, end, err)
		}

		c.logger.Debug("ingested batch",
			zap.Int("from", begin),
			zap.Int("to", end),
		)
	}

	if err := driver.Persist(ctx); err != nil {
		return nil, fmt.Errorf("persisting index: %w", err)
	}

	state := &IndexState{
		Version:    snap.Manifest.Version,
		Checksum:   snap.Checksum,
		IndexFile:  indexFile,
		Records:    len(snap.Records),
		IngestedAt: time.Now().UTC(),
	}
	if err := WriteState(c.config.Dir, state); err != nil {
		return nil, err
	}

	c.logger.Info("ingestion complete",
		zap.String("version", state.Version),
		zap.Int("records", state.Records),
		zap.Duration("elapsed", time.Since(start)),
	)
	return state, nil
}

// removeStaleIndexes deletes index files superseded by the committed
// one. Best effort: readers still serving an old version keep their
// open handles, the unlink only prevents new opens.
func (c *Coordinator) removeStaleIndexes(keep string) {
	entries, err := os.ReadDir(c.config.Dir)
	if err != nil {
		c.logger.Warn("listing index directory", zap.Error(err))
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "index-") || strings.HasPrefix(name, keep) {
			continue
		}
		if err := os.Remove(filepath.Join(c.config.Dir, name)); err != nil {
			c.logger.Warn("removing stale index file",
				zap.String("file", name),
				zap.Error(err),
			)
		}
	}
}

// publish sends a lifecycle event, logging instead of failing ingestion
// when the stream is unavailable.
func (c *Coordinator) publish(ctx context.Context, event *eventstream.IngestEvent) {
	if err := c.config.Publisher.PublishIngest(ctx, event); err != nil {
		c.logger.Warn("failed to publish ingest event",
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
	}
}
