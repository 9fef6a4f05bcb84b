// Package eventstream defines transport-neutral lifecycle events for index
// ingestion, published so downstream systems can react to snapshot rollouts.
package eventstream

import "time"

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeIngestCompleted is emitted after a snapshot is fully ingested
	// and the ready marker is committed.
	EventTypeIngestCompleted = "clipdex.ingest.completed"

	// EventTypeIngestFailed is emitted when an ingestion attempt aborts.
	EventTypeIngestFailed = "clipdex.ingest.failed"
)

// IngestEvent is the payload for ingestion lifecycle events.
type IngestEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	// SnapshotVersion is the manifest version of the snapshot involved.
	SnapshotVersion string `json:"snapshot_version"`

	// Checksum is the snapshot content checksum.
	Checksum string `json:"checksum"`

	// Records is the number of records ingested (zero on failure).
	Records int `json:"records"`

	// Error carries the failure reason for failed events.
	Error string `json:"error,omitempty"`
}
