// Package snapshot reads precomputed embedding snapshots: the versioned,
// self-describing artifact that cold-starts a vector index. A snapshot is
// a JSON-lines file whose first line is a manifest and whose remaining
// lines are one embedding record each.
package snapshot

import "errors"

// ErrMalformed is returned when a snapshot artifact fails validation:
// inconsistent dimensions, missing required fields, duplicate ids, or a
// manifest that disagrees with the records that follow it.
var ErrMalformed = errors.New("malformed snapshot")

// Manifest is the first line of a snapshot artifact.
type Manifest struct {
	// Version is the producer's version string for this build of the data.
	// May be empty; the content checksum still uniquely identifies it.
	Version string `json:"version"`

	// Dimensions is the embedding dimensionality every record must match.
	Dimensions int `json:"dimensions"`

	// Count is the expected record count. Zero means unspecified.
	Count int `json:"count,omitempty"`
}

// Record is a single precomputed embedding with its identifier and metadata.
type Record struct {
	ID       string         `json:"id"`
	Vector   []float32      `json:"vector"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Snapshot is a fully loaded, validated embedding snapshot.
type Snapshot struct {
	Manifest Manifest
	Records  []Record

	// Checksum is the hex sha256 of the raw artifact bytes. Together with
	// Manifest.Version it fingerprints the snapshot for idempotent ingestion.
	Checksum string
}

// Fingerprint identifies this build of the data: the manifest version and
// the content checksum joined, so ingestion is skipped only when both match.
func (s *Snapshot) Fingerprint() string {
	return s.Manifest.Version + "@" + s.Checksum
}
