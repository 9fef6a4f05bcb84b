package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StateFileName is the ready-marker file inside the index directory.
const StateFileName = "state.json"

// IndexState records which snapshot has been fully ingested into the
// index. It is written only after ingestion completes and Persist has
// flushed the index, so its presence with a matching fingerprint is the
// single source of truth for readiness.
type IndexState struct {
	// Version is the snapshot manifest version.
	Version string `json:"version"`

	// Checksum is the snapshot content checksum.
	Checksum string `json:"checksum"`

	// IndexFile names the committed index inside the directory. Each
	// snapshot fingerprint ingests into its own index, so committing the
	// marker atomically retargets later workers while readers of the old
	// version keep serving their open handles.
	IndexFile string `json:"index_file"`

	// Records is the number of records ingested.
	Records int `json:"records"`

	// IngestedAt is when the marker was committed.
	IngestedAt time.Time `json:"ingested_at"`
}

// Fingerprint mirrors snapshot.Snapshot.Fingerprint for comparison.
func (s *IndexState) Fingerprint() string {
	return s.Version + "@" + s.Checksum
}

// ReadState reads the marker from dir. Returns (nil, nil) when no marker
// exists — the index has never completed an ingestion.
func ReadState(dir string) (*IndexState, error) {
	data, err := os.ReadFile(filepath.Join(dir, StateFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading index state: %w", err)
	}

	var state IndexState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing index state: %w", err)
	}
	return &state, nil
}

// WriteState commits the marker atomically: write to a temp file in the
// same directory, fsync, then rename over the final path. A crash at any
// point leaves the previous marker (or none), never a torn one.
func WriteState(dir string, state *IndexState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding index state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, StateFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp state file: %w", err)
	}

	if err := os.Rename(tmpName, filepath.Join(dir, StateFileName)); err != nil {
		return fmt.Errorf("committing index state: %w", err)
	}
	return nil
}
