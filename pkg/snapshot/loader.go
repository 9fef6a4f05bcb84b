package snapshot

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
)

// maxLineBytes bounds a single snapshot line. High-dimensional embeddings
// with verbose metadata stay well under this.
const maxLineBytes = 16 * 1024 * 1024

// Load reads and validates a snapshot artifact from path. Loading the
// same artifact twice yields the same Snapshot: records appear in file
// order and the checksum is derived from the raw bytes. The index is
// never touched.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates raw snapshot bytes. Exposed separately so tests and
// non-file sources can load snapshots without touching disk.
func Parse(data []byte) (*Snapshot, error) {
	sum := sha256.Sum256(data)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	if !scanner.Scan() {
		return nil, fmt.Errorf("%w: empty artifact", ErrMalformed)
	}

	var manifest Manifest
	if err := json.Unmarshal(scanner.Bytes(), &manifest); err != nil {
		return nil, fmt.Errorf("%w: invalid manifest line: %v", ErrMalformed, err)
	}
	if manifest.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: manifest dimensions must be positive, got %d", ErrMalformed, manifest.Dimensions)
	}

	var records []Record
	seen := make(map[string]struct{})
	line := 1

	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}
		if rec.ID == "" {
			return nil, fmt.Errorf("%w: line %d: record has no id", ErrMalformed, line)
		}
		if _, dup := seen[rec.ID]; dup {
			return nil, fmt.Errorf("%w: line %d: duplicate id %q", ErrMalformed, line, rec.ID)
		}
		if len(rec.Vector) != manifest.Dimensions {
			return nil, fmt.Errorf("%w: line %d: record %q has %d dimensions, manifest declares %d",
				ErrMalformed, line, rec.ID, len(rec.Vector), manifest.Dimensions)
		}

		seen[rec.ID] = struct{}{}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: scanning artifact: %v", ErrMalformed, err)
	}

	if manifest.Count != 0 && manifest.Count != len(records) {
		return nil, fmt.Errorf("%w: manifest declares %d records, artifact has %d",
			ErrMalformed, manifest.Count, len(records))
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: artifact has no records", ErrMalformed)
	}

	return &Snapshot{
		Manifest: manifest,
		Records:  records,
		Checksum: hex.EncodeToString(sum[:]),
	}, nil
}
