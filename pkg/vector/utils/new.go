// Package vectorutils is the vector driver utility package
package vectorutils

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/clipdex/clipdex/pkg/vector"
	"github.com/clipdex/clipdex/pkg/vector/chroma"
	"github.com/clipdex/clipdex/pkg/vector/memory"
	"github.com/clipdex/clipdex/pkg/vector/postgres"
	"github.com/clipdex/clipdex/pkg/vector/sqlitevec"
)

type NewVectorDriverOpts struct {
	// ProviderType selects the driver: "sqlite", "memory", "chroma", "postgres".
	ProviderType string

	// Target is provider-specific: server URL for chroma, connection string
	// for postgres. Unused by sqlite and memory.
	Target string

	// Dir is the shared index directory. The sqlite database lives inside
	// it so the lock, marker, and data travel together.
	Dir string

	// IndexFile is the per-snapshot index name assigned by the ingestion
	// coordinator. It becomes the sqlite file name, the chroma collection
	// suffix, or the postgres table suffix, so distinct snapshot versions
	// never share storage.
	IndexFile string

	// Dimensions is the embedding dimensionality of the index.
	Dimensions int

	Logger *zap.Logger
}

func NewVectorDriver(ctx context.Context, o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "sqlite":
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     filepath.Join(o.Dir, o.IndexFile),
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "memory":
		return memory.NewDriver(o.Dimensions)
	case "chroma":
		return chroma.NewDriver(chroma.Config{
			URL:            o.Target,
			CollectionName: scopedName(chroma.DefaultCollectionName, o.IndexFile),
		}, o.Logger)
	case "postgres":
		return postgres.NewDriver(ctx, postgres.Config{
			ConnString: o.Target,
			Dimensions: o.Dimensions,
			Table:      scopedName(postgres.DefaultTable, o.IndexFile),
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}

// scopedName appends the index fingerprint to a collection or table name
// so server-side stores get the same per-snapshot isolation as sqlite
// files on disk.
func scopedName(base, indexFile string) string {
	token := strings.TrimSuffix(strings.TrimPrefix(indexFile, "index-"), ".db")
	if token == "" {
		return base
	}
	return base + "_" + token
}
