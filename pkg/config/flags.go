package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --index-dir
// on both "clipdex serve" and "clipdex ingest").
type Flag struct {
	// Name is the long flag name (e.g. "snapshot").
	Name string

	// Shorthand is the one-letter short flag (e.g. "s"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "snapshot.path").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag registry keys to Flag structs.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddIntFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagAPIListen     = "api-listen"
	FlagIndexDir      = "index-dir"
	FlagIndexProvider = "index-provider"
	FlagIndexTarget   = "index-target"
	FlagDimensions    = "dimensions"
	FlagBatchSize     = "batch-size"
	FlagSnapshot      = "snapshot"
	FlagEmbeddingProv = "embedding-provider"
	FlagEmbeddingTgt  = "embedding-target"
	FlagEmbeddingMdl  = "embedding-model"
)

// Flags is the shared registry used by the clipdex commands.
var Flags = FlagSet{
	FlagAPIListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "api.listen",
		Description: "Address for the query API server to listen on",
	},
	FlagIndexDir: {
		Name:        "index-dir",
		ViperKey:    "index.dir",
		Description: "Durable index directory shared by all workers",
	},
	FlagIndexProvider: {
		Name:        "index-provider",
		ViperKey:    "index.provider",
		Description: "Vector index driver (sqlite, memory, chroma, postgres)",
	},
	FlagIndexTarget: {
		Name:        "index-target",
		ViperKey:    "index.target",
		Description: "Driver-specific target (chroma URL, postgres DSN)",
	},
	FlagDimensions: {
		Name:        "dimensions",
		ViperKey:    "index.dimensions",
		Description: "Embedding dimensionality of the index",
	},
	FlagBatchSize: {
		Name:        "batch-size",
		ViperKey:    "index.batch_size",
		Description: "Records per ingestion batch",
	},
	FlagSnapshot: {
		Name:        "snapshot",
		Shorthand:   "s",
		ViperKey:    "snapshot.path",
		Description: "Path to the embedding snapshot artifact",
	},
	FlagEmbeddingProv: {
		Name:        "embedding-provider",
		ViperKey:    "embedding.provider",
		Description: "Text embedder provider (ollama); empty disables text queries",
	},
	FlagEmbeddingTgt: {
		Name:        "embedding-target",
		ViperKey:    "embedding.target",
		Description: "Embedder endpoint URL",
	},
	FlagEmbeddingMdl: {
		Name:        "embedding-model",
		ViperKey:    "embedding.model",
		Description: "Embedding model name",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, key string, target *int) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultInt(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultInt returns the default int value for a viper key from NewDefaultConfig.
func defaultInt(viperKey string) int {
	v := viper.New()
	setViperDefaults(v)
	return v.GetInt(viperKey)
}
