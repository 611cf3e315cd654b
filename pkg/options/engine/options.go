// Package engineopts provides options for the knowledge engine pipeline.
package engineopts

import (
	"fmt"

	"github.com/kart-io/knowledge-engine/pkg/options"
	"github.com/spf13/pflag"
)

// Store backend names.
const (
	StoreMilvus = "milvus"
	StoreBadger = "badger"
)

var _ options.IOptions = (*Options)(nil)

// Options contains knowledge engine pipeline configuration.
type Options struct {
	// Store selects the vector store backend (milvus or badger).
	Store string `json:"store" mapstructure:"store"`

	// CollectionPrefix prefixes the per-partition collection names.
	CollectionPrefix string `json:"collection-prefix" mapstructure:"collection-prefix"`

	// ChunkSize is the maximum chunk length in runes.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the overlap between adjacent chunks in runes.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// MinContentLength is the minimum document length in runes; shorter
	// documents are skipped during ingest.
	MinContentLength int `json:"min-content-length" mapstructure:"min-content-length"`

	// OverFetch is the number of candidates fetched before re-ranking.
	OverFetch int `json:"over-fetch" mapstructure:"over-fetch"`

	// FinalK is the number of results returned after re-ranking.
	FinalK int `json:"final-k" mapstructure:"final-k"`

	// RoleKeywords extends the built-in role keyword lexicons. Keys are
	// role names, values are extra signal keywords. Config file only.
	RoleKeywords map[string][]string `json:"role-keywords" mapstructure:"role-keywords"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Store:            StoreMilvus,
		CollectionPrefix: "knowledge",
		ChunkSize:        1000,
		ChunkOverlap:     200,
		MinContentLength: 50,
		OverFetch:        15,
		FinalK:           8,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Store, options.Join(prefixes...)+"engine.store", o.Store, "Vector store backend (milvus, badger).")
	fs.StringVar(&o.CollectionPrefix, options.Join(prefixes...)+"engine.collection-prefix", o.CollectionPrefix, "Prefix for per-partition collection names.")
	fs.IntVar(&o.ChunkSize, options.Join(prefixes...)+"engine.chunk-size", o.ChunkSize, "Maximum chunk length in runes.")
	fs.IntVar(&o.ChunkOverlap, options.Join(prefixes...)+"engine.chunk-overlap", o.ChunkOverlap, "Overlap between adjacent chunks in runes.")
	fs.IntVar(&o.MinContentLength, options.Join(prefixes...)+"engine.min-content-length", o.MinContentLength, "Minimum document length in runes.")
	fs.IntVar(&o.OverFetch, options.Join(prefixes...)+"engine.over-fetch", o.OverFetch, "Candidate count fetched before re-ranking.")
	fs.IntVar(&o.FinalK, options.Join(prefixes...)+"engine.final-k", o.FinalK, "Result count returned after re-ranking.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Store != StoreMilvus && o.Store != StoreBadger {
		errs = append(errs, fmt.Errorf("unsupported store backend %q", o.Store))
	}
	if o.CollectionPrefix == "" {
		errs = append(errs, fmt.Errorf("collection prefix is required"))
	}
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk size must be positive"))
	}
	if o.ChunkOverlap < 0 {
		errs = append(errs, fmt.Errorf("chunk overlap must not be negative"))
	}
	if o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("chunk overlap must be smaller than chunk size"))
	}
	if o.OverFetch <= 0 {
		errs = append(errs, fmt.Errorf("over-fetch must be positive"))
	}
	if o.FinalK <= 0 {
		errs = append(errs, fmt.Errorf("final-k must be positive"))
	}
	if o.FinalK > o.OverFetch {
		errs = append(errs, fmt.Errorf("final-k must not exceed over-fetch"))
	}
	return errs
}
