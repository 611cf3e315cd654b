// Package badgeropts provides options for the embedded Badger vector store.
package badgeropts

import (
	"fmt"

	"github.com/kart-io/knowledge-engine/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// Options contains Badger store configuration.
type Options struct {
	// Path is the on-disk directory for the Badger database.
	Path string `json:"path" mapstructure:"path"`

	// InMemory runs the store without persistence.
	InMemory bool `json:"in-memory" mapstructure:"in-memory"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Path: "data/knowledge",
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Path, options.Join(prefixes...)+"badger.path", o.Path, "Badger database directory.")
	fs.BoolVar(&o.InMemory, options.Join(prefixes...)+"badger.in-memory", o.InMemory, "Run Badger in memory without persistence.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if !o.InMemory && o.Path == "" {
		errs = append(errs, fmt.Errorf("badger path is required unless in-memory mode is enabled"))
	}
	return errs
}
