// Package app provides the knowledge engine application.
package app

import (
	"fmt"

	badgeropts "github.com/kart-io/knowledge-engine/pkg/options/badger"
	cacheopts "github.com/kart-io/knowledge-engine/pkg/options/cache"
	engineopts "github.com/kart-io/knowledge-engine/pkg/options/engine"
	llmopts "github.com/kart-io/knowledge-engine/pkg/options/llm"
	logopts "github.com/kart-io/knowledge-engine/pkg/options/logger"
	milvusopts "github.com/kart-io/knowledge-engine/pkg/options/milvus"
	httpopts "github.com/kart-io/knowledge-engine/pkg/options/server/http"
	"github.com/spf13/pflag"
)

// Options contains all knowledge engine options.
type Options struct {
	// HTTP contains HTTP server configuration.
	HTTP *httpopts.Options `json:"http" mapstructure:"http"`

	// Log contains logger configuration.
	Log *logopts.Options `json:"log" mapstructure:"log"`

	// Engine contains pipeline and retrieval configuration.
	Engine *engineopts.Options `json:"engine" mapstructure:"engine"`

	// Milvus contains Milvus client configuration.
	Milvus *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// Badger contains embedded store configuration.
	Badger *badgeropts.Options `json:"badger" mapstructure:"badger"`

	// Embedding contains embedding provider configuration.
	Embedding *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// Chat contains chat provider configuration. An empty provider
	// disables answer generation.
	Chat *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// Cache contains query cache configuration.
	Cache *cacheopts.Options `json:"cache" mapstructure:"cache"`
}

// NewOptions creates Options with defaults.
func NewOptions() *Options {
	cache := cacheopts.NewOptions()
	cache.Enabled = false
	cache.KeyPrefix = "knowledge:query:"

	return &Options{
		HTTP:      httpopts.NewOptions(),
		Log:       logopts.NewOptions(),
		Engine:    engineopts.NewOptions(),
		Milvus:    milvusopts.NewOptions(),
		Badger:    badgeropts.NewOptions(),
		Embedding: llmopts.NewEmbeddingOptions(),
		Chat:      llmopts.NewChatOptions(),
		Cache:     cache,
	}
}

// AddFlags adds all option flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	o.HTTP.AddFlags(fs)
	o.Log.AddFlags(fs)
	o.Engine.AddFlags(fs)
	o.Milvus.AddFlags(fs)
	o.Badger.AddFlags(fs)
	o.Embedding.AddFlags(fs, "embedding")
	o.Chat.AddFlags(fs, "chat")
	o.Cache.AddFlags(fs)
}

// Validate validates all options.
func (o *Options) Validate() error {
	var errs []error
	errs = append(errs, o.HTTP.Validate()...)
	errs = append(errs, o.Engine.Validate()...)
	errs = append(errs, o.Embedding.Validate()...)
	errs = append(errs, o.Cache.Validate()...)

	switch o.Engine.Store {
	case engineopts.StoreMilvus:
		errs = append(errs, o.Milvus.Validate()...)
	case engineopts.StoreBadger:
		errs = append(errs, o.Badger.Validate()...)
	}

	// Chat 供应商可选，配置了 provider 才校验
	if o.Chat != nil && o.Chat.Provider != "" && o.Chat.BaseURL != "" {
		errs = append(errs, o.Chat.Validate()...)
	}

	if err := o.Log.Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid options: %v", errs)
	}
	return nil
}

// Complete completes all options with defaults.
func (o *Options) Complete() error {
	if err := o.Embedding.Complete(); err != nil {
		return err
	}
	if o.Chat != nil {
		if err := o.Chat.Complete(); err != nil {
			return err
		}
	}
	if err := o.Cache.Complete(); err != nil {
		return err
	}
	return o.Log.Complete()
}
