package app

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/knowledge-engine/internal/engine/biz"
	"github.com/kart-io/knowledge-engine/internal/engine/handler"
	enginestore "github.com/kart-io/knowledge-engine/internal/engine/store"
	"github.com/kart-io/knowledge-engine/internal/pkg/knowledge/chunker"
	"github.com/kart-io/knowledge-engine/internal/pkg/knowledge/lexicon"
	"github.com/kart-io/knowledge-engine/pkg/app"
	"github.com/kart-io/knowledge-engine/pkg/component/milvus"
	"github.com/kart-io/knowledge-engine/pkg/component/redis"
	"github.com/kart-io/knowledge-engine/pkg/llm"
	"github.com/kart-io/knowledge-engine/pkg/llm/openai"
	"github.com/kart-io/knowledge-engine/pkg/llm/resilience"
	engineopts "github.com/kart-io/knowledge-engine/pkg/options/engine"
)

const (
	appName        = "knowledge-engine"
	appDescription = `Knowledge Engine

Role-aware knowledge base service.

This server provides:
  - Document ingestion with cleaning, splitting, and vector embeddings
  - Multi-partition vector storage keyed by audience role
  - Role-aware retrieval with re-ranking and confidence scoring`
)

// NewApp creates a new application instance.
func NewApp() *app.App {
	opts := NewOptions()

	return app.NewApp(
		app.WithName(appName),
		app.WithDescription(appDescription),
		app.WithOptions(opts),
		app.WithRunFunc(func() error {
			return Run(opts)
		}),
	)
}

// Run runs the knowledge engine with the given options.
func Run(opts *Options) error {
	fmt.Printf("Starting %s...\n", appName)

	// 1. 初始化日志
	opts.Log.AddInitialField("service.name", appName)
	opts.Log.AddInitialField("service.version", app.GetVersion())
	if err := opts.Log.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting knowledge engine...")

	if len(opts.Engine.RoleKeywords) > 0 {
		lexicon.MergeRoleKeywords(opts.Engine.RoleKeywords)
		logger.Infow("Role keyword lexicons extended", "roles", len(opts.Engine.RoleKeywords))
	}

	// 2. 初始化 Embedding 供应商
	embedProvider, err := llm.NewEmbeddingProvider(opts.Embedding.Provider, opts.Embedding.ToConfigMap())
	if err != nil {
		return fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	logger.Infow("Embedding provider initialized",
		"provider", embedProvider.Name(),
		"dimension", embedProvider.Dimension(),
	)
	// 远端供应商经过重试与熔断包装；ollama 在连接层自带重试
	if opts.Embedding.Provider == openai.ProviderName {
		embedProvider = resilience.NewResilientEmbeddingProvider(embedProvider, nil, nil)
	}

	// 3. 初始化向量存储
	chunkStore, err := buildStore(opts, embedProvider.Dimension())
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() {
		if err := chunkStore.Close(context.Background()); err != nil {
			logger.Warnw("failed to close store", "error", err)
		}
	}()
	logger.Infow("Chunk store initialized", "backend", opts.Engine.Store)

	// 4. 初始化 Chat 供应商（可选，失败只降级不中止）
	var chatProvider llm.ChatProvider
	if opts.Chat != nil && opts.Chat.Provider != "" {
		chatProvider, err = llm.NewChatProvider(opts.Chat.Provider, opts.Chat.ToConfigMap())
		if err != nil {
			logger.Warnw("chat provider unavailable, answer generation disabled", "error", err)
			chatProvider = nil
		} else {
			chatProvider = resilience.NewResilientChatProvider(chatProvider, nil, nil)
		}
	}

	// 5. 初始化查询缓存与 Embedding 缓存（可选）
	var cache *biz.QueryCache
	if opts.Cache.Enabled {
		redisClient, err := redis.New(opts.Cache.Redis)
		if err != nil {
			logger.Warnw("redis unavailable, query cache disabled", "error", err)
		} else {
			defer redisClient.Close()
			cache = biz.NewQueryCache(redisClient.Client(), &biz.QueryCacheConfig{
				Enabled:   true,
				TTL:       opts.Cache.TTL,
				KeyPrefix: opts.Cache.KeyPrefix,
			})
			embedProvider = llm.NewCachedEmbeddingProvider(embedProvider, redisClient.Client(), nil)
			logger.Info("Query cache initialized")
		}
	}

	// 6. 初始化服务层
	service := biz.NewKnowledgeService(chunkStore, embedProvider, chatProvider, cache, &biz.ServiceConfig{
		ChunkerOptions: &chunker.Options{
			ChunkSize:        opts.Engine.ChunkSize,
			ChunkOverlap:     opts.Engine.ChunkOverlap,
			MinContentLength: opts.Engine.MinContentLength,
		},
		RetrieverConfig: &biz.RetrieverConfig{
			OverFetch: opts.Engine.OverFetch,
			FinalK:    opts.Engine.FinalK,
		},
	})
	logger.Info("Knowledge service initialized")

	// 7. 启动 HTTP 服务器
	h := handler.NewKnowledgeHandler(service)
	logger.Info("Knowledge engine is ready")
	return runServer(opts.HTTP, h)
}

// buildStore 按配置选择存储后端。
func buildStore(opts *Options, dimension int) (enginestore.ChunkStore, error) {
	switch opts.Engine.Store {
	case engineopts.StoreMilvus:
		client, err := milvus.New(opts.Milvus)
		if err != nil {
			return nil, err
		}
		return enginestore.NewMilvusStore(client, opts.Engine.CollectionPrefix, dimension), nil
	case engineopts.StoreBadger:
		if opts.Badger.InMemory {
			return enginestore.NewBadgerStoreInMemory()
		}
		return enginestore.NewBadgerStore(opts.Badger.Path)
	default:
		return nil, fmt.Errorf("unsupported store backend %q", opts.Engine.Store)
	}
}
