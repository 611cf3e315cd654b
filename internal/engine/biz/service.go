package biz

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/kart-io/knowledge-engine/internal/engine/metrics"
	"github.com/kart-io/knowledge-engine/internal/engine/store"
	"github.com/kart-io/knowledge-engine/internal/model"
	"github.com/kart-io/knowledge-engine/internal/pkg/knowledge/chunker"
	"github.com/kart-io/knowledge-engine/pkg/llm"
)

// ErrIngestRunning 已有摄取任务在运行。
var ErrIngestRunning = &IngestConflictError{}

// IngestConflictError 摄取任务冲突错误。
type IngestConflictError struct{}

func (e *IngestConflictError) Error() string {
	return "an ingest job is already running"
}

// Service 定义知识引擎服务接口。
type Service interface {
	// Query 执行角色感知查询。opts 为 nil 时使用默认检索参数。
	Query(ctx context.Context, question, role string, opts *QueryOptions) (*model.QueryResult, error)
	// Ingest 启动后台摄取任务。已有任务运行时返回 ErrIngestRunning。
	Ingest(ctx context.Context, docs []*model.Document) (*model.IngestJob, error)
	// IngestStatus 返回当前摄取任务状态快照。
	IngestStatus() *model.IngestJob
	// Stats 返回知识库统计信息。
	Stats(ctx context.Context) (map[string]any, error)
}

// KnowledgeService 组合 Pipeline、Retriever 和 Generator 提供完整服务。
type KnowledgeService struct {
	pipeline      *Pipeline
	retriever     *Retriever
	generator     *Generator
	cache         *QueryCache
	store         store.ChunkStore
	embedProvider llm.EmbeddingProvider
	metrics       *metrics.EngineMetrics

	// 摄取任务互斥：同一时刻最多一个任务运行
	ingestRunning int32
	jobMu         sync.RWMutex
	job           model.IngestJob
}

var _ Service = (*KnowledgeService)(nil)

// ServiceConfig 服务配置。
type ServiceConfig struct {
	ChunkerOptions  *chunker.Options
	RetrieverConfig *RetrieverConfig
	GeneratorConfig *GeneratorConfig
}

// NewKnowledgeService 创建知识引擎服务实例。
// chatProvider 为 nil 时查询结果不含生成答案。
func NewKnowledgeService(
	chunkStore store.ChunkStore,
	embedProvider llm.EmbeddingProvider,
	chatProvider llm.ChatProvider,
	cache *QueryCache,
	config *ServiceConfig,
) *KnowledgeService {
	if config == nil {
		config = &ServiceConfig{}
	}
	var c *chunker.Chunker
	if config.ChunkerOptions != nil {
		c = chunker.New(config.ChunkerOptions)
	}
	return &KnowledgeService{
		pipeline:      NewPipeline(chunkStore, embedProvider, c),
		retriever:     NewRetriever(chunkStore, embedProvider, config.RetrieverConfig),
		generator:     NewGenerator(chatProvider, config.GeneratorConfig),
		cache:         cache,
		store:         chunkStore,
		embedProvider: embedProvider,
		metrics:       metrics.GetEngineMetrics(),
		job:           model.IngestJob{State: model.IngestStateIdle},
	}
}

// NewKnowledgeServiceWithPipeline 使用预构建组件创建服务，便于测试替换。
func NewKnowledgeServiceWithPipeline(
	pipeline *Pipeline,
	retriever *Retriever,
	generator *Generator,
	cache *QueryCache,
	chunkStore store.ChunkStore,
	embedProvider llm.EmbeddingProvider,
) *KnowledgeService {
	return &KnowledgeService{
		pipeline:      pipeline,
		retriever:     retriever,
		generator:     generator,
		cache:         cache,
		store:         chunkStore,
		embedProvider: embedProvider,
		metrics:       metrics.GetEngineMetrics(),
		job:           model.IngestJob{State: model.IngestStateIdle},
	}
}

// normalizeRole 未知角色一律按 general 处理，不报错。
func normalizeRole(role string) string {
	if model.IsKnownRole(role) {
		return role
	}
	return model.RoleGeneral
}

// Query 执行角色感知查询。
func (s *KnowledgeService) Query(ctx context.Context, question, role string, opts *QueryOptions) (*model.QueryResult, error) {
	role = normalizeRole(role)

	var queryErr error
	defer func() {
		if queryErr != nil {
			s.metrics.RecordQuery(false, queryErr)
		}
	}()

	// 1. 尝试从缓存获取。带过滤或限量的查询结果不共享缓存键，直接绕过
	cacheable := opts.isDefault()
	if s.cache != nil && cacheable {
		cachedResult, err := s.cache.Get(ctx, role, question)
		if err == nil && cachedResult != nil {
			s.metrics.RecordQuery(true, nil)
			return cachedResult, nil
		}
		// 缓存未命中或出错，继续正常流程
	}

	// 2. 检索并重排
	retrievalStart := time.Now()
	retrieval, err := s.retriever.Retrieve(ctx, question, role, opts)
	s.metrics.RecordRetrieval(time.Since(retrievalStart), err)
	if err != nil {
		queryErr = err
		return nil, err
	}

	result := &model.QueryResult{
		Results:    retrieval.Results,
		Confidence: retrieval.Confidence,
		Role:       role,
	}

	// 3. 空结果短路：不触发生成环节，置信度恒为 0
	if len(retrieval.Results) == 0 {
		result.Answer = emptyResultAnswer
		result.RoleSpecificNotes, result.SuggestedActions = emptyResultAdvice()
		s.metrics.RecordQuery(false, nil)
		return result, nil
	}

	result.RoleSpecificNotes, result.SuggestedActions = roleAdvice(role, retrieval.Results)

	// 4. 生成答案（可选环节）
	if s.generator.Enabled() {
		answer, err := s.generator.GenerateAnswer(ctx, question, role, retrieval.Results)
		if err != nil {
			queryErr = err
			return nil, err
		}
		result.Answer = answer
	}

	// 5. 写入缓存，失败不影响正常返回
	if s.cache != nil && cacheable {
		_ = s.cache.Set(ctx, role, question, result)
	}

	s.metrics.RecordQuery(false, nil)
	return result, nil
}

// Ingest 启动后台摄取任务。CAS 保证同一时刻最多一个任务运行。
func (s *KnowledgeService) Ingest(ctx context.Context, docs []*model.Document) (*model.IngestJob, error) {
	if !atomic.CompareAndSwapInt32(&s.ingestRunning, 0, 1) {
		return nil, ErrIngestRunning
	}

	now := time.Now()
	s.jobMu.Lock()
	s.job = model.IngestJob{
		State:     model.IngestStateRunning,
		StartedAt: &now,
	}
	s.jobMu.Unlock()

	// 后台执行，请求的 context 结束不能中断摄取
	go s.runIngest(context.Background(), docs)

	return s.IngestStatus(), nil
}

// runIngest 后台摄取任务体。
func (s *KnowledgeService) runIngest(ctx context.Context, docs []*model.Document) {
	defer atomic.StoreInt32(&s.ingestRunning, 0)
	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("摄取任务 panic", "error", r)
			finished := time.Now()
			s.jobMu.Lock()
			s.job.State = model.IngestStateFailed
			s.job.FinishedAt = &finished
			s.job.Error = "ingest job panicked"
			s.jobMu.Unlock()
		}
	}()

	stats, err := s.pipeline.IngestDocuments(ctx, docs)

	finished := time.Now()
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	s.job.FinishedAt = &finished
	s.job.Stats = stats
	if err != nil {
		s.job.State = model.IngestStateFailed
		s.job.Error = err.Error()
		return
	}
	s.job.State = model.IngestStateCompleted
}

// IngestStatus 返回当前摄取任务状态快照。
func (s *KnowledgeService) IngestStatus() *model.IngestJob {
	s.jobMu.RLock()
	defer s.jobMu.RUnlock()

	snapshot := s.job
	if snapshot.Stats != nil {
		statsCopy := *snapshot.Stats
		snapshot.Stats = &statsCopy
	}
	return &snapshot
}

// Stats 返回知识库统计信息。
func (s *KnowledgeService) Stats(ctx context.Context) (map[string]any, error) {
	partitionStats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, count := range partitionStats {
		total += count
	}

	stats := map[string]any{
		"partitions":     partitionStats,
		"chunk_count":    total,
		"embed_provider": s.embedProvider.Name(),
		"embed_dim":      s.embedProvider.Dimension(),
	}

	if s.cache != nil {
		cacheStats, err := s.cache.GetStats(ctx)
		if err == nil {
			stats["cache"] = cacheStats
		}
	}

	stats["metrics"] = s.metrics.Stats()

	return stats, nil
}
