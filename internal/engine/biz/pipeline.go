package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	"github.com/kart-io/knowledge-engine/internal/engine/metrics"
	"github.com/kart-io/knowledge-engine/internal/engine/store"
	"github.com/kart-io/knowledge-engine/internal/model"
	"github.com/kart-io/knowledge-engine/internal/pkg/knowledge/chunker"
	"github.com/kart-io/knowledge-engine/pkg/llm"
)

// Pipeline 文档摄取管道：清洗切分、向量化、按角色分区扇出写入。
// 失败被控制在单文档粒度，一个文档出错不会中断整批摄取。
type Pipeline struct {
	store         store.ChunkStore
	embedProvider llm.EmbeddingProvider
	chunker       *chunker.Chunker
	metrics       *metrics.EngineMetrics
}

// NewPipeline 创建摄取管道实例。
func NewPipeline(chunkStore store.ChunkStore, embedProvider llm.EmbeddingProvider, c *chunker.Chunker) *Pipeline {
	if c == nil {
		c = chunker.New(nil)
	}
	return &Pipeline{
		store:         chunkStore,
		embedProvider: embedProvider,
		chunker:       c,
		metrics:       metrics.GetEngineMetrics(),
	}
}

// IngestDocuments 摄取一批文档并返回聚合统计。
// 分区不可用属于致命错误，单文档失败只累计到统计中。
func (p *Pipeline) IngestDocuments(ctx context.Context, docs []*model.Document) (*model.IngestStats, error) {
	if err := p.store.EnsurePartitions(ctx, model.KnownRoles()); err != nil {
		return nil, fmt.Errorf("初始化分区失败: %w", err)
	}

	stats := &model.IngestStats{}
	for _, doc := range docs {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		p.ingestOne(ctx, doc, stats)
	}

	p.metrics.RecordIngest(stats.DocumentsProcessed, stats.DocumentsSkipped, stats.ChunksWritten, stats.Errors)

	logger.Infow("摄取批次完成",
		"processed", stats.DocumentsProcessed,
		"skipped", stats.DocumentsSkipped,
		"chunks", stats.ChunksWritten,
		"errors", stats.Errors,
	)
	return stats, nil
}

// ingestOne 摄取单个文档：切分、向量化、清理旧版本、扇出写入。
func (p *Pipeline) ingestOne(ctx context.Context, doc *model.Document, stats *model.IngestStats) {
	chunks := p.chunker.Chunk(doc)
	if len(chunks) == 0 {
		// 内容过短或切分为空属于跳过策略而非错误
		stats.DocumentsSkipped++
		logger.Debugw("文档被跳过", "source", doc.Source, "doc_type", doc.DocType)
		return
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	embedStart := time.Now()
	embeddings, err := p.embedProvider.Embed(ctx, texts)
	p.metrics.RecordEmbedding(time.Since(embedStart), len(texts), err)
	if err != nil {
		stats.Errors++
		logger.Warnw("文档向量化失败", "document_key", chunks[0].DocumentKey, "error", err)
		return
	}
	if len(embeddings) != len(chunks) {
		stats.Errors++
		logger.Warnw("向量数量不匹配",
			"document_key", chunks[0].DocumentKey,
			"expected", len(chunks),
			"actual", len(embeddings),
		)
		return
	}

	for i, chunk := range chunks {
		chunk.Embedding = embeddings[i]
		// 供应商对单条失败以零向量占位，这里只做计数不拒绝写入
		if isZeroVector(embeddings[i]) {
			p.metrics.RecordZeroVector()
		}
	}

	// 角色标签可能在两次摄取之间变化，旧版本块要在全部分区中清理
	documentKey := chunks[0].DocumentKey
	if err := p.store.DeleteDocument(ctx, model.KnownRoles(), documentKey); err != nil {
		logger.Warnw("清理旧版本块失败", "document_key", documentKey, "error", err)
	}

	written := 0
	failed := false
	for _, partition := range doc.TargetPartitions() {
		n, err := p.store.Write(ctx, partition, chunks)
		if err != nil {
			failed = true
			stats.Errors++
			logger.Warnw("写入分区失败",
				"partition", partition,
				"document_key", documentKey,
				"error", err,
			)
			continue
		}
		written += n
	}

	stats.ChunksWritten += written
	if !failed {
		stats.DocumentsProcessed++
	}
}

func isZeroVector(vec []float32) bool {
	if len(vec) == 0 {
		return true
	}
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}
