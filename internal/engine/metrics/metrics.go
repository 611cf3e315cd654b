// Package metrics 提供知识引擎的业务指标收集。
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// EngineMetrics 知识引擎业务指标。
type EngineMetrics struct {
	// 查询指标
	queriesTotal       uint64 // 总查询次数
	queriesCacheHits   uint64 // 缓存命中次数
	queriesCacheMisses uint64 // 缓存未命中次数
	queriesErrors      uint64 // 查询错误次数

	// 检索指标
	retrievalTotal    uint64  // 总检索次数
	retrievalDuration float64 // 检索总耗时（秒）
	retrievalErrors   uint64  // 检索错误次数

	// 向量化指标
	embedCallsTotal   uint64  // 向量化调用次数
	embedCallsErrors  uint64  // 向量化错误次数
	embedDuration     float64 // 向量化总耗时（秒）
	embedTextsTotal   uint64  // 已向量化文本数
	embedZeroVectors  uint64  // 零向量占位次数

	// 摄取指标
	documentsIngested uint64 // 已摄取文档数
	documentsSkipped  uint64 // 跳过的文档数
	chunksWritten     uint64 // 已写入分块数
	ingestErrors      uint64 // 摄取错误次数

	startTime  time.Time
	durationMu sync.Mutex
}

// globalEngineMetrics 全局指标实例。
var (
	globalEngineMetrics *EngineMetrics
	engineMetricsOnce   sync.Once
)

// GetEngineMetrics 获取全局指标实例。
func GetEngineMetrics() *EngineMetrics {
	engineMetricsOnce.Do(func() {
		globalEngineMetrics = &EngineMetrics{
			startTime: time.Now(),
		}
	})
	return globalEngineMetrics
}

// RecordQuery 记录查询。
func (m *EngineMetrics) RecordQuery(cacheHit bool, err error) {
	atomic.AddUint64(&m.queriesTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.queriesErrors, 1)
		return
	}
	if cacheHit {
		atomic.AddUint64(&m.queriesCacheHits, 1)
	} else {
		atomic.AddUint64(&m.queriesCacheMisses, 1)
	}
}

// RecordRetrieval 记录检索操作。
func (m *EngineMetrics) RecordRetrieval(duration time.Duration, err error) {
	atomic.AddUint64(&m.retrievalTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.retrievalErrors, 1)
		return
	}

	m.durationMu.Lock()
	m.retrievalDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordEmbedding 记录向量化调用。
func (m *EngineMetrics) RecordEmbedding(duration time.Duration, texts int, err error) {
	atomic.AddUint64(&m.embedCallsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.embedCallsErrors, 1)
		return
	}

	m.durationMu.Lock()
	m.embedDuration += duration.Seconds()
	m.durationMu.Unlock()

	if texts > 0 {
		atomic.AddUint64(&m.embedTextsTotal, uint64(texts))
	}
}

// RecordZeroVector 记录零向量占位。
func (m *EngineMetrics) RecordZeroVector() {
	atomic.AddUint64(&m.embedZeroVectors, 1)
}

// RecordIngest 记录摄取操作。
func (m *EngineMetrics) RecordIngest(documents, skipped, chunks, errors int) {
	if documents > 0 {
		atomic.AddUint64(&m.documentsIngested, uint64(documents))
	}
	if skipped > 0 {
		atomic.AddUint64(&m.documentsSkipped, uint64(skipped))
	}
	if chunks > 0 {
		atomic.AddUint64(&m.chunksWritten, uint64(chunks))
	}
	if errors > 0 {
		atomic.AddUint64(&m.ingestErrors, uint64(errors))
	}
}

// Export 导出 Prometheus 格式指标。
func (m *EngineMetrics) Export(namespace, subsystem string) string {
	var sb strings.Builder
	prefix := namespace
	if subsystem != "" {
		prefix = prefix + "_" + subsystem
	}

	counter := func(name, help string, value uint64) {
		sb.WriteString(fmt.Sprintf("# HELP %s_%s %s\n", prefix, name, help))
		sb.WriteString(fmt.Sprintf("# TYPE %s_%s counter\n", prefix, name))
		sb.WriteString(fmt.Sprintf("%s_%s %d\n\n", prefix, name, value))
	}
	gauge := func(name, help string, value float64) {
		sb.WriteString(fmt.Sprintf("# HELP %s_%s %s\n", prefix, name, help))
		sb.WriteString(fmt.Sprintf("# TYPE %s_%s gauge\n", prefix, name))
		sb.WriteString(fmt.Sprintf("%s_%s %.6f\n\n", prefix, name, value))
	}

	// 查询指标
	counter("queries_total", "Total number of knowledge queries.", atomic.LoadUint64(&m.queriesTotal))
	counter("queries_cache_hits_total", "Number of cache hits.", atomic.LoadUint64(&m.queriesCacheHits))
	counter("queries_cache_misses_total", "Number of cache misses.", atomic.LoadUint64(&m.queriesCacheMisses))
	counter("queries_errors_total", "Number of query errors.", atomic.LoadUint64(&m.queriesErrors))

	cacheHits := atomic.LoadUint64(&m.queriesCacheHits)
	cacheMisses := atomic.LoadUint64(&m.queriesCacheMisses)
	cacheHitRate := 0.0
	if total := cacheHits + cacheMisses; total > 0 {
		cacheHitRate = float64(cacheHits) / float64(total)
	}
	gauge("cache_hit_rate", "Cache hit rate (0-1).", cacheHitRate)

	// 检索指标
	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	embedDuration := m.embedDuration
	m.durationMu.Unlock()

	counter("retrieval_total", "Total number of retrievals.", atomic.LoadUint64(&m.retrievalTotal))
	gauge("retrieval_duration_seconds_total", "Total retrieval duration.", retrievalDuration)
	counter("retrieval_errors_total", "Number of retrieval errors.", atomic.LoadUint64(&m.retrievalErrors))

	// 向量化指标
	counter("embed_calls_total", "Total number of embedding calls.", atomic.LoadUint64(&m.embedCallsTotal))
	gauge("embed_duration_seconds_total", "Total embedding duration.", embedDuration)
	counter("embed_calls_errors_total", "Number of embedding call errors.", atomic.LoadUint64(&m.embedCallsErrors))
	counter("embed_texts_total", "Total texts embedded.", atomic.LoadUint64(&m.embedTextsTotal))
	counter("embed_zero_vectors_total", "Number of zero-vector placeholders.", atomic.LoadUint64(&m.embedZeroVectors))

	// 摄取指标
	counter("documents_ingested_total", "Total documents ingested.", atomic.LoadUint64(&m.documentsIngested))
	counter("documents_skipped_total", "Total documents skipped.", atomic.LoadUint64(&m.documentsSkipped))
	counter("chunks_written_total", "Total chunks written.", atomic.LoadUint64(&m.chunksWritten))
	counter("ingest_errors_total", "Number of ingest errors.", atomic.LoadUint64(&m.ingestErrors))

	// 运行时间
	gauge("uptime_seconds", "Service uptime in seconds.", time.Since(m.startTime).Seconds())

	return sb.String()
}

// Stats 返回当前统计信息（用于 API）。
func (m *EngineMetrics) Stats() map[string]interface{} {
	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	embedDuration := m.embedDuration
	m.durationMu.Unlock()

	cacheHits := atomic.LoadUint64(&m.queriesCacheHits)
	cacheMisses := atomic.LoadUint64(&m.queriesCacheMisses)
	cacheHitRate := 0.0
	if total := cacheHits + cacheMisses; total > 0 {
		cacheHitRate = float64(cacheHits) / float64(total)
	}

	retrievalTotal := atomic.LoadUint64(&m.retrievalTotal)
	avgRetrievalDuration := 0.0
	if retrievalTotal > 0 {
		avgRetrievalDuration = retrievalDuration / float64(retrievalTotal)
	}

	embedTotal := atomic.LoadUint64(&m.embedCallsTotal)
	avgEmbedDuration := 0.0
	if embedTotal > 0 {
		avgEmbedDuration = embedDuration / float64(embedTotal)
	}

	return map[string]interface{}{
		"queries": map[string]interface{}{
			"total":          atomic.LoadUint64(&m.queriesTotal),
			"cache_hits":     cacheHits,
			"cache_misses":   cacheMisses,
			"cache_hit_rate": cacheHitRate,
			"errors":         atomic.LoadUint64(&m.queriesErrors),
		},
		"retrieval": map[string]interface{}{
			"total":               retrievalTotal,
			"total_duration_secs": retrievalDuration,
			"avg_duration_secs":   avgRetrievalDuration,
			"errors":              atomic.LoadUint64(&m.retrievalErrors),
		},
		"embedding": map[string]interface{}{
			"calls_total":         embedTotal,
			"total_duration_secs": embedDuration,
			"avg_duration_secs":   avgEmbedDuration,
			"texts_total":         atomic.LoadUint64(&m.embedTextsTotal),
			"zero_vectors":        atomic.LoadUint64(&m.embedZeroVectors),
			"errors":              atomic.LoadUint64(&m.embedCallsErrors),
		},
		"ingest": map[string]interface{}{
			"documents_ingested": atomic.LoadUint64(&m.documentsIngested),
			"documents_skipped":  atomic.LoadUint64(&m.documentsSkipped),
			"chunks_written":     atomic.LoadUint64(&m.chunksWritten),
			"errors":             atomic.LoadUint64(&m.ingestErrors),
		},
		"uptime_seconds": time.Since(m.startTime).Seconds(),
	}
}

// Reset 重置所有指标（仅用于测试）。
func (m *EngineMetrics) Reset() {
	atomic.StoreUint64(&m.queriesTotal, 0)
	atomic.StoreUint64(&m.queriesCacheHits, 0)
	atomic.StoreUint64(&m.queriesCacheMisses, 0)
	atomic.StoreUint64(&m.queriesErrors, 0)
	atomic.StoreUint64(&m.retrievalTotal, 0)
	atomic.StoreUint64(&m.retrievalErrors, 0)
	atomic.StoreUint64(&m.embedCallsTotal, 0)
	atomic.StoreUint64(&m.embedCallsErrors, 0)
	atomic.StoreUint64(&m.embedTextsTotal, 0)
	atomic.StoreUint64(&m.embedZeroVectors, 0)
	atomic.StoreUint64(&m.documentsIngested, 0)
	atomic.StoreUint64(&m.documentsSkipped, 0)
	atomic.StoreUint64(&m.chunksWritten, 0)
	atomic.StoreUint64(&m.ingestErrors, 0)

	m.durationMu.Lock()
	m.retrievalDuration = 0
	m.embedDuration = 0
	m.startTime = time.Now()
	m.durationMu.Unlock()
}
