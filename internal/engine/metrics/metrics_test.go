package metrics

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestMetrics() *EngineMetrics {
	m := GetEngineMetrics()
	m.Reset()
	return m
}

func TestGetEngineMetrics(t *testing.T) {
	m1 := GetEngineMetrics()
	m2 := GetEngineMetrics()

	// 应该返回同一个单例实例
	assert.Same(t, m1, m2)
}

func TestRecordQuery(t *testing.T) {
	m := newTestMetrics()

	// 成功查询（缓存命中）
	m.RecordQuery(true, nil)
	assert.Equal(t, uint64(1), atomic.LoadUint64(&m.queriesTotal))
	assert.Equal(t, uint64(1), atomic.LoadUint64(&m.queriesCacheHits))
	assert.Equal(t, uint64(0), atomic.LoadUint64(&m.queriesCacheMisses))

	// 成功查询（缓存未命中）
	m.RecordQuery(false, nil)
	assert.Equal(t, uint64(2), atomic.LoadUint64(&m.queriesTotal))
	assert.Equal(t, uint64(1), atomic.LoadUint64(&m.queriesCacheMisses))

	// 失败查询
	m.RecordQuery(false, assert.AnError)
	assert.Equal(t, uint64(3), atomic.LoadUint64(&m.queriesTotal))
	assert.Equal(t, uint64(1), atomic.LoadUint64(&m.queriesErrors))
}

func TestRecordRetrieval(t *testing.T) {
	m := newTestMetrics()

	m.RecordRetrieval(100*time.Millisecond, nil)
	assert.Equal(t, uint64(1), atomic.LoadUint64(&m.retrievalTotal))
	assert.InDelta(t, 0.1, m.retrievalDuration, 0.01)

	m.RecordRetrieval(50*time.Millisecond, assert.AnError)
	assert.Equal(t, uint64(2), atomic.LoadUint64(&m.retrievalTotal))
	assert.Equal(t, uint64(1), atomic.LoadUint64(&m.retrievalErrors))
	// 失败时不累计耗时
	assert.InDelta(t, 0.1, m.retrievalDuration, 0.01)
}

func TestRecordEmbedding(t *testing.T) {
	m := newTestMetrics()

	m.RecordEmbedding(500*time.Millisecond, 20, nil)
	assert.Equal(t, uint64(1), atomic.LoadUint64(&m.embedCallsTotal))
	assert.Equal(t, uint64(20), atomic.LoadUint64(&m.embedTextsTotal))
	assert.InDelta(t, 0.5, m.embedDuration, 0.01)

	m.RecordEmbedding(200*time.Millisecond, 0, assert.AnError)
	assert.Equal(t, uint64(2), atomic.LoadUint64(&m.embedCallsTotal))
	assert.Equal(t, uint64(1), atomic.LoadUint64(&m.embedCallsErrors))
	assert.Equal(t, uint64(20), atomic.LoadUint64(&m.embedTextsTotal))
}

func TestRecordZeroVector(t *testing.T) {
	m := newTestMetrics()

	m.RecordZeroVector()
	m.RecordZeroVector()
	assert.Equal(t, uint64(2), atomic.LoadUint64(&m.embedZeroVectors))
}

func TestRecordIngest(t *testing.T) {
	m := newTestMetrics()

	m.RecordIngest(5, 1, 50, 0)
	assert.Equal(t, uint64(5), atomic.LoadUint64(&m.documentsIngested))
	assert.Equal(t, uint64(1), atomic.LoadUint64(&m.documentsSkipped))
	assert.Equal(t, uint64(50), atomic.LoadUint64(&m.chunksWritten))
	assert.Equal(t, uint64(0), atomic.LoadUint64(&m.ingestErrors))

	m.RecordIngest(0, 0, 0, 2)
	assert.Equal(t, uint64(2), atomic.LoadUint64(&m.ingestErrors))
	assert.Equal(t, uint64(5), atomic.LoadUint64(&m.documentsIngested))
}

func TestExport(t *testing.T) {
	m := newTestMetrics()

	for i := 0; i < 100; i++ {
		m.RecordQuery(i < 80, nil)
	}
	m.RecordIngest(10, 0, 100, 1)

	output := m.Export("knowledge", "engine")

	assert.Contains(t, output, "knowledge_engine_queries_total 100")
	assert.Contains(t, output, "knowledge_engine_queries_cache_hits_total 80")
	assert.Contains(t, output, "knowledge_engine_documents_ingested_total 10")
	assert.Contains(t, output, "knowledge_engine_chunks_written_total 100")

	// HELP 与 TYPE 注释
	assert.Contains(t, output, "# HELP knowledge_engine_queries_total")
	assert.Contains(t, output, "# TYPE knowledge_engine_queries_total counter")

	assert.Contains(t, output, "knowledge_engine_uptime_seconds")
}

func TestStats(t *testing.T) {
	m := newTestMetrics()

	for i := 0; i < 100; i++ {
		m.RecordQuery(i < 75, nil)
	}
	for i := 0; i < 10; i++ {
		m.RecordRetrieval(500*time.Millisecond, nil)
	}
	m.RecordIngest(10, 2, 100, 1)

	stats := m.Stats()

	queries := stats["queries"].(map[string]interface{})
	assert.Equal(t, uint64(100), queries["total"])
	assert.Equal(t, uint64(75), queries["cache_hits"])
	assert.InDelta(t, 0.75, queries["cache_hit_rate"].(float64), 0.01)

	retrieval := stats["retrieval"].(map[string]interface{})
	assert.Equal(t, uint64(10), retrieval["total"])
	assert.InDelta(t, 0.5, retrieval["avg_duration_secs"].(float64), 0.01)

	ingest := stats["ingest"].(map[string]interface{})
	assert.Equal(t, uint64(10), ingest["documents_ingested"])
	assert.Equal(t, uint64(2), ingest["documents_skipped"])
	assert.Equal(t, uint64(100), ingest["chunks_written"])
	assert.Equal(t, uint64(1), ingest["errors"])

	assert.Greater(t, stats["uptime_seconds"].(float64), 0.0)
}

func TestReset(t *testing.T) {
	m := newTestMetrics()
	m.RecordQuery(true, nil)
	m.RecordIngest(5, 0, 50, 0)

	m.Reset()

	assert.Equal(t, uint64(0), atomic.LoadUint64(&m.queriesTotal))
	assert.Equal(t, uint64(0), atomic.LoadUint64(&m.documentsIngested))
	assert.Equal(t, uint64(0), atomic.LoadUint64(&m.chunksWritten))
}

func TestConcurrentAccess(t *testing.T) {
	m := newTestMetrics()

	var wg sync.WaitGroup
	numGoroutines := 100
	operationsPerGoroutine := 100

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < operationsPerGoroutine; j++ {
				m.RecordQuery(j%2 == 0, nil)
			}
		}()
	}
	wg.Wait()

	expected := uint64(numGoroutines * operationsPerGoroutine)
	assert.Equal(t, expected, atomic.LoadUint64(&m.queriesTotal))
}
