package biz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/knowledge-engine/internal/engine/store"
	"github.com/kart-io/knowledge-engine/internal/model"
)

func newTestService(chunkStore *fakeChunkStore, chat *fakeChat) *KnowledgeService {
	if chat == nil {
		return NewKnowledgeService(chunkStore, &fakeEmbedder{}, nil, nil, nil)
	}
	return NewKnowledgeService(chunkStore, &fakeEmbedder{}, chat, nil, nil)
}

func TestQueryEmptyResultsShortCircuit(t *testing.T) {
	chunkStore := newFakeChunkStore()
	chat := &fakeChat{answer: "should not be called"}
	svc := newTestService(chunkStore, chat)

	result, err := svc.Query(context.Background(), "anything at all", model.RoleDeveloper, nil)
	require.NoError(t, err)

	assert.Empty(t, result.Results)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Equal(t, emptyResultAnswer, result.Answer)
	assert.Contains(t, result.RoleSpecificNotes, "No relevant documents found")
	assert.NotEmpty(t, result.SuggestedActions)
	// 空结果不触发生成环节
	assert.Zero(t, chat.callCount())
}

func TestQueryGeneratesAnswer(t *testing.T) {
	chunkStore := newFakeChunkStore()
	chunkStore.hits = []*store.SearchHit{neutralHit("chunk_a", model.RoleGeneral, 0.2)}
	chat := &fakeChat{answer: "use the rollout script"}
	svc := newTestService(chunkStore, chat)

	result, err := svc.Query(context.Background(), "how do we deploy", model.RoleDeveloper, nil)
	require.NoError(t, err)

	assert.Equal(t, "use the rollout script", result.Answer)
	require.Len(t, result.Results, 1)
	assert.Greater(t, result.Confidence, 0.0)

	require.Equal(t, 1, chat.callCount())
	assert.Contains(t, chat.prompts[0], "how do we deploy")
	assert.Contains(t, chat.prompts[0], chunkStore.hits[0].Chunk.Content)
}

func TestQueryWithoutGenerator(t *testing.T) {
	chunkStore := newFakeChunkStore()
	chunkStore.hits = []*store.SearchHit{neutralHit("chunk_a", model.RoleGeneral, 0.2)}
	svc := newTestService(chunkStore, nil)

	result, err := svc.Query(context.Background(), "how do we deploy", model.RoleGeneral, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Answer)
	assert.Len(t, result.Results, 1)
}

func TestQueryNormalizesUnknownRole(t *testing.T) {
	chunkStore := newFakeChunkStore()
	svc := newTestService(chunkStore, nil)

	result, err := svc.Query(context.Background(), "question", "ceo", nil)
	require.NoError(t, err)

	assert.Equal(t, model.RoleGeneral, result.Role)
	require.Len(t, chunkStore.searchedPartitions, 1)
	assert.Equal(t, []string{model.RoleGeneral}, chunkStore.searchedPartitions[0])
}

func TestIngestRejectsConcurrentJob(t *testing.T) {
	chunkStore := newFakeChunkStore()
	chunkStore.ensureBlock = make(chan struct{})
	svc := newTestService(chunkStore, nil)

	docs := []*model.Document{ingestableDoc(model.RoleDeveloper)}

	job, err := svc.Ingest(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, model.IngestStateRunning, job.State)
	require.NotNil(t, job.StartedAt)

	// 任务运行期间重复提交被拒绝
	_, err = svc.Ingest(context.Background(), docs)
	assert.ErrorIs(t, err, ErrIngestRunning)

	close(chunkStore.ensureBlock)
	require.Eventually(t, func() bool {
		return svc.IngestStatus().State == model.IngestStateCompleted
	}, 5*time.Second, 10*time.Millisecond)

	status := svc.IngestStatus()
	require.NotNil(t, status.Stats)
	assert.Equal(t, 1, status.Stats.DocumentsProcessed)
	assert.NotNil(t, status.FinishedAt)

	// 任务结束后允许再次提交
	chunkStore.mu.Lock()
	chunkStore.ensureBlock = nil
	chunkStore.mu.Unlock()
	_, err = svc.Ingest(context.Background(), docs)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return svc.IngestStatus().State == model.IngestStateCompleted
	}, 5*time.Second, 10*time.Millisecond)
}

func TestIngestFailureRecordedInStatus(t *testing.T) {
	chunkStore := newFakeChunkStore()
	chunkStore.ensureErr = assert.AnError
	svc := newTestService(chunkStore, nil)

	_, err := svc.Ingest(context.Background(), []*model.Document{ingestableDoc()})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return svc.IngestStatus().State == model.IngestStateFailed
	}, 5*time.Second, 10*time.Millisecond)
	assert.NotEmpty(t, svc.IngestStatus().Error)
}

func TestIngestStatusInitiallyIdle(t *testing.T) {
	svc := newTestService(newFakeChunkStore(), nil)

	status := svc.IngestStatus()
	assert.Equal(t, model.IngestStateIdle, status.State)
	assert.Nil(t, status.StartedAt)
}

func TestStats(t *testing.T) {
	chunkStore := newFakeChunkStore()
	chunkStore.stats = map[string]int64{
		model.RoleDeveloper: 10,
		model.RoleGeneral:   32,
	}
	svc := newTestService(chunkStore, nil)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(42), stats["chunk_count"])
	assert.Equal(t, "fake", stats["embed_provider"])
	assert.Equal(t, 3, stats["embed_dim"])
	assert.Contains(t, stats, "metrics")
}
