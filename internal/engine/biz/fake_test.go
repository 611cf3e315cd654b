package biz

import (
	"context"
	"sync"

	"github.com/kart-io/knowledge-engine/internal/engine/store"
	"github.com/kart-io/knowledge-engine/internal/model"
	"github.com/kart-io/knowledge-engine/pkg/llm"
)

// fakeEmbedder 测试用嵌入提供者。
type fakeEmbedder struct {
	mu         sync.Mutex
	vector     []float32
	singleErr  error
	batchErr   error
	batchCalls [][]string
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.batchCalls = append(f.batchCalls, texts)
	f.mu.Unlock()
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.embedding()
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	if f.singleErr != nil {
		return nil, f.singleErr
	}
	return f.embedding(), nil
}

func (f *fakeEmbedder) embedding() []float32 {
	if f.vector != nil {
		vec := make([]float32, len(f.vector))
		copy(vec, f.vector)
		return vec
	}
	return []float32{0.1, 0.2, 0.3}
}

func (f *fakeEmbedder) Dimension() int { return 3 }

func (f *fakeEmbedder) Name() string { return "fake" }

// deleteCall 记录一次 DeleteDocument 调用。
type deleteCall struct {
	partitions  []string
	documentKey string
}

// fakeChunkStore 测试用文档块存储。
type fakeChunkStore struct {
	mu sync.Mutex

	hits      []*store.SearchHit
	searchErr error
	// searchedPartitions 记录每次 Search 传入的分区列表
	searchedPartitions [][]string
	searchedLimits     []int
	searchedFilters    []store.Filters

	writes   map[string][]*model.Chunk
	writeErr map[string]error

	deletes []deleteCall

	ensureCalls [][]string
	ensureErr   error
	// ensureBlock 非 nil 时 EnsurePartitions 阻塞直到通道关闭
	ensureBlock chan struct{}

	stats map[string]int64
}

var _ store.ChunkStore = (*fakeChunkStore)(nil)

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{
		writes:   make(map[string][]*model.Chunk),
		writeErr: make(map[string]error),
	}
}

func (f *fakeChunkStore) EnsurePartitions(ctx context.Context, partitions []string) error {
	f.mu.Lock()
	f.ensureCalls = append(f.ensureCalls, partitions)
	block := f.ensureBlock
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.ensureErr
}

func (f *fakeChunkStore) Write(ctx context.Context, partition string, chunks []*model.Chunk) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.writeErr[partition]; err != nil {
		return 0, err
	}
	f.writes[partition] = append(f.writes[partition], chunks...)
	return len(chunks), nil
}

func (f *fakeChunkStore) Search(ctx context.Context, partitions []string, vector []float32, limit int, filters store.Filters) ([]*store.SearchHit, error) {
	f.mu.Lock()
	f.searchedPartitions = append(f.searchedPartitions, partitions)
	f.searchedLimits = append(f.searchedLimits, limit)
	f.searchedFilters = append(f.searchedFilters, filters)
	f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

func (f *fakeChunkStore) DeleteDocument(ctx context.Context, partitions []string, documentKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, deleteCall{partitions: partitions, documentKey: documentKey})
	return nil
}

func (f *fakeChunkStore) Stats(ctx context.Context) (map[string]int64, error) {
	if f.stats != nil {
		return f.stats, nil
	}
	return map[string]int64{}, nil
}

func (f *fakeChunkStore) Close(ctx context.Context) error { return nil }

// fakeChat 测试用对话提供者，记录每次 Generate 的 prompt。
type fakeChat struct {
	mu      sync.Mutex
	answer  string
	err     error
	prompts []string
}

func (f *fakeChat) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	return f.answer, f.err
}

func (f *fakeChat) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeChat) Name() string { return "fake" }

func (f *fakeChat) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}
