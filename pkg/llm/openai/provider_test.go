package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.APIKey = "test-key"
	cfg.Dimension = 4

	p, err := NewProviderWithConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func embedPayload(vec []float32) embedResponse {
	var resp embedResponse
	resp.Data = append(resp.Data, struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	}{Embedding: vec})
	return resp
}

func TestEmbedConcurrent(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/embeddings", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// 用文本长度编码向量，便于校验顺序
		json.NewEncoder(w).Encode(embedPayload([]float32{float32(len(req.Input)), 0, 0, 0}))
	})

	vecs, err := p.Embed(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, float32(1), vecs[0][0])
	assert.Equal(t, float32(2), vecs[1][0])
	assert.Equal(t, float32(3), vecs[2][0])
}

func TestEmbedPartialFailureZeroVector(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// 第二条文本模拟服务端失败
		if req.Input == "second" {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(embedPayload([]float32{1, 1, 1, 1}))
	})

	vecs, err := p.Embed(context.Background(), []string{"first", "second", "third"})
	require.NoError(t, err, "单条失败不应该影响整批")
	require.Len(t, vecs, 3)

	assert.Equal(t, []float32{1, 1, 1, 1}, vecs[0])
	assert.Equal(t, []float32{0, 0, 0, 0}, vecs[1], "失败的文本应当以零向量占位")
	assert.Equal(t, []float32{1, 1, 1, 1}, vecs[2])
}

func TestEmbedSinglePropagatesError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	_, err := p.EmbedSingle(context.Background(), "query")
	require.Error(t, err)
}

func TestGenerateWithSystemPrompt(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)

		var resp chatResponse
		resp.Choices = append(resp.Choices, struct {
			Message chatMessage `json:"message"`
		}{Message: chatMessage{Role: "assistant", Content: "an answer"}})
		json.NewEncoder(w).Encode(resp)
	})

	answer, err := p.Generate(context.Background(), "question", "system prompt")
	require.NoError(t, err)
	assert.Equal(t, "an answer", answer)
}

func TestDimension(t *testing.T) {
	p, err := NewProviderWithConfig(DefaultConfig())
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, defaultDimension, p.Dimension())
}
