// Package openai 提供 OpenAI 兼容 API 的 LLM 供应商实现。
// 作为远程 Embedding 后端使用：每个文本单独请求并通过协程池并发，
// 单条失败以零向量占位，不影响同批其他文本。
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"

	"github.com/kart-io/knowledge-engine/pkg/llm"
)

const ProviderName = "openai"

const (
	defaultDimension   = 1536
	defaultConcurrency = 10
)

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config OpenAI 供应商配置。
type Config struct {
	BaseURL     string        `json:"base_url" mapstructure:"base_url"`
	APIKey      string        `json:"api_key" mapstructure:"api_key"`
	EmbedModel  string        `json:"embed_model" mapstructure:"embed_model"`
	ChatModel   string        `json:"chat_model" mapstructure:"chat_model"`
	Dimension   int           `json:"dimension" mapstructure:"dimension"`
	Concurrency int           `json:"concurrency" mapstructure:"concurrency"`
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "https://api.openai.com",
		EmbedModel:  "text-embedding-3-small",
		ChatModel:   "gpt-4o-mini",
		Dimension:   defaultDimension,
		Concurrency: defaultConcurrency,
		Timeout:     60 * time.Second,
	}
}

// Provider OpenAI 供应商实现。
type Provider struct {
	config     *Config
	httpClient *http.Client
	pool       *ants.Pool
}

var _ llm.Provider = (*Provider)(nil)

// NewProvider 从配置 map 创建 OpenAI 供应商。
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := configMap["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
	}
	if v, ok := configMap["embed_model"].(string); ok && v != "" {
		cfg.EmbedModel = v
	}
	if v, ok := configMap["chat_model"].(string); ok && v != "" {
		cfg.ChatModel = v
	}
	if v, ok := configMap["dimension"].(int); ok && v > 0 {
		cfg.Dimension = v
	}
	if v, ok := configMap["concurrency"].(int); ok && v > 0 {
		cfg.Concurrency = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}

	return NewProviderWithConfig(cfg)
}

// NewProviderWithConfig 使用结构化配置创建 OpenAI 供应商。
func NewProviderWithConfig(cfg *Config) (*Provider, error) {
	if cfg.Dimension <= 0 {
		cfg.Dimension = defaultDimension
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}

	pool, err := ants.NewPool(cfg.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("创建协程池失败: %w", err)
	}

	return &Provider{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		pool: pool,
	}, nil
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

// Dimension 返回向量维度。
func (p *Provider) Dimension() int {
	return p.config.Dimension
}

// Close 释放协程池。
func (p *Provider) Close() {
	p.pool.Release()
}

// embedRequest OpenAI embeddings API 请求体。
type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embedResponse OpenAI embeddings API 响应体。
type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed 为多个文本并发生成向量嵌入。
// 单条失败时以零向量占位，保证结果数量与输入一致。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	var wg sync.WaitGroup

	for i, text := range texts {
		i, text := i, text
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			vec, err := p.embedOne(ctx, text)
			if err != nil {
				logger.Warnw("文本向量化失败，使用零向量占位", "index", i, "error", err)
				vec = make([]float32, p.config.Dimension)
			}
			results[i] = vec
		})
		if err != nil {
			wg.Done()
			results[i] = make([]float32, p.config.Dimension)
			logger.Warnw("提交向量化任务失败，使用零向量占位", "index", i, "error", err)
		}
	}

	wg.Wait()
	return results, nil
}

// EmbedSingle 为单个文本生成向量嵌入。失败直接返回错误，不做占位。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return p.embedOne(ctx, text)
}

// embedOne 单条文本的向量化请求。
func (p *Provider) embedOne(ctx context.Context, text string) ([]float32, error) {
	var embedResp embedResponse
	if err := p.postJSON(ctx, "/v1/embeddings", embedRequest{
		Model: p.config.EmbedModel,
		Input: text,
	}, &embedResp); err != nil {
		return nil, err
	}

	if len(embedResp.Data) == 0 {
		return nil, fmt.Errorf("未返回向量嵌入")
	}
	return embedResp.Data[0].Embedding, nil
}

// chatRequest OpenAI chat completions API 请求体。
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse OpenAI chat completions API 响应体。
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Chat 进行多轮对话。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	chatMessages := make([]chatMessage, len(messages))
	for i, msg := range messages {
		chatMessages[i] = chatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	var chatResp chatResponse
	if err := p.postJSON(ctx, "/v1/chat/completions", chatRequest{
		Model:    p.config.ChatModel,
		Messages: chatMessages,
	}, &chatResp); err != nil {
		return "", err
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("未返回生成内容")
	}
	return chatResp.Choices[0].Message.Content, nil
}

// Generate 根据提示生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	messages := make([]llm.Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})

	return p.Chat(ctx, messages)
}

// postJSON 发送 JSON 请求并解析响应。
func (p *Provider) postJSON(ctx context.Context, path string, reqBody any, out any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("请求失败，状态码 %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}
