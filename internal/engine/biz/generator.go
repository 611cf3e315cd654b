package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"
	"github.com/kart-io/knowledge-engine/internal/model"
	"github.com/kart-io/knowledge-engine/pkg/llm"
)

// defaultSystemPrompt 默认答案生成提示词模板。
const defaultSystemPrompt = `You are a knowledge assistant answering questions for a {{role}} audience.
{{focus}}
Answer the question using only the context below. If the context does not
contain the answer, say so instead of guessing.

Context:
{{context}}

Question: {{question}}`

// roleProfiles 角色 → 回答侧重说明，填充到提示词的 {{focus}} 占位符。
var roleProfiles = map[string]string{
	model.RoleDeveloper: "Focus on implementation detail, code examples, APIs, and technical accuracy.",
	model.RoleSupport:   "Focus on diagnostic steps, error cases, and actionable resolution guidance.",
	model.RoleManager:   "Focus on business impact, risks, timelines, and process implications; avoid implementation detail.",
	model.RoleGeneral:   "Give a balanced answer appropriate for a general audience.",
}

// GeneratorConfig 生成器配置。
type GeneratorConfig struct {
	// SystemPrompt 提示词模板，支持 {{role}}、{{context}}、{{question}} 占位符。
	SystemPrompt string
}

// NewGeneratorConfig 返回默认生成器配置。
func NewGeneratorConfig() *GeneratorConfig {
	return &GeneratorConfig{
		SystemPrompt: defaultSystemPrompt,
	}
}

// Generator 负责基于检索结果生成答案。
// 答案生成是检索之上的可选环节，chatProvider 为 nil 时整个环节被跳过。
type Generator struct {
	chatProvider llm.ChatProvider
	config       *GeneratorConfig
}

// NewGenerator 创建生成器实例。
func NewGenerator(chatProvider llm.ChatProvider, config *GeneratorConfig) *Generator {
	if config == nil {
		config = NewGeneratorConfig()
	}
	if config.SystemPrompt == "" {
		config.SystemPrompt = defaultSystemPrompt
	}
	return &Generator{
		chatProvider: chatProvider,
		config:       config,
	}
}

// Enabled 生成环节是否可用。
func (g *Generator) Enabled() bool {
	return g != nil && g.chatProvider != nil
}

// GenerateAnswer 根据检索结果生成答案。
func (g *Generator) GenerateAnswer(ctx context.Context, question, role string, results []*model.RankedResult) (string, error) {
	if !g.Enabled() {
		return "", nil
	}
	if len(results) == 0 {
		return "", nil
	}

	if ctx.Err() != nil {
		return "", fmt.Errorf("context cancelled before generation: %w", ctx.Err())
	}

	var contextBuilder strings.Builder
	for i, result := range results {
		fmt.Fprintf(&contextBuilder, "[%d] (partition: %s)\n%s\n\n", i+1, result.Partition, result.Content)
	}

	focus := roleProfiles[role]
	if focus == "" {
		focus = roleProfiles[model.RoleGeneral]
	}
	prompt := strings.ReplaceAll(g.config.SystemPrompt, "{{role}}", role)
	prompt = strings.ReplaceAll(prompt, "{{focus}}", focus)
	prompt = strings.ReplaceAll(prompt, "{{context}}", contextBuilder.String())
	prompt = strings.ReplaceAll(prompt, "{{question}}", question)

	answer, err := g.chatProvider.Generate(ctx, prompt, "")
	if err != nil {
		logger.Errorf("answer generation failed: %v", err)
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}

	logger.Infof("answer generated (length: %d)", len(answer))
	return answer, nil
}
