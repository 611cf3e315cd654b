package biz

import (
	"fmt"
	"strings"

	"github.com/kart-io/knowledge-engine/internal/model"
	"github.com/kart-io/knowledge-engine/internal/pkg/knowledge/lexicon"
)

// emptyResultAnswer 空检索结果时返回的固定答案。
const emptyResultAnswer = "I don't have enough information to answer your question. " +
	"Please provide more specific details or check if the relevant documentation is available in the system."

// emptyResultAdvice 空检索结果时的提示与建议动作。
func emptyResultAdvice() (notes, actions []string) {
	return []string{"No relevant documents found"},
		[]string{
			"Try rephrasing your question",
			"Check if documentation exists for this topic",
		}
}

// roleAdvice 根据命中结果的内容分类与来源分布，为角色派生
// 提示信息与建议动作。general 角色不产出固定动作清单。
func roleAdvice(role string, results []*model.RankedResult) (notes, actions []string) {
	if len(results) == 0 {
		return nil, nil
	}

	contentTypes := make(map[string]bool)
	sources := make(map[string]bool)
	hasErrorContent := false
	for _, r := range results {
		if ct, ok := r.Metadata["content_type"].(string); ok {
			contentTypes[ct] = true
		}
		if r.Source != "" {
			sources[string(r.Source)] = true
		}
		if strings.Contains(strings.ToLower(r.Content), "error") {
			hasErrorContent = true
		}
	}

	switch role {
	case model.RoleDeveloper:
		if contentTypes[lexicon.ContentCodeSnippet] {
			notes = append(notes, "Code examples available in sources")
		}
		if contentTypes[lexicon.ContentAPIDocumentation] {
			notes = append(notes, "API documentation referenced")
		}
		actions = append(actions,
			"Review code examples in referenced files",
			"Check for related test files or documentation",
			"Consider implementation best practices",
		)
	case model.RoleSupport:
		if contentTypes[lexicon.ContentTroubleshooting] {
			notes = append(notes, "Troubleshooting guides available")
		}
		if hasErrorContent {
			notes = append(notes, "Error cases and solutions documented")
		}
		actions = append(actions,
			"Follow diagnostic steps systematically",
			"Document issue details for tracking",
			"Escalate if resolution steps don't work",
		)
	case model.RoleManager:
		notes = append(notes, fmt.Sprintf("Information gathered from %d different sources", len(sources)))
		actions = append(actions,
			"Review team processes and documentation",
			"Consider resource allocation for improvements",
			"Plan knowledge sharing sessions",
		)
	}

	return notes, actions
}
