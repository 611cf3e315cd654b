package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/knowledge-engine/internal/model"
	"github.com/kart-io/knowledge-engine/internal/pkg/knowledge/lexicon"
)

func TestRoleAdvice(t *testing.T) {
	codeResult := &model.RankedResult{
		Content:  "alpha beta gamma",
		Metadata: map[string]any{"content_type": lexicon.ContentCodeSnippet},
		Source:   model.SourceCodeHost,
	}
	troubleshootResult := &model.RankedResult{
		Content:  "the error occurs when the token expires",
		Metadata: map[string]any{"content_type": lexicon.ContentTroubleshooting},
		Source:   model.SourceWiki,
	}

	t.Run("开发者角色提示代码示例", func(t *testing.T) {
		notes, actions := roleAdvice(model.RoleDeveloper, []*model.RankedResult{codeResult})
		assert.Contains(t, notes, "Code examples available in sources")
		assert.NotEmpty(t, actions)
	})

	t.Run("支持角色提示排障与错误信息", func(t *testing.T) {
		notes, actions := roleAdvice(model.RoleSupport, []*model.RankedResult{troubleshootResult})
		assert.Contains(t, notes, "Troubleshooting guides available")
		assert.Contains(t, notes, "Error cases and solutions documented")
		assert.NotEmpty(t, actions)
	})

	t.Run("管理者角色统计来源数量", func(t *testing.T) {
		notes, actions := roleAdvice(model.RoleManager, []*model.RankedResult{codeResult, troubleshootResult})
		assert.Contains(t, notes, "Information gathered from 2 different sources")
		assert.NotEmpty(t, actions)
	})

	t.Run("general 角色不产出固定建议", func(t *testing.T) {
		notes, actions := roleAdvice(model.RoleGeneral, []*model.RankedResult{codeResult})
		assert.Empty(t, notes)
		assert.Empty(t, actions)
	})

	t.Run("空结果集返回空建议", func(t *testing.T) {
		notes, actions := roleAdvice(model.RoleDeveloper, nil)
		assert.Empty(t, notes)
		assert.Empty(t, actions)
	})
}
