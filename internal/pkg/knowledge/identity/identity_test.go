package identity_test

import (
	"testing"

	"github.com/kart-io/knowledge-engine/internal/model"
	"github.com/kart-io/knowledge-engine/internal/pkg/knowledge/identity"
	"github.com/stretchr/testify/assert"
)

func codeDoc(content string) *model.Document {
	return &model.Document{
		Content: content,
		Source:  model.SourceCodeHost,
		DocType: "code",
		Metadata: map[string]any{
			"repository": "platform/gateway",
			"file_path":  "internal/router/router.go",
		},
	}
}

func TestDocumentIDDeterministic(t *testing.T) {
	doc := codeDoc("package router")

	// 相同输入重复调用应产生相同 ID
	id1 := identity.DocumentID(doc)
	id2 := identity.DocumentID(doc)
	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 16)
}

func TestDocumentIDChangesWithContent(t *testing.T) {
	// 仅内容不同的两个文档必须产生不同 ID
	id1 := identity.DocumentID(codeDoc("package router"))
	id2 := identity.DocumentID(codeDoc("package router // changed"))
	assert.NotEqual(t, id1, id2)
}

func TestDocumentKeyStableAcrossContentChanges(t *testing.T) {
	// 身份键不含内容哈希，新旧版本共享同一个键
	key1 := identity.DocumentKey(codeDoc("v1"))
	key2 := identity.DocumentKey(codeDoc("v2"))
	assert.Equal(t, key1, key2)

	// 但与 ID 不同
	assert.NotEqual(t, key1, identity.DocumentID(codeDoc("v1")))
}

func TestNaturalKeyBySource(t *testing.T) {
	tests := []struct {
		name     string
		doc      *model.Document
		expected string
	}{
		{
			name: "代码托管使用仓库加路径",
			doc: &model.Document{
				Source: model.SourceCodeHost,
				Metadata: map[string]any{
					"repository": "platform/gateway",
					"file_path":  "README.md",
				},
			},
			expected: "platform/gateway/README.md",
		},
		{
			name: "Wiki使用页面ID",
			doc: &model.Document{
				Source:   model.SourceWiki,
				Metadata: map[string]any{"page_id": "98765"},
			},
			expected: "98765",
		},
		{
			name: "工单使用issue键",
			doc: &model.Document{
				Source:   model.SourceTicket,
				Metadata: map[string]any{"issue_key": "OPS-421"},
			},
			expected: "OPS-421",
		},
		{
			name: "缺失元数据按空字符串处理",
			doc: &model.Document{
				Source:   model.SourceCodeHost,
				Metadata: map[string]any{},
			},
			expected: "/",
		},
		{
			name:     "nil元数据不会panic",
			doc:      &model.Document{Source: model.SourceWiki},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, identity.NaturalKey(tt.doc))
		})
	}
}

func TestChunkID(t *testing.T) {
	assert.Equal(t, "abc123_0", identity.ChunkID("abc123", 0))
	assert.Equal(t, "abc123_7", identity.ChunkID("abc123", 7))

	// 不同序号的分块 ID 不同
	assert.NotEqual(t, identity.ChunkID("abc123", 1), identity.ChunkID("abc123", 2))
}
