// Package identity 提供确定性的文档内容寻址 ID 生成。
//
// ID 由来源、文档类型、来源特定的自然键和内容短哈希组合后再哈希截断得到。
// 相同 (source, doc_type, natural key, content) 永远产生相同 ID；
// 内容变化则 ID 变化。自然键元数据缺失按空字符串处理，不视为错误。
package identity

import (
	"fmt"
	"strings"

	"github.com/kart-io/knowledge-engine/internal/model"
	"github.com/kart-io/knowledge-engine/internal/pkg/knowledge/textutil"
)

const (
	// idLength 最终 ID 的十六进制字符数。
	idLength = 16
	// contentHashLength 参与身份组合的内容哈希前缀长度。
	contentHashLength = 8
)

// DocumentID 计算文档的确定性 ID。
func DocumentID(doc *model.Document) string {
	contentHash := textutil.MD5Hash(doc.Content)[:contentHashLength]
	key := fmt.Sprintf("%s_%s_%s_%s", doc.Source, doc.DocType, NaturalKey(doc), contentHash)
	return textutil.SHA256Hash(key)[:idLength]
}

// DocumentKey 计算文档的身份键哈希，不含内容哈希。
// 同一文档的新旧版本共享同一个身份键，重新摄取时据此清理旧版本 Chunk。
func DocumentKey(doc *model.Document) string {
	key := fmt.Sprintf("%s_%s_%s", doc.Source, doc.DocType, NaturalKey(doc))
	return textutil.SHA256Hash(key)[:idLength]
}

// NaturalKey 从元数据中提取来源特定的自然键。
// 代码托管来源使用 repository+file_path，Wiki 使用 page_id，
// 工单系统使用 issue_key；其他来源退化为元数据中的 url 或空串。
func NaturalKey(doc *model.Document) string {
	switch doc.Source {
	case model.SourceCodeHost:
		return metaString(doc.Metadata, "repository") + "/" + metaString(doc.Metadata, "file_path")
	case model.SourceWiki:
		return metaString(doc.Metadata, "page_id")
	case model.SourceTicket:
		return metaString(doc.Metadata, "issue_key")
	default:
		return metaString(doc.Metadata, "url")
	}
}

// ChunkID 计算分块 ID：文档 ID 加上分块序号。
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_%d", documentID, index)
}

func metaString(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	v, ok := metadata[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
