// Package chunker 负责把文档切分为适合向量化的文本块。
//
// 切分策略按内容信号选择：Markdown 文档优先在标题边界切分，
// 可识别的源码文件使用语言感知的分隔符表，其余内容使用
// 通用的递归分隔符切分。切分后的块会附带内容分类、复杂度
// 等派生元数据，供检索阶段的角色重排使用。
package chunker

import (
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kart-io/knowledge-engine/internal/model"
	"github.com/kart-io/knowledge-engine/internal/pkg/knowledge/identity"
	"github.com/kart-io/knowledge-engine/internal/pkg/knowledge/lexicon"
	"github.com/kart-io/knowledge-engine/internal/pkg/knowledge/textutil"
)

const (
	defaultChunkSize  = 1000
	defaultOverlap    = 200
	defaultMinContent = 50
)

// Options 切分参数。
type Options struct {
	// ChunkSize 目标块大小（字符数）。
	ChunkSize int
	// ChunkOverlap 相邻块之间的重叠大小（字符数）。
	ChunkOverlap int
	// MinContentLength 清洗后低于该长度的文档直接跳过。
	MinContentLength int
}

// NewOptions 返回默认切分参数。
func NewOptions() *Options {
	return &Options{
		ChunkSize:        defaultChunkSize,
		ChunkOverlap:     defaultOverlap,
		MinContentLength: defaultMinContent,
	}
}

// Chunker 文档切分器。并发安全，可被多个 goroutine 共享。
type Chunker struct {
	opts *Options

	markdown   Splitter
	goCode     Splitter
	python     Splitter
	javascript Splitter
	generic    Splitter
}

// New 创建切分器。opts 为 nil 时使用默认参数。
func New(opts *Options) *Chunker {
	if opts == nil {
		opts = NewOptions()
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = defaultOverlap
	}
	if opts.MinContentLength <= 0 {
		opts.MinContentLength = defaultMinContent
	}
	build := func(seps []string) Splitter {
		return NewRecursiveSplitter(seps, opts.ChunkSize, opts.ChunkOverlap)
	}
	return &Chunker{
		opts:       opts,
		markdown:   build(markdownSeparators),
		goCode:     build(goSeparators),
		python:     build(pythonSeparators),
		javascript: build(javascriptSeparators),
		generic:    build(genericSeparators),
	}
}

// Chunk 清洗并切分文档，返回带派生元数据的文本块（不含向量）。
// 清洗后内容过短的文档返回空切片，属于跳过策略而非错误。
func (c *Chunker) Chunk(doc *model.Document) []*model.Chunk {
	cleaned := textutil.CleanText(doc.Content)
	if utf8.RuneCountInString(cleaned) < c.opts.MinContentLength {
		return nil
	}

	pieces := c.splitterFor(doc, cleaned).Split(cleaned)
	if len(pieces) == 0 {
		return nil
	}

	docID := identity.DocumentID(doc)
	docKey := identity.DocumentKey(doc)
	now := time.Now()

	chunks := make([]*model.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, &model.Chunk{
			ID:               identity.ChunkID(docID, i),
			Content:          piece,
			SourceDocumentID: docID,
			DocumentKey:      docKey,
			ChunkIndex:       i,
			TotalChunks:      len(pieces),
			Source:           doc.Source,
			DocType:          doc.DocType,
			RoleTags:         doc.RoleTags,
			Metadata:         c.enrich(doc, piece, now),
			CreatedAt:        doc.CreatedAt,
			UpdatedAt:        doc.UpdatedAt,
		})
	}
	return chunks
}

// splitterFor 根据文档类型与内容信号选择切分策略。
func (c *Chunker) splitterFor(doc *model.Document, content string) Splitter {
	if doc.DocType == "documentation" {
		return c.markdown
	}
	if filePath, ok := doc.Metadata["file_path"].(string); ok && filePath != "" {
		switch strings.ToLower(path.Ext(filePath)) {
		case ".md", ".markdown":
			return c.markdown
		case ".go":
			return c.goCode
		case ".py", ".pyw":
			return c.python
		case ".js", ".jsx", ".ts", ".tsx":
			return c.javascript
		}
	}
	if doc.DocType == "code" {
		// 没有可识别的后缀时退化为内容启发式
		switch {
		case strings.Contains(content, "func ") && strings.Contains(content, "package "):
			return c.goCode
		case strings.Contains(content, "def ") || strings.Contains(content, "import "):
			return c.python
		case strings.Contains(content, "function ") || strings.Contains(content, "const "):
			return c.javascript
		}
	}
	return c.generic
}

// enrich 为单个块生成派生元数据，文档自带元数据会被原样合并。
func (c *Chunker) enrich(doc *model.Document, piece string, now time.Time) map[string]any {
	meta := make(map[string]any, len(doc.Metadata)+10)
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	meta["content_type"] = lexicon.ClassifyContent(piece, doc.DocType)
	meta["complexity_score"] = lexicon.ComplexityScore(piece)
	meta["has_code"] = lexicon.ContainsCode(piece)
	meta["has_urls"] = lexicon.ContainsURLs(piece)
	meta["keywords"] = lexicon.ExtractKeywords(piece)
	meta["summary"] = lexicon.Summarize(piece)
	meta["token_count"] = textutil.WordCount(piece)
	meta["char_count"] = utf8.RuneCountInString(piece)
	meta["processed_at"] = now.UTC().Format(time.RFC3339)
	return meta
}
