// Package store 提供多分区的文档块向量存储。
//
// 每个角色分区对应一个独立的存储空间（Milvus 为独立集合，
// Badger 为独立键前缀）。写入按分区扇出，检索按分区扇入后
// 按距离归并截断。
package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/kart-io/logger"
	"github.com/kart-io/knowledge-engine/internal/model"
)

// SearchHit 表示一次检索命中。
type SearchHit struct {
	// Chunk 命中的文档块（不含向量）。
	Chunk *model.Chunk
	// Distance 与查询向量的余弦距离，越小越相似。
	Distance float64
	// Partition 命中所在的分区。
	Partition string
}

// Filters 检索的标量字段过滤条件，在向量相似度之下以布尔 AND
// 方式执行，limit 在过滤后生效。键为索引的标量字段（source、
// doc_type、document_id、document_key、role_tags），值为单个匹配值
// 或候选值列表（集合成员语义）。未索引的键不命中任何块。
type Filters map[string]any

// ChunkStore 定义文档块存储接口。
type ChunkStore interface {
	// EnsurePartitions 确保分区存在，幂等。
	EnsurePartitions(ctx context.Context, partitions []string) error

	// Write 将文档块写入指定分区。同 ID 重复写入为覆盖语义。
	Write(ctx context.Context, partition string, chunks []*model.Chunk) (int, error)

	// Search 在多个分区中检索，结果按距离升序归并并截断到 limit。
	// 单个分区的检索失败只舍弃该分区的贡献，不使整次检索失败。
	Search(ctx context.Context, partitions []string, vector []float32, limit int, filters Filters) ([]*SearchHit, error)

	// DeleteDocument 按文档键删除各分区中属于该文档的全部块。
	DeleteDocument(ctx context.Context, partitions []string, documentKey string) error

	// Stats 返回各分区的文档块数量。
	Stats(ctx context.Context) (map[string]int64, error)

	// Close 关闭存储。
	Close(ctx context.Context) error
}

// MergeHits 归并多个分区的检索结果：按距离升序排序，
// 同一文档块只保留距离最小的一次命中，截断到 limit。
func MergeHits(hits []*SearchHit, limit int) []*SearchHit {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})

	seen := make(map[string]bool, len(hits))
	merged := make([]*SearchHit, 0, len(hits))
	for _, hit := range hits {
		if hit.Chunk != nil && hit.Chunk.ID != "" {
			if seen[hit.Chunk.ID] {
				continue
			}
			seen[hit.Chunk.ID] = true
		}
		merged = append(merged, hit)
		if limit > 0 && len(merged) >= limit {
			break
		}
	}
	return merged
}

// fanInSearch 逐分区执行检索并按距离归并截断。单个分区失败
// 只记录日志并在归并中省略该分区的贡献，不中断其余分区。
func fanInSearch(partitions []string, limit int, search func(partition string) ([]*SearchHit, error)) []*SearchHit {
	var hits []*SearchHit
	for _, partition := range partitions {
		partHits, err := search(partition)
		if err != nil {
			logger.Warnw("检索分区失败，结果中省略该分区", "partition", partition, "error", err)
			continue
		}
		hits = append(hits, partHits...)
	}
	return MergeHits(hits, limit)
}

// filterValues 将过滤值规整为字符串候选集，标量为单元素集合。
func filterValues(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, len(vals))
		for i, item := range vals {
			out[i] = fmt.Sprint(item)
		}
		return out
	default:
		return []string{fmt.Sprint(v)}
	}
}

func containsValue(candidates []string, got string) bool {
	for _, c := range candidates {
		if c == got {
			return true
		}
	}
	return false
}

// chunkMatchesFilters 判断文档块是否满足全部过滤条件。
// 与集群后端的表达式下推保持同一套可过滤字段。
func chunkMatchesFilters(chunk *model.Chunk, filters Filters) bool {
	for key, want := range filters {
		candidates := filterValues(want)
		switch key {
		case "source":
			if !containsValue(candidates, string(chunk.Source)) {
				return false
			}
		case "doc_type":
			if !containsValue(candidates, chunk.DocType) {
				return false
			}
		case "document_id":
			if !containsValue(candidates, chunk.SourceDocumentID) {
				return false
			}
		case "document_key":
			if !containsValue(candidates, chunk.DocumentKey) {
				return false
			}
		case "role_tags":
			// 任一候选角色出现在块的 role_tags 中即命中
			matched := false
			for _, tag := range chunk.RoleTags {
				if containsValue(candidates, tag) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		default:
			return false
		}
	}
	return true
}
