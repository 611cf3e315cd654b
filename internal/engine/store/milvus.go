package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/logger"
	"github.com/kart-io/knowledge-engine/internal/model"
	"github.com/kart-io/knowledge-engine/pkg/component/milvus"
)

// milvusOutputFields 检索时返回的标量字段。
var milvusOutputFields = []string{
	"content", "document_id", "document_key",
	"source", "doc_type", "role_tags", "metadata",
	"chunk_index", "total_chunks", "created_at", "updated_at",
}

// MilvusStore 基于 Milvus 的多分区向量存储。
// 每个分区对应一个独立集合，集合名为 <prefix>_<partition>。
type MilvusStore struct {
	client    *milvus.Client
	prefix    string
	dimension int
}

var _ ChunkStore = (*MilvusStore)(nil)

// NewMilvusStore 创建 Milvus 存储实例。
func NewMilvusStore(client *milvus.Client, prefix string, dimension int) *MilvusStore {
	if prefix == "" {
		prefix = "knowledge"
	}
	return &MilvusStore{
		client:    client,
		prefix:    prefix,
		dimension: dimension,
	}
}

// collectionName 分区对应的集合名。
func (s *MilvusStore) collectionName(partition string) string {
	return fmt.Sprintf("%s_%s", s.prefix, partition)
}

// EnsurePartitions 为每个分区创建集合，已存在的集合跳过。
func (s *MilvusStore) EnsurePartitions(ctx context.Context, partitions []string) error {
	for _, partition := range partitions {
		schema := &milvus.CollectionSchema{
			Name:        s.collectionName(partition),
			Description: fmt.Sprintf("knowledge chunks for partition %s", partition),
			Dimension:   s.dimension,
			MetaFields: []milvus.MetaField{
				{Name: "content", DataType: entity.FieldTypeVarChar, MaxLen: 65535},
				{Name: "document_id", DataType: entity.FieldTypeVarChar, MaxLen: 64},
				{Name: "document_key", DataType: entity.FieldTypeVarChar, MaxLen: 64},
				{Name: "source", DataType: entity.FieldTypeVarChar, MaxLen: 64},
				{Name: "doc_type", DataType: entity.FieldTypeVarChar, MaxLen: 64},
				{Name: "role_tags", DataType: entity.FieldTypeVarChar, MaxLen: 255},
				{Name: "metadata", DataType: entity.FieldTypeVarChar, MaxLen: 65535},
				{Name: "chunk_index", DataType: entity.FieldTypeInt64},
				{Name: "total_chunks", DataType: entity.FieldTypeInt64},
				{Name: "created_at", DataType: entity.FieldTypeInt64},
				{Name: "updated_at", DataType: entity.FieldTypeInt64},
			},
		}
		if err := s.client.CreateCollection(ctx, schema); err != nil {
			return fmt.Errorf("创建分区 %s 失败: %w", partition, err)
		}
	}
	return nil
}

// Write 将文档块批量写入分区集合，同 ID 覆盖。
func (s *MilvusStore) Write(ctx context.Context, partition string, chunks []*model.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	data := &milvus.UpsertData{
		IDs:        make([]string, len(chunks)),
		Embeddings: make([][]float32, len(chunks)),
		Metadata: map[string][]any{
			"content":      make([]any, len(chunks)),
			"document_id":  make([]any, len(chunks)),
			"document_key": make([]any, len(chunks)),
			"source":       make([]any, len(chunks)),
			"doc_type":     make([]any, len(chunks)),
			"role_tags":    make([]any, len(chunks)),
			"metadata":     make([]any, len(chunks)),
			"chunk_index":  make([]any, len(chunks)),
			"total_chunks": make([]any, len(chunks)),
			"created_at":   make([]any, len(chunks)),
			"updated_at":   make([]any, len(chunks)),
		},
	}

	for i, chunk := range chunks {
		data.IDs[i] = chunk.ID
		data.Embeddings[i] = chunk.Embedding
		data.Metadata["content"][i] = chunk.Content
		data.Metadata["document_id"][i] = chunk.SourceDocumentID
		data.Metadata["document_key"][i] = chunk.DocumentKey
		data.Metadata["source"][i] = string(chunk.Source)
		data.Metadata["doc_type"][i] = chunk.DocType
		data.Metadata["role_tags"][i] = marshalJSONString(chunk.RoleTags)
		data.Metadata["metadata"][i] = marshalJSONString(chunk.Metadata)
		data.Metadata["chunk_index"][i] = int64(chunk.ChunkIndex)
		data.Metadata["total_chunks"][i] = int64(chunk.TotalChunks)
		data.Metadata["created_at"][i] = unixOrZero(chunk.CreatedAt)
		data.Metadata["updated_at"][i] = unixOrZero(chunk.UpdatedAt)
	}

	count, err := s.client.Upsert(ctx, s.collectionName(partition), data)
	if err != nil {
		return 0, fmt.Errorf("写入分区 %s 失败: %w", partition, err)
	}
	return count, nil
}

// Search 在多个分区中检索并按距离归并。过滤条件翻译为 Milvus
// 标量表达式在向量检索之下执行；单个分区失败只省略该分区。
func (s *MilvusStore) Search(ctx context.Context, partitions []string, vector []float32, limit int, filters Filters) ([]*SearchHit, error) {
	expr := milvusFilterExpr(filters)

	return fanInSearch(partitions, limit, func(partition string) ([]*SearchHit, error) {
		results, err := s.client.Search(ctx, s.collectionName(partition), vector, limit, expr, milvusOutputFields)
		if err != nil {
			return nil, err
		}

		hits := make([]*SearchHit, 0, len(results))
		for _, r := range results {
			hits = append(hits, &SearchHit{
				Chunk: chunkFromMetadata(r.ID, r.Metadata),
				// COSINE 索引返回相似度分数，转换为距离
				Distance:  1 - float64(r.Score),
				Partition: partition,
			})
		}
		return hits, nil
	}), nil
}

// milvusFilterExpr 将过滤条件翻译为 Milvus 布尔表达式，作为向量
// 检索之下的标量约束下推执行。role_tags 以 JSON 数组字符串存储，
// 按带引号的元素做子串匹配；未索引的键翻译为恒假子句。
func milvusFilterExpr(filters Filters) string {
	if len(filters) == 0 {
		return ""
	}

	keys := make([]string, 0, len(filters))
	for key := range filters {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	for _, key := range keys {
		values := filterValues(filters[key])
		switch key {
		case "source", "doc_type", "document_id", "document_key":
			if len(values) == 1 {
				clauses = append(clauses, fmt.Sprintf("%s == %s", key, strconv.Quote(values[0])))
				continue
			}
			quoted := make([]string, len(values))
			for i, v := range values {
				quoted[i] = strconv.Quote(v)
			}
			clauses = append(clauses, fmt.Sprintf("%s in [%s]", key, strings.Join(quoted, ", ")))
		case "role_tags":
			like := make([]string, len(values))
			for i, v := range values {
				like[i] = fmt.Sprintf("role_tags like %s", strconv.Quote("%"+strconv.Quote(v)+"%"))
			}
			clause := strings.Join(like, " or ")
			if len(like) > 1 {
				clause = "(" + clause + ")"
			}
			clauses = append(clauses, clause)
		default:
			clauses = append(clauses, `id == ""`)
		}
	}
	return strings.Join(clauses, " and ")
}

// DeleteDocument 删除各分区中属于该文档键的全部块。
func (s *MilvusStore) DeleteDocument(ctx context.Context, partitions []string, documentKey string) error {
	expr := fmt.Sprintf("document_key == %q", documentKey)
	for _, partition := range partitions {
		if err := s.client.DeleteByExpr(ctx, s.collectionName(partition), expr); err != nil {
			return fmt.Errorf("删除分区 %s 中的文档失败: %w", partition, err)
		}
	}
	return nil
}

// Stats 返回各已知分区的文档块数量。
func (s *MilvusStore) Stats(ctx context.Context) (map[string]int64, error) {
	stats := make(map[string]int64, len(model.KnownRoles()))
	for _, partition := range model.KnownRoles() {
		count, err := s.client.GetCollectionStats(ctx, s.collectionName(partition))
		if err != nil {
			logger.Warnw("获取分区统计失败", "partition", partition, "error", err)
			continue
		}
		stats[partition] = count
	}
	return stats, nil
}

// Close 关闭 Milvus 连接。
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// chunkFromMetadata 从检索结果的标量字段还原文档块。
func chunkFromMetadata(id string, fields map[string]any) *model.Chunk {
	chunk := &model.Chunk{ID: id}

	if v, ok := fields["content"].(string); ok {
		chunk.Content = v
	}
	if v, ok := fields["document_id"].(string); ok {
		chunk.SourceDocumentID = v
	}
	if v, ok := fields["document_key"].(string); ok {
		chunk.DocumentKey = v
	}
	if v, ok := fields["source"].(string); ok {
		chunk.Source = model.Source(v)
	}
	if v, ok := fields["doc_type"].(string); ok {
		chunk.DocType = v
	}
	if v, ok := fields["role_tags"].(string); ok && v != "" {
		_ = json.Unmarshal([]byte(v), &chunk.RoleTags)
	}
	if v, ok := fields["metadata"].(string); ok && v != "" {
		_ = json.Unmarshal([]byte(v), &chunk.Metadata)
	}
	if v, ok := fields["chunk_index"].(int64); ok {
		chunk.ChunkIndex = int(v)
	}
	if v, ok := fields["total_chunks"].(int64); ok {
		chunk.TotalChunks = int(v)
	}
	if v, ok := fields["created_at"].(int64); ok && v > 0 {
		t := time.Unix(v, 0).UTC()
		chunk.CreatedAt = &t
	}
	if v, ok := fields["updated_at"].(int64); ok && v > 0 {
		t := time.Unix(v, 0).UTC()
		chunk.UpdatedAt = &t
	}

	return chunk
}

// marshalJSONString 序列化为 JSON 字符串，失败时返回空串。
func marshalJSONString(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// unixOrZero 时间指针转 Unix 秒，nil 为 0。
func unixOrZero(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.Unix()
}
