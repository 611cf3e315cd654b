package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/kart-io/knowledge-engine/internal/model"
	"github.com/kart-io/knowledge-engine/internal/pkg/knowledge/textutil"
)

// BadgerStore 基于 Badger 的嵌入式向量存储。
// 没有向量索引，检索时对分区内全部块做线性余弦距离扫描，
// 适用于单机部署和测试环境。
type BadgerStore struct {
	db *badger.DB
}

var _ ChunkStore = (*BadgerStore)(nil)

// NewBadgerStore 打开指定目录的 Badger 数据库。
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("打开 badger 数据库失败: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStoreInMemory 打开内存模式的 Badger 数据库，用于测试。
func NewBadgerStoreInMemory() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("打开内存 badger 数据库失败: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// chunkKey 分区内文档块的存储键。
func chunkKey(partition, chunkID string) []byte {
	return []byte(fmt.Sprintf("chunk/%s/%s", partition, chunkID))
}

// partitionPrefix 分区扫描前缀。
func partitionPrefix(partition string) []byte {
	return []byte(fmt.Sprintf("chunk/%s/", partition))
}

// EnsurePartitions 分区由键前缀隐式划分，无需创建。
func (s *BadgerStore) EnsurePartitions(ctx context.Context, partitions []string) error {
	return nil
}

// Write 将文档块写入分区，同 ID 覆盖。
func (s *BadgerStore) Write(ctx context.Context, partition string, chunks []*model.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, chunk := range chunks {
		value, err := json.Marshal(chunk)
		if err != nil {
			return 0, fmt.Errorf("序列化文档块 %s 失败: %w", chunk.ID, err)
		}
		if err := wb.Set(chunkKey(partition, chunk.ID), value); err != nil {
			return 0, fmt.Errorf("写入文档块 %s 失败: %w", chunk.ID, err)
		}
	}

	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("提交写入失败: %w", err)
	}
	return len(chunks), nil
}

// Search 在多个分区中线性扫描并按距离归并。过滤条件在扫描时
// 生效，limit 作用于过滤后的候选；单个分区失败只省略该分区。
func (s *BadgerStore) Search(ctx context.Context, partitions []string, vector []float32, limit int, filters Filters) ([]*SearchHit, error) {
	return fanInSearch(partitions, limit, func(partition string) ([]*SearchHit, error) {
		var hits []*SearchHit

		err := s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = partitionPrefix(partition)
			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Rewind(); it.Valid(); it.Next() {
				var chunk model.Chunk
				err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &chunk)
				})
				if err != nil {
					return fmt.Errorf("解析文档块失败: %w", err)
				}
				if len(filters) > 0 && !chunkMatchesFilters(&chunk, filters) {
					continue
				}

				hits = append(hits, &SearchHit{
					Chunk:     stripEmbedding(&chunk),
					Distance:  textutil.CosineDistance(vector, chunk.Embedding),
					Partition: partition,
				})
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return hits, nil
	}), nil
}

// DeleteDocument 扫描各分区，删除属于该文档键的全部块。
func (s *BadgerStore) DeleteDocument(ctx context.Context, partitions []string, documentKey string) error {
	var stale [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		for _, partition := range partitions {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = partitionPrefix(partition)
			it := txn.NewIterator(opts)

			for it.Rewind(); it.Valid(); it.Next() {
				item := it.Item()
				var chunk model.Chunk
				err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &chunk)
				})
				if err != nil {
					it.Close()
					return fmt.Errorf("解析文档块失败: %w", err)
				}
				if chunk.DocumentKey == documentKey {
					stale = append(stale, item.KeyCopy(nil))
				}
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(stale) == 0 {
		return nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return fmt.Errorf("删除文档块失败: %w", err)
		}
	}
	return wb.Flush()
}

// Stats 返回各分区的文档块数量。
func (s *BadgerStore) Stats(ctx context.Context) (map[string]int64, error) {
	stats := make(map[string]int64)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("chunk/")
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			parts := strings.SplitN(key, "/", 3)
			if len(parts) == 3 {
				stats[parts[1]]++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// Close 关闭数据库。
func (s *BadgerStore) Close(ctx context.Context) error {
	return s.db.Close()
}

// stripEmbedding 检索结果不携带向量，避免大对象在上层传递。
func stripEmbedding(chunk *model.Chunk) *model.Chunk {
	c := *chunk
	c.Embedding = nil
	return &c
}
