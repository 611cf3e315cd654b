package biz

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/kart-io/logger"
	"github.com/kart-io/knowledge-engine/internal/engine/store"
	"github.com/kart-io/knowledge-engine/internal/model"
	"github.com/kart-io/knowledge-engine/internal/pkg/knowledge/lexicon"
	"github.com/kart-io/knowledge-engine/internal/pkg/knowledge/textutil"
	"github.com/kart-io/knowledge-engine/pkg/llm"
)

// RetrieverConfig 检索器配置。
type RetrieverConfig struct {
	// OverFetch 每次检索的候选数量，大于最终返回数量以留出重排空间。
	OverFetch int
	// FinalK 重排后最终返回的结果数量。
	FinalK int
}

// NewRetrieverConfig 返回默认检索配置。
func NewRetrieverConfig() *RetrieverConfig {
	return &RetrieverConfig{
		OverFetch: 15,
		FinalK:    8,
	}
}

// QueryOptions 单次查询的可选参数。
type QueryOptions struct {
	// MaxResults 结果数量上限，0 表示使用配置的 FinalK。
	// 不能超过 FinalK。
	MaxResults int
	// Filters 标量字段过滤条件，下推到存储层在向量相似度之下
	// 执行，候选数量不受过滤影响。可过滤键见 store.Filters。
	Filters map[string]any
}

// isDefault 是否与不带选项的查询等价。
func (o *QueryOptions) isDefault() bool {
	return o == nil || (o.MaxResults == 0 && len(o.Filters) == 0)
}

// RetrievalResult 表示一次角色感知检索的结果。
type RetrievalResult struct {
	// Results 重排序后的结果列表。
	Results []*model.RankedResult
	// Confidence 检索质量置信度，范围 [0, 1]。
	Confidence float64
}

// Retriever 负责角色感知的文档块检索与重排。
type Retriever struct {
	store         store.ChunkStore
	embedProvider llm.EmbeddingProvider
	config        *RetrieverConfig
}

// NewRetriever 创建检索器实例。
func NewRetriever(chunkStore store.ChunkStore, embedProvider llm.EmbeddingProvider, config *RetrieverConfig) *Retriever {
	if config == nil {
		config = NewRetrieverConfig()
	}
	return &Retriever{
		store:         chunkStore,
		embedProvider: embedProvider,
		config:        config,
	}
}

// searchPartitions 查询覆盖的分区：general 加上角色专属分区。
// 未知角色只查询 general。
func searchPartitions(role string) []string {
	if model.IsKnownRole(role) && role != model.RoleGeneral {
		return []string{model.RoleGeneral, role}
	}
	return []string{model.RoleGeneral}
}

// Retrieve 执行检索：向量化问题，在 general 与角色分区中扇入
// 检索候选（过滤条件随查询下推），按角色相关性重排后截断。
func (r *Retriever) Retrieve(ctx context.Context, question, role string, opts *QueryOptions) (*RetrievalResult, error) {
	vector, err := r.embedProvider.EmbedSingle(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("问题向量化失败: %w", err)
	}

	var filters store.Filters
	if opts != nil && len(opts.Filters) > 0 {
		filters = store.Filters(opts.Filters)
	}

	partitions := searchPartitions(role)
	hits, err := r.store.Search(ctx, partitions, vector, r.config.OverFetch, filters)
	if err != nil {
		return nil, fmt.Errorf("检索失败: %w", err)
	}

	finalK := r.config.FinalK
	if opts != nil && opts.MaxResults > 0 && opts.MaxResults < finalK {
		finalK = opts.MaxResults
	}

	ranked := rankHits(hits, role)
	if len(ranked) > finalK {
		ranked = ranked[:finalK]
	}

	confidence := confidenceScore(ranked)

	results := make([]*model.RankedResult, len(ranked))
	for i, h := range ranked {
		results[i] = &model.RankedResult{
			Content:       h.hit.Chunk.Content,
			Metadata:      h.hit.Chunk.Metadata,
			Distance:      h.hit.Distance,
			RoleRelevance: h.roleRelevance,
			Partition:     h.hit.Partition,
			Source:        h.hit.Chunk.Source,
		}
	}

	logger.Debugw("检索完成",
		"role", role,
		"partitions", partitions,
		"candidates", len(hits),
		"results", len(results),
		"confidence", confidence,
	)

	return &RetrievalResult{
		Results:    results,
		Confidence: confidence,
	}, nil
}

// rankedHit 候选与其角色相关性得分。
type rankedHit struct {
	hit           *store.SearchHit
	roleRelevance float64
	combined      float64
}

// rankHits 按组合得分重排候选：combined = (1 - distance) + role_relevance，
// 降序排列，得分相同时距离小者优先。
func rankHits(hits []*store.SearchHit, role string) []*rankedHit {
	ranked := make([]*rankedHit, len(hits))
	for i, hit := range hits {
		relevance := roleRelevanceScore(hit.Chunk, role)
		ranked[i] = &rankedHit{
			hit:           hit,
			roleRelevance: relevance,
			combined:      (1 - hit.Distance) + relevance,
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].combined != ranked[j].combined {
			return ranked[i].combined > ranked[j].combined
		}
		return ranked[i].hit.Distance < ranked[j].hit.Distance
	})

	return ranked
}

// roleRelevanceScore 计算文档块对角色的相关性得分。
// 角色关键词每出现一次计 1 分，role_tags 命中角色计 3 分，
// 内容类型与角色匹配计 2 分，总分按词数归一化。
func roleRelevanceScore(chunk *model.Chunk, role string) float64 {
	if chunk == nil {
		return 0
	}

	score := 0.0
	for _, keyword := range lexicon.RoleKeywords(role) {
		score += float64(textutil.CountOccurrences(chunk.Content, keyword))
	}

	if textutil.ContainsString(chunk.RoleTags, role) {
		score += 3
	}

	if contentType, ok := chunk.Metadata["content_type"].(string); ok {
		if lexicon.ContentTypeMatchesRole(role, contentType) {
			score += 2
		}
	}

	words := textutil.WordCount(chunk.Content)
	if words < 1 {
		words = 1
	}
	return score / float64(words)
}

// recencyWindow 判定“近期更新”的时间窗口。
const recencyWindow = 30 * 24 * time.Hour

// confidenceScore 计算检索结果的置信度。
// 基础分为平均相似度，乘以结果数量因子 min(n/5, 1)，
// 再乘以新鲜度因子 1 + 0.1 * 近期更新占比，最终钳制到 [0, 1]。
// 空结果集的置信度恒为 0。
func confidenceScore(ranked []*rankedHit) float64 {
	if len(ranked) == 0 {
		return 0.0
	}

	similaritySum := 0.0
	recent := 0
	now := time.Now()
	for _, h := range ranked {
		similaritySum += 1 - h.hit.Distance
		if h.hit.Chunk != nil && h.hit.Chunk.UpdatedAt != nil &&
			now.Sub(*h.hit.Chunk.UpdatedAt) <= recencyWindow {
			recent++
		}
	}

	n := float64(len(ranked))
	avgSimilarity := similaritySum / n
	countFactor := math.Min(n/5.0, 1.0)
	freshnessFactor := 1 + (float64(recent)/n)*0.1

	confidence := avgSimilarity * countFactor * freshnessFactor
	return math.Max(0, math.Min(1, confidence))
}
