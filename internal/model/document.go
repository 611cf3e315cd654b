// Package model provides data models for the knowledge engine.
package model

import (
	"time"
)

// Source 标识文档的来源系统。
type Source string

const (
	// SourceCodeHost 代码托管平台（仓库文件）。
	SourceCodeHost Source = "code-host"
	// SourceWiki 知识库 / Wiki 页面。
	SourceWiki Source = "wiki"
	// SourceTicket 工单系统（issue、工单）。
	SourceTicket Source = "ticket-tracker"
)

// 角色分区词汇表。Chunk 按 role_tags 扇出写入分区，
// 空或未知角色回退到 general 分区。
const (
	RoleDeveloper = "developer"
	RoleSupport   = "support"
	RoleManager   = "manager"
	RoleGeneral   = "general"
)

// KnownRoles 返回固定的角色词汇表。
func KnownRoles() []string {
	return []string{RoleDeveloper, RoleSupport, RoleManager, RoleGeneral}
}

// IsKnownRole 判断角色是否在固定词汇表内。
func IsKnownRole(role string) bool {
	switch role {
	case RoleDeveloper, RoleSupport, RoleManager, RoleGeneral:
		return true
	}
	return false
}

// Document 表示一条待摄取的原始知识单元。
// Document 是不可变输入，永远不会直接落库，只通过派生的 Chunk 存储。
type Document struct {
	// Content 文档正文。
	Content string `json:"content"`
	// Source 来源系统。
	Source Source `json:"source"`
	// DocType 文档分类（documentation、configuration、code、issue 等）。
	DocType string `json:"doc_type"`
	// RoleTags 目标受众角色集合。
	RoleTags []string `json:"role_tags"`
	// Metadata 开放的键值元数据（repository、file_path、page_id、labels 等）。
	Metadata map[string]any `json:"metadata"`
	// CreatedAt 创建时间（可选）。
	CreatedAt *time.Time `json:"created_at,omitempty"`
	// UpdatedAt 更新时间（可选）。
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// TargetPartitions 返回文档 Chunk 应写入的分区列表。
// role_tags 中的已知角色各对应一个分区；空集合或全部未知时回退到 general。
func (d *Document) TargetPartitions() []string {
	var partitions []string
	for _, tag := range d.RoleTags {
		if IsKnownRole(tag) {
			partitions = append(partitions, tag)
		}
	}
	if len(partitions) == 0 {
		return []string{RoleGeneral}
	}
	return partitions
}

// Chunk 表示文档内容的一个连续片段及其嵌入向量。
// Chunk 创建后不再变更；文档内容变化后重新摄取会产生新的
// source_document_id，旧 Chunk 被整体取代而不是原地更新。
type Chunk struct {
	// ID 确定性内容寻址 ID。
	ID string `json:"id"`
	// Content 文本片段。
	Content string `json:"content"`
	// Embedding 固定维度嵌入向量。
	Embedding []float32 `json:"embedding"`
	// SourceDocumentID 所属文档 ID。
	SourceDocumentID string `json:"source_document_id"`
	// DocumentKey 文档身份键哈希（不含内容哈希），用于清理旧版本 Chunk。
	DocumentKey string `json:"document_key"`
	// ChunkIndex 在文档内的序号（从 0 开始）。
	ChunkIndex int `json:"chunk_index"`
	// TotalChunks 文档的分块总数。
	TotalChunks int `json:"total_chunks"`
	// Source 来源系统（冗余自父文档，用于过滤）。
	Source Source `json:"source"`
	// DocType 文档分类（冗余自父文档，用于过滤）。
	DocType string `json:"doc_type"`
	// RoleTags 目标受众角色集合（冗余自父文档）。
	RoleTags []string `json:"role_tags"`
	// Metadata 父文档元数据与分块级派生字段的并集。
	Metadata map[string]any `json:"metadata"`
	// CreatedAt 父文档创建时间（可选）。
	CreatedAt *time.Time `json:"created_at,omitempty"`
	// UpdatedAt 父文档更新时间（可选）。
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// RankedResult 表示一条重排序后的检索结果。
// 仅存在于查询期间，不落库。
type RankedResult struct {
	// Content 片段内容。
	Content string `json:"content"`
	// Metadata 片段元数据。
	Metadata map[string]any `json:"metadata"`
	// Distance 向量距离（0 表示完全相同）。
	Distance float64 `json:"distance"`
	// RoleRelevance 角色相关性得分。
	RoleRelevance float64 `json:"role_relevance_score"`
	// Partition 命中的分区名称。
	Partition string `json:"partition"`
	// Source 来源系统。
	Source Source `json:"source"`
}

// QueryResult 表示一次角色感知查询的完整结果。
type QueryResult struct {
	// Answer 生成的答案（由外部生成器产出，可为空）。
	Answer string `json:"answer"`
	// Results 重排序后的检索结果。
	Results []*RankedResult `json:"results"`
	// Confidence 检索质量置信度，范围 [0, 1]。
	Confidence float64 `json:"confidence"`
	// Role 查询使用的目标角色。
	Role string `json:"role"`
	// RoleSpecificNotes 基于命中内容分类派生的角色提示。
	RoleSpecificNotes []string `json:"role_specific_notes,omitempty"`
	// SuggestedActions 角色建议的后续动作。
	SuggestedActions []string `json:"suggested_actions,omitempty"`
}

// IngestStats 表示一次摄取批次的聚合统计。
// 失败被控制在最小单元（单文档、单分区、单 Chunk），不会中断整批。
type IngestStats struct {
	// DocumentsProcessed 成功处理的文档数。
	DocumentsProcessed int `json:"documents_processed"`
	// DocumentsSkipped 因内容过短等策略跳过的文档数。
	DocumentsSkipped int `json:"documents_skipped"`
	// ChunksWritten 成功写入的分块数。
	ChunksWritten int `json:"chunks_written"`
	// Errors 发生的错误数。
	Errors int `json:"errors"`
}

// IngestJobState 摄取任务状态。
type IngestJobState string

const (
	// IngestStateIdle 没有进行中的摄取任务。
	IngestStateIdle IngestJobState = "idle"
	// IngestStateRunning 摄取任务进行中。
	IngestStateRunning IngestJobState = "running"
	// IngestStateCompleted 上一次摄取任务已完成。
	IngestStateCompleted IngestJobState = "completed"
	// IngestStateFailed 上一次摄取任务失败。
	IngestStateFailed IngestJobState = "failed"
)

// IngestJob 表示摄取任务的显式状态对象。
// 同一时刻最多允许一个任务运行，由 CAS 语义保证。
type IngestJob struct {
	// State 当前状态。
	State IngestJobState `json:"state"`
	// StartedAt 任务开始时间。
	StartedAt *time.Time `json:"started_at,omitempty"`
	// FinishedAt 任务结束时间。
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	// Stats 最近一次任务的聚合统计。
	Stats *IngestStats `json:"stats,omitempty"`
	// Error 最近一次任务的错误信息（失败时）。
	Error string `json:"error,omitempty"`
}
