// Package lexicon 以声明式数据承载角色关键词表与内容分类规则，
// 使排序算法保持与具体词表无关。
package lexicon

import (
	"regexp"
	"sort"
	"strings"

	"github.com/kart-io/knowledge-engine/internal/model"
)

// 内容分类标签。
const (
	ContentCodeSnippet      = "code_snippet"
	ContentConfiguration    = "configuration"
	ContentAPIDocumentation = "api_documentation"
	ContentTroubleshooting  = "troubleshooting"
	ContentSetup            = "setup_instructions"
	ContentGeneral          = "general"
)

// roleKeywords 角色 → 信号关键词表。
var roleKeywords = map[string][]string{
	model.RoleDeveloper: {"code", "api", "implementation", "technical", "architecture", "deployment", "configuration"},
	model.RoleSupport:   {"troubleshooting", "error", "issue", "problem", "solution", "support", "diagnostic"},
	model.RoleManager:   {"process", "team", "planning", "strategy", "decision", "management", "roadmap"},
}

// roleContentTypes 角色 → 高相关内容分类。
var roleContentTypes = map[string][]string{
	model.RoleDeveloper: {ContentCodeSnippet, ContentAPIDocumentation, ContentConfiguration},
	model.RoleSupport:   {ContentTroubleshooting, ContentSetup},
}

// classifyRule 内容分类规则，按顺序匹配，先命中先得。
type classifyRule struct {
	contentType   string
	signals       []string
	caseSensitive bool
}

// classifyRules 分类规则表。代码信号保持大小写敏感，
// 避免普通叙述文本中的 "Function" 之类误报。
var classifyRules = []classifyRule{
	{ContentCodeSnippet, []string{"```", "function", "class ", "def ", "import ", "const ", "var "}, true},
	{ContentConfiguration, []string{"config", "settings", "environment", "env"}, false},
	{ContentAPIDocumentation, []string{"api", "endpoint", "request", "response", "curl"}, false},
	{ContentTroubleshooting, []string{"error", "troubleshoot", "problem", "solution", "fix"}, false},
	{ContentSetup, []string{"install", "setup", "deploy", "build", "run"}, false},
}

// technicalKeywords 关键词抽取候选表。
var technicalKeywords = []string{
	"api", "sdk", "auth", "authentication", "authorization", "config", "configuration",
	"deploy", "deployment", "build", "test", "debug", "error", "exception",
	"database", "cache", "queue", "service", "microservice", "container", "docker",
	"kubernetes", "aws", "azure", "gcp", "cloud", "server", "client",
	"frontend", "backend", "fullstack", "rest", "graphql", "websocket",
	"security", "ssl", "tls", "oauth", "jwt", "token", "session",
	"performance", "optimization", "monitoring", "logging", "metrics",
}

// complexityTerms 复杂度评估使用的技术术语。
var complexityTerms = []string{"api", "configuration", "deployment", "architecture", "algorithm"}

// codeIndicators 代码片段信号。
var codeIndicators = []string{"```", "    ", "\t", "function(", "def ", "class ", "import ", "from "}

var (
	urlRegex         = regexp.MustCompile(`https?://\S+`)
	capitalizedRegex = regexp.MustCompile(`\b[A-Z][a-zA-Z]+\b`)
)

// RoleKeywords 返回角色的信号关键词表；未知角色返回 nil。
func RoleKeywords(role string) []string {
	return roleKeywords[role]
}

// MergeRoleKeywords 用配置中的关键词扩展内置角色词表，重复词忽略。
// 只应在服务启动阶段调用，不做并发保护。
func MergeRoleKeywords(overrides map[string][]string) {
	for role, extra := range overrides {
		existing := make(map[string]bool, len(roleKeywords[role]))
		for _, kw := range roleKeywords[role] {
			existing[kw] = true
		}
		for _, kw := range extra {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" || existing[kw] {
				continue
			}
			existing[kw] = true
			roleKeywords[role] = append(roleKeywords[role], kw)
		}
	}
}

// ContentTypeMatchesRole 判断内容分类是否属于角色的高相关类型。
func ContentTypeMatchesRole(role, contentType string) bool {
	for _, t := range roleContentTypes[role] {
		if t == contentType {
			return true
		}
	}
	return false
}

// ClassifyContent 对分块内容进行分类。
// 无规则命中时退化为文档类型，再退化为 general。
func ClassifyContent(content, docType string) string {
	contentLower := strings.ToLower(content)
	for _, rule := range classifyRules {
		haystack := contentLower
		if rule.caseSensitive {
			haystack = content
		}
		for _, signal := range rule.signals {
			if strings.Contains(haystack, signal) {
				return rule.contentType
			}
		}
	}
	if docType != "" {
		return docType
	}
	return ContentGeneral
}

// ComplexityScore 计算内容的复杂度评分，范围 [0, 1]。
func ComplexityScore(content string) float64 {
	score := 0.0
	contentLower := strings.ToLower(content)

	techCount := 0
	for _, term := range complexityTerms {
		if strings.Contains(contentLower, term) {
			techCount++
		}
	}
	score += min(float64(techCount)*0.1, 0.3)

	if ContainsCode(content) {
		score += 0.3
	}

	if len(content) > 800 {
		score += 0.2
	}

	sentences := 0
	for _, s := range strings.Split(content, ".") {
		if strings.TrimSpace(s) != "" {
			sentences++
		}
	}
	if sentences > 5 {
		score += 0.2
	}

	return min(score, 1.0)
}

// ContainsCode 判断内容是否包含代码片段。
func ContainsCode(content string) bool {
	for _, indicator := range codeIndicators {
		if strings.Contains(content, indicator) {
			return true
		}
	}
	return false
}

// ContainsURLs 判断内容是否包含 URL。
func ContainsURLs(content string) bool {
	return urlRegex.MatchString(content)
}

// ExtractKeywords 从内容中抽取关键词，去重后最多返回 10 个。
// 技术词表命中在前，再补充最多 5 个首字母大写的专有名词。
func ExtractKeywords(content string) []string {
	contentLower := strings.ToLower(content)

	seen := make(map[string]bool)
	var keywords []string
	add := func(kw string) {
		if !seen[kw] {
			seen[kw] = true
			keywords = append(keywords, kw)
		}
	}

	for _, kw := range technicalKeywords {
		if strings.Contains(contentLower, kw) {
			add(kw)
		}
	}

	capitalized := capitalizedRegex.FindAllString(content, -1)
	if len(capitalized) > 5 {
		capitalized = capitalized[:5]
	}
	sort.Strings(capitalized)
	for _, word := range capitalized {
		add(word)
	}

	if len(keywords) > 10 {
		keywords = keywords[:10]
	}
	return keywords
}

// Summarize 生成分块内容的简短摘要：首句或前 100 个字符。
func Summarize(content string) string {
	sentences := strings.SplitN(content, ".", 2)
	if len(sentences) > 0 && len(strings.TrimSpace(sentences[0])) > 20 {
		return strings.TrimSpace(sentences[0]) + "."
	}
	if len(content) > 100 {
		return strings.TrimSpace(content[:100]) + "..."
	}
	return strings.TrimSpace(content)
}
