// Package textutil 提供知识管道相关的文本处理工具函数。
package textutil

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

// CosineSimilarity 计算两个向量的余弦相似度。
// 返回值范围为 [-1, 1]，1 表示完全相同，-1 表示完全相反。
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// CosineDistance 将余弦相似度转换为距离，0 表示完全相同。
func CosineDistance(a, b []float32) float64 {
	return 1 - CosineSimilarity(a, b)
}

// MD5Hash 计算字符串的 MD5 哈希值（十六进制）。
func MD5Hash(s string) string {
	hash := md5.Sum([]byte(s))
	return hex.EncodeToString(hash[:])
}

// SHA256Hash 计算字符串的 SHA-256 哈希值（十六进制）。
func SHA256Hash(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}

// TruncateString 截断字符串到指定的最大 Unicode 字符数。
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

var (
	spaceRunRegex     = regexp.MustCompile(`[ \t]+`)
	blankLineRunRegex = regexp.MustCompile(`\n{3,}`)
)

// CleanText 规范化文本：压缩连续空白、折叠连续空行、去除首尾空白。
// 分块前的统一预处理，保证内容寻址哈希不受无意义空白影响。
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = spaceRunRegex.ReplaceAllString(s, " ")
	s = blankLineRunRegex.ReplaceAllString(s, "\n\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// WordCount 统计文本的单词数（按空白分割）。
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// CountOccurrences 统计子串在文本中出现的次数（大小写不敏感）。
func CountOccurrences(text, substr string) int {
	if substr == "" {
		return 0
	}
	return strings.Count(strings.ToLower(text), strings.ToLower(substr))
}

// ContainsString 检查字符串切片是否包含指定元素。
func ContainsString(slice []string, item string) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}
