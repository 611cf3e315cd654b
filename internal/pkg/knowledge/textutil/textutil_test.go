package textutil_test

import (
	"testing"

	"github.com/kart-io/knowledge-engine/internal/pkg/knowledge/textutil"
	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
	}{
		{
			name:     "相同向量",
			a:        []float32{1.0, 0.0, 0.0},
			b:        []float32{1.0, 0.0, 0.0},
			expected: 1.0,
		},
		{
			name:     "正交向量",
			a:        []float32{1.0, 0.0, 0.0},
			b:        []float32{0.0, 1.0, 0.0},
			expected: 0.0,
		},
		{
			name:     "相反向量",
			a:        []float32{1.0, 0.0, 0.0},
			b:        []float32{-1.0, 0.0, 0.0},
			expected: -1.0,
		},
		{
			name:     "空向量",
			a:        []float32{},
			b:        []float32{},
			expected: 0.0,
		},
		{
			name:     "长度不匹配",
			a:        []float32{1.0, 2.0},
			b:        []float32{1.0},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := textutil.CosineSimilarity(tt.a, tt.b)
			assert.InDelta(t, tt.expected, result, 0.0001)
		})
	}
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
	}{
		{"相同向量距离为零", []float32{1.0, 2.0, 3.0}, []float32{1.0, 2.0, 3.0}, 0.0},
		{"正交向量距离为一", []float32{1.0, 0.0}, []float32{0.0, 1.0}, 1.0},
		{"相反向量距离为二", []float32{1.0, 0.0}, []float32{-1.0, 0.0}, 2.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := textutil.CosineDistance(tt.a, tt.b)
			assert.InDelta(t, tt.expected, result, 0.0001)
		})
	}
}

func TestMD5Hash(t *testing.T) {
	// 相同输入应产生相同输出
	hash1 := textutil.MD5Hash("test")
	hash2 := textutil.MD5Hash("test")
	assert.Equal(t, hash1, hash2)

	// 不同输入应产生不同输出
	hash3 := textutil.MD5Hash("different")
	assert.NotEqual(t, hash1, hash3)

	// 哈希应为32字符的十六进制字符串
	assert.Len(t, hash1, 32)
}

func TestSHA256Hash(t *testing.T) {
	hash1 := textutil.SHA256Hash("test")
	hash2 := textutil.SHA256Hash("test")
	assert.Equal(t, hash1, hash2)
	assert.Len(t, hash1, 64)
	assert.NotEqual(t, hash1, textutil.SHA256Hash("Test"))
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{
			name:     "短于限制",
			input:    "hello",
			maxLen:   10,
			expected: "hello",
		},
		{
			name:     "等于限制",
			input:    "hello",
			maxLen:   5,
			expected: "hello",
		},
		{
			name:     "超过限制",
			input:    "hello world",
			maxLen:   5,
			expected: "hello",
		},
		{
			name:     "中文字符",
			input:    "你好世界",
			maxLen:   2,
			expected: "你好",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := textutil.TruncateString(tt.input, tt.maxLen)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "压缩连续空格",
			input:    "hello    world",
			expected: "hello world",
		},
		{
			name:     "折叠连续空行",
			input:    "first\n\n\n\n\nsecond",
			expected: "first\n\nsecond",
		},
		{
			name:     "去除首尾空白",
			input:    "  \n  content  \n  ",
			expected: "content",
		},
		{
			name:     "统一换行符",
			input:    "a\r\nb",
			expected: "a\nb",
		},
		{
			name:     "制表符压缩为空格",
			input:    "a\t\tb",
			expected: "a b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := textutil.CleanText(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestCleanTextDeterministic(t *testing.T) {
	// 清洗是幂等的：已清洗文本再次清洗不变
	input := "some   text\n\n\n\nwith noise"
	once := textutil.CleanText(input)
	assert.Equal(t, once, textutil.CleanText(once))
}

func TestWordCount(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{"空字符串", "", 0},
		{"单个单词", "hello", 1},
		{"多个单词", "the quick brown fox", 4},
		{"多余空白", "  a   b  ", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, textutil.WordCount(tt.input))
		})
	}
}

func TestCountOccurrences(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		substr   string
		expected int
	}{
		{"单次出现", "deploy the api", "api", 1},
		{"多次出现", "api api API", "api", 3},
		{"大小写不敏感", "Error ERROR error", "error", 3},
		{"无匹配", "hello world", "api", 0},
		{"空子串", "hello", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, textutil.CountOccurrences(tt.text, tt.substr))
		})
	}
}

func TestContainsString(t *testing.T) {
	assert.True(t, textutil.ContainsString([]string{"a", "b"}, "b"))
	assert.False(t, textutil.ContainsString([]string{"a", "b"}, "c"))
	assert.False(t, textutil.ContainsString(nil, "a"))
}
