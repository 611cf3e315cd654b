package chunker

import (
	"strings"
	"unicode/utf8"
)

// Splitter 将文本切分为有序的片段序列。
type Splitter interface {
	Split(text string) []string
}

// RecursiveSplitter 递归分隔符切分器。
// 依次尝试分隔符表（段落 → 行 → 句子 → 单词），把过大的片段
// 继续用更细的分隔符切分，最后合并为带重叠的目标大小块。
// 长度均按 Unicode 字符计算。
type RecursiveSplitter struct {
	separators []string
	chunkSize  int
	overlap    int
}

// genericSeparators 通用文本的分隔符表，从粗到细。
var genericSeparators = []string{"\n\n", "\n", ".", "!", "?", ",", " ", ""}

// markdownSeparators 结构化标记文本的分隔符表，先按标题层级切分。
var markdownSeparators = []string{
	"\n## ", "\n### ", "\n#### ", "\n##### ", "\n###### ",
	"```\n", "\n\n***\n\n", "\n\n---\n\n", "\n\n___\n\n",
	"\n\n", "\n", " ", "",
}

// 语言感知的代码分隔符表，优先在声明边界切分。
var (
	goSeparators = []string{
		"\nfunc ", "\ntype ", "\nvar ", "\nconst ",
		"\nif ", "\nfor ", "\nswitch ", "\ncase ",
		"\n\n", "\n", " ", "",
	}
	pythonSeparators = []string{
		"\nclass ", "\ndef ", "\n\tdef ",
		"\n\n", "\n", " ", "",
	}
	javascriptSeparators = []string{
		"\nfunction ", "\nconst ", "\nlet ", "\nvar ", "\nclass ",
		"\nif ", "\nfor ", "\nwhile ", "\nswitch ", "\ncase ", "\ndefault ",
		"\n\n", "\n", " ", "",
	}
)

// NewRecursiveSplitter 创建递归切分器。
// overlap 会被钳制到小于 chunkSize。
func NewRecursiveSplitter(separators []string, chunkSize, overlap int) *RecursiveSplitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}
	if len(separators) == 0 {
		separators = genericSeparators
	}
	return &RecursiveSplitter{
		separators: separators,
		chunkSize:  chunkSize,
		overlap:    overlap,
	}
}

// Split 切分文本。空白文本返回 nil。
func (s *RecursiveSplitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.splitText(text, s.separators)
}

// splitText 用分隔符表中第一个在文本中出现的分隔符切分，
// 过大的片段交给剩余的更细分隔符递归处理。
func (s *RecursiveSplitter) splitText(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	rest := separators
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	splits := splitWithSeparator(text, separator)

	var chunks []string
	var good []string
	for _, piece := range splits {
		if utf8.RuneCountInString(piece) <= s.chunkSize {
			good = append(good, piece)
			continue
		}
		// 先合并已积累的小片段，再递归处理过大片段
		if len(good) > 0 {
			chunks = append(chunks, s.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.splitText(piece, rest)...)
		}
	}
	if len(good) > 0 {
		chunks = append(chunks, s.merge(good)...)
	}
	return chunks
}

// splitWithSeparator 按分隔符切分并把分隔符保留在后继片段开头，
// 让声明边界（"\nfunc " 等）留在所属片段内。
func splitWithSeparator(text, separator string) []string {
	if separator == "" {
		return []string{text}
	}
	parts := strings.Split(text, separator)
	result := make([]string, 0, len(parts))
	for i, part := range parts {
		if i > 0 {
			part = separator + part
		}
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

// merge 把小片段合并为接近目标大小的块，相邻块之间保留约 overlap 的重叠。
func (s *RecursiveSplitter) merge(splits []string) []string {
	var chunks []string
	var window []string
	total := 0

	flush := func() {
		if len(window) == 0 {
			return
		}
		joined := strings.TrimSpace(strings.Join(window, ""))
		if joined != "" {
			chunks = append(chunks, joined)
		}
	}

	for _, piece := range splits {
		pieceLen := utf8.RuneCountInString(piece)
		if total+pieceLen > s.chunkSize && len(window) > 0 {
			flush()
			// 从窗口头部弹出，直到剩余长度落回 overlap 以内
			for total > s.overlap || (total+pieceLen > s.chunkSize && total > 0) {
				total -= utf8.RuneCountInString(window[0])
				window = window[1:]
				if len(window) == 0 {
					total = 0
					break
				}
			}
		}
		window = append(window, piece)
		total += pieceLen
	}
	flush()

	return chunks
}
