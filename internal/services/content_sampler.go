// internal/services/content_sampler.go
package services

import "strings"

// DefaultScriptSampleChars 剧本分析时提交给模型的字符上限
const DefaultScriptSampleChars = 30000

const (
	markerStart  = "[START OF SCRIPT]"
	markerMiddle = "[MIDDLE OF SCRIPT]"
	markerEnd    = "[END OF SCRIPT]"
)

// SampleContent 把任意长度的剧本压缩到 maxLength 个字符（按 rune 计）左右。
// 不超过上限时原样返回；否则取开头、正中、结尾各 maxLength/3 个字符，
// 分别放在三个段落标记下。输出长度为 3*(maxLength/3) 加上标记文本
func SampleContent(text string, maxLength int) string {
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}

	third := maxLength / 3
	if third <= 0 {
		third = 1
	}

	mid := len(runes) / 2
	midStart := mid - third/2
	if midStart < 0 {
		midStart = 0
	}
	midEnd := midStart + third
	if midEnd > len(runes) {
		midEnd = len(runes)
	}

	var b strings.Builder
	b.Grow(maxLength*4 + 64)
	b.WriteString(markerStart)
	b.WriteString("\n")
	b.WriteString(string(runes[:third]))
	b.WriteString("\n\n")
	b.WriteString(markerMiddle)
	b.WriteString("\n")
	b.WriteString(string(runes[midStart:midEnd]))
	b.WriteString("\n\n")
	b.WriteString(markerEnd)
	b.WriteString("\n")
	b.WriteString(string(runes[len(runes)-third:]))
	return b.String()
}
