package services

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSampleContent_ShortTextUnchanged(t *testing.T) {
	for _, text := range []string{"", "INT. DINER - NIGHT", strings.Repeat("a", 300)} {
		assert.Equal(t, text, SampleContent(text, 300))
	}
}

func TestSampleContent_BoundedAndMarked(t *testing.T) {
	markerText := len(markerStart) + len(markerMiddle) + len(markerEnd) + 16

	for _, size := range []int{301, 1000, 12345, 90000} {
		text := strings.Repeat("x", size)
		out := SampleContent(text, 300)

		assert.Contains(t, out, markerStart)
		assert.Contains(t, out, markerMiddle)
		assert.Contains(t, out, markerEnd)
		assert.LessOrEqual(t, utf8.RuneCountInString(out), 300+markerText, "size %d", size)
	}
}

// 开头、中间、结尾三段分别来自原文对应位置
func TestSampleContent_TakesThreeRegions(t *testing.T) {
	text := strings.Repeat("A", 1000) + strings.Repeat("M", 1000) + strings.Repeat("Z", 1000)
	out := SampleContent(text, 300)

	parts := strings.Split(out, "\n\n")
	assert.Len(t, parts, 3)
	assert.Equal(t, markerStart+"\n"+strings.Repeat("A", 100), parts[0])
	assert.Equal(t, markerMiddle+"\n"+strings.Repeat("M", 100), parts[1])
	assert.Equal(t, markerEnd+"\n"+strings.Repeat("Z", 100), parts[2])
}

// 按字符而不是字节计数，多字节文本不会被截断成非法 UTF-8
func TestSampleContent_CountsRunes(t *testing.T) {
	text := strings.Repeat("剧", 200)
	assert.Equal(t, text, SampleContent(text, 200))

	out := SampleContent(strings.Repeat("剧", 201), 200)
	assert.True(t, utf8.ValidString(out))
	assert.Contains(t, out, markerMiddle)
}
