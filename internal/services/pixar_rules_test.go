package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/StoryForge/internal/models"
)

func ruleNumbers(rules []models.PixarRule) []int {
	out := make([]int, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.Number)
	}
	return out
}

func TestPixarRules_OrderedCatalog(t *testing.T) {
	rules := PixarRules()
	require.Len(t, rules, 22)
	for i, r := range rules {
		assert.Equal(t, i+1, r.Number)
		assert.NotEmpty(t, r.Label)
		assert.NotEmpty(t, r.Text)
	}
}

// 没有任何关键词时返回完整规则表，顺序不变
func TestSelectRules_FallbackToFullCatalog(t *testing.T) {
	got := SelectRules("A lighthouse keeper adopts a seagull.", PixarRules())

	want := make([]int, 22)
	for i := range want {
		want[i] = i + 1
	}
	assert.Equal(t, want, ruleNumbers(got))
}

func TestSelectRules_StuckOnStructure(t *testing.T) {
	got := ruleNumbers(SelectRules("I'm stuck on the structure of act two", PixarRules()))

	assert.Equal(t, []int{4, 5, 7, 19, 22, 8, 9, 11, 12, 17}, got)
}

// 多个类别共享的规则保留重复
func TestSelectRules_KeepsDuplicates(t *testing.T) {
	got := ruleNumbers(SelectRules("The HERO faces impossible STAKES", PixarRules()))

	assert.Equal(t, []int{1, 6, 13, 15, 21, 6, 16, 19}, got)
}

func TestSelectRules_SingleCategoryAboveThreshold(t *testing.T) {
	got := ruleNumbers(SelectRules("What is the theme?", PixarRules()))
	assert.Equal(t, []int{3, 14, 22}, got)
}

func TestSelectRules_BelowThresholdFallsBack(t *testing.T) {
	short := PixarRules()[:2]
	got := SelectRules("the ending", short)
	assert.Equal(t, []int{1, 2}, ruleNumbers(got))
}

func TestSituationText(t *testing.T) {
	req := &models.StoryGenerationRequest{Concept: "A heist", CustomConstraints: []string{"no villain", "PG"}}
	assert.Equal(t, "A heist\nno villain\nPG", situationText(req))
}
