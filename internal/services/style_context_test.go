package services

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/StoryForge/internal/models"
)

func boolPtr(b bool) *bool { return &b }

func TestBuildContext_ResolutionOrder(t *testing.T) {
	cache := NewAnalysisCache(nil, nilLogger(), nil)
	cache.Put(t.Context(), sampleAnalysis("Chinatown"))

	agg := NewStyleAggregator(fixedLookup{prefix: "noir style,"}, cache, 0)
	sc := agg.BuildContext(&models.StoryGenerationRequest{
		Concept:              "A detective is stuck in a water scandal",
		TargetGenre:          "noir",
		ScriptStyleReference: "CHINATOWN",
		DirectorStyle:        "polanski",
		CinematographerStyle: "alonzo",
	})

	assert.Equal(t, []string{"Chinatown", "Noir", "Roman Polanski", "John A. Alonzo"}, sc.Influences)
	require.NotNil(t, sc.Director)
	assert.Equal(t, "Roman Polanski", sc.Director.Name)
	assert.Equal(t, "noir style,", sc.PromptPrefix)

	order := []string{"SCRIPT STYLE REFERENCE", "GENRE: Noir", "DIRECTOR STYLE", "CINEMATOGRAPHY", "STORYTELLING RULES"}
	last := -1
	for _, h := range order {
		i := strings.Index(sc.TextBlock, h)
		require.GreaterOrEqual(t, i, 0, h)
		assert.Greater(t, i, last, h)
		last = i
	}

	// "stuck" 命中写作瓶颈类别
	assert.Equal(t, []string{"Rule 8: Finish and let go", "Rule 9: List what wouldn't happen",
		"Rule 11: Put it on paper", "Rule 12: Discard the obvious", "Rule 17: Nothing is wasted"}, sc.AppliedRules)
}

// 预览条目有上限
func TestBuildContext_BoundedPreviews(t *testing.T) {
	cache := NewAnalysisCache(nil, nilLogger(), nil)
	cache.Put(t.Context(), sampleAnalysis("Chinatown"))

	sc := NewStyleAggregator(fixedLookup{}, cache, 0).BuildContext(&models.StoryGenerationRequest{
		Concept:              "x",
		TargetGenre:          "noir",
		ScriptStyleReference: "chinatown",
		IncludePixarRules:    boolPtr(false),
	})

	assert.Contains(t, sc.TextBlock, "Conventions: moral ambiguity, femme fatale, voice-over\n")
	assert.NotContains(t, sc.TextBlock, "rain")
	assert.Contains(t, sc.TextBlock, "Colour palette: black, white, grey, amber, smoke\n")
	assert.NotContains(t, sc.TextBlock, "steel")
	assert.Contains(t, sc.TextBlock, "Tone: weary, sardonic, melancholic\n")
	assert.NotContains(t, sc.TextBlock, "Third line.")
}

func TestBuildContext_MissingSourcesSkipped(t *testing.T) {
	agg := NewStyleAggregator(fixedLookup{}, NewAnalysisCache(nil, nilLogger(), nil), 0)
	sc := agg.BuildContext(&models.StoryGenerationRequest{
		Concept:              "A quiet story",
		TargetGenre:          "opera",
		ScriptStyleReference: "Unknown Script",
		DirectorStyle:        "nobody",
		CinematographerStyle: "nobody",
		IncludePixarRules:    boolPtr(false),
	})

	assert.Empty(t, sc.Influences)
	assert.Nil(t, sc.Director)
	assert.Empty(t, sc.AppliedRules)
	assert.Empty(t, sc.TextBlock)
}

func TestBuildContext_RulesFallbackToFullCatalog(t *testing.T) {
	agg := NewStyleAggregator(fixedLookup{}, nil, 0)
	sc := agg.BuildContext(&models.StoryGenerationRequest{Concept: "A lighthouse keeper adopts a seagull"})

	require.Len(t, sc.AppliedRules, 22)
	assert.Equal(t, "Rule 1: Admire the trying", sc.AppliedRules[0])
}

func TestBuildContext_TruncatesAtLineBoundary(t *testing.T) {
	agg := NewStyleAggregator(fixedLookup{}, nil, 200)
	sc := agg.BuildContext(&models.StoryGenerationRequest{Concept: "nothing matches here"})

	assert.LessOrEqual(t, utf8.RuneCountInString(sc.TextBlock), 200)
	assert.True(t, strings.HasSuffix(sc.TextBlock, "\n"+styleTruncatedMarker))
	for _, line := range strings.Split(strings.TrimSuffix(sc.TextBlock, "\n"+styleTruncatedMarker), "\n") {
		assert.True(t, line == "STORYTELLING RULES TO APPLY:" || strings.HasPrefix(line, "- Rule "), line)
	}
}

func TestTruncateAtLine_ShortTextUnchanged(t *testing.T) {
	assert.Equal(t, "a\nb", truncateAtLine("a\nb", 10))
}
