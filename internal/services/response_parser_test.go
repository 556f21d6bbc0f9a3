package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Corphon/StoryForge/internal/errors"
)

func TestExtractPayload(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"json fence", "Sure!\n```json\n{\"a\":1}\n```\nbye", `{"a":1}`},
		{"bare fence", "```\n{\"a\":2}\n```", `{"a":2}`},
		{"first fence wins", "```json\n{\"a\":3}\n```\n```json\n{\"a\":4}\n```", `{"a":3}`},
		{"no fence", "  {\"a\":5}\n", `{"a":5}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractPayload(tc.raw))
		})
	}
}

const validAnalysisJSON = `{
  "narrativeVoice": {"perspective": "first person", "tone": ["wry"], "pacing": "brisk", "dialogueStyle": "overlapping"},
  "characterPatterns": {"archetypes": ["the mentor"]},
  "storyStructure": {"actBreakdown": ["setup", "turn", "payoff"]},
  "visualSuggestions": {"colorPalette": ["teal"]},
  "signatureElements": {"recurringThemes": ["family"]},
  "promptTemplates": {"climax": "a rooftop at dawn"},
  "sampleExcerpts": ["You talkin' to me?"]
}`

func TestParseAnalysis_Valid(t *testing.T) {
	a, err := ParseAnalysis("Here you go:\n```json\n" + validAnalysisJSON + "\n```")
	require.NoError(t, err)
	assert.Equal(t, "first person", a.NarrativeVoice.Perspective)
	assert.Equal(t, []string{"You talkin' to me?"}, a.SampleExcerpts)
	assert.Equal(t, "a rooftop at dawn", a.PromptTemplates.Climax)
}

// 整个 JSON 被当作字符串返回时拆一层
func TestParseAnalysis_QuotedPayload(t *testing.T) {
	quoted := `"{\"narrativeVoice\":{},\"characterPatterns\":{},\"storyStructure\":{},\"visualSuggestions\":{},\"signatureElements\":{},\"promptTemplates\":{},\"sampleExcerpts\":[\"x\"]}"`
	a, err := ParseAnalysis(quoted)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, a.SampleExcerpts)
}

func TestParseAnalysis_MissingGroup(t *testing.T) {
	_, err := ParseAnalysis(`{"narrativeVoice": {}, "sampleExcerpts": ["x"]}`)
	require.Error(t, err)
	assert.True(t, apperrors.IsAnalysisParseError(err))
	assert.Contains(t, err.Error(), "characterPatterns")
}

func TestParseAnalysis_FreeText(t *testing.T) {
	_, err := ParseAnalysis("I'm sorry, I cannot analyze this script.")
	require.Error(t, err)
	assert.True(t, apperrors.IsAnalysisParseError(err))
}

func TestParseOutline_Validation(t *testing.T) {
	cases := map[string]string{
		"no title":  `{"acts": [{"actNumber": 1}], "visualGuide": {}}`,
		"no acts":   `{"title": "T", "acts": [], "visualGuide": {}}`,
		"no guide":  `{"title": "T", "acts": [{"actNumber": 1}]}`,
		"free text": "Once upon a time...",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseOutline(raw)
			require.Error(t, err)
			assert.True(t, apperrors.IsOutlineParseError(err))
		})
	}

	o, err := ParseOutline(`{"title": "T", "acts": [{"actNumber": 1, "scenes": [{"sceneNumber": 1}]}], "visualGuide": {"promptPrefix": "p"}}`)
	require.NoError(t, err)
	assert.Equal(t, "p", o.VisualGuide.PromptPrefix)
	assert.Equal(t, 1, o.SceneCount())
}

func TestParseScenePrompts(t *testing.T) {
	set, err := ParseScenePrompts(`{"imagePrompt": "a", "videoPrompt": "b", "endFramePrompt": "c"}`)
	require.NoError(t, err)
	assert.Equal(t, "a", set.ImagePrompt)

	_, err = ParseScenePrompts(`{"imagePrompt": "a", "videoPrompt": "  ", "endFramePrompt": "c"}`)
	require.Error(t, err)
	assert.True(t, apperrors.IsScenePromptParseError(err))
	assert.Contains(t, err.Error(), "videoPrompt")
}
