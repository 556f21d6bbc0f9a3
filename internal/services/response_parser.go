// internal/services/response_parser.go
package services

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	apperrors "github.com/Corphon/StoryForge/internal/errors"
	"github.com/Corphon/StoryForge/internal/models"
)

// 第一个 ```json 或 ``` 代码块
var fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?[ \\t]*\\r?\\n?(.*?)```")

// ExtractPayload 有代码块时取第一个代码块的内容，否则取去掉首尾空白的原文
func ExtractPayload(raw string) string {
	if m := fencePattern.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

// decodePayload 部分模型会把整个 JSON 作为字符串返回，这里拆一层
func decodePayload(payload string, v interface{}) error {
	payload = strings.TrimPrefix(payload, "\ufeff")
	err := json.Unmarshal([]byte(payload), v)
	if err == nil {
		return nil
	}
	if strings.HasPrefix(payload, `"`) {
		var inner string
		if json.Unmarshal([]byte(payload), &inner) == nil {
			return json.Unmarshal([]byte(strings.TrimSpace(inner)), v)
		}
	}
	return err
}

type analysisWire struct {
	NarrativeVoice    *models.NarrativeVoice    `json:"narrativeVoice"`
	CharacterPatterns *models.CharacterPatterns `json:"characterPatterns"`
	StoryStructure    *models.StoryStructure    `json:"storyStructure"`
	VisualSuggestions *models.VisualSuggestions `json:"visualSuggestions"`
	SignatureElements *models.SignatureElements `json:"signatureElements"`
	PromptTemplates   *models.PromptTemplates   `json:"promptTemplates"`
	SampleExcerpts    []string                  `json:"sampleExcerpts"`
}

// ParseAnalysis 六个分组和 sampleExcerpts 缺一不可。title/genre/analyzedAt 由调用方补
func ParseAnalysis(raw string) (*models.ScriptAnalysis, error) {
	var w analysisWire
	if err := decodePayload(ExtractPayload(raw), &w); err != nil {
		return nil, apperrors.NewAnalysisParseError("script analysis response is not valid JSON", err)
	}

	var missing []string
	if w.NarrativeVoice == nil {
		missing = append(missing, "narrativeVoice")
	}
	if w.CharacterPatterns == nil {
		missing = append(missing, "characterPatterns")
	}
	if w.StoryStructure == nil {
		missing = append(missing, "storyStructure")
	}
	if w.VisualSuggestions == nil {
		missing = append(missing, "visualSuggestions")
	}
	if w.SignatureElements == nil {
		missing = append(missing, "signatureElements")
	}
	if w.PromptTemplates == nil {
		missing = append(missing, "promptTemplates")
	}
	if len(w.SampleExcerpts) == 0 {
		missing = append(missing, "sampleExcerpts")
	}
	if len(missing) > 0 {
		return nil, apperrors.NewAnalysisParseError(
			fmt.Sprintf("script analysis response missing %s", strings.Join(missing, ", ")), nil)
	}

	return &models.ScriptAnalysis{
		NarrativeVoice:    *w.NarrativeVoice,
		CharacterPatterns: *w.CharacterPatterns,
		StoryStructure:    *w.StoryStructure,
		VisualSuggestions: *w.VisualSuggestions,
		SignatureElements: *w.SignatureElements,
		PromptTemplates:   *w.PromptTemplates,
		SampleExcerpts:    w.SampleExcerpts,
	}, nil
}

type outlineWire struct {
	Title             string                    `json:"title"`
	Logline           string                    `json:"logline"`
	Genre             string                    `json:"genre"`
	StyleInfluences   []string                  `json:"styleInfluences"`
	Acts              []models.ActOutline       `json:"acts"`
	Characters        []models.CharacterOutline `json:"characters"`
	VisualGuide       *models.VisualGuide       `json:"visualGuide"`
	PixarRulesApplied []string                  `json:"pixarRulesApplied"`
}

// ParseOutline 需要标题、至少一幕和 visualGuide
func ParseOutline(raw string) (*models.GeneratedStoryOutline, error) {
	var w outlineWire
	if err := decodePayload(ExtractPayload(raw), &w); err != nil {
		return nil, apperrors.NewOutlineParseError("story outline response is not valid JSON", err)
	}

	switch {
	case strings.TrimSpace(w.Title) == "":
		return nil, apperrors.NewOutlineParseError("story outline response missing title", nil)
	case len(w.Acts) == 0:
		return nil, apperrors.NewOutlineParseError("story outline response has no acts", nil)
	case w.VisualGuide == nil:
		return nil, apperrors.NewOutlineParseError("story outline response missing visualGuide", nil)
	}

	return &models.GeneratedStoryOutline{
		Title:             w.Title,
		Logline:           w.Logline,
		Genre:             w.Genre,
		StyleInfluences:   w.StyleInfluences,
		Acts:              w.Acts,
		Characters:        w.Characters,
		VisualGuide:       *w.VisualGuide,
		PixarRulesApplied: w.PixarRulesApplied,
	}, nil
}

// ParseScenePrompts 三个提示词都不能为空
func ParseScenePrompts(raw string) (*models.ScenePromptSet, error) {
	var set models.ScenePromptSet
	if err := decodePayload(ExtractPayload(raw), &set); err != nil {
		return nil, apperrors.NewScenePromptParseError("scene prompt response is not valid JSON", err)
	}

	var missing []string
	if strings.TrimSpace(set.ImagePrompt) == "" {
		missing = append(missing, "imagePrompt")
	}
	if strings.TrimSpace(set.VideoPrompt) == "" {
		missing = append(missing, "videoPrompt")
	}
	if strings.TrimSpace(set.EndFramePrompt) == "" {
		missing = append(missing, "endFramePrompt")
	}
	if len(missing) > 0 {
		return nil, apperrors.NewScenePromptParseError(
			fmt.Sprintf("scene prompt response missing %s", strings.Join(missing, ", ")), nil)
	}
	return &set, nil
}
