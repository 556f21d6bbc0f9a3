// internal/models/script_analysis.go
package models

import (
	"strings"
	"time"
)

// ScriptAnalysis 一部剧本的风格分析结果。按标题缓存，写入后不再修改
type ScriptAnalysis struct {
	Title             string            `json:"title"`
	Genre             string            `json:"genre"`
	SubGenres         []string          `json:"subGenres"`
	NarrativeVoice    NarrativeVoice    `json:"narrativeVoice"`
	CharacterPatterns CharacterPatterns `json:"characterPatterns"`
	StoryStructure    StoryStructure    `json:"storyStructure"`
	VisualSuggestions VisualSuggestions `json:"visualSuggestions"`
	SignatureElements SignatureElements `json:"signatureElements"`
	PromptTemplates   PromptTemplates   `json:"promptTemplates"`
	SampleExcerpts    []string          `json:"sampleExcerpts"` // 3-5 条原文引用
	AnalyzedAt        time.Time         `json:"analyzedAt"`
}

type NarrativeVoice struct {
	Perspective   string   `json:"perspective"`
	Tone          []string `json:"tone"`
	Pacing        string   `json:"pacing"`
	DialogueStyle string   `json:"dialogueStyle"`
}

type CharacterPatterns struct {
	Archetypes           []string `json:"archetypes"`
	RelationshipDynamics []string `json:"relationshipDynamics"`
	GrowthPatterns       []string `json:"growthPatterns"`
	DialogueQuirks       []string `json:"dialogueQuirks"`
}

type StoryStructure struct {
	ActBreakdown    []string `json:"actBreakdown"`
	EmotionalBeats  []string `json:"emotionalBeats"`
	ConflictTypes   []string `json:"conflictTypes"`
	ResolutionStyle string   `json:"resolutionStyle"`
}

type VisualSuggestions struct {
	ColorPalette     []string `json:"colorPalette"`
	LightingMoods    []string `json:"lightingMoods"`
	CameraStyles     []string `json:"cameraStyles"`
	EnvironmentTypes []string `json:"environmentTypes"`
}

type SignatureElements struct {
	RecurringThemes []string `json:"recurringThemes"`
	Symbolism       []string `json:"symbolism"`
	Catchphrases    []string `json:"catchphrases"`
	VisualMotifs    []string `json:"visualMotifs"`
}

// PromptTemplates 五个命名模板
type PromptTemplates struct {
	CharacterIntro  string `json:"characterIntro"`
	ActionSequence  string `json:"actionSequence"`
	EmotionalMoment string `json:"emotionalMoment"`
	ComedyBeat      string `json:"comedyBeat"`
	Climax          string `json:"climax"`
}

// NormalizeTitle 缓存键：去掉首尾空白并转小写
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// CacheKey 本条分析的缓存键
func (a *ScriptAnalysis) CacheKey() string {
	return NormalizeTitle(a.Title)
}
