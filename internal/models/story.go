// internal/models/story.go
package models

import (
	"fmt"
	"strings"
)

// TargetLength 目标篇幅
type TargetLength string

const (
	LengthShort   TargetLength = "short"
	LengthMedium  TargetLength = "medium"
	LengthFeature TargetLength = "feature"
)

// Valid 是否为已知篇幅
func (l TargetLength) Valid() bool {
	switch l {
	case LengthShort, LengthMedium, LengthFeature:
		return true
	}
	return false
}

// StoryGenerationRequest 生成故事大纲的输入，只在一次请求内有效
type StoryGenerationRequest struct {
	Concept              string       `json:"concept"`
	TargetGenre          string       `json:"targetGenre"`
	ScriptStyleReference string       `json:"scriptStyleReference,omitempty"`
	DirectorStyle        string       `json:"directorStyle,omitempty"`
	CinematographerStyle string       `json:"cinematographerStyle,omitempty"`
	TargetLength         TargetLength `json:"targetLength"`
	IncludePixarRules    *bool        `json:"includePixarRules,omitempty"` // nil 视为 true
	CustomConstraints    []string     `json:"customConstraints,omitempty"`
}

// WantsPixarRules 只有显式传 false 才关闭
func (r *StoryGenerationRequest) WantsPixarRules() bool {
	return r.IncludePixarRules == nil || *r.IncludePixarRules
}

// Validate 检查请求的必填项
func (r *StoryGenerationRequest) Validate() error {
	if strings.TrimSpace(r.Concept) == "" {
		return fmt.Errorf("concept is required")
	}
	if r.TargetLength == "" {
		r.TargetLength = LengthShort
	}
	if !r.TargetLength.Valid() {
		return fmt.Errorf("targetLength must be one of short, medium, feature")
	}
	return nil
}

// GeneratedStoryOutline 模型生成并经过后处理的故事大纲
type GeneratedStoryOutline struct {
	Title             string             `json:"title"`
	Logline           string             `json:"logline"`
	Genre             string             `json:"genre"`
	StyleInfluences   []string           `json:"styleInfluences"`
	Acts              []ActOutline       `json:"acts"`
	Characters        []CharacterOutline `json:"characters"`
	VisualGuide       VisualGuide        `json:"visualGuide"`
	PixarRulesApplied []string           `json:"pixarRulesApplied"`
}

type ActOutline struct {
	ActNumber     int            `json:"actNumber"` // 从 1 开始
	Title         string         `json:"title"`
	EmotionalTone string         `json:"emotionalTone"`
	Scenes        []SceneOutline `json:"scenes"`
}

type SceneOutline struct {
	SceneNumber   int      `json:"sceneNumber"`
	Location      string   `json:"location"`
	TimeOfDay     string   `json:"timeOfDay"`
	Description   string   `json:"description"`
	EmotionalBeat string   `json:"emotionalBeat"`
	Characters    []string `json:"characters"`
	VisualStyle   string   `json:"visualStyle"`
}

type CharacterOutline struct {
	Name              string   `json:"name"`
	Archetype         string   `json:"archetype"`
	Description       string   `json:"description"`
	Arc               string   `json:"arc"`
	Relationships     []string `json:"relationships"`
	VisualDescription string   `json:"visualDescription"`
	DialogueStyle     string   `json:"dialogueStyle"`
}

// VisualGuide 大纲或场景附带的视觉规范
type VisualGuide struct {
	OverallStyle     string   `json:"overallStyle"`
	ColorPalette     []string `json:"colorPalette"`
	LightingApproach string   `json:"lightingApproach"`
	CameraStyle      string   `json:"cameraStyle"`
	PromptPrefix     string   `json:"promptPrefix"`
	NegativePrompt   string   `json:"negativePrompt"`
}

// ScenePromptSet 单个场景的图像/视频/尾帧提示词
type ScenePromptSet struct {
	ImagePrompt    string `json:"imagePrompt"`
	VideoPrompt    string `json:"videoPrompt"`
	EndFramePrompt string `json:"endFramePrompt"`
	NegativePrompt string `json:"negativePrompt"`
}

// ScenePromptBundle 批量生成时按幕和场景编号归档
type ScenePromptBundle struct {
	ActNumber   int            `json:"actNumber"`
	SceneNumber int            `json:"sceneNumber"`
	Prompts     ScenePromptSet `json:"prompts"`
}

// SceneCount 大纲中全部场景数
func (o *GeneratedStoryOutline) SceneCount() int {
	n := 0
	for _, act := range o.Acts {
		n += len(act.Scenes)
	}
	return n
}
