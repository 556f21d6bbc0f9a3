// internal/services/prompt_builder.go
package services

import (
	"fmt"
	"strings"

	"github.com/Corphon/StoryForge/internal/models"
)

// 三种请求的采样参数
const (
	analysisTemperature = 0.3
	analysisMaxTokens   = 6000

	outlineTemperature = 0.9
	outlineMaxTokens   = 8000

	scenePromptTemperature = 0.7
	scenePromptMaxTokens   = 1000
)

// lengthTargets 每种篇幅的幕数和场景数
var lengthTargets = map[models.TargetLength]string{
	models.LengthShort:   "3 acts with 5-10 scenes in total",
	models.LengthMedium:  "3 acts with 15-25 scenes in total",
	models.LengthFeature: "3 acts with 40-60 scenes in total",
}

const analysisSystemPrompt = `You are an expert screenplay analyst. You study scripts and describe their style so that new stories can be written in the same voice.

Respond with a single JSON object inside a ` + "```json" + ` code block, using exactly this schema:
{
  "narrativeVoice": {"perspective": "string", "tone": ["string"], "pacing": "string", "dialogueStyle": "string"},
  "characterPatterns": {"archetypes": ["string"], "relationshipDynamics": ["string"], "growthPatterns": ["string"], "dialogueQuirks": ["string"]},
  "storyStructure": {"actBreakdown": ["string"], "emotionalBeats": ["string"], "conflictTypes": ["string"], "resolutionStyle": "string"},
  "visualSuggestions": {"colorPalette": ["string"], "lightingMoods": ["string"], "cameraStyles": ["string"], "environmentTypes": ["string"]},
  "signatureElements": {"recurringThemes": ["string"], "symbolism": ["string"], "catchphrases": ["string"], "visualMotifs": ["string"]},
  "promptTemplates": {"characterIntro": "string", "actionSequence": "string", "emotionalMoment": "string", "comedyBeat": "string", "climax": "string"},
  "sampleExcerpts": ["3 to 5 short verbatim quotes from the script"]
}
All seven keys are required. Do not add commentary outside the code block.`

const outlinePromptHeader = `You are a story architect who designs story outlines for short films and features.
Write an original story that follows the style references and storytelling rules below.`

const outlineSchema = `Respond with a single JSON object inside a ` + "```json" + ` code block:
{
  "title": "string",
  "logline": "string",
  "genre": "string",
  "acts": [{"actNumber": 1, "title": "string", "emotionalTone": "string", "scenes": [
    {"sceneNumber": 1, "location": "string", "timeOfDay": "string", "description": "string", "emotionalBeat": "string", "characters": ["string"], "visualStyle": "string"}
  ]}],
  "characters": [{"name": "string", "archetype": "string", "description": "string", "arc": "string", "relationships": ["string"], "visualDescription": "string", "dialogueStyle": "string"}],
  "visualGuide": {"overallStyle": "string", "colorPalette": ["string"], "lightingApproach": "string", "cameraStyle": "string", "promptPrefix": "string", "negativePrompt": "string"}
}
Number scenes continuously across acts. Do not add commentary outside the code block.`

const scenePromptSystemPrompt = `You are a shot prompt designer for image and video generation models.
Given one scene of a story and its visual guide, write three prompts:
- imagePrompt: the opening frame as a still image
- videoPrompt: the motion and camera movement within the shot
- endFramePrompt: the final frame of the shot

Respond with a single JSON object: {"imagePrompt": "string", "videoPrompt": "string", "endFramePrompt": "string", "negativePrompt": "string"}
Keep each prompt under 80 words. Do not repeat the style prefix; it is added afterwards.`

// PromptBuilder 组装三种请求的提示词
type PromptBuilder struct{}

// Analysis 剧本分析请求。sample 是已经采样过的剧本文本
func (PromptBuilder) Analysis(title, genre, sample string) Invocation {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", title)
	if genre != "" {
		fmt.Fprintf(&b, "Genre: %s\n", genre)
	}
	b.WriteString("\nAnalyze the writing style of this script.\n\n")
	b.WriteString(sample)

	return Invocation{
		Prompt:       b.String(),
		SystemPrompt: analysisSystemPrompt,
		Temperature:  analysisTemperature,
		MaxTokens:    analysisMaxTokens,
	}
}

// Outline 大纲请求。风格上下文、规则和篇幅写进系统提示词
func (PromptBuilder) Outline(req *models.StoryGenerationRequest, sc StyleContext) Invocation {
	var sys strings.Builder
	sys.WriteString(outlinePromptHeader)
	sys.WriteString("\n\n")
	if sc.TextBlock != "" {
		sys.WriteString(sc.TextBlock)
		sys.WriteString("\n\n")
	}
	fmt.Fprintf(&sys, "LENGTH: %s.\n", lengthTargets[req.TargetLength])
	if sc.PromptPrefix != "" {
		fmt.Fprintf(&sys, "The visual style prefix %q is applied to every prompt; write a visualGuide.promptPrefix that complements it.\n", sc.PromptPrefix)
	}
	sys.WriteString("\n")
	sys.WriteString(outlineSchema)

	var b strings.Builder
	fmt.Fprintf(&b, "Concept: %s\n", req.Concept)
	if req.TargetGenre != "" {
		fmt.Fprintf(&b, "Genre: %s\n", req.TargetGenre)
	}
	if len(req.CustomConstraints) > 0 {
		b.WriteString("Constraints:\n")
		for _, c := range req.CustomConstraints {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}

	return Invocation{
		Prompt:       b.String(),
		SystemPrompt: sys.String(),
		Temperature:  outlineTemperature,
		MaxTokens:    outlineMaxTokens,
	}
}

// ScenePrompts 单场景提示词请求。analysisLines 可为空
func (PromptBuilder) ScenePrompts(scene models.SceneOutline, guide models.VisualGuide, analysisLines string) Invocation {
	var b strings.Builder
	b.WriteString("SCENE\n")
	fmt.Fprintf(&b, "- Location: %s\n", scene.Location)
	fmt.Fprintf(&b, "- Time of day: %s\n", scene.TimeOfDay)
	fmt.Fprintf(&b, "- Description: %s\n", scene.Description)
	fmt.Fprintf(&b, "- Emotional beat: %s\n", scene.EmotionalBeat)
	if len(scene.Characters) > 0 {
		fmt.Fprintf(&b, "- Characters: %s\n", strings.Join(scene.Characters, ", "))
	}
	if scene.VisualStyle != "" {
		fmt.Fprintf(&b, "- Visual style: %s\n", scene.VisualStyle)
	}

	b.WriteString("\nVISUAL GUIDE\n")
	writeField(&b, "Overall style", guide.OverallStyle)
	writeList(&b, "Colour palette", guide.ColorPalette, len(guide.ColorPalette))
	writeField(&b, "Lighting", guide.LightingApproach)
	writeField(&b, "Camera", guide.CameraStyle)

	if analysisLines != "" {
		b.WriteString("\n")
		b.WriteString(analysisLines)
		b.WriteString("\n")
	}

	return Invocation{
		Prompt:       b.String(),
		SystemPrompt: scenePromptSystemPrompt,
		Temperature:  scenePromptTemperature,
		MaxTokens:    scenePromptMaxTokens,
		Cacheable:    true,
	}
}
