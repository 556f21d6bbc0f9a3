// internal/llm/providers/mock/mock.go
package mock

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/Corphon/StoryForge/internal/llm"
)

func init() {
	llm.Register("mock", func() llm.Provider { return &Provider{} })
}

// Provider 离线演示用：按系统提示词判断请求种类，返回固定的 JSON 回复。
// 不访问网络，也不需要 API 密钥
type Provider struct {
	label string
	calls atomic.Int64
}

func (p *Provider) Initialize(config map[string]string) error {
	p.label = config["label"]
	return nil
}

func (p *Provider) GetName() string {
	if p.label != "" {
		return "Mock(" + p.label + ")"
	}
	return "Mock"
}

func (p *Provider) GetSupportedModels() []string { return []string{"mock-1"} }

// Calls 已处理的请求数
func (p *Provider) Calls() int64 { return p.calls.Load() }

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.calls.Add(1)

	sys := strings.ToLower(req.SystemPrompt)
	var text string
	switch {
	case strings.Contains(sys, "screenplay analyst"):
		text = analysisReply
	case strings.Contains(sys, "story architect"):
		text = outlineReply
	case strings.Contains(sys, "shot prompt designer"):
		text = scenePromptReply
	default:
		text = "I can only help with script analysis, outlines and scene prompts."
	}

	return &llm.CompletionResponse{
		Text:         text,
		FinishReason: "stop",
		ModelName:    "mock-1",
		ProviderName: p.GetName(),
	}, nil
}

const analysisReply = "Here is the breakdown you asked for.\n\n```json\n" + `{
  "narrativeVoice": {"perspective": "close third person on the detective", "tone": ["weary", "sardonic", "melancholic"], "pacing": "slow burn with sudden violence", "dialogueStyle": "clipped, evasive, full of double meanings"},
  "characterPatterns": {"archetypes": ["fallen investigator", "fatal client", "corrupt patriarch"], "relationshipDynamics": ["trust traded for information"], "growthPatterns": ["idealism eroded by truth"], "dialogueQuirks": ["answers questions with questions"]},
  "storyStructure": {"actBreakdown": ["hired for a simple job", "the job is a cover", "the truth costs everything"], "emotionalBeats": ["curiosity", "attraction", "betrayal", "despair"], "conflictTypes": ["person vs system"], "resolutionStyle": "bleak and unresolved"},
  "visualSuggestions": {"colorPalette": ["amber", "sepia", "shadow black", "dusty blue"], "lightingMoods": ["low-key interiors", "bleached daylight"], "cameraStyles": ["slow push-ins", "framing through windows"], "environmentTypes": ["reservoirs", "orange groves", "cramped offices"]},
  "signatureElements": {"recurringThemes": ["water as power", "the past repeats"], "symbolism": ["broken glasses"], "catchphrases": ["forget it"], "visualMotifs": ["eyes and lenses"]},
  "promptTemplates": {"characterIntro": "{name} steps out of the glare, hat low, {trait}", "actionSequence": "sudden violence in a quiet place, {action}", "emotionalMoment": "a confession half-lit by a desk lamp", "comedyBeat": "a dry aside that lands too late", "climax": "everything collapses in one night street"},
  "sampleExcerpts": ["Forget it, Jake.", "She's my sister and my daughter.", "You may think you know what you're dealing with."]
}` + "\n```\n"

const outlineReply = "```json\n" + `{
  "title": "The Reservoir Ledger",
  "logline": "A disgraced hydrologist uncovers the town's water deal and must decide who drowns with it.",
  "genre": "",
  "styleInfluences": ["ignored"],
  "acts": [
    {"actNumber": 1, "title": "Dry Season", "emotionalTone": "uneasy", "scenes": [
      {"sceneNumber": 1, "location": "County water office", "timeOfDay": "noon", "description": "Mara is hired to audit a reservoir that shows impossible readings.", "emotionalBeat": "curiosity", "characters": ["Mara", "Clerk Ames"], "visualStyle": "bleached daylight through blinds"},
      {"sceneNumber": 2, "location": "Dry riverbed", "timeOfDay": "dusk", "description": "She finds fresh tire tracks leading to a sealed valve.", "emotionalBeat": "dread", "characters": ["Mara"], "visualStyle": "long shadows, amber haze"}
    ]},
    {"actNumber": 2, "title": "Flood Rights", "emotionalTone": "tense", "scenes": [
      {"sceneNumber": 3, "location": "Orange grove mansion", "timeOfDay": "night", "description": "The patriarch offers her a share of the deal.", "emotionalBeat": "temptation", "characters": ["Mara", "Noah Cross"], "visualStyle": "low-key candlelight"}
    ]},
    {"actNumber": 3, "title": "Spillway", "emotionalTone": "tragic", "scenes": [
      {"sceneNumber": 4, "location": "Dam spillway", "timeOfDay": "dawn", "description": "Mara opens the gates and loses the evidence with the water.", "emotionalBeat": "despair", "characters": ["Mara", "Noah Cross"], "visualStyle": "cold blue dawn, roaring water"}
    ]}
  ],
  "characters": [
    {"name": "Mara", "archetype": "fallen investigator", "description": "A hydrologist fired for telling the truth.", "arc": "from cynicism to sacrifice", "relationships": ["distrusts Noah Cross"], "visualDescription": "rolled sleeves, dust on her boots", "dialogueStyle": "dry, precise"}
  ],
  "visualGuide": {"overallStyle": "sun-bleached noir", "colorPalette": ["amber", "dust", "steel blue"], "lightingApproach": "hard sun outside, darkness inside", "cameraStyle": "patient wides, sudden close-ups", "promptPrefix": "sun-bleached california noir,", "negativePrompt": "cartoon, oversaturated"},
  "pixarRulesApplied": ["ignored"]
}` + "\n```"

const scenePromptReply = `{
  "imagePrompt": "a woman in a dusty office reading a ledger, blinds casting stripes, 35mm",
  "videoPrompt": "slow push-in as she turns the page and freezes",
  "endFramePrompt": "close-up of her eyes reflected in the ledger's glass paperweight",
  "negativePrompt": "model supplied negatives are ignored"
}`
