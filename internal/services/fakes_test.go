package services

import (
	"context"
	"sync"
	"time"

	"github.com/Corphon/StoryForge/internal/llm"
	"github.com/Corphon/StoryForge/internal/models"
	"github.com/Corphon/StoryForge/internal/utils"
)

// memoryStore 记录写入次数的内存后端
type memoryStore struct {
	mu      sync.Mutex
	saved   []*models.ScriptAnalysis
	preload []*models.ScriptAnalysis
	saveErr error
	loadErr error
}

func (s *memoryStore) Name() string { return "memory" }

func (s *memoryStore) LoadAll(ctx context.Context) ([]*models.ScriptAnalysis, error) {
	return s.preload, s.loadErr
}

func (s *memoryStore) Save(ctx context.Context, a *models.ScriptAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, a)
	return nil
}

func (s *memoryStore) saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

// fixedLookup 风格目录桩：只认识一个类型片、一个导演、一个摄影指导
type fixedLookup struct {
	prefix string
}

func (l fixedLookup) GenreGuide(name string) (models.GenreGuide, bool) {
	if name != "noir" {
		return models.GenreGuide{}, false
	}
	return models.GenreGuide{
		Key:          "noir",
		Name:         "Noir",
		Conventions:  []string{"moral ambiguity", "femme fatale", "voice-over", "rain"},
		ColorPalette: []string{"black", "white", "grey", "amber", "smoke", "steel"},
		Lighting:     "hard low-key",
	}, true
}

func (l fixedLookup) DirectorStyle(key string) (models.DirectorStyle, bool) {
	if key != "polanski" {
		return models.DirectorStyle{}, false
	}
	return models.DirectorStyle{Key: "polanski", Name: "Roman Polanski", Signature: []string{"claustrophobic framing"}}, true
}

func (l fixedLookup) CinematographerStyle(key string) (models.CinematographerStyle, bool) {
	if key != "alonzo" {
		return models.CinematographerStyle{}, false
	}
	return models.CinematographerStyle{Key: "alonzo", Name: "John A. Alonzo", Keywords: []string{"anamorphic", "sunlit"}}, true
}

func (l fixedLookup) BuildStylePrefix(genre, directorKey, cinematographerKey string) string {
	return l.prefix
}

func sampleAnalysis(title string) *models.ScriptAnalysis {
	return &models.ScriptAnalysis{
		Title: title,
		NarrativeVoice: models.NarrativeVoice{
			Tone:   []string{"weary", "sardonic", "melancholic", "bitter"},
			Pacing: "slow burn",
		},
		CharacterPatterns: models.CharacterPatterns{Archetypes: []string{"fallen investigator"}},
		SampleExcerpts:    []string{"Forget it, Jake.", "She's my sister.", "Third line."},
	}
}

// scriptedProvider 按顺序返回预设回复，最后一条重复使用
type scriptedProvider struct {
	mu      sync.Mutex
	name    string
	replies []string
	err     error
	calls   int
	lastReq llm.CompletionRequest
}

func (p *scriptedProvider) Initialize(config map[string]string) error { return nil }
func (p *scriptedProvider) GetName() string                            { return p.name }
func (p *scriptedProvider) GetSupportedModels() []string               { return []string{"scripted-1"} }

func (p *scriptedProvider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastReq = req
	if p.err != nil {
		return nil, p.err
	}
	i := p.calls - 1
	if i >= len(p.replies) {
		i = len(p.replies) - 1
	}
	return &llm.CompletionResponse{Text: p.replies[i]}, nil
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *scriptedProvider) request() llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastReq
}

func newScriptedService(mode models.ContentMode, p *scriptedProvider, cacheSize int) *LLMService {
	return NewLLMService(mode, p.name, p, "", LLMServiceOptions{
		CacheSize: cacheSize,
		CacheTTL:  time.Minute,
		Logger:    utils.NewNopLogger(),
		Metrics:   utils.NewPipelineMetrics(utils.NewMetricsCollector(), utils.NewNopLogger()),
	})
}
