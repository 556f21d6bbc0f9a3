// internal/services/story_service.go
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/Corphon/StoryForge/internal/errors"
	"github.com/Corphon/StoryForge/internal/models"
	"github.com/Corphon/StoryForge/internal/utils"
)

// FallbackNegativePrompt 视觉规范没有给出负面提示词时使用
const FallbackNegativePrompt = "low quality, blurry, distorted"

const defaultBatchConcurrency = 3

// StoryServiceOptions 可选参数，零值使用默认
type StoryServiceOptions struct {
	SampleChars      int
	BatchConcurrency int
	Progress         *ProgressService
	Metrics          *utils.PipelineMetrics
	Logger           *utils.Logger
	Now              func() time.Time
}

// StoryService 剧本分析、大纲生成和场景提示词的统一入口
type StoryService struct {
	registry   *ProviderRegistry
	cache      *AnalysisCache
	aggregator *StyleAggregator
	prompts    PromptBuilder
	progress   *ProgressService
	locks      *LockManager // 同一标题的分析串行执行

	sampleChars int
	batchLimit  int

	logger  *utils.Logger
	metrics *utils.PipelineMetrics
	stats   *StoryServiceMetrics
	now     func() time.Time
}

// NewStoryService 创建故事服务
func NewStoryService(registry *ProviderRegistry, cache *AnalysisCache, aggregator *StyleAggregator, opts StoryServiceOptions) *StoryService {
	if opts.SampleChars <= 0 {
		opts.SampleChars = DefaultScriptSampleChars
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = defaultBatchConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = utils.GetLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = utils.NewPipelineMetrics(nil, opts.Logger)
	}
	if opts.Progress == nil {
		opts.Progress = NewProgressService()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &StoryService{
		registry:    registry,
		cache:       cache,
		aggregator:  aggregator,
		progress:    opts.Progress,
		locks:       NewLockManager(),
		sampleChars: opts.SampleChars,
		batchLimit:  opts.BatchConcurrency,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		stats:       NewStoryServiceMetrics(),
		now:         opts.Now,
	}
}

// Progress 异步任务的进度服务
func (s *StoryService) Progress() *ProgressService { return s.progress }

// Stats 服务级性能指标
func (s *StoryService) Stats() *StoryServiceMetrics { return s.stats }

func validateMode(mode models.ContentMode) error {
	if mode != models.ModeRestricted && mode != models.ModePermissive {
		return apperrors.NewValidationError(fmt.Sprintf("unknown content mode %q", mode), nil)
	}
	return nil
}

// AnalyzeScript 分析剧本风格。同一标题（大小写不敏感）已有分析时直接返回缓存，不调用模型
func (s *StoryService) AnalyzeScript(ctx context.Context, mode models.ContentMode, content, title, genre string) (*models.ScriptAnalysis, error) {
	return s.analyzeScript(ctx, mode, content, title, genre, func(int, string) {})
}

// analyzeScript 在采样、等待模型、解析回复三个阶段调用 report
func (s *StoryService) analyzeScript(ctx context.Context, mode models.ContentMode, content, title, genre string, report func(progress int, stage string)) (_ *models.ScriptAnalysis, err error) {
	if err := validateMode(mode); err != nil {
		return nil, err
	}
	if strings.TrimSpace(title) == "" {
		return nil, apperrors.NewValidationError("title is required", nil)
	}

	if cached, ok := s.cache.Get(title); ok {
		s.metrics.RecordAnalysisLookup(true)
		s.stats.RecordAnalysisLookup(true)
		return cached, nil
	}
	s.metrics.RecordAnalysisLookup(false)
	s.stats.RecordAnalysisLookup(false)

	if strings.TrimSpace(content) == "" {
		return nil, apperrors.NewValidationError("script content is required", nil)
	}

	unlock, err := s.locks.Acquire(ctx, models.NormalizeTitle(title))
	if err != nil {
		return nil, apperrors.NewTimeoutError("waiting for analysis of the same title", err)
	}
	defer unlock()

	// 等锁期间其他请求可能已完成同一标题的分析
	if cached, ok := s.cache.Get(title); ok {
		return cached, nil
	}

	done := s.stats.begin("analyze_script")
	defer func() { done(err) }()

	llmService, err := s.registry.ResolveService(mode)
	if err != nil {
		return nil, err
	}

	report(10, "sampling script")
	sample := SampleContent(content, s.sampleChars)

	report(30, "waiting for model")
	raw, err := llmService.Invoke(ctx, s.prompts.Analysis(title, genre, sample))
	if err != nil {
		return nil, err
	}

	report(80, "parsing model response")
	analysis, err := ParseAnalysis(raw)
	if err != nil {
		s.metrics.RecordParseFailure("analysis")
		s.logger.Error("script analysis parse failed", map[string]interface{}{
			"title":    title,
			"mode":     mode,
			"provider": llmService.GetProviderName(),
			"response": truncateForLog(raw),
			"error":    err,
		})
		return nil, err
	}

	analysis.Title = strings.TrimSpace(title)
	analysis.Genre = genre
	analysis.SubGenres = []string{}
	analysis.AnalyzedAt = s.now().UTC()

	s.cache.Put(ctx, analysis)
	s.logger.Info("script analyzed", map[string]interface{}{
		"title":    analysis.Title,
		"mode":     mode,
		"provider": llmService.GetProviderName(),
	})
	return analysis, nil
}

// AnalyzeScriptAsync 后台分析，立即返回任务跟踪器。任务不随 ctx 取消
func (s *StoryService) AnalyzeScriptAsync(ctx context.Context, mode models.ContentMode, content, title, genre string) (*ProgressTracker, error) {
	if err := validateMode(mode); err != nil {
		return nil, err
	}
	if strings.TrimSpace(title) == "" {
		return nil, apperrors.NewValidationError("title is required", nil)
	}

	tracker := s.progress.NewTask("analysis queued")
	bg := context.WithoutCancel(ctx)

	go func() {
		analysis, err := s.analyzeScript(bg, mode, content, title, genre, tracker.UpdateProgress)
		if err != nil {
			tracker.Fail(err.Error())
			return
		}
		tracker.Complete("analysis ready", analysis.Title)
	}()

	return tracker, nil
}

// ListAnalyses 已缓存的全部分析，按标题排序
func (s *StoryService) ListAnalyses() []*models.ScriptAnalysis {
	return s.cache.List()
}

// GetAnalysis 按标题读取缓存的分析
func (s *StoryService) GetAnalysis(title string) (*models.ScriptAnalysis, error) {
	analysis, ok := s.cache.Get(title)
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no analysis for %q", title), nil)
	}
	return analysis, nil
}

// GenerateStoryOutline 聚合风格上下文后生成大纲。影响来源和规则以本地聚合结果为准
func (s *StoryService) GenerateStoryOutline(ctx context.Context, mode models.ContentMode, req *models.StoryGenerationRequest) (_ *models.GeneratedStoryOutline, err error) {
	if err := validateMode(mode); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, apperrors.NewValidationError("story request is required", nil)
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error(), err)
	}

	done := s.stats.begin("generate_outline")
	defer func() { done(err) }()

	llmService, err := s.registry.ResolveService(mode)
	if err != nil {
		return nil, err
	}

	sc := s.aggregator.BuildContext(req)
	raw, err := llmService.Invoke(ctx, s.prompts.Outline(req, sc))
	if err != nil {
		return nil, err
	}

	outline, err := ParseOutline(raw)
	if err != nil {
		s.metrics.RecordParseFailure("outline")
		s.logger.Error("story outline parse failed", map[string]interface{}{
			"concept":  req.Concept,
			"genre":    req.TargetGenre,
			"mode":     mode,
			"response": truncateForLog(raw),
			"error":    err,
		})
		return nil, err
	}

	outline.StyleInfluences = nonNil(sc.Influences)
	outline.PixarRulesApplied = nonNil(sc.AppliedRules)
	outline.VisualGuide.PromptPrefix = joinPrefix(sc.PromptPrefix, outline.VisualGuide.PromptPrefix)
	if strings.TrimSpace(outline.Genre) == "" {
		outline.Genre = req.TargetGenre
	}

	s.logger.Info("story outline generated", map[string]interface{}{
		"title":  outline.Title,
		"acts":   len(outline.Acts),
		"scenes": outline.SceneCount(),
		"mode":   mode,
	})
	return outline, nil
}

// GenerateScenePrompts 为单个场景生成图像、视频和尾帧提示词
func (s *StoryService) GenerateScenePrompts(ctx context.Context, mode models.ContentMode, scene models.SceneOutline, guide models.VisualGuide, scriptStyleReference string) (_ *models.ScenePromptSet, err error) {
	if err := validateMode(mode); err != nil {
		return nil, err
	}

	done := s.stats.begin("generate_scene_prompts")
	defer func() { done(err) }()

	llmService, err := s.registry.ResolveService(mode)
	if err != nil {
		return nil, err
	}

	var analysisLines string
	if scriptStyleReference != "" {
		if analysis, ok := s.cache.Get(scriptStyleReference); ok {
			analysisLines = AnalysisContextLines(analysis)
		}
	}

	raw, err := llmService.Invoke(ctx, s.prompts.ScenePrompts(scene, guide, analysisLines))
	if err != nil {
		return nil, err
	}

	set, err := ParseScenePrompts(raw)
	if err != nil {
		s.metrics.RecordParseFailure("scene_prompt")
		s.logger.Error("scene prompt parse failed", map[string]interface{}{
			"scene":    scene.SceneNumber,
			"location": scene.Location,
			"mode":     mode,
			"response": truncateForLog(raw),
			"error":    err,
		})
		return nil, err
	}

	set.ImagePrompt = joinPrefix(guide.PromptPrefix, set.ImagePrompt)
	set.VideoPrompt = joinPrefix(guide.PromptPrefix, set.VideoPrompt)
	set.EndFramePrompt = joinPrefix(guide.PromptPrefix, set.EndFramePrompt)
	set.NegativePrompt = guide.NegativePrompt
	if set.NegativePrompt == "" {
		set.NegativePrompt = FallbackNegativePrompt
	}
	return set, nil
}

// GenerateAllScenePrompts 为大纲中每个场景生成提示词，并发数受限。任一场景失败则整体失败
func (s *StoryService) GenerateAllScenePrompts(ctx context.Context, mode models.ContentMode, outline *models.GeneratedStoryOutline, scriptStyleReference string) ([]models.ScenePromptBundle, error) {
	if outline == nil || len(outline.Acts) == 0 {
		return nil, apperrors.NewValidationError("outline with at least one act is required", nil)
	}

	bundles := make([]models.ScenePromptBundle, 0, outline.SceneCount())
	for _, act := range outline.Acts {
		for _, scene := range act.Scenes {
			bundles = append(bundles, models.ScenePromptBundle{ActNumber: act.ActNumber, SceneNumber: scene.SceneNumber})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchLimit)

	i := 0
	for _, act := range outline.Acts {
		for _, scene := range act.Scenes {
			idx, scene := i, scene
			i++
			g.Go(func() error {
				set, err := s.GenerateScenePrompts(gctx, mode, scene, outline.VisualGuide, scriptStyleReference)
				if err != nil {
					return apperrors.WrapError(err, fmt.Sprintf("act %d scene %d", bundles[idx].ActNumber, bundles[idx].SceneNumber), apperrors.ErrorTypeError)
				}
				bundles[idx].Prompts = *set
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bundles, nil
}

// joinPrefix 风格前缀在前，单个空格连接，任一为空时不加空格
func joinPrefix(prefix, text string) string {
	prefix = strings.TrimSpace(prefix)
	text = strings.TrimSpace(text)
	switch {
	case prefix == "":
		return text
	case text == "":
		return prefix
	}
	return prefix + " " + text
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func truncateForLog(s string) string {
	const limit = 500
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
