// internal/services/llm_service.go
package services

import (
	"context"
	"crypto/md5"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Corphon/StoryForge/internal/config"
	apperrors "github.com/Corphon/StoryForge/internal/errors"
	"github.com/Corphon/StoryForge/internal/llm"
	"github.com/Corphon/StoryForge/internal/models"
	"github.com/Corphon/StoryForge/internal/utils"
)

var providerDefaultModels = map[string]string{
	"gemini":     "gemini-2.5-flash",
	"openai":     "gpt-4o-mini",
	"openrouter": "nousresearch/hermes-3-llama-3.1-405b",
	"mock":       "mock-1",
}

// Invocation 一次模型调用
type Invocation struct {
	Prompt       string
	SystemPrompt string
	Temperature  float32
	MaxTokens    int
	// Cacheable 为 true 时相同输入直接复用上一次的回复
	Cacheable bool
}

// LLMServiceOptions 调用边界上的超时、响应缓存和观测
type LLMServiceOptions struct {
	Timeout   time.Duration
	CacheSize int
	CacheTTL  time.Duration
	Metrics   *utils.PipelineMetrics
	Logger    *utils.Logger
}

// LLMService 一种内容模式下的模型调用入口。持有自己的 provider 实例
type LLMService struct {
	mode         models.ContentMode
	provider     llm.Provider
	providerName string
	model        string
	timeout      time.Duration
	memo         *expirable.LRU[string, string]
	metrics      *utils.PipelineMetrics
	logger       *utils.Logger
}

// NewLLMService 包装一个已初始化的 provider
func NewLLMService(mode models.ContentMode, providerName string, provider llm.Provider, model string, opts LLMServiceOptions) *LLMService {
	if opts.Logger == nil {
		opts.Logger = utils.GetLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = utils.NewPipelineMetrics(nil, opts.Logger)
	}

	s := &LLMService{
		mode:         mode,
		provider:     provider,
		providerName: providerName,
		timeout:      opts.Timeout,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
	}
	if opts.CacheSize > 0 {
		s.memo = expirable.NewLRU[string, string](opts.CacheSize, nil, opts.CacheTTL)
	}
	s.model = s.resolveModel(model)
	return s
}

// NewLLMServiceFromConfig 按模式配置创建 provider。未配置或初始化失败时返回错误
func NewLLMServiceFromConfig(mode models.ContentMode, pc config.ProviderConfig, pipeline config.PipelineConfig, metrics *utils.PipelineMetrics, logger *utils.Logger) (*LLMService, error) {
	if strings.TrimSpace(pc.Provider) == "" {
		return nil, apperrors.NewValidationError(fmt.Sprintf("no model provider configured for %s mode", mode), nil)
	}

	provider, err := llm.GetProvider(pc.Provider, pc.AsMap())
	if err != nil {
		return nil, apperrors.NewTransportError(fmt.Sprintf("initialize %s provider for %s mode", pc.Provider, mode), err)
	}

	return NewLLMService(mode, pc.Provider, provider, pc.Model, LLMServiceOptions{
		Timeout:   pipeline.LLMTimeout,
		CacheSize: pipeline.ResponseCacheSize,
		CacheTTL:  pipeline.ResponseCacheTTL,
		Metrics:   metrics,
		Logger:    logger,
	}), nil
}

// Mode 本服务所属的内容模式
func (s *LLMService) Mode() models.ContentMode { return s.mode }

// GetProviderName 返回提供商名称
func (s *LLMService) GetProviderName() string { return s.providerName }

// GetDefaultModel 实际使用的模型
func (s *LLMService) GetDefaultModel() string { return s.model }

// Invoke 调用模型并返回原始文本。传输层失败包装为 transport_error，不重试
func (s *LLMService) Invoke(ctx context.Context, inv Invocation) (string, error) {
	var cacheKey string
	if inv.Cacheable && s.memo != nil {
		cacheKey = s.generateCacheKey(inv.Prompt, inv.SystemPrompt)
		if text, ok := s.memo.Get(cacheKey); ok {
			s.metrics.RecordLLMMemoHit()
			s.logger.Debug("LLM response cache hit", map[string]interface{}{"cache_key_prefix": cacheKey[:8]})
			return text, nil
		}
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.provider.CompleteText(callCtx, llm.CompletionRequest{
		Prompt:       inv.Prompt,
		SystemPrompt: inv.SystemPrompt,
		MaxTokens:    inv.MaxTokens,
		Temperature:  inv.Temperature,
		Model:        s.model,
	})
	s.metrics.RecordLLMRequest(string(s.mode), s.providerName, time.Since(start), err)

	if err != nil {
		s.logger.Error("LLM request failed", map[string]interface{}{
			"mode":     s.mode,
			"provider": s.providerName,
			"model":    s.model,
			"error":    err,
		})
		return "", apperrors.NewTransportError(fmt.Sprintf("%s request failed", s.providerName), err)
	}
	if resp == nil {
		return "", apperrors.NewTransportError(fmt.Sprintf("%s returned no response", s.providerName), nil)
	}

	if cacheKey != "" {
		s.memo.Add(cacheKey, resp.Text)
	}
	return resp.Text, nil
}

// generateCacheKey 生成缓存键
func (s *LLMService) generateCacheKey(prompt, systemPrompt string) string {
	hashInput := fmt.Sprintf("%s:::%s:::%s:::%s", prompt, systemPrompt, s.model, s.providerName)
	return fmt.Sprintf("%x", md5.Sum([]byte(hashInput)))
}

// resolveModel 配置优先，其次与 provider 初始化一致的内置默认值，最后是 provider 推荐的第一个模型
func (s *LLMService) resolveModel(configured string) string {
	if trimmed := strings.TrimSpace(configured); trimmed != "" {
		return trimmed
	}
	if model, ok := providerDefaultModels[strings.ToLower(s.providerName)]; ok {
		return model
	}
	if s.provider != nil {
		for _, model := range s.provider.GetSupportedModels() {
			if model = strings.TrimSpace(model); model != "" {
				return model
			}
		}
	}
	return ""
}
