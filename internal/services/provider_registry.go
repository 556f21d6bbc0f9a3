// internal/services/provider_registry.go
package services

import (
	"fmt"
	"sync"

	"github.com/Corphon/StoryForge/internal/config"
	apperrors "github.com/Corphon/StoryForge/internal/errors"
	"github.com/Corphon/StoryForge/internal/models"
	"github.com/Corphon/StoryForge/internal/utils"
)

// ServiceFactory 为一种内容模式创建模型服务
type ServiceFactory func(mode models.ContentMode) (*LLMService, error)

// ProviderRegistry 每种内容模式最多持有一个模型服务，首次使用时创建。
// 两种模式的 provider 实例互不共享
type ProviderRegistry struct {
	mu       sync.Mutex
	factory  ServiceFactory
	services map[models.ContentMode]*LLMService
}

// NewProviderRegistry backing 中已有的服务直接使用，其余模式按需调用 factory
func NewProviderRegistry(factory ServiceFactory, backing map[models.ContentMode]*LLMService) *ProviderRegistry {
	services := make(map[models.ContentMode]*LLMService, 2)
	for mode, svc := range backing {
		if svc != nil {
			services[mode] = svc
		}
	}
	return &ProviderRegistry{factory: factory, services: services}
}

// ResolveService 返回该模式的服务。创建失败不缓存，下次调用重试
func (r *ProviderRegistry) ResolveService(mode models.ContentMode) (*LLMService, error) {
	if mode != models.ModeRestricted && mode != models.ModePermissive {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown content mode %q", mode), nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if svc, ok := r.services[mode]; ok {
		return svc, nil
	}
	if r.factory == nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("no model provider configured for %s mode", mode), nil)
	}

	svc, err := r.factory(mode)
	if err != nil {
		return nil, err
	}
	r.services[mode] = svc
	return svc, nil
}

// Providers 已创建的模式及其提供商名称
func (r *ProviderRegistry) Providers() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.services))
	for mode, svc := range r.services {
		out[string(mode)] = svc.GetProviderName()
	}
	return out
}

// ConfigServiceFactory 按 cfg 中各模式的 provider 配置创建服务
func ConfigServiceFactory(cfg *config.Config, metrics *utils.PipelineMetrics, logger *utils.Logger) ServiceFactory {
	return func(mode models.ContentMode) (*LLMService, error) {
		pc := cfg.Restricted
		if mode == models.ModePermissive {
			pc = cfg.Permissive
		}
		svc, err := NewLLMServiceFromConfig(mode, pc, cfg.Pipeline, metrics, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("model provider ready", map[string]interface{}{
			"mode":     mode,
			"provider": svc.GetProviderName(),
			"model":    svc.GetDefaultModel(),
		})
		return svc, nil
	}
}
