// internal/services/analysis_cache.go
package services

import (
	"context"
	"sort"
	"sync"

	"github.com/Corphon/StoryForge/internal/models"
	"github.com/Corphon/StoryForge/internal/storage"
	"github.com/Corphon/StoryForge/internal/utils"
)

// AnalysisCache 剧本分析的内存索引，写穿到持久化后端。
// 持久化失败只记日志，内存中的结果仍然可用
type AnalysisCache struct {
	store   storage.AnalysisStore
	logger  *utils.Logger
	metrics *utils.PipelineMetrics

	mu      sync.RWMutex
	entries map[string]*models.ScriptAnalysis
}

// NewAnalysisCache store 为 nil 时只保存在内存中
func NewAnalysisCache(store storage.AnalysisStore, logger *utils.Logger, metrics *utils.PipelineMetrics) *AnalysisCache {
	if logger == nil {
		logger = utils.GetLogger()
	}
	if metrics == nil {
		metrics = utils.NewPipelineMetrics(nil, logger)
	}
	return &AnalysisCache{
		store:   store,
		logger:  logger,
		metrics: metrics,
		entries: make(map[string]*models.ScriptAnalysis),
	}
}

// LoadAll 从后端重建索引。读不出来的条目跳过，错误只记警告
func (c *AnalysisCache) LoadAll(ctx context.Context) {
	if c.store == nil {
		return
	}

	analyses, err := c.store.LoadAll(ctx)
	if err != nil {
		c.logger.Warn("analysis cache load incomplete", map[string]interface{}{
			"store":  c.store.Name(),
			"loaded": len(analyses),
			"error":  err,
		})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range analyses {
		if a == nil {
			continue
		}
		c.entries[a.CacheKey()] = a
	}

	c.logger.Info("analysis cache loaded", map[string]interface{}{
		"store":   c.store.Name(),
		"entries": len(c.entries),
	})
}

// Get 标题大小写和首尾空白不敏感
func (c *AnalysisCache) Get(title string) (*models.ScriptAnalysis, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.entries[models.NormalizeTitle(title)]
	return a, ok
}

// Put 先写内存，再写后端。同一标题直接覆盖
func (c *AnalysisCache) Put(ctx context.Context, analysis *models.ScriptAnalysis) {
	c.mu.Lock()
	c.entries[analysis.CacheKey()] = analysis
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if err := c.store.Save(ctx, analysis); err != nil {
		c.metrics.RecordCacheWriteFailure()
		c.logger.Warn("analysis cache write failed", map[string]interface{}{
			"title": analysis.Title,
			"store": c.store.Name(),
			"error": err,
		})
	}
}

// List 按标题排序的全部分析
func (c *AnalysisCache) List() []*models.ScriptAnalysis {
	c.mu.RLock()
	out := make([]*models.ScriptAnalysis, 0, len(c.entries))
	for _, a := range c.entries {
		out = append(out, a)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CacheKey() < out[j].CacheKey()
	})
	return out
}

func (c *AnalysisCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
