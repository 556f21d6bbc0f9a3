// internal/services/story_service_metrics.go
package services

import (
	"sync"
	"time"
)

// StoryServiceMetrics 故事服务性能指标
type StoryServiceMetrics struct {
	mutex                sync.RWMutex
	operations           map[string]*operationStats
	concurrentOperations int32
	analysisHits         int64
	analysisLookups      int64
	lastMetricsReset     time.Time
}

type operationStats struct {
	total       int64
	failures    int64
	averageTime time.Duration
}

func NewStoryServiceMetrics() *StoryServiceMetrics {
	return &StoryServiceMetrics{
		operations:       make(map[string]*operationStats),
		lastMetricsReset: time.Now(),
	}
}

// begin 记录一次操作开始，返回的函数在结束时调用
func (m *StoryServiceMetrics) begin(op string) func(err error) {
	start := time.Now()
	m.mutex.Lock()
	m.concurrentOperations++
	m.mutex.Unlock()

	return func(err error) {
		m.RecordOperation(op, time.Since(start), err)
	}
}

// RecordOperation 记录一次完成的操作
func (m *StoryServiceMetrics) RecordOperation(op string, duration time.Duration, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.concurrentOperations > 0 {
		m.concurrentOperations--
	}
	stats, ok := m.operations[op]
	if !ok {
		stats = &operationStats{}
		m.operations[op] = stats
	}
	stats.total++
	if err != nil {
		stats.failures++
	}
	stats.averageTime = (stats.averageTime*time.Duration(stats.total-1) + duration) / time.Duration(stats.total)
}

// RecordAnalysisLookup 剧本分析缓存命中情况
func (m *StoryServiceMetrics) RecordAnalysisLookup(hit bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.analysisLookups++
	if hit {
		m.analysisHits++
	}
}

// GetMetrics 获取性能指标
func (m *StoryServiceMetrics) GetMetrics() map[string]interface{} {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	ops := make(map[string]interface{}, len(m.operations))
	for name, s := range m.operations {
		ops[name] = map[string]interface{}{
			"total":           s.total,
			"failures":        s.failures,
			"average_time_ms": s.averageTime.Milliseconds(),
		}
	}

	hitRate := 0.0
	if m.analysisLookups > 0 {
		hitRate = float64(m.analysisHits) / float64(m.analysisLookups)
	}

	return map[string]interface{}{
		"operations":            ops,
		"concurrent_operations": m.concurrentOperations,
		"cache_hit_rate":        hitRate,
		"last_reset":            m.lastMetricsReset,
	}
}

// ResetMetrics 重置性能指标
func (m *StoryServiceMetrics) ResetMetrics() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.operations = make(map[string]*operationStats)
	m.concurrentOperations = 0
	m.analysisHits = 0
	m.analysisLookups = 0
	m.lastMetricsReset = time.Now()
}
