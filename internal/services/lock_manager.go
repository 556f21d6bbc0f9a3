// internal/services/lock_manager.go
package services

import (
	"context"
	"sync"
)

// LockManager 按键分配互斥锁，最后一个持有者释放后回收
type LockManager struct {
	locks map[string]*LockInfo
	mu    sync.Mutex
}

// LockInfo 包装锁和相关信息
type LockInfo struct {
	slot           chan struct{}
	ReferenceCount int // 持有或等待该锁的协程数
}

// NewLockManager 创建锁管理器
func NewLockManager() *LockManager {
	return &LockManager{
		locks: make(map[string]*LockInfo),
	}
}

// Acquire 获取 key 对应的锁，ctx 取消时放弃等待。成功时返回释放函数
func (lm *LockManager) Acquire(ctx context.Context, key string) (func(), error) {
	lm.mu.Lock()
	info, exists := lm.locks[key]
	if !exists {
		info = &LockInfo{slot: make(chan struct{}, 1)}
		lm.locks[key] = info
	}
	info.ReferenceCount++
	lm.mu.Unlock()

	select {
	case info.slot <- struct{}{}:
	case <-ctx.Done():
		lm.release(key, info)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-info.slot
			lm.release(key, info)
		})
	}, nil
}

func (lm *LockManager) release(key string, info *LockInfo) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	info.ReferenceCount--
	if info.ReferenceCount == 0 {
		delete(lm.locks, key)
	}
}

// Len 当前仍被引用的键数
func (lm *LockManager) Len() int {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return len(lm.locks)
}
