// internal/storage/file_storage.go
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Corphon/StoryForge/internal/models"
)

// FileStore 每条分析一个 JSON 文件，目录在第一次写入时创建
type FileStore struct {
	BaseDir string

	// 文件级别锁 path -> *sync.RWMutex
	fileLocks sync.Map
}

// NewFileStore 创建文件存储，不要求目录已存在
func NewFileStore(baseDir string) *FileStore {
	return &FileStore{BaseDir: baseDir}
}

func (fs *FileStore) Name() string { return "file:" + fs.BaseDir }

// 获取文件锁
func (fs *FileStore) getFileLock(fullPath string) *sync.RWMutex {
	value, _ := fs.fileLocks.LoadOrStore(fullPath, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

// PathFor 标题对应的文件路径
func (fs *FileStore) PathFor(title string) string {
	return filepath.Join(fs.BaseDir, SanitizeKey(title)+".json")
}

// Save 原子写入：先写临时文件再重命名
func (fs *FileStore) Save(ctx context.Context, analysis *models.ScriptAnalysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	content, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}

	fullPath := fs.PathFor(analysis.Title)
	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(fs.BaseDir, 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	tempPath := fullPath + ".tmp"
	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return fmt.Errorf("保存临时文件失败: %w", err)
	}
	if err := os.Rename(tempPath, fullPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("保存文件失败: %w", err)
	}
	return nil
}

// Load 读取单个标题的分析
func (fs *FileStore) Load(title string) (*models.ScriptAnalysis, error) {
	return fs.readFile(fs.PathFor(title))
}

func (fs *FileStore) readFile(fullPath string) (*models.ScriptAnalysis, error) {
	lock := fs.getFileLock(fullPath)
	lock.RLock()
	defer lock.RUnlock()

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("读取文件失败: %w", err)
	}
	var analysis models.ScriptAnalysis
	if err := json.Unmarshal(content, &analysis); err != nil {
		return nil, fmt.Errorf("解析JSON失败 %s: %w", filepath.Base(fullPath), err)
	}
	if strings.TrimSpace(analysis.Title) == "" {
		return nil, fmt.Errorf("%s: analysis has no title", filepath.Base(fullPath))
	}
	return &analysis, nil
}

// LoadAll 扫描目录下全部 .json 文件，按文件名排序。
// 目录不存在时返回 os.ErrNotExist；单个文件损坏会跳过并记入返回的错误
func (fs *FileStore) LoadAll(ctx context.Context) ([]*models.ScriptAnalysis, error) {
	entries, err := os.ReadDir(fs.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("读取目录失败: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var (
		out  []*models.ScriptAnalysis
		errs []error
	)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		analysis, err := fs.readFile(filepath.Join(fs.BaseDir, name))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, analysis)
	}
	return out, errors.Join(errs...)
}
