// internal/storage/store.go
package storage

import (
	"context"
	"strings"
	"unicode"

	"github.com/Corphon/StoryForge/internal/models"
)

// AnalysisStore 剧本分析的持久化后端。每条分析按 SanitizeKey(title) 存为一个单元，
// 启动时全量扫描重建内存索引
type AnalysisStore interface {
	Name() string
	// LoadAll 返回能读出的全部分析。部分条目损坏时同时返回已读出的结果和错误
	LoadAll(ctx context.Context) ([]*models.ScriptAnalysis, error)
	Save(ctx context.Context, analysis *models.ScriptAnalysis) error
}

// SanitizeKey 把标题转成存储单元名：小写，连续的非字母数字字符折叠为一个 "-"，
// 去掉首尾分隔符，结果为空时返回 "untitled"
func SanitizeKey(title string) string {
	var b strings.Builder
	sep := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if sep && b.Len() > 0 {
				b.WriteByte('-')
			}
			sep = false
			b.WriteRune(r)
			continue
		}
		sep = true
	}
	if b.Len() == 0 {
		return "untitled"
	}
	return b.String()
}
