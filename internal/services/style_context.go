// internal/services/style_context.go
package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Corphon/StoryForge/internal/models"
)

// DefaultStyleContextChars 聚合后风格上下文的字符上限
const DefaultStyleContextChars = 6000

const styleTruncatedMarker = "[style context truncated]"

// 每个来源最多预览的条目数
const (
	previewItems    = 3
	previewPalette  = 5
	previewExcerpts = 2
	previewKeywords = 5
)

// StyleLookup 只读的风格目录
type StyleLookup interface {
	GenreGuide(name string) (models.GenreGuide, bool)
	DirectorStyle(key string) (models.DirectorStyle, bool)
	CinematographerStyle(key string) (models.CinematographerStyle, bool)
	BuildStylePrefix(genre, directorKey, cinematographerKey string) string
}

// AnalysisLookup 按标题读取已缓存的剧本分析
type AnalysisLookup interface {
	Get(title string) (*models.ScriptAnalysis, bool)
}

// StyleContext 一次大纲生成所用的风格上下文
type StyleContext struct {
	TextBlock    string
	Influences   []string
	Director     *models.DirectorStyle
	AppliedRules []string
	PromptPrefix string
}

// StyleAggregator 把剧本分析、类型片、导演、摄影指导和故事规则合成一段上下文
type StyleAggregator struct {
	lookup   StyleLookup
	analyses AnalysisLookup
	rules    []models.PixarRule
	maxChars int
}

// NewStyleAggregator maxChars <= 0 时使用默认上限
func NewStyleAggregator(lookup StyleLookup, analyses AnalysisLookup, maxChars int) *StyleAggregator {
	if maxChars <= 0 {
		maxChars = DefaultStyleContextChars
	}
	return &StyleAggregator{
		lookup:   lookup,
		analyses: analyses,
		rules:    PixarRules(),
		maxChars: maxChars,
	}
}

// BuildContext 依次解析剧本参考、类型片、导演、摄影指导和规则。
// 找不到的来源直接跳过，不报错
func (a *StyleAggregator) BuildContext(req *models.StoryGenerationRequest) StyleContext {
	var (
		sc     StyleContext
		blocks []string
	)

	if req.ScriptStyleReference != "" && a.analyses != nil {
		if analysis, ok := a.analyses.Get(req.ScriptStyleReference); ok {
			blocks = append(blocks, analysisBlock(analysis))
			sc.Influences = append(sc.Influences, analysis.Title)
		}
	}

	if req.TargetGenre != "" {
		if g, ok := a.lookup.GenreGuide(req.TargetGenre); ok {
			blocks = append(blocks, genreBlock(g))
			sc.Influences = append(sc.Influences, g.Name)
		}
	}

	if req.DirectorStyle != "" {
		if d, ok := a.lookup.DirectorStyle(req.DirectorStyle); ok {
			blocks = append(blocks, directorBlock(d))
			sc.Influences = append(sc.Influences, d.Name)
			sc.Director = &d
		}
	}

	if req.CinematographerStyle != "" {
		if cs, ok := a.lookup.CinematographerStyle(req.CinematographerStyle); ok {
			blocks = append(blocks, cinematographerBlock(cs))
			sc.Influences = append(sc.Influences, cs.Name)
		}
	}

	if req.WantsPixarRules() {
		selected := SelectRules(situationText(req), a.rules)
		blocks = append(blocks, rulesBlock(selected))
		for _, r := range selected {
			sc.AppliedRules = append(sc.AppliedRules, r.Display())
		}
	}

	sc.PromptPrefix = a.lookup.BuildStylePrefix(req.TargetGenre, req.DirectorStyle, req.CinematographerStyle)
	sc.TextBlock = truncateAtLine(strings.Join(blocks, "\n\n"), a.maxChars)
	return sc
}

// AnalysisContextLines 场景提示词使用的剧本风格摘要
func AnalysisContextLines(analysis *models.ScriptAnalysis) string {
	return analysisBlock(analysis)
}

func analysisBlock(a *models.ScriptAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SCRIPT STYLE REFERENCE: %s\n", a.Title)
	writeList(&b, "Tone", a.NarrativeVoice.Tone, previewItems)
	writeField(&b, "Pacing", a.NarrativeVoice.Pacing)
	writeField(&b, "Dialogue", a.NarrativeVoice.DialogueStyle)
	writeList(&b, "Archetypes", a.CharacterPatterns.Archetypes, previewItems)
	writeList(&b, "Recurring themes", a.SignatureElements.RecurringThemes, previewItems)
	writeList(&b, "Colour palette", a.VisualSuggestions.ColorPalette, previewPalette)
	for _, ex := range head(a.SampleExcerpts, previewExcerpts) {
		fmt.Fprintf(&b, "- Excerpt: %q\n", ex)
	}
	return strings.TrimRight(b.String(), "\n")
}

func genreBlock(g models.GenreGuide) string {
	var b strings.Builder
	fmt.Fprintf(&b, "GENRE: %s\n", g.Name)
	writeField(&b, "Description", g.Description)
	writeList(&b, "Conventions", g.Conventions, previewItems)
	writeList(&b, "Colour palette", g.ColorPalette, previewPalette)
	writeField(&b, "Lighting", g.Lighting)
	writeField(&b, "Camera", g.CameraWork)
	return strings.TrimRight(b.String(), "\n")
}

func directorBlock(d models.DirectorStyle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "DIRECTOR STYLE: %s\n", d.Name)
	writeList(&b, "Signature techniques", d.Signature, previewItems)
	writeField(&b, "Visual style", d.VisualStyle)
	writeList(&b, "Colour palette", d.ColorPalette, previewPalette)
	writeList(&b, "Themes", d.Themes, previewItems)
	return strings.TrimRight(b.String(), "\n")
}

func cinematographerBlock(cs models.CinematographerStyle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CINEMATOGRAPHY: %s\n", cs.Name)
	writeList(&b, "Keywords", cs.Keywords, previewKeywords)
	writeField(&b, "Lighting", cs.Lighting)
	writeList(&b, "Notable work", cs.Notable, previewItems)
	return strings.TrimRight(b.String(), "\n")
}

func rulesBlock(rules []models.PixarRule) string {
	var b strings.Builder
	b.WriteString("STORYTELLING RULES TO APPLY:\n")
	for _, r := range rules {
		fmt.Fprintf(&b, "- %s. %s\n", r.Display(), r.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "- %s: %s\n", label, value)
}

func writeList(b *strings.Builder, label string, values []string, n int) {
	values = head(values, n)
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(b, "- %s: %s\n", label, strings.Join(values, ", "))
}

func head(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}

// truncateAtLine 超过 maxChars 时在最后一个完整行处截断并追加标记，结果不超过 maxChars
func truncateAtLine(text string, maxChars int) string {
	if utf8.RuneCountInString(text) <= maxChars {
		return text
	}

	room := maxChars - utf8.RuneCountInString(styleTruncatedMarker) - 1
	if room <= 0 {
		return styleTruncatedMarker
	}

	kept := string([]rune(text)[:room])
	if i := strings.LastIndexByte(kept, '\n'); i > 0 {
		kept = kept[:i]
	}
	return strings.TrimRight(kept, "\n") + "\n" + styleTruncatedMarker
}
