// internal/catalog/catalog.go
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/Corphon/StoryForge/internal/models"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

type catalogFile struct {
	Genres           []models.GenreGuide           `yaml:"genres"`
	Directors        []models.DirectorStyle        `yaml:"directors"`
	Cinematographers []models.CinematographerStyle `yaml:"cinematographers"`
}

// Catalog 只读的风格目录：类型片指南、导演、摄影指导
type Catalog struct {
	genres           map[string]models.GenreGuide
	directors        map[string]models.DirectorStyle
	cinematographers map[string]models.CinematographerStyle

	genreOrder           []string
	directorOrder        []string
	cinematographerOrder []string
}

// Load 读取 path 处的 YAML 目录，path 为空时使用内置目录
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(defaultCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read style catalog: %w", err)
	}
	return Parse(data)
}

// Default 内置目录。嵌入文件损坏属于构建错误，直接 panic
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded style catalog: %v", err))
	}
	return c
}

// Parse 解析 YAML 目录。条目没有 key 时用名字生成
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse style catalog: %w", err)
	}

	c := &Catalog{
		genres:           make(map[string]models.GenreGuide, len(f.Genres)),
		directors:        make(map[string]models.DirectorStyle, len(f.Directors)),
		cinematographers: make(map[string]models.CinematographerStyle, len(f.Cinematographers)),
	}

	for _, g := range f.Genres {
		g.Key = keyOr(g.Key, g.Name)
		if _, dup := c.genres[g.Key]; dup {
			return nil, fmt.Errorf("duplicate genre %q", g.Key)
		}
		c.genres[g.Key] = g
		c.genreOrder = append(c.genreOrder, g.Key)
	}
	for _, d := range f.Directors {
		d.Key = keyOr(d.Key, d.Name)
		if _, dup := c.directors[d.Key]; dup {
			return nil, fmt.Errorf("duplicate director %q", d.Key)
		}
		c.directors[d.Key] = d
		c.directorOrder = append(c.directorOrder, d.Key)
	}
	for _, cs := range f.Cinematographers {
		cs.Key = keyOr(cs.Key, cs.Name)
		if _, dup := c.cinematographers[cs.Key]; dup {
			return nil, fmt.Errorf("duplicate cinematographer %q", cs.Key)
		}
		c.cinematographers[cs.Key] = cs
		c.cinematographerOrder = append(c.cinematographerOrder, cs.Key)
	}
	return c, nil
}

// NormalizeKey 小写，非字母数字的连续字符折叠为 "-"
func NormalizeKey(s string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

func keyOr(key, name string) string {
	if k := NormalizeKey(key); k != "" {
		return k
	}
	return NormalizeKey(name)
}

// GenreGuide 按名字或 key 查找，大小写和分隔符不敏感
func (c *Catalog) GenreGuide(name string) (models.GenreGuide, bool) {
	g, ok := c.genres[NormalizeKey(name)]
	return g, ok
}

// DirectorStyle 按 key 查找导演风格
func (c *Catalog) DirectorStyle(key string) (models.DirectorStyle, bool) {
	d, ok := c.directors[NormalizeKey(key)]
	return d, ok
}

// CinematographerStyle 按 key 查找摄影指导风格
func (c *Catalog) CinematographerStyle(key string) (models.CinematographerStyle, bool) {
	cs, ok := c.cinematographers[NormalizeKey(key)]
	return cs, ok
}

// BuildStylePrefix 依次拼接类型片前缀、导演前缀、摄影关键词（逗号连接），
// 未提供或查不到的部分跳过，各部分之间用空格连接
func (c *Catalog) BuildStylePrefix(genre, directorKey, cinematographerKey string) string {
	var parts []string
	if genre != "" {
		if g, ok := c.GenreGuide(genre); ok && g.PromptPrefix != "" {
			parts = append(parts, g.PromptPrefix)
		}
	}
	if directorKey != "" {
		if d, ok := c.DirectorStyle(directorKey); ok && d.PromptPrefix != "" {
			parts = append(parts, d.PromptPrefix)
		}
	}
	if cinematographerKey != "" {
		if cs, ok := c.CinematographerStyle(cinematographerKey); ok && len(cs.Keywords) > 0 {
			parts = append(parts, strings.Join(cs.Keywords, ", "))
		}
	}
	return strings.Join(parts, " ")
}

// Genres 按目录文件中的顺序返回
func (c *Catalog) Genres() []models.GenreGuide {
	out := make([]models.GenreGuide, 0, len(c.genreOrder))
	for _, k := range c.genreOrder {
		out = append(out, c.genres[k])
	}
	return out
}

func (c *Catalog) Directors() []models.DirectorStyle {
	out := make([]models.DirectorStyle, 0, len(c.directorOrder))
	for _, k := range c.directorOrder {
		out = append(out, c.directors[k])
	}
	return out
}

func (c *Catalog) Cinematographers() []models.CinematographerStyle {
	out := make([]models.CinematographerStyle, 0, len(c.cinematographerOrder))
	for _, k := range c.cinematographerOrder {
		out = append(out, c.cinematographers[k])
	}
	return out
}
