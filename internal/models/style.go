// internal/models/style.go
package models

import (
	"fmt"
	"strings"
)

// ContentMode 选择模型提供者组合。两种模式互不混用
type ContentMode string

const (
	ModeRestricted ContentMode = "restricted"
	ModePermissive ContentMode = "permissive"
)

// ModeFromFlag 调用方传入的布尔开关转成模式
func ModeFromFlag(permissive bool) ContentMode {
	if permissive {
		return ModePermissive
	}
	return ModeRestricted
}

// ParseContentMode 解析字符串模式，未知值报错
func ParseContentMode(s string) (ContentMode, error) {
	switch ContentMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeRestricted:
		return ModeRestricted, nil
	case ModePermissive:
		return ModePermissive, nil
	}
	return "", fmt.Errorf("unknown content mode %q", s)
}

// GenreGuide 类型片指南
type GenreGuide struct {
	Key            string   `json:"key" yaml:"key"`
	Name           string   `json:"name" yaml:"name"`
	Description    string   `json:"description" yaml:"description"`
	Conventions    []string `json:"conventions" yaml:"conventions"`
	ColorPalette   []string `json:"colorPalette" yaml:"color_palette"`
	Lighting       string   `json:"lighting" yaml:"lighting"`
	CameraWork     string   `json:"cameraWork" yaml:"camera_work"`
	PromptPrefix   string   `json:"promptPrefix" yaml:"prompt_prefix"`
	NegativePrompt string   `json:"negativePrompt" yaml:"negative_prompt"`
}

// DirectorStyle 导演风格
type DirectorStyle struct {
	Key          string   `json:"key" yaml:"key"`
	Name         string   `json:"name" yaml:"name"`
	Signature    []string `json:"signature" yaml:"signature"`
	VisualStyle  string   `json:"visualStyle" yaml:"visual_style"`
	ColorPalette []string `json:"colorPalette" yaml:"color_palette"`
	Themes       []string `json:"themes" yaml:"themes"`
	PromptPrefix string   `json:"promptPrefix" yaml:"prompt_prefix"`
}

// CinematographerStyle 摄影指导风格
type CinematographerStyle struct {
	Key      string   `json:"key" yaml:"key"`
	Name     string   `json:"name" yaml:"name"`
	Keywords []string `json:"keywords" yaml:"keywords"`
	Lighting string   `json:"lighting" yaml:"lighting"`
	Notable  []string `json:"notable" yaml:"notable"`
}

// PixarRule 22 条故事规则之一，Number 从 1 开始
type PixarRule struct {
	Number int    `json:"number"`
	Label  string `json:"label"`
	Text   string `json:"text"`
}

// Display 以 "Rule N: label" 形式展示
func (r PixarRule) Display() string {
	return fmt.Sprintf("Rule %d: %s", r.Number, r.Label)
}
