// cmd/demo/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/Corphon/StoryForge/internal/app"
	"github.com/Corphon/StoryForge/internal/config"
	"github.com/Corphon/StoryForge/internal/models"
	"github.com/Corphon/StoryForge/internal/services"
)

const demoScript = `INT. COUNTY WATER OFFICE - DAY

A ceiling fan turns without conviction. MARA (40s) reads a ledger.

MARA
These numbers say it rained last week.

CLERK AMES
It did. Somewhere.
`

func main() {
	var (
		scriptPath = flag.String("script", "", "剧本文件路径（.txt/.md/.fountain/.pdf），为空时使用内置片段")
		title      = flag.String("title", "The Reservoir", "剧本标题")
		genre      = flag.String("genre", "film-noir", "类型片键")
		concept    = flag.String("concept", "a hydrologist discovers the town's water is being stolen", "新故事的概念")
		director   = flag.String("director", "", "导演风格键")
		cine       = flag.String("cinematographer", "", "摄影指导风格键")
		length     = flag.String("length", string(models.LengthShort), "篇幅: short, medium, feature")
		permissive = flag.Bool("permissive", false, "使用宽松内容模式")
		live       = flag.Bool("live", false, "使用配置中的真实模型提供者，默认离线演示")
	)
	flag.Parse()

	fmt.Println("🚀 StoryForge Demo")
	fmt.Println("=================================")

	cfg, err := demoConfig(*live)
	if err != nil {
		log.Fatalf("❌ 加载配置失败: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ 初始化服务失败: %v", err)
	}
	defer application.Close()

	content := demoScript
	if *scriptPath != "" {
		data, err := os.ReadFile(*scriptPath)
		if err != nil {
			log.Fatalf("❌ 读取剧本失败: %v", err)
		}
		if content, err = (services.TextExtractor{}).Extract(*scriptPath, data); err != nil {
			log.Fatalf("❌ 解析剧本失败: %v", err)
		}
	}

	mode := models.ModeFromFlag(*permissive)
	story := application.Story

	fmt.Println("\n📖 1/3 分析剧本风格...")
	analysis, err := story.AnalyzeScript(ctx, mode, content, *title, *genre)
	if err != nil {
		log.Fatalf("❌ 分析失败: %v", err)
	}
	printJSON(analysis)

	fmt.Println("\n🧭 2/3 生成故事大纲...")
	outline, err := story.GenerateStoryOutline(ctx, mode, &models.StoryGenerationRequest{
		Concept:              *concept,
		TargetGenre:          *genre,
		ScriptStyleReference: analysis.Title,
		DirectorStyle:        *director,
		CinematographerStyle: *cine,
		TargetLength:         models.TargetLength(*length),
	})
	if err != nil {
		log.Fatalf("❌ 大纲生成失败: %v", err)
	}
	printJSON(outline)

	fmt.Println("\n🎬 3/3 生成场景提示词...")
	bundles, err := story.GenerateAllScenePrompts(ctx, mode, outline, analysis.Title)
	if err != nil {
		log.Fatalf("❌ 提示词生成失败: %v", err)
	}
	for _, b := range bundles {
		fmt.Printf("\n[Act %d / Scene %d]\n", b.ActNumber, b.SceneNumber)
		fmt.Printf("  image:    %s\n", b.Prompts.ImagePrompt)
		fmt.Printf("  video:    %s\n", b.Prompts.VideoPrompt)
		fmt.Printf("  endframe: %s\n", b.Prompts.EndFramePrompt)
		fmt.Printf("  negative: %s\n", b.Prompts.NegativePrompt)
	}

	fmt.Println("\n✅ 完成")
}

// demoConfig 离线模式下两种内容模式都走 mock 提供者，数据写到临时目录
func demoConfig(live bool) (*config.Config, error) {
	if live {
		return config.Load()
	}

	dir, err := os.MkdirTemp("", "storyforge-demo-*")
	if err != nil {
		return nil, err
	}
	cfg := config.Default()
	cfg.DataDir = dir
	cfg.LogDir = ""
	cfg.Storage.AnalysisDir = filepath.Join(dir, "analyses")
	cfg.Restricted = config.ProviderConfig{Provider: "mock"}
	cfg.Permissive = config.ProviderConfig{Provider: "mock"}
	return cfg, cfg.Validate()
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%+v\n", v)
		return
	}
	fmt.Println(string(data))
}
