// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/StoryForge/internal/api"
	"github.com/Corphon/StoryForge/internal/catalog"
	"github.com/Corphon/StoryForge/internal/config"
	"github.com/Corphon/StoryForge/internal/di"
	"github.com/Corphon/StoryForge/internal/services"
	"github.com/Corphon/StoryForge/internal/storage"
	"github.com/Corphon/StoryForge/internal/utils"

	// 注册模型提供者
	_ "github.com/Corphon/StoryForge/internal/llm/providers/gemini"
	_ "github.com/Corphon/StoryForge/internal/llm/providers/mock"
	_ "github.com/Corphon/StoryForge/internal/llm/providers/openai"
	_ "github.com/Corphon/StoryForge/internal/llm/providers/openrouter"
)

const (
	taskCleanupInterval = 10 * time.Minute
	taskMaxAge          = time.Hour
	metricsInterval     = time.Minute
	storeLoadTimeout    = 30 * time.Second
)

// App 持有一次运行的全部服务
type App struct {
	Config    *config.Config
	Container *di.Container
	Story     *services.StoryService
	Handler   *api.Handler
	Router    *gin.Engine

	logger  *utils.Logger
	closers []func() error
	cancel  context.CancelFunc
}

// New 按依赖顺序初始化服务。返回的 App 在 Close 之前持有后台任务
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}

	logger := utils.GetLogger()
	if cfg.LogDir != "" {
		if err := utils.InitLogger(filepath.Join(cfg.LogDir, "storyforge.log")); err != nil {
			return nil, fmt.Errorf("初始化日志失败: %w", err)
		}
	}
	if cfg.DebugMode {
		logger.SetLogLevel(utils.DEBUG)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	runCtx, cancel := context.WithCancel(ctx)
	a := &App{
		Config:    cfg,
		Container: di.NewContainer(),
		logger:    logger,
		cancel:    cancel,
	}

	if err := a.initServices(runCtx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) initServices(ctx context.Context) error {
	cfg := a.Config
	c := a.Container

	metrics := utils.NewPipelineMetrics(utils.GetMetricsCollector(), a.logger)
	c.Register(di.ServiceConfig, cfg)
	c.Register(di.ServiceLogger, a.logger)
	c.Register(di.ServiceMetrics, metrics)

	// 1. 分析存储
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	c.Register(di.ServiceStore, store)

	// 2. 分析缓存，启动时全量加载
	cache := services.NewAnalysisCache(store, a.logger, metrics)
	loadCtx, cancelLoad := context.WithTimeout(ctx, storeLoadTimeout)
	cache.LoadAll(loadCtx)
	cancelLoad()
	c.Register(di.ServiceCache, cache)

	// 3. 风格目录
	cat := catalog.Default()
	if cfg.Catalog.Path != "" {
		if cat, err = catalog.Load(cfg.Catalog.Path); err != nil {
			return fmt.Errorf("加载风格目录失败: %w", err)
		}
	}
	c.Register(di.ServiceCatalog, cat)

	// 4. 模型提供者按需创建
	registry := services.NewProviderRegistry(services.ConfigServiceFactory(cfg, metrics, a.logger), nil)
	c.Register(di.ServiceRegistry, registry)

	// 5. 进度和故事服务
	progress := services.NewProgressService()
	progress.StartCleanup(ctx, taskCleanupInterval, taskMaxAge)
	c.Register(di.ServiceProgress, progress)

	aggregator := services.NewStyleAggregator(cat, cache, cfg.Pipeline.StyleContextChars)
	a.Story = services.NewStoryService(registry, cache, aggregator, services.StoryServiceOptions{
		SampleChars:      cfg.Pipeline.SampleChars,
		BatchConcurrency: cfg.Pipeline.BatchConcurrency,
		Progress:         progress,
		Metrics:          metrics,
		Logger:           a.logger,
	})
	c.Register(di.ServiceStory, a.Story)

	metrics.StartMetricsCollection(ctx, metricsInterval)

	a.Handler = api.NewHandler(a.Story, cat, registry, metrics, a.logger)
	a.Router = api.SetupRouter(ctx, a.Handler, cfg)

	a.logger.Info("services initialized", map[string]interface{}{"services": c.GetNames()})
	return nil
}

// openStore 按配置选择持久化后端
func (a *App) openStore(ctx context.Context) (storage.AnalysisStore, error) {
	cfg := a.Config.Storage
	switch cfg.Kind {
	case config.StoreS3:
		store, err := storage.NewS3Store(storage.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("初始化S3存储失败: %w", err)
		}
		return store, nil
	case config.StorePostgres:
		store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("初始化数据库存储失败: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		return storage.NewFileStore(cfg.AnalysisDir), nil
	}
}

// HealthCheck 检查关键服务是否已注册
func (a *App) HealthCheck() error {
	if missing := a.Container.Missing(di.ServiceStore, di.ServiceCache, di.ServiceCatalog, di.ServiceRegistry, di.ServiceStory); len(missing) > 0 {
		return fmt.Errorf("关键服务未注册: %v", missing)
	}
	return nil
}

// Server 绑定配置端口的 HTTP 服务器
func (a *App) Server() *http.Server {
	return &http.Server{
		Addr:         ":" + a.Config.Server.Port,
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}
}

// Close 停止后台任务并释放存储连接，可重复调用
func (a *App) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.logger.Warn("close failed", map[string]interface{}{"error": err})
		}
	}
	a.closers = nil
	a.logger.Sync()
}
