// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Corphon/StoryForge/internal/app"
	"github.com/Corphon/StoryForge/internal/config"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("🚀 启动 StoryForge 服务器...")

	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	log.Printf("✅ 配置加载完成，端口: %s，存储: %s", cfg.Server.Port, cfg.Storage.Kind)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. 初始化所有服务（按依赖顺序）
	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("初始化服务失败: %v", err)
	}
	defer application.Close()

	if err := application.HealthCheck(); err != nil {
		log.Printf("⚠️ 服务健康检查警告: %v", err)
	}
	log.Println("✅ 所有服务初始化完成")

	// 3. 启动服务器
	if err := serve(ctx, application.Server()); err != nil {
		log.Printf("❌ %v", err)
		application.Close()
		os.Exit(1)
	}
	log.Println("✅ 服务器优雅关闭完成")
}

// serve 运行服务器直到 ctx 取消，然后在限定时间内关闭
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("🌐 服务器启动在 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("🛑 正在关闭服务器...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
