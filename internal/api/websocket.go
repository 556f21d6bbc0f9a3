// internal/api/websocket.go
package api

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Corphon/StoryForge/internal/services"
	"github.com/Corphon/StoryForge/internal/utils"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ProgressSocket 通过 WebSocket 推送异步任务进度
type ProgressSocket struct {
	progress *services.ProgressService
	logger   *utils.Logger
	active   atomic.Int64
}

func NewProgressSocket(progress *services.ProgressService, logger *utils.Logger) *ProgressSocket {
	return &ProgressSocket{progress: progress, logger: logger}
}

// ActiveConnections 当前连接数
func (ps *ProgressSocket) ActiveConnections() int64 { return ps.active.Load() }

// Serve 订阅任务进度直到任务结束或客户端断开
func (ps *ProgressSocket) Serve(c *gin.Context) {
	taskID := c.Param("id")
	tracker, exists := ps.progress.GetTracker(taskID)
	if !exists {
		http.Error(c.Writer, "task not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		ps.logger.Warn("websocket upgrade failed", map[string]interface{}{"task_id": taskID, "error": err})
		return
	}
	defer conn.Close()

	ps.active.Add(1)
	defer ps.active.Add(-1)

	updates := tracker.Subscribe()
	defer tracker.Unsubscribe(updates)

	// 读循环只处理 pong 和关闭
	clientGone := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-clientGone:
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(update); err != nil {
				return
			}
			if update.Status == services.TaskStatusCompleted || update.Status == services.TaskStatusFailed {
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, update.Status))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
