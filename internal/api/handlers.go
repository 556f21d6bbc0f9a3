// internal/api/handlers.go
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/StoryForge/internal/catalog"
	"github.com/Corphon/StoryForge/internal/llm"
	"github.com/Corphon/StoryForge/internal/models"
	"github.com/Corphon/StoryForge/internal/services"
	"github.com/Corphon/StoryForge/internal/utils"
)

// Handler 处理API请求
type Handler struct {
	Story     *services.StoryService     // 故事服务
	Catalog   *catalog.Catalog           // 风格目录
	Registry  *services.ProviderRegistry // 模型提供者
	Extractor services.TextExtractor     // 上传文件文本提取
	Metrics   *utils.PipelineMetrics
	Socket    *ProgressSocket
	Response  *ResponseHelper // 响应助手
	Logger    *utils.Logger
	StartedAt time.Time
}

// NewHandler 创建API处理器
func NewHandler(story *services.StoryService, cat *catalog.Catalog, registry *services.ProviderRegistry, metrics *utils.PipelineMetrics, logger *utils.Logger) *Handler {
	if logger == nil {
		logger = utils.GetLogger()
	}
	if metrics == nil {
		metrics = utils.NewPipelineMetrics(nil, logger)
	}
	return &Handler{
		Story:     story,
		Catalog:   cat,
		Registry:  registry,
		Metrics:   metrics,
		Socket:    NewProgressSocket(story.Progress(), logger),
		Response:  NewResponseHelper(),
		Logger:    logger,
		StartedAt: time.Now(),
	}
}

// AnalyzeRequest 剧本分析请求
type AnalyzeRequest struct {
	Title      string `json:"title"`
	Genre      string `json:"genre"`
	Content    string `json:"content"`
	Permissive bool   `json:"permissive"`
	Async      bool   `json:"async"` // true 时立即返回任务ID
}

// OutlineRequest 大纲请求，在故事请求之外带模式开关
type OutlineRequest struct {
	models.StoryGenerationRequest
	Permissive bool `json:"permissive"`
}

// ScenePromptRequest 单场景提示词请求
type ScenePromptRequest struct {
	Scene                models.SceneOutline `json:"scene"`
	VisualGuide          models.VisualGuide  `json:"visualGuide"`
	ScriptStyleReference string              `json:"scriptStyleReference"`
	Permissive           bool                `json:"permissive"`
}

// BatchScenePromptRequest 整部大纲的提示词请求
type BatchScenePromptRequest struct {
	Outline              *models.GeneratedStoryOutline `json:"outline"`
	ScriptStyleReference string                        `json:"scriptStyleReference"`
	Permissive           bool                          `json:"permissive"`
}

// TaskAccepted 异步任务受理结果
type TaskAccepted struct {
	TaskID    string `json:"task_id"`
	StatusURL string `json:"status_url"`
	StreamURL string `json:"stream_url"`
}

func taskAccepted(taskID string) TaskAccepted {
	return TaskAccepted{
		TaskID:    taskID,
		StatusURL: "/api/progress/" + taskID,
		StreamURL: "/ws/progress/" + taskID,
	}
}

// AnalyzeScript 分析剧本文本
func (h *Handler) AnalyzeScript(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "invalid request body", err.Error())
		return
	}
	if async, err := strconv.ParseBool(c.Query("async")); err == nil {
		req.Async = async
	}
	h.runAnalysis(c, req)
}

// UploadScript 上传剧本文件后分析，表单字段 file, title, genre, permissive, async
func (h *Handler) UploadScript(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, services.MaxUploadBytes+1<<20)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorFileUploadFailed, "file field is required", err.Error())
		return
	}
	if fileHeader.Size > services.MaxUploadBytes {
		h.Response.Error(c, http.StatusBadRequest, ErrorFileInvalid, fmt.Sprintf("file exceeds %d bytes", services.MaxUploadBytes))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorFileUploadFailed, "could not open uploaded file", err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorFileUploadFailed, "could not read uploaded file", err.Error())
		return
	}

	content, err := h.Extractor.Extract(fileHeader.Filename, data)
	if err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorFileInvalid, err.Error())
		return
	}

	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		title = strings.TrimSuffix(fileHeader.Filename, filepath.Ext(fileHeader.Filename))
	}

	h.runAnalysis(c, AnalyzeRequest{
		Title:      title,
		Genre:      c.PostForm("genre"),
		Content:    content,
		Permissive: formBool(c, "permissive"),
		Async:      formBool(c, "async"),
	})
}

func (h *Handler) runAnalysis(c *gin.Context, req AnalyzeRequest) {
	mode := models.ModeFromFlag(req.Permissive)

	if req.Async {
		tracker, err := h.Story.AnalyzeScriptAsync(c.Request.Context(), mode, req.Content, req.Title, req.Genre)
		if err != nil {
			h.Response.ServiceError(c, err)
			return
		}
		h.Response.Accepted(c, taskAccepted(tracker.TaskID), "analysis started")
		return
	}

	analysis, err := h.Story.AnalyzeScript(c.Request.Context(), mode, req.Content, req.Title, req.Genre)
	if err != nil {
		h.Response.ServiceError(c, err)
		return
	}
	h.Response.Success(c, analysis)
}

func formBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.PostForm(key))
	return err == nil && v
}

// ListAnalyses 已缓存的分析
func (h *Handler) ListAnalyses(c *gin.Context) {
	h.Response.Success(c, h.Story.ListAnalyses())
}

// GetAnalysis 按标题读取分析
func (h *Handler) GetAnalysis(c *gin.Context) {
	analysis, err := h.Story.GetAnalysis(c.Param("title"))
	if err != nil {
		h.Response.NotFound(c, ErrorAnalysisNotFound, err.Error())
		return
	}
	h.Response.Success(c, analysis)
}

// GenerateOutline 生成故事大纲
func (h *Handler) GenerateOutline(c *gin.Context) {
	var req OutlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "invalid request body", err.Error())
		return
	}

	outline, err := h.Story.GenerateStoryOutline(c.Request.Context(), models.ModeFromFlag(req.Permissive), &req.StoryGenerationRequest)
	if err != nil {
		h.Response.ServiceError(c, err)
		return
	}
	h.Response.Success(c, outline)
}

// GenerateScenePrompts 单个场景的提示词
func (h *Handler) GenerateScenePrompts(c *gin.Context) {
	var req ScenePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "invalid request body", err.Error())
		return
	}

	set, err := h.Story.GenerateScenePrompts(c.Request.Context(), models.ModeFromFlag(req.Permissive), req.Scene, req.VisualGuide, req.ScriptStyleReference)
	if err != nil {
		h.Response.ServiceError(c, err)
		return
	}
	h.Response.Success(c, set)
}

// GenerateAllScenePrompts 整部大纲的提示词
func (h *Handler) GenerateAllScenePrompts(c *gin.Context) {
	var req BatchScenePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "invalid request body", err.Error())
		return
	}

	bundles, err := h.Story.GenerateAllScenePrompts(c.Request.Context(), models.ModeFromFlag(req.Permissive), req.Outline, req.ScriptStyleReference)
	if err != nil {
		h.Response.ServiceError(c, err)
		return
	}
	h.Response.Success(c, bundles)
}

// ListGenres 类型片指南
func (h *Handler) ListGenres(c *gin.Context) {
	h.Response.Success(c, h.Catalog.Genres())
}

// ListDirectors 导演风格
func (h *Handler) ListDirectors(c *gin.Context) {
	h.Response.Success(c, h.Catalog.Directors())
}

// ListCinematographers 摄影指导风格
func (h *Handler) ListCinematographers(c *gin.Context) {
	h.Response.Success(c, h.Catalog.Cinematographers())
}

// ListRules 22 条故事规则
func (h *Handler) ListRules(c *gin.Context) {
	h.Response.Success(c, services.PixarRules())
}

// GetProgress 任务进度快照
func (h *Handler) GetProgress(c *gin.Context) {
	tracker, exists := h.Story.Progress().GetTracker(c.Param("id"))
	if !exists {
		h.Response.NotFound(c, ErrorTaskNotFound, "task not found")
		return
	}
	h.Response.Success(c, tracker.Snapshot())
}

// StreamProgress 以SSE推送任务进度，任务结束后断开
func (h *Handler) StreamProgress(c *gin.Context) {
	tracker, exists := h.Story.Progress().GetTracker(c.Param("id"))
	if !exists {
		h.Response.NotFound(c, ErrorTaskNotFound, "task not found")
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	updates := tracker.Subscribe()
	defer tracker.Unsubscribe(updates)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			data, _ := json.Marshal(update)
			fmt.Fprintf(c.Writer, "event: progress\ndata: %s\n\n", data)
			c.Writer.Flush()
			if update.Status == services.TaskStatusCompleted || update.Status == services.TaskStatusFailed {
				return
			}
		case <-ticker.C:
			fmt.Fprintf(c.Writer, "event: heartbeat\ndata: {\"time\":%d}\n\n", time.Now().Unix())
			c.Writer.Flush()
		}
	}
}

// Health 服务状态
func (h *Handler) Health(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"status":               "ok",
		"providers":            h.Registry.Providers(),
		"registered_providers": llm.ListProviders(),
		"analyses":             len(h.Story.ListAnalyses()),
		"websocket_clients":    h.Socket.ActiveConnections(),
		"uptime_seconds":       int64(time.Since(h.StartedAt).Seconds()),
	})
}

// GetMetrics 指标快照
func (h *Handler) GetMetrics(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"pipeline": h.Metrics.Collector().GetMetrics(),
		"service":  h.Story.Stats().GetMetrics(),
	})
}

// ProgressWebSocket 以WebSocket推送任务进度
func (h *Handler) ProgressWebSocket(c *gin.Context) {
	h.Socket.Serve(c)
}
