package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/StoryForge/internal/catalog"
	"github.com/Corphon/StoryForge/internal/config"
	"github.com/Corphon/StoryForge/internal/llm"
	"github.com/Corphon/StoryForge/internal/llm/providers/mock"
	"github.com/Corphon/StoryForge/internal/models"
	"github.com/Corphon/StoryForge/internal/services"
	"github.com/Corphon/StoryForge/internal/utils"
)

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
}

// stubProvider 固定回复或固定错误
type stubProvider struct {
	reply string
	err   error
}

func (p *stubProvider) Initialize(config map[string]string) error { return nil }
func (p *stubProvider) GetName() string                            { return "stub" }
func (p *stubProvider) GetSupportedModels() []string               { return []string{"stub-1"} }

func (p *stubProvider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &llm.CompletionResponse{Text: p.reply}, nil
}

// recordingProvider 记录最后一次提示词，回复交给 mock
type recordingProvider struct {
	mock.Provider
	mu         sync.Mutex
	lastPrompt string
}

func (p *recordingProvider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.lastPrompt = req.Prompt
	p.mu.Unlock()
	return p.Provider.CompleteText(ctx, req)
}

func (p *recordingProvider) prompt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPrompt
}

func newTestRouter(t *testing.T, p llm.Provider, tune func(cfg *config.Config)) (*gin.Engine, *Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := utils.NewNopLogger()
	metrics := utils.NewPipelineMetrics(utils.NewMetricsCollector(), logger)
	factory := func(mode models.ContentMode) (*services.LLMService, error) {
		return services.NewLLMService(mode, p.GetName(), p, "", services.LLMServiceOptions{Logger: logger, Metrics: metrics}), nil
	}
	registry := services.NewProviderRegistry(factory, nil)
	cache := services.NewAnalysisCache(nil, logger, metrics)
	cat := catalog.Default()
	story := services.NewStoryService(registry, cache, services.NewStyleAggregator(cat, cache, 0), services.StoryServiceOptions{
		Logger:  logger,
		Metrics: metrics,
	})

	cfg := config.Default()
	cfg.Server.RateLimitRPS = 0
	if tune != nil {
		tune(cfg)
	}

	h := NewHandler(story, cat, registry, metrics, logger)
	return SetupRouter(t.Context(), h, cfg), h
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestAnalyzeScript_ThenGetAndList(t *testing.T) {
	r, _ := newTestRouter(t, &mock.Provider{}, nil)

	w, env := doJSON(t, r, http.MethodPost, "/api/analyses", AnalyzeRequest{
		Title:   "Chinatown",
		Genre:   "film-noir",
		Content: "INT. OFFICE - DAY\nJake reads the paper.",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.RequestID)
	assert.Equal(t, env.RequestID, w.Header().Get(requestIDHeader))

	var analysis models.ScriptAnalysis
	require.NoError(t, json.Unmarshal(env.Data, &analysis))
	assert.Equal(t, "Chinatown", analysis.Title)
	assert.NotEmpty(t, analysis.SampleExcerpts)

	w, env = doJSON(t, r, http.MethodGet, "/api/analyses/chinatown", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = doJSON(t, r, http.MethodGet, "/api/analyses", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.ScriptAnalysis
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)
}

func TestAnalyzeScript_StatusMapping(t *testing.T) {
	t.Run("validation", func(t *testing.T) {
		r, _ := newTestRouter(t, &mock.Provider{}, nil)
		w, env := doJSON(t, r, http.MethodPost, "/api/analyses", AnalyzeRequest{Title: "", Content: "x"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, ErrorBadRequest, env.Error.Code)
	})

	t.Run("missing analysis", func(t *testing.T) {
		r, _ := newTestRouter(t, &mock.Provider{}, nil)
		w, env := doJSON(t, r, http.MethodGet, "/api/analyses/unknown", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, ErrorAnalysisNotFound, env.Error.Code)
	})

	t.Run("unparseable model reply", func(t *testing.T) {
		r, _ := newTestRouter(t, &stubProvider{reply: "sorry, no JSON today"}, nil)
		w, env := doJSON(t, r, http.MethodPost, "/api/analyses", AnalyzeRequest{Title: "T", Content: "x"})
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, ErrorModelResponseInvalid, env.Error.Code)
	})

	t.Run("provider down", func(t *testing.T) {
		r, _ := newTestRouter(t, &stubProvider{err: errors.New("connection refused")}, nil)
		w, env := doJSON(t, r, http.MethodPost, "/api/analyses", AnalyzeRequest{Title: "T", Content: "x"})
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, ErrorLLMServiceUnavailable, env.Error.Code)
	})
}

func TestAnalyzeScript_AsyncReturnsTask(t *testing.T) {
	r, h := newTestRouter(t, &mock.Provider{}, nil)

	w, env := doJSON(t, r, http.MethodPost, "/api/analyses", AnalyzeRequest{Title: "Async", Content: "x", Async: true})
	require.Equal(t, http.StatusAccepted, w.Code)

	var accepted TaskAccepted
	require.NoError(t, json.Unmarshal(env.Data, &accepted))
	require.NotEmpty(t, accepted.TaskID)
	assert.Equal(t, "/ws/progress/"+accepted.TaskID, accepted.StreamURL)

	tracker, ok := h.Story.Progress().GetTracker(accepted.TaskID)
	require.True(t, ok)
	select {
	case <-tracker.Done:
	case <-time.After(2 * time.Second):
		t.Fatal("analysis task did not finish")
	}

	w, env = doJSON(t, r, http.MethodGet, accepted.StatusURL, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var update services.ProgressUpdate
	require.NoError(t, json.Unmarshal(env.Data, &update))
	assert.Equal(t, services.TaskStatusCompleted, update.Status)
	assert.Equal(t, "Async", update.Result)

	w, env = doJSON(t, r, http.MethodGet, "/api/progress/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ErrorTaskNotFound, env.Error.Code)
}

func TestUploadScript(t *testing.T) {
	r, _ := newTestRouter(t, &mock.Provider{}, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "chinatown.fountain")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("INT. OFFICE - DAY\r\nJake reads the paper.\r\n"))
	require.NoError(t, mw.WriteField("genre", "film-noir"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analyses/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var analysis models.ScriptAnalysis
	require.NoError(t, json.Unmarshal(env.Data, &analysis))
	assert.Equal(t, "chinatown", analysis.Title)
	assert.Equal(t, "film-noir", analysis.Genre)
}

func TestUploadScript_RejectsUnsupportedFile(t *testing.T) {
	r, _ := newTestRouter(t, &mock.Provider{}, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "script.docx")
	_, _ = fw.Write([]byte("binary"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analyses/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), ErrorFileInvalid)
}

func TestGenerateOutlineAndPrompts(t *testing.T) {
	r, _ := newTestRouter(t, &mock.Provider{}, nil)

	w, env := doJSON(t, r, http.MethodPost, "/api/outlines", map[string]interface{}{
		"concept":       "a hydrologist finds the town's water is being stolen",
		"targetGenre":   "film-noir",
		"directorStyle": "christopher-nolan",
		"targetLength":  "short",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var outline models.GeneratedStoryOutline
	require.NoError(t, json.Unmarshal(env.Data, &outline))
	assert.Equal(t, "The Reservoir Ledger", outline.Title)
	assert.Equal(t, "film-noir", outline.Genre)
	assert.NotContains(t, outline.StyleInfluences, "ignored")
	assert.True(t, strings.HasSuffix(outline.VisualGuide.PromptPrefix, "sun-bleached california noir,"))

	w, env = doJSON(t, r, http.MethodPost, "/api/outlines/scene-prompts", BatchScenePromptRequest{Outline: &outline})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var bundles []models.ScenePromptBundle
	require.NoError(t, json.Unmarshal(env.Data, &bundles))
	require.Len(t, bundles, outline.SceneCount())
	assert.Equal(t, "cartoon, oversaturated", bundles[0].Prompts.NegativePrompt)

	w, env = doJSON(t, r, http.MethodPost, "/api/scene-prompts", ScenePromptRequest{Scene: outline.Acts[0].Scenes[0]})
	require.Equal(t, http.StatusOK, w.Code)
	var set models.ScenePromptSet
	require.NoError(t, json.Unmarshal(env.Data, &set))
	assert.Equal(t, services.FallbackNegativePrompt, set.NegativePrompt)
}

func TestGenerateScenePrompts_CamelCaseFields(t *testing.T) {
	provider := &recordingProvider{}
	r, _ := newTestRouter(t, provider, nil)

	w, _ := doJSON(t, r, http.MethodPost, "/api/analyses", AnalyzeRequest{Title: "Chinatown", Content: "INT. OFFICE - DAY\nJake reads the paper."})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env := doJSON(t, r, http.MethodPost, "/api/scene-prompts", map[string]interface{}{
		"scene": map[string]interface{}{"sceneNumber": 1, "location": "Dry riverbed", "timeOfDay": "dusk"},
		"visualGuide": map[string]interface{}{
			"promptPrefix":   "grainy 16mm,",
			"negativePrompt": "text, watermark",
		},
		"scriptStyleReference": "Chinatown",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var set models.ScenePromptSet
	require.NoError(t, json.Unmarshal(env.Data, &set))
	assert.True(t, strings.HasPrefix(set.ImagePrompt, "grainy 16mm,"), set.ImagePrompt)
	assert.Equal(t, "text, watermark", set.NegativePrompt)
	assert.Contains(t, provider.prompt(), "SCRIPT STYLE REFERENCE: Chinatown")
}

func TestGenerateOutline_Validation(t *testing.T) {
	r, _ := newTestRouter(t, &mock.Provider{}, nil)

	w, _ := doJSON(t, r, http.MethodPost, "/api/outlines", map[string]interface{}{"targetGenre": "horror"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/api/outlines", map[string]interface{}{"concept": " \n\t ", "targetGenre": "horror"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/api/outlines", map[string]interface{}{"concept": "x", "targetLength": "epic"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/api/outlines/scene-prompts", BatchScenePromptRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCatalogHealthAndMetrics(t *testing.T) {
	r, _ := newTestRouter(t, &mock.Provider{}, nil)

	w, env := doJSON(t, r, http.MethodGet, "/api/catalog/rules", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rules []models.PixarRule
	require.NoError(t, json.Unmarshal(env.Data, &rules))
	assert.Len(t, rules, 22)

	for _, path := range []string{"/api/catalog/genres", "/api/catalog/directors", "/api/catalog/cinematographers"} {
		w, env = doJSON(t, r, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.NotEqual(t, "null", string(env.Data), path)
	}

	w, env = doJSON(t, r, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &health))
	assert.Equal(t, "ok", health["status"])
	assert.EqualValues(t, 0, health["analyses"])
	assert.Contains(t, health["registered_providers"], "mock")

	w, env = doJSON(t, r, http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "api_requests_total")
}

func TestRateLimit(t *testing.T) {
	r, _ := newTestRouter(t, &mock.Provider{}, func(cfg *config.Config) {
		cfg.Server.RateLimitRPS = 0.001
		cfg.Server.RateLimitBurst = 1
	})

	w, _ := doJSON(t, r, http.MethodPost, "/api/outlines", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := doJSON(t, r, http.MethodPost, "/api/outlines", map[string]interface{}{})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, ErrorRateLimited, env.Error.Code)

	// 只读接口不限流
	w, _ = doJSON(t, r, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestIDHonoured(t *testing.T) {
	r, _ := newTestRouter(t, &mock.Provider{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, "trace-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "trace-123", w.Header().Get(requestIDHeader))
	assert.Contains(t, w.Body.String(), `"request_id":"trace-123"`)
}
