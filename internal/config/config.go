// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 存储后端
const (
	StoreFile     = "file"
	StoreS3       = "s3"
	StorePostgres = "postgres"
)

// Config 存储应用配置。由 Load 构造后显式传递，不做全局单例
type Config struct {
	Server     ServerConfig   `yaml:"server"`
	DataDir    string         `yaml:"data_dir"`
	LogDir     string         `yaml:"log_dir"`
	DebugMode  bool           `yaml:"debug_mode"`
	Storage    StorageConfig  `yaml:"storage"`
	Restricted ProviderConfig `yaml:"restricted"`
	Permissive ProviderConfig `yaml:"permissive"`
	Catalog    CatalogConfig  `yaml:"catalog"`
	Pipeline   PipelineConfig `yaml:"pipeline"`
}

type ServerConfig struct {
	Port           string        `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
	RateLimitBurst int           `yaml:"rate_limit_burst"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// StorageConfig 剧本分析缓存的持久化位置
type StorageConfig struct {
	Kind        string   `yaml:"kind"` // file | s3 | postgres
	AnalysisDir string   `yaml:"analysis_dir"`
	DatabaseURL string   `yaml:"database_url"`
	S3          S3Config `yaml:"s3"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// ProviderConfig 一种内容模式对应的模型提供者
type ProviderConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
}

// AsMap 转成 llm.Provider.Initialize 需要的配置表
func (p ProviderConfig) AsMap() map[string]string {
	m := map[string]string{"api_key": p.APIKey}
	if p.Model != "" {
		m["default_model"] = p.Model
	}
	if p.BaseURL != "" {
		m["base_url"] = p.BaseURL
	}
	return m
}

type CatalogConfig struct {
	// 为空时使用内置目录
	Path string `yaml:"path"`
}

type PipelineConfig struct {
	SampleChars       int           `yaml:"sample_chars"`
	StyleContextChars int           `yaml:"style_context_chars"`
	LLMTimeout        time.Duration `yaml:"llm_timeout"`
	ResponseCacheSize int           `yaml:"response_cache_size"`
	ResponseCacheTTL  time.Duration `yaml:"response_cache_ttl"`
	BatchConcurrency  int           `yaml:"batch_concurrency"`
}

// Default 返回全部默认值
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   5 * time.Minute,
			RateLimitRPS:   2,
			RateLimitBurst: 10,
			AllowedOrigins: []string{"*"},
		},
		DataDir:   "data",
		LogDir:    "logs",
		DebugMode: false,
		Storage: StorageConfig{
			Kind:        StoreFile,
			AnalysisDir: "data/script-analyses",
		},
		Restricted: ProviderConfig{Provider: "gemini", Model: "gemini-2.5-flash"},
		Permissive: ProviderConfig{Provider: "openrouter", Model: "nousresearch/hermes-3-llama-3.1-405b"},
		Pipeline: PipelineConfig{
			SampleChars:       30000,
			StyleContextChars: 6000,
			LLMTimeout:        120 * time.Second,
			ResponseCacheSize: 256,
			ResponseCacheTTL:  30 * time.Minute,
			BatchConcurrency:  3,
		},
	}
}

// Load 依次读取 .env（可选）、STORYFORGE_CONFIG 指向的 YAML（可选）、环境变量
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	_ = godotenv.Load()
	return LoadFile(os.Getenv("STORYFORGE_CONFIG"))
}

// LoadFile 以 path 处的 YAML 为基础叠加环境变量。path 为空时只用默认值和环境变量
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.RateLimitRPS = getEnvFloat("RATE_LIMIT_RPS", cfg.Server.RateLimitRPS)
	cfg.Server.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", cfg.Server.RateLimitBurst)
	if origins := getEnv("ALLOWED_ORIGINS", ""); origins != "" {
		cfg.Server.AllowedOrigins = splitList(origins)
	}

	cfg.DataDir = getEnv("DATA_DIR", cfg.DataDir)
	cfg.LogDir = getEnv("LOG_DIR", cfg.LogDir)
	cfg.DebugMode = getEnvBool("DEBUG_MODE", cfg.DebugMode)

	cfg.Storage.Kind = strings.ToLower(getEnv("ANALYSIS_STORE", cfg.Storage.Kind))
	cfg.Storage.AnalysisDir = getEnv("ANALYSIS_DIR", cfg.Storage.AnalysisDir)
	cfg.Storage.DatabaseURL = getEnv("DATABASE_URL", cfg.Storage.DatabaseURL)
	cfg.Storage.S3.Endpoint = getEnv("S3_ENDPOINT", cfg.Storage.S3.Endpoint)
	cfg.Storage.S3.Region = getEnv("S3_REGION", cfg.Storage.S3.Region)
	cfg.Storage.S3.AccessKey = getEnv("S3_ACCESS_KEY", cfg.Storage.S3.AccessKey)
	cfg.Storage.S3.SecretKey = getEnv("S3_SECRET_KEY", cfg.Storage.S3.SecretKey)
	cfg.Storage.S3.Bucket = getEnv("S3_BUCKET", cfg.Storage.S3.Bucket)
	cfg.Storage.S3.UseSSL = getEnvBool("S3_USE_SSL", cfg.Storage.S3.UseSSL)

	applyProviderEnv("RESTRICTED", &cfg.Restricted)
	applyProviderEnv("PERMISSIVE", &cfg.Permissive)

	cfg.Catalog.Path = getEnv("STYLE_CATALOG_PATH", cfg.Catalog.Path)

	cfg.Pipeline.SampleChars = getEnvInt("SCRIPT_SAMPLE_CHARS", cfg.Pipeline.SampleChars)
	cfg.Pipeline.StyleContextChars = getEnvInt("STYLE_CONTEXT_CHARS", cfg.Pipeline.StyleContextChars)
	cfg.Pipeline.LLMTimeout = getEnvDuration("LLM_TIMEOUT", cfg.Pipeline.LLMTimeout)
	cfg.Pipeline.ResponseCacheSize = getEnvInt("LLM_CACHE_SIZE", cfg.Pipeline.ResponseCacheSize)
	cfg.Pipeline.ResponseCacheTTL = getEnvDuration("LLM_CACHE_TTL", cfg.Pipeline.ResponseCacheTTL)
	cfg.Pipeline.BatchConcurrency = getEnvInt("BATCH_CONCURRENCY", cfg.Pipeline.BatchConcurrency)
}

func applyProviderEnv(prefix string, p *ProviderConfig) {
	p.Provider = strings.ToLower(getEnv(prefix+"_PROVIDER", p.Provider))
	p.APIKey = getEnv(prefix+"_API_KEY", p.APIKey)
	p.Model = getEnv(prefix+"_MODEL", p.Model)
	p.BaseURL = getEnv(prefix+"_BASE_URL", p.BaseURL)
}

// Validate 检查必须成立的配置关系
func (c *Config) Validate() error {
	switch c.Storage.Kind {
	case StoreFile:
		if c.Storage.AnalysisDir == "" {
			return fmt.Errorf("analysis_dir is required for the file store")
		}
	case StoreS3:
		if c.Storage.S3.Endpoint == "" || c.Storage.S3.Bucket == "" {
			return fmt.Errorf("s3 endpoint and bucket are required for the s3 store")
		}
	case StorePostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("database_url is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown analysis store %q", c.Storage.Kind)
	}

	if c.Restricted.Provider == "" || c.Permissive.Provider == "" {
		return fmt.Errorf("both restricted and permissive providers must be configured")
	}
	if c.Pipeline.SampleChars < 3 {
		return fmt.Errorf("sample_chars must be at least 3")
	}
	if c.Pipeline.StyleContextChars <= 0 {
		return fmt.Errorf("style_context_chars must be positive")
	}
	return nil
}

// EnsureDirs 创建数据和日志目录
func (c *Config) EnsureDirs() error {
	dirs := []string{c.DataDir, c.LogDir}
	if c.Storage.Kind == StoreFile {
		dirs = append(dirs, c.Storage.AnalysisDir)
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建目录失败 %s: %w", dir, err)
		}
	}
	return nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
