package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string

	LLMProvider        string
	LLMModel           string
	GeminiAPIKey       string
	OpenAIAPIKey       string
	LLMTimeout         time.Duration
	AnalysisValidation string
	PDFLocalText       bool

	SnapshotStore string
	LocalStoreDir string
	DatabaseURL   string
	SQLitePath    string
	RedisURL      string
	MongoURI      string
	MongoDatabase string
	AWSRegion     string
	S3Bucket      string
	S3Prefix      string
	SSEKMSKeyID   string

	AnalyzeRate  float64
	AnalyzeBurst int
}

var defaultEnvFiles = []string{".env", "cmd/.env"}

// Load reads configuration from defaults, local env files and environment
// variables, in increasing precedence.
func Load() Config {
	return load(defaultEnvFiles...)
}

func load(envFiles ...string) Config {
	v := viper.New()
	setDefaults(v)

	// Best-effort load of local env files for dev convenience.
	for _, path := range envFiles {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		_ = v.MergeInConfig()
	}
	v.AutomaticEnv()

	env := normalizeEnv(v.GetString("env"))
	geminiKey := strings.TrimSpace(v.GetString("gemini_api_key"))
	if geminiKey == "" {
		geminiKey = strings.TrimSpace(v.GetString("api_key"))
	}

	cfg := Config{
		Port:               v.GetString("port"),
		Env:                env,
		CORSAllowOrigin:    splitAndTrim(v.GetString("cors_allow_origins")),
		LLMProvider:        NormalizeProvider(v.GetString("llm_provider")),
		LLMModel:           strings.TrimSpace(v.GetString("llm_model")),
		GeminiAPIKey:       geminiKey,
		OpenAIAPIKey:       strings.TrimSpace(v.GetString("openai_api_key")),
		LLMTimeout:         time.Duration(v.GetInt("llm_timeout_seconds")) * time.Second,
		AnalysisValidation: strings.ToLower(strings.TrimSpace(v.GetString("analysis_validation"))),
		PDFLocalText:       v.GetBool("pdf_local_text"),
		SnapshotStore:      NormalizeStoreType(v.GetString("snapshot_store")),
		LocalStoreDir:      v.GetString("local_store_dir"),
		DatabaseURL:        strings.TrimSpace(v.GetString("database_url")),
		SQLitePath:         v.GetString("sqlite_path"),
		RedisURL:           strings.TrimSpace(v.GetString("redis_url")),
		MongoURI:           strings.TrimSpace(v.GetString("mongo_uri")),
		MongoDatabase:      v.GetString("mongo_database"),
		AWSRegion:          v.GetString("aws_region"),
		S3Bucket:           v.GetString("s3_bucket"),
		S3Prefix:           v.GetString("s3_prefix"),
		SSEKMSKeyID:        v.GetString("sse_kms_key_id"),
		AnalyzeRate:        v.GetFloat64("analyze_rate"),
		AnalyzeBurst:       v.GetInt("analyze_burst"),
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = 120 * time.Second
	}

	if env == "production" && cfg.SnapshotStore == "postgres" && cfg.DatabaseURL == "" {
		log.Printf("DATABASE_URL is required for SNAPSHOT_STORE=postgres")
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("env", "dev")
	v.SetDefault("cors_allow_origins", "http://localhost:5173")
	v.SetDefault("llm_provider", "gemini")
	v.SetDefault("llm_timeout_seconds", 120)
	v.SetDefault("analysis_validation", "strict")
	v.SetDefault("pdf_local_text", false)
	v.SetDefault("snapshot_store", "local")
	v.SetDefault("local_store_dir", "./data")
	v.SetDefault("sqlite_path", "./data/nci.db")
	v.SetDefault("mongo_database", "nci")
	v.SetDefault("aws_region", "us-east-1")
	v.SetDefault("analyze_rate", 0.2)
	v.SetDefault("analyze_burst", 3)
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

// NormalizeProvider maps a provider name to gemini, openai or none.
func NormalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "openai":
		return "openai"
	case "none", "off":
		return "none"
	default:
		return "gemini"
	}
}

// NormalizeStoreType maps a store name and its aliases to a backend key.
// Unknown names fall back to local.
func NormalizeStoreType(raw string) string {
	switch s := strings.ToLower(strings.TrimSpace(raw)); s {
	case "memory", "s3", "postgres", "sqlite", "redis", "mongo":
		return s
	case "postgresql", "pg":
		return "postgres"
	case "mongodb":
		return "mongo"
	default:
		return "local"
	}
}
