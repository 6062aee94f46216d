package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        int
	LogLevel    string
	DatabaseURL string
	NatsURL     string
	NatsToken   string
	RedisURL    string
	APIToken    string

	LLMProvider     string
	GeminiAPIKey    string
	GeminiModel     string
	AnthropicAPIKey string
	AnthropicModel  string
	CacheTTL        time.Duration

	DocsDir            string
	SampleDir          string
	DebugDir           string
	UploadDir          string
	ManifestFile       string
	ProcessedFile      string
	OutputJSON         string
	OutputCSV          string
	DatasetFile        string
	DatasetDictFile    string
	TriggerFile        string
	WarehouseStateFile string
	TrainingStateFile  string
	BestPromptFile     string
	IterationsDir      string

	MonitorInterval   time.Duration
	WarehouseInterval time.Duration
	TrainingInterval  time.Duration
	ContinuousMode    bool
	UploadToWarehouse bool
	DryRun            bool
	MinRetrainRecords int
	MaxIterations     int
	MaxPromptChars    int
	MaxDocumentChars  int
	QuoteAwareScan    bool
	RepairMalformed   bool
	WorkerConcurrency int
}

// LoadDotEnv loads variables from the given .env files (default ".env")
// without overriding the process environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func Load() Config {
	return Config{
		Port:        envInt("BANORTE_PORT", 5000),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		DatabaseURL: envStr("DATABASE_URL", ""),
		NatsURL:     envStr("NATS_URL", ""),
		NatsToken:   envStr("NATS_TOKEN", ""),
		RedisURL:    envStr("REDIS_URL", ""),
		APIToken:    envStr("BANORTE_API_TOKEN", ""),

		LLMProvider:     strings.ToLower(envStr("LLM_PROVIDER", "gemini")),
		GeminiAPIKey:    envStr("GEMINI_API_KEY", ""),
		GeminiModel:     envStr("GEMINI_MODEL", "gemini-2.0-flash-exp"),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		CacheTTL:        envDuration("LLM_CACHE_TTL", 24*time.Hour),

		DocsDir:            envStr("DOCS_DIR", "docs"),
		SampleDir:          envStr("SAMPLE_DIR", "sample_sources"),
		DebugDir:           envStr("DEBUG_DIR", "debug"),
		UploadDir:          envStr("UPLOAD_DIR", "uploads_hackathon"),
		ManifestFile:       envStr("MANIFEST_FILE", "manifest.txt"),
		ProcessedFile:      envStr("PROCESADOS_FILE", "procesados.json"),
		OutputJSON:         envStr("OUTPUT_JSON", "salida_limpia.json"),
		OutputCSV:          envStr("OUTPUT_CSV", "results.csv"),
		DatasetFile:        envStr("DATASET_FILE", "training_vectors.json"),
		DatasetDictFile:    envStr("DATASET_DICT_FILE", "training_dataset.json"),
		TriggerFile:        envStr("TRIGGER_FILE", "retrain_trigger.flag"),
		WarehouseStateFile: envStr("WAREHOUSE_STATE_FILE", "monitor_state.json"),
		TrainingStateFile:  envStr("TRAINING_STATE_FILE", "training_state.json"),
		BestPromptFile:     envStr("BEST_PROMPT_FILE", "best_analysis_prompt.txt"),
		IterationsDir:      envStr("ITERATIONS_DIR", "prompt_iterations"),

		MonitorInterval:   envDuration("MONITOR_INTERVAL", 60*time.Second),
		WarehouseInterval: envDuration("WAREHOUSE_INTERVAL", 30*time.Second),
		TrainingInterval:  envDuration("TRAINING_INTERVAL", 30*time.Second),
		ContinuousMode:    envBool("CONTINUOUS_MODE", true),
		UploadToWarehouse: envBool("UPLOAD_TO_WAREHOUSE", false),
		DryRun:            envBool("DRY_RUN", false),
		MinRetrainRecords: envInt("MIN_RETRAIN_RECORDS", 1),
		MaxIterations:     envInt("MAX_ITERATIONS", 20),
		MaxPromptChars:    envInt("MAX_PROMPT_CHARS", 2000),
		MaxDocumentChars:  envInt("MAX_DOCUMENT_CHARS", 50000),
		QuoteAwareScan:    envBool("QUOTE_AWARE_SCAN", false),
		RepairMalformed:   envBool("REPAIR_MALFORMED_JSON", true),
		WorkerConcurrency: envInt("WORKER_CONCURRENCY", 2),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.ToLower(v)); err == nil {
			return b
		}
	}
	return fallback
}

// envDuration accepts Go durations ("90s") or a bare number of seconds.
// Zero and negative values fall back to the default.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		if d <= 0 {
			return fallback
		}
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}
