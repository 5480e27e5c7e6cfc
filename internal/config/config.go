package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the medinventory server and CLI.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Redis    RedisConfig
	AI       AIConfig
	Pipeline PipelineConfig
}

type ServerConfig struct {
	Port               int
	Env                string
	RateLimitPerMinute int
	JobRetention       time.Duration
}

type StorageConfig struct {
	UploadDir      string
	ResultsDir     string
	MaxUploadBytes int64
}

// RedisConfig is optional; an empty URL selects the in-process cache.
type RedisConfig struct {
	URL string
}

type AIConfig struct {
	Provider       string
	RequestTimeout time.Duration
	// DescriptionModel overrides the provider model for the description stage.
	DescriptionModel string
	Ollama           OllamaConfig
	VLLM             VLLMConfig
	OpenAI           OpenAIConfig
	Anthropic        AnthropicConfig
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type VLLMConfig struct {
	BaseURL string
	Model   string
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type PipelineConfig struct {
	BatchSize        int
	CategoryPause    time.Duration
	FacilityPause    time.Duration
	DescriptionPause time.Duration
	DescriptionRPM   int
	PreserveExisting bool
	KeywordsFile     string
	CostPer1KTokens  float64
	DescribeAttempts int
}

var validProviders = map[string]bool{
	"ollama":    true,
	"vllm":      true,
	"openai":    true,
	"anthropic": true,
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	provider := envString("AI_PROVIDER", "openai")

	descriptionModel := os.Getenv("AI_DESCRIPTION_MODEL")
	if descriptionModel == "" && provider == "openai" {
		descriptionModel = "gpt-3.5-turbo"
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               envInt("MEDINV_PORT", 8080),
			Env:                envString("MEDINV_ENV", "development"),
			RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 30),
			JobRetention:       envDuration("JOB_RETENTION", time.Hour),
		},
		Storage: StorageConfig{
			UploadDir:      envString("UPLOAD_DIR", "uploads"),
			ResultsDir:     envString("RESULTS_DIR", "results"),
			MaxUploadBytes: int64(envInt("MAX_UPLOAD_BYTES", 16<<20)),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		AI: AIConfig{
			Provider:         provider,
			RequestTimeout:   envDurationSecs("AI_REQUEST_TIMEOUT_SECS", 60*time.Second),
			DescriptionModel: descriptionModel,
			Ollama: OllamaConfig{
				BaseURL: envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   envString("OLLAMA_MODEL", "llama3"),
			},
			VLLM: VLLMConfig{
				BaseURL: envString("VLLM_BASE_URL", "http://localhost:8000"),
				Model:   envString("VLLM_MODEL", ""),
			},
			OpenAI: OpenAIConfig{
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Model:   envString("OPENAI_MODEL", "gpt-4"),
				BaseURL: envString("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			},
			Anthropic: AnthropicConfig{
				APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
				Model:   envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
				BaseURL: os.Getenv("ANTHROPIC_BASE_URL"),
			},
		},
		Pipeline: PipelineConfig{
			BatchSize:        envInt("PIPELINE_BATCH_SIZE", 50),
			CategoryPause:    envDuration("PIPELINE_CATEGORY_PAUSE", 10*time.Second),
			FacilityPause:    envDuration("PIPELINE_FACILITY_PAUSE", 5*time.Second),
			DescriptionPause: envDuration("PIPELINE_DESCRIPTION_PAUSE", 0),
			DescriptionRPM:   envInt("PIPELINE_DESCRIPTION_RPM", 50),
			PreserveExisting: envBool("PIPELINE_PRESERVE_EXISTING", true),
			KeywordsFile:     os.Getenv("PIPELINE_KEYWORDS_FILE"),
			CostPer1KTokens:  envFloat("PIPELINE_COST_PER_1K_TOKENS", 0.002),
			DescribeAttempts: envInt("PIPELINE_DESCRIBE_ATTEMPTS", 3),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("MEDINV_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Storage.UploadDir == "" || c.Storage.ResultsDir == "" {
		return fmt.Errorf("UPLOAD_DIR and RESULTS_DIR must not be empty")
	}
	if c.Storage.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}

	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of ollama, vllm, openai, anthropic; got %q", c.AI.Provider)
	}

	if c.AI.Provider == "openai" && c.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}
	if c.AI.Provider == "anthropic" && c.AI.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is anthropic")
	}
	if c.AI.Provider == "vllm" && c.AI.VLLM.Model == "" {
		return fmt.Errorf("VLLM_MODEL is required when AI_PROVIDER is vllm")
	}

	for name, u := range map[string]string{
		"OPENAI_BASE_URL": c.AI.OpenAI.BaseURL,
		"OLLAMA_BASE_URL": c.AI.Ollama.BaseURL,
		"VLLM_BASE_URL":   c.AI.VLLM.BaseURL,
	} {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("%s must start with http:// or https://, got %q", name, u)
		}
	}

	if c.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("PIPELINE_BATCH_SIZE must be greater than 0, got %d", c.Pipeline.BatchSize)
	}
	if c.Pipeline.DescriptionRPM < 0 {
		return fmt.Errorf("PIPELINE_DESCRIPTION_RPM must not be negative, got %d", c.Pipeline.DescriptionRPM)
	}
	if c.Pipeline.DescribeAttempts <= 0 {
		return fmt.Errorf("PIPELINE_DESCRIBE_ATTEMPTS must be greater than 0, got %d", c.Pipeline.DescribeAttempts)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
