package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// OpenAIConfig holds the LLM repair gateway's OpenAI configuration.
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// PipelineConfig holds everything the orchestrator and its collaborators
// need: timeouts, thresholds, and the filesystem paths the inbox worker,
// audit log, and export adapters read and write.
type PipelineConfig struct {
	OCRTimeout                  time.Duration `mapstructure:"ocr_timeout"`
	LLMTimeout                  time.Duration `mapstructure:"llm_timeout"`
	ArithmeticTolerance         float64       `mapstructure:"arithmetic_tolerance"`
	RoundingDecimalPlaces       int           `mapstructure:"rounding_decimal_places"`
	FieldConfidenceThreshold    float64       `mapstructure:"field_confidence_threshold"`
	CategoryConfidenceThreshold float64       `mapstructure:"category_confidence_threshold"`
	MaxLLMPatches               int           `mapstructure:"max_llm_patches"`
	VendorCacheSize             int           `mapstructure:"vendor_cache_size"`
	InboxDir                    string        `mapstructure:"inbox_dir"`
	PollInterval                time.Duration `mapstructure:"poll_interval"`
	ExportDir                   string        `mapstructure:"export_dir"`
	AuditLogPath                string        `mapstructure:"audit_log_path"`
}

// LoggerConfig holds logger configuration.
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// OpenAI defaults
	viper.SetDefault("openai.model", "gpt-4o-mini")
	viper.SetDefault("openai.temperature", 0.1)
	viper.SetDefault("openai.timeout", 30*time.Second)

	// Pipeline defaults
	viper.SetDefault("pipeline.ocr_timeout", 60*time.Second)
	viper.SetDefault("pipeline.llm_timeout", 30*time.Second)
	viper.SetDefault("pipeline.arithmetic_tolerance", 0.02)
	viper.SetDefault("pipeline.rounding_decimal_places", 2)
	viper.SetDefault("pipeline.field_confidence_threshold", 0.82)
	viper.SetDefault("pipeline.category_confidence_threshold", 0.75)
	viper.SetDefault("pipeline.max_llm_patches", 5)
	viper.SetDefault("pipeline.vendor_cache_size", 500)
	viper.SetDefault("pipeline.inbox_dir", "data/inbox")
	viper.SetDefault("pipeline.poll_interval", 10*time.Second)
	viper.SetDefault("pipeline.export_dir", "data/exports")
	viper.SetDefault("pipeline.audit_log_path", "data/audit.jsonl")

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration. OPENAI_API_KEY
// is the only secret this project still has a surface for.
func bindEnvVars() {
	viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
}

// Validate validates the configuration. An empty openai.api_key is
// deliberately allowed: wiring.BuildOrchestrator treats it as "no LLM
// repair gateway configured" rather than a startup failure, since a job
// routed to llm_fallback with no gateway falls straight through to
// needs_review, the same outcome as an LlmError.
func (c *Config) Validate() error {
	if c.Pipeline.FieldConfidenceThreshold <= 0 || c.Pipeline.FieldConfidenceThreshold > 1 {
		return fmt.Errorf("pipeline.field_confidence_threshold must be in (0,1]")
	}
	if c.Pipeline.CategoryConfidenceThreshold <= 0 || c.Pipeline.CategoryConfidenceThreshold > 1 {
		return fmt.Errorf("pipeline.category_confidence_threshold must be in (0,1]")
	}
	return nil
}
