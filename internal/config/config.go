package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Backends
	StudentAPIURL    string
	StudentModelName string
	TeacherAPIURL    string
	DefaultBackend   string

	// Feedback storage
	DataDir               string
	ImageStore            string
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	// Optional feedback index
	DatabaseURL string

	// Server
	Port        string
	Environment string
	LogLevel    string

	Gateway GatewaySettings
}

// GatewaySettings are compiled-in defaults that an optional YAML file may override.
type GatewaySettings struct {
	InferenceTimeout    time.Duration `yaml:"inference_timeout"`
	TeacherTimeout      time.Duration `yaml:"teacher_timeout"`
	HealthTimeout       time.Duration `yaml:"health_timeout"`
	StatsTimeout        time.Duration `yaml:"stats_timeout"`
	TeacherPromptSuffix string        `yaml:"teacher_prompt_suffix"`
	StudentMaxTokens    int           `yaml:"student_max_tokens"`
	ImagesDir           string        `yaml:"images_dir"`
	SFTLogFile          string        `yaml:"sft_log_file"`
	DPOLogFile          string        `yaml:"dpo_log_file"`
	MaxUploadBytes      int64         `yaml:"max_upload_bytes"`
}

func DefaultGatewaySettings() GatewaySettings {
	return GatewaySettings{
		InferenceTimeout:    120 * time.Second,
		TeacherTimeout:      60 * time.Second,
		HealthTimeout:       2 * time.Second,
		StatsTimeout:        10 * time.Second,
		TeacherPromptSuffix: "\nAnswer in a structured format: list the main objects, their attributes, and a one-sentence summary.",
		StudentMaxTokens:    1024,
		ImagesDir:           "images",
		SFTLogFile:          "sft_dataset.jsonl",
		DPOLogFile:          "dpo_dataset.jsonl",
		MaxUploadBytes:      32 << 20,
	}
}

// Load reads the environment and, when path is set, overlays the YAML gateway settings file.
func Load(path string) (*Config, error) {
	cfg := &Config{
		StudentAPIURL:    getEnv("STUDENT_API_URL", "http://localhost:8003/v1/chat/completions"),
		StudentModelName: getEnv("STUDENT_MODEL_NAME", "student"),
		TeacherAPIURL:    getEnv("TEACHER_API_URL", "http://localhost:8002"),
		DefaultBackend:   getEnv("DEFAULT_BACKEND", "teacher"),

		DataDir:               getEnv("DATA_DIR", "feedback_data"),
		ImageStore:            getEnv("IMAGE_STORE", "local"),
		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "feedback-images"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		Gateway: DefaultGatewaySettings(),
	}

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	// Fields absent from the file keep their compiled-in values.
	if err := yaml.Unmarshal(data, &c.Gateway); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if err := validateURL("STUDENT_API_URL", c.StudentAPIURL); err != nil {
		return err
	}
	if err := validateURL("TEACHER_API_URL", c.TeacherAPIURL); err != nil {
		return err
	}
	if c.StudentModelName == "" {
		return fmt.Errorf("STUDENT_MODEL_NAME is required")
	}
	if c.DefaultBackend != "teacher" && c.DefaultBackend != "student" {
		return fmt.Errorf("DEFAULT_BACKEND must be teacher or student, got %q", c.DefaultBackend)
	}
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}

	switch c.ImageStore {
	case "local":
	case "supabase":
		if c.SupabaseURL == "" {
			return fmt.Errorf("SUPABASE_URL is required when IMAGE_STORE=supabase")
		}
		if c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_SERVICE_KEY is required when IMAGE_STORE=supabase")
		}
	default:
		return fmt.Errorf("IMAGE_STORE must be local or supabase, got %q", c.ImageStore)
	}

	g := c.Gateway
	if g.InferenceTimeout <= 0 || g.TeacherTimeout <= 0 || g.HealthTimeout <= 0 || g.StatsTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if g.SFTLogFile == "" || g.DPOLogFile == "" || g.SFTLogFile == g.DPOLogFile {
		return fmt.Errorf("sft_log_file and dpo_log_file must be set and distinct")
	}
	if g.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive")
	}
	return nil
}

func (c *Config) ImagesPath() string {
	return filepath.Join(c.DataDir, c.Gateway.ImagesDir)
}

func (c *Config) SFTLogPath() string {
	return filepath.Join(c.DataDir, c.Gateway.SFTLogFile)
}

func (c *Config) DPOLogPath() string {
	return filepath.Join(c.DataDir, c.Gateway.DPOLogFile)
}

func validateURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", name, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s has no host", name)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
