package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vlm-gateway/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STUDENT_API_URL", "")
	t.Setenv("TEACHER_API_URL", "")
	t.Setenv("DEFAULT_BACKEND", "")
	t.Setenv("IMAGE_STORE", "")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8003/v1/chat/completions", cfg.StudentAPIURL)
	assert.Equal(t, "http://localhost:8002", cfg.TeacherAPIURL)
	assert.Equal(t, "teacher", cfg.DefaultBackend)
	assert.Equal(t, 120*time.Second, cfg.Gateway.InferenceTimeout)
	assert.Equal(t, 60*time.Second, cfg.Gateway.TeacherTimeout)
	assert.Equal(t, 2*time.Second, cfg.Gateway.HealthTimeout)
	assert.Equal(t, filepath.Join("feedback_data", "images"), cfg.ImagesPath())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STUDENT_API_URL", "http://student.internal:9000/v1/chat/completions")
	t.Setenv("STUDENT_MODEL_NAME", "qwen-vl-small")
	t.Setenv("DEFAULT_BACKEND", "student")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://student.internal:9000/v1/chat/completions", cfg.StudentAPIURL)
	assert.Equal(t, "qwen-vl-small", cfg.StudentModelName)
	assert.Equal(t, "student", cfg.DefaultBackend)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte("teacher_timeout: 5s\nteacher_prompt_suffix: \"\"\nsft_log_file: sft.jsonl\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Gateway.TeacherTimeout)
	assert.Equal(t, "", cfg.Gateway.TeacherPromptSuffix)
	assert.Equal(t, "sft.jsonl", cfg.Gateway.SFTLogFile)
	assert.Equal(t, 120*time.Second, cfg.Gateway.InferenceTimeout)
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		return &config.Config{
			StudentAPIURL:    "http://s:1/v1/chat/completions",
			StudentModelName: "m",
			TeacherAPIURL:    "http://t:2",
			DefaultBackend:   "teacher",
			DataDir:          "data",
			ImageStore:       "local",
			Gateway:          config.DefaultGatewaySettings(),
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *config.Config)
	}{
		{"bad teacher url", func(c *config.Config) { c.TeacherAPIURL = "teacher:8002" }},
		{"unknown default backend", func(c *config.Config) { c.DefaultBackend = "oracle" }},
		{"supabase without url", func(c *config.Config) { c.ImageStore = "supabase" }},
		{"zero health timeout", func(c *config.Config) { c.Gateway.HealthTimeout = 0 }},
		{"same log file", func(c *config.Config) { c.Gateway.DPOLogFile = c.Gateway.SFTLogFile }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
