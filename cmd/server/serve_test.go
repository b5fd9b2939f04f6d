package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vlm-gateway/internal/config"
	"vlm-gateway/internal/storage"
)

func TestNewGateway_RegistersRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	teacher := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok","model_loaded":true}`))
	}))
	defer teacher.Close()

	t.Setenv("TEACHER_API_URL", teacher.URL)
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("DATABASE_URL", "")
	t.Setenv("IMAGE_STORE", "local")
	cfg, err := config.Load("")
	require.NoError(t, err)

	g, err := newGateway(context.Background(), cfg, prometheus.NewRegistry())
	require.NoError(t, err)
	defer g.Close()

	routes := map[string]bool{}
	for _, r := range g.engine.Routes() {
		routes[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /health", "GET /metrics", "POST /inference", "POST /student", "POST /teacher",
		"GET /stats", "POST /feedback/sft", "POST /feedback/dpo", "GET /feedback/stats",
	} {
		assert.True(t, routes[want], want)
	}

	w := httptest.NewRecorder()
	g.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","gateway":"active","backend_connection":"connected","model_loaded":true}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	g.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
}

func TestNewImageStore_LocalLogsDirectory(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("IMAGE_STORE", "local")
	cfg, err := config.Load("")
	require.NoError(t, err)

	store, err := newImageStore(cfg)
	require.NoError(t, err)
	require.IsType(t, &storage.LocalStore{}, store)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "storing feedback images locally", entry.Message)
	assert.Equal(t, cfg.ImagesPath(), entry.Data["dir"])
}
