package backend_test

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vlm-gateway/internal/backend"
)

func TestStudentAdapter_EncodeChatPayload(t *testing.T) {
	a := backend.NewStudentAdapter("http://student:8003/v1/chat/completions", "qwen-student", 0)
	image := []byte("fake-jpeg")

	payload, err := a.Encode(backend.NormalizedRequest{
		Image:    image,
		Filename: "x.jpg",
		MimeType: "image/jpeg",
		Query:    "what is this",
	})
	require.NoError(t, err)
	assert.Equal(t, "application/json", payload.ContentType)

	var body map[string]any
	require.NoError(t, json.Unmarshal(payload.Body, &body))

	assert.Equal(t, "qwen-student", body["model"])
	assert.Equal(t, 0.0, body["temperature"])
	assert.Equal(t, float64(backend.DefaultMaxTokens), body["max_tokens"])

	messages := body["messages"].([]any)
	require.Len(t, messages, 1)
	content := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 2)

	imagePart := content[0].(map[string]any)
	assert.Equal(t, "image_url", imagePart["type"])
	assert.Equal(t,
		"data:image/jpeg;base64,"+base64.StdEncoding.EncodeToString(image),
		imagePart["image_url"].(map[string]any)["url"])

	textPart := content[1].(map[string]any)
	assert.Equal(t, "text", textPart["type"])
	assert.Equal(t, "what is this", textPart["text"])
}

func TestStudentAdapter_HealthURL(t *testing.T) {
	a := backend.NewStudentAdapter("http://student:8003/v1/chat/completions", "m", 16)

	assert.Equal(t, "http://student:8003/health", a.HealthURL())
	assert.Empty(t, a.StatsURL())
}

func TestStudentAdapter_Decode(t *testing.T) {
	a := backend.NewStudentAdapter("http://student:8003/v1/chat/completions", "m", 16)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"content present", `{"choices":[{"message":{"content":"a red square"}}]}`, "a red square"},
		{"no choices", `{"choices":[]}`, ""},
		{"no message", `{"choices":[{}]}`, ""},
		{"empty object", `{}`, ""},
		{"not json", `<html>`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := a.Decode(http.StatusOK, []byte(tt.body))
			require.True(t, result.OK())
			assert.Equal(t, tt.want, result.Text)
		})
	}
}

func TestStudentAdapter_DecodeNon200(t *testing.T) {
	a := backend.NewStudentAdapter("http://student:8003/v1/chat/completions", "m", 16)

	result := a.Decode(http.StatusBadGateway, []byte(`{"error":"down"}`))

	require.False(t, result.OK())
	assert.Equal(t, backend.ErrBackendError, result.Err.Kind)
	assert.Equal(t, `Status 502 - {"error":"down"}`, result.Err.Message())
}
