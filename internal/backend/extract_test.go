package backend_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"vlm-gateway/internal/backend"
)

func TestExtractText_KnownShapes(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		shape backend.Shape
		text  string
	}{
		{"text field", `{"text": "a cat"}`, backend.ShapeText, "a cat"},
		{"chat choices", `{"choices":[{"message":{"content":"a dog"}}]}`, backend.ShapeChatChoices, "a dog"},
		{"response field", `{"response": "a bird"}`, backend.ShapeResponse, "a bird"},
		{"text wins over response", `{"response": "second", "text": "first"}`, backend.ShapeText, "first"},
		{"choices wins over response", `{"response": "later", "choices":[{"message":{"content":"earlier"}}]}`, backend.ShapeChatChoices, "earlier"},
		{"null text skipped", `{"text": null, "response": "fallback"}`, backend.ShapeResponse, "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded := backend.ExtractText([]byte(tt.body))
			assert.Equal(t, tt.shape, decoded.Shape)
			assert.Equal(t, tt.text, decoded.Text)
		})
	}
}

func TestExtractText_UnknownShapeStringifiesBody(t *testing.T) {
	decoded := backend.ExtractText([]byte(`{ "caption": "x",  "score": 0.5 }`))

	assert.Equal(t, backend.ShapeRaw, decoded.Shape)
	assert.Equal(t, `{"caption":"x","score":0.5}`, decoded.Text)
}

func TestExtractText_ChoicesMustBeList(t *testing.T) {
	decoded := backend.ExtractText([]byte(`{"choices":{"0":{"message":{"content":"obj-keyed"}}}}`))

	assert.Equal(t, backend.ShapeRaw, decoded.Shape)
	assert.Equal(t, `{"choices":{"0":{"message":{"content":"obj-keyed"}}}}`, decoded.Text)
}

func TestExtractText_ObjectChoicesFallsThroughToResponse(t *testing.T) {
	decoded := backend.ExtractText([]byte(`{"choices":{"0":{"message":{"content":"x"}}},"response":"y"}`))

	assert.Equal(t, backend.ShapeResponse, decoded.Shape)
	assert.Equal(t, "y", decoded.Text)
}

func TestExtractText_NonJSONBody(t *testing.T) {
	decoded := backend.ExtractText([]byte("plain words\n"))

	assert.Equal(t, backend.ShapeRaw, decoded.Shape)
	assert.Equal(t, "plain words", decoded.Text)
}

func TestExtractText_JSONArray(t *testing.T) {
	decoded := backend.ExtractText([]byte(`["a", "b"]`))

	assert.Equal(t, backend.ShapeRaw, decoded.Shape)
	assert.Equal(t, `["a","b"]`, decoded.Text)
}
