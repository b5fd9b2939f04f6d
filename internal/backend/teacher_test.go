package backend_test

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vlm-gateway/internal/backend"
)

func TestTeacherAdapter_URLs(t *testing.T) {
	a := backend.NewTeacherAdapter("http://teacher:8002/")

	assert.Equal(t, "http://teacher:8002/inference", a.InferenceURL())
	assert.Equal(t, "http://teacher:8002/health", a.HealthURL())
	assert.Equal(t, "http://teacher:8002/stats", a.StatsURL())
}

func TestTeacherAdapter_EncodeMultipart(t *testing.T) {
	a := backend.NewTeacherAdapter("http://teacher:8002")
	image := []byte{0xff, 0xd8, 0xff, 0xe0}

	payload, err := a.Encode(backend.NormalizedRequest{
		Image:    image,
		Filename: "cat.png",
		MimeType: "image/png",
		Query:    "describe",
	})
	require.NoError(t, err)

	mediaType, params, err := mime.ParseMediaType(payload.ContentType)
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data", mediaType)

	reader := multipart.NewReader(bytes.NewReader(payload.Body), params["boundary"])
	form, err := reader.ReadForm(1 << 20)
	require.NoError(t, err)

	assert.Equal(t, []string{"describe"}, form.Value["prompt"])
	require.Len(t, form.File["file"], 1)
	fh := form.File["file"][0]
	assert.Equal(t, "cat.png", fh.Filename)
	assert.Equal(t, "image/png", fh.Header.Get("Content-Type"))

	f, err := fh.Open()
	require.NoError(t, err)
	defer f.Close()
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, image, got)
}

func TestTeacherAdapter_DecodeNon200(t *testing.T) {
	a := backend.NewTeacherAdapter("http://teacher:8002")

	result := a.Decode(http.StatusInternalServerError, []byte("oom"))

	require.False(t, result.OK())
	assert.Equal(t, backend.ErrBackendError, result.Err.Kind)
	assert.Equal(t, 500, result.Err.StatusCode)
	assert.Equal(t, "Status 500 - oom", result.Err.Message())
	assert.Empty(t, result.Text)
}

func TestTeacherAdapter_DecodeTolerant(t *testing.T) {
	a := backend.NewTeacherAdapter("http://teacher:8002")

	result := a.Decode(http.StatusOK, []byte(`not json at all`))

	require.True(t, result.OK())
	assert.Equal(t, "not json at all", result.Text)
}
