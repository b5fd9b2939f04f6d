package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"vlm-gateway/internal/backend"
	"vlm-gateway/internal/models"
)

const defaultMaxUploadBytes = 32 << 20

// parseForm parses the multipart body once; later lookups read the parsed form.
func parseForm(c *gin.Context, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+1<<20)
	if err := c.Request.ParseMultipartForm(maxBytes); err != nil {
		return backend.BadRequest("failed to parse multipart form: %v", err)
	}
	return nil
}

func formImage(c *gin.Context, field string) (models.ImageUpload, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return models.ImageUpload{}, backend.BadRequest("missing required field: %s", field)
		}
		return models.ImageUpload{}, backend.BadRequest("invalid %s upload: %v", field, err)
	}

	f, err := fh.Open()
	if err != nil {
		return models.ImageUpload{}, backend.BadRequest("failed to open %s: %v", field, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return models.ImageUpload{}, backend.BadRequest("failed to read %s: %v", field, err)
	}

	return models.ImageUpload{
		Data:        data,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
	}, nil
}

// formValues returns the named fields in order, failing on the first one absent from the form.
// Present but empty values are accepted.
func formValues(c *gin.Context, fields ...string) ([]string, error) {
	values := make([]string, len(fields))
	for i, field := range fields {
		v, ok := c.GetPostForm(field)
		if !ok {
			return nil, backend.BadRequest("missing required field: %s", field)
		}
		values[i] = v
	}
	return values, nil
}

func formBool(c *gin.Context, field string) (bool, error) {
	v, ok := c.GetPostForm(field)
	if !ok {
		return false, backend.BadRequest("missing required field: %s", field)
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on", "y", "t":
		return true, nil
	case "false", "0", "no", "off", "n", "f":
		return false, nil
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b, nil
	}
	return false, backend.BadRequest("invalid boolean for %s: %q", field, v)
}

func abortBadRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   string(backend.ErrBadRequest),
		Message: errorMessage(err),
	})
}

func errorMessage(err error) string {
	var berr *backend.Error
	if errors.As(err, &berr) {
		return berr.Message()
	}
	return fmt.Sprint(err)
}

func normalizedRequest(img models.ImageUpload, query string) backend.NormalizedRequest {
	return backend.NormalizedRequest{
		Image:    img.Data,
		Filename: img.Filename,
		MimeType: backend.DetectMimeType(img.Filename, img.ContentType),
		Query:    query,
	}
}
