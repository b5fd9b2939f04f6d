package backend

import (
	"mime"
	"path/filepath"
	"strings"
)

// NormalizedRequest is the protocol-agnostic inference input. It is built per call and never mutated.
type NormalizedRequest struct {
	Image    []byte
	Filename string
	MimeType string
	Query    string
}

// WithSuffix returns a copy of the request with suffix appended to the query.
func (r NormalizedRequest) WithSuffix(suffix string) NormalizedRequest {
	if suffix == "" {
		return r
	}
	r.Query += suffix
	return r
}

// Payload is an encoded request body ready to be sent to a backend.
type Payload struct {
	ContentType string
	Body        []byte
}

// Adapter translates between normalized requests/results and one backend's wire protocol.
type Adapter interface {
	Name() string
	Encode(req NormalizedRequest) (Payload, error)
	Decode(status int, body []byte) Result
	InferenceURL() string
	HealthURL() string
	StatsURL() string
}

// DetectMimeType resolves a MIME type for an uploaded image, preferring the declared header value.
func DetectMimeType(filename, declared string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", "":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "image/jpeg"
}
