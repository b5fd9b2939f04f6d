package backend

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	log "github.com/sirupsen/logrus"
)

// TeacherAdapter speaks the multipart form protocol of the Teacher inference server.
type TeacherAdapter struct {
	baseURL string
}

func NewTeacherAdapter(baseURL string) *TeacherAdapter {
	return &TeacherAdapter{baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (a *TeacherAdapter) Name() string {
	return "teacher"
}

func (a *TeacherAdapter) InferenceURL() string {
	return a.baseURL + "/inference"
}

func (a *TeacherAdapter) HealthURL() string {
	return a.baseURL + "/health"
}

func (a *TeacherAdapter) StatsURL() string {
	return a.baseURL + "/stats"
}

func (a *TeacherAdapter) Encode(req NormalizedRequest) (Payload, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	filename := req.Filename
	if filename == "" {
		filename = "image.jpg"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	header.Set("Content-Type", DetectMimeType(filename, req.MimeType))

	part, err := w.CreatePart(header)
	if err != nil {
		return Payload{}, fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(req.Image); err != nil {
		return Payload{}, fmt.Errorf("failed to write file part: %w", err)
	}
	if err := w.WriteField("prompt", req.Query); err != nil {
		return Payload{}, fmt.Errorf("failed to write prompt field: %w", err)
	}
	if err := w.Close(); err != nil {
		return Payload{}, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return Payload{ContentType: w.FormDataContentType(), Body: buf.Bytes()}, nil
}

// Decode accepts any JSON shape on success; only the status code can make it fail.
func (a *TeacherAdapter) Decode(status int, body []byte) Result {
	if status != http.StatusOK {
		return Failure(StatusError(a.Name(), status, body))
	}

	decoded := ExtractText(body)
	if decoded.Shape == ShapeRaw {
		log.WithFields(log.Fields{
			"backend": a.Name(),
			"kind":    ErrMalformedPayload,
		}).Warn("no known response shape matched, returning stringified body")
	}
	return Success(decoded.Text)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
