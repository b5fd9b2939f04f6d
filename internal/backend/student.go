package backend

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	log "github.com/sirupsen/logrus"
)

// DefaultMaxTokens matches the generation cap of the downstream engines.
const DefaultMaxTokens = 1024

// StudentAdapter speaks the OpenAI chat-completion protocol.
type StudentAdapter struct {
	endpoint  string
	model     string
	maxTokens int
}

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string            `json:"role"`
	Content []chatContentPart `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func NewStudentAdapter(endpoint, model string, maxTokens int) *StudentAdapter {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &StudentAdapter{
		endpoint:  endpoint,
		model:     model,
		maxTokens: maxTokens,
	}
}

func (a *StudentAdapter) Name() string {
	return "student"
}

func (a *StudentAdapter) Model() string {
	return a.model
}

func (a *StudentAdapter) InferenceURL() string {
	return a.endpoint
}

// HealthURL points at the server root since OpenAI-compatible servers expose /health there.
func (a *StudentAdapter) HealthURL() string {
	u, err := url.Parse(a.endpoint)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/health"
}

// StatsURL is empty: chat-completion servers have no stats document.
func (a *StudentAdapter) StatsURL() string {
	return ""
}

func (a *StudentAdapter) Encode(req NormalizedRequest) (Payload, error) {
	dataURI := fmt.Sprintf("data:%s;base64,%s",
		DetectMimeType(req.Filename, req.MimeType),
		base64.StdEncoding.EncodeToString(req.Image))

	body := chatCompletionRequest{
		Model: a.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []chatContentPart{
				{Type: "image_url", ImageURL: &chatImageURL{URL: dataURI}},
				{Type: "text", Text: req.Query},
			},
		}},
		Temperature: 0.0,
		MaxTokens:   a.maxTokens,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return Payload{}, fmt.Errorf("failed to marshal chat request: %w", err)
	}
	return Payload{ContentType: "application/json", Body: data}, nil
}

// Decode returns an empty response when the content path is missing rather than failing.
func (a *StudentAdapter) Decode(status int, body []byte) Result {
	if status != http.StatusOK {
		return Failure(StatusError(a.Name(), status, body))
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Choices) == 0 || resp.Choices[0].Message.Content == nil {
		log.WithFields(log.Fields{
			"backend": a.Name(),
			"kind":    ErrMalformedPayload,
		}).Warn("choices[0].message.content missing, returning empty response")
		return Success("")
	}
	return Success(*resp.Choices[0].Message.Content)
}
