package models

type HealthResponse struct {
	Status            string `json:"status"`
	Gateway           string `json:"gateway"`
	BackendConnection string `json:"backend_connection"`
	ModelLoaded       bool   `json:"model_loaded"`
}

// ProxyResponse is returned by /student and /teacher. Errors are folded into Response with zero latency.
type ProxyResponse struct {
	Response string  `json:"response"`
	Latency  float64 `json:"latency"`
}

type DetailResponse struct {
	Detail string `json:"detail"`
}

type FeedbackResponse struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

type FeedbackStatsResponse struct {
	SFT    int    `json:"sft"`
	DPO    int    `json:"dpo"`
	Source string `json:"source"`
}
