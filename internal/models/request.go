package models

// ImageUpload is an uploaded file as received from a multipart form.
type ImageUpload struct {
	Data        []byte
	Filename    string
	ContentType string
}

type SFTSubmission struct {
	Image     ImageUpload
	Query     string
	Response  string
	ModelName string
	IsPass    bool
}

type DPOSubmission struct {
	Image          ImageUpload
	Query          string
	ResponseWinner string
	ResponseLoser  string
	ModelWinner    string
	ModelLoser     string
	Comment        string
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
