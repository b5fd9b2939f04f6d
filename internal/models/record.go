package models

const (
	LabelPass = "pass"
	LabelFail = "fail"
)

// SFTRecord is one supervised fine-tuning example, serialized as one line of sft_dataset.jsonl.
type SFTRecord struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Image     string `json:"image"`
	Query     string `json:"query"`
	Response  string `json:"response"`
	Model     string `json:"model"`
	Label     string `json:"label"`
}

type Turn struct {
	Query    string `json:"query"`
	Response string `json:"response"`
}

type DPOMetadata struct {
	WinnerModel string `json:"winner_model"`
	LoserModel  string `json:"loser_model"`
	Comment     string `json:"comment"`
}

// DPORecord is one preference pair. Chosen and rejected always share the query and image.
type DPORecord struct {
	ID        string      `json:"id"`
	Timestamp string      `json:"timestamp"`
	Image     string      `json:"image"`
	Chosen    Turn        `json:"chosen"`
	Rejected  Turn        `json:"rejected"`
	Metadata  DPOMetadata `json:"metadata"`
}

func Label(isPass bool) string {
	if isPass {
		return LabelPass
	}
	return LabelFail
}
