package backend

import (
	"bytes"
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Shape identifies which known response layout a decoded body matched.
type Shape int

const (
	ShapeText Shape = iota
	ShapeChatChoices
	ShapeResponse
	ShapeRaw
)

func (s Shape) String() string {
	switch s {
	case ShapeText:
		return "text"
	case ShapeChatChoices:
		return "choices"
	case ShapeResponse:
		return "response"
	default:
		return "raw"
	}
}

// Decoded is the tagged outcome of probing a response body.
type Decoded struct {
	Shape Shape
	Text  string
}

type extractor struct {
	shape Shape
	path  string
	// list, when set, must be a JSON array for the path to count.
	list  string
}

// Attempted in order; the first path present wins.
var teacherExtractors = []extractor{
	{shape: ShapeText, path: "text"},
	{shape: ShapeChatChoices, path: "choices.0.message.content", list: "choices"},
	{shape: ShapeResponse, path: "response"},
}

// ExtractText tries the known extractors and falls back to the whole body as text.
func ExtractText(body []byte) Decoded {
	if gjson.ValidBytes(body) {
		root := gjson.ParseBytes(body)
		if root.IsObject() {
			for _, ex := range teacherExtractors {
				if ex.list != "" && !root.Get(ex.list).IsArray() {
					continue
				}
				v := root.Get(ex.path)
				if v.Exists() && v.Type != gjson.Null {
					return Decoded{Shape: ex.shape, Text: v.String()}
				}
			}
		}
		return Decoded{Shape: ShapeRaw, Text: compact(body)}
	}
	return Decoded{Shape: ShapeRaw, Text: string(bytes.TrimSpace(body))}
}

func compact(body []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err != nil {
		return string(body)
	}
	return buf.String()
}
