package humastar

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// Signals is the flat JSON object of signals Datastar posts with a request.
type Signals map[string]any

// SignalsInput is the input of operations receiving Datastar signals.
type SignalsInput struct {
	RawBody []byte
}

// Decode parses the posted signals. Malformed bodies are a 400.
func (i *SignalsInput) Decode() (Signals, error) {
	var s Signals
	if err := json.Unmarshal(i.RawBody, &s); err != nil {
		return nil, huma.Error400BadRequest("Invalid signals: " + err.Error())
	}
	return s, nil
}

// Float returns a numeric signal, or 0.
func (s Signals) Float(key string) float64 {
	v, _ := s[key].(float64)
	return v
}

// Strings returns the string entries of an array signal.
func (s Signals) Strings(key string) []string {
	list, _ := s[key].([]any)
	out := make([]string, 0, len(list))
	for _, v := range list {
		if str, ok := v.(string); ok {
			out = append(out, str)
		}
	}
	return out
}

// Floats returns the numeric entries of an array signal.
func (s Signals) Floats(key string) []float64 {
	list, _ := s[key].([]any)
	out := make([]float64, 0, len(list))
	for _, v := range list {
		if f, ok := v.(float64); ok {
			out = append(out, f)
		}
	}
	return out
}

// File is one file sent through a data-bind file input.
type File struct {
	Name string
	Mime string
	Data []byte
}

// Files decodes a file input signal. Entries are either {name, contents,
// mime} objects or bare base64 strings whose names are listed under
// key+"Names".
func (s Signals) Files(key string) ([]File, error) {
	list, _ := s[key].([]any)
	names := s.Strings(key + "Names")
	files := make([]File, 0, len(list))
	for i, entry := range list {
		var f File
		var contents string
		switch v := entry.(type) {
		case string:
			contents = v
			if i < len(names) {
				f.Name = names[i]
			}
		case map[string]any:
			contents, _ = v["contents"].(string)
			f.Name, _ = v["name"].(string)
			f.Mime, _ = v["mime"].(string)
		default:
			return nil, fmt.Errorf("file %d: unexpected %T", i, entry)
		}
		if _, data, ok := strings.Cut(contents, ";base64,"); ok {
			contents = data
		}
		data, err := base64.StdEncoding.DecodeString(contents)
		if err != nil {
			return nil, fmt.Errorf("file %d: %w", i, err)
		}
		f.Data = data
		files = append(files, f)
	}
	return files, nil
}
