package analysis

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed result.schema.json
var schemaJSON []byte

var resultSchema = jsonschema.MustCompileString("result.schema.json", string(schemaJSON))

// Schema returns the JSON schema sent to the endpoint with every request.
func Schema() json.RawMessage { return json.RawMessage(schemaJSON) }

// ErrRemoteError is returned by Parse when the model answered with an
// explicit error field.
var ErrRemoteError = errors.New("analysis: endpoint reported an error")

// Clean strips markdown fences and any text around the outermost JSON
// object.
func Clean(text string) string {
	s := strings.TrimSpace(text)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	first := strings.IndexByte(s, '{')
	last := strings.LastIndexByte(s, '}')
	if first >= 0 && last > first {
		s = s[first : last+1]
	}
	return strings.TrimSpace(s)
}

// Parse cleans a raw endpoint answer, validates it against the result
// schema and decodes it.
func Parse(text string) (*Result, error) {
	clean := []byte(Clean(text))

	var doc any
	dec := json.NewDecoder(bytes.NewReader(clean))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("analysis: parse response: %w", err)
	}
	if m, ok := doc.(map[string]any); ok {
		if e, ok := m["error"].(string); ok && strings.TrimSpace(e) != "" {
			return nil, fmt.Errorf("%w: %s", ErrRemoteError, e)
		}
	}
	if err := resultSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("analysis: response does not match schema: %w", err)
	}

	var r Result
	if err := json.Unmarshal(clean, &r); err != nil {
		return nil, fmt.Errorf("analysis: decode response: %w", err)
	}
	if !r.Complete() {
		return nil, fmt.Errorf("analysis: incomplete response")
	}
	return &r, nil
}
