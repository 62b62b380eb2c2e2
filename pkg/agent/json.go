package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// compileSchema compiles a JSON schema literal under resourceName,
// matching goa-ai's registry.Service pattern of one in-memory resource
// per validated payload shape (registry/service.go).
func compileSchema(resourceName, schemaJSON string) (*jsonschema.Schema, error) {
	var doc any
	if err := json.Unmarshal([]byte(schemaJSON), &doc); err != nil {
		return nil, fmt.Errorf("agent: parse schema %s: %w", resourceName, err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(resourceName, doc); err != nil {
		return nil, fmt.Errorf("agent: add schema resource %s: %w", resourceName, err)
	}
	schema, err := c.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("agent: compile schema %s: %w", resourceName, err)
	}
	return schema, nil
}

// extractJSONObject finds the first complete top-level JSON object in
// text, tolerating any surrounding prose or markdown fencing a model
// turn may wrap its answer in — a greedy brace-matching scan
// (spec.md §9), not a strict "the whole response is JSON" assumption.
func extractJSONObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", fmt.Errorf("agent: no JSON object found in response")
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// inside a string literal, braces don't count
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("agent: unterminated JSON object in response")
}

// decodeAndValidate extracts the first JSON object from text,
// validates it against schema, and returns it as a generic document
// for the caller's field extraction.
func decodeAndValidate(text string, schema *jsonschema.Schema) (map[string]any, error) {
	raw, err := extractJSONObject(text)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("agent: invalid JSON response: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("agent: response failed schema validation: %w", err)
	}
	asMap, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("agent: response is not a JSON object")
	}
	return asMap, nil
}

func stringField(doc map[string]any, key string) string {
	s, _ := doc[key].(string)
	return s
}

func sliceField(doc map[string]any, key string) []any {
	s, _ := doc[key].([]any)
	return s
}
