package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// cleanJSONResponse removes markdown code fences that models wrap around
// JSON payloads.
func cleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}

// ParseResult turns raw response text into a Result of the requested
// shape. Structured shapes are decoded from JSON after fence stripping;
// a payload that does not decode is a provider error, not a recoverable
// condition.
func ParseResult(content string, shape ResponseShape, usage Usage) (*Result, error) {
	res := &Result{Shape: shape, Usage: usage}

	switch shape {
	case ShapeRaw:
		res.Text = content
		return res, nil
	case ShapeList:
		var items []interface{}
		if err := json.Unmarshal([]byte(cleanJSONResponse(content)), &items); err != nil {
			return nil, fmt.Errorf("model returned a malformed list payload: %w", err)
		}
		res.List = items
		return res, nil
	case ShapeMap:
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(cleanJSONResponse(content)), &m); err != nil {
			return nil, fmt.Errorf("model returned a malformed map payload: %w", err)
		}
		res.Map = m
		return res, nil
	case ShapeAssignedFiles:
		var assigned AssignedFiles
		if err := json.Unmarshal([]byte(cleanJSONResponse(content)), &assigned); err != nil {
			return nil, fmt.Errorf("model returned a malformed assigned-files payload: %w", err)
		}
		res.Assigned = &assigned
		return res, nil
	default:
		return nil, fmt.Errorf("unknown response shape %d", shape)
	}
}
