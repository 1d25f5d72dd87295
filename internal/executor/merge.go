package executor

import (
	"errors"

	"github.com/curationsuite/modelrelay/internal/llm"
	"github.com/curationsuite/modelrelay/internal/logger"
)

// ErrNoResults is returned when merging an empty result list.
var ErrNoResults = errors.New("no results to merge")

// Merge combines partial results from a chunked request into one logical
// result. Results must be in chunk order: list-shaped merges concatenate
// and are order-sensitive. Usage is always the elementwise sum, even on
// the degraded paths.
func Merge(results []*llm.Result, log *logger.Logger) (*llm.Result, error) {
	if log == nil {
		log = logger.Global()
	}
	if len(results) == 0 {
		return nil, ErrNoResults
	}
	if len(results) == 1 {
		return results[0], nil
	}

	usage := llm.Usage{}
	for _, r := range results {
		usage = usage.Add(r.Usage)
	}

	merged := &llm.Result{Shape: results[0].Shape, Usage: usage}
	switch results[0].Shape {
	case llm.ShapeAssignedFiles:
		assigned := &llm.AssignedFiles{}
		for _, r := range results {
			if r.Assigned == nil {
				continue
			}
			assigned.AssignedFiles = append(assigned.AssignedFiles, r.Assigned.AssignedFiles...)
			assigned.NotAssignedFiles = append(assigned.NotAssignedFiles, r.Assigned.NotAssignedFiles...)
		}
		merged.Assigned = assigned
	case llm.ShapeList:
		for _, r := range results {
			merged.List = append(merged.List, r.List...)
		}
	case llm.ShapeMap:
		out := make(map[string]interface{})
		for _, r := range results {
			mergeMaps(out, r.Map, log)
		}
		merged.Map = out
	default:
		log.Warn("cannot merge %d results of shape %s, keeping the first response's content", len(results), results[0].Shape)
		merged.Text = results[0].Text
	}

	return merged, nil
}

// mergeMaps unions src into dst. Colliding keys concatenate when both
// values are lists and merge when both are maps; anything else keeps the
// value already in dst and logs the loss.
func mergeMaps(dst, src map[string]interface{}, log *logger.Logger) {
	for key, value := range src {
		existing, ok := dst[key]
		if !ok {
			dst[key] = value
			continue
		}

		switch existingTyped := existing.(type) {
		case []interface{}:
			if list, ok := value.([]interface{}); ok {
				dst[key] = append(existingTyped, list...)
				continue
			}
		case map[string]interface{}:
			if m, ok := value.(map[string]interface{}); ok {
				mergeMaps(existingTyped, m, log)
				continue
			}
		}
		log.Warn("lossy merge for key %q: keeping the first chunk's value", key)
	}
}
