// internal/council/schema.go
package council

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

var confidenceEnum = []interface{}{"high", "medium", "low"}

// mergeResultSchema is the machine-checkable contract for the decision
// artifact. Absent array fields are a validation failure, not an empty
// array; there is no partial acceptance.
var mergeResultSchema = map[string]interface{}{
	"type": "object",
	"required": []interface{}{
		"consensus",
		"confidence",
		"consensus_strength",
		"gpt_overall_confidence",
		"claude_overall_confidence",
		"confidence_reasoning",
		"deltas",
		"unverified_assumptions",
		"next_steps",
		"decision_filter_notes",
	},
	"properties": map[string]interface{}{
		"consensus":  map[string]interface{}{"type": "string", "minLength": 1},
		"confidence": map[string]interface{}{"type": "string", "enum": confidenceEnum},
		"consensus_strength": map[string]interface{}{
			"type":    "number",
			"minimum": 0,
			"maximum": 100,
		},
		"gpt_overall_confidence":    map[string]interface{}{"type": "string", "enum": confidenceEnum},
		"claude_overall_confidence": map[string]interface{}{"type": "string", "enum": confidenceEnum},
		"confidence_reasoning":      map[string]interface{}{"type": "string"},
		"deltas": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"required": []interface{}{
					"topic",
					"gpt_position",
					"gpt_confidence",
					"claude_position",
					"claude_confidence",
					"recommended",
					"reasoning",
				},
				"properties": map[string]interface{}{
					"topic":               map[string]interface{}{"type": "string"},
					"gpt_position":        map[string]interface{}{"type": "string"},
					"gpt_confidence":      map[string]interface{}{"type": "string", "enum": confidenceEnum},
					"claude_position":     map[string]interface{}{"type": "string"},
					"claude_confidence":   map[string]interface{}{"type": "string", "enum": confidenceEnum},
					"recommended":         map[string]interface{}{"type": "string", "enum": []interface{}{"gpt", "claude", "neither"}},
					"reasoning":           map[string]interface{}{"type": "string"},
					"calibration_warning": map[string]interface{}{"type": "string"},
				},
			},
		},
		"unverified_assumptions": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
		"next_steps": map[string]interface{}{
			"type":     "array",
			"items":    map[string]interface{}{"type": "string"},
			"maxItems": 5,
		},
		"decision_filter_notes": map[string]interface{}{"type": "string"},
		"claude_md_update": map[string]interface{}{
			"type": "object",
			"required": []interface{}{
				"current_status",
				"recent_changes",
				"planned_next",
			},
			"properties": map[string]interface{}{
				"current_status": map[string]interface{}{"type": "string"},
				"recent_changes": map[string]interface{}{
					"type":  "array",
					"items": map[string]interface{}{"type": "string"},
				},
				"planned_next": map[string]interface{}{
					"type":  "array",
					"items": map[string]interface{}{"type": "string"},
				},
			},
		},
	},
}

// ValidationOutcome is the discriminated result of artifact validation. The
// retry decision is a plain branch on Valid, never exception control flow.
type ValidationOutcome struct {
	Valid  bool
	Result *MergeResult
	Errors []string
}

// ValidateMergeResult parses raw (already-extracted) JSON and checks it
// against the artifact schema. Any missing field, wrong type, or
// out-of-enum value invalidates the whole artifact.
func ValidateMergeResult(raw string) ValidationOutcome {
	var doc interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return ValidationOutcome{
			Valid:  false,
			Errors: []string{fmt.Sprintf("invalid JSON: %v", err)},
		}
	}

	schemaLoader := gojsonschema.NewGoLoader(mergeResultSchema)
	documentLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return ValidationOutcome{
			Valid:  false,
			Errors: []string{fmt.Sprintf("validation error: %v", err)},
		}
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return ValidationOutcome{Valid: false, Errors: errs}
	}

	var artifact MergeResult
	if err := json.Unmarshal([]byte(raw), &artifact); err != nil {
		return ValidationOutcome{
			Valid:  false,
			Errors: []string{fmt.Sprintf("decode error: %v", err)},
		}
	}

	return ValidationOutcome{Valid: true, Result: &artifact}
}
