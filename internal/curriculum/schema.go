package curriculum

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// subjectSchema is the contract every curriculum seed document must
// satisfy before it is decoded into typed entities. Records from the
// authoring side arrive loosely typed; this is the parsing boundary
// that keeps malformed data out of the aggregation engine.
const subjectSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["subject"],
  "properties": {
    "subject": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "id": {"type": "string"},
        "name": {"type": "string", "minLength": 1},
        "name_ar": {"type": "string"},
        "slug": {"type": "string", "pattern": "^[a-z0-9]+(-[a-z0-9]+)*$"},
        "description": {"type": "string"},
        "icon": {"type": "string"},
        "color": {"type": "string"}
      }
    },
    "phases": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "sort_order"],
        "properties": {
          "id": {"type": "string"},
          "name": {"type": "string", "minLength": 1},
          "sort_order": {"type": "integer", "minimum": 1},
          "estimated_hours": {"type": "number", "minimum": 0},
          "stages": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name", "sort_order"],
              "properties": {
                "id": {"type": "string"},
                "name": {"type": "string", "minLength": 1},
                "sort_order": {"type": "integer", "minimum": 1},
                "milestones": {
                  "type": "array",
                  "items": {
                    "type": "object",
                    "required": ["name", "sort_order"],
                    "properties": {
                      "id": {"type": "string"},
                      "name": {"type": "string", "minLength": 1},
                      "sort_order": {"type": "integer", "minimum": 1},
                      "pillar": {"enum": ["understanding", "fluency", "memorization", ""]},
                      "verification_criteria": {"type": "string"}
                    }
                  }
                }
              }
            }
          }
        }
      }
    }
  }
}`

var compiledSubjectSchema = gojsonschema.NewStringLoader(subjectSchema)

// ValidateSeedDocument checks a raw seed document (already decoded from
// YAML into a generic map) against the subject schema. Returns a
// descriptive error listing every violation.
func ValidateSeedDocument(doc map[string]any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding seed document: %w", err)
	}

	result, err := gojsonschema.Validate(compiledSubjectSchema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("validating seed document: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msg := "invalid seed document:"
	for _, desc := range result.Errors() {
		msg += fmt.Sprintf("\n  - %s: %s", desc.Field(), desc.Description())
	}
	return fmt.Errorf("%s", msg)
}
