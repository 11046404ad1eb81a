package artifact

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// rulesetSchema rejects malformed rulesets before anything reaches the
// bucket, so a bad generator change fails the run up front instead of
// poisoning the services under test.
const rulesetSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["ruleset_id", "ruleset_key", "country", "region", "version", "type", "rules"],
  "properties": {
    "ruleset_id": {"type": "string", "minLength": 1},
    "ruleset_key": {"type": "string", "enum": ["CARD_AUTH", "CARD_MONITORING"]},
    "country": {"type": "string", "minLength": 2, "maxLength": 2},
    "region": {"type": "string", "minLength": 1},
    "environment": {"type": "string"},
    "version": {"type": "integer", "minimum": 1},
    "type": {"type": "string", "enum": ["AUTH", "MONITORING"]},
    "enabled": {"type": "boolean"},
    "rules": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["rule_id", "condition", "action"],
        "properties": {
          "rule_id": {"type": "string", "minLength": 1},
          "priority": {"type": "integer"},
          "condition": {"type": "object"},
          "action": {"type": "object"}
        }
      }
    }
  }
}`

// ValidateRuleset checks serialized ruleset bytes against the schema.
func ValidateRuleset(data []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(rulesetSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var problems []string
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return fmt.Errorf("invalid ruleset: %s", strings.Join(problems, "; "))
	}
	return nil
}
