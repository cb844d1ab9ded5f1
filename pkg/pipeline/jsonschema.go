package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// GenerateJSONSchema produces a JSON Schema Draft 2020-12 document
// from the Document struct using invopop/jsonschema, mirroring the
// teacher's schema reflection convention for semantic validation.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&Document{})
	s.ID = "https://github.com/azlocal/pipeline/schemas/pipeline-v1.json"
	s.Title = "Pipeline document"
	s.Description = "Schema for local pipeline YAML documents (Draft 2020-12)"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}
