package fieldmap

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed fieldmap.schema.json
var schemaDocument string

// schemaURL is absolute so the compiler never resolves it against the working directory
const schemaURL = "https://github.com/a3tai/mcp-pdf-overlay/fieldmap.schema.json"

var fieldMapSchema = jsonschema.MustCompileString(schemaURL, schemaDocument)

// Schema returns the JSON Schema field map documents are checked against
func Schema() []byte {
	return []byte(schemaDocument)
}

// checkSchema validates the document shape before it is decoded into types,
// so a field with a string page is reported by path instead of as a type error
func checkSchema(data []byte, format Format) error {
	var doc any
	switch format {
	case FormatYAML:
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return err
		}
		// Round-trip through JSON so numbers and maps have the shapes the validator expects
		buf, err := json.Marshal(raw)
		if err != nil {
			return fmt.Errorf("field map is not representable as JSON: %w", err)
		}
		if err := json.Unmarshal(buf, &doc); err != nil {
			return err
		}
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
	}
	return fieldMapSchema.Validate(doc)
}
