package validation

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"github.com/xeipuuv/gojsonschema"
)

// Schema names.
const (
	PreferenceAnswers = "preference-answers"
	CatalogEvent      = "catalog-event"
)

//go:embed schemas/*.json
var embeddedSchemas embed.FS

var schemaFiles = map[string]string{
	PreferenceAnswers: "preference-answers.json",
	CatalogEvent:      "catalog-event.json",
}

// SchemaValidator handles JSON schema validation for API requests
type SchemaValidator struct {
	schemas map[string]*gojsonschema.Schema
}

// NewSchemaValidator returns a validator with the built-in schemas loaded.
func NewSchemaValidator() (*SchemaValidator, error) {
	sv := &SchemaValidator{schemas: make(map[string]*gojsonschema.Schema)}
	if err := sv.LoadSchemaFromFS(embeddedSchemas, "schemas"); err != nil {
		return nil, err
	}
	return sv, nil
}

// LoadSchemaFromFS loads the known schema files from fsys
func (sv *SchemaValidator) LoadSchemaFromFS(fsys fs.FS, schemaDir string) error {
	for name, filename := range schemaFiles {
		schemaBytes, err := fs.ReadFile(fsys, path.Join(schemaDir, filename))
		if err != nil {
			return fmt.Errorf("failed to read schema file %s: %w", filename, err)
		}

		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaBytes))
		if err != nil {
			return fmt.Errorf("failed to load schema %s: %w", name, err)
		}
		sv.schemas[name] = schema
	}
	return nil
}

// Validate checks data against a named schema. Strings and byte slices are
// treated as raw JSON; anything else is marshalled first.
func (sv *SchemaValidator) Validate(schemaName string, data interface{}) *ValidationResult {
	schema, exists := sv.schemas[schemaName]
	if !exists {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "schema",
				Message: fmt.Sprintf("Schema '%s' not found", schemaName),
				Code:    "SCHEMA_NOT_FOUND",
			}},
		}
	}

	var documentLoader gojsonschema.JSONLoader
	switch v := data.(type) {
	case string:
		documentLoader = gojsonschema.NewStringLoader(v)
	case []byte:
		documentLoader = gojsonschema.NewBytesLoader(v)
	default:
		jsonBytes, err := json.Marshal(data)
		if err != nil {
			return &ValidationResult{
				Valid: false,
				Errors: []ValidationError{{
					Field:   "data",
					Message: fmt.Sprintf("Failed to marshal data to JSON: %v", err),
					Code:    "JSON_MARSHAL_ERROR",
				}},
			}
		}
		documentLoader = gojsonschema.NewBytesLoader(jsonBytes)
	}

	result, err := schema.Validate(documentLoader)
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "validation",
				Message: fmt.Sprintf("Validation error: %v", err),
				Code:    "VALIDATION_ERROR",
			}},
		}
	}

	validationResult := &ValidationResult{Valid: result.Valid()}
	for _, e := range result.Errors() {
		validationResult.Errors = append(validationResult.Errors, ValidationError{
			Field:   e.Field(),
			Message: e.Description(),
			Code:    "VALIDATION_ERROR",
			Value:   e.Value(),
			Context: e.Context().String(),
		})
	}
	return validationResult
}

// SchemaNames returns the loaded schema names in sorted order.
func (sv *SchemaValidator) SchemaNames() []string {
	names := make([]string, 0, len(sv.schemas))
	for name := range sv.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidationResult represents the result of a validation operation
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Value   interface{} `json:"value,omitempty"`
	Context string      `json:"context,omitempty"`
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s", ve.Field, ve.Message)
}

// Details groups the errors for the API error body.
func (vr *ValidationResult) Details() map[string]interface{} {
	if vr.Valid {
		return nil
	}
	details := map[string]interface{}{"validationErrors": vr.Errors}

	fieldErrors := make(map[string][]string)
	for _, e := range vr.Errors {
		if e.Field != "" {
			fieldErrors[e.Field] = append(fieldErrors[e.Field], e.Message)
		}
	}
	if len(fieldErrors) > 0 {
		details["fieldErrors"] = fieldErrors
	}
	return details
}
