package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// schemaURL identifies the embedded schema inside the compiler.
const schemaURL = "https://respfilter.dev/schemas/chain/v1/chain-schema.json"

//go:embed schema/chain-schema.json
var embeddedSchema []byte

// chainSchema compiles the embedded schema on first use.
var chainSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(embeddedSchema))
	if err != nil {
		return nil, fmt.Errorf("decoding embedded schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("adding schema resource: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	return schema, nil
})

// GetEmbeddedSchema returns the raw chain configuration schema.
func GetEmbeddedSchema() []byte {
	return embeddedSchema
}

// ValidateConfig validates parsed configuration data against the chain schema.
func ValidateConfig(data map[string]interface{}) *ValidationResult {
	if len(data) == 0 {
		return invalid(ValidationError{Path: "/", Type: "required", Message: "configuration data is empty"})
	}

	schema, err := chainSchema()
	if err != nil {
		return invalid(ValidationError{Path: "/", Type: "schema", Message: err.Error()})
	}

	err = schema.Validate(data)
	if err == nil {
		return &ValidationResult{Valid: true}
	}

	var detailed *jsonschema.ValidationError
	if errors.As(err, &detailed) {
		if errs := convertValidationErrors(detailed); len(errs) > 0 {
			return invalid(errs...)
		}
	}
	return invalid(ValidationError{Path: "/", Type: "validation", Message: err.Error()})
}

func invalid(errs ...ValidationError) *ValidationResult {
	return &ValidationResult{Valid: false, Errors: errs}
}

// convertValidationErrors flattens the leaf causes of a jsonschema error.
func convertValidationErrors(err *jsonschema.ValidationError) []ValidationError {
	if len(err.Causes) == 0 {
		return []ValidationError{{
			Path:    formatInstanceLocation(err.InstanceLocation),
			Type:    extractErrorType(err),
			Message: err.Error(),
		}}
	}

	var out []ValidationError
	for _, cause := range err.Causes {
		out = append(out, convertValidationErrors(cause)...)
	}
	return out
}

func formatInstanceLocation(loc []string) string {
	if len(loc) == 0 {
		return "/"
	}
	return "/" + strings.Join(loc, "/")
}

// extractErrorType returns the schema keyword that failed, falling back to
// the message text for kinds that carry no keyword path.
func extractErrorType(err *jsonschema.ValidationError) string {
	if err.ErrorKind != nil {
		if kp := err.ErrorKind.KeywordPath(); len(kp) > 0 {
			return kp[len(kp)-1]
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "missing propert"):
		return "required"
	case strings.Contains(msg, "additional"):
		return "additionalProperties"
	case strings.Contains(msg, "got "):
		return "type"
	default:
		return "validation"
	}
}
