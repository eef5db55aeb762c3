package tools

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationError reports arguments that do not match a declaration's schema.
type ValidationError struct {
	Tool   string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tool %s: %s", e.Tool, e.Detail)
}

// SchemaValidator checks tool arguments against declaration parameter schemas.
// Compiled schemas are cached by their source text.
type SchemaValidator struct {
	mu    sync.Mutex
	cache map[string]*gojsonschema.Schema
}

// NewSchemaValidator creates a new schema validator.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{
		cache: make(map[string]*gojsonschema.Schema),
	}
}

// ValidateArgs validates args against decl.Parameters. Declarations without
// parameters accept anything.
func (sv *SchemaValidator) ValidateArgs(decl Declaration, args map[string]any) error {
	if len(decl.Parameters) == 0 {
		return nil
	}

	schema, err := sv.getSchema(decl.Parameters)
	if err != nil {
		return fmt.Errorf("invalid input schema for tool %s: %w", decl.Name, err)
	}

	if args == nil {
		args = map[string]any{}
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("validation error for tool %s: %w", decl.Name, err)
	}

	if !result.Valid() {
		msgs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			msgs[i] = desc.String()
		}
		return &ValidationError{
			Tool:   decl.Name,
			Detail: fmt.Sprintf("argument validation failed: %v", msgs),
		}
	}

	return nil
}

// getSchema retrieves or compiles a JSON schema.
func (sv *SchemaValidator) getSchema(raw json.RawMessage) (*gojsonschema.Schema, error) {
	key := string(raw)

	sv.mu.Lock()
	defer sv.mu.Unlock()

	if schema, ok := sv.cache[key]; ok {
		return schema, nil
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(normalizeTypes(doc)))
	if err != nil {
		return nil, err
	}

	sv.cache[key] = schema
	return schema, nil
}

// normalizeTypes lowercases "type" values so OpenAPI-style declarations
// ("OBJECT", "STRING") compile as JSON Schema.
func normalizeTypes(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if s, ok := child.(string); ok && k == "type" {
				t[k] = strings.ToLower(s)
				continue
			}
			t[k] = normalizeTypes(child)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = normalizeTypes(child)
		}
		return t
	default:
		return v
	}
}
