package tools

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateArgs_NoSchema(t *testing.T) {
	sv := NewSchemaValidator()
	assert.NoError(t, sv.ValidateArgs(Declaration{Name: "free"}, map[string]any{"anything": true}))
}

func TestValidateArgs_UppercaseTypes(t *testing.T) {
	sv := NewSchemaValidator()
	decl := Declaration{Name: "weather", Parameters: json.RawMessage(weatherSchema)}

	assert.NoError(t, sv.ValidateArgs(decl, map[string]any{"city": "Lima"}))
	assert.Error(t, sv.ValidateArgs(decl, map[string]any{"city": 3}))
	assert.Error(t, sv.ValidateArgs(decl, nil))
}

func TestGetSchema_Caches(t *testing.T) {
	sv := NewSchemaValidator()
	raw := json.RawMessage(`{"type":"object"}`)

	s1, err := sv.getSchema(raw)
	require.NoError(t, err)
	s2, err := sv.getSchema(raw)
	require.NoError(t, err)

	assert.Same(t, s1, s2)
	assert.Len(t, sv.cache, 1)
}

func TestNormalizeTypes_Nested(t *testing.T) {
	var doc any
	require.NoError(t, json.Unmarshal([]byte(`{"type":"ARRAY","items":{"type":"NUMBER"},"required":["type"]}`), &doc))

	out := normalizeTypes(doc).(map[string]any)

	assert.Equal(t, "array", out["type"])
	assert.Equal(t, "number", out["items"].(map[string]any)["type"])
	assert.Equal(t, []any{"type"}, out["required"])
}
