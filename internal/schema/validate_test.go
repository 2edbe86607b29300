package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlindermeir/ami0/internal/schema"
)

func echoVariant() *schema.Node {
	model := schema.ActionModel{
		Tag: "echo",
		Payload: schema.Object(map[string]*schema.Node{
			"message": schema.String("The message."),
			"effect":  schema.StringEnum("The effect.", "uppercase", "lowercase"),
		}),
	}
	return model.Wire()
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		node    *schema.Node
		raw     string
		wantErr string
	}{
		{
			name: "conforming action payload",
			node: echoVariant(),
			raw:  `{"type": "echo", "message": "hi", "effect": "uppercase"}`,
		},
		{
			name:    "missing required property",
			node:    echoVariant(),
			raw:     `{"type": "echo", "message": "hi"}`,
			wantErr: `missing required property "effect"`,
		},
		{
			name:    "unknown property",
			node:    echoVariant(),
			raw:     `{"type": "echo", "message": "hi", "effect": "uppercase", "volume": 11}`,
			wantErr: "unexpected property",
		},
		{
			name:    "enum violation",
			node:    echoVariant(),
			raw:     `{"type": "echo", "message": "hi", "effect": "shouting"}`,
			wantErr: `value "shouting" not in enum`,
		},
		{
			name:    "wrong discriminator value",
			node:    echoVariant(),
			raw:     `{"type": "exit_app", "message": "hi", "effect": "uppercase"}`,
			wantErr: "not in enum",
		},
		{
			name:    "not an object",
			node:    echoVariant(),
			raw:     `["echo"]`,
			wantErr: "expected object",
		},
		{
			name:    "invalid JSON",
			node:    echoVariant(),
			raw:     `{"type": "echo"`,
			wantErr: "invalid JSON",
		},
		{
			name: "string array",
			node: schema.StringArray(""),
			raw:  `["one", "two"]`,
		},
		{
			name:    "array item type mismatch",
			node:    schema.StringArray(""),
			raw:     `["one", 2]`,
			wantErr: "expected string",
		},
		{
			name: "integral number accepted as integer",
			node: schema.Integer(""),
			raw:  `3`,
		},
		{
			name:    "fractional number rejected as integer",
			node:    schema.Integer(""),
			raw:     `3.5`,
			wantErr: "expected integer",
		},
		{
			name: "boolean",
			node: &schema.Node{Type: schema.TypeBoolean},
			raw:  `true`,
		},
		{
			name: "untyped node accepts anything",
			node: &schema.Node{},
			raw:  `{"anything": ["goes", 1, null]}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := schema.Validate(tc.node, []byte(tc.raw))
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var violation *schema.ViolationError
			require.ErrorAs(t, err, &violation)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidate_AnyOfMatchesOneBranch(t *testing.T) {
	union := &schema.Node{AnyOf: []*schema.Node{
		schema.ActionModel{Tag: "echo", Payload: schema.Object(map[string]*schema.Node{
			"message": schema.String(""),
		})}.Wire(),
		schema.ActionModel{Tag: "exit_app"}.Wire(),
	}}

	assert.NoError(t, schema.Validate(union, []byte(`{"type": "exit_app"}`)))
	assert.NoError(t, schema.Validate(union, []byte(`{"type": "echo", "message": "hi"}`)))

	err := schema.Validate(union, []byte(`{"type": "launch_app"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matches none")
}

func TestViolationError_Message(t *testing.T) {
	withPath := &schema.ViolationError{Path: "$.action", Reason: "missing"}
	assert.Equal(t, "schema violation at $.action: missing", withPath.Error())

	withoutPath := &schema.ViolationError{Reason: "response contains no JSON"}
	assert.Equal(t, "schema violation: response contains no JSON", withoutPath.Error())
}
