package transport_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlindermeir/ami0/internal/schema"
	"github.com/jlindermeir/ami0/internal/transport"
)

func testReplySchema() *schema.Node {
	return schema.Reply([]schema.ActionModel{
		{
			Tag: "echo",
			Payload: schema.Object(map[string]*schema.Node{
				"message": schema.String("The message."),
				"effect":  schema.StringEnum("The effect.", "uppercase", "lowercase"),
			}),
		},
		{Tag: "exit_app"},
	})
}

func TestDecodeReply_Valid(t *testing.T) {
	response := `{"reasoning": ["step one", "step two"], "action": {"type": "echo", "message": "hi", "effect": "uppercase"}}`

	reply, err := transport.DecodeReply(testReplySchema(), response)
	require.NoError(t, err)

	assert.Equal(t, []string{"step one", "step two"}, reply.Reasoning)
	assert.Equal(t, "echo", reply.Action.Tag)

	var payload struct {
		Message string `json:"message"`
		Effect  string `json:"effect"`
	}
	require.NoError(t, reply.Action.Decode(&payload))
	assert.Equal(t, "hi", payload.Message)
	assert.Equal(t, "uppercase", payload.Effect)
}

func TestDecodeReply_MarkdownFence(t *testing.T) {
	response := "Here is my answer:\n```json\n{\"reasoning\": [\"ok\"], \"action\": {\"type\": \"exit_app\"}}\n```\nDone."

	reply, err := transport.DecodeReply(testReplySchema(), response)
	require.NoError(t, err)
	assert.Equal(t, "exit_app", reply.Action.Tag)
}

func TestDecodeReply_SurroundingProse(t *testing.T) {
	response := `Sure thing! {"reasoning": ["ok"], "action": {"type": "exit_app"}} Hope that helps.`

	reply, err := transport.DecodeReply(testReplySchema(), response)
	require.NoError(t, err)
	assert.Equal(t, "exit_app", reply.Action.Tag)
}

func TestDecodeReply_Violations(t *testing.T) {
	testCases := []struct {
		name     string
		response string
		wantErr  string
	}{
		{
			name:     "empty response",
			response: "",
			wantErr:  "no JSON",
		},
		{
			name:     "not JSON at all",
			response: "I cannot comply.",
			wantErr:  "not a reply object",
		},
		{
			name:     "missing reasoning",
			response: `{"action": {"type": "exit_app"}}`,
			wantErr:  "reasoning",
		},
		{
			name:     "empty reasoning",
			response: `{"reasoning": [], "action": {"type": "exit_app"}}`,
			wantErr:  "reasoning",
		},
		{
			name:     "missing action",
			response: `{"reasoning": ["ok"]}`,
			wantErr:  "action",
		},
		{
			name:     "missing discriminator",
			response: `{"reasoning": ["ok"], "action": {"message": "hi"}}`,
			wantErr:  "discriminator",
		},
		{
			name:     "tag outside the union",
			response: `{"reasoning": ["ok"], "action": {"type": "launch_app", "app_name": "echo"}}`,
			wantErr:  `not permitted in the current state`,
		},
		{
			name:     "payload violates variant schema",
			response: `{"reasoning": ["ok"], "action": {"type": "echo", "message": "hi", "effect": "shouting"}}`,
			wantErr:  "not in enum",
		},
		{
			name:     "missing required payload field",
			response: `{"reasoning": ["ok"], "action": {"type": "echo", "message": "hi"}}`,
			wantErr:  `missing required property "effect"`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := transport.DecodeReply(testReplySchema(), tc.response)
			require.Error(t, err)

			var violation *schema.ViolationError
			require.ErrorAs(t, err, &violation, "decode failures must be schema violations")
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func FuzzDecodeReply(f *testing.F) {
	f.Add(`{"reasoning": ["ok"], "action": {"type": "exit_app"}}`)
	f.Add("```json\n{\"reasoning\": [\"ok\"], \"action\": {\"type\": \"echo\", \"message\": \"m\", \"effect\": \"uppercase\"}}\n```")
	f.Add(`{"reasoning": [], "action": null}`)
	f.Add(`not json`)
	f.Add(`{{{{`)
	f.Add("")

	replySchema := testReplySchema()

	f.Fuzz(func(t *testing.T, response string) {
		reply, err := transport.DecodeReply(replySchema, response)
		if err != nil {
			var violation *schema.ViolationError
			if !assert.ErrorAs(t, err, &violation) {
				t.Fatalf("non-violation error from decode: %v", err)
			}
			return
		}
		// A successful decode guarantees a tag from the union and at least
		// one reasoning entry.
		assert.NotEmpty(t, reply.Reasoning)
		assert.Contains(t, []string{"echo", "exit_app"}, reply.Action.Tag)
	})
}
