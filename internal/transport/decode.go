package transport

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/jlindermeir/ami0/internal/app"
	"github.com/jlindermeir/ami0/internal/schema"
)

// A regex to robustly extract a JSON object from a markdown code block.
var jsonBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// rawReply mirrors the wire shape of a model reply before validation.
type rawReply struct {
	Reasoning []string        `json:"reasoning"`
	Action    json.RawMessage `json:"action"`
}

// extractJSON pulls a JSON object out of the model's response, handling
// markdown code fences and surrounding prose.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)
	if matches := jsonBlockRegex.FindStringSubmatch(response); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	first := strings.Index(response, "{")
	last := strings.LastIndex(response, "}")
	if first != -1 && last > first {
		return response[first : last+1]
	}
	return response
}

// DecodeReply parses a raw model response and validates it against the
// reply schema composed for this turn. On success the returned action's tag
// is guaranteed to be a member of the schema's action union and its payload
// to satisfy that variant.
func DecodeReply(replySchema *schema.Node, response string) (*Reply, error) {
	raw := extractJSON(response)
	if raw == "" {
		return nil, &schema.ViolationError{Reason: "response contains no JSON"}
	}

	var parsed rawReply
	if err := jsoniter.UnmarshalFromString(raw, &parsed); err != nil {
		return nil, &schema.ViolationError{Reason: fmt.Sprintf("response is not a reply object: %v", err)}
	}
	if len(parsed.Reasoning) == 0 {
		return nil, &schema.ViolationError{Path: "$." + schema.PropReasoning, Reason: "missing or empty"}
	}
	if len(parsed.Action) == 0 {
		return nil, &schema.ViolationError{Path: "$." + schema.PropAction, Reason: "missing"}
	}

	var disc struct {
		Tag string `json:"type"`
	}
	if err := jsoniter.Unmarshal(parsed.Action, &disc); err != nil || disc.Tag == "" {
		return nil, &schema.ViolationError{Path: "$." + schema.PropAction, Reason: "missing action discriminator"}
	}

	variant := schema.ActionVariant(replySchema, disc.Tag)
	if variant == nil {
		return nil, &schema.ViolationError{
			Path:   "$." + schema.PropAction,
			Reason: fmt.Sprintf("action tag %q is not permitted in the current state", disc.Tag),
		}
	}
	if err := schema.Validate(variant, parsed.Action); err != nil {
		return nil, err
	}

	return &Reply{
		Reasoning: parsed.Reasoning,
		Action:    app.Action{Tag: disc.Tag, Payload: parsed.Action},
	}, nil
}
