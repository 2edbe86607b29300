// Package schema describes the structured replies the model is allowed to
// produce. A Node is a JSON-schema-shaped value tree; an ActionModel is one
// discriminated action variant (a wire tag plus a typed payload). The agent
// composes these into a reply schema every turn and the transport enforces
// it on the model's output.
package schema

import "sort"

// Type enumerates the value types a Node can describe.
type Type string

const (
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
)

// Node is a pure data description of a JSON value. It carries no identity
// and no behavior beyond marshalling; validation lives in validate.go.
type Node struct {
	Type        Type             `json:"type,omitempty"`
	Description string           `json:"description,omitempty"`
	Enum        []string         `json:"enum,omitempty"`
	Items       *Node            `json:"items,omitempty"`
	Properties  map[string]*Node `json:"properties,omitempty"`
	Required    []string         `json:"required,omitempty"`
	AnyOf       []*Node          `json:"anyOf,omitempty"`
}

// Property names used in the composed reply schema and on the wire.
const (
	PropReasoning = "reasoning"
	PropAction    = "action"
	PropTag       = "type"
)

// String returns a string node with the given description.
func String(description string) *Node {
	return &Node{Type: TypeString, Description: description}
}

// StringEnum returns a string node constrained to a closed set of values.
func StringEnum(description string, values ...string) *Node {
	return &Node{Type: TypeString, Description: description, Enum: values}
}

// Integer returns an integer node with the given description.
func Integer(description string) *Node {
	return &Node{Type: TypeInteger, Description: description}
}

// StringArray returns a node describing an array of strings.
func StringArray(description string) *Node {
	return &Node{Type: TypeArray, Description: description, Items: &Node{Type: TypeString}}
}

// Object returns an object node with the given properties, all of which are
// required. Required names are sorted so composed schemas are deterministic.
func Object(properties map[string]*Node) *Node {
	required := make([]string, 0, len(properties))
	for name := range properties {
		required = append(required, name)
	}
	sort.Strings(required)
	return &Node{Type: TypeObject, Properties: properties, Required: required}
}

// ActionModel describes one action variant an app (or the home screen)
// accepts. Tag is the discriminator value carried on the wire in the "type"
// property; Payload describes the remaining fields and may be nil for
// payload-free actions such as exit_app.
type ActionModel struct {
	Tag         string
	Description string
	Payload     *Node
}

// Wire returns the full schema node for this variant, including the
// single-value enum on the discriminator property. The returned node is a
// fresh value; the model's Payload is not mutated.
func (m ActionModel) Wire() *Node {
	props := map[string]*Node{
		PropTag: {Type: TypeString, Enum: []string{m.Tag}, Description: "Action discriminator."},
	}
	required := []string{PropTag}
	if m.Payload != nil {
		for name, node := range m.Payload.Properties {
			props[name] = node
		}
		required = append(required, m.Payload.Required...)
	}
	return &Node{
		Type:        TypeObject,
		Description: m.Description,
		Properties:  props,
		Required:    required,
	}
}

// Tags returns the discriminator tags of the given models in order.
func Tags(models []ActionModel) []string {
	tags := make([]string, len(models))
	for i, m := range models {
		tags[i] = m.Tag
	}
	return tags
}

// Reply composes the top-level schema the model must satisfy: a required
// reasoning field (one or more free-text thoughts) plus a required action
// field whose value is exactly one of the given variants.
func Reply(models []ActionModel) *Node {
	variants := make([]*Node, len(models))
	for i, m := range models {
		variants[i] = m.Wire()
	}
	return &Node{
		Type: TypeObject,
		Properties: map[string]*Node{
			PropReasoning: StringArray("Your step-by-step reasoning for the chosen action."),
			PropAction:    {AnyOf: variants, Description: "The single action to perform next."},
		},
		Required: []string{PropReasoning, PropAction},
	}
}

// ActionVariant returns the variant node of a composed reply schema whose
// discriminator enum matches tag, or nil if the tag is not a member of the
// action union.
func ActionVariant(reply *Node, tag string) *Node {
	if reply == nil || reply.Properties == nil {
		return nil
	}
	union := reply.Properties[PropAction]
	if union == nil {
		return nil
	}
	for _, variant := range union.AnyOf {
		disc := variant.Properties[PropTag]
		if disc != nil && len(disc.Enum) == 1 && disc.Enum[0] == tag {
			return variant
		}
	}
	return nil
}
