package schema

import (
	"fmt"
	"math"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// ViolationError reports a payload that does not satisfy a Node. The agent
// loop treats it as a recoverable protocol violation: the offending turn is
// discarded and a corrective message is injected into the conversation.
type ViolationError struct {
	Path   string
	Reason string
}

func (e *ViolationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("schema violation: %s", e.Reason)
	}
	return fmt.Sprintf("schema violation at %s: %s", e.Path, e.Reason)
}

func violation(path, format string, args ...any) *ViolationError {
	return &ViolationError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks a raw JSON document against the given node. It returns a
// *ViolationError describing the first mismatch found, or nil if the
// document conforms.
func Validate(n *Node, raw []byte) error {
	var value any
	if err := jsoniter.Unmarshal(raw, &value); err != nil {
		return violation("", "invalid JSON: %v", err)
	}
	return validateValue(n, value, "$")
}

func validateValue(n *Node, value any, path string) error {
	if n == nil {
		return nil
	}

	if len(n.AnyOf) > 0 {
		for _, variant := range n.AnyOf {
			if err := validateValue(variant, value, path); err == nil {
				return nil
			}
		}
		return violation(path, "value matches none of the %d permitted variants", len(n.AnyOf))
	}

	switch n.Type {
	case TypeObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return violation(path, "expected object, got %T", value)
		}
		for _, name := range n.Required {
			if _, present := obj[name]; !present {
				return violation(path, "missing required property %q", name)
			}
		}
		for name, v := range obj {
			child, known := n.Properties[name]
			if !known {
				return violation(path+"."+name, "unexpected property")
			}
			if err := validateValue(child, v, path+"."+name); err != nil {
				return err
			}
		}
	case TypeArray:
		arr, ok := value.([]any)
		if !ok {
			return violation(path, "expected array, got %T", value)
		}
		for i, item := range arr {
			if err := validateValue(n.Items, item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case TypeString:
		s, ok := value.(string)
		if !ok {
			return violation(path, "expected string, got %T", value)
		}
		if len(n.Enum) > 0 && !containsString(n.Enum, s) {
			return violation(path, "value %q not in enum [%s]", s, strings.Join(n.Enum, ", "))
		}
	case TypeInteger:
		f, ok := value.(float64)
		if !ok || f != math.Trunc(f) {
			return violation(path, "expected integer, got %v", value)
		}
	case TypeNumber:
		if _, ok := value.(float64); !ok {
			return violation(path, "expected number, got %T", value)
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return violation(path, "expected boolean, got %T", value)
		}
	case "":
		// Untyped node: anything goes.
	default:
		return violation(path, "unsupported schema type %q", n.Type)
	}
	return nil
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
