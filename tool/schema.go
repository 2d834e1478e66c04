package tool

import (
	"fmt"
	"math"
	"sort"
)

// Kind is the JSON type a parameter accepts.
type Kind string

// Parameter kinds. Unknown or missing JSON types default to KindString.
const (
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
)

// ParseKind maps a JSON schema type name onto a Kind.
func ParseKind(t string) Kind {
	switch Kind(t) {
	case KindInteger, KindNumber, KindBoolean, KindObject, KindArray:
		return Kind(t)
	default:
		return KindString
	}
}

// Property describes one named parameter.
type Property struct {
	Kind        Kind   `json:"kind"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// Schema is the typed argument shape of a tool, derived from a JSON schema.
type Schema struct {
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ParseSchema normalizes a JSON schema object (as decoded from JSON) into a
// Schema. Fields not listed in "required" are optional.
func ParseSchema(raw map[string]any) Schema {
	s := Schema{Properties: map[string]Property{}}
	if raw == nil {
		return s
	}

	for _, name := range stringSlice(raw["required"]) {
		s.Required = append(s.Required, name)
	}

	required := make(map[string]bool, len(s.Required))
	for _, name := range s.Required {
		required[name] = true
	}

	props, _ := raw["properties"].(map[string]any)
	for name, p := range props {
		pm, _ := p.(map[string]any)
		typ, _ := pm["type"].(string)
		desc, _ := pm["description"].(string)
		s.Properties[name] = Property{
			Kind:        ParseKind(typ),
			Description: desc,
			Required:    required[name],
		}
	}

	return s
}

// JSONSchema renders s as a JSON schema object for model tool definitions.
func (s Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Properties))
	for name, p := range s.Properties {
		prop := map[string]any{"type": string(p.Kind)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		props[name] = prop
	}

	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(s.Required) > 0 {
		out["required"] = append([]string(nil), s.Required...)
	}

	return out
}

// Names returns the parameter names in sorted order.
func (s Schema) Names() []string {
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks args against the schema. Unknown fields are allowed and a
// nil value satisfies any kind of an optional property.
func (s Schema) Validate(args map[string]any) error {
	for _, name := range s.Required {
		v, ok := args[name]
		if !ok {
			return &ValidationError{Field: name, Message: "required field is missing"}
		}
		if v == nil {
			return &ValidationError{Field: name, Message: "required field is null"}
		}
	}

	for name, value := range args {
		p, ok := s.Properties[name]
		if !ok {
			continue
		}
		if !isValidKind(value, p.Kind) {
			return &ValidationError{
				Field:   name,
				Value:   value,
				Message: fmt.Sprintf("expected type %s, got %T", p.Kind, value),
			}
		}
	}

	return nil
}

func stringSlice(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, r := range vals {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// maxExactInteger is the largest magnitude a float64 holds without losing
// integer precision.
const maxExactInteger = 1 << 53

func isValidKind(value any, kind Kind) bool {
	if value == nil {
		return true
	}

	switch kind {
	case KindString:
		_, ok := value.(string)
		return ok
	case KindInteger:
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64: // JSON numbers decode as float64
			return math.Trunc(v) == v && math.Abs(v) <= maxExactInteger
		}
		return false
	case KindNumber:
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
			float32, float64:
			return true
		}
		return false
	case KindBoolean:
		_, ok := value.(bool)
		return ok
	case KindArray:
		_, ok := value.([]any)
		return ok
	case KindObject:
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}
