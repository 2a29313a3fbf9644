// Package util holds small helpers shared by the tool packages.
package util

import (
	"fmt"
	"reflect"
	"slices"
)

// ValidationError reports the first argument that does not satisfy a tool
// schema.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateParameters checks tool arguments against the subset of JSON Schema
// tools declare: required, type, enum, minimum and maximum on top-level
// properties. Unknown properties are accepted.
func ValidateParameters(params map[string]any, schema map[string]any) error {
	for _, name := range StringList(schema["required"]) {
		if _, ok := params[name]; !ok {
			return &ValidationError{Field: name, Message: "required field is missing"}
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for name, value := range params {
		prop, ok := properties[name].(map[string]any)
		if !ok || value == nil {
			continue
		}
		if msg := checkProperty(value, prop); msg != "" {
			return &ValidationError{Field: name, Value: value, Message: msg}
		}
	}
	return nil
}

func checkProperty(value any, prop map[string]any) string {
	typ, _ := prop["type"].(string)
	if !hasType(value, typ) {
		return fmt.Sprintf("expected type %s, got %T", typ, value)
	}

	if enum, ok := prop["enum"].([]any); ok && !slices.ContainsFunc(enum, func(e any) bool { return reflect.DeepEqual(e, value) }) {
		return fmt.Sprintf("value %v is not one of %v", value, enum)
	}
	if enum, ok := prop["enum"].([]string); ok {
		if s, _ := value.(string); !slices.Contains(enum, s) {
			return fmt.Sprintf("value %v is not one of %v", value, enum)
		}
	}

	n, isNum := toFloat(value)
	if !isNum {
		return ""
	}
	if lo, ok := toFloat(prop["minimum"]); ok && n < lo {
		return fmt.Sprintf("value %v is below minimum %v", value, lo)
	}
	if hi, ok := toFloat(prop["maximum"]); ok && n > hi {
		return fmt.Sprintf("value %v is above maximum %v", value, hi)
	}
	return ""
}

// StringList reads a schema string array such as "required". It accepts both
// []string from hand-written schemas and []any from decoded JSON.
func StringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func hasType(value any, typ string) bool {
	switch typ {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		// decoded JSON numbers arrive as float64
		n, ok := toFloat(value)
		return ok && n == float64(int64(n))
	case "number":
		_, ok := toFloat(value)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		return reflect.TypeOf(value).Kind() == reflect.Slice
	case "object":
		_, ok := value.(map[string]any)
		return ok
	}
	return true
}
