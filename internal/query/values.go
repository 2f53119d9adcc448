package query

import (
	"encoding/json"
	"math"
	"reflect"
	"sort"
	"time"

	"eventmarket/internal/apperrors"
	"eventmarket/internal/models"
	"eventmarket/internal/schema"
)

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

// Coerce converts a caller value into the driver value stored for the field.
// nil stays nil; nullability is checked by the caller.
func Coerce(m *schema.Model, f schema.Field, v any) (any, error) {
	v = deref(v)
	if v == nil {
		return nil, nil
	}
	bad := func() error {
		return apperrors.Validation("%s.%s expects %s, got %T", m.Name, f.Name, f.Kind, v)
	}

	switch f.Kind {
	case schema.String:
		s, ok := asString(v)
		if !ok {
			return nil, bad()
		}
		return s, nil
	case schema.Enum:
		s, ok := asString(v)
		if !ok {
			return nil, bad()
		}
		if !models.ValidEnum(f.Enum, s) {
			return nil, apperrors.Validation("%s.%s: %q is not a valid %s", m.Name, f.Name, s, f.Enum)
		}
		return s, nil
	case schema.Int:
		n, ok := asInt(v)
		if !ok {
			return nil, bad()
		}
		return n, nil
	case schema.Float:
		n, ok := asFloat(v)
		if !ok {
			return nil, bad()
		}
		return n, nil
	case schema.Bool:
		b, ok := v.(bool)
		if !ok {
			return nil, bad()
		}
		return b, nil
	case schema.DateTime:
		t, ok := asTime(v)
		if !ok {
			return nil, bad()
		}
		return t, nil
	case schema.StringList:
		l, ok := asList(v)
		if !ok {
			return nil, bad()
		}
		return l, nil
	}
	return nil, bad()
}

// coerceElem converts a list element.
func coerceElem(m *schema.Model, f schema.Field, v any) (string, error) {
	s, ok := asString(deref(v))
	if !ok {
		return "", apperrors.Validation("%s.%s elements are strings, got %T", m.Name, f.Name, v)
	}
	return s, nil
}

func deref(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}

func asString(v any) (string, bool) {
	if s, ok := v.(string); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return asInt(f)
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case float32:
		return asInt(float64(n))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return int64(rv.Uint()), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	if i, ok := asInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

// asTime normalizes to UTC so stored text compares in time order.
func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), true
	case string:
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

func asList(v any) (models.StringList, bool) {
	switch l := v.(type) {
	case models.StringList:
		return append(models.StringList{}, l...), true
	case []string:
		return append(models.StringList{}, l...), true
	case []any:
		out := make(models.StringList, 0, len(l))
		for _, e := range l {
			s, ok := asString(deref(e))
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

// asSlice spreads a list argument (in, notIn, hasEvery...) into elements.
func asSlice(v any) ([]any, bool) {
	v = deref(v)
	if v == nil {
		return nil, false
	}
	if l, ok := v.([]any); ok {
		return l, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NormalizeCreate validates create data against the model and returns driver
// values for every column to insert, with defaults applied. Required fields
// and required relations left unset fail before anything is written.
func NormalizeCreate(m *schema.Model, data Data) (map[string]any, error) {
	out := make(map[string]any, len(m.Fields))
	for _, name := range sortedKeys(data) {
		f, ok := m.Field(name)
		if !ok {
			return nil, apperrors.Validation("%s has no field %q", m.Name, name)
		}
		if f.Managed && name != "id" {
			return nil, apperrors.Validation("%s.%s is managed by the client", m.Name, name)
		}
		v, err := Coerce(m, f, data[name])
		if err != nil {
			return nil, err
		}
		if v == nil && !f.Nullable {
			return nil, apperrors.Validation("%s.%s must not be null", m.Name, name)
		}
		out[name] = v
	}

	for _, f := range m.Fields {
		if _, ok := out[f.Name]; ok || f.Managed {
			continue
		}
		switch {
		case f.HasDefault():
			v, err := Coerce(m, f, f.Default)
			if err != nil {
				return nil, err
			}
			out[f.Name] = v
		case f.Nullable:
			out[f.Name] = nil
		default:
			if rel, ok := m.OwnerRelationFor(f.Name); ok {
				return nil, apperrors.Validation("%s requires relation %s (%s)", m.Name, rel.Name, f.Name)
			}
			return nil, apperrors.Validation("%s.%s is required", m.Name, f.Name)
		}
	}

	if err := checkExclusive(m, out); err != nil {
		return nil, err
	}
	return out, nil
}

func checkExclusive(m *schema.Model, values map[string]any) error {
	for _, group := range m.Exclusive {
		set := 0
		for _, name := range group {
			if values[name] != nil {
				set++
			}
		}
		if set > 1 {
			return apperrors.Validation("%s: at most one of %v may be set", m.Name, group)
		}
	}
	return nil
}
