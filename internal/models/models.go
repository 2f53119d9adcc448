package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Record is implemented by every entity. Bind exposes a pointer per scalar field,
// keyed by field name, so rows can be scanned into and written from the struct.
type Record interface {
	ModelName() string
	Bind() map[string]any
	Attach(relation string, related []Record)
}

// New returns an empty record of the named model, or nil for unknown names.
func New(model string) Record {
	switch model {
	case ModelUser:
		return &User{}
	case ModelVendor:
		return &Vendor{}
	case ModelItem:
		return &Item{}
	case ModelCategoryType:
		return &CategoryType{}
	case ModelReview:
		return &Review{}
	case ModelSavedItem:
		return &SavedItem{}
	case ModelBooking:
		return &Booking{}
	case ModelPayment:
		return &Payment{}
	default:
		return nil
	}
}

// IDOf returns the id of a record.
func IDOf(r Record) string {
	if p, ok := r.Bind()["id"].(*string); ok {
		return *p
	}
	return ""
}

// StringList is an ordered list of strings persisted as a JSON array.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("string list: unsupported source %T", src)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("string list: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*l = out
	return nil
}

func first[T any](related []Record) *T {
	if len(related) == 0 {
		return nil
	}
	v, _ := any(related[0]).(*T)
	return v
}

func collect[T any](related []Record) []T {
	out := make([]T, 0, len(related))
	for _, r := range related {
		if v, ok := any(r).(*T); ok {
			out = append(out, *v)
		}
	}
	return out
}
