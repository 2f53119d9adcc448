// Package schema describes every entity as data: scalar fields with their kinds,
// unique keys, and the relations between entities with their delete policy.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

type Kind int

const (
	String Kind = iota
	Int
	Float
	Bool
	DateTime
	Enum
	StringList
)

func (k Kind) String() string {
	switch k {
	case String:
		return "String"
	case Int:
		return "Int"
	case Float:
		return "Float"
	case Bool:
		return "Boolean"
	case DateTime:
		return "DateTime"
	case Enum:
		return "Enum"
	case StringList:
		return "String[]"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Numeric reports whether arithmetic update operators and avg/sum apply.
func (k Kind) Numeric() bool { return k == Int || k == Float }

// Ordered reports whether range comparisons and min/max apply.
func (k Kind) Ordered() bool {
	return k == Int || k == Float || k == DateTime || k == String || k == Enum
}

type Field struct {
	Name     string
	Column   string
	Kind     Kind
	Nullable bool
	Enum     string
	// Default is applied on create when the field is omitted.
	Default any
	// Managed fields are written by the client, never by callers.
	Managed bool
}

func (f Field) HasDefault() bool { return f.Default != nil }

type DeletePolicy int

const (
	// Restrict rejects deleting a target row while this relation references it.
	Restrict DeletePolicy = iota
	// Cascade deletes referencing rows with the target.
	Cascade
	// SetNull clears the foreign key when the target is deleted.
	SetNull
)

func (p DeletePolicy) SQL() string {
	switch p {
	case Cascade:
		return "CASCADE"
	case SetNull:
		return "SET NULL"
	default:
		return "RESTRICT"
	}
}

// Relation links a model to a target model. LocalField on this model matches
// TargetField on the target. Owner relations hold the foreign key themselves;
// the others are derived views over the target's foreign key.
type Relation struct {
	Name        string
	Target      string
	Many        bool
	Owner       bool
	Required    bool
	LocalField  string
	TargetField string
	OnDelete    DeletePolicy
}

type Model struct {
	Name      string
	Table     string
	Fields    []Field
	Unique    [][]string
	Relations []Relation
	// Exclusive groups fields of which at most one may be set on a row.
	Exclusive [][]string

	fields    map[string]int
	relations map[string]int
}

func (m *Model) Field(name string) (Field, bool) {
	i, ok := m.fields[name]
	if !ok {
		return Field{}, false
	}
	return m.Fields[i], true
}

func (m *Model) Relation(name string) (Relation, bool) {
	i, ok := m.relations[name]
	if !ok {
		return Relation{}, false
	}
	return m.Relations[i], true
}

// FieldNames lists scalar fields in declaration order.
func (m *Model) FieldNames() []string {
	out := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		out[i] = f.Name
	}
	return out
}

// UniqueKey returns the declared unique key made of exactly the given fields.
func (m *Model) UniqueKey(fields []string) ([]string, bool) {
	want := append([]string(nil), fields...)
	sort.Strings(want)
	for _, key := range m.Unique {
		got := append([]string(nil), key...)
		sort.Strings(got)
		if strings.Join(got, ",") == strings.Join(want, ",") {
			return key, true
		}
	}
	return nil, false
}

// OwnerRelationFor returns the owning relation whose foreign key is field.
func (m *Model) OwnerRelationFor(field string) (Relation, bool) {
	for _, r := range m.Relations {
		if r.Owner && r.LocalField == field {
			return r, true
		}
	}
	return Relation{}, false
}

// Column returns the column for a field name; it panics on unknown names since
// callers resolve fields first.
func (m *Model) Column(field string) string {
	f, ok := m.Field(field)
	if !ok {
		panic(fmt.Sprintf("schema: %s has no field %q", m.Name, field))
	}
	return f.Column
}

// Schema is the full set of models.
type Schema struct {
	models map[string]*Model
	order  []string
}

func newSchema(models ...*Model) *Schema {
	s := &Schema{models: make(map[string]*Model, len(models))}
	for _, m := range models {
		m.fields = make(map[string]int, len(m.Fields))
		for i, f := range m.Fields {
			m.fields[f.Name] = i
		}
		m.relations = make(map[string]int, len(m.Relations))
		for i, r := range m.Relations {
			m.relations[r.Name] = i
		}
		s.models[m.Name] = m
		s.order = append(s.order, m.Name)
	}
	return s
}

func (s *Schema) Model(name string) (*Model, bool) {
	m, ok := s.models[name]
	return m, ok
}

// Models returns all models in declaration order.
func (s *Schema) Models() []*Model {
	out := make([]*Model, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.models[name])
	}
	return out
}

// Dependents lists owner relations on other models that point at target,
// paired with the model that declares them.
func (s *Schema) Dependents(target string) []Dependent {
	var out []Dependent
	for _, m := range s.Models() {
		for _, r := range m.Relations {
			if r.Owner && r.Target == target {
				out = append(out, Dependent{Model: m, Relation: r})
			}
		}
	}
	return out
}

type Dependent struct {
	Model    *Model
	Relation Relation
}
