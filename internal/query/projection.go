package query

import (
	"strings"

	"eventmarket/internal/apperrors"
	"eventmarket/internal/schema"
)

// Fields resolves the scalar fields a projection reads. defaultOmit applies
// unless the field is selected explicitly. id is always read.
func Fields(m *schema.Model, p Projection, defaultOmit []string) ([]string, error) {
	if len(p.Select) > 0 && len(p.Include) > 0 {
		return nil, apperrors.Validation("%s: select and include are mutually exclusive", m.Name)
	}
	if len(p.Select) > 0 && len(p.Omit) > 0 {
		return nil, apperrors.Validation("%s: select and omit are mutually exclusive", m.Name)
	}

	if len(p.Select) > 0 {
		want := map[string]bool{"id": true}
		for _, name := range p.Select {
			if _, ok := m.Relation(name); ok {
				return nil, apperrors.Validation("%s: select takes scalar fields; load relation %q with include", m.Name, name)
			}
			if _, err := field(m, name); err != nil {
				return nil, err
			}
			want[name] = true
		}
		out := make([]string, 0, len(want))
		for _, f := range m.Fields {
			if want[f.Name] {
				out = append(out, f.Name)
			}
		}
		return out, nil
	}

	drop := make(map[string]bool, len(p.Omit)+len(defaultOmit))
	for _, name := range p.Omit {
		if _, err := field(m, name); err != nil {
			return nil, err
		}
		drop[name] = true
	}
	for _, name := range defaultOmit {
		drop[name] = true
	}
	delete(drop, "id")

	out := make([]string, 0, len(m.Fields))
	for _, f := range m.Fields {
		if !drop[f.Name] {
			out = append(out, f.Name)
		}
	}
	return out, nil
}

// ValidateIncludes checks every dotted include path against the relation graph.
func ValidateIncludes(s *schema.Schema, m *schema.Model, paths []string) error {
	for _, path := range paths {
		cur := m
		for _, seg := range strings.Split(path, ".") {
			rel, ok := cur.Relation(seg)
			if !ok {
				return apperrors.Validation("%s has no relation %q (include %q)", cur.Name, seg, path)
			}
			next, ok := s.Model(rel.Target)
			if !ok {
				return apperrors.Validation("unknown model %q", rel.Target)
			}
			cur = next
		}
	}
	return nil
}

// SplitIncludes groups dotted paths by their first relation:
// ["vendor", "bookings.payment"] -> {"vendor": nil, "bookings": ["payment"]}.
func SplitIncludes(paths []string) map[string][]string {
	out := make(map[string][]string)
	for _, path := range paths {
		head, rest, nested := strings.Cut(path, ".")
		if _, ok := out[head]; !ok {
			out[head] = nil
		}
		if nested {
			out[head] = append(out[head], rest)
		}
	}
	return out
}

// Relations lists the relation names in a grouped include map, sorted.
func Relations(groups map[string][]string) []string {
	return sortedKeys(groups)
}
