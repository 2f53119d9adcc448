package client

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"eventmarket/internal/apperrors"
	"eventmarket/internal/database"
	"eventmarket/internal/models"
	"eventmarket/internal/query"
	"eventmarket/internal/schema"
)

// find runs a findMany: projection, filter, ordering, cursor paging, distinct
// and relation loading. extra fields are read even when not projected.
func (c *Client) find(ctx context.Context, m *schema.Model, action string, args query.FindArgs, extra ...string) ([]models.Record, error) {
	fields, err := query.Fields(m, args.Projection(), c.defaultOmit(m.Name))
	if err != nil {
		return nil, err
	}
	if err := query.ValidateIncludes(c.schema, m, args.Include); err != nil {
		return nil, err
	}
	groups := query.SplitIncludes(args.Include)
	for name := range groups {
		rel, _ := m.Relation(name)
		extra = append(extra, rel.LocalField)
	}
	fields = withFields(m, fields, append(extra, args.Distinct...))

	plan, err := c.compiler.Find(m, args, fields)
	if err != nil {
		return nil, err
	}
	recs, err := c.scan(ctx, m, action, plan.SQL, plan.Args, plan.Fields)
	if err != nil {
		return nil, err
	}

	if !plan.Paged {
		recs = distinct(recs, args.Distinct)
		recs = page(recs, plan.Skip, plan.Take)
	}
	if plan.Backward {
		for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
			recs[i], recs[j] = recs[j], recs[i]
		}
	}

	if err := c.loadIncludes(ctx, m, action, recs, groups); err != nil {
		return nil, err
	}
	return recs, nil
}

func (c *Client) scan(ctx context.Context, m *schema.Model, action, q string, args []any, fields []string) ([]models.Record, error) {
	rows, err := c.queryRows(ctx, m.Name, action, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Record{}
	for rows.Next() {
		rec := models.New(m.Name)
		bind := rec.Bind()
		dest := make([]any, len(fields))
		for i, name := range fields {
			dest[i] = bind[name]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, apperrors.Engine(err, "malformed %s row", m.Name)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Classify(err, database.ActionRead)
	}
	return out, nil
}

// loadIncludes attaches related records, one IN query per relation and level.
// Nested paths are loaded before the parent attaches its children.
func (c *Client) loadIncludes(ctx context.Context, m *schema.Model, action string, parents []models.Record, groups map[string][]string) error {
	if len(parents) == 0 {
		return nil
	}
	for _, name := range query.Relations(groups) {
		rel, _ := m.Relation(name)
		target, _ := c.schema.Model(rel.Target)

		seen := make(map[string]bool)
		var keys []any
		for _, p := range parents {
			v := fieldValue(p, rel.LocalField)
			if v == nil {
				continue
			}
			k := fmt.Sprint(v)
			if !seen[k] {
				seen[k] = true
				keys = append(keys, v)
			}
		}

		byKey := make(map[string][]models.Record)
		if len(keys) > 0 {
			children, err := c.find(ctx, target, action, query.FindArgs{
				Where:   query.In(rel.TargetField, keys...),
				Include: groups[name],
			}, rel.TargetField)
			if err != nil {
				return err
			}
			for _, ch := range children {
				k := fmt.Sprint(fieldValue(ch, rel.TargetField))
				byKey[k] = append(byKey[k], ch)
			}
		}

		for _, p := range parents {
			v := fieldValue(p, rel.LocalField)
			if v == nil {
				p.Attach(name, nil)
				continue
			}
			p.Attach(name, byKey[fmt.Sprint(v)])
		}
	}
	return nil
}

// withFields adds extra to fields, keeping declaration order.
func withFields(m *schema.Model, fields, extra []string) []string {
	if len(extra) == 0 {
		return fields
	}
	want := make(map[string]bool, len(fields)+len(extra))
	for _, f := range fields {
		want[f] = true
	}
	added := false
	for _, f := range extra {
		if !want[f] {
			want[f] = true
			added = true
		}
	}
	if !added {
		return fields
	}
	out := make([]string, 0, len(want))
	for _, f := range m.Fields {
		if want[f.Name] {
			out = append(out, f.Name)
		}
	}
	return out
}

// distinct keeps the first record of every distinct combination of fields.
func distinct(recs []models.Record, fields []string) []models.Record {
	if len(fields) == 0 {
		return recs
	}
	seen := make(map[string]bool, len(recs))
	out := recs[:0]
	for _, r := range recs {
		parts := make([]string, len(fields))
		for i, f := range fields {
			parts[i] = fmt.Sprintf("%#v", fieldValue(r, f))
		}
		key := strings.Join(parts, "\x00")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

func page(recs []models.Record, skip, take int) []models.Record {
	if skip >= len(recs) {
		return []models.Record{}
	}
	recs = recs[skip:]
	if take > 0 && take < len(recs) {
		recs = recs[:take]
	}
	return recs
}

// fieldValue reads a bound field, dereferencing nullable pointers.
func fieldValue(r models.Record, name string) any {
	ptr, ok := r.Bind()[name]
	if !ok {
		return nil
	}
	return derefValue(ptr)
}

func derefValue(v any) any {
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

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
