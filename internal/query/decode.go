package query

import (
	"bytes"
	"encoding/json"
	"strings"

	"eventmarket/internal/apperrors"
	"eventmarket/internal/schema"
)

// Decoder reads query documents shaped like
//
//	{"where": {"email": {"endsWith": "@x.com"}, "vendor": {"is": {"verified": true}}},
//	 "orderBy": [{"createdAt": "desc"}], "take": 10, "include": {"vendor": true}}
//
// into grammar values for a model.
type Decoder struct {
	schema *schema.Schema
}

func NewDecoder(s *schema.Schema) *Decoder {
	return &Decoder{schema: s}
}

func parseObject(raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, apperrors.Validation("malformed document: %v", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func (d *Decoder) model(name string) (*schema.Model, error) {
	m, ok := d.schema.Model(name)
	if !ok {
		return nil, apperrors.Validation("unknown model %q", name)
	}
	return m, nil
}

func checkKeys(doc map[string]any, allowed ...string) error {
	ok := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		ok[k] = true
	}
	for k := range doc {
		if !ok[k] {
			return apperrors.Validation("unknown argument %q", k)
		}
	}
	return nil
}

// Where decodes a bare filter object.
func (d *Decoder) Where(model string, raw json.RawMessage) (Predicate, error) {
	m, err := d.model(model)
	if err != nil {
		return nil, err
	}
	doc, err := parseObject(raw)
	if err != nil {
		return nil, err
	}
	return d.where(m, doc, false)
}

func (d *Decoder) where(m *schema.Model, doc map[string]any, having bool) (Predicate, error) {
	parts := make(AndNode, 0, len(doc))
	for _, key := range sortedKeys(doc) {
		val := doc[key]
		switch key {
		case "AND", "OR", "NOT":
			children, err := d.children(m, val, having)
			if err != nil {
				return nil, err
			}
			switch key {
			case "AND":
				parts = append(parts, AndNode(children))
			case "OR":
				parts = append(parts, OrNode(children))
			default:
				nots := make(AndNode, len(children))
				for i, c := range children {
					nots[i] = Not(c)
				}
				if len(nots) == 1 {
					parts = append(parts, nots[0])
				} else {
					parts = append(parts, nots)
				}
			}
			continue
		}

		if having && strings.HasPrefix(key, "_") {
			p, err := d.aggregateFilter(m, AggFunc(key), val)
			if err != nil {
				return nil, err
			}
			parts = append(parts, p)
			continue
		}

		if f, ok := m.Field(key); ok {
			p, err := d.fieldFilter(m, f, val)
			if err != nil {
				return nil, err
			}
			parts = append(parts, p)
			continue
		}

		if rel, ok := m.Relation(key); ok && !having {
			p, err := d.relationFilter(m, rel, val)
			if err != nil {
				return nil, err
			}
			parts = append(parts, p)
			continue
		}
		return nil, apperrors.Validation("%s has no field or relation %q", m.Name, key)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return parts, nil
}

func (d *Decoder) children(m *schema.Model, val any, having bool) ([]Predicate, error) {
	var items []any
	switch v := val.(type) {
	case []any:
		items = v
	case map[string]any:
		items = []any{v}
	default:
		return nil, apperrors.Validation("logical operators take an object or a list of objects")
	}
	out := make([]Predicate, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, apperrors.Validation("logical operators take an object or a list of objects")
		}
		p, err := d.where(m, obj, having)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

var fieldOps = map[string]Op{
	"equals": OpEquals, "not": OpNot, "in": OpIn, "notIn": OpNotIn,
	"lt": OpLt, "lte": OpLte, "gt": OpGt, "gte": OpGte,
	"contains": OpContains, "startsWith": OpStartsWith, "endsWith": OpEndsWith,
	"isSet": OpIsSet, "has": OpHas, "hasEvery": OpHasEvery, "hasSome": OpHasSome, "isEmpty": OpIsEmpty,
}

func (d *Decoder) fieldFilter(m *schema.Model, f schema.Field, val any) (Predicate, error) {
	obj, ok := val.(map[string]any)
	if !ok {
		return Equals(f.Name, val), nil
	}

	mode := ModeDefault
	if raw, ok := obj["mode"]; ok {
		switch raw {
		case "insensitive":
			mode = ModeInsensitive
		case "default":
		default:
			return nil, apperrors.Validation("unknown mode %v", raw)
		}
	}

	parts := make(AndNode, 0, len(obj))
	for _, key := range sortedKeys(obj) {
		if key == "mode" {
			continue
		}
		op, ok := fieldOps[key]
		if !ok {
			return nil, apperrors.Validation("unknown operator %q on %s.%s", key, m.Name, f.Name)
		}
		val := obj[key]
		// not with a nested filter negates it
		if op == OpNot {
			if nested, ok := val.(map[string]any); ok {
				if _, hasMode := nested["mode"]; !hasMode && mode == ModeInsensitive {
					nested["mode"] = "insensitive"
				}
				inner, err := d.fieldFilter(m, f, nested)
				if err != nil {
					return nil, err
				}
				parts = append(parts, Not(inner))
				continue
			}
		}
		c := Cond{Field: f.Name, Op: op, Value: val}
		if mode == ModeInsensitive && f.Kind == schema.String {
			c.Mode = ModeInsensitive
		}
		parts = append(parts, c)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return parts, nil
}

func (d *Decoder) relationFilter(m *schema.Model, rel schema.Relation, val any) (Predicate, error) {
	target, err := d.model(rel.Target)
	if err != nil {
		return nil, err
	}
	if val == nil {
		if rel.Many {
			return nil, apperrors.Validation("%s.%s is a list relation and cannot be null", m.Name, rel.Name)
		}
		return Is(rel.Name, nil), nil
	}
	obj, ok := val.(map[string]any)
	if !ok {
		return nil, apperrors.Validation("%s.%s expects a relation filter object", m.Name, rel.Name)
	}

	quants := []Quantifier{QIs, QIsNot}
	if rel.Many {
		quants = []Quantifier{QSome, QEvery, QNone}
	}
	var parts AndNode
	rest := make(map[string]any, len(obj))
	for k, v := range obj {
		rest[k] = v
	}
	for _, q := range quants {
		raw, ok := obj[string(q)]
		if !ok {
			continue
		}
		delete(rest, string(q))
		var inner Predicate
		if raw != nil {
			nested, ok := raw.(map[string]any)
			if !ok {
				return nil, apperrors.Validation("%s.%s.%s expects an object or null", m.Name, rel.Name, q)
			}
			inner, err = d.where(target, nested, false)
			if err != nil {
				return nil, err
			}
		} else if rel.Many {
			return nil, apperrors.Validation("%s.%s.%s cannot be null", m.Name, rel.Name, q)
		}
		parts = append(parts, RelCond{Relation: rel.Name, Quant: q, Where: inner})
	}

	if len(rest) > 0 {
		if rel.Many || len(parts) > 0 {
			return nil, apperrors.Validation("%s.%s: unexpected keys in relation filter", m.Name, rel.Name)
		}
		// shorthand: a bare nested filter on a single relation means is
		inner, err := d.where(target, rest, false)
		if err != nil {
			return nil, err
		}
		return Is(rel.Name, inner), nil
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return parts, nil
}

func (d *Decoder) aggregateFilter(m *schema.Model, fn AggFunc, val any) (Predicate, error) {
	switch fn {
	case AggCount, AggAvg, AggSum, AggMin, AggMax:
	default:
		return nil, apperrors.Validation("unknown aggregate %q", fn)
	}
	obj, ok := val.(map[string]any)
	if !ok {
		return nil, apperrors.Validation("%s filter expects an object", fn)
	}
	var parts AndNode
	for _, name := range sortedKeys(obj) {
		ops, ok := obj[name].(map[string]any)
		if !ok {
			parts = append(parts, Having(fn, name, OpEquals, obj[name]))
			continue
		}
		for _, key := range sortedKeys(ops) {
			op, ok := fieldOps[key]
			if !ok {
				return nil, apperrors.Validation("unknown operator %q in %s", key, fn)
			}
			parts = append(parts, Having(fn, name, op, ops[key]))
		}
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return parts, nil
}

func asInt64(v any, name string) (int, error) {
	if v == nil {
		return 0, nil
	}
	n, ok := asInt(v)
	if !ok {
		return 0, apperrors.Validation("%s must be an integer", name)
	}
	return int(n), nil
}

func flags(v any, name string) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, apperrors.Validation("%s expects an object of booleans", name)
	}
	var out []string
	for _, k := range sortedKeys(obj) {
		on, ok := obj[k].(bool)
		if !ok {
			return nil, apperrors.Validation("%s.%s must be a boolean", name, k)
		}
		if on {
			out = append(out, k)
		}
	}
	return out, nil
}

func stringList(v any, name string) ([]string, error) {
	switch l := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{l}, nil
	case []any:
		out := make([]string, 0, len(l))
		for _, e := range l {
			s, ok := e.(string)
			if !ok {
				return nil, apperrors.Validation("%s must list field names", name)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, apperrors.Validation("%s must list field names", name)
}

func orders(v any, groupBy bool) ([]Order, error) {
	var items []any
	switch o := v.(type) {
	case nil:
		return nil, nil
	case []any:
		items = o
	case map[string]any:
		items = []any{o}
	default:
		return nil, apperrors.Validation("orderBy expects an object or a list of objects")
	}

	var out []Order
	direction := func(v any) (bool, error) {
		switch v {
		case "asc":
			return false, nil
		case "desc":
			return true, nil
		}
		return false, apperrors.Validation("sort direction must be asc or desc, got %v", v)
	}
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, apperrors.Validation("orderBy expects objects")
		}
		for _, key := range sortedKeys(obj) {
			if nested, ok := obj[key].(map[string]any); ok && strings.HasPrefix(key, "_") {
				if !groupBy {
					return nil, apperrors.Validation("ordering by %s is only valid in groupBy", key)
				}
				for _, name := range sortedKeys(nested) {
					desc, err := direction(nested[name])
					if err != nil {
						return nil, err
					}
					out = append(out, ByAggregate(AggFunc(key), name, desc))
				}
				continue
			}
			desc, err := direction(obj[key])
			if err != nil {
				return nil, err
			}
			out = append(out, Order{Field: key, Desc: desc})
		}
	}
	return out, nil
}

// includes flattens {"bookings": {"include": {"payment": true}}} to dotted paths.
func includes(v any, prefix string) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, apperrors.Validation("include expects an object")
	}
	var out []string
	for _, k := range sortedKeys(obj) {
		path := prefix + k
		switch val := obj[k].(type) {
		case bool:
			if val {
				out = append(out, path)
			}
		case map[string]any:
			out = append(out, path)
			nested, err := includes(val["include"], path+".")
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
		default:
			return nil, apperrors.Validation("include.%s must be a boolean or an object", k)
		}
	}
	return out, nil
}

func (d *Decoder) unique(m *schema.Model, v any) (Unique, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, apperrors.Validation("%s: unique selector must be an object", m.Name)
	}
	u := make(Unique, len(obj))
	for k, val := range obj {
		// compound keys may be nested: {"userId_itemId": {"userId": .., "itemId": ..}}
		if nested, ok := val.(map[string]any); ok && strings.Contains(k, "_") {
			for nk, nv := range nested {
				u[nk] = nv
			}
			continue
		}
		u[k] = val
	}
	return u, nil
}

// Projection decodes select, include and omit.
func (d *Decoder) projection(doc map[string]any) (Projection, error) {
	var p Projection
	var err error
	if p.Select, err = flags(doc["select"], "select"); err != nil {
		return p, err
	}
	if p.Include, err = includes(doc["include"], ""); err != nil {
		return p, err
	}
	if p.Omit, err = flags(doc["omit"], "omit"); err != nil {
		return p, err
	}
	return p, nil
}

// FindArgs decodes findFirst/findMany arguments.
func (d *Decoder) FindArgs(model string, raw json.RawMessage) (FindArgs, error) {
	m, err := d.model(model)
	if err != nil {
		return FindArgs{}, err
	}
	doc, err := parseObject(raw)
	if err != nil {
		return FindArgs{}, err
	}
	if err := checkKeys(doc, "where", "orderBy", "cursor", "take", "skip", "distinct", "select", "include", "omit"); err != nil {
		return FindArgs{}, err
	}

	var args FindArgs
	if w, ok := doc["where"].(map[string]any); ok {
		if args.Where, err = d.where(m, w, false); err != nil {
			return args, err
		}
	}
	if args.OrderBy, err = orders(doc["orderBy"], false); err != nil {
		return args, err
	}
	if c, ok := doc["cursor"]; ok && c != nil {
		if args.Cursor, err = d.unique(m, c); err != nil {
			return args, err
		}
	}
	if args.Take, err = asInt64(doc["take"], "take"); err != nil {
		return args, err
	}
	if args.Skip, err = asInt64(doc["skip"], "skip"); err != nil {
		return args, err
	}
	if args.Distinct, err = stringList(doc["distinct"], "distinct"); err != nil {
		return args, err
	}
	proj, err := d.projection(doc)
	if err != nil {
		return args, err
	}
	args.Select, args.Include, args.Omit = proj.Select, proj.Include, proj.Omit
	return args, nil
}

// UniqueArgs decodes {"where": {...unique...}, "select"/"include"/"omit"}.
func (d *Decoder) UniqueArgs(model string, raw json.RawMessage) (Unique, Projection, error) {
	m, err := d.model(model)
	if err != nil {
		return nil, Projection{}, err
	}
	doc, err := parseObject(raw)
	if err != nil {
		return nil, Projection{}, err
	}
	if err := checkKeys(doc, "where", "select", "include", "omit"); err != nil {
		return nil, Projection{}, err
	}
	u, err := d.unique(m, doc["where"])
	if err != nil {
		return nil, Projection{}, err
	}
	proj, err := d.projection(doc)
	return u, proj, err
}

// data decodes create input. Owning relations may be given as
// {"vendor": {"connect": {"id": "..."}}} instead of the foreign key.
func (d *Decoder) data(m *schema.Model, v any) (Data, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, apperrors.Validation("%s: data must be an object", m.Name)
	}
	out := make(Data, len(obj))
	for k, val := range obj {
		if rel, ok := m.Relation(k); ok {
			if !rel.Owner {
				return nil, apperrors.Validation("%s.%s cannot be written from this side", m.Name, k)
			}
			ref, err := connectID(m, rel, val)
			if err != nil {
				return nil, err
			}
			out[rel.LocalField] = ref
			continue
		}
		if _, ok := m.Field(k); !ok {
			return nil, apperrors.Validation("%s has no field %q", m.Name, k)
		}
		out[k] = val
	}
	return out, nil
}

func connectID(m *schema.Model, rel schema.Relation, val any) (any, error) {
	obj, ok := val.(map[string]any)
	if ok {
		if _, disc := obj["disconnect"]; disc && len(obj) == 1 {
			return nil, nil
		}
		if conn, ok := obj["connect"].(map[string]any); ok && len(obj) == 1 {
			if id, ok := conn["id"]; ok && len(conn) == 1 {
				return id, nil
			}
		}
	}
	return nil, apperrors.Validation("%s.%s accepts only {\"connect\": {\"id\": ...}}", m.Name, rel.Name)
}

// update decodes update input: bare values set, operator objects apply
// set/increment/decrement/multiply/divide/push.
func (d *Decoder) update(m *schema.Model, v any) (Update, error) {
	data, err := d.data(m, v)
	if err != nil {
		return nil, err
	}
	out := make(Update, 0, len(data))
	for _, k := range sortedKeys(data) {
		val := data[k]
		obj, ok := val.(map[string]any)
		if !ok || len(obj) != 1 {
			out = append(out, Set(k, val))
			continue
		}
		for op, arg := range obj {
			switch UpdateOp(op) {
			case UpdSet, UpdIncrement, UpdDecrement, UpdMultiply, UpdDivide, UpdPush:
				out = append(out, FieldUpdate{Field: k, Op: UpdateOp(op), Value: arg})
			default:
				return nil, apperrors.Validation("unknown update operator %q on %s.%s", op, m.Name, k)
			}
		}
	}
	return out, nil
}

// CreateArgs decodes {"data": {...}, select/include/omit}.
func (d *Decoder) CreateArgs(model string, raw json.RawMessage) (Data, Projection, error) {
	m, err := d.model(model)
	if err != nil {
		return nil, Projection{}, err
	}
	doc, err := parseObject(raw)
	if err != nil {
		return nil, Projection{}, err
	}
	if err := checkKeys(doc, "data", "select", "include", "omit"); err != nil {
		return nil, Projection{}, err
	}
	data, err := d.data(m, doc["data"])
	if err != nil {
		return nil, Projection{}, err
	}
	proj, err := d.projection(doc)
	return data, proj, err
}

// CreateManyArgs decodes {"data": [...], "skipDuplicates": bool}.
func (d *Decoder) CreateManyArgs(model string, raw json.RawMessage) (CreateManyArgs, error) {
	m, err := d.model(model)
	if err != nil {
		return CreateManyArgs{}, err
	}
	doc, err := parseObject(raw)
	if err != nil {
		return CreateManyArgs{}, err
	}
	if err := checkKeys(doc, "data", "skipDuplicates"); err != nil {
		return CreateManyArgs{}, err
	}
	items, ok := doc["data"].([]any)
	if !ok {
		return CreateManyArgs{}, apperrors.Validation("%s.createMany: data must be a list", m.Name)
	}
	args := CreateManyArgs{Data: make([]Data, 0, len(items))}
	if skip, ok := doc["skipDuplicates"].(bool); ok {
		args.SkipDuplicates = skip
	}
	for _, item := range items {
		data, err := d.data(m, item)
		if err != nil {
			return args, err
		}
		args.Data = append(args.Data, data)
	}
	return args, nil
}

// UpdateArgs decodes {"where": unique, "data": {...}, select/include/omit}.
func (d *Decoder) UpdateArgs(model string, raw json.RawMessage) (Unique, Update, Projection, error) {
	m, err := d.model(model)
	if err != nil {
		return nil, nil, Projection{}, err
	}
	doc, err := parseObject(raw)
	if err != nil {
		return nil, nil, Projection{}, err
	}
	if err := checkKeys(doc, "where", "data", "select", "include", "omit"); err != nil {
		return nil, nil, Projection{}, err
	}
	u, err := d.unique(m, doc["where"])
	if err != nil {
		return nil, nil, Projection{}, err
	}
	upd, err := d.update(m, doc["data"])
	if err != nil {
		return nil, nil, Projection{}, err
	}
	proj, err := d.projection(doc)
	return u, upd, proj, err
}

// UpdateManyArgs decodes {"where": filter, "data": {...}}.
func (d *Decoder) UpdateManyArgs(model string, raw json.RawMessage) (Predicate, Update, error) {
	m, err := d.model(model)
	if err != nil {
		return nil, nil, err
	}
	doc, err := parseObject(raw)
	if err != nil {
		return nil, nil, err
	}
	if err := checkKeys(doc, "where", "data"); err != nil {
		return nil, nil, err
	}
	var where Predicate
	if w, ok := doc["where"].(map[string]any); ok {
		if where, err = d.where(m, w, false); err != nil {
			return nil, nil, err
		}
	}
	upd, err := d.update(m, doc["data"])
	return where, upd, err
}

// UpsertArgs decodes {"where": unique, "create": {...}, "update": {...}}.
func (d *Decoder) UpsertArgs(model string, raw json.RawMessage) (Unique, Data, Update, Projection, error) {
	m, err := d.model(model)
	if err != nil {
		return nil, nil, nil, Projection{}, err
	}
	doc, err := parseObject(raw)
	if err != nil {
		return nil, nil, nil, Projection{}, err
	}
	if err := checkKeys(doc, "where", "create", "update", "select", "include", "omit"); err != nil {
		return nil, nil, nil, Projection{}, err
	}
	u, err := d.unique(m, doc["where"])
	if err != nil {
		return nil, nil, nil, Projection{}, err
	}
	create, err := d.data(m, doc["create"])
	if err != nil {
		return nil, nil, nil, Projection{}, err
	}
	upd, err := d.update(m, doc["update"])
	if err != nil {
		return nil, nil, nil, Projection{}, err
	}
	proj, err := d.projection(doc)
	return u, create, upd, proj, err
}

// DeleteManyArgs decodes {"where": filter, "limit": n}.
func (d *Decoder) DeleteManyArgs(model string, raw json.RawMessage) (DeleteManyArgs, error) {
	m, err := d.model(model)
	if err != nil {
		return DeleteManyArgs{}, err
	}
	doc, err := parseObject(raw)
	if err != nil {
		return DeleteManyArgs{}, err
	}
	if err := checkKeys(doc, "where", "limit"); err != nil {
		return DeleteManyArgs{}, err
	}
	var args DeleteManyArgs
	if w, ok := doc["where"].(map[string]any); ok {
		if args.Where, err = d.where(m, w, false); err != nil {
			return args, err
		}
	}
	args.Limit, err = asInt64(doc["limit"], "limit")
	return args, err
}

// CountArgs decodes {"where": filter, "select": {"_all": true, "field": true}}.
func (d *Decoder) CountArgs(model string, raw json.RawMessage) (CountArgs, error) {
	m, err := d.model(model)
	if err != nil {
		return CountArgs{}, err
	}
	doc, err := parseObject(raw)
	if err != nil {
		return CountArgs{}, err
	}
	if err := checkKeys(doc, "where", "select"); err != nil {
		return CountArgs{}, err
	}
	var args CountArgs
	if w, ok := doc["where"].(map[string]any); ok {
		if args.Where, err = d.where(m, w, false); err != nil {
			return args, err
		}
	}
	sel, err := flags(doc["select"], "select")
	if err != nil {
		return args, err
	}
	for _, f := range sel {
		if f != "_all" {
			args.Fields = append(args.Fields, f)
		}
	}
	return args, nil
}

func aggregates(doc map[string]any) (Aggregates, error) {
	var a Aggregates
	var err error
	for _, step := range []struct {
		key string
		dst *[]string
	}{
		{"_count", &a.Count}, {"_avg", &a.Avg}, {"_sum", &a.Sum}, {"_min", &a.Min}, {"_max", &a.Max},
	} {
		if *step.dst, err = flags(doc[step.key], step.key); err != nil {
			return a, err
		}
	}
	return a, nil
}

// AggregateArgs decodes {"where", "_count", "_avg", "_sum", "_min", "_max"}.
func (d *Decoder) AggregateArgs(model string, raw json.RawMessage) (AggregateArgs, error) {
	m, err := d.model(model)
	if err != nil {
		return AggregateArgs{}, err
	}
	doc, err := parseObject(raw)
	if err != nil {
		return AggregateArgs{}, err
	}
	if err := checkKeys(doc, "where", "_count", "_avg", "_sum", "_min", "_max"); err != nil {
		return AggregateArgs{}, err
	}
	var args AggregateArgs
	if w, ok := doc["where"].(map[string]any); ok {
		if args.Where, err = d.where(m, w, false); err != nil {
			return args, err
		}
	}
	args.Aggregates, err = aggregates(doc)
	return args, err
}

// GroupByArgs decodes {"by", "where", "having", "orderBy", "take", "skip", aggregates}.
func (d *Decoder) GroupByArgs(model string, raw json.RawMessage) (GroupByArgs, error) {
	m, err := d.model(model)
	if err != nil {
		return GroupByArgs{}, err
	}
	doc, err := parseObject(raw)
	if err != nil {
		return GroupByArgs{}, err
	}
	if err := checkKeys(doc, "by", "where", "having", "orderBy", "take", "skip", "_count", "_avg", "_sum", "_min", "_max"); err != nil {
		return GroupByArgs{}, err
	}
	var args GroupByArgs
	if args.By, err = stringList(doc["by"], "by"); err != nil {
		return args, err
	}
	if w, ok := doc["where"].(map[string]any); ok {
		if args.Where, err = d.where(m, w, false); err != nil {
			return args, err
		}
	}
	if h, ok := doc["having"].(map[string]any); ok {
		if args.Having, err = d.where(m, h, true); err != nil {
			return args, err
		}
	}
	if args.OrderBy, err = orders(doc["orderBy"], true); err != nil {
		return args, err
	}
	if args.Take, err = asInt64(doc["take"], "take"); err != nil {
		return args, err
	}
	if args.Skip, err = asInt64(doc["skip"], "skip"); err != nil {
		return args, err
	}
	args.Aggregates, err = aggregates(doc)
	return args, err
}

// ExistsArgs decodes {"where": filter}.
func (d *Decoder) ExistsArgs(model string, raw json.RawMessage) (Predicate, error) {
	m, err := d.model(model)
	if err != nil {
		return nil, err
	}
	doc, err := parseObject(raw)
	if err != nil {
		return nil, err
	}
	if err := checkKeys(doc, "where"); err != nil {
		return nil, err
	}
	w, ok := doc["where"].(map[string]any)
	if !ok {
		return nil, nil
	}
	return d.where(m, w, false)
}
