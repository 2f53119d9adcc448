package query

import (
	"fmt"
	"strings"
	"time"

	"eventmarket/internal/apperrors"
	"eventmarket/internal/schema"
)

const rootAlias = "t0"

// Compiler turns grammar values into SQLite statements. Every method validates
// its input against the schema first and reports Validation errors without
// touching the database.
type Compiler struct {
	schema *schema.Schema
}

func NewCompiler(s *schema.Schema) *Compiler {
	return &Compiler{schema: s}
}

func (c *Compiler) Schema() *schema.Schema { return c.schema }

// scope carries per-statement compile state.
type scope struct {
	c       *Compiler
	aliases int
	// groupBy having: bare fields must be grouped, aggregates allowed
	having bool
	by     map[string]bool
}

func (c *Compiler) newScope() *scope { return &scope{c: c} }

func (s *scope) alias() string {
	s.aliases++
	return fmt.Sprintf("t%d", s.aliases)
}

func (c *Compiler) model(name string) (*schema.Model, error) {
	m, ok := c.schema.Model(name)
	if !ok {
		return nil, apperrors.Validation("unknown model %q", name)
	}
	return m, nil
}

func field(m *schema.Model, name string) (schema.Field, error) {
	f, ok := m.Field(name)
	if !ok {
		return schema.Field{}, apperrors.Validation("%s has no field %q", m.Name, name)
	}
	return f, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// Where compiles a predicate over the model aliased as alias. A nil predicate
// matches every row.
func (c *Compiler) Where(m *schema.Model, alias string, p Predicate) (string, []any, error) {
	return c.newScope().pred(m, alias, p)
}

func (s *scope) pred(m *schema.Model, alias string, p Predicate) (string, []any, error) {
	switch n := p.(type) {
	case nil:
		return "1=1", nil, nil
	case AndNode:
		return s.join(m, alias, []Predicate(n), " AND ", "1=1")
	case OrNode:
		return s.join(m, alias, []Predicate(n), " OR ", "1=0")
	case NotNode:
		inner, args, err := s.pred(m, alias, n.P)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + inner + ")", args, nil
	case Cond:
		return s.cond(m, alias, n)
	case RelCond:
		if s.having {
			return "", nil, apperrors.Validation("having cannot filter on relation %q", n.Relation)
		}
		return s.rel(m, alias, n)
	case AggCond:
		if !s.having {
			return "", nil, apperrors.Validation("aggregate filter on %q is only valid in groupBy having", n.Field)
		}
		return s.agg(m, alias, n)
	default:
		return "", nil, apperrors.Validation("unsupported predicate %T", p)
	}
}

func (s *scope) join(m *schema.Model, alias string, ps []Predicate, sep, empty string) (string, []any, error) {
	if len(ps) == 0 {
		return empty, nil, nil
	}
	parts := make([]string, 0, len(ps))
	var args []any
	for _, p := range ps {
		sql, a, err := s.pred(m, alias, p)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		args = append(args, a...)
	}
	return strings.Join(parts, sep), args, nil
}

func (s *scope) cond(m *schema.Model, alias string, c Cond) (string, []any, error) {
	f, err := field(m, c.Field)
	if err != nil {
		return "", nil, err
	}
	if s.having && !s.by[f.Name] {
		return "", nil, apperrors.Validation("having references %q which is not in by", f.Name)
	}
	col := alias + "." + f.Column
	invalid := func() error {
		return apperrors.Validation("operator %s does not apply to %s.%s (%s)", c.Op, m.Name, f.Name, f.Kind)
	}

	fold := c.Mode == ModeInsensitive
	if fold && f.Kind != schema.String {
		return "", nil, apperrors.Validation("insensitive mode requires a string field, %s.%s is %s", m.Name, f.Name, f.Kind)
	}
	lhs, rhs := col, "?"
	if fold {
		lhs, rhs = "LOWER("+col+")", "LOWER(?)"
	}

	if f.Kind == schema.StringList {
		return listCond(m, f, col, c)
	}

	switch c.Op {
	case OpEquals, OpNot:
		v, err := Coerce(m, f, c.Value)
		if err != nil {
			return "", nil, err
		}
		if v == nil {
			if c.Op == OpEquals {
				return col + " IS NULL", nil, nil
			}
			return col + " IS NOT NULL", nil, nil
		}
		op := " = "
		if c.Op == OpNot {
			op = " <> "
		}
		return lhs + op + rhs, []any{v}, nil

	case OpIn, OpNotIn:
		vals, ok := asSlice(c.Value)
		if !ok {
			return "", nil, apperrors.Validation("%s on %s.%s expects a list", c.Op, m.Name, f.Name)
		}
		if len(vals) == 0 {
			if c.Op == OpIn {
				return "1=0", nil, nil
			}
			return "1=1", nil, nil
		}
		args := make([]any, 0, len(vals))
		for _, raw := range vals {
			v, err := Coerce(m, f, raw)
			if err != nil {
				return "", nil, err
			}
			if v == nil {
				return "", nil, apperrors.Validation("%s on %s.%s cannot contain null", c.Op, m.Name, f.Name)
			}
			args = append(args, v)
		}
		list := placeholders(len(args))
		if fold {
			list = strings.TrimSuffix(strings.Repeat("LOWER(?), ", len(args)), ", ")
		}
		op := " IN "
		if c.Op == OpNotIn {
			op = " NOT IN "
		}
		return lhs + op + "(" + list + ")", args, nil

	case OpLt, OpLte, OpGt, OpGte:
		if !f.Kind.Ordered() {
			return "", nil, invalid()
		}
		v, err := Coerce(m, f, c.Value)
		if err != nil {
			return "", nil, err
		}
		if v == nil {
			return "", nil, apperrors.Validation("%s on %s.%s needs a value", c.Op, m.Name, f.Name)
		}
		return lhs + " " + comparison(c.Op) + " " + rhs, []any{v}, nil

	case OpContains, OpStartsWith, OpEndsWith:
		if f.Kind != schema.String {
			return "", nil, invalid()
		}
		v, ok := asString(deref(c.Value))
		if !ok {
			return "", nil, apperrors.Validation("%s on %s.%s expects a string", c.Op, m.Name, f.Name)
		}
		switch c.Op {
		case OpContains:
			return "instr(" + lhs + ", " + rhs + ") > 0", []any{v}, nil
		case OpStartsWith:
			return "substr(" + lhs + ", 1, length(?)) = " + rhs, []any{v, v}, nil
		default:
			if v == "" {
				return col + " IS NOT NULL", nil, nil
			}
			return "substr(" + lhs + ", -length(?)) = " + rhs, []any{v, v}, nil
		}

	case OpIsSet:
		set, ok := deref(c.Value).(bool)
		if !ok {
			return "", nil, apperrors.Validation("isSet on %s.%s expects a boolean", m.Name, f.Name)
		}
		if set {
			return col + " IS NOT NULL", nil, nil
		}
		return col + " IS NULL", nil, nil
	}
	return "", nil, invalid()
}

func listCond(m *schema.Model, f schema.Field, col string, c Cond) (string, []any, error) {
	elems := func() ([]any, error) {
		vals, ok := asSlice(c.Value)
		if !ok {
			return nil, apperrors.Validation("%s on %s.%s expects a list", c.Op, m.Name, f.Name)
		}
		out := make([]any, 0, len(vals))
		for _, raw := range vals {
			s, err := coerceElem(m, f, raw)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	}
	has := func(n int) string {
		if n == 1 {
			return "EXISTS (SELECT 1 FROM json_each(" + col + ") WHERE value = ?)"
		}
		return "EXISTS (SELECT 1 FROM json_each(" + col + ") WHERE value IN (" + placeholders(n) + "))"
	}

	switch c.Op {
	case OpEquals, OpNot:
		v, err := Coerce(m, f, c.Value)
		if err != nil {
			return "", nil, err
		}
		if v == nil {
			return "", nil, apperrors.Validation("%s.%s is never null", m.Name, f.Name)
		}
		if c.Op == OpEquals {
			return col + " = ?", []any{v}, nil
		}
		return col + " <> ?", []any{v}, nil
	case OpHas:
		s, err := coerceElem(m, f, c.Value)
		if err != nil {
			return "", nil, err
		}
		return has(1), []any{s}, nil
	case OpHasEvery:
		vals, err := elems()
		if err != nil {
			return "", nil, err
		}
		if len(vals) == 0 {
			return "1=1", nil, nil
		}
		parts := make([]string, len(vals))
		for i := range vals {
			parts[i] = has(1)
		}
		return strings.Join(parts, " AND "), vals, nil
	case OpHasSome:
		vals, err := elems()
		if err != nil {
			return "", nil, err
		}
		if len(vals) == 0 {
			return "1=0", nil, nil
		}
		return has(len(vals)), vals, nil
	case OpIsEmpty:
		empty, ok := deref(c.Value).(bool)
		if !ok {
			return "", nil, apperrors.Validation("isEmpty on %s.%s expects a boolean", m.Name, f.Name)
		}
		if empty {
			return "json_array_length(" + col + ") = 0", nil, nil
		}
		return "json_array_length(" + col + ") > 0", nil, nil
	}
	return "", nil, apperrors.Validation("operator %s does not apply to list field %s.%s", c.Op, m.Name, f.Name)
}

func comparison(op Op) string {
	switch op {
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	case OpGt:
		return ">"
	default:
		return ">="
	}
}

func (s *scope) rel(m *schema.Model, alias string, r RelCond) (string, []any, error) {
	rel, ok := m.Relation(r.Relation)
	if !ok {
		return "", nil, apperrors.Validation("%s has no relation %q", m.Name, r.Relation)
	}
	switch r.Quant {
	case QIs, QIsNot:
		if rel.Many {
			return "", nil, apperrors.Validation("%s.%s is a list relation; use some, every or none", m.Name, rel.Name)
		}
	case QSome, QEvery, QNone:
		if !rel.Many {
			return "", nil, apperrors.Validation("%s.%s is a single relation; use is or isNot", m.Name, rel.Name)
		}
	default:
		return "", nil, apperrors.Validation("unknown relation quantifier %q", r.Quant)
	}

	target, err := s.c.model(rel.Target)
	if err != nil {
		return "", nil, err
	}
	ta := s.alias()
	join := fmt.Sprintf("%s.%s = %s.%s", ta, target.Column(rel.TargetField), alias, m.Column(rel.LocalField))
	exists := func(extra string) string {
		return fmt.Sprintf("EXISTS (SELECT 1 FROM %s %s WHERE %s%s)", target.Table, ta, join, extra)
	}

	if r.Where == nil {
		switch r.Quant {
		case QIs:
			return "NOT " + exists(""), nil, nil
		case QIsNot, QSome:
			return exists(""), nil, nil
		case QNone:
			return "NOT " + exists(""), nil, nil
		default:
			return "1=1", nil, nil
		}
	}

	inner, args, err := s.pred(target, ta, r.Where)
	if err != nil {
		return "", nil, err
	}
	switch r.Quant {
	case QIs, QSome:
		return exists(" AND (" + inner + ")"), args, nil
	case QIsNot, QNone:
		return "NOT " + exists(" AND ("+inner+")"), args, nil
	default:
		// IS NOT 1 keeps related rows whose condition is NULL as counter-examples.
		return "NOT " + exists(" AND ("+inner+") IS NOT 1"), args, nil
	}
}

func (s *scope) agg(m *schema.Model, alias string, a AggCond) (string, []any, error) {
	expr, f, err := aggExpr(m, alias, a.Func, a.Field)
	if err != nil {
		return "", nil, err
	}

	coerce := func(raw any) (any, error) {
		switch a.Func {
		case AggCount:
			n, ok := asInt(deref(raw))
			if !ok {
				return nil, apperrors.Validation("_count filter expects an integer")
			}
			return n, nil
		case AggAvg:
			n, ok := asFloat(deref(raw))
			if !ok {
				return nil, apperrors.Validation("_avg filter expects a number")
			}
			return n, nil
		default:
			return Coerce(m, f, raw)
		}
	}

	switch a.Op {
	case OpEquals, OpNot, OpLt, OpLte, OpGt, OpGte:
		v, err := coerce(a.Value)
		if err != nil {
			return "", nil, err
		}
		if v == nil {
			if a.Op == OpNot {
				return expr + " IS NOT NULL", nil, nil
			}
			if a.Op == OpEquals {
				return expr + " IS NULL", nil, nil
			}
			return "", nil, apperrors.Validation("%s on %s(%s) needs a value", a.Op, a.Func, a.Field)
		}
		op := "="
		switch a.Op {
		case OpNot:
			op = "<>"
		case OpLt, OpLte, OpGt, OpGte:
			op = comparison(a.Op)
		}
		return expr + " " + op + " ?", []any{v}, nil
	case OpIn, OpNotIn:
		vals, ok := asSlice(a.Value)
		if !ok {
			return "", nil, apperrors.Validation("%s on %s(%s) expects a list", a.Op, a.Func, a.Field)
		}
		if len(vals) == 0 {
			if a.Op == OpIn {
				return "1=0", nil, nil
			}
			return "1=1", nil, nil
		}
		args := make([]any, 0, len(vals))
		for _, raw := range vals {
			v, err := coerce(raw)
			if err != nil {
				return "", nil, err
			}
			args = append(args, v)
		}
		op := " IN "
		if a.Op == OpNotIn {
			op = " NOT IN "
		}
		return expr + op + "(" + placeholders(len(args)) + ")", args, nil
	}
	return "", nil, apperrors.Validation("operator %s does not apply to aggregates", a.Op)
}

// aggExpr renders an aggregate over a field. "_all" counts rows.
func aggExpr(m *schema.Model, alias string, fn AggFunc, name string) (string, schema.Field, error) {
	if fn == AggCount && name == "_all" {
		return "COUNT(*)", schema.Field{Name: "_all", Kind: schema.Int}, nil
	}
	f, err := field(m, name)
	if err != nil {
		return "", schema.Field{}, err
	}
	col := alias + "." + f.Column
	switch fn {
	case AggCount:
		return "COUNT(" + col + ")", f, nil
	case AggAvg, AggSum:
		if !f.Kind.Numeric() {
			return "", schema.Field{}, apperrors.Validation("%s needs a numeric field, %s.%s is %s", fn, m.Name, f.Name, f.Kind)
		}
		if fn == AggAvg {
			return "AVG(" + col + ")", f, nil
		}
		return "SUM(" + col + ")", f, nil
	case AggMin, AggMax:
		if !f.Kind.Ordered() {
			return "", schema.Field{}, apperrors.Validation("%s needs an ordered field, %s.%s is %s", fn, m.Name, f.Name, f.Kind)
		}
		if fn == AggMin {
			return "MIN(" + col + ")", f, nil
		}
		return "MAX(" + col + ")", f, nil
	}
	return "", schema.Field{}, apperrors.Validation("unknown aggregate %q", fn)
}

// UniqueWhere compiles a unique selector. Its fields must form exactly one
// declared unique key and none may be null.
func (c *Compiler) UniqueWhere(m *schema.Model, alias string, u Unique) (string, []any, error) {
	if len(u) == 0 {
		return "", nil, apperrors.Validation("%s: unique selector is empty", m.Name)
	}
	names := sortedKeys(u)
	if _, ok := m.UniqueKey(names); !ok {
		return "", nil, apperrors.Validation("%s: %v is not a unique key", m.Name, names)
	}
	parts := make([]string, 0, len(names))
	args := make([]any, 0, len(names))
	for _, name := range names {
		f, err := field(m, name)
		if err != nil {
			return "", nil, err
		}
		v, err := Coerce(m, f, u[name])
		if err != nil {
			return "", nil, err
		}
		if v == nil {
			return "", nil, apperrors.Validation("%s: unique selector %s cannot be null", m.Name, name)
		}
		parts = append(parts, alias+"."+f.Column+" = ?")
		args = append(args, v)
	}
	return strings.Join(parts, " AND "), args, nil
}

func columns(m *schema.Model, alias string, fields []string) string {
	cols := make([]string, len(fields))
	for i, name := range fields {
		cols[i] = alias + "." + m.Column(name)
	}
	return strings.Join(cols, ", ")
}

// FindPlan is a compiled findMany. When Paged is false the statement returns
// every match and the caller applies distinct, skip and take. Backward plans
// read in reversed order; the caller restores the requested order.
type FindPlan struct {
	SQL      string
	Args     []any
	Fields   []string
	Backward bool
	Paged    bool
	Skip     int
	Take     int
}

// Find compiles a findMany reading fields.
func (c *Compiler) Find(m *schema.Model, args FindArgs, fields []string) (FindPlan, error) {
	for _, name := range args.Distinct {
		if _, err := field(m, name); err != nil {
			return FindPlan{}, err
		}
	}
	if args.Skip < 0 {
		return FindPlan{}, apperrors.Validation("skip must not be negative")
	}

	orders, err := findOrders(m, args.OrderBy)
	if err != nil {
		return FindPlan{}, err
	}
	backward := args.Take < 0
	if backward {
		for i := range orders {
			orders[i].Desc = !orders[i].Desc
		}
	}

	s := c.newScope()
	where, whereArgs, err := s.pred(m, rootAlias, args.Where)
	if err != nil {
		return FindPlan{}, err
	}
	if args.Cursor != nil {
		cur, curArgs, err := c.cursor(m, orders, args.Cursor)
		if err != nil {
			return FindPlan{}, err
		}
		where = "(" + where + ") AND (" + cur + ")"
		whereArgs = append(whereArgs, curArgs...)
	}

	take := args.Take
	if take < 0 {
		take = -take
	}
	plan := FindPlan{
		Fields:   fields,
		Backward: backward,
		Paged:    len(args.Distinct) == 0,
		Skip:     args.Skip,
		Take:     take,
		Args:     whereArgs,
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s %s WHERE %s ORDER BY %s",
		columns(m, rootAlias, fields), m.Table, rootAlias, where, orderClause(m, rootAlias, orders))
	if plan.Paged && (take > 0 || args.Skip > 0) {
		limit := take
		if limit == 0 {
			limit = -1
		}
		b.WriteString(" LIMIT ? OFFSET ?")
		plan.Args = append(plan.Args, limit, args.Skip)
	}
	plan.SQL = b.String()
	return plan, nil
}

// findOrders validates ordering and appends id so pages are deterministic.
func findOrders(m *schema.Model, in []Order) ([]Order, error) {
	out := make([]Order, 0, len(in)+1)
	hasID := false
	for _, o := range in {
		if o.Agg != "" {
			return nil, apperrors.Validation("ordering by %s is only valid in groupBy", o.Agg)
		}
		f, err := field(m, o.Field)
		if err != nil {
			return nil, err
		}
		if f.Kind == schema.StringList {
			return nil, apperrors.Validation("cannot order by list field %s.%s", m.Name, f.Name)
		}
		if f.Name == "id" {
			hasID = true
		}
		out = append(out, o)
	}
	if !hasID {
		out = append(out, Asc("id"))
	}
	return out, nil
}

func orderClause(m *schema.Model, alias string, orders []Order) string {
	parts := make([]string, len(orders))
	for i, o := range orders {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts[i] = alias + "." + m.Column(o.Field) + " " + dir
	}
	return strings.Join(parts, ", ")
}

// cursor matches rows at or after the cursor row in the given order. A missing
// cursor row yields NULL comparisons and so no rows.
func (c *Compiler) cursor(m *schema.Model, orders []Order, u Unique) (string, []any, error) {
	uniq, uniqArgs, err := c.UniqueWhere(m, "cur", u)
	if err != nil {
		return "", nil, err
	}
	for _, o := range orders {
		if f, _ := m.Field(o.Field); f.Nullable {
			return "", nil, apperrors.Validation("cannot page with a cursor over nullable field %s.%s", m.Name, f.Name)
		}
	}

	value := func(o Order) (string, []any) {
		return fmt.Sprintf("(SELECT cur.%s FROM %s cur WHERE %s)", m.Column(o.Field), m.Table, uniq), uniqArgs
	}

	var branches []string
	var args []any
	for i := range orders {
		var parts []string
		for j := 0; j < i; j++ {
			sub, a := value(orders[j])
			parts = append(parts, rootAlias+"."+m.Column(orders[j].Field)+" = "+sub)
			args = append(args, a...)
		}
		op := " > "
		if orders[i].Desc {
			op = " < "
		}
		sub, a := value(orders[i])
		parts = append(parts, rootAlias+"."+m.Column(orders[i].Field)+op+sub)
		args = append(args, a...)
		branches = append(branches, "("+strings.Join(parts, " AND ")+")")
	}

	// the cursor row itself
	var eq []string
	for _, o := range orders {
		sub, a := value(o)
		eq = append(eq, rootAlias+"."+m.Column(o.Field)+" = "+sub)
		args = append(args, a...)
	}
	branches = append(branches, "("+strings.Join(eq, " AND ")+")")
	return strings.Join(branches, " OR "), args, nil
}

// Count compiles a row count plus per-field non-null counts.
func (c *Compiler) Count(m *schema.Model, args CountArgs) (string, []any, error) {
	exprs := []string{"COUNT(*)"}
	for _, name := range args.Fields {
		f, err := field(m, name)
		if err != nil {
			return "", nil, err
		}
		exprs = append(exprs, "COUNT("+rootAlias+"."+f.Column+")")
	}
	where, whereArgs, err := c.Where(m, rootAlias, args.Where)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT %s FROM %s %s WHERE %s", strings.Join(exprs, ", "), m.Table, rootAlias, where), whereArgs, nil
}

// AggregateColumn names one output of an aggregate statement.
type AggregateColumn struct {
	Func  AggFunc
	Field schema.Field
}

func aggregateColumns(m *schema.Model, alias string, a Aggregates) ([]string, []AggregateColumn, error) {
	var exprs []string
	var cols []AggregateColumn
	add := func(fn AggFunc, names []string) error {
		for _, name := range names {
			expr, f, err := aggExpr(m, alias, fn, name)
			if err != nil {
				return err
			}
			exprs = append(exprs, expr)
			cols = append(cols, AggregateColumn{Func: fn, Field: f})
		}
		return nil
	}
	for _, step := range []struct {
		fn    AggFunc
		names []string
	}{{AggCount, a.Count}, {AggAvg, a.Avg}, {AggSum, a.Sum}, {AggMin, a.Min}, {AggMax, a.Max}} {
		if err := add(step.fn, step.names); err != nil {
			return nil, nil, err
		}
	}
	return exprs, cols, nil
}

// Aggregate compiles min/max/avg/sum/count over the matching rows.
func (c *Compiler) Aggregate(m *schema.Model, args AggregateArgs) (string, []any, []AggregateColumn, error) {
	if args.Aggregates.empty() {
		return "", nil, nil, apperrors.Validation("%s.aggregate: no aggregate requested", m.Name)
	}
	exprs, cols, err := aggregateColumns(m, rootAlias, args.Aggregates)
	if err != nil {
		return "", nil, nil, err
	}
	where, whereArgs, err := c.Where(m, rootAlias, args.Where)
	if err != nil {
		return "", nil, nil, err
	}
	sql := fmt.Sprintf("SELECT %s FROM %s %s WHERE %s", strings.Join(exprs, ", "), m.Table, rootAlias, where)
	return sql, whereArgs, cols, nil
}

// ValidateGroupBy rejects a groupBy whose orderBy or having references a bare
// field missing from by. It runs before any statement is built.
func ValidateGroupBy(m *schema.Model, args GroupByArgs) error {
	if len(args.By) == 0 {
		return apperrors.Validation("%s.groupBy: by must name at least one field", m.Name)
	}
	by := make(map[string]bool, len(args.By))
	for _, name := range args.By {
		f, err := field(m, name)
		if err != nil {
			return err
		}
		if f.Kind == schema.StringList {
			return apperrors.Validation("%s.groupBy: cannot group by list field %s", m.Name, name)
		}
		by[name] = true
	}
	for _, o := range args.OrderBy {
		if o.Agg == "" && !by[o.Field] {
			return apperrors.Validation("%s.groupBy: orderBy field %q must appear in by", m.Name, o.Field)
		}
	}
	if (args.Take != 0 || args.Skip != 0) && len(args.OrderBy) == 0 {
		return apperrors.Validation("%s.groupBy: take and skip require orderBy", m.Name)
	}
	if args.Take < 0 || args.Skip < 0 {
		return apperrors.Validation("%s.groupBy: take and skip must not be negative", m.Name)
	}
	return havingFields(m, args.Having, by)
}

func havingFields(m *schema.Model, p Predicate, by map[string]bool) error {
	switch n := p.(type) {
	case nil:
		return nil
	case AndNode:
		for _, c := range n {
			if err := havingFields(m, c, by); err != nil {
				return err
			}
		}
	case OrNode:
		for _, c := range n {
			if err := havingFields(m, c, by); err != nil {
				return err
			}
		}
	case NotNode:
		return havingFields(m, n.P, by)
	case Cond:
		if !by[n.Field] {
			return apperrors.Validation("%s.groupBy: having field %q must appear in by", m.Name, n.Field)
		}
	case RelCond:
		return apperrors.Validation("%s.groupBy: having cannot filter on relation %q", m.Name, n.Relation)
	}
	return nil
}

// GroupBy compiles a grouped aggregate. Result columns are the by fields in
// order followed by the aggregate columns.
func (c *Compiler) GroupBy(m *schema.Model, args GroupByArgs) (string, []any, []AggregateColumn, error) {
	if err := ValidateGroupBy(m, args); err != nil {
		return "", nil, nil, err
	}

	keys := make([]string, len(args.By))
	for i, name := range args.By {
		keys[i] = rootAlias + "." + m.Column(name)
	}
	exprs, cols, err := aggregateColumns(m, rootAlias, args.Aggregates)
	if err != nil {
		return "", nil, nil, err
	}

	where, sqlArgs, err := c.Where(m, rootAlias, args.Where)
	if err != nil {
		return "", nil, nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s %s WHERE %s GROUP BY %s",
		strings.Join(append(append([]string{}, keys...), exprs...), ", "), m.Table, rootAlias, where, strings.Join(keys, ", "))

	if args.Having != nil {
		s := c.newScope()
		s.having = true
		s.by = make(map[string]bool, len(args.By))
		for _, name := range args.By {
			s.by[name] = true
		}
		having, havingArgs, err := s.pred(m, rootAlias, args.Having)
		if err != nil {
			return "", nil, nil, err
		}
		b.WriteString(" HAVING " + having)
		sqlArgs = append(sqlArgs, havingArgs...)
	}

	if len(args.OrderBy) > 0 {
		parts := make([]string, 0, len(args.OrderBy))
		for _, o := range args.OrderBy {
			expr := ""
			if o.Agg == "" {
				expr = rootAlias + "." + m.Column(o.Field)
			} else {
				expr, _, err = aggExpr(m, rootAlias, o.Agg, o.Field)
				if err != nil {
					return "", nil, nil, err
				}
			}
			dir := " ASC"
			if o.Desc {
				dir = " DESC"
			}
			parts = append(parts, expr+dir)
		}
		b.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}
	if args.Take > 0 || args.Skip > 0 {
		limit := args.Take
		if limit == 0 {
			limit = -1
		}
		b.WriteString(" LIMIT ? OFFSET ?")
		sqlArgs = append(sqlArgs, limit, args.Skip)
	}
	return b.String(), sqlArgs, cols, nil
}

// Insert compiles an insert of normalized values.
func (c *Compiler) Insert(m *schema.Model, values map[string]any, orIgnore bool) (string, []any) {
	cols := make([]string, 0, len(values))
	args := make([]any, 0, len(values))
	for _, f := range m.Fields {
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		cols = append(cols, f.Column)
		args = append(args, v)
	}
	verb := "INSERT"
	if orIgnore {
		verb = "INSERT OR IGNORE"
	}
	return fmt.Sprintf("%s INTO %s (%s) VALUES (%s)", verb, m.Table, strings.Join(cols, ", "), placeholders(len(cols))), args
}

// Assignments compiles the SET list of an update, stamping updatedAt.
func (c *Compiler) Assignments(m *schema.Model, upd Update, now time.Time) (string, []any, error) {
	seen := make(map[string]bool, len(upd))
	sets := make(map[string]any)
	parts := make([]string, 0, len(upd)+1)
	var args []any

	for _, u := range upd {
		f, err := field(m, u.Field)
		if err != nil {
			return "", nil, err
		}
		if f.Managed {
			return "", nil, apperrors.Validation("%s.%s cannot be updated", m.Name, f.Name)
		}
		if seen[f.Name] {
			return "", nil, apperrors.Validation("%s.%s updated twice", m.Name, f.Name)
		}
		seen[f.Name] = true

		switch u.Op {
		case UpdSet, "":
			v, err := Coerce(m, f, u.Value)
			if err != nil {
				return "", nil, err
			}
			if v == nil && !f.Nullable {
				return "", nil, apperrors.Validation("%s.%s must not be null", m.Name, f.Name)
			}
			sets[f.Name] = v
			parts = append(parts, f.Column+" = ?")
			args = append(args, v)

		case UpdIncrement, UpdDecrement, UpdMultiply, UpdDivide:
			if !f.Kind.Numeric() {
				return "", nil, apperrors.Validation("%s needs a numeric field, %s.%s is %s", u.Op, m.Name, f.Name, f.Kind)
			}
			v, err := Coerce(m, f, u.Value)
			if err != nil {
				return "", nil, err
			}
			if v == nil {
				return "", nil, apperrors.Validation("%s on %s.%s needs a value", u.Op, m.Name, f.Name)
			}
			if u.Op == UpdDivide {
				if n, _ := asFloat(v); n == 0 {
					return "", nil, apperrors.Validation("%s.%s: division by zero", m.Name, f.Name)
				}
			}
			op := map[UpdateOp]string{UpdIncrement: "+", UpdDecrement: "-", UpdMultiply: "*", UpdDivide: "/"}[u.Op]
			parts = append(parts, fmt.Sprintf("%s = %s %s ?", f.Column, f.Column, op))
			args = append(args, v)

		case UpdPush:
			if f.Kind != schema.StringList {
				return "", nil, apperrors.Validation("push needs a list field, %s.%s is %s", m.Name, f.Name, f.Kind)
			}
			vals, ok := asSlice(u.Value)
			if !ok {
				s, err := coerceElem(m, f, u.Value)
				if err != nil {
					return "", nil, err
				}
				vals = []any{s}
			}
			if len(vals) == 0 {
				continue
			}
			expr := "COALESCE(" + f.Column + ", '[]')"
			for _, raw := range vals {
				s, err := coerceElem(m, f, raw)
				if err != nil {
					return "", nil, err
				}
				expr = "json_insert(" + expr + ", '$[#]', ?)"
				args = append(args, s)
			}
			parts = append(parts, f.Column+" = "+expr)

		default:
			return "", nil, apperrors.Validation("unknown update operator %q", u.Op)
		}
	}

	if err := checkExclusive(m, sets); err != nil {
		return "", nil, err
	}

	parts = append(parts, m.Column("updatedAt")+" = ?")
	args = append(args, now.UTC())
	return strings.Join(parts, ", "), args, nil
}
