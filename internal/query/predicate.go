// Package query is the filter and argument grammar shared by every data client
// operation, plus its compilation to SQLite statements.
package query

// Predicate is a node of a filter tree. The set of node types is closed:
// Cond, AndNode, OrNode, NotNode, RelCond and AggCond.
type Predicate interface {
	predicate()
}

type Op string

const (
	OpEquals     Op = "equals"
	OpNot        Op = "not"
	OpIn         Op = "in"
	OpNotIn      Op = "notIn"
	OpLt         Op = "lt"
	OpLte        Op = "lte"
	OpGt         Op = "gt"
	OpGte        Op = "gte"
	OpContains   Op = "contains"
	OpStartsWith Op = "startsWith"
	OpEndsWith   Op = "endsWith"
	OpIsSet      Op = "isSet"
	OpHas        Op = "has"
	OpHasEvery   Op = "hasEvery"
	OpHasSome    Op = "hasSome"
	OpIsEmpty    Op = "isEmpty"
)

type Mode int

const (
	ModeDefault Mode = iota
	ModeInsensitive
)

// Cond compares one scalar field.
type Cond struct {
	Field string
	Op    Op
	Value any
	Mode  Mode
}

// AndNode matches when every child matches; empty matches every row.
type AndNode []Predicate

// OrNode matches when any child matches; empty matches no row.
type OrNode []Predicate

type NotNode struct {
	P Predicate
}

type Quantifier string

const (
	QIs    Quantifier = "is"
	QIsNot Quantifier = "isNot"
	QSome  Quantifier = "some"
	QEvery Quantifier = "every"
	QNone  Quantifier = "none"
)

// RelCond filters on a related model. A nil Where with QIs means the relation
// is absent, with QIsNot that it is present.
type RelCond struct {
	Relation string
	Quant    Quantifier
	Where    Predicate
}

type AggFunc string

const (
	AggCount AggFunc = "_count"
	AggAvg   AggFunc = "_avg"
	AggSum   AggFunc = "_sum"
	AggMin   AggFunc = "_min"
	AggMax   AggFunc = "_max"
)

// AggCond compares an aggregate of a field. Only valid in groupBy having.
type AggCond struct {
	Func  AggFunc
	Field string
	Op    Op
	Value any
}

func (Cond) predicate()    {}
func (AndNode) predicate() {}
func (OrNode) predicate()  {}
func (NotNode) predicate() {}
func (RelCond) predicate() {}
func (AggCond) predicate() {}

func And(ps ...Predicate) Predicate { return AndNode(ps) }
func Or(ps ...Predicate) Predicate  { return OrNode(ps) }
func Not(p Predicate) Predicate     { return NotNode{P: p} }

func Equals(field string, v any) Cond { return Cond{Field: field, Op: OpEquals, Value: v} }
func NotEq(field string, v any) Cond  { return Cond{Field: field, Op: OpNot, Value: v} }
func Lt(field string, v any) Cond     { return Cond{Field: field, Op: OpLt, Value: v} }
func Lte(field string, v any) Cond    { return Cond{Field: field, Op: OpLte, Value: v} }
func Gt(field string, v any) Cond     { return Cond{Field: field, Op: OpGt, Value: v} }
func Gte(field string, v any) Cond    { return Cond{Field: field, Op: OpGte, Value: v} }

func In(field string, vs ...any) Cond    { return Cond{Field: field, Op: OpIn, Value: vs} }
func NotIn(field string, vs ...any) Cond { return Cond{Field: field, Op: OpNotIn, Value: vs} }

func Contains(field, s string) Cond   { return Cond{Field: field, Op: OpContains, Value: s} }
func StartsWith(field, s string) Cond { return Cond{Field: field, Op: OpStartsWith, Value: s} }
func EndsWith(field, s string) Cond   { return Cond{Field: field, Op: OpEndsWith, Value: s} }

// Insensitive switches a string comparison to case-insensitive mode.
func (c Cond) Insensitive() Cond {
	c.Mode = ModeInsensitive
	return c
}

func IsSet(field string, set bool) Cond { return Cond{Field: field, Op: OpIsSet, Value: set} }

func Has(field, v string) Cond { return Cond{Field: field, Op: OpHas, Value: v} }

func HasEvery(field string, vs ...string) Cond {
	return Cond{Field: field, Op: OpHasEvery, Value: vs}
}

func HasSome(field string, vs ...string) Cond {
	return Cond{Field: field, Op: OpHasSome, Value: vs}
}

func IsEmpty(field string, empty bool) Cond {
	return Cond{Field: field, Op: OpIsEmpty, Value: empty}
}

func Is(relation string, where Predicate) RelCond {
	return RelCond{Relation: relation, Quant: QIs, Where: where}
}

func IsNot(relation string, where Predicate) RelCond {
	return RelCond{Relation: relation, Quant: QIsNot, Where: where}
}

func Some(relation string, where Predicate) RelCond {
	return RelCond{Relation: relation, Quant: QSome, Where: where}
}

func Every(relation string, where Predicate) RelCond {
	return RelCond{Relation: relation, Quant: QEvery, Where: where}
}

func None(relation string, where Predicate) RelCond {
	return RelCond{Relation: relation, Quant: QNone, Where: where}
}

func Having(fn AggFunc, field string, op Op, v any) AggCond {
	return AggCond{Func: fn, Field: field, Op: op, Value: v}
}
