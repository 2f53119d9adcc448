package query

import (
	"encoding/json"
)

// Order sorts by a field, or by an aggregate of a field in groupBy.
type Order struct {
	Field string
	Desc  bool
	Agg   AggFunc
}

func Asc(field string) Order  { return Order{Field: field} }
func Desc(field string) Order { return Order{Field: field, Desc: true} }

// ByAggregate orders groupBy rows by an aggregate output.
func ByAggregate(fn AggFunc, field string, desc bool) Order {
	return Order{Field: field, Desc: desc, Agg: fn}
}

// Unique selects a row by one declared unique key: every field of the key and
// nothing else.
type Unique map[string]any

// ID is the unique selector for a primary key.
func ID(id string) Unique { return Unique{"id": id} }

// Data holds field values for create, keyed by field name.
type Data map[string]any

// FindArgs shape findFirst and findMany. Take is unbounded when zero and pages
// backwards from the cursor when negative. Select, Include and Omit project the
// result; Select and Include are mutually exclusive.
type FindArgs struct {
	Where    Predicate
	OrderBy  []Order
	Cursor   Unique
	Take     int
	Skip     int
	Distinct []string
	Select   []string
	Include  []string
	Omit     []string
}

// Projection is the select/include/omit subset shared by single-row operations.
type Projection struct {
	Select  []string
	Include []string
	Omit    []string
}

func (a FindArgs) Projection() Projection {
	return Projection{Select: a.Select, Include: a.Include, Omit: a.Omit}
}

type CreateManyArgs struct {
	Data           []Data
	SkipDuplicates bool
}

type DeleteManyArgs struct {
	Where Predicate
	Limit int
}

type CountArgs struct {
	Where Predicate
	// Fields adds per-field non-null counts next to the total.
	Fields []string
}

type CountResult struct {
	All    int64
	Fields map[string]int64
}

// MarshalJSON flattens per-field counts next to _all.
func (r CountResult) MarshalJSON() ([]byte, error) {
	out := make(map[string]int64, len(r.Fields)+1)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["_all"] = r.All
	return json.Marshal(out)
}

// Aggregates names the fields each aggregate function applies to. Count
// accepts "_all" for the row count.
type Aggregates struct {
	Count []string
	Avg   []string
	Sum   []string
	Min   []string
	Max   []string
}

func (a Aggregates) empty() bool {
	return len(a.Count)+len(a.Avg)+len(a.Sum)+len(a.Min)+len(a.Max) == 0
}

type AggregateArgs struct {
	Where Predicate
	Aggregates
}

type AggregateResult struct {
	Count map[string]int64 `json:"_count,omitempty"`
	Avg   map[string]any   `json:"_avg,omitempty"`
	Sum   map[string]any   `json:"_sum,omitempty"`
	Min   map[string]any   `json:"_min,omitempty"`
	Max   map[string]any   `json:"_max,omitempty"`
}

// GroupByArgs buckets rows by By. Having filters buckets and may only reference
// aggregates or fields of By; the same holds for OrderBy.
type GroupByArgs struct {
	By      []string
	Where   Predicate
	Having  Predicate
	OrderBy []Order
	Take    int
	Skip    int
	Aggregates
}

type GroupRow struct {
	Keys map[string]any
	AggregateResult
}

// MarshalJSON renders the group keys inline with the aggregate outputs.
func (g GroupRow) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(g.Keys)+5)
	for k, v := range g.Keys {
		out[k] = v
	}
	if g.Count != nil {
		out[string(AggCount)] = g.Count
	}
	if g.Avg != nil {
		out[string(AggAvg)] = g.Avg
	}
	if g.Sum != nil {
		out[string(AggSum)] = g.Sum
	}
	if g.Min != nil {
		out[string(AggMin)] = g.Min
	}
	if g.Max != nil {
		out[string(AggMax)] = g.Max
	}
	return json.Marshal(out)
}

// BatchResult is returned by every bulk mutation.
type BatchResult struct {
	Count int64 `json:"count"`
}
