package client

import (
	"time"

	"eventmarket/internal/query"
	"eventmarket/internal/schema"

	"github.com/mattn/go-sqlite3"
)

// aggregateResult files raw aggregate outputs under their function and field.
func aggregateResult(cols []query.AggregateColumn, raw []any) query.AggregateResult {
	var out query.AggregateResult
	for i, col := range cols {
		v := raw[i]
		switch col.Func {
		case query.AggCount:
			if out.Count == nil {
				out.Count = make(map[string]int64)
			}
			n, _ := v.(int64)
			out.Count[col.Field.Name] = n
		case query.AggAvg:
			if out.Avg == nil {
				out.Avg = make(map[string]any)
			}
			out.Avg[col.Field.Name] = toFloat(v)
		case query.AggSum:
			if out.Sum == nil {
				out.Sum = make(map[string]any)
			}
			out.Sum[col.Field.Name] = normalize(col.Field, v)
		case query.AggMin:
			if out.Min == nil {
				out.Min = make(map[string]any)
			}
			out.Min[col.Field.Name] = normalize(col.Field, v)
		case query.AggMax:
			if out.Max == nil {
				out.Max = make(map[string]any)
			}
			out.Max[col.Field.Name] = normalize(col.Field, v)
		}
	}
	return out
}

func toFloat(v any) any {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return nil
}

// normalize converts a value read without column type information back to
// the field's Go representation.
func normalize(f schema.Field, v any) any {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if v == nil {
		return nil
	}
	switch f.Kind {
	case schema.Int:
		switch n := v.(type) {
		case float64:
			return int64(n)
		case int64:
			return n
		}
	case schema.Float:
		return toFloat(v)
	case schema.Bool:
		switch b := v.(type) {
		case int64:
			return b != 0
		case bool:
			return b
		}
	case schema.DateTime:
		switch t := v.(type) {
		case time.Time:
			return t.UTC()
		case string:
			for _, layout := range sqlite3.SQLiteTimestampFormats {
				if parsed, err := time.ParseInLocation(layout, t, time.UTC); err == nil {
					return parsed.UTC()
				}
			}
			return t
		}
	}
	return v
}
