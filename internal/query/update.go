package query

type UpdateOp string

const (
	UpdSet       UpdateOp = "set"
	UpdIncrement UpdateOp = "increment"
	UpdDecrement UpdateOp = "decrement"
	UpdMultiply  UpdateOp = "multiply"
	UpdDivide    UpdateOp = "divide"
	UpdPush      UpdateOp = "push"
)

// FieldUpdate changes one field. Arithmetic operators combine the stored value
// with Value in the same statement.
type FieldUpdate struct {
	Field string
	Op    UpdateOp
	Value any
}

// Update is an ordered list of field changes; a field may appear once.
type Update []FieldUpdate

func Set(field string, v any) FieldUpdate { return FieldUpdate{Field: field, Op: UpdSet, Value: v} }

// Unset clears a nullable field.
func Unset(field string) FieldUpdate { return FieldUpdate{Field: field, Op: UpdSet} }

func Increment(field string, n any) FieldUpdate {
	return FieldUpdate{Field: field, Op: UpdIncrement, Value: n}
}

func Decrement(field string, n any) FieldUpdate {
	return FieldUpdate{Field: field, Op: UpdDecrement, Value: n}
}

func Multiply(field string, n any) FieldUpdate {
	return FieldUpdate{Field: field, Op: UpdMultiply, Value: n}
}

func Divide(field string, n any) FieldUpdate {
	return FieldUpdate{Field: field, Op: UpdDivide, Value: n}
}

// Push appends values to a string list.
func Push(field string, vs ...string) FieldUpdate {
	return FieldUpdate{Field: field, Op: UpdPush, Value: vs}
}

// SetAll turns plain data into set operations, in key order.
func SetAll(data Data) Update {
	out := make(Update, 0, len(data))
	for _, k := range sortedKeys(data) {
		out = append(out, Set(k, data[k]))
	}
	return out
}
