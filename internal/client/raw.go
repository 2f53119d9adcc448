package client

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"eventmarket/internal/apperrors"
	"eventmarket/internal/database"
	"eventmarket/internal/schema"
)

// Raw is the pass-through query capability. Its documents carry engine SQL and
// bypass the typed grammar entirely; statements run with the connection in
// query_only mode so they cannot change data.
type Raw struct {
	c *Client
}

func (c *Client) Raw() *Raw { return &Raw{c: c} }

// FindRawDoc filters one model's table with a SQL condition.
type FindRawDoc struct {
	Filter string `json:"filter"`
	Args   []any  `json:"args"`
	Limit  int    `json:"limit"`
}

// AggregateRawDoc is a complete SELECT (or WITH ... SELECT) statement.
type AggregateRawDoc struct {
	Pipeline string `json:"pipeline"`
	Args     []any  `json:"args"`
}

// FindRaw returns the matching rows of model as a JSON array of objects keyed
// by field name. Fields hidden by the client omit policy are dropped.
func (r *Raw) FindRaw(ctx context.Context, model string, doc json.RawMessage) (json.RawMessage, error) {
	var out json.RawMessage
	err := r.c.run(ctx, model, ActionFindRaw, func(ctx context.Context) error {
		m, ok := r.c.schema.Model(model)
		if !ok {
			return apperrors.Validation("unknown model %q", model)
		}
		var d FindRawDoc
		if err := decodeDoc(doc, &d); err != nil {
			return err
		}
		filter := strings.TrimSpace(d.Filter)
		if filter == "" {
			filter = "1=1"
		}
		if strings.Contains(filter, ";") {
			return apperrors.Validation("raw filter must not contain ';'")
		}
		if d.Limit < 0 {
			return apperrors.Validation("limit must not be negative")
		}
		q := "SELECT * FROM " + m.Table + " WHERE (" + filter + ")"
		args := driverArgs(d.Args)
		if d.Limit > 0 {
			q += " LIMIT ?"
			args = append(args, d.Limit)
		}
		rows, err := r.query(ctx, model, ActionFindRaw, q, args, m)
		if err != nil {
			return err
		}
		for _, row := range rows {
			for _, f := range r.c.defaultOmit(m.Name) {
				delete(row, f)
			}
		}
		out, err = json.Marshal(rows)
		return err
	})
	return out, err
}

// AggregateRaw runs a read-only statement and returns its rows keyed by
// column name. The omit policy does not apply: the statement picks its own
// columns.
func (r *Raw) AggregateRaw(ctx context.Context, doc json.RawMessage) (json.RawMessage, error) {
	var out json.RawMessage
	err := r.c.run(ctx, "raw", ActionAggregateRaw, func(ctx context.Context) error {
		var d AggregateRawDoc
		if err := decodeDoc(doc, &d); err != nil {
			return err
		}
		q, err := readOnlyStatement(d.Pipeline)
		if err != nil {
			return err
		}
		rows, err := r.query(ctx, "raw", ActionAggregateRaw, q, driverArgs(d.Args), nil)
		if err != nil {
			return err
		}
		out, err = json.Marshal(rows)
		return err
	})
	return out, err
}

func (r *Raw) query(ctx context.Context, model, action, q string, args []any, m *schema.Model) ([]map[string]any, error) {
	var ex database.Executor
	if r.c.tx != nil {
		ex = r.c.tx
	} else {
		conn, err := r.c.db.Conn(ctx)
		if err != nil {
			return nil, database.Classify(err, database.ActionRead)
		}
		defer conn.Close()
		ex = conn
	}

	if _, err := ex.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		return nil, database.Classify(err, database.ActionRead)
	}
	defer func() {
		_, _ = ex.ExecContext(context.WithoutCancel(ctx), "PRAGMA query_only = OFF")
	}()

	start := time.Now()
	rows, err := ex.QueryContext(ctx, q, args...)
	r.c.log.Query(model, action, q, args, time.Since(start))
	if err != nil {
		return nil, rawError(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, apperrors.Engine(err, "raw columns")
	}
	keys := make([]string, len(cols))
	fields := make([]*schema.Field, len(cols))
	for i, col := range cols {
		keys[i] = col
		if m == nil {
			continue
		}
		for j := range m.Fields {
			if m.Fields[j].Column == col {
				keys[i] = m.Fields[j].Name
				fields[i] = &m.Fields[j]
			}
		}
	}

	out := []map[string]any{}
	for rows.Next() {
		raw := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, apperrors.Engine(err, "malformed raw row")
		}
		row := make(map[string]any, len(cols))
		for i, v := range raw {
			row[keys[i]] = rawValue(fields[i], v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, rawError(err)
	}
	return out, nil
}

// rawError reports statements the engine refused as caller errors.
func rawError(err error) error {
	classified := database.Classify(err, database.ActionRead)
	if apperrors.KindOf(classified) != apperrors.KindEngine {
		return classified
	}
	msg := err.Error()
	if strings.Contains(msg, "readonly") || strings.Contains(msg, "syntax error") || strings.Contains(msg, "no such") {
		return &apperrors.Error{Kind: apperrors.KindValidation, Message: "raw query rejected", Err: err}
	}
	return classified
}

func rawValue(f *schema.Field, v any) any {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if f == nil || v == nil {
		return v
	}
	if f.Kind == schema.StringList {
		if s, ok := v.(string); ok {
			var list []string
			if err := json.Unmarshal([]byte(s), &list); err == nil {
				return list
			}
		}
	}
	return normalize(*f, v)
}

func readOnlyStatement(q string) (string, error) {
	q = strings.TrimRight(strings.TrimSpace(q), "; \t\r\n")
	if q == "" {
		return "", apperrors.Validation("raw pipeline is empty")
	}
	if strings.Contains(q, ";") {
		return "", apperrors.Validation("raw pipeline must be a single statement")
	}
	head := strings.ToUpper(strings.Fields(q)[0])
	if head != "SELECT" && head != "WITH" {
		return "", apperrors.Validation("raw pipeline must be a SELECT statement")
	}
	return q, nil
}

func decodeDoc(doc json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &apperrors.Error{Kind: apperrors.KindValidation, Message: "malformed raw document", Err: err}
	}
	return nil
}

// driverArgs turns decoded JSON numbers into values the driver binds as numbers.
func driverArgs(in []any) []any {
	out := make([]any, len(in))
	for i, v := range in {
		if n, ok := v.(json.Number); ok {
			if iv, err := n.Int64(); err == nil {
				out[i] = iv
			} else if fv, err := n.Float64(); err == nil {
				out[i] = fv
			}
			continue
		}
		out[i] = v
	}
	return out
}
