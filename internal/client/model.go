package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"eventmarket/internal/apperrors"
	"eventmarket/internal/database"
	"eventmarket/internal/events"
	"eventmarket/internal/models"
	"eventmarket/internal/query"
	"eventmarket/internal/schema"

	"github.com/google/uuid"
)

// Model runs the operation set against one entity with untyped records. The
// typed Delegate wraps it; the request dispatcher uses it directly.
type Model struct {
	c *Client
	m *schema.Model
}

func (o *Model) Name() string { return o.m.Name }

func (o *Model) FindUnique(ctx context.Context, where query.Unique, proj query.Projection) (models.Record, error) {
	var out models.Record
	err := o.c.run(ctx, o.m.Name, ActionFindUnique, func(ctx context.Context) error {
		var err error
		out, err = o.findUnique(ctx, ActionFindUnique, where, proj)
		return err
	})
	return out, err
}

func (o *Model) FindUniqueOrThrow(ctx context.Context, where query.Unique, proj query.Projection) (models.Record, error) {
	var out models.Record
	err := o.c.run(ctx, o.m.Name, ActionFindUniqueOrThrow, func(ctx context.Context) error {
		var err error
		out, err = o.findUnique(ctx, ActionFindUniqueOrThrow, where, proj)
		if err == nil && out == nil {
			err = apperrors.NotFound("no %s matches %s", o.m.Name, describe(where))
		}
		return err
	})
	return out, err
}

func (o *Model) FindFirst(ctx context.Context, args query.FindArgs) (models.Record, error) {
	var out models.Record
	err := o.c.run(ctx, o.m.Name, ActionFindFirst, func(ctx context.Context) error {
		var err error
		out, err = o.findFirst(ctx, ActionFindFirst, args)
		return err
	})
	return out, err
}

func (o *Model) FindFirstOrThrow(ctx context.Context, args query.FindArgs) (models.Record, error) {
	var out models.Record
	err := o.c.run(ctx, o.m.Name, ActionFindFirstOrThrow, func(ctx context.Context) error {
		var err error
		out, err = o.findFirst(ctx, ActionFindFirstOrThrow, args)
		if err == nil && out == nil {
			err = apperrors.NotFound("no %s matches the filter", o.m.Name)
		}
		return err
	})
	return out, err
}

func (o *Model) FindMany(ctx context.Context, args query.FindArgs) ([]models.Record, error) {
	var out []models.Record
	err := o.c.run(ctx, o.m.Name, ActionFindMany, func(ctx context.Context) error {
		var err error
		out, err = o.c.find(ctx, o.m, ActionFindMany, args)
		return err
	})
	return out, err
}

func (o *Model) Create(ctx context.Context, data query.Data, proj query.Projection) (models.Record, error) {
	var out models.Record
	err := o.c.run(ctx, o.m.Name, ActionCreate, func(ctx context.Context) error {
		values, err := o.prepareCreate(data, proj)
		if err != nil {
			return err
		}
		return o.c.atomic(ctx, func(tx *Client) error {
			id, err := tx.insert(ctx, o.m, ActionCreate, values, false)
			if err != nil {
				return err
			}
			out, err = tx.readByID(ctx, o.m, ActionCreate, id, proj)
			return err
		})
	})
	return out, err
}

// CreateMany inserts every row or none. With SkipDuplicates rows colliding
// with a unique key are skipped and left out of the count.
func (o *Model) CreateMany(ctx context.Context, args query.CreateManyArgs) (query.BatchResult, error) {
	var out query.BatchResult
	err := o.c.run(ctx, o.m.Name, ActionCreateMany, func(ctx context.Context) error {
		rows := make([]map[string]any, 0, len(args.Data))
		for i, data := range args.Data {
			values, err := query.NormalizeCreate(o.m, data)
			if err != nil {
				return atRow(i, err)
			}
			rows = append(rows, values)
		}
		if len(rows) == 0 {
			return nil
		}
		return o.c.atomic(ctx, func(tx *Client) error {
			for _, values := range rows {
				if _, err := tx.insert(ctx, o.m, ActionCreateMany, values, args.SkipDuplicates); err != nil {
					if errors.Is(err, errIgnored) {
						continue
					}
					return err
				}
				out.Count++
			}
			if out.Count > 0 {
				tx.emit(events.EventRecordsChanged, events.RecordEventPayload{Model: o.m.Name, Action: ActionCreateMany, Count: out.Count})
			}
			return nil
		})
	})
	return out, err
}

func (o *Model) Update(ctx context.Context, where query.Unique, upd query.Update, proj query.Projection) (models.Record, error) {
	var out models.Record
	err := o.c.run(ctx, o.m.Name, ActionUpdate, func(ctx context.Context) error {
		if err := o.validateProjection(proj); err != nil {
			return err
		}
		set, setArgs, err := o.c.compiler.Assignments(o.m, upd, o.c.now())
		if err != nil {
			return err
		}
		return o.c.atomic(ctx, func(tx *Client) error {
			id, err := tx.resolveID(ctx, o.m, ActionUpdate, where)
			if err != nil {
				return err
			}
			if err := tx.updateByID(ctx, o.m, ActionUpdate, id, set, setArgs); err != nil {
				return err
			}
			out, err = tx.readByID(ctx, o.m, ActionUpdate, id, proj)
			return err
		})
	})
	return out, err
}

func (o *Model) UpdateMany(ctx context.Context, where query.Predicate, upd query.Update) (query.BatchResult, error) {
	var out query.BatchResult
	err := o.c.run(ctx, o.m.Name, ActionUpdateMany, func(ctx context.Context) error {
		set, setArgs, err := o.c.compiler.Assignments(o.m, upd, o.c.now())
		if err != nil {
			return err
		}
		cond, condArgs, err := o.c.compiler.Where(o.m, "t0", where)
		if err != nil {
			return err
		}
		q := fmt.Sprintf("UPDATE %s SET %s WHERE id IN (SELECT t0.id FROM %s t0 WHERE %s)", o.m.Table, set, o.m.Table, cond)
		res, err := o.c.exec(ctx, o.m.Name, ActionUpdateMany, database.ActionWrite, q, append(setArgs, condArgs...))
		if err != nil {
			return err
		}
		out.Count, err = res.RowsAffected()
		if err != nil {
			return apperrors.Engine(err, "rows affected")
		}
		if out.Count > 0 {
			o.c.emit(events.EventRecordsChanged, events.RecordEventPayload{Model: o.m.Name, Action: ActionUpdateMany, Count: out.Count})
		}
		return nil
	})
	return out, err
}

// Upsert updates the row matching where, or creates one from create when no
// row matches. Both branches are validated before anything is written.
func (o *Model) Upsert(ctx context.Context, where query.Unique, create query.Data, upd query.Update, proj query.Projection) (models.Record, error) {
	var out models.Record
	err := o.c.run(ctx, o.m.Name, ActionUpsert, func(ctx context.Context) error {
		if _, _, err := o.c.compiler.UniqueWhere(o.m, "t0", where); err != nil {
			return err
		}
		values, err := o.prepareCreate(create, proj)
		if err != nil {
			return err
		}
		set, setArgs, err := o.c.compiler.Assignments(o.m, upd, o.c.now())
		if err != nil {
			return err
		}
		return o.c.atomic(ctx, func(tx *Client) error {
			id, err := tx.resolveID(ctx, o.m, ActionUpsert, where)
			switch {
			case apperrors.IsNotFound(err):
				id, err = tx.insert(ctx, o.m, ActionUpsert, values, false)
			case err == nil:
				err = tx.updateByID(ctx, o.m, ActionUpsert, id, set, setArgs)
			}
			if err != nil {
				return err
			}
			out, err = tx.readByID(ctx, o.m, ActionUpsert, id, proj)
			return err
		})
	})
	return out, err
}

// Delete removes the row matching where and returns it as it was.
func (o *Model) Delete(ctx context.Context, where query.Unique, proj query.Projection) (models.Record, error) {
	var out models.Record
	err := o.c.run(ctx, o.m.Name, ActionDelete, func(ctx context.Context) error {
		if err := o.validateProjection(proj); err != nil {
			return err
		}
		return o.c.atomic(ctx, func(tx *Client) error {
			id, err := tx.resolveID(ctx, o.m, ActionDelete, where)
			if err != nil {
				return err
			}
			out, err = tx.readByID(ctx, o.m, ActionDelete, id, proj)
			if err != nil {
				return err
			}
			q := fmt.Sprintf("DELETE FROM %s WHERE id = ?", o.m.Table)
			if _, err := tx.exec(ctx, o.m.Name, ActionDelete, database.ActionDelete, q, []any{id}); err != nil {
				return err
			}
			tx.emit(events.EventRecordDeleted, events.RecordEventPayload{Model: o.m.Name, Action: ActionDelete, ID: id})
			return nil
		})
	})
	return out, err
}

// DeleteMany removes matching rows. A positive Limit caps the rows removed,
// taken in id order.
func (o *Model) DeleteMany(ctx context.Context, args query.DeleteManyArgs) (query.BatchResult, error) {
	var out query.BatchResult
	err := o.c.run(ctx, o.m.Name, ActionDeleteMany, func(ctx context.Context) error {
		if args.Limit < 0 {
			return apperrors.Validation("limit must not be negative")
		}
		cond, condArgs, err := o.c.compiler.Where(o.m, "t0", args.Where)
		if err != nil {
			return err
		}
		sub := fmt.Sprintf("SELECT t0.id FROM %s t0 WHERE %s", o.m.Table, cond)
		if args.Limit > 0 {
			sub += " ORDER BY t0.id LIMIT ?"
			condArgs = append(condArgs, args.Limit)
		}
		q := fmt.Sprintf("DELETE FROM %s WHERE id IN (%s)", o.m.Table, sub)
		res, err := o.c.exec(ctx, o.m.Name, ActionDeleteMany, database.ActionDelete, q, condArgs)
		if err != nil {
			return err
		}
		out.Count, err = res.RowsAffected()
		if err != nil {
			return apperrors.Engine(err, "rows affected")
		}
		if out.Count > 0 {
			o.c.emit(events.EventRecordsChanged, events.RecordEventPayload{Model: o.m.Name, Action: ActionDeleteMany, Count: out.Count})
		}
		return nil
	})
	return out, err
}

func (o *Model) Count(ctx context.Context, args query.CountArgs) (query.CountResult, error) {
	var out query.CountResult
	err := o.c.run(ctx, o.m.Name, ActionCount, func(ctx context.Context) error {
		q, qArgs, err := o.c.compiler.Count(o.m, args)
		if err != nil {
			return err
		}
		counts := make([]int64, 1+len(args.Fields))
		dest := make([]any, len(counts))
		for i := range counts {
			dest[i] = &counts[i]
		}
		if err := o.c.scanRow(ctx, o.m.Name, ActionCount, q, qArgs, dest...); err != nil {
			return err
		}
		out.All = counts[0]
		if len(args.Fields) > 0 {
			out.Fields = make(map[string]int64, len(args.Fields))
			for i, name := range args.Fields {
				out.Fields[name] = counts[i+1]
			}
		}
		return nil
	})
	return out, err
}

func (o *Model) Aggregate(ctx context.Context, args query.AggregateArgs) (query.AggregateResult, error) {
	var out query.AggregateResult
	err := o.c.run(ctx, o.m.Name, ActionAggregate, func(ctx context.Context) error {
		q, qArgs, cols, err := o.c.compiler.Aggregate(o.m, args)
		if err != nil {
			return err
		}
		raw := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := o.c.scanRow(ctx, o.m.Name, ActionAggregate, q, qArgs, dest...); err != nil {
			return err
		}
		out = aggregateResult(cols, raw)
		return nil
	})
	return out, err
}

// GroupBy validates by, orderBy and having before running anything.
func (o *Model) GroupBy(ctx context.Context, args query.GroupByArgs) ([]query.GroupRow, error) {
	var out []query.GroupRow
	err := o.c.run(ctx, o.m.Name, ActionGroupBy, func(ctx context.Context) error {
		q, qArgs, cols, err := o.c.compiler.GroupBy(o.m, args)
		if err != nil {
			return err
		}
		rows, err := o.c.queryRows(ctx, o.m.Name, ActionGroupBy, q, qArgs)
		if err != nil {
			return err
		}
		defer rows.Close()

		width := len(args.By) + len(cols)
		out = []query.GroupRow{}
		for rows.Next() {
			raw := make([]any, width)
			dest := make([]any, width)
			for i := range raw {
				dest[i] = &raw[i]
			}
			if err := rows.Scan(dest...); err != nil {
				return apperrors.Engine(err, "malformed group row")
			}
			keys := make(map[string]any, len(args.By))
			for i, name := range args.By {
				f, _ := o.m.Field(name)
				keys[name] = normalize(f, raw[i])
			}
			out = append(out, query.GroupRow{Keys: keys, AggregateResult: aggregateResult(cols, raw[len(args.By):])})
		}
		if err := rows.Err(); err != nil {
			return database.Classify(err, database.ActionRead)
		}
		return nil
	})
	return out, err
}

// Exists reports whether any row matches where.
func (o *Model) Exists(ctx context.Context, where query.Predicate) (bool, error) {
	var out bool
	err := o.c.run(ctx, o.m.Name, ActionExists, func(ctx context.Context) error {
		cond, args, err := o.c.compiler.Where(o.m, "t0", where)
		if err != nil {
			return err
		}
		q := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s t0 WHERE %s)", o.m.Table, cond)
		var n int64
		if err := o.c.scanRow(ctx, o.m.Name, ActionExists, q, args, &n); err != nil {
			return err
		}
		out = n == 1
		return nil
	})
	return out, err
}

func (o *Model) findUnique(ctx context.Context, action string, where query.Unique, proj query.Projection) (models.Record, error) {
	if _, _, err := o.c.compiler.UniqueWhere(o.m, "t0", where); err != nil {
		return nil, err
	}
	recs, err := o.c.find(ctx, o.m, action, query.FindArgs{
		Where:   uniquePredicate(where),
		Take:    1,
		Select:  proj.Select,
		Include: proj.Include,
		Omit:    proj.Omit,
	})
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

func (o *Model) findFirst(ctx context.Context, action string, args query.FindArgs) (models.Record, error) {
	if args.Take < 0 {
		args.Take = -1
	} else {
		args.Take = 1
	}
	recs, err := o.c.find(ctx, o.m, action, args)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

func (o *Model) validateProjection(proj query.Projection) error {
	if _, err := query.Fields(o.m, proj, o.c.defaultOmit(o.m.Name)); err != nil {
		return err
	}
	return query.ValidateIncludes(o.c.schema, o.m, proj.Include)
}

// prepareCreate validates data and projection and stamps the managed fields.
func (o *Model) prepareCreate(data query.Data, proj query.Projection) (map[string]any, error) {
	if err := o.validateProjection(proj); err != nil {
		return nil, err
	}
	values, err := query.NormalizeCreate(o.m, data)
	if err != nil {
		return nil, err
	}
	return values, nil
}

var errIgnored = errors.New("insert ignored")

// insert writes one normalized row and returns its id. Missing ids are
// generated; timestamps are always stamped here.
func (c *Client) insert(ctx context.Context, m *schema.Model, action string, values map[string]any, orIgnore bool) (string, error) {
	row := make(map[string]any, len(values)+3)
	for k, v := range values {
		row[k] = v
	}
	id, _ := row["id"].(string)
	if id == "" {
		id = uuid.NewString()
		row["id"] = id
	}
	now := c.now()
	row["createdAt"] = now
	row["updatedAt"] = now

	q, args := c.compiler.Insert(m, row, orIgnore)
	res, err := c.exec(ctx, m.Name, action, database.ActionWrite, q, args)
	if err != nil {
		return "", err
	}
	if orIgnore {
		n, err := res.RowsAffected()
		if err != nil {
			return "", apperrors.Engine(err, "rows affected")
		}
		if n == 0 {
			return "", errIgnored
		}
	}
	if action != ActionCreateMany {
		c.emit(events.EventRecordCreated, events.RecordEventPayload{Model: m.Name, Action: action, ID: id})
	}
	return id, nil
}

func (c *Client) updateByID(ctx context.Context, m *schema.Model, action, id, set string, setArgs []any) error {
	q := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", m.Table, set)
	args := append(append([]any{}, setArgs...), id)
	if _, err := c.exec(ctx, m.Name, action, database.ActionWrite, q, args); err != nil {
		return err
	}
	c.emit(events.EventRecordUpdated, events.RecordEventPayload{Model: m.Name, Action: action, ID: id})
	return nil
}

// resolveID finds the id of the row a unique selector targets.
func (c *Client) resolveID(ctx context.Context, m *schema.Model, action string, u query.Unique) (string, error) {
	cond, args, err := c.compiler.UniqueWhere(m, "t0", u)
	if err != nil {
		return "", err
	}
	q := fmt.Sprintf("SELECT t0.id FROM %s t0 WHERE %s", m.Table, cond)
	var id string
	if err := c.scanRow(ctx, m.Name, action, q, args, &id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperrors.NotFound("no %s matches %s", m.Name, describe(u))
		}
		return "", err
	}
	return id, nil
}

func (c *Client) readByID(ctx context.Context, m *schema.Model, action, id string, proj query.Projection) (models.Record, error) {
	recs, err := c.find(ctx, m, action, query.FindArgs{
		Where:   query.Equals("id", id),
		Select:  proj.Select,
		Include: proj.Include,
		Omit:    proj.Omit,
	})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, apperrors.NotFound("%s %s vanished", m.Name, id)
	}
	return recs[0], nil
}

// atomic runs fn in the current transaction, or in a new one committed when
// fn succeeds.
func (c *Client) atomic(ctx context.Context, fn func(tx *Client) error) error {
	if c.tx != nil {
		return fn(c)
	}
	tx, err := c.db.BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return database.Classify(err, database.ActionRead)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	scoped := c.withTx(tx)
	if err := fn(scoped); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return database.Classify(err, database.ActionWrite)
	}
	if err := tx.Commit(); err != nil {
		return database.Classify(err, database.ActionWrite)
	}
	scoped.pending.Flush(c.bus)
	return nil
}

// atRow prefixes a validation message with the failing row index.
func atRow(i int, err error) error {
	var e *apperrors.Error
	if !errors.As(err, &e) {
		return err
	}
	out := *e
	out.Message = fmt.Sprintf("row %d: %s", i, e.Message)
	return &out
}

func uniquePredicate(u query.Unique) query.Predicate {
	parts := make([]query.Predicate, 0, len(u))
	for _, k := range sortedKeys(u) {
		parts = append(parts, query.Equals(k, u[k]))
	}
	return query.And(parts...)
}

func describe(u query.Unique) string {
	parts := make([]string, 0, len(u))
	for _, k := range sortedKeys(u) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, derefValue(u[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
