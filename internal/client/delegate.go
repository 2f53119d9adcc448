package client

import (
	"context"

	"eventmarket/internal/models"
	"eventmarket/internal/query"
)

// Delegate is the typed operation set of one entity. Single-row reads return
// nil without error when nothing matches; the OrThrow variants, Update and
// Delete report NotFound instead.
type Delegate[T any] struct {
	m *Model
}

// Untyped exposes the record-level delegate.
func (d *Delegate[T]) Untyped() *Model { return d.m }

func one[T any](r models.Record, err error) (*T, error) {
	if err != nil || r == nil {
		return nil, err
	}
	v, _ := any(r).(*T)
	return v, nil
}

func many[T any](rs []models.Record, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rs))
	for _, r := range rs {
		if v, ok := any(r).(*T); ok {
			out = append(out, *v)
		}
	}
	return out, nil
}

func projection(p []query.Projection) query.Projection {
	if len(p) == 0 {
		return query.Projection{}
	}
	return p[0]
}

func (d *Delegate[T]) FindUnique(ctx context.Context, where query.Unique, proj ...query.Projection) (*T, error) {
	return one[T](d.m.FindUnique(ctx, where, projection(proj)))
}

func (d *Delegate[T]) FindUniqueOrThrow(ctx context.Context, where query.Unique, proj ...query.Projection) (*T, error) {
	return one[T](d.m.FindUniqueOrThrow(ctx, where, projection(proj)))
}

func (d *Delegate[T]) FindFirst(ctx context.Context, args query.FindArgs) (*T, error) {
	return one[T](d.m.FindFirst(ctx, args))
}

func (d *Delegate[T]) FindFirstOrThrow(ctx context.Context, args query.FindArgs) (*T, error) {
	return one[T](d.m.FindFirstOrThrow(ctx, args))
}

func (d *Delegate[T]) FindMany(ctx context.Context, args query.FindArgs) ([]T, error) {
	return many[T](d.m.FindMany(ctx, args))
}

func (d *Delegate[T]) Create(ctx context.Context, data query.Data, proj ...query.Projection) (*T, error) {
	return one[T](d.m.Create(ctx, data, projection(proj)))
}

func (d *Delegate[T]) CreateMany(ctx context.Context, args query.CreateManyArgs) (query.BatchResult, error) {
	return d.m.CreateMany(ctx, args)
}

func (d *Delegate[T]) Update(ctx context.Context, where query.Unique, upd query.Update, proj ...query.Projection) (*T, error) {
	return one[T](d.m.Update(ctx, where, upd, projection(proj)))
}

func (d *Delegate[T]) UpdateMany(ctx context.Context, where query.Predicate, upd query.Update) (query.BatchResult, error) {
	return d.m.UpdateMany(ctx, where, upd)
}

func (d *Delegate[T]) Upsert(ctx context.Context, where query.Unique, create query.Data, upd query.Update, proj ...query.Projection) (*T, error) {
	return one[T](d.m.Upsert(ctx, where, create, upd, projection(proj)))
}

func (d *Delegate[T]) Delete(ctx context.Context, where query.Unique, proj ...query.Projection) (*T, error) {
	return one[T](d.m.Delete(ctx, where, projection(proj)))
}

func (d *Delegate[T]) DeleteMany(ctx context.Context, args query.DeleteManyArgs) (query.BatchResult, error) {
	return d.m.DeleteMany(ctx, args)
}

func (d *Delegate[T]) Count(ctx context.Context, args query.CountArgs) (query.CountResult, error) {
	return d.m.Count(ctx, args)
}

func (d *Delegate[T]) Aggregate(ctx context.Context, args query.AggregateArgs) (query.AggregateResult, error) {
	return d.m.Aggregate(ctx, args)
}

func (d *Delegate[T]) GroupBy(ctx context.Context, args query.GroupByArgs) ([]query.GroupRow, error) {
	return d.m.GroupBy(ctx, args)
}

func (d *Delegate[T]) Exists(ctx context.Context, where query.Predicate) (bool, error) {
	return d.m.Exists(ctx, where)
}
