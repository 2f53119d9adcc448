package api

import (
	"context"
	"encoding/json"
	"strings"

	"eventmarket/internal/apperrors"
	"eventmarket/internal/client"

	"github.com/rs/zerolog"
)

// Request is one query document: the model, the operation and its arguments.
type Request struct {
	Model  string          `json:"model"`
	Action string          `json:"action"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// BatchRequest runs its operations in order inside one transaction.
type BatchRequest struct {
	Operations []Request `json:"operations"`
}

// Response carries the JSON encoded result of a request.
type Response struct {
	Data json.RawMessage `json:"data"`
}

// Dispatcher executes query documents against a data client.
type Dispatcher struct {
	client *client.Client
	log    zerolog.Logger
}

func NewDispatcher(c *client.Client, logger *zerolog.Logger) *Dispatcher {
	d := &Dispatcher{client: c, log: zerolog.Nop()}
	if logger != nil {
		d.log = logger.With().Str("component", "api").Logger()
	}
	return d
}

// Execute runs a single request and returns its JSON result.
func (d *Dispatcher) Execute(ctx context.Context, req Request) (json.RawMessage, error) {
	if err := authorize(ctx, requiredPermission(req.Action)); err != nil {
		return nil, err
	}
	res, err := d.run(ctx, d.client, req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(res)
}

// ExecuteBatch runs every request of batch in one transaction and returns the
// results as a JSON array in request order.
func (d *Dispatcher) ExecuteBatch(ctx context.Context, batch BatchRequest) (json.RawMessage, error) {
	if len(batch.Operations) == 0 {
		return nil, apperrors.Validation("batch has no operations")
	}
	ops := make([]client.Op, 0, len(batch.Operations))
	for _, req := range batch.Operations {
		if err := authorize(ctx, requiredPermission(req.Action)); err != nil {
			return nil, err
		}
		req := req
		ops = append(ops, func(ctx context.Context, tx *client.Client) (any, error) {
			return d.run(ctx, tx, req)
		})
	}
	results, err := d.client.Batch(ctx, ops)
	if err != nil {
		return nil, err
	}
	d.log.Debug().Int("operations", len(ops)).Msg("batch committed")
	return json.Marshal(results)
}

func (d *Dispatcher) run(ctx context.Context, c *client.Client, req Request) (any, error) {
	action := strings.TrimSpace(req.Action)
	switch action {
	case client.ActionFindRaw:
		return c.Raw().FindRaw(ctx, req.Model, req.Args)
	case client.ActionAggregateRaw:
		return c.Raw().AggregateRaw(ctx, req.Args)
	}

	m, err := c.Model(req.Model)
	if err != nil {
		return nil, err
	}
	dec := c.Decoder()

	switch action {
	case client.ActionFindUnique, client.ActionFindUniqueOrThrow:
		where, proj, err := dec.UniqueArgs(req.Model, req.Args)
		if err != nil {
			return nil, err
		}
		if action == client.ActionFindUnique {
			return m.FindUnique(ctx, where, proj)
		}
		return m.FindUniqueOrThrow(ctx, where, proj)

	case client.ActionFindFirst, client.ActionFindFirstOrThrow, client.ActionFindMany:
		args, err := dec.FindArgs(req.Model, req.Args)
		if err != nil {
			return nil, err
		}
		switch action {
		case client.ActionFindFirst:
			return m.FindFirst(ctx, args)
		case client.ActionFindFirstOrThrow:
			return m.FindFirstOrThrow(ctx, args)
		}
		return m.FindMany(ctx, args)

	case client.ActionCreate:
		data, proj, err := dec.CreateArgs(req.Model, req.Args)
		if err != nil {
			return nil, err
		}
		return m.Create(ctx, data, proj)

	case client.ActionCreateMany:
		args, err := dec.CreateManyArgs(req.Model, req.Args)
		if err != nil {
			return nil, err
		}
		return m.CreateMany(ctx, args)

	case client.ActionUpdate:
		where, upd, proj, err := dec.UpdateArgs(req.Model, req.Args)
		if err != nil {
			return nil, err
		}
		return m.Update(ctx, where, upd, proj)

	case client.ActionUpdateMany:
		where, upd, err := dec.UpdateManyArgs(req.Model, req.Args)
		if err != nil {
			return nil, err
		}
		return m.UpdateMany(ctx, where, upd)

	case client.ActionUpsert:
		where, create, upd, proj, err := dec.UpsertArgs(req.Model, req.Args)
		if err != nil {
			return nil, err
		}
		return m.Upsert(ctx, where, create, upd, proj)

	case client.ActionDelete:
		where, proj, err := dec.UniqueArgs(req.Model, req.Args)
		if err != nil {
			return nil, err
		}
		return m.Delete(ctx, where, proj)

	case client.ActionDeleteMany:
		args, err := dec.DeleteManyArgs(req.Model, req.Args)
		if err != nil {
			return nil, err
		}
		return m.DeleteMany(ctx, args)

	case client.ActionCount:
		args, err := dec.CountArgs(req.Model, req.Args)
		if err != nil {
			return nil, err
		}
		return m.Count(ctx, args)

	case client.ActionAggregate:
		args, err := dec.AggregateArgs(req.Model, req.Args)
		if err != nil {
			return nil, err
		}
		return m.Aggregate(ctx, args)

	case client.ActionGroupBy:
		args, err := dec.GroupByArgs(req.Model, req.Args)
		if err != nil {
			return nil, err
		}
		return m.GroupBy(ctx, args)

	case client.ActionExists:
		where, err := dec.ExistsArgs(req.Model, req.Args)
		if err != nil {
			return nil, err
		}
		return m.Exists(ctx, where)
	}
	return nil, apperrors.Validation("unknown action %q", req.Action)
}
