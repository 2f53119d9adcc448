// Package client is the data client: one delegate per entity exposing the full
// operation set, interactive and batch transactions, and a read-only raw
// query capability kept apart from the typed grammar.
package client

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"eventmarket/internal/apperrors"
	"eventmarket/internal/config"
	"eventmarket/internal/database"
	"eventmarket/internal/events"
	"eventmarket/internal/logging"
	"eventmarket/internal/metrics"
	"eventmarket/internal/models"
	"eventmarket/internal/query"
	"eventmarket/internal/schema"

	"github.com/rs/zerolog"
)

// Client is the handle application code receives at startup. A Client bound to
// a transaction is handed to Transaction bodies; it shares the schema, logging
// and configuration of its parent.
type Client struct {
	db       *database.DB
	ex       database.Executor
	tx       *sql.Tx
	schema   *schema.Schema
	compiler *query.Compiler
	decoder  *query.Decoder
	log      *logging.ClientLog
	logger   *zerolog.Logger
	bus      *events.EventBus
	pending  *events.Buffer
	omit     map[string][]string
	txCfg    config.TransactionConfig
	now      func() time.Time
	models   map[string]*Model

	User         *Delegate[models.User]
	Vendor       *Delegate[models.Vendor]
	Item         *Delegate[models.Item]
	CategoryType *Delegate[models.CategoryType]
	Review       *Delegate[models.Review]
	SavedItem    *Delegate[models.SavedItem]
	Booking      *Delegate[models.Booking]
	Payment      *Delegate[models.Payment]
}

// New builds a client over db. cfg.Omit keys name models case-insensitively.
func New(db *database.DB, cfg config.ClientConfig, bus *events.EventBus, logger *zerolog.Logger) *Client {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := schema.Marketplace

	omit := make(map[string][]string, len(cfg.Omit))
	for key, fields := range cfg.Omit {
		for _, m := range s.Models() {
			if strings.EqualFold(m.Name, key) {
				omit[m.Name] = append(omit[m.Name], fields...)
			}
		}
	}

	txCfg := cfg.Transaction
	if txCfg.MaxWait <= 0 {
		txCfg.MaxWait = 2 * time.Second
	}
	if txCfg.Timeout <= 0 {
		txCfg.Timeout = 5 * time.Second
	}

	c := &Client{
		db:       db,
		ex:       db,
		schema:   s,
		compiler: query.NewCompiler(s),
		decoder:  query.NewDecoder(s),
		log:      logging.NewClientLog(cfg, logger, bus),
		logger:   logging.Component(logger, "client"),
		bus:      bus,
		omit:     omit,
		txCfg:    txCfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
	c.bind()
	return c
}

func (c *Client) bind() {
	c.models = make(map[string]*Model, 8)
	for _, m := range c.schema.Models() {
		c.models[m.Name] = &Model{c: c, m: m}
	}
	c.User = &Delegate[models.User]{m: c.models[models.ModelUser]}
	c.Vendor = &Delegate[models.Vendor]{m: c.models[models.ModelVendor]}
	c.Item = &Delegate[models.Item]{m: c.models[models.ModelItem]}
	c.CategoryType = &Delegate[models.CategoryType]{m: c.models[models.ModelCategoryType]}
	c.Review = &Delegate[models.Review]{m: c.models[models.ModelReview]}
	c.SavedItem = &Delegate[models.SavedItem]{m: c.models[models.ModelSavedItem]}
	c.Booking = &Delegate[models.Booking]{m: c.models[models.ModelBooking]}
	c.Payment = &Delegate[models.Payment]{m: c.models[models.ModelPayment]}
}

// Model returns the untyped delegate for a model name.
func (c *Client) Model(name string) (*Model, error) {
	m, ok := c.models[name]
	if !ok {
		return nil, apperrors.Validation("unknown model %q", name)
	}
	return m, nil
}

func (c *Client) Schema() *schema.Schema { return c.schema }

func (c *Client) Decoder() *query.Decoder { return c.decoder }

// InTransaction reports whether the client is bound to an open transaction.
func (c *Client) InTransaction() bool { return c.tx != nil }

// Ping checks the engine is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return apperrors.Engine(err, "database unreachable")
	}
	return nil
}

// Close releases the database. Transaction-scoped clients cannot be closed.
func (c *Client) Close() error {
	if c.tx != nil {
		return errors.New("client: cannot close a transaction-scoped client")
	}
	return c.db.Close()
}

func (c *Client) defaultOmit(model string) []string {
	return c.omit[model]
}

// run wraps one operation with error stamping, logging and metrics.
func (c *Client) run(ctx context.Context, model, action string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := apperrors.WithOp(fn(ctx), model, action)

	outcome := "ok"
	if err != nil {
		outcome = string(apperrors.KindOf(err))
		if apperrors.IsNotFound(err) {
			c.log.Warn(model, action, err.Error())
		} else {
			c.log.Error(model, action, err)
		}
	}
	metrics.ObserveQuery(model, action, outcome, time.Since(start))
	return err
}

func (c *Client) exec(ctx context.Context, model, action string, act database.Action, q string, args []any) (sql.Result, error) {
	start := time.Now()
	res, err := c.ex.ExecContext(ctx, q, args...)
	c.log.Query(model, action, q, args, time.Since(start))
	if err != nil {
		return nil, database.Classify(err, act)
	}
	return res, nil
}

func (c *Client) queryRows(ctx context.Context, model, action, q string, args []any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := c.ex.QueryContext(ctx, q, args...)
	c.log.Query(model, action, q, args, time.Since(start))
	if err != nil {
		return nil, database.Classify(err, database.ActionRead)
	}
	return rows, nil
}

// scanRow reads a single row; sql.ErrNoRows is returned unclassified.
func (c *Client) scanRow(ctx context.Context, model, action, q string, args []any, dest ...any) error {
	start := time.Now()
	err := c.ex.QueryRowContext(ctx, q, args...).Scan(dest...)
	c.log.Query(model, action, q, args, time.Since(start))
	if errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return database.Classify(err, database.ActionRead)
}

// emit publishes a record event now, or at commit inside a transaction.
func (c *Client) emit(eventType string, payload events.RecordEventPayload) {
	if c.bus == nil {
		return
	}
	ev, err := events.NewJSONEvent(eventType, payload)
	if err != nil {
		c.logger.Warn().Err(err).Str("event", eventType).Msg("Failed to encode event")
		return
	}
	if c.pending != nil {
		c.pending.Add(ev)
		return
	}
	c.bus.Publish(&ev)
}
