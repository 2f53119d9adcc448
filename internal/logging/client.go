package logging

import (
	"fmt"
	"time"

	"eventmarket/internal/config"
	"eventmarket/internal/events"

	"github.com/rs/zerolog"
)

const (
	LevelQuery = "query"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"

	EmitStdout = "stdout"
	EmitEvent  = "event"
)

// ClientLog routes data client log lines to zerolog or to the event bus,
// keeping only the configured levels.
type ClientLog struct {
	levels map[string]bool
	emit   string
	logger *zerolog.Logger
	bus    *events.EventBus
}

func NewClientLog(cfg config.ClientConfig, logger *zerolog.Logger, bus *events.EventBus) *ClientLog {
	levels := make(map[string]bool, len(cfg.Log))
	for _, l := range cfg.Log {
		levels[l] = true
	}
	emit := cfg.LogEmit
	if emit == "" || (emit == EmitEvent && bus == nil) {
		emit = EmitStdout
	}
	return &ClientLog{
		levels: levels,
		emit:   emit,
		logger: Component(logger, "client"),
		bus:    bus,
	}
}

func (l *ClientLog) Enabled(level string) bool {
	return l != nil && l.levels[level]
}

// Query records an executed statement.
func (l *ClientLog) Query(model, action, query string, args []any, took time.Duration) {
	if !l.Enabled(LevelQuery) {
		return
	}
	if l.emit == EmitEvent {
		_ = l.bus.PublishJSON(events.EventLog, events.LogEventPayload{
			Level:     LevelQuery,
			Model:     model,
			Action:    action,
			Query:     query,
			Params:    fmt.Sprint(args),
			Duration:  took,
			Timestamp: time.Now(),
		})
		return
	}
	l.logger.Debug().
		Str("model", model).
		Str("action", action).
		Str("query", query).
		Interface("params", args).
		Dur("duration", took).
		Msg("query")
}

func (l *ClientLog) Info(model, action, msg string) {
	l.write(LevelInfo, model, action, msg, nil)
}

func (l *ClientLog) Warn(model, action, msg string) {
	l.write(LevelWarn, model, action, msg, nil)
}

func (l *ClientLog) Error(model, action string, err error) {
	l.write(LevelError, model, action, err.Error(), err)
}

func (l *ClientLog) write(level, model, action, msg string, err error) {
	if !l.Enabled(level) {
		return
	}
	if l.emit == EmitEvent {
		_ = l.bus.PublishJSON(events.EventLog, events.LogEventPayload{
			Level:     level,
			Message:   msg,
			Model:     model,
			Action:    action,
			Timestamp: time.Now(),
		})
		return
	}

	var ev *zerolog.Event
	switch level {
	case LevelWarn:
		ev = l.logger.Warn()
	case LevelError:
		ev = l.logger.Error().Err(err)
	default:
		ev = l.logger.Info()
	}
	ev.Str("model", model).Str("action", action).Msg(msg)
}
