// Package logging provides the structured logger contract used across
// memex, plus a zerolog-backed implementation and a dependency-free
// fallback for tests and minimal embeddings.
package logging

import (
	"context"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Field is a key-value pair for structured logging.
type Field struct {
	Key   string
	Value interface{}
}

// Logger is the minimal structured logging contract shared by every
// component. It mirrors a core.Logger surface: leveled methods taking
// a flat field map, plus context-aware variants for correlating logs
// with a request/episode trace.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})

	DebugCtx(ctx context.Context, msg string, fields map[string]interface{})
	InfoCtx(ctx context.Context, msg string, fields map[string]interface{})
	WarnCtx(ctx context.Context, msg string, fields map[string]interface{})
	ErrorCtx(ctx context.Context, msg string, fields map[string]interface{})
}

// ComponentAware is implemented by loggers that can tag a sub-logger
// with a component name, e.g. "memex/engine" or "memex/store".
type ComponentAware interface {
	Logger
	WithComponent(component string) Logger
}

type correlationKey struct{}

// WithEpisodeID attaches an episode id to the context so a ComponentAware
// logger's *Ctx methods can stamp it onto every log line.
func WithEpisodeID(ctx context.Context, episodeID string) context.Context {
	return context.WithValue(ctx, correlationKey{}, episodeID)
}

func episodeIDFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(correlationKey{}).(string)
	return v, ok
}

// zeroLogger adapts zerolog.Logger to the Logger/ComponentAware contract.
type zeroLogger struct {
	log       zerolog.Logger
	component string
}

// NewZerolog builds a ComponentAware logger backed by zerolog, writing
// structured JSON (or console output in development) to stdout.
func NewZerolog(level string, pretty bool) ComponentAware {
	var w = os.Stdout
	var out zerolog.Logger
	if pretty {
		out = zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
	} else {
		out = zerolog.New(w).With().Timestamp().Logger()
	}
	out = out.Level(parseLevel(level))
	return &zeroLogger{log: out}
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (z *zeroLogger) WithComponent(component string) Logger {
	return &zeroLogger{log: z.log.With().Str("component", component).Logger(), component: component}
}

func (z *zeroLogger) event(e *zerolog.Event, msg string, fields map[string]interface{}) {
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	e.Msg(msg)
}

func (z *zeroLogger) Debug(msg string, fields map[string]interface{}) { z.event(z.log.Debug(), msg, fields) }
func (z *zeroLogger) Info(msg string, fields map[string]interface{})  { z.event(z.log.Info(), msg, fields) }
func (z *zeroLogger) Warn(msg string, fields map[string]interface{})  { z.event(z.log.Warn(), msg, fields) }
func (z *zeroLogger) Error(msg string, fields map[string]interface{}) { z.event(z.log.Error(), msg, fields) }

func (z *zeroLogger) withCtx(ctx context.Context) *zeroLogger {
	if id, ok := episodeIDFrom(ctx); ok {
		return &zeroLogger{log: z.log.With().Str("episode_id", id).Logger(), component: z.component}
	}
	return z
}

func (z *zeroLogger) DebugCtx(ctx context.Context, msg string, fields map[string]interface{}) {
	z.withCtx(ctx).Debug(msg, fields)
}
func (z *zeroLogger) InfoCtx(ctx context.Context, msg string, fields map[string]interface{}) {
	z.withCtx(ctx).Info(msg, fields)
}
func (z *zeroLogger) WarnCtx(ctx context.Context, msg string, fields map[string]interface{}) {
	z.withCtx(ctx).Warn(msg, fields)
}
func (z *zeroLogger) ErrorCtx(ctx context.Context, msg string, fields map[string]interface{}) {
	z.withCtx(ctx).Error(msg, fields)
}

// NoOp is a logger that discards everything; used as the zero-value
// default so components never need a nil check.
type NoOp struct{}

func (NoOp) Debug(string, map[string]interface{})                         {}
func (NoOp) Info(string, map[string]interface{})                          {}
func (NoOp) Warn(string, map[string]interface{})                          {}
func (NoOp) Error(string, map[string]interface{})                         {}
func (NoOp) DebugCtx(context.Context, string, map[string]interface{})     {}
func (NoOp) InfoCtx(context.Context, string, map[string]interface{})      {}
func (NoOp) WarnCtx(context.Context, string, map[string]interface{})      {}
func (NoOp) ErrorCtx(context.Context, string, map[string]interface{})     {}
func (n NoOp) WithComponent(string) Logger                                { return n }
