package logger

import (
	"context"
	"errors"
	"log/slog"
)

// teeHandler writes every record to each of its sinks that accepts the
// record's level. The chat command tees its terminal logger with a JSON
// logger on .chatbot/chat.log.
type teeHandler struct {
	sinks []slog.Handler
}

// Tee returns a logger that writes to every non-nil logger given. Tees are
// flattened, so teeing a tee does not nest handlers. A sink that fails to
// write does not keep the record from the others; Handle reports the
// joined errors.
func Tee(loggers ...*slog.Logger) *slog.Logger {
	var sinks []slog.Handler
	for _, l := range loggers {
		if l == nil {
			continue
		}
		if t, ok := l.Handler().(*teeHandler); ok {
			sinks = append(sinks, t.sinks...)
			continue
		}
		sinks = append(sinks, l.Handler())
	}
	return slog.New(&teeHandler{sinks: sinks})
}

func (t *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.sinks {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t.sinks {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (t *teeHandler) WithGroup(name string) slog.Handler {
	return t.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t *teeHandler) derive(fn func(slog.Handler) slog.Handler) *teeHandler {
	sinks := make([]slog.Handler, len(t.sinks))
	for i, h := range t.sinks {
		sinks[i] = fn(h)
	}
	return &teeHandler{sinks: sinks}
}
