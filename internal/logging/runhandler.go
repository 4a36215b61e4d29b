package logging

import (
	"context"
	"errors"
	"log/slog"
)

// RunAttrs returns attributes describing the run at the moment a record is
// logged, such as the run id and the scene being scanned.
type RunAttrs func() []slog.Attr

// runHandler stamps each record with the current run attributes and hands it
// to every sink that accepts its level. Empty string attributes are left off
// so records logged between scenes carry no blank scene label.
type runHandler struct {
	sinks []slog.Handler
	attrs RunAttrs
}

func newRunHandler(attrs RunAttrs, sinks ...slog.Handler) *runHandler {
	h := &runHandler{attrs: attrs}
	for _, s := range sinks {
		if s != nil {
			h.sinks = append(h.sinks, s)
		}
	}
	return h
}

func (h *runHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range h.sinks {
		if s.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle delivers to every sink even when one fails; failures come back joined.
func (h *runHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.attrs != nil {
		for _, a := range h.attrs() {
			if a.Value.Kind() == slog.KindString && a.Value.String() == "" {
				continue
			}
			r.AddAttrs(a)
		}
	}

	var errs []error
	for _, s := range h.sinks {
		if !s.Enabled(ctx, r.Level) {
			continue
		}
		if err := s.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *runHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(s slog.Handler) slog.Handler { return s.WithAttrs(attrs) })
}

func (h *runHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.derive(func(s slog.Handler) slog.Handler { return s.WithGroup(name) })
}

func (h *runHandler) derive(f func(slog.Handler) slog.Handler) *runHandler {
	sinks := make([]slog.Handler, len(h.sinks))
	for i, s := range h.sinks {
		sinks[i] = f(s)
	}
	return &runHandler{sinks: sinks, attrs: h.attrs}
}
