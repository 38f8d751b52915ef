// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

// Package logging builds the slog logger shared by all doorman components.
// Every record is stamped with the service name and build version, and with
// the OpenTelemetry trace and span ids when the request context carries an
// active span, so auth decisions can be correlated across log streams.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"
)

// stampHandler decorates an inner slog.Handler with the identity and trace
// correlation attributes.
type stampHandler struct {
	inner   slog.Handler
	service string
	version string
}

func (h *stampHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(
		slog.String("service", h.service),
		slog.String("version", h.version),
	)

	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.HasTraceID() {
		r.AddAttrs(slog.String("trace_id", spanCtx.TraceID().String()))
	}
	if spanCtx.HasSpanID() {
		r.AddAttrs(slog.String("span_id", spanCtx.SpanID().String()))
	}

	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return h.inner.Handle(ctx, r)
}

func (h *stampHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *stampHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &stampHandler{
		inner:   h.inner.WithAttrs(attrs),
		service: h.service,
		version: h.version,
	}
}

func (h *stampHandler) WithGroup(name string) slog.Handler {
	return &stampHandler{
		inner:   h.inner.WithGroup(name),
		service: h.service,
		version: h.version,
	}
}

// Setup builds a logger writing to w (os.Stderr when nil). The format is
// "text" for human-readable output; anything else, including empty, means
// JSON. Matches the "log_format" config key.
func Setup(service, version, format string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: slog.LevelDebug}

	var inner slog.Handler
	switch format {
	case "text":
		inner = slog.NewTextHandler(w, opts)
	default:
		inner = slog.NewJSONHandler(w, opts)
	}

	return slog.New(&stampHandler{
		inner:   inner,
		service: service,
		version: version,
	})
}

// SetDefault installs a Setup logger as the process-wide slog default.
func SetDefault(service, version, format string) {
	slog.SetDefault(Setup(service, version, format, nil))
}
