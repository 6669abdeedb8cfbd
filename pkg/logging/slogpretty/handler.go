// Package slogpretty implements a colorized, human-readable slog.Handler
// for local development, mirroring the JSON handler used in production.
package slogpretty

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
)

type PrettyHandlerOptions struct {
	SlogOpts *slog.HandlerOptions
}

type PrettyHandler struct {
	slog.Handler
	out   io.Writer
	attrs []slog.Attr
}

// NewPrettyHandler wraps out with a colorized renderer. Whether ANSI
// codes are emitted follows fatih/color's color.NoColor, which is set
// when the process's stdout is not a terminal; out itself is not
// inspected.
func (o PrettyHandlerOptions) NewPrettyHandler(out io.Writer) *PrettyHandler {
	opts := o.SlogOpts
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}

	return &PrettyHandler{
		Handler: slog.NewJSONHandler(out, opts),
		out:     out,
	}
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	level := r.Level.String() + ":"

	switch r.Level {
	case slog.LevelDebug:
		level = color.MagentaString(level)
	case slog.LevelInfo:
		level = color.BlueString(level)
	case slog.LevelWarn:
		level = color.YellowString(level)
	case slog.LevelError:
		level = color.RedString(level)
	}

	fields := make(map[string]any, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		fields[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		fields[a.Key] = a.Value.Any()
		return true
	})

	var b []byte
	if len(fields) > 0 {
		var err error
		b, err = json.MarshalIndent(fields, "", "  ")
		if err != nil {
			return err
		}
	}

	timeStr := r.Time.Format("[15:04:05.000]")
	msg := color.CyanString(r.Message)

	_, err := fmt.Fprintln(h.out, timeStr, level, msg, color.WhiteString(string(b)))
	return err
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &PrettyHandler{
		Handler: h.Handler.WithAttrs(attrs),
		out:     h.out,
		attrs:   append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	return &PrettyHandler{
		Handler: h.Handler.WithGroup(name),
		out:     h.out,
		attrs:   h.attrs,
	}
}
