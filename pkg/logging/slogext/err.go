package slogext

import "log/slog"

// Err formats an error as a slog attribute under the conventional "error" key.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}
