// Copyright 2025 Taskforge Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package applog provides the process-wide structured logger. Output is
// colorized when writing to a terminal, and supports two formats: "simple"
// (level + message + attrs) and "verbose" (timestamp + level + message + attrs).
package applog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

var defaultLogger *slog.Logger

// ParseLevel converts a string log level to slog.Level. Unknown values fall
// back to Warn rather than erroring, since a misconfigured level should not
// prevent startup.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, nil
	}
}

func getLevelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "\033[31m"
	case level >= slog.LevelWarn:
		return "\033[33m"
	case level >= slog.LevelInfo:
		return "\033[36m"
	default:
		return "\033[90m"
	}
}

func isTerminal(file *os.File) bool {
	if fileInfo, err := file.Stat(); err == nil {
		return (fileInfo.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

// coloredTextHandler formats records directly rather than delegating to
// slog.TextHandler, so it can inject ANSI color codes around the level.
type coloredTextHandler struct {
	handler slog.Handler
	writer  io.Writer
	simple  bool
	attrs   []slog.Attr
}

func (h *coloredTextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *coloredTextHandler) Handle(ctx context.Context, record slog.Record) error {
	colorCode := getLevelColor(record.Level)
	resetCode := "\033[0m"

	var buf strings.Builder
	if !h.simple && !record.Time.IsZero() {
		buf.WriteString(record.Time.Format("2006/01/02 15:04:05 "))
	}

	levelStr := normalizeLevel(record.Level)
	buf.WriteString(colorCode)
	buf.WriteString(levelStr)
	buf.WriteString(resetCode)
	buf.WriteString(" ")
	buf.WriteString(record.Message)

	for _, a := range h.attrs {
		buf.WriteString(" " + a.Key + "=" + a.Value.String())
	}
	record.Attrs(func(a slog.Attr) bool {
		buf.WriteString(" ")
		buf.WriteString(a.Key)
		buf.WriteString("=")
		buf.WriteString(a.Value.String())
		return true
	})
	buf.WriteString("\n")

	_, err := h.writer.Write([]byte(buf.String()))
	return err
}

func (h *coloredTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &coloredTextHandler{handler: h.handler.WithAttrs(attrs), writer: h.writer, simple: h.simple, attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...)}
}

func (h *coloredTextHandler) WithGroup(name string) slog.Handler {
	return &coloredTextHandler{handler: h.handler.WithGroup(name), writer: h.writer, simple: h.simple, attrs: h.attrs}
}

// plainTextHandler is coloredTextHandler without the ANSI codes, used for
// non-terminal output so log files stay grep-friendly.
type plainTextHandler struct {
	handler slog.Handler
	writer  io.Writer
	simple  bool
	attrs   []slog.Attr
}

func (h *plainTextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *plainTextHandler) Handle(ctx context.Context, record slog.Record) error {
	var buf strings.Builder
	if !h.simple && !record.Time.IsZero() {
		buf.WriteString(record.Time.Format("2006/01/02 15:04:05 "))
	}
	buf.WriteString(normalizeLevel(record.Level))
	buf.WriteString(" ")
	buf.WriteString(record.Message)

	for _, a := range h.attrs {
		buf.WriteString(" " + a.Key + "=" + a.Value.String())
	}
	record.Attrs(func(a slog.Attr) bool {
		buf.WriteString(" ")
		buf.WriteString(a.Key)
		buf.WriteString("=")
		buf.WriteString(a.Value.String())
		return true
	})
	buf.WriteString("\n")

	_, err := h.writer.Write([]byte(buf.String()))
	return err
}

func (h *plainTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &plainTextHandler{handler: h.handler.WithAttrs(attrs), writer: h.writer, simple: h.simple, attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...)}
}

func (h *plainTextHandler) WithGroup(name string) slog.Handler {
	return &plainTextHandler{handler: h.handler.WithGroup(name), writer: h.writer, simple: h.simple, attrs: h.attrs}
}

func normalizeLevel(level slog.Level) string {
	s := level.String()
	if s == "WARNING" {
		s = "WARN"
	}
	return strings.ToUpper(s)
}

// Init establishes the process-wide logger and installs it as slog's default,
// so every package's plain slog.Info/Warn/Error calls route through it.
// format is "simple" (default), "verbose", or any other value (falls back to
// the standard slog.TextHandler layout).
func Init(level slog.Level, output *os.File, format string) {
	simple := format == "simple" || format == ""
	verbose := format == "verbose"

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && a.Value.String() == "WARNING" {
				return slog.String("level", "WARN")
			}
			return a
		},
	}

	baseHandler := slog.NewTextHandler(output, opts)

	var handler slog.Handler = baseHandler
	if simple || verbose {
		if isTerminal(output) {
			handler = &coloredTextHandler{handler: baseHandler, writer: output, simple: simple}
		} else {
			handler = &plainTextHandler{handler: baseHandler, writer: output, simple: simple}
		}
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// OpenLogFile opens or creates a log file for append, returning a cleanup
// closure the caller should defer.
func OpenLogFile(path string) (*os.File, func(), error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return file, func() { file.Close() }, nil
}

// Get returns the process logger, initializing a sane default (info level,
// simple format, stderr) if Init has not yet been called.
func Get() *slog.Logger {
	if defaultLogger == nil {
		Init(slog.LevelInfo, os.Stderr, "simple")
	}
	return defaultLogger
}
