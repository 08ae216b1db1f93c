// ABOUTME: Root logger construction for the famlink server
// ABOUTME: JSON output for machines, a colorized handler for terminals

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/2389/famlink/internal/config"
)

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	level := parseLevel(cfg.Level)

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = newColorHandler(os.Stdout, level)
	}

	return slog.New(handler)
}

// colorHandler writes colorized single-line records for terminals.
// Handlers derived through WithAttrs and WithGroup share the writer lock.
type colorHandler struct {
	mu     *sync.Mutex
	out    io.Writer
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func newColorHandler(out io.Writer, level slog.Level) *colorHandler {
	return &colorHandler{mu: &sync.Mutex{}, out: out, level: level}
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

type levelTag struct {
	text  string
	paint func(format string, a ...interface{}) string
}

var levelTags = map[slog.Level]levelTag{
	slog.LevelDebug: {"DBG", color.MagentaString},
	slog.LevelInfo:  {"INF", color.CyanString},
	slog.LevelWarn:  {"WRN", color.YellowString},
	slog.LevelError: {"ERR", color.New(color.FgRed, color.Bold).Sprintf},
}

// Handle writes one line: time, level, [component], message, then key=value
// pairs. The component attribute is lifted out of the pairs.
func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var component string
	var pairs strings.Builder

	write := func(key string, v slog.Value) {
		if key == "component" && component == "" {
			component = v.String()
			return
		}
		val := v.String()
		if strings.ContainsAny(val, " \t\"") {
			val = strconv.Quote(val)
		}
		pairs.WriteString(color.HiBlackString(" " + key + "="))
		pairs.WriteString(val)
	}

	for _, a := range h.attrs {
		write(a.Key, a.Value.Resolve())
	}
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	r.Attrs(func(a slog.Attr) bool {
		write(prefix+a.Key, a.Value.Resolve())
		return true
	})

	tag, known := levelTags[r.Level]
	if !known {
		tag = levelTag{text: "???", paint: fmt.Sprintf}
	}

	var line strings.Builder
	line.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))
	line.WriteString(tag.paint("%s ", tag.text))
	if component != "" {
		line.WriteString(color.BlueString("[" + component + "] "))
	}
	line.WriteString(r.Message)
	line.WriteString(pairs.String())
	line.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, line.String())
	return err
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	for _, a := range attrs {
		if len(h.groups) > 0 {
			a.Key = strings.Join(h.groups, ".") + "." + a.Key
		}
		newAttrs = append(newAttrs, a)
	}
	return &colorHandler{
		mu:     h.mu,
		out:    h.out,
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		mu:     h.mu,
		out:    h.out,
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
