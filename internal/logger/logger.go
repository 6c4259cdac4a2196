package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// PrettyHandler 在开发环境输出带颜色的单行日志。
type PrettyHandler struct {
	w          io.Writer
	mu         *sync.Mutex
	level      slog.Level
	timeFormat string
	attrs      []slog.Attr
}

// NewPrettyHandler 构造 PrettyHandler，最低输出 Debug 级别。
func NewPrettyHandler(w io.Writer) *PrettyHandler {
	return &PrettyHandler{
		w:          w,
		mu:         &sync.Mutex{},
		level:      slog.LevelDebug,
		timeFormat: "2006-01-02 15:04:05",
	}
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	level := r.Level.String()
	switch r.Level {
	case slog.LevelDebug:
		level = "\033[36mDEBUG\033[0m"
	case slog.LevelInfo:
		level = "\033[32mINFO\033[0m"
	case slog.LevelWarn:
		level = "\033[33mWARN\033[0m"
	case slog.LevelError:
		level = "\033[31mERROR\033[0m"
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	fmt.Fprintf(h.w, "%s [%s] %s", r.Time.Format(h.timeFormat), level, r.Message)

	write := func(attr slog.Attr) bool {
		value, err := json.Marshal(attr.Value.Any())
		if err != nil {
			value = []byte(fmt.Sprintf("%q", attr.Value.String()))
		}
		fmt.Fprintf(h.w, " \033[90m%s=%s\033[0m", attr.Key, string(value))
		return true
	}
	for _, attr := range h.attrs {
		write(attr)
	}
	r.Attrs(write)

	fmt.Fprintln(h.w)
	return nil
}

func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *PrettyHandler) WithGroup(string) slog.Handler {
	return h
}

// New 根据运行环境返回 logger：development 为彩色文本，其余为 JSON。
func New(env string) *slog.Logger {
	return NewWithWriter(env, os.Stdout)
}

// NewWithWriter 与 New 相同，但允许指定输出目标。
func NewWithWriter(env string, w io.Writer) *slog.Logger {
	if env == "development" {
		return slog.New(NewPrettyHandler(w))
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
