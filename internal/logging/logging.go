// Package logging implements the runner's structured logger (C13): level
// filtered, text-or-JSON, component tagged, everything on stderr so the
// child process's stdout/stderr streams stay clean for the caller.
//
// Grounded in the zap usage pattern under _examples/knative-pkg/logging
// (the pack's only real structured-logging dependency): zap supplies level
// gating and the Core/Entry plumbing; §4.13 pins an exact line shape for
// both text and JSON modes that doesn't match zap's stock encoders, so a
// small custom zapcore.Core renders entries itself instead of using
// zapcore.NewConsoleEncoder/NewJSONEncoder verbatim.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"golang.org/x/term"
)

// Logger wraps a zap.SugaredLogger scoped to one component.
type Logger struct {
	z *zap.SugaredLogger
}

// New builds the base logger from LOG_FORMAT and LOG_LEVEL environment
// variables, defaulting format to "text" on a terminal and "json"
// otherwise (golang.org/x/term.IsTerminal), and level to "info".
func New() *Logger {
	format := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT")))
	if format == "" {
		if term.IsTerminal(int(os.Stderr.Fd())) {
			format = "text"
		} else {
			format = "json"
		}
	}
	level := parseLevel(os.Getenv("LOG_LEVEL"))
	core := &renderCore{out: os.Stderr, level: level, json: format == "json"}
	return &Logger{z: zap.New(core).Sugar()}
}

// parseLevel maps the §4.13 {debug,info,warning,error,fatal} set onto zap's
// levels (zap has no "warning" alias, only "warn").
func parseLevel(raw string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return zapcore.DebugLevel
	case "warning", "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Named returns a logger scoped to the given component name, matching the
// "[component]" tag in §4.13's text-line format.
func (l *Logger) Named(component string) *Logger {
	return &Logger{z: l.z.Desugar().Named(component).Sugar()}
}

func (l *Logger) fields(kv []any, err error) []any {
	out := append([]any{}, kv...)
	if err != nil {
		out = append(out, "error", err)
	}
	return out
}

func (l *Logger) Debug(msg string, kv ...any) { l.z.Debugw(msg, kv...) }
func (l *Logger) Info(msg string, kv ...any)  { l.z.Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...any)  { l.z.Warnw(msg, kv...) }
func (l *Logger) Error(msg string, err error, kv ...any) {
	l.z.Errorw(msg, l.fields(kv, err)...)
}
func (l *Logger) Fatal(msg string, err error, kv ...any) {
	l.z.Fatalw(msg, l.fields(kv, err)...)
}

func (l *Logger) Sync() error { return l.z.Sync() }

// renderCore is a minimal zapcore.Core rendering the exact §4.13 line
// shapes. It ignores zap's encoder abstraction entirely: text mode writes
// "<rfc3339-utc> [LEVEL] [component] message k=v k=v error=Type: msg" and
// json mode writes one object per line with timestamp/level/component/
// message/fields/error.
type renderCore struct {
	out   *os.File
	level zapcore.Level
	json  bool
	name  string
	kv    []zapcore.Field
}

func (c *renderCore) Enabled(lvl zapcore.Level) bool { return lvl >= c.level }

func (c *renderCore) With(fields []zapcore.Field) zapcore.Core {
	next := *c
	next.kv = append(append([]zapcore.Field{}, c.kv...), fields...)
	return &next
}

func (c *renderCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c *renderCore) Write(e zapcore.Entry, fields []zapcore.Field) error {
	all := append(append([]zapcore.Field{}, c.kv...), fields...)
	component := e.LoggerName

	var errField *zapcore.Field
	kv := make([]zapcore.Field, 0, len(all))
	for i := range all {
		if all[i].Key == "error" {
			f := all[i]
			errField = &f
			continue
		}
		kv = append(kv, all[i])
	}

	var line string
	if c.json {
		line = c.renderJSON(e, component, kv, errField)
	} else {
		line = c.renderText(e, component, kv, errField)
	}
	_, err := fmt.Fprintln(c.out, line)
	return err
}

func (c *renderCore) Sync() error { return c.out.Sync() }

func (c *renderCore) renderText(e zapcore.Entry, component string, kv []zapcore.Field, errField *zapcore.Field) string {
	var b strings.Builder
	b.WriteString(e.Time.UTC().Format(time.RFC3339))
	b.WriteString(" [")
	b.WriteString(strings.ToUpper(e.Level.String()))
	b.WriteString("] ")
	if component != "" {
		b.WriteString("[")
		b.WriteString(component)
		b.WriteString("] ")
	}
	b.WriteString(e.Message)
	for _, f := range kv {
		fmt.Fprintf(&b, " %s=%v", f.Key, fieldValue(f))
	}
	if errField != nil {
		v := fieldValue(*errField)
		b.WriteString(fmt.Sprintf(" error=%T: %v", v, v))
	}
	return b.String()
}

type jsonLine struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
	Error     *jsonError     `json:"error,omitempty"`
}

type jsonError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (c *renderCore) renderJSON(e zapcore.Entry, component string, kv []zapcore.Field, errField *zapcore.Field) string {
	line := jsonLine{
		Timestamp: e.Time.UTC().Format(time.RFC3339),
		Level:     e.Level.String(),
		Component: component,
		Message:   e.Message,
	}
	if len(kv) > 0 {
		line.Fields = map[string]any{}
		for _, f := range kv {
			line.Fields[f.Key] = fieldValue(f)
		}
	}
	if errField != nil {
		v := fieldValue(*errField)
		line.Error = &jsonError{Type: fmt.Sprintf("%T", v), Message: fmt.Sprintf("%v", v)}
	}
	out, err := json.Marshal(line)
	if err != nil {
		return fmt.Sprintf(`{"timestamp":%q,"level":"error","message":"log marshal failed: %v"}`, line.Timestamp, err)
	}
	return string(out)
}

func fieldValue(f zapcore.Field) any {
	switch f.Type {
	case zapcore.StringType:
		return f.String
	case zapcore.ErrorType:
		if f.Interface != nil {
			if err, ok := f.Interface.(error); ok {
				return err
			}
		}
		return f.Interface
	default:
		if f.Interface != nil {
			return f.Interface
		}
		return f.Integer
	}
}
