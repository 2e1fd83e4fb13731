// Package log implements the structured, leveled, colorized logging used
// throughout gsection, in the geth-family idiom the teacher repo calls
// through its (unvendored, in this pack) "log" package: level methods
// taking a message plus alternating key/value pairs, and named child
// loggers created with New.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Level is a logging severity.
type Level int

const (
	LevelCrit Level = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

func (l Level) String() string {
	switch l {
	case LevelCrit:
		return "CRIT"
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	case LevelTrace:
		return "TRACE"
	default:
		return "UNKNOWN"
	}
}

var levelColor = map[Level]int{
	LevelCrit:  35, // magenta
	LevelError: 31, // red
	LevelWarn:  33, // yellow
	LevelInfo:  32, // green
	LevelDebug: 36, // cyan
	LevelTrace: 90, // grey
}

// Logger is a named, leveled logger carrying a fixed set of context
// key/value pairs inherited by every call and by any child created with
// New.
type Logger struct {
	name string
	ctx  []interface{}
}

var (
	mu          sync.Mutex
	out         io.Writer
	minLevel    = LevelInfo
	useColor    bool
	defaultOnce sync.Once
)

func initDefault() {
	defaultOnce.Do(func() {
		if isatty.IsTerminal(os.Stderr.Fd()) {
			out = colorable.NewColorable(os.Stderr)
			useColor = true
		} else {
			out = os.Stderr
		}
	})
}

// SetOutput redirects all logging to w, disabling color (callers that want
// colorized terminal output should leave the default in place).
func SetOutput(w io.Writer) {
	initDefault()
	mu.Lock()
	defer mu.Unlock()
	out = w
	useColor = false
}

// SetLevel sets the minimum level that will be emitted.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	minLevel = l
}

// New creates a named child logger. ctx must be an even-length list of
// alternating string keys and values; it is appended to every record this
// logger (and loggers derived from it) emits.
func New(name string, ctx ...interface{}) *Logger {
	return &Logger{name: name, ctx: ctx}
}

// Root is the default, unnamed logger used by the package-level helpers.
var Root = New("")

func (lg *Logger) with(extra []interface{}) []interface{} {
	if len(lg.ctx) == 0 {
		return extra
	}
	out := make([]interface{}, 0, len(lg.ctx)+len(extra))
	out = append(out, lg.ctx...)
	out = append(out, extra...)
	return out
}

func (lg *Logger) log(level Level, msg string, ctx []interface{}) {
	initDefault()

	mu.Lock()
	defer mu.Unlock()

	if level > minLevel {
		return
	}

	var b strings.Builder
	ts := time.Now().Format("2006-01-02T15:04:05.000Z07:00")

	if useColor {
		fmt.Fprintf(&b, "\x1b[%dm%-5s\x1b[0m[%s] ", levelColor[level], level, ts)
	} else {
		fmt.Fprintf(&b, "%-5s[%s] ", level, ts)
	}
	if lg.name != "" {
		fmt.Fprintf(&b, "(%s) ", lg.name)
	}
	b.WriteString(msg)

	full := lg.with(ctx)
	for i := 0; i+1 < len(full); i += 2 {
		key := fmt.Sprint(full[i])
		val := full[i+1]
		b.WriteByte(' ')
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(formatValue(val))
	}
	if len(full)%2 == 1 {
		b.WriteString(" !MISSING-VALUE!")
	}

	if level <= LevelWarn {
		b.WriteString(" caller=")
		b.WriteString(callerOf(3))
	}

	b.WriteByte('\n')
	_, _ = io.WriteString(out, b.String())
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case string:
		if strings.ContainsAny(x, " \t\"=") {
			return fmt.Sprintf("%q", x)
		}
		return x
	case error:
		return fmt.Sprintf("%q", x.Error())
	case fmt.Stringer:
		return x.String()
	default:
		switch v.(type) {
		case int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64, bool:
			return fmt.Sprint(v)
		}
		return spew.Sdump(v)
	}
}

func callerOf(skip int) string {
	frames := stack.Trace().TrimBelow(stack.Caller(skip)).TrimRuntime()
	if len(frames) == 0 {
		return "unknown"
	}
	return fmt.Sprintf("%+v", frames[0])
}

func (lg *Logger) Trace(msg string, ctx ...interface{}) { lg.log(LevelTrace, msg, ctx) }
func (lg *Logger) Debug(msg string, ctx ...interface{}) { lg.log(LevelDebug, msg, ctx) }
func (lg *Logger) Info(msg string, ctx ...interface{})  { lg.log(LevelInfo, msg, ctx) }
func (lg *Logger) Warn(msg string, ctx ...interface{})  { lg.log(LevelWarn, msg, ctx) }
func (lg *Logger) Error(msg string, ctx ...interface{}) { lg.log(LevelError, msg, ctx) }
func (lg *Logger) Crit(msg string, ctx ...interface{})  { lg.log(LevelCrit, msg, ctx) }

// New returns a child logger with extra context merged in.
func (lg *Logger) New(ctx ...interface{}) *Logger {
	return &Logger{name: lg.name, ctx: lg.with(ctx)}
}

// Package-level helpers delegate to Root, matching the teacher's
// log.Info/log.Warn/log.Crit call sites.
func Trace(msg string, ctx ...interface{}) { Root.Trace(msg, ctx...) }
func Debug(msg string, ctx ...interface{}) { Root.Debug(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { Root.Info(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { Root.Warn(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { Root.Error(msg, ctx...) }
func Crit(msg string, ctx ...interface{})  { Root.Crit(msg, ctx...) }
