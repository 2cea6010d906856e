package callms

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Logger receives the dispatcher's boundary diagnostics. Keys and values
// alternate in keysAndValues.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// SimpleLogger writes leveled single-line output through the standard log
// package. Good enough for development; production services usually plug in
// their zerolog sink instead.
type SimpleLogger struct {
	logger *log.Logger
}

// NewSimpleLogger returns a console logger writing to stderr.
func NewSimpleLogger() *SimpleLogger {
	return &SimpleLogger{logger: log.New(os.Stderr, "callms ", log.LstdFlags|log.Lmsgprefix)}
}

func (l *SimpleLogger) Debug(msg string, keysAndValues ...any) { l.print("DEBUG", msg, keysAndValues) }
func (l *SimpleLogger) Info(msg string, keysAndValues ...any)  { l.print("INFO", msg, keysAndValues) }
func (l *SimpleLogger) Warn(msg string, keysAndValues ...any)  { l.print("WARN", msg, keysAndValues) }
func (l *SimpleLogger) Error(msg string, keysAndValues ...any) { l.print("ERROR", msg, keysAndValues) }

func (l *SimpleLogger) print(level, msg string, keysAndValues []any) {
	var b strings.Builder
	b.WriteString(level)
	b.WriteByte(' ')
	b.WriteString(msg)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fmt.Fprintf(&b, " %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	if len(keysAndValues)%2 == 1 {
		fmt.Fprintf(&b, " %v", keysAndValues[len(keysAndValues)-1])
	}
	l.logger.Print(b.String())
}

// zerologLogger adapts a zerolog.Logger so services already on zerolog can
// route dispatcher diagnostics into their own sink.
type zerologLogger struct {
	l zerolog.Logger
}

// NewZerologLogger wraps l as a Logger.
func NewZerologLogger(l zerolog.Logger) Logger {
	return &zerologLogger{l: l}
}

func (z *zerologLogger) Debug(msg string, keysAndValues ...any) {
	z.emit(z.l.Debug(), msg, keysAndValues)
}

func (z *zerologLogger) Info(msg string, keysAndValues ...any) {
	z.emit(z.l.Info(), msg, keysAndValues)
}

func (z *zerologLogger) Warn(msg string, keysAndValues ...any) {
	z.emit(z.l.Warn(), msg, keysAndValues)
}

func (z *zerologLogger) Error(msg string, keysAndValues ...any) {
	z.emit(z.l.Error(), msg, keysAndValues)
}

func (z *zerologLogger) emit(ev *zerolog.Event, msg string, keysAndValues []any) {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		ev = ev.Interface(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1])
	}
	ev.Msg(msg)
}

// DebugConfig controls which boundary events are logged and how request IDs
// are generated. Enabled gates everything; the Log fields pick event classes.
type DebugConfig struct {
	Enabled      bool
	LogRequests  bool
	LogRetries   bool
	LogRoutes    bool
	LogRateLimit bool
	LogCircuit   bool

	// RequestIDGen mints the ID that ties one dispatch's log lines together.
	RequestIDGen func() string
}

// DefaultDebugConfig returns a config with every event class selected but
// logging itself off; WithDebug switches it on.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:      false,
		LogRequests:  true,
		LogRetries:   true,
		LogRoutes:    true,
		LogRateLimit: true,
		LogCircuit:   true,
		RequestIDGen: func() string { return uuid.NewString() },
	}
}
