package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var root = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime}).
	Level(zerolog.InfoLevel).
	With().
	Timestamp().
	Logger()

// Init configures the process-wide logger. format is "console" or "json";
// an unknown level falls back to info.
func Init(level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime}
	if strings.EqualFold(format, "json") {
		out = os.Stderr
	}

	root = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// SetOutput redirects all loggers created afterwards to w.
func SetOutput(w io.Writer) {
	root = root.Output(w)
}

// Logger provides structured logging for one component
type Logger struct {
	component string
	zl        zerolog.Logger
}

// New creates a new logger for a specific component
func New(component string) *Logger {
	return &Logger{
		component: component,
		zl:        root.With().Str("component", component).Logger(),
	}
}

// GenerateID creates a short unique identifier for request/operation tracing
func GenerateID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// WithID returns a child logger that tags every entry with an operation id
func (l *Logger) WithID(id string) *Logger {
	return &Logger{
		component: l.component,
		zl:        l.zl.With().Str("id", id).Logger(),
	}
}

func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }

func (l *Logger) Info() *zerolog.Event { return l.zl.Info() }

func (l *Logger) Warn() *zerolog.Event { return l.zl.Warn() }

func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }
