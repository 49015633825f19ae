package logger

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Logger struct {
	*logrus.Entry
}

type options struct {
	env   string
	level string
	out   io.Writer
}

// Option overrides one of the environment-driven logger settings.
type Option func(*options)

// WithEnvironment overrides ENVIRONMENT ("local" = pretty console, anything else = JSON).
func WithEnvironment(env string) Option {
	return func(o *options) { o.env = env }
}

// WithLevel overrides LOG_LEVEL.
func WithLevel(level string) Option {
	return func(o *options) { o.level = level }
}

// WithOutput redirects log output (default stdout).
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

func New(opts ...Option) *Logger {
	o := options{
		env:   os.Getenv("ENVIRONMENT"),
		level: os.Getenv("LOG_LEVEL"),
		out:   os.Stdout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	base := logrus.New()

	// Local env = pretty console; others = JSON
	if o.env == "" || o.env == "local" {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
			ForceColors:     o.out == os.Stdout,
		})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}

	base.SetOutput(o.out)
	base.SetLevel(ParseLevel(o.level))

	return &Logger{Entry: logrus.NewEntry(base)}
}

// Discard returns a logger that writes nowhere. Used by tests and library callers
// that don't want console noise.
func Discard() *Logger {
	return New(WithOutput(io.Discard), WithEnvironment("test"))
}

// ParseLevel maps LOG_LEVEL values onto logrus levels; unknown values mean info.
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Component returns a child logger tagged with the component name.
func (l *Logger) Component(name string) *Logger {
	return &Logger{Entry: l.Entry.WithField("component", name)}
}

// WithRequest attaches request metadata and returns an entry
func (l *Logger) WithRequest(r *http.Request) *logrus.Entry {
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = uuid.New().String()
	}

	return l.WithFields(logrus.Fields{
		"req_id":     reqID,
		"method":     r.Method,
		"path":       r.URL.Path,
		"remote_ip":  r.RemoteAddr,
		"user_agent": r.UserAgent(),
	})
}

// WithError standardizes error logging
func (l *Logger) WithError(err error) *logrus.Entry {
	if err == nil {
		return l.Entry
	}
	return l.Entry.WithField("error", err.Error())
}
