package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timestampFormat = "2006-01-02T15:04:05Z07:00"

type Config struct {
	Level      string
	Format     string
	Output     string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// Logger is the process-wide logrus logger. Packages log through component entries.
type Logger struct {
	log  *logrus.Logger
	file io.Closer
}

func New(cfg Config) *Logger {
	log := logrus.New()
	l := &Logger{log: log}

	toFile := cfg.Output != "" && cfg.Output != "stdout"
	if toFile {
		rotated := &lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}
		log.SetOutput(rotated)
		l.file = rotated
	} else {
		log.SetOutput(os.Stdout)
	}

	log.SetFormatter(formatter(cfg.Format, !toFile))
	log.SetLevel(parseLevel(cfg.Level))
	return l
}

func formatter(format string, colors bool) logrus.Formatter {
	if strings.EqualFold(format, "json") {
		return &logrus.JSONFormatter{TimestampFormat: timestampFormat}
	}
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: timestampFormat,
		ForceColors:     colors,
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.PanicLevel)
	return &Logger{log: log}
}

// FromLogrus wraps an existing logrus logger, e.g. one with a test hook attached.
func FromLogrus(log *logrus.Logger) *Logger {
	return &Logger{log: log}
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	}
	return logrus.InfoLevel
}

// Close flushes the rotated log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func (l *Logger) Debug(msg string) { l.log.Debug(msg) }
func (l *Logger) Info(msg string)  { l.log.Info(msg) }
func (l *Logger) Warn(msg string)  { l.log.Warn(msg) }
func (l *Logger) Error(msg string) { l.log.Error(msg) }

func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	return l.log.WithFields(fields)
}

func (l *Logger) WithError(err error) *logrus.Entry {
	return l.log.WithError(err)
}

func (l *Logger) WithComponent(component string) *logrus.Entry {
	return l.log.WithField("component", component)
}

// ForSymbol is the entry trading components log through.
func (l *Logger) ForSymbol(component, symbol string) *logrus.Entry {
	entry := l.WithComponent(component)
	if symbol != "" {
		entry = entry.WithField("symbol", symbol)
	}
	return entry
}
