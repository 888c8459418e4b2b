package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	easy "github.com/t-tomalak/logrus-easy-formatter"
)

const (
	FormatText = "text"
	FormatJSON = "json"

	timestampFormat = "01-02 15:04:05.000"
	textLayout      = "[%lvl%]   [%time%]   -   %msg%\n"
)

type Options struct {
	Level  string
	Format string
	Out    io.Writer
}

func New(opts Options) (*logrus.Logger, error) {
	level := logrus.InfoLevel
	if strings.TrimSpace(opts.Level) != "" {
		parsed, err := logrus.ParseLevel(strings.TrimSpace(opts.Level))
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	logger := &logrus.Logger{
		Out:   out,
		Level: level,
		Hooks: make(logrus.LevelHooks),
	}

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", FormatText:
		logger.Formatter = &easy.Formatter{
			TimestampFormat: timestampFormat,
			LogFormat:       textLayout,
		}
	case FormatJSON:
		logger.Formatter = &logrus.JSONFormatter{TimestampFormat: timestampFormat}
	default:
		return nil, fmt.Errorf("unsupported log format %q", opts.Format)
	}

	return logger, nil
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.Out = io.Discard
	logger.Level = logrus.PanicLevel
	return logger
}
