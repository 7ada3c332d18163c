package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/knowledge-engine/recommender/internal/config"
)

// New builds the process logger and returns an entry tagged with service
func New(cfg config.LogConfig, service string) (*logrus.Entry, error) {
	return newLogger(cfg, service, os.Stderr)
}

func newLogger(cfg config.LogConfig, service string, out io.Writer) (*logrus.Entry, error) {
	logger := logrus.New()
	logger.SetOutput(out)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(level)

	return logger.WithField("service", service), nil
}
