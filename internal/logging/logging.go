package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/brightsteps/assistant/internal/config"
)

// Setup configures the global zerolog logger. Outside production the console
// writer is used; when a log file is configured, output is duplicated to a
// daily-rotated file.
func Setup(cfg config.LoggingConfig) error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var writers []io.Writer
	if os.Getenv("ENV") != "production" || cfg.Format == "console" {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		writers = append(writers, os.Stderr)
	}

	if cfg.File != "" {
		maxAge := time.Duration(cfg.MaxAgeDays) * 24 * time.Hour
		rotated, err := rotatelogs.New(
			cfg.File+".%Y%m%d",
			rotatelogs.WithLinkName(cfg.File),
			rotatelogs.WithRotationTime(24*time.Hour),
			rotatelogs.WithMaxAge(maxAge),
		)
		if err != nil {
			return fmt.Errorf("failed to open rotated log file: %w", err)
		}
		writers = append(writers, rotated)
	}

	if len(writers) == 1 {
		log.Logger = log.Output(writers[0])
	} else {
		log.Logger = log.Output(zerolog.MultiLevelWriter(writers...))
	}

	return nil
}
