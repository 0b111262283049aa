// config.go
package log

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/MatusOllah/slogcolor"
	"github.com/fatih/color"
	"github.com/sourcerie/affut/internal/pkg/config"
)

// Config describes the enabled destinations. Tests pass one explicitly,
// the agent derives it from the main configuration.
type Config struct {
	FileConfig    *LogfileConfig
	StdoutEnabled bool
	StdoutLevel   slog.Level
	StderrEnabled bool
	StderrLevel   slog.Level
	NoColor       bool
}

type LogfileConfig struct {
	Dir          string
	Prefix       string
	Level        slog.Level
	Rotate       bool
	RotatePeriod time.Duration
}

// makeConfig returns the configuration derived from the main config, or a
// sane stdout/stderr default when the main config is not initialized.
func makeConfig() *Config {
	if config.Get() == nil {
		return &Config{
			FileConfig:    nil,
			StdoutEnabled: true,
			StdoutLevel:   slog.LevelInfo,
			StderrEnabled: true,
			StderrLevel:   slog.LevelError,
		}
	}

	fileRotatePeriod, err := time.ParseDuration(config.Get().LogFileRotation)
	if err != nil && config.Get().LogFileRotation != "" {
		fileRotatePeriod = 1 * time.Hour
	}

	var logFileOutputDir string
	if logFileOutputDir = config.Get().LogFileOutputDir; logFileOutputDir == "" {
		logFileOutputDir = fmt.Sprintf("%s/logs", config.Get().JobPath)
	}

	logFilePrefix := config.Get().LogFilePrefix
	if logFilePrefix == "" {
		logFilePrefix = "affut"
	}

	var logFileConfig *LogfileConfig
	if !config.Get().NoFileLogging {
		logFileConfig = &LogfileConfig{
			Dir:          logFileOutputDir,
			Prefix:       logFilePrefix,
			Level:        parseLevel(config.Get().LogFileLevel),
			Rotate:       config.Get().LogFileRotation != "",
			RotatePeriod: fileRotatePeriod,
		}
	}

	return &Config{
		FileConfig:    logFileConfig,
		StdoutEnabled: !config.Get().NoStdoutLogging,
		StdoutLevel:   parseLevel(config.Get().StdoutLogLevel),
		StderrEnabled: !config.Get().NoStderrLogging,
		StderrLevel:   slog.LevelError,
	}
}

func parseLevel(level string) slog.Level {
	lowercaseLevel := strings.ToLower(level)
	switch lowercaseLevel {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newColorOptions(level slog.Level) *slogcolor.Options {
	return &slogcolor.Options{
		Level:       level,
		TimeFormat:  time.RFC3339,
		SrcFileMode: slogcolor.Nop,
		MsgPrefix:   color.HiWhiteString("| "),
		MsgColor:    color.New().Add(color.FgYellow),
		LevelTags:   slogcolor.DefaultLevelTags,
	}
}

func (c *Config) newHandler(out io.Writer, level slog.Level) slog.Handler {
	if c.NoColor {
		return slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	}
	return slogcolor.NewHandler(out, newColorOptions(level))
}
