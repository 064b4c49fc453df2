package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

// RegisterLoggingFlags adds the persistent logging flags shared by every
// subcommand.
func RegisterLoggingFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("loglevel", "warn", "set the log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("logformat", "text", "set the log format (text, json)")
}

// GetBaseLogger builds the process logger from the logging flags. Logs go
// to stderr so JSON command output on stdout stays machine-readable.
func GetBaseLogger(cmd *cobra.Command) (*slog.Logger, error) {
	level, err := GetLoggerLevel(cmd)
	if err != nil {
		return nil, err
	}
	format := cmd.Flag("logformat").Value.String()
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
			Level: level,
		})
	case "text":
		handler = slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
			Level: level,
		})
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
	return slog.New(handler), nil
}

// GetLoggerLevel parses the loglevel flag.
func GetLoggerLevel(cmd *cobra.Command) (slog.Level, error) {
	var level slog.Level
	switch name := cmd.Flag("loglevel").Value.String(); name {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return slog.LevelWarn, fmt.Errorf("invalid log level: %s", name)
	}
	return level, nil
}
