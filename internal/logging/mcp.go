package logging

import (
	"log/slog"
)

// SetupServeMode installs a file-only logger for the MCP stdio server.
// stdout carries JSON-RPC exclusively and stderr is often captured by the
// client, so nothing is mirrored there.
func SetupServeMode(cfg Config) (func(), error) {
	if cfg.FilePath == "" {
		cfg.FilePath = DefaultLogPath()
	}
	cfg.WriteToStderr = false

	cleanup, err := SetupDefault(cfg)
	if err != nil {
		return nil, err
	}

	slog.Info("serve_logging_initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level))
	return cleanup, nil
}
