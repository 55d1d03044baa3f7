// Package logger builds configured slog loggers and provides attribute
// helpers that keep log keys consistent across the service.
//
// Production defaults are JSON output at INFO level. The Config struct can be
// filled from the environment with pkg/config:
//
//	var cfg logger.Config
//	config.MustLoad(&cfg)
//	log := logger.NewFromConfig(cfg, logger.WithService("reelvault"))
package logger
