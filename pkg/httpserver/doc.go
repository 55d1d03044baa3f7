// Package httpserver wraps net/http with graceful shutdown, OS signal
// handling and environment-driven timeouts, plus a health probe handler.
//
//	var cfg httpserver.Config
//	config.MustLoad(&cfg)
//
//	srv := httpserver.New(cfg, log)
//	if err := srv.Run(ctx, router); err != nil {
//		log.Error("server exited", logger.Error(err))
//	}
package httpserver
