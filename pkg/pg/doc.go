// Package pg wires the pgx/v5 driver into the service: pooled connections
// with startup retries, goose schema migrations bridged through database/sql,
// a health probe for the HTTP health endpoint, and error classification
// helpers used by the stores.
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
//		return err
//	}
package pg
