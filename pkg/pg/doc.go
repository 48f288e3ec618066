// Package pg bootstraps the PostgreSQL layer: pgx/v5 connection pooling
// with startup retries, goose schema migrations, a health probe, and
// SQLSTATE error classifiers used by the storage code.
//
// # Usage
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
//	    return err
//	}
//
// # Error Handling
//
// The classifiers IsNotFoundError, IsDuplicateKeyError,
// IsForeignKeyViolationError and IsSerializationFailure unwrap pgx and
// *pgconn.PgError values so business logic never matches on SQLSTATE
// strings directly. Duplicate-key and serialization failures are how
// concurrent writers detect that they lost a race and must re-read
// before retrying.
package pg
