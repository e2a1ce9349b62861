// Package storage elige el Persister según STORAGE_DRIVER.
package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/filestore"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/retry"
)

// Open construye el Persister configurado. close libera la conexión (no-op para archivos).
// onRetry puede ser nil.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger, onRetry func(collection, op string)) (p repository.Persister, close func(), err error) {
	policy := retry.Policy{
		Attempts:  cfg.Storage.RetryAttempts,
		BaseDelay: cfg.Storage.RetryBaseDelay,
		MaxDelay:  cfg.Storage.RetryMaxDelay,
	}
	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
		}
		pg := postgres.NewPersister(pool, postgres.Options{Policy: policy, Logger: log, OnRetry: onRetry})
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("crear esquema del libro: %w", err)
		}
		return pg, pool.Close, nil
	case config.StorageDriverFile:
		fs, err := filestore.New(cfg.Storage.DataDir, filestore.Options{Policy: policy, Logger: log, OnRetry: onRetry})
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	}
	return nil, nil, fmt.Errorf("storage: driver desconocido %q", cfg.Storage.Driver)
}
