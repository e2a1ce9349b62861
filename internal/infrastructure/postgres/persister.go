package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/pkg/retry"
)

var _ repository.Persister = (*Persister)(nil)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS ledger_collections (
	name       TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS ledger_collections_quarantine (
	id             BIGSERIAL PRIMARY KEY,
	name           TEXT NOT NULL,
	payload        TEXT NOT NULL,
	quarantined_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Options configuración del adaptador.
type Options struct {
	Policy  retry.Policy
	Logger  zerolog.Logger
	OnRetry func(collection, op string)
}

// Persister implementa repository.Persister con una fila JSONB por colección.
// Cada Save es un único UPSERT: la fila queda con el contenido anterior o el nuevo, nunca mezclado.
type Persister struct {
	pool    *pgxpool.Pool
	tx      *TxRunner
	policy  retry.Policy
	log     zerolog.Logger
	onRetry func(collection, op string)
}

// NewPersister construye el adaptador sobre un pool ya abierto (ver NewPool).
func NewPersister(pool *pgxpool.Pool, opts Options) *Persister {
	if opts.Policy.Attempts == 0 {
		opts.Policy = retry.DefaultPolicy()
	}
	return &Persister{
		pool:    pool,
		tx:      NewTxRunner(pool),
		policy:  opts.Policy,
		log:     opts.Logger.With().Str("component", "postgres").Logger(),
		onRetry: opts.OnRetry,
	}
}

// EnsureSchema crea las tablas si no existen.
func (p *Persister) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("postgres: crear esquema: %w", err)
	}
	return nil
}

func (p *Persister) Load(ctx context.Context, collection string, decode func([]byte) error) error {
	return retry.Do(ctx, p.policy, func(int) error {
		var payload []byte
		err := p.pool.QueryRow(ctx,
			`SELECT payload FROM ledger_collections WHERE name = $1`, collection,
		).Scan(&payload)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return retry.Permanent(repository.ErrCollectionMissing)
			}
			return classify(fmt.Errorf("leer %s: %w", collection, err))
		}
		if err := decode(payload); err != nil {
			return fmt.Errorf("decodificar %s: %w", collection, err)
		}
		return nil
	}, p.notify(collection, "load"))
}

func (p *Persister) Save(ctx context.Context, collection string, data []byte) error {
	err := retry.Do(ctx, p.policy, func(int) error {
		_, err := p.pool.Exec(ctx, `
			INSERT INTO ledger_collections (name, payload, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (name) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`,
			collection, string(data),
		)
		if err != nil {
			return classify(fmt.Errorf("guardar %s: %w", collection, err))
		}
		return nil
	}, p.notify(collection, "save"))
	if err != nil {
		p.log.Error().Err(err).Str("collection", collection).Msg("guardado agotó reintentos")
	}
	return err
}

// Quarantine mueve la fila ilegible a ledger_collections_quarantine en una transacción.
func (p *Persister) Quarantine(ctx context.Context, collection string) (string, error) {
	var id int64
	err := p.tx.Run(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO ledger_collections_quarantine (name, payload, quarantined_at)
			SELECT name, payload::text, $2 FROM ledger_collections WHERE name = $1
			RETURNING id`, collection, time.Now().UTC(),
		).Scan(&id)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM ledger_collections WHERE name = $1`, collection)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("postgres: cuarentena %s: %w", collection, err)
	}
	return fmt.Sprintf("ledger_collections_quarantine#%d", id), nil
}

func (p *Persister) notify(collection, op string) retry.NotifyFunc {
	return func(err error, attempt int, wait time.Duration) {
		p.log.Warn().Err(err).
			Str("collection", collection).
			Str("op", op).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("reintentando operación de persistencia")
		if p.onRetry != nil {
			p.onRetry(collection, op)
		}
	}
}

// classify corta los reintentos para errores que no son transitorios.
func classify(err error) error {
	if isTransient(err) {
		return err
	}
	return retry.Permanent(err)
}
