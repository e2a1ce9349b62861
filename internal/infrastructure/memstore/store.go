// Package memstore es el almacén de entidades autoritativo en memoria (productos, bodegas,
// StockRecord y log de transacciones), mantenido consistente con un repository.Persister.
//
// Toda escritura pasa por un único punto de confirmación (commit): se construye la siguiente
// versión de las colecciones afectadas, se persisten y solo entonces se publican en memoria.
// Los lectores nunca ven un cambio que no haya quedado durable.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var (
	_ repository.ProductRepository     = (*Store)(nil)
	_ repository.LocationRepository    = (*Store)(nil)
	_ repository.StockRecordRepository = (*Store)(nil)
	_ repository.TransactionRepository = (*Store)(nil)
	_ repository.LedgerCommitter       = (*Store)(nil)
)

// compensateTimeout tiempo máximo de una escritura compensatoria tras un commit fallido.
const compensateTimeout = 5 * time.Second

// Store estado compartido del libro de inventario.
type Store struct {
	persister repository.Persister
	log       zerolog.Logger
	now       func() time.Time

	mu        sync.RWMutex
	products  map[string]*entity.Product
	locations map[string]*entity.Location
	records   map[string]*entity.StockRecord // por ID
	byKey     map[entity.StockKey]string     // par → ID del registro
	txs       []*entity.Transaction          // en orden de secuencia
	byRequest map[string]*entity.Transaction // request_id → transacción
	seq       int64

	commit  *semaphore.Weighted
	version atomic.Uint64
	epoch   atomic.Value // string, nuevo en cada Load

	diagMu      sync.RWMutex
	diagnostics []Diagnostic
	report      ReconcileReport
}

// Option personaliza el Store.
type Option func(*Store)

// WithClock reemplaza el reloj (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New construye un Store vacío; llamar Load antes de servir tráfico.
func New(persister repository.Persister, log zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		persister: persister,
		log:       log.With().Str("component", "memstore").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
		products:  make(map[string]*entity.Product),
		locations: make(map[string]*entity.Location),
		records:   make(map[string]*entity.StockRecord),
		byKey:     make(map[entity.StockKey]string),
		byRequest: make(map[string]*entity.Transaction),
		commit:    semaphore.NewWeighted(1),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Version cambia con cada escritura confirmada; la usa la caché de consultas.
// Solo es única dentro de una misma carga: combinarla con Epoch.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// Epoch identifica la carga actual del almacén. Cambia en cada Load, así una caché
// externa que sobrevive a un reinicio no reutiliza llaves de la carga anterior.
func (s *Store) Epoch() string {
	e, _ := s.epoch.Load().(string)
	return e
}

// Load lee las cuatro colecciones en paralelo. Una colección que no se puede leer arranca vacía,
// se aparta a cuarentena y queda como diagnóstico "degraded"; el proceso no se cae.
// Luego reconcilia los StockRecord contra el log de transacciones.
func (s *Store) Load(ctx context.Context) error {
	var (
		products  map[string]*entity.Product
		locations map[string]*entity.Location
		records   map[string]*entity.StockRecord
		txs       map[string]*entity.Transaction
	)
	targets := map[string]func([]byte) error{
		repository.CollectionProducts:     decodeInto(&products),
		repository.CollectionLocations:    decodeInto(&locations),
		repository.CollectionStockRecords: decodeInto(&records),
		repository.CollectionTransactions: decodeInto(&txs),
	}

	diags := make([]Diagnostic, len(repository.Collections))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range repository.Collections {
		g.Go(func() error {
			diags[i] = s.loadCollection(gctx, name, targets[name])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("memstore: carga cancelada: %w", err)
	}

	s.mu.Lock()
	s.products = orEmpty(products)
	s.locations = orEmpty(locations)
	s.records = orEmpty(records)
	s.byKey = make(map[entity.StockKey]string, len(s.records))
	for id, r := range s.records {
		s.byKey[r.Key()] = id
	}
	s.txs, s.byRequest, s.seq = indexTransactions(txs)
	for i := range diags {
		diags[i].Records = s.countLocked(diags[i].Collection)
	}
	s.mu.Unlock()

	s.diagMu.Lock()
	s.diagnostics = diags
	s.diagMu.Unlock()

	report := s.reconcileOnLoad(ctx, diags)
	s.diagMu.Lock()
	s.report = report
	s.diagMu.Unlock()
	s.epoch.Store(uuid.NewString())
	s.version.Add(1)
	return nil
}

func (s *Store) loadCollection(ctx context.Context, name string, decode func([]byte) error) Diagnostic {
	d := Diagnostic{Collection: name, Status: StatusLoaded}
	err := s.persister.Load(ctx, name, decode)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrCollectionMissing):
		d.Status = StatusMissing
		s.log.Info().Str("collection", name).Msg("colección inexistente, se inicia vacía")
	default:
		d.Status = StatusDegraded
		d.Error = err.Error()
		_ = decode([]byte("{}"))
		moved, qerr := s.persister.Quarantine(ctx, name)
		if qerr != nil {
			s.log.Error().Err(qerr).Str("collection", name).Msg("no se pudo apartar la colección ilegible")
		}
		d.QuarantinedTo = moved
		s.log.Error().Err(err).
			Str("collection", name).
			Str("quarantine", moved).
			Msg("colección no recuperada: se inicia VACÍA en modo degradado")
	}
	return d
}

func (s *Store) countLocked(collection string) int {
	switch collection {
	case repository.CollectionProducts:
		return len(s.products)
	case repository.CollectionLocations:
		return len(s.locations)
	case repository.CollectionStockRecords:
		return len(s.records)
	case repository.CollectionTransactions:
		return len(s.txs)
	}
	return 0
}

// acquire toma el punto de confirmación respetando el deadline del llamador.
func (s *Store) acquire(ctx context.Context) error {
	if err := s.commit.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: esperando confirmación: %w", domain.ErrTimeout, err)
	}
	if err := ctx.Err(); err != nil {
		s.commit.Release(1)
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}
	return nil
}

func (s *Store) release() {
	s.commit.Release(1)
}

// save persiste una colección y clasifica la falla como timeout o persistencia.
func (s *Store) save(ctx context.Context, collection string, data []byte) error {
	if err := s.persister.Save(ctx, collection, data); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: guardando %s: %w", domain.ErrTimeout, collection, err)
		}
		return fmt.Errorf("%w: guardando %s: %w", domain.ErrPersistence, collection, err)
	}
	return nil
}

// compensate reescribe una colección con el estado publicado (previo al commit fallido).
// Usa un contexto propio: debe correr aunque el del llamador ya haya expirado.
func (s *Store) compensate(ctx context.Context, collection string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()
	s.mu.RLock()
	data, err := s.encodeLocked(collection)
	s.mu.RUnlock()
	if err == nil {
		err = s.persister.Save(cctx, collection, data)
	}
	if err != nil {
		s.log.Error().Err(err).
			Str("collection", collection).
			Msg("escritura compensatoria fallida: el disco quedó adelantado; se corrige al reconciliar")
		return
	}
	s.log.Warn().Str("collection", collection).Msg("escritura compensatoria aplicada")
}

func (s *Store) encodeLocked(collection string) ([]byte, error) {
	switch collection {
	case repository.CollectionProducts:
		return encode(s.products)
	case repository.CollectionLocations:
		return encode(s.locations)
	case repository.CollectionStockRecords:
		return encode(s.records)
	case repository.CollectionTransactions:
		return encodeTransactions(s.txs, nil)
	}
	return nil, fmt.Errorf("memstore: colección desconocida %q", collection)
}

func (s *Store) published() {
	s.version.Add(1)
}

func orEmpty[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return make(map[K]V)
	}
	return m
}
