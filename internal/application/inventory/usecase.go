package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/ledger"
)

// Valores por defecto de los límites de espera.
const (
	DefaultLockTimeout   = 2 * time.Second
	DefaultSubmitTimeout = 5 * time.Second
)

// Options configuración del motor.
type Options struct {
	LockTimeout   time.Duration // espera máxima por el lock del par
	SubmitTimeout time.Duration // duración máxima de una solicitud completa
	Recorder      Recorder
	Logger        zerolog.Logger
	Now           func() time.Time
	NewID         func() string
}

// LedgerUseCase es el motor del libro de inventario: acepta o rechaza transacciones de
// entrada/salida, una a la vez por par producto/bodega, y deja el cambio durable antes de
// confirmarlo al llamador.
type LedgerUseCase struct {
	catalog Catalog
	store   LedgerStore
	locks   *KeyLocker
	opts    Options
	tracer  trace.Tracer
}

// SubmitResult resultado de una transacción aceptada.
type SubmitResult struct {
	Transaction *entity.Transaction
	Record      *entity.StockRecord
	Replayed    bool
}

// NewLedgerUseCase construye el motor.
func NewLedgerUseCase(catalog Catalog, store LedgerStore, opts Options) *LedgerUseCase {
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = DefaultSubmitTimeout
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &LedgerUseCase{
		catalog: catalog,
		store:   store,
		locks:   NewKeyLocker(),
		opts:    opts,
		tracer:  otel.Tracer("github.com/jhoicas/stock-ledger/inventory"),
	}
}

// Submit valida y aplica una transacción:
//  1. toma el lock del par (acotado por LockTimeout)
//  2. valida contra el StockRecord actual, en el orden de rechazos del libro
//  3. confirma registro + log en el almacén (persistir, luego publicar)
//
// Un rechazo no tiene efecto. ErrTimeout y ErrPersistence tampoco: el estado queda
// como si no se hubiera llamado y el cliente puede reintentar (idealmente con RequestID).
func (uc *LedgerUseCase) Submit(ctx context.Context, req ledger.Request) (res *SubmitResult, err error) {
	start := time.Now()
	ctx, span := uc.tracer.Start(ctx, "ledger.Submit", trace.WithAttributes(
		attribute.String("ledger.product_id", req.ProductID),
		attribute.String("ledger.location_id", req.LocationID),
		attribute.String("ledger.kind", req.Kind),
	))
	defer func() {
		outcome := outcomeOf(err)
		if res != nil && res.Replayed {
			outcome = "replayed"
		}
		uc.opts.Recorder.ObserveSubmission(req.Kind, outcome, time.Since(start))
		span.SetAttributes(attribute.String("ledger.outcome", outcome))
		if err != nil && !domain.IsRejection(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
	}()

	ctx, cancel := context.WithTimeout(ctx, uc.opts.SubmitTimeout)
	defer cancel()

	release, err := uc.lock(ctx, req.Key())
	if err != nil {
		return nil, err
	}
	defer release()

	if req.RequestID != "" {
		if prev, rerr := uc.replay(ctx, req); prev != nil || rerr != nil {
			return prev, rerr
		}
	}

	product, err := uc.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	location, err := uc.catalog.GetLocation(ctx, req.LocationID)
	if err != nil {
		return nil, err
	}
	current, err := uc.store.GetStockRecord(ctx, req.Key())
	if err != nil {
		return nil, err
	}
	if err := ledger.Validate(product, location, current, req); err != nil {
		uc.opts.Logger.Debug().
			Err(err).
			Str("key", req.Key().String()).
			Str("kind", req.Kind).
			Str("quantity", req.Quantity.String()).
			Msg("transacción rechazada")
		return nil, err
	}

	now := uc.opts.Now()
	next := ledger.Apply(current, req, now, uc.opts.NewID)
	tx := ledger.NewTransaction(req, uc.opts.NewID(), now)
	if err := uc.store.CommitTransaction(ctx, next, tx); err != nil {
		err = classify(ctx, err)
		uc.opts.Logger.Error().Err(err).Str("key", req.Key().String()).Msg("no se pudo confirmar la transacción")
		return nil, err
	}

	uc.opts.Logger.Info().
		Str("transaction_id", tx.ID).
		Int64("sequence", tx.Sequence).
		Str("key", req.Key().String()).
		Str("kind", tx.Kind).
		Str("quantity", tx.Quantity.String()).
		Str("on_hand", next.QuantityOnHand.String()).
		Str("actor", tx.ActorID).
		Msg("transacción aceptada")
	return &SubmitResult{Transaction: tx, Record: next}, nil
}

// replay devuelve la transacción ya aplicada con el mismo RequestID, si existe.
func (uc *LedgerUseCase) replay(ctx context.Context, req ledger.Request) (*SubmitResult, error) {
	prev, err := uc.store.FindByRequestID(ctx, req.RequestID)
	if err != nil || prev == nil {
		return nil, err
	}
	if prev.Key() != req.Key() || prev.Kind != req.Kind || !prev.Quantity.Equal(req.Quantity) {
		return nil, fmt.Errorf("%w: request_id %s ya se usó con otra transacción", domain.ErrDuplicate, req.RequestID)
	}
	record, err := uc.store.GetStockRecord(ctx, req.Key())
	if err != nil {
		return nil, err
	}
	return &SubmitResult{Transaction: prev, Record: record, Replayed: true}, nil
}

// SetReorderThreshold cambia el punto de reorden de un par existente. Usa el mismo lock
// que Submit para no pisar una transacción en curso.
func (uc *LedgerUseCase) SetReorderThreshold(ctx context.Context, key entity.StockKey, threshold decimal.Decimal) (*entity.StockRecord, error) {
	if threshold.IsNegative() || !threshold.Equal(threshold.Truncate(ledger.QuantityScale)) {
		return nil, domain.ErrInvalidInput
	}
	ctx, cancel := context.WithTimeout(ctx, uc.opts.SubmitTimeout)
	defer cancel()

	release, err := uc.lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := uc.store.GetStockRecord(ctx, key)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, domain.ErrNotFound
	}
	next := current.Clone()
	next.ReorderThreshold = threshold
	next.UpdatedAt = uc.opts.Now()
	if err := uc.store.SaveStockRecord(ctx, next); err != nil {
		return nil, classify(ctx, err)
	}
	uc.opts.Logger.Info().
		Str("key", key.String()).
		Str("threshold", threshold.String()).
		Msg("punto de reorden actualizado")
	return next, nil
}

func (uc *LedgerUseCase) lock(ctx context.Context, key entity.StockKey) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, uc.opts.LockTimeout)
	defer cancel()
	waitStart := time.Now()
	release, err := uc.locks.Lock(lockCtx, key.String())
	uc.opts.Recorder.ObserveLockWait(time.Since(waitStart))
	if err != nil {
		return nil, fmt.Errorf("%w: esperando el lock de %s: %w", domain.ErrTimeout, key, err)
	}
	return release, nil
}

// classify traduce fallas del almacén a ErrTimeout o ErrPersistence.
func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrTimeout),
		errors.Is(err, domain.ErrPersistence),
		domain.IsRejection(err),
		errors.Is(err, domain.ErrDuplicate),
		errors.Is(err, domain.ErrNotFound):
		return err
	case ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
}

// outcomeOf etiqueta de métrica para el resultado de Submit.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, domain.ErrUnknownReference):
		return "unknown_reference"
	case errors.Is(err, domain.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, domain.ErrUnitMismatch):
		return "unit_mismatch"
	case errors.Is(err, domain.ErrInvalidReason):
		return "invalid_reason"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrPersistence):
		return "persistence_error"
	case errors.Is(err, domain.ErrDuplicate):
		return "duplicate"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	}
	return "error"
}
