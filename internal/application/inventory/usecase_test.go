package inventory_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/ledger"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memstore"
	"github.com/jhoicas/stock-ledger/internal/testutil"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

var keyPL = entity.StockKey{ProductID: "P", LocationID: "L"}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (r *fakeRecorder) ObserveSubmission(kind, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = make(map[string]int)
	}
	r.outcomes[outcome]++
}

func (r *fakeRecorder) ObserveLockWait(time.Duration) {}

func (r *fakeRecorder) count(outcome string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcomes[outcome]
}

type fixture struct {
	persister *testutil.Persister
	store     *memstore.Store
	engine    *inventory.LedgerUseCase
	query     *inventory.QueryUseCase
	recorder  *fakeRecorder
}

// newFixture arma el motor sobre un almacén en memoria con el producto P ("BX-100", unit)
// y la bodega L ("Main").
func newFixture(t *testing.T, opts inventory.Options) *fixture {
	t.Helper()
	ctx := context.Background()
	p := testutil.NewPersister()
	s := memstore.New(p, zerolog.Nop())
	require.NoError(t, s.Load(ctx))
	require.NoError(t, s.CreateProduct(ctx, &entity.Product{ID: "P", SKU: "BX-100", Name: "Caja BX", UnitMeasure: "unit"}))
	require.NoError(t, s.CreateLocation(ctx, &entity.Location{ID: "L", Name: "Main"}))

	rec := &fakeRecorder{}
	opts.Recorder = rec
	opts.Logger = zerolog.Nop()
	return &fixture{
		persister: p,
		store:     s,
		engine:    inventory.NewLedgerUseCase(s, s, opts),
		query:     inventory.NewQueryUseCase(s, nil, zerolog.Nop()),
		recorder:  rec,
	}
}

func intakeReq(qty int64) ledger.Request {
	return ledger.Request{
		ProductID: "P", LocationID: "L", Kind: entity.TransactionKindIntake,
		Quantity: decimal.NewFromInt(qty), UnitMeasure: "unit", ActorID: "u1",
	}
}

func depletionReq(qty int64) ledger.Request {
	return ledger.Request{
		ProductID: "P", LocationID: "L", Kind: entity.TransactionKindDepletion,
		Quantity: decimal.NewFromInt(qty), UnitMeasure: "unit", Reason: entity.ReasonClientOrder, ActorID: "u1",
	}
}

func onHand(t *testing.T, f *fixture) decimal.Decimal {
	t.Helper()
	r, err := f.store.GetStockRecord(context.Background(), keyPL)
	require.NoError(t, err)
	require.NotNil(t, r)
	return r.QuantityOnHand
}

// ──────────────────────────────────────────────────────────────────────────────
// Escenarios del libro
// ──────────────────────────────────────────────────────────────────────────────

func TestSubmit_EntradaSalidaYRechazos(t *testing.T) {
	f := newFixture(t, inventory.Options{})
	ctx := context.Background()

	// A: entrada de 50
	res, err := f.engine.Submit(ctx, intakeReq(50))
	require.NoError(t, err)
	assert.True(t, res.Record.QuantityOnHand.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, int64(1), res.Transaction.Sequence)

	// B: salida de 20 por pedido
	_, err = f.engine.Submit(ctx, depletionReq(20))
	require.NoError(t, err)
	assert.True(t, onHand(t, f).Equal(decimal.NewFromInt(30)))
	txs, err := f.query.ListTransactions(ctx, "P", "L")
	require.NoError(t, err)
	require.Equal(t, 2, txs.Total)
	assert.Equal(t, entity.TransactionKindIntake, txs.Items[0].Kind)
	assert.Equal(t, entity.TransactionKindDepletion, txs.Items[1].Kind)

	// C: salida mayor al stock
	_, err = f.engine.Submit(ctx, depletionReq(1000))
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.True(t, onHand(t, f).Equal(decimal.NewFromInt(30)))

	// D: producto inexistente
	unknown := intakeReq(5)
	unknown.ProductID = "nope"
	_, err = f.engine.Submit(ctx, unknown)
	assert.ErrorIs(t, err, domain.ErrUnknownReference)
	r, err := f.store.GetStockRecord(ctx, entity.StockKey{ProductID: "nope", LocationID: "L"})
	require.NoError(t, err)
	assert.Nil(t, r)

	assert.Equal(t, 2, f.recorder.count("accepted"))
	assert.Equal(t, 1, f.recorder.count("insufficient_stock"))
	assert.Equal(t, 1, f.recorder.count("unknown_reference"))
}

func TestSubmit_SalidasConcurrentesNoSobrevenden(t *testing.T) {
	f := newFixture(t, inventory.Options{})
	ctx := context.Background()
	_, err := f.engine.Submit(ctx, intakeReq(30))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.Submit(ctx, depletionReq(20))
		}(i)
	}
	wg.Wait()

	accepted, rejected := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, domain.ErrInsufficientStock):
			rejected++
		default:
			t.Fatalf("error inesperado: %v", err)
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, rejected)
	assert.True(t, onHand(t, f).Equal(decimal.NewFromInt(10)))
}

func TestSubmit_MuchasSalidasConcurrentesCuadranConElLog(t *testing.T) {
	f := newFixture(t, inventory.Options{LockTimeout: 5 * time.Second, SubmitTimeout: 10 * time.Second})
	ctx := context.Background()
	_, err := f.engine.Submit(ctx, intakeReq(30))
	require.NoError(t, err)

	const workers = 50
	var accepted, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Submit(ctx, depletionReq(1))
			if err == nil {
				accepted.Add(1)
			} else if errors.Is(err, domain.ErrInsufficientStock) {
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(30), accepted.Load())
	assert.Equal(t, int32(workers-30), rejected.Load())
	assert.True(t, onHand(t, f).IsZero())
	assert.Empty(t, f.store.Verify(), "el stock coincide con la proyección del log")
}

func TestSubmit_FallaDePersistenciaNoDejaEfecto(t *testing.T) {
	f := newFixture(t, inventory.Options{})
	ctx := context.Background()
	_, err := f.engine.Submit(ctx, intakeReq(30))
	require.NoError(t, err)
	f.persister.FailSave(repository.CollectionTransactions, -1)

	_, err = f.engine.Submit(ctx, depletionReq(10))

	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.True(t, domain.IsRetryable(err))
	assert.True(t, onHand(t, f).Equal(decimal.NewFromInt(30)))
	txs, _ := f.query.ListTransactions(ctx, "P", "L")
	assert.Equal(t, 1, txs.Total)

	// recuperado el disco, el reintento se aplica una sola vez
	f.persister.FailSave(repository.CollectionTransactions, 0)
	_, err = f.engine.Submit(ctx, depletionReq(10))
	require.NoError(t, err)
	assert.True(t, onHand(t, f).Equal(decimal.NewFromInt(20)))
}

func TestSubmit_RechazoRepetidoNoCambiaEstado(t *testing.T) {
	f := newFixture(t, inventory.Options{})
	ctx := context.Background()
	_, err := f.engine.Submit(ctx, intakeReq(5))
	require.NoError(t, err)
	version := f.store.Version()

	for i := 0; i < 3; i++ {
		_, err := f.engine.Submit(ctx, depletionReq(6))
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	}
	bad := depletionReq(1)
	bad.Reason = "robo"
	_, err = f.engine.Submit(ctx, bad)
	assert.ErrorIs(t, err, domain.ErrInvalidReason)

	assert.Equal(t, version, f.store.Version())
	assert.True(t, onHand(t, f).Equal(decimal.NewFromInt(5)))
}

func TestSubmit_TimeoutEsperandoElLockDelPar(t *testing.T) {
	f := newFixture(t, inventory.Options{LockTimeout: 30 * time.Millisecond})
	ctx := context.Background()

	entered := make(chan struct{})
	unblock := make(chan struct{})
	var once sync.Once
	f.persister.OnSave(func(c string) {
		if c != repository.CollectionStockRecords {
			return
		}
		once.Do(func() {
			close(entered)
			<-unblock
		})
	})

	done := make(chan error, 1)
	go func() {
		_, err := f.engine.Submit(ctx, intakeReq(10))
		done <- err
	}()
	<-entered

	_, err := f.engine.Submit(ctx, intakeReq(1))
	assert.ErrorIs(t, err, domain.ErrTimeout)

	close(unblock)
	require.NoError(t, <-done)
	assert.True(t, onHand(t, f).Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 1, f.recorder.count("timeout"))
}

func TestSubmit_ReintentoConRequestIDSeAplicaUnaVez(t *testing.T) {
	f := newFixture(t, inventory.Options{})
	ctx := context.Background()

	req := intakeReq(7)
	req.RequestID = "req-abc"
	first, err := f.engine.Submit(ctx, req)
	require.NoError(t, err)
	second, err := f.engine.Submit(ctx, req)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)
	assert.True(t, onHand(t, f).Equal(decimal.NewFromInt(7)))

	other := depletionReq(1)
	other.RequestID = "req-abc"
	_, err = f.engine.Submit(ctx, other)
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestSubmitFromRequest_UsaIdempotencyKeyDelHeader(t *testing.T) {
	f := newFixture(t, inventory.Options{})
	ctx := context.Background()
	in := dto.SubmitTransactionRequest{
		ProductID: "P", LocationID: "L", Kind: entity.TransactionKindIntake,
		Quantity: decimal.NewFromInt(3), UnitMeasure: "unit",
	}

	out, err := f.engine.SubmitFromRequest(ctx, "u1", "hdr-1", in)
	require.NoError(t, err)
	assert.Equal(t, "hdr-1", out.Transaction.RequestID)
	assert.Equal(t, "u1", out.Transaction.ActorID)
	assert.True(t, out.StockRecord.QuantityOnHand.Equal(decimal.NewFromInt(3)))

	again, err := f.engine.SubmitFromRequest(ctx, "u1", "hdr-1", in)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
}

// ──────────────────────────────────────────────────────────────────────────────
// Punto de reorden
// ──────────────────────────────────────────────────────────────────────────────

func TestSetReorderThreshold(t *testing.T) {
	f := newFixture(t, inventory.Options{})
	ctx := context.Background()

	_, err := f.engine.SetReorderThreshold(ctx, keyPL, decimal.NewFromInt(5))
	assert.ErrorIs(t, err, domain.ErrNotFound, "el par aún no tiene registro")

	_, err = f.engine.Submit(ctx, intakeReq(8))
	require.NoError(t, err)

	_, err = f.engine.SetReorderThreshold(ctx, keyPL, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	rec, err := f.engine.SetReorderThreshold(ctx, keyPL, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.True(t, rec.IsLowStock())
	assert.True(t, rec.QuantityOnHand.Equal(decimal.NewFromInt(8)), "no toca la cantidad")

	low, err := f.query.ListStock(ctx, dto.StockQuery{LowStockOnly: true})
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "BX-100", low[0].SKU)
}

// ──────────────────────────────────────────────────────────────────────────────
// Locks por llave
// ──────────────────────────────────────────────────────────────────────────────

func TestKeyLocker_LlavesIndependientesYLimpieza(t *testing.T) {
	l := inventory.NewKeyLocker()
	ctx := context.Background()

	releaseA, err := l.Lock(ctx, "a")
	require.NoError(t, err)
	releaseB, err := l.Lock(ctx, "b")
	require.NoError(t, err, "otra llave no espera")

	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = l.Lock(short, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	releaseA()
	releaseA() // idempotente
	releaseB()
	assert.Zero(t, l.Len())
}
