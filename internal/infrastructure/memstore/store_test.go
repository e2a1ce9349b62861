package memstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memstore"
	"github.com/jhoicas/stock-ledger/internal/testutil"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

var fixedNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func openStore(t *testing.T, p *testutil.Persister) *memstore.Store {
	t.Helper()
	s := memstore.New(p, zerolog.Nop(), memstore.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, s.Load(context.Background()))
	return s
}

// seedCatalog crea el producto p1 y la bodega l1.
func seedCatalog(t *testing.T, s *memstore.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.CreateProduct(ctx, &entity.Product{ID: "p1", SKU: "SKU-1", Name: "Tornillo", UnitMeasure: "unit"}))
	require.NoError(t, s.CreateLocation(ctx, &entity.Location{ID: "l1", Name: "Central"}))
}

func intake(id, recordID string, onHand, qty int64) (*entity.StockRecord, *entity.Transaction) {
	rec := &entity.StockRecord{
		ID: recordID, ProductID: "p1", LocationID: "l1",
		QuantityOnHand: decimal.NewFromInt(onHand + qty), UnitMeasure: "unit",
	}
	tx := &entity.Transaction{
		ID: id, ProductID: "p1", LocationID: "l1", Kind: entity.TransactionKindIntake,
		Quantity: decimal.NewFromInt(qty), UnitMeasure: "unit", AcceptedAt: fixedNow,
	}
	return rec, tx
}

// ──────────────────────────────────────────────────────────────────────────────
// Carga y diagnóstico
// ──────────────────────────────────────────────────────────────────────────────

func TestLoad_PrimerArranqueSinColecciones(t *testing.T) {
	s := openStore(t, testutil.NewPersister())

	diags, report := s.Diagnostics()
	require.Len(t, diags, len(repository.Collections))
	for _, d := range diags {
		assert.Equal(t, memstore.StatusMissing, d.Status, d.Collection)
	}
	assert.False(t, s.Degraded())
	assert.False(t, report.Skipped)
}

func TestLoad_ColeccionIlegibleSeApartaYArrancaDegradada(t *testing.T) {
	p := testutil.NewPersister()
	require.NoError(t, p.Seed(repository.CollectionProducts, map[string]any{}))
	p.FailLoad(repository.CollectionProducts, errors.New("json roto"))

	s := openStore(t, p)

	assert.True(t, s.Degraded())
	assert.Equal(t, []string{repository.CollectionProducts}, p.Quarantined)
	diags, _ := s.Diagnostics()
	assert.Equal(t, memstore.StatusDegraded, diags[0].Status)
	assert.Equal(t, "products.corrupt", diags[0].QuarantinedTo)

	products, err := s.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestLoad_ReconciliaRegistrosContraElLog(t *testing.T) {
	p := testutil.NewPersister()
	require.NoError(t, p.Seed(repository.CollectionProducts, map[string]*entity.Product{
		"p1": {ID: "p1", SKU: "A", Name: "A"},
		"p2": {ID: "p2", SKU: "B", Name: "B"},
	}))
	require.NoError(t, p.Seed(repository.CollectionLocations, map[string]*entity.Location{
		"l1": {ID: "l1", Name: "Central"},
	}))
	require.NoError(t, p.Seed(repository.CollectionStockRecords, map[string]*entity.StockRecord{
		// desfasado: el log suma 7
		"r1": {ID: "r1", ProductID: "p1", LocationID: "l1", QuantityOnHand: decimal.NewFromInt(3), UnitMeasure: "unit"},
		// huérfano: la bodega l9 ya no existe
		"r9": {ID: "r9", ProductID: "p1", LocationID: "l9", QuantityOnHand: decimal.NewFromInt(4), UnitMeasure: "unit"},
	}))
	require.NoError(t, p.Seed(repository.CollectionTransactions, map[string]*entity.Transaction{
		"t1": {ID: "t1", Sequence: 1, ProductID: "p1", LocationID: "l1", Kind: entity.TransactionKindIntake, Quantity: decimal.NewFromInt(10), UnitMeasure: "unit"},
		"t2": {ID: "t2", Sequence: 2, ProductID: "p1", LocationID: "l1", Kind: entity.TransactionKindDepletion, Quantity: decimal.NewFromInt(3), UnitMeasure: "unit", Reason: entity.ReasonDamage},
		// el registro de p2/l1 se perdió
		"t3": {ID: "t3", Sequence: 3, ProductID: "p2", LocationID: "l1", Kind: entity.TransactionKindIntake, Quantity: decimal.NewFromInt(5), UnitMeasure: "kg"},
		// pertenece a l9, borrada: no se recrea
		"t4": {ID: "t4", Sequence: 4, ProductID: "p1", LocationID: "l9", Kind: entity.TransactionKindIntake, Quantity: decimal.NewFromInt(4), UnitMeasure: "unit"},
	}))

	s := openStore(t, p)
	ctx := context.Background()

	_, report := s.Diagnostics()
	assert.Equal(t, 1, report.Corrected)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Orphans)
	assert.Empty(t, s.Verify())

	r1, err := s.GetStockRecord(ctx, entity.StockKey{ProductID: "p1", LocationID: "l1"})
	require.NoError(t, err)
	assert.True(t, r1.QuantityOnHand.Equal(decimal.NewFromInt(7)))

	r2, err := s.GetStockRecord(ctx, entity.StockKey{ProductID: "p2", LocationID: "l1"})
	require.NoError(t, err)
	require.NotNil(t, r2)
	assert.True(t, r2.QuantityOnHand.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, "kg", r2.UnitMeasure)

	orphan, err := s.GetStockRecord(ctx, entity.StockKey{ProductID: "p1", LocationID: "l9"})
	require.NoError(t, err)
	assert.Nil(t, orphan)

	// la corrección quedó persistida
	assert.Contains(t, p.SaveOrder(), repository.CollectionStockRecords)
	assert.Empty(t, openStore(t, p).Verify())
}

func TestLoad_SinReconciliarSiElLogEstaDegradado(t *testing.T) {
	p := testutil.NewPersister()
	require.NoError(t, p.Seed(repository.CollectionProducts, map[string]*entity.Product{"p1": {ID: "p1", SKU: "A"}}))
	require.NoError(t, p.Seed(repository.CollectionLocations, map[string]*entity.Location{"l1": {ID: "l1"}}))
	require.NoError(t, p.Seed(repository.CollectionStockRecords, map[string]*entity.StockRecord{
		"r1": {ID: "r1", ProductID: "p1", LocationID: "l1", QuantityOnHand: decimal.NewFromInt(3), UnitMeasure: "unit"},
	}))
	require.NoError(t, p.Seed(repository.CollectionTransactions, map[string]any{}))
	p.FailLoad(repository.CollectionTransactions, errors.New("ilegible"))

	s := openStore(t, p)

	_, report := s.Diagnostics()
	assert.True(t, report.Skipped)
	r1, err := s.GetStockRecord(context.Background(), entity.StockKey{ProductID: "p1", LocationID: "l1"})
	require.NoError(t, err)
	assert.True(t, r1.QuantityOnHand.Equal(decimal.NewFromInt(3)), "no debe ponerse en cero contra un log vacío")
}

func TestLoad_RegistrosIlegiblesSeReconstruyenDesdeElLog(t *testing.T) {
	p := testutil.NewPersister()
	s := openStore(t, p)
	seedCatalog(t, s)
	ctx := context.Background()
	rec, tx := intake("t1", "r1", 0, 50)
	require.NoError(t, s.CommitTransaction(ctx, rec, tx))
	// el log también tiene un par de un producto que ya no existe
	require.NoError(t, s.CreateProduct(ctx, &entity.Product{ID: "p2", SKU: "SKU-2", Name: "Tuerca", UnitMeasure: "unit"}))
	rec2 := &entity.StockRecord{ID: "r2", ProductID: "p2", LocationID: "l1", QuantityOnHand: decimal.NewFromInt(4), UnitMeasure: "unit"}
	tx2 := &entity.Transaction{ID: "t2", ProductID: "p2", LocationID: "l1", Kind: entity.TransactionKindIntake, Quantity: decimal.NewFromInt(4), UnitMeasure: "unit"}
	require.NoError(t, s.CommitTransaction(ctx, rec2, tx2))
	_, err := s.DeleteProduct(ctx, "p2")
	require.NoError(t, err)

	p.FailLoad(repository.CollectionStockRecords, errors.New("json roto"))
	reopened := openStore(t, p)

	assert.True(t, reopened.Degraded(), "la colección sigue reportada como degradada")
	_, report := reopened.Diagnostics()
	assert.False(t, report.Skipped)
	assert.Equal(t, 1, report.Created)
	assert.Empty(t, reopened.Verify())

	got, err := reopened.GetStockRecord(ctx, rec.Key())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.QuantityOnHand.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, "unit", got.UnitMeasure)

	gone, err := reopened.GetStockRecord(ctx, entity.StockKey{ProductID: "p2", LocationID: "l1"})
	require.NoError(t, err)
	assert.Nil(t, gone)

	// la reconstrucción quedó persistida para el siguiente arranque
	again := openStore(t, p)
	got, err = again.GetStockRecord(ctx, rec.Key())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.QuantityOnHand.Equal(decimal.NewFromInt(50)))
}

// ──────────────────────────────────────────────────────────────────────────────
// Confirmación de transacciones
// ──────────────────────────────────────────────────────────────────────────────

func TestCommitTransaction_GuardaRegistrosAntesQueElLog(t *testing.T) {
	p := testutil.NewPersister()
	s := openStore(t, p)
	seedCatalog(t, s)
	p.ResetSaves()
	ctx := context.Background()
	before := s.Version()

	rec, tx := intake("t1", "r1", 0, 10)
	require.NoError(t, s.CommitTransaction(ctx, rec, tx))

	assert.Equal(t, []string{repository.CollectionStockRecords, repository.CollectionTransactions}, p.SaveOrder())
	assert.Equal(t, int64(1), tx.Sequence)
	assert.Greater(t, s.Version(), before)

	rec2, tx2 := intake("t2", "r1", 10, 5)
	require.NoError(t, s.CommitTransaction(ctx, rec2, tx2))
	assert.Equal(t, int64(2), tx2.Sequence)

	// un arranque nuevo ve exactamente lo confirmado
	reopened := openStore(t, p)
	got, err := reopened.GetStockRecord(ctx, entity.StockKey{ProductID: "p1", LocationID: "l1"})
	require.NoError(t, err)
	assert.True(t, got.QuantityOnHand.Equal(decimal.NewFromInt(15)))
	txs, err := reopened.ListTransactions(ctx, entity.StockKey{ProductID: "p1", LocationID: "l1"})
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "t1", txs[0].ID)
	assert.Equal(t, "t2", txs[1].ID)
}

func TestCommitTransaction_FallaDelLogNoDejaEfecto(t *testing.T) {
	p := testutil.NewPersister()
	s := openStore(t, p)
	seedCatalog(t, s)
	ctx := context.Background()
	p.FailSave(repository.CollectionTransactions, -1)

	rec, tx := intake("t1", "r1", 0, 10)
	err := s.CommitTransaction(ctx, rec, tx)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPersistence))
	got, _ := s.GetStockRecord(ctx, rec.Key())
	assert.Nil(t, got, "no se publica lo que no confirmó")

	// la escritura compensatoria dejó stock_records como antes
	p.FailSave(repository.CollectionTransactions, 0)
	reopened := openStore(t, p)
	got, _ = reopened.GetStockRecord(ctx, rec.Key())
	assert.Nil(t, got)
	_, report := reopened.Diagnostics()
	assert.Zero(t, report.Created+report.Corrected)
}

func TestCommitTransaction_ContextoVencidoAntesDelLog(t *testing.T) {
	p := testutil.NewPersister()
	s := openStore(t, p)
	seedCatalog(t, s)
	ctx, cancel := context.WithCancel(context.Background())
	p.OnSave(func(c string) {
		if c == repository.CollectionStockRecords {
			cancel()
		}
	})

	rec, tx := intake("t1", "r1", 0, 10)
	err := s.CommitTransaction(ctx, rec, tx)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTimeout))
	txs, _ := s.ListTransactions(context.Background(), rec.Key())
	assert.Empty(t, txs)
	assert.NotContains(t, p.SaveOrder(), repository.CollectionTransactions)
}

func TestCommitTransaction_ReferenciaBorradaDuranteValidacion(t *testing.T) {
	s := openStore(t, testutil.NewPersister())
	seedCatalog(t, s)
	ctx := context.Background()
	_, err := s.DeleteLocation(ctx, "l1")
	require.NoError(t, err)

	rec, tx := intake("t1", "r1", 0, 10)
	err = s.CommitTransaction(ctx, rec, tx)
	assert.True(t, errors.Is(err, domain.ErrUnknownReference))
}

func TestCommitTransaction_RequestIDRepetido(t *testing.T) {
	s := openStore(t, testutil.NewPersister())
	seedCatalog(t, s)
	ctx := context.Background()

	rec, tx := intake("t1", "r1", 0, 10)
	tx.RequestID = "req-1"
	require.NoError(t, s.CommitTransaction(ctx, rec, tx))

	found, err := s.FindByRequestID(ctx, "req-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "t1", found.ID)

	rec2, tx2 := intake("t2", "r1", 10, 1)
	tx2.RequestID = "req-1"
	err = s.CommitTransaction(ctx, rec2, tx2)
	assert.True(t, errors.Is(err, domain.ErrDuplicate))
}

func TestContextoCancelado_DevuelveTimeout(t *testing.T) {
	s := openStore(t, testutil.NewPersister())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.CreateProduct(ctx, &entity.Product{ID: "p1", SKU: "A"})
	assert.True(t, errors.Is(err, domain.ErrTimeout))
}

// ──────────────────────────────────────────────────────────────────────────────
// Catálogo y cascada
// ──────────────────────────────────────────────────────────────────────────────

func TestCreateProduct_SKUUnicoSinDistinguirMayusculas(t *testing.T) {
	s := openStore(t, testutil.NewPersister())
	seedCatalog(t, s)

	err := s.CreateProduct(context.Background(), &entity.Product{ID: "p2", SKU: "sku-1", Name: "Otro"})
	assert.True(t, errors.Is(err, domain.ErrDuplicate))

	got, err := s.GetProductBySKU(context.Background(), "Sku-1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ID)
}

func TestGetProduct_DevuelveCopia(t *testing.T) {
	s := openStore(t, testutil.NewPersister())
	seedCatalog(t, s)
	ctx := context.Background()

	got, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	got.Name = "mutado"

	again, _ := s.GetProduct(ctx, "p1")
	assert.Equal(t, "Tornillo", again.Name)
}

func TestDeleteProduct_CascadaGuardaDependientesPrimero(t *testing.T) {
	p := testutil.NewPersister()
	s := openStore(t, p)
	seedCatalog(t, s)
	ctx := context.Background()
	rec, tx := intake("t1", "r1", 0, 10)
	require.NoError(t, s.CommitTransaction(ctx, rec, tx))
	p.ResetSaves()

	removed, err := s.DeleteProduct(ctx, "p1")

	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{repository.CollectionStockRecords, repository.CollectionProducts}, p.SaveOrder())
	got, _ := s.GetStockRecord(ctx, rec.Key())
	assert.Nil(t, got)
	txs, _ := s.ListTransactions(ctx, rec.Key())
	assert.Len(t, txs, 1, "el historial se conserva")

	// al reabrir, la reconciliación no recrea el registro del producto borrado
	reopened := openStore(t, p)
	got, _ = reopened.GetStockRecord(ctx, rec.Key())
	assert.Nil(t, got)
}

func TestDeleteProduct_FallaDeLaEntidadRestauraDependientes(t *testing.T) {
	p := testutil.NewPersister()
	s := openStore(t, p)
	seedCatalog(t, s)
	ctx := context.Background()
	rec, tx := intake("t1", "r1", 0, 10)
	require.NoError(t, s.CommitTransaction(ctx, rec, tx))
	p.FailSave(repository.CollectionProducts, -1)

	_, err := s.DeleteProduct(ctx, "p1")

	assert.True(t, errors.Is(err, domain.ErrPersistence))
	got, _ := s.GetStockRecord(ctx, rec.Key())
	require.NotNil(t, got)

	p.FailSave(repository.CollectionProducts, 0)
	reopened := openStore(t, p)
	got, _ = reopened.GetStockRecord(ctx, rec.Key())
	require.NotNil(t, got)
	assert.True(t, got.QuantityOnHand.Equal(decimal.NewFromInt(10)))
}

func TestDeleteLocation_Inexistente(t *testing.T) {
	s := openStore(t, testutil.NewPersister())
	_, err := s.DeleteLocation(context.Background(), "nope")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestListStockRecords_Filtros(t *testing.T) {
	s := openStore(t, testutil.NewPersister())
	seedCatalog(t, s)
	ctx := context.Background()
	require.NoError(t, s.CreateLocation(ctx, &entity.Location{ID: "l2", Name: "Norte"}))

	rec, tx := intake("t1", "r1", 0, 10)
	require.NoError(t, s.CommitTransaction(ctx, rec, tx))
	rec2 := &entity.StockRecord{ID: "r2", ProductID: "p1", LocationID: "l2", QuantityOnHand: decimal.NewFromInt(2), UnitMeasure: "unit"}
	tx2 := &entity.Transaction{ID: "t2", ProductID: "p1", LocationID: "l2", Kind: entity.TransactionKindIntake, Quantity: decimal.NewFromInt(2), UnitMeasure: "unit"}
	require.NoError(t, s.CommitTransaction(ctx, rec2, tx2))

	rec2.ReorderThreshold = decimal.NewFromInt(5)
	require.NoError(t, s.SaveStockRecord(ctx, rec2))

	all, err := s.ListStockRecords(ctx, repository.StockFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	north, err := s.ListStockRecords(ctx, repository.StockFilter{LocationID: "l2"})
	require.NoError(t, err)
	require.Len(t, north, 1)
	assert.Equal(t, "r2", north[0].ID)

	low, err := s.ListStockRecords(ctx, repository.StockFilter{LowStockOnly: true})
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "r2", low[0].ID)
}
