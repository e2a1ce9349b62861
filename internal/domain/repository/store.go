package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// StockFilter filtros de lectura sobre StockRecord.
type StockFilter struct {
	LocationID   string
	ProductID    string
	LowStockOnly bool
}

// ProductRepository define el puerto del catálogo de productos (DIP).
// Get* devuelve (nil, nil) si no existe.
type ProductRepository interface {
	CreateProduct(ctx context.Context, product *entity.Product) error
	GetProduct(ctx context.Context, id string) (*entity.Product, error)
	GetProductBySKU(ctx context.Context, sku string) (*entity.Product, error)
	UpdateProduct(ctx context.Context, product *entity.Product) error
	// DeleteProduct elimina el producto y en cascada sus StockRecord. Devuelve cuántos registros cayeron.
	DeleteProduct(ctx context.Context, id string) (int, error)
	ListProducts(ctx context.Context) ([]*entity.Product, error)
}

// LocationRepository define el puerto de bodegas (DIP).
type LocationRepository interface {
	CreateLocation(ctx context.Context, location *entity.Location) error
	GetLocation(ctx context.Context, id string) (*entity.Location, error)
	UpdateLocation(ctx context.Context, location *entity.Location) error
	// DeleteLocation elimina la bodega y en cascada sus StockRecord.
	DeleteLocation(ctx context.Context, id string) (int, error)
	ListLocations(ctx context.Context) ([]*entity.Location, error)
}

// StockRecordRepository lecturas de stock (copias; nunca exponen el estado interno).
type StockRecordRepository interface {
	GetStockRecord(ctx context.Context, key entity.StockKey) (*entity.StockRecord, error)
	ListStockRecords(ctx context.Context, filter StockFilter) ([]*entity.StockRecord, error)
}

// TransactionRepository lecturas del log de transacciones.
type TransactionRepository interface {
	// ListTransactions devuelve el historial del par en orden cronológico.
	ListTransactions(ctx context.Context, key entity.StockKey) ([]*entity.Transaction, error)
	// FindByRequestID busca una transacción ya aceptada por su llave de idempotencia; (nil, nil) si no hay.
	FindByRequestID(ctx context.Context, requestID string) (*entity.Transaction, error)
}

// LedgerCommitter escritura de StockRecord; solo la usa el motor del libro.
type LedgerCommitter interface {
	// CommitTransaction persiste el registro actualizado y agrega tx al log (en ese orden);
	// solo publica en memoria si ambas escrituras confirmaron. Asigna tx.Sequence.
	CommitTransaction(ctx context.Context, record *entity.StockRecord, tx *entity.Transaction) error
	// SaveStockRecord persiste cambios de atributos (punto de reorden) sin tocar la cantidad.
	SaveStockRecord(ctx context.Context, record *entity.StockRecord) error
}
