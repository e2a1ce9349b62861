package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// Catalog lecturas de producto y bodega que necesita el libro.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*entity.Product, error)
	GetLocation(ctx context.Context, id string) (*entity.Location, error)
}

// LedgerStore lo que el motor necesita del almacén de entidades: lecturas del par y
// el punto de confirmación.
type LedgerStore interface {
	repository.StockRecordRepository
	repository.TransactionRepository
	repository.LedgerCommitter
}

// ReadStore lecturas para consultas, con la versión del estado publicado.
type ReadStore interface {
	repository.StockRecordRepository
	repository.TransactionRepository
	ListProducts(ctx context.Context) ([]*entity.Product, error)
	ListLocations(ctx context.Context) ([]*entity.Location, error)
	Version() uint64
	Epoch() string
}

// Recorder métricas del libro (implementación en observability).
type Recorder interface {
	ObserveSubmission(kind, outcome string, elapsed time.Duration)
	ObserveLockWait(elapsed time.Duration)
}

// QueryCache caché de lecturas de stock indexada por carga y versión del almacén.
type QueryCache interface {
	GetStock(ctx context.Context, key string) ([]dto.StockView, bool, error)
	SetStock(ctx context.Context, key string, rows []dto.StockView) error
}

// ReportRenderer dibuja el reporte de stock (implementación en infrastructure/pdf).
type ReportRenderer interface {
	RenderStockReport(title string, generatedAt time.Time, rows []dto.StockView) ([]byte, error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveSubmission(string, string, time.Duration) {}
func (nopRecorder) ObserveLockWait(time.Duration)                  {}
