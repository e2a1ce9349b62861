package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
)

// ReportUseCase genera el reporte PDF de stock.
type ReportUseCase struct {
	query    *QueryUseCase
	renderer ReportRenderer
	now      func() time.Time
}

func NewReportUseCase(query *QueryUseCase, renderer ReportRenderer) *ReportUseCase {
	return &ReportUseCase{query: query, renderer: renderer, now: time.Now}
}

// StockReport dibuja el listado de stock con los mismos filtros de ListStock.
func (uc *ReportUseCase) StockReport(ctx context.Context, q dto.StockQuery) ([]byte, error) {
	rows, err := uc.query.ListStock(ctx, q)
	if err != nil {
		return nil, err
	}
	title := "Reporte de stock"
	if q.LowStockOnly {
		title = "Reporte de stock bajo"
	}
	pdf, err := uc.renderer.RenderStockReport(title, uc.now(), rows)
	if err != nil {
		return nil, fmt.Errorf("reporte de stock: %w", err)
	}
	return pdf, nil
}
