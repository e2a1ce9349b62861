package pdf_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/pdf"
)

func TestRenderStockReport_GeneraPDF(t *testing.T) {
	rows := []dto.StockView{
		{SKU: "BX-100", ProductName: "Caja", LocationName: "Main", QuantityOnHand: decimal.NewFromInt(30), UnitMeasure: "unit", ReorderThreshold: decimal.NewFromInt(5)},
		{SKU: "CF-01", ProductName: "Café Molido", LocationName: "Main", QuantityOnHand: decimal.RequireFromString("1.250"), UnitMeasure: "kg", ReorderThreshold: decimal.NewFromInt(10), LowStock: true},
	}

	out, err := pdf.NewMarotoStockReport("stock-ledger").RenderStockReport("Reporte de stock", time.Now(), rows)

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderStockReport_SinFilas(t *testing.T) {
	out, err := pdf.NewMarotoStockReport("stock-ledger").RenderStockReport("Reporte de stock", time.Now(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
