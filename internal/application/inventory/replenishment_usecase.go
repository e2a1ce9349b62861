package inventory

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
)

// ReplenishmentUseCase genera la lista de reposición a partir del stock bajo.
type ReplenishmentUseCase struct {
	query *QueryUseCase
}

// NewReplenishmentUseCase construye el caso de uso de reposición.
func NewReplenishmentUseCase(query *QueryUseCase) *ReplenishmentUseCase {
	return &ReplenishmentUseCase{query: query}
}

var idealFactor = decimal.NewFromFloat(1.5)

// GenerateReplenishmentList devuelve los pares en o bajo el punto de reorden con la cantidad
// sugerida de pedido. locationID vacío considera todas las bodegas.
func (uc *ReplenishmentUseCase) GenerateReplenishmentList(ctx context.Context, locationID string) ([]dto.ReplenishmentSuggestionDTO, error) {
	// 1. Pares en o bajo el punto de reorden
	rows, err := uc.query.ListStock(ctx, dto.StockQuery{LocationID: locationID, LowStockOnly: true})
	if err != nil {
		return nil, err
	}

	// 2. Stock ideal y sugerido
	suggestions := make([]dto.ReplenishmentSuggestionDTO, 0, len(rows))
	for _, r := range rows {
		idealStock := r.ReorderThreshold.Mul(idealFactor)
		suggestedQty := idealStock.Sub(r.QuantityOnHand)
		if suggestedQty.IsNegative() {
			suggestedQty = decimal.Zero
		}
		suggestions = append(suggestions, dto.ReplenishmentSuggestionDTO{
			ProductID:         r.ProductID,
			SKU:               r.SKU,
			ProductName:       r.ProductName,
			LocationID:        r.LocationID,
			LocationName:      r.LocationName,
			UnitMeasure:       r.UnitMeasure,
			CurrentStock:      r.QuantityOnHand,
			ReorderPoint:      r.ReorderThreshold,
			IdealStock:        idealStock,
			SuggestedOrderQty: suggestedQty,
		})
	}

	// 3. Ordenar por mayor déficit bajo el reorden; desempate por SKU
	sort.SliceStable(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		defA := a.ReorderPoint.Sub(a.CurrentStock)
		defB := b.ReorderPoint.Sub(b.CurrentStock)
		if !defA.Equal(defB) {
			return defA.GreaterThan(defB)
		}
		return a.SKU < b.SKU
	})

	// 4. Asignar prioridad (1 = más urgente)
	for i := range suggestions {
		suggestions[i].Priority = i + 1
	}
	return suggestions, nil
}
