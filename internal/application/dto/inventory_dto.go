package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// SubmitTransactionRequest body para POST /api/inventory/transactions.
// Cantidad, unidad y motivo los valida el libro (con su orden de rechazos), no el binding.
type SubmitTransactionRequest struct {
	ProductID   string          `json:"product_id" validate:"max=64"`
	LocationID  string          `json:"location_id" validate:"max=64"`
	Kind        string          `json:"kind" validate:"required,oneof=intake depletion"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitMeasure string          `json:"unit_measure" validate:"max=20"`
	Reason      string          `json:"reason" validate:"max=40"`
	Reference   string          `json:"reference" validate:"max=120"`
	Notes       string          `json:"notes" validate:"max=500"`
	RequestID   string          `json:"request_id" validate:"max=100"`
}

// SubmitTransactionResponse transacción aceptada y stock resultante.
type SubmitTransactionResponse struct {
	Transaction *entity.Transaction `json:"transaction"`
	StockRecord *StockView          `json:"stock_record"`
	Replayed    bool                `json:"replayed"` // la misma request_id ya estaba aplicada
}

// SetThresholdRequest body para PUT /api/inventory/stock/threshold.
type SetThresholdRequest struct {
	ProductID  string          `json:"product_id" validate:"required,max=64"`
	LocationID string          `json:"location_id" validate:"required,max=64"`
	Threshold  decimal.Decimal `json:"threshold"`
}

// StockQuery filtros de GET /api/inventory/stock.
type StockQuery struct {
	LocationID   string `query:"location_id"`
	LowStockOnly bool   `query:"low_stock"`
	Search       string `query:"search" validate:"max=100"`
}

// StockView StockRecord con los datos de producto y bodega para listar.
type StockView struct {
	ID               string          `json:"id"`
	ProductID        string          `json:"product_id"`
	SKU              string          `json:"sku"`
	ProductName      string          `json:"product_name"`
	LocationID       string          `json:"location_id"`
	LocationName     string          `json:"location_name"`
	QuantityOnHand   decimal.Decimal `json:"quantity_on_hand"`
	UnitMeasure      string          `json:"unit_measure"`
	ReorderThreshold decimal.Decimal `json:"reorder_threshold"`
	LowStock         bool            `json:"low_stock"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TransactionListResponse historial de un par producto/bodega.
type TransactionListResponse struct {
	Items []*entity.Transaction `json:"items"`
	Total int                   `json:"total"`
}

// ReplenishmentSuggestionDTO representa una sugerencia de reposición para un par
// que se encuentra en o por debajo de su punto de reorden.
type ReplenishmentSuggestionDTO struct {
	ProductID         string          `json:"product_id"`
	SKU               string          `json:"sku"`
	ProductName       string          `json:"product_name"`
	LocationID        string          `json:"location_id"`
	LocationName      string          `json:"location_name"`
	UnitMeasure       string          `json:"unit_measure"`
	CurrentStock      decimal.Decimal `json:"current_stock"`
	ReorderPoint      decimal.Decimal `json:"reorder_point"`
	IdealStock        decimal.Decimal `json:"ideal_stock"`         // ReorderPoint * 1.5
	SuggestedOrderQty decimal.Decimal `json:"suggested_order_qty"` // IdealStock - CurrentStock
	Priority          int             `json:"priority"`            // 1 = más urgente
}

// HealthResponse salida de GET /health.
type HealthResponse struct {
	Status      string             `json:"status"` // ok | degraded
	Collections []CollectionStatus `json:"collections"`
	Reconcile   any                `json:"reconcile,omitempty"`
}

// CollectionStatus estado de carga de una colección.
type CollectionStatus struct {
	Name          string `json:"name"`
	Status        string `json:"status"`
	Records       int    `json:"records"`
	Error         string `json:"error,omitempty"`
	QuarantinedTo string `json:"quarantined_to,omitempty"`
}
