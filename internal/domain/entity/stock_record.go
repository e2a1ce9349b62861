package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockRecord es el stock actual de un producto en una bodega (proyección materializada
// del log de transacciones). Existe uno por par (ProductID, LocationID) y se crea con la primera entrada.
type StockRecord struct {
	ID               string          `json:"id"`
	ProductID        string          `json:"product_id"`
	LocationID       string          `json:"location_id"`
	QuantityOnHand   decimal.Decimal `json:"quantity_on_hand"`
	UnitMeasure      string          `json:"unit_measure"`
	ReorderThreshold decimal.Decimal `json:"reorder_threshold"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Key devuelve la llave del par producto/bodega.
func (s *StockRecord) Key() StockKey {
	return StockKey{ProductID: s.ProductID, LocationID: s.LocationID}
}

// IsLowStock indica si el stock está en o por debajo del punto de reorden.
func (s *StockRecord) IsLowStock() bool {
	return s.QuantityOnHand.LessThanOrEqual(s.ReorderThreshold)
}

// Clone devuelve una copia independiente (decimal.Decimal es inmutable).
func (s *StockRecord) Clone() *StockRecord {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// StockKey identifica un par producto/bodega.
type StockKey struct {
	ProductID  string
	LocationID string
}

// String devuelve la forma "producto:bodega", usada como llave de bloqueo y de caché.
func (k StockKey) String() string {
	return k.ProductID + ":" + k.LocationID
}
