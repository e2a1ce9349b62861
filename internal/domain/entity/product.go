package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa un producto o SKU del catálogo (multi-bodega).
// La identidad es inmutable; Name, Description y Price son editables.
// El stock por bodega vive en StockRecord.
type Product struct {
	ID          string           `json:"id"`
	SKU         string           `json:"sku"` // único en el catálogo (sin distinguir mayúsculas)
	Name        string           `json:"name"`
	UnitMeasure string           `json:"unit_measure"` // unidad por defecto (ej. "unit", "kg")
	Description string           `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}
