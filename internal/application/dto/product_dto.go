package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateProductRequest entrada para crear un producto.
type CreateProductRequest struct {
	SKU         string           `json:"sku" validate:"required,min=1,max=100"`
	Name        string           `json:"name" validate:"required,min=1,max=200"`
	UnitMeasure string           `json:"unit_measure" validate:"required,max=20"`
	Description string           `json:"description" validate:"max=1000"`
	Price       *decimal.Decimal `json:"price"`
}

// UpdateProductRequest entrada para actualizar un producto. SKU y unidad son inmutables.
type UpdateProductRequest struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string          `json:"description" validate:"omitempty,max=1000"`
	Price       *decimal.Decimal `json:"price"`
}

// ProductResponse salida de un producto.
type ProductResponse struct {
	ID          string           `json:"id"`
	SKU         string           `json:"sku"`
	Name        string           `json:"name"`
	UnitMeasure string           `json:"unit_measure"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// ProductListResponse lista paginada de productos.
type ProductListResponse struct {
	Items []ProductResponse `json:"items"`
	Page  PageResponse      `json:"page"`
}

// DeleteResponse resultado de un borrado en cascada.
type DeleteResponse struct {
	ID                  string `json:"id"`
	StockRecordsRemoved int    `json:"stock_records_removed"`
}
