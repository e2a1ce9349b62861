package domain

import "errors"

// Rechazos de validación del libro de inventario (no mutan estado, no se reintentan).
var (
	ErrUnknownReference  = errors.New("producto o bodega inexistente")
	ErrInvalidQuantity   = errors.New("la cantidad debe ser positiva")
	ErrUnitMismatch      = errors.New("unidad de medida distinta a la registrada")
	ErrInvalidReason     = errors.New("motivo de salida inválido")
	ErrInsufficientStock = errors.New("stock insuficiente")
)

// Errores de dominio generales.
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
)

// Fallas de infraestructura: la operación no se aplicó y es seguro reintentarla.
var (
	ErrPersistence = errors.New("falla de persistencia")
	ErrTimeout     = errors.New("tiempo de espera agotado")
)

// IsRejection indica si err es un rechazo de validación (y no una falla transitoria).
func IsRejection(err error) bool {
	return errors.Is(err, ErrUnknownReference) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrUnitMismatch) ||
		errors.Is(err, ErrInvalidReason) ||
		errors.Is(err, ErrInsufficientStock)
}

// IsRetryable indica si err es una falla transitoria que el cliente puede reintentar.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistence) || errors.Is(err, ErrTimeout)
}
