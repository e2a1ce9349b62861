// Package ledger contiene las reglas puras del libro de inventario: validación ordenada
// de una transacción propuesta, su efecto sobre el StockRecord y la proyección del log.
// No conoce concurrencia ni persistencia; eso lo resuelve la capa de aplicación.
package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// QuantityScale decimales máximos aceptados en una cantidad.
const QuantityScale = 3

// Request transacción propuesta (aún no aceptada).
type Request struct {
	ProductID   string
	LocationID  string
	Kind        string
	Quantity    decimal.Decimal
	UnitMeasure string
	Reason      string
	Reference   string
	Notes       string
	ActorID     string
	RequestID   string
}

// Key devuelve el par producto/bodega de la solicitud.
func (r Request) Key() entity.StockKey {
	return entity.StockKey{ProductID: r.ProductID, LocationID: r.LocationID}
}

// Validate aplica las precondiciones en orden y devuelve el primer rechazo:
//  1. producto y bodega existen            → ErrUnknownReference
//  2. cantidad estrictamente positiva      → ErrInvalidQuantity
//  3. unidad no vacía e igual a la del registro → ErrUnitMismatch
//  4. motivo válido (solo salidas)         → ErrInvalidReason
//  5. stock resultante >= 0 (solo salidas) → ErrInsufficientStock
//
// current es nil si el par nunca tuvo transacciones (stock actual = 0).
func Validate(product *entity.Product, location *entity.Location, current *entity.StockRecord, req Request) error {
	if req.Kind != entity.TransactionKindIntake && req.Kind != entity.TransactionKindDepletion {
		return domain.ErrInvalidInput
	}
	if product == nil || location == nil {
		return domain.ErrUnknownReference
	}
	if !req.Quantity.IsPositive() || !req.Quantity.Equal(req.Quantity.Truncate(QuantityScale)) {
		return domain.ErrInvalidQuantity
	}
	uom := NormalizeUnit(req.UnitMeasure)
	if uom == "" {
		return domain.ErrUnitMismatch
	}
	if current != nil && current.UnitMeasure != uom {
		return domain.ErrUnitMismatch
	}
	if req.Kind == entity.TransactionKindDepletion {
		if _, ok := entity.DepletionReasons[req.Reason]; !ok {
			return domain.ErrInvalidReason
		}
		onHand := decimal.Zero
		if current != nil {
			onHand = current.QuantityOnHand
		}
		if onHand.Sub(req.Quantity).IsNegative() {
			return domain.ErrInsufficientStock
		}
	}
	return nil
}

// Apply devuelve el StockRecord resultante de aplicar req sobre current sin modificar current.
// Si current es nil crea el registro (solo ocurre con entradas ya validadas).
func Apply(current *entity.StockRecord, req Request, now time.Time, newID func() string) *entity.StockRecord {
	next := current.Clone()
	if next == nil {
		next = &entity.StockRecord{
			ID:               newID(),
			ProductID:        req.ProductID,
			LocationID:       req.LocationID,
			QuantityOnHand:   decimal.Zero,
			UnitMeasure:      NormalizeUnit(req.UnitMeasure),
			ReorderThreshold: decimal.Zero,
			CreatedAt:        now,
		}
	}
	if req.Kind == entity.TransactionKindDepletion {
		next.QuantityOnHand = next.QuantityOnHand.Sub(req.Quantity)
	} else {
		next.QuantityOnHand = next.QuantityOnHand.Add(req.Quantity)
	}
	next.UpdatedAt = now
	return next
}

// NewTransaction construye la transacción aceptada a partir de la solicitud.
// Sequence se asigna al confirmar en el log.
func NewTransaction(req Request, id string, now time.Time) *entity.Transaction {
	return &entity.Transaction{
		ID:          id,
		ProductID:   req.ProductID,
		LocationID:  req.LocationID,
		Kind:        req.Kind,
		Quantity:    req.Quantity,
		UnitMeasure: NormalizeUnit(req.UnitMeasure),
		Reason:      strings.TrimSpace(req.Reason),
		Reference:   strings.TrimSpace(req.Reference),
		Notes:       strings.TrimSpace(req.Notes),
		ActorID:     req.ActorID,
		RequestID:   strings.TrimSpace(req.RequestID),
		AcceptedAt:  now,
	}
}

// NormalizeUnit recorta espacios; la comparación de unidades es exacta.
func NormalizeUnit(uom string) string {
	return strings.TrimSpace(uom)
}
