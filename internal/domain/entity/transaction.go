package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de transacción de inventario.
const (
	TransactionKindIntake    = "intake"    // entrada
	TransactionKindDepletion = "depletion" // salida
)

// Motivos de salida.
const (
	ReasonClientOrder = "client_order"
	ReasonShrinkage   = "shrinkage"
	ReasonDamage      = "damage"
	ReasonTransfer    = "transfer"
	ReasonOther       = "other"
)

// DepletionReasons conjunto cerrado de motivos válidos para una salida.
var DepletionReasons = map[string]struct{}{
	ReasonClientOrder: {},
	ReasonShrinkage:   {},
	ReasonDamage:      {},
	ReasonTransfer:    {},
	ReasonOther:       {},
}

// Transaction es un evento inmutable de entrada o salida. Nunca se edita ni se borra:
// las correcciones se hacen con una transacción compensatoria.
type Transaction struct {
	ID          string          `json:"id"`
	Sequence    int64           `json:"sequence"` // orden de aceptación en el log
	ProductID   string          `json:"product_id"`
	LocationID  string          `json:"location_id"`
	Kind        string          `json:"kind"`
	Quantity    decimal.Decimal `json:"quantity"` // siempre positiva; el signo lo da Kind
	UnitMeasure string          `json:"unit_measure"`
	Reason      string          `json:"reason,omitempty"`
	Reference   string          `json:"reference,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	ActorID     string          `json:"actor_id"`
	RequestID   string          `json:"request_id,omitempty"` // llave de idempotencia del cliente
	AcceptedAt  time.Time       `json:"accepted_at"`
}

// Key devuelve la llave del par producto/bodega.
func (t *Transaction) Key() StockKey {
	return StockKey{ProductID: t.ProductID, LocationID: t.LocationID}
}

// SignedQuantity devuelve +Quantity para entradas y -Quantity para salidas.
func (t *Transaction) SignedQuantity() decimal.Decimal {
	if t.Kind == TransactionKindDepletion {
		return t.Quantity.Neg()
	}
	return t.Quantity
}
