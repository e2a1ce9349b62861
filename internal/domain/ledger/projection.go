package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// Project suma las transacciones por par producto/bodega (entrada +, salida -).
// El log es la fuente de verdad; los StockRecord son una caché de esta proyección.
func Project(txs []*entity.Transaction) map[entity.StockKey]decimal.Decimal {
	out := make(map[entity.StockKey]decimal.Decimal)
	for _, t := range txs {
		k := t.Key()
		out[k] = out[k].Add(t.SignedQuantity())
	}
	return out
}

// Discrepancy diferencia entre el stock materializado y el derivado del log.
type Discrepancy struct {
	Key       entity.StockKey
	Recorded  decimal.Decimal
	Projected decimal.Decimal
	Missing   bool // hay transacciones pero no existe StockRecord
}

// Reconcile compara los registros contra la proyección del log. Solo considera pares cuyo
// producto y bodega siguen existiendo (exists); los registros huérfanos de una cascada no se recrean.
func Reconcile(records []*entity.StockRecord, txs []*entity.Transaction, exists func(entity.StockKey) bool) []Discrepancy {
	projected := Project(txs)
	seen := make(map[entity.StockKey]struct{}, len(records))
	var out []Discrepancy
	for _, r := range records {
		k := r.Key()
		seen[k] = struct{}{}
		want := projected[k]
		if !r.QuantityOnHand.Equal(want) {
			out = append(out, Discrepancy{Key: k, Recorded: r.QuantityOnHand, Projected: want})
		}
	}
	for k, want := range projected {
		if _, ok := seen[k]; ok {
			continue
		}
		if exists != nil && !exists(k) {
			continue
		}
		out = append(out, Discrepancy{Key: k, Recorded: decimal.Zero, Projected: want, Missing: true})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out
}

// SortTransactions ordena cronológicamente por (AcceptedAt, Sequence).
func SortTransactions(txs []*entity.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].AcceptedAt.Equal(txs[j].AcceptedAt) {
			return txs[i].AcceptedAt.Before(txs[j].AcceptedAt)
		}
		return txs[i].Sequence < txs[j].Sequence
	})
}
