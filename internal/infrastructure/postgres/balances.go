package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// Suma con signo por par directamente sobre el log persistido. La cantidad viaja como
// texto decimal en el JSON; el cast a numeric conserva la escala exacta.
const logBalancesSQL = `
SELECT t.value->>'product_id',
       t.value->>'location_id',
       SUM(CASE WHEN t.value->>'kind' = $2
                THEN -(t.value->>'quantity')::numeric
                ELSE (t.value->>'quantity')::numeric END)
FROM ledger_collections c, jsonb_each(c.payload) AS t
WHERE c.name = $1
GROUP BY 1, 2`

// LogBalances calcula en la base el saldo de cada par según el log de transacciones guardado.
// Sirve para contrastar lo que está en disco con lo que el proceso publica en memoria.
func (p *Persister) LogBalances(ctx context.Context) (map[entity.StockKey]decimal.Decimal, error) {
	rows, err := p.pool.Query(ctx, logBalancesSQL, repository.CollectionTransactions, entity.TransactionKindDepletion)
	if err != nil {
		return nil, fmt.Errorf("postgres: saldos del log: %w", err)
	}
	defer rows.Close()

	out := make(map[entity.StockKey]decimal.Decimal)
	for rows.Next() {
		var (
			key entity.StockKey
			sum decimal.Decimal
		)
		if err := rows.Scan(&key.ProductID, &key.LocationID, &sum); err != nil {
			return nil, fmt.Errorf("postgres: leer saldo: %w", err)
		}
		out[key] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: saldos del log: %w", err)
	}
	return out, nil
}
