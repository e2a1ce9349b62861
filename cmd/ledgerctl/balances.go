package main

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// logBalancer lo implementa *postgres.Persister: saldos por par calculados en la base.
type logBalancer interface {
	LogBalances(ctx context.Context) (map[entity.StockKey]decimal.Decimal, error)
}

// publishedStock lo implementa *memstore.Store.
type publishedStock interface {
	ListStockRecords(ctx context.Context, filter repository.StockFilter) ([]*entity.StockRecord, error)
	GetProduct(ctx context.Context, id string) (*entity.Product, error)
	GetLocation(ctx context.Context, id string) (*entity.Location, error)
}

// balanceMismatch par cuyo saldo publicado difiere del log guardado en la base.
type balanceMismatch struct {
	Key       entity.StockKey
	Published decimal.Decimal
	Stored    decimal.Decimal
}

// compareLogBalances contrasta cada StockRecord publicado con la suma del log en la base.
// Los pares del log sin registro cuentan solo si el producto y la bodega siguen existiendo.
func compareLogBalances(ctx context.Context, store publishedStock, b logBalancer) ([]balanceMismatch, error) {
	stored, err := b.LogBalances(ctx)
	if err != nil {
		return nil, err
	}
	records, err := store.ListStockRecords(ctx, repository.StockFilter{})
	if err != nil {
		return nil, err
	}

	var out []balanceMismatch
	seen := make(map[entity.StockKey]struct{}, len(records))
	for _, r := range records {
		k := r.Key()
		seen[k] = struct{}{}
		if want := stored[k]; !r.QuantityOnHand.Equal(want) {
			out = append(out, balanceMismatch{Key: k, Published: r.QuantityOnHand, Stored: want})
		}
	}
	for k, sum := range stored {
		if _, ok := seen[k]; ok || sum.IsZero() {
			continue
		}
		p, err := store.GetProduct(ctx, k.ProductID)
		if err != nil {
			return nil, err
		}
		l, err := store.GetLocation(ctx, k.LocationID)
		if err != nil {
			return nil, err
		}
		if p != nil && l != nil {
			out = append(out, balanceMismatch{Key: k, Published: decimal.Zero, Stored: sum})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out, nil
}
