package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// QueryUseCase lecturas de stock e historial. No toma locks del libro: lee copias del
// estado publicado, que siempre es consistente.
type QueryUseCase struct {
	store ReadStore
	cache QueryCache // opcional
	group singleflight.Group
	log   zerolog.Logger
}

// NewQueryUseCase construye el caso de uso. cache puede ser nil.
func NewQueryUseCase(store ReadStore, cache QueryCache, log zerolog.Logger) *QueryUseCase {
	return &QueryUseCase{store: store, cache: cache, log: log}
}

// ListStock devuelve los StockRecord con nombre de producto y bodega.
// Search busca en nombre y SKU sin distinguir mayúsculas ni tildes.
func (uc *QueryUseCase) ListStock(ctx context.Context, q dto.StockQuery) ([]dto.StockView, error) {
	needle := fold(strings.TrimSpace(q.Search))
	// Epoch cambia en cada arranque y la versión con cada escritura confirmada:
	// una llave vieja nunca se vuelve a pedir.
	key := fmt.Sprintf("stock:%s:v%d:%s:%t:%s", uc.store.Epoch(), uc.store.Version(), q.LocationID, q.LowStockOnly, needle)

	if uc.cache != nil {
		rows, ok, err := uc.cache.GetStock(ctx, key)
		if err != nil {
			uc.log.Warn().Err(err).Msg("caché de stock no disponible")
		} else if ok {
			return rows, nil
		}
	}

	v, err, _ := uc.group.Do(key, func() (any, error) {
		rows, err := uc.buildStock(ctx, q, needle)
		if err != nil {
			return nil, err
		}
		if uc.cache != nil {
			if err := uc.cache.SetStock(ctx, key, rows); err != nil {
				uc.log.Warn().Err(err).Msg("no se pudo guardar en caché")
			}
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]dto.StockView), nil
}

func (uc *QueryUseCase) buildStock(ctx context.Context, q dto.StockQuery, needle string) ([]dto.StockView, error) {
	records, err := uc.store.ListStockRecords(ctx, repository.StockFilter{
		LocationID:   q.LocationID,
		LowStockOnly: q.LowStockOnly,
	})
	if err != nil {
		return nil, err
	}
	products, err := uc.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	locations, err := uc.store.ListLocations(ctx)
	if err != nil {
		return nil, err
	}
	productByID := make(map[string]*entity.Product, len(products))
	for _, p := range products {
		productByID[p.ID] = p
	}
	locationByID := make(map[string]*entity.Location, len(locations))
	for _, l := range locations {
		locationByID[l.ID] = l
	}

	rows := make([]dto.StockView, 0, len(records))
	for _, r := range records {
		p, l := productByID[r.ProductID], locationByID[r.LocationID]
		if p == nil || l == nil {
			continue
		}
		if needle != "" && !strings.Contains(fold(p.Name), needle) && !strings.Contains(fold(p.SKU), needle) {
			continue
		}
		rows = append(rows, dto.StockView{
			ID:               r.ID,
			ProductID:        r.ProductID,
			SKU:              p.SKU,
			ProductName:      p.Name,
			LocationID:       r.LocationID,
			LocationName:     l.Name,
			QuantityOnHand:   r.QuantityOnHand,
			UnitMeasure:      r.UnitMeasure,
			ReorderThreshold: r.ReorderThreshold,
			LowStock:         r.IsLowStock(),
			UpdatedAt:        r.UpdatedAt,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].ProductName != rows[j].ProductName {
			return rows[i].ProductName < rows[j].ProductName
		}
		return rows[i].LocationName < rows[j].LocationName
	})
	return rows, nil
}

// ListTransactions historial cronológico. Al menos uno de los dos ids es obligatorio;
// funciona también para productos o bodegas ya eliminados.
func (uc *QueryUseCase) ListTransactions(ctx context.Context, productID, locationID string) (*dto.TransactionListResponse, error) {
	if productID == "" && locationID == "" {
		return nil, domain.ErrInvalidInput
	}
	txs, err := uc.store.ListTransactions(ctx, entity.StockKey{ProductID: productID, LocationID: locationID})
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []*entity.Transaction{}
	}
	return &dto.TransactionListResponse{Items: txs, Total: len(txs)}, nil
}

// fold pasa a minúsculas y quita tildes ("Café" → "cafe").
func fold(s string) string {
	if s == "" {
		return s
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
