package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

func cloneProduct(p *entity.Product) *entity.Product {
	if p == nil {
		return nil
	}
	c := *p
	if p.Price != nil {
		v := *p.Price
		c.Price = &v
	}
	return &c
}

func cloneLocation(l *entity.Location) *entity.Location {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}

// CreateProduct agrega un producto. El SKU es único sin distinguir mayúsculas.
func (s *Store) CreateProduct(ctx context.Context, product *entity.Product) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	s.mu.RLock()
	_, dupID := s.products[product.ID]
	dupSKU := s.productBySKULocked(product.SKU) != nil
	next := make(map[string]*entity.Product, len(s.products)+1)
	for id, p := range s.products {
		next[id] = p
	}
	s.mu.RUnlock()
	if dupID {
		return fmt.Errorf("%w: producto %s", domain.ErrDuplicate, product.ID)
	}
	if dupSKU {
		return fmt.Errorf("%w: SKU %s", domain.ErrDuplicate, product.SKU)
	}

	stored := cloneProduct(product)
	next[stored.ID] = stored
	data, err := encode(next)
	if err != nil {
		return err
	}
	if err := s.save(ctx, repository.CollectionProducts, data); err != nil {
		return err
	}
	s.mu.Lock()
	s.products = next
	s.mu.Unlock()
	s.published()
	return nil
}

func (s *Store) productBySKULocked(sku string) *entity.Product {
	for _, p := range s.products {
		if strings.EqualFold(p.SKU, strings.TrimSpace(sku)) {
			return p
		}
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*entity.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneProduct(s.products[id]), nil
}

func (s *Store) GetProductBySKU(ctx context.Context, sku string) (*entity.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneProduct(s.productBySKULocked(sku)), nil
}

// UpdateProduct reemplaza los campos descriptivos; la identidad la controla el caso de uso.
func (s *Store) UpdateProduct(ctx context.Context, product *entity.Product) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	s.mu.RLock()
	_, ok := s.products[product.ID]
	next := make(map[string]*entity.Product, len(s.products))
	for id, p := range s.products {
		next[id] = p
	}
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: producto %s", domain.ErrNotFound, product.ID)
	}
	next[product.ID] = cloneProduct(product)
	data, err := encode(next)
	if err != nil {
		return err
	}
	if err := s.save(ctx, repository.CollectionProducts, data); err != nil {
		return err
	}
	s.mu.Lock()
	s.products = next
	s.mu.Unlock()
	s.published()
	return nil
}

// DeleteProduct elimina el producto y sus StockRecord. Los dependientes se guardan primero:
// si luego falla la colección de productos se restauran y la operación no tiene efecto.
func (s *Store) DeleteProduct(ctx context.Context, id string) (int, error) {
	return s.deleteCascade(ctx, repository.CollectionProducts, id,
		func(r *entity.StockRecord) bool { return r.ProductID == id })
}

func (s *Store) ListProducts(ctx context.Context) ([]*entity.Product, error) {
	s.mu.RLock()
	out := make([]*entity.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, cloneProduct(p))
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateLocation(ctx context.Context, location *entity.Location) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	s.mu.RLock()
	_, dup := s.locations[location.ID]
	next := make(map[string]*entity.Location, len(s.locations)+1)
	for id, l := range s.locations {
		next[id] = l
	}
	s.mu.RUnlock()
	if dup {
		return fmt.Errorf("%w: bodega %s", domain.ErrDuplicate, location.ID)
	}
	next[location.ID] = cloneLocation(location)
	data, err := encode(next)
	if err != nil {
		return err
	}
	if err := s.save(ctx, repository.CollectionLocations, data); err != nil {
		return err
	}
	s.mu.Lock()
	s.locations = next
	s.mu.Unlock()
	s.published()
	return nil
}

func (s *Store) GetLocation(ctx context.Context, id string) (*entity.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneLocation(s.locations[id]), nil
}

func (s *Store) UpdateLocation(ctx context.Context, location *entity.Location) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	s.mu.RLock()
	_, ok := s.locations[location.ID]
	next := make(map[string]*entity.Location, len(s.locations))
	for id, l := range s.locations {
		next[id] = l
	}
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: bodega %s", domain.ErrNotFound, location.ID)
	}
	next[location.ID] = cloneLocation(location)
	data, err := encode(next)
	if err != nil {
		return err
	}
	if err := s.save(ctx, repository.CollectionLocations, data); err != nil {
		return err
	}
	s.mu.Lock()
	s.locations = next
	s.mu.Unlock()
	s.published()
	return nil
}

// DeleteLocation elimina la bodega y en cascada sus StockRecord.
func (s *Store) DeleteLocation(ctx context.Context, id string) (int, error) {
	return s.deleteCascade(ctx, repository.CollectionLocations, id,
		func(r *entity.StockRecord) bool { return r.LocationID == id })
}

func (s *Store) ListLocations(ctx context.Context) ([]*entity.Location, error) {
	s.mu.RLock()
	out := make([]*entity.Location, 0, len(s.locations))
	for _, l := range s.locations {
		out = append(out, cloneLocation(l))
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// deleteCascade borra una entidad del catálogo y los StockRecord que la referencian.
// Orden de escritura: registros dependientes, luego la colección de la entidad.
// El log de transacciones no se toca: es historial.
func (s *Store) deleteCascade(ctx context.Context, collection, id string, dependent func(*entity.StockRecord) bool) (int, error) {
	if err := s.acquire(ctx); err != nil {
		return 0, err
	}
	defer s.release()

	s.mu.RLock()
	var (
		exists bool
		data   []byte
		err    error
	)
	switch collection {
	case repository.CollectionProducts:
		_, exists = s.products[id]
		next := make(map[string]*entity.Product, len(s.products))
		for k, p := range s.products {
			if k != id {
				next[k] = p
			}
		}
		data, err = encode(next)
	case repository.CollectionLocations:
		_, exists = s.locations[id]
		next := make(map[string]*entity.Location, len(s.locations))
		for k, l := range s.locations {
			if k != id {
				next[k] = l
			}
		}
		data, err = encode(next)
	}
	removed := 0
	for _, r := range s.records {
		if dependent(r) {
			removed++
		}
	}
	var recordsData []byte
	if exists && err == nil && removed > 0 {
		recordsData, err = encodeRecords(s.records, nil, dependent)
	}
	s.mu.RUnlock()

	if !exists {
		return 0, fmt.Errorf("%w: %s %s", domain.ErrNotFound, collection, id)
	}
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		if err := s.save(ctx, repository.CollectionStockRecords, recordsData); err != nil {
			return 0, err
		}
	}
	if err := s.save(ctx, collection, data); err != nil {
		if removed > 0 {
			s.compensate(ctx, repository.CollectionStockRecords)
		}
		return 0, err
	}

	s.mu.Lock()
	switch collection {
	case repository.CollectionProducts:
		delete(s.products, id)
	case repository.CollectionLocations:
		delete(s.locations, id)
	}
	for rid, r := range s.records {
		if dependent(r) {
			delete(s.records, rid)
			delete(s.byKey, r.Key())
		}
	}
	s.mu.Unlock()
	s.published()
	s.log.Info().Str("collection", collection).Str("id", id).Int("stock_records", removed).Msg("eliminado en cascada")
	return removed, nil
}
