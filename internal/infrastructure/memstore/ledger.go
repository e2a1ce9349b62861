package memstore

import (
	"context"
	"fmt"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/ledger"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// CommitTransaction confirma una transacción aceptada:
//  1. guarda stock_records con el registro actualizado
//  2. agrega tx al log (punto de confirmación)
//  3. publica ambos cambios en memoria
//
// Si falla el paso 2 se reescribe stock_records con el estado anterior. Ante cualquier error
// el efecto neto es el mismo que no haber llamado.
func (s *Store) CommitTransaction(ctx context.Context, record *entity.StockRecord, tx *entity.Transaction) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	s.mu.RLock()
	// El producto o la bodega pudieron borrarse mientras se validaba.
	known := s.pairExistsLocked(record.Key())
	prevID, hasPrev := s.byKey[record.Key()]
	_, dupRequest := s.byRequest[tx.RequestID]
	stored := *tx
	stored.Sequence = s.seq + 1
	recordsData, err := encodeRecords(s.records, record, nil)
	var txsData []byte
	if err == nil {
		txsData, err = encodeTransactions(s.txs, &stored)
	}
	s.mu.RUnlock()

	switch {
	case !known:
		return fmt.Errorf("%w: %s", domain.ErrUnknownReference, record.Key())
	case hasPrev && prevID != record.ID:
		return fmt.Errorf("memstore: el registro de %s cambió durante la validación", record.Key())
	case tx.RequestID != "" && dupRequest:
		return fmt.Errorf("%w: request_id %s", domain.ErrDuplicate, tx.RequestID)
	case err != nil:
		return err
	}

	if err := s.save(ctx, repository.CollectionStockRecords, recordsData); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		s.compensate(ctx, repository.CollectionStockRecords)
		return fmt.Errorf("%w: antes de confirmar el log: %w", domain.ErrTimeout, err)
	}
	if err := s.save(ctx, repository.CollectionTransactions, txsData); err != nil {
		s.compensate(ctx, repository.CollectionStockRecords)
		return err
	}

	s.mu.Lock()
	published := record.Clone()
	s.records[published.ID] = published
	s.byKey[published.Key()] = published.ID
	s.txs = append(s.txs, &stored)
	if stored.RequestID != "" {
		s.byRequest[stored.RequestID] = &stored
	}
	s.seq = stored.Sequence
	s.mu.Unlock()
	s.published()

	tx.Sequence = stored.Sequence
	return nil
}

// SaveStockRecord persiste un cambio de atributos de un registro existente.
func (s *Store) SaveStockRecord(ctx context.Context, record *entity.StockRecord) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	s.mu.RLock()
	_, ok := s.records[record.ID]
	data, err := encodeRecords(s.records, record, nil)
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: stock record %s", domain.ErrNotFound, record.ID)
	}
	if err != nil {
		return err
	}
	if err := s.save(ctx, repository.CollectionStockRecords, data); err != nil {
		return err
	}
	s.mu.Lock()
	s.records[record.ID] = record.Clone()
	s.mu.Unlock()
	s.published()
	return nil
}

func (s *Store) GetStockRecord(ctx context.Context, key entity.StockKey) (*entity.StockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byKey[key]
	if !ok {
		return nil, nil
	}
	return s.records[id].Clone(), nil
}

// ListStockRecords devuelve copias ordenadas por producto y bodega.
func (s *Store) ListStockRecords(ctx context.Context, filter repository.StockFilter) ([]*entity.StockRecord, error) {
	s.mu.RLock()
	out := make([]*entity.StockRecord, 0, len(s.records))
	for _, r := range s.records {
		if filter.LocationID != "" && r.LocationID != filter.LocationID {
			continue
		}
		if filter.ProductID != "" && r.ProductID != filter.ProductID {
			continue
		}
		if filter.LowStockOnly && !r.IsLowStock() {
			continue
		}
		out = append(out, r.Clone())
	}
	s.mu.RUnlock()
	sortRecords(out)
	return out, nil
}

// ListTransactions historial del par en orden cronológico.
func (s *Store) ListTransactions(ctx context.Context, key entity.StockKey) ([]*entity.Transaction, error) {
	s.mu.RLock()
	var out []*entity.Transaction
	for _, t := range s.txs {
		if (key.ProductID == "" || t.ProductID == key.ProductID) &&
			(key.LocationID == "" || t.LocationID == key.LocationID) {
			c := *t
			out = append(out, &c)
		}
	}
	s.mu.RUnlock()
	ledger.SortTransactions(out)
	return out, nil
}

func (s *Store) FindByRequestID(ctx context.Context, requestID string) (*entity.Transaction, error) {
	if requestID == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byRequest[requestID]
	if !ok {
		return nil, nil
	}
	c := *t
	return &c, nil
}
