package memstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/ledger"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// reconcileOnLoad recalcula cada StockRecord desde el log y guarda las correcciones.
// Se omite solo si el log arrancó degradado: corregir contra un log vacío borraría stock real.
// Si lo ilegible fue stock_records, todos los registros se reconstruyen desde el log
// y la colección sigue reportándose degradada.
func (s *Store) reconcileOnLoad(ctx context.Context, diags []Diagnostic) ReconcileReport {
	status := make(map[string]LoadStatus, len(diags))
	for _, d := range diags {
		status[d.Collection] = d.Status
	}
	if status[repository.CollectionTransactions] == StatusDegraded {
		s.log.Warn().Str("collection", repository.CollectionTransactions).Msg("reconciliación omitida: log degradado")
		return ReconcileReport{Skipped: true, Reason: repository.CollectionTransactions + " degradada"}
	}
	if status[repository.CollectionStockRecords] == StatusDegraded {
		s.log.Warn().Msg("stock_records degradada: se reconstruye desde el log")
	}
	catalogOK := status[repository.CollectionProducts] != StatusDegraded &&
		status[repository.CollectionLocations] != StatusDegraded

	if err := s.acquire(ctx); err != nil {
		return ReconcileReport{Skipped: true, Reason: err.Error()}
	}
	defer s.release()

	s.mu.Lock()
	defer s.mu.Unlock()

	var report ReconcileReport
	next := make(map[string]*entity.StockRecord, len(s.records))
	for id, r := range s.records {
		if catalogOK && !s.pairExistsLocked(r.Key()) {
			report.Orphans++
			continue
		}
		next[id] = r
	}

	list := make([]*entity.StockRecord, 0, len(next))
	for _, r := range next {
		list = append(list, r)
	}
	byKey := make(map[entity.StockKey]*entity.StockRecord, len(next))
	for _, r := range next {
		byKey[r.Key()] = r
	}
	now := s.now()
	for _, d := range ledger.Reconcile(list, s.txs, s.pairExistsLocked) {
		if d.Missing {
			r := s.rebuildRecordLocked(d.Key, d.Projected, now)
			next[r.ID] = r
			report.Created++
			continue
		}
		fixed := byKey[d.Key].Clone()
		fixed.QuantityOnHand = d.Projected
		fixed.UpdatedAt = now
		next[fixed.ID] = fixed
		report.Corrected++
		s.log.Warn().
			Str("key", d.Key.String()).
			Str("recorded", d.Recorded.String()).
			Str("projected", d.Projected.String()).
			Msg("stock corregido desde el log")
	}

	if report.Corrected+report.Created+report.Orphans == 0 {
		return report
	}
	data, err := encode(next)
	if err == nil {
		err = s.persister.Save(ctx, repository.CollectionStockRecords, data)
	}
	if err != nil {
		// El log manda: la memoria queda corregida y el próximo commit reescribe la colección.
		report.SaveError = err.Error()
		s.log.Error().Err(err).Msg("no se pudo guardar la reconciliación")
	}
	s.records = next
	s.byKey = make(map[entity.StockKey]string, len(next))
	for id, r := range next {
		s.byKey[r.Key()] = id
	}
	s.log.Info().
		Int("corrected", report.Corrected).
		Int("created", report.Created).
		Int("orphans", report.Orphans).
		Msg("reconciliación aplicada")
	return report
}

// rebuildRecordLocked recrea un StockRecord perdido con la unidad de su última transacción.
func (s *Store) rebuildRecordLocked(key entity.StockKey, qty decimal.Decimal, now time.Time) *entity.StockRecord {
	r := &entity.StockRecord{
		ID:               uuid.NewString(),
		ProductID:        key.ProductID,
		LocationID:       key.LocationID,
		QuantityOnHand:   qty,
		ReorderThreshold: decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	for i := len(s.txs) - 1; i >= 0; i-- {
		if s.txs[i].Key() == key {
			r.UnitMeasure = s.txs[i].UnitMeasure
			break
		}
	}
	s.log.Warn().Str("key", key.String()).Str("projected", qty.String()).Msg("StockRecord recreado desde el log")
	return r
}

func (s *Store) pairExistsLocked(k entity.StockKey) bool {
	_, okP := s.products[k.ProductID]
	_, okL := s.locations[k.LocationID]
	return okP && okL
}

// Verify compara el estado publicado contra el log sin modificar nada.
func (s *Store) Verify() []ledger.Discrepancy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]*entity.StockRecord, 0, len(s.records))
	for _, r := range s.records {
		list = append(list, r)
	}
	return ledger.Reconcile(list, s.txs, s.pairExistsLocked)
}
