package memstore

import (
	"encoding/json"
	"sort"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// LoadStatus estado de carga de una colección.
type LoadStatus string

const (
	StatusLoaded   LoadStatus = "loaded"
	StatusMissing  LoadStatus = "missing"
	StatusDegraded LoadStatus = "degraded"
)

// Diagnostic resultado de cargar una colección al arranque.
type Diagnostic struct {
	Collection    string     `json:"collection"`
	Status        LoadStatus `json:"status"`
	Records       int        `json:"records"`
	Error         string     `json:"error,omitempty"`
	QuarantinedTo string     `json:"quarantined_to,omitempty"`
}

// ReconcileReport resumen de la reconciliación de arranque.
type ReconcileReport struct {
	Skipped   bool   `json:"skipped"`
	Reason    string `json:"reason,omitempty"`
	Corrected int    `json:"corrected"`
	Created   int    `json:"created"`
	Orphans   int    `json:"orphans_removed"`
	SaveError string `json:"save_error,omitempty"`
}

// Diagnostics devuelve el estado de carga por colección y el resumen de reconciliación.
func (s *Store) Diagnostics() ([]Diagnostic, ReconcileReport) {
	s.diagMu.RLock()
	defer s.diagMu.RUnlock()
	out := make([]Diagnostic, len(s.diagnostics))
	copy(out, s.diagnostics)
	return out, s.report
}

// Degraded indica si alguna colección arrancó en modo degradado.
func (s *Store) Degraded() bool {
	diags, _ := s.Diagnostics()
	for _, d := range diags {
		if d.Status == StatusDegraded {
			return true
		}
	}
	return false
}

// Las colecciones se guardan como objetos JSON indexados por ID.

func decodeInto[V any](dst *map[string]V) func([]byte) error {
	return func(data []byte) error {
		m := make(map[string]V)
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		*dst = m
		return nil
	}
}

func encode[V any](m map[string]V) ([]byte, error) {
	return json.Marshal(m)
}

// encodeTransactions serializa el log; extra se agrega al final sin tocar txs.
func encodeTransactions(txs []*entity.Transaction, extra *entity.Transaction) ([]byte, error) {
	m := make(map[string]*entity.Transaction, len(txs)+1)
	for _, t := range txs {
		m[t.ID] = t
	}
	if extra != nil {
		m[extra.ID] = extra
	}
	return json.Marshal(m)
}

// encodeRecords serializa los registros aplicando put y omitiendo los que cumplan drop.
func encodeRecords(records map[string]*entity.StockRecord, put *entity.StockRecord, drop func(*entity.StockRecord) bool) ([]byte, error) {
	m := make(map[string]*entity.StockRecord, len(records)+1)
	for id, r := range records {
		if drop != nil && drop(r) {
			continue
		}
		m[id] = r
	}
	if put != nil {
		m[put.ID] = put
	}
	return json.Marshal(m)
}

// indexTransactions ordena el log por secuencia y arma el índice de idempotencia.
func indexTransactions(m map[string]*entity.Transaction) ([]*entity.Transaction, map[string]*entity.Transaction, int64) {
	txs := make([]*entity.Transaction, 0, len(m))
	for _, t := range m {
		txs = append(txs, t)
	}
	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].Sequence != txs[j].Sequence {
			return txs[i].Sequence < txs[j].Sequence
		}
		return txs[i].AcceptedAt.Before(txs[j].AcceptedAt)
	})
	byRequest := make(map[string]*entity.Transaction)
	var seq int64
	for _, t := range txs {
		if t.Sequence > seq {
			seq = t.Sequence
		}
		if t.RequestID != "" {
			byRequest[t.RequestID] = t
		}
	}
	return txs, byRequest, seq
}

func sortRecords(rs []*entity.StockRecord) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].ProductID != rs[j].ProductID {
			return rs[i].ProductID < rs[j].ProductID
		}
		return rs[i].LocationID < rs[j].LocationID
	})
}
