// Package testutil utilidades compartidas por los tests: un Persister en memoria con
// inyección de fallas.
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// ErrDiskFull falla inyectada por defecto.
var ErrDiskFull = errors.New("disco lleno")

// Persister guarda las colecciones en memoria y registra el orden de escritura.
type Persister struct {
	mu          sync.Mutex
	data        map[string][]byte
	failSave    map[string]int // fallas restantes; -1 = siempre
	failLoad    map[string]error
	saveHook    func(collection string)
	Saves       []string
	Quarantined []string
}

func NewPersister() *Persister {
	return &Persister{
		data:     make(map[string][]byte),
		failSave: make(map[string]int),
		failLoad: make(map[string]error),
	}
}

// FailSave hace fallar las próximas n escrituras de la colección (-1: todas).
func (p *Persister) FailSave(collection string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failSave[collection] = n
}

// FailLoad hace fallar la lectura de la colección con err.
func (p *Persister) FailLoad(collection string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failLoad[collection] = err
}

// OnSave registra un hook que corre antes de cada escritura (fuera del lock).
func (p *Persister) OnSave(fn func(collection string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saveHook = fn
}

// Seed escribe una colección directamente, serializando v como JSON.
func (p *Persister) Seed(collection string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data[collection] = b
	return nil
}

// Raw devuelve el contenido persistido de una colección.
func (p *Persister) Raw(collection string) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.data[collection]...)
}

// ResetSaves limpia el registro de escrituras.
func (p *Persister) ResetSaves() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Saves = nil
}

// SaveOrder devuelve una copia del registro de escrituras exitosas.
func (p *Persister) SaveOrder() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.Saves...)
}

func (p *Persister) Load(ctx context.Context, collection string, decode func([]byte) error) error {
	p.mu.Lock()
	err := p.failLoad[collection]
	data, ok := p.data[collection]
	p.mu.Unlock()
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrCollectionMissing
	}
	return decode(data)
}

func (p *Persister) Save(ctx context.Context, collection string, data []byte) error {
	p.mu.Lock()
	hook := p.saveHook
	p.mu.Unlock()
	if hook != nil {
		hook(collection)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if n := p.failSave[collection]; n != 0 {
		if n > 0 {
			p.failSave[collection] = n - 1
		}
		return ErrDiskFull
	}
	p.data[collection] = append([]byte(nil), data...)
	p.Saves = append(p.Saves, collection)
	return nil
}

func (p *Persister) Quarantine(ctx context.Context, collection string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Quarantined = append(p.Quarantined, collection)
	delete(p.data, collection)
	delete(p.failLoad, collection)
	return collection + ".corrupt", nil
}
