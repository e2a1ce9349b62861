package repository

import (
	"context"
	"errors"
)

// Colecciones durables del libro de inventario.
const (
	CollectionProducts     = "products"
	CollectionLocations    = "locations"
	CollectionStockRecords = "stock_records"
	CollectionTransactions = "transactions"
)

// Collections todas las colecciones, en el orden de carga.
var Collections = []string{
	CollectionProducts,
	CollectionLocations,
	CollectionStockRecords,
	CollectionTransactions,
}

// ErrCollectionMissing la colección nunca se guardó (primer arranque). No se reintenta.
var ErrCollectionMissing = errors.New("colección inexistente")

// Persister define el puerto de persistencia durable por colección.
// La implementación vive en infrastructure (filestore, postgres).
type Persister interface {
	// Load lee la colección y la entrega a decode. Reintenta lectura+decode con backoff acotado;
	// devuelve ErrCollectionMissing si no existe, o el último error al agotar los intentos.
	Load(ctx context.Context, collection string, decode func([]byte) error) error

	// Save escribe la colección completa de forma atómica (nunca queda a medio escribir).
	// Reintenta fallas transitorias; al agotar intentos devuelve el error al llamador.
	Save(ctx context.Context, collection string, data []byte) error

	// Quarantine aparta el contenido ilegible de una colección para que el siguiente Save
	// no lo sobrescriba. Devuelve dónde quedó.
	Quarantine(ctx context.Context, collection string) (string, error)
}
