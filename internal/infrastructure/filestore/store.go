// Package filestore implementa repository.Persister sobre archivos JSON, uno por colección.
// Cada Save escribe a un temporal en el mismo directorio, hace fsync y lo renombra encima
// del archivo final, de modo que un lector nunca ve una colección a medio escribir.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/pkg/retry"
)

var _ repository.Persister = (*Store)(nil)

// Options configuración del adaptador.
type Options struct {
	Policy  retry.Policy
	Logger  zerolog.Logger
	OnRetry func(collection, op string) // opcional: métricas
}

// Store persistencia en DataDir/<colección>.json.
type Store struct {
	dir     string
	policy  retry.Policy
	log     zerolog.Logger
	onRetry func(collection, op string)
	mu      sync.Mutex // serializa escrituras del mismo proceso sobre el directorio
}

// New crea el directorio de datos si no existe.
func New(dir string, opts Options) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("filestore: directorio vacío")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: crear directorio: %w", err)
	}
	if opts.Policy.Attempts == 0 {
		opts.Policy = retry.DefaultPolicy()
	}
	return &Store{
		dir:     dir,
		policy:  opts.Policy,
		log:     opts.Logger.With().Str("component", "filestore").Logger(),
		onRetry: opts.OnRetry,
	}, nil
}

// Path ruta del archivo de una colección.
func (s *Store) Path(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

// Load lee y decodifica la colección con reintentos. Archivo inexistente → ErrCollectionMissing.
func (s *Store) Load(ctx context.Context, collection string, decode func([]byte) error) error {
	path := s.Path(collection)
	return retry.Do(ctx, s.policy, func(attempt int) error {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return retry.Permanent(repository.ErrCollectionMissing)
			}
			return fmt.Errorf("leer %s: %w", path, err)
		}
		if err := decode(data); err != nil {
			return fmt.Errorf("decodificar %s: %w", path, err)
		}
		return nil
	}, s.notify(collection, "load"))
}

// Save escribe la colección completa de forma atómica con reintentos.
// Solo retorna nil cuando el archivo final quedó confirmado en disco.
func (s *Store) Save(ctx context.Context, collection string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.Path(collection)
	err := retry.Do(ctx, s.policy, func(int) error {
		return writeAtomic(path, data)
	}, s.notify(collection, "save"))
	if err != nil {
		s.log.Error().Err(err).Str("collection", collection).Msg("guardado agotó reintentos")
		return err
	}
	return nil
}

// Quarantine renombra el archivo ilegible a <colección>.json.corrupt-<unix>.
func (s *Store) Quarantine(_ context.Context, collection string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.Path(collection)
	target := fmt.Sprintf("%s.corrupt-%d", path, time.Now().UnixNano())
	if err := os.Rename(path, target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("filestore: cuarentena %s: %w", path, err)
	}
	return target, nil
}

func (s *Store) notify(collection, op string) retry.NotifyFunc {
	return func(err error, attempt int, wait time.Duration) {
		s.log.Warn().Err(err).
			Str("collection", collection).
			Str("op", op).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("reintentando operación de persistencia")
		if s.onRetry != nil {
			s.onRetry(collection, op)
		}
	}
}

// writeAtomic temporal + fsync + rename + fsync del directorio.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("crear temporal: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("escribir temporal: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temporal: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("cerrar temporal: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("renombrar: %w", err)
	}
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
