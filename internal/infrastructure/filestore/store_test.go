package filestore_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/filestore"
	"github.com/jhoicas/stock-ledger/pkg/retry"
)

var fastPolicy = retry.Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func newStore(t *testing.T, dir string, retries *int) *filestore.Store {
	t.Helper()
	s, err := filestore.New(dir, filestore.Options{
		Policy: fastPolicy,
		Logger: zerolog.Nop(),
		OnRetry: func(string, string) {
			if retries != nil {
				*retries++
			}
		},
	})
	require.NoError(t, err)
	return s
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := newStore(t, dir, nil)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, repository.CollectionProducts, []byte(`{"p1":{"id":"p1"}}`)))

	var got map[string]map[string]string
	err := s.Load(ctx, repository.CollectionProducts, func(b []byte) error { return json.Unmarshal(b, &got) })
	require.NoError(t, err)
	assert.Equal(t, "p1", got["p1"]["id"])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), ".tmp-"), "no deben quedar temporales: %s", e.Name())
	}
}

func TestLoad_ColeccionInexistenteNoSeReintenta(t *testing.T) {
	retries := 0
	s := newStore(t, t.TempDir(), &retries)

	err := s.Load(context.Background(), repository.CollectionLocations, func([]byte) error { return nil })
	assert.ErrorIs(t, err, repository.ErrCollectionMissing)
	assert.Zero(t, retries)
}

func TestLoad_ArchivoCorruptoAgotaReintentosYSePoneEnCuarentena(t *testing.T) {
	dir := t.TempDir()
	retries := 0
	s := newStore(t, dir, &retries)
	require.NoError(t, os.WriteFile(s.Path(repository.CollectionStockRecords), []byte("{no es json"), 0o644))

	var got map[string]any
	err := s.Load(context.Background(), repository.CollectionStockRecords, func(b []byte) error { return json.Unmarshal(b, &got) })
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrCollectionMissing)
	assert.Equal(t, 2, retries, "3 intentos = 2 reintentos")

	moved, err := s.Quarantine(context.Background(), repository.CollectionStockRecords)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(moved), "stock_records.json.corrupt-"))
	_, err = os.Stat(s.Path(repository.CollectionStockRecords))
	assert.True(t, os.IsNotExist(err), "el archivo original debe apartarse")
	content, err := os.ReadFile(moved)
	require.NoError(t, err)
	assert.Equal(t, "{no es json", string(content))
}

func TestSave_FallaPersistenteSeReportaAlLlamador(t *testing.T) {
	dir := t.TempDir()
	retries := 0
	s := newStore(t, dir, &retries)
	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, []byte("ocupa el lugar del directorio"), 0o644))

	err := s.Save(context.Background(), repository.CollectionTransactions, []byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, 2, retries)
}

func TestSave_ReemplazaContenidoCompleto(t *testing.T) {
	s := newStore(t, t.TempDir(), nil)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, repository.CollectionProducts, []byte(`{"a":1,"b":2}`)))
	require.NoError(t, s.Save(ctx, repository.CollectionProducts, []byte(`{"a":1}`)))

	raw, err := os.ReadFile(s.Path(repository.CollectionProducts))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(raw))
}
