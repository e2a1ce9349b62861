package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/jhoicas/stock-ledger/internal/application/usecase"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memstore"
	"github.com/jhoicas/stock-ledger/internal/testutil"
)

func TestParseProducts_Latin1(t *testing.T) {
	raw := "sku,name,unit,description,price\nCF-1,Café Molido,kg,Tostión media,12.50\nAZ-2,Azúcar,kg\n"
	latin1, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(raw))
	require.NoError(t, err)

	r, err := decodeReader(bytes.NewReader(latin1), "latin1")
	require.NoError(t, err)
	rows, invalid, err := parseProducts(r, true)
	require.NoError(t, err)
	assert.Empty(t, invalid)
	require.Len(t, rows, 2)
	assert.Equal(t, "Café Molido", rows[0].Name)
	assert.Equal(t, "Tostión media", rows[0].Description)
	require.NotNil(t, rows[0].Price)
	assert.Equal(t, "12.5", rows[0].Price.String())
	assert.Nil(t, rows[1].Price)
}

func TestParseProducts_FilasInvalidas(t *testing.T) {
	rows, invalid, err := parseProducts(strings.NewReader("A-1,Uno\nB-2,Dos,unit,,abc\nC-3,Tres,unit\n"), false)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "C-3", rows[0].SKU)
	assert.Len(t, invalid, 2)
}

func TestDecodeReader_CodificacionDesconocida(t *testing.T) {
	_, err := decodeReader(strings.NewReader(""), "ebcdic")
	assert.Error(t, err)
}

func TestImportProducts_OmiteDuplicados(t *testing.T) {
	ctx := context.Background()
	store := memstore.New(testutil.NewPersister(), zerolog.Nop())
	require.NoError(t, store.Load(ctx))
	uc := usecase.NewProductUseCase(store, zerolog.Nop())

	rows, _, err := parseProducts(strings.NewReader("BX-100,Caja,unit\nbx-100,Caja otra vez,unit\nCF-1,Café,kg\n"), false)
	require.NoError(t, err)

	res, err := importProducts(ctx, uc, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, []string{"bx-100"}, res.Duplicates)

	list, err := store.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
