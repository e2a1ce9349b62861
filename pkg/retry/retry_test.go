package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/pkg/retry"
)

var fastPolicy = retry.Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

func TestDo_ExitoTrasFallasTransitorias(t *testing.T) {
	calls := 0
	notified := 0
	err := retry.Do(context.Background(), fastPolicy, func(attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("disco ocupado")
		}
		return nil
	}, func(err error, attempt int, wait time.Duration) { notified++ })

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, notified)
}

func TestDo_AgotaIntentosYDevuelveUltimoError(t *testing.T) {
	calls := 0
	last := errors.New("falla 3")
	err := retry.Do(context.Background(), fastPolicy, func(attempt int) error {
		calls++
		if attempt == 3 {
			return last
		}
		return errors.New("falla")
	}, nil)

	assert.ErrorIs(t, err, last)
	assert.Equal(t, 3, calls, "no debe exceder el número de intentos")
}

func TestDo_ErrorPermanenteNoSeReintenta(t *testing.T) {
	sentinel := errors.New("no existe")
	calls := 0
	err := retry.Do(context.Background(), fastPolicy, func(int) error {
		calls++
		return retry.Permanent(sentinel)
	}, nil)

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestDo_RespetaCancelacion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	slow := retry.Policy{Attempts: 5, BaseDelay: time.Second, MaxDelay: time.Second}
	calls := 0
	err := retry.Do(ctx, slow, func(int) error {
		calls++
		cancel()
		return errors.New("falla")
	}, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
