// Package retry aplica la política de reintentos acotados con backoff exponencial
// usada por los adaptadores de persistencia.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy número fijo de intentos con espera creciente entre ellos.
type Policy struct {
	Attempts  int           // intentos totales (>= 1)
	BaseDelay time.Duration // espera antes del segundo intento
	MaxDelay  time.Duration // tope de espera entre intentos
}

// DefaultPolicy 3 intentos: 200ms, 400ms.
func DefaultPolicy() Policy {
	return Policy{Attempts: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second}
}

// NotifyFunc se invoca tras cada intento fallido que será reintentado.
type NotifyFunc func(err error, attempt int, wait time.Duration)

// Permanent marca un error que no debe reintentarse.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do ejecuta op hasta p.Attempts veces. Devuelve nil en el primer éxito, el error sin envolver
// si fue Permanent, ctx.Err() si el contexto terminó, o el último error al agotar los intentos.
func Do(ctx context.Context, p Policy, op func(attempt int) error, notify NotifyFunc) error {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	}
	b.Multiplier = 2
	b.RandomizationFactor = 0.1
	b.MaxElapsedTime = 0
	b.Reset()

	attempt := 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.Attempts-1)), ctx)
	return backoff.RetryNotify(func() error {
		attempt++
		return op(attempt)
	}, policy, func(err error, wait time.Duration) {
		if notify != nil {
			notify(err, attempt, wait)
		}
	})
}
