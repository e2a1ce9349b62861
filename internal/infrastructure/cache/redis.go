// Package cache caché de consultas de stock en Redis. Las llaves incluyen la carga y la versión del
// almacén, así que nunca hace falta invalidar: una escritura cambia la versión y las
// entradas viejas expiran solas por TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
)

var _ inventory.QueryCache = (*StockCache)(nil)

const keyPrefix = "stock-ledger:"

// New crea el cliente Redis y verifica la conexión.
func New(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping: %w", err)
	}
	return client, nil
}

// StockCache implementa inventory.QueryCache.
type StockCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStockCache instancia la caché.
func NewStockCache(client *redis.Client, ttl time.Duration) *StockCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &StockCache{client: client, ttl: ttl}
}

func (c *StockCache) GetStock(ctx context.Context, key string) ([]dto.StockView, bool, error) {
	payload, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rows []dto.StockView
	if err := json.Unmarshal(payload, &rows); err != nil {
		// Entrada corrupta: se descarta y se recalcula.
		_ = c.client.Del(ctx, keyPrefix+key).Err()
		return nil, false, nil
	}
	return rows, true, nil
}

func (c *StockCache) SetStock(ctx context.Context, key string, rows []dto.StockView) error {
	raw, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+key, raw, c.ttl).Err()
}
