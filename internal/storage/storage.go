// Package storage persists the terminal's client-side state: credentials, the
// comanda, the table number and the cached order snapshot.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Keys used by the terminal. Values are overwritten wholesale, never merged.
const (
	KeyAuthToken     = "authToken"
	KeyUserData      = "userData"
	KeyLoginTime     = "loginTime"
	KeyCart          = "comanda"
	KeyTable         = "comandaMesa"
	KeySelectedOrder = "pedidoSelecionado"
	KeyEditingOrder  = "pedidoEditando"
	KeyPendingPaid   = "pagamentosPendentes"
)

var ErrNotFound = errors.New("key not found")

// Store is a flat string key-value store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Open returns the Store for driver ("sqlite" or "postgres").
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite", "sqlite3", "":
		return OpenSQLite(ctx, dsn)
	case "postgres", "pgx":
		return OpenPostgres(ctx, dsn)
	}
	return nil, fmt.Errorf("unknown store driver %q", driver)
}

// GetJSON decodes key into v. It reports false, with no error, when the key is absent.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func SetJSON(ctx context.Context, s Store, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(b))
}
