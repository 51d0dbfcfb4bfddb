// Package cache provee un cache clave/valor compartido con dos backends:
//
//   - memory: in-process (go-cache), para desarrollo/testing y una sola réplica
//   - redis: distribuido, compartido entre réplicas del servicio
//
// Lo usa apptoken como segundo nivel para los tokens de aplicación y auth
// para los state OAuth de un solo uso.
package cache

import (
	"context"
	"errors"
	"time"
)

// Client define las operaciones de cache.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe o expiró.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor con TTL. Si ttl es 0, no expira.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	// Take obtiene y borra el valor en un solo paso: de varios llamados
	// concurrentes sobre la misma key, solo uno recibe el valor.
	// Retorna ErrNotFound si no existe o expiró.
	Take(ctx context.Context, key string) (string, error)

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	Close() error
}

// Config configuración para crear un cliente de cache.
type Config struct {
	Driver   string // "memory" | "redis"
	Addr     string // host:port (redis)
	Password string
	DB       int
	Prefix   string // Prefijo para todas las keys
}

var ErrNotFound = errors.New("cache: key not found")

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// New crea un cliente de cache según la configuración. Un driver
// desconocido cae a memory.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(ctx, cfg)
	default:
		return NewMemory(cfg.Prefix), nil
	}
}

func prefixed(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + ":" + k
}
