package logger

import (
	"strconv"
	"time"

	"go.uber.org/zap"
)

// HTTP

func CorrelationID(v string) zap.Field   { return zap.String("correlation_id", v) }
func Method(v string) zap.Field          { return zap.String("method", v) }
func Path(v string) zap.Field            { return zap.String("path", v) }
func Status(v int) zap.Field             { return zap.Int("status", v) }
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

// Negocio

func UserID(v int64) zap.Field     { return zap.String("user_id", strconv.FormatInt(v, 10)) }
func SessionID(v string) zap.Field { return zap.String("session_id", v) }
func Provider(v string) zap.Field  { return zap.String("provider", v) }

// Upstream

func Attempt(n int) zap.Field              { return zap.Int("attempt", n) }
func RetryAfter(d time.Duration) zap.Field { return zap.Duration("retry_after", d) }
func UpstreamStatus(code int) zap.Field    { return zap.Int("upstream_status", code) }
func URL(v string) zap.Field               { return zap.String("url", v) }
func Outcome(v string) zap.Field           { return zap.String("outcome", v) }

// Sistema

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Layer(v string) zap.Field     { return zap.String("layer", v) }
func Err(err error) zap.Field      { return zap.Error(err) }
func Count(v int) zap.Field        { return zap.Int("count", v) }

func String(key, v string) zap.Field    { return zap.String(key, v) }
func Int(key string, v int) zap.Field   { return zap.Int(key, v) }
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
func Any(key string, v any) zap.Field   { return zap.Any(key, v) }

// Masked loguea solo los últimos 4 caracteres de un valor sensible.
func Masked(key, v string) zap.Field {
	if len(v) <= 4 {
		return zap.String(key, "****")
	}
	return zap.String(key, "****"+v[len(v)-4:])
}
