package middlewares

import (
	"context"

	"github.com/tunetrail/tunetrail/internal/jwt"
)

type ctxKey string

const (
	ctxClaimsKey        ctxKey = "claims"
	ctxValidatedKey     ctxKey = "validated"
	ctxCorrelationIDKey ctxKey = "correlation_id"
)

// WithClaims inyecta las claims de un token vigente.
func WithClaims(ctx context.Context, c *jwt.Claims) context.Context {
	return context.WithValue(ctx, ctxClaimsKey, c)
}

// GetClaims retorna nil si RequireAuth no corrió.
func GetClaims(ctx context.Context) *jwt.Claims {
	c, _ := ctx.Value(ctxClaimsKey).(*jwt.Claims)
	return c
}

// WithValidated guarda el resultado de Validate, esté o no expirado.
func WithValidated(ctx context.Context, v *jwt.Validated) context.Context {
	return context.WithValue(ctx, ctxValidatedKey, v)
}

func GetValidated(ctx context.Context) *jwt.Validated {
	v, _ := ctx.Value(ctxValidatedKey).(*jwt.Validated)
	return v
}

func setCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxCorrelationIDKey, id)
}

func GetCorrelationID(ctx context.Context) string {
	s, _ := ctx.Value(ctxCorrelationIDKey).(string)
	return s
}
