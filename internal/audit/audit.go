// Package audit emite eventos de seguridad (altas, logins, vínculos con
// Spotify, revocaciones) por un logger dedicado.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/tunetrail/tunetrail/internal/observability/logger"
)

const (
	EventRegister        = "user.register"
	EventLogin           = "user.login"
	EventLoginFailed     = "user.login_failed"
	EventSpotifyConnect  = "spotify.connect"
	EventSpotifyLink     = "spotify.link"
	EventSpotifyUnlink   = "spotify.unlink"
	EventSpotifyComplete = "spotify.complete"
	EventLogout          = "session.logout"
	EventSessionsRevoked = "session.revoke_all"
)

// Log escribe el evento en el logger del contexto con name "audit".
func Log(ctx context.Context, event string, fields ...zap.Field) {
	fields = append(fields, zap.String("event", event))
	logger.From(ctx).Named("audit").Info(event, fields...)
}
