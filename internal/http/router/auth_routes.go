package router

import (
	"github.com/go-chi/chi/v5"

	mw "github.com/tunetrail/tunetrail/internal/http/middlewares"
)

func registerAuthRoutes(r chi.Router, deps Deps) {
	c := deps.Auth
	authed := mw.RequireAuth(deps.Issuer)

	r.Route("/auth", func(r chi.Router) {
		limited := r.With(mw.WithRateLimit(deps.LoginLimiter, mw.IPPathRateKey))
		limited.Post("/register", c.Register)
		limited.Post("/login", c.Login)

		r.Get("/spotify/authorize", c.Authorize)
		r.Put("/connect-spotify", c.ConnectSpotify)
		r.With(authed).Put("/link-spotify", c.LinkSpotify)
		r.With(authed, mw.RequireSpotify()).Put("/complete-spotify", c.CompleteSpotify)
		r.With(authed, mw.RequireSpotify()).Delete("/unlink-spotify", c.UnlinkSpotify)
		r.With(authed).Put("/logout", c.Logout)
		// el refresh acepta tokens expirados
		r.With(mw.ParseToken(deps.Issuer)).Put("/refresh-token", c.RefreshToken)
	})
}
