package router

import (
	"github.com/go-chi/chi/v5"

	mw "github.com/tunetrail/tunetrail/internal/http/middlewares"
)

func registerCatalogRoutes(r chi.Router, deps Deps) {
	c := deps.Catalog
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireAuth(deps.Issuer))
		if c.Tracks != nil {
			r.Get("/catalog/tracks", c.SearchTracks)
			r.Get("/catalog/tracks/{id}", c.Track)
		}
		if c.ISRC != nil {
			r.Get("/catalog/isrc/{isrc}", c.TrackByISRC)
		}
		if c.Localities != nil {
			r.Get("/localities", c.LocalitiesByBounds)
			r.Get("/localities/{id}", c.Locality)
		}
	})
}
