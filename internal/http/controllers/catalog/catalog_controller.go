// Package catalog expone lecturas de Spotify, Deezer y Overpass detrás del
// gateway con reintentos.
package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	httperrors "github.com/tunetrail/tunetrail/internal/http/errors"
	"github.com/tunetrail/tunetrail/internal/provider/deezer"
	"github.com/tunetrail/tunetrail/internal/provider/overpass"
	"github.com/tunetrail/tunetrail/internal/provider/spotify"
	"github.com/tunetrail/tunetrail/internal/validation"
)

const (
	defaultLimit = 20
	maxLimit     = 50
)

type Tracks interface {
	SearchTracks(ctx context.Context, query string, offset, limit int) (json.RawMessage, error)
	Track(ctx context.Context, id string) (*spotify.Track, error)
}

type ISRCLookup interface {
	TrackByISRC(ctx context.Context, isrc string) (*deezer.Track, error)
}

type Localities interface {
	LocalitiesByBounds(ctx context.Context, b overpass.Bounds) ([]overpass.Locality, error)
	LocalityByID(ctx context.Context, id int64) (*overpass.Locality, error)
}

// Controller: cualquier dependencia nil deja sus rutas sin registrar.
type Controller struct {
	Tracks     Tracks
	ISRC       ISRCLookup
	Localities Localities
}

func intParam(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	return n, err == nil && n >= 0
}

// SearchTracks maneja GET /catalog/tracks?q=&offset=&limit=.
func (c *Controller) SearchTracks(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		httperrors.WriteError(w, httperrors.ErrInvalidParameter.WithDetail("q is required"))
		return
	}
	offset, ok := intParam(r, "offset", 0)
	if !ok {
		httperrors.WriteError(w, httperrors.ErrInvalidParameter.WithDetail("offset"))
		return
	}
	limit, ok := intParam(r, "limit", defaultLimit)
	if !ok || limit == 0 || limit > maxLimit {
		httperrors.WriteError(w, httperrors.ErrInvalidParameter.WithDetail("limit must be between 1 and 50"))
		return
	}

	body, err := c.Tracks.SearchTracks(r.Context(), q, offset, limit)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// Track maneja GET /catalog/tracks/{id}.
func (c *Controller) Track(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !validation.ValidSpotifyID(id) {
		httperrors.WriteError(w, httperrors.ErrInvalidParameter.WithDetail("id must be a Spotify track id"))
		return
	}
	t, err := c.Tracks.Track(r.Context(), id)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if t == nil {
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("track not found"))
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, t)
}

// TrackByISRC maneja GET /catalog/isrc/{isrc}.
func (c *Controller) TrackByISRC(w http.ResponseWriter, r *http.Request) {
	isrc := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "isrc")))
	if !validation.ValidISRC(isrc) {
		httperrors.WriteError(w, httperrors.ErrInvalidParameter.WithDetail("isrc must be a 12 character ISRC"))
		return
	}
	t, err := c.ISRC.TrackByISRC(r.Context(), isrc)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if t == nil {
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("no track for isrc"))
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, t)
}

// LocalitiesByBounds maneja GET /localities?north=&east=&south=&west=.
func (c *Controller) LocalitiesByBounds(w http.ResponseWriter, r *http.Request) {
	var (
		b    overpass.Bounds
		dst  = []*float64{&b.North, &b.East, &b.South, &b.West}
		keys = []string{"north", "east", "south", "west"}
	)
	for i, k := range keys {
		v, err := strconv.ParseFloat(r.URL.Query().Get(k), 64)
		if err != nil {
			httperrors.WriteError(w, httperrors.ErrInvalidParameter.WithDetail(k+" must be a number"))
			return
		}
		*dst[i] = v
	}
	if err := b.Validate(); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidParameter.WithDetail("bounds out of range"))
		return
	}

	locs, err := c.Localities.LocalitiesByBounds(r.Context(), b)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if locs == nil {
		locs = []overpass.Locality{}
	}
	httperrors.WriteJSON(w, http.StatusOK, locs)
}

// Locality maneja GET /localities/{id}.
func (c *Controller) Locality(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httperrors.WriteError(w, httperrors.ErrInvalidParameter.WithDetail("id must be a positive integer"))
		return
	}
	loc, err := c.Localities.LocalityByID(r.Context(), id)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if loc == nil {
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("locality not found"))
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, loc)
}
