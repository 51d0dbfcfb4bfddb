package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunetrail/tunetrail/internal/provider/deezer"
	"github.com/tunetrail/tunetrail/internal/provider/overpass"
	"github.com/tunetrail/tunetrail/internal/provider/spotify"
	"github.com/tunetrail/tunetrail/internal/upstream"
)

type stubTracks struct {
	calls int
	err   error
}

func (s *stubTracks) SearchTracks(_ context.Context, q string, offset, limit int) (json.RawMessage, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(fmt.Sprintf(`{"q":%q,"offset":%d,"limit":%d}`, q, offset, limit)), nil
}

func (s *stubTracks) Track(_ context.Context, id string) (*spotify.Track, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &spotify.Track{SpotifyID: id}, nil
}

type stubISRC struct{ got string }

func (s *stubISRC) TrackByISRC(_ context.Context, isrc string) (*deezer.Track, error) {
	s.got = isrc
	if isrc == "USUM71703861" {
		return nil, nil
	}
	return &deezer.Track{ID: 3135556, ISRC: isrc}, nil
}

type stubLocalities struct{ bounds overpass.Bounds }

func (s *stubLocalities) LocalitiesByBounds(_ context.Context, b overpass.Bounds) ([]overpass.Locality, error) {
	s.bounds = b
	return nil, nil
}

func (s *stubLocalities) LocalityByID(_ context.Context, id int64) (*overpass.Locality, error) {
	if id != 1 {
		return nil, nil
	}
	return &overpass.Locality{ID: 1, Name: "Camden"}, nil
}

func newRouter(c *Controller) http.Handler {
	r := chi.NewRouter()
	r.Get("/catalog/tracks", c.SearchTracks)
	r.Get("/catalog/tracks/{id}", c.Track)
	r.Get("/catalog/isrc/{isrc}", c.TrackByISRC)
	r.Get("/localities", c.LocalitiesByBounds)
	r.Get("/localities/{id}", c.Locality)
	return r
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestSearchTracksParams(t *testing.T) {
	tracks := &stubTracks{}
	h := newRouter(&Controller{Tracks: tracks})

	rec := get(t, h, "/catalog/tracks?q=never+gonna")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"q":"never gonna","offset":0,"limit":20}`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/catalog/tracks").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/catalog/tracks?q=x&limit=0").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/catalog/tracks?q=x&offset=-1").Code)
	assert.Equal(t, 1, tracks.calls)
}

func TestTrackRejectsMalformedIDBeforeUpstream(t *testing.T) {
	tracks := &stubTracks{}
	h := newRouter(&Controller{Tracks: tracks})

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/catalog/tracks/not-an-id").Code)
	assert.Equal(t, 0, tracks.calls)

	rec := get(t, h, "/catalog/tracks/4uLU6hMCjMI75M1A2tKUQC")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, tracks.calls)
}

func TestUpstreamErrorsMapToGatewayStatuses(t *testing.T) {
	tracks := &stubTracks{err: upstream.ErrExhausted}
	h := newRouter(&Controller{Tracks: tracks})
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/catalog/tracks?q=x").Code)

	tracks.err = &upstream.StatusError{Provider: "spotify", StatusCode: http.StatusInternalServerError}
	assert.Equal(t, http.StatusBadGateway, get(t, h, "/catalog/tracks/4uLU6hMCjMI75M1A2tKUQC").Code)
}

func TestTrackByISRC(t *testing.T) {
	isrc := &stubISRC{}
	h := newRouter(&Controller{ISRC: isrc})

	rec := get(t, h, "/catalog/isrc/gbduw0000059")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "GBDUW0000059", isrc.got)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/catalog/isrc/USUM71703861").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/catalog/isrc/GB-DUW-00-00059").Code)
}

func TestLocalities(t *testing.T) {
	locs := &stubLocalities{}
	h := newRouter(&Controller{Localities: locs})

	rec := get(t, h, "/localities?north=51.6&east=0.1&south=51.4&west=-0.3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, overpass.Bounds{North: 51.6, East: 0.1, South: 51.4, West: -0.3}, locs.bounds)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/localities?north=x&east=0&south=0&west=0").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/localities?north=10&east=0&south=20&west=0").Code)

	rec = get(t, h, "/localities/1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Camden")
	assert.Equal(t, http.StatusNotFound, get(t, h, "/localities/2").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/localities/abc").Code)
}
