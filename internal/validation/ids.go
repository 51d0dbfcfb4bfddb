package validation

import "regexp"

// Scopes OAuth de Spotify: minúsculas separadas por guiones
// (user-read-email, playlist-modify-private, ugc-image-upload).
var scopeNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,62}[a-z0-9])?$`)

// IDs de Spotify: base62, 22 caracteres.
var spotifyIDRe = regexp.MustCompile(`^[0-9A-Za-z]{22}$`)

// ISRC: país (2 letras), registrante (3 alfanum), año (2 dígitos), código (5 dígitos).
var isrcRe = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{3}[0-9]{7}$`)

// ValidScopeName true si el nombre tiene forma de scope OAuth.
func ValidScopeName(name string) bool {
	return scopeNameRe.MatchString(name)
}

func ValidSpotifyID(id string) bool {
	return spotifyIDRe.MatchString(id)
}

// ValidISRC acepta solo la forma compacta en mayúsculas (sin guiones).
func ValidISRC(code string) bool {
	return isrcRe.MatchString(code)
}
