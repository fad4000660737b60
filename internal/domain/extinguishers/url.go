package extinguishers

import (
	"errors"
	"strings"
)

// registryMarker is the host/path fragment every valid stamp URL carries.
const registryMarker = "agcontrol.gob.ar/matafuegos"

var ErrInvalidURL = errors.New("URL no valida: debe ser del sistema AGC de matafuegos")

// Normalize puts a stamp URL into its canonical dedup-key form: secure
// scheme, no redundant default port. Idempotent.
func Normalize(raw string) string {
	u := strings.TrimSpace(raw)
	if strings.HasPrefix(u, "http://") {
		u = "https://" + strings.TrimPrefix(u, "http://")
	}
	u = strings.ReplaceAll(u, ":80/", "/")
	return u
}

// Canonicalize validates that raw points at the AGC registry and returns its
// canonical form.
func Canonicalize(raw string) (string, error) {
	u := strings.TrimSpace(raw)
	if u == "" {
		return "", ErrInvalidURL
	}
	if !strings.Contains(strings.ToLower(u), registryMarker) {
		return "", ErrInvalidURL
	}
	return Normalize(u), nil
}
