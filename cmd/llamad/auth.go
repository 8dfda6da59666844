package main

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrTokenMismatch is returned by checkAdminToken when the presented
// token does not match the configured hash.
var ErrTokenMismatch = errors.New("admin token does not match")

// hashAdminToken bcrypt-hashes an admin control token for storage in
// config.Config.AdminTokenHash, matching the cost the teacher's
// webui/auth package uses for operator passwords.
func hashAdminToken(token string) (string, error) {
	if token == "" {
		return "", errors.New("admin token must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// checkAdminToken verifies token against hash using bcrypt's constant-time
// comparison. A nil-or-empty hash disables auth entirely (every token is
// accepted), matching the daemon's "auth is opt-in" config default.
func checkAdminToken(hash, token string) error {
	if hash == "" {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrTokenMismatch
		}
		return err
	}
	return nil
}

// bearerToken extracts the token from a "Bearer <token>" Authorization
// header, or returns empty if the header is absent or malformed.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimPrefix(auth, prefix)
}

// requireAdminToken wraps handler with an admin-token check when
// adminTokenHash is non-empty; otherwise it passes every request through
// unauthenticated.
func requireAdminToken(adminTokenHash string, handler http.HandlerFunc) http.HandlerFunc {
	if adminTokenHash == "" {
		return handler
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if err := checkAdminToken(adminTokenHash, bearerToken(r)); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		handler(w, r)
	}
}
