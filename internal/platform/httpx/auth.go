package httpx

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrUnauthorized marks a request without a valid admin token.
var ErrUnauthorized = errors.New("unauthorized")

// ValidateTokenHash reports whether hash is a usable bcrypt hash.
func ValidateTokenHash(hash string) error {
	if hash == "" {
		return nil
	}
	_, err := bcrypt.Cost([]byte(hash))
	return err
}

// HashToken derives the bcrypt hash stored in configuration for token.
func HashToken(token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", errors.New("httpx: empty token")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// RequireToken admits requests whose bearer token matches the bcrypt hash.
// An empty hash disables the check.
func RequireToken(hash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if hash == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok || bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="clinic-reports"`)
				Problem(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized), ErrUnauthorized.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	raw := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(raw, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
