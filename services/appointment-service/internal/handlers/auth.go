package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/r-osmani/bookpay/libs/auth"
	"github.com/r-osmani/bookpay/libs/httpx"
	"github.com/r-osmani/bookpay/services/appointment-service/internal/apperr"
)

type claimsKey struct{}

func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims
}

// RequireAuth verifies the bearer token on every callable. HS256 with the
// shared secret is the default; when a JWKS client is configured, RS256
// tokens carrying a kid are verified against it instead.
func RequireAuth(jwtSecret string, jwksClient *auth.JWKSClient) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeCode(w, apperr.CodeUnauthenticated, "missing bearer token")
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

			var claims *auth.Claims
			var err error
			if jwksClient != nil {
				if hdr, hdrErr := auth.ParseHeader(token); hdrErr == nil && hdr.Alg == "RS256" && hdr.Kid != "" {
					if pub, keyErr := jwksClient.Get(hdr.Kid); keyErr == nil {
						claims, err = auth.VerifyRS256(token, pub)
					} else {
						err = keyErr
					}
				} else {
					claims, err = auth.ParseAndVerifyHS256(token, jwtSecret)
				}
			} else {
				claims, err = auth.ParseAndVerifyHS256(token, jwtSecret)
			}
			if err != nil || claims == nil {
				writeCode(w, apperr.CodeUnauthenticated, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
