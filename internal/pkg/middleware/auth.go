package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/decentrahub/hub/internal/pkg/httpx"
	"github.com/decentrahub/hub/internal/pkg/router"
	"github.com/decentrahub/hub/internal/pkg/serr"
	"github.com/golang-jwt/jwt/v5"
)

type ctxKey struct{}

var walletKey ctxKey

var errNoToken = errors.New("missing bearer token")

// Auth accepts an HS256 session token in the Authorization header, with or without
// the Bearer scheme, and stores its subject (the wallet address) in the request context.
func Auth(key []byte) router.Middleware {
	return func(next http.Handler) http.Handler {
		return authMiddleware(next, key)
	}
}

func authMiddleware(next http.Handler, key []byte) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawToken := strings.TrimSpace(r.Header.Get("Authorization"))
		if len(rawToken) > 7 && strings.EqualFold(rawToken[:7], "bearer ") {
			rawToken = strings.TrimSpace(rawToken[7:])
		}
		if rawToken == "" {
			httpx.HandleErr(w, r, serr.Unauthorized(errNoToken, "Unauthorized"))
			return
		}

		token, err := jwt.Parse(rawToken, func(t *jwt.Token) (any, error) {
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			httpx.HandleErr(w, r, serr.Unauthorized(err, "Unauthorized"))
			return
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			httpx.HandleErr(w, r, serr.Unauthorized(err, "Unauthorized"))
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithWallet(r.Context(), sub)))
	})
}

func ContextWithWallet(ctx context.Context, wallet string) context.Context {
	return context.WithValue(ctx, walletKey, wallet)
}

func WalletFromContext(ctx context.Context) string {
	wallet, _ := ctx.Value(walletKey).(string)
	return wallet
}
