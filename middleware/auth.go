package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// Имена claims в токене.
const (
	jwtClaimPlayerID = "player_id"
	jwtClaimTeamID   = "team_id"
)

var (
	ErrMissingClaims = errors.New("auth claims not found in context")
	ErrNoTeam        = errors.New("player does not belong to a team")
)

// Authenticate проверяет Bearer-токен и кладёт claims в контекст запроса.
func Authenticate(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "missing or malformed authorization header", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(header, "Bearer ")

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetPlayerIDFromContext(ctx context.Context) (int, error) {
	return intClaim(ctx, jwtClaimPlayerID)
}

// GetTeamIDFromContext возвращает ErrNoTeam для игрока без команды
// (claim отсутствует или равен нулю).
func GetTeamIDFromContext(ctx context.Context) (int, error) {
	teamID, err := intClaim(ctx, jwtClaimTeamID)
	if err != nil {
		if errors.Is(err, ErrMissingClaims) {
			return 0, err
		}
		return 0, ErrNoTeam
	}
	if teamID <= 0 {
		return 0, ErrNoTeam
	}
	return teamID, nil
}

func intClaim(ctx context.Context, name string) (int, error) {
	claims, ok := ctx.Value(claimsContextKey).(jwt.MapClaims)
	if !ok {
		return 0, ErrMissingClaims
	}
	raw, ok := claims[name]
	if !ok {
		return 0, fmt.Errorf("missing %q claim in token", name)
	}
	// encoding/json распаковывает числа в float64.
	value, ok := raw.(float64)
	if !ok || value != float64(int(value)) {
		return 0, fmt.Errorf("invalid %q claim in token", name)
	}
	return int(value), nil
}
