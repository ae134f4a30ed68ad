package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"

	"pressflow/internal/domain"
	"pressflow/internal/engine/auth"
	"pressflow/internal/repo"
)

type AuthConfig struct {
	JWTSecret string
	Issuer    string
	// AllowLegacyActorHeader accepts X-Actor-Id without credentials. Local use only.
	AllowLegacyActorHeader bool
	Logger                 *slog.Logger
}

// Principal is the authenticated identity before role resolution.
type Principal struct {
	ActorID string
	Roles   []string
	Source  string
}

type actorKey struct{}

func (c AuthConfig) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func withActor(ctx context.Context, a auth.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// actorFromContext returns the resolved caller, or the zero Actor which every
// engine operation rejects as unauthenticated.
func actorFromContext(ctx context.Context) auth.Actor {
	a, _ := ctx.Value(actorKey{}).(auth.Actor)
	return a
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
}

func authenticateJWT(token, secret, issuer string) (Principal, error) {
	if strings.TrimSpace(secret) == "" {
		return Principal{}, errors.New("jwt secret not configured")
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	claims := &jwtClaims{}
	parsed, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return Principal{}, err
	}
	if !parsed.Valid {
		return Principal{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return Principal{}, errors.New("subject claim required")
	}
	return Principal{ActorID: claims.Subject, Roles: claims.Roles, Source: "jwt"}, nil
}

// SignToken mints an HS256 token for actorID with the given roles.
func SignToken(secret, issuer, actorID string, roles []string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	if strings.TrimSpace(actorID) == "" {
		return "", errors.New("actor id required")
	}
	now := time.Now()
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  actorID,
			Issuer:   issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
		Roles: roles,
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func authenticateAPIKey(ctx context.Context, r repo.Repo, key string) (Principal, error) {
	if strings.TrimSpace(key) == "" {
		return Principal{}, errors.New("api key required")
	}
	apiKey, err := r.GetAPIKeyByHash(ctx, repo.HashAPIKey(key))
	if err != nil {
		return Principal{}, err
	}
	if apiKey.ActorID == "" {
		return Principal{}, errors.New("api key missing actor")
	}
	var roles []string
	if apiKey.Role == domain.RoleAdmin {
		roles = []string{string(domain.RoleAdmin)}
	}
	return Principal{ActorID: apiKey.ActorID, Roles: roles, Source: "api_key"}, nil
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// isPublicPath reports routes served without credentials.
func isPublicPath(basePath, p string) bool {
	switch p {
	case path.Join(basePath, "health"), path.Join(basePath, "openapi.json"):
		return true
	}
	showcase := path.Join(basePath, "showcase")
	return p == showcase || strings.HasPrefix(p, showcase+"/")
}

// newAuthMiddleware authenticates the caller and resolves its role once per
// request.
func newAuthMiddleware(basePath string, cfg AuthConfig, r repo.Repo) func(http.Handler) http.Handler {
	resolver := auth.Service{Roster: r}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			// Only enforce for API base path.
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			if isPublicPath(basePath, req.URL.Path) {
				next.ServeHTTP(w, req)
				return
			}

			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			apiKeyHeader := strings.TrimSpace(req.Header.Get("X-Api-Key"))
			legacyActor := strings.TrimSpace(req.Header.Get("X-Actor-Id"))

			var principal Principal
			var err error
			switch {
			case authz != "":
				token, ok := bearerToken(authz)
				if !ok {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				principal, err = authenticateJWT(token, cfg.JWTSecret, cfg.Issuer)
			case apiKeyHeader != "":
				principal, err = authenticateAPIKey(req.Context(), r, apiKeyHeader)
			case legacyActor != "" && cfg.AllowLegacyActorHeader:
				cfg.logger().Warn("using legacy X-Actor-Id header without credentials", "actor_id", legacyActor)
				principal = Principal{ActorID: legacyActor, Source: "legacy_header"}
			default:
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
				return
			}
			if err != nil {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}
			actor, err := resolver.ResolveActor(req.Context(), principal.ActorID, principal.Roles, principal.Source)
			if err != nil {
				if errors.Is(err, auth.ErrUnauthenticated) {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
					return
				}
				cfg.logger().Error("resolve actor failed", "actor_id", principal.ActorID, "err", err)
				respondStatusError(w, newAPIError(http.StatusInternalServerError, "internal_error", "internal error", nil))
				return
			}
			next.ServeHTTP(w, req.WithContext(withActor(req.Context(), actor)))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}
