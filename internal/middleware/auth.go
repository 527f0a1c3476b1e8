package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cselefendi/recipe-app-api/internal/auth"
	"github.com/cselefendi/recipe-app-api/internal/metrics"
	"github.com/cselefendi/recipe-app-api/internal/model"
	"github.com/cselefendi/recipe-app-api/internal/service"
)

// DefaultMinAuthDuration is the minimum time spent on auth to blunt timing attacks.
const DefaultMinAuthDuration = 200 * time.Millisecond

// TokenResolver turns a plaintext token into an auth context.
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (*model.AuthContext, error)
}

// AuthContextCache caches resolved auth contexts by token cache key.
type AuthContextCache interface {
	GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error)
	SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext) error
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger   *slog.Logger
	Resolver TokenResolver
	Cache    AuthContextCache // optional
	Metrics  metrics.Recorder // optional
	// MinDuration pads failed and successful lookups alike. Zero disables it.
	MinDuration time.Duration
}

// Auth returns a middleware that authenticates API requests.
// It extracts the token from the Authorization header,
// resolves it, and injects the auth context into the request.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()

			// Ensure consistent timing regardless of outcome
			pad := func() {
				if elapsed := time.Since(startTime); elapsed < cfg.MinDuration {
					time.Sleep(cfg.MinDuration - elapsed)
				}
			}

			fail := func(reason string) {
				recorder.IncAuthFailure(reason)
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", reason),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				pad()
				writeAuthError(w)
			}

			token := ExtractToken(r)
			if token == "" {
				fail("missing_token")
				return
			}

			cacheKey := auth.CacheKey(token)
			if cfg.Cache != nil {
				if authCtx, _ := cfg.Cache.GetAuthContext(r.Context(), cacheKey); authCtx != nil {
					recorder.IncAuthCacheHit()
					logSuccess(cfg.Logger, r, authCtx, true)
					pad()
					next.ServeHTTP(w, r.WithContext(auth.ContextWithAuth(r.Context(), authCtx)))
					return
				}
				recorder.IncAuthCacheMiss()
			}

			authCtx, err := cfg.Resolver.ResolveToken(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, service.ErrInvalidToken):
					fail("invalid_token")
				case errors.Is(err, service.ErrInactiveUser):
					fail("inactive_user")
				default:
					cfg.Logger.Error("token lookup failed",
						slog.String("error", err.Error()),
						slog.String("request_id", GetRequestID(r.Context())),
					)
					fail("lookup_error")
				}
				return
			}

			if cfg.Cache != nil {
				_ = cfg.Cache.SetAuthContext(r.Context(), cacheKey, authCtx)
			}

			logSuccess(cfg.Logger, r, authCtx, false)
			pad()
			next.ServeHTTP(w, r.WithContext(auth.ContextWithAuth(r.Context(), authCtx)))
		})
	}
}

func logSuccess(logger *slog.Logger, r *http.Request, authCtx *model.AuthContext, cacheHit bool) {
	logger.Debug("authentication successful",
		slog.String("token_id", authCtx.TokenID),
		slog.String("token_prefix", authCtx.TokenPrefix),
		slog.String("user_id", authCtx.UserID),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.Bool("cache_hit", cacheHit),
		slog.String("request_id", GetRequestID(r.Context())),
	)
}

// ExtractToken returns the token from "Authorization: Token <t>" or
// "Authorization: Bearer <t>". The scheme is case-insensitive.
func ExtractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok {
		return ""
	}
	switch strings.ToLower(scheme) {
	case "token", "bearer":
		return strings.TrimSpace(token)
	default:
		return ""
	}
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Token realm="api"`)
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication credentials were not provided or are invalid.")
}
