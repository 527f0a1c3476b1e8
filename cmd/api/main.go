// Package main is the entrypoint for the recipe API server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/cselefendi/recipe-app-api/internal/cache"
	"github.com/cselefendi/recipe-app-api/internal/config"
	"github.com/cselefendi/recipe-app-api/internal/handler"
	"github.com/cselefendi/recipe-app-api/internal/metrics"
	"github.com/cselefendi/recipe-app-api/internal/middleware"
	"github.com/cselefendi/recipe-app-api/internal/repository"
	"github.com/cselefendi/recipe-app-api/internal/server"
	"github.com/cselefendi/recipe-app-api/internal/service"
	"github.com/cselefendi/recipe-app-api/internal/storage"
)

// multipartOverhead is added to the image limit for form boundaries and headers.
const multipartOverhead = 64 << 10

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	if cfg.AutoMigrate {
		applied, err := repo.Migrate(ctx)
		if err != nil {
			logger.Error("failed to apply migrations", slog.String("error", sanitizeError(err, cfg.DatabaseURL)))
			repo.Close()
			os.Exit(1)
		}
		logger.Info("migrations up to date", "applied", applied)
	}

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		repo.Close()
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	if err := os.MkdirAll(cfg.MediaRoot, 0o755); err != nil {
		logger.Error("failed to create media root", "path", cfg.MediaRoot, "error", err)
		os.Exit(1)
	}
	images := storage.NewLocalImageStore(cfg.MediaRoot, cfg.MaxImageSize)

	// Initialize services
	recorder := metrics.NewPrometheus()
	userService := service.NewUserService(repo, cacheClient, cfg.TokenEnv(), recorder)
	tagService := service.NewAttributeService(repo, repository.TagKind, recorder)
	ingredientService := service.NewAttributeService(repo, repository.IngredientKind, recorder)
	recipeService := service.NewRecipeService(repo, images, recorder)

	// Initialize handlers
	a := &app{
		cfg:        cfg,
		logger:     logger,
		recorder:   recorder,
		cache:      cacheClient,
		users:      userService,
		root:       handler.New(),
		health:     handler.NewHealthHandler(repo, cacheClient, images),
		user:       handler.NewUserHandler(userService, logger),
		tag:        handler.NewAttributeHandler(tagService, logger),
		ingredient: handler.NewAttributeHandler(ingredientService, logger),
		recipe:     handler.NewRecipeHandler(recipeService, logger, cfg.MediaURL),
	}

	srv := server.New(a.router(), server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// LIFO: Redis closes before the database pool.
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"media_root", cfg.MediaRoot,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// app holds what the router needs.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	recorder *metrics.PrometheusRecorder
	cache    *cache.Cache
	users    *service.UserService

	root       *handler.Handler
	health     *handler.HealthHandler
	user       *handler.UserHandler
	tag        *handler.AttributeHandler
	ingredient *handler.AttributeHandler
	recipe     *handler.RecipeHandler
}

// router configures the chi router with all routes and middleware.
func (a *app) router() *chi.Mux {
	cfg := a.cfg
	r := chi.NewRouter()
	mediaPrefix := localMediaPrefix(cfg.MediaURL)

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(a.logger, a.recorder))
	r.Use(middleware.Recoverer(a.logger))
	r.Use(middleware.Security(middleware.SecurityConfig{
		IsDevelopment: cfg.IsDevelopment(),
		MediaPrefix:   mediaPrefix,
	}))
	if origins := cfg.GetCORSAllowedOrigins(); len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
			ExposedHeaders:   []string{middleware.RequestIDHeader, "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	r.Use(middleware.MaxBodySize(middleware.BodyLimits{
		Default:   cfg.MaxRequestBodySize,
		Multipart: cfg.MaxImageSize + multipartOverhead,
	}))

	// Health endpoints (no auth required)
	r.Get("/healthz", a.health.Healthz)
	r.Get("/readyz", a.health.Readyz)
	r.Method(http.MethodGet, "/metrics", a.recorder.Handler())

	// Root info endpoint
	r.Get("/", a.root.Hello)

	// Stored images, when served from this process
	if mediaPrefix != "" {
		files := http.StripPrefix(mediaPrefix, http.FileServer(http.Dir(cfg.MediaRoot)))
		r.Get(mediaPrefix+"*", noDirListing(files))
	}

	authCfg := middleware.AuthConfig{
		Logger:      a.logger,
		Resolver:    a.users,
		Cache:       a.cache,
		Metrics:     a.recorder,
		MinDuration: cfg.AuthMinDuration,
	}

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:      a.logger,
		Limiter:     a.cache,
		APIEnabled:  cfg.RateLimitAPIEnabled,
		APIRPM:      cfg.RateLimitAPIRPM,
		APIBurst:    cfg.RateLimitAPIBurst,
		AuthEnabled: cfg.RateLimitAuthEnabled,
		AuthRPS:     cfg.RateLimitAuthRPS,
		AuthBurst:   cfg.RateLimitAuthBurst,
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Signup and login, limited per client IP
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitIP(rateLimitCfg))
			r.Post("/users", a.user.Create)
			r.Post("/users/token", a.user.Token)
		})

		// Everything else requires a token
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(authCfg))
			r.Use(middleware.RateLimitAPI(rateLimitCfg))

			r.Get("/users/me", a.user.Me)
			r.Patch("/users/me", a.user.UpdateMe)
			r.Delete("/users/me/token", a.user.Logout)

			r.Route("/tags", a.tag.Routes)
			r.Route("/ingredients", a.ingredient.Routes)
			r.Route("/recipes", a.recipe.Routes)
		})
	})

	// 404 and 405 handlers
	r.NotFound(a.root.NotFound)
	r.MethodNotAllowed(a.root.MethodNotAllowed)

	return r
}

// localMediaPrefix returns the path prefix, with a trailing slash, under
// which this process serves stored images. A MEDIA_URL that is not a bare
// path points at an external host and yields "".
func localMediaPrefix(mediaURL string) string {
	prefix := strings.TrimSuffix(mediaURL, "/")
	if !strings.HasPrefix(prefix, "/") {
		return ""
	}
	return prefix + "/"
}

// noDirListing hides directory indexes of the media root.
func noDirListing(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
