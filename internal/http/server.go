package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/recetas-api/internal/auth"
	"github.com/Clark-Hu/recetas-api/internal/config"
	"github.com/Clark-Hu/recetas-api/internal/media"
	"github.com/Clark-Hu/recetas-api/internal/repository"
	"github.com/Clark-Hu/recetas-api/internal/store"
)

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg       config.Config
	store     *store.Store
	repo      *repository.Repository
	tokens    *auth.TokenManager
	passwords auth.PasswordHasher
	media     media.Uploader
	logger    zerolog.Logger
	router    chi.Router
	httpSrv   *http.Server
}

// Deps bundles the collaborators handlers need.
type Deps struct {
	Store     *store.Store
	Repo      *repository.Repository
	Tokens    *auth.TokenManager
	Passwords auth.PasswordHasher
	Media     media.Uploader
	Logger    zerolog.Logger
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, deps Deps) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	s := &Server{
		cfg:       cfg,
		store:     deps.Store,
		repo:      deps.Repo,
		tokens:    deps.Tokens,
		passwords: deps.Passwords,
		media:     deps.Media,
		logger:    deps.Logger.With().Str("component", "http").Logger(),
		router:    r,
	}

	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Location", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(recordMetrics)

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", promhttp.Handler())
	s.mountMedia()

	s.router.Route("/auth", func(r chi.Router) {
		r.Use(s.rateLimit())
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
	})

	s.router.Route("/users", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/search", s.handleSearchUsers)
		r.Route("/me", func(r chi.Router) {
			r.Get("/", s.handleGetMe)
			r.Patch("/", s.handleUpdateMe)
			r.Put("/photo", s.handleUploadPhoto)
			r.Get("/recipes", s.handleListMyRecipes)
			r.Get("/favorites", s.handleListFavorites)
		})
		r.Route("/{id}", func(r chi.Router) {
			r.Put("/follow", s.handleFollow)
			r.Delete("/follow", s.handleUnfollow)
			r.Get("/followers", s.handleListFollowers)
			r.Get("/following", s.handleListFollowing)
		})
	})

	s.router.Route("/recipes", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.optionalAuth)
			r.Get("/", s.handleListRecipes)
			r.Get("/{id}", s.handleGetRecipe)
			r.Get("/{id}/rating", s.handleGetRating)
		})
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/", s.handleCreateRecipe)
			r.Patch("/{id}", s.handleUpdateRecipe)
			r.Delete("/{id}", s.handleDeleteRecipe)
			r.Put("/{id}/image", s.handleUploadRecipeImage)
			r.Post("/{id}/like", s.handleToggleLike)
			r.Post("/{id}/ratings", s.handleSubmitRating)
			r.Get("/{id}/ratings/me", s.handleGetMyRating)
		})
	})

	s.router.Route("/admin", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Use(s.requireAdmin)
		r.Get("/recipes/pending", s.handleListPendingRecipes)
		r.Get("/recipes/stats", s.handleRecipeStats)
		r.Put("/recipes/{id}/approve", s.handleApproveRecipe)
		r.Put("/recipes/{id}/reject", s.handleRejectRecipe)
		r.Put("/users/{id}/state", s.handleSetUserState)
		r.Get("/users/stats", s.handleUserStats)
	})
}

// mountMedia serves locally stored uploads under their public prefix.
func (s *Server) mountMedia() {
	disk, ok := s.media.(*media.DiskStore)
	if !ok {
		return
	}
	prefix := strings.TrimRight(disk.Prefix(), "/")
	fs := http.StripPrefix(prefix+"/", http.FileServer(http.Dir(disk.Dir())))
	s.router.Get(prefix+"/*", fs.ServeHTTP)
}

func (s *Server) rateLimit() func(http.Handler) http.Handler {
	if s.cfg.RateLimitRequests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	window := time.Duration(s.cfg.RateLimitWindowSecs) * time.Second
	return httprate.Limit(
		s.cfg.RateLimitRequests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			s.respondError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, try again later")
		}),
	)
}

// Start boots the HTTP server and blocks until ctx is done or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpSrv.Addr).Msg("http server listening")
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Handler exposes the router, e.g. for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.HealthCheck(ctx); err != nil {
		s.respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Database unreachable")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
