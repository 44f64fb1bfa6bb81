package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/petcare/apiserver/config"
	"github.com/petcare/apiserver/internal/auth"
	"github.com/petcare/apiserver/internal/db"
	"github.com/petcare/apiserver/internal/handlers"
	"github.com/petcare/apiserver/internal/observability/logging"
	"github.com/petcare/apiserver/internal/observability/metrics"
	obsmw "github.com/petcare/apiserver/internal/observability/middleware"
	"github.com/petcare/apiserver/internal/services"
	"github.com/petcare/apiserver/internal/storage"
	"github.com/petcare/apiserver/internal/store"
	"github.com/petcare/apiserver/internal/store/memory"
)

const serviceName = "petcare-api"

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	logger     *slog.Logger
}

type userStore interface {
	services.UserRepository
	auth.CredentialStore
}

type repositories struct {
	users     userStore
	pets      services.PetRepository
	adoptions services.AdoptionRequestRepository
}

func openRepositories(ctx context.Context, cfg config.Config) (repositories, *sql.DB, error) {
	if cfg.StoreBackend == "memory" {
		mem := memory.New()
		return repositories{users: mem.Users(), pets: mem.Pets(), adoptions: mem.AdoptionRequests()}, nil, nil
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return repositories{}, nil, fmt.Errorf("open database: %w", err)
	}
	return repositories{
		users:     store.NewUserRepository(dbConn),
		pets:      store.NewPetRepository(dbConn),
		adoptions: store.NewAdoptionRequestRepository(dbConn),
	}, dbConn, nil
}

// openImageStorage returns nil when no backend is configured.
func openImageStorage(ctx context.Context, cfg config.Config) (*storage.Storage, error) {
	backend := cfg.Storage.Backend
	if backend == "" && cfg.StoreBackend == "memory" {
		backend = "memory"
	}

	var objects storage.ObjectStorage
	switch backend {
	case "":
		return nil, nil
	case "memory":
		objects = storage.NewMemoryBackend("petcare-images")
	case "minio":
		client, err := storage.NewMinioClient(cfg.Storage.Minio)
		if err != nil {
			return nil, err
		}
		objects = client
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.Storage.GCS)
		if err != nil {
			return nil, err
		}
		objects = client
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}

	images := storage.NewStorage(objects)
	if err := images.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", images.Bucket(), err)
	}
	return images, nil
}

func newTokenCodec(cfg config.AuthConfig) (*auth.TokenCodec, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	return auth.NewTokenCodec(cfg.JWTSecret,
		auth.WithIssuer(cfg.JWTIssuer),
		auth.WithAudience(cfg.JWTAudience),
		auth.WithTTL(cfg.TokenTTL),
	), nil
}

// New wires repositories, services and routes from cfg.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logger := logging.NewLogger(logging.Config{
		ServiceName: serviceName,
		Environment: cfg.Env,
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
	})
	slog.SetDefault(logger)
	metrics.MustRegister(serviceName)

	codec, err := newTokenCodec(cfg.Auth)
	if err != nil {
		return nil, err
	}

	repos, dbConn, err := openRepositories(ctx, cfg)
	if err != nil {
		return nil, err
	}

	images, err := openImageStorage(ctx, cfg)
	if err != nil {
		if dbConn != nil {
			_ = dbConn.Close()
		}
		return nil, fmt.Errorf("open image storage: %w", err)
	}

	passwords := auth.PasswordVerifier{AllowLegacy: cfg.Auth.AllowLegacyPasswords}
	userService := services.NewUserService(repos.users, codec, passwords, logger)
	petService := services.NewPetService(repos.pets, images, cfg.Auth.RequireOwnerRoleForPets, logger)
	adoptionService := services.NewAdoptionService(repos.adoptions, repos.pets, logger)

	authMiddleware := handlers.NewAuthMiddleware(auth.NewAuthenticator(codec, repos.users, logger), logger)

	var loginLimiter func(http.Handler) http.Handler
	if cfg.HTTP.LoginRateLimit > 0 {
		loginLimiter = httprate.LimitByIP(cfg.HTTP.LoginRateLimit, time.Minute)
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		obsmw.WithRequestLog(logger),
		obsmw.WithMetrics,
		obsmw.SecurityHeaders,
		middleware.Timeout(60*time.Second),
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.HTTP.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Get("/api/health", handlers.Health)
	router.Handle("/metrics", promhttp.Handler())
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, authMiddleware, loginLimiter)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, userService, petService, adoptionService, authMiddleware)
	})
	router.Route("/pets", func(r chi.Router) {
		handlers.PetRouter(r, petService, authMiddleware)
	})
	router.Route("/adoption-requests", func(r chi.Router) {
		handlers.AdoptionRouter(r, adoptionService, authMiddleware)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server configured",
		"port", port,
		"store", cfg.StoreBackend,
		"images", images != nil,
	)

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		logger:     logger,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
