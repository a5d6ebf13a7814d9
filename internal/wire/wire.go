package wire

import (
	"net/http"

	"payment-service/internal/adaptor"
	"payment-service/internal/gateway"
	"payment-service/internal/metrics"
	"payment-service/internal/usecase"
	"payment-service/pkg/middleware"
	"payment-service/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// App holds the assembled router
type App struct {
	Router *chi.Mux
}

// Deps are the already-built collaborators the router needs.
type Deps struct {
	Service  *usecase.Service
	Verifier *gateway.SignatureVerifier
	DB       adaptor.Pinger
	Metrics  *metrics.Metrics
}

// Wiring builds the handlers and the chi router
func Wiring(deps Deps, config *utils.Config, logger *zap.Logger) *App {
	handler := adaptor.NewHandler(deps.Service, deps.Verifier, deps.DB, logger)

	router := setupRouter(handler, deps, config, logger)

	return &App{
		Router: router,
	}
}

func setupRouter(
	handler *adaptor.Handler,
	deps Deps,
	config *utils.Config,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   config.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	wirePayment(r, handler, deps.Verifier, logger)

	r.Get("/", handler.Root.Index)
	r.Get("/health", handler.Root.Health)
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	return r
}
