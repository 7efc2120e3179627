package router

import (
	"net/http"

	"cruzeta-api/internal/handler"
	"cruzeta-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler          *handler.Handler
	InventoryHandler *handler.InventoryHandler
	RequestHandler   *handler.RequestHandler
	AuditHandler     *handler.AuditHandler
	ReportHandler    *handler.ReportHandler
	AdminHandler     *handler.AdminHandler
	AuthHandler      *handler.AuthHandler
	AuthMiddleware   func(http.Handler) http.Handler
	Logger           *zap.Logger
	AllowedOrigins   []string
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.RequestIDHeader, middleware.TokenHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Public
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
		r.Get("/api/v1/health", cfg.Handler.Health)
		r.Get("/api/v1/ready", cfg.Handler.Ready)
	}
	if cfg.AuthHandler != nil {
		r.Post("/api/v1/auth/token", cfg.AuthHandler.GenerateToken)
	}

	r.Group(func(r chi.Router) {
		if cfg.AuthMiddleware != nil {
			r.Use(cfg.AuthMiddleware)
		}

		r.Route("/api/v1", func(r chi.Router) {
			if cfg.AuthHandler != nil {
				r.Route("/auth", func(r chi.Router) {
					r.Post("/revoke", cfg.AuthHandler.RevokeToken)
					r.Post("/refresh", cfg.AuthHandler.RefreshToken)
					r.Post("/password", cfg.AuthHandler.ChangePassword)
					r.Get("/me", cfg.AuthHandler.Me)
				})
			}

			if cfg.InventoryHandler != nil {
				r.Route("/items", func(r chi.Router) {
					r.Get("/", cfg.InventoryHandler.ListItems)
					r.Post("/", cfg.InventoryHandler.CreateItem)
					r.Get("/{id}", cfg.InventoryHandler.GetItem)
					r.Put("/{id}/min-quantity", cfg.InventoryHandler.SetMinQuantity)
				})
			}

			if cfg.RequestHandler != nil {
				r.Route("/requests", func(r chi.Router) {
					r.Get("/", cfg.RequestHandler.List)
					r.Post("/", cfg.RequestHandler.Create)
					r.Get("/{id}", cfg.RequestHandler.Get)
					r.Post("/{id}/approve", cfg.RequestHandler.Approve)
					r.Post("/{id}/reject", cfg.RequestHandler.Reject)
					r.Post("/{id}/fulfill", cfg.RequestHandler.Fulfill)
				})
			}

			if cfg.AuditHandler != nil {
				r.Get("/audit", cfg.AuditHandler.Query)
			}

			if cfg.ReportHandler != nil {
				r.Get("/dashboard", cfg.ReportHandler.Dashboard)
				r.Get("/reports/stock", cfg.ReportHandler.StockReport)
				r.Post("/reports/{report}/exports", cfg.ReportHandler.RecordExport)
			}

			if cfg.AdminHandler != nil {
				r.Route("/admin", func(r chi.Router) {
					r.Get("/users", cfg.AdminHandler.ListUsers)
					r.Post("/users", cfg.AdminHandler.CreateUser)
					r.Put("/users/{id}/role", cfg.AdminHandler.SetRole)
					r.Get("/stats", cfg.AdminHandler.GetStats)
				})
			}
		})
	})

	return r
}
