package router

import (
	"net/http"

	"github.com/foodbook/api/internal/config"
	"github.com/foodbook/api/internal/database"
	"github.com/foodbook/api/internal/handler"
	mw "github.com/foodbook/api/internal/middleware"
	"github.com/foodbook/api/internal/otp"
	"github.com/foodbook/api/internal/service"
	"github.com/foodbook/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
)

// New creates a Chi router with all application routes wired up. Guest
// endpoints (menu browsing, checkout, websocket) stay public; everything
// owner-facing sits behind JWT auth.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, codes *otp.Store, sender otp.Sender, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "https://app.foodbook.dev"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Services
	orderService := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	})
	statusService := service.NewStatusService(pool, func(db database.DBTX) service.StatusStore {
		return database.New(db)
	}, queries)
	billService := service.NewBillService(pool, func(db database.DBTX) service.BillStore {
		return database.New(db)
	}, queries)
	ledger := service.NewLedger(queries)

	// Handlers
	authHandler := handler.NewAuthHandler(queries, codes, sender, cfg.JWTSecret)
	productHandler := handler.NewProductHandler(queries, ledger)
	orderHandler := handler.NewOrderHandler(orderService, statusService, queries, hub)
	billHandler := handler.NewBillHandler(billService, statusService, hub)
	settingsHandler := handler.NewSettingsHandler(pool, func(db database.DBTX) handler.SettingsStore {
		return database.New(db)
	}, queries, codes)
	reportsHandler := handler.NewReportsHandler(queries)

	// Public routes: auth, guest menu and checkout.
	authHandler.RegisterRoutes(r)
	productHandler.RegisterPublicRoutes(r)
	orderHandler.RegisterPublicRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		authHandler.RegisterAuthedRoutes(r)
		productHandler.RegisterRoutes(r)
		orderHandler.RegisterRoutes(r)
		billHandler.RegisterRoutes(r)
		settingsHandler.RegisterRoutes(r)
		reportsHandler.RegisterRoutes(r)
	})

	return r
}
