package router

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/comandaweb/terminal/internal/api"
	"github.com/comandaweb/terminal/internal/auth"
	"github.com/comandaweb/terminal/internal/cart"
	"github.com/comandaweb/terminal/internal/config"
	"github.com/comandaweb/terminal/internal/handler"
	mw "github.com/comandaweb/terminal/internal/middleware"
	"github.com/comandaweb/terminal/internal/service"
	"github.com/comandaweb/terminal/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// New creates a Chi router with all terminal routes wired up.
// Every screen route requires a live session; each screen then checks the role.
func New(cfg *config.Config, sessions *auth.Manager, client *api.Client, orders *service.OrderService, comanda *cart.Cart, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS for the static pages
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":       "ok",
			"api_prefix":   client.Prefix(),
			"telas_ativas": hub.Clients(ws.RoomAll),
		})
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(sessions, cfg.SessionWarning)
	authHandler.RegisterRoutes(r)

	// WebSocket route (checks the session itself)
	r.Get("/ws/pedidos", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, sessions, w, r)
	})

	r.Group(func(r chi.Router) {
		r.Use(mw.RequireSession(sessions))

		// Menu screen
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(mw.PageMenu...))
			comandaHandler := handler.NewComandaHandler(client, comanda, orders)
			comandaHandler.RegisterRoutes(r)
		})

		orderHandler := handler.NewOrderHandler(orders, comanda)
		checkoutHandler := handler.NewCheckoutHandler(orders)
		r.Route("/pedidos", func(r chi.Router) {
			// Order list and summary
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(mw.PageOrders...))
				orderHandler.RegisterRoutes(r)
			})

			// Kitchen
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(mw.PageKitchen...))
				orderHandler.RegisterKitchenRoutes(r)
			})

			// Cashier
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(mw.PageCheckout...))
				checkoutHandler.RegisterRoutes(r)
			})
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
