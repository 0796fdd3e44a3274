/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/grades, /api/orchards, /api/customers   Catalog
  /api/picking-records/*                       Harvest ledger
  /api/inventory/*                             Batches, summary, alerts
  /api/orders/*                                Order lifecycle
  /api/reports/*                               Dashboard and finance
  /api/settings                                Alert threshold
  /api/scenarios/*                             Demo data (dev only)

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Catalog routes
		r.Route("/grades", func(r chi.Router) {
			r.Get("/", h.ListGrades)
			r.Post("/", h.CreateGrade)
			r.Get("/{id}", h.GetGrade)
			r.Put("/{id}", h.UpdateGrade)
			r.Delete("/{id}", h.DeleteGrade)
			r.Get("/{id}/available", h.GetAvailability)
		})
		r.Route("/orchards", func(r chi.Router) {
			r.Get("/", h.ListOrchards)
			r.Post("/", h.CreateOrchard)
			r.Get("/{id}", h.GetOrchard)
			r.Put("/{id}", h.UpdateOrchard)
			r.Delete("/{id}", h.DeleteOrchard)
		})
		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.ListCustomers)
			r.Post("/", h.CreateCustomer)
			r.Get("/{id}", h.GetCustomer)
			r.Put("/{id}", h.UpdateCustomer)
			r.Delete("/{id}", h.DeleteCustomer)
		})

		// Harvest routes
		r.Route("/picking-records", func(r chi.Router) {
			r.Get("/", h.ListPickingRecords)
			r.Post("/", h.LogPicking)
			r.Post("/{id}/process", h.MarkProcessed)
			r.Post("/{id}/sort", h.SortPicking)
		})

		// Inventory routes
		r.Route("/inventory", func(r chi.Router) {
			r.Get("/batches", h.ListBatches)
			r.Post("/batches", h.CreateBatch)
			r.Get("/batches/{id}", h.GetBatch)
			r.Post("/batches/{id}/reduce", h.ReduceBatch)
			r.Get("/summary", h.GetInventorySummary)
			r.Get("/alerts", h.ListAlerts)
		})

		// Order routes
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/", h.CreateOrder)
			r.Get("/{id}", h.GetOrder)
			r.Post("/{id}/ship", h.ShipOrder)
			r.Post("/{id}/complete", h.CompleteOrder)
			r.Post("/{id}/cancel", h.CancelOrder)
			r.Put("/{id}/payment", h.UpdatePayment)
			r.Put("/{id}/cost", h.UpdateCost)
		})

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Get("/dashboard", h.GetDashboard)
			r.Get("/receivables", h.ListReceivables)
			r.Get("/finance", h.GetFinanceSummary)
		})

		r.Get("/settings", h.GetSettings)
		r.Put("/settings", h.UpdateSettings)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetData)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Farm Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Farm Engine API</h1>
<ul>
<li><a href="/api/inventory/summary">/api/inventory/summary</a> - Stock per grade</li>
<li><a href="/api/inventory/alerts">/api/inventory/alerts</a> - Aging alerts</li>
<li><a href="/api/orders">/api/orders</a> - Orders</li>
<li><a href="/api/reports/dashboard">/api/reports/dashboard</a> - Dashboard</li>
<li><a href="/api/scenarios">/api/scenarios</a> - Demo scenarios</li>
</ul>
</body>
</html>`))
	})

	return r
}
