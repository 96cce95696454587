/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/transactions/*   Ledger reads and writes
  /api/balance          Aggregate snapshot + recompute
  /api/goals/*          Savings goals and contribute/withdraw
  /api/loans/*          Loans and payments
  /api/budgets/*        Per-month category limits
  /api/templates/*      Recurring templates
  /api/notifications/*  Alerts and reminders
  /api/profile          Owner profile
  /api/admin/jobs/*     Manual job triggers
  /api/reset            Full per-owner wipe

SECURITY NOTE:
  Owner identity comes from the X-Owner-ID header; an authenticating
  gateway in front is assumed. No auth middleware here.

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
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", OwnerHeader},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Ledger routes
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Post("/", h.CreateTransaction)
			r.Get("/{id}", h.GetTransaction)
			r.Put("/{id}", h.EditTransaction)
			r.Delete("/{id}", h.DeleteTransaction)
		})

		// Balance routes
		r.Route("/balance", func(r chi.Router) {
			r.Get("/", h.GetBalance)
			r.Post("/recompute", h.RecomputeBalance)
		})

		// Savings goal routes
		r.Route("/goals", func(r chi.Router) {
			r.Get("/", h.ListGoals)
			r.Post("/", h.CreateGoal)
			r.Get("/{id}", h.GetGoal)
			r.Put("/{id}", h.EditGoal)
			r.Delete("/{id}", h.DeleteGoal)
			r.Post("/{id}/contribute", h.ContributeToGoal)
			r.Post("/{id}/withdraw", h.WithdrawFromGoal)
		})

		// Loan routes
		r.Route("/loans", func(r chi.Router) {
			r.Get("/", h.ListLoans)
			r.Post("/", h.CreateLoan)
			r.Get("/{id}", h.GetLoan)
			r.Delete("/{id}", h.DeleteLoan)
			r.Post("/{id}/payments", h.MakeLoanPayment)
		})

		// Budget routes
		r.Route("/budgets", func(r chi.Router) {
			r.Get("/{month}", h.GetBudget)
			r.Put("/{month}", h.SetBudget)
		})

		// Recurring template routes
		r.Route("/templates", func(r chi.Router) {
			r.Get("/", h.ListTemplates)
			r.Post("/", h.CreateTemplate)
			r.Delete("/{id}", h.DeleteTemplate)
		})

		// Notification routes
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.ListNotifications)
			r.Post("/{id}/read", h.MarkNotificationRead)
		})

		// Profile routes
		r.Route("/profile", func(r chi.Router) {
			r.Get("/", h.GetProfile)
			r.Put("/", h.SaveProfile)
		})

		// Admin routes: manual job triggers
		r.Route("/admin/jobs", func(r chi.Router) {
			r.Post("/recurring", h.RunRecurring)
			r.Post("/reminders", h.RunReminders)
			r.Post("/cleanup", h.RunCleanup)
		})

		// Full per-owner reset
		r.Post("/reset", h.ResetOwner)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
