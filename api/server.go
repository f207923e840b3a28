/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Routes are flat under /api and take ids as query parameters, the shape
  the deployed web client calls (including its historical spellings such
  as customer-transcation).

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. hlog:       Request-scoped zerolog logger carrying the request id
  4. Access log: One line per request with status and duration
  5. CORS:       Cross-origin requests for the frontend

SECURITY NOTE:
  Callers identify themselves with clerkUserId. Session verification
  happens at the edge in front of this service.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/warp/billing-engine/ledger"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, logger zerolog.Logger, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(hlog.NewHandler(logger))
	r.Use(requestIDLogger)
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Post("/register", h.Register)

		// Company records
		r.Get("/company", h.ListCompanies)
		r.Post("/company", h.CreateCompany)
		r.Put("/company", h.UpdateCompany)
		r.Delete("/company", h.DeleteCompany)

		r.Get("/bank", h.ListBanks)
		r.Post("/bank", h.CreateBank)
		r.Delete("/bank", h.DeleteBank)

		for path, kind := range map[string]ledger.AccountKind{
			"/customer": ledger.AccountCustomer,
			"/supplier": ledger.AccountSupplier,
		} {
			r.Get(path, h.ListContacts(kind))
			r.Post(path, h.CreateContact(kind))
			r.Put(path, h.UpdateContact(kind))
			r.Delete(path, h.DeleteContact(kind))
		}

		r.Get("/item", h.ListItems)
		r.Post("/item", h.CreateItem)
		r.Put("/item", h.UpdateItem)
		r.Delete("/item", h.DeleteItem)
		r.Get("/check-stock", h.CheckStock)

		r.Get("/expenses", h.ListExpenses)
		r.Post("/expenses", h.SaveExpense)
		r.Put("/expenses", h.SaveExpense)
		r.Delete("/expenses", h.DeleteExpense)

		r.Get("/expenses-category", h.ListExpenseCategories)
		r.Post("/expenses-category", h.CreateExpenseCategory)
		r.Delete("/expenses-category", h.DeleteExpenseCategory)

		// Documents
		r.Get("/invoice", h.ListInvoices)
		r.Post("/invoice", h.CreateInvoice)
		r.Put("/invoice", h.UpdateInvoice)
		r.Patch("/invoice", h.PayInvoice)
		r.Delete("/invoice", h.DeleteInvoice)
		r.Get("/invoice-no", h.NextInvoiceNumber)
		r.Get("/recent-invoice", h.RecentInvoices)

		r.Get("/payment", h.ListPayments)
		r.Post("/payment", h.CreatePayment)

		r.Get("/purchase-invoice", h.ListPurchases)
		r.Post("/purchase-invoice", h.CreatePurchase)
		r.Put("/purchase-invoice", h.UpdatePurchase)
		r.Patch("/purchase-invoice", h.SetPurchaseStatus)
		r.Delete("/purchase-invoice", h.DeletePurchase)

		// Ledger
		r.Get("/customer-transcation", h.ListEntries(ledger.AccountCustomer))
		r.Post("/customer-transcation", h.RecordEntry(ledger.AccountCustomer))
		r.Get("/vendor-transcation", h.ListEntries(ledger.AccountSupplier))
		r.Post("/vendor-transcation", h.RecordEntry(ledger.AccountSupplier))
		r.Post("/customer-tranreverse", h.ReverseEntry)
		r.Post("/undo-reverse", h.UndoReverse)

		// Reports
		r.Get("/customers-overdue", h.OverdueCustomers)
		r.Get("/quick-info", h.QuickInfo)
		r.Get("/customer-statement", h.StatementExport)
		r.Get("/ledger-verify", h.VerifyLedger)

		// Delivery
		r.Post("/s3", h.PresignUpload)
		r.Post("/send-email", h.SendInvoiceEmail)
		r.Post("/send-whatsapp", h.SendInvoiceWhatsApp)
	})

	return r
}

// requestIDLogger adds chi's request id to the request logger.
func requestIDLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("request_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}
