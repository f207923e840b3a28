/*
handlers.go - HTTP API handlers for the billing engine

PURPOSE:
  Exposes the ledger engine and the company records via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to the engine
  (ledger, stock coordinator, projection, sequence allocator).

ENDPOINTS:
  Identity and records (records.go):
    POST   /api/register               Register a user by clerkUserId
    *      /api/company                Company CRUD
    *      /api/bank                   Bank accounts of a company
    *      /api/customer, /supplier    Contact CRUD with opening balance
    *      /api/item                   Inventory items
    GET    /api/check-stock            Availability for a quantity
    *      /api/expenses               Expenses
    *      /api/expenses-category      Expense categories

  Documents (invoices.go):
    *      /api/invoice                Create / list / header update / pay / delete
    GET    /api/invoice-no             Next invoice number (preview)
    GET    /api/recent-invoice         Latest invoices
    *      /api/payment                Invoice payments
    *      /api/purchase-invoice       Purchase invoices

  Ledger (ledger_handlers.go):
    GET    /api/customer-transcation   Customer statement page
    POST   /api/customer-transcation   Record a customer entry
    GET    /api/vendor-transcation     Supplier statement page
    POST   /api/vendor-transcation     Record a supplier entry
    POST   /api/customer-tranreverse   Reverse an entry
    POST   /api/undo-reverse           Undo the latest reversal
    GET    /api/customers-overdue      Overdue customers (cached)
    GET    /api/quick-info             Dashboard figures (cached)
    GET    /api/customer-statement     Statement as .xlsx
    GET    /api/ledger-verify          Cached vs replayed balances

  Delivery (delivery.go):
    POST   /api/s3                     Presigned upload URL
    POST   /api/send-email             Invoice email with PDF
    POST   /api/send-whatsapp          Share link to an uploaded PDF

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: SQLite records plus the engine's UnitOfWork
  - Ledger / Stock / Projection / Sequence: engine services
  - Cache: report results, invalidated per company on every mutation
  - Objects / Renderer / Mailer: document delivery

REQUEST FLOW:
  1. Bind and validate the body (validate.go)
  2. Resolve the caller (clerkUserId) and the selected company
  3. Call the engine
  4. Invalidate the company's cached reports if anything changed
  5. Serialize {"success": true, ...}

ERROR HANDLING:
  errorStatus() maps engine error kinds to HTTP statuses:
  - 400: Validation errors, insufficient stock
  - 401: Missing identity, company of another user
  - 404: Resource not found
  - 409: Conflict (already reversed, stale undo, duplicates)
  - 500: Internal errors (message hidden, logged)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/warp/billing-engine/internal/cache"
	"github.com/warp/billing-engine/internal/document"
	"github.com/warp/billing-engine/internal/mailer"
	"github.com/warp/billing-engine/internal/objectstore"
	"github.com/warp/billing-engine/ledger"
	"github.com/warp/billing-engine/store/sqlite"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Ledger     *ledger.Ledger
	Stock      *ledger.StockCoordinator
	Projection *ledger.Projection
	Sequence   *ledger.SequenceAllocator

	Cache    cache.Cache
	Objects  objectstore.Store
	Renderer *document.Renderer
	Mailer   mailer.Sender
	Clock    ledger.Clock

	ReportTTL   time.Duration
	PhoneRegion string
	Production  bool

	validate *validator.Validate
}

// Options configures optional collaborators. Zero values fall back to
// in-process implementations.
type Options struct {
	Locker  ledger.Locker
	Cache   cache.Cache
	Objects objectstore.Store
	Mailer  mailer.Sender
	Clock   ledger.Clock

	ReportTTL   time.Duration
	PhoneRegion string
	Production  bool
}

// NewHandler creates a new handler wired to the store.
func NewHandler(store *sqlite.Store, opts Options) *Handler {
	if opts.Locker == nil {
		opts.Locker = ledger.NopLocker{}
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewMemory()
	}
	if opts.Objects == nil {
		opts.Objects = objectstore.NewMemory()
	}
	if opts.Mailer == nil {
		opts.Mailer = mailer.LogSender{}
	}
	if opts.Clock == nil {
		opts.Clock = ledger.SystemClock{}
	}
	if opts.ReportTTL <= 0 {
		opts.ReportTTL = time.Minute
	}
	if opts.PhoneRegion == "" {
		opts.PhoneRegion = "IN"
	}

	l := ledger.NewLedger(store)
	l.Locker = opts.Locker
	l.Clock = opts.Clock

	p := ledger.NewProjection(store)
	p.Clock = opts.Clock

	return &Handler{
		Store:       store,
		Ledger:      l,
		Stock:       ledger.NewStockCoordinator(l),
		Projection:  p,
		Sequence:    ledger.NewSequenceAllocator(store),
		Cache:       opts.Cache,
		Objects:     opts.Objects,
		Renderer:    document.NewRenderer(),
		Mailer:      opts.Mailer,
		Clock:       opts.Clock,
		ReportTTL:   opts.ReportTTL,
		PhoneRegion: opts.PhoneRegion,
		Production:  opts.Production,
		validate:    newValidator(opts.PhoneRegion),
	}
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports whether the database answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		h.writeError(w, r, http.StatusServiceUnavailable, "database unavailable", err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"status": "ok"})
}

// =============================================================================
// IDENTITY & TENANCY
// =============================================================================

// identityFromQuery reads the caller for GET and DELETE requests. Older
// clients send the identity provider id as userId.
func identityFromQuery(r *http.Request) Identity {
	q := r.URL.Query()
	clerk := q.Get("clerkUserId")
	if clerk == "" {
		clerk = q.Get("userId")
	}
	return Identity{ClerkUserID: clerk, SelectedCompanyID: q.Get("selectedCompanyId")}
}

// currentUser resolves the registered user behind a clerk id.
func (h *Handler) currentUser(ctx context.Context, clerkUserID string) (*sqlite.User, error) {
	if clerkUserID == "" {
		return nil, ledger.ErrUnauthorized
	}
	user, err := h.Store.FindUserByExternalID(ctx, clerkUserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, &ledger.NotFoundError{Entity: "user", ID: clerkUserID}
	}
	return user, nil
}

// ownedCompany loads a company and checks it belongs to the user.
func (h *Handler) ownedCompany(ctx context.Context, user *sqlite.User, companyID string) (*sqlite.Company, error) {
	if companyID == "" {
		return nil, &ledger.ValidationError{Field: "selectedCompanyId", Message: "is required"}
	}
	company, err := h.Store.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	// Another user's company reads as missing.
	if company == nil || company.UserID != user.ID {
		return nil, &ledger.NotFoundError{Entity: "company", ID: companyID}
	}
	return company, nil
}

// scope resolves both the caller and the selected company.
func (h *Handler) scope(ctx context.Context, id Identity) (*sqlite.User, *sqlite.Company, error) {
	user, err := h.currentUser(ctx, id.ClerkUserID)
	if err != nil {
		return nil, nil, err
	}
	company, err := h.ownedCompany(ctx, user, id.SelectedCompanyID)
	if err != nil {
		return nil, nil, err
	}
	return user, company, nil
}

// invalidate drops the company's cached reports. A cache failure never
// fails the request that already committed.
func (h *Handler) invalidate(ctx context.Context, companyID string) {
	if err := h.Cache.Invalidate(ctx, companyID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("company", companyID).Msg("report cache invalidation failed")
	}
}

// cachedReport serves key from the cache or computes and stores it.
func cachedReport[T any](ctx context.Context, h *Handler, companyID, key string, load func() (T, error)) (T, error) {
	var out T
	hit, err := h.Cache.Get(ctx, key, &out)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("report cache read failed")
	}
	if hit && err == nil {
		return out, nil
	}
	out, err = load()
	if err != nil {
		return out, err
	}
	if err := h.Cache.Set(ctx, companyID, key, out, h.ReportTTL); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("report cache write failed")
	}
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeOK wraps the payload fields in a success envelope.
func writeOK(w http.ResponseWriter, status int, fields map[string]any) {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["success"] = true
	writeJSON(w, status, body)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil && !h.Production {
		resp.Details = err.Error()
	}
	if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Int("status", status).Msg(message)
	}
	writeJSON(w, status, resp)
}

// fail maps an engine or store error to a response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	message := err.Error()
	switch status {
	case http.StatusUnauthorized:
		message = "unauthorized"
	case http.StatusInternalServerError:
		message = "internal server error"
	}
	h.writeError(w, r, status, message, err)
}

// errorStatus is the single mapping from error kinds to HTTP statuses.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, ledger.ErrValidation), errors.Is(err, ledger.ErrInsufficientStock):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// parseDate accepts a calendar date or an RFC 3339 timestamp. Empty input
// returns the zero time.
func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, &ledger.ValidationError{Field: field, Message: "must be a date (YYYY-MM-DD)"}
}

func parseOptionalDate(field string, s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := parseDate(field, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func queryInt(r *http.Request, name string, def int) int {
	if n, err := strconv.Atoi(r.URL.Query().Get(name)); err == nil && n > 0 {
		return n
	}
	return def
}

func requireID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		return "", &ledger.ValidationError{Field: "id", Message: "is required"}
	}
	return id, nil
}

func totalPages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
