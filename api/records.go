package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/internal/phone"
	"github.com/warp/billing-engine/ledger"
	"github.com/warp/billing-engine/store/sqlite"
)

// =============================================================================
// REGISTRATION
// =============================================================================

// Register creates the local user for an identity provider id. Registering
// twice returns the existing user.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	ctx := r.Context()

	existing, err := h.Store.FindUserByExternalID(ctx, req.ClerkUserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if existing != nil {
		writeOK(w, http.StatusOK, map[string]any{"userId": existing.ID, "message": "user already registered"})
		return
	}

	user := sqlite.User{
		ID:         uuid.NewString(),
		ExternalID: req.ClerkUserID,
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:   strings.TrimSpace(req.FullName),
		CreatedAt:  h.Clock.Now(),
	}
	if err := h.Store.CreateUser(ctx, user); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, map[string]any{"userId": user.ID, "message": "user registered"})
}

// =============================================================================
// COMPANIES
// =============================================================================

// ListCompanies returns the caller's companies, or one company with ?id=.
func (h *Handler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := h.currentUser(ctx, identityFromQuery(r).ClerkUserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if id := r.URL.Query().Get("id"); id != "" {
		company, err := h.ownedCompany(ctx, user, id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeOK(w, http.StatusOK, map[string]any{"company": toCompanyDTO(*company)})
		return
	}

	companies, err := h.Store.ListCompanies(ctx, user.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]CompanyDTO, len(companies))
	for i, c := range companies {
		dtos[i] = toCompanyDTO(c)
	}
	writeOK(w, http.StatusOK, map[string]any{"companies": dtos})
}

func (h *Handler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	var req CompanyRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	ctx := r.Context()
	user, err := h.currentUser(ctx, req.ClerkUserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	now := h.Clock.Now()
	company := sqlite.Company{ID: uuid.NewString(), UserID: user.ID, CreatedAt: now}
	if err := h.applyCompany(&company, req); err != nil {
		h.fail(w, r, err)
		return
	}
	company.UpdatedAt = now
	if err := h.Store.SaveCompany(ctx, company); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, map[string]any{"company": toCompanyDTO(company)})
}

func (h *Handler) UpdateCompany(w http.ResponseWriter, r *http.Request) {
	var req CompanyRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	ctx := r.Context()
	user, err := h.currentUser(ctx, req.ClerkUserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id := req.ID
	if id == "" {
		id = req.SelectedCompanyID
	}
	company, err := h.ownedCompany(ctx, user, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.applyCompany(company, req); err != nil {
		h.fail(w, r, err)
		return
	}
	company.UpdatedAt = h.Clock.Now()
	if err := h.Store.SaveCompany(ctx, *company); err != nil {
		h.fail(w, r, err)
		return
	}
	h.invalidate(ctx, company.ID)
	writeOK(w, http.StatusOK, map[string]any{"company": toCompanyDTO(*company)})
}

// DeleteCompany is refused while the company still has invoices.
func (h *Handler) DeleteCompany(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := requireID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.currentUser(ctx, identityFromQuery(r).ClerkUserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	company, err := h.ownedCompany(ctx, user, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	n, err := h.Store.CountInvoices(ctx, ledger.InvoiceFilter{CompanyID: company.ID})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if n > 0 {
		h.fail(w, r, fmt.Errorf("%w: company has %d invoices", ledger.ErrConflict, n))
		return
	}
	if err := h.Store.DeleteCompany(ctx, company.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.invalidate(ctx, company.ID)
	writeOK(w, http.StatusOK, map[string]any{"message": "company deleted"})
}

func (h *Handler) applyCompany(c *sqlite.Company, req CompanyRequest) error {
	contact, err := phone.Normalize(req.ContactNumber, h.PhoneRegion)
	if err != nil {
		return &ledger.ValidationError{Field: "contactNumber", Message: err.Error()}
	}
	c.Name = strings.TrimSpace(req.CompanyName)
	c.Address = req.Address
	c.City = req.City
	c.State = req.State
	c.Zip = req.Zip
	c.ContactNumber = contact
	c.Email = strings.ToLower(strings.TrimSpace(req.Email))
	c.GSTNumber = strings.ToUpper(strings.TrimSpace(req.GSTNumber))
	c.LogoURL = req.LogoURL
	return nil
}

// =============================================================================
// BANKS
// =============================================================================

func (h *Handler) ListBanks(w http.ResponseWriter, r *http.Request) {
	_, company, err := h.scope(r.Context(), identityFromQuery(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	banks, err := h.Store.ListBanks(r.Context(), company.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]BankDTO, len(banks))
	for i, b := range banks {
		dtos[i] = toBankDTO(b)
	}
	writeOK(w, http.StatusOK, map[string]any{"banks": dtos})
}

func (h *Handler) CreateBank(w http.ResponseWriter, r *http.Request) {
	var req BankRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	ctx := r.Context()
	user, company, err := h.scope(ctx, req.Identity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	bank := sqlite.Bank{
		ID:            uuid.NewString(),
		CompanyID:     company.ID,
		UserID:        user.ID,
		AccountName:   strings.TrimSpace(req.AccountName),
		AccountNumber: req.AccountNumber,
		IFSCCode:      strings.ToUpper(req.IFSCCode),
		BankName:      strings.TrimSpace(req.BankName),
		CreatedAt:     h.Clock.Now(),
	}
	if err := h.Store.SaveBank(ctx, bank); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, map[string]any{"bank": toBankDTO(bank)})
}

func (h *Handler) DeleteBank(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := requireID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_, company, err := h.scope(ctx, identityFromQuery(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	banks, err := h.Store.ListBanks(ctx, company.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	found := false
	for _, b := range banks {
		found = found || b.ID == id
	}
	if !found {
		h.fail(w, r, &ledger.NotFoundError{Entity: "bank", ID: id})
		return
	}
	if err := h.Store.DeleteBank(ctx, id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"message": "bank deleted"})
}

// =============================================================================
// CUSTOMERS AND SUPPLIERS
// =============================================================================

// Customers and suppliers share handlers; kind picks the ledger.

func contactKeys(kind ledger.AccountKind) (one, many string) {
	return string(kind), string(kind) + "s"
}

func (h *Handler) ownedContact(r *http.Request, kind ledger.AccountKind, id, companyID string) (*sqlite.Contact, error) {
	c, err := h.Store.GetContact(r.Context(), kind, id)
	if err != nil {
		return nil, err
	}
	if c == nil || c.CompanyID != companyID {
		return nil, &ledger.NotFoundError{Entity: string(kind), ID: id}
	}
	return c, nil
}

func (h *Handler) ListContacts(kind ledger.AccountKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		_, company, err := h.scope(ctx, identityFromQuery(r))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		one, many := contactKeys(kind)

		if id := r.URL.Query().Get("id"); id != "" {
			c, err := h.ownedContact(r, kind, id, company.ID)
			if err != nil {
				h.fail(w, r, err)
				return
			}
			writeOK(w, http.StatusOK, map[string]any{one: toContactDTO(*c)})
			return
		}

		contacts, err := h.Store.ListContacts(ctx, kind, company.ID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		dtos := make([]ContactDTO, len(contacts))
		for i, c := range contacts {
			dtos[i] = toContactDTO(c)
		}
		writeOK(w, http.StatusOK, map[string]any{many: dtos})
	}
}

func (h *Handler) CreateContact(kind ledger.AccountKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ContactRequest
		if err := h.bind(r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
		ctx := r.Context()
		user, company, err := h.scope(ctx, req.Identity)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		now := h.Clock.Now()
		c := sqlite.Contact{
			ID:             uuid.NewString(),
			Kind:           kind,
			CompanyID:      company.ID,
			UserID:         user.ID,
			OpeningBalance: decimal.Zero,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if req.OpeningBalance != nil {
			c.OpeningBalance = *req.OpeningBalance
		}
		if err := h.applyContact(&c, req); err != nil {
			h.fail(w, r, err)
			return
		}
		if err := h.Store.CreateContact(ctx, c); err != nil {
			h.fail(w, r, err)
			return
		}
		h.invalidate(ctx, company.ID)

		created, err := h.ownedContact(r, kind, c.ID, company.ID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		one, _ := contactKeys(kind)
		writeOK(w, http.StatusCreated, map[string]any{one: toContactDTO(*created)})
	}
}

// UpdateContact rewrites contact details. A new opening balance goes through
// the ledger, which refuses it once entries exist.
func (h *Handler) UpdateContact(kind ledger.AccountKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ContactRequest
		if err := h.bind(r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
		if req.ID == "" {
			h.fail(w, r, &ledger.ValidationError{Field: "_id", Message: "is required"})
			return
		}
		ctx := r.Context()
		_, company, err := h.scope(ctx, req.Identity)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		c, err := h.ownedContact(r, kind, req.ID, company.ID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if err := h.applyContact(c, req); err != nil {
			h.fail(w, r, err)
			return
		}
		c.UpdatedAt = h.Clock.Now()
		if err := h.Store.UpdateContactDetails(ctx, *c); err != nil {
			h.fail(w, r, err)
			return
		}
		if req.OpeningBalance != nil {
			if err := h.Ledger.SetOpeningBalance(ctx, kind, c.ID, company.ID, *req.OpeningBalance); err != nil {
				h.fail(w, r, err)
				return
			}
		}
		h.invalidate(ctx, company.ID)

		updated, err := h.ownedContact(r, kind, c.ID, company.ID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		one, _ := contactKeys(kind)
		writeOK(w, http.StatusOK, map[string]any{one: toContactDTO(*updated)})
	}
}

// DeleteContact is refused while invoices, purchases or ledger entries
// reference the contact.
func (h *Handler) DeleteContact(kind ledger.AccountKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := requireID(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		_, company, err := h.scope(ctx, identityFromQuery(r))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if _, err := h.ownedContact(r, kind, id, company.ID); err != nil {
			h.fail(w, r, err)
			return
		}
		active, err := h.Store.ContactHasActivity(ctx, kind, id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if active {
			h.fail(w, r, fmt.Errorf("%w: %s has documents or ledger entries", ledger.ErrConflict, kind))
			return
		}
		if err := h.Store.DeleteContact(ctx, kind, id); err != nil {
			h.fail(w, r, err)
			return
		}
		h.invalidate(ctx, company.ID)
		writeOK(w, http.StatusOK, map[string]any{"message": string(kind) + " deleted"})
	}
}

func (h *Handler) applyContact(c *sqlite.Contact, req ContactRequest) error {
	number, err := phone.Normalize(req.Phone, h.PhoneRegion)
	if err != nil {
		return &ledger.ValidationError{Field: "phone", Message: err.Error()}
	}
	c.Name = strings.TrimSpace(req.FullName)
	c.Email = strings.ToLower(strings.TrimSpace(req.Email))
	c.Phone = number
	c.Address = req.Address
	c.City = req.City
	c.State = req.State
	c.Zip = req.Zip
	c.GST = strings.ToUpper(strings.TrimSpace(req.GSTNumber))
	return nil
}

// =============================================================================
// ITEMS
// =============================================================================

func (h *Handler) ownedItem(r *http.Request, id, companyID string) (*ledger.Item, error) {
	it, err := h.Store.GetItem(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if it == nil || it.CompanyID != companyID {
		return nil, &ledger.NotFoundError{Entity: "item", ID: id}
	}
	return it, nil
}

// ListItems returns the company's items. ?search= filters by name.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, company, err := h.scope(ctx, identityFromQuery(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if id := r.URL.Query().Get("id"); id != "" {
		it, err := h.ownedItem(r, id, company.ID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeOK(w, http.StatusOK, map[string]any{"item": toItemDTO(*it)})
		return
	}
	items, err := h.Store.ListItems(ctx, company.ID, r.URL.Query().Get("search"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]ItemDTO, len(items))
	for i, it := range items {
		dtos[i] = toItemDTO(it)
	}
	writeOK(w, http.StatusOK, map[string]any{"items": dtos})
}

func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.SellingPrice.IsNegative() {
		h.fail(w, r, &ledger.ValidationError{Field: "sellingPrice", Message: "must not be negative"})
		return
	}
	ctx := r.Context()
	user, company, err := h.scope(ctx, req.Identity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	now := h.Clock.Now()
	it := ledger.Item{
		ID:        uuid.NewString(),
		CompanyID: company.ID,
		UserID:    user.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyItem(&it, req)
	if err := h.Store.SaveItem(ctx, it); err != nil {
		h.fail(w, r, err)
		return
	}
	h.invalidate(ctx, company.ID)
	writeOK(w, http.StatusCreated, map[string]any{"item": toItemDTO(it)})
}

// UpdateItem edits an item. Setting quantity here is a manual stock count.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.ID == "" {
		h.fail(w, r, &ledger.ValidationError{Field: "_id", Message: "is required"})
		return
	}
	if req.SellingPrice.IsNegative() {
		h.fail(w, r, &ledger.ValidationError{Field: "sellingPrice", Message: "must not be negative"})
		return
	}
	ctx := r.Context()
	_, company, err := h.scope(ctx, req.Identity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	it, err := h.ownedItem(r, req.ID, company.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	applyItem(it, req)
	it.UpdatedAt = h.Clock.Now()
	if err := h.Store.SaveItem(ctx, *it); err != nil {
		h.fail(w, r, err)
		return
	}
	h.invalidate(ctx, company.ID)
	writeOK(w, http.StatusOK, map[string]any{"item": toItemDTO(*it)})
}

func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := requireID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_, company, err := h.scope(ctx, identityFromQuery(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.ownedItem(r, id, company.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Store.DeleteItem(ctx, id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.invalidate(ctx, company.ID)
	writeOK(w, http.StatusOK, map[string]any{"message": "item deleted"})
}

func applyItem(it *ledger.Item, req ItemRequest) {
	it.Name = strings.TrimSpace(req.Name)
	it.Unit = req.Unit
	it.HSNCode = req.HSNCode
	it.Barcode = strings.TrimSpace(req.Barcode)
	it.Description = req.Description
	it.SellingPrice = req.SellingPrice
	it.Quantity = req.Quantity
}

// CheckStock reports whether an item can cover a quantity. The item is
// found by ?productId= or ?barcode=; ?quantity= defaults to 1.
func (h *Handler) CheckStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, company, err := h.scope(ctx, identityFromQuery(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	productID, barcode := q.Get("productId"), strings.TrimSpace(q.Get("barcode"))

	var it *ledger.Item
	switch {
	case productID != "":
		it, err = h.ownedItem(r, productID, company.ID)
	case barcode != "":
		it, err = h.Store.FindItemByBarcode(ctx, company.ID, barcode)
		if err == nil && it == nil {
			err = &ledger.NotFoundError{Entity: "item", ID: barcode}
		}
	default:
		err = &ledger.ValidationError{Field: "productId", Message: "productId or barcode is required"}
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	requested := int64(queryInt(r, "quantity", 1))
	writeOK(w, http.StatusOK, map[string]any{
		"available":         it.Quantity >= requested,
		"currentStock":      it.Quantity,
		"requestedQuantity": requested,
		"canFulfill":        min(it.Quantity, requested),
		"product":           ProductRefDTO{ID: it.ID, Name: it.Name, Barcode: it.Barcode},
	})
}

// =============================================================================
// EXPENSES
// =============================================================================

func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, company, err := h.scope(ctx, identityFromQuery(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	expenses, err := h.Store.ListExpenses(ctx, company.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]ExpenseDTO, len(expenses))
	for i, e := range expenses {
		dtos[i] = toExpenseDTO(e)
	}
	writeOK(w, http.StatusOK, map[string]any{"expenses": dtos})
}

func (h *Handler) SaveExpense(w http.ResponseWriter, r *http.Request) {
	var req ExpenseRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if !req.Amount.IsPositive() {
		h.fail(w, r, &ledger.ValidationError{Field: "amount", Message: "must be greater than 0"})
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ctx := r.Context()
	user, company, err := h.scope(ctx, req.Identity)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	now := h.Clock.Now()
	status := http.StatusCreated
	e := &sqlite.Expense{ID: uuid.NewString(), CompanyID: company.ID, UserID: user.ID, CreatedAt: now}
	if req.ID != "" {
		e, err = h.Store.GetExpense(ctx, req.ID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if e == nil || e.CompanyID != company.ID {
			h.fail(w, r, &ledger.NotFoundError{Entity: "expense", ID: req.ID})
			return
		}
		status = http.StatusOK
	}
	if date.IsZero() {
		date = ledger.StartOfDay(now)
	}
	e.Date = date
	e.Category = strings.TrimSpace(req.Category)
	e.Amount = req.Amount
	e.Reference = req.Reference
	e.Notes = req.Notes
	e.UpdatedAt = now
	if err := h.Store.SaveExpense(ctx, *e); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, status, map[string]any{"expense": toExpenseDTO(*e)})
}

func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := requireID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_, company, err := h.scope(ctx, identityFromQuery(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	e, err := h.Store.GetExpense(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if e == nil || e.CompanyID != company.ID {
		h.fail(w, r, &ledger.NotFoundError{Entity: "expense", ID: id})
		return
	}
	if err := h.Store.DeleteExpense(ctx, id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"message": "expense deleted"})
}

// Expense categories belong to the user, not to a company.

func (h *Handler) ListExpenseCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := h.currentUser(ctx, identityFromQuery(r).ClerkUserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	cats, err := h.Store.ListExpenseCategories(ctx, user.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]ExpenseCategoryDTO, len(cats))
	for i, c := range cats {
		dtos[i] = ExpenseCategoryDTO{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt}
	}
	writeOK(w, http.StatusOK, map[string]any{"categories": dtos})
}

func (h *Handler) CreateExpenseCategory(w http.ResponseWriter, r *http.Request) {
	var req ExpenseCategoryRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	ctx := r.Context()
	user, err := h.currentUser(ctx, req.ClerkUserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c := sqlite.ExpenseCategory{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Name:      strings.TrimSpace(req.Name),
		CreatedAt: h.Clock.Now(),
	}
	if err := h.Store.CreateExpenseCategory(ctx, c); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, map[string]any{
		"category": ExpenseCategoryDTO{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt},
	})
}

func (h *Handler) DeleteExpenseCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := requireID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.currentUser(ctx, identityFromQuery(r).ClerkUserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	cats, err := h.Store.ListExpenseCategories(ctx, user.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	owned := false
	for _, c := range cats {
		owned = owned || c.ID == id
	}
	if !owned {
		h.fail(w, r, &ledger.NotFoundError{Entity: "expense category", ID: id})
		return
	}
	if err := h.Store.DeleteExpenseCategory(ctx, id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"message": "category deleted"})
}
