package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/ledger"
)

// =============================================================================
// USER STORE
// =============================================================================

// User is an account holder. ExternalID is the identity provider's user id.
type User struct {
	ID         string
	ExternalID string
	Email      string
	FullName   string
	CreatedAt  time.Time
}

// CreateUser inserts a user. A duplicate external id or email is a conflict.
func (q *queries) CreateUser(ctx context.Context, u User) error {
	_, err := q.q.ExecContext(ctx,
		"INSERT INTO users (id, external_id, email, full_name, created_at) VALUES (?, ?, ?, ?, ?)",
		u.ID, u.ExternalID, u.Email, u.FullName, formatTime(u.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: user already registered", ledger.ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUserByExternalID returns nil when no user is registered for the id.
func (q *queries) FindUserByExternalID(ctx context.Context, externalID string) (*User, error) {
	var u User
	var createdAt string
	err := q.q.QueryRowContext(ctx,
		"SELECT id, external_id, email, full_name, created_at FROM users WHERE external_id = ?",
		externalID,
	).Scan(&u.ID, &u.ExternalID, &u.Email, &u.FullName, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

// =============================================================================
// COMPANY STORE
// =============================================================================

type Company struct {
	ID            string
	UserID        string
	Name          string
	Address       string
	City          string
	State         string
	Zip           string
	ContactNumber string
	Email         string
	GSTNumber     string
	LogoURL       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

const companyColumns = `id, user_id, name, address, city, state, zip, contact_number, email,
	gst_number, logo_url, created_at, updated_at`

func scanCompany(row interface{ Scan(...any) error }) (Company, error) {
	var c Company
	var createdAt, updatedAt string
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Address, &c.City, &c.State, &c.Zip,
		&c.ContactNumber, &c.Email, &c.GSTNumber, &c.LogoURL, &createdAt, &updatedAt)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return c, err
}

// SaveCompany inserts or updates a company.
func (q *queries) SaveCompany(ctx context.Context, c Company) error {
	query := `
		INSERT INTO companies (` + companyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			address = excluded.address,
			city = excluded.city,
			state = excluded.state,
			zip = excluded.zip,
			contact_number = excluded.contact_number,
			email = excluded.email,
			gst_number = excluded.gst_number,
			logo_url = excluded.logo_url,
			updated_at = excluded.updated_at
	`
	_, err := q.q.ExecContext(ctx, query,
		c.ID, c.UserID, c.Name, c.Address, c.City, c.State, c.Zip, c.ContactNumber, c.Email,
		c.GSTNumber, c.LogoURL, formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save company: %w", err)
	}
	return nil
}

// GetCompany retrieves a company by ID.
func (q *queries) GetCompany(ctx context.Context, id string) (*Company, error) {
	c, err := scanCompany(q.q.QueryRowContext(ctx,
		"SELECT "+companyColumns+" FROM companies WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCompanies returns the user's companies, or all when userID is empty.
func (q *queries) ListCompanies(ctx context.Context, userID string) ([]Company, error) {
	query := "SELECT " + companyColumns + " FROM companies"
	var args []any
	if userID != "" {
		query += " WHERE user_id = ?"
		args = append(args, userID)
	}
	rows, err := q.q.QueryContext(ctx, query+" ORDER BY created_at", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteCompany removes a company and its bank accounts.
func (q *queries) DeleteCompany(ctx context.Context, id string) error {
	if _, err := q.q.ExecContext(ctx, "DELETE FROM banks WHERE company_id = ?", id); err != nil {
		return err
	}
	return affected(q.q.ExecContext(ctx, "DELETE FROM companies WHERE id = ?", id))
}

// =============================================================================
// BANK STORE
// =============================================================================

type Bank struct {
	ID            string
	CompanyID     string
	UserID        string
	AccountName   string
	AccountNumber string
	IFSCCode      string
	BankName      string
	CreatedAt     time.Time
}

// SaveBank inserts a bank account. Account numbers are unique.
func (q *queries) SaveBank(ctx context.Context, b Bank) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO banks (id, company_id, user_id, account_name, account_number, ifsc_code, bank_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			account_name = excluded.account_name,
			account_number = excluded.account_number,
			ifsc_code = excluded.ifsc_code,
			bank_name = excluded.bank_name`,
		b.ID, b.CompanyID, b.UserID, b.AccountName, b.AccountNumber, b.IFSCCode, b.BankName,
		formatTime(b.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: bank account %s already exists", ledger.ErrConflict, b.AccountNumber)
		}
		return fmt.Errorf("failed to save bank: %w", err)
	}
	return nil
}

// ListBanks returns the bank accounts of a company.
func (q *queries) ListBanks(ctx context.Context, companyID string) ([]Bank, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, company_id, user_id, account_name, account_number, ifsc_code, bank_name, created_at
		FROM banks WHERE company_id = ? ORDER BY created_at`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bank
	for rows.Next() {
		var b Bank
		var createdAt string
		if err := rows.Scan(&b.ID, &b.CompanyID, &b.UserID, &b.AccountName, &b.AccountNumber,
			&b.IFSCCode, &b.BankName, &createdAt); err != nil {
			return nil, err
		}
		b.CreatedAt = parseTime(createdAt)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (q *queries) DeleteBank(ctx context.Context, id string) error {
	return affected(q.q.ExecContext(ctx, "DELETE FROM banks WHERE id = ?", id))
}

// =============================================================================
// CONTACT STORE (customers and suppliers)
// =============================================================================

// Contact is the full customer/supplier record. The engine only sees the
// ledger.Account projection of it.
type Contact struct {
	ID        string
	Kind      ledger.AccountKind
	CompanyID string
	UserID    string
	Name      string
	Email     string
	Phone     string
	Address   string
	City      string
	State     string
	Zip       string
	GST       string

	OpeningBalance decimal.Decimal
	CurrentBalance decimal.Decimal
	BalanceType    ledger.BalanceType

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Account returns the ledger view of the contact.
func (c Contact) Account() ledger.Account {
	return ledger.Account{
		ID:             c.ID,
		Kind:           c.Kind,
		CompanyID:      c.CompanyID,
		UserID:         c.UserID,
		Name:           c.Name,
		Email:          c.Email,
		Phone:          c.Phone,
		City:           c.City,
		OpeningBalance: c.OpeningBalance,
		CurrentBalance: c.CurrentBalance,
		BalanceType:    c.BalanceType,
	}
}

const contactColumns = `id, kind, company_id, user_id, name, email, phone, address, city, state,
	zip, gst, opening_balance, current_balance, balance_type, created_at, updated_at`

func scanContact(row interface{ Scan(...any) error }) (Contact, error) {
	var (
		c                    Contact
		kind, balanceType    string
		opening, balance     string
		createdAt, updatedAt string
	)
	err := row.Scan(&c.ID, &kind, &c.CompanyID, &c.UserID, &c.Name, &c.Email, &c.Phone,
		&c.Address, &c.City, &c.State, &c.Zip, &c.GST, &opening, &balance, &balanceType,
		&createdAt, &updatedAt)
	if err != nil {
		return c, err
	}
	c.Kind = ledger.AccountKind(kind)
	c.BalanceType = ledger.BalanceType(balanceType)
	c.OpeningBalance = decimal.RequireFromString(opening)
	c.CurrentBalance = decimal.RequireFromString(balance)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return c, nil
}

// CreateContact inserts a new customer or supplier. The cached balance
// starts at the opening balance.
func (q *queries) CreateContact(ctx context.Context, c Contact) error {
	c.CurrentBalance = c.OpeningBalance
	c.BalanceType = ledger.BalanceTypeFor(c.CurrentBalance)
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO accounts (`+contactColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Kind, c.CompanyID, c.UserID, c.Name, c.Email, c.Phone, c.Address, c.City,
		c.State, c.Zip, c.GST, c.OpeningBalance.String(), c.CurrentBalance.String(),
		c.BalanceType, formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s %s already exists", ledger.ErrConflict, c.Kind, c.ID)
		}
		return fmt.Errorf("failed to create %s: %w", c.Kind, err)
	}
	return nil
}

// UpdateContactDetails rewrites the identity fields. Balances are owned by
// the ledger and never touched here.
func (q *queries) UpdateContactDetails(ctx context.Context, c Contact) error {
	return affected(q.q.ExecContext(ctx, `
		UPDATE accounts SET
			name = ?, email = ?, phone = ?, address = ?, city = ?, state = ?, zip = ?, gst = ?,
			updated_at = ?
		WHERE kind = ? AND id = ?`,
		c.Name, c.Email, c.Phone, c.Address, c.City, c.State, c.Zip, c.GST,
		formatTime(c.UpdatedAt), c.Kind, c.ID))
}

func (q *queries) GetContact(ctx context.Context, kind ledger.AccountKind, id string) (*Contact, error) {
	c, err := scanContact(q.q.QueryRowContext(ctx,
		"SELECT "+contactColumns+" FROM accounts WHERE kind = ? AND id = ?", kind, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListContacts returns a company's customers or suppliers ordered by name.
func (q *queries) ListContacts(ctx context.Context, kind ledger.AccountKind, companyID string) ([]Contact, error) {
	rows, err := q.q.QueryContext(ctx,
		"SELECT "+contactColumns+" FROM accounts WHERE kind = ? AND company_id = ? ORDER BY name, id",
		kind, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ContactHasActivity reports whether ledger entries or documents reference
// the contact.
func (q *queries) ContactHasActivity(ctx context.Context, kind ledger.AccountKind, id string) (bool, error) {
	docs := "SELECT COUNT(*) FROM invoices WHERE customer_id = ?"
	if kind == ledger.AccountSupplier {
		docs = "SELECT COUNT(*) FROM purchases WHERE supplier_id = ?"
	}
	var n int
	err := q.q.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM ledger_transactions WHERE account_kind = ? AND account_id = ?)
		     + (`+docs+`)`,
		kind, id, id,
	).Scan(&n)
	return n > 0, err
}

func (q *queries) DeleteContact(ctx context.Context, kind ledger.AccountKind, id string) error {
	return affected(q.q.ExecContext(ctx, "DELETE FROM accounts WHERE kind = ? AND id = ?", kind, id))
}

// =============================================================================
// ITEM STORE
// =============================================================================

// SaveItem inserts or updates an item, including its stock columns. Stock
// changes caused by documents go through the ledger engine instead.
func (q *queries) SaveItem(ctx context.Context, it ledger.Item) error {
	query := `
		INSERT INTO items (` + itemColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			unit = excluded.unit,
			hsn_code = excluded.hsn_code,
			barcode = excluded.barcode,
			description = excluded.description,
			selling_price = excluded.selling_price,
			quantity = excluded.quantity,
			updated_at = excluded.updated_at
	`
	_, err := q.q.ExecContext(ctx, query,
		it.ID, it.CompanyID, it.UserID, it.Name, it.Unit, it.HSNCode, it.Barcode, it.Description,
		it.SellingPrice.String(), it.Quantity, it.PurchaseQuantity,
		formatTime(it.CreatedAt), formatTime(it.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save item: %w", err)
	}
	return nil
}

// ListItems returns a company's items, optionally filtered by a
// case-insensitive name fragment.
func (q *queries) ListItems(ctx context.Context, companyID, search string) ([]ledger.Item, error) {
	query := "SELECT " + itemColumns + " FROM items WHERE company_id = ?"
	args := []any{companyID}
	if search = strings.TrimSpace(search); search != "" {
		query += " AND name LIKE ? ESCAPE '\\'"
		args = append(args, "%"+escapeLike(search)+"%")
	}
	rows, err := q.q.QueryContext(ctx, query+" ORDER BY name, id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// FindItemByBarcode returns nil when no item of the company carries barcode.
func (q *queries) FindItemByBarcode(ctx context.Context, companyID, barcode string) (*ledger.Item, error) {
	it, err := scanItem(q.q.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM items WHERE company_id = ? AND barcode = ? LIMIT 1",
		companyID, barcode))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find item by barcode: %w", err)
	}
	return &it, nil
}

func (q *queries) DeleteItem(ctx context.Context, id string) error {
	return affected(q.q.ExecContext(ctx, "DELETE FROM items WHERE id = ?", id))
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// =============================================================================
// PURCHASE AND PAYMENT LISTINGS
// =============================================================================

// ListPurchases returns a company's purchase invoices, newest first.
func (q *queries) ListPurchases(ctx context.Context, companyID string) ([]ledger.PurchaseInvoice, error) {
	rows, err := q.q.QueryContext(ctx,
		"SELECT "+purchaseColumns+" FROM purchases WHERE company_id = ? ORDER BY purchase_date DESC, created_at DESC",
		companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.PurchaseInvoice
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListPayments returns payments of one invoice, or of the whole company when
// invoiceID is empty.
func (q *queries) ListPayments(ctx context.Context, companyID, invoiceID string) ([]ledger.Payment, error) {
	query := `SELECT id, invoice_id, customer_id, company_id, user_id, amount, method,
		payment_date, transaction_ref, ledger_txn_id, created_at
		FROM payments WHERE company_id = ?`
	args := []any{companyID}
	if invoiceID != "" {
		query += " AND invoice_id = ?"
		args = append(args, invoiceID)
	}
	rows, err := q.q.QueryContext(ctx, query+" ORDER BY payment_date, created_at", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Payment
	for rows.Next() {
		var (
			p                              ledger.Payment
			amount, paymentDate, createdAt string
			ledgerTxnID                    string
		)
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.CustomerID, &p.CompanyID, &p.UserID, &amount,
			&p.Method, &paymentDate, &p.TransactionRef, &ledgerTxnID, &createdAt); err != nil {
			return nil, err
		}
		p.Amount = decimal.RequireFromString(amount)
		p.PaymentDate = parseTime(paymentDate)
		p.LedgerTxnID = ledger.TransactionID(ledgerTxnID)
		p.CreatedAt = parseTime(createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// =============================================================================
// EXPENSE STORE
// =============================================================================

type Expense struct {
	ID        string
	CompanyID string
	UserID    string
	Date      time.Time
	Category  string
	Amount    decimal.Decimal
	Reference string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

const expenseColumns = `id, company_id, user_id, expense_date, category, amount, reference, notes,
	created_at, updated_at`

func scanExpense(row interface{ Scan(...any) error }) (Expense, error) {
	var (
		e                    Expense
		date, amount         string
		createdAt, updatedAt string
	)
	err := row.Scan(&e.ID, &e.CompanyID, &e.UserID, &date, &e.Category, &amount, &e.Reference,
		&e.Notes, &createdAt, &updatedAt)
	if err != nil {
		return e, err
	}
	e.Date = parseTime(date)
	e.Amount = decimal.RequireFromString(amount)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return e, nil
}

// SaveExpense inserts or updates an expense.
func (q *queries) SaveExpense(ctx context.Context, e Expense) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO expenses (`+expenseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			expense_date = excluded.expense_date,
			category = excluded.category,
			amount = excluded.amount,
			reference = excluded.reference,
			notes = excluded.notes,
			updated_at = excluded.updated_at`,
		e.ID, e.CompanyID, e.UserID, formatTime(e.Date), e.Category, e.Amount.String(),
		e.Reference, e.Notes, formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save expense: %w", err)
	}
	return nil
}

func (q *queries) GetExpense(ctx context.Context, id string) (*Expense, error) {
	e, err := scanExpense(q.q.QueryRowContext(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListExpenses returns a company's expenses, newest first.
func (q *queries) ListExpenses(ctx context.Context, companyID string) ([]Expense, error) {
	rows, err := q.q.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE company_id = ? ORDER BY expense_date DESC, created_at DESC",
		companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (q *queries) DeleteExpense(ctx context.Context, id string) error {
	return affected(q.q.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", id))
}

type ExpenseCategory struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt time.Time
}

// CreateExpenseCategory inserts a category. Names are unique per user.
func (q *queries) CreateExpenseCategory(ctx context.Context, c ExpenseCategory) error {
	_, err := q.q.ExecContext(ctx,
		"INSERT INTO expense_categories (id, user_id, name, created_at) VALUES (?, ?, ?, ?)",
		c.ID, c.UserID, strings.TrimSpace(c.Name), formatTime(c.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: category %q already exists", ledger.ErrConflict, c.Name)
		}
		return fmt.Errorf("failed to create expense category: %w", err)
	}
	return nil
}

func (q *queries) ListExpenseCategories(ctx context.Context, userID string) ([]ExpenseCategory, error) {
	rows, err := q.q.QueryContext(ctx,
		"SELECT id, user_id, name, created_at FROM expense_categories WHERE user_id = ? ORDER BY name",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExpenseCategory
	for rows.Next() {
		var c ExpenseCategory
		var createdAt string
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTime(createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *queries) DeleteExpenseCategory(ctx context.Context, id string) error {
	return affected(q.q.ExecContext(ctx, "DELETE FROM expense_categories WHERE id = ?", id))
}
