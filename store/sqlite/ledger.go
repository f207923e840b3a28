package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/ledger"
)

// =============================================================================
// ACCOUNT STORE (ledger.AccountStore interface)
// =============================================================================

const accountColumns = `id, kind, company_id, user_id, name, email, phone, city,
	opening_balance, current_balance, balance_type`

func scanAccount(row interface{ Scan(...any) error }) (ledger.Account, error) {
	var (
		a                 ledger.Account
		opening, balance  string
		kind, balanceType string
	)
	err := row.Scan(&a.ID, &kind, &a.CompanyID, &a.UserID, &a.Name, &a.Email, &a.Phone, &a.City,
		&opening, &balance, &balanceType)
	if err != nil {
		return a, err
	}
	a.Kind = ledger.AccountKind(kind)
	a.BalanceType = ledger.BalanceType(balanceType)
	a.OpeningBalance = decimal.RequireFromString(opening)
	a.CurrentBalance = decimal.RequireFromString(balance)
	return a, nil
}

func (q *queries) GetAccount(ctx context.Context, kind ledger.AccountKind, id string) (*ledger.Account, error) {
	a, err := scanAccount(q.q.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE kind = ? AND id = ?", kind, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &a, nil
}

func (q *queries) ListAccounts(ctx context.Context, kind ledger.AccountKind, companyID string) ([]ledger.Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts WHERE kind = ?"
	args := []any{kind}
	if companyID != "" {
		query += " AND company_id = ?"
		args = append(args, companyID)
	}
	rows, err := q.q.QueryContext(ctx, query+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var out []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (q *queries) SetAccountBalance(ctx context.Context, kind ledger.AccountKind, id string, balance decimal.Decimal, bt ledger.BalanceType) error {
	return affected(q.q.ExecContext(ctx,
		"UPDATE accounts SET current_balance = ?, balance_type = ?, updated_at = ? WHERE kind = ? AND id = ?",
		balance.String(), bt, formatTime(time.Now()), kind, id))
}

func (q *queries) SetOpeningBalance(ctx context.Context, kind ledger.AccountKind, id string, opening decimal.Decimal) error {
	return affected(q.q.ExecContext(ctx,
		"UPDATE accounts SET opening_balance = ?, updated_at = ? WHERE kind = ? AND id = ?",
		opening.String(), formatTime(time.Now()), kind, id))
}

// =============================================================================
// TRANSACTION STORE (ledger.TransactionStore interface)
// =============================================================================

const transactionColumns = `seq, id, account_kind, account_id, company_id, user_id, tx_type,
	amount, mode, reference, invoice_ref, document, tx_date, balance_after, reversed,
	reversal_txn_id, original_txn_id, created_at`

func scanTransaction(row interface{ Scan(...any) error }) (ledger.Transaction, error) {
	var (
		tx                     ledger.Transaction
		kind, txType, mode     string
		amount, balanceAfter   string
		invoiceRef             sql.NullString
		reversalID, originalID sql.NullString
		txDate, createdAt      string
		reversed, document     int
	)
	err := row.Scan(&tx.Seq, &tx.ID, &kind, &tx.AccountID, &tx.CompanyID, &tx.UserID, &txType,
		&amount, &mode, &tx.Reference, &invoiceRef, &document, &txDate, &balanceAfter, &reversed,
		&reversalID, &originalID, &createdAt)
	if err != nil {
		return tx, err
	}
	tx.AccountKind = ledger.AccountKind(kind)
	tx.Type = ledger.TransactionType(txType)
	tx.Mode = ledger.PaymentMode(mode)
	tx.Amount = decimal.RequireFromString(amount)
	tx.BalanceAfter = decimal.RequireFromString(balanceAfter)
	tx.InvoiceRef = invoiceRef.String
	tx.Document = document != 0
	tx.Reversed = reversed != 0
	tx.ReversalTxnID = ledger.TransactionID(reversalID.String)
	tx.OriginalTxnID = ledger.TransactionID(originalID.String)
	tx.Date = parseTime(txDate)
	tx.CreatedAt = parseTime(createdAt)
	return tx, nil
}

// AppendTransaction inserts the entry and returns it with its Seq.
func (q *queries) AppendTransaction(ctx context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	query := `
		INSERT INTO ledger_transactions
		(id, account_kind, account_id, company_id, user_id, tx_type, amount, mode, reference,
		 invoice_ref, document, tx_date, balance_after, reversed, reversal_txn_id, original_txn_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING seq
	`
	err := q.q.QueryRowContext(ctx, query,
		tx.ID, tx.AccountKind, tx.AccountID, tx.CompanyID, tx.UserID, tx.Type,
		tx.Amount.String(), tx.Mode, tx.Reference, nullString(tx.InvoiceRef), boolInt(tx.Document),
		formatTime(tx.Date), tx.BalanceAfter.String(), boolInt(tx.Reversed),
		nullString(string(tx.ReversalTxnID)), nullString(string(tx.OriginalTxnID)),
		formatTime(tx.CreatedAt),
	).Scan(&tx.Seq)
	if err != nil {
		if isUniqueConstraintError(err) {
			return tx, fmt.Errorf("%w: transaction %s already exists or is already reversed", ledger.ErrConflict, tx.ID)
		}
		return tx, fmt.Errorf("failed to append transaction: %w", err)
	}
	return tx, nil
}

func (q *queries) GetTransaction(ctx context.Context, id ledger.TransactionID) (*ledger.Transaction, error) {
	tx, err := scanTransaction(q.q.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM ledger_transactions WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &tx, nil
}

func (q *queries) LatestTransaction(ctx context.Context, kind ledger.AccountKind, accountID, companyID string) (*ledger.Transaction, error) {
	tx, err := scanTransaction(q.q.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM ledger_transactions
		WHERE account_kind = ? AND account_id = ? AND company_id = ?
		ORDER BY seq DESC LIMIT 1`,
		kind, accountID, companyID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest transaction: %w", err)
	}
	return &tx, nil
}

func (q *queries) FindDocumentTransaction(ctx context.Context, kind ledger.AccountKind, ref string, txType ledger.TransactionType) (*ledger.Transaction, error) {
	tx, err := scanTransaction(q.q.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM ledger_transactions
		WHERE account_kind = ? AND invoice_ref = ? AND tx_type = ? AND document = 1
		ORDER BY seq DESC LIMIT 1`,
		kind, ref, txType))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find document transaction: %w", err)
	}
	return &tx, nil
}

func (q *queries) MarkReversed(ctx context.Context, id, reversalID ledger.TransactionID) error {
	return affected(q.q.ExecContext(ctx,
		"UPDATE ledger_transactions SET reversed = 1, reversal_txn_id = ? WHERE id = ?",
		reversalID, id))
}

func (q *queries) ClearReversal(ctx context.Context, id ledger.TransactionID) error {
	return affected(q.q.ExecContext(ctx,
		"UPDATE ledger_transactions SET reversed = 0, reversal_txn_id = NULL WHERE id = ?", id))
}

// DeleteTransaction is only used to undo a reversal. Originals are never
// deleted.
func (q *queries) DeleteTransaction(ctx context.Context, id ledger.TransactionID) error {
	return affected(q.q.ExecContext(ctx, "DELETE FROM ledger_transactions WHERE id = ?", id))
}

func transactionWhere(f ledger.TransactionFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.AccountKind != "" {
		conds = append(conds, "account_kind = ?")
		args = append(args, f.AccountKind)
	}
	if f.AccountID != "" {
		conds = append(conds, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.CompanyID != "" {
		conds = append(conds, "company_id = ?")
		args = append(args, f.CompanyID)
	}
	if f.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, f.UserID)
	}
	if len(f.Types) > 0 {
		conds = append(conds, "tx_type IN ("+placeholders(len(f.Types))+")")
		for _, t := range f.Types {
			args = append(args, t)
		}
	}
	if !f.From.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, formatTime(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, "created_at < ?")
		args = append(args, formatTime(f.To))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (q *queries) ListTransactions(ctx context.Context, f ledger.TransactionFilter) ([]ledger.Transaction, error) {
	where, args := transactionWhere(f)
	query := "SELECT " + transactionColumns + " FROM ledger_transactions" + where + " ORDER BY seq ASC"
	query, args = paginate(query, args, f.Offset, f.Limit)

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (q *queries) CountTransactions(ctx context.Context, f ledger.TransactionFilter) (int, error) {
	where, args := transactionWhere(f)
	var n int
	err := q.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM ledger_transactions"+where, args...).Scan(&n)
	return n, err
}

// =============================================================================
// INVENTORY STORE (ledger.InventoryStore interface)
// =============================================================================

const itemColumns = `id, company_id, user_id, name, unit, hsn_code, barcode, description,
	selling_price, quantity, purchase_quantity, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }) (ledger.Item, error) {
	var (
		it                   ledger.Item
		price                string
		createdAt, updatedAt string
	)
	err := row.Scan(&it.ID, &it.CompanyID, &it.UserID, &it.Name, &it.Unit, &it.HSNCode,
		&it.Barcode, &it.Description, &price, &it.Quantity, &it.PurchaseQuantity,
		&createdAt, &updatedAt)
	if err != nil {
		return it, err
	}
	it.SellingPrice = decimal.RequireFromString(price)
	it.CreatedAt = parseTime(createdAt)
	it.UpdatedAt = parseTime(updatedAt)
	return it, nil
}

func (q *queries) GetItem(ctx context.Context, id string) (*ledger.Item, error) {
	it, err := scanItem(q.q.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM items WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return &it, nil
}

func (q *queries) SetItemStock(ctx context.Context, id string, quantity, purchaseQuantity int64) error {
	return affected(q.q.ExecContext(ctx,
		"UPDATE items SET quantity = ?, purchase_quantity = ?, updated_at = ? WHERE id = ?",
		quantity, purchaseQuantity, formatTime(time.Now()), id))
}

// =============================================================================
// DOCUMENT STORE (ledger.DocumentStore interface)
// =============================================================================

const invoiceColumns = `id, company_id, user_id, customer_id, invoice_number, invoice_date,
	due_date, order_number, salesperson, lines_json, subtotal, discount, cgst, sgst, tax,
	total, status, paid_amount, remaining_balance, payment_method, payment_details,
	created_at, updated_at`

func scanInvoice(row interface{ Scan(...any) error }) (ledger.Invoice, error) {
	var (
		inv                                 ledger.Invoice
		invoiceDate, dueDate                string
		linesJSON, status                   string
		subtotal, discount, cgst, sgst, tax string
		total, paid, remaining              string
		createdAt, updatedAt                string
	)
	err := row.Scan(&inv.ID, &inv.CompanyID, &inv.UserID, &inv.CustomerID, &inv.InvoiceNumber,
		&invoiceDate, &dueDate, &inv.OrderNumber, &inv.Salesperson, &linesJSON,
		&subtotal, &discount, &cgst, &sgst, &tax, &total, &status, &paid, &remaining,
		&inv.PaymentMethod, &inv.PaymentDetails, &createdAt, &updatedAt)
	if err != nil {
		return inv, err
	}
	if err := json.Unmarshal([]byte(linesJSON), &inv.Lines); err != nil {
		return inv, fmt.Errorf("invoice %s lines: %w", inv.ID, err)
	}
	inv.InvoiceDate = parseTime(invoiceDate)
	inv.DueDate = parseTime(dueDate)
	inv.Subtotal = decimal.RequireFromString(subtotal)
	inv.Discount = decimal.RequireFromString(discount)
	inv.CGST = decimal.RequireFromString(cgst)
	inv.SGST = decimal.RequireFromString(sgst)
	inv.Tax = decimal.RequireFromString(tax)
	inv.Total = decimal.RequireFromString(total)
	inv.Status = ledger.InvoiceStatus(status)
	inv.PaidAmount = decimal.RequireFromString(paid)
	inv.RemainingBalance = decimal.RequireFromString(remaining)
	inv.CreatedAt = parseTime(createdAt)
	inv.UpdatedAt = parseTime(updatedAt)
	return inv, nil
}

func (q *queries) CreateInvoice(ctx context.Context, inv ledger.Invoice) error {
	lines, err := json.Marshal(inv.Lines)
	if err != nil {
		return fmt.Errorf("failed to encode invoice lines: %w", err)
	}
	_, err = q.q.ExecContext(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.CompanyID, inv.UserID, inv.CustomerID, inv.InvoiceNumber,
		formatTime(inv.InvoiceDate), formatTime(inv.DueDate), inv.OrderNumber, inv.Salesperson,
		string(lines), inv.Subtotal.String(), inv.Discount.String(), inv.CGST.String(),
		inv.SGST.String(), inv.Tax.String(), inv.Total.String(), inv.Status,
		inv.PaidAmount.String(), inv.RemainingBalance.String(), inv.PaymentMethod,
		inv.PaymentDetails, formatTime(inv.CreatedAt), formatTime(inv.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: invoice number %d already used", ledger.ErrConflict, inv.InvoiceNumber)
		}
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

func (q *queries) GetInvoice(ctx context.Context, id string) (*ledger.Invoice, error) {
	inv, err := scanInvoice(q.q.QueryRowContext(ctx, "SELECT "+invoiceColumns+" FROM invoices WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return &inv, nil
}

// UpdateInvoice rewrites the mutable columns. Number, customer and lines
// never change after creation.
func (q *queries) UpdateInvoice(ctx context.Context, inv ledger.Invoice) error {
	return affected(q.q.ExecContext(ctx, `
		UPDATE invoices SET
			invoice_date = ?, due_date = ?, order_number = ?, salesperson = ?,
			status = ?, paid_amount = ?, remaining_balance = ?,
			payment_method = ?, payment_details = ?, updated_at = ?
		WHERE id = ?`,
		formatTime(inv.InvoiceDate), formatTime(inv.DueDate), inv.OrderNumber, inv.Salesperson,
		inv.Status, inv.PaidAmount.String(), inv.RemainingBalance.String(),
		inv.PaymentMethod, inv.PaymentDetails, formatTime(inv.UpdatedAt), inv.ID))
}

func (q *queries) DeleteInvoice(ctx context.Context, id string) error {
	_, err := q.q.ExecContext(ctx, "DELETE FROM invoices WHERE id = ?", id)
	return err
}

func invoiceWhere(f ledger.InvoiceFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.CompanyID != "" {
		conds = append(conds, "company_id = ?")
		args = append(args, f.CompanyID)
	}
	if f.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.CustomerID != "" {
		conds = append(conds, "customer_id = ?")
		args = append(args, f.CustomerID)
	}
	if f.InvoiceNumber != 0 {
		conds = append(conds, "invoice_number = ?")
		args = append(args, f.InvoiceNumber)
	}
	if len(f.Statuses) > 0 {
		conds = append(conds, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, s := range f.Statuses {
			args = append(args, s)
		}
	}
	if !f.DueBefore.IsZero() {
		conds = append(conds, "due_date < ?")
		args = append(args, formatTime(f.DueBefore))
	}
	if !f.CreatedFrom.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, formatTime(f.CreatedFrom))
	}
	if !f.CreatedTo.IsZero() {
		conds = append(conds, "created_at < ?")
		args = append(args, formatTime(f.CreatedTo))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (q *queries) ListInvoices(ctx context.Context, f ledger.InvoiceFilter) ([]ledger.Invoice, error) {
	where, args := invoiceWhere(f)
	order := " ORDER BY due_date ASC, invoice_number ASC"
	if f.NewestFirst {
		order = " ORDER BY created_at DESC, invoice_number DESC"
	}
	query, args := paginate("SELECT "+invoiceColumns+" FROM invoices"+where+order, args, f.Offset, f.Limit)

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var out []ledger.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (q *queries) CountInvoices(ctx context.Context, f ledger.InvoiceFilter) (int, error) {
	where, args := invoiceWhere(f)
	var n int
	err := q.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM invoices"+where, args...).Scan(&n)
	return n, err
}

const purchaseColumns = `id, company_id, user_id, supplier_id, supplier_name, invoice_number,
	purchase_order_number, purchase_date, due_date, lines_json, status, total_amount,
	created_at, updated_at`

func scanPurchase(row interface{ Scan(...any) error }) (ledger.PurchaseInvoice, error) {
	var (
		p                     ledger.PurchaseInvoice
		purchaseDate, dueDate string
		linesJSON, status     string
		total                 string
		createdAt, updatedAt  string
	)
	err := row.Scan(&p.ID, &p.CompanyID, &p.UserID, &p.SupplierID, &p.SupplierName,
		&p.InvoiceNumber, &p.PurchaseOrderNumber, &purchaseDate, &dueDate, &linesJSON,
		&status, &total, &createdAt, &updatedAt)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal([]byte(linesJSON), &p.Lines); err != nil {
		return p, fmt.Errorf("purchase %s lines: %w", p.ID, err)
	}
	p.PurchaseDate = parseTime(purchaseDate)
	p.DueDate = parseTime(dueDate)
	p.Status = ledger.PurchaseStatus(status)
	p.TotalAmount = decimal.RequireFromString(total)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

func (q *queries) CreatePurchase(ctx context.Context, p ledger.PurchaseInvoice) error {
	lines, err := json.Marshal(p.Lines)
	if err != nil {
		return fmt.Errorf("failed to encode purchase lines: %w", err)
	}
	_, err = q.q.ExecContext(ctx, `
		INSERT INTO purchases (`+purchaseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.CompanyID, p.UserID, p.SupplierID, p.SupplierName, p.InvoiceNumber,
		p.PurchaseOrderNumber, formatTime(p.PurchaseDate), formatTime(p.DueDate), string(lines),
		p.Status, p.TotalAmount.String(), formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create purchase: %w", err)
	}
	return nil
}

func (q *queries) GetPurchase(ctx context.Context, id string) (*ledger.PurchaseInvoice, error) {
	p, err := scanPurchase(q.q.QueryRowContext(ctx, "SELECT "+purchaseColumns+" FROM purchases WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}
	return &p, nil
}

func (q *queries) UpdatePurchase(ctx context.Context, p ledger.PurchaseInvoice) error {
	lines, err := json.Marshal(p.Lines)
	if err != nil {
		return fmt.Errorf("failed to encode purchase lines: %w", err)
	}
	return affected(q.q.ExecContext(ctx, `
		UPDATE purchases SET
			supplier_id = ?, supplier_name = ?, invoice_number = ?, purchase_order_number = ?,
			purchase_date = ?, due_date = ?, lines_json = ?, status = ?, total_amount = ?,
			updated_at = ?
		WHERE id = ?`,
		p.SupplierID, p.SupplierName, p.InvoiceNumber, p.PurchaseOrderNumber,
		formatTime(p.PurchaseDate), formatTime(p.DueDate), string(lines), p.Status,
		p.TotalAmount.String(), formatTime(p.UpdatedAt), p.ID))
}

func (q *queries) DeletePurchase(ctx context.Context, id string) error {
	_, err := q.q.ExecContext(ctx, "DELETE FROM purchases WHERE id = ?", id)
	return err
}

func (q *queries) CreatePayment(ctx context.Context, p ledger.Payment) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO payments (id, invoice_id, customer_id, company_id, user_id, amount, method,
			payment_date, transaction_ref, ledger_txn_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.InvoiceID, p.CustomerID, p.CompanyID, p.UserID, p.Amount.String(), p.Method,
		formatTime(p.PaymentDate), p.TransactionRef, p.LedgerTxnID, formatTime(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// =============================================================================
// SEQUENCE STORE (ledger.SequenceStore interface)
// =============================================================================

// NextSequence increments in one statement, so two callers can never read
// the same value.
func (q *queries) NextSequence(ctx context.Context, userID, companyID string) (int64, error) {
	var n int64
	now := formatTime(time.Now())
	err := q.q.QueryRowContext(ctx, `
		INSERT INTO sequence_counters (user_id, company_id, sequence_value, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(user_id, company_id) DO UPDATE SET
			sequence_value = sequence_counters.sequence_value + 1,
			updated_at = excluded.updated_at
		RETURNING sequence_value`,
		userID, companyID, now,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate sequence: %w", err)
	}
	return n, nil
}

func (q *queries) CurrentSequence(ctx context.Context, userID, companyID string) (int64, error) {
	var n int64
	err := q.q.QueryRowContext(ctx,
		"SELECT sequence_value FROM sequence_counters WHERE user_id = ? AND company_id = ?",
		userID, companyID,
	).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return n, err
}

// =============================================================================
// QUERY HELPERS
// =============================================================================

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func paginate(query string, args []any, offset, limit int) (string, []any) {
	if limit <= 0 && offset <= 0 {
		return query, args
	}
	if limit <= 0 {
		limit = -1
	}
	return query + " LIMIT ? OFFSET ?", append(args, limit, offset)
}
