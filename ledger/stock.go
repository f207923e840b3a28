/*
stock.go - Invoice stock coordinator

PURPOSE:
  Keeps inventory, invoices and the customer ledger consistent with each
  other. Every operation here is one unit of work: the invoice document,
  all stock movements and the ledger entry commit together or not at all.

CREATE INVOICE (one unit):
  1. Allocate the next invoice number for (user, company)
  2. For each line: load the item, fail with InsufficientStock when
     item.quantity < line.quantity, otherwise decrement
  3. Persist the invoice (totals are taken from the caller)
  4. Append an "invoice" entry to the customer ledger (invoiceRef = id)
  The number is allocated inside the unit, so a failed creation does not
  consume it and the series stays gap-free.

DELETE INVOICE (one unit):
  Restores every line's quantity. A line whose item has since been deleted
  is skipped with a warning. If the invoice's ledger entry is still active
  it is reversed so the customer balance no longer includes the invoice.

PAYMENTS:
  RecordInvoicePayment moves the invoice through unpaid -> partial -> paid
  and appends a matching "payment" ledger entry.

SEE ALSO:
  - purchase.go: The purchase side (stock increases, softer failures)
  - ledger.go: record() / reverse() used inside the same unit
*/
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// StockCoordinator owns every operation that moves stock.
type StockCoordinator struct {
	Ledger *Ledger
}

func NewStockCoordinator(l *Ledger) *StockCoordinator {
	return &StockCoordinator{Ledger: l}
}

// StockChange is one item's quantity after a coordinator operation.
type StockChange struct {
	ItemID   string
	Delta    int64
	Quantity int64
}

// =============================================================================
// CREATE INVOICE
// =============================================================================

type CreateInvoiceInput struct {
	UserID     string
	CompanyID  string
	CustomerID string

	InvoiceDate time.Time
	DueDate     time.Time
	OrderNumber string
	Salesperson string

	Lines    []InvoiceLine
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	CGST     decimal.Decimal
	SGST     decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal

	PaymentMethod  string
	PaymentDetails string
}

func (in CreateInvoiceInput) validate() error {
	if in.UserID == "" {
		return invalid("userId", "is required")
	}
	if in.CompanyID == "" {
		return invalid("selectedCompanyId", "is required")
	}
	if in.CustomerID == "" {
		return invalid("customer", "is required")
	}
	if len(in.Lines) == 0 {
		return invalid("items", "at least one line is required")
	}
	for i, line := range in.Lines {
		if line.ItemID == "" {
			return invalid(fmt.Sprintf("items[%d].item", i), "is required")
		}
		if line.Quantity <= 0 {
			return invalid(fmt.Sprintf("items[%d].quantity", i), "must be greater than 0")
		}
		if line.SellingPrice.IsNegative() {
			return invalid(fmt.Sprintf("items[%d].sellingPrice", i), "must not be negative")
		}
	}
	if !in.Total.IsPositive() {
		return invalid("total", "must be greater than 0")
	}
	if !in.DueDate.IsZero() && !in.InvoiceDate.IsZero() && in.DueDate.Before(in.InvoiceDate) {
		return invalid("dueDate", "must not be before the invoice date")
	}
	return nil
}

// CreateInvoice allocates a number, takes stock and posts the invoice to the
// customer ledger in one unit.
func (c *StockCoordinator) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*Invoice, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	l := c.Ledger
	unlock, err := l.lock(ctx, accountLockKey(AccountCustomer, in.CustomerID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out *Invoice
	err = l.Store.WithTx(ctx, func(s Store) error {
		customer, err := s.GetAccount(ctx, AccountCustomer, in.CustomerID)
		if err != nil {
			return fmt.Errorf("load customer: %w", err)
		}
		if customer == nil || customer.CompanyID != in.CompanyID {
			return notFound("customer", in.CustomerID)
		}

		number, err := nextNumber(ctx, s, in.UserID, in.CompanyID)
		if err != nil {
			return err
		}

		if err := takeStock(ctx, s, in.CompanyID, in.Lines); err != nil {
			return err
		}

		now := l.Clock.Now()
		invoiceDate := in.InvoiceDate
		if invoiceDate.IsZero() {
			invoiceDate = now
		}
		dueDate := in.DueDate
		if dueDate.IsZero() {
			dueDate = invoiceDate
		}

		inv := Invoice{
			ID:               newID(),
			CompanyID:        in.CompanyID,
			UserID:           in.UserID,
			CustomerID:       in.CustomerID,
			InvoiceNumber:    number,
			InvoiceDate:      invoiceDate,
			DueDate:          dueDate,
			OrderNumber:      in.OrderNumber,
			Salesperson:      in.Salesperson,
			Lines:            in.Lines,
			Subtotal:         in.Subtotal,
			Discount:         in.Discount,
			CGST:             in.CGST,
			SGST:             in.SGST,
			Tax:              in.Tax,
			Total:            in.Total,
			Status:           InvoiceUnpaid,
			PaidAmount:       decimal.Zero,
			RemainingBalance: in.Total,
			PaymentMethod:    in.PaymentMethod,
			PaymentDetails:   in.PaymentDetails,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.CreateInvoice(ctx, inv); err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}

		if _, err := l.record(ctx, s, RecordInput{
			AccountKind: AccountCustomer,
			AccountID:   in.CustomerID,
			CompanyID:   in.CompanyID,
			UserID:      in.UserID,
			Type:        TxInvoice,
			Amount:      in.Total,
			Reference:   fmt.Sprintf("Invoice #%d", number),
			InvoiceRef:  inv.ID,
			Date:        invoiceDate,
			document:    true,
		}); err != nil {
			return err
		}

		out = &inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// takeStock decrements every line, aborting on the first missing item or
// shortage. Lines naming the same item draw down the same stock.
func takeStock(ctx context.Context, s Store, companyID string, lines []InvoiceLine) error {
	for _, line := range lines {
		item, err := s.GetItem(ctx, line.ItemID)
		if err != nil {
			return fmt.Errorf("load item: %w", err)
		}
		if item == nil || item.CompanyID != companyID {
			return notFound("item", line.ItemID)
		}
		if item.Quantity < line.Quantity {
			return &InsufficientStockError{
				ItemID:    item.ID,
				ItemName:  item.Name,
				Available: item.Quantity,
				Requested: line.Quantity,
			}
		}
		if err := s.SetItemStock(ctx, item.ID, item.Quantity-line.Quantity, item.PurchaseQuantity); err != nil {
			return fmt.Errorf("update stock: %w", err)
		}
	}
	return nil
}

// =============================================================================
// DELETE INVOICE
// =============================================================================

type DeleteInvoiceInput struct {
	InvoiceID string
	CompanyID string
	UserID    string
}

type DeleteInvoiceResult struct {
	Invoice  Invoice
	Restored []StockChange
	Skipped  []string
	Reversal *Transaction
}

// DeleteInvoice returns the invoice's stock and reverses its ledger entry.
func (c *StockCoordinator) DeleteInvoice(ctx context.Context, in DeleteInvoiceInput) (*DeleteInvoiceResult, error) {
	if in.InvoiceID == "" {
		return nil, invalid("id", "is required")
	}
	l := c.Ledger

	existing, err := l.Store.GetInvoice(ctx, in.InvoiceID)
	if err != nil {
		return nil, fmt.Errorf("load invoice: %w", err)
	}
	if existing == nil || (in.CompanyID != "" && existing.CompanyID != in.CompanyID) {
		return nil, notFound("invoice", in.InvoiceID)
	}

	unlock, err := l.lock(ctx, accountLockKey(AccountCustomer, existing.CustomerID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	log := zerolog.Ctx(ctx)
	var out *DeleteInvoiceResult
	err = l.Store.WithTx(ctx, func(s Store) error {
		inv, err := s.GetInvoice(ctx, in.InvoiceID)
		if err != nil {
			return fmt.Errorf("load invoice: %w", err)
		}
		if inv == nil {
			return notFound("invoice", in.InvoiceID)
		}

		res := &DeleteInvoiceResult{Invoice: *inv}
		for _, line := range inv.Lines {
			item, err := s.GetItem(ctx, line.ItemID)
			if err != nil {
				return fmt.Errorf("load item: %w", err)
			}
			if item == nil {
				log.Warn().
					Str("invoice_id", inv.ID).
					Str("item_id", line.ItemID).
					Int64("quantity", line.Quantity).
					Msg("item no longer exists, stock not restored")
				res.Skipped = append(res.Skipped, line.ItemID)
				continue
			}
			quantity := item.Quantity + line.Quantity
			if err := s.SetItemStock(ctx, item.ID, quantity, item.PurchaseQuantity); err != nil {
				return fmt.Errorf("restore stock: %w", err)
			}
			res.Restored = append(res.Restored, StockChange{ItemID: item.ID, Delta: line.Quantity, Quantity: quantity})
		}

		rev, err := c.reverseDocumentEntry(ctx, s, AccountCustomer, inv.ID, inv.CompanyID, in.UserID,
			fmt.Sprintf("Invoice #%d deleted", inv.InvoiceNumber))
		if err != nil {
			return err
		}
		res.Reversal = rev

		if err := s.DeleteInvoice(ctx, inv.ID); err != nil {
			return fmt.Errorf("delete invoice: %w", err)
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// reverseDocumentEntry reverses the active "invoice" entry posted for a
// document, if there is one.
func (c *StockCoordinator) reverseDocumentEntry(ctx context.Context, s Store, kind AccountKind, ref, companyID, userID, reference string) (*Transaction, error) {
	entry, err := s.FindDocumentTransaction(ctx, kind, ref, TxInvoice)
	if err != nil {
		return nil, fmt.Errorf("load ledger entry: %w", err)
	}
	if entry == nil || entry.Reversed {
		return nil, nil
	}
	return c.Ledger.reverse(ctx, s, ReverseInput{
		TransactionID: entry.ID,
		CompanyID:     companyID,
		UserID:        userID,
		Reference:     reference,
	})
}

// =============================================================================
// INVOICE PAYMENTS
// =============================================================================

type InvoicePaymentInput struct {
	InvoiceID      string
	CompanyID      string
	UserID         string
	Amount         decimal.Decimal
	Method         string
	Mode           PaymentMode
	PaymentDate    time.Time
	TransactionRef string
}

type InvoicePaymentResult struct {
	Invoice     Invoice
	Payment     Payment
	Transaction Transaction
}

// ModeForMethod maps an invoice payment method onto a ledger payment mode.
func ModeForMethod(method string) PaymentMode {
	m := PaymentMode(strings.ToLower(strings.TrimSpace(method)))
	if m.Valid() {
		return m
	}
	switch m {
	case "bank_transfer":
		return ModeNEFT
	default:
		return ModeOther
	}
}

// RecordInvoicePayment applies money received against an invoice.
func (c *StockCoordinator) RecordInvoicePayment(ctx context.Context, in InvoicePaymentInput) (*InvoicePaymentResult, error) {
	if in.InvoiceID == "" {
		return nil, invalid("invoiceId", "is required")
	}
	if !in.Amount.IsPositive() {
		return nil, invalid("amountPaid", "must be greater than 0")
	}
	mode := in.Mode
	if mode == "" {
		mode = ModeForMethod(in.Method)
	}
	if !mode.Valid() {
		return nil, invalid("mode", "unsupported payment mode %q", mode)
	}
	l := c.Ledger

	existing, err := l.Store.GetInvoice(ctx, in.InvoiceID)
	if err != nil {
		return nil, fmt.Errorf("load invoice: %w", err)
	}
	if existing == nil || (in.CompanyID != "" && existing.CompanyID != in.CompanyID) {
		return nil, notFound("invoice", in.InvoiceID)
	}

	unlock, err := l.lock(ctx, accountLockKey(AccountCustomer, existing.CustomerID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out *InvoicePaymentResult
	err = l.Store.WithTx(ctx, func(s Store) error {
		inv, err := s.GetInvoice(ctx, in.InvoiceID)
		if err != nil {
			return fmt.Errorf("load invoice: %w", err)
		}
		if inv == nil {
			return notFound("invoice", in.InvoiceID)
		}
		if inv.Status == InvoicePaid {
			return conflict("invoice #%d is already paid", inv.InvoiceNumber)
		}
		remaining := inv.Total.Sub(inv.PaidAmount)
		if in.Amount.GreaterThan(remaining) {
			return invalid("amountPaid", "exceeds the remaining balance of %s", remaining.StringFixed(2))
		}

		now := l.Clock.Now()
		paidOn := in.PaymentDate
		if paidOn.IsZero() {
			paidOn = now
		}

		applyPaid(inv, inv.PaidAmount.Add(in.Amount))
		if in.Method != "" {
			inv.PaymentMethod = in.Method
		}
		inv.UpdatedAt = now
		if err := s.UpdateInvoice(ctx, *inv); err != nil {
			return fmt.Errorf("update invoice: %w", err)
		}

		reference := in.TransactionRef
		if reference == "" {
			reference = fmt.Sprintf("Payment for invoice #%d", inv.InvoiceNumber)
		}
		tx, err := l.record(ctx, s, RecordInput{
			AccountKind: AccountCustomer,
			AccountID:   inv.CustomerID,
			CompanyID:   inv.CompanyID,
			UserID:      in.UserID,
			Type:        TxPayment,
			Amount:      in.Amount,
			Mode:        mode,
			Reference:   reference,
			InvoiceRef:  inv.ID,
			Date:        paidOn,
			document:    true,
		})
		if err != nil {
			return err
		}

		payment := Payment{
			ID:             newID(),
			InvoiceID:      inv.ID,
			CustomerID:     inv.CustomerID,
			CompanyID:      inv.CompanyID,
			UserID:         in.UserID,
			Amount:         in.Amount,
			Method:         in.Method,
			PaymentDate:    paidOn,
			TransactionRef: in.TransactionRef,
			LedgerTxnID:    tx.ID,
			CreatedAt:      now,
		}
		if payment.Method == "" {
			payment.Method = string(mode)
		}
		if err := s.CreatePayment(ctx, payment); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		out = &InvoicePaymentResult{Invoice: *inv, Payment: payment, Transaction: *tx}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// INVOICE DETAILS
// =============================================================================

// UpdateInvoiceInput changes header fields only. Lines and totals are fixed
// at creation because stock and the ledger were posted from them.
type UpdateInvoiceInput struct {
	InvoiceID      string
	CompanyID      string
	InvoiceDate    *time.Time
	DueDate        *time.Time
	OrderNumber    *string
	Salesperson    *string
	PaymentMethod  *string
	PaymentDetails *string
}

func (c *StockCoordinator) UpdateInvoiceDetails(ctx context.Context, in UpdateInvoiceInput) (*Invoice, error) {
	if in.InvoiceID == "" {
		return nil, invalid("id", "is required")
	}
	l := c.Ledger

	var out *Invoice
	err := l.Store.WithTx(ctx, func(s Store) error {
		inv, err := s.GetInvoice(ctx, in.InvoiceID)
		if err != nil {
			return fmt.Errorf("load invoice: %w", err)
		}
		if inv == nil || (in.CompanyID != "" && inv.CompanyID != in.CompanyID) {
			return notFound("invoice", in.InvoiceID)
		}
		if in.InvoiceDate != nil {
			inv.InvoiceDate = *in.InvoiceDate
		}
		if in.DueDate != nil {
			inv.DueDate = *in.DueDate
		}
		if inv.DueDate.Before(inv.InvoiceDate) {
			return invalid("dueDate", "must not be before the invoice date")
		}
		if in.OrderNumber != nil {
			inv.OrderNumber = *in.OrderNumber
		}
		if in.Salesperson != nil {
			inv.Salesperson = *in.Salesperson
		}
		if in.PaymentMethod != nil {
			inv.PaymentMethod = *in.PaymentMethod
		}
		if in.PaymentDetails != nil {
			inv.PaymentDetails = *in.PaymentDetails
		}
		inv.UpdatedAt = l.Clock.Now()
		if err := s.UpdateInvoice(ctx, *inv); err != nil {
			return fmt.Errorf("update invoice: %w", err)
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
