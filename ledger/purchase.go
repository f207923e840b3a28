/*
purchase.go - Purchase invoice stock coordination

PURPOSE:
  Purchases bring stock in. Creating a purchase increases quantity and the
  purchaseQuantity counter of every line's item and posts the purchase to
  the supplier ledger; deleting it takes that stock back out.

UPDATE (delta policy):
  previous := map[productID]quantity built from the stored lines
  for each product in the new lines:
      delta = new - previous[product]
      quantity += delta, purchaseQuantity += delta
  for each product only in the previous lines:
      quantity -= previous, purchaseQuantity -= previous

FAILURE POLICY:
  Creation aborts on the first unknown product. Update and delete log and
  skip a product that cannot be found and keep going with the rest. Any
  movement that would leave quantity below zero aborts the whole unit.
*/
package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// =============================================================================
// CREATE
// =============================================================================

type CreatePurchaseInput struct {
	UserID              string
	CompanyID           string
	SupplierID          string
	SupplierName        string
	InvoiceNumber       string
	PurchaseOrderNumber string
	PurchaseDate        time.Time
	DueDate             time.Time
	Lines               []PurchaseLine
	Status              PurchaseStatus
	TotalAmount         decimal.Decimal
}

func validatePurchaseLines(lines []PurchaseLine) error {
	if len(lines) == 0 {
		return invalid("items", "at least one line is required")
	}
	for i, line := range lines {
		if line.ProductID == "" {
			return invalid(fmt.Sprintf("items[%d].productId", i), "is required")
		}
		if line.Quantity <= 0 {
			return invalid(fmt.Sprintf("items[%d].quantity", i), "must be greater than 0")
		}
		if line.UnitPrice.IsNegative() || line.TotalPrice.IsNegative() {
			return invalid(fmt.Sprintf("items[%d]", i), "prices must not be negative")
		}
	}
	return nil
}

func (in CreatePurchaseInput) validate() error {
	if in.UserID == "" {
		return invalid("userId", "is required")
	}
	if in.CompanyID == "" {
		return invalid("selectedCompanyId", "is required")
	}
	if in.SupplierID == "" {
		return invalid("supplierId", "is required")
	}
	if in.Status != "" && !in.Status.Valid() {
		return invalid("status", "unsupported status %q", in.Status)
	}
	if in.TotalAmount.IsNegative() {
		return invalid("totalAmount", "must not be negative")
	}
	return validatePurchaseLines(in.Lines)
}

// CreatePurchase receives stock and posts the purchase to the supplier ledger.
func (c *StockCoordinator) CreatePurchase(ctx context.Context, in CreatePurchaseInput) (*PurchaseInvoice, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	l := c.Ledger

	unlock, err := l.lock(ctx, accountLockKey(AccountSupplier, in.SupplierID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out *PurchaseInvoice
	err = l.Store.WithTx(ctx, func(s Store) error {
		supplier, err := s.GetAccount(ctx, AccountSupplier, in.SupplierID)
		if err != nil {
			return fmt.Errorf("load supplier: %w", err)
		}
		if supplier == nil || supplier.CompanyID != in.CompanyID {
			return notFound("supplier", in.SupplierID)
		}

		for _, line := range in.Lines {
			item, err := s.GetItem(ctx, line.ProductID)
			if err != nil {
				return fmt.Errorf("load item: %w", err)
			}
			if item == nil || item.CompanyID != in.CompanyID {
				return notFound("item", line.ProductID)
			}
			if err := s.SetItemStock(ctx, item.ID, item.Quantity+line.Quantity, item.PurchaseQuantity+line.Quantity); err != nil {
				return fmt.Errorf("update stock: %w", err)
			}
		}

		now := l.Clock.Now()
		status := in.Status
		if status == "" {
			status = PurchaseNotPaid
		}
		purchaseDate := in.PurchaseDate
		if purchaseDate.IsZero() {
			purchaseDate = now
		}
		name := in.SupplierName
		if name == "" {
			name = supplier.Name
		}
		p := PurchaseInvoice{
			ID:                  newID(),
			CompanyID:           in.CompanyID,
			UserID:              in.UserID,
			SupplierID:          in.SupplierID,
			SupplierName:        name,
			InvoiceNumber:       in.InvoiceNumber,
			PurchaseOrderNumber: in.PurchaseOrderNumber,
			PurchaseDate:        purchaseDate,
			DueDate:             in.DueDate,
			Lines:               in.Lines,
			Status:              status,
			TotalAmount:         in.TotalAmount,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := s.CreatePurchase(ctx, p); err != nil {
			return fmt.Errorf("create purchase invoice: %w", err)
		}
		if err := c.postPurchase(ctx, s, p); err != nil {
			return err
		}
		out = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StockCoordinator) postPurchase(ctx context.Context, s Store, p PurchaseInvoice) error {
	if !p.TotalAmount.IsPositive() {
		return nil
	}
	_, err := c.Ledger.record(ctx, s, RecordInput{
		AccountKind: AccountSupplier,
		AccountID:   p.SupplierID,
		CompanyID:   p.CompanyID,
		UserID:      p.UserID,
		Type:        TxInvoice,
		Amount:      p.TotalAmount,
		Reference:   purchaseReference(p),
		InvoiceRef:  p.ID,
		Date:        p.PurchaseDate,
		document:    true,
	})
	return err
}

func purchaseReference(p PurchaseInvoice) string {
	if p.InvoiceNumber == "" {
		return "Purchase invoice"
	}
	return "Purchase invoice #" + p.InvoiceNumber
}

// =============================================================================
// UPDATE
// =============================================================================

// UpdatePurchaseInput replaces fields that are non-nil. Lines == nil keeps the
// stored lines and leaves stock untouched.
type UpdatePurchaseInput struct {
	PurchaseID          string
	CompanyID           string
	UserID              string
	SupplierID          *string
	SupplierName        *string
	InvoiceNumber       *string
	PurchaseOrderNumber *string
	PurchaseDate        *time.Time
	DueDate             *time.Time
	Status              *PurchaseStatus
	TotalAmount         *decimal.Decimal
	Lines               []PurchaseLine
}

type UpdatePurchaseResult struct {
	Purchase PurchaseInvoice
	Changes  []StockChange
	Skipped  []string
}

// UpdatePurchase applies per-product stock deltas between the stored and the
// new lines.
func (c *StockCoordinator) UpdatePurchase(ctx context.Context, in UpdatePurchaseInput) (*UpdatePurchaseResult, error) {
	if in.PurchaseID == "" {
		return nil, invalid("id", "is required")
	}
	if in.Lines != nil {
		if err := validatePurchaseLines(in.Lines); err != nil {
			return nil, err
		}
	}
	if in.Status != nil && !in.Status.Valid() {
		return nil, invalid("status", "unsupported status %q", *in.Status)
	}
	if in.TotalAmount != nil && in.TotalAmount.IsNegative() {
		return nil, invalid("totalAmount", "must not be negative")
	}
	l := c.Ledger

	existing, err := l.Store.GetPurchase(ctx, in.PurchaseID)
	if err != nil {
		return nil, fmt.Errorf("load purchase invoice: %w", err)
	}
	if existing == nil || (in.CompanyID != "" && existing.CompanyID != in.CompanyID) {
		return nil, notFound("purchase invoice", in.PurchaseID)
	}
	keys := []string{accountLockKey(AccountSupplier, existing.SupplierID)}
	if in.SupplierID != nil {
		keys = append(keys, accountLockKey(AccountSupplier, *in.SupplierID))
	}
	unlock, err := l.lock(ctx, keys...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out *UpdatePurchaseResult
	err = l.Store.WithTx(ctx, func(s Store) error {
		p, err := s.GetPurchase(ctx, in.PurchaseID)
		if err != nil {
			return fmt.Errorf("load purchase invoice: %w", err)
		}
		if p == nil {
			return notFound("purchase invoice", in.PurchaseID)
		}
		res := &UpdatePurchaseResult{}

		if in.Lines != nil {
			changes, skipped, err := applyPurchaseDelta(ctx, s, *p, in.Lines)
			if err != nil {
				return err
			}
			res.Changes, res.Skipped = changes, skipped
			p.Lines = in.Lines
		}

		before := *p
		if in.SupplierID != nil && *in.SupplierID != p.SupplierID {
			supplier, err := s.GetAccount(ctx, AccountSupplier, *in.SupplierID)
			if err != nil {
				return fmt.Errorf("load supplier: %w", err)
			}
			if supplier == nil || supplier.CompanyID != p.CompanyID {
				return notFound("supplier", *in.SupplierID)
			}
			p.SupplierID = supplier.ID
			p.SupplierName = supplier.Name
		}
		if in.SupplierName != nil {
			p.SupplierName = *in.SupplierName
		}
		if in.InvoiceNumber != nil {
			p.InvoiceNumber = *in.InvoiceNumber
		}
		if in.PurchaseOrderNumber != nil {
			p.PurchaseOrderNumber = *in.PurchaseOrderNumber
		}
		if in.PurchaseDate != nil {
			p.PurchaseDate = *in.PurchaseDate
		}
		if in.DueDate != nil {
			p.DueDate = *in.DueDate
		}
		if in.Status != nil {
			p.Status = *in.Status
		}
		if in.TotalAmount != nil {
			p.TotalAmount = *in.TotalAmount
		}
		p.UpdatedAt = l.Clock.Now()

		if err := s.UpdatePurchase(ctx, *p); err != nil {
			return fmt.Errorf("update purchase invoice: %w", err)
		}

		if p.SupplierID != before.SupplierID || !p.TotalAmount.Equal(before.TotalAmount) {
			if _, err := c.reverseDocumentEntry(ctx, s, AccountSupplier, p.ID, p.CompanyID, in.UserID,
				purchaseReference(*p)+" amended"); err != nil {
				return err
			}
			if err := c.postPurchase(ctx, s, *p); err != nil {
				return err
			}
		}

		res.Purchase = *p
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// applyPurchaseDelta moves stock by the difference between the stored lines
// of p and next.
func applyPurchaseDelta(ctx context.Context, s Store, p PurchaseInvoice, next []PurchaseLine) ([]StockChange, []string, error) {
	log := zerolog.Ctx(ctx)

	previous := make(map[string]int64, len(p.Lines))
	for _, line := range p.Lines {
		previous[line.ProductID] += line.Quantity
	}

	var order []string
	wanted := make(map[string]int64, len(next))
	for _, line := range next {
		if _, seen := wanted[line.ProductID]; !seen {
			order = append(order, line.ProductID)
		}
		wanted[line.ProductID] += line.Quantity
	}

	var changes []StockChange
	var skipped []string

	move := func(productID string, delta int64) error {
		item, err := s.GetItem(ctx, productID)
		if err != nil {
			return fmt.Errorf("load item: %w", err)
		}
		if item == nil || item.CompanyID != p.CompanyID {
			log.Warn().
				Str("purchase_id", p.ID).
				Str("product_id", productID).
				Int64("delta", delta).
				Msg("product not found, skipping stock update")
			skipped = append(skipped, productID)
			return nil
		}
		if delta == 0 {
			return nil
		}
		quantity := item.Quantity + delta
		if quantity < 0 {
			return &InsufficientStockError{
				ItemID:    item.ID,
				ItemName:  item.Name,
				Available: item.Quantity,
				Requested: -delta,
			}
		}
		purchased := item.PurchaseQuantity + delta
		if purchased < 0 {
			purchased = 0
		}
		if err := s.SetItemStock(ctx, item.ID, quantity, purchased); err != nil {
			return fmt.Errorf("update stock: %w", err)
		}
		changes = append(changes, StockChange{ItemID: item.ID, Delta: delta, Quantity: quantity})
		return nil
	}

	for _, productID := range order {
		delta := wanted[productID] - previous[productID]
		delete(previous, productID)
		if err := move(productID, delta); err != nil {
			return nil, nil, err
		}
	}

	removed := make([]string, 0, len(previous))
	for productID := range previous {
		removed = append(removed, productID)
	}
	sort.Strings(removed)
	for _, productID := range removed {
		if err := move(productID, -previous[productID]); err != nil {
			return nil, nil, err
		}
	}
	return changes, skipped, nil
}

// SetPurchaseStatus changes only the status.
func (c *StockCoordinator) SetPurchaseStatus(ctx context.Context, purchaseID, companyID string, status PurchaseStatus) (*PurchaseInvoice, error) {
	if !status.Valid() {
		return nil, invalid("status", "unsupported status %q", status)
	}
	res, err := c.UpdatePurchase(ctx, UpdatePurchaseInput{
		PurchaseID: purchaseID,
		CompanyID:  companyID,
		Status:     &status,
	})
	if err != nil {
		return nil, err
	}
	return &res.Purchase, nil
}

// =============================================================================
// DELETE
// =============================================================================

type DeletePurchaseInput struct {
	PurchaseID string
	CompanyID  string
	UserID     string
}

type DeletePurchaseResult struct {
	Purchase PurchaseInvoice
	Changes  []StockChange
	Skipped  []string
	Reversal *Transaction
}

// DeletePurchase takes the purchased stock back out and reverses the supplier
// ledger entry.
func (c *StockCoordinator) DeletePurchase(ctx context.Context, in DeletePurchaseInput) (*DeletePurchaseResult, error) {
	if in.PurchaseID == "" {
		return nil, invalid("id", "is required")
	}
	l := c.Ledger

	existing, err := l.Store.GetPurchase(ctx, in.PurchaseID)
	if err != nil {
		return nil, fmt.Errorf("load purchase invoice: %w", err)
	}
	if existing == nil || (in.CompanyID != "" && existing.CompanyID != in.CompanyID) {
		return nil, notFound("purchase invoice", in.PurchaseID)
	}
	unlock, err := l.lock(ctx, accountLockKey(AccountSupplier, existing.SupplierID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out *DeletePurchaseResult
	err = l.Store.WithTx(ctx, func(s Store) error {
		p, err := s.GetPurchase(ctx, in.PurchaseID)
		if err != nil {
			return fmt.Errorf("load purchase invoice: %w", err)
		}
		if p == nil {
			return notFound("purchase invoice", in.PurchaseID)
		}

		changes, skipped, err := applyPurchaseDelta(ctx, s, *p, nil)
		if err != nil {
			return err
		}
		rev, err := c.reverseDocumentEntry(ctx, s, AccountSupplier, p.ID, p.CompanyID, in.UserID,
			purchaseReference(*p)+" deleted")
		if err != nil {
			return err
		}
		if err := s.DeletePurchase(ctx, p.ID); err != nil {
			return fmt.Errorf("delete purchase invoice: %w", err)
		}
		out = &DeletePurchaseResult{Purchase: *p, Changes: changes, Skipped: skipped, Reversal: rev}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
