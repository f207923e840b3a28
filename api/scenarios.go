/*
scenarios.go - Demo data loader

PURPOSE:

	Populates an empty database with a small company that exercises every
	engine path: invoices that take stock, a part payment, a manual ledger
	payment that is reversed, and a purchase that restocks an item.
	Everything goes through the engine, so balances and stock are exactly
	what the API would produce.

WHAT GETS CREATED:
 1. Reset database (clear all data)
 2. User "demo-user" with one company and a bank account
 3. Customers Asha Traders (opening 500) and Bharat Stores, supplier Kiran Supplies
 4. Items Notebook (10), Pen (100), Stapler (5)
 5. Invoice #1 to Asha (4 notebooks, overdue), part paid 100
 6. Invoice #2 to Bharat (10 pens, 1 stapler)
 7. Manual payment of 300 from Asha, then reversed
 8. Purchase of 20 notebooks from Kiran

USAGE:

	billing-engine seed

NOTE:

	Seeding resets the database. Only use in development/demo environments.

SEE ALSO:
  - cmd/server/main.go: seed command
*/
package api

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/ledger"
	"github.com/warp/billing-engine/store/sqlite"
)

// DemoClerkUserID is the identity the demo data belongs to.
const DemoClerkUserID = "demo-user"

// DemoSeed lists what SeedDemo created.
type DemoSeed struct {
	ClerkUserID string
	UserID      string
	CompanyID   string
	CustomerIDs []string
	SupplierID  string
	ItemIDs     map[string]string
	InvoiceIDs  []string
	ReversalID  ledger.TransactionID
	PurchaseID  string
}

// SeedDemo resets the database and loads the demo company.
func (h *Handler) SeedDemo(ctx context.Context) (*DemoSeed, error) {
	if err := h.Store.Reset(ctx); err != nil {
		return nil, fmt.Errorf("reset: %w", err)
	}
	now := h.Clock.Now()
	today := ledger.StartOfDay(now)
	seed := &DemoSeed{ClerkUserID: DemoClerkUserID, ItemIDs: map[string]string{}}

	// User, company, bank
	user := sqlite.User{
		ID:         uuid.NewString(),
		ExternalID: DemoClerkUserID,
		Email:      "demo@example.com",
		FullName:   "Demo Owner",
		CreatedAt:  now,
	}
	if err := h.Store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	seed.UserID = user.ID

	company := sqlite.Company{
		ID:            uuid.NewString(),
		UserID:        user.ID,
		Name:          "Demo Stationers",
		Address:       "12 MG Road",
		City:          "Bengaluru",
		State:         "Karnataka",
		Zip:           "560001",
		ContactNumber: "+919876543210",
		Email:         "accounts@demo-stationers.example",
		GSTNumber:     "29ABCDE1234F1Z5",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := h.Store.SaveCompany(ctx, company); err != nil {
		return nil, err
	}
	seed.CompanyID = company.ID

	if err := h.Store.SaveBank(ctx, sqlite.Bank{
		ID:            uuid.NewString(),
		CompanyID:     company.ID,
		UserID:        user.ID,
		AccountName:   "Demo Stationers",
		AccountNumber: "001234567890",
		IFSCCode:      "HDFC0000123",
		BankName:      "HDFC Bank",
		CreatedAt:     now,
	}); err != nil {
		return nil, err
	}

	// Contacts
	contacts := []sqlite.Contact{
		{Kind: ledger.AccountCustomer, Name: "Asha Traders", Email: "asha@example.com", Phone: "+919812345678", City: "Mysuru", OpeningBalance: decimal.NewFromInt(500)},
		{Kind: ledger.AccountCustomer, Name: "Bharat Stores", Email: "bharat@example.com", City: "Hubballi"},
		{Kind: ledger.AccountSupplier, Name: "Kiran Supplies", Email: "kiran@example.com", City: "Chennai"},
	}
	for _, c := range contacts {
		c.ID = uuid.NewString()
		c.CompanyID = company.ID
		c.UserID = user.ID
		c.CreatedAt = now
		c.UpdatedAt = now
		if err := h.Store.CreateContact(ctx, c); err != nil {
			return nil, err
		}
		if c.Kind == ledger.AccountSupplier {
			seed.SupplierID = c.ID
		} else {
			seed.CustomerIDs = append(seed.CustomerIDs, c.ID)
		}
	}

	// Items
	items := []ledger.Item{
		{Name: "Notebook", Unit: "pcs", HSNCode: "4820", Barcode: "8901000000011", SellingPrice: decimal.NewFromInt(50), Quantity: 10},
		{Name: "Pen", Unit: "pcs", HSNCode: "9608", Barcode: "8901000000028", SellingPrice: decimal.NewFromInt(10), Quantity: 100},
		{Name: "Stapler", Unit: "pcs", HSNCode: "8472", Barcode: "8901000000035", SellingPrice: decimal.NewFromInt(150), Quantity: 5},
	}
	for _, it := range items {
		it.ID = uuid.NewString()
		it.CompanyID = company.ID
		it.UserID = user.ID
		it.CreatedAt = now
		it.UpdatedAt = now
		if err := h.Store.SaveItem(ctx, it); err != nil {
			return nil, err
		}
		seed.ItemIDs[it.Name] = it.ID
	}

	// Invoices
	invoices := []ledger.CreateInvoiceInput{
		{
			CustomerID: seed.CustomerIDs[0],
			DueDate:    today.AddDate(0, 0, -3),
			Lines:      []ledger.InvoiceLine{{ItemID: seed.ItemIDs["Notebook"], Quantity: 4, SellingPrice: decimal.NewFromInt(50)}},
			Subtotal:   decimal.NewFromInt(200),
			Total:      decimal.NewFromInt(200),
		},
		{
			CustomerID: seed.CustomerIDs[1],
			DueDate:    today.AddDate(0, 0, 15),
			Lines: []ledger.InvoiceLine{
				{ItemID: seed.ItemIDs["Pen"], Quantity: 10, SellingPrice: decimal.NewFromInt(10)},
				{ItemID: seed.ItemIDs["Stapler"], Quantity: 1, SellingPrice: decimal.NewFromInt(150)},
			},
			Subtotal: decimal.NewFromInt(250),
			CGST:     decimal.NewFromFloat(22.5),
			SGST:     decimal.NewFromFloat(22.5),
			Tax:      decimal.NewFromInt(45),
			Total:    decimal.NewFromInt(295),
		},
	}
	for _, in := range invoices {
		in.UserID = user.ID
		in.CompanyID = company.ID
		in.InvoiceDate = today.AddDate(0, 0, -10)
		inv, err := h.Stock.CreateInvoice(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("create invoice: %w", err)
		}
		seed.InvoiceIDs = append(seed.InvoiceIDs, inv.ID)
	}

	if _, err := h.Stock.RecordInvoicePayment(ctx, ledger.InvoicePaymentInput{
		InvoiceID: seed.InvoiceIDs[0],
		CompanyID: company.ID,
		UserID:    user.ID,
		Amount:    decimal.NewFromInt(100),
		Method:    "upi",
	}); err != nil {
		return nil, fmt.Errorf("record invoice payment: %w", err)
	}

	// Manual payment entered by mistake, then reversed
	payment, err := h.Ledger.RecordTransaction(ctx, ledger.RecordInput{
		AccountKind: ledger.AccountCustomer,
		AccountID:   seed.CustomerIDs[0],
		CompanyID:   company.ID,
		UserID:      user.ID,
		Type:        ledger.TxPayment,
		Amount:      decimal.NewFromInt(300),
		Mode:        ledger.ModeCash,
		Reference:   "counter receipt 17",
	})
	if err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}
	reversal, err := h.Ledger.ReverseTransaction(ctx, ledger.ReverseInput{
		TransactionID: payment.ID,
		CompanyID:     company.ID,
		UserID:        user.ID,
		Reference:     "entered twice",
	})
	if err != nil {
		return nil, fmt.Errorf("reverse payment: %w", err)
	}
	seed.ReversalID = reversal.ID

	// Restock
	purchase, err := h.Stock.CreatePurchase(ctx, ledger.CreatePurchaseInput{
		UserID:        user.ID,
		CompanyID:     company.ID,
		SupplierID:    seed.SupplierID,
		SupplierName:  "Kiran Supplies",
		InvoiceNumber: "KS-1042",
		PurchaseDate:  today,
		Lines: []ledger.PurchaseLine{{
			ProductID:  seed.ItemIDs["Notebook"],
			Quantity:   20,
			UnitPrice:  decimal.NewFromInt(30),
			TotalPrice: decimal.NewFromInt(600),
		}},
		Status:      ledger.PurchaseNotPaid,
		TotalAmount: decimal.NewFromInt(600),
	})
	if err != nil {
		return nil, fmt.Errorf("create purchase: %w", err)
	}
	seed.PurchaseID = purchase.ID

	h.invalidate(ctx, company.ID)
	return seed, nil
}
