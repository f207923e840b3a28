/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's model from the wire contract the web client already uses:
  camelCase keys, "_id" identifiers, selectedCompanyId on every call.

NAMING CONVENTION:
  - *Request: Request body types from clients (validated with struct tags)
  - *DTO:     Response types returned to clients
  - to*DTO:   Mapping functions from engine/store types

VALIDATION:
  Shape checks (required, email, phone, oneof) are struct tags checked in
  bind(). Money and business rules (amount > 0, stock, totals) are
  enforced by the ledger engine so they hold for every caller.

SEE ALSO:
  - validate.go: bind() and the validator setup
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/ledger"
	"github.com/warp/billing-engine/store/sqlite"
)

// Amounts are JSON numbers on the wire.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// =============================================================================
// COMMON
// =============================================================================

// Identity is carried by every authenticated request body.
type Identity struct {
	ClerkUserID       string `json:"clerkUserId"`
	SelectedCompanyID string `json:"selectedCompanyId"`
}

type PaginationDTO struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// =============================================================================
// USERS, COMPANIES, BANKS
// =============================================================================

type RegisterRequest struct {
	ClerkUserID string `json:"clerkUserId" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	FullName    string `json:"fullName" validate:"required"`
}

type CompanyRequest struct {
	Identity
	ID            string `json:"_id"`
	CompanyName   string `json:"companyName" validate:"required"`
	Address       string `json:"address"`
	City          string `json:"city"`
	State         string `json:"state"`
	Zip           string `json:"zip"`
	ContactNumber string `json:"contactNumber" validate:"omitempty,phone"`
	Email         string `json:"email" validate:"omitempty,email"`
	GSTNumber     string `json:"gstNumber"`
	LogoURL       string `json:"logoUrl" validate:"omitempty,url"`
}

type CompanyDTO struct {
	ID            string    `json:"_id"`
	UserID        string    `json:"userId"`
	CompanyName   string    `json:"companyName"`
	Address       string    `json:"address"`
	City          string    `json:"city"`
	State         string    `json:"state"`
	Zip           string    `json:"zip"`
	ContactNumber string    `json:"contactNumber"`
	Email         string    `json:"email"`
	GSTNumber     string    `json:"gstNumber"`
	LogoURL       string    `json:"logoUrl"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func toCompanyDTO(c sqlite.Company) CompanyDTO {
	return CompanyDTO{
		ID:            c.ID,
		UserID:        c.UserID,
		CompanyName:   c.Name,
		Address:       c.Address,
		City:          c.City,
		State:         c.State,
		Zip:           c.Zip,
		ContactNumber: c.ContactNumber,
		Email:         c.Email,
		GSTNumber:     c.GSTNumber,
		LogoURL:       c.LogoURL,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

type BankRequest struct {
	Identity
	ID            string `json:"_id"`
	AccountName   string `json:"accountName" validate:"required"`
	AccountNumber string `json:"accountNumber" validate:"required,numeric"`
	IFSCCode      string `json:"ifscCode" validate:"required,len=11"`
	BankName      string `json:"bankName" validate:"required"`
}

type BankDTO struct {
	ID            string    `json:"_id"`
	CompanyID     string    `json:"companyId"`
	AccountName   string    `json:"accountName"`
	AccountNumber string    `json:"accountNumber"`
	IFSCCode      string    `json:"ifscCode"`
	BankName      string    `json:"bankName"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toBankDTO(b sqlite.Bank) BankDTO {
	return BankDTO{
		ID:            b.ID,
		CompanyID:     b.CompanyID,
		AccountName:   b.AccountName,
		AccountNumber: b.AccountNumber,
		IFSCCode:      b.IFSCCode,
		BankName:      b.BankName,
		CreatedAt:     b.CreatedAt,
	}
}

// =============================================================================
// CUSTOMERS AND SUPPLIERS
// =============================================================================

type ContactRequest struct {
	Identity
	ID             string           `json:"_id"`
	FullName       string           `json:"fullName" validate:"required"`
	Email          string           `json:"email" validate:"omitempty,email"`
	Phone          string           `json:"phone" validate:"omitempty,phone"`
	Address        string           `json:"address"`
	City           string           `json:"city"`
	State          string           `json:"state"`
	Zip            string           `json:"zip"`
	GSTNumber      string           `json:"gstNumber"`
	OpeningBalance *decimal.Decimal `json:"openingBalance"`
}

type ContactDTO struct {
	ID                string          `json:"_id"`
	FullName          string          `json:"fullName"`
	Email             string          `json:"email"`
	Phone             string          `json:"phone"`
	Address           string          `json:"address"`
	City              string          `json:"city"`
	State             string          `json:"state"`
	Zip               string          `json:"zip"`
	GSTNumber         string          `json:"gstNumber"`
	OpeningBalance    decimal.Decimal `json:"openingBalance"`
	CurrentBalance    decimal.Decimal `json:"currentBalance"`
	BalanceType       string          `json:"balanceType"`
	BalanceDisplay    string          `json:"balanceDisplay"`
	SelectedCompanyID string          `json:"selectedCompanyId"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

func toContactDTO(c sqlite.Contact) ContactDTO {
	return ContactDTO{
		ID:                c.ID,
		FullName:          c.Name,
		Email:             c.Email,
		Phone:             c.Phone,
		Address:           c.Address,
		City:              c.City,
		State:             c.State,
		Zip:               c.Zip,
		GSTNumber:         c.GST,
		OpeningBalance:    c.OpeningBalance,
		CurrentBalance:    c.CurrentBalance,
		BalanceType:       string(c.BalanceType),
		BalanceDisplay:    ledger.BalanceDisplay(c.CurrentBalance),
		SelectedCompanyID: c.CompanyID,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

// =============================================================================
// ITEMS
// =============================================================================

type ItemRequest struct {
	Identity
	ID           string          `json:"_id"`
	Name         string          `json:"name" validate:"required"`
	Unit         string          `json:"unit"`
	HSNCode      string          `json:"hsnCode"`
	Barcode      string          `json:"barcode"`
	Description  string          `json:"description"`
	SellingPrice decimal.Decimal `json:"sellingPrice"`
	Quantity     int64           `json:"quantity" validate:"gte=0"`
}

type ItemDTO struct {
	ID               string          `json:"_id"`
	Name             string          `json:"name"`
	Unit             string          `json:"unit"`
	HSNCode          string          `json:"hsnCode"`
	Barcode          string          `json:"barcode"`
	Description      string          `json:"description"`
	SellingPrice     decimal.Decimal `json:"sellingPrice"`
	Quantity         int64           `json:"quantity"`
	PurchaseQuantity int64           `json:"purchaseQuantity"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func toItemDTO(it ledger.Item) ItemDTO {
	return ItemDTO{
		ID:               it.ID,
		Name:             it.Name,
		Unit:             it.Unit,
		HSNCode:          it.HSNCode,
		Barcode:          it.Barcode,
		Description:      it.Description,
		SellingPrice:     it.SellingPrice,
		Quantity:         it.Quantity,
		PurchaseQuantity: it.PurchaseQuantity,
		CreatedAt:        it.CreatedAt,
		UpdatedAt:        it.UpdatedAt,
	}
}

// ProductRefDTO identifies the item a stock check resolved to.
type ProductRefDTO struct {
	ID      string `json:"_id"`
	Name    string `json:"name"`
	Barcode string `json:"barcode"`
}

type StockChangeDTO struct {
	ItemID   string `json:"itemId"`
	Delta    int64  `json:"delta"`
	Quantity int64  `json:"quantity"`
}

func toStockChangeDTOs(changes []ledger.StockChange) []StockChangeDTO {
	out := make([]StockChangeDTO, len(changes))
	for i, c := range changes {
		out[i] = StockChangeDTO{ItemID: c.ItemID, Delta: c.Delta, Quantity: c.Quantity}
	}
	return out
}

// =============================================================================
// INVOICES AND PAYMENTS
// =============================================================================

type InvoiceLineRequest struct {
	ItemID       string          `json:"itemId" validate:"required"`
	Quantity     int64           `json:"quantity" validate:"gt=0"`
	SellingPrice decimal.Decimal `json:"sellingPrice"`
}

type CreateInvoiceRequest struct {
	Identity
	CustomerID     string               `json:"customerId" validate:"required"`
	InvoiceDate    string               `json:"invoiceDate"`
	DueDate        string               `json:"dueDate"`
	OrderNumber    string               `json:"orderNumber"`
	Salesperson    string               `json:"salesperson"`
	Items          []InvoiceLineRequest `json:"items" validate:"required,min=1,dive"`
	Subtotal       decimal.Decimal      `json:"subtotal"`
	Discount       decimal.Decimal      `json:"discount"`
	CGST           decimal.Decimal      `json:"cgst"`
	SGST           decimal.Decimal      `json:"sgst"`
	Tax            decimal.Decimal      `json:"tax"`
	Total          decimal.Decimal      `json:"total"`
	PaymentMethod  string               `json:"paymentMethod"`
	PaymentDetails string               `json:"paymentDetails"`
}

// UpdateInvoiceRequest carries header fields only. Absent fields keep their
// stored value.
type UpdateInvoiceRequest struct {
	Identity
	ID             string  `json:"_id" validate:"required"`
	InvoiceDate    *string `json:"invoiceDate"`
	DueDate        *string `json:"dueDate"`
	OrderNumber    *string `json:"orderNumber"`
	Salesperson    *string `json:"salesperson"`
	PaymentMethod  *string `json:"paymentMethod"`
	PaymentDetails *string `json:"paymentDetails"`
}

// InvoicePaymentRequest is the PATCH /invoice body.
type InvoicePaymentRequest struct {
	Identity
	ID             string          `json:"_id" validate:"required"`
	PaidAmount     decimal.Decimal `json:"paidAmount"`
	PaymentMethod  string          `json:"paymentMethod" validate:"required,oneof=cash card upi bank_transfer cheque neft rtgs other"`
	PaymentDetails string          `json:"paymentDetails"`
	PaymentDate    string          `json:"paymentDate"`
}

// PaymentRequest is the POST /payment body.
type PaymentRequest struct {
	Identity
	InvoiceID     string          `json:"invoiceId" validate:"required"`
	AmountPaid    decimal.Decimal `json:"amountPaid"`
	PaymentMethod string          `json:"paymentMethod" validate:"required,oneof=cash card upi bank_transfer cheque neft rtgs other"`
	PaymentDate   string          `json:"paymentDate"`
	TransactionID string          `json:"transactionId"`
}

type InvoiceLineDTO struct {
	ItemID       string          `json:"itemId"`
	Quantity     int64           `json:"quantity"`
	SellingPrice decimal.Decimal `json:"sellingPrice"`
}

type InvoiceDTO struct {
	ID                string           `json:"_id"`
	InvoiceNumber     int64            `json:"invoiceNumber"`
	CustomerID        string           `json:"customerId"`
	InvoiceDate       time.Time        `json:"invoiceDate"`
	DueDate           *time.Time       `json:"dueDate,omitempty"`
	OrderNumber       string           `json:"orderNumber"`
	Salesperson       string           `json:"salesperson"`
	Items             []InvoiceLineDTO `json:"items"`
	Subtotal          decimal.Decimal  `json:"subtotal"`
	Discount          decimal.Decimal  `json:"discount"`
	CGST              decimal.Decimal  `json:"cgst"`
	SGST              decimal.Decimal  `json:"sgst"`
	Tax               decimal.Decimal  `json:"tax"`
	Total             decimal.Decimal  `json:"total"`
	Status            string           `json:"status"`
	PaidAmount        decimal.Decimal  `json:"paidAmount"`
	RemainingBalance  decimal.Decimal  `json:"remainingBalance"`
	PaymentMethod     string           `json:"paymentMethod"`
	PaymentDetails    string           `json:"paymentDetails"`
	SelectedCompanyID string           `json:"selectedCompanyId"`
	UserID            string           `json:"userId"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

func toInvoiceDTO(inv ledger.Invoice) InvoiceDTO {
	items := make([]InvoiceLineDTO, len(inv.Lines))
	for i, l := range inv.Lines {
		items[i] = InvoiceLineDTO{ItemID: l.ItemID, Quantity: l.Quantity, SellingPrice: l.SellingPrice}
	}
	return InvoiceDTO{
		ID:                inv.ID,
		InvoiceNumber:     inv.InvoiceNumber,
		CustomerID:        inv.CustomerID,
		InvoiceDate:       inv.InvoiceDate,
		DueDate:           optionalTime(inv.DueDate),
		OrderNumber:       inv.OrderNumber,
		Salesperson:       inv.Salesperson,
		Items:             items,
		Subtotal:          inv.Subtotal,
		Discount:          inv.Discount,
		CGST:              inv.CGST,
		SGST:              inv.SGST,
		Tax:               inv.Tax,
		Total:             inv.Total,
		Status:            string(inv.Status),
		PaidAmount:        inv.PaidAmount,
		RemainingBalance:  inv.RemainingBalance,
		PaymentMethod:     inv.PaymentMethod,
		PaymentDetails:    inv.PaymentDetails,
		SelectedCompanyID: inv.CompanyID,
		UserID:            inv.UserID,
		CreatedAt:         inv.CreatedAt,
		UpdatedAt:         inv.UpdatedAt,
	}
}

func toInvoiceDTOs(invoices []ledger.Invoice) []InvoiceDTO {
	out := make([]InvoiceDTO, len(invoices))
	for i, inv := range invoices {
		out[i] = toInvoiceDTO(inv)
	}
	return out
}

type PaymentDTO struct {
	ID            string          `json:"_id"`
	InvoiceID     string          `json:"invoiceId"`
	CustomerID    string          `json:"customerId"`
	AmountPaid    decimal.Decimal `json:"amountPaid"`
	PaymentMethod string          `json:"paymentMethod"`
	PaymentDate   time.Time       `json:"paymentDate"`
	TransactionID string          `json:"transactionId"`
	LedgerTxnID   string          `json:"ledgerTxnId"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func toPaymentDTO(p ledger.Payment) PaymentDTO {
	return PaymentDTO{
		ID:            p.ID,
		InvoiceID:     p.InvoiceID,
		CustomerID:    p.CustomerID,
		AmountPaid:    p.Amount,
		PaymentMethod: p.Method,
		PaymentDate:   p.PaymentDate,
		TransactionID: p.TransactionRef,
		LedgerTxnID:   string(p.LedgerTxnID),
		CreatedAt:     p.CreatedAt,
	}
}

// =============================================================================
// PURCHASES
// =============================================================================

type PurchaseLineRequest struct {
	ProductID  string          `json:"productId" validate:"required"`
	Quantity   int64           `json:"quantity" validate:"gt=0"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

type CreatePurchaseRequest struct {
	Identity
	SupplierID          string                `json:"supplierId" validate:"required"`
	SupplierName        string                `json:"supplierName"`
	InvoiceNumber       string                `json:"invoiceNumber" validate:"required"`
	PurchaseOrderNumber string                `json:"purchaseOrderNumber"`
	PurchaseDate        string                `json:"purchaseDate"`
	DueDate             string                `json:"dueDate"`
	Products            []PurchaseLineRequest `json:"products" validate:"required,min=1,dive"`
	Status              string                `json:"status"`
	TotalAmount         decimal.Decimal       `json:"totalAmount"`
}

type UpdatePurchaseRequest struct {
	Identity
	ID                  string                `json:"_id" validate:"required"`
	SupplierID          *string               `json:"supplierId"`
	SupplierName        *string               `json:"supplierName"`
	InvoiceNumber       *string               `json:"invoiceNumber"`
	PurchaseOrderNumber *string               `json:"purchaseOrderNumber"`
	PurchaseDate        *string               `json:"purchaseDate"`
	DueDate             *string               `json:"dueDate"`
	Products            []PurchaseLineRequest `json:"products" validate:"omitempty,dive"`
	Status              *string               `json:"status"`
	TotalAmount         *decimal.Decimal      `json:"totalAmount"`
}

type PurchaseStatusRequest struct {
	Identity
	ID     string `json:"_id" validate:"required"`
	Status string `json:"status" validate:"required"`
}

type PurchaseLineDTO struct {
	ProductID  string          `json:"productId"`
	Quantity   int64           `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

type PurchaseDTO struct {
	ID                  string            `json:"_id"`
	SupplierID          string            `json:"supplierId"`
	SupplierName        string            `json:"supplierName"`
	InvoiceNumber       string            `json:"invoiceNumber"`
	PurchaseOrderNumber string            `json:"purchaseOrderNumber"`
	PurchaseDate        time.Time         `json:"purchaseDate"`
	DueDate             *time.Time        `json:"dueDate,omitempty"`
	Products            []PurchaseLineDTO `json:"products"`
	Status              string            `json:"status"`
	TotalAmount         decimal.Decimal   `json:"totalAmount"`
	SelectedCompanyID   string            `json:"selectedCompanyId"`
	CreatedAt           time.Time         `json:"createdAt"`
	UpdatedAt           time.Time         `json:"updatedAt"`
}

func toPurchaseDTO(p ledger.PurchaseInvoice) PurchaseDTO {
	lines := make([]PurchaseLineDTO, len(p.Lines))
	for i, l := range p.Lines {
		lines[i] = PurchaseLineDTO{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice, TotalPrice: l.TotalPrice}
	}
	return PurchaseDTO{
		ID:                  p.ID,
		SupplierID:          p.SupplierID,
		SupplierName:        p.SupplierName,
		InvoiceNumber:       p.InvoiceNumber,
		PurchaseOrderNumber: p.PurchaseOrderNumber,
		PurchaseDate:        p.PurchaseDate,
		DueDate:             optionalTime(p.DueDate),
		Products:            lines,
		Status:              string(p.Status),
		TotalAmount:         p.TotalAmount,
		SelectedCompanyID:   p.CompanyID,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
}

func toPurchaseLines(in []PurchaseLineRequest) []ledger.PurchaseLine {
	if in == nil {
		return nil
	}
	out := make([]ledger.PurchaseLine, len(in))
	for i, l := range in {
		out[i] = ledger.PurchaseLine{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice, TotalPrice: l.TotalPrice}
	}
	return out
}

// =============================================================================
// EXPENSES
// =============================================================================

type ExpenseRequest struct {
	Identity
	ID        string          `json:"_id"`
	Date      string          `json:"date"`
	Category  string          `json:"category" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
	Notes     string          `json:"notes"`
}

type ExpenseDTO struct {
	ID        string          `json:"_id"`
	Date      time.Time       `json:"date"`
	Category  string          `json:"category"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
	Notes     string          `json:"notes"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func toExpenseDTO(e sqlite.Expense) ExpenseDTO {
	return ExpenseDTO{
		ID:        e.ID,
		Date:      e.Date,
		Category:  e.Category,
		Amount:    e.Amount,
		Reference: e.Reference,
		Notes:     e.Notes,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

type ExpenseCategoryRequest struct {
	Identity
	Name string `json:"name" validate:"required"`
}

type ExpenseCategoryDTO struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// =============================================================================
// LEDGER
// =============================================================================

type LedgerEntryRequest struct {
	Identity
	Type       string          `json:"type" validate:"omitempty,oneof=payment invoice credit_note opening_balance"`
	Amount     decimal.Decimal `json:"amount"`
	Mode       string          `json:"mode" validate:"omitempty,oneof=cash cheque rtgs neft upi other"`
	Reference  string          `json:"reference"`
	InvoiceRef string          `json:"invoiceRef"`
	Date       string          `json:"date"`
}

type ReverseRequest struct {
	Identity
	TransactionID string `json:"transactionId" validate:"required"`
	Reference     string `json:"reference"`
}

type DocumentSummaryDTO struct {
	ID      string          `json:"_id"`
	Number  string          `json:"invoiceNumber"`
	Date    time.Time       `json:"date"`
	DueDate *time.Time      `json:"dueDate,omitempty"`
	Total   decimal.Decimal `json:"total"`
	Status  string          `json:"status"`
}

type TransactionDTO struct {
	ID                string              `json:"_id"`
	CustomerID        string              `json:"customerId,omitempty"`
	SupplierID        string              `json:"vendor,omitempty"`
	Date              time.Time           `json:"date"`
	Type              string              `json:"type"`
	Amount            decimal.Decimal     `json:"amount"`
	Mode              string              `json:"mode,omitempty"`
	Reference         string              `json:"reference"`
	InvoiceRef        string              `json:"invoiceRef,omitempty"`
	BalanceAfter      decimal.Decimal     `json:"balanceAfter"`
	BalanceDisplay    string              `json:"balanceDisplay"`
	Reversed          bool                `json:"reversed"`
	ReversalTxnID     string              `json:"reversalTxnId,omitempty"`
	OriginalTxnID     string              `json:"originalTxnId,omitempty"`
	SelectedCompanyID string              `json:"selectedCompanyId"`
	UserID            string              `json:"userId"`
	CreatedAt         time.Time           `json:"createdAt"`
	InvoiceDetails    *DocumentSummaryDTO `json:"invoiceDetails"`
}

func toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:                string(tx.ID),
		Date:              tx.Date,
		Type:              string(tx.Type),
		Amount:            tx.Amount,
		Mode:              string(tx.Mode),
		Reference:         tx.Reference,
		InvoiceRef:        tx.InvoiceRef,
		BalanceAfter:      tx.BalanceAfter,
		BalanceDisplay:    ledger.BalanceDisplay(tx.BalanceAfter),
		Reversed:          tx.Reversed,
		ReversalTxnID:     string(tx.ReversalTxnID),
		OriginalTxnID:     string(tx.OriginalTxnID),
		SelectedCompanyID: tx.CompanyID,
		UserID:            tx.UserID,
		CreatedAt:         tx.CreatedAt,
	}
	if tx.AccountKind == ledger.AccountSupplier {
		dto.SupplierID = tx.AccountID
	} else {
		dto.CustomerID = tx.AccountID
	}
	return dto
}

func toStatementDTOs(st *ledger.Statement) []TransactionDTO {
	out := make([]TransactionDTO, len(st.Lines))
	for i, line := range st.Lines {
		dto := toTransactionDTO(line.Transaction)
		dto.BalanceDisplay = line.BalanceDisplay
		if d := line.Document; d != nil {
			dto.InvoiceDetails = &DocumentSummaryDTO{
				ID:      d.ID,
				Number:  d.Number,
				Date:    d.Date,
				DueDate: optionalTime(d.DueDate),
				Total:   d.Total,
				Status:  d.Status,
			}
		}
		out[i] = dto
	}
	return out
}

// =============================================================================
// REPORTS
// =============================================================================

type OverdueInvoiceDTO struct {
	ID            string          `json:"_id"`
	InvoiceNumber int64           `json:"invoiceNumber"`
	Total         decimal.Decimal `json:"total"`
	DueAmount     decimal.Decimal `json:"dueAmount"`
	DueDate       time.Time       `json:"dueDate"`
	DaysOverdue   int             `json:"daysOverdue"`
}

type OverdueCustomerDTO struct {
	CustomerID string              `json:"customerId"`
	FullName   string              `json:"fullName"`
	Email      string              `json:"email"`
	Phone      string              `json:"phone"`
	City       string              `json:"city"`
	TotalDue   decimal.Decimal     `json:"totalDue"`
	Invoices   []OverdueInvoiceDTO `json:"invoices"`
}

func toOverdueDTOs(in []ledger.OverdueCustomer) []OverdueCustomerDTO {
	out := make([]OverdueCustomerDTO, len(in))
	for i, c := range in {
		invoices := make([]OverdueInvoiceDTO, len(c.Invoices))
		for j, inv := range c.Invoices {
			invoices[j] = OverdueInvoiceDTO{
				ID:            inv.InvoiceID,
				InvoiceNumber: inv.InvoiceNumber,
				Total:         inv.Total,
				DueAmount:     inv.DueAmount,
				DueDate:       inv.DueDate,
				DaysOverdue:   inv.DaysOverdue,
			}
		}
		out[i] = OverdueCustomerDTO{
			CustomerID: c.CustomerID,
			FullName:   c.Name,
			Email:      c.Email,
			Phone:      c.Phone,
			City:       c.City,
			TotalDue:   c.TotalDue,
			Invoices:   invoices,
		}
	}
	return out
}

type DailyCollectionDTO struct {
	Date           string          `json:"_id"`
	TotalCollected decimal.Decimal `json:"totalCollected"`
}

type QuickInfoDTO struct {
	Filter                 string               `json:"filter"`
	NumInvoices            int                  `json:"numInvoices"`
	TotalInvoiceAmount     decimal.Decimal      `json:"totalInvoiceAmount"`
	TotalPaymentsCollected decimal.Decimal      `json:"totalPaymentsCollected"`
	Last7DaysCollections   []DailyCollectionDTO `json:"last7DaysCollections"`
	NumPendingInvoices     int                  `json:"numPendingInvoices"`
}

func toQuickInfoDTO(q *ledger.QuickInfo) QuickInfoDTO {
	days := make([]DailyCollectionDTO, len(q.Last7DaysCollected))
	for i, d := range q.Last7DaysCollected {
		days[i] = DailyCollectionDTO{Date: d.Date, TotalCollected: d.Amount}
	}
	return QuickInfoDTO{
		Filter:                 string(q.Range),
		NumInvoices:            q.InvoiceCount,
		TotalInvoiceAmount:     q.InvoiceTotal,
		TotalPaymentsCollected: q.PaymentsCollected,
		Last7DaysCollections:   days,
		NumPendingInvoices:     q.PendingInvoices,
	}
}

type BalanceDriftDTO struct {
	AccountKind string          `json:"accountKind"`
	AccountID   string          `json:"accountId"`
	CompanyID   string          `json:"selectedCompanyId"`
	Name        string          `json:"name"`
	Cached      decimal.Decimal `json:"cachedBalance"`
	Replayed    decimal.Decimal `json:"ledgerBalance"`
	Difference  decimal.Decimal `json:"difference"`
}

func toDriftDTOs(in []ledger.BalanceDrift) []BalanceDriftDTO {
	out := make([]BalanceDriftDTO, len(in))
	for i, d := range in {
		out[i] = BalanceDriftDTO{
			AccountKind: string(d.AccountKind),
			AccountID:   d.AccountID,
			CompanyID:   d.CompanyID,
			Name:        d.Name,
			Cached:      d.Cached,
			Replayed:    d.Replayed,
			Difference:  d.Difference(),
		}
	}
	return out
}

// =============================================================================
// DELIVERY
// =============================================================================

type UploadRequest struct {
	FileName string `json:"fileName" validate:"required"`
	FileType string `json:"fileType" validate:"required"`
}

type DeliveryRequest struct {
	Identity
	InvoiceID string `json:"invoiceId" validate:"required"`
	// To overrides the customer's email address.
	To string `json:"to" validate:"omitempty,email"`
}

// =============================================================================
// HELPERS
// =============================================================================

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
