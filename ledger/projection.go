/*
projection.go - Read-only balance projections

PURPOSE:
  Derives the reporting views from ledger entries and invoices. Nothing in
  this file writes. A document referenced by a report but missing (a
  customer deleted after invoicing, an invoice deleted after its ledger
  entry) is left out of the report instead of failing it.

VIEWS:
  OverdueCustomers  unpaid/partial invoices past due, grouped by customer,
                    joined with the customer's replayed ledger balance
  QuickInfo         invoices and collections for today / last 7 days
  Statement         one account's ledger page with display balances
  VerifyBalances    accounts whose cached balance differs from the replay
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

type Projection struct {
	Store Store
	Clock Clock
}

func NewProjection(store Store) *Projection {
	return &Projection{Store: store, Clock: SystemClock{}}
}

// =============================================================================
// OVERDUE CUSTOMERS
// =============================================================================

type OverdueInvoice struct {
	InvoiceID     string
	InvoiceNumber int64
	Total         decimal.Decimal
	DueAmount     decimal.Decimal
	DueDate       time.Time
	DaysOverdue   int
}

type OverdueCustomer struct {
	CustomerID string
	Name       string
	Email      string
	Phone      string
	City       string
	TotalDue   decimal.Decimal
	Invoices   []OverdueInvoice
}

// OverdueCustomers lists customers with past-due invoices and a positive
// ledger balance.
func (p *Projection) OverdueCustomers(ctx context.Context, companyID string) ([]OverdueCustomer, error) {
	if companyID == "" {
		return nil, invalid("selectedCompanyId", "is required")
	}
	now := p.Clock.Now()
	log := zerolog.Ctx(ctx)

	invoices, err := p.Store.ListInvoices(ctx, InvoiceFilter{
		CompanyID: companyID,
		Statuses:  []InvoiceStatus{InvoiceUnpaid, InvoicePartial},
		DueBefore: now,
	})
	if err != nil {
		return nil, fmt.Errorf("list overdue invoices: %w", err)
	}

	var order []string
	grouped := make(map[string][]Invoice)
	for _, inv := range invoices {
		if _, ok := grouped[inv.CustomerID]; !ok {
			order = append(order, inv.CustomerID)
		}
		grouped[inv.CustomerID] = append(grouped[inv.CustomerID], inv)
	}

	out := make([]OverdueCustomer, 0, len(order))
	for _, customerID := range order {
		acct, err := p.Store.GetAccount(ctx, AccountCustomer, customerID)
		if err != nil {
			return nil, fmt.Errorf("load customer: %w", err)
		}
		if acct == nil {
			log.Debug().Str("customer_id", customerID).Msg("overdue invoices reference a missing customer")
			continue
		}

		txs, err := p.Store.ListTransactions(ctx, TransactionFilter{
			AccountKind: AccountCustomer,
			AccountID:   acct.ID,
			CompanyID:   companyID,
		})
		if err != nil {
			return nil, fmt.Errorf("list transactions: %w", err)
		}
		balance := Replay(acct.OpeningBalance, txs)
		if !balance.IsPositive() {
			continue
		}

		var overdue []OverdueInvoice
		for _, inv := range grouped[customerID] {
			due := inv.Total.Sub(inv.PaidAmount)
			if !due.IsPositive() {
				continue
			}
			overdue = append(overdue, OverdueInvoice{
				InvoiceID:     inv.ID,
				InvoiceNumber: inv.InvoiceNumber,
				Total:         inv.Total,
				DueAmount:     due,
				DueDate:       inv.DueDate,
				DaysOverdue:   DaysBetween(inv.DueDate, now),
			})
		}
		if len(overdue) == 0 {
			continue
		}
		sort.SliceStable(overdue, func(i, j int) bool {
			return overdue[i].DaysOverdue < overdue[j].DaysOverdue
		})

		out = append(out, OverdueCustomer{
			CustomerID: acct.ID,
			Name:       acct.Name,
			Email:      acct.Email,
			Phone:      acct.Phone,
			City:       acct.City,
			TotalDue:   balance,
			Invoices:   overdue,
		})
	}
	return out, nil
}

// =============================================================================
// QUICK INFO
// =============================================================================

type QuickInfoRange string

const (
	RangeToday     QuickInfoRange = "today"
	RangeLast7Days QuickInfoRange = "last7days"
)

type QuickInfoInput struct {
	UserID    string
	CompanyID string
	Range     QuickInfoRange
}

type DailyCollection struct {
	Date   string
	Amount decimal.Decimal
}

type QuickInfo struct {
	Range              QuickInfoRange
	InvoiceCount       int
	InvoiceTotal       decimal.Decimal
	PaymentsCollected  decimal.Decimal
	Last7DaysCollected []DailyCollection
	PendingInvoices    int
}

// QuickInfo summarizes invoicing and collections for a dashboard.
func (p *Projection) QuickInfo(ctx context.Context, in QuickInfoInput) (*QuickInfo, error) {
	if in.CompanyID == "" {
		return nil, invalid("selectedCompanyId", "is required")
	}
	if in.Range == "" {
		in.Range = RangeToday
	}
	if in.Range != RangeToday && in.Range != RangeLast7Days {
		return nil, invalid("filter", "must be today or last7days")
	}

	today := StartOfDay(p.Clock.Now())
	tomorrow := today.AddDate(0, 0, 1)
	weekStart := today.AddDate(0, 0, -7)
	from := today
	if in.Range == RangeLast7Days {
		from = weekStart
	}

	invoices, err := p.Store.ListInvoices(ctx, InvoiceFilter{
		CompanyID:   in.CompanyID,
		UserID:      in.UserID,
		CreatedFrom: from,
		CreatedTo:   tomorrow,
	})
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	info := &QuickInfo{
		Range:             in.Range,
		InvoiceCount:      len(invoices),
		InvoiceTotal:      decimal.Zero,
		PaymentsCollected: decimal.Zero,
	}
	for _, inv := range invoices {
		info.InvoiceTotal = info.InvoiceTotal.Add(inv.Total)
	}

	payments, err := p.Store.ListTransactions(ctx, TransactionFilter{
		AccountKind: AccountCustomer,
		CompanyID:   in.CompanyID,
		UserID:      in.UserID,
		Types:       []TransactionType{TxPayment},
		From:        weekStart,
		To:          tomorrow,
	})
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	daily := make(map[string]decimal.Decimal)
	for _, tx := range payments {
		if tx.Reversed {
			continue
		}
		if !tx.CreatedAt.Before(from) {
			info.PaymentsCollected = info.PaymentsCollected.Add(tx.Amount)
		}
		key := DateKey(tx.CreatedAt)
		daily[key] = daily[key].Add(tx.Amount)
	}
	for key, amount := range daily {
		info.Last7DaysCollected = append(info.Last7DaysCollected, DailyCollection{Date: key, Amount: amount})
	}
	sort.Slice(info.Last7DaysCollected, func(i, j int) bool {
		return info.Last7DaysCollected[i].Date < info.Last7DaysCollected[j].Date
	})

	pending, err := p.Store.CountInvoices(ctx, InvoiceFilter{
		CompanyID: in.CompanyID,
		UserID:    in.UserID,
		Statuses:  []InvoiceStatus{InvoiceUnpaid},
	})
	if err != nil {
		return nil, fmt.Errorf("count pending invoices: %w", err)
	}
	info.PendingInvoices = pending
	return info, nil
}

// =============================================================================
// STATEMENT
// =============================================================================

type StatementInput struct {
	AccountKind AccountKind
	AccountID   string
	CompanyID   string
	Page        int
	Limit       int
}

// DocumentSummary is the invoice or purchase a ledger line points at.
type DocumentSummary struct {
	ID      string
	Number  string
	Date    time.Time
	DueDate time.Time
	Total   decimal.Decimal
	Status  string
}

type StatementLine struct {
	Transaction    Transaction
	BalanceDisplay string
	Document       *DocumentSummary
}

type Statement struct {
	Account        Account
	Lines          []StatementLine
	Page           int
	Limit          int
	Total          int
	TotalPages     int
	BalanceDisplay string
}

const (
	DefaultPage  = 1
	DefaultLimit = 25
)

// Statement returns one page of an account's ledger, oldest first.
func (p *Projection) Statement(ctx context.Context, in StatementInput) (*Statement, error) {
	if in.AccountID == "" {
		return nil, invalid("id", "is required")
	}
	if in.CompanyID == "" {
		return nil, invalid("selectedCompanyId", "is required")
	}
	if in.Page < 1 {
		in.Page = DefaultPage
	}
	if in.Limit < 1 {
		in.Limit = DefaultLimit
	}

	acct, err := p.Store.GetAccount(ctx, in.AccountKind, in.AccountID)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", in.AccountKind, err)
	}
	if acct == nil || acct.CompanyID != in.CompanyID {
		return nil, notFound(string(in.AccountKind), in.AccountID)
	}

	filter := TransactionFilter{AccountKind: acct.Kind, AccountID: acct.ID, CompanyID: acct.CompanyID}
	total, err := p.Store.CountTransactions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count transactions: %w", err)
	}
	filter.Offset = (in.Page - 1) * in.Limit
	filter.Limit = in.Limit
	txs, err := p.Store.ListTransactions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	st := &Statement{
		Account:        *acct,
		Page:           in.Page,
		Limit:          in.Limit,
		Total:          total,
		TotalPages:     (total + in.Limit - 1) / in.Limit,
		BalanceDisplay: BalanceDisplay(acct.CurrentBalance),
		Lines:          make([]StatementLine, 0, len(txs)),
	}
	for _, tx := range txs {
		doc, err := p.document(ctx, acct.Kind, tx.InvoiceRef)
		if err != nil {
			return nil, err
		}
		st.Lines = append(st.Lines, StatementLine{
			Transaction:    tx,
			BalanceDisplay: BalanceDisplay(tx.BalanceAfter),
			Document:       doc,
		})
	}
	return st, nil
}

func (p *Projection) document(ctx context.Context, kind AccountKind, ref string) (*DocumentSummary, error) {
	if ref == "" {
		return nil, nil
	}
	if kind == AccountSupplier {
		pur, err := p.Store.GetPurchase(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("load purchase invoice: %w", err)
		}
		if pur == nil {
			return nil, nil
		}
		return &DocumentSummary{
			ID:      pur.ID,
			Number:  pur.InvoiceNumber,
			Date:    pur.PurchaseDate,
			DueDate: pur.DueDate,
			Total:   pur.TotalAmount,
			Status:  string(pur.Status),
		}, nil
	}
	inv, err := p.Store.GetInvoice(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("load invoice: %w", err)
	}
	if inv == nil {
		return nil, nil
	}
	return &DocumentSummary{
		ID:      inv.ID,
		Number:  fmt.Sprintf("%d", inv.InvoiceNumber),
		Date:    inv.InvoiceDate,
		DueDate: inv.DueDate,
		Total:   inv.Total,
		Status:  string(inv.Status),
	}, nil
}

// =============================================================================
// RECENT INVOICES
// =============================================================================

func (p *Projection) RecentInvoices(ctx context.Context, userID, companyID string, limit int) ([]Invoice, error) {
	if companyID == "" {
		return nil, invalid("selectedCompanyId", "is required")
	}
	if limit < 1 {
		limit = 5
	}
	invoices, err := p.Store.ListInvoices(ctx, InvoiceFilter{
		CompanyID:   companyID,
		UserID:      userID,
		NewestFirst: true,
		Limit:       limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list recent invoices: %w", err)
	}
	return invoices, nil
}

// =============================================================================
// DRIFT VERIFICATION
// =============================================================================

type BalanceDrift struct {
	AccountKind AccountKind
	AccountID   string
	CompanyID   string
	Name        string
	Cached      decimal.Decimal
	Replayed    decimal.Decimal
}

func (d BalanceDrift) Difference() decimal.Decimal {
	return d.Cached.Sub(d.Replayed)
}

// VerifyBalances replays every account of a company (all companies when
// companyID is empty) and reports cached balances that disagree.
func (p *Projection) VerifyBalances(ctx context.Context, companyID string) ([]BalanceDrift, error) {
	var drifts []BalanceDrift
	for _, kind := range []AccountKind{AccountCustomer, AccountSupplier} {
		accounts, err := p.Store.ListAccounts(ctx, kind, companyID)
		if err != nil {
			return nil, fmt.Errorf("list %s accounts: %w", kind, err)
		}
		for _, acct := range accounts {
			txs, err := p.Store.ListTransactions(ctx, TransactionFilter{
				AccountKind: kind,
				AccountID:   acct.ID,
				CompanyID:   acct.CompanyID,
			})
			if err != nil {
				return nil, fmt.Errorf("list transactions: %w", err)
			}
			replayed := Replay(acct.OpeningBalance, txs)
			if replayed.Equal(acct.CurrentBalance) {
				continue
			}
			drifts = append(drifts, BalanceDrift{
				AccountKind: kind,
				AccountID:   acct.ID,
				CompanyID:   acct.CompanyID,
				Name:        acct.Name,
				Cached:      acct.CurrentBalance,
				Replayed:    replayed,
			})
		}
	}
	return drifts, nil
}
