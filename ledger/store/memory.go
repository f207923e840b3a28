// Package store provides ledger.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps everything in maps. WithTx serializes units and restores a
// snapshot when the unit fails. Writes made outside a unit wait for the
// running unit to finish, so a rollback only discards the unit's own writes.
type Memory struct {
	*memCore
	unit bool
}

type memCore struct {
	txMu  sync.Mutex
	mu    sync.RWMutex
	state *memState
}

type accountKey struct {
	Kind ledger.AccountKind
	ID   string
}

type counterKey struct {
	UserID    string
	CompanyID string
}

type memState struct {
	accounts     map[accountKey]ledger.Account
	transactions []ledger.Transaction
	seq          int64
	items        map[string]ledger.Item
	invoices     map[string]ledger.Invoice
	purchases    map[string]ledger.PurchaseInvoice
	payments     map[string]ledger.Payment
	counters     map[counterKey]int64
}

func newState() *memState {
	return &memState{
		accounts:  make(map[accountKey]ledger.Account),
		items:     make(map[string]ledger.Item),
		invoices:  make(map[string]ledger.Invoice),
		purchases: make(map[string]ledger.PurchaseInvoice),
		payments:  make(map[string]ledger.Payment),
		counters:  make(map[counterKey]int64),
	}
}

func (s *memState) clone() *memState {
	c := newState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	c.transactions = append([]ledger.Transaction(nil), s.transactions...)
	c.seq = s.seq
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.invoices {
		c.invoices[k] = v
	}
	for k, v := range s.purchases {
		c.purchases[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.counters {
		c.counters[k] = v
	}
	return c
}

func NewMemory() *Memory {
	return &Memory{memCore: &memCore{state: newState()}}
}

// WithTx runs fn as one unit. A unit nested in another joins it.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	if m.unit {
		return fn(m)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	snapshot := m.state.clone()
	m.mu.RUnlock()

	if err := fn(&Memory{memCore: m.memCore, unit: true}); err != nil {
		m.mu.Lock()
		m.state = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// lockWrite takes the write lock and returns its release. Outside a unit it
// also holds txMu for the duration of the write.
func (m *Memory) lockWrite() func() {
	if !m.unit {
		m.txMu.Lock()
	}
	m.mu.Lock()
	return func() {
		m.mu.Unlock()
		if !m.unit {
			m.txMu.Unlock()
		}
	}
}

// =============================================================================
// SEEDING (tests and dev only)
// =============================================================================

func (m *Memory) SaveAccount(acct ledger.Account) {
	defer m.lockWrite()()
	if acct.BalanceType == "" {
		acct.BalanceType = ledger.BalanceTypeFor(acct.CurrentBalance)
	}
	m.state.accounts[accountKey{acct.Kind, acct.ID}] = acct
}

func (m *Memory) DeleteAccount(kind ledger.AccountKind, id string) {
	defer m.lockWrite()()
	delete(m.state.accounts, accountKey{kind, id})
}

func (m *Memory) SaveItem(item ledger.Item) {
	defer m.lockWrite()()
	m.state.items[item.ID] = item
}

func (m *Memory) DeleteItem(id string) {
	defer m.lockWrite()()
	delete(m.state.items, id)
}

// Payments returns every stored payment.
func (m *Memory) Payments() []ledger.Payment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.Payment, 0, len(m.state.payments))
	for _, p := range m.state.payments {
		out = append(out, p)
	}
	return out
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (m *Memory) GetAccount(_ context.Context, kind ledger.AccountKind, id string) (*ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acct, ok := m.state.accounts[accountKey{kind, id}]
	if !ok {
		return nil, nil
	}
	return &acct, nil
}

func (m *Memory) ListAccounts(_ context.Context, kind ledger.AccountKind, companyID string) ([]ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.Account
	for k, acct := range m.state.accounts {
		if k.Kind != kind || (companyID != "" && acct.CompanyID != companyID) {
			continue
		}
		out = append(out, acct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SetAccountBalance(_ context.Context, kind ledger.AccountKind, id string, balance decimal.Decimal, bt ledger.BalanceType) error {
	defer m.lockWrite()()
	k := accountKey{kind, id}
	acct, ok := m.state.accounts[k]
	if !ok {
		return ledger.ErrNotFound
	}
	acct.CurrentBalance = balance
	acct.BalanceType = bt
	m.state.accounts[k] = acct
	return nil
}

func (m *Memory) SetOpeningBalance(_ context.Context, kind ledger.AccountKind, id string, opening decimal.Decimal) error {
	defer m.lockWrite()()
	k := accountKey{kind, id}
	acct, ok := m.state.accounts[k]
	if !ok {
		return ledger.ErrNotFound
	}
	acct.OpeningBalance = opening
	m.state.accounts[k] = acct
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (m *Memory) AppendTransaction(_ context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	defer m.lockWrite()()
	m.state.seq++
	tx.Seq = m.state.seq
	m.state.transactions = append(m.state.transactions, tx)
	return tx, nil
}

func (m *Memory) indexOf(id ledger.TransactionID) int {
	for i, tx := range m.state.transactions {
		if tx.ID == id {
			return i
		}
	}
	return -1
}

func (m *Memory) GetTransaction(_ context.Context, id ledger.TransactionID) (*ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := m.indexOf(id)
	if i < 0 {
		return nil, nil
	}
	tx := m.state.transactions[i]
	return &tx, nil
}

func (m *Memory) LatestTransaction(_ context.Context, kind ledger.AccountKind, accountID, companyID string) (*ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.state.transactions) - 1; i >= 0; i-- {
		tx := m.state.transactions[i]
		if tx.AccountKind == kind && tx.AccountID == accountID && tx.CompanyID == companyID {
			return &tx, nil
		}
	}
	return nil, nil
}

func (m *Memory) FindDocumentTransaction(_ context.Context, kind ledger.AccountKind, ref string, txType ledger.TransactionType) (*ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.state.transactions) - 1; i >= 0; i-- {
		tx := m.state.transactions[i]
		if tx.Document && tx.AccountKind == kind && tx.InvoiceRef == ref && tx.Type == txType {
			return &tx, nil
		}
	}
	return nil, nil
}

func (m *Memory) MarkReversed(_ context.Context, id, reversalID ledger.TransactionID) error {
	defer m.lockWrite()()
	i := m.indexOf(id)
	if i < 0 {
		return ledger.ErrNotFound
	}
	m.state.transactions[i].Reversed = true
	m.state.transactions[i].ReversalTxnID = reversalID
	return nil
}

func (m *Memory) ClearReversal(_ context.Context, id ledger.TransactionID) error {
	defer m.lockWrite()()
	i := m.indexOf(id)
	if i < 0 {
		return ledger.ErrNotFound
	}
	m.state.transactions[i].Reversed = false
	m.state.transactions[i].ReversalTxnID = ""
	return nil
}

func (m *Memory) DeleteTransaction(_ context.Context, id ledger.TransactionID) error {
	defer m.lockWrite()()
	i := m.indexOf(id)
	if i < 0 {
		return ledger.ErrNotFound
	}
	txs := m.state.transactions
	m.state.transactions = append(txs[:i:i], txs[i+1:]...)
	return nil
}

func matchTransaction(tx ledger.Transaction, f ledger.TransactionFilter) bool {
	if f.AccountKind != "" && tx.AccountKind != f.AccountKind {
		return false
	}
	if f.AccountID != "" && tx.AccountID != f.AccountID {
		return false
	}
	if f.CompanyID != "" && tx.CompanyID != f.CompanyID {
		return false
	}
	if f.UserID != "" && tx.UserID != f.UserID {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if tx.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.From.IsZero() && tx.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !tx.CreatedAt.Before(f.To) {
		return false
	}
	return true
}

func (m *Memory) ListTransactions(_ context.Context, f ledger.TransactionFilter) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.Transaction
	for _, tx := range m.state.transactions {
		if matchTransaction(tx, f) {
			out = append(out, tx)
		}
	}
	return page(out, f.Offset, f.Limit), nil
}

func (m *Memory) CountTransactions(_ context.Context, f ledger.TransactionFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, tx := range m.state.transactions {
		if matchTransaction(tx, f) {
			n++
		}
	}
	return n, nil
}

// =============================================================================
// INVENTORY
// =============================================================================

func (m *Memory) GetItem(_ context.Context, id string) (*ledger.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.state.items[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (m *Memory) SetItemStock(_ context.Context, id string, quantity, purchaseQuantity int64) error {
	defer m.lockWrite()()
	item, ok := m.state.items[id]
	if !ok {
		return ledger.ErrNotFound
	}
	item.Quantity = quantity
	item.PurchaseQuantity = purchaseQuantity
	m.state.items[id] = item
	return nil
}

// =============================================================================
// DOCUMENTS
// =============================================================================

func (m *Memory) CreateInvoice(_ context.Context, inv ledger.Invoice) error {
	defer m.lockWrite()()
	for _, other := range m.state.invoices {
		if other.CompanyID == inv.CompanyID && other.UserID == inv.UserID && other.InvoiceNumber == inv.InvoiceNumber {
			return ledger.ErrConflict
		}
	}
	m.state.invoices[inv.ID] = inv
	return nil
}

func (m *Memory) GetInvoice(_ context.Context, id string) (*ledger.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.state.invoices[id]
	if !ok {
		return nil, nil
	}
	return &inv, nil
}

func (m *Memory) UpdateInvoice(_ context.Context, inv ledger.Invoice) error {
	defer m.lockWrite()()
	if _, ok := m.state.invoices[inv.ID]; !ok {
		return ledger.ErrNotFound
	}
	m.state.invoices[inv.ID] = inv
	return nil
}

func (m *Memory) DeleteInvoice(_ context.Context, id string) error {
	defer m.lockWrite()()
	delete(m.state.invoices, id)
	return nil
}

func matchInvoice(inv ledger.Invoice, f ledger.InvoiceFilter) bool {
	if f.CompanyID != "" && inv.CompanyID != f.CompanyID {
		return false
	}
	if f.UserID != "" && inv.UserID != f.UserID {
		return false
	}
	if f.CustomerID != "" && inv.CustomerID != f.CustomerID {
		return false
	}
	if f.InvoiceNumber != 0 && inv.InvoiceNumber != f.InvoiceNumber {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if inv.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.DueBefore.IsZero() && !inv.DueDate.Before(f.DueBefore) {
		return false
	}
	if !f.CreatedFrom.IsZero() && inv.CreatedAt.Before(f.CreatedFrom) {
		return false
	}
	if !f.CreatedTo.IsZero() && !inv.CreatedAt.Before(f.CreatedTo) {
		return false
	}
	return true
}

func (m *Memory) filterInvoices(f ledger.InvoiceFilter) []ledger.Invoice {
	var out []ledger.Invoice
	for _, inv := range m.state.invoices {
		if matchInvoice(inv, f) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if f.NewestFirst {
			if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].CreatedAt.After(out[j].CreatedAt)
			}
			return out[i].InvoiceNumber > out[j].InvoiceNumber
		}
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].InvoiceNumber < out[j].InvoiceNumber
	})
	return out
}

func (m *Memory) ListInvoices(_ context.Context, f ledger.InvoiceFilter) ([]ledger.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return page(m.filterInvoices(f), f.Offset, f.Limit), nil
}

func (m *Memory) CountInvoices(_ context.Context, f ledger.InvoiceFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.filterInvoices(f)), nil
}

func (m *Memory) CreatePurchase(_ context.Context, p ledger.PurchaseInvoice) error {
	defer m.lockWrite()()
	m.state.purchases[p.ID] = p
	return nil
}

func (m *Memory) GetPurchase(_ context.Context, id string) (*ledger.PurchaseInvoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.state.purchases[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) UpdatePurchase(_ context.Context, p ledger.PurchaseInvoice) error {
	defer m.lockWrite()()
	if _, ok := m.state.purchases[p.ID]; !ok {
		return ledger.ErrNotFound
	}
	m.state.purchases[p.ID] = p
	return nil
}

func (m *Memory) DeletePurchase(_ context.Context, id string) error {
	defer m.lockWrite()()
	delete(m.state.purchases, id)
	return nil
}

func (m *Memory) CreatePayment(_ context.Context, p ledger.Payment) error {
	defer m.lockWrite()()
	m.state.payments[p.ID] = p
	return nil
}

// =============================================================================
// SEQUENCES
// =============================================================================

func (m *Memory) NextSequence(_ context.Context, userID, companyID string) (int64, error) {
	defer m.lockWrite()()
	k := counterKey{userID, companyID}
	m.state.counters[k]++
	return m.state.counters[k], nil
}

func (m *Memory) CurrentSequence(_ context.Context, userID, companyID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.counters[counterKey{userID, companyID}], nil
}

func page[T any](in []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(in) {
			return nil
		}
		in = in[offset:]
	}
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}
