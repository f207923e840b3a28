/*
balance.go - Signed amounts and balance replay

PURPOSE:
  The running balance cached on an account is a projection of its ledger.
  These helpers define that projection so the ledger, reports and the drift
  verifier all compute it the same way.

TWO EQUIVALENT REPLAYS:
  Replay:        opening + Σ signed(t) over every row, reversal rows included
                 (a reversal row carries the inverse sign of its original).
  ActiveBalance: opening + Σ signed(t) over rows that are neither reversed
                 nor reversals.
  For a consistent ledger both return the same value.
*/
package ledger

import (
	"github.com/shopspring/decimal"
)

// SignedAmount returns the effect of an entry of type t and magnitude amount
// on the running balance.
func SignedAmount(t TransactionType, amount decimal.Decimal) decimal.Decimal {
	if t.IsReversal() {
		return SignedAmount(t.Base(), amount).Neg()
	}
	switch t {
	case TxPayment, TxCreditNote:
		return amount.Neg()
	default:
		return amount
	}
}

// BalanceTypeFor is credit for balances >= 0 and debit otherwise.
func BalanceTypeFor(balance decimal.Decimal) BalanceType {
	if balance.IsNegative() {
		return BalanceDebit
	}
	return BalanceCredit
}

// BalanceDisplay renders a balance the way statements show it: the absolute
// value with two decimals followed by Cr or Dr.
func BalanceDisplay(balance decimal.Decimal) string {
	suffix := " Cr"
	if balance.IsNegative() {
		suffix = " Dr"
	}
	return balance.Abs().StringFixed(2) + suffix
}

// Replay folds every entry onto the opening balance.
func Replay(opening decimal.Decimal, txs []Transaction) decimal.Decimal {
	balance := opening
	for _, tx := range txs {
		balance = balance.Add(SignedAmount(tx.Type, tx.Amount))
	}
	return balance
}

// ActiveBalance folds only entries that still stand on their own.
func ActiveBalance(opening decimal.Decimal, txs []Transaction) decimal.Decimal {
	balance := opening
	for _, tx := range txs {
		if tx.Active() {
			balance = balance.Add(SignedAmount(tx.Type, tx.Amount))
		}
	}
	return balance
}
