package document

import (
	"fmt"

	"github.com/warp/billing-engine/ledger"
	"github.com/xuri/excelize/v2"
)

const statementSheet = "Ledger"

var statementHeadings = []string{
	"Date", "Type", "Reference", "Invoice", "Mode", "Debit", "Credit", "Balance", "Status",
}

// StatementXLSX writes one statement page as a spreadsheet. Debits are
// entries that raise the balance, credits lower it.
func StatementXLSX(st *ledger.Statement) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", statementSheet); err != nil {
		return nil, fmt.Errorf("statement sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("statement style: %w", err)
	}

	set := func(col, row int, v any) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(statementSheet, cell, v)
	}

	// Rows 1-2: account summary.
	if err := set(1, 1, st.Account.Name); err != nil {
		return nil, err
	}
	if err := set(2, 1, "Balance"); err != nil {
		return nil, err
	}
	if err := set(3, 1, st.BalanceDisplay); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(statementSheet, "A1", "A1", bold); err != nil {
		return nil, err
	}

	const headRow = 3
	for i, h := range statementHeadings {
		if err := set(i+1, headRow, h); err != nil {
			return nil, err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(statementHeadings), headRow)
	if err := f.SetCellStyle(statementSheet, "A3", last, bold); err != nil {
		return nil, err
	}

	for i, line := range st.Lines {
		tx := line.Transaction
		signed := ledger.SignedAmount(tx.Type, tx.Amount)
		var debit, credit any
		if signed.IsNegative() {
			credit = signed.Abs().InexactFloat64()
		} else {
			debit = signed.InexactFloat64()
		}
		status := "active"
		switch {
		case tx.Type.IsReversal():
			status = "reversal"
		case tx.Reversed:
			status = "reversed"
		}
		invoice := ""
		if line.Document != nil {
			invoice = line.Document.Number
		}

		row := headRow + 1 + i
		values := []any{
			tx.Date.Format("2006-01-02"),
			string(tx.Type),
			tx.Reference,
			invoice,
			string(tx.Mode),
			debit,
			credit,
			line.BalanceDisplay,
			status,
		}
		for col, v := range values {
			if v == nil {
				continue
			}
			if err := set(col+1, row, v); err != nil {
				return nil, err
			}
		}
	}

	if err := f.SetColWidth(statementSheet, "A", "I", 16); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write statement: %w", err)
	}
	return buf.Bytes(), nil
}
