package utils

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/username/smartledger/backend/src/models"
	"github.com/username/smartledger/backend/src/security/validation"
)

var expenseCSVHeader = []string{
	"id", "date", "item", "amount", "payment_method", "category",
	"transactionType", "merchant", "notes", "invoice_number", "member",
}

// ExpensesToCSV renders expense records as CSV for download. Text fields are
// sanitized against spreadsheet formula injection.
func ExpensesToCSV(records []map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(expenseCSVHeader); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, rec := range records {
		row := make([]string, len(expenseCSVHeader))
		for i, field := range expenseCSVHeader {
			row[i] = csvField(rec[field])
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}

func csvField(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return validation.SanitizeForFormulaInjection(validation.StripUnprintable(n))
	case float64:
		if n == float64(int64(n)) {
			return strconv.FormatInt(int64(n), 10)
		}
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return validation.SanitizeForFormulaInjection(fmt.Sprintf("%v", n))
	}
}

// ExpensesFromCSV parses an uploaded expense CSV. The header row decides the
// column layout; unknown columns are ignored. Rows missing a required field
// or carrying a bad date or amount fail the import with a row-numbered error.
func ExpensesFromCSV(r io.Reader) ([]models.Expense, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"date", "item", "amount", "category", "transactionType"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("CSV is missing required column %q", required)
		}
	}

	var expenses []models.Expense
	rowNum := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", rowNum+1, err)
		}
		rowNum++

		cell := func(name string) string {
			idx, ok := col[name]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		dateStr := cell("date")
		if _, err := ParseLedgerDate(dateStr); err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum, err)
		}

		amount, err := strconv.ParseInt(cell("amount"), 10, 64)
		if err != nil || amount < 0 {
			return nil, fmt.Errorf("row %d: invalid amount %q", rowNum, cell("amount"))
		}

		txType := cell("transactionType")
		if txType != models.TransactionTypeExpense && txType != models.TransactionTypeIncome {
			return nil, fmt.Errorf("row %d: invalid transactionType %q", rowNum, txType)
		}

		item := cell("item")
		category := cell("category")
		if item == "" || category == "" {
			return nil, fmt.Errorf("row %d: item and category are required", rowNum)
		}

		expenses = append(expenses, models.Expense{
			Date:            dateStr,
			Item:            item,
			Amount:          amount,
			PaymentMethod:   cell("payment_method"),
			Category:        category,
			TransactionType: txType,
			Merchant:        cell("merchant"),
			Notes:           cell("notes"),
			InvoiceNumber:   cell("invoice_number"),
			Member:          cell("member"),
		})
	}

	return expenses, nil
}
