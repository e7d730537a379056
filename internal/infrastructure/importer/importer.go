// Package importer reads transaction and expense exports from CSV or JSON
// files. Rows are converted field by field. A row without a usable amount is
// returned as a rejection; other semantic checks are left to the validator
// so one bad record never aborts an import.
package importer

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
)

// Format is the encoding of an export file.
type Format string

const (
	FormatAuto Format = ""
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ErrUnknownFormat is returned when the format cannot be determined.
var ErrUnknownFormat = errors.New("unknown import format")

// dateLayouts are tried in order
var dateLayouts = []string{"2006-01-02", "02/01/2006", time.RFC3339}

// DetectFormat picks the format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// TransactionsFile reads transactions from path.
func TransactionsFile(path string, format Format) ([]model.Transaction, []*model.ValidationError, error) {
	f, format, err := open(path, format)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = f.Close() }()
	return Transactions(f, format)
}

// ExpensesFile reads expenses from path.
func ExpensesFile(path string, format Format) ([]model.Expense, []*model.ValidationError, error) {
	f, format, err := open(path, format)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = f.Close() }()
	return Expenses(f, format)
}

func open(path string, format Format) (*os.File, Format, error) {
	if format == FormatAuto {
		detected, err := DetectFormat(path)
		if err != nil {
			return nil, "", err
		}
		format = detected
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	return f, format, nil
}

// Transactions reads transactions in the given format.
//
// CSV files need a header row; recognised columns are id, date, amount,
// currency, description, counterpart_name, reference_number, category and
// project_id. Unknown columns are ignored.
func Transactions(r io.Reader, format Format) ([]model.Transaction, []*model.ValidationError, error) {
	records, err := read(r, format)
	if err != nil {
		return nil, nil, fmt.Errorf("reading transactions: %w", err)
	}
	txs, rejected := convert(records, record.transaction)
	return txs, rejected, nil
}

// Expenses reads expenses in the given format.
//
// CSV columns are id, date, amount, description, supplier_name,
// receipt_number, category and approval_state.
func Expenses(r io.Reader, format Format) ([]model.Expense, []*model.ValidationError, error) {
	records, err := read(r, format)
	if err != nil {
		return nil, nil, fmt.Errorf("reading expenses: %w", err)
	}
	exps, rejected := convert(records, record.expense)
	return exps, rejected, nil
}

func read(r io.Reader, format Format) ([]record, error) {
	switch format {
	case FormatJSON:
		var records []record
		if err := json.NewDecoder(r).Decode(&records); err != nil {
			return nil, fmt.Errorf("JSON: %w", err)
		}
		return records, nil
	case FormatCSV:
		records, err := readCSV(r)
		if err != nil {
			return nil, fmt.Errorf("CSV: %w", err)
		}
		return records, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// record is one row keyed by column name. JSON amounts may be numbers or
// strings, so values are kept raw until conversion.
type record map[string]any

func (r record) str(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return decimal.NewFromFloat(v).String()
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// date returns the zero time for a missing or unparseable value; the
// validator reports it.
func (r record) date(key string) time.Time {
	s := r.str(key)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// amount reports false for a missing or unparseable value.
func (r record) amount(key string) (decimal.Decimal, bool) {
	s := r.str(key)
	if s == "" {
		return decimal.Decimal{}, false
	}
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1) // decimal comma
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func (r record) transaction() (model.Transaction, *model.ValidationError) {
	tx := model.Transaction{
		ID:              r.str("id"),
		Date:            r.date("date"),
		Currency:        r.str("currency"),
		Description:     r.str("description"),
		CounterpartName: r.str("counterpart_name"),
		ReferenceNumber: r.str("reference_number"),
		Category:        r.str("category"),
		ProjectID:       r.str("project_id"),
	}
	amount, ok := r.amount("amount")
	if !ok {
		return tx, unusableAmount(model.KindTransaction, tx.ID)
	}
	tx.Amount = amount
	return tx, nil
}

func (r record) expense() (model.Expense, *model.ValidationError) {
	state := model.ApprovalState(strings.ToLower(r.str("approval_state")))
	if state == "" {
		state = model.ApprovalApproved
	}
	exp := model.Expense{
		ID:            r.str("id"),
		Date:          r.date("date"),
		Description:   r.str("description"),
		SupplierName:  r.str("supplier_name"),
		ReceiptNumber: r.str("receipt_number"),
		Category:      r.str("category"),
		ApprovalState: state,
	}
	amount, ok := r.amount("amount")
	if !ok {
		return exp, unusableAmount(model.KindExpense, exp.ID)
	}
	exp.Amount = amount
	return exp, nil
}

func unusableAmount(kind model.RecordKind, id string) *model.ValidationError {
	return &model.ValidationError{Kind: kind, RecordID: id, Field: "amount", Reason: "is missing or unparseable"}
}

func convert[T any](records []record, fn func(record) (T, *model.ValidationError)) ([]T, []*model.ValidationError) {
	out := make([]T, 0, len(records))
	var rejected []*model.ValidationError
	for _, rec := range records {
		v, verr := fn(rec)
		if verr != nil {
			rejected = append(rejected, verr)
			continue
		}
		out = append(out, v)
	}
	return out, rejected
}

func readCSV(r io.Reader) ([]record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := make([]string, len(rows[0]))
	for i, col := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
	}

	records := make([]record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(record, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
