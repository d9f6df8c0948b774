package services

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/username/smartledger/backend/src/logger"
	"github.com/username/smartledger/backend/src/models"
	"github.com/username/smartledger/backend/src/store"
	"github.com/username/smartledger/backend/src/utils"
)

// ExpenseService owns the expense record CRUD for both personal and shared
// ledgers. Record ids are monotonic per ledger: a new record always gets
// max(existing ids)+1, which is racy under concurrent writers to the same
// ledger (see nextRecordID).
type ExpenseService struct {
	store store.Store
}

func NewExpenseService(st store.Store) *ExpenseService {
	return &ExpenseService{store: st}
}

// collectionFor resolves the expense collection of a ledger. Personal ledgers
// live under the user document, shared ledgers under the invite code.
func collectionFor(uid, ledgerID string, kind models.LedgerKind) string {
	if kind == models.LedgerShared {
		return store.SharedExpenseCollection(ledgerID)
	}
	return store.ExpenseCollection(uid, ledgerID)
}

// nextRecordID scans a collection and returns max(existing ids)+1, or 1 for
// an empty collection. Two concurrent creators can read the same max and
// collide; the store's duplicate-id check on Add turns that into an error
// instead of a silent overwrite.
func nextRecordID(st store.Store, collection string) (int, error) {
	docs, err := st.List(collection)
	if err != nil {
		return 0, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	maxID := 0
	for _, doc := range docs {
		n, err := utils.CoerceAmount(doc.Data["id"])
		if err != nil {
			continue
		}
		if int(n) > maxID {
			maxID = int(n)
		}
	}
	return maxID + 1, nil
}

// AddExpense validates nothing itself (payload validation happens at the
// edge); it assigns the next per-ledger id and persists the record. Returns
// the assigned id.
func (s *ExpenseService) AddExpense(uid, ledgerID string, kind models.LedgerKind, exp models.Expense) (int, error) {
	collection := collectionFor(uid, ledgerID, kind)
	id, err := nextRecordID(s.store, collection)
	if err != nil {
		return 0, err
	}
	exp.ID = id

	doc, err := models.ToDocument(exp)
	if err != nil {
		return 0, err
	}
	if _, err := s.store.Add(collection, strconv.Itoa(id), doc); err != nil {
		return 0, fmt.Errorf("failed to add expense to %s: %w", collection, err)
	}
	return id, nil
}

// GetExpense fetches one record by its per-ledger id.
func (s *ExpenseService) GetExpense(uid, ledgerID string, kind models.LedgerKind, recordID int) (models.Expense, error) {
	collection := collectionFor(uid, ledgerID, kind)
	doc, err := s.store.Get(collection, strconv.Itoa(recordID))
	if err != nil {
		return models.Expense{}, err
	}
	var exp models.Expense
	if err := models.FromDocument(doc, &exp); err != nil {
		return models.Expense{}, err
	}
	return exp, nil
}

// UpdateExpense merges the given fields into an existing record. The id field
// is never updatable.
func (s *ExpenseService) UpdateExpense(uid, ledgerID string, kind models.LedgerKind, recordID int, fields map[string]any) error {
	delete(fields, "id")
	collection := collectionFor(uid, ledgerID, kind)
	return s.store.Update(collection, strconv.Itoa(recordID), fields)
}

// DeleteExpense removes one record. Deleting an absent record is an error.
func (s *ExpenseService) DeleteExpense(uid, ledgerID string, kind models.LedgerKind, recordID int) error {
	collection := collectionFor(uid, ledgerID, kind)
	return s.store.Delete(collection, strconv.Itoa(recordID))
}

// ListExpenses returns every record of a ledger as raw documents, sorted by
// date then id. Records persist through the document store as loose JSON, so
// callers tolerant of missing fields get the raw maps.
func (s *ExpenseService) ListExpenses(uid, ledgerID string, kind models.LedgerKind) ([]map[string]any, error) {
	collection := collectionFor(uid, ledgerID, kind)
	docs, err := s.store.List(collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	records := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		records = append(records, doc.Data)
	}
	sortRecords(records)
	return records, nil
}

// MonthlyExpenses returns the records of a ledger whose date falls in the
// given month. Records with unparseable dates are skipped with a warning.
func (s *ExpenseService) MonthlyExpenses(uid, ledgerID string, kind models.LedgerKind, year int, month time.Month) ([]map[string]any, error) {
	all, err := s.ListExpenses(uid, ledgerID, kind)
	if err != nil {
		return nil, err
	}
	monthly := make([]map[string]any, 0, len(all))
	for _, rec := range all {
		dateStr, _ := rec["date"].(string)
		if dateStr == "" {
			logger.L.Warn("Skipping expense record without date", "ledger", ledgerID)
			continue
		}
		if utils.InMonth(dateStr, year, month) {
			monthly = append(monthly, rec)
		}
	}
	return monthly, nil
}

// ExpensesByDateRange returns records with start <= date <= end. Both bounds
// are YYYY/MM/DD strings; the layout makes string comparison equal to date
// comparison.
func (s *ExpenseService) ExpensesByDateRange(uid, ledgerID string, kind models.LedgerKind, start, end string) ([]map[string]any, error) {
	if _, err := utils.ParseLedgerDate(start); err != nil {
		return nil, err
	}
	if _, err := utils.ParseLedgerDate(end); err != nil {
		return nil, err
	}
	all, err := s.ListExpenses(uid, ledgerID, kind)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(all))
	for _, rec := range all {
		dateStr, _ := rec["date"].(string)
		if dateStr >= start && dateStr <= end {
			out = append(out, rec)
		}
	}
	return out, nil
}

func sortRecords(records []map[string]any) {
	sort.SliceStable(records, func(i, j int) bool {
		di, _ := records[i]["date"].(string)
		dj, _ := records[j]["date"].(string)
		if di != dj {
			return di < dj
		}
		ni, _ := utils.CoerceAmount(records[i]["id"])
		nj, _ := utils.CoerceAmount(records[j]["id"])
		return ni < nj
	})
}
