package services

import (
	"os"
	"testing"

	"github.com/username/smartledger/backend/src/logger"
	"github.com/username/smartledger/backend/src/models"
	"github.com/username/smartledger/backend/src/store"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedUser onboards a user through the real onboarding path so the profile,
// options, and relationship documents all exist.
func seedUser(t *testing.T, st store.Store, uid, username string) {
	t.Helper()
	users := NewUserService(st)
	if err := users.CreateProfile(uid, uid+"@example.com", username); err != nil {
		t.Fatalf("CreateProfile(%s): %v", uid, err)
	}
}

func seedExpense(t *testing.T, st store.Store, uid, ledgerID string, kind models.LedgerKind, exp models.Expense) int {
	t.Helper()
	expenses := NewExpenseService(st)
	id, err := expenses.AddExpense(uid, ledgerID, kind, exp)
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}
	return id
}

// fakePriceService serves prices from a fixed map and reports everything
// else unavailable.
type fakePriceService struct {
	prices map[string]float64
}

func (f *fakePriceService) Lookup(ticker string) (float64, error) {
	if p, ok := f.prices[ticker]; ok {
		return p, nil
	}
	return 0, ErrPriceUnavailable
}
