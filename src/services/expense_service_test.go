package services

import (
	"errors"
	"testing"

	"github.com/username/smartledger/backend/src/models"
	"github.com/username/smartledger/backend/src/store"
)

func TestAddExpenseAssignsSequentialIDs(t *testing.T) {
	st := newTestStore(t)
	seedUser(t, st, "u1", "amy")
	expenses := NewExpenseService(st)

	exp := models.Expense{
		Date: "2026/09/01", Item: "lunch", Amount: 120,
		Category: "食", TransactionType: models.TransactionTypeExpense,
	}

	first, err := expenses.AddExpense("u1", "expenses", models.LedgerPersonal, exp)
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}
	if first != 1 {
		t.Errorf("first id = %d, want 1", first)
	}

	second, err := expenses.AddExpense("u1", "expenses", models.LedgerPersonal, exp)
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}
	if second != 2 {
		t.Errorf("second id = %d, want 2", second)
	}

	// after a deletion the id keeps growing from the remaining max
	if err := expenses.DeleteExpense("u1", "expenses", models.LedgerPersonal, 1); err != nil {
		t.Fatalf("DeleteExpense: %v", err)
	}
	third, err := expenses.AddExpense("u1", "expenses", models.LedgerPersonal, exp)
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}
	if third != 3 {
		t.Errorf("id after delete = %d, want 3", third)
	}
}

func TestExpenseIDsScopedPerLedger(t *testing.T) {
	st := newTestStore(t)
	seedUser(t, st, "u1", "amy")
	expenses := NewExpenseService(st)

	exp := models.Expense{
		Date: "2026/09/01", Item: "lunch", Amount: 120,
		Category: "食", TransactionType: models.TransactionTypeExpense,
	}

	id1, _ := expenses.AddExpense("u1", "expenses", models.LedgerPersonal, exp)
	id2, err := expenses.AddExpense("u1", "travel", models.LedgerPersonal, exp)
	if err != nil {
		t.Fatalf("AddExpense second ledger: %v", err)
	}
	if id1 != 1 || id2 != 1 {
		t.Errorf("ids = %d, %d, want both 1 (per-ledger scoping)", id1, id2)
	}
}

func TestMonthlyExpensesFiltersByMonth(t *testing.T) {
	st := newTestStore(t)
	seedUser(t, st, "u1", "amy")
	expenses := NewExpenseService(st)

	dates := []string{"2026/08/31", "2026/09/01", "2026/09/30", "2026/10/01"}
	for _, d := range dates {
		seedExpense(t, st, "u1", "expenses", models.LedgerPersonal, models.Expense{
			Date: d, Item: "x", Amount: 10,
			Category: "食", TransactionType: models.TransactionTypeExpense,
		})
	}

	monthly, err := expenses.MonthlyExpenses("u1", "expenses", models.LedgerPersonal, 2026, 9)
	if err != nil {
		t.Fatalf("MonthlyExpenses: %v", err)
	}
	if len(monthly) != 2 {
		t.Errorf("monthly records = %d, want 2", len(monthly))
	}
}

func TestExpensesByDateRange(t *testing.T) {
	st := newTestStore(t)
	seedUser(t, st, "u1", "amy")
	expenses := NewExpenseService(st)

	for _, d := range []string{"2026/09/01", "2026/09/10", "2026/09/20"} {
		seedExpense(t, st, "u1", "expenses", models.LedgerPersonal, models.Expense{
			Date: d, Item: "x", Amount: 10,
			Category: "食", TransactionType: models.TransactionTypeExpense,
		})
	}

	got, err := expenses.ExpensesByDateRange("u1", "expenses", models.LedgerPersonal, "2026/09/05", "2026/09/15")
	if err != nil {
		t.Fatalf("ExpensesByDateRange: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("range records = %d, want 1", len(got))
	}

	if _, err := expenses.ExpensesByDateRange("u1", "expenses", models.LedgerPersonal, "bad", "2026/09/15"); err == nil {
		t.Error("bad start date accepted")
	}
}

func TestUpdateAndDeleteMissingRecord(t *testing.T) {
	st := newTestStore(t)
	seedUser(t, st, "u1", "amy")
	expenses := NewExpenseService(st)

	if err := expenses.UpdateExpense("u1", "expenses", models.LedgerPersonal, 42, map[string]any{"item": "x"}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("UpdateExpense absent error = %v, want ErrNotFound", err)
	}
	if err := expenses.DeleteExpense("u1", "expenses", models.LedgerPersonal, 42); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("DeleteExpense absent error = %v, want ErrNotFound", err)
	}
}

func TestUpdateExpenseCannotChangeID(t *testing.T) {
	st := newTestStore(t)
	seedUser(t, st, "u1", "amy")
	expenses := NewExpenseService(st)

	id := seedExpense(t, st, "u1", "expenses", models.LedgerPersonal, models.Expense{
		Date: "2026/09/01", Item: "lunch", Amount: 120,
		Category: "食", TransactionType: models.TransactionTypeExpense,
	})

	if err := expenses.UpdateExpense("u1", "expenses", models.LedgerPersonal, id, map[string]any{"id": 99, "item": "dinner"}); err != nil {
		t.Fatalf("UpdateExpense: %v", err)
	}

	got, err := expenses.GetExpense("u1", "expenses", models.LedgerPersonal, id)
	if err != nil {
		t.Fatalf("GetExpense: %v", err)
	}
	if got.ID != id || got.Item != "dinner" {
		t.Errorf("record = %+v, want id %d item dinner", got, id)
	}
}

func TestSharedLedgerExpensesUseSharedCollection(t *testing.T) {
	st := newTestStore(t)
	seedUser(t, st, "u1", "amy")
	expenses := NewExpenseService(st)

	exp := models.Expense{
		Date: "2026/09/01", Item: "hotel", Amount: 3000,
		Category: "住", TransactionType: models.TransactionTypeExpense, Member: "amy",
	}
	if _, err := expenses.AddExpense("u1", "ABC123", models.LedgerShared, exp); err != nil {
		t.Fatalf("AddExpense shared: %v", err)
	}

	docs, err := st.List(store.SharedExpenseCollection("ABC123"))
	if err != nil {
		t.Fatalf("List shared collection: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("shared collection has %d docs, want 1", len(docs))
	}
	personal, _ := st.List(store.ExpenseCollection("u1", "ABC123"))
	if len(personal) != 0 {
		t.Errorf("record leaked into personal collection: %v", personal)
	}
}
