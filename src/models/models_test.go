package models

import "testing"

func TestParseLedgerKind(t *testing.T) {
	if kind, err := ParseLedgerKind("personal"); err != nil || kind != LedgerPersonal {
		t.Errorf("ParseLedgerKind(personal) = %v, %v", kind, err)
	}
	if kind, err := ParseLedgerKind("shared"); err != nil || kind != LedgerShared {
		t.Errorf("ParseLedgerKind(shared) = %v, %v", kind, err)
	}
	for _, bad := range []string{"", "group", "Personal", "0"} {
		if _, err := ParseLedgerKind(bad); err == nil {
			t.Errorf("ParseLedgerKind(%q) accepted", bad)
		}
	}
}

func TestAssetIsTradable(t *testing.T) {
	if !(Asset{Quantity: 0}).IsTradable() {
		t.Error("zero-quantity position not tradable")
	}
	if !(Asset{Quantity: 10}).IsTradable() {
		t.Error("positive-quantity position not tradable")
	}
	if (Asset{Quantity: NonQuantitySentinel}).IsTradable() {
		t.Error("sentinel quantity reported tradable")
	}
}

func TestDefaultOptionsTaxonomy(t *testing.T) {
	opts := DefaultOptions()

	if !opts.HasFixedAssetType("股票") {
		t.Error("股票 not a fixed asset type")
	}
	if opts.HasFixedAssetType("現金") {
		t.Error("現金 reported as fixed asset type")
	}
	if !opts.HasLiabilityMethod("信用卡") {
		t.Error("信用卡 not a liability method")
	}
	if opts.HasLiabilityMethod(PaymentMethodCash) {
		t.Error("cash reported as liability method")
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	exp := Expense{
		ID: 3, Date: "2026/09/01", Item: "lunch", Amount: 120,
		Category: "食", TransactionType: TransactionTypeExpense,
	}
	doc, err := ToDocument(exp)
	if err != nil {
		t.Fatalf("ToDocument: %v", err)
	}
	if doc["transactionType"] != TransactionTypeExpense {
		t.Errorf("doc = %v", doc)
	}

	var back Expense
	if err := FromDocument(doc, &back); err != nil {
		t.Fatalf("FromDocument: %v", err)
	}
	if back != exp {
		t.Errorf("round trip = %+v, want %+v", back, exp)
	}
}
