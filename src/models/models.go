package models

import (
	"encoding/json"
	"fmt"
)

// Transaction type and payment method markers as stored in expense records.
const (
	TransactionTypeExpense = "支出"
	TransactionTypeIncome  = "收入"
	PaymentMethodCash      = "現金"
)

// DefaultPersonalLedgerID is the subcollection name of the ledger every user
// gets at onboarding.
const DefaultPersonalLedgerID = "expenses"

// NonQuantitySentinel marks assets without a tradable quantity (cash,
// deposits). Such assets keep a manually-set current amount.
const NonQuantitySentinel = -1

// Expense is one expense or income record inside a ledger collection. The id
// is monotonic per ledger, not globally unique.
type Expense struct {
	ID              int    `json:"id"`
	Date            string `json:"date"` // YYYY/MM/DD
	Item            string `json:"item"`
	Amount          int64  `json:"amount"`
	PaymentMethod   string `json:"payment_method"`
	Category        string `json:"category"`
	TransactionType string `json:"transactionType"`
	Merchant        string `json:"merchant,omitempty"`
	Notes           string `json:"notes,omitempty"`
	InvoiceNumber   string `json:"invoice_number,omitempty"`
	// Member is set on shared-ledger records to attribute the expense.
	Member string `json:"member,omitempty"`
}

// Asset is one holding in a user's assets collection. Quantity is the number
// of shares for tradable positions and NonQuantitySentinel otherwise.
type Asset struct {
	ID               int     `json:"id"`
	Item             string  `json:"item"`
	AssetType        string  `json:"asset_type"`
	AcquisitionDate  string  `json:"acquisition_date,omitempty"`
	AcquisitionValue float64 `json:"acquisition_value"`
	CurrentPrice     float64 `json:"current_price,omitempty"`
	CurrentAmount    float64 `json:"current_amount"`
	Quantity         int64   `json:"quantity"`
	Notes            string  `json:"notes,omitempty"`
}

// IsTradable reports whether the asset carries a market quantity.
func (a Asset) IsTradable() bool { return a.Quantity >= 0 }

// StockEntry is one ticker in the shared stock catalog. The document id is
// the ticker itself, so the price-fetch cost is shared across users.
type StockEntry struct {
	Item         string  `json:"item"`
	CurrentPrice float64 `json:"current_price"`
}

// LedgerRef identifies one shared ledger in a user's membership list.
type LedgerRef struct {
	InviteCode string `json:"invite_code"`
	Name       string `json:"name"`
}

// Ledgers is the per-user ledger membership map.
type Ledgers struct {
	Personal []string    `json:"personal"`
	Shared   []LedgerRef `json:"shared"`
}

// User is the profile document, created on first successful registration and
// never hard-deleted.
type User struct {
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	CreatedAt string  `json:"created_at"`
	Access    int     `json:"access"`
	Ledgers   Ledgers `json:"ledgers"`
}

// SharedLedger is the backing document of a shared ledger. Its document id
// is the invite code. Password is empty or a bcrypt hash.
type SharedLedger struct {
	Name       string         `json:"name"`
	InviteCode string         `json:"invite_code"`
	Password   string         `json:"password"`
	CreateAt   string         `json:"create_at"`
	Members    map[string]any `json:"members,omitempty"`
	Users      []string       `json:"users"`
}

// LedgerKind is the closed set of ledger kinds. Free-form strings from the
// API are validated through ParseLedgerKind before they reach a service.
type LedgerKind string

const (
	LedgerPersonal LedgerKind = "personal"
	LedgerShared   LedgerKind = "shared"
)

func ParseLedgerKind(s string) (LedgerKind, error) {
	switch LedgerKind(s) {
	case LedgerPersonal:
		return LedgerPersonal, nil
	case LedgerShared:
		return LedgerShared, nil
	}
	return "", fmt.Errorf("invalid ledger kind %q: must be %q or %q", s, LedgerPersonal, LedgerShared)
}

// ToDocument converts a typed record into the map shape the document store
// persists.
func ToDocument(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return doc, nil
}

// FromDocument decodes a stored document into a typed record.
func FromDocument(doc map[string]any, out any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}
