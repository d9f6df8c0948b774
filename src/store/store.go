package store

import (
	"errors"
)

var (
	// ErrNotFound is returned when a document does not exist in its collection.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicate is returned when adding a document whose id is already taken.
	ErrDuplicate = errors.New("document already exists")
)

// Document is a raw document as returned by List: the document id plus the
// decoded JSON payload.
type Document struct {
	ID   string
	Data map[string]any
}

// Store is the hierarchical document store consumed by the services. A
// collection is addressed by a slash-separated logical path (for example
// "Users/abc123/assets"); documents are free-form JSON objects.
//
// ArrayUnion and ArrayRemove are single-document atomic field updates on a
// (possibly dotted) field path; multi-document changes are not transactional.
type Store interface {
	Get(collection, id string) (map[string]any, error)
	// Add creates a document. An empty id asks the store to generate one.
	// Returns the id of the created document.
	Add(collection, id string, data map[string]any) (string, error)
	// Update merges the given fields into an existing document. Dotted keys
	// address nested objects ("ledgers.personal"). Fails with ErrNotFound if
	// the document is absent.
	Update(collection, id string, fields map[string]any) error
	Delete(collection, id string) error
	List(collection string) ([]Document, error)
	Exists(collection, id string) (bool, error)
	// ArrayUnion appends elems to the array at fieldPath, skipping elements
	// already present (set-union by value).
	ArrayUnion(collection, id, fieldPath string, elems ...any) error
	// ArrayRemove removes all exact-match occurrences of elems from the array
	// at fieldPath. Removing absent elements is a no-op.
	ArrayRemove(collection, id, fieldPath string, elems ...any) error
}

// Collection path helpers. These mirror the logical layout of the document
// hierarchy; they are not file paths.

const (
	usersCollection        = "Users"
	sharedLedgersRoot      = "SharedLedgers"
	stockCatalogCollection = "StockCatalog"
)

func UsersCollection() string { return usersCollection }

func ExpenseCollection(uid, ledgerID string) string {
	return usersCollection + "/" + uid + "/" + ledgerID
}

func AssetsCollection(uid string) string { return usersCollection + "/" + uid + "/assets" }

func OptionsCollection(uid string) string { return usersCollection + "/" + uid + "/options" }

func RelationshipCollection(uid string) string {
	return usersCollection + "/" + uid + "/relationship"
}

func SharedLedgersCollection() string { return sharedLedgersRoot }

func SharedExpenseCollection(inviteCode string) string {
	return sharedLedgersRoot + "/" + inviteCode + "/expenses"
}

func StockCatalogCollection() string { return stockCatalogCollection }
