package services

import (
	"errors"
	"reflect"
	"testing"

	"github.com/username/smartledger/backend/src/models"
	"github.com/username/smartledger/backend/src/store"
)

func TestCreateProfileOnboardsAllDocuments(t *testing.T) {
	st := newTestStore(t)
	users := NewUserService(st)

	if err := users.CreateProfile("u1", "amy@example.com", "amy"); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}

	user, err := users.UserDetails("u1")
	if err != nil {
		t.Fatalf("UserDetails: %v", err)
	}
	if user.Username != "amy" || user.Email != "amy@example.com" {
		t.Errorf("profile = %+v", user)
	}
	if !reflect.DeepEqual(user.Ledgers.Personal, []string{models.DefaultPersonalLedgerID}) {
		t.Errorf("default personal ledgers = %v", user.Ledgers.Personal)
	}

	opts, err := users.Options("u1")
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	if !reflect.DeepEqual(opts, models.DefaultOptions()) {
		t.Errorf("options = %+v, want defaults", opts)
	}

	if _, err := users.Relationship("u1"); err != nil {
		t.Errorf("Relationship: %v", err)
	}
}

func TestCreateProfileIdempotent(t *testing.T) {
	st := newTestStore(t)
	users := NewUserService(st)

	if err := users.CreateProfile("u1", "amy@example.com", "amy"); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	// second call must not error or clobber the profile
	if err := users.CreateProfile("u1", "other@example.com", "other"); err != nil {
		t.Fatalf("CreateProfile repeat: %v", err)
	}

	user, _ := users.UserDetails("u1")
	if user.Username != "amy" {
		t.Errorf("repeat onboarding clobbered profile: %+v", user)
	}
}

func TestUserDetailsUnknownUser(t *testing.T) {
	st := newTestStore(t)
	users := NewUserService(st)

	if _, err := users.UserDetails("ghost"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("UserDetails absent error = %v, want ErrNotFound", err)
	}
}

func TestUpdateOptions(t *testing.T) {
	st := newTestStore(t)
	users := NewUserService(st)
	if err := users.CreateProfile("u1", "amy@example.com", "amy"); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}

	if err := users.UpdateOptions("u1", map[string]any{
		"transactionType.transactions": []string{"食", "衣", "寵物"},
	}); err != nil {
		t.Fatalf("UpdateOptions: %v", err)
	}

	opts, _ := users.Options("u1")
	if !reflect.DeepEqual(opts.TransactionType.Transactions, []string{"食", "衣", "寵物"}) {
		t.Errorf("transactions = %v", opts.TransactionType.Transactions)
	}
	// untouched branches survive the merge
	if len(opts.AssetType.Liabilities) == 0 {
		t.Errorf("liabilities clobbered: %+v", opts.AssetType)
	}
}
