package services

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"testing"

	"github.com/username/smartledger/backend/src/models"
	"github.com/username/smartledger/backend/src/store"
)

// faultyUnionStore fails ArrayUnion against one collection and delegates
// everything else, standing in for a store outage between the two join
// writes.
type faultyUnionStore struct {
	store.Store
	failCollection string
}

func (f *faultyUnionStore) ArrayUnion(collection, id, fieldPath string, elems ...any) error {
	if collection == f.failCollection {
		return fmt.Errorf("simulated store outage")
	}
	return f.Store.ArrayUnion(collection, id, fieldPath, elems...)
}

// collidingExistsStore reports the first n invite-code availability checks
// as taken.
type collidingExistsStore struct {
	store.Store
	collisions int
}

func (c *collidingExistsStore) Exists(collection, id string) (bool, error) {
	if collection == store.SharedLedgersCollection() && c.collisions > 0 {
		c.collisions--
		return true, nil
	}
	return c.Store.Exists(collection, id)
}

func newLedgerFixture(t *testing.T) (*LedgerService, store.Store) {
	t.Helper()
	st := newTestStore(t)
	seedUser(t, st, "u1", "amy")
	return NewLedgerService(st, &MockEmailService{}), st
}

func TestCreatePersonalLedger(t *testing.T) {
	ledgers, _ := newLedgerFixture(t)

	if err := ledgers.CreatePersonalLedger("u1", "travel"); err != nil {
		t.Fatalf("CreatePersonalLedger: %v", err)
	}
	// set-union: repeated creation does not duplicate
	if err := ledgers.CreatePersonalLedger("u1", "travel"); err != nil {
		t.Fatalf("CreatePersonalLedger repeat: %v", err)
	}

	got, err := ledgers.UserLedgers("u1")
	if err != nil {
		t.Fatalf("UserLedgers: %v", err)
	}
	want := []string{models.DefaultPersonalLedgerID, "travel"}
	if !reflect.DeepEqual(got.Personal, want) {
		t.Errorf("personal ledgers = %v, want %v", got.Personal, want)
	}
}

func TestCreatePersonalLedgerUnknownUser(t *testing.T) {
	ledgers, _ := newLedgerFixture(t)
	err := ledgers.CreatePersonalLedger("ghost", "travel")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown user error = %v, want ErrNotFound", err)
	}
}

var inviteCodePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

func TestCreateSharedLedger(t *testing.T) {
	ledgers, st := newLedgerFixture(t)

	result, err := ledgers.CreateSharedLedger("u1", "Trip", "")
	if err != nil {
		t.Fatalf("CreateSharedLedger: %v", err)
	}
	if !inviteCodePattern.MatchString(result.InviteCode) {
		t.Errorf("invite code %q does not match [A-Z0-9]{6}", result.InviteCode)
	}
	if result.GroupID != result.InviteCode || result.Name != "Trip" {
		t.Errorf("result = %+v", result)
	}

	// the backing document exists under the invite code
	doc, err := st.Get(store.SharedLedgersCollection(), result.InviteCode)
	if err != nil {
		t.Fatalf("Get shared ledger: %v", err)
	}
	var ledger models.SharedLedger
	if err := models.FromDocument(doc, &ledger); err != nil {
		t.Fatalf("FromDocument: %v", err)
	}
	if ledger.Name != "Trip" || ledger.InviteCode != result.InviteCode {
		t.Errorf("ledger doc = %+v", ledger)
	}
	if ledger.Password != "" {
		t.Errorf("no-password ledger stored password %q", ledger.Password)
	}
	if !reflect.DeepEqual(ledger.Users, []string{"u1"}) {
		t.Errorf("ledger users = %v, want [u1]", ledger.Users)
	}

	// the creator's membership list carries the reference
	membership, err := ledgers.UserLedgers("u1")
	if err != nil {
		t.Fatalf("UserLedgers: %v", err)
	}
	wantRef := models.LedgerRef{InviteCode: result.InviteCode, Name: "Trip"}
	if len(membership.Shared) != 1 || membership.Shared[0] != wantRef {
		t.Errorf("shared membership = %v, want [%v]", membership.Shared, wantRef)
	}
}

func TestCreateSharedLedgerDistinctCodes(t *testing.T) {
	ledgers, _ := newLedgerFixture(t)

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		result, err := ledgers.CreateSharedLedger("u1", "Trip", "")
		if err != nil {
			t.Fatalf("CreateSharedLedger: %v", err)
		}
		if seen[result.InviteCode] {
			t.Fatalf("invite code %q issued twice", result.InviteCode)
		}
		seen[result.InviteCode] = true
	}
}

func TestCreateSharedLedgerHashesPassword(t *testing.T) {
	ledgers, st := newLedgerFixture(t)

	result, err := ledgers.CreateSharedLedger("u1", "Trip", "s3cret")
	if err != nil {
		t.Fatalf("CreateSharedLedger: %v", err)
	}

	doc, _ := st.Get(store.SharedLedgersCollection(), result.InviteCode)
	var ledger models.SharedLedger
	models.FromDocument(doc, &ledger)
	if ledger.Password == "" || ledger.Password == "s3cret" {
		t.Errorf("password stored in the clear or empty: %q", ledger.Password)
	}
}

func TestJoinSharedLedger(t *testing.T) {
	ledgers, st := newLedgerFixture(t)
	seedUser(t, st, "u2", "bob")

	result, err := ledgers.CreateSharedLedger("u1", "Trip", "")
	if err != nil {
		t.Fatalf("CreateSharedLedger: %v", err)
	}

	if err := ledgers.JoinSharedLedger("u2", result.InviteCode, ""); err != nil {
		t.Fatalf("JoinSharedLedger: %v", err)
	}

	membership, _ := ledgers.UserLedgers("u2")
	wantRef := models.LedgerRef{InviteCode: result.InviteCode, Name: "Trip"}
	if len(membership.Shared) != 1 || membership.Shared[0] != wantRef {
		t.Errorf("joiner membership = %v", membership.Shared)
	}

	doc, _ := st.Get(store.SharedLedgersCollection(), result.InviteCode)
	var ledger models.SharedLedger
	models.FromDocument(doc, &ledger)
	if !reflect.DeepEqual(ledger.Users, []string{"u1", "u2"}) {
		t.Errorf("ledger users = %v, want [u1 u2]", ledger.Users)
	}
}

func TestJoinDeniedLeavesBothSidesUnchanged(t *testing.T) {
	ledgers, st := newLedgerFixture(t)
	seedUser(t, st, "u2", "bob")

	result, err := ledgers.CreateSharedLedger("u1", "Trip", "s3cret")
	if err != nil {
		t.Fatalf("CreateSharedLedger: %v", err)
	}

	err = ledgers.JoinSharedLedger("u2", result.InviteCode, "wrong")
	if !errors.Is(err, ErrJoinDenied) {
		t.Fatalf("join error = %v, want ErrJoinDenied", err)
	}

	membership, _ := ledgers.UserLedgers("u2")
	if len(membership.Shared) != 0 {
		t.Errorf("denied join mutated joiner membership: %v", membership.Shared)
	}
	doc, _ := st.Get(store.SharedLedgersCollection(), result.InviteCode)
	var ledger models.SharedLedger
	models.FromDocument(doc, &ledger)
	if !reflect.DeepEqual(ledger.Users, []string{"u1"}) {
		t.Errorf("denied join mutated ledger users: %v", ledger.Users)
	}
}

func TestJoinIncompleteWhenLedgerUpdateFails(t *testing.T) {
	st := newTestStore(t)
	seedUser(t, st, "u1", "amy")
	seedUser(t, st, "u2", "bob")

	ledgers := NewLedgerService(st, &MockEmailService{})
	result, err := ledgers.CreateSharedLedger("u1", "Trip", "")
	if err != nil {
		t.Fatalf("CreateSharedLedger: %v", err)
	}

	faulty := &faultyUnionStore{Store: st, failCollection: store.SharedLedgersCollection()}
	err = NewLedgerService(faulty, &MockEmailService{}).JoinSharedLedger("u2", result.InviteCode, "")
	if !errors.Is(err, ErrJoinIncomplete) {
		t.Fatalf("join error = %v, want ErrJoinIncomplete", err)
	}

	// half-applied: the user's own list was written, the ledger's was not
	membership, _ := ledgers.UserLedgers("u2")
	wantRef := models.LedgerRef{InviteCode: result.InviteCode, Name: "Trip"}
	if len(membership.Shared) != 1 || membership.Shared[0] != wantRef {
		t.Errorf("joiner membership = %v, want [%v]", membership.Shared, wantRef)
	}
	doc, _ := st.Get(store.SharedLedgersCollection(), result.InviteCode)
	var ledger models.SharedLedger
	models.FromDocument(doc, &ledger)
	if !reflect.DeepEqual(ledger.Users, []string{"u1"}) {
		t.Errorf("ledger users = %v, want [u1]", ledger.Users)
	}

	// a retry against a healthy store converges
	if err := ledgers.JoinSharedLedger("u2", result.InviteCode, ""); err != nil {
		t.Fatalf("retry join: %v", err)
	}
	doc, _ = st.Get(store.SharedLedgersCollection(), result.InviteCode)
	models.FromDocument(doc, &ledger)
	if !reflect.DeepEqual(ledger.Users, []string{"u1", "u2"}) {
		t.Errorf("ledger users after retry = %v, want [u1 u2]", ledger.Users)
	}
}

func TestGenerateUniqueInviteCodeRetriesPastCollisions(t *testing.T) {
	st := newTestStore(t)
	seedUser(t, st, "u1", "amy")

	colliding := &collidingExistsStore{Store: st, collisions: 3}
	ledgers := NewLedgerService(colliding, &MockEmailService{})

	code, err := ledgers.generateUniqueInviteCode()
	if err != nil {
		t.Fatalf("generateUniqueInviteCode: %v", err)
	}
	if !inviteCodePattern.MatchString(code) {
		t.Errorf("code %q does not match [A-Z0-9]{6}", code)
	}
	if colliding.collisions != 0 {
		t.Errorf("generation stopped after %d remaining collisions", colliding.collisions)
	}
}

func TestJoinUnknownCode(t *testing.T) {
	ledgers, st := newLedgerFixture(t)
	seedUser(t, st, "u2", "bob")

	err := ledgers.JoinSharedLedger("u2", "ZZZZZZ", "")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("join unknown code error = %v, want ErrNotFound", err)
	}
}

func TestDeleteLedgerDetachOnly(t *testing.T) {
	ledgers, st := newLedgerFixture(t)
	seedUser(t, st, "u2", "bob")

	result, err := ledgers.CreateSharedLedger("u1", "Trip", "")
	if err != nil {
		t.Fatalf("CreateSharedLedger: %v", err)
	}
	if err := ledgers.JoinSharedLedger("u2", result.InviteCode, ""); err != nil {
		t.Fatalf("JoinSharedLedger: %v", err)
	}

	if err := ledgers.DeleteLedger("u2", result.InviteCode, "Trip", models.LedgerShared); err != nil {
		t.Fatalf("DeleteLedger: %v", err)
	}

	membership, _ := ledgers.UserLedgers("u2")
	if len(membership.Shared) != 0 {
		t.Errorf("detached user still has membership: %v", membership.Shared)
	}
	// the ledger document and the other member survive
	doc, err := st.Get(store.SharedLedgersCollection(), result.InviteCode)
	if err != nil {
		t.Fatalf("ledger document deleted: %v", err)
	}
	var ledger models.SharedLedger
	models.FromDocument(doc, &ledger)
	if !reflect.DeepEqual(ledger.Users, []string{"u1"}) {
		t.Errorf("ledger users = %v, want [u1]", ledger.Users)
	}
}

func TestDeletePersonalLedgerAbsentIsNoOp(t *testing.T) {
	ledgers, _ := newLedgerFixture(t)

	before, _ := ledgers.UserLedgers("u1")
	if err := ledgers.DeleteLedger("u1", "never-existed", "", models.LedgerPersonal); err != nil {
		t.Fatalf("DeleteLedger absent name: %v", err)
	}
	after, _ := ledgers.UserLedgers("u1")
	if !reflect.DeepEqual(before, after) {
		t.Errorf("no-op delete changed membership: %v -> %v", before, after)
	}
}

func TestDeleteLedgerUnknownKind(t *testing.T) {
	ledgers, _ := newLedgerFixture(t)
	if err := ledgers.DeleteLedger("u1", "expenses", "", models.LedgerKind("group")); err == nil {
		t.Error("unknown ledger kind accepted")
	}
}

func TestSharedLedgerMembers(t *testing.T) {
	ledgers, st := newLedgerFixture(t)
	seedUser(t, st, "u2", "bob")

	result, err := ledgers.CreateSharedLedger("u1", "Trip", "")
	if err != nil {
		t.Fatalf("CreateSharedLedger: %v", err)
	}
	if err := ledgers.JoinSharedLedger("u2", result.InviteCode, ""); err != nil {
		t.Fatalf("JoinSharedLedger: %v", err)
	}

	members, err := ledgers.SharedLedgerMembers(result.InviteCode)
	if err != nil {
		t.Fatalf("SharedLedgerMembers: %v", err)
	}
	if len(members) != 2 {
		t.Errorf("members = %v, want 2 names", members)
	}
}

func TestRandomInviteCodeCharset(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := randomInviteCode()
		if err != nil {
			t.Fatalf("randomInviteCode: %v", err)
		}
		if !inviteCodePattern.MatchString(code) {
			t.Fatalf("code %q does not match [A-Z0-9]{6}", code)
		}
	}
}
