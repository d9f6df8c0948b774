package services

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/username/smartledger/backend/src/logger"
	"github.com/username/smartledger/backend/src/models"
	"github.com/username/smartledger/backend/src/security"
	"github.com/username/smartledger/backend/src/store"
)

const (
	inviteCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	inviteCodeLength  = 6
)

// LedgerService manages a user's ledger membership list and the shared
// ledger documents behind invite codes.
type LedgerService struct {
	store store.Store
	email EmailService
}

func NewLedgerService(st store.Store, email EmailService) *LedgerService {
	return &LedgerService{store: st, email: email}
}

// SharedLedgerResult is returned to the creator of a shared ledger.
type SharedLedgerResult struct {
	GroupID    string `json:"group_id"`
	Name       string `json:"name"`
	InviteCode string `json:"invite_code"`
}

// CreatePersonalLedger appends ledgerName to the user's personal ledger
// list with set-union semantics. The backing expense collection springs into
// existence on the first record write. Fails for an absent user.
func (s *LedgerService) CreatePersonalLedger(uid, ledgerName string) error {
	if ledgerName == "" {
		return fmt.Errorf("ledger name must not be empty")
	}
	if err := s.store.ArrayUnion(store.UsersCollection(), uid, "ledgers.personal", ledgerName); err != nil {
		return fmt.Errorf("failed to add personal ledger for %s: %w", uid, err)
	}
	return nil
}

// CreateSharedLedger generates a unique invite code, registers the ledger on
// the creator's membership list, and creates the backing document. A password
// is optional; non-empty passwords are stored as bcrypt hashes. The invite
// email is best-effort.
func (s *LedgerService) CreateSharedLedger(uid, ledgerName, password string) (SharedLedgerResult, error) {
	if ledgerName == "" {
		return SharedLedgerResult{}, fmt.Errorf("ledger name must not be empty")
	}

	userDoc, err := s.store.Get(store.UsersCollection(), uid)
	if err != nil {
		return SharedLedgerResult{}, fmt.Errorf("failed to load user %s: %w", uid, err)
	}
	var user models.User
	if err := models.FromDocument(userDoc, &user); err != nil {
		return SharedLedgerResult{}, err
	}

	code, err := s.generateUniqueInviteCode()
	if err != nil {
		return SharedLedgerResult{}, err
	}

	hashed, err := security.HashLedgerPassword(password)
	if err != nil {
		return SharedLedgerResult{}, fmt.Errorf("failed to hash ledger password: %w", err)
	}

	ledger := models.SharedLedger{
		Name:       ledgerName,
		InviteCode: code,
		Password:   hashed,
		CreateAt:   time.Now().Format(time.RFC3339),
		Members:    map[string]any{uid: user.Username},
		Users:      []string{uid},
	}
	ledgerDoc, err := models.ToDocument(ledger)
	if err != nil {
		return SharedLedgerResult{}, err
	}
	if _, err := s.store.Add(store.SharedLedgersCollection(), code, ledgerDoc); err != nil {
		return SharedLedgerResult{}, fmt.Errorf("failed to create shared ledger %s: %w", code, err)
	}

	ref := models.LedgerRef{InviteCode: code, Name: ledgerName}
	refDoc, err := models.ToDocument(ref)
	if err != nil {
		return SharedLedgerResult{}, err
	}
	if err := s.store.ArrayUnion(store.UsersCollection(), uid, "ledgers.shared", refDoc); err != nil {
		return SharedLedgerResult{}, fmt.Errorf("failed to register shared ledger for %s: %w", uid, err)
	}

	if user.Email != "" {
		if err := s.email.SendLedgerInvite(user.Email, user.Username, ledgerName, code); err != nil {
			logger.L.Warn("Failed to send ledger invite email", "uid", uid, "inviteCode", code, "error", err)
		}
	}

	logger.L.Info("Shared ledger created", "uid", uid, "inviteCode", code, "name", ledgerName)
	return SharedLedgerResult{GroupID: code, Name: ledgerName, InviteCode: code}, nil
}

// generateUniqueInviteCode rejection-samples 6 characters from [A-Z0-9] until
// the code is not already a shared-ledger document id. The keyspace is 36^6
// and the collection stays small, so unbounded retries are acceptable.
func (s *LedgerService) generateUniqueInviteCode() (string, error) {
	for {
		code, err := randomInviteCode()
		if err != nil {
			return "", err
		}
		taken, err := s.store.Exists(store.SharedLedgersCollection(), code)
		if err != nil {
			return "", fmt.Errorf("failed to check invite code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
}

func randomInviteCode() (string, error) {
	buf := make([]byte, inviteCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate invite code: %w", err)
	}
	for i, b := range buf {
		buf[i] = inviteCodeCharset[int(b)%len(inviteCodeCharset)]
	}
	return string(buf), nil
}

// JoinSharedLedger adds the caller to the ledger behind inviteCode. A
// configured password must match or the join is denied with no mutation.
// The two membership writes are separate single-document updates: if the
// first (the user's own list) succeeds but the second (the ledger's user
// list) fails, ErrJoinIncomplete reports the partial application instead of
// hiding it.
func (s *LedgerService) JoinSharedLedger(uid, inviteCode, password string) error {
	ledgerDoc, err := s.store.Get(store.SharedLedgersCollection(), inviteCode)
	if err != nil {
		return fmt.Errorf("shared ledger %s: %w", inviteCode, err)
	}
	var ledger models.SharedLedger
	if err := models.FromDocument(ledgerDoc, &ledger); err != nil {
		return err
	}

	if ledger.Password != "" {
		if err := security.CheckLedgerPassword(ledger.Password, password); err != nil {
			return ErrJoinDenied
		}
	}

	userDoc, err := s.store.Get(store.UsersCollection(), uid)
	if err != nil {
		return fmt.Errorf("failed to load user %s: %w", uid, err)
	}
	var user models.User
	if err := models.FromDocument(userDoc, &user); err != nil {
		return err
	}

	ref := models.LedgerRef{InviteCode: inviteCode, Name: ledger.Name}
	refDoc, err := models.ToDocument(ref)
	if err != nil {
		return err
	}
	if err := s.store.ArrayUnion(store.UsersCollection(), uid, "ledgers.shared", refDoc); err != nil {
		return fmt.Errorf("failed to register ledger for %s: %w", uid, err)
	}

	if err := s.store.ArrayUnion(store.SharedLedgersCollection(), inviteCode, "users", uid); err != nil {
		logger.L.Error("Join half-applied: user registered the ledger but ledger user list update failed",
			"uid", uid, "inviteCode", inviteCode, "error", err)
		return fmt.Errorf("%w: %v", ErrJoinIncomplete, err)
	}
	if err := s.store.Update(store.SharedLedgersCollection(), inviteCode, map[string]any{
		"members." + uid: user.Username,
	}); err != nil {
		logger.L.Warn("Failed to record member name on shared ledger", "uid", uid, "inviteCode", inviteCode, "error", err)
	}

	logger.L.Info("User joined shared ledger", "uid", uid, "inviteCode", inviteCode)
	return nil
}

// DeleteLedger detaches the user from a ledger by exact-match removal from
// the membership list. It never deletes the underlying ledger data or other
// members' membership. Removing an absent entry is a no-op.
func (s *LedgerService) DeleteLedger(uid, ledgerID, ledgerName string, kind models.LedgerKind) error {
	switch kind {
	case models.LedgerPersonal:
		if err := s.store.ArrayRemove(store.UsersCollection(), uid, "ledgers.personal", ledgerID); err != nil {
			return fmt.Errorf("failed to remove personal ledger for %s: %w", uid, err)
		}
	case models.LedgerShared:
		ref := models.LedgerRef{InviteCode: ledgerID, Name: ledgerName}
		refDoc, err := models.ToDocument(ref)
		if err != nil {
			return err
		}
		if err := s.store.ArrayRemove(store.UsersCollection(), uid, "ledgers.shared", refDoc); err != nil {
			return fmt.Errorf("failed to remove shared ledger for %s: %w", uid, err)
		}
		if err := s.store.ArrayRemove(store.SharedLedgersCollection(), ledgerID, "users", uid); err != nil {
			logger.L.Warn("Failed to remove user from shared ledger user list", "uid", uid, "inviteCode", ledgerID, "error", err)
		}
	default:
		return fmt.Errorf("invalid ledger kind %q", kind)
	}
	return nil
}

// UserLedgers returns the user's ledger membership map.
func (s *LedgerService) UserLedgers(uid string) (models.Ledgers, error) {
	doc, err := s.store.Get(store.UsersCollection(), uid)
	if err != nil {
		return models.Ledgers{}, err
	}
	var user models.User
	if err := models.FromDocument(doc, &user); err != nil {
		return models.Ledgers{}, err
	}
	return user.Ledgers, nil
}

// SharedLedgerMembers returns the member display names of a shared ledger.
func (s *LedgerService) SharedLedgerMembers(inviteCode string) ([]string, error) {
	doc, err := s.store.Get(store.SharedLedgersCollection(), inviteCode)
	if err != nil {
		return nil, err
	}
	var ledger models.SharedLedger
	if err := models.FromDocument(doc, &ledger); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ledger.Members))
	for _, v := range ledger.Members {
		if name, ok := v.(string); ok && name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}
