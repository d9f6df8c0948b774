package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/username/smartledger/backend/src/logger"
	"github.com/username/smartledger/backend/src/models"
	"github.com/username/smartledger/backend/src/store"
)

// UserService handles user onboarding and profile reads. Onboarding writes
// three documents (profile, options, relationship); the store has no
// multi-document transaction, so a failed later write triggers compensating
// deletes of the earlier ones to avoid a half-onboarded user.
type UserService struct {
	store store.Store
}

func NewUserService(st store.Store) *UserService {
	return &UserService{store: st}
}

// CreateProfile creates the user document together with its default options
// and relationship documents. Calling it for an existing user is a no-op.
func (s *UserService) CreateProfile(uid, email, username string) error {
	exists, err := s.store.Exists(store.UsersCollection(), uid)
	if err != nil {
		return fmt.Errorf("failed to check user %s: %w", uid, err)
	}
	if exists {
		logger.L.Info("User profile already exists, skipping creation", "uid", uid)
		return nil
	}

	profile := models.User{
		Username:  username,
		Email:     email,
		CreatedAt: time.Now().Format(time.RFC3339),
		Access:    1,
		Ledgers: models.Ledgers{
			Personal: []string{models.DefaultPersonalLedgerID},
			Shared:   []models.LedgerRef{},
		},
	}
	profileDoc, err := models.ToDocument(profile)
	if err != nil {
		return err
	}
	if _, err := s.store.Add(store.UsersCollection(), uid, profileDoc); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			logger.L.Info("User profile already exists, skipping creation", "uid", uid)
			return nil
		}
		return fmt.Errorf("failed to create user profile %s: %w", uid, err)
	}

	optionsDoc, err := models.ToDocument(models.DefaultOptions())
	if err != nil {
		s.rollbackOnboarding(uid, false)
		return err
	}
	if _, err := s.store.Add(store.OptionsCollection(uid), models.OptionsDocumentID, optionsDoc); err != nil {
		s.rollbackOnboarding(uid, false)
		return fmt.Errorf("failed to create options for %s: %w", uid, err)
	}

	relationship := map[string]any{"members": []any{}}
	if _, err := s.store.Add(store.RelationshipCollection(uid), models.RelationshipDocumentID, relationship); err != nil {
		s.rollbackOnboarding(uid, true)
		return fmt.Errorf("failed to create relationship for %s: %w", uid, err)
	}

	logger.L.Info("User onboarded", "uid", uid, "username", username)
	return nil
}

// rollbackOnboarding deletes the documents a failed onboarding left behind.
// Rollback failures are logged only; the next CreateProfile call will hit
// the duplicate check and surface the inconsistency.
func (s *UserService) rollbackOnboarding(uid string, optionsCreated bool) {
	if optionsCreated {
		if err := s.store.Delete(store.OptionsCollection(uid), models.OptionsDocumentID); err != nil {
			logger.L.Error("Failed to roll back options document", "uid", uid, "error", err)
		}
	}
	if err := s.store.Delete(store.UsersCollection(), uid); err != nil {
		logger.L.Error("Failed to roll back user profile", "uid", uid, "error", err)
	}
}

// UserDetails returns the user profile. Absent users surface store.ErrNotFound.
func (s *UserService) UserDetails(uid string) (models.User, error) {
	doc, err := s.store.Get(store.UsersCollection(), uid)
	if err != nil {
		return models.User{}, err
	}
	var user models.User
	if err := models.FromDocument(doc, &user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// Options returns the user's category taxonomy document.
func (s *UserService) Options(uid string) (models.Options, error) {
	doc, err := s.store.Get(store.OptionsCollection(uid), models.OptionsDocumentID)
	if err != nil {
		return models.Options{}, err
	}
	var opts models.Options
	if err := models.FromDocument(doc, &opts); err != nil {
		return models.Options{}, err
	}
	return opts, nil
}

// UpdateOptions merges caller-supplied taxonomy fields into the options
// document.
func (s *UserService) UpdateOptions(uid string, fields map[string]any) error {
	return s.store.Update(store.OptionsCollection(uid), models.OptionsDocumentID, fields)
}

// Relationship returns the members list used to attribute shared-ledger
// records.
func (s *UserService) Relationship(uid string) (map[string]any, error) {
	return s.store.Get(store.RelationshipCollection(uid), models.RelationshipDocumentID)
}

// UpdateRelationship merges fields into the relationship document.
func (s *UserService) UpdateRelationship(uid string, fields map[string]any) error {
	return s.store.Update(store.RelationshipCollection(uid), models.RelationshipDocumentID, fields)
}
