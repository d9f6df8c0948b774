package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/username/smartledger/backend/src/logger"
	"github.com/username/smartledger/backend/src/security"
	"github.com/username/smartledger/backend/src/services"
	"github.com/username/smartledger/backend/src/store"
	"github.com/username/smartledger/backend/src/utils"
)

// UserHandler covers user onboarding, profile reads, and the taxonomy
// documents. It also owns the auth middleware because every protected route
// goes through the same token check.
type UserHandler struct {
	authService *security.AuthService
	userService *services.UserService
}

func NewUserHandler(authService *security.AuthService, userService *services.UserService) *UserHandler {
	return &UserHandler{
		authService: authService,
		userService: userService,
	}
}

// HandleCreateProfile onboards the verified caller: profile, default options
// and relationship documents. Repeated calls are no-ops.
func (h *UserHandler) HandleCreateProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var payload struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if payload.Username == "" {
		payload.Username = identity.Email
	}

	if err := h.userService.CreateProfile(identity.UID, identity.Email, payload.Username); err != nil {
		logger.L.Error("Failed to create user profile", "uid", identity.UID, "error", err)
		utils.SendJSONError(w, "Failed to create user profile", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, map[string]string{"message": "profile created"}, http.StatusCreated)
}

func (h *UserHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	user, err := h.userService.UserDetails(identity.UID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.SendJSONError(w, "User not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to load user profile", "uid", identity.UID, "error", err)
		utils.SendJSONError(w, "Failed to load user profile", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, user, http.StatusOK)
}

func (h *UserHandler) HandleGetOptions(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	opts, err := h.userService.Options(identity.UID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.SendJSONError(w, "Options not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to load options", "uid", identity.UID, "error", err)
		utils.SendJSONError(w, "Failed to load options", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, opts, http.StatusOK)
}

// HandleUpdateOptions merges caller-supplied taxonomy fields into the options
// document.
func (h *UserHandler) HandleUpdateOptions(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil || len(fields) == 0 {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.userService.UpdateOptions(identity.UID, fields); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.SendJSONError(w, "Options not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to update options", "uid", identity.UID, "error", err)
		utils.SendJSONError(w, "Failed to update options", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, map[string]string{"message": "options updated"}, http.StatusOK)
}

func (h *UserHandler) HandleGetRelationship(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	rel, err := h.userService.Relationship(identity.UID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.SendJSONError(w, "Relationship not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to load relationship", "uid", identity.UID, "error", err)
		utils.SendJSONError(w, "Failed to load relationship", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, rel, http.StatusOK)
}

func (h *UserHandler) HandleUpdateRelationship(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil || len(fields) == 0 {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.userService.UpdateRelationship(identity.UID, fields); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.SendJSONError(w, "Relationship not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to update relationship", "uid", identity.UID, "error", err)
		utils.SendJSONError(w, "Failed to update relationship", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, map[string]string{"message": "relationship updated"}, http.StatusOK)
}
