package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/username/smartledger/backend/src/logger"
	"github.com/username/smartledger/backend/src/models"
	"github.com/username/smartledger/backend/src/services"
	"github.com/username/smartledger/backend/src/store"
	"github.com/username/smartledger/backend/src/utils"
)

// Ledger creation modes as sent by the frontend.
const (
	ledgerModePersonal = 0
	ledgerModeShared   = 1
)

// LedgerHandler covers ledger lifecycle: create, join, detach, and
// membership listings.
type LedgerHandler struct {
	ledgerService *services.LedgerService
}

func NewLedgerHandler(ledgerService *services.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService}
}

func (h *LedgerHandler) HandleGetLedgers(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	ledgers, err := h.ledgerService.UserLedgers(identity.UID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.SendJSONError(w, "User not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to list ledgers", "uid", identity.UID, "error", err)
		utils.SendJSONError(w, "Failed to list ledgers", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, ledgers, http.StatusOK)
}

// HandleCreateLedger creates a personal (mode 0) or shared (mode 1) ledger.
// Unknown modes fail fast.
func (h *LedgerHandler) HandleCreateLedger(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var payload struct {
		Mode     *int   `json:"mode"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if payload.Mode == nil {
		utils.SendJSONError(w, "Missing ledger mode", http.StatusBadRequest)
		return
	}
	if payload.Name == "" {
		utils.SendJSONError(w, "Missing ledger name", http.StatusBadRequest)
		return
	}

	switch *payload.Mode {
	case ledgerModePersonal:
		if err := h.ledgerService.CreatePersonalLedger(identity.UID, payload.Name); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				utils.SendJSONError(w, "User not found", http.StatusNotFound)
				return
			}
			logger.L.Error("Failed to create personal ledger", "uid", identity.UID, "error", err)
			utils.SendJSONError(w, "Failed to create ledger", http.StatusInternalServerError)
			return
		}
		utils.SendJSON(w, map[string]string{"message": "ledger created", "name": payload.Name}, http.StatusCreated)
	case ledgerModeShared:
		result, err := h.ledgerService.CreateSharedLedger(identity.UID, payload.Name, payload.Password)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				utils.SendJSONError(w, "User not found", http.StatusNotFound)
				return
			}
			logger.L.Error("Failed to create shared ledger", "uid", identity.UID, "error", err)
			utils.SendJSONError(w, "Failed to create ledger", http.StatusInternalServerError)
			return
		}
		utils.SendJSON(w, result, http.StatusCreated)
	default:
		utils.SendJSONError(w, "Invalid ledger mode: must be 0 (personal) or 1 (shared)", http.StatusBadRequest)
	}
}

func (h *LedgerHandler) HandleJoinLedger(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var payload struct {
		InviteCode string `json:"invite_code"`
		Password   string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.InviteCode == "" {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := h.ledgerService.JoinSharedLedger(identity.UID, payload.InviteCode, payload.Password)
	switch {
	case err == nil:
		utils.SendJSON(w, map[string]string{"message": "joined ledger", "invite_code": payload.InviteCode}, http.StatusOK)
	case errors.Is(err, services.ErrJoinDenied):
		utils.SendJSONError(w, "Invalid ledger password", http.StatusForbidden)
	case errors.Is(err, store.ErrNotFound):
		utils.SendJSONError(w, "Ledger not found", http.StatusNotFound)
	case errors.Is(err, services.ErrJoinIncomplete):
		logger.L.Error("Ledger join partially applied", "uid", identity.UID, "inviteCode", payload.InviteCode, "error", err)
		utils.SendJSONError(w, "Join incomplete, please retry", http.StatusInternalServerError)
	default:
		logger.L.Error("Failed to join ledger", "uid", identity.UID, "inviteCode", payload.InviteCode, "error", err)
		utils.SendJSONError(w, "Failed to join ledger", http.StatusInternalServerError)
	}
}

// HandleDeleteLedger detaches the caller from a ledger. It never deletes
// ledger data or other members' membership.
func (h *LedgerHandler) HandleDeleteLedger(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var payload struct {
		Type     string `json:"type"`
		LedgerID string `json:"ledger_id"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.LedgerID == "" {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	kind, err := models.ParseLedgerKind(payload.Type)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.ledgerService.DeleteLedger(identity.UID, payload.LedgerID, payload.Name, kind); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.SendJSONError(w, "User not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to delete ledger", "uid", identity.UID, "ledger", payload.LedgerID, "error", err)
		utils.SendJSONError(w, "Failed to delete ledger", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, map[string]string{"message": "ledger removed"}, http.StatusOK)
}

// HandleLedgerMembers returns the display names of a shared ledger's members.
func (h *LedgerHandler) HandleLedgerMembers(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireIdentity(w, r); !ok {
		return
	}

	inviteCode := r.PathValue("code")
	members, err := h.ledgerService.SharedLedgerMembers(inviteCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.SendJSONError(w, "Ledger not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to list ledger members", "inviteCode", inviteCode, "error", err)
		utils.SendJSONError(w, "Failed to list members", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, map[string]any{"members": members}, http.StatusOK)
}
