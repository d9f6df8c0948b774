package handlers

import (
	"net/http"
	"time"

	"github.com/username/smartledger/backend/src/logger"
	"github.com/username/smartledger/backend/src/services"
	"github.com/username/smartledger/backend/src/utils"
)

// SuggestionHandler serves the AI spending review over the current month's
// records of one ledger.
type SuggestionHandler struct {
	suggestionService *services.SuggestionService
	expenseService    *services.ExpenseService
	userService       *services.UserService
}

func NewSuggestionHandler(suggestionService *services.SuggestionService, expenseService *services.ExpenseService, userService *services.UserService) *SuggestionHandler {
	return &SuggestionHandler{
		suggestionService: suggestionService,
		expenseService:    expenseService,
		userService:       userService,
	}
}

func (h *SuggestionHandler) HandleAISuggestion(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	ledgerID, kind, err := ledgerParams(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	now := time.Now()
	records, err := h.expenseService.MonthlyExpenses(identity.UID, ledgerID, kind, now.Year(), now.Month())
	if err != nil {
		logger.L.Error("Failed to load records for AI suggestion", "uid", identity.UID, "ledger", ledgerID, "error", err)
		utils.SendJSONError(w, "Failed to load records", http.StatusInternalServerError)
		return
	}
	if len(records) == 0 {
		utils.SendJSONError(w, "No records this month to analyze", http.StatusBadRequest)
		return
	}

	username := identity.Email
	if user, err := h.userService.UserDetails(identity.UID); err == nil && user.Username != "" {
		username = user.Username
	}

	suggestion, err := h.suggestionService.Suggest(r.Context(), username, records)
	if err != nil {
		logger.L.Error("AI suggestion failed", "uid", identity.UID, "error", err)
		utils.SendJSONError(w, "AI suggestion unavailable", http.StatusServiceUnavailable)
		return
	}
	utils.SendJSON(w, map[string]string{"suggestion": suggestion}, http.StatusOK)
}
