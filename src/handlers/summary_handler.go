package handlers

import (
	"fmt"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/username/smartledger/backend/src/logger"
	"github.com/username/smartledger/backend/src/services"
	"github.com/username/smartledger/backend/src/utils"
)

// SummaryHandler serves the aggregation endpoints. The composite summary is
// expensive (it walks every ledger of the user), so responses are cached for
// a short TTL and revalidated with ETags.
type SummaryHandler struct {
	summaryService *services.SummaryService
	cache          *gocache.Cache
}

func NewSummaryHandler(summaryService *services.SummaryService, cacheTTL time.Duration) *SummaryHandler {
	return &SummaryHandler{
		summaryService: summaryService,
		cache:          gocache.New(cacheTTL, 2*cacheTTL),
	}
}

// HandleGetTotals returns one ledger's monthly totals.
func (h *SummaryHandler) HandleGetTotals(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	ledgerID, kind, err := ledgerParams(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	year, month, err := yearMonthParams(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	totals, err := h.summaryService.MonthlyLedgerTotals(identity.UID, ledgerID, kind, year, month)
	if err != nil {
		logger.L.Error("Failed to compute ledger totals", "uid", identity.UID, "ledger", ledgerID, "error", err)
		utils.SendJSONError(w, "Failed to compute totals", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, totals, http.StatusOK)
}

// HandleAllLedgersSummary returns one monthly summary row per ledger the
// caller belongs to.
func (h *SummaryHandler) HandleAllLedgersSummary(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	year, month, err := yearMonthParams(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := h.summaryService.AllLedgersMonthlySummary(identity.UID, year, month)
	if err != nil {
		logger.L.Error("Failed to compute cross-ledger summary", "uid", identity.UID, "error", err)
		utils.SendJSONError(w, "Failed to compute summary", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, rows, http.StatusOK)
}

// HandleGetSummaryData returns the composite home-screen payload for one day.
func (h *SummaryHandler) HandleGetSummaryData(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	ledgerID, kind, err := ledgerParams(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	dateStr := r.URL.Query().Get("date")

	cacheKey := fmt.Sprintf("%s|%s|%s|%s", identity.UID, ledgerID, kind, dateStr)
	if cached, found := h.cache.Get(cacheKey); found {
		data := cached.(services.SummaryData)
		if h.notModified(w, r, data) {
			return
		}
		utils.SendJSON(w, data, http.StatusOK)
		return
	}

	data, err := h.summaryService.Summary(identity.UID, dateStr, ledgerID, kind)
	if err != nil {
		logger.L.Error("Failed to compute summary data", "uid", identity.UID, "ledger", ledgerID, "error", err)
		utils.SendJSONError(w, "Failed to compute summary", http.StatusInternalServerError)
		return
	}
	h.cache.SetDefault(cacheKey, data)

	if h.notModified(w, r, data) {
		return
	}
	utils.SendJSON(w, data, http.StatusOK)
}

// notModified sets the ETag header and reports whether the client already
// holds the current payload.
func (h *SummaryHandler) notModified(w http.ResponseWriter, r *http.Request, data services.SummaryData) bool {
	etag, err := utils.GenerateETag(data)
	if err != nil {
		return false
	}
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}
	return false
}
