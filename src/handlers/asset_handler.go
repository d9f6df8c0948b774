package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/username/smartledger/backend/src/config"
	"github.com/username/smartledger/backend/src/logger"
	"github.com/username/smartledger/backend/src/models"
	"github.com/username/smartledger/backend/src/security/validation"
	"github.com/username/smartledger/backend/src/services"
	"github.com/username/smartledger/backend/src/store"
	"github.com/username/smartledger/backend/src/utils"
)

// AssetHandler covers asset CRUD, stock trades, the shared stock catalog,
// and the scheduled price refresh trigger.
type AssetHandler struct {
	assetService *services.AssetService
}

func NewAssetHandler(assetService *services.AssetService) *AssetHandler {
	return &AssetHandler{assetService: assetService}
}

// HandleGetAssets lists the caller's assets. Prices are opportunistically
// synced from the shared catalog first; a failed sync degrades to stale
// amounts rather than failing the read.
func (h *AssetHandler) HandleGetAssets(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.assetService.SyncUserPrices(identity.UID); err != nil {
		logger.L.Warn("Price sync failed, returning stale amounts", "uid", identity.UID, "error", err)
	}

	assets, err := h.assetService.ListAssets(identity.UID)
	if err != nil {
		logger.L.Error("Failed to list assets", "uid", identity.UID, "error", err)
		utils.SendJSONError(w, "Failed to list assets", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, assets, http.StatusOK)
}

// HandleHome returns the combined current value of the caller's assets for
// the home page.
func (h *AssetHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	total, err := h.assetService.TotalAssets(identity.UID)
	if err != nil {
		logger.L.Error("Failed to compute total assets", "uid", identity.UID, "error", err)
		utils.SendJSONError(w, "Failed to compute total assets", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, map[string]any{"totalAssets": total}, http.StatusOK)
}

// HandleSubmitStock validates and stores a new asset, or treats a repeated
// item name as a buy of more shares.
func (h *AssetHandler) HandleSubmitStock(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, config.Cfg.MaxUploadSizeBytes))
	if err != nil {
		utils.SendJSONError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateAssetPayload(body); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var payload models.Asset
	if err := json.Unmarshal(body, &payload); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	asset, err := h.assetService.AddStockAsset(identity.UID, payload)
	if err != nil {
		logger.L.Error("Failed to add asset", "uid", identity.UID, "item", payload.Item, "error", err)
		utils.SendJSONError(w, "Failed to add asset", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, asset, http.StatusCreated)
}

// HandleStockTrade applies a buy or sell against an existing position.
func (h *AssetHandler) HandleStockTrade(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var payload struct {
		Item   string `json:"item"`
		Action string `json:"action"`
		Shares int64  `json:"shares"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Item == "" {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	asset, err := h.assetService.RecordStockTrade(identity.UID, payload.Item, payload.Action, payload.Shares)
	switch {
	case err == nil:
		utils.SendJSON(w, asset, http.StatusOK)
	case errors.Is(err, store.ErrNotFound):
		utils.SendJSONError(w, "Asset not found", http.StatusNotFound)
	case errors.Is(err, services.ErrInsufficientShares):
		utils.SendJSONError(w, "Insufficient shares for sale", http.StatusBadRequest)
	default:
		logger.L.Error("Failed to record stock trade", "uid", identity.UID, "item", payload.Item, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
	}
}

func (h *AssetHandler) HandleUpdateAsset(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	assetID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		utils.SendJSONError(w, "Invalid asset id", http.StatusBadRequest)
		return
	}

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil || len(fields) == 0 {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.assetService.UpdateAsset(identity.UID, assetID, fields); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.SendJSONError(w, "Asset not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to update asset", "uid", identity.UID, "id", assetID, "error", err)
		utils.SendJSONError(w, "Failed to update asset", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, map[string]string{"message": "asset updated"}, http.StatusOK)
}

func (h *AssetHandler) HandleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	assetID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		utils.SendJSONError(w, "Invalid asset id", http.StatusBadRequest)
		return
	}

	if err := h.assetService.DeleteAsset(identity.UID, assetID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.SendJSONError(w, "Asset not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to delete asset", "uid", identity.UID, "id", assetID, "error", err)
		utils.SendJSONError(w, "Failed to delete asset", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, map[string]string{"message": "asset deleted"}, http.StatusOK)
}

// HandleGetStockCatalog lists the shared ticker catalog.
func (h *AssetHandler) HandleGetStockCatalog(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireIdentity(w, r); !ok {
		return
	}

	entries, err := h.assetService.StockCatalog()
	if err != nil {
		logger.L.Error("Failed to list stock catalog", "error", err)
		utils.SendJSONError(w, "Failed to list stock catalog", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, entries, http.StatusOK)
}

// HandleRefreshCatalog is the scheduled-job entry point: it re-fetches every
// catalog price. Guarded by a shared secret in X-Refresh-Token instead of a
// user token, because the caller is a cron job.
func (h *AssetHandler) HandleRefreshCatalog(w http.ResponseWriter, r *http.Request) {
	if config.Cfg.StockRefreshSecret != "" && r.Header.Get("X-Refresh-Token") != config.Cfg.StockRefreshSecret {
		logger.L.Warn("Stock refresh rejected: bad refresh token", "remoteAddr", r.RemoteAddr)
		utils.SendJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	refreshed, failed := h.assetService.RefreshCatalog()
	utils.SendJSON(w, map[string]int{"refreshed": refreshed, "failed": failed}, http.StatusOK)
}
