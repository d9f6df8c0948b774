package services

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/username/smartledger/backend/src/logger"
	"github.com/username/smartledger/backend/src/models"
	"github.com/username/smartledger/backend/src/store"
	"github.com/username/smartledger/backend/src/utils"
)

// AssetService maintains per-user asset records, reconciles stock positions
// on buy/sell, and keeps the shared stock catalog's cached prices fresh.
type AssetService struct {
	store  store.Store
	prices PriceService
	users  *UserService
}

func NewAssetService(st store.Store, prices PriceService, users *UserService) *AssetService {
	return &AssetService{store: st, prices: prices, users: users}
}

// ListAssets returns the user's assets sorted by id.
func (s *AssetService) ListAssets(uid string) ([]map[string]any, error) {
	docs, err := s.store.List(store.AssetsCollection(uid))
	if err != nil {
		return nil, fmt.Errorf("failed to list assets for %s: %w", uid, err)
	}
	assets := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		assets = append(assets, doc.Data)
	}
	sort.SliceStable(assets, func(i, j int) bool {
		ni, _ := utils.CoerceAmount(assets[i]["id"])
		nj, _ := utils.CoerceAmount(assets[j]["id"])
		return ni < nj
	})
	return assets, nil
}

// TotalAssets sums the current amount of every asset the user holds.
// Non-numeric amounts are skipped with a warning.
func (s *AssetService) TotalAssets(uid string) (float64, error) {
	assets, err := s.ListAssets(uid)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, asset := range assets {
		amount, err := utils.CoerceNumber(asset["current_amount"])
		if err != nil {
			logger.L.Warn("Skipping asset with non-numeric current amount", "uid", uid, "item", asset["item"], "error", err)
			continue
		}
		total += amount
	}
	return utils.Round2(total), nil
}

// findAssetByItem scans the user's assets for one with the given item name.
func (s *AssetService) findAssetByItem(uid, item string) (models.Asset, bool, error) {
	docs, err := s.store.List(store.AssetsCollection(uid))
	if err != nil {
		return models.Asset{}, false, fmt.Errorf("failed to list assets for %s: %w", uid, err)
	}
	for _, doc := range docs {
		if name, _ := doc.Data["item"].(string); name == item {
			var asset models.Asset
			if err := models.FromDocument(doc.Data, &asset); err != nil {
				return models.Asset{}, false, err
			}
			return asset, true, nil
		}
	}
	return models.Asset{}, false, nil
}

// AddStockAsset records a new holding or, when an asset with the same item
// already exists, treats the call as a buy of payload.Quantity shares.
// Tradable asset types get a market price and a catalog registration;
// non-tradable ones keep the supplied acquisition value as current amount.
func (s *AssetService) AddStockAsset(uid string, payload models.Asset) (models.Asset, error) {
	if payload.Item == "" {
		return models.Asset{}, fmt.Errorf("asset item must not be empty")
	}

	existing, found, err := s.findAssetByItem(uid, payload.Item)
	if err != nil {
		return models.Asset{}, err
	}
	if found && existing.IsTradable() {
		return s.buyShares(uid, existing, payload.Quantity)
	}
	if found {
		return models.Asset{}, fmt.Errorf("asset %q already exists and is not a tradable position", payload.Item)
	}

	opts, err := s.users.Options(uid)
	if err != nil {
		logger.L.Warn("Options unavailable, using default asset taxonomy", "uid", uid, "error", err)
		opts = models.DefaultOptions()
	}

	id, err := nextRecordID(s.store, store.AssetsCollection(uid))
	if err != nil {
		return models.Asset{}, err
	}
	payload.ID = id

	if opts.HasFixedAssetType(payload.AssetType) && payload.IsTradable() {
		price, err := s.prices.Lookup(payload.Item)
		if err != nil {
			logger.L.Warn("Price unavailable for new asset, falling back to acquisition value", "uid", uid, "item", payload.Item, "error", err)
			payload.CurrentAmount = payload.AcquisitionValue
		} else {
			payload.CurrentPrice = price
			payload.CurrentAmount = utils.Round2(price * float64(payload.Quantity))
		}
		if err := s.RegisterTicker(payload.Item); err != nil {
			logger.L.Warn("Failed to register ticker in stock catalog", "item", payload.Item, "error", err)
		}
	} else {
		payload.CurrentAmount = payload.AcquisitionValue
	}

	doc, err := models.ToDocument(payload)
	if err != nil {
		return models.Asset{}, err
	}
	if _, err := s.store.Add(store.AssetsCollection(uid), strconv.Itoa(id), doc); err != nil {
		return models.Asset{}, fmt.Errorf("failed to add asset for %s: %w", uid, err)
	}
	return payload, nil
}

// buyShares increases an existing position. The acquisition value grows by
// shares times the purchase-time price; when no price is available the
// position keeps its last known price.
func (s *AssetService) buyShares(uid string, asset models.Asset, shares int64) (models.Asset, error) {
	if shares <= 0 {
		return models.Asset{}, fmt.Errorf("share count must be positive")
	}

	price, err := s.prices.Lookup(asset.Item)
	if err != nil {
		logger.L.Warn("Price unavailable for buy, keeping last known price", "uid", uid, "item", asset.Item, "error", err)
		price = asset.CurrentPrice
	}

	asset.Quantity += shares
	if price > 0 {
		asset.CurrentPrice = price
		asset.AcquisitionValue = utils.Round2(asset.AcquisitionValue + float64(shares)*price)
		asset.CurrentAmount = utils.Round2(float64(asset.Quantity) * price)
	}

	if err := s.persistAsset(uid, asset); err != nil {
		return models.Asset{}, err
	}
	return asset, nil
}

// RecordStockTrade applies a buy or sell of shares against the named
// position. Sells reduce the acquisition value by the average cost of the
// sold shares and fail with ErrInsufficientShares rather than going negative.
func (s *AssetService) RecordStockTrade(uid, item, action string, shares int64) (models.Asset, error) {
	if shares <= 0 {
		return models.Asset{}, fmt.Errorf("share count must be positive")
	}

	asset, found, err := s.findAssetByItem(uid, item)
	if err != nil {
		return models.Asset{}, err
	}
	if !found {
		return models.Asset{}, store.ErrNotFound
	}
	if !asset.IsTradable() {
		return models.Asset{}, fmt.Errorf("asset %q is not a tradable position", item)
	}

	switch action {
	case "buy":
		return s.buyShares(uid, asset, shares)
	case "sell":
		if shares > asset.Quantity {
			return models.Asset{}, ErrInsufficientShares
		}
		avgCost := 0.0
		if asset.Quantity > 0 {
			avgCost = asset.AcquisitionValue / float64(asset.Quantity)
		}
		asset.Quantity -= shares
		asset.AcquisitionValue = utils.Round2(asset.AcquisitionValue - float64(shares)*avgCost)

		price, err := s.prices.Lookup(item)
		if err != nil {
			logger.L.Warn("Price unavailable for sell, keeping last known price", "uid", uid, "item", item, "error", err)
			price = asset.CurrentPrice
		} else {
			asset.CurrentPrice = price
		}
		asset.CurrentAmount = utils.Round2(float64(asset.Quantity) * price)

		if err := s.persistAsset(uid, asset); err != nil {
			return models.Asset{}, err
		}
		return asset, nil
	default:
		return models.Asset{}, fmt.Errorf("invalid trade action %q: must be \"buy\" or \"sell\"", action)
	}
}

func (s *AssetService) persistAsset(uid string, asset models.Asset) error {
	doc, err := models.ToDocument(asset)
	if err != nil {
		return err
	}
	if err := s.store.Update(store.AssetsCollection(uid), strconv.Itoa(asset.ID), doc); err != nil {
		return fmt.Errorf("failed to update asset %d for %s: %w", asset.ID, uid, err)
	}
	return nil
}

// UpdateAsset merges caller-supplied fields into an asset. The id is never
// updatable.
func (s *AssetService) UpdateAsset(uid string, assetID int, fields map[string]any) error {
	delete(fields, "id")
	return s.store.Update(store.AssetsCollection(uid), strconv.Itoa(assetID), fields)
}

// DeleteAsset removes one asset record.
func (s *AssetService) DeleteAsset(uid string, assetID int) error {
	return s.store.Delete(store.AssetsCollection(uid), strconv.Itoa(assetID))
}

// RegisterTicker inserts a ticker into the shared stock catalog with a
// freshly fetched price. Already-registered tickers are left untouched, so
// the price-fetch cost stays shared across users.
func (s *AssetService) RegisterTicker(item string) error {
	exists, err := s.store.Exists(store.StockCatalogCollection(), item)
	if err != nil {
		return fmt.Errorf("failed to check stock catalog for %s: %w", item, err)
	}
	if exists {
		return nil
	}

	price, err := s.prices.Lookup(item)
	if err != nil {
		return fmt.Errorf("cannot register ticker %s: %w", item, err)
	}

	entry, err := models.ToDocument(models.StockEntry{Item: item, CurrentPrice: price})
	if err != nil {
		return err
	}
	if _, err := s.store.Add(store.StockCatalogCollection(), item, entry); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil
		}
		return fmt.Errorf("failed to register ticker %s: %w", item, err)
	}
	logger.L.Info("Registered ticker in stock catalog", "item", item, "price", price)
	return nil
}

// StockCatalog returns every catalog entry.
func (s *AssetService) StockCatalog() ([]models.StockEntry, error) {
	docs, err := s.store.List(store.StockCatalogCollection())
	if err != nil {
		return nil, fmt.Errorf("failed to list stock catalog: %w", err)
	}
	entries := make([]models.StockEntry, 0, len(docs))
	for _, doc := range docs {
		var entry models.StockEntry
		if err := models.FromDocument(doc.Data, &entry); err != nil {
			logger.L.Warn("Skipping malformed stock catalog entry", "ticker", doc.ID, "error", err)
			continue
		}
		if entry.Item == "" {
			entry.Item = doc.ID
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Item < entries[j].Item })
	return entries, nil
}

// RefreshCatalog re-fetches the price of every catalog ticker and overwrites
// the cached value. Idempotent; a failed ticker is logged and skipped, never
// aborting the remaining refreshes. Returns refreshed and failed counts.
func (s *AssetService) RefreshCatalog() (int, int) {
	docs, err := s.store.List(store.StockCatalogCollection())
	if err != nil {
		logger.L.Error("Failed to list stock catalog for refresh", "error", err)
		return 0, 0
	}

	refreshed, failed := 0, 0
	for _, doc := range docs {
		ticker := doc.ID
		price, err := s.prices.Lookup(ticker)
		if err != nil {
			logger.L.Warn("Price refresh failed for ticker", "ticker", ticker, "error", err)
			failed++
			continue
		}
		if err := s.store.Update(store.StockCatalogCollection(), ticker, map[string]any{"current_price": price}); err != nil {
			logger.L.Warn("Failed to persist refreshed price", "ticker", ticker, "error", err)
			failed++
			continue
		}
		refreshed++
	}
	logger.L.Info("Stock catalog refresh finished", "refreshed", refreshed, "failed", failed)
	return refreshed, failed
}

// SyncUserPrices recomputes current_amount for every tradable asset the user
// holds whose ticker is in the shared catalog. Assets without a catalog price
// are left unmodified and logged.
func (s *AssetService) SyncUserPrices(uid string) error {
	catalog, err := s.store.List(store.StockCatalogCollection())
	if err != nil {
		return fmt.Errorf("failed to list stock catalog: %w", err)
	}
	prices := make(map[string]float64, len(catalog))
	for _, doc := range catalog {
		price, err := utils.CoerceNumber(doc.Data["current_price"])
		if err != nil || price <= 0 {
			continue
		}
		prices[doc.ID] = price
	}

	docs, err := s.store.List(store.AssetsCollection(uid))
	if err != nil {
		return fmt.Errorf("failed to list assets for %s: %w", uid, err)
	}

	for _, doc := range docs {
		var asset models.Asset
		if err := models.FromDocument(doc.Data, &asset); err != nil {
			logger.L.Warn("Skipping malformed asset during price sync", "uid", uid, "asset", doc.ID, "error", err)
			continue
		}
		if !asset.IsTradable() {
			continue
		}
		price, ok := prices[asset.Item]
		if !ok {
			logger.L.Warn("No catalog price for asset, leaving unmodified", "uid", uid, "item", asset.Item)
			continue
		}
		fields := map[string]any{
			"current_price":  price,
			"current_amount": utils.Round2(price * float64(asset.Quantity)),
		}
		if err := s.store.Update(store.AssetsCollection(uid), doc.ID, fields); err != nil {
			logger.L.Warn("Failed to persist synced price", "uid", uid, "item", asset.Item, "error", err)
		}
	}
	return nil
}
