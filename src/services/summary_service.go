package services

import (
	"fmt"
	"time"

	"github.com/username/smartledger/backend/src/logger"
	"github.com/username/smartledger/backend/src/models"
	"github.com/username/smartledger/backend/src/store"
	"github.com/username/smartledger/backend/src/utils"
)

// SummaryService derives the monthly totals, distribution breakdowns, and
// cross-ledger summaries from raw expense and asset records.
type SummaryService struct {
	store    store.Store
	expenses *ExpenseService
	users    *UserService
}

func NewSummaryService(st store.Store, expenses *ExpenseService, users *UserService) *SummaryService {
	return &SummaryService{store: st, expenses: expenses, users: users}
}

// LedgerTotals are the monthly totals of one ledger. Cash and liabilities are
// informational sub-splits of total_expense, not an exclusive partition:
// records paid by other methods count only toward total_expense.
type LedgerTotals struct {
	TotalExpense     int64 `json:"total_expense"`
	CashTotal        int64 `json:"cash_total"`
	LiabilitiesTotal int64 `json:"liabilities_total"`
}

// LedgerMonthlySummary is one row of the cross-ledger monthly summary.
type LedgerMonthlySummary struct {
	LedgerName       string  `json:"ledger_name"`
	LedgerType       string  `json:"ledger_type"`
	TotalExpense     float64 `json:"total_expense"`
	TotalCash        float64 `json:"total_cash"`
	TotalLiabilities float64 `json:"total_liabilities"`
}

// SummaryData is the composite home-screen payload: the requested day's
// records, the month's distributions, asset standing, and the cross-ledger
// summary.
type SummaryData struct {
	Name                    string                 `json:"name"`
	Expenses                []map[string]any       `json:"expenses"`
	MonthlyExpenses         []map[string]any       `json:"monthly_expenses"`
	ExpenseDistribution     map[string]int64       `json:"expense_distribution"`
	AssetDistribution       map[string]float64     `json:"asset_distribution"`
	LiabilitiesDistribution map[string]int64       `json:"liabilities_distribution"`
	Assets                  []map[string]any       `json:"assets"`
	TotalAssetAmount        float64                `json:"total_asset_amount"`
	TotalLiabilitiesAmount  int64                  `json:"total_liabilities_amount"`
	TotalCost               int64                  `json:"total_cost"`
	TotalIncome             int64                  `json:"total_income"`
	AllLedgersMonthlyAmount []LedgerMonthlySummary `json:"all_ledgers_monthly_amount"`
}

// liabilityMethods returns the user's configured liability payment methods.
// An absent or unreadable options document falls back to the default
// taxonomy with a warning.
func (s *SummaryService) liabilityMethods(uid string) []string {
	opts, err := s.users.Options(uid)
	if err != nil {
		logger.L.Warn("Options unavailable, using default liabilities list", "uid", uid, "error", err)
		opts = models.DefaultOptions()
	}
	return opts.AssetType.Liabilities
}

// MonthlyLedgerTotals computes one ledger's totals for a month. Only
// expense-type records count; non-coercible amounts are skipped with a
// warning, never fatal.
func (s *SummaryService) MonthlyLedgerTotals(uid, ledgerID string, kind models.LedgerKind, year int, month time.Month) (LedgerTotals, error) {
	records, err := s.expenses.MonthlyExpenses(uid, ledgerID, kind, year, month)
	if err != nil {
		return LedgerTotals{}, err
	}
	return s.totalsFromRecords(uid, ledgerID, records), nil
}

func (s *SummaryService) totalsFromRecords(uid, ledgerID string, records []map[string]any) LedgerTotals {
	liabilities := s.liabilityMethods(uid)
	isLiability := make(map[string]bool, len(liabilities))
	for _, m := range liabilities {
		isLiability[m] = true
	}

	var totals LedgerTotals
	for _, rec := range records {
		txType, _ := rec["transactionType"].(string)
		if txType != models.TransactionTypeExpense {
			continue
		}
		amount, err := utils.CoerceAmount(rec["amount"])
		if err != nil {
			logger.L.Warn("Skipping record with non-numeric amount", "ledger", ledgerID, "error", err)
			continue
		}
		totals.TotalExpense += amount

		method, _ := rec["payment_method"].(string)
		if method == models.PaymentMethodCash {
			totals.CashTotal += amount
		}
		if isLiability[method] {
			totals.LiabilitiesTotal += amount
		}
	}
	return totals
}

// AllLedgersMonthlySummary produces one summary row per ledger the user
// belongs to. Malformed shared membership entries and per-ledger read
// failures are skipped with a warning; the rest of the batch proceeds.
func (s *SummaryService) AllLedgersMonthlySummary(uid string, year int, month time.Month) ([]LedgerMonthlySummary, error) {
	userDoc, err := s.store.Get(store.UsersCollection(), uid)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", uid, err)
	}
	var user models.User
	if err := models.FromDocument(userDoc, &user); err != nil {
		return nil, err
	}

	rows := make([]LedgerMonthlySummary, 0, len(user.Ledgers.Personal)+len(user.Ledgers.Shared))

	for _, name := range user.Ledgers.Personal {
		totals, err := s.MonthlyLedgerTotals(uid, name, models.LedgerPersonal, year, month)
		if err != nil {
			logger.L.Warn("Skipping personal ledger in summary", "uid", uid, "ledger", name, "error", err)
			continue
		}
		rows = append(rows, summaryRow(name, models.LedgerPersonal, totals))
	}

	for _, ref := range user.Ledgers.Shared {
		if ref.InviteCode == "" || ref.Name == "" {
			logger.L.Warn("Skipping malformed shared ledger membership entry", "uid", uid, "entry", ref)
			continue
		}
		totals, err := s.MonthlyLedgerTotals(uid, ref.InviteCode, models.LedgerShared, year, month)
		if err != nil {
			logger.L.Warn("Skipping shared ledger in summary", "uid", uid, "inviteCode", ref.InviteCode, "error", err)
			continue
		}
		rows = append(rows, summaryRow(ref.Name, models.LedgerShared, totals))
	}

	return rows, nil
}

func summaryRow(name string, kind models.LedgerKind, totals LedgerTotals) LedgerMonthlySummary {
	return LedgerMonthlySummary{
		LedgerName:       name,
		LedgerType:       string(kind),
		TotalExpense:     utils.Round2(float64(totals.TotalExpense)),
		TotalCash:        utils.Round2(float64(totals.CashTotal)),
		TotalLiabilities: utils.Round2(float64(totals.LiabilitiesTotal)),
	}
}

// legacyAssetTypes seed the asset distribution alongside the user's
// configured types, so holdings categorized before a taxonomy edit still
// show up.
var legacyAssetTypes = []string{"美債", "ETF", "股票", "定存", "活存", "虛擬貨幣"}

// Summary composes the full home-screen payload for one day. An unparseable
// date falls back to today with a warning. Missing or malformed options
// degrade all three distributions to empty maps instead of failing the call.
func (s *SummaryService) Summary(uid, dateStr, ledgerID string, kind models.LedgerKind) (SummaryData, error) {
	day, err := utils.ParseLedgerDate(dateStr)
	if err != nil {
		logger.L.Warn("Invalid summary date, falling back to today", "uid", uid, "date", dateStr, "error", err)
		day = time.Now()
	}
	dayStr := utils.FormatLedgerDate(day)

	user, err := s.users.UserDetails(uid)
	if err != nil {
		return SummaryData{}, err
	}

	monthly, err := s.expenses.MonthlyExpenses(uid, ledgerID, kind, day.Year(), day.Month())
	if err != nil {
		return SummaryData{}, err
	}

	data := SummaryData{
		Name:                    user.Username,
		MonthlyExpenses:         monthly,
		Expenses:                []map[string]any{},
		ExpenseDistribution:     map[string]int64{},
		AssetDistribution:       map[string]float64{},
		LiabilitiesDistribution: map[string]int64{},
		Assets:                  []map[string]any{},
	}

	for _, rec := range monthly {
		if recDate, _ := rec["date"].(string); recDate == dayStr {
			data.Expenses = append(data.Expenses, rec)
			amount, err := utils.CoerceAmount(rec["amount"])
			if err != nil {
				logger.L.Warn("Skipping record with non-numeric amount", "uid", uid, "error", err)
				continue
			}
			switch rec["transactionType"] {
			case models.TransactionTypeExpense:
				data.TotalCost += amount
			case models.TransactionTypeIncome:
				data.TotalIncome += amount
			}
		}
	}

	opts, optsErr := s.users.Options(uid)
	if optsErr != nil {
		logger.L.Warn("Options unavailable, summary distributions degrade to empty", "uid", uid, "error", optsErr)
	} else {
		s.fillDistributions(&data, opts, monthly)
	}

	assetDocs, err := s.store.List(store.AssetsCollection(uid))
	if err != nil {
		logger.L.Warn("Assets unavailable for summary", "uid", uid, "error", err)
	} else {
		for _, doc := range assetDocs {
			data.Assets = append(data.Assets, doc.Data)
			amount, err := utils.CoerceNumber(doc.Data["current_amount"])
			if err != nil {
				logger.L.Warn("Skipping asset with non-numeric current amount", "uid", uid, "error", err)
				continue
			}
			data.TotalAssetAmount += amount
			if optsErr == nil {
				if assetType, _ := doc.Data["asset_type"].(string); assetType != "" {
					if _, known := data.AssetDistribution[assetType]; known {
						data.AssetDistribution[assetType] += amount
					}
				}
			}
		}
		data.TotalAssetAmount = utils.Round2(data.TotalAssetAmount)
		for k, v := range data.AssetDistribution {
			data.AssetDistribution[k] = utils.Round2(v)
		}
	}

	summary, err := s.AllLedgersMonthlySummary(uid, day.Year(), day.Month())
	if err != nil {
		logger.L.Warn("Cross-ledger summary unavailable", "uid", uid, "error", err)
		summary = []LedgerMonthlySummary{}
	}
	data.AllLedgersMonthlyAmount = summary

	return data, nil
}

// fillDistributions seeds the distribution maps with the user's known
// category keys and accumulates the month's records into them. Unrecognized
// categories stay excluded: the maps only ever hold seeded keys.
func (s *SummaryService) fillDistributions(data *SummaryData, opts models.Options, monthly []map[string]any) {
	for _, category := range opts.TransactionType.Transactions {
		data.ExpenseDistribution[category] = 0
	}
	for _, assetType := range opts.AssetType.Assets.CurrentAssets {
		data.AssetDistribution[assetType] = 0
	}
	for _, assetType := range opts.AssetType.Assets.FixedAssets {
		data.AssetDistribution[assetType] = 0
	}
	for _, assetType := range legacyAssetTypes {
		data.AssetDistribution[assetType] = 0
	}
	for _, method := range opts.AssetType.Liabilities {
		data.LiabilitiesDistribution[method] = 0
	}

	for _, rec := range monthly {
		amount, err := utils.CoerceAmount(rec["amount"])
		if err != nil {
			continue
		}
		if rec["transactionType"] == models.TransactionTypeExpense {
			if category, _ := rec["category"].(string); category != "" {
				if _, known := data.ExpenseDistribution[category]; known {
					data.ExpenseDistribution[category] += amount
				}
			}
		}
		if method, _ := rec["payment_method"].(string); method != "" {
			if _, known := data.LiabilitiesDistribution[method]; known {
				data.LiabilitiesDistribution[method] += amount
				data.TotalLiabilitiesAmount += amount
			}
		}
	}
}
