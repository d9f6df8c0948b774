package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/username/smartledger/backend/src/config"
	"github.com/username/smartledger/backend/src/logger"
	"github.com/username/smartledger/backend/src/models"
	"github.com/username/smartledger/backend/src/security/validation"
	"github.com/username/smartledger/backend/src/services"
	"github.com/username/smartledger/backend/src/store"
	"github.com/username/smartledger/backend/src/utils"
)

// ExpenseHandler covers the record CRUD and the CSV import/export of one
// ledger at a time. The target ledger comes from the "ledger" and "type"
// query parameters; type defaults to personal.
type ExpenseHandler struct {
	expenseService *services.ExpenseService
}

func NewExpenseHandler(expenseService *services.ExpenseService) *ExpenseHandler {
	return &ExpenseHandler{expenseService: expenseService}
}

// ledgerParams resolves the ledger id and kind of a request.
func ledgerParams(r *http.Request) (string, models.LedgerKind, error) {
	ledgerID := r.URL.Query().Get("ledger")
	if ledgerID == "" {
		ledgerID = models.DefaultPersonalLedgerID
	}
	kindStr := r.URL.Query().Get("type")
	if kindStr == "" {
		kindStr = string(models.LedgerPersonal)
	}
	kind, err := models.ParseLedgerKind(kindStr)
	if err != nil {
		return "", "", err
	}
	return ledgerID, kind, nil
}

// HandleSubmitExpense validates and stores a new record, assigning the next
// per-ledger id.
func (h *ExpenseHandler) HandleSubmitExpense(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	ledgerID, kind, err := ledgerParams(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, config.Cfg.MaxUploadSizeBytes))
	if err != nil {
		utils.SendJSONError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateExpensePayload(body); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var exp models.Expense
	if err := json.Unmarshal(body, &exp); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	id, err := h.expenseService.AddExpense(identity.UID, ledgerID, kind, exp)
	if err != nil {
		logger.L.Error("Failed to add expense", "uid", identity.UID, "ledger", ledgerID, "error", err)
		utils.SendJSONError(w, "Failed to add record", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, map[string]any{"message": "record added", "id": id}, http.StatusCreated)
}

// HandleGetRecords returns a ledger's records for a month when year/month are
// given, otherwise all of them. When a page or limit parameter is present the
// result is paginated as {"records": [...], "hasMore": bool}.
func (h *ExpenseHandler) HandleGetRecords(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	ledgerID, kind, err := ledgerParams(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var records []map[string]any
	if r.URL.Query().Get("year") != "" || r.URL.Query().Get("month") != "" {
		year, month, err := yearMonthParams(r)
		if err != nil {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		records, err = h.expenseService.MonthlyExpenses(identity.UID, ledgerID, kind, year, month)
		if err != nil {
			logger.L.Error("Failed to list monthly records", "uid", identity.UID, "ledger", ledgerID, "error", err)
			utils.SendJSONError(w, "Failed to list records", http.StatusInternalServerError)
			return
		}
	} else {
		records, err = h.expenseService.ListExpenses(identity.UID, ledgerID, kind)
		if err != nil {
			logger.L.Error("Failed to list records", "uid", identity.UID, "ledger", ledgerID, "error", err)
			utils.SendJSONError(w, "Failed to list records", http.StatusInternalServerError)
			return
		}
	}

	if r.URL.Query().Get("page") != "" || r.URL.Query().Get("limit") != "" {
		page, limit, err := pageParams(r)
		if err != nil {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		pageRecords, hasMore := paginateRecords(records, page, limit)
		utils.SendJSON(w, map[string]any{"records": pageRecords, "hasMore": hasMore}, http.StatusOK)
		return
	}
	utils.SendJSON(w, records, http.StatusOK)
}

// paginateRecords slices one page out of the full record list.
func paginateRecords(records []map[string]any, page, limit int) ([]map[string]any, bool) {
	start := (page - 1) * limit
	end := start + limit
	if start > len(records) {
		start = len(records)
	}
	hasMore := len(records) > end
	if end > len(records) {
		end = len(records)
	}
	return records[start:end], hasMore
}

// HandleRecordsByDateRange returns records with start <= date <= end.
func (h *ExpenseHandler) HandleRecordsByDateRange(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	ledgerID, kind, err := ledgerParams(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	records, err := h.expenseService.ExpensesByDateRange(identity.UID, ledgerID, kind, start, end)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	utils.SendJSON(w, records, http.StatusOK)
}

func (h *ExpenseHandler) HandleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	ledgerID, kind, err := ledgerParams(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	recordID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		utils.SendJSONError(w, "Invalid record id", http.StatusBadRequest)
		return
	}

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil || len(fields) == 0 {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.expenseService.UpdateExpense(identity.UID, ledgerID, kind, recordID, fields); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.SendJSONError(w, "Record not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to update record", "uid", identity.UID, "ledger", ledgerID, "id", recordID, "error", err)
		utils.SendJSONError(w, "Failed to update record", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, map[string]string{"message": "record updated"}, http.StatusOK)
}

func (h *ExpenseHandler) HandleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	ledgerID, kind, err := ledgerParams(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	recordID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		utils.SendJSONError(w, "Invalid record id", http.StatusBadRequest)
		return
	}

	if err := h.expenseService.DeleteExpense(identity.UID, ledgerID, kind, recordID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.SendJSONError(w, "Record not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to delete record", "uid", identity.UID, "ledger", ledgerID, "id", recordID, "error", err)
		utils.SendJSONError(w, "Failed to delete record", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, map[string]string{"message": "record deleted"}, http.StatusOK)
}

// HandleExportCSV streams the ledger's records as a CSV download.
func (h *ExpenseHandler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	ledgerID, kind, err := ledgerParams(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := h.expenseService.ListExpenses(identity.UID, ledgerID, kind)
	if err != nil {
		logger.L.Error("Failed to list records for export", "uid", identity.UID, "ledger", ledgerID, "error", err)
		utils.SendJSONError(w, "Failed to export records", http.StatusInternalServerError)
		return
	}

	data, err := utils.ExpensesToCSV(records)
	if err != nil {
		logger.L.Error("Failed to render CSV", "uid", identity.UID, "ledger", ledgerID, "error", err)
		utils.SendJSONError(w, "Failed to export records", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ledgerID+".csv"))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// HandleImportCSV bulk-imports records from an uploaded CSV. The whole file
// is validated before the first write, so a bad row never leaves a partial
// import behind.
func (h *ExpenseHandler) HandleImportCSV(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	ledgerID, kind, err := ledgerParams(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := validation.ValidateClientContentType(r.Header.Get("Content-Type")); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	}

	limited := io.LimitReader(r.Body, config.Cfg.MaxUploadSizeBytes)
	expenses, err := utils.ExpensesFromCSV(limited)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	imported := 0
	for _, exp := range expenses {
		if _, err := h.expenseService.AddExpense(identity.UID, ledgerID, kind, exp); err != nil {
			logger.L.Error("CSV import stopped on failed write", "uid", identity.UID, "ledger", ledgerID, "imported", imported, "error", err)
			utils.SendJSONError(w, fmt.Sprintf("import failed after %d records", imported), http.StatusInternalServerError)
			return
		}
		imported++
	}
	utils.SendJSON(w, map[string]any{"message": "import complete", "imported": imported}, http.StatusCreated)
}

// pageParams reads page and limit query parameters, defaulting to the first
// page of 15 records.
func pageParams(r *http.Request) (int, int, error) {
	page, limit := 1, 15
	if pStr := r.URL.Query().Get("page"); pStr != "" {
		p, err := strconv.Atoi(pStr)
		if err != nil || p < 1 {
			return 0, 0, fmt.Errorf("invalid page %q", pStr)
		}
		page = p
	}
	if lStr := r.URL.Query().Get("limit"); lStr != "" {
		l, err := strconv.Atoi(lStr)
		if err != nil || l < 1 {
			return 0, 0, fmt.Errorf("invalid limit %q", lStr)
		}
		limit = l
	}
	return page, limit, nil
}

// yearMonthParams reads year and month query parameters, defaulting to the
// current month.
func yearMonthParams(r *http.Request) (int, time.Month, error) {
	now := time.Now()
	year, month := now.Year(), now.Month()

	if yStr := r.URL.Query().Get("year"); yStr != "" {
		y, err := strconv.Atoi(yStr)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid year %q", yStr)
		}
		year = y
	}
	if mStr := r.URL.Query().Get("month"); mStr != "" {
		m, err := strconv.Atoi(mStr)
		if err != nil || m < 1 || m > 12 {
			return 0, 0, fmt.Errorf("invalid month %q", mStr)
		}
		month = time.Month(m)
	}
	return year, month, nil
}
