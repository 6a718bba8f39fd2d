package payrollhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"crewpay/internal/domain/payroll"
	"crewpay/internal/export"
	"crewpay/internal/export/ach"
	cryptoutil "crewpay/internal/platform/crypto"
	"crewpay/internal/transport/http/api"
	"crewpay/internal/transport/http/middleware"
	"crewpay/internal/transport/http/shared"
)

type PayrollService interface {
	CreateRun(ctx context.Context, weekEnding time.Time) (payroll.Run, error)
	GetRun(ctx context.Context, runID string) (payroll.Run, []payroll.LineItem, error)
	SetWeekEnding(ctx context.Context, runID string, weekEnding time.Time) (payroll.Run, error)
	AddItem(ctx context.Context, runID string, in payroll.Inputs) (payroll.LineItem, error)
	UpdateItem(ctx context.Context, runID, itemID string, in payroll.Inputs) (payroll.LineItem, error)
	Calculate(ctx context.Context, runID string) ([]payroll.LineItem, error)
	Finalize(ctx context.Context, runID string) (payroll.Run, error)
	MarkPaid(ctx context.Context, runID string) (payroll.Run, error)
	ListExports(ctx context.Context, runID string) ([]payroll.ExportRecord, error)
}

type Exporter interface {
	Export(ctx context.Context, runID string, kind export.Kind) (export.Result, error)
}

type Handler struct {
	Payroll PayrollService
	Exports Exporter
}

func NewHandler(svc PayrollService, exports Exporter) *Handler {
	return &Handler{Payroll: svc, Exports: exports}
}

type runPayload struct {
	WeekEnding string `json:"weekEnding"`
}

type runResponse struct {
	Run   payroll.Run        `json:"run"`
	Items []payroll.LineItem `json:"items"`
}

type achReport struct {
	RunID       string            `json:"runId"`
	FileName    string            `json:"fileName"`
	Checksum    string            `json:"checksum"`
	EntryCount  int               `json:"entryCount"`
	EntryHash   string            `json:"entryHash"`
	TotalCredit payroll.Money     `json:"totalCredit"`
	BlockCount  int               `json:"blockCount"`
	Excluded    []achExcludedItem `json:"excluded"`
	Skipped     []ach.SkippedItem `json:"skipped"`
	Status      payroll.RunStatus `json:"status"`
}

type achExcludedItem struct {
	Index    int    `json:"index"`
	ItemID   string `json:"itemId"`
	Employee string `json:"employee"`
	Field    string `json:"field"`
	Reason   string `json:"reason"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/payroll/runs", func(r chi.Router) {
		r.Post("/", h.handleCreateRun)
		r.Get("/{runID}", h.handleGetRun)
		r.Put("/{runID}", h.handleSetWeekEnding)
		r.Post("/{runID}/items", h.handleAddItem)
		r.Put("/{runID}/items/{itemID}", h.handleUpdateItem)
		r.Post("/{runID}/calculate", h.handleCalculate)
		r.Post("/{runID}/finalize", h.handleFinalize)
		r.Post("/{runID}/paid", h.handleMarkPaid)
		r.Get("/{runID}/exports", h.handleListExports)
		r.Get("/{runID}/export/{kind}", h.handleExport)
	})
}

func (h *Handler) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	weekEnding, ok := decodeWeekEnding(w, r)
	if !ok {
		return
	}
	run, err := h.Payroll.CreateRun(r.Context(), weekEnding)
	if err != nil {
		writeError(w, r, err, "payroll_run_create_failed")
		return
	}
	api.Created(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, items, err := h.Payroll.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, r, err, "payroll_run_failed")
		return
	}
	api.Success(w, runResponse{Run: run, Items: maskItems(items)}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSetWeekEnding(w http.ResponseWriter, r *http.Request) {
	weekEnding, ok := decodeWeekEnding(w, r)
	if !ok {
		return
	}
	run, err := h.Payroll.SetWeekEnding(r.Context(), chi.URLParam(r, "runID"), weekEnding)
	if err != nil {
		writeError(w, r, err, "payroll_run_update_failed")
		return
	}
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInputs(w, r)
	if !ok {
		return
	}
	item, err := h.Payroll.AddItem(r.Context(), chi.URLParam(r, "runID"), in)
	if err != nil {
		writeError(w, r, err, "payroll_item_create_failed")
		return
	}
	api.Created(w, maskItem(item), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInputs(w, r)
	if !ok {
		return
	}
	item, err := h.Payroll.UpdateItem(r.Context(), chi.URLParam(r, "runID"), chi.URLParam(r, "itemID"), in)
	if err != nil {
		writeError(w, r, err, "payroll_item_update_failed")
		return
	}
	api.Success(w, maskItem(item), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	items, err := h.Payroll.Calculate(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, r, err, "payroll_calculate_failed")
		return
	}
	api.Success(w, maskItems(items), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleFinalize(w http.ResponseWriter, r *http.Request) {
	run, err := h.Payroll.Finalize(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, r, err, "payroll_finalize_failed")
		return
	}
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	run, err := h.Payroll.MarkPaid(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, r, err, "payroll_paid_failed")
		return
	}
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListExports(w http.ResponseWriter, r *http.Request) {
	records, err := h.Payroll.ListExports(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, r, err, "payroll_exports_failed")
		return
	}
	if records == nil {
		records = []payroll.ExportRecord{}
	}
	api.Success(w, records, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	kind, err := export.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		api.Fail(w, http.StatusNotFound, "unknown_export_kind", "export kind must be certified, summary, summary-csv or ach", middleware.GetRequestID(r.Context()))
		return
	}
	res, err := h.Exports.Export(r.Context(), chi.URLParam(r, "runID"), kind)
	if err != nil {
		writeError(w, r, err, "export_failed")
		return
	}

	fileName := kind.FileName(res.Run)
	if res.ACH != nil {
		w.Header().Set("X-ACH-Excluded", strconv.Itoa(len(res.ACH.Failures)))
		if r.URL.Query().Get("format") == "json" {
			api.Success(w, newACHReport(res, fileName), middleware.GetRequestID(r.Context()))
			return
		}
	}

	w.Header().Set("Content-Type", kind.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", fileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.Header().Set("X-Checksum-XXH64", res.Artifact.Checksum)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Data); err != nil {
		slog.Warn("export stream failed", "runId", res.Run.ID, "kind", string(kind), "err", err)
	}
}

func newACHReport(res export.Result, fileName string) achReport {
	report := achReport{
		RunID:       res.Run.ID,
		FileName:    fileName,
		Checksum:    res.Artifact.Checksum,
		EntryCount:  res.ACH.EntryCount,
		EntryHash:   fmt.Sprintf("%010d", res.ACH.EntryHash),
		TotalCredit: res.ACH.TotalCredit,
		BlockCount:  res.ACH.BlockCount,
		Excluded:    make([]achExcludedItem, 0, len(res.ACH.Failures)),
		Skipped:     res.ACH.Skipped,
		Status:      res.Run.Status,
	}
	if report.Skipped == nil {
		report.Skipped = []ach.SkippedItem{}
	}
	for _, failure := range res.ACH.Failures {
		report.Excluded = append(report.Excluded, achExcludedItem{
			Index:    failure.Index,
			ItemID:   failure.ItemID,
			Employee: failure.Employee,
			Field:    failure.Field,
			Reason:   failure.Err.Error(),
		})
	}
	return report
}

func decodeWeekEnding(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	var payload runPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return time.Time{}, false
	}
	validator := shared.NewValidator()
	validator.Required("weekEnding", payload.WeekEnding, "is required")
	var weekEnding time.Time
	if !validator.HasIssues() {
		weekEnding, _ = validator.Date("weekEnding", payload.WeekEnding)
	}
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return time.Time{}, false
	}
	return weekEnding, true
}

func decodeInputs(w http.ResponseWriter, r *http.Request) (payroll.Inputs, bool) {
	var payload payroll.ItemPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return payroll.Inputs{}, false
	}
	validator := shared.NewValidator()
	validator.Required("employeeName", payload.EmployeeName, "is required")
	validator.Enum("accountType", payload.AccountType, []string{payroll.AccountTypeChecking, payroll.AccountTypeSavings}, "must be checking or savings")
	in, err := payload.Inputs()
	var missing payroll.ValidationErrors
	if errors.As(err, &missing) {
		validator.Merge(validationIssues(missing))
	}
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return payroll.Inputs{}, false
	}
	return in, true
}

func maskItem(item payroll.LineItem) payroll.LineItem {
	item.BankAccount = cryptoutil.Mask(item.BankAccount)
	return item
}

func maskItems(items []payroll.LineItem) []payroll.LineItem {
	out := make([]payroll.LineItem, len(items))
	for i, item := range items {
		out[i] = maskItem(item)
	}
	return out
}

// writeError maps domain errors onto status codes: validation 400, missing
// 404, lifecycle 409.
func writeError(w http.ResponseWriter, r *http.Request, err error, fallbackCode string) {
	requestID := middleware.GetRequestID(r.Context())

	var many payroll.ValidationErrors
	var one *payroll.ValidationError
	switch {
	case errors.As(err, &many):
		shared.FailValidation(w, requestID, validationIssues(many))
	case errors.As(err, &one):
		shared.FailValidation(w, requestID, validationIssues(payroll.ValidationErrors{one}))
	case errors.Is(err, payroll.ErrRunNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "payroll run not found", requestID)
	case errors.Is(err, payroll.ErrItemNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "line item not found", requestID)
	case errors.Is(err, payroll.ErrInvalidTransition),
		errors.Is(err, payroll.ErrWeekEndingFrozen),
		errors.Is(err, payroll.ErrItemFrozen),
		errors.Is(err, payroll.ErrNotCalculated),
		errors.Is(err, payroll.ErrRunNotFinalized),
		errors.Is(err, payroll.ErrRunChanged):
		api.Fail(w, http.StatusConflict, "invalid_state", err.Error(), requestID)
	case errors.Is(err, export.ErrACHNotConfigured):
		api.Fail(w, http.StatusConflict, "ach_not_configured", "ACH originator settings are missing", requestID)
	default:
		slog.Error("payroll request failed", "path", r.URL.Path, "requestId", requestID, "err", err)
		api.Fail(w, http.StatusInternalServerError, fallbackCode, "internal error", requestID)
	}
}

func validationIssues(errs payroll.ValidationErrors) []shared.ValidationIssue {
	issues := make([]shared.ValidationIssue, 0, len(errs))
	for _, e := range errs {
		field := e.Field
		if e.Item != "" {
			field = e.Item + "." + e.Field
		}
		issues = append(issues, shared.ValidationIssue{Field: field, Reason: e.Reason})
	}
	return issues
}
