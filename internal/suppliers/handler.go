package suppliers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/procuredocs/procuredocs/internal/platform/httpx"
	"github.com/procuredocs/procuredocs/internal/shared"
)

// Handler exposes the supplier resolution endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New()
	// Report request fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{logger: logger, service: service, validator: v}
}

// Resolve handles POST /resolve-supplier.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	accountID, err := h.account(r, req.UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.validateRequest(accountID, req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid_input", "Missing required fields", err.Error())
		return
	}

	res, err := h.service.Resolve(r.Context(), accountID, req.SupplierName)
	if err != nil {
		h.respondError(w, r, err, slog.String("user_id", accountID), slog.String("supplier_name", req.SupplierName))
		return
	}

	h.logger.Info("supplier resolved",
		slog.String("user_id", accountID),
		slog.String("supplier_id", res.SupplierID.String()),
		slog.Bool("is_new", res.IsNew),
	)
	httpx.JSON(w, http.StatusOK, resolveResponse{
		Success:    true,
		SupplierID: res.SupplierID,
		IsNew:      res.IsNew,
		Supplier:   res.Supplier,
	})
}

// Update handles POST /update-supplier.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	accountID, err := h.account(r, req.UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.validateRequest(accountID, req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid_input", "Missing required fields", err.Error())
		return
	}
	supplierID, err := uuid.Parse(req.SupplierID)
	if err != nil {
		h.respondError(w, r, fmt.Errorf("%w: supplierId is not a valid id", ErrInvalidInput))
		return
	}
	fields, err := ParseUpdateFields(req.UpdateData)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	updated, err := h.service.Update(r.Context(), accountID, supplierID, fields)
	if err != nil {
		h.respondError(w, r, err, slog.String("user_id", accountID), slog.String("supplier_id", supplierID.String()))
		return
	}

	httpx.JSON(w, http.StatusOK, updateResponse{
		Success:  true,
		Message:  "Supplier updated successfully",
		Supplier: updated,
	})
}

// List handles GET /suppliers.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	accountID, err := h.account(r, q.Get("userId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	page, err := queryInt(q, "page")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	limit, err := queryInt(q, "limit")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	filters := ListFilters{
		Page:    page,
		Limit:   limit,
		Search:  strings.TrimSpace(q.Get("search")),
		SortBy:  q.Get("sort"),
		SortDir: q.Get("dir"),
	}
	if status := q.Get("status"); status != "" {
		st := Status(status)
		filters.Status = &st
	}

	suppliers, total, err := h.service.List(r.Context(), accountID, filters)
	if err != nil {
		h.respondError(w, r, err, slog.String("user_id", accountID))
		return
	}
	filters = filters.normalized()
	httpx.JSON(w, http.StatusOK, listResponse{Data: suppliers, Total: total, Page: filters.Page, Limit: filters.Limit})
}

// Show handles GET /suppliers/{id}.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.account(r, r.URL.Query().Get("userId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, fmt.Errorf("%w: invalid supplier id", ErrInvalidInput))
		return
	}

	supplier, err := h.service.Get(r.Context(), accountID, id)
	if err != nil {
		h.respondError(w, r, err, slog.String("user_id", accountID), slog.String("supplier_id", id.String()))
		return
	}
	httpx.JSON(w, http.StatusOK, supplier)
}

func (h *Handler) account(r *http.Request, requested string) (string, error) {
	return shared.ResolveAccount(r.Context(), strings.TrimSpace(requested))
}

// validateRequest lists every missing or malformed field of req.
func (h *Handler) validateRequest(accountID string, req any) error {
	var problems []string
	if accountID == "" {
		problems = append(problems, "userId is required")
	}
	if err := h.validator.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		for _, fe := range verrs {
			problems = append(problems, fieldProblem(fe))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(problems, "; "))
}

func fieldProblem(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min":
		return fe.Field() + " must have at least " + fe.Param() + " entry"
	default:
		return fe.Field() + " failed " + fe.Tag()
	}
}

// queryInt reads an optional positive integer query parameter. Absent means 0.
func queryInt(q url.Values, key string) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", ErrInvalidInput, key)
	}
	return n, nil
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error, attrs ...any) {
	status, code, message := classify(err)
	detail := ""
	if status < http.StatusInternalServerError {
		detail = err.Error()
	} else {
		h.logger.Error(message, append(attrs, slog.String("path", r.URL.Path), slog.Any("error", err))...)
	}
	httpx.Error(w, status, code, message, detail)
}

func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input", "Missing or invalid fields"
	case errors.Is(err, shared.ErrAccountMismatch):
		return http.StatusForbidden, "forbidden", "User does not match authenticated account"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found", "Supplier not found"
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, "conflict", "Supplier name already in use"
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusInternalServerError, "store_unavailable", "Supplier store is not configured"
	case errors.Is(err, ErrSearchFailed):
		return http.StatusInternalServerError, "search_failed", "Failed to search suppliers"
	case errors.Is(err, ErrCreateFailed):
		return http.StatusInternalServerError, "create_failed", "Failed to create supplier"
	case errors.Is(err, ErrUpdateFailed):
		return http.StatusInternalServerError, "update_failed", "Failed to update supplier"
	default:
		return http.StatusInternalServerError, "internal_error", "Internal error"
	}
}
