package expense

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/kakeibo/internal"
	"github.com/frahmantamala/kakeibo/internal/transport"
	"github.com/frahmantamala/kakeibo/pkg/logger"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	ListExpenses(ctx context.Context, filter *MonthFilter) ([]*Expense, error)
	CreateExpense(ctx context.Context, input ExpenseInput) (*Expense, error)
	UpdateExpense(ctx context.Context, id int64, input ExpenseInput) (*Expense, error)
	DeleteExpense(ctx context.Context, id int64) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI, lg *slog.Logger) *Handler {
	if lg == nil {
		lg = logger.LoggerWrapper()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter, err := ParseMonthFilter(query.Get("year"), query.Get("month"))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	expenses, err := h.Service.ListExpenses(r.Context(), filter)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, expenses)
}

func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var input ExpenseInput
	if err := h.DecodeJSON(r, &input); err != nil {
		logger.From(r.Context()).Warn("CreateExpense: invalid request body", "error", err)
		h.HandleServiceError(w, r, err)
		return
	}

	created, err := h.Service.CreateExpense(r.Context(), input)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := expenseID(r)
	if !ok {
		h.HandleServiceError(w, r, internal.ErrExpenseNotFound)
		return
	}

	var input ExpenseInput
	if err := h.DecodeJSON(r, &input); err != nil {
		logger.From(r.Context()).Warn("UpdateExpense: invalid request body", "error", err, "expense_id", id)
		h.HandleServiceError(w, r, err)
		return
	}

	updated, err := h.Service.UpdateExpense(r.Context(), id, input)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := expenseID(r)
	if !ok {
		h.HandleServiceError(w, r, internal.ErrExpenseNotFound)
		return
	}

	if err := h.Service.DeleteExpense(r.Context(), id); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Expense deleted successfully",
	})
}

// expenseID parses the {id} path parameter. Ids that cannot name a row are
// reported as not found rather than malformed.
func expenseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
