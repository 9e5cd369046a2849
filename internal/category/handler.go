package category

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/kakeibo/internal/expense"
	"github.com/frahmantamala/kakeibo/internal/transport"
)

type ServiceAPI interface {
	GetSummary(ctx context.Context, filter *expense.MonthFilter) (*SummaryResponse, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI, lg *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

// GetCategories accepts the same year/month filter as the expense list.
func (h *Handler) GetCategories(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter, err := expense.ParseMonthFilter(query.Get("year"), query.Get("month"))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	summary, err := h.Service.GetSummary(r.Context(), filter)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, summary)
}
