// Package category reports spending per category. Categories are the free
// text values stored on expenses; there is no separate category table.
package category

import (
	categoryDatamodel "github.com/frahmantamala/kakeibo/internal/core/datamodel/category"
)

type Summary struct {
	Name         string `json:"name"`
	ExpenseCount int64  `json:"expense_count"`
	TotalAmount  int64  `json:"total_amount"`
}

type SummaryResponse struct {
	Categories  []Summary `json:"categories"`
	TotalAmount int64     `json:"total_amount"`
}

func FromDataModel(s *categoryDatamodel.Summary) Summary {
	return Summary{
		Name:         s.Name,
		ExpenseCount: s.ExpenseCount,
		TotalAmount:  s.TotalAmount,
	}
}

func NewSummaryResponse(rows []*categoryDatamodel.Summary) SummaryResponse {
	resp := SummaryResponse{Categories: make([]Summary, 0, len(rows))}
	for _, row := range rows {
		resp.Categories = append(resp.Categories, FromDataModel(row))
		resp.TotalAmount += row.TotalAmount
	}
	return resp
}
