package expense

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/frahmantamala/kakeibo/internal"
	"github.com/frahmantamala/kakeibo/internal/core/common/validation"
)

var (
	ErrInvalidAmount = internal.NewValidationError("amount must be a whole number", internal.ErrCodeInvalidAmount)
	ErrInvalidFilter = internal.NewValidationError("year must be four digits and month between 1 and 12", internal.ErrCodeInvalidFilter)

	yearPattern = regexp.MustCompile(`^\d{4}$`)
)

// Amount accepts a JSON number or a numeric string, as long as it is a
// whole number. Missing and null both decode to zero.
type Amount int64

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}

	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return ErrInvalidAmount
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*a = 0
			return nil
		}
	}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*a = Amount(n)
		return nil
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt64 {
		return ErrInvalidAmount
	}
	*a = Amount(f)
	return nil
}

// ExpenseInput is the payload accepted by create and update.
type ExpenseInput struct {
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	Category string `json:"category" validate:"required,max=100"`
	ItemName string `json:"item_name"`
	Store    string `json:"store"`
	Amount   Amount `json:"amount" validate:"gt=0"`
}

// Normalize trims surrounding whitespace so a blank category is rejected.
func (dto *ExpenseInput) Normalize() {
	dto.Date = strings.TrimSpace(dto.Date)
	dto.Category = strings.TrimSpace(dto.Category)
	dto.ItemName = strings.TrimSpace(dto.ItemName)
	dto.Store = strings.TrimSpace(dto.Store)
}

func (dto *ExpenseInput) Validate() error {
	dto.Normalize()
	if appErr := validation.Struct(dto); appErr != nil {
		return appErr
	}
	return nil
}

// ParseMonthFilter builds a filter from the year and month query values.
// A filter applies only when both are present; either one alone lists
// everything.
func ParseMonthFilter(year, month string) (*MonthFilter, error) {
	year = strings.TrimSpace(year)
	month = strings.TrimSpace(month)
	if year == "" || month == "" {
		return nil, nil
	}

	if !yearPattern.MatchString(year) {
		return nil, ErrInvalidFilter
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return nil, ErrInvalidFilter
	}
	y, _ := strconv.Atoi(year)

	return &MonthFilter{Year: y, Month: m}, nil
}
