package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var errMalformedBody = errors.New("malformed request body")

// amountField accepts a JSON string ("12,50") or number (12.5) and keeps
// the text for core parsing.
type amountField string

func (a *amountField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amountField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be a string or a number: %w", err)
	}
	*a = amountField(n.String())
	return nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", errMalformedBody, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data", errMalformedBody)
	}
	return nil
}

type createCategoryRequest struct {
	Name          string      `json:"name"`
	MonthlyBudget amountField `json:"monthly_budget"`
}

type updateCategoryRequest struct {
	Name          *string      `json:"name"`
	MonthlyBudget *amountField `json:"monthly_budget"`
}

type recordExpenseRequest struct {
	CategoryID    string      `json:"category_id"`
	Amount        amountField `json:"amount"`
	Note          string      `json:"note"`
	Date          string      `json:"date"`
	MakeRecurring bool        `json:"make_recurring"`
}

type createRecurringRequest struct {
	CategoryID string      `json:"category_id"`
	Amount     amountField `json:"amount"`
	Note       string      `json:"note"`
	DayOfMonth int         `json:"day_of_month"`
}

type setIncomeRequest struct {
	Income amountField `json:"income"`
}
