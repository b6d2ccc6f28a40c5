// Package shared holds the JSON plumbing common to all HTTP handlers: the
// error envelope, response writing, and request parsing helpers.
package shared

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"metrology/internal/domain"
	domainerrors "metrology/pkg/domain-errors"
)

// ErrorBody is the error envelope. Code is stable vocabulary; Constraint
// names the violated database constraint when one applies.
type ErrorBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Constraint string `json:"constraint,omitempty"`
}

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a coded error into the envelope. Plain errors come
// out as internal without leaking their message.
func WriteError(w http.ResponseWriter, err error) {
	code := domainerrors.CodeOf(err)
	body := ErrorBody{
		Code:       string(code),
		Message:    "internal error",
		Constraint: domainerrors.ConstraintOf(err),
	}
	if de, ok := err.(*domainerrors.Error); ok && code != domainerrors.CodeInternal {
		body.Message = de.Message
	}
	WriteJSON(w, domainerrors.ToHTTPStatus(code), errorEnvelope{Error: body})
}

// Decode parses a JSON request body.
func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domainerrors.New(domainerrors.CodeValidation, "invalid request body")
	}
	return nil
}

// IDParam parses a uuid path parameter.
func IDParam(r *http.Request, name string) (domain.ID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return domain.ID{}, domainerrors.Newf(domainerrors.CodeValidation, "invalid %s", name)
	}
	return id, nil
}

// OptionalID parses an optional uuid query parameter.
func OptionalID(r *http.Request, name string) (*domain.ID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, domainerrors.Newf(domainerrors.CodeValidation, "invalid %s", name)
	}
	return &id, nil
}

// DateParam parses a required YYYY-MM-DD query parameter.
func DateParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, domainerrors.Newf(domainerrors.CodeValidation, "invalid %s, expected YYYY-MM-DD", name)
	}
	return t, nil
}

// Page reads limit/offset query parameters, zero when absent.
func Page(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Date is a JSON date carrying only a calendar day.
type Date struct {
	time.Time
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format("2006-01-02"))
}

func (d *Date) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return err
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}
