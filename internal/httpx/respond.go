// Package httpx carries the HTTP plumbing shared by every handler: JSON
// responses, the error envelope, request validation and middleware.
package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// Error kinds surfaced to clients. The kind is machine-checkable; the message
// is for humans.
const (
	KindValidation = "validation"
	KindNotFound   = "not_found"
	KindConflict   = "conflict"
	KindAuth       = "auth"
	KindInternal   = "internal"
)

// Validate is the shared request validator.
var Validate = validator.New()

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// Error writes the standard error envelope.
func Error(w http.ResponseWriter, status int, kind, message string) {
	JSON(w, status, errorEnvelope{Error: errorBody{Kind: kind, Message: message}})
}

// Pagination reads limit/offset query parameters. Limit is clamped to
// [1,100] with a default of 50; negative offsets become 0.
func Pagination(r *http.Request) (limit, offset int) {
	limit = 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// DecodeJSON decodes the request body into dst and validates struct tags.
// The returned message is safe to show to callers.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return Validate.Struct(dst)
}
