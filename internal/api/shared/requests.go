package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxRequestBodyBytes caps request bodies. A full curriculum upload is the
// largest payload the API accepts.
const MaxRequestBodyBytes = 8 << 20

var (
	// ErrInvalidBody wraps every DecodeJSON failure.
	ErrInvalidBody = errors.New("invalid request body")

	// ErrEmptyBody is returned by DecodeJSON when the request has no body.
	ErrEmptyBody = errors.New("request body is empty")
)

// Global validator instance for reuse. Field names in its errors are the
// JSON names clients send.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeJSON decodes the request body into v. Unknown fields and trailing
// data are rejected. Errors wrap ErrInvalidBody and the decoder's error.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, MaxRequestBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %w", ErrInvalidBody, ErrEmptyBody)
		}
		return fmt.Errorf("%w: %w", ErrInvalidBody, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: body must contain a single JSON value", ErrInvalidBody)
	}
	return nil
}

// ValidateRequest validates the given struct using the validator package.
func ValidateRequest(v interface{}) error {
	// Check if the object implements the Validate interface
	if validator, ok := v.(interface{ Validate() error }); ok {
		return validator.Validate()
	}

	// Otherwise, use the struct validator
	return validate.Struct(v)
}
