package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/warp/billing-engine/internal/phone"
	"github.com/warp/billing-engine/ledger"
)

// newValidator returns a validator that reports JSON field names and knows
// the "phone" tag for the given default region.
func newValidator(region string) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phone.Valid(fl.Field().String(), region)
	})
	return v
}

// bind decodes the JSON body into dst and validates it.
func (h *Handler) bind(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &ledger.ValidationError{Message: "request body is required"}
		}
		return &ledger.ValidationError{Message: "invalid request body"}
	}
	return h.check(dst)
}

// check runs struct validation and converts failures to a ValidationError.
func (h *Handler) check(v any) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, fieldMessage(fe))
	}
	return &ledger.ValidationError{Field: fieldPath(ve[0]), Message: strings.Join(fields, "; ")}
}

// fieldPath drops the struct name from the namespace: "CreateInvoiceRequest.items[0].itemId"
// becomes "items[0].itemId".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "phone":
		return field + " must be a valid phone number"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be %s characters", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}
