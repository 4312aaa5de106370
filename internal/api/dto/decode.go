package dto

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/kirillqa17/vpn-api/pkg/apperrors"
)

// Decode reads a JSON body into v and runs the struct validation tags.
func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.Validation("request body is required")
		}
		return apperrors.Validation("malformed JSON body")
	}
	if err := Validate.Struct(v); err != nil {
		return validationError(err)
	}
	return nil
}

// ParseAccountID parses a positive account id from a path segment.
func ParseAccountID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.Validation(fmt.Sprintf("invalid account id %q", raw))
	}
	return id, nil
}

// ParseDays reads an optional positive days query value, defaulting to def.
func ParseDays(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return def, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 {
		return 0, apperrors.Validation("days must be a positive integer")
	}
	return days, nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperrors.Validation(fmt.Sprintf("field %s failed %s validation", fe.Field(), fe.Tag()))
	}
	return apperrors.Validation(err.Error())
}
