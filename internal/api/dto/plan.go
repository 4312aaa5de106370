package dto

import (
	"github.com/go-playground/validator/v10"

	"github.com/kirillqa17/vpn-api/internal/entitlement"
)

func validPlan(fl validator.FieldLevel) bool {
	_, ok := entitlement.ParsePlan(fl.Field().String())
	return ok
}
