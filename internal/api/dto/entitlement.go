package dto

import "github.com/go-playground/validator/v10"

type RegisterEntitlementRequest struct {
	AccountID int64  `json:"account_id" validate:"required,gt=0"`
	Plan      string `json:"plan" validate:"omitempty,plan"`
}

type ExtendRequest struct {
	Days int    `json:"days" validate:"required,gt=0"`
	Plan string `json:"plan" validate:"required,plan"`
}

// FlagRequest toggles a boolean column; value is required so a missing
// field is not read as false.
type FlagRequest struct {
	Value *bool `json:"value" validate:"required"`
}

type AutoRenewRequest struct {
	AutoRenew *bool   `json:"auto_renew" validate:"required"`
	Plan      *string `json:"plan" validate:"omitempty,plan"`
	Duration  *int    `json:"duration" validate:"omitempty,gt=0"`
}

type PaymentMethodRequest struct {
	PaymentMethodID *string `json:"payment_method_id" validate:"omitempty,min=1,max=255"`
}

type RenewalAttemptRequest struct {
	Success *bool `json:"success" validate:"required"`
}

var Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("plan", validPlan)
	return v
}
