package dto

import "github.com/shopspring/decimal"

type CreatePromoRequest struct {
	Code              string          `json:"code" validate:"required,min=3,max=32,alphanum"`
	DiscountPercent   decimal.Decimal `json:"discount_percent"`
	ApplicableTariffs []string        `json:"applicable_tariffs" validate:"dive,plan"`
	MaxUses           int             `json:"max_uses" validate:"required,gt=0"`
}

type ValidatePromoRequest struct {
	Code      string `json:"code" validate:"required"`
	Tariff    string `json:"tariff"`
	AccountID int64  `json:"account_id" validate:"required,gt=0"`
}

type UsePromoRequest struct {
	Code      string `json:"code" validate:"required"`
	AccountID int64  `json:"account_id" validate:"required,gt=0"`
}
