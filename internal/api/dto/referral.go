package dto

type AddReferralRequest struct {
	Parent int64 `json:"parent" validate:"required,gt=0"`
	Child  int64 `json:"child" validate:"required,gt=0"`
}
