package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kirillqa17/vpn-api/internal/api/dto"
	"github.com/kirillqa17/vpn-api/internal/entitlement"
	"github.com/kirillqa17/vpn-api/internal/entitlement/service"
	"github.com/kirillqa17/vpn-api/pkg/response"
)

type Handler struct {
	Service   *service.Service
	Overrides *service.OverrideScheduler
}

func NewHandler(svc *service.Service, overrides *service.OverrideScheduler) *Handler {
	return &Handler{Service: svc, Overrides: overrides}
}

type sweepResponse struct {
	AccountIDs []int64 `json:"account_ids"`
	Count      int     `json:"count"`
}

func (h *Handler) Routes(r chi.Router) {
	r.Route("/entitlements", func(r chi.Router) {
		r.Post("/", h.Register)
		r.Get("/", h.List)

		r.Get("/expiring", h.AdvanceToGrace)
		r.Get("/expired", h.AdvanceToInactive)
		r.Get("/auto_renew_due", h.DueForRenewal)

		r.Route("/{account}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Patch("/extend", h.Extend)
			r.Patch("/trial", h.flag(h.Service.ToggleTrialFlag))
			r.Patch("/ref_bonus", h.flag(h.Service.ToggleReferralBonusFlag))
			r.Patch("/pro", h.flag(h.Service.SetPro))
			r.Patch("/auto_renew", h.ToggleAutoRenew)
			r.Patch("/payment_method", h.SetPaymentMethod)
			r.Post("/auto_renew_attempt", h.RecordAttempt)
			r.Post("/limit_override", h.DisableLimitTemporarily)
		})
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterEntitlementRequest
	if err := dto.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	var plan entitlement.Plan
	if req.Plan != "" {
		plan, _ = entitlement.ParsePlan(req.Plan)
	}
	e, err := h.Service.Register(r.Context(), req.AccountID, plan)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, e)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.List(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, list)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	accountID, err := dto.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		response.Error(w, r, err)
		return
	}

	e, err := h.Service.Get(r.Context(), accountID)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, e)
}

func (h *Handler) Extend(w http.ResponseWriter, r *http.Request) {
	accountID, err := dto.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var req dto.ExtendRequest
	if err := dto.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	plan, _ := entitlement.ParsePlan(req.Plan)
	e, err := h.Service.Extend(r.Context(), accountID, req.Days, plan)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, e)
}

func (h *Handler) flag(set func(ctx context.Context, accountID int64, value bool) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, err := dto.ParseAccountID(chi.URLParam(r, "account"))
		if err != nil {
			response.Error(w, r, err)
			return
		}
		var req dto.FlagRequest
		if err := dto.Decode(r, &req); err != nil {
			response.Error(w, r, err)
			return
		}

		if err := set(r.Context(), accountID, *req.Value); err != nil {
			response.Error(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) AdvanceToGrace(w http.ResponseWriter, r *http.Request) {
	days, err := dto.ParseDays(r, 1)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	ids, err := h.Service.AdvanceToGrace(r.Context(), entitlement.Days(days))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, sweepResponse{AccountIDs: ids, Count: len(ids)})
}

func (h *Handler) AdvanceToInactive(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Service.AdvanceToInactive(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, sweepResponse{AccountIDs: ids, Count: len(ids)})
}

func (h *Handler) DueForRenewal(w http.ResponseWriter, r *http.Request) {
	days, err := dto.ParseDays(r, 1)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	list, err := h.Service.DueForRenewal(r.Context(), entitlement.Days(days))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, list)
}

func (h *Handler) RecordAttempt(w http.ResponseWriter, r *http.Request) {
	accountID, err := dto.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var req dto.RenewalAttemptRequest
	if err := dto.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	e, err := h.Service.RecordAttempt(r.Context(), accountID, *req.Success)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, e)
}

func (h *Handler) ToggleAutoRenew(w http.ResponseWriter, r *http.Request) {
	accountID, err := dto.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var req dto.AutoRenewRequest
	if err := dto.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	var plan *entitlement.Plan
	if req.Plan != nil {
		p, _ := entitlement.ParsePlan(*req.Plan)
		plan = &p
	}
	e, err := h.Service.ToggleAutoRenew(r.Context(), accountID, *req.AutoRenew, plan, req.Duration)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, e)
}

func (h *Handler) SetPaymentMethod(w http.ResponseWriter, r *http.Request) {
	accountID, err := dto.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var req dto.PaymentMethodRequest
	if err := dto.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	e, err := h.Service.SetPaymentMethod(r.Context(), accountID, req.PaymentMethodID)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, e)
}

func (h *Handler) DisableLimitTemporarily(w http.ResponseWriter, r *http.Request) {
	accountID, err := dto.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		response.Error(w, r, err)
		return
	}

	o, err := h.Overrides.DisableLimitTemporarily(r.Context(), accountID)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusAccepted, o)
}
