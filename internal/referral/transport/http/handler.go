package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kirillqa17/vpn-api/internal/api/dto"
	"github.com/kirillqa17/vpn-api/internal/referral/service"
	"github.com/kirillqa17/vpn-api/pkg/response"
)

type Handler struct {
	Service *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{Service: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Route("/referrals", func(r chi.Router) {
		r.Post("/", h.AddReferral)
		r.Get("/{account}", h.Tree)
		r.Post("/{account}/paid", h.IncrementPaid)
	})
}

func (h *Handler) AddReferral(w http.ResponseWriter, r *http.Request) {
	var req dto.AddReferralRequest
	if err := dto.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	if err := h.Service.AddReferral(r.Context(), req.Parent, req.Child); err != nil {
		response.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) IncrementPaid(w http.ResponseWriter, r *http.Request) {
	accountID, err := dto.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		response.Error(w, r, err)
		return
	}

	count, err := h.Service.IncrementPaidReferrals(r.Context(), accountID)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]int{"payed_refs": count})
}

func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	accountID, err := dto.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		response.Error(w, r, err)
		return
	}

	tree, err := h.Service.Tree(r.Context(), accountID)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, tree)
}
