package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kirillqa17/vpn-api/internal/api/dto"
	"github.com/kirillqa17/vpn-api/internal/promocode/service"
	"github.com/kirillqa17/vpn-api/pkg/middleware"
	"github.com/kirillqa17/vpn-api/pkg/response"
)

type Handler struct {
	Service *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{Service: svc}
}

// Routes mounts the promo routes. Managing codes needs an admin token;
// validating and redeeming needs any service token.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/promos", func(r chi.Router) {
		r.Post("/validate", h.Validate)
		r.Post("/use", h.Use)

		r.Group(func(ar chi.Router) {
			ar.Use(middleware.RequireAdmin)
			ar.Post("/", h.Create)
			ar.Get("/", h.List)
			ar.Patch("/{code}/deactivate", h.Deactivate)
		})
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreatePromoRequest
	if err := dto.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	p, err := h.Service.Create(r.Context(), req.Code, req.DiscountPercent, req.ApplicableTariffs, req.MaxUses)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, p)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.List(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, list)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Deactivate(r.Context(), chi.URLParam(r, "code")); err != nil {
		response.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req dto.ValidatePromoRequest
	if err := dto.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	result, err := h.Service.Validate(r.Context(), req.Code, req.Tariff, req.AccountID)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

func (h *Handler) Use(w http.ResponseWriter, r *http.Request) {
	var req dto.UsePromoRequest
	if err := dto.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	p, err := h.Service.Use(r.Context(), req.Code, req.AccountID)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, p)
}
