package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillqa17/vpn-api/internal/promocode"
	"github.com/kirillqa17/vpn-api/internal/promocode/memstore"
	"github.com/kirillqa17/vpn-api/internal/promocode/service"
	promohttp "github.com/kirillqa17/vpn-api/internal/promocode/transport/http"
	"github.com/kirillqa17/vpn-api/pkg/jwt"
	"github.com/kirillqa17/vpn-api/pkg/middleware"
)

func newRouter() chi.Router {
	r := chi.NewRouter()
	promohttp.NewHandler(service.NewService(memstore.New())).Routes(r)
	return r
}

func do(r chi.Router, method, path, body string, admin bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(middleware.WithClaims(req.Context(), &jwt.Claims{Admin: admin}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAdminRoutesNeedAdmin(t *testing.T) {
	r := newRouter()

	rec := do(r, http.MethodPost, "/promos", `{"code":"SPRING","discount_percent":"20","max_uses":3}`, false)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(r, http.MethodGet, "/promos", "", false)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPromoLifecycle(t *testing.T) {
	r := newRouter()

	rec := do(r, http.MethodPost, "/promos", `{"code":"spring","discount_percent":"20","applicable_tariffs":["base"],"max_uses":1}`, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created promocode.PromoCode
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "SPRING", created.Code)

	rec = do(r, http.MethodPost, "/promos/validate", `{"code":"SPRING","tariff":"family","account_id":1}`, false)
	require.Equal(t, http.StatusOK, rec.Code)
	var res promocode.ValidationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.Valid)
	assert.Equal(t, promocode.ReasonNotApplicable, res.Reason)

	rec = do(r, http.MethodPost, "/promos/use", `{"code":"SPRING","account_id":1}`, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(r, http.MethodPost, "/promos/use", `{"code":"SPRING","account_id":2}`, false)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "exhausted")

	rec = do(r, http.MethodPatch, "/promos/SPRING/deactivate", "", true)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(r, http.MethodGet, "/promos", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []promocode.PromoCode
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.False(t, list[0].IsActive)
}

func TestCreateRejectsBadBody(t *testing.T) {
	r := newRouter()

	rec := do(r, http.MethodPost, "/promos", `{"code":"X","discount_percent":"20","max_uses":1}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(r, http.MethodPost, "/promos", `{"code":"VALID1","discount_percent":"150","max_uses":1}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateUnknownTariffIsNotApplicable(t *testing.T) {
	r := newRouter()

	rec := do(r, http.MethodPost, "/promos", `{"code":"basic","discount_percent":"10","applicable_tariffs":["base"],"max_uses":5}`, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(r, http.MethodPost, "/promos/validate", `{"code":"BASIC","tariff":"platinum","account_id":1}`, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res promocode.ValidationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.Valid)
	assert.Equal(t, promocode.ReasonNotApplicable, res.Reason)
}
