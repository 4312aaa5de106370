package provisioning

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillqa17/vpn-api/internal/entitlement"
	"github.com/kirillqa17/vpn-api/pkg/apperrors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		BaseURL:  srv.URL + "/",
		Token:    "panel-token",
		Timeout:  2 * time.Second,
		SquadIDs: map[string]string{entitlement.SquadMain: "squad-main", entitlement.SquadBypass: "squad-bypass"},
	})
}

func TestCreate(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/users", r.URL.Path)
		assert.Equal(t, "Bearer panel-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response":{"uuid":"7f1c","username":"tg_42"}}`))
	})

	key, err := client.Create(context.Background(), 42, entitlement.BaseLimits())
	require.NoError(t, err)
	assert.Equal(t, "7f1c", key)

	assert.Equal(t, "tg_42", got["username"])
	assert.Equal(t, float64(42), got["telegramId"])
	assert.Equal(t, "DISABLED", got["status"])
	assert.Equal(t, []any{"squad-main"}, got["activeInternalSquads"])
}

func TestCreateWithoutUUIDIsUpstreamError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":{}}`))
	})

	_, err := client.Create(context.Background(), 1, entitlement.BaseLimits())
	assert.Equal(t, apperrors.KindUpstream, apperrors.KindOf(err))
}

func TestUpdateSendsPlanLimits(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	limits, _ := entitlement.PlanBSFamily.Limits()
	expire := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, client.Update(context.Background(), "key-1", StatusActive, limits, expire))

	assert.Equal(t, "key-1", got["uuid"])
	assert.Equal(t, "ACTIVE", got["status"])
	assert.Equal(t, "BSFAMILY", got["tag"])
	assert.Equal(t, float64(8), got["hwidDeviceLimit"])
	assert.Equal(t, float64(0), got["trafficLimitBytes"])
	assert.Equal(t, "2026-05-01T00:00:00Z", got["expireAt"])
	assert.Equal(t, []any{"squad-main", "squad-bypass"}, got["activeInternalSquads"])
}

func TestSetDeviceLimitSendsZero(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	})

	require.NoError(t, client.SetDeviceLimit(context.Background(), "key-1", 0))
	assert.Equal(t, float64(0), got["hwidDeviceLimit"])
	assert.NotContains(t, got, "status")
}

func TestRevoke(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/users/key-1/actions/disable", r.URL.Path)
	})

	assert.NoError(t, client.Revoke(context.Background(), "key-1"))
}

func TestNonSuccessStatusIsUpstreamError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "user not found", http.StatusNotFound)
	})

	err := client.Revoke(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindUpstream, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "404")
}

func TestTransportFailureIsUpstreamError(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})

	err := client.Revoke(context.Background(), "key")
	assert.Equal(t, apperrors.KindUpstream, apperrors.KindOf(err))
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	for i := 0; i < 8; i++ {
		err := client.Revoke(context.Background(), "key")
		assert.Equal(t, apperrors.KindUpstream, apperrors.KindOf(err))
	}
	assert.Equal(t, int32(5), calls.Load(), "breaker should stop calling the panel once open")
}
