package provisioning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/net/proxy"

	"github.com/kirillqa17/vpn-api/internal/entitlement"
	"github.com/kirillqa17/vpn-api/internal/metrics"
	"github.com/kirillqa17/vpn-api/pkg/apperrors"
)

const maxErrorBody = 512

type Config struct {
	BaseURL   string
	Token     string
	ProxyAddr string // host:port of a SOCKS5 proxy, optional
	Timeout   time.Duration
	SquadIDs  map[string]string // squad role -> panel squad UUID
}

// Client talks to the access panel. Every call is a single synchronous
// attempt; the breaker only fails fast while the panel is unhealthy.
type Client struct {
	cfg        Config
	HTTPClient *http.Client
	cb         *gobreaker.CircuitBreaker
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	client := &Client{cfg: cfg}

	client.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "provisioning-panel",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			metrics.ProvisioningBreakerState.Set(float64(to))
		},
	})

	client.HTTPClient = newHTTPClient(cfg)
	return client
}

func newHTTPClient(cfg Config) *http.Client {
	if cfg.ProxyAddr == "" {
		return &http.Client{Timeout: cfg.Timeout}
	}

	proxyURL := &url.URL{Scheme: "socks5h", Host: cfg.ProxyAddr}
	dialer, err := proxy.FromURL(proxyURL, proxy.Direct)
	if err != nil {
		slog.Error("failed to create SOCKS5 dialer, using direct connection", "proxy", cfg.ProxyAddr, "error", err)
		return &http.Client{Timeout: cfg.Timeout}
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		},
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: transport, Timeout: cfg.Timeout}
}

// Create registers the account on the panel and returns its access key.
func (c *Client) Create(ctx context.Context, accountID int64, limits entitlement.Limits) (string, error) {
	req := createUserRequest{
		Username:             fmt.Sprintf("tg_%d", accountID),
		TelegramID:           accountID,
		Status:               StatusDisabled,
		ExpireAt:             time.Now().UTC(),
		TrafficLimitBytes:    limits.TrafficLimitBytes,
		TrafficLimitStrategy: "MONTH",
		HwidDeviceLimit:      limits.DeviceLimit,
		ActiveInternalSquads: c.squadIDs(limits.Squads),
		Tag:                  limits.Tag,
	}

	var resp userResponse
	if err := c.call(ctx, "create", http.MethodPost, "/api/users", req, &resp); err != nil {
		return "", err
	}
	if resp.Response.UUID == "" {
		return "", apperrors.Upstream(nil, "panel returned no user uuid")
	}
	return resp.Response.UUID, nil
}

// Update sets status, limits and expiry of an existing panel user.
func (c *Client) Update(ctx context.Context, key string, status RemoteStatus, limits entitlement.Limits, expireAt time.Time) error {
	expire := expireAt.UTC()
	traffic := limits.TrafficLimitBytes
	devices := limits.DeviceLimit

	req := updateUserRequest{
		UUID:                 key,
		Status:               status,
		ExpireAt:             &expire,
		TrafficLimitBytes:    &traffic,
		HwidDeviceLimit:      &devices,
		ActiveInternalSquads: c.squadIDs(limits.Squads),
		Tag:                  limits.Tag,
	}
	return c.call(ctx, "update", http.MethodPatch, "/api/users", req, nil)
}

// SetDeviceLimit overrides only the device limit of a panel user.
func (c *Client) SetDeviceLimit(ctx context.Context, key string, limit int) error {
	req := updateUserRequest{UUID: key, HwidDeviceLimit: &limit}
	return c.call(ctx, "set_device_limit", http.MethodPatch, "/api/users", req, nil)
}

// Revoke disables remote access for the key.
func (c *Client) Revoke(ctx context.Context, key string) error {
	path := "/api/users/" + url.PathEscape(key) + "/actions/disable"
	return c.call(ctx, "revoke", http.MethodPost, path, nil, nil)
}

// State exposes the breaker state for health reporting.
func (c *Client) State() gobreaker.State {
	return c.cb.State()
}

func (c *Client) squadIDs(roles []string) []string {
	ids := make([]string, 0, len(roles))
	for _, role := range roles {
		if id, ok := c.cfg.SquadIDs[role]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (c *Client) call(ctx context.Context, op, method, path string, body, out any) error {
	start := time.Now()

	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, c.doRequest(ctx, method, path, body, out)
	})

	metrics.ProvisioningRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.ProvisioningRequestsTotal.WithLabelValues(op, metrics.Result(err)).Inc()

	if err != nil {
		slog.Error("provisioning request failed", "operation", op, "path", path, "error", err)
		return apperrors.Upstream(err, "provisioning "+op+" failed")
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(respBody) > maxErrorBody {
			respBody = respBody[:maxErrorBody]
		}
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}
