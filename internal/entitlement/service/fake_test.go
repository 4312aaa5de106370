package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kirillqa17/vpn-api/internal/entitlement"
	"github.com/kirillqa17/vpn-api/internal/entitlement/memstore"
	"github.com/kirillqa17/vpn-api/internal/entitlement/service"
	"github.com/kirillqa17/vpn-api/internal/provisioning"
)

var errPanelDown = errors.New("panel unavailable")

type remoteUpdate struct {
	key      string
	status   provisioning.RemoteStatus
	limits   entitlement.Limits
	expireAt time.Time
}

type fakeProvisioner struct {
	mu sync.Mutex

	created   int
	createErr error
	updateErr error
	limitErr  error
	revokeErr map[string]error

	updates []remoteUpdate
	limits  map[string]int
	revoked []string
}

func newFakeProvisioner() *fakeProvisioner {
	return &fakeProvisioner{
		revokeErr: make(map[string]error),
		limits:    make(map[string]int),
	}
}

func (f *fakeProvisioner) Create(ctx context.Context, accountID int64, limits entitlement.Limits) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created++
	key := fmt.Sprintf("key-%d", accountID)
	f.limits[key] = limits.DeviceLimit
	return key, nil
}

func (f *fakeProvisioner) Update(ctx context.Context, key string, status provisioning.RemoteStatus, limits entitlement.Limits, expireAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, remoteUpdate{key: key, status: status, limits: limits, expireAt: expireAt})
	f.limits[key] = limits.DeviceLimit
	return nil
}

func (f *fakeProvisioner) SetDeviceLimit(ctx context.Context, key string, limit int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.limitErr != nil {
		return f.limitErr
	}
	f.limits[key] = limit
	return nil
}

func (f *fakeProvisioner) Revoke(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.revokeErr[key]; err != nil {
		return err
	}
	f.revoked = append(f.revoked, key)
	return nil
}

func (f *fakeProvisioner) setLimitErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limitErr = err
}

func (f *fakeProvisioner) limit(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.limits[key]
}

func (f *fakeProvisioner) revokedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.revoked...)
}

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	store *memstore.Store
	prov  *fakeProvisioner
	clock *clock
	svc   *service.Service
}

func newFixture() *fixture {
	f := &fixture{
		store: memstore.New(),
		prov:  newFakeProvisioner(),
		clock: newClock(),
	}
	f.svc = service.NewService(f.store, f.prov, service.Options{Now: f.clock.Now})
	return f
}

// put stores an entitlement ending `end` after the fixture's now.
func (f *fixture) put(accountID int64, status entitlement.Status, plan entitlement.Plan, end time.Duration) *entitlement.Entitlement {
	e := &entitlement.Entitlement{
		AccountID:       accountID,
		AccessKey:       fmt.Sprintf("key-%d", accountID),
		SubscriptionEnd: f.clock.Now().Add(end),
		Status:          status,
		Plan:            plan,
		DeviceLimit:     3,
		Referrals:       []int64{},
	}
	f.store.Put(e)
	return e
}
