// Package memstore is an in-memory entitlement.Repository for tests. A
// transaction works on a copy of the data that replaces the original only
// when the callback succeeds; transactions are serialized.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/kirillqa17/vpn-api/internal/entitlement"
)

type data struct {
	entitlements map[int64]*entitlement.Entitlement
	overrides    map[int64]*entitlement.Override
}

func (d *data) clone() *data {
	c := &data{
		entitlements: make(map[int64]*entitlement.Entitlement, len(d.entitlements)),
		overrides:    make(map[int64]*entitlement.Override, len(d.overrides)),
	}
	for id, e := range d.entitlements {
		c.entitlements[id] = copyEntitlement(e)
	}
	for id, o := range d.overrides {
		cp := *o
		c.overrides[id] = &cp
	}
	return c
}

type Store struct {
	mu   *sync.Mutex
	data *data
	inTx bool

	// FailOn makes the named method return the error, for storage failure tests.
	FailOn map[string]error
}

func New() *Store {
	return &Store{
		mu: &sync.Mutex{},
		data: &data{
			entitlements: make(map[int64]*entitlement.Entitlement),
			overrides:    make(map[int64]*entitlement.Override),
		},
		FailOn: make(map[string]error),
	}
}

// Put stores e directly, bypassing Create.
func (s *Store) Put(e *entitlement.Entitlement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.entitlements[e.AccountID] = copyEntitlement(e)
}

// Snapshot returns a copy of the stored entitlement, or nil.
func (s *Store) Snapshot(accountID int64) *entitlement.Entitlement {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data.entitlements[accountID]
	if !ok {
		return nil
	}
	return copyEntitlement(e)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx entitlement.Repository) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{mu: s.mu, data: s.data.clone(), inTx: true, FailOn: s.FailOn}
	if err := fn(tx); err != nil {
		return err
	}
	s.data = tx.data
	return nil
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) fail(method string) error {
	return s.FailOn[method]
}

func (s *Store) Get(ctx context.Context, accountID int64) (*entitlement.Entitlement, error) {
	defer s.lock()()
	if err := s.fail("Get"); err != nil {
		return nil, err
	}
	e, ok := s.data.entitlements[accountID]
	if !ok {
		return nil, entitlement.ErrNotFound
	}
	return copyEntitlement(e), nil
}

func (s *Store) GetForUpdate(ctx context.Context, accountID int64) (*entitlement.Entitlement, error) {
	return s.Get(ctx, accountID)
}

// LockAccount is a no-op: transactions are already serialized.
func (s *Store) LockAccount(ctx context.Context, accountID int64) error {
	return nil
}

func (s *Store) List(ctx context.Context) ([]*entitlement.Entitlement, error) {
	defer s.lock()()
	return s.filter(func(*entitlement.Entitlement) bool { return true }), nil
}

func (s *Store) Create(ctx context.Context, e *entitlement.Entitlement) error {
	defer s.lock()()
	if err := s.fail("Create"); err != nil {
		return err
	}
	if _, ok := s.data.entitlements[e.AccountID]; ok {
		return entitlement.ErrAlreadyExists
	}
	if e.Referrals == nil {
		e.Referrals = []int64{}
	}
	e.CreatedAt = time.Now()
	s.data.entitlements[e.AccountID] = copyEntitlement(e)
	return nil
}

func (s *Store) SaveExtension(ctx context.Context, e *entitlement.Entitlement) error {
	defer s.lock()()
	if err := s.fail("SaveExtension"); err != nil {
		return err
	}
	stored, ok := s.data.entitlements[e.AccountID]
	if !ok {
		return entitlement.ErrNotFound
	}
	stored.SubscriptionEnd = e.SubscriptionEnd
	stored.Status = e.Status
	stored.Plan = e.Plan
	stored.DeviceLimit = e.DeviceLimit
	return nil
}

func (s *Store) SetFlag(ctx context.Context, accountID int64, flag entitlement.Flag, value bool) error {
	defer s.lock()()
	stored, ok := s.data.entitlements[accountID]
	if !ok {
		return entitlement.ErrNotFound
	}
	switch flag {
	case entitlement.FlagTrialUsed:
		stored.IsUsedTrial = value
	case entitlement.FlagRefBonusUsed:
		stored.IsUsedRefBonus = value
	case entitlement.FlagPro:
		stored.IsPro = value
	}
	return nil
}

func (s *Store) ListExpiring(ctx context.Context, from, until time.Time) ([]*entitlement.Entitlement, error) {
	defer s.lock()()
	return s.filter(func(e *entitlement.Entitlement) bool {
		return entitlement.EntersGrace(e, from, until.Sub(from))
	}), nil
}

func (s *Store) ListLapsed(ctx context.Context, before time.Time) ([]*entitlement.Entitlement, error) {
	defer s.lock()()
	return s.filter(func(e *entitlement.Entitlement) bool {
		return entitlement.Lapsed(e, before)
	}), nil
}

func (s *Store) TransitionStatus(ctx context.Context, accountIDs []int64, from, to entitlement.Status) ([]int64, error) {
	defer s.lock()()
	if err := s.fail("TransitionStatus"); err != nil {
		return nil, err
	}
	moved := []int64{}
	for _, id := range accountIDs {
		e, ok := s.data.entitlements[id]
		if ok && e.Status == from {
			e.Status = to
			moved = append(moved, id)
		}
	}
	return moved, nil
}

func (s *Store) ListDueForRenewal(ctx context.Context, from, until, attemptedBefore time.Time) ([]*entitlement.Entitlement, error) {
	defer s.lock()()
	cooldown := from.Sub(attemptedBefore)
	return s.filter(func(e *entitlement.Entitlement) bool {
		return entitlement.DueForRenewal(e, from, until.Sub(from), cooldown)
	}), nil
}

func (s *Store) SaveAutoRenew(ctx context.Context, e *entitlement.Entitlement) error {
	defer s.lock()()
	if err := s.fail("SaveAutoRenew"); err != nil {
		return err
	}
	stored, ok := s.data.entitlements[e.AccountID]
	if !ok {
		return entitlement.ErrNotFound
	}
	cp := copyEntitlement(e)
	stored.AutoRenew = cp.AutoRenew
	stored.PaymentMethodID = cp.PaymentMethodID
	stored.AutoRenewPlan = cp.AutoRenewPlan
	stored.AutoRenewDuration = cp.AutoRenewDuration
	stored.AutoRenewLastAttempt = cp.AutoRenewLastAttempt
	stored.AutoRenewFailCount = cp.AutoRenewFailCount
	return nil
}

func (s *Store) SetReferrer(ctx context.Context, childID, parentID int64) error {
	defer s.lock()()
	child, ok := s.data.entitlements[childID]
	if !ok || child.ReferralID != nil {
		return entitlement.ErrAlreadyReferred
	}
	parent := parentID
	child.ReferralID = &parent
	return nil
}

func (s *Store) AppendReferral(ctx context.Context, parentID, childID int64) error {
	defer s.lock()()
	if err := s.fail("AppendReferral"); err != nil {
		return err
	}
	parent, ok := s.data.entitlements[parentID]
	if !ok || parent.HasReferral(childID) {
		return entitlement.ErrDuplicateEdge
	}
	parent.Referrals = append(parent.Referrals, childID)
	return nil
}

func (s *Store) IncrementPayedRefs(ctx context.Context, accountID int64) (int, error) {
	defer s.lock()()
	e, ok := s.data.entitlements[accountID]
	if !ok {
		return 0, entitlement.ErrNotFound
	}
	e.PayedRefs++
	return e.PayedRefs, nil
}

func (s *Store) CreateOverride(ctx context.Context, o *entitlement.Override) error {
	defer s.lock()()
	if _, ok := s.data.overrides[o.AccountID]; ok {
		return entitlement.ErrOverridePending
	}
	o.CreatedAt = time.Now()
	cp := *o
	s.data.overrides[o.AccountID] = &cp
	return nil
}

func (s *Store) GetOverride(ctx context.Context, accountID int64) (*entitlement.Override, error) {
	defer s.lock()()
	o, ok := s.data.overrides[accountID]
	if !ok {
		return nil, entitlement.ErrNoOverride
	}
	cp := *o
	return &cp, nil
}

func (s *Store) SetOverrideLimit(ctx context.Context, accountID int64, limit int) error {
	defer s.lock()()
	o, ok := s.data.overrides[accountID]
	if !ok {
		return entitlement.ErrNoOverride
	}
	o.OriginalLimit = limit
	return nil
}

func (s *Store) DeleteOverride(ctx context.Context, accountID int64) error {
	defer s.lock()()
	if _, ok := s.data.overrides[accountID]; !ok {
		return entitlement.ErrNoOverride
	}
	delete(s.data.overrides, accountID)
	return nil
}

func (s *Store) ListOverrides(ctx context.Context) ([]*entitlement.Override, error) {
	defer s.lock()()
	list := make([]*entitlement.Override, 0, len(s.data.overrides))
	for _, o := range s.data.overrides {
		cp := *o
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].RestoreAt.Before(list[j].RestoreAt) })
	return list, nil
}

func (s *Store) filter(keep func(*entitlement.Entitlement) bool) []*entitlement.Entitlement {
	list := []*entitlement.Entitlement{}
	for _, e := range s.data.entitlements {
		if keep(e) {
			list = append(list, copyEntitlement(e))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].AccountID < list[j].AccountID })
	return list
}

func copyEntitlement(e *entitlement.Entitlement) *entitlement.Entitlement {
	cp := *e
	cp.Referrals = slices.Clone(e.Referrals)
	if e.ReferralID != nil {
		v := *e.ReferralID
		cp.ReferralID = &v
	}
	if e.PaymentMethodID != nil {
		v := *e.PaymentMethodID
		cp.PaymentMethodID = &v
	}
	if e.AutoRenewPlan != nil {
		v := *e.AutoRenewPlan
		cp.AutoRenewPlan = &v
	}
	if e.AutoRenewDuration != nil {
		v := *e.AutoRenewDuration
		cp.AutoRenewDuration = &v
	}
	if e.AutoRenewLastAttempt != nil {
		v := *e.AutoRenewLastAttempt
		cp.AutoRenewLastAttempt = &v
	}
	return &cp
}
