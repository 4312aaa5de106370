// Package memstore is an in-memory promocode.Repository for tests with the
// same copy-on-commit transactions as the entitlement fake.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/kirillqa17/vpn-api/internal/promocode"
)

type usageKey struct {
	code      string
	accountID int64
}

type data struct {
	codes  map[string]*promocode.PromoCode
	usages map[usageKey]time.Time
}

func (d *data) clone() *data {
	c := &data{
		codes:  make(map[string]*promocode.PromoCode, len(d.codes)),
		usages: make(map[usageKey]time.Time, len(d.usages)),
	}
	for code, p := range d.codes {
		c.codes[code] = copyCode(p)
	}
	for k, v := range d.usages {
		c.usages[k] = v
	}
	return c
}

type Store struct {
	mu   *sync.Mutex
	data *data
	inTx bool
}

func New() *Store {
	return &Store{
		mu: &sync.Mutex{},
		data: &data{
			codes:  make(map[string]*promocode.PromoCode),
			usages: make(map[usageKey]time.Time),
		},
	}
}

// Usages returns the number of ledger rows for code.
func (s *Store) Usages(code string) int {
	defer s.lock()()
	n := 0
	for k := range s.data.usages {
		if k.code == code {
			n++
		}
	}
	return n
}

func (s *Store) WithTx(ctx context.Context, fn func(tx promocode.Repository) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{mu: s.mu, data: s.data.clone(), inTx: true}
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

func (s *Store) Create(ctx context.Context, p *promocode.PromoCode) error {
	defer s.lock()()
	if _, ok := s.data.codes[p.Code]; ok {
		return promocode.ErrCodeExists
	}
	p.CurrentUses = 0
	p.IsActive = true
	p.CreatedAt = time.Now()
	s.data.codes[p.Code] = copyCode(p)
	return nil
}

func (s *Store) Get(ctx context.Context, code string) (*promocode.PromoCode, error) {
	defer s.lock()()
	p, ok := s.data.codes[code]
	if !ok {
		return nil, promocode.ErrNotFound
	}
	return copyCode(p), nil
}

func (s *Store) List(ctx context.Context) ([]*promocode.PromoCode, error) {
	defer s.lock()()
	list := make([]*promocode.PromoCode, 0, len(s.data.codes))
	for _, p := range s.data.codes {
		list = append(list, copyCode(p))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Code < list[j].Code })
	return list, nil
}

func (s *Store) Deactivate(ctx context.Context, code string) error {
	defer s.lock()()
	p, ok := s.data.codes[code]
	if !ok {
		return promocode.ErrNotFound
	}
	p.IsActive = false
	return nil
}

func (s *Store) HasUsage(ctx context.Context, code string, accountID int64) (bool, error) {
	defer s.lock()()
	_, ok := s.data.usages[usageKey{code, accountID}]
	return ok, nil
}

func (s *Store) RecordUsage(ctx context.Context, code string, accountID int64) error {
	defer s.lock()()
	key := usageKey{code, accountID}
	if _, ok := s.data.usages[key]; ok {
		return promocode.ErrAlreadyUsed
	}
	s.data.usages[key] = time.Now()
	return nil
}

func (s *Store) IncrementUses(ctx context.Context, code string) (int, error) {
	defer s.lock()()
	p, ok := s.data.codes[code]
	if !ok || !p.IsActive || p.Exhausted() {
		return 0, promocode.ErrExhausted
	}
	p.CurrentUses++
	return p.CurrentUses, nil
}

func copyCode(p *promocode.PromoCode) *promocode.PromoCode {
	cp := *p
	cp.ApplicableTariffs = slices.Clone(p.ApplicableTariffs)
	return &cp
}
