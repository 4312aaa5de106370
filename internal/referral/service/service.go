package service

import (
	"context"
	"log/slog"

	"github.com/kirillqa17/vpn-api/internal/entitlement"
	"github.com/kirillqa17/vpn-api/internal/referral"
	"github.com/kirillqa17/vpn-api/pkg/apperrors"
)

// Service maintains the referral edges stored on entitlements. Each child
// has at most one parent; the parent's list mirrors the child pointers.
type Service struct {
	repo entitlement.Repository
}

func NewService(repo entitlement.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) AddReferral(ctx context.Context, parentID, childID int64) error {
	err := s.repo.WithTx(ctx, func(tx entitlement.Repository) error {
		parent, child, err := lockPair(ctx, tx, parentID, childID)
		if err != nil {
			return err
		}
		if child.ReferralID != nil {
			return entitlement.ErrAlreadyReferred
		}
		if parent.HasReferral(childID) {
			return entitlement.ErrDuplicateEdge
		}

		if err := tx.AppendReferral(ctx, parentID, childID); err != nil {
			return err
		}
		return tx.SetReferrer(ctx, childID, parentID)
	})
	if err != nil {
		return apperrors.Ensure(err, "add referral")
	}

	slog.Info("referral recorded", "parent_id", parentID, "child_id", childID)
	return nil
}

// IncrementPaidReferrals bumps the paid referral tally and returns it.
func (s *Service) IncrementPaidReferrals(ctx context.Context, accountID int64) (int, error) {
	count, err := s.repo.IncrementPayedRefs(ctx, accountID)
	if err != nil {
		return 0, apperrors.Ensure(err, "increment paid referrals")
	}
	return count, nil
}

func (s *Service) Tree(ctx context.Context, accountID int64) (*referral.Tree, error) {
	e, err := s.repo.Get(ctx, accountID)
	if err != nil {
		return nil, apperrors.Ensure(err, "get referral tree")
	}

	refs := []int64(e.Referrals)
	if refs == nil {
		refs = []int64{}
	}
	return &referral.Tree{
		AccountID:  e.AccountID,
		ReferrerID: e.ReferralID,
		Referrals:  refs,
		PayedRefs:  e.PayedRefs,
	}, nil
}

// lockPair locks both rows in id order so opposite-direction requests
// cannot deadlock.
func lockPair(ctx context.Context, tx entitlement.Repository, parentID, childID int64) (parent, child *entitlement.Entitlement, err error) {
	firstID, secondID := parentID, childID
	if secondID < firstID {
		firstID, secondID = secondID, firstID
	}

	first, err := tx.GetForUpdate(ctx, firstID)
	if err != nil {
		return nil, nil, err
	}
	second := first
	if secondID != firstID {
		if second, err = tx.GetForUpdate(ctx, secondID); err != nil {
			return nil, nil, err
		}
	}

	if first.AccountID == parentID {
		return first, second, nil
	}
	return second, first, nil
}
