package service

import (
	"context"
	"errors"
	"time"

	"github.com/mysocial/shop-api/internal/model"
	"github.com/mysocial/shop-api/internal/repository"
)

// IsViewOnly reports whether a shop with this current subscription may only
// read.  ACTIVE is writable; TRIALING is writable while now <= trialEndsAt;
// everything else, including no subscription at all, is view-only.
func IsViewOnly(sub *model.Subscription, now time.Time) bool {
	if sub == nil {
		return true
	}
	switch sub.Status {
	case model.SubscriptionActive:
		return false
	case model.SubscriptionTrialing:
		return sub.TrialEndsAt == nil || now.After(*sub.TrialEndsAt)
	default:
		return true
	}
}

// SubscriptionStore is the persistence SubscriptionService needs.
type SubscriptionStore interface {
	Current(ctx context.Context, shopID string) (*model.Subscription, error)
	MarkExpired(ctx context.Context, id string, at time.Time) error
}

// SubscriptionState is a shop's current subscription and its evaluation.
// Subscription is nil when the shop has none.
type SubscriptionState struct {
	Subscription *model.Subscription
	ViewOnly     bool
}

// SubscriptionService evaluates the current subscription and applies lazy
// expiry: a row observed as view-only but not yet EXPIRED is rewritten to
// EXPIRED in the background.
type SubscriptionService struct {
	Store SubscriptionStore
	BG    *Background
	Now   func() time.Time
}

func NewSubscriptionService(store SubscriptionStore, bg *Background) *SubscriptionService {
	return &SubscriptionService{Store: store, BG: bg, Now: func() time.Time { return time.Now().UTC() }}
}

// Evaluate loads the shop's current subscription and computes view-only.
func (s *SubscriptionService) Evaluate(ctx context.Context, shopID string) (SubscriptionState, error) {
	sub, err := s.Store.Current(ctx, shopID)
	if errors.Is(err, repository.ErrNotFound) {
		return SubscriptionState{ViewOnly: true}, nil
	}
	if err != nil {
		return SubscriptionState{}, err
	}
	now := s.Now()
	viewOnly := IsViewOnly(sub, now)
	if viewOnly && sub.Status != model.SubscriptionExpired {
		id := sub.ID
		s.BG.Go("subscription.expire", func(ctx context.Context) error {
			return s.Store.MarkExpired(ctx, id, now)
		})
	}
	return SubscriptionState{Subscription: sub, ViewOnly: viewOnly}, nil
}
