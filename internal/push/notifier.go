package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/smartcart/internal/model"
)

// SubscriptionStore is the part of the store the notifier needs.
type SubscriptionStore interface {
	ListSubscriptionsForHousehold(ctx context.Context, householdID int64) ([]model.PushSubscription, error)
	DeleteSubscriptionByEndpoint(ctx context.Context, endpoint string) error
}

// Sender delivers a single notification. *Service implements it.
type Sender interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error
}

// Notifier fans a payload out to every subscription of a household.
type Notifier struct {
	sender Sender
	subs   SubscriptionStore
	logger *slog.Logger
}

func NewNotifier(sender Sender, subs SubscriptionStore, logger *slog.Logger) *Notifier {
	return &Notifier{sender: sender, subs: subs, logger: logger}
}

// NotifyHousehold sends payload to all members' devices except those of
// excludeUserID and returns how many were delivered. Expired subscriptions
// are removed.
func (n *Notifier) NotifyHousehold(ctx context.Context, householdID, excludeUserID int64, payload Payload) (int, error) {
	subs, err := n.subs.ListSubscriptionsForHousehold(ctx, householdID)
	if err != nil {
		return 0, fmt.Errorf("list subscriptions: %w", err)
	}

	sent := 0
	for i := range subs {
		sub := &subs[i]
		if sub.UserID == excludeUserID {
			continue
		}
		if err := n.sender.Send(ctx, sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				if err := n.subs.DeleteSubscriptionByEndpoint(ctx, sub.Endpoint); err != nil {
					n.logger.Error("delete expired subscription", "endpoint", sub.Endpoint, "error", err)
				}
				continue
			}
			n.logger.Warn("send push notification", "user_id", sub.UserID, "error", err)
			continue
		}
		sent++
	}
	return sent, nil
}

// ShoppingStarted tells the rest of the household that shopperName is at the store.
func (n *Notifier) ShoppingStarted(ctx context.Context, householdID, shopperID int64, shopperName string) {
	payload := Payload{
		Title: "Shopping started",
		Body:  fmt.Sprintf("%s is going shopping. Add anything you need to the list now.", shopperName),
		URL:   "/",
		Tag:   fmt.Sprintf("shopping-%d", householdID),
	}
	if _, err := n.NotifyHousehold(ctx, householdID, shopperID, payload); err != nil {
		n.logger.Error("shopping started notification", "household_id", householdID, "error", err)
	}
}
