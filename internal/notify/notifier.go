package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"controller-eligibility-backend/internal/logger"
	"controller-eligibility-backend/internal/model"
	"controller-eligibility-backend/internal/store"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real Sender using the webpush library.
type WebPushSender struct{}

func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Notifier pushes eligibility alerts to browsers subscribed to a controller.
type Notifier struct {
	log     *logger.Logger
	subs    store.SubscriptionStore
	webpush *webpush.Options
	sender  Sender
}

// New creates a Notifier.
func New(log *logger.Logger, subs store.SubscriptionStore, webpushOptions *webpush.Options) *Notifier {
	return &Notifier{
		log:     log.With("component", "notifier"),
		subs:    subs,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// EligibilityAchieved notifies every subscription watching cid that the
// controller's consolidation hours are confirmed. Send failures are logged
// per subscription and never propagate.
func (n *Notifier) EligibilityAchieved(ctx context.Context, cid int64) {
	subscriptions, err := n.subs.SubscriptionsFor(ctx, cid)
	if err != nil {
		n.log.Error("failed to fetch subscriptions", "cid", cid, "error", err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	n.log.Info("sending eligibility notifications", "cid", cid, "count", len(subscriptions))

	message := fmt.Sprintf("Controller %d has met consolidation hours and is promotion eligible.", cid)
	for _, sub := range subscriptions {
		n.send(ctx, sub, []byte(message))
	}
}

func (n *Notifier) send(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := n.sender.Send(payload, wpSub, n.webpush)
	if err != nil {
		n.log.Error("failed to send notification", "endpoint", sub.Endpoint, "error", err)
		return
	}
	defer resp.Body.Close()

	// Expired subscriptions are pruned on delivery failure.
	if resp.StatusCode == http.StatusGone {
		n.log.Info("subscription expired, deleting", "endpoint", sub.Endpoint)
		if err := n.subs.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			n.log.Error("failed to delete expired subscription", "endpoint", sub.Endpoint, "error", err)
		}
	}
}
