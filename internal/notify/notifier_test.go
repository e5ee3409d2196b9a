package notify

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"controller-eligibility-backend/internal/logger"
	"controller-eligibility-backend/internal/model"
	"controller-eligibility-backend/internal/store"
)

type fakeSubscriptionStore struct {
	subs    map[int64][]model.PushSubscription
	deleted []string
}

func (f *fakeSubscriptionStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, []int64, error) {
	return nil, nil, store.ErrNotFound
}

func (f *fakeSubscriptionStore) UpsertSubscription(ctx context.Context, sub *model.PushSubscription, cids []int64) error {
	return nil
}

func (f *fakeSubscriptionStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	f.deleted = append(f.deleted, endpoint)
	return nil
}

func (f *fakeSubscriptionStore) SubscriptionsFor(ctx context.Context, cid int64) ([]model.PushSubscription, error) {
	return f.subs[cid], nil
}

type fakeSender struct {
	statuses  map[string]int
	payloads  [][]byte
	endpoints []string
}

func (f *fakeSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	f.payloads = append(f.payloads, payload)
	f.endpoints = append(f.endpoints, sub.Endpoint)

	status := http.StatusCreated
	if s, ok := f.statuses[sub.Endpoint]; ok {
		status = s
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(nil)),
	}, nil
}

func newTestNotifier(subs *fakeSubscriptionStore, sender Sender) *Notifier {
	n := New(logger.NewNop(), subs, &webpush.Options{TTL: 60})
	n.sender = sender
	return n
}

func TestNotifier_SendsToAllSubscribers(t *testing.T) {
	subs := &fakeSubscriptionStore{subs: map[int64][]model.PushSubscription{
		1000: {
			{Endpoint: "https://push.example/a", P256DH: "key-a", Auth: "auth-a"},
			{Endpoint: "https://push.example/b", P256DH: "key-b", Auth: "auth-b"},
		},
	}}
	sender := &fakeSender{}

	n := newTestNotifier(subs, sender)
	n.EligibilityAchieved(context.Background(), 1000)

	require.Len(t, sender.endpoints, 2)
	assert.ElementsMatch(t, []string{"https://push.example/a", "https://push.example/b"}, sender.endpoints)
	assert.Contains(t, string(sender.payloads[0]), "1000")
	assert.Empty(t, subs.deleted)
}

func TestNotifier_NoSubscribersIsNoop(t *testing.T) {
	subs := &fakeSubscriptionStore{subs: map[int64][]model.PushSubscription{}}
	sender := &fakeSender{}

	n := newTestNotifier(subs, sender)
	n.EligibilityAchieved(context.Background(), 1000)

	assert.Empty(t, sender.endpoints)
}

func TestNotifier_DeletesExpiredSubscriptions(t *testing.T) {
	subs := &fakeSubscriptionStore{subs: map[int64][]model.PushSubscription{
		1000: {
			{Endpoint: "https://push.example/live", P256DH: "k", Auth: "a"},
			{Endpoint: "https://push.example/gone", P256DH: "k", Auth: "a"},
		},
	}}
	sender := &fakeSender{statuses: map[string]int{
		"https://push.example/gone": http.StatusGone,
	}}

	n := newTestNotifier(subs, sender)
	n.EligibilityAchieved(context.Background(), 1000)

	assert.Equal(t, []string{"https://push.example/gone"}, subs.deleted)
}
