package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/btriapitsyn/openchamber-sub004/pkg/logging"
)

// WebPushConfig holds VAPID credentials for browser push.
type WebPushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string

	// Subscriber is the contact address required by the push services,
	// usually a mailto: URL.
	Subscriber string
}

// WebPushAdapter delivers notifications to registered browser push
// subscriptions.
type WebPushAdapter struct {
	cfg WebPushConfig
	log *logging.Logger

	mu   sync.RWMutex
	subs map[string]*webpush.Subscription
}

// NewWebPushAdapter creates an adapter. The logger may be nil.
func NewWebPushAdapter(cfg WebPushConfig, log *logging.Logger) (*WebPushAdapter, error) {
	if cfg.VAPIDPublicKey == "" || cfg.VAPIDPrivateKey == "" {
		return nil, fmt.Errorf("webpush: VAPID keys not configured")
	}
	return &WebPushAdapter{
		cfg:  cfg,
		log:  log,
		subs: make(map[string]*webpush.Subscription),
	}, nil
}

// Name implements Adapter.
func (a *WebPushAdapter) Name() string {
	return "webpush"
}

// Register adds a browser subscription and returns its id.
func (a *WebPushAdapter) Register(sub *webpush.Subscription, id string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subs[id] = sub
	return id
}

// Unregister removes a subscription.
func (a *WebPushAdapter) Unregister(id string) {
	a.mu.Lock()
	delete(a.subs, id)
	a.mu.Unlock()
}

// SubscriptionCount reports how many browsers are registered.
func (a *WebPushAdapter) SubscriptionCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.subs)
}

// Send pushes the event to every registered subscription. Subscriptions the
// push service reports gone are pruned. Individual failures are logged; the
// last one is returned for the caller's bookkeeping.
func (a *WebPushAdapter) Send(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webpush: marshal event: %w", err)
	}

	a.mu.RLock()
	targets := make(map[string]*webpush.Subscription, len(a.subs))
	for id, sub := range a.subs {
		targets[id] = sub
	}
	a.mu.RUnlock()

	var lastErr error
	for id, sub := range targets {
		resp, err := webpush.SendNotificationWithContext(ctx, payload, sub, &webpush.Options{
			Subscriber:      a.cfg.Subscriber,
			VAPIDPublicKey:  a.cfg.VAPIDPublicKey,
			VAPIDPrivateKey: a.cfg.VAPIDPrivateKey,
			TTL:             60,
		})
		if err != nil {
			lastErr = err
			a.logError(event, id, err)
			continue
		}
		if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
			a.Unregister(id)
		}
		resp.Body.Close()
	}
	return lastErr
}

func (a *WebPushAdapter) logError(event *Event, subID string, err error) {
	if a.log == nil {
		return
	}
	_ = a.log.Warn(logging.CategoryNotify, "push_failed", err.Error(), map[string]any{
		"subscription": subID,
		"event":        string(event.Type),
	})
}
