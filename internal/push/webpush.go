// Package push delivers notifications out-of-band to disconnected
// clients over Web Push. Delivery is best-effort: the durable
// notification record is the fallback a user sees on next fetch.
package push

import (
	"context"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/sharelist/sharelist-sync/internal/model"
)

// Sender delivers one encoded payload to one subscription. A dead
// endpoint returns model.ErrDeliveryGone.
type Sender interface {
	Send(ctx context.Context, sub model.PushSubscription, body []byte) error
}

// VAPIDConfig holds the server's Web Push signing material.
type VAPIDConfig struct {
	Subject    string
	PublicKey  string
	PrivateKey string
	TTL        int
}

// WebPushSender sends payloads through the Web Push protocol with VAPID
// authentication.
type WebPushSender struct {
	cfg VAPIDConfig
}

func NewWebPushSender(cfg VAPIDConfig) *WebPushSender {
	if cfg.TTL <= 0 {
		cfg.TTL = 60
	}
	return &WebPushSender{cfg: cfg}
}

var _ Sender = (*WebPushSender)(nil)

// Send pushes body to the subscription's endpoint. HTTP 404 and 410 mean
// the endpoint no longer exists and map to model.ErrDeliveryGone so the
// caller can prune the subscription.
func (s *WebPushSender) Send(ctx context.Context, sub model.PushSubscription, body []byte) error {
	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		Subscriber:      s.cfg.Subject,
		VAPIDPublicKey:  s.cfg.PublicKey,
		VAPIDPrivateKey: s.cfg.PrivateKey,
		TTL:             s.cfg.TTL,
	})
	if err != nil {
		return fmt.Errorf("send web push: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return model.ErrDeliveryGone
	case resp.StatusCode >= 400:
		return fmt.Errorf("web push rejected: status %d", resp.StatusCode)
	}
	return nil
}
