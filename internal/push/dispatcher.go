package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sharelist/sharelist-sync/internal/logger"
	"github.com/sharelist/sharelist-sync/internal/model"
)

// Payload is the Web Push message shape consumed by the service worker.
type Payload struct {
	Title string      `json:"title"`
	Body  string      `json:"body"`
	Icon  string      `json:"icon,omitempty"`
	Badge string      `json:"badge,omitempty"`
	Data  PayloadData `json:"data"`
}

// PayloadData carries routing hints for the click handler and the
// background delivery agent's preference filter.
type PayloadData struct {
	ListID string `json:"listId"`
	Type   string `json:"type"`
	URL    string `json:"url"`
}

// Dispatcher is the explicit outbound task queue behind fan-out. Jobs are
// consumed by a fixed set of workers, making the best-effort contract
// observable and its concurrency bounded. Enqueue never blocks the
// caller; a full queue drops the job.
type Dispatcher struct {
	jobs   chan model.NotificationRecord
	subs   model.PushSubscriptionStore
	sender Sender
	logger *logger.Logger

	workers int
	wg      sync.WaitGroup
}

func NewDispatcher(subs model.PushSubscriptionStore, sender Sender, workers, capacity int, logger *logger.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 2
	}
	if capacity <= 0 {
		capacity = 256
	}
	return &Dispatcher{
		jobs:    make(chan model.NotificationRecord, capacity),
		subs:    subs,
		sender:  sender,
		logger:  logger,
		workers: workers,
	}
}

// Enqueue queues one delivery job. Returns false when the queue is full;
// the job is dropped and the durable record remains the fallback.
func (d *Dispatcher) Enqueue(record model.NotificationRecord) bool {
	select {
	case d.jobs <- record:
		return true
	default:
		return false
	}
}

// Run consumes the queue until ctx is cancelled, then drains in-flight
// workers.
func (d *Dispatcher) Run(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case rec := <-d.jobs:
					d.deliver(ctx, rec)
				}
			}
		}()
	}
	d.wg.Wait()
}

// deliver sends the record to each of the target's subscriptions
// independently. One subscription's failure never blocks another's send;
// a gone endpoint prunes exactly that subscription row. Nothing here is
// ever surfaced to a user.
func (d *Dispatcher) deliver(ctx context.Context, rec model.NotificationRecord) {
	subs, err := d.subs.GetByUser(ctx, rec.TargetUserID)
	if err != nil {
		d.logger.Warn("push: subscription lookup failed", "user_id", rec.TargetUserID, "error", err)
		return
	}
	if len(subs) == 0 {
		return
	}

	body, err := json.Marshal(BuildPayload(rec))
	if err != nil {
		d.logger.Error("push: payload encoding failed", "error", err)
		return
	}

	for _, sub := range subs {
		err := d.sender.Send(ctx, sub, body)
		switch {
		case err == nil:
		case errors.Is(err, model.ErrDeliveryGone):
			if delErr := d.subs.DeleteByEndpoint(ctx, sub.Endpoint); delErr != nil {
				d.logger.Warn("push: failed to prune gone subscription", "endpoint", sub.Endpoint, "error", delErr)
			} else {
				d.logger.Info("push: pruned gone subscription", "user_id", sub.UserID)
			}
		default:
			d.logger.Warn("push: delivery failed", "user_id", sub.UserID, "error", err)
		}
	}
}

// BuildPayload renders the user-facing push message for a record.
func BuildPayload(rec model.NotificationRecord) Payload {
	return Payload{
		Title: rec.ListName,
		Body:  summarize(rec),
		Icon:  "/icons/icon-192.png",
		Badge: "/icons/badge-72.png",
		Data: PayloadData{
			ListID: rec.ListID.String(),
			Type:   string(rec.Type),
			URL:    "/lists/" + rec.ListID.String(),
		},
	}
}

func summarize(rec model.NotificationRecord) string {
	actor := rec.ActorName
	if actor == "" {
		actor = "Someone"
	}
	product := ""
	if rec.ProductName != nil {
		product = *rec.ProductName
	}

	switch rec.Type {
	case model.NotificationProductAdded:
		return fmt.Sprintf("%s added %q", actor, product)
	case model.NotificationProductUpdated:
		return fmt.Sprintf("%s updated %q", actor, product)
	case model.NotificationProductDeleted:
		return fmt.Sprintf("%s removed %q", actor, product)
	case model.NotificationProductToggled:
		return fmt.Sprintf("%s checked off %q", actor, product)
	case model.NotificationMemberAdded:
		return fmt.Sprintf("%s joined the list", actor)
	case model.NotificationMemberRemoved:
		return fmt.Sprintf("%s removed a member", actor)
	case model.NotificationRemoved:
		return fmt.Sprintf("%s removed you from the list", actor)
	case model.NotificationListDeleted:
		return fmt.Sprintf("%s deleted the list", actor)
	default:
		return fmt.Sprintf("%s made a change", actor)
	}
}
