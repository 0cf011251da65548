package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/sharelist/sharelist-sync/internal/logger"
	"github.com/sharelist/sharelist-sync/internal/model"
)

// Broadcaster delivers live events. Broadcast reaches every connected
// subscriber of a room; SendToUser reaches every connected session of one
// user. Implemented by the realtime hub.
type Broadcaster interface {
	Broadcast(listID uuid.UUID, event model.Event)
	SendToUser(userID uuid.UUID, event model.Event)
}

// PushDispatcher queues a best-effort push delivery for a record's target
// user. Enqueue never blocks; a false return means the job was dropped.
type PushDispatcher interface {
	Enqueue(record model.NotificationRecord) bool
}

// FanOut computes per-event recipient sets and produces one durable
// record, one queued push and a shared room event per mutation. All of
// its work is best-effort relative to the mutation that triggered it:
// failures are logged, never returned. The one check that does surface is
// standing: an actor outside the list is rejected before any work starts.
type FanOut struct {
	lists         model.ListDirectory
	notifications model.NotificationStore
	users         model.UserStore
	hub           Broadcaster
	push          PushDispatcher
	logger        *logger.Logger
}

func NewFanOut(
	lists model.ListDirectory,
	notifications model.NotificationStore,
	users model.UserStore,
	hub Broadcaster,
	push PushDispatcher,
	logger *logger.Logger,
) *FanOut {
	return &FanOut{
		lists:         lists,
		notifications: notifications,
		users:         users,
		hub:           hub,
		push:          push,
		logger:        logger,
	}
}

// FanOutInput describes one committed mutation to announce.
type FanOutInput struct {
	Type          model.NotificationType
	ListID        uuid.UUID
	ActorID       uuid.UUID
	ProductID     *uuid.UUID
	ProductName   *string
	ExcludeUserID *uuid.UUID
}

// FanOutForListMembers is invoked after a membership or product mutation
// commits. The actor must be the list's owner or a member; anyone else
// gets ErrPermissionDenied and nothing is produced. Recipients are owner
// plus members minus the actor (an actor never notifies themselves) minus
// the optional exclusion. Muted recipients are dropped from persistence
// and push unless the type is critical. The live room event goes to every
// connected subscriber either way; connected clients re-check their own
// mute settings locally. Failures past the actor check are logged, never
// returned.
func (f *FanOut) FanOutForListMembers(ctx context.Context, in FanOutInput) error {
	list, err := f.lists.GetList(ctx, in.ListID)
	if err != nil {
		f.logger.Warn("fan-out: list lookup failed", "list_id", in.ListID, "error", err)
		return nil
	}
	members, err := f.lists.MemberIDs(ctx, list.ID)
	if err != nil {
		f.logger.Warn("fan-out: member lookup failed", "list_id", in.ListID, "error", err)
		return nil
	}
	if !belongsToList(list, members, in.ActorID) {
		return model.ErrPermissionDenied
	}
	if !list.IsGroup {
		// Personal list: nobody to tell.
		return nil
	}

	targets := resolveTargets(list, members, in)
	if len(targets) == 0 {
		return nil
	}

	delivered := targets
	if !in.Type.Critical() {
		delivered, err = f.subtractMuted(ctx, in.ListID, targets)
		if err != nil {
			f.logger.Warn("fan-out: mute lookup failed", "list_id", in.ListID, "error", err)
			return nil
		}
	}

	actorName := f.actorName(ctx, in.ActorID)

	if len(delivered) > 0 {
		records := buildRecords(list, in, actorName, delivered)
		if err := f.notifications.CreateBatch(ctx, records); err != nil {
			f.logger.Error("fan-out: persist failed", "list_id", in.ListID, "error", err)
		} else {
			for _, rec := range records {
				f.sendRecordEvent(rec)
				if !f.push.Enqueue(rec) {
					f.logger.Warn("fan-out: push queue full, job dropped",
						"list_id", in.ListID, "target", rec.TargetUserID)
				}
			}
		}
	}

	f.hub.Broadcast(in.ListID, model.Event{
		Kind:      model.EventKindForNotification(in.Type),
		ListID:    in.ListID,
		ActorID:   in.ActorID,
		ActorName: actorName,
		Timestamp: time.Now(),
		Data:      productData(in),
	})
	return nil
}

// CreateNotification produces a single-target notice, e.g. the removed
// member receiving their own removal. It persists and pushes but does not
// broadcast; the room-wide announcement is a separate fan-out. The actor
// must belong to the list; note that the target need not (a just-removed
// member no longer does).
func (f *FanOut) CreateNotification(ctx context.Context, in FanOutInput, targetUserID uuid.UUID) error {
	list, err := f.lists.GetList(ctx, in.ListID)
	if err != nil {
		f.logger.Warn("create notification: list lookup failed", "list_id", in.ListID, "error", err)
		return nil
	}
	members, err := f.lists.MemberIDs(ctx, list.ID)
	if err != nil {
		f.logger.Warn("create notification: member lookup failed", "list_id", in.ListID, "error", err)
		return nil
	}
	if !belongsToList(list, members, in.ActorID) {
		return model.ErrPermissionDenied
	}

	if !in.Type.Critical() {
		muted, err := f.lists.MutedUserIDs(ctx, in.ListID)
		if err != nil {
			f.logger.Warn("create notification: mute lookup failed", "list_id", in.ListID, "error", err)
			return nil
		}
		for _, id := range muted {
			if id == targetUserID {
				return nil
			}
		}
	}

	records := buildRecords(list, in, f.actorName(ctx, in.ActorID), []uuid.UUID{targetUserID})
	if err := f.notifications.CreateBatch(ctx, records); err != nil {
		f.logger.Error("create notification: persist failed", "list_id", in.ListID, "error", err)
		return nil
	}
	f.sendRecordEvent(records[0])
	if !f.push.Enqueue(records[0]) {
		f.logger.Warn("create notification: push queue full, job dropped",
			"list_id", in.ListID, "target", targetUserID)
	}
	return nil
}

// sendRecordEvent delivers a notification:new event to the record's
// target, carrying the full record so connected mergers can ingest it
// without a re-fetch.
func (f *FanOut) sendRecordEvent(rec model.NotificationRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	f.hub.SendToUser(rec.TargetUserID, model.Event{
		Kind:      model.EventNotificationNew,
		ListID:    rec.ListID,
		ActorID:   rec.ActorID,
		ActorName: rec.ActorName,
		Timestamp: rec.CreatedAt,
		Data:      data,
	})
}

func belongsToList(list model.ListInfo, members []uuid.UUID, userID uuid.UUID) bool {
	if userID == list.OwnerID {
		return true
	}
	for _, id := range members {
		if id == userID {
			return true
		}
	}
	return false
}

func resolveTargets(list model.ListInfo, members []uuid.UUID, in FanOutInput) []uuid.UUID {
	seen := map[uuid.UUID]struct{}{list.OwnerID: {}}
	targets := []uuid.UUID{list.OwnerID}
	for _, id := range members {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		targets = append(targets, id)
	}

	filtered := targets[:0]
	for _, id := range targets {
		if id == in.ActorID {
			continue
		}
		if in.ExcludeUserID != nil && id == *in.ExcludeUserID {
			continue
		}
		filtered = append(filtered, id)
	}
	return filtered
}

func (f *FanOut) subtractMuted(ctx context.Context, listID uuid.UUID, targets []uuid.UUID) ([]uuid.UUID, error) {
	muted, err := f.lists.MutedUserIDs(ctx, listID)
	if err != nil {
		return nil, err
	}
	if len(muted) == 0 {
		return targets, nil
	}

	mutedSet := make(map[uuid.UUID]struct{}, len(muted))
	for _, id := range muted {
		mutedSet[id] = struct{}{}
	}

	kept := targets[:0]
	for _, id := range targets {
		if _, ok := mutedSet[id]; !ok {
			kept = append(kept, id)
		}
	}
	return kept, nil
}

func (f *FanOut) actorName(ctx context.Context, actorID uuid.UUID) string {
	actor, err := f.users.GetByID(ctx, actorID)
	if err != nil {
		f.logger.Warn("fan-out: actor lookup failed", "actor_id", actorID, "error", err)
		return ""
	}
	return actor.Name
}

// productData builds the kind-specific payload of the room event.
func productData(in FanOutInput) json.RawMessage {
	data := struct {
		ProductID     *uuid.UUID `json:"productId,omitempty"`
		ProductName   *string    `json:"productName,omitempty"`
		RemovedUserID *uuid.UUID `json:"removedUserId,omitempty"`
	}{
		ProductID:   in.ProductID,
		ProductName: in.ProductName,
	}
	if in.Type == model.NotificationMemberRemoved {
		data.RemovedUserID = in.ExcludeUserID
	}
	if data.ProductID == nil && data.ProductName == nil && data.RemovedUserID == nil {
		return nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return b
}

func buildRecords(list model.ListInfo, in FanOutInput, actorName string, targets []uuid.UUID) []model.NotificationRecord {
	now := time.Now()
	records := make([]model.NotificationRecord, 0, len(targets))
	for _, target := range targets {
		records = append(records, model.NotificationRecord{
			ID:           uuid.New(),
			Type:         in.Type,
			ListID:       list.ID,
			ListName:     list.Name,
			ActorID:      in.ActorID,
			ActorName:    actorName,
			TargetUserID: target,
			ProductID:    in.ProductID,
			ProductName:  in.ProductName,
			CreatedAt:    now,
		})
	}
	return records
}
