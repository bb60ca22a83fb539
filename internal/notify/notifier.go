package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ideaflow/internal/model"
	"ideaflow/pkg/logger"
	"ideaflow/pkg/metrics"
)

// Store records every notification attempt.
type Store interface {
	// Insert returns false when the event was already delivered for this user
	// and channel. Unsent rows are re-armed.
	Insert(ctx context.Context, n *model.Notification) (bool, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

type ProfileLookup interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error)
}

// Notice is a notification addressed to a user before the channel fan-out.
type Notice struct {
	UserID   uuid.UUID
	IdeaID   *uuid.UUID
	EventKey string
	Subject  string
	Body     string
}

type Notifier struct {
	store    Store
	profiles ProfileLookup
	senders  []Sender
	logger   *zap.Logger
	now      func() time.Time
}

func NewNotifier(store Store, profiles ProfileLookup, logger *zap.Logger, senders ...Sender) *Notifier {
	return &Notifier{
		store:    store,
		profiles: profiles,
		senders:  senders,
		logger:   logger,
		now:      time.Now,
	}
}

// Channels lists the enabled channels in send order.
func (n *Notifier) Channels() []model.NotificationChannel {
	out := make([]model.NotificationChannel, len(n.senders))
	for i, s := range n.senders {
		out[i] = s.Channel()
	}
	return out
}

// Notify sends the notice on every enabled channel. Channels that already
// handled the event are skipped. Failures on one channel do not stop the
// others; the joined error is returned so the message can be redelivered.
func (n *Notifier) Notify(ctx context.Context, notice Notice) error {
	log := logger.WithTrace(ctx, n.logger).With(
		zap.String("user_id", notice.UserID.String()),
		zap.String("event_key", notice.EventKey),
	)

	profile, err := n.profiles.GetProfile(ctx, notice.UserID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			log.Warn("Notification recipient not found, dropping")
			return nil
		}
		return fmt.Errorf("load recipient: %w", err)
	}
	if !profile.IsActive {
		log.Info("Recipient is blocked, notification skipped")
		return nil
	}

	msg := Message{
		UserID:   profile.ID,
		Email:    profile.Email,
		FullName: profile.FullName,
		IdeaID:   notice.IdeaID,
		EventKey: notice.EventKey,
		Subject:  notice.Subject,
		Body:     notice.Body,
	}

	var errs []error
	for _, s := range n.senders {
		if err := n.deliver(ctx, log, s, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *Notifier) deliver(ctx context.Context, log *zap.Logger, s Sender, msg Message) error {
	channel := s.Channel()
	log = log.With(zap.String("channel", string(channel)))

	record := &model.Notification{
		ID:        uuid.New(),
		UserID:    msg.UserID,
		IdeaID:    msg.IdeaID,
		Channel:   channel,
		EventKey:  msg.EventKey,
		Subject:   msg.Subject,
		Message:   msg.Body,
		Status:    model.NotificationPending,
		CreatedAt: n.now(),
	}
	created, err := n.store.Insert(ctx, record)
	if err != nil {
		return fmt.Errorf("record %s notification: %w", channel, err)
	}
	if !created {
		log.Info("Notification already handled, skipping")
		metrics.IncrementNotificationSent(string(channel), "duplicate")
		return nil
	}

	if sendErr := s.Send(ctx, msg); sendErr != nil {
		log.Error("Failed to send notification", zap.Error(sendErr))
		metrics.IncrementNotificationSent(string(channel), "failed")
		if err := n.store.MarkFailed(ctx, record.ID, sendErr.Error()); err != nil {
			log.Error("Failed to mark notification failed", zap.Error(err))
		}
		return fmt.Errorf("send %s notification: %w", channel, sendErr)
	}

	if err := n.store.MarkSent(ctx, record.ID, n.now()); err != nil {
		// delivered; the message is acked so the row is not revisited
		log.Error("Failed to mark notification sent", zap.Error(err))
	}
	metrics.IncrementNotificationSent(string(channel), "sent")
	log.Info("Notification sent successfully", zap.String("notification_id", record.ID.String()))
	return nil
}
