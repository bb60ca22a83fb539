package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"ideaflow/internal/model"
)

type NotificationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewNotificationRepository(db *pgxpool.Pool, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Insert stores a pending notification. A row left unsent for the same user,
// channel and event (FAILED, or PENDING after a crash) is reset to PENDING and
// its id copied into n. It returns false when the event was already SENT.
func (r *NotificationRepository) Insert(ctx context.Context, n *model.Notification) (bool, error) {
	r.logger.Debug("Inserting notification",
		zap.String("user_id", n.UserID.String()),
		zap.String("channel", string(n.Channel)),
		zap.String("event_key", n.EventKey),
	)
	var id uuid.UUID
	err := r.db.QueryRow(ctx, `
        INSERT INTO notifications (id, user_id, idea_id, channel, event_key, subject, message, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (user_id, channel, event_key) DO UPDATE
            SET status = EXCLUDED.status, error = NULL
            WHERE notifications.status <> 'SENT'
        RETURNING id
    `, n.ID, n.UserID, n.IdeaID, string(n.Channel), n.EventKey, n.Subject, n.Message, n.Status, n.CreatedAt).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		r.logger.Error("Failed to insert notification", zap.Error(err))
		return false, err
	}
	n.ID = id
	return true, nil
}

func (r *NotificationRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `
        UPDATE notifications SET status = 'SENT', sent_at = $2, error = NULL WHERE id = $1
    `, id, at)
	return err
}

func (r *NotificationRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.db.Exec(ctx, `
        UPDATE notifications SET status = 'FAILED', error = $2 WHERE id = $1
    `, id, reason)
	return err
}

func (r *NotificationRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]model.Notification, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, user_id, idea_id, channel, event_key, subject, message, status, error, created_at, sent_at
        FROM notifications
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `, userID, limit)
	if err != nil {
		r.logger.Error("Failed to query notifications", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, err
	}
	defer rows.Close()

	out := []model.Notification{}
	for rows.Next() {
		var (
			n       model.Notification
			channel string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.IdeaID, &channel, &n.EventKey, &n.Subject, &n.Message,
			&n.Status, &n.Error, &n.CreatedAt, &n.SentAt); err != nil {
			return nil, err
		}
		n.Channel = model.NotificationChannel(channel)
		out = append(out, n)
	}
	return out, rows.Err()
}
