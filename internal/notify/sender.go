package notify

import (
	"context"

	"github.com/google/uuid"

	"ideaflow/internal/model"
)

// Message is one rendered notification addressed to a single user.
type Message struct {
	UserID   uuid.UUID  `json:"user_id"`
	Email    string     `json:"email"`
	FullName string     `json:"full_name"`
	IdeaID   *uuid.UUID `json:"idea_id,omitempty"`
	EventKey string     `json:"event_key"`
	Subject  string     `json:"subject"`
	Body     string     `json:"message"`
}

// Sender delivers messages over one channel.
type Sender interface {
	Channel() model.NotificationChannel
	Send(ctx context.Context, msg Message) error
}
