package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationChannel string

const (
	ChannelEmail   NotificationChannel = "EMAIL"
	ChannelWebhook NotificationChannel = "WEBHOOK"
)

const (
	NotificationPending = "PENDING"
	NotificationSent    = "SENT"
	NotificationFailed  = "FAILED"
)

type Notification struct {
	ID        uuid.UUID           `json:"id"`
	UserID    uuid.UUID           `json:"user_id"`
	IdeaID    *uuid.UUID          `json:"idea_id,omitempty"`
	Channel   NotificationChannel `json:"channel"`
	EventKey  string              `json:"event_key"`
	Subject   string              `json:"subject"`
	Message   string              `json:"message"`
	Status    string              `json:"status"`
	Error     *string             `json:"error,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	SentAt    *time.Time          `json:"sent_at,omitempty"`
}
