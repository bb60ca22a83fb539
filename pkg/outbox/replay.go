package outbox

import (
	"context"
	"fmt"
)

// ReplayStore is the outbox storage replay needs.
type ReplayStore interface {
	GetEventByID(ctx context.Context, eventID int64) (*Event, error)
	GetFailedEvents(ctx context.Context, limit int) ([]*Event, error)
	ReplayEvent(ctx context.Context, eventID int64) error
}

// ReplayService resets outbox events for redelivery.
// It only resets rows to pending; the Dispatcher does the sending.
type ReplayService struct {
	store ReplayStore
}

// NewReplayService returns a ReplayService over store.
func NewReplayService(store ReplayStore) *ReplayService {
	return &ReplayService{store: store}
}

// ReplayEvent resets one event. Sent events may be replayed too.
func (s *ReplayService) ReplayEvent(ctx context.Context, eventID int64) error {
	if _, err := s.store.GetEventByID(ctx, eventID); err != nil {
		return err
	}
	if err := s.store.ReplayEvent(ctx, eventID); err != nil {
		return fmt.Errorf("failed to replay event %d: %w", eventID, err)
	}
	return nil
}

// ReplayFailedEvents resets every failed event and returns how many were reset.
func (s *ReplayService) ReplayFailedEvents(ctx context.Context, limit int) (int, error) {
	events, err := s.store.GetFailedEvents(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to get failed events: %w", err)
	}

	count := 0
	for _, event := range events {
		if err := s.store.ReplayEvent(ctx, event.ID); err != nil {
			continue
		}
		count++
	}
	return count, nil
}

// ListFailed lists failed events.
func (s *ReplayService) ListFailed(ctx context.Context, limit int) ([]*Event, error) {
	return s.store.GetFailedEvents(ctx, limit)
}
