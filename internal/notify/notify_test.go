package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	mail "github.com/go-mail/mail/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ideaflow/internal/model"
	"ideaflow/pkg/circuitbreaker"
	"ideaflow/pkg/config"
	"ideaflow/pkg/util"
)

type memStore struct {
	mu   sync.Mutex
	rows map[string]*model.Notification
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]*model.Notification{}}
}

func key(n *model.Notification) string {
	return n.UserID.String() + "|" + string(n.Channel) + "|" + n.EventKey
}

func (s *memStore) Insert(_ context.Context, n *model.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.rows[key(n)]; ok {
		if prev.Status == model.NotificationSent {
			return false, nil
		}
		prev.Status = model.NotificationPending
		prev.Error = nil
		n.ID = prev.ID
		return true, nil
	}
	cp := *n
	s.rows[key(n)] = &cp
	return true, nil
}

func (s *memStore) find(id uuid.UUID) *model.Notification {
	for _, r := range s.rows {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (s *memStore) MarkSent(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.find(id)
	r.Status = model.NotificationSent
	r.SentAt = &at
	return nil
}

func (s *memStore) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.find(id)
	r.Status = model.NotificationFailed
	r.Error = &reason
	return nil
}

func (s *memStore) statusOf(userID uuid.UUID, ch model.NotificationChannel, eventKey string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[userID.String()+"|"+string(ch)+"|"+eventKey]
	if !ok {
		return ""
	}
	return r.Status
}

type profiles map[uuid.UUID]model.Profile

func (p profiles) GetProfile(_ context.Context, id uuid.UUID) (*model.Profile, error) {
	pr, ok := p[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &pr, nil
}

type fakeSender struct {
	channel model.NotificationChannel
	fail    error
	sent    []Message
}

func (f *fakeSender) Channel() model.NotificationChannel { return f.channel }

func (f *fakeSender) Send(_ context.Context, msg Message) error {
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, msg)
	return nil
}

func TestNotify_SendsOnEveryChannelOnce(t *testing.T) {
	user := model.Profile{ID: uuid.New(), Email: "ada@example.com", FullName: "Ada", IsActive: true}
	store := newMemStore()
	email := &fakeSender{channel: model.ChannelEmail}
	hook := &fakeSender{channel: model.ChannelWebhook}
	n := NewNotifier(store, profiles{user.ID: user}, zap.NewNop(), email, hook)

	assert.Equal(t, []model.NotificationChannel{model.ChannelEmail, model.ChannelWebhook}, n.Channels())

	notice := Notice{UserID: user.ID, EventKey: "idea.decided:1", Subject: "Decision", Body: "approved"}
	require.NoError(t, n.Notify(context.Background(), notice))
	require.NoError(t, n.Notify(context.Background(), notice))

	require.Len(t, email.sent, 1)
	require.Len(t, hook.sent, 1)
	assert.Equal(t, "ada@example.com", email.sent[0].Email)
	assert.Equal(t, "Decision", email.sent[0].Subject)
	assert.Equal(t, model.NotificationSent, store.statusOf(user.ID, model.ChannelEmail, "idea.decided:1"))
}

func TestNotify_FailedChannelIsRetried(t *testing.T) {
	user := model.Profile{ID: uuid.New(), Email: "bob@example.com", IsActive: true}
	store := newMemStore()
	email := &fakeSender{channel: model.ChannelEmail, fail: errors.New("smtp down")}
	hook := &fakeSender{channel: model.ChannelWebhook}
	n := NewNotifier(store, profiles{user.ID: user}, zap.NewNop(), email, hook)

	notice := Notice{UserID: user.ID, EventKey: "evaluator.assigned:9"}
	err := n.Notify(context.Background(), notice)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
	assert.Len(t, hook.sent, 1, "other channels still deliver")
	assert.Equal(t, model.NotificationFailed, store.statusOf(user.ID, model.ChannelEmail, notice.EventKey))

	email.fail = nil
	require.NoError(t, n.Notify(context.Background(), notice))
	assert.Len(t, email.sent, 1)
	assert.Len(t, hook.sent, 1)
	assert.Equal(t, model.NotificationSent, store.statusOf(user.ID, model.ChannelEmail, notice.EventKey))
}

type stuckStore struct {
	*memStore
}

func (stuckStore) MarkFailed(context.Context, uuid.UUID, string) error {
	return errors.New("connection reset")
}

func TestNotify_UnmarkedFailureIsRetried(t *testing.T) {
	user := model.Profile{ID: uuid.New(), Email: "cy@example.com", IsActive: true}
	store := stuckStore{newMemStore()}
	email := &fakeSender{channel: model.ChannelEmail, fail: errors.New("smtp 451")}
	n := NewNotifier(store, profiles{user.ID: user}, zap.NewNop(), email)

	notice := Notice{UserID: user.ID, EventKey: "idea.decided:7"}
	require.Error(t, n.Notify(context.Background(), notice))
	assert.Equal(t, model.NotificationPending, store.statusOf(user.ID, model.ChannelEmail, notice.EventKey))

	email.fail = nil
	require.NoError(t, n.Notify(context.Background(), notice))
	require.Len(t, email.sent, 1)
	assert.Equal(t, model.NotificationSent, store.statusOf(user.ID, model.ChannelEmail, notice.EventKey))
}

func TestNotify_SkipsUnknownAndBlockedRecipients(t *testing.T) {
	blocked := model.Profile{ID: uuid.New(), Email: "x@example.com", IsActive: false}
	email := &fakeSender{channel: model.ChannelEmail}
	n := NewNotifier(newMemStore(), profiles{blocked.ID: blocked}, zap.NewNop(), email)

	require.NoError(t, n.Notify(context.Background(), Notice{UserID: blocked.ID, EventKey: "a"}))
	require.NoError(t, n.Notify(context.Background(), Notice{UserID: uuid.New(), EventKey: "b"}))
	assert.Empty(t, email.sent)
}

func TestEmailSender(t *testing.T) {
	s := NewEmailSender(config.MailConfig{Host: "smtp.example.com", From: "ideas@example.com"}, zap.NewNop())
	var got *mail.Message
	s.send = func(m *mail.Message) error {
		got = m
		return nil
	}

	err := s.Send(context.Background(), Message{Email: "ada@example.com", FullName: "Ada", Subject: "Hello", Body: "hi"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"ideas@example.com"}, got.GetHeader("From"))
	assert.Equal(t, []string{"Hello"}, got.GetHeader("Subject"))
	require.Len(t, got.GetHeader("To"), 1)
	assert.Contains(t, got.GetHeader("To")[0], "ada@example.com")
	assert.Equal(t, 587, s.dialer.Port)

	err = s.Send(context.Background(), Message{Subject: "no address"})
	require.Error(t, err)
	retryable, _ := util.IsRetryableError(err)
	assert.False(t, retryable)
}

func TestWebhookSender(t *testing.T) {
	var (
		status   = http.StatusOK
		received Message
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.WriteHeader(status)
	}))
	defer srv.Close()

	s := NewWebhookSender(config.WebhookConfig{URL: srv.URL}, zap.NewNop())
	ctx := context.Background()
	msg := Message{UserID: uuid.New(), EventKey: "idea.evaluated:1", Subject: "Evaluated"}

	require.NoError(t, s.Send(ctx, msg))
	assert.Equal(t, msg.EventKey, received.EventKey)
	assert.Equal(t, msg.UserID, received.UserID)

	status = http.StatusBadRequest
	err := s.Send(ctx, msg)
	require.Error(t, err)
	retryable, _ := util.IsRetryableError(err)
	assert.False(t, retryable, "4xx is permanent")

	status = http.StatusBadGateway
	err = s.Send(ctx, msg)
	require.Error(t, err)
	retryable, _ = util.IsRetryableError(err)
	assert.True(t, retryable, "5xx is retried")
}

func TestWebhookSender_BreakerOpens(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewWebhookSender(config.WebhookConfig{URL: srv.URL, Timeout: time.Second}, zap.NewNop())
	threshold := circuitbreaker.DefaultConfig().FailureThreshold
	for i := 0; i < threshold; i++ {
		require.Error(t, s.Send(context.Background(), Message{}))
	}
	err := s.Send(context.Background(), Message{})
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitBreakerOpen)
	assert.Equal(t, threshold, calls)
}
