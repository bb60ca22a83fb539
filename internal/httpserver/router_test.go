package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ideaflow/internal/handler"
	"ideaflow/internal/model"
	"ideaflow/internal/progress"
	"ideaflow/internal/service"
	"ideaflow/internal/workflow"
	"ideaflow/pkg/trace"
	"ideaflow/pkg/util"
)

const secret = "test-secret"

type stubIdeas struct {
	handler.IdeaService
	lastActor model.Actor
	lastInput service.IdeaInput
	getErr    error
}

func (s *stubIdeas) Create(_ context.Context, a model.Actor, in service.IdeaInput) (*model.Idea, error) {
	s.lastActor, s.lastInput = a, in
	return &model.Idea{ID: uuid.New(), Title: in.Title, Status: model.StatusDraft, SubmitterID: a.ID}, nil
}

func (s *stubIdeas) Get(_ context.Context, _ model.Actor, id uuid.UUID) (*model.Idea, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &model.Idea{ID: id}, nil
}

func (s *stubIdeas) List(_ context.Context, a model.Actor, f model.IdeaFilter) ([]model.Idea, error) {
	s.lastActor = a
	return []model.Idea{}, nil
}

type stubReviews struct {
	handler.ReviewService
}

func (stubReviews) Queue(context.Context) (progress.Queue, error) {
	return progress.Partition(nil), nil
}

type stubDecisions struct {
	handler.DecisionService
	err      error
	lastKind workflow.DecisionKind
}

func (s *stubDecisions) Decide(_ context.Context, _ model.Actor, id uuid.UUID, kind workflow.DecisionKind, _ string) (*model.Idea, error) {
	s.lastKind = kind
	if s.err != nil {
		return nil, s.err
	}
	return &model.Idea{ID: id, Status: model.StatusApproved}, nil
}

type stubAuth struct {
	handler.AuthService
}

func (stubAuth) Login(_ context.Context, email, password string) (string, *model.Profile, error) {
	if password != "correct horse" {
		return "", nil, model.ErrInvalidCredential
	}
	return "token", &model.Profile{Email: email}, nil
}

type testServer struct {
	engine    *gin.Engine
	ideas     *stubIdeas
	decisions *stubDecisions
}

func newTestServer(t *testing.T, checks ...ReadinessCheck) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()
	ideas := &stubIdeas{}
	decisions := &stubDecisions{}
	r := NewRouter(Handlers{
		Ideas:   handler.NewIdeaHandler(ideas, log),
		Review:  handler.NewReviewHandler(nil, nil, stubReviews{}, decisions, log),
		Admin:   handler.NewAdminHandler(nil, nil, log),
		Account: handler.NewAccountHandler(stubAuth{}, nil, nil, nil, log),
	}, secret, log, checks...)
	return &testServer{engine: r.Engine, ideas: ideas, decisions: decisions}
}

func tokenFor(t *testing.T, id uuid.UUID, role model.Role) string {
	t.Helper()
	tok, err := util.GenerateJWT(id, string(role), secret, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	msg, _ := body["error"].(string)
	return msg
}

func TestHealthAndReadiness(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodHead, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/readyz", "", "").Code)

	failing := newTestServer(t, ReadinessCheck{Name: "db", Check: func(context.Context) error {
		return errors.New("connection refused")
	}})
	w := failing.do(http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "db_not_ready")
}

func TestAuthAndPermissions(t *testing.T) {
	s := newTestServer(t)
	submitter := tokenFor(t, uuid.New(), model.RoleSubmitter)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"missing token", http.MethodGet, "/ideas", "", http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/ideas", "garbage", http.StatusUnauthorized},
		{"submitter may list", http.MethodGet, "/ideas", submitter, http.StatusOK},
		{"submitter cannot see queue", http.MethodGet, "/review/queue", submitter, http.StatusForbidden},
		{"submitter cannot decide", http.MethodPost, "/ideas/" + uuid.NewString() + "/decision", submitter, http.StatusForbidden},
		{"submitter cannot administer", http.MethodGet, "/admin/users", submitter, http.StatusForbidden},
		{"management sees queue", http.MethodGet, "/review/queue", tokenFor(t, uuid.New(), model.RoleManagement), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(tt.method, tt.path, tt.token, "")
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestCreateIdea(t *testing.T) {
	s := newTestServer(t)
	userID := uuid.New()
	tok := tokenFor(t, userID, model.RoleSubmitter)

	w := s.do(http.MethodPost, "/ideas", tok, `{"title":"Solar roof","description":"Cover the car park","category":"technology"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, userID, s.ideas.lastActor.ID)
	assert.Equal(t, model.RoleSubmitter, s.ideas.lastActor.Role)
	assert.Equal(t, "Solar roof", s.ideas.lastInput.Title)

	w = s.do(http.MethodPost, "/ideas", tok, `{"title":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid request", errorOf(t, w))
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	mgmt := tokenFor(t, uuid.New(), model.RoleManagement)
	path := "/ideas/" + uuid.NewString() + "/decision"

	tests := []struct {
		err  error
		want int
	}{
		{model.ErrInvalidTransition, http.StatusConflict},
		{model.ErrNotFound, http.StatusNotFound},
		{model.ErrValidation, http.StatusBadRequest},
		{errors.New("database on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			s.decisions.err = tt.err
			w := s.do(http.MethodPost, path, mgmt, `{"decision":"approve"}`)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusInternalServerError {
				assert.Equal(t, "internal error", errorOf(t, w))
			}
		})
	}
	assert.Equal(t, workflow.DecisionApprove, s.decisions.lastKind)
}

func TestInvalidIDAndNotFound(t *testing.T) {
	s := newTestServer(t)
	tok := tokenFor(t, uuid.New(), model.RoleEvaluator)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/ideas/not-a-uuid", tok, "").Code)

	s.ideas.getErr = model.ErrNotFound
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/ideas/"+uuid.NewString(), tok, "").Code)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodPost, "/login", "", `{"email":"a@example.com","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"token":"token"`)

	w = s.do(http.MethodPost, "/login", "", `{"email":"a@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTraceHeader(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(trace.HeaderName, "abc123")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, "abc123", w.Header().Get(trace.HeaderName))

	w = s.do(http.MethodGet, "/healthz", "", "")
	assert.Len(t, w.Header().Get(trace.HeaderName), 32)
}

func TestProbeRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewProbeRouter(zap.NewNop(), ReadinessCheck{Name: "mq", Check: func(context.Context) error {
		return errors.New("channel closed")
	}})

	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "mq_not_ready")

	w = httptest.NewRecorder()
	r.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
