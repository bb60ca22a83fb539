package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ideaflow/internal/model"
	"ideaflow/internal/progress"
)

var fixedNow = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// memStore is an in-memory implementation of every store interface.
type memStore struct {
	mu          sync.Mutex
	ideas       map[uuid.UUID]model.Idea
	assignments []model.Assignment
	evaluations []model.Evaluation
	profiles    map[uuid.UUID]model.Profile
	actions     []model.ActionLog
	statuses    []model.StatusLog
	events      []model.OutboxEvent
	points      []model.PointsEntry
	recs        []model.RecognitionEvent
	counts      map[uuid.UUID]model.ActivityCounts
	saved       []model.SubmitterMetrics
}

func newMemStore() *memStore {
	return &memStore{
		ideas:    map[uuid.UUID]model.Idea{},
		profiles: map[uuid.UUID]model.Profile{},
		counts:   map[uuid.UUID]model.ActivityCounts{},
	}
}

func (m *memStore) routingKeys() []string {
	keys := make([]string, len(m.events))
	for i, e := range m.events {
		keys[i] = e.RoutingKey
	}
	return keys
}

// --- IdeaStore

func (m *memStore) CreateIdea(_ context.Context, idea *model.Idea, action model.ActionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ideas[idea.ID] = *idea
	m.actions = append(m.actions, action)
	return nil
}

func (m *memStore) GetIdea(_ context.Context, id uuid.UUID) (*model.Idea, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idea, ok := m.ideas[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &idea, nil
}

func (m *memStore) UpdateDraft(_ context.Context, idea *model.Idea, action model.ActionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.ideas[idea.ID]
	if !ok {
		return model.ErrNotFound
	}
	if cur.Status != model.StatusDraft {
		return model.ErrConflict
	}
	m.ideas[idea.ID] = *idea
	m.actions = append(m.actions, action)
	return nil
}

func (m *memStore) ListIdeas(_ context.Context, f model.IdeaFilter) ([]model.Idea, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Idea{}
	for _, idea := range m.ideas {
		if f.SubmitterID != nil && idea.SubmitterID != *f.SubmitterID {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, idea.Status) {
			continue
		}
		if f.Category != "" && idea.Category != f.Category {
			continue
		}
		out = append(out, idea)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	if f.Offset >= len(out) {
		return []model.Idea{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func containsStatus(list []model.IdeaStatus, s model.IdeaStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (m *memStore) ApplyTransition(_ context.Context, t model.Transition, events []model.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(t, events)
}

func (m *memStore) applyLocked(t model.Transition, events []model.OutboxEvent) error {
	cur, ok := m.ideas[t.Idea.ID]
	if !ok {
		return model.ErrNotFound
	}
	if cur.Status != t.From {
		return model.ErrConflict
	}
	next := t.Idea
	next.AverageEvaluationScore = cur.AverageEvaluationScore
	m.ideas[t.Idea.ID] = next
	m.statuses = append(m.statuses, t.StatusLog)
	if t.Action != nil {
		m.actions = append(m.actions, *t.Action)
	}
	m.events = append(m.events, events...)
	return nil
}

// --- AssignmentStore

func (m *memStore) ListAssignments(_ context.Context, ideaID uuid.UUID, activeOnly bool) ([]model.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Assignment{}
	for _, a := range m.assignments {
		if a.IdeaID == ideaID && (!activeOnly || a.IsActive) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) ListActiveAssignmentsForIdeas(_ context.Context, ids []uuid.UUID) ([]model.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[uuid.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := []model.Assignment{}
	for _, a := range m.assignments {
		if a.IsActive && want[a.IdeaID] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) ListAssignmentsForEvaluator(_ context.Context, evaluatorID uuid.UUID, activeOnly bool) ([]model.AssignmentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.AssignmentDetail{}
	for _, a := range m.assignments {
		if a.EvaluatorID == evaluatorID && (!activeOnly || a.IsActive) {
			out = append(out, model.AssignmentDetail{Assignment: a, IdeaTitle: m.ideas[a.IdeaID].Title})
		}
	}
	return out, nil
}

func (m *memStore) ReplaceAssignment(_ context.Context, a model.Assignment, t *model.Transition, action model.ActionLog, events []model.OutboxEvent) (*model.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var replaced *model.Assignment
	for i := range m.assignments {
		cur := &m.assignments[i]
		if cur.IdeaID == a.IdeaID && cur.EvaluationType == a.EvaluationType && cur.IsActive {
			cur.IsActive = false
			prev := *cur
			replaced = &prev
		}
	}
	m.assignments = append(m.assignments, a)
	if t != nil {
		if err := m.applyLocked(*t, nil); err != nil {
			return nil, err
		}
	}
	m.actions = append(m.actions, action)
	m.events = append(m.events, events...)
	return replaced, nil
}

func (m *memStore) DeactivateAssignment(_ context.Context, ideaID uuid.UUID, category model.RubricCategory, action model.ActionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := false
	for i := range m.assignments {
		cur := &m.assignments[i]
		if cur.IdeaID == ideaID && cur.EvaluationType == category && cur.IsActive {
			cur.IsActive = false
			found = true
		}
	}
	if !found {
		return model.ErrNotFound
	}
	m.actions = append(m.actions, action)
	return nil
}

func (m *memStore) evaluatedLocked(a model.Assignment) bool {
	for _, ev := range m.evaluations {
		if ev.IdeaID == a.IdeaID && ev.EvaluatorID == a.EvaluatorID && ev.EvaluationType == a.EvaluationType {
			return true
		}
	}
	return false
}

func (m *memStore) EvaluatorWorkloads(_ context.Context) ([]model.EvaluatorWorkload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID := map[uuid.UUID]*model.EvaluatorWorkload{}
	for _, a := range m.assignments {
		if !a.IsActive {
			continue
		}
		w, ok := byID[a.EvaluatorID]
		if !ok {
			w = &model.EvaluatorWorkload{EvaluatorID: a.EvaluatorID, FullName: m.profiles[a.EvaluatorID].FullName}
			byID[a.EvaluatorID] = w
		}
		w.Active++
		if m.evaluatedLocked(a) {
			w.Completed++
		} else {
			w.Pending++
		}
	}
	out := []model.EvaluatorWorkload{}
	for _, w := range byID {
		out = append(out, *w)
	}
	return out, nil
}

// --- EvaluationStore

func (m *memStore) ListEvaluations(_ context.Context, ideaID uuid.UUID) ([]model.Evaluation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Evaluation{}
	for _, ev := range m.evaluations {
		if ev.IdeaID == ideaID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memStore) ListEvaluationsForIdeas(_ context.Context, ids []uuid.UUID) ([]model.Evaluation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[uuid.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := []model.Evaluation{}
	for _, ev := range m.evaluations {
		if want[ev.IdeaID] {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memStore) SubmitEvaluation(_ context.Context, ev *model.Evaluation, plan model.EvaluationPlanner) (model.EvaluationOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idea, ok := m.ideas[ev.IdeaID]
	if !ok {
		return model.EvaluationOutcome{}, model.ErrNotFound
	}
	var as []model.Assignment
	for _, a := range m.assignments {
		if a.IdeaID == ev.IdeaID {
			as = append(as, a)
		}
	}
	var evs []model.Evaluation
	for _, e := range m.evaluations {
		if e.IdeaID == ev.IdeaID {
			evs = append(evs, e)
		}
	}
	out, err := plan(idea, as, evs)
	if err != nil {
		return model.EvaluationOutcome{}, err
	}
	m.evaluations = append(m.evaluations, *ev)
	idea.AverageEvaluationScore = out.AverageScore
	m.ideas[idea.ID] = idea
	m.actions = append(m.actions, out.Action)
	if out.Transition != nil {
		if err := m.applyLocked(*out.Transition, nil); err != nil {
			return model.EvaluationOutcome{}, err
		}
	}
	m.events = append(m.events, out.Events...)
	return out, nil
}

// --- ProfileStore

func (m *memStore) GetProfile(_ context.Context, id uuid.UUID) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &p, nil
}

func (m *memStore) GetProfileByEmail(_ context.Context, email string) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.Email == email {
			return &p, nil
		}
	}
	return nil, model.ErrNotFound
}

func (m *memStore) ListProfiles(_ context.Context, f model.ProfileFilter) ([]model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Profile{}
	for _, p := range m.profiles {
		if f.Role != "" && p.Role != f.Role {
			continue
		}
		if f.ActiveOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) CreateProfile(_ context.Context, p *model.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cur := range m.profiles {
		if cur.Email == p.Email {
			return model.ErrConflict
		}
	}
	m.profiles[p.ID] = *p
	return nil
}

func (m *memStore) updateProfile(id uuid.UUID, fn func(*model.Profile)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return model.ErrNotFound
	}
	fn(&p)
	m.profiles[id] = p
	return nil
}

func (m *memStore) UpdateRole(_ context.Context, id uuid.UUID, role model.Role) error {
	return m.updateProfile(id, func(p *model.Profile) { p.Role = role })
}

func (m *memStore) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	return m.updateProfile(id, func(p *model.Profile) { p.IsActive = active })
}

func (m *memStore) SetSpecializations(_ context.Context, id uuid.UUID, specs []model.RubricCategory) error {
	return m.updateProfile(id, func(p *model.Profile) { p.Specializations = specs })
}

func (m *memStore) SetPasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	return m.updateProfile(id, func(p *model.Profile) { p.PasswordHash = hash })
}

func (m *memStore) ConfirmEmail(_ context.Context, id uuid.UUID) error {
	return m.updateProfile(id, func(p *model.Profile) { p.EmailConfirmed = true })
}

func (m *memStore) DeleteProfile(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[id]; !ok {
		return model.ErrNotFound
	}
	delete(m.profiles, id)
	return nil
}

// --- AuditStore

func (m *memStore) ListActions(_ context.Context, ideaID uuid.UUID) ([]model.ActionLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.ActionLog{}
	for _, a := range m.actions {
		if a.IdeaID == ideaID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) ListStatusChanges(_ context.Context, ideaID uuid.UUID) ([]model.StatusLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.StatusLog{}
	for _, s := range m.statuses {
		if s.IdeaID == ideaID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) AppendAction(_ context.Context, a model.ActionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, a)
	return nil
}

// --- GamificationStore

func sameIdea(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (m *memStore) AwardPoints(_ context.Context, e model.PointsEntry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.points {
		if p.UserID == e.UserID && p.Reason == e.Reason && sameIdea(p.IdeaID, e.IdeaID) {
			return false, nil
		}
	}
	m.points = append(m.points, e)
	return true, nil
}

func (m *memStore) TotalPoints(_ context.Context, userID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, p := range m.points {
		if p.UserID == userID {
			total += p.Points
		}
	}
	return total, nil
}

func (m *memStore) ListRecognitions(_ context.Context, userID uuid.UUID) ([]model.RecognitionEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.RecognitionEvent{}
	for _, r := range m.recs {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) InsertRecognition(_ context.Context, r model.RecognitionEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cur := range m.recs {
		if cur.UserID == r.UserID && cur.AchievementCode == r.AchievementCode {
			return false, nil
		}
	}
	m.recs = append(m.recs, r)
	return true, nil
}

func (m *memStore) ActivityCounts(_ context.Context, userID uuid.UUID) (model.ActivityCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[userID], nil
}

func (m *memStore) Leaderboard(_ context.Context, limit int) ([]model.LeaderboardEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	totals := map[uuid.UUID]int{}
	for _, p := range m.points {
		totals[p.UserID] += p.Points
	}
	out := []model.LeaderboardEntry{}
	for id, total := range totals {
		out = append(out, model.LeaderboardEntry{UserID: id, TotalPoints: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalPoints > out[j].TotalPoints })
	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

func (m *memStore) SaveMetrics(_ context.Context, s model.SubmitterMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, s)
	return nil
}

func (m *memStore) ListSubmitterIDs(_ context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[uuid.UUID]bool{}
	out := []uuid.UUID{}
	for _, idea := range m.ideas {
		if !seen[idea.SubmitterID] {
			seen[idea.SubmitterID] = true
			out = append(out, idea.SubmitterID)
		}
	}
	return out, nil
}

// --- DashboardStore

func (m *memStore) CountByStatus(_ context.Context) (map[model.IdeaStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[model.IdeaStatus]int{}
	for _, idea := range m.ideas {
		out[idea.Status]++
	}
	return out, nil
}

func (m *memStore) CountByCategory(_ context.Context) (map[model.IdeaCategory]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[model.IdeaCategory]int{}
	for _, idea := range m.ideas {
		out[idea.Category]++
	}
	return out, nil
}

func (m *memStore) AverageScore(_ context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum, n := 0.0, 0
	for _, idea := range m.ideas {
		if idea.AverageEvaluationScore != nil {
			sum += *idea.AverageEvaluationScore
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}

// memCache implements DashboardCache.
type memCache struct {
	overview *model.DashboardOverview
	hits     int
}

func (c *memCache) GetOverview(context.Context) (*model.DashboardOverview, bool) {
	if c.overview == nil {
		return nil, false
	}
	c.hits++
	return c.overview, true
}

func (c *memCache) SetOverview(_ context.Context, o *model.DashboardOverview) { c.overview = o }

func (c *memCache) Invalidate(context.Context) error {
	c.overview = nil
	return nil
}

// fixture wires every service over one memStore.
type fixture struct {
	store       *memStore
	ideas       *IdeaService
	assignments *AssignmentService
	evaluations *EvaluationService
	review      *ReviewService
	decisions   *DecisionService
	admin       *AdminService

	submitter  model.Actor
	manager    model.Actor
	evaluators map[model.RubricCategory]model.Actor
}

func newFixture() *fixture {
	st := newMemStore()
	log := zap.NewNop()
	f := &fixture{
		store:       st,
		ideas:       NewIdeaService(st, log),
		assignments: NewAssignmentService(st, st, st, log),
		evaluations: NewEvaluationService(st, st, progress.IncludeAll, log),
		review:      NewReviewService(st, st, st, progress.IncludeAll, log),
		decisions:   NewDecisionService(st, st, log),
		admin:       NewAdminService(st, st, log),
		submitter:   model.Actor{ID: uuid.New(), Role: model.RoleSubmitter},
		manager:     model.Actor{ID: uuid.New(), Role: model.RoleManagement},
		evaluators:  map[model.RubricCategory]model.Actor{},
	}
	f.ideas.now = clock
	f.assignments.now = clock
	f.evaluations.now = clock
	f.decisions.now = clock
	f.admin.now = clock

	st.profiles[f.submitter.ID] = model.Profile{ID: f.submitter.ID, FullName: "Sara Submitter", Role: model.RoleSubmitter, IsActive: true}
	st.profiles[f.manager.ID] = model.Profile{ID: f.manager.ID, FullName: "Mona Manager", Role: model.RoleManagement, IsActive: true}
	for _, c := range model.RubricCategories {
		a := model.Actor{ID: uuid.New(), Role: model.RoleEvaluator}
		f.evaluators[c] = a
		st.profiles[a.ID] = model.Profile{
			ID:              a.ID,
			FullName:        "Eval " + string(c),
			Role:            model.RoleEvaluator,
			IsActive:        true,
			Specializations: []model.RubricCategory{c},
		}
	}
	return f
}

func validIdeaInput() IdeaInput {
	return IdeaInput{
		Title:       "Shared printer scheduling",
		Description: "Book printer slots in advance to avoid queues.",
		Category:    model.CategoryProcessImprovement,
	}
}

func scores(overall float64) EvaluationInput {
	return EvaluationInput{
		FeasibilityScore: 7,
		ImpactScore:      7,
		InnovationScore:  7,
		OverallScore:     overall,
		EnrichmentScore:  7,
	}
}
