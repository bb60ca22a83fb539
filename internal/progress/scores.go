package progress

import (
	"math"

	"ideaflow/internal/model"
)

// ScoreAverages holds the straight mean of each sub-score over completed evaluations.
type ScoreAverages struct {
	Feasibility float64 `json:"feasibility"`
	Impact      float64 `json:"impact"`
	Innovation  float64 `json:"innovation"`
	Overall     float64 `json:"overall"`
	Enrichment  float64 `json:"enrichment"`
	Count       int     `json:"count"`
}

// ScoringPolicy selects which completed evaluations feed the averages.
type ScoringPolicy int

const (
	// IncludeAll averages every completed evaluation of the idea, including
	// ones whose assignment was later deactivated.
	IncludeAll ScoringPolicy = iota
	// ActiveOnly averages only evaluations matching a currently active assignment.
	ActiveOnly
)

// AverageScores is zero-valued when there is nothing to average.
func AverageScores(evaluations []model.Evaluation) ScoreAverages {
	var s ScoreAverages
	for _, ev := range evaluations {
		if !ev.Completed() {
			continue
		}
		s.Feasibility += ev.FeasibilityScore
		s.Impact += ev.ImpactScore
		s.Innovation += ev.InnovationScore
		s.Overall += *ev.OverallScore
		s.Enrichment += ev.EnrichmentScore
		s.Count++
	}
	if s.Count == 0 {
		return ScoreAverages{}
	}
	n := float64(s.Count)
	s.Feasibility /= n
	s.Impact /= n
	s.Innovation /= n
	s.Overall /= n
	s.Enrichment /= n
	return s
}

// Rounded returns the averages rounded to one decimal place for display.
func (s ScoreAverages) Rounded() ScoreAverages {
	return ScoreAverages{
		Feasibility: Round1(s.Feasibility),
		Impact:      Round1(s.Impact),
		Innovation:  Round1(s.Innovation),
		Overall:     Round1(s.Overall),
		Enrichment:  Round1(s.Enrichment),
		Count:       s.Count,
	}
}

func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Scoreable filters evaluations according to policy.
func Scoreable(policy ScoringPolicy, assignments []model.Assignment, evaluations []model.Evaluation) []model.Evaluation {
	if policy != ActiveOnly {
		return evaluations
	}
	active := make(map[evalKey]struct{}, len(assignments))
	for _, a := range assignments {
		if a.IsActive {
			active[evalKey{a.IdeaID, a.EvaluatorID, a.EvaluationType}] = struct{}{}
		}
	}
	out := make([]model.Evaluation, 0, len(evaluations))
	for _, ev := range evaluations {
		if _, ok := active[evalKey{ev.IdeaID, ev.EvaluatorID, ev.EvaluationType}]; ok {
			out = append(out, ev)
		}
	}
	return out
}
