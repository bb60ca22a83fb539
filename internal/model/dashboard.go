package model

import "time"

type DashboardOverview struct {
	TotalIdeas     int                  `json:"total_ideas"`
	ByStatus       map[IdeaStatus]int   `json:"by_status"`
	ByCategory     map[IdeaCategory]int `json:"by_category"`
	AverageScore   float64              `json:"average_score"`
	ApprovalRate   float64              `json:"approval_rate"`
	PendingReviews int                  `json:"pending_reviews"`
	Workload       []EvaluatorWorkload  `json:"evaluator_workload"`
	GeneratedAt    time.Time            `json:"generated_at"`
}
