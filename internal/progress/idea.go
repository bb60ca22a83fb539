package progress

import (
	"github.com/google/uuid"

	"ideaflow/internal/model"
)

// IdeaProgress bundles everything the review screens show for one idea.
type IdeaProgress struct {
	IdeaID     uuid.UUID          `json:"idea_id"`
	Title      string             `json:"title"`
	Category   model.IdeaCategory `json:"category"`
	Status     model.IdeaStatus   `json:"status"`
	Categories []CategoryStatus   `json:"categories"`
	Progress
	Bucket Bucket        `json:"bucket"`
	Scores ScoreAverages `json:"scores"`
}

// Compute runs resolve, summarize and average for one idea.
// Rows belonging to other ideas are ignored.
func Compute(idea model.Idea, assignments []model.Assignment, evaluations []model.Evaluation, policy ScoringPolicy) IdeaProgress {
	as := make([]model.Assignment, 0, len(assignments))
	for _, a := range assignments {
		if a.IdeaID == idea.ID {
			as = append(as, a)
		}
	}
	evs := make([]model.Evaluation, 0, len(evaluations))
	for _, ev := range evaluations {
		if ev.IdeaID == idea.ID {
			evs = append(evs, ev)
		}
	}

	statuses := Resolve(as, evs)
	p := Summarize(statuses)
	return IdeaProgress{
		IdeaID:     idea.ID,
		Title:      idea.Title,
		Category:   idea.Category,
		Status:     idea.Status,
		Categories: statuses,
		Progress:   p,
		Bucket:     BucketOf(p),
		Scores:     AverageScores(Scoreable(policy, as, evs)).Rounded(),
	}
}

// Queue is the management review queue split by bucket.
type Queue struct {
	Queue      []IdeaProgress `json:"queue"`
	Ready      []IdeaProgress `json:"ready"`
	Unassigned []IdeaProgress `json:"unassigned"`
}

// Partition splits items by bucket, preserving input order within each list.
func Partition(items []IdeaProgress) Queue {
	q := Queue{
		Queue:      []IdeaProgress{},
		Ready:      []IdeaProgress{},
		Unassigned: []IdeaProgress{},
	}
	for _, it := range items {
		switch it.Bucket {
		case BucketReady:
			q.Ready = append(q.Ready, it)
		case BucketQueue:
			q.Queue = append(q.Queue, it)
		default:
			q.Unassigned = append(q.Unassigned, it)
		}
	}
	return q
}
