package mq

// Routing keys on the events exchange.
const (
	RoutingIdeaSubmitted       = "idea.submitted"
	RoutingEvaluatorAssigned   = "evaluator.assigned"
	RoutingEvaluationSubmitted = "evaluation.submitted"
	RoutingIdeaEvaluated       = "idea.evaluated"
	RoutingIdeaDecided         = "idea.decided"
	RoutingIdeaImplemented     = "idea.implemented"
	RoutingAssignmentOverdue   = "assignment.overdue"
)

// AllRoutingKeys lists every key the api and runner publish.
var AllRoutingKeys = []string{
	RoutingIdeaSubmitted,
	RoutingEvaluatorAssigned,
	RoutingEvaluationSubmitted,
	RoutingIdeaEvaluated,
	RoutingIdeaDecided,
	RoutingIdeaImplemented,
	RoutingAssignmentOverdue,
}

// Aggregate types recorded with outbox rows.
const (
	AggregateIdea       = "idea"
	AggregateAssignment = "assignment"
)
