package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	mqcontracts "ideaflow/contracts/mq"
	"ideaflow/internal/model"
)

var validate = validator.New()

// validateInput runs the struct's validate tags and wraps failures in model.ErrValidation.
func validateInput(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make([]string, 0, len(ve))
		for _, fe := range ve {
			fields = append(fields, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", model.ErrValidation, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %v", model.ErrValidation, err)
}

func newAction(ideaID, actor uuid.UUID, action string, details any, now time.Time) (model.ActionLog, error) {
	var raw json.RawMessage
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return model.ActionLog{}, fmt.Errorf("encode %s details: %w", action, err)
		}
		raw = b
	}
	return model.ActionLog{
		ID:        uuid.New(),
		IdeaID:    ideaID,
		ActorID:   actor,
		Action:    action,
		Details:   raw,
		CreatedAt: now,
	}, nil
}

func ideaEvent(ideaID uuid.UUID, routingKey string, payload any) model.OutboxEvent {
	return model.OutboxEvent{
		AggregateType: mqcontracts.AggregateIdea,
		AggregateID:   ideaID,
		RoutingKey:    routingKey,
		Payload:       payload,
	}
}

// canView: submitters see only their own ideas, drafts are private to the owner.
func canView(actor model.Actor, idea *model.Idea) bool {
	if idea.SubmitterID == actor.ID {
		return true
	}
	if actor.Role == model.RoleSubmitter {
		return false
	}
	return idea.Status != model.StatusDraft
}
