package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/eventline/comms-engine/internal/domain"
	"github.com/eventline/comms-engine/internal/repository"
)

// Authorizer answers whether a user may run communication operations on an
// event. Allowed: the event owner, or an admin whose grant carries both
// edit and registrant-management rights.
type Authorizer interface {
	AuthorizeManage(ctx context.Context, eventID string, userID string) error
}

type GrantAuthorizer struct {
	events repository.EventRepository
}

func NewGrantAuthorizer(events repository.EventRepository) (*GrantAuthorizer, error) {
	if events == nil {
		return nil, fmt.Errorf("event repository is required")
	}
	return &GrantAuthorizer{events: events}, nil
}

func (a *GrantAuthorizer) AuthorizeManage(ctx context.Context, eventID string, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user identity is required", domain.ErrUnauthorized)
	}

	event, err := a.events.GetByID(ctx, strings.TrimSpace(eventID))
	if err != nil {
		return err
	}
	if event.OwnerID == userID {
		return nil
	}

	granted, err := a.events.HasManageGrant(ctx, event.ID, userID)
	if err != nil {
		return fmt.Errorf("failed to check admin grant: %w", err)
	}
	if !granted {
		return fmt.Errorf("%w: user %s may not manage communications for event %s", domain.ErrUnauthorized, userID, event.ID)
	}
	return nil
}
