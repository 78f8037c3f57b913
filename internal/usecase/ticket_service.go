package usecase

import (
	"context"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/model"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/storage"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/logger"
)

// TicketService runs ticket assignment for contacts with fresh inbound
// messages. The open/reopen/assign decision itself lives in one repository
// transaction so concurrent messages from the same contact serialize on the
// ticket row.
type TicketService struct {
	orgs    storage.OrganizationRepo
	tickets storage.TicketRepo
}

// NewTicketService creates the ticket lane processor.
func NewTicketService(orgs storage.OrganizationRepo, tickets storage.TicketRepo) *TicketService {
	return &TicketService{orgs: orgs, tickets: tickets}
}

// AssignTicket opens or reopens the contact's ticket. Settings are re-read at
// processing time: the tenant may have disabled tickets between queueing and
// delivery, in which case the task is a no-op.
func (s *TicketService) AssignTicket(ctx context.Context, task model.TicketTask) error {
	log := logger.FromContext(ctx).With(zap.Int64("contact_id", task.ContactID))

	orgCtx, err := resolveOrgContext(ctx, s.orgs, task.OrganizationID)
	if err != nil {
		return err
	}
	if !orgCtx.Meta.Tickets.Active {
		log.Info("Skipping ticket assignment: tickets disabled for organization")
		return nil
	}

	assignment, err := s.tickets.AssignForContact(ctx, task.ContactID, orgCtx.Meta.Tickets)
	if err != nil {
		return handleRepositoryError(ctx, err, "AssignTicketForContact", "")
	}

	switch {
	case assignment.Created:
		log.Info("Opened ticket for contact",
			zap.Int64("ticket_id", assignment.Ticket.ID),
			zap.Int64p("assigned_to", assignment.Ticket.AssignedTo),
		)
	case assignment.Reopened:
		log.Info("Reopened ticket for contact",
			zap.Int64("ticket_id", assignment.Ticket.ID),
			zap.Int64p("assigned_to", assignment.Ticket.AssignedTo),
		)
	default:
		log.Debug("Ticket already open, nothing to do", zap.Int64("ticket_id", assignment.Ticket.ID))
	}
	return nil
}
