package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/apperrors"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/model"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/observer"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/tenant"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/logger"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/utils"
)

// leastLoadedAgentSQL picks the agent with the fewest open tickets in the
// organization. Ties go to the lowest user id. Tickets are scoped to the
// organization through their contact.
const leastLoadedAgentSQL = `
SELECT a.user_id, COUNT(ct.id) AS open_tickets
FROM agents a
LEFT JOIN chat_tickets ct
  ON ct.assigned_to = a.user_id
 AND ct.status = ?
 AND ct.contact_id IN (SELECT c.id FROM contacts c WHERE c.organization_id = a.organization_id)
WHERE a.organization_id = ? AND a.deleted_at IS NULL
GROUP BY a.user_id
ORDER BY open_tickets ASC, a.user_id ASC
LIMIT 1`

// AssignTicketForContact runs ticket assignment for one contact inside a
// single transaction. The contact's ticket row is locked for the duration so
// a burst of messages from the same contact produces exactly one open ticket.
//
// Semantics:
//   - no ticket yet: open one, assign the least loaded agent when auto
//     assignment is on, log the opened narrative
//   - closed ticket: move it back to open and log the reopened narrative.
//     When the organization opted into reassigning reopened conversations,
//     the least loaded agent takes over under auto assignment; without auto
//     assignment the assignee is cleared so the conversation lands in the
//     manual triage queue
//   - open ticket: leave it untouched
func (r *PostgresRepo) AssignTicketForContact(ctx context.Context, contactID int64, settings model.TicketSettings) (*TicketAssignment, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get organization ID: %w", apperrors.ErrForbidden, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var assignment *TicketAssignment
	operation := func() error {
		assignment = nil
		tx := r.db.WithContext(ctx).Begin()
		if tx.Error != nil {
			return fmt.Errorf("%w: failed to begin transaction: %w", apperrors.ErrDatabase, tx.Error)
		}
		var txErr error
		defer func() {
			if r := recover(); r != nil {
				tx.Rollback()
				panic(r)
			} else if txErr != nil {
				if rbErr := tx.Rollback().Error; rbErr != nil {
					loggerCtx.Error("Failed to rollback transaction after error", zap.Error(rbErr), zap.NamedError("originalTxError", txErr))
				}
			}
		}()

		now := utils.Now()

		var ticket model.ChatTicket
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("contact_id = ?", contactID).
			First(&ticket)
		findErr := result.Error
		if findErr != nil && !errors.Is(findErr, gorm.ErrRecordNotFound) {
			txErr = fmt.Errorf("%w: failed to lock ticket row: %w", apperrors.ErrDatabase, findErr)
			return txErr
		}

		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			ticket = model.ChatTicket{
				ContactID: contactID,
				Status:    model.TicketStatusOpen,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if settings.AutoAssignment {
				userID, pickErr := pickLeastLoadedAgent(tx, orgID)
				if pickErr != nil {
					txErr = pickErr
					return txErr
				}
				ticket.AssignedTo = userID
			}
			if createErr := tx.Create(&ticket).Error; createErr != nil {
				txErr = checkConstraintViolation(createErr)
				return txErr
			}
			assignment = &TicketAssignment{
				Ticket:    ticket,
				Narrative: model.TicketOpenedNarrative,
				Created:   true,
			}

		case ticket.Status == model.TicketStatusClosed:
			updateFields := map[string]interface{}{
				"status":     model.TicketStatusOpen,
				"updated_at": now,
			}
			if settings.ReassignReopenedChats {
				if settings.AutoAssignment {
					userID, pickErr := pickLeastLoadedAgent(tx, orgID)
					if pickErr != nil {
						txErr = pickErr
						return txErr
					}
					ticket.AssignedTo = userID
					updateFields["assigned_to"] = userID
				} else {
					// Clear the stale assignee so the reopened conversation
					// goes through manual triage.
					ticket.AssignedTo = nil
					updateFields["assigned_to"] = nil
				}
			}
			if updateErr := tx.Model(&ticket).Updates(updateFields).Error; updateErr != nil {
				txErr = checkConstraintViolation(updateErr)
				return txErr
			}
			ticket.Status = model.TicketStatusOpen
			assignment = &TicketAssignment{
				Ticket:    ticket,
				Narrative: model.TicketReopenedNarrative,
				Reopened:  true,
			}

		default:
			// Already open, nothing to do.
			assignment = &TicketAssignment{Ticket: ticket}
		}

		if assignment.Narrative != "" {
			ticketLog := model.ChatTicketLog{
				ContactID:   contactID,
				Description: assignment.Narrative,
				CreatedAt:   now,
			}
			if logErr := tx.Create(&ticketLog).Error; logErr != nil {
				txErr = checkConstraintViolation(logErr)
				return txErr
			}

			chatLog := model.NewChatLog(contactID, model.TicketRef(ticketLog.ID), now)
			if logErr := tx.Create(&chatLog).Error; logErr != nil {
				txErr = checkConstraintViolation(logErr)
				return txErr
			}
		}

		if commitErr := tx.Commit().Error; commitErr != nil {
			txErr = checkConstraintViolation(commitErr)
			return txErr
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "AssignTicketForContact Commit", operation)
	observer.ObserveDbOperationDuration("assign", "ticket", orgID, time.Since(startTime), commitErr)

	if commitErr != nil {
		loggerCtx.Error("Failed to assign ticket after retries",
			zap.Int64("contact_id", contactID),
			zap.Error(commitErr))
		return nil, commitErr
	}

	return assignment, nil
}

// pickLeastLoadedAgent returns the user id of the least loaded agent, or nil
// when the organization has no agents.
func pickLeastLoadedAgent(tx *gorm.DB, orgID int64) (*int64, error) {
	var load model.AgentLoad
	result := tx.Raw(leastLoadedAgentSQL, model.TicketStatusOpen, orgID).Scan(&load)
	if result.Error != nil {
		return nil, fmt.Errorf("%w: least loaded agent query failed: %w", apperrors.ErrDatabase, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	userID := load.UserID
	return &userID, nil
}
