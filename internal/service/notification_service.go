package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/edu-patrimonio/workorder-service/internal/domain"
	"github.com/edu-patrimonio/workorder-service/internal/events"
	"github.com/edu-patrimonio/workorder-service/internal/persistence"
	"github.com/edu-patrimonio/workorder-service/internal/repository"
)

// NotificationService turns ticket domain events into persisted
// notifications. Handlers run on the dispatcher's goroutine; a failed
// write for one recipient never aborts delivery to the remaining ones.
type NotificationService struct {
	notifications repository.NotificationRepository
	directory     repository.DirectoryRepository
	deadLetter    *persistence.DeadLetterQueue
	logger        *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(
	notifications repository.NotificationRepository,
	directory repository.DirectoryRepository,
	deadLetter *persistence.DeadLetterQueue,
	logger *zap.Logger,
) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		directory:     directory,
		deadLetter:    deadLetter,
		logger:        logger,
	}
}

// RegisterHandlers subscribes to ticket events.
func (n *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	dispatcher.Subscribe(events.EventTicketAccepted, n.handleTicketAccepted)
	dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	dispatcher.Subscribe(events.EventTicketResolved, n.handleTicketResolved)
	dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
}

// handleTicketCreated broadcasts to the technicians eligible at this
// moment. The set is a snapshot: whoever becomes eligible later does not
// retroactively receive the notification.
func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", event.Type)
	}
	technicians, err := n.directory.ListEligibleTechnicians(ctx)
	if err != nil {
		return fmt.Errorf("list eligible technicians: %w", err)
	}
	for _, tech := range technicians {
		n.deliver(ctx, domain.Notification{
			RecipientID: tech.ID,
			Type:        domain.NotificationTicketCreated,
			Title:       "Novo chamado disponível",
			Message:     fmt.Sprintf("Chamado %q aguarda atendimento (prioridade %s).", payload.Title, payload.Priority),
			TicketID:    event.TicketID,
		})
	}
	return nil
}

func (n *NotificationService) handleTicketAccepted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAcceptedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", event.Type)
	}
	n.deliver(ctx, domain.Notification{
		RecipientID: payload.CreatedByID,
		Type:        domain.NotificationTicketAssigned,
		Title:       "Chamado em atendimento",
		Message:     fmt.Sprintf("Seu chamado %q foi aceito por um técnico.", payload.Title),
		TicketID:    event.TicketID,
	})
	return nil
}

// handleTicketAssigned notifies the new assignee, the creator and, on
// reassignment, the technician who lost the ticket.
func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", event.Type)
	}
	n.deliver(ctx, domain.Notification{
		RecipientID: payload.TechnicianID,
		Type:        domain.NotificationTicketAssigned,
		Title:       "Chamado atribuído a você",
		Message:     fmt.Sprintf("O chamado %q foi atribuído a você por um gestor.", payload.Title),
		TicketID:    event.TicketID,
	})
	n.deliver(ctx, domain.Notification{
		RecipientID: payload.CreatedByID,
		Type:        domain.NotificationTicketAssigned,
		Title:       "Chamado em atendimento",
		Message:     fmt.Sprintf("Seu chamado %q foi atribuído a um técnico.", payload.Title),
		TicketID:    event.TicketID,
	})
	if payload.PreviousTechnicianID != nil && *payload.PreviousTechnicianID != payload.TechnicianID {
		n.deliver(ctx, domain.Notification{
			RecipientID: *payload.PreviousTechnicianID,
			Type:        domain.NotificationTicketAssigned,
			Title:       "Chamado reatribuído",
			Message:     fmt.Sprintf("O chamado %q foi reatribuído a outro técnico.", payload.Title),
			TicketID:    event.TicketID,
		})
	}
	return nil
}

func (n *NotificationService) handleTicketResolved(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketResolvedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", event.Type)
	}
	n.deliver(ctx, domain.Notification{
		RecipientID: payload.CreatedByID,
		Type:        domain.NotificationTicketResolved,
		Title:       "Chamado resolvido",
		Message:     fmt.Sprintf("Seu chamado %q foi resolvido: %s", payload.Title, payload.Resolution),
		TicketID:    event.TicketID,
	})
	return nil
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", event.Type)
	}
	n.deliver(ctx, domain.Notification{
		RecipientID: payload.CreatedByID,
		Type:        domain.NotificationTicketStatus,
		Title:       "Status do chamado atualizado",
		Message:     fmt.Sprintf("Seu chamado %q mudou de %s para %s.", payload.Title, payload.OldStatus, payload.NewStatus),
		TicketID:    event.TicketID,
	})
	return nil
}

// deliver persists one notification, isolating failure to this recipient.
func (n *NotificationService) deliver(ctx context.Context, notification domain.Notification) {
	record := notification
	if err := n.notifications.Create(ctx, &record); err != nil {
		n.logger.Error("notification write failed",
			zap.String("recipient_id", notification.RecipientID),
			zap.String("ticket_id", notification.TicketID),
			zap.Error(err))
		n.deadLetter.Enqueue(ctx, persistence.DeadLetter{
			Kind:         persistence.DeadLetterNotification,
			Notification: &record,
		})
	}
}
