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

// AuditRecorder appends asset-linked audit events. Failures never reach
// the ticket operation that triggered the record: they are logged and
// parked on the dead-letter queue for replay. The ticket state change
// stands even when its audit write is lost temporarily.
type AuditRecorder struct {
	events     repository.AssetEventRepository
	deadLetter *persistence.DeadLetterQueue
	logger     *zap.Logger
}

// NewAuditRecorder constructs the recorder.
func NewAuditRecorder(events repository.AssetEventRepository, deadLetter *persistence.DeadLetterQueue, logger *zap.Logger) *AuditRecorder {
	return &AuditRecorder{events: events, deadLetter: deadLetter, logger: logger}
}

// RegisterHandlers subscribes the recorder to ticket events so audit
// writes happen off the request path. Tickets without an asset reference
// produce no audit trail.
func (a *AuditRecorder) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketCreated, a.handleTicketCreated)
	dispatcher.Subscribe(events.EventTicketAccepted, a.handleTicketAccepted)
	dispatcher.Subscribe(events.EventTicketAssigned, a.handleTicketAssigned)
	dispatcher.Subscribe(events.EventTicketResolved, a.handleTicketResolved)
	dispatcher.Subscribe(events.EventTicketStatusChanged, a.handleTicketStatusChanged)
}

// Record appends one audit event for the asset.
func (a *AuditRecorder) Record(ctx context.Context, assetID string, kind domain.AssetEventKind, description, actorID string, oldValue, newValue map[string]any) {
	event := &domain.AssetEvent{
		AssetID:     assetID,
		Kind:        kind,
		Description: description,
		OldValue:    oldValue,
		NewValue:    newValue,
		ActorID:     actorID,
	}
	if err := a.events.Create(ctx, event); err != nil {
		a.logger.Error("asset audit write failed",
			zap.String("asset_id", assetID),
			zap.String("kind", string(kind)),
			zap.Error(err))
		a.deadLetter.Enqueue(ctx, persistence.DeadLetter{
			Kind:       persistence.DeadLetterAssetEvent,
			AssetEvent: event,
		})
	}
}

func (a *AuditRecorder) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok || payload.AssetID == nil {
		return nil
	}
	a.Record(ctx, *payload.AssetID, domain.AssetEventCreated,
		fmt.Sprintf("Chamado %q aberto para o ativo", payload.Title),
		event.ActorID,
		nil,
		map[string]any{"ticket_id": event.TicketID, "status": domain.TicketStatusOpen},
	)
	return nil
}

func (a *AuditRecorder) handleTicketAccepted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAcceptedPayload)
	if !ok || payload.AssetID == nil {
		return nil
	}
	a.Record(ctx, *payload.AssetID, domain.AssetEventStatusChanged,
		fmt.Sprintf("Chamado %q aceito pelo técnico", payload.Title),
		event.ActorID,
		map[string]any{"ticket_id": event.TicketID, "status": domain.TicketStatusOpen},
		map[string]any{"ticket_id": event.TicketID, "status": domain.TicketStatusInProgress, "technician_id": payload.TechnicianID},
	)
	return nil
}

func (a *AuditRecorder) handleTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok || payload.AssetID == nil {
		return nil
	}
	a.Record(ctx, *payload.AssetID, domain.AssetEventStatusChanged,
		fmt.Sprintf("Chamado %q atribuído pelo gestor", payload.Title),
		event.ActorID,
		map[string]any{"ticket_id": event.TicketID, "technician_id": payload.PreviousTechnicianID},
		map[string]any{"ticket_id": event.TicketID, "technician_id": payload.TechnicianID},
	)
	return nil
}

func (a *AuditRecorder) handleTicketResolved(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketResolvedPayload)
	if !ok || payload.AssetID == nil {
		return nil
	}
	a.Record(ctx, *payload.AssetID, domain.AssetEventMaintenance,
		fmt.Sprintf("Chamado %q resolvido", payload.Title),
		event.ActorID,
		map[string]any{"ticket_id": event.TicketID, "status": domain.TicketStatusInProgress},
		map[string]any{"ticket_id": event.TicketID, "status": domain.TicketStatusResolved, "resolution": payload.Resolution},
	)
	return nil
}

func (a *AuditRecorder) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok || payload.AssetID == nil {
		return nil
	}
	a.Record(ctx, *payload.AssetID, domain.AssetEventStatusChanged,
		fmt.Sprintf("Status do chamado %q alterado", payload.Title),
		event.ActorID,
		map[string]any{"ticket_id": event.TicketID, "status": payload.OldStatus},
		map[string]any{"ticket_id": event.TicketID, "status": payload.NewStatus},
	)
	return nil
}
