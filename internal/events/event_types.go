package events

import (
	"time"

	"github.com/edu-patrimonio/workorder-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketAccepted      EventType = "ticket_accepted"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketResolved      EventType = "ticket_resolved"
	EventTicketStatusChanged EventType = "ticket_status_changed"
)

// Event represents a domain event emitted by the ticket services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TenantID    string                `json:"tenant_id"`
	AssetID     *string               `json:"asset_id,omitempty"`
	CreatedByID string                `json:"created_by_id"`
	Priority    domain.TicketPriority `json:"priority"`
	Title       string                `json:"title"`
}

// TicketAcceptedPayload payload.
type TicketAcceptedPayload struct {
	AssetID      *string `json:"asset_id,omitempty"`
	TechnicianID string  `json:"technician_id"`
	CreatedByID  string  `json:"created_by_id"`
	Title        string  `json:"title"`
}

// TicketAssignedPayload payload for the administrative override.
type TicketAssignedPayload struct {
	AssetID              *string `json:"asset_id,omitempty"`
	TechnicianID         string  `json:"technician_id"`
	PreviousTechnicianID *string `json:"previous_technician_id,omitempty"`
	CreatedByID          string  `json:"created_by_id"`
	Title                string  `json:"title"`
}

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	AssetID      *string `json:"asset_id,omitempty"`
	TechnicianID string  `json:"technician_id"`
	CreatedByID  string  `json:"created_by_id"`
	Title        string  `json:"title"`
	Resolution   string  `json:"resolution"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	AssetID     *string             `json:"asset_id,omitempty"`
	OldStatus   domain.TicketStatus `json:"old_status"`
	NewStatus   domain.TicketStatus `json:"new_status"`
	CreatedByID string              `json:"created_by_id"`
	Title       string              `json:"title"`
}
