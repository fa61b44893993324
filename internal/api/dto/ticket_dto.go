package dto

import (
	"time"

	"github.com/edu-patrimonio/workorder-service/internal/domain"
	"github.com/edu-patrimonio/workorder-service/internal/repository"
)

// CreateTicketRequest is the payload for authenticated ticket creation.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Category    string                `json:"category"`
	Priority    domain.TicketPriority `json:"priority"`
	AssetID     *string               `json:"asset_id"`
	TenantID    *string               `json:"tenant_id"`
}

// IntakeTicketRequest is the payload for anonymous QR intake; the tenant
// comes from the route and the creator is the tenant's anonymous actor.
type IntakeTicketRequest struct {
	IntakeKey   string                `json:"intake_key"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Category    string                `json:"category"`
	Priority    domain.TicketPriority `json:"priority"`
	AssetID     *string               `json:"asset_id"`
}

// CompleteTicketRequest carries the resolution text.
type CompleteTicketRequest struct {
	Resolution string `json:"resolution"`
}

// ChangeStatusRequest carries a manual status override.
type ChangeStatusRequest struct {
	Status     domain.TicketStatus `json:"status"`
	Resolution string              `json:"resolution"`
}

// AssignTicketRequest carries the administrative assignment target.
type AssignTicketRequest struct {
	TechnicianID string `json:"technician_id"`
}

// TicketResponse is the wire shape of a ticket.
type TicketResponse struct {
	ID          string                `json:"id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Category    string                `json:"category,omitempty"`
	TenantID    string                `json:"tenant_id"`
	AssetID     *string               `json:"asset_id,omitempty"`
	CreatedByID string                `json:"created_by_id"`
	Priority    domain.TicketPriority `json:"priority"`
	Status      domain.TicketStatus   `json:"status"`
	AssignedTo  *string               `json:"assigned_to,omitempty"`
	Resolution  *string               `json:"resolution,omitempty"`
	Attachments []string              `json:"attachments,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
	AcceptedAt  *time.Time            `json:"accepted_at,omitempty"`
	ResolvedAt  *time.Time            `json:"resolved_at,omitempty"`
	ClosedAt    *time.Time            `json:"closed_at,omitempty"`
}

// TicketStatsResponse is the wire shape of the aggregate view.
type TicketStatsResponse struct {
	Total                int64                           `json:"total"`
	ByStatus             map[domain.TicketStatus]int64   `json:"by_status"`
	ByPriority           map[domain.TicketPriority]int64 `json:"by_priority"`
	AvgResolutionSeconds *float64                        `json:"avg_resolution_seconds,omitempty"`
}

// FromTicket maps a domain ticket onto the wire shape.
func FromTicket(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Category:    t.Category,
		TenantID:    t.TenantID,
		AssetID:     t.AssetID,
		CreatedByID: t.CreatedByID,
		Priority:    t.Priority,
		Status:      t.Status,
		AssignedTo:  t.AssignedTo,
		Resolution:  t.Resolution,
		Attachments: t.Attachments,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		AcceptedAt:  t.AcceptedAt,
		ResolvedAt:  t.ResolvedAt,
		ClosedAt:    t.ClosedAt,
	}
}

// FromStats maps the repository aggregate onto the wire shape.
func FromStats(s *repository.TicketStats) TicketStatsResponse {
	return TicketStatsResponse{
		Total:                s.Total,
		ByStatus:             s.ByStatus,
		ByPriority:           s.ByPriority,
		AvgResolutionSeconds: s.AvgResolutionSeconds,
	}
}
