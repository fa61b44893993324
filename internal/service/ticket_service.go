package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/edu-patrimonio/workorder-service/internal/domain"
	"github.com/edu-patrimonio/workorder-service/internal/events"
	"github.com/edu-patrimonio/workorder-service/internal/repository"
	apperrors "github.com/edu-patrimonio/workorder-service/pkg/util"
)

// TicketService is the public facade for ticket workflows that are not
// contended: creation, manual status overrides, listing and aggregation.
// The contended paths (accept/complete/assign) live on AssignmentService.
type TicketService struct {
	tickets    repository.TicketRepository
	directory  repository.DirectoryRepository
	dispatcher events.Dispatcher
}

// TicketDependencies bundles collaborators for the facade.
type TicketDependencies struct {
	TicketRepo    repository.TicketRepository
	DirectoryRepo repository.DirectoryRepository
	Dispatcher    events.Dispatcher
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Category    string
	Priority    domain.TicketPriority
	AssetID     *string
	CreatorID   *string
	TenantID    *string
}

// TicketListFilter describes listing/aggregation filters plus the acting
// caller, used for scoping.
type TicketListFilter struct {
	TenantID    *string
	Status      *domain.TicketStatus
	Priority    *domain.TicketPriority
	AssignedTo  *string
	CreatedByID *string
	AssetID     *string
	Category    *string
	ActorRole   domain.ActorRole
	ActorID     string
	Limit       int
	Offset      int
}

// NewTicketService constructs the facade.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		directory:  deps.DirectoryRepo,
		dispatcher: deps.Dispatcher,
	}
}

// Create validates the request, resolves tenant and creator, and persists
// the ticket at ABERTO. Tenant resolution order: explicit tenant, then the
// tenant owning the referenced asset. Without a creator the per-tenant
// anonymous actor is used, covering intake via scanned asset tags.
func (s *TicketService) Create(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, apperrors.NewValidationError("title and description are required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !domain.ValidPriority(priority) {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}

	tenantID, err := s.resolveTenant(ctx, input)
	if err != nil {
		return nil, err
	}
	creatorID, err := s.resolveCreator(ctx, input.CreatorID, tenantID)
	if err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		Title:       title,
		Description: description,
		Category:    strings.TrimSpace(input.Category),
		TenantID:    tenantID,
		AssetID:     input.AssetID,
		CreatedByID: creatorID,
		Priority:    priority,
		Status:      domain.TicketStatusOpen,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  creatorID,
		Payload: events.TicketCreatedPayload{
			TenantID:    tenantID,
			AssetID:     ticket.AssetID,
			CreatedByID: creatorID,
			Priority:    priority,
			Title:       title,
		},
	})
	return ticket, nil
}

// GetByID fetches a single ticket.
func (s *TicketService) GetByID(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// ChangeStatus applies a manual status override by an authorized actor.
// It is not arbitrated by the assignment coordinator: the EM_ANDAMENTO /
// AGUARDANDO toggle is free, closing back-fills resolvedAt, reopening to
// ABERTO clears the assignment.
func (s *TicketService) ChangeStatus(ctx context.Context, ticketID string, newStatus domain.TicketStatus, resolution, actorID string) (*domain.Ticket, error) {
	ticket, err := s.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if guard, ok := domain.CheckManualTransition(ticket, newStatus, resolution); !ok {
		if guard == domain.GuardResolutionTooShort {
			return nil, apperrors.NewValidationError("resolution must have at least 10 characters", nil)
		}
		return nil, apperrors.NewConflict(guard, "status change rejected",
			map[string]any{"status": ticket.Status, "requested": newStatus})
	}

	oldStatus := ticket.Status
	now := time.Now()
	resolution = strings.TrimSpace(resolution)

	switch newStatus {
	case domain.TicketStatusClosed:
		var resolutionRef *string
		if resolution != "" {
			resolutionRef = &resolution
		}
		ticket, err = s.tickets.Close(ctx, ticketID, resolutionRef, now)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewConflict(domain.GuardWrongState, "ticket already closed", nil)
			}
			return nil, apperrors.MapError(err)
		}
	case domain.TicketStatusResolved:
		ticket.Status = newStatus
		ticket.ResolvedAt = &now
		ticket.ClosedAt = nil
		if resolution != "" {
			ticket.Resolution = &resolution
		}
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return nil, apperrors.MapError(err)
		}
	case domain.TicketStatusOpen:
		ticket.Status = newStatus
		ticket.AssignedTo = nil
		ticket.AcceptedAt = nil
		ticket.Resolution = nil
		ticket.ResolvedAt = nil
		ticket.ClosedAt = nil
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return nil, apperrors.MapError(err)
		}
	default:
		// EM_ANDAMENTO / AGUARDANDO: a ticket in a work state carries no
		// resolution or completion timestamps, also when it got there by
		// toggling back out of RESOLVIDO or FECHADO.
		ticket.Status = newStatus
		ticket.Resolution = nil
		ticket.ResolvedAt = nil
		ticket.ClosedAt = nil
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return nil, apperrors.MapError(err)
		}
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload: events.TicketStatusChangedPayload{
			AssetID:     ticket.AssetID,
			OldStatus:   oldStatus,
			NewStatus:   ticket.Status,
			CreatedByID: ticket.CreatedByID,
			Title:       ticket.Title,
		},
	})
	return ticket, nil
}

// List returns tickets matching the filter, scoped to the acting caller:
// requesters only ever see their own tickets, technicians and managers see
// the shared pool.
func (s *TicketService) List(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := s.scopedFilter(filter)
	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// Stats aggregates ticket counts and average resolution time under the
// same scoping rules as List.
func (s *TicketService) Stats(ctx context.Context, filter TicketListFilter) (*repository.TicketStats, error) {
	repoFilter := s.scopedFilter(filter)
	stats, err := s.tickets.Stats(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return stats, nil
}

func (s *TicketService) scopedFilter(filter TicketListFilter) repository.TicketFilter {
	repoFilter := repository.TicketFilter{
		TenantID:    filter.TenantID,
		Status:      filter.Status,
		Priority:    filter.Priority,
		AssignedTo:  filter.AssignedTo,
		CreatedByID: filter.CreatedByID,
		AssetID:     filter.AssetID,
		Category:    filter.Category,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	if filter.ActorRole == domain.ActorRoleRequester && filter.ActorID != "" {
		actorID := filter.ActorID
		repoFilter.CreatedByID = &actorID
	}
	return repoFilter
}

func (s *TicketService) resolveTenant(ctx context.Context, input TicketCreateInput) (string, error) {
	if input.TenantID != nil && strings.TrimSpace(*input.TenantID) != "" {
		return *input.TenantID, nil
	}
	if input.AssetID != nil && strings.TrimSpace(*input.AssetID) != "" {
		tenantID, err := s.directory.TenantForAsset(ctx, *input.AssetID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return "", apperrors.NewNotFound("asset", map[string]any{"asset_id": *input.AssetID})
			}
			return "", apperrors.MapError(err)
		}
		return tenantID, nil
	}
	return "", apperrors.NewUnresolvedTenant()
}

func (s *TicketService) resolveCreator(ctx context.Context, creatorID *string, tenantID string) (string, error) {
	if creatorID != nil && strings.TrimSpace(*creatorID) != "" {
		actor, err := s.directory.GetActor(ctx, *creatorID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return "", apperrors.NewNotFound("creator", map[string]any{"creator_id": *creatorID})
			}
			return "", apperrors.MapError(err)
		}
		return actor.ID, nil
	}
	anonymous, err := s.directory.GetOrCreateAnonymousActor(ctx, tenantID)
	if err != nil {
		return "", apperrors.MapError(err)
	}
	return anonymous.ID, nil
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
