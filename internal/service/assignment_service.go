package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/edu-patrimonio/workorder-service/internal/domain"
	"github.com/edu-patrimonio/workorder-service/internal/events"
	"github.com/edu-patrimonio/workorder-service/internal/repository"
	apperrors "github.com/edu-patrimonio/workorder-service/pkg/util"
)

// AssignmentService arbitrates competing accept attempts and finalizes
// resolution. All winner selection happens inside the store's conditional
// writes; this service never holds a lock, so the at-most-one-assignee
// guarantee survives multiple process instances.
type AssignmentService struct {
	tickets    repository.TicketRepository
	directory  repository.DirectoryRepository
	dispatcher events.Dispatcher
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	TicketRepo    repository.TicketRepository
	DirectoryRepo repository.DirectoryRepository
	Dispatcher    events.Dispatcher
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		tickets:    deps.TicketRepo,
		directory:  deps.DirectoryRepo,
		dispatcher: deps.Dispatcher,
	}
}

// Accept lets a technician claim an open ticket. Among N concurrent
// attempts exactly one wins; the rest get an AlreadyAssigned conflict.
// A retry by the technician who already holds the ticket succeeds and
// returns the ticket unchanged, so accept is safe to retry after a
// timeout with an unknown outcome.
func (s *AssignmentService) Accept(ctx context.Context, ticketID, technicianID string) (*domain.Ticket, error) {
	tech, err := s.directory.GetTechnician(ctx, technicianID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("technician", map[string]any{"technician_id": technicianID})
		}
		return nil, apperrors.MapError(err)
	}
	current, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if guard, ok := domain.CheckAccept(current, tech); !ok {
		if guard == domain.GuardAlreadyAssigned && current.AssignedTo != nil && *current.AssignedTo == technicianID {
			// retry of an accept that already won
			return current, nil
		}
		return nil, acceptConflict(guard, current, technicianID)
	}

	ticket, err := s.tickets.AcquireOpen(ctx, ticketID, technicianID, time.Now())
	if err == nil {
		s.publish(ctx, events.Event{
			Type:     events.EventTicketAccepted,
			TicketID: ticket.ID,
			ActorID:  technicianID,
			Payload: events.TicketAcceptedPayload{
				AssetID:      ticket.AssetID,
				TechnicianID: technicianID,
				CreatedByID:  ticket.CreatedByID,
				Title:        ticket.Title,
			},
		})
		return ticket, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	// The guard passed on a stale read but the conditional write matched no
	// row: the ticket was taken (or removed) in between. Re-read to tell
	// "gone" apart from "taken".
	current, err = s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if current.AssignedTo != nil && *current.AssignedTo == technicianID {
		// retry of an accept that already won
		return current, nil
	}
	return nil, acceptConflict(domain.GuardAlreadyAssigned, current, technicianID)
}

func acceptConflict(guard domain.Guard, ticket *domain.Ticket, technicianID string) error {
	switch guard {
	case domain.GuardNotEligible:
		return apperrors.NewConflict(guard, "technician not eligible to accept tickets",
			map[string]any{"technician_id": technicianID})
	default:
		return apperrors.NewConflict(domain.GuardAlreadyAssigned, "ticket already assigned",
			map[string]any{"ticket_id": ticket.ID, "assigned_to": ticket.AssignedTo})
	}
}

// Complete resolves a ticket held by the calling technician.
func (s *AssignmentService) Complete(ctx context.Context, ticketID, technicianID, resolution string) (*domain.Ticket, error) {
	resolution = strings.TrimSpace(resolution)
	if utf8.RuneCountInString(resolution) < domain.MinResolutionLength {
		return nil, apperrors.NewValidationError("resolution must have at least 10 characters",
			map[string]any{"length": utf8.RuneCountInString(resolution)})
	}

	current, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if guard, ok := domain.CheckComplete(current, technicianID, resolution); !ok {
		return nil, completionConflict(guard, current)
	}

	ticket, err := s.tickets.Resolve(ctx, ticketID, technicianID, resolution, time.Now())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// guard passed on the stale read but the conditional write lost a
			// race; re-read and report the guard that holds now
			current, rerr := s.tickets.GetByID(ctx, ticketID)
			if rerr != nil {
				return nil, apperrors.MapError(rerr)
			}
			if guard, ok := domain.CheckComplete(current, technicianID, resolution); !ok {
				return nil, completionConflict(guard, current)
			}
			return nil, apperrors.NewConflict(domain.GuardWrongState, "ticket changed concurrently", nil)
		}
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketResolved,
		TicketID: ticket.ID,
		ActorID:  technicianID,
		Payload: events.TicketResolvedPayload{
			AssetID:      ticket.AssetID,
			TechnicianID: technicianID,
			CreatedByID:  ticket.CreatedByID,
			Title:        ticket.Title,
			Resolution:   resolution,
		},
	})
	return ticket, nil
}

// ForceAssign is the administrative override: a manager moves a ticket to
// a chosen technician, overwriting a current assignee if there is one.
// Distinct from Accept on purpose; it must never be used as a fallback for
// a lost accept race.
func (s *AssignmentService) ForceAssign(ctx context.Context, ticketID, technicianID, actorID string) (*domain.Ticket, error) {
	actor, err := s.directory.GetActor(ctx, actorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("actor", map[string]any{"actor_id": actorID})
		}
		return nil, apperrors.MapError(err)
	}
	if actor.Role != domain.ActorRoleManager {
		return nil, apperrors.NewForbidden("assignment override requires manager authority")
	}

	assignee, err := s.directory.GetTechnician(ctx, technicianID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("technician", map[string]any{"technician_id": technicianID})
		}
		return nil, apperrors.MapError(err)
	}
	if !assignee.Eligible() {
		return nil, apperrors.NewConflict(domain.GuardNotEligible, "technician not eligible to receive tickets",
			map[string]any{"technician_id": technicianID})
	}

	// snapshot for the reassignment notification; the conditional write
	// below remains the authority on the transition itself
	previous, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	previousAssignee := previous.AssignedTo

	ticket, err := s.tickets.ForceAssign(ctx, ticketID, technicianID, time.Now())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewConflict(domain.GuardWrongState, "ticket can no longer be assigned",
				map[string]any{"ticket_id": ticketID, "status": previous.Status})
		}
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload: events.TicketAssignedPayload{
			AssetID:              ticket.AssetID,
			TechnicianID:         technicianID,
			PreviousTechnicianID: previousAssignee,
			CreatedByID:          ticket.CreatedByID,
			Title:                ticket.Title,
		},
	})
	return ticket, nil
}

func completionConflict(guard domain.Guard, ticket *domain.Ticket) error {
	switch guard {
	case domain.GuardWrongState:
		return apperrors.NewConflict(guard, "ticket is not in progress",
			map[string]any{"status": ticket.Status})
	case domain.GuardNotAssignedToActor:
		return apperrors.NewConflict(guard, "ticket is assigned to another technician",
			map[string]any{"assigned_to": ticket.AssignedTo})
	default:
		return apperrors.NewConflict(guard, "completion rejected", nil)
	}
}

func (s *AssignmentService) publish(ctx context.Context, event events.Event) {
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
