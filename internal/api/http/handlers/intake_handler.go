package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/edu-patrimonio/workorder-service/internal/api/dto"
	"github.com/edu-patrimonio/workorder-service/internal/auth"
	"github.com/edu-patrimonio/workorder-service/internal/repository"
	"github.com/edu-patrimonio/workorder-service/internal/service"
	apperrors "github.com/edu-patrimonio/workorder-service/pkg/util"
)

// IntakeHandler serves unauthenticated ticket intake, reached by scanning
// the QR tag on an asset. The tenant's intake key stands in for a session.
type IntakeHandler struct {
	tickets   *service.TicketService
	directory repository.DirectoryRepository
}

// NewIntakeHandler constructs handler.
func NewIntakeHandler(tickets *service.TicketService, directory repository.DirectoryRepository) *IntakeHandler {
	return &IntakeHandler{tickets: tickets, directory: directory}
}

// CreateTicket POST /intake/:tenantID/tickets.
func (h *IntakeHandler) CreateTicket(c *fiber.Ctx) error {
	tenantID := c.Params("tenantID")
	var req dto.IntakeTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	hash, err := h.directory.IntakeKeyHash(c.UserContext(), tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewForbidden("intake not enabled for tenant")
		}
		return apperrors.MapError(err)
	}
	if err := auth.CompareIntakeKey(hash, req.IntakeKey); err != nil {
		return apperrors.NewForbidden("invalid intake key")
	}

	// no creator: the service resolves the tenant's anonymous actor
	ticket, err := h.tickets.Create(c.UserContext(), service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
		AssetID:     req.AssetID,
		TenantID:    &tenantID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}
