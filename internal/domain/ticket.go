package domain

import "time"

// TicketStatus enumerates lifecycle states for work-order tickets.
// Values match the wire/database representation used across the municipal systems.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "ABERTO"
	TicketStatusInProgress TicketStatus = "EM_ANDAMENTO"
	TicketStatusWaiting    TicketStatus = "AGUARDANDO"
	TicketStatusResolved   TicketStatus = "RESOLVIDO"
	TicketStatusClosed     TicketStatus = "FECHADO"
)

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "BAIXA"
	TicketPriorityMedium   TicketPriority = "MEDIA"
	TicketPriorityHigh     TicketPriority = "ALTA"
	TicketPriorityCritical TicketPriority = "CRITICA"
)

// MinResolutionLength is the minimum trimmed length of a resolution text.
const MinResolutionLength = 10

// Ticket is the aggregate for reported work on school assets.
//
// AssignedTo is non-nil exactly while the ticket is in an assigned state
// (EM_ANDAMENTO, AGUARDANDO, RESOLVIDO, FECHADO) and is only ever set by a
// successful accept or an administrative assign.
type Ticket struct {
	ID          string
	Title       string
	Description string
	Category    string
	TenantID    string
	AssetID     *string
	CreatedByID string
	Priority    TicketPriority
	Status      TicketStatus
	AssignedTo  *string
	Resolution  *string
	Attachments []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	AcceptedAt  *time.Time
	ResolvedAt  *time.Time
	ClosedAt    *time.Time
}

// ValidStatus reports whether s is a known ticket status.
func ValidStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusWaiting, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// ValidPriority reports whether p is a known priority.
func ValidPriority(p TicketPriority) bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// AssignedStatus reports whether s is only reachable while a technician
// holds the ticket. FECHADO is excluded: an administrative close of a
// never-assigned ticket is legal.
func AssignedStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusInProgress, TicketStatusWaiting, TicketStatusResolved:
		return true
	}
	return false
}
