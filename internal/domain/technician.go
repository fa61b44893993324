package domain

import "time"

// ActorRole enumerates caller roles relevant to ticket operations.
type ActorRole string

const (
	ActorRoleRequester  ActorRole = "SOLICITANTE"
	ActorRoleTechnician ActorRole = "TECNICO"
	ActorRoleManager    ActorRole = "GESTOR"
)

// Technician is the directory subset the ticket core cares about. Only
// active technicians with CanAcceptTickets set may be offered or accept
// tickets.
type Technician struct {
	ID               string
	Name             string
	Email            string
	TenantID         *string
	Role             ActorRole
	CanAcceptTickets bool
	Active           bool
	CreatedAt        time.Time
}

// Eligible reports whether the technician may accept tickets right now.
func (t *Technician) Eligible() bool {
	return t != nil && t.Active && t.CanAcceptTickets
}
