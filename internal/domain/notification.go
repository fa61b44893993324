package domain

import "time"

// NotificationType tags the reason a notification was produced.
type NotificationType string

const (
	NotificationTicketCreated  NotificationType = "CHAMADO_CRIADO"
	NotificationTicketAssigned NotificationType = "CHAMADO_ATRIBUIDO"
	NotificationTicketResolved NotificationType = "CHAMADO_RESOLVIDO"
	NotificationTicketStatus   NotificationType = "CHAMADO_STATUS"
)

// Notification is a write-once message addressed to a single recipient.
// Only the Read flag is mutated after creation, and not by this core.
type Notification struct {
	ID          string
	RecipientID string
	Type        NotificationType
	Title       string
	Message     string
	TicketID    string
	Read        bool
	CreatedAt   time.Time
}
