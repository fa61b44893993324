package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edu-patrimonio/workorder-service/internal/domain"
	"github.com/edu-patrimonio/workorder-service/internal/events"
	"github.com/edu-patrimonio/workorder-service/internal/repository"
)

// memTicketRepo mimics the store's conditional-write semantics: every
// guarded update checks its predicate and mutates under one lock, the way
// a single UPDATE statement does.
type memTicketRepo struct {
	mu      sync.Mutex
	seq     int
	tickets map[string]*domain.Ticket
}

func newMemTicketRepo() *memTicketRepo {
	return &memTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func (r *memTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	ticket.ID = fmt.Sprintf("ticket-%d", r.seq)
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	clone := *ticket
	r.tickets[ticket.ID] = &clone
	return nil
}

func (r *memTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *ticket
	clone.UpdatedAt = time.Now()
	r.tickets[ticket.ID] = &clone
	return nil
}

func (r *memTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *ticket
	return &clone, nil
}

func (r *memTicketRepo) AcquireOpen(_ context.Context, ticketID, technicianID string, at time.Time) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok || ticket.Status != domain.TicketStatusOpen || ticket.AssignedTo != nil {
		return nil, pgx.ErrNoRows
	}
	ticket.Status = domain.TicketStatusInProgress
	ticket.AssignedTo = &technicianID
	ticket.AcceptedAt = &at
	ticket.UpdatedAt = at
	clone := *ticket
	return &clone, nil
}

func (r *memTicketRepo) ForceAssign(_ context.Context, ticketID, technicianID string, at time.Time) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	switch ticket.Status {
	case domain.TicketStatusOpen, domain.TicketStatusInProgress, domain.TicketStatusWaiting:
	default:
		return nil, pgx.ErrNoRows
	}
	ticket.Status = domain.TicketStatusInProgress
	ticket.AssignedTo = &technicianID
	if ticket.AcceptedAt == nil {
		ticket.AcceptedAt = &at
	}
	ticket.UpdatedAt = at
	clone := *ticket
	return &clone, nil
}

func (r *memTicketRepo) Resolve(_ context.Context, ticketID, technicianID, resolution string, at time.Time) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok || ticket.Status != domain.TicketStatusInProgress ||
		ticket.AssignedTo == nil || *ticket.AssignedTo != technicianID {
		return nil, pgx.ErrNoRows
	}
	ticket.Status = domain.TicketStatusResolved
	ticket.Resolution = &resolution
	ticket.ResolvedAt = &at
	ticket.UpdatedAt = at
	clone := *ticket
	return &clone, nil
}

func (r *memTicketRepo) Close(_ context.Context, ticketID string, resolution *string, at time.Time) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok || ticket.Status == domain.TicketStatusClosed {
		return nil, pgx.ErrNoRows
	}
	ticket.Status = domain.TicketStatusClosed
	ticket.ClosedAt = &at
	if ticket.ResolvedAt == nil {
		ticket.ResolvedAt = &at
	}
	if ticket.Resolution == nil {
		ticket.Resolution = resolution
	}
	ticket.UpdatedAt = at
	clone := *ticket
	return &clone, nil
}

func (r *memTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if filter.TenantID != nil && ticket.TenantID != *filter.TenantID {
			continue
		}
		if filter.Status != nil && ticket.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && ticket.Priority != *filter.Priority {
			continue
		}
		if filter.AssignedTo != nil && (ticket.AssignedTo == nil || *ticket.AssignedTo != *filter.AssignedTo) {
			continue
		}
		if filter.CreatedByID != nil && ticket.CreatedByID != *filter.CreatedByID {
			continue
		}
		if filter.AssetID != nil && (ticket.AssetID == nil || *ticket.AssetID != *filter.AssetID) {
			continue
		}
		if filter.Category != nil && ticket.Category != *filter.Category {
			continue
		}
		result = append(result, *ticket)
	}
	return result, nil
}

func (r *memTicketRepo) Stats(ctx context.Context, filter repository.TicketFilter) (*repository.TicketStats, error) {
	tickets, err := r.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, err
	}
	stats := &repository.TicketStats{
		ByStatus:   make(map[domain.TicketStatus]int64),
		ByPriority: make(map[domain.TicketPriority]int64),
	}
	var sum float64
	var resolved int64
	for _, ticket := range tickets {
		stats.Total++
		stats.ByStatus[ticket.Status]++
		stats.ByPriority[ticket.Priority]++
		if ticket.ResolvedAt != nil {
			sum += ticket.ResolvedAt.Sub(ticket.CreatedAt).Seconds()
			resolved++
		}
	}
	if resolved > 0 {
		avg := sum / float64(resolved)
		stats.AvgResolutionSeconds = &avg
	}
	return stats, nil
}

// memDirectory is an in-memory directory with race-safe anonymous actor
// provisioning.
type memDirectory struct {
	mu          sync.Mutex
	actors      map[string]*domain.Technician
	assetOwners map[string]string
	intakeKeys  map[string]string
	anonymous   map[string]string // tenant id -> actor id
	anonSeq     int
}

func newMemDirectory() *memDirectory {
	return &memDirectory{
		actors:      make(map[string]*domain.Technician),
		assetOwners: make(map[string]string),
		intakeKeys:  make(map[string]string),
		anonymous:   make(map[string]string),
	}
}

func (d *memDirectory) addActor(actor domain.Technician) {
	d.mu.Lock()
	defer d.mu.Unlock()
	clone := actor
	d.actors[actor.ID] = &clone
}

func (d *memDirectory) GetTechnician(_ context.Context, id string) (*domain.Technician, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	actor, ok := d.actors[id]
	if !ok || actor.Role != domain.ActorRoleTechnician {
		return nil, pgx.ErrNoRows
	}
	clone := *actor
	return &clone, nil
}

func (d *memDirectory) GetActor(_ context.Context, id string) (*domain.Technician, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	actor, ok := d.actors[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *actor
	return &clone, nil
}

func (d *memDirectory) ListEligibleTechnicians(_ context.Context) ([]domain.Technician, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var result []domain.Technician
	for _, actor := range d.actors {
		if actor.Role == domain.ActorRoleTechnician && actor.Eligible() {
			result = append(result, *actor)
		}
	}
	return result, nil
}

func (d *memDirectory) TenantForAsset(_ context.Context, assetID string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	tenantID, ok := d.assetOwners[assetID]
	if !ok {
		return "", pgx.ErrNoRows
	}
	return tenantID, nil
}

func (d *memDirectory) GetOrCreateAnonymousActor(_ context.Context, tenantID string) (*domain.Technician, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.anonymous[tenantID]; ok {
		clone := *d.actors[id]
		return &clone, nil
	}
	d.anonSeq++
	actor := &domain.Technician{
		ID:       fmt.Sprintf("anon-%d", d.anonSeq),
		Name:     "Solicitante Anônimo",
		TenantID: &tenantID,
		Role:     domain.ActorRoleRequester,
		Active:   true,
	}
	d.actors[actor.ID] = actor
	d.anonymous[tenantID] = actor.ID
	clone := *actor
	return &clone, nil
}

func (d *memDirectory) IntakeKeyHash(_ context.Context, tenantID string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	hash, ok := d.intakeKeys[tenantID]
	if !ok {
		return "", pgx.ErrNoRows
	}
	return hash, nil
}

// memAssetEvents records audit events, optionally failing on demand.
type memAssetEvents struct {
	mu     sync.Mutex
	seq    int
	fail   bool
	events []domain.AssetEvent
}

func (r *memAssetEvents) Create(_ context.Context, event *domain.AssetEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("asset event store down")
	}
	r.seq++
	event.ID = fmt.Sprintf("event-%d", r.seq)
	event.CreatedAt = time.Now()
	r.events = append(r.events, *event)
	return nil
}

func (r *memAssetEvents) ListByAsset(_ context.Context, assetID string, _, _ int) ([]domain.AssetEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.AssetEvent
	for _, event := range r.events {
		if event.AssetID == assetID {
			result = append(result, event)
		}
	}
	return result, nil
}

// memNotifications records notifications; failRecipients simulates a
// per-recipient delivery failure.
type memNotifications struct {
	mu             sync.Mutex
	seq            int
	failRecipients map[string]bool
	created        []domain.Notification
}

func (r *memNotifications) Create(_ context.Context, notification *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failRecipients[notification.RecipientID] {
		return fmt.Errorf("delivery to %s failed", notification.RecipientID)
	}
	r.seq++
	notification.ID = fmt.Sprintf("notification-%d", r.seq)
	notification.CreatedAt = time.Now()
	r.created = append(r.created, *notification)
	return nil
}

func (r *memNotifications) ListByRecipient(_ context.Context, recipientID string, _, _ int) ([]domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Notification
	for _, notification := range r.created {
		if notification.RecipientID == recipientID {
			result = append(result, notification)
		}
	}
	return result, nil
}

func (r *memNotifications) recipients() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, notification := range r.created {
		out = append(out, notification.RecipientID)
	}
	return out
}

// syncDispatcher delivers events inline so tests observe side effects
// deterministically.
type syncDispatcher struct {
	mu        sync.Mutex
	listeners map[events.EventType][]events.EventHandler
	published []events.Event
}

func newSyncDispatcher() *syncDispatcher {
	return &syncDispatcher{listeners: make(map[events.EventType][]events.EventHandler)}
}

func (d *syncDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.mu.Lock()
	handlers := append([]events.EventHandler{}, d.listeners[event.Type]...)
	d.published = append(d.published, event)
	d.mu.Unlock()
	for _, handler := range handlers {
		_ = handler(ctx, event)
	}
	return nil
}

func (d *syncDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], handler)
}

func (d *syncDispatcher) eventsOfType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, event := range d.published {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

func strPtr(s string) *string {
	return &s
}

func containsString(list []string, want string) bool {
	for _, item := range list {
		if strings.EqualFold(item, want) {
			return true
		}
	}
	return false
}
