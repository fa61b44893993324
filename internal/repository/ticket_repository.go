package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edu-patrimonio/workorder-service/internal/domain"
)

// TicketFilter captures listing/aggregation parameters. Fields left nil
// are not applied.
type TicketFilter struct {
	TenantID    *string
	Status      *domain.TicketStatus
	Priority    *domain.TicketPriority
	AssignedTo  *string
	CreatedByID *string
	AssetID     *string
	Category    *string
	Limit       int
	Offset      int
}

// TicketStats aggregates ticket counts and resolution timing.
type TicketStats struct {
	Total                int64
	ByStatus             map[domain.TicketStatus]int64
	ByPriority           map[domain.TicketPriority]int64
	AvgResolutionSeconds *float64
}

// TicketRepository encapsulates ticket persistence. The Acquire/Resolve/
// Close/ForceAssign primitives are single guarded UPDATEs: the status
// predicate is evaluated by the store in the same statement as the write,
// so two concurrent callers can never both pass the guard. They return
// pgx.ErrNoRows when the predicate did not match any row; callers
// re-read to tell "not found" apart from "guard failed".
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	AcquireOpen(ctx context.Context, ticketID, technicianID string, at time.Time) (*domain.Ticket, error)
	ForceAssign(ctx context.Context, ticketID, technicianID string, at time.Time) (*domain.Ticket, error)
	Resolve(ctx context.Context, ticketID, technicianID, resolution string, at time.Time) (*domain.Ticket, error)
	Close(ctx context.Context, ticketID string, resolution *string, at time.Time) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Stats(ctx context.Context, filter TicketFilter) (*TicketStats, error)
}

const ticketColumns = `id, title, description, category, tenant_id, asset_id, created_by,
               priority, status, assigned_to, resolution, attachments,
               created_at, updated_at, accepted_at, resolved_at, closed_at`

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, category, tenant_id, asset_id, created_by, priority, status, attachments)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.TenantID,
		ticket.AssetID,
		ticket.CreatedByID,
		ticket.Priority,
		ticket.Status,
		ticket.Attachments,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET priority=$1, status=$2, assigned_to=$3, resolution=$4, attachments=$5,
            accepted_at=$6, resolved_at=$7, closed_at=$8, updated_at=NOW()
        WHERE id=$9`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Priority,
		ticket.Status,
		ticket.AssignedTo,
		ticket.Resolution,
		ticket.Attachments,
		ticket.AcceptedAt,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

// AcquireOpen is the accept primitive: it transitions ABERTO -> EM_ANDAMENTO
// and claims the ticket only if no one holds it yet. The WHERE predicate is
// the whole concurrency story; there is no surrounding lock.
func (r *ticketRepository) AcquireOpen(ctx context.Context, ticketID, technicianID string, at time.Time) (*domain.Ticket, error) {
	query := `
        UPDATE tickets
        SET status=$2, assigned_to=$3, accepted_at=$4, updated_at=NOW()
        WHERE id=$1 AND status=$5 AND assigned_to IS NULL
        RETURNING ` + ticketColumns
	return r.fetchSingle(ctx, query, ticketID, domain.TicketStatusInProgress, technicianID, at, domain.TicketStatusOpen)
}

// ForceAssign overwrites the assignee regardless of a current holder; it is
// reserved to managers and refused once the ticket is resolved or closed.
func (r *ticketRepository) ForceAssign(ctx context.Context, ticketID, technicianID string, at time.Time) (*domain.Ticket, error) {
	query := `
        UPDATE tickets
        SET status=$2, assigned_to=$3, accepted_at=COALESCE(accepted_at, $4), updated_at=NOW()
        WHERE id=$1 AND status IN ($5, $6, $7)
        RETURNING ` + ticketColumns
	return r.fetchSingle(ctx, query, ticketID, domain.TicketStatusInProgress, technicianID, at,
		domain.TicketStatusOpen, domain.TicketStatusInProgress, domain.TicketStatusWaiting)
}

func (r *ticketRepository) Resolve(ctx context.Context, ticketID, technicianID, resolution string, at time.Time) (*domain.Ticket, error) {
	query := `
        UPDATE tickets
        SET status=$2, resolution=$3, resolved_at=$4, updated_at=NOW()
        WHERE id=$1 AND status=$5 AND assigned_to=$6
        RETURNING ` + ticketColumns
	return r.fetchSingle(ctx, query, ticketID, domain.TicketStatusResolved, resolution, at,
		domain.TicketStatusInProgress, technicianID)
}

// Close back-fills resolved_at so resolvedAt <= closedAt holds even for
// tickets closed without an explicit resolve step.
func (r *ticketRepository) Close(ctx context.Context, ticketID string, resolution *string, at time.Time) (*domain.Ticket, error) {
	query := `
        UPDATE tickets
        SET status=$2, closed_at=$3, resolved_at=COALESCE(resolved_at, $3),
            resolution=COALESCE(resolution, $4), updated_at=NOW()
        WHERE id=$1 AND status<>$2
        RETURNING ` + ticketColumns
	return r.fetchSingle(ctx, query, ticketID, domain.TicketStatusClosed, at, resolution)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Category,
		&ticket.TenantID,
		&ticket.AssetID,
		&ticket.CreatedByID,
		&ticket.Priority,
		&ticket.Status,
		&ticket.AssignedTo,
		&ticket.Resolution,
		&ticket.Attachments,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.AcceptedAt,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses, args := filterClauses(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) Stats(ctx context.Context, filter TicketFilter) (*TicketStats, error) {
	clauses, args := filterClauses(filter)
	where := strings.Join(clauses, " AND ")

	stats := &TicketStats{
		ByStatus:   make(map[domain.TicketStatus]int64),
		ByPriority: make(map[domain.TicketPriority]int64),
	}

	statusQuery := fmt.Sprintf(`SELECT status, COUNT(*) FROM tickets WHERE %s GROUP BY status`, where)
	rows, err := r.pool.Query(ctx, statusQuery, args...)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var status domain.TicketStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	priorityQuery := fmt.Sprintf(`SELECT priority, COUNT(*) FROM tickets WHERE %s GROUP BY priority`, where)
	rows, err = r.pool.Query(ctx, priorityQuery, args...)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var priority domain.TicketPriority
		var count int64
		if err := rows.Scan(&priority, &count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.ByPriority[priority] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	avgQuery := fmt.Sprintf(`
        SELECT AVG(EXTRACT(EPOCH FROM (resolved_at - created_at)))
        FROM tickets WHERE %s AND resolved_at IS NOT NULL`, where)
	if err := r.pool.QueryRow(ctx, avgQuery, args...).Scan(&stats.AvgResolutionSeconds); err != nil {
		return nil, err
	}

	return stats, nil
}

func filterClauses(filter TicketFilter) ([]string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.TenantID != nil {
		args = append(args, *filter.TenantID)
		clauses = append(clauses, fmt.Sprintf("tenant_id=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("priority=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.CreatedByID != nil {
		args = append(args, *filter.CreatedByID)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.AssetID != nil {
		args = append(args, *filter.AssetID)
		clauses = append(clauses, fmt.Sprintf("asset_id=$%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	return clauses, args
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Title,
			&ticket.Description,
			&ticket.Category,
			&ticket.TenantID,
			&ticket.AssetID,
			&ticket.CreatedByID,
			&ticket.Priority,
			&ticket.Status,
			&ticket.AssignedTo,
			&ticket.Resolution,
			&ticket.Attachments,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
			&ticket.AcceptedAt,
			&ticket.ResolvedAt,
			&ticket.ClosedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
