package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edu-patrimonio/workorder-service/internal/domain"
)

// anonymousEmailSuffix is the stable marker identifying the per-tenant
// placeholder actor used for unauthenticated intake.
const anonymousEmailSuffix = "@anonimo.local"

const uniqueViolationCode = "23505"

// DirectoryRepository resolves actors, technician eligibility and asset
// ownership. It is the ticket core's view onto the user/asset directory.
type DirectoryRepository interface {
	GetTechnician(ctx context.Context, id string) (*domain.Technician, error)
	ListEligibleTechnicians(ctx context.Context) ([]domain.Technician, error)
	GetActor(ctx context.Context, id string) (*domain.Technician, error)
	TenantForAsset(ctx context.Context, assetID string) (string, error)
	GetOrCreateAnonymousActor(ctx context.Context, tenantID string) (*domain.Technician, error)
	IntakeKeyHash(ctx context.Context, tenantID string) (string, error)
}

type directoryRepository struct {
	pool *pgxpool.Pool
}

// NewDirectoryRepository instantiates repository.
func NewDirectoryRepository(pool *pgxpool.Pool) DirectoryRepository {
	return &directoryRepository{pool: pool}
}

const userColumns = `id, name, email, tenant_id, role, can_accept_tickets, active, created_at`

func (r *directoryRepository) GetTechnician(ctx context.Context, id string) (*domain.Technician, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1 AND role=$2`
	return r.fetchSingle(ctx, query, id, domain.ActorRoleTechnician)
}

func (r *directoryRepository) GetActor(ctx context.Context, id string) (*domain.Technician, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *directoryRepository) ListEligibleTechnicians(ctx context.Context) ([]domain.Technician, error) {
	query := `SELECT ` + userColumns + ` FROM users
        WHERE role=$1 AND active=TRUE AND can_accept_tickets=TRUE
        ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, domain.ActorRoleTechnician)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Technician
	for rows.Next() {
		tech, err := scanTechnician(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *tech)
	}
	return result, rows.Err()
}

func (r *directoryRepository) TenantForAsset(ctx context.Context, assetID string) (string, error) {
	var tenantID string
	err := r.pool.QueryRow(ctx, `SELECT tenant_id FROM assets WHERE id=$1`, assetID).Scan(&tenantID)
	if err != nil {
		return "", err
	}
	return tenantID, nil
}

// GetOrCreateAnonymousActor provisions the placeholder creator identity for
// a tenant at most once. Concurrent creations collapse onto the partial
// unique index over anonymous users: the losing INSERT hits a unique
// violation (or affects zero rows with DO NOTHING) and falls through to the
// SELECT of the winner's row.
func (r *directoryRepository) GetOrCreateAnonymousActor(ctx context.Context, tenantID string) (*domain.Technician, error) {
	const insert = `
        INSERT INTO users (name, email, tenant_id, role, can_accept_tickets, active, anonymous)
        VALUES ('Solicitante Anônimo', $1, $2, $3, FALSE, TRUE, TRUE)
        ON CONFLICT DO NOTHING
        RETURNING ` + userColumns
	email := tenantID + anonymousEmailSuffix

	tech, err := r.fetchSingle(ctx, insert, email, tenantID, domain.ActorRoleRequester)
	if err == nil {
		return tech, nil
	}
	var pgErr *pgconn.PgError
	if !errors.Is(err, pgx.ErrNoRows) && !(errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode) {
		return nil, err
	}

	const query = `SELECT ` + userColumns + ` FROM users WHERE tenant_id=$1 AND anonymous=TRUE`
	return r.fetchSingle(ctx, query, tenantID)
}

// IntakeKeyHash returns the bcrypt hash of the tenant's intake key.
func (r *directoryRepository) IntakeKeyHash(ctx context.Context, tenantID string) (string, error) {
	var hash string
	err := r.pool.QueryRow(ctx, `SELECT key_hash FROM tenant_intake_keys WHERE tenant_id=$1`, tenantID).Scan(&hash)
	if err != nil {
		return "", err
	}
	return hash, nil
}

func (r *directoryRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Technician, error) {
	return scanTechnician(r.pool.QueryRow(ctx, query, args...))
}

func scanTechnician(row pgx.Row) (*domain.Technician, error) {
	var tech domain.Technician
	if err := row.Scan(
		&tech.ID,
		&tech.Name,
		&tech.Email,
		&tech.TenantID,
		&tech.Role,
		&tech.CanAcceptTickets,
		&tech.Active,
		&tech.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &tech, nil
}
