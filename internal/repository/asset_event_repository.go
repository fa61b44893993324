package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edu-patrimonio/workorder-service/internal/domain"
)

// AssetEventRepository persists the append-only asset audit trail.
type AssetEventRepository interface {
	Create(ctx context.Context, event *domain.AssetEvent) error
	ListByAsset(ctx context.Context, assetID string, limit, offset int) ([]domain.AssetEvent, error)
}

type assetEventRepository struct {
	pool *pgxpool.Pool
}

// NewAssetEventRepository instantiates repository.
func NewAssetEventRepository(pool *pgxpool.Pool) AssetEventRepository {
	return &assetEventRepository{pool: pool}
}

func (r *assetEventRepository) Create(ctx context.Context, event *domain.AssetEvent) error {
	const query = `
        INSERT INTO asset_events (asset_id, kind, description, old_value, new_value, actor_id)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		event.AssetID,
		event.Kind,
		event.Description,
		event.OldValue,
		event.NewValue,
		event.ActorID,
	).Scan(&event.ID, &event.CreatedAt)
}

func (r *assetEventRepository) ListByAsset(ctx context.Context, assetID string, limit, offset int) ([]domain.AssetEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, asset_id, kind, description, old_value, new_value, actor_id, created_at
        FROM asset_events WHERE asset_id=$1
        ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, assetID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AssetEvent
	for rows.Next() {
		var event domain.AssetEvent
		if err := rows.Scan(
			&event.ID,
			&event.AssetID,
			&event.Kind,
			&event.Description,
			&event.OldValue,
			&event.NewValue,
			&event.ActorID,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, event)
	}
	return result, rows.Err()
}
