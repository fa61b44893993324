package domain

import "time"

// AssetEventKind enumerates audit record kinds for asset history.
type AssetEventKind string

const (
	AssetEventCreated       AssetEventKind = "CRIADO"
	AssetEventStatusChanged AssetEventKind = "STATUS_ALTERADO"
	AssetEventMoved         AssetEventKind = "MOVIDO"
	AssetEventMaintenance   AssetEventKind = "MANUTENCAO"
)

// AssetEvent is an append-only audit record describing a change that
// affected a physical asset. Events are never mutated or deleted by the
// service; retention is an administrative concern.
type AssetEvent struct {
	ID          string
	AssetID     string
	Kind        AssetEventKind
	Description string
	OldValue    map[string]any
	NewValue    map[string]any
	ActorID     string
	CreatedAt   time.Time
}
