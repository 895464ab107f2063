package medication

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OccurrenceRepository is the storage contract for scheduled doses.
// Every operation is scoped by family group; Delete and DeleteBySeries
// are idempotent (removing an absent row is a success).
type OccurrenceRepository interface {
	Create(ctx context.Context, o *Occurrence) error
	CreateBatch(ctx context.Context, rows []*Occurrence) error
	GetByID(ctx context.Context, family string, id uuid.UUID) (*Occurrence, error)
	Update(ctx context.Context, o *Occurrence) error
	Delete(ctx context.Context, family string, id uuid.UUID) error
	DeleteBySeries(ctx context.Context, family string, seriesID uuid.UUID) (int, error)
	ListBySeries(ctx context.Context, family string, seriesID uuid.UUID) ([]*Occurrence, error)
	Search(ctx context.Context, family string, params map[string]string, limit, offset int) ([]*Occurrence, int, error)
	ListReminders(ctx context.Context, family string, from time.Time, limit, offset int) ([]*Occurrence, int, error)
}

// StockRepository is the storage contract for the stock ledger.
type StockRepository interface {
	Create(ctx context.Context, s *StockItem) error
	GetByID(ctx context.Context, family string, id uuid.UUID) (*StockItem, error)
	Update(ctx context.Context, s *StockItem) error
	Delete(ctx context.Context, family string, id uuid.UUID) error
	ListByFamily(ctx context.Context, family string, limit, offset int) ([]*StockItem, int, error)
	AdjustQuantity(ctx context.Context, family string, id uuid.UUID, newQuantity float64) (*StockItem, error)
}
