package family

import (
	"context"

	"github.com/google/uuid"
)

// GroupRepository defines the persistence interface for family groups.
type GroupRepository interface {
	Create(ctx context.Context, g *Group) error
	GetBySlug(ctx context.Context, slug string) (*Group, error)
	Update(ctx context.Context, g *Group) error
	Delete(ctx context.Context, slug string) error
	List(ctx context.Context, limit, offset int) ([]*Group, int, error)
}

// MemberRepository defines the persistence interface for group members.
type MemberRepository interface {
	Add(ctx context.Context, m *Member) error
	GetByID(ctx context.Context, family string, id uuid.UUID) (*Member, error)
	GetByUserID(ctx context.Context, family, userID string) (*Member, error)
	Remove(ctx context.Context, family string, id uuid.UUID) error
	ListByFamily(ctx context.Context, family string, limit, offset int) ([]*Member, int, error)
}
