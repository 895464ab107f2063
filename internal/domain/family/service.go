package family

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	groups  GroupRepository
	members MemberRepository
}

func NewService(groups GroupRepository, members MemberRepository) *Service {
	return &Service{groups: groups, members: members}
}

// CreateGroup registers a household. The creating user becomes its
// owner member.
func (s *Service) CreateGroup(ctx context.Context, userID, displayName string, g *Group) error {
	if !ValidSlug(g.Slug) {
		return fmt.Errorf("%w: slug must be a short identifier of letters, digits, - and _", ErrValidation)
	}
	if g.Name == "" {
		g.Name = g.Slug
	}
	if err := s.groups.Create(ctx, g); err != nil {
		return err
	}
	if userID == "" {
		return nil
	}
	return s.members.Add(ctx, &Member{
		FamilyGroup: g.Slug,
		UserID:      userID,
		DisplayName: displayName,
		Role:        RoleOwner,
	})
}

func (s *Service) GetGroup(ctx context.Context, slug string) (*Group, error) {
	return s.groups.GetBySlug(ctx, slug)
}

func (s *Service) UpdateGroup(ctx context.Context, g *Group) error {
	if g.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if _, err := s.groups.GetBySlug(ctx, g.Slug); err != nil {
		return err
	}
	return s.groups.Update(ctx, g)
}

func (s *Service) ListGroups(ctx context.Context, limit, offset int) ([]*Group, int, error) {
	return s.groups.List(ctx, limit, offset)
}

func (s *Service) AddMember(ctx context.Context, family string, m *Member) error {
	if m.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrValidation)
	}
	if m.Role != "" && m.Role != RoleOwner && m.Role != RoleMember {
		return fmt.Errorf("%w: unknown role %q", ErrValidation, m.Role)
	}
	if _, err := s.groups.GetBySlug(ctx, family); err != nil {
		return err
	}
	m.FamilyGroup = family
	return s.members.Add(ctx, m)
}

func (s *Service) GetMember(ctx context.Context, family string, id uuid.UUID) (*Member, error) {
	return s.members.GetByID(ctx, family, id)
}

// RemoveMember is idempotent: removing an absent member succeeds.
func (s *Service) RemoveMember(ctx context.Context, family string, id uuid.UUID) error {
	return s.members.Remove(ctx, family, id)
}

func (s *Service) ListMembers(ctx context.Context, family string, limit, offset int) ([]*Member, int, error) {
	return s.members.ListByFamily(ctx, family, limit, offset)
}
