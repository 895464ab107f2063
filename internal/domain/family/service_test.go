package family

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

type mockGroupRepo struct {
	groups map[string]*Group
}

func newMockGroupRepo() *mockGroupRepo {
	return &mockGroupRepo{groups: make(map[string]*Group)}
}

func (m *mockGroupRepo) Create(ctx context.Context, g *Group) error {
	if _, ok := m.groups[g.Slug]; ok {
		return ErrConflict
	}
	g.ID = uuid.New()
	clone := *g
	m.groups[g.Slug] = &clone
	return nil
}

func (m *mockGroupRepo) GetBySlug(ctx context.Context, slug string) (*Group, error) {
	g, ok := m.groups[slug]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *g
	return &clone, nil
}

func (m *mockGroupRepo) Update(ctx context.Context, g *Group) error {
	if _, ok := m.groups[g.Slug]; !ok {
		return ErrNotFound
	}
	clone := *g
	m.groups[g.Slug] = &clone
	return nil
}

func (m *mockGroupRepo) Delete(ctx context.Context, slug string) error {
	delete(m.groups, slug)
	return nil
}

func (m *mockGroupRepo) List(ctx context.Context, limit, offset int) ([]*Group, int, error) {
	var out []*Group
	for _, g := range m.groups {
		clone := *g
		out = append(out, &clone)
	}
	return out, len(out), nil
}

type mockMemberRepo struct {
	members map[uuid.UUID]*Member
}

func newMockMemberRepo() *mockMemberRepo {
	return &mockMemberRepo{members: make(map[uuid.UUID]*Member)}
}

func (m *mockMemberRepo) Add(ctx context.Context, mem *Member) error {
	mem.ID = uuid.New()
	if mem.Role == "" {
		mem.Role = RoleMember
	}
	clone := *mem
	m.members[mem.ID] = &clone
	return nil
}

func (m *mockMemberRepo) GetByID(ctx context.Context, family string, id uuid.UUID) (*Member, error) {
	mem, ok := m.members[id]
	if !ok || mem.FamilyGroup != family {
		return nil, ErrNotFound
	}
	clone := *mem
	return &clone, nil
}

func (m *mockMemberRepo) GetByUserID(ctx context.Context, family, userID string) (*Member, error) {
	for _, mem := range m.members {
		if mem.FamilyGroup == family && mem.UserID == userID {
			clone := *mem
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockMemberRepo) Remove(ctx context.Context, family string, id uuid.UUID) error {
	if mem, ok := m.members[id]; ok && mem.FamilyGroup == family {
		delete(m.members, id)
	}
	return nil
}

func (m *mockMemberRepo) ListByFamily(ctx context.Context, family string, limit, offset int) ([]*Member, int, error) {
	var out []*Member
	for _, mem := range m.members {
		if mem.FamilyGroup == family {
			clone := *mem
			out = append(out, &clone)
		}
	}
	return out, len(out), nil
}

func TestCreateGroup_OwnerMembership(t *testing.T) {
	groups := newMockGroupRepo()
	members := newMockMemberRepo()
	svc := NewService(groups, members)

	g := &Group{Slug: "rossi", Name: "Famiglia Rossi"}
	if err := svc.CreateGroup(context.Background(), "user-1", "Mario", g); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := members.GetByUserID(context.Background(), "rossi", "user-1")
	if err != nil {
		t.Fatalf("expected owner membership: %v", err)
	}
	if got.Role != RoleOwner {
		t.Errorf("expected role owner, got %q", got.Role)
	}
}

func TestCreateGroup_InvalidSlug(t *testing.T) {
	svc := NewService(newMockGroupRepo(), newMockMemberRepo())

	for _, slug := range []string{"", "famiglia rossi", "rossi!", "a/b"} {
		err := svc.CreateGroup(context.Background(), "user-1", "Mario", &Group{Slug: slug})
		if !errors.Is(err, ErrValidation) {
			t.Errorf("slug %q: expected validation error, got %v", slug, err)
		}
	}
}

func TestCreateGroup_DuplicateSlug(t *testing.T) {
	svc := NewService(newMockGroupRepo(), newMockMemberRepo())

	if err := svc.CreateGroup(context.Background(), "user-1", "Mario", &Group{Slug: "rossi"}); err != nil {
		t.Fatal(err)
	}
	err := svc.CreateGroup(context.Background(), "user-2", "Luigi", &Group{Slug: "rossi"})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestAddMember_UnknownGroup(t *testing.T) {
	svc := NewService(newMockGroupRepo(), newMockMemberRepo())

	err := svc.AddMember(context.Background(), "bianchi", &Member{UserID: "user-9"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestAddMember_Validation(t *testing.T) {
	groups := newMockGroupRepo()
	svc := NewService(groups, newMockMemberRepo())
	if err := svc.CreateGroup(context.Background(), "", "", &Group{Slug: "rossi"}); err != nil {
		t.Fatal(err)
	}

	if err := svc.AddMember(context.Background(), "rossi", &Member{}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for missing user_id, got %v", err)
	}
	if err := svc.AddMember(context.Background(), "rossi", &Member{UserID: "u", Role: "admin"}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for unknown role, got %v", err)
	}
}

func TestRemoveMember_Idempotent(t *testing.T) {
	groups := newMockGroupRepo()
	members := newMockMemberRepo()
	svc := NewService(groups, members)
	if err := svc.CreateGroup(context.Background(), "user-1", "Mario", &Group{Slug: "rossi"}); err != nil {
		t.Fatal(err)
	}
	mem, err := members.GetByUserID(context.Background(), "rossi", "user-1")
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.RemoveMember(context.Background(), "rossi", mem.ID); err != nil {
		t.Fatalf("first remove: %v", err)
	}
	if err := svc.RemoveMember(context.Background(), "rossi", mem.ID); err != nil {
		t.Fatalf("second remove must succeed: %v", err)
	}
}

func TestValidSlug(t *testing.T) {
	for _, s := range []string{"rossi", "casa-mia", "fam_2", "A1"} {
		if !ValidSlug(s) {
			t.Errorf("expected %q valid", s)
		}
	}
	for _, s := range []string{"", "with space", "é", "a.b"} {
		if ValidSlug(s) {
			t.Errorf("expected %q invalid", s)
		}
	}
}
