package family

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nidohq/nido/internal/platform/db"
)

type groupRepoPG struct{ pool *pgxpool.Pool }

func NewGroupRepoPG(pool *pgxpool.Pool) GroupRepository {
	return &groupRepoPG{pool: pool}
}

func (r *groupRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const groupCols = `id, slug, name, created_at, updated_at`

func (r *groupRepoPG) scanGroup(row pgx.Row) (*Group, error) {
	var g Group
	err := row.Scan(&g.ID, &g.Slug, &g.Name, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *groupRepoPG) Create(ctx context.Context, g *Group) error {
	g.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO family_group (id, slug, name) VALUES ($1, $2, $3)`,
		g.ID, g.Slug, g.Name)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *groupRepoPG) GetBySlug(ctx context.Context, slug string) (*Group, error) {
	return r.scanGroup(r.conn(ctx).QueryRow(ctx,
		`SELECT `+groupCols+` FROM family_group WHERE slug = $1`, slug))
}

func (r *groupRepoPG) Update(ctx context.Context, g *Group) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE family_group SET name = $2, updated_at = NOW() WHERE slug = $1`,
		g.Slug, g.Name)
	return err
}

func (r *groupRepoPG) Delete(ctx context.Context, slug string) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM family_group WHERE slug = $1`, slug)
	return err
}

func (r *groupRepoPG) List(ctx context.Context, limit, offset int) ([]*Group, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM family_group`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+groupCols+` FROM family_group ORDER BY slug ASC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var groups []*Group
	for rows.Next() {
		g, err := r.scanGroup(rows)
		if err != nil {
			return nil, 0, err
		}
		groups = append(groups, g)
	}
	return groups, total, rows.Err()
}

type memberRepoPG struct{ pool *pgxpool.Pool }

func NewMemberRepoPG(pool *pgxpool.Pool) MemberRepository {
	return &memberRepoPG{pool: pool}
}

func (r *memberRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const memberCols = `id, family_group, user_id, display_name, role, email, phone, created_at`

func (r *memberRepoPG) scanMember(row pgx.Row) (*Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.FamilyGroup, &m.UserID, &m.DisplayName, &m.Role, &m.Email, &m.Phone, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *memberRepoPG) Add(ctx context.Context, m *Member) error {
	m.ID = uuid.New()
	if m.Role == "" {
		m.Role = RoleMember
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO family_member (id, family_group, user_id, display_name, role, email, phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.FamilyGroup, m.UserID, m.DisplayName, strings.ToLower(m.Role), m.Email, m.Phone)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *memberRepoPG) GetByID(ctx context.Context, family string, id uuid.UUID) (*Member, error) {
	return r.scanMember(r.conn(ctx).QueryRow(ctx,
		`SELECT `+memberCols+` FROM family_member WHERE family_group = $1 AND id = $2`, family, id))
}

func (r *memberRepoPG) GetByUserID(ctx context.Context, family, userID string) (*Member, error) {
	return r.scanMember(r.conn(ctx).QueryRow(ctx,
		`SELECT `+memberCols+` FROM family_member WHERE family_group = $1 AND user_id = $2`, family, userID))
}

func (r *memberRepoPG) Remove(ctx context.Context, family string, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM family_member WHERE family_group = $1 AND id = $2`, family, id)
	return err
}

func (r *memberRepoPG) ListByFamily(ctx context.Context, family string, limit, offset int) ([]*Member, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM family_member WHERE family_group = $1`, family).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+memberCols+` FROM family_member WHERE family_group = $1 ORDER BY display_name ASC LIMIT $2 OFFSET $3`,
		family, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var members []*Member
	for rows.Next() {
		m, err := r.scanMember(rows)
		if err != nil {
			return nil, 0, err
		}
		members = append(members, m)
	}
	return members, total, rows.Err()
}
