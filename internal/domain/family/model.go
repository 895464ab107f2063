package family

import (
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("already exists")
)

// slugPattern matches the identifier every scoped row carries in its
// family_group column. Kept in sync with the middleware that resolves
// the group from incoming requests.
var slugPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidSlug reports whether s can be used as a family group identifier.
func ValidSlug(s string) bool {
	return s != "" && len(s) <= 63 && slugPattern.MatchString(s)
}

// Group is one household. Its slug is the tenancy key of every
// occurrence and stock row belonging to it.
type Group struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Slug      string    `db:"slug" json:"slug"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Member roles.
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// Member is one account inside a group. UserID is the subject claim of
// the member's token; reminder recipient lists reference members by ID.
type Member struct {
	ID          uuid.UUID `db:"id" json:"id"`
	FamilyGroup string    `db:"family_group" json:"family_group"`
	UserID      string    `db:"user_id" json:"user_id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Role        string    `db:"role" json:"role"`
	Email       string    `db:"email" json:"email,omitempty"`
	Phone       string    `db:"phone" json:"phone,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
