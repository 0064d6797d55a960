package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrIdentityRequired = errors.New("caller identity required")
	ErrForbidden        = errors.New("forbidden")
)

// Role is the caller's role as asserted by the upstream gateway.
type Role string

const (
	RoleEmployee   Role = "employee"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// ParseRole parses a role name. An empty name is an employee.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RoleEmployee, nil
	case RoleEmployee, RoleSupervisor, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Session identifies who issues a command. It is passed explicitly; there
// is no process-wide current user.
type Session struct {
	UserID uuid.UUID
	Role   Role
}

// NewSession builds a session from a user id and role name.
func NewSession(userID uuid.UUID, role string) (Session, error) {
	r, err := ParseRole(role)
	if err != nil {
		return Session{}, err
	}
	s := Session{UserID: userID, Role: r}
	return s, s.Validate()
}

// Validate fails when the session carries no user.
func (s Session) Validate() error {
	if s.UserID == uuid.Nil {
		return ErrIdentityRequired
	}
	return nil
}

// IsSupervisor reports whether the caller may approve and review work.
func (s Session) IsSupervisor() bool {
	return s.Role == RoleSupervisor || s.Role == RoleAdmin
}

// RequireSupervisor returns ErrForbidden unless the caller is a supervisor
// or admin.
func (s Session) RequireSupervisor() error {
	if err := s.Validate(); err != nil {
		return err
	}
	if !s.IsSupervisor() {
		return fmt.Errorf("%w: role %s cannot approve or review", ErrForbidden, s.Role)
	}
	return nil
}

type sessionKey struct{}

// WithSession stores the session on the context for transports that
// resolve identity in middleware.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session stored by WithSession.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}
