package application

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{in: "", want: RoleEmployee},
		{in: "employee", want: RoleEmployee},
		{in: " Supervisor ", want: RoleSupervisor},
		{in: "ADMIN", want: RoleAdmin},
		{in: "owner", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewSession(t *testing.T) {
	t.Run("requires a user", func(t *testing.T) {
		_, err := NewSession(uuid.Nil, "supervisor")
		assert.ErrorIs(t, err, ErrIdentityRequired)
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		_, err := NewSession(uuid.New(), "root")
		assert.Error(t, err)
	})

	t.Run("valid", func(t *testing.T) {
		id := uuid.New()
		s, err := NewSession(id, "")
		require.NoError(t, err)
		assert.Equal(t, id, s.UserID)
		assert.Equal(t, RoleEmployee, s.Role)
	})
}

func TestSession_RequireSupervisor(t *testing.T) {
	assert.ErrorIs(t, Session{UserID: uuid.New(), Role: RoleEmployee}.RequireSupervisor(), ErrForbidden)
	assert.NoError(t, Session{UserID: uuid.New(), Role: RoleSupervisor}.RequireSupervisor())
	assert.NoError(t, Session{UserID: uuid.New(), Role: RoleAdmin}.RequireSupervisor())
	assert.ErrorIs(t, Session{Role: RoleAdmin}.RequireSupervisor(), ErrIdentityRequired)
}

func TestSessionContext(t *testing.T) {
	_, ok := SessionFromContext(context.Background())
	assert.False(t, ok)

	s := Session{UserID: uuid.New(), Role: RoleSupervisor}
	got, ok := SessionFromContext(WithSession(context.Background(), s))
	require.True(t, ok)
	assert.Equal(t, s, got)
}
