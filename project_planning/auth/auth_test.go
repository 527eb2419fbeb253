package auth

import (
	"context"
	"testing"
	"time"

	"github.com/Matgc04/dssd-2025/project_planning/schema"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	cases := map[string]schema.Role{
		"ong originante":     schema.RoleOriginating,
		"ONG_ORIGINANTE":     schema.RoleOriginating,
		"ong origante":       schema.RoleOriginating,
		"ong colaboradora":   schema.RoleCollaborating,
		"Red_Ongs":           schema.RoleNetwork,
		" consejo directivo": schema.RoleCouncil,
		"SIN_DEFINIR":        schema.RoleUndefined,
		"bonita":             schema.RoleBonita,
	}

	for input, expected := range cases {
		role, err := ParseRole(input)
		assert.NoError(t, err, input)
		assert.Equal(t, expected, role, input)
	}

	_, err := ParseRole("administrador")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func setupTestRedis(t *testing.T) (*RedisDenylist, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	denylist, err := NewRedisDenylist("redis://" + s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { denylist.Close() })
	return denylist, s
}

func TestRedisDenylist(t *testing.T) {
	denylist, s := setupTestRedis(t)
	ctx := context.Background()

	revoked, err := denylist.IsRevoked(ctx, "token-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, denylist.Revoke(ctx, "token-1", time.Now().Add(time.Minute)))

	revoked, err = denylist.IsRevoked(ctx, "token-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = denylist.IsRevoked(ctx, "token-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	s.FastForward(2 * time.Minute)

	revoked, err = denylist.IsRevoked(ctx, "token-1")
	require.NoError(t, err)
	assert.False(t, revoked, "revocation should expire with the token")
}

func TestRedisDenylistSkipsExpiredTokens(t *testing.T) {
	denylist, s := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, denylist.Revoke(ctx, "old-token", time.Now().Add(-time.Minute)))
	assert.False(t, s.Exists("revoked_jwt:old-token"))
}

func TestMemoryDenylist(t *testing.T) {
	denylist := NewMemoryDenylist()
	ctx := context.Background()

	require.NoError(t, denylist.Revoke(ctx, "token-1", time.Now().Add(time.Minute)))
	require.NoError(t, denylist.Revoke(ctx, "token-2", time.Now().Add(-time.Minute)))

	revoked, _ := denylist.IsRevoked(ctx, "token-1")
	assert.True(t, revoked)

	revoked, _ = denylist.IsRevoked(ctx, "token-2")
	assert.False(t, revoked)
}
