package security

import (
	"Realty/internal/api/config"
	"Realty/internal/model"
	"Realty/internal/pkg/consts"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokens() *TokenManager {
	return NewTokenManager(config.JWTConfig{Secret: "test-secret", Issuer: "Realty", Expiration: 1})
}

func TestSessionFromToken(t *testing.T) {
	tm := newTestTokens()

	t.Run("empty token is a visitor", func(t *testing.T) {
		sess, err := tm.SessionFromToken("")
		require.NoError(t, err)
		assert.Equal(t, model.SenderUser, sess.Role())
		assert.False(t, sess.IsAdmin())
		assert.NotEmpty(t, sess.ID())
	})

	t.Run("admin role", func(t *testing.T) {
		token, err := tm.GenerateToken("agent-1", []string{"SUPPORT", consts.RoleAdmin})
		require.NoError(t, err)

		sess, err := tm.SessionFromToken(token)
		require.NoError(t, err)
		assert.True(t, sess.IsAdmin())
		assert.Equal(t, "agent-1", sess.Subject())
		assert.True(t, sess.Valid())
	})

	t.Run("staff without admin role", func(t *testing.T) {
		token, err := tm.GenerateToken("u-1", []string{"USER"})
		require.NoError(t, err)

		sess, err := tm.SessionFromToken(token)
		require.NoError(t, err)
		assert.Equal(t, model.SenderUser, sess.Role())
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tm.SessionFromToken("not-a-jwt")
		assert.Error(t, err)
	})

	t.Run("foreign secret", func(t *testing.T) {
		other := NewTokenManager(config.JWTConfig{Secret: "other", Issuer: "Realty", Expiration: 1})
		token, err := other.GenerateToken("agent-1", []string{consts.RoleAdmin})
		require.NoError(t, err)

		_, err = tm.SessionFromToken(token)
		assert.Error(t, err)
	})

	t.Run("foreign issuer", func(t *testing.T) {
		other := NewTokenManager(config.JWTConfig{Secret: "test-secret", Issuer: "Elsewhere", Expiration: 1})
		token, err := other.GenerateToken("agent-1", []string{consts.RoleAdmin})
		require.NoError(t, err)

		_, err = tm.SessionFromToken(token)
		assert.Error(t, err)
	})
}

func TestSession_CanClear(t *testing.T) {
	visitor := NewVisitorSession()
	admin := NewStaffSession(&StaffClaims{StaffID: "a", Roles: []string{consts.RoleAdmin}})

	assert.True(t, visitor.CanClear(model.SenderUser))
	assert.False(t, visitor.CanClear(model.SenderAdmin))
	assert.True(t, admin.CanClear(model.SenderUser))
	assert.True(t, admin.CanClear(model.SenderAdmin))
}

func TestSession_IDsAreUnique(t *testing.T) {
	assert.NotEqual(t, NewVisitorSession().ID(), NewVisitorSession().ID())
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken(""))
}
