package token_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tuniway/tuniway-web/backend/backendfake"
	"github.com/tuniway/tuniway-web/token"
	"github.com/tuniway/tuniway-web/users"
)

func TestInspect(t *testing.T) {
	fake := backendfake.New("secret")
	raw, err := fake.IssueToken(users.Record{ID: 7, Username: "alice", Role: users.RoleGuide})
	require.NoError(t, err)

	t.Run("backend token", func(t *testing.T) {
		c, err := token.Inspect(raw)
		require.NoError(t, err)
		require.Equal(t, "alice", c.Subject)
		require.Equal(t, int64(7), c.UserID)
		require.Equal(t, "GUIDE", c.Role)
		require.NotEmpty(t, c.ID)
		require.NotNil(t, c.IssuedAt)
		require.NotNil(t, c.ExpiresAt)
		require.False(t, c.Expired(time.Now()))
		require.True(t, c.Expired(c.ExpiresAt.Add(time.Second)))

		left, ok := c.Remaining(time.Now())
		require.True(t, ok)
		require.Greater(t, left, time.Hour)
	})

	t.Run("bearer prefix tolerated", func(t *testing.T) {
		c, err := token.Inspect("Bearer " + raw)
		require.NoError(t, err)
		require.Equal(t, "alice", c.Subject)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := token.Inspect("  ")
		require.ErrorIs(t, err, token.ErrEmptyToken)
	})

	t.Run("opaque token", func(t *testing.T) {
		_, err := token.Inspect("abc")
		require.Error(t, err)
	})
}
