package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/domain"
)

func TestResolveRecipientFromUser(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Set(ctx, domain.CollectionUsers, "u1", map[string]any{
		"email":       "ada@example.com",
		"displayName": "Ada Lovelace",
		"username":    "ada42",
	}))

	r := NewRecipientResolver(s)

	rcpt, err := r.Resolve(ctx, "u1", "", "")
	require.NoError(t, err)
	require.NotNil(t, rcpt)
	require.Equal(t, "ada@example.com", rcpt.Email)
	require.Equal(t, "Ada", rcpt.Name, "first token of display name")

	t.Run("explicit email wins over stored", func(t *testing.T) {
		rcpt, err := r.Resolve(ctx, "u1", "other@example.com", "")
		require.NoError(t, err)
		require.Equal(t, "other@example.com", rcpt.Email)
	})

	t.Run("explicit first name wins", func(t *testing.T) {
		rcpt, err := r.Resolve(ctx, "u1", "", "Countess")
		require.NoError(t, err)
		require.Equal(t, "Countess", rcpt.Name)
	})
}

func TestResolveRecipientNamePrecedence(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Set(ctx, domain.CollectionUsers, "u2", map[string]any{
		"email":    "x@example.com",
		"username": "xuser",
	}))
	require.NoError(t, s.Set(ctx, domain.CollectionUsers, "u3", map[string]any{
		"email": "y@example.com",
	}))

	r := NewRecipientResolver(s)

	rcpt, err := r.Resolve(ctx, "u2", "", "")
	require.NoError(t, err)
	require.Equal(t, "xuser", rcpt.Name, "username when no display name")

	rcpt, err = r.Resolve(ctx, "u3", "", "")
	require.NoError(t, err)
	require.Equal(t, "there", rcpt.Name, "generic greeting as last resort")
}

func TestResolveRecipientSkips(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Set(ctx, domain.CollectionUsers, "noemail", map[string]any{
		"displayName": "No Email",
	}))
	require.NoError(t, s.Set(ctx, domain.CollectionUsers, "optout", map[string]any{
		"email":       "opted@example.com",
		"preferences": map[string]any{"emailOptOut": true},
	}))

	r := NewRecipientResolver(s)

	rcpt, err := r.Resolve(ctx, "noemail", "", "")
	require.NoError(t, err, "no address is a skip, never an error")
	require.Nil(t, rcpt)

	rcpt, err = r.Resolve(ctx, "optout", "", "")
	require.NoError(t, err)
	require.Nil(t, rcpt)

	rcpt, err = r.Resolve(ctx, "missing-user", "", "")
	require.NoError(t, err)
	require.Nil(t, rcpt)

	t.Run("missing user with explicit address still resolves", func(t *testing.T) {
		rcpt, err := r.Resolve(ctx, "missing-user", "raw@example.com", "Ray")
		require.NoError(t, err)
		require.NotNil(t, rcpt)
		require.Equal(t, "raw@example.com", rcpt.Email)
		require.Equal(t, "Ray", rcpt.Name)
	})
}
