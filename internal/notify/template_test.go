package notify

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/domain"
	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/store"
)

func openTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestResolveOverrideWinsOutright(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Set(ctx, domain.CollectionTemplates, "streak-milestone", map[string]any{
		"subject": "stored subject",
		"html":    "stored body",
	}))

	r := NewTemplateResolver(s)
	subject, html := r.Resolve(ctx, "streak-milestone",
		"fallback subject", "<p>fallback</p>",
		Vars{"firstName": "Ada"},
		"Hi {{firstName}}", "<p>Go {{first_name}}!</p>")

	require.Equal(t, "Hi Ada", subject)
	require.Equal(t, "<p>Go Ada!</p>", html)
}

func TestResolvePartialOverrideFallsThrough(t *testing.T) {
	ctx := context.Background()
	r := NewTemplateResolver(openTestStore(t))

	// Only a subject override: not a full pair, so the chain continues and
	// both fields come from the compiled-in defaults.
	subject, html := r.Resolve(ctx, "challenge-welcome",
		"fallback subject", "<p>fallback</p>", nil,
		"override subject", "")

	require.Equal(t, "fallback subject", subject)
	require.Equal(t, "<p>fallback</p>", html)
}

func TestResolveStoredTemplate(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Set(ctx, domain.CollectionTemplates, "challenge-ending-soon", map[string]any{
		"subject": "{{challengeTitle}} ends soon",
		"html":    "<p>Only {{hours_left}} hours left, {{firstName}}.</p>",
	}))

	r := NewTemplateResolver(s)
	subject, html := r.Resolve(ctx, "challenge-ending-soon",
		"fallback", "<p>fallback</p>",
		Vars{"challengeTitle": "Spring Shred", "hoursLeft": "24", "firstName": "Ada"},
		"", "")

	require.Equal(t, "Spring Shred ends soon", subject)
	require.Equal(t, "<p>Only 24 hours left, Ada.</p>", html)
	require.NotContains(t, subject, "{{")
	require.NotContains(t, html, "{{")
}

func TestResolveStoredSubjectOnly(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Set(ctx, domain.CollectionTemplates, "first-workout", map[string]any{
		"subject": "stored subject",
	}))

	r := NewTemplateResolver(s)
	subject, html := r.Resolve(ctx, "first-workout", "fallback subject", "<p>fallback</p>", nil, "", "")
	require.Equal(t, "stored subject", subject)
	require.Equal(t, "<p>fallback</p>", html)
}

func TestResolveMissingTemplateUsesFallback(t *testing.T) {
	ctx := context.Background()
	r := NewTemplateResolver(openTestStore(t))

	subject, html := r.Resolve(ctx, "nope", "fallback subject", "<p>fallback</p>", nil, "", "")
	require.Equal(t, "fallback subject", subject)
	require.Equal(t, "<p>fallback</p>", html)
	require.NotContains(t, subject, "{{")
	require.NotContains(t, html, "{{")
}

func TestRenderTokens(t *testing.T) {
	vars := Vars{"challengeTitle": "A <b>bold</b> one", "firstName": "Ada"}

	t.Run("case insensitive and snake case", func(t *testing.T) {
		out := renderTokens("{{challengeTitle}} / {{challenge_title}} / {{CHALLENGETITLE}}", vars)
		require.Equal(t,
			"A &lt;b&gt;bold&lt;/b&gt; one / A &lt;b&gt;bold&lt;/b&gt; one / A &lt;b&gt;bold&lt;/b&gt; one",
			out)
	})

	t.Run("unknown token renders empty", func(t *testing.T) {
		require.Equal(t, "hello ", renderTokens("hello {{missing}}", vars))
	})

	t.Run("whitespace inside braces", func(t *testing.T) {
		require.Equal(t, "Ada", renderTokens("{{ firstName }}", vars))
	})
}

func TestSnakeCase(t *testing.T) {
	require.Equal(t, "challenge_title", snakeCase("challengeTitle"))
	require.Equal(t, "hours_left", snakeCase("hoursLeft"))
	require.Equal(t, "streak", snakeCase("streak"))
}
