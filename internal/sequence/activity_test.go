package sequence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/domain"
	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/notify"
	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/scanner"
	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/store"
)

type recordingDispatcher struct {
	sent []notify.Request
	skip bool
}

func (d *recordingDispatcher) Send(_ context.Context, req notify.Request) (notify.DispatchResult, error) {
	d.sent = append(d.sent, req)
	if d.skip {
		return notify.DispatchResult{Skipped: true}, nil
	}
	return notify.DispatchResult{Success: true, MessageID: "m1"}, nil
}

func openTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFirstWorkoutExactlyOneGate(t *testing.T) {
	ctx := context.Background()
	seq := NewFirstWorkout()

	doc := func(workouts ...time.Time) store.Document {
		var list []any
		for i, w := range workouts {
			list = append(list, map[string]any{"id": string(rune('a' + i)), "completedAt": ts(w)})
		}
		return challengeDoc("c1", map[string]any{
			"userId":            "u1",
			"completedWorkouts": list,
			"challenge":         map[string]any{"title": "Spring Shred"},
		})
	}

	cand, err := seq.Evaluate(ctx, doc(now.Add(-2*time.Hour)), now)
	require.NoError(t, err)
	require.NotNil(t, cand)
	require.Equal(t, "firstWorkout", cand.MarkerField)

	t.Run("zero workouts", func(t *testing.T) {
		cand, err := seq.Evaluate(ctx, doc(), now)
		require.NoError(t, err)
		require.Nil(t, cand)
	})

	t.Run("two workouts", func(t *testing.T) {
		cand, err := seq.Evaluate(ctx, doc(now.Add(-2*time.Hour), now.Add(-26*time.Hour)), now)
		require.NoError(t, err)
		require.Nil(t, cand)
	})

	t.Run("completion too old", func(t *testing.T) {
		cand, err := seq.Evaluate(ctx, doc(now.Add(-80*time.Hour)), now)
		require.NoError(t, err)
		require.Nil(t, cand)
	})

	t.Run("completion in the future", func(t *testing.T) {
		cand, err := seq.Evaluate(ctx, doc(now.Add(time.Hour)), now)
		require.NoError(t, err)
		require.Nil(t, cand)
	})
}

func TestStreakMilestoneSelection(t *testing.T) {
	ctx := context.Background()
	seq := NewStreakMilestone()

	doc := func(streak int, state map[string]any) store.Document {
		data := map[string]any{
			"userId":        "u1",
			"currentStreak": streak,
			"challenge":     map[string]any{"title": "Spring Shred"},
			"completedWorkouts": []any{
				map[string]any{"id": "w", "completedAt": ts(now.Add(-2 * time.Hour))},
			},
		}
		if state != nil {
			data["emailSequenceState"] = state
		}
		return challengeDoc("c1", data)
	}

	t.Run("streak 7 with no markers sends only 7", func(t *testing.T) {
		cand, err := seq.Evaluate(ctx, doc(7, nil), now)
		require.NoError(t, err)
		require.NotNil(t, cand)
		require.Equal(t, "7", cand.Milestone)
	})

	t.Run("milestone 7 marked leaves 3 pending", func(t *testing.T) {
		cand, err := seq.Evaluate(ctx, doc(7, map[string]any{
			"streakMilestonesSent": map[string]any{"7": ts(now.Add(-24 * time.Hour))},
		}), now)
		require.NoError(t, err)
		require.NotNil(t, cand)
		require.Equal(t, "3", cand.Milestone)
	})

	t.Run("below the ladder", func(t *testing.T) {
		cand, err := seq.Evaluate(ctx, doc(2, nil), now)
		require.NoError(t, err)
		require.Nil(t, cand)
	})

	t.Run("stale completion fails the recency gate", func(t *testing.T) {
		d := doc(7, nil)
		d.Data["completedWorkouts"] = []any{
			map[string]any{"id": "w", "completedAt": ts(now.Add(-50 * time.Hour))},
		}
		cand, err := seq.Evaluate(ctx, d, now)
		require.NoError(t, err)
		require.Nil(t, cand)
	})
}

// The end-to-end scenario: streak 7, one workout two hours ago, no markers.
// The scanner sends milestone 7, stamps streakMilestonesSent.7, and the
// immediate re-run classifies the record as skipped.
func TestStreakMilestoneScenario(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Set(ctx, domain.CollectionUserChallenges, "c1", map[string]any{
		"userId":        "u1",
		"currentStreak": 7,
		"updatedAt":     ts(now.Add(-2 * time.Hour)),
		"challenge":     map[string]any{"title": "Spring Shred"},
		"completedWorkouts": []any{
			map[string]any{"id": "w", "completedAt": ts(now.Add(-2 * time.Hour))},
		},
	}))

	d := &recordingDispatcher{}
	r := scanner.NewRunner(s, d, zap.NewNop())

	sum, err := r.Run(ctx, NewStreakMilestone())
	require.NoError(t, err)
	require.Equal(t, scanner.Summary{Scanned: 1, Sent: 1}, sum)
	require.Len(t, d.sent, 1)
	require.Equal(t, "7", d.sent[0].Vars["streak"])

	doc, err := s.Get(ctx, domain.CollectionUserChallenges, "c1")
	require.NoError(t, err)
	state := doc.Data["emailSequenceState"].(map[string]any)
	require.Contains(t, state["streakMilestonesSent"].(map[string]any), "7")

	sum, err = r.Run(ctx, NewStreakMilestone())
	require.NoError(t, err)
	require.Equal(t, scanner.Summary{Scanned: 1, Skipped: 1}, sum)
	require.Len(t, d.sent, 1)
}

func TestInactivityWinback(t *testing.T) {
	ctx := context.Background()
	seq := NewInactivityWinback()

	doc := func(updated time.Time, state map[string]any) store.Document {
		data := map[string]any{
			"userId":    "u1",
			"updatedAt": ts(updated),
			"challenge": map[string]any{
				"title":   "Spring Shred",
				"endDate": ts(now.Add(20 * 24 * time.Hour)),
			},
		}
		if state != nil {
			data["emailSequenceState"] = state
		}
		return challengeDoc("c1", data)
	}

	t.Run("eight quiet days sends the 7 milestone", func(t *testing.T) {
		cand, err := seq.Evaluate(ctx, doc(now.Add(-8*24*time.Hour), nil), now)
		require.NoError(t, err)
		require.NotNil(t, cand)
		require.Equal(t, "7", cand.Milestone)
		require.Equal(t, "winback", cand.MarkerField)
	})

	t.Run("7 marked falls back to 3", func(t *testing.T) {
		cand, err := seq.Evaluate(ctx, doc(now.Add(-8*24*time.Hour), map[string]any{
			"winbackSent": map[string]any{"7": ts(now.Add(-24 * time.Hour))},
		}), now)
		require.NoError(t, err)
		require.NotNil(t, cand)
		require.Equal(t, "3", cand.Milestone)
	})

	t.Run("skipped marker suppresses like sent", func(t *testing.T) {
		cand, err := seq.Evaluate(ctx, doc(now.Add(-4*24*time.Hour), map[string]any{
			"winbackSkipped": map[string]any{"3": ts(now.Add(-24 * time.Hour))},
		}), now)
		require.NoError(t, err)
		require.Nil(t, cand)
	})

	t.Run("ended challenge is left alone", func(t *testing.T) {
		d := doc(now.Add(-8*24*time.Hour), nil)
		d.Data["challenge"].(map[string]any)["endDate"] = ts(now.Add(-time.Hour))
		cand, err := seq.Evaluate(ctx, d, now)
		require.NoError(t, err)
		require.Nil(t, cand)
	})
}

func TestWorkoutReminder(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seq := NewWorkoutReminder(Deps{Store: s, DefaultTZ: "UTC"})

	// 17:05 in New York.
	reminderNow := time.Date(2024, 3, 1, 22, 5, 0, 0, time.UTC)

	userDoc := func(state map[string]any) store.Document {
		data := map[string]any{
			"email": "ada@example.com",
			"preferences": map[string]any{
				"reminderTime": "17:00",
				"timezone":     "America/New_York",
			},
		}
		if state != nil {
			data["emailSequenceState"] = state
		}
		return store.Document{Collection: domain.CollectionUsers, ID: "u1", Data: data}
	}

	seedChallenge := func(completedAt *time.Time) {
		data := map[string]any{
			"userId":    "u1",
			"updatedAt": ts(reminderNow),
			"challenge": map[string]any{
				"title":   "Spring Shred",
				"endDate": ts(reminderNow.Add(10 * 24 * time.Hour)),
			},
		}
		if completedAt != nil {
			data["completedWorkouts"] = []any{
				map[string]any{"id": "w", "completedAt": ts(*completedAt)},
			}
		}
		require.NoError(t, s.Set(ctx, domain.CollectionUserChallenges, "c1", data))
	}

	t.Run("due with no workout today", func(t *testing.T) {
		seedChallenge(nil)
		cand, err := seq.Evaluate(ctx, userDoc(nil), reminderNow)
		require.NoError(t, err)
		require.NotNil(t, cand)
		require.Equal(t, "workoutReminder", cand.MarkerField)
		require.Equal(t, "2024-03-01", cand.Milestone, "marker keyed by local date")
	})

	t.Run("workout already logged in the local day", func(t *testing.T) {
		done := reminderNow.Add(-3 * time.Hour) // 14:05 local, same day
		seedChallenge(&done)
		cand, err := seq.Evaluate(ctx, userDoc(nil), reminderNow)
		require.NoError(t, err)
		require.Nil(t, cand)
	})

	t.Run("yesterday's workout does not count", func(t *testing.T) {
		done := reminderNow.Add(-20 * time.Hour) // 21:05 local previous day
		seedChallenge(&done)
		cand, err := seq.Evaluate(ctx, userDoc(nil), reminderNow)
		require.NoError(t, err)
		require.NotNil(t, cand)
	})

	t.Run("outside the preferred window", func(t *testing.T) {
		seedChallenge(nil)
		cand, err := seq.Evaluate(ctx, userDoc(nil), reminderNow.Add(2*time.Hour))
		require.NoError(t, err)
		require.Nil(t, cand)
	})

	t.Run("already reminded today", func(t *testing.T) {
		seedChallenge(nil)
		cand, err := seq.Evaluate(ctx, userDoc(map[string]any{
			"workoutReminderSent": map[string]any{"2024-03-01": ts(reminderNow.Add(-time.Minute))},
		}), reminderNow)
		require.NoError(t, err)
		require.Nil(t, cand)
	})

	t.Run("malformed timezone is a per-record failure", func(t *testing.T) {
		doc := userDoc(nil)
		doc.Data["preferences"].(map[string]any)["timezone"] = "Not/AZone"
		_, err := seq.Evaluate(ctx, doc, reminderNow)
		require.Error(t, err)
	})
}
