package sequence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/domain"
	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/notify"
	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/scanner"
	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/store"
)

// ---- first-workout --------------------------------------------------------

// FirstWorkout celebrates a participant's very first completed workout,
// provided it happened recently enough to still feel fresh.
type FirstWorkout struct{}

func NewFirstWorkout() FirstWorkout { return FirstWorkout{} }

func (FirstWorkout) ID() string { return "first-workout" }

func (FirstWorkout) Query(now time.Time) store.Query {
	return store.Query{Collection: domain.CollectionUserChallenges, OrderBy: "updatedAt", Desc: true, Limit: 300}.
		Where("updatedAt", store.OpGte, now.Add(-72*time.Hour))
}

func (s FirstWorkout) Evaluate(_ context.Context, doc store.Document, now time.Time) (*scanner.Candidate, error) {
	uc, err := decodeChallenge(doc)
	if err != nil {
		return nil, err
	}
	// Exactly one completed workout: the second workout means the moment has
	// passed and the streak sequence takes over.
	if len(uc.CompletedWorkouts) != 1 {
		return nil, nil
	}
	if !domain.WithinLookback(uc.CompletedWorkouts[0].CompletedAt, now, 72*time.Hour) {
		return nil, nil
	}
	if uc.EmailSequenceState.HasMarker("firstWorkout", "") {
		return nil, nil
	}

	title := uc.Challenge.Title
	return &scanner.Candidate{
		Collection:  doc.Collection,
		DocID:       doc.ID,
		MarkerField: "firstWorkout",
		Request: notify.Request{
			UserID:          uc.UserID,
			SequenceID:      s.ID(),
			FallbackSubject: "First workout: done 💪",
			FallbackHTML: fmt.Sprintf(
				`<p>First workout of <strong>%s</strong> is in the books.</p>`+
					`<p>The hardest one is behind you. Same time tomorrow?</p>`,
				esc(title)),
			Vars: notify.Vars{"challengeTitle": title},
		},
	}, nil
}

// ---- streak-milestone -----------------------------------------------------

// StreakMilestone fires once per milestone {3,7,14,30} as a workout streak
// grows. When several milestones were crossed since the last run, only the
// highest unsent one fires.
type StreakMilestone struct{}

func NewStreakMilestone() StreakMilestone { return StreakMilestone{} }

func (StreakMilestone) ID() string { return "streak-milestone" }

func (StreakMilestone) Query(now time.Time) store.Query {
	return store.Query{Collection: domain.CollectionUserChallenges, OrderBy: "updatedAt", Desc: true, Limit: 500}.
		Where("updatedAt", store.OpGte, now.Add(-48*time.Hour))
}

func (s StreakMilestone) Evaluate(_ context.Context, doc store.Document, now time.Time) (*scanner.Candidate, error) {
	uc, err := decodeChallenge(doc)
	if err != nil {
		return nil, err
	}
	last, ok := uc.LastCompletion()
	if !ok || !domain.WithinLookback(last, now, 48*time.Hour) {
		return nil, nil
	}

	milestone, ok := domain.HighestUnsent(domain.StreakMilestones, uc.CurrentStreak, func(m int) bool {
		return uc.EmailSequenceState.HasMarker("streakMilestones", strconv.Itoa(m))
	})
	if !ok {
		return nil, nil
	}
	ms := strconv.Itoa(milestone)

	title := uc.Challenge.Title
	return &scanner.Candidate{
		Collection:  doc.Collection,
		DocID:       doc.ID,
		MarkerField: "streakMilestones",
		Milestone:   ms,
		Request: notify.Request{
			UserID:          uc.UserID,
			SequenceID:      s.ID(),
			FallbackSubject: fmt.Sprintf("%d-day streak 🔥", milestone),
			FallbackHTML: fmt.Sprintf(
				`<p>That's <strong>%d days straight</strong> in %s.</p>`+
					`<p>Consistency is the whole game, and you're winning it.</p>`,
				milestone, esc(title)),
			Vars: notify.Vars{
				"challengeTitle": title,
				"streak":         ms,
			},
			Tags: []string{ms},
		},
	}, nil
}

// ---- inactivity-winback ---------------------------------------------------

// InactivityWinback reaches out after {3,7,14} days without activity in a
// challenge that is still running.
type InactivityWinback struct{}

func NewInactivityWinback() InactivityWinback { return InactivityWinback{} }

func (InactivityWinback) ID() string { return "inactivity-winback" }

func (InactivityWinback) Query(now time.Time) store.Query {
	return store.Query{Collection: domain.CollectionUserChallenges, OrderBy: "updatedAt", Limit: 900}.
		Where("updatedAt", store.OpLte, now.Add(-3*24*time.Hour)).
		Where("updatedAt", store.OpGte, now.Add(-30*24*time.Hour))
}

func (s InactivityWinback) Evaluate(_ context.Context, doc store.Document, now time.Time) (*scanner.Candidate, error) {
	uc, err := decodeChallenge(doc)
	if err != nil {
		return nil, err
	}
	// Nothing to win back once the challenge is over or finished.
	if uc.IsCompleted || !uc.Challenge.EndDate.After(now) {
		return nil, nil
	}

	days := domain.WholeDaysSince(uc.UpdatedAt, now)
	milestone, ok := domain.HighestUnsent(domain.WinbackMilestones, days, func(m int) bool {
		return uc.EmailSequenceState.HasMarker("winback", strconv.Itoa(m))
	})
	if !ok {
		return nil, nil
	}
	ms := strconv.Itoa(milestone)

	title := uc.Challenge.Title
	return &scanner.Candidate{
		Collection:  doc.Collection,
		DocID:       doc.ID,
		MarkerField: "winback",
		Milestone:   ms,
		Request: notify.Request{
			UserID:          uc.UserID,
			SequenceID:      s.ID(),
			FallbackSubject: fmt.Sprintf("%s misses you", title),
			FallbackHTML: fmt.Sprintf(
				`<p>It's been %d days since your last workout in <strong>%s</strong>.</p>`+
					`<p>One session is all it takes to get back in rhythm.</p>`,
				milestone, esc(title)),
			Vars: notify.Vars{
				"challengeTitle": title,
				"daysInactive":   ms,
			},
			Tags: []string{ms},
		},
	}, nil
}

// ---- workout-reminder -----------------------------------------------------

// WorkoutReminder emails users at their preferred local time on days they
// have not yet completed a workout. The marker is keyed by the user's local
// date, so the sequence fires at most once per local day.
type WorkoutReminder struct {
	store     store.Store
	defaultTZ string
}

func NewWorkoutReminder(d Deps) *WorkoutReminder {
	return &WorkoutReminder{store: d.Store, defaultTZ: d.DefaultTZ}
}

func (*WorkoutReminder) ID() string { return "workout-reminder" }

func (*WorkoutReminder) Query(time.Time) store.Query {
	// json_extract yields NULL for a missing field, so the comparison also
	// drops users with no reminder preference.
	return store.Query{Collection: domain.CollectionUsers, OrderBy: "createdAt", Limit: 400}.
		Where("preferences.reminderTime", store.OpGt, "")
}

func (s *WorkoutReminder) Evaluate(ctx context.Context, doc store.Document, now time.Time) (*scanner.Candidate, error) {
	u, err := decodeUser(doc)
	if err != nil {
		return nil, err
	}
	if u.Preferences.ReminderTime == "" {
		return nil, nil
	}
	tz := u.Preferences.Timezone
	if tz == "" {
		tz = s.defaultTZ
	}

	ok, err := domain.WithinLocalWindow(now, tz, u.Preferences.ReminderTime, domain.ScheduleTolerance)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", doc.ID, err)
	}
	if !ok {
		return nil, nil
	}

	localDate, err := domain.LocalDate(now, tz)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", doc.ID, err)
	}
	if u.EmailSequenceState.HasMarker("workoutReminder", localDate) {
		return nil, nil
	}

	done, active, err := s.completedToday(ctx, doc.ID, now, tz)
	if err != nil {
		return nil, err
	}
	if done || !active {
		return nil, nil
	}

	return &scanner.Candidate{
		Collection:  doc.Collection,
		DocID:       doc.ID,
		MarkerField: "workoutReminder",
		Milestone:   localDate,
		Request: notify.Request{
			UserID:          doc.ID,
			SequenceID:      s.ID(),
			FallbackSubject: "Today's workout is waiting",
			FallbackHTML: `<p>No workout logged yet today.</p>` +
				`<p>Twenty minutes now beats zero minutes later. Open the app and get it done.</p>`,
			Vars: notify.Vars{"localDate": localDate},
			Tags: []string{localDate},
		},
	}, nil
}

// completedToday reports whether the user logged a completion inside their
// local [startOfDay, endOfDay) window, and whether they have any running
// challenge at all.
func (s *WorkoutReminder) completedToday(ctx context.Context, userID string, now time.Time, tz string) (done, active bool, err error) {
	dayStart, dayEnd, err := domain.LocalDayRange(now, tz)
	if err != nil {
		return false, false, fmt.Errorf("user %s: %w", userID, err)
	}

	docs, err := s.store.Query(ctx, store.Query{
		Collection: domain.CollectionUserChallenges,
		OrderBy:    "updatedAt",
		Desc:       true,
		Limit:      20,
	}.Where("userId", store.OpEq, userID))
	if err != nil {
		return false, false, fmt.Errorf("user %s challenges: %w", userID, err)
	}

	for _, d := range docs {
		uc, err := decodeChallenge(d)
		if err != nil {
			return false, false, err
		}
		if uc.IsCompleted || !uc.Challenge.EndDate.After(now) {
			continue
		}
		active = true
		for _, w := range uc.CompletedWorkouts {
			if !w.CompletedAt.Before(dayStart) && w.CompletedAt.Before(dayEnd) {
				return true, true, nil
			}
		}
	}
	return false, active, nil
}
