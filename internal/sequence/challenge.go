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

// ---- challenge-welcome ----------------------------------------------------

// ChallengeWelcome greets users who joined a challenge within the last day.
type ChallengeWelcome struct{}

func NewChallengeWelcome() ChallengeWelcome { return ChallengeWelcome{} }

func (ChallengeWelcome) ID() string { return "challenge-welcome" }

func (ChallengeWelcome) Query(now time.Time) store.Query {
	return store.Query{Collection: domain.CollectionUserChallenges, OrderBy: "createdAt", Desc: true, Limit: 300}.
		Where("createdAt", store.OpGte, now.Add(-24*time.Hour))
}

func (s ChallengeWelcome) Evaluate(_ context.Context, doc store.Document, now time.Time) (*scanner.Candidate, error) {
	uc, err := decodeChallenge(doc)
	if err != nil {
		return nil, err
	}
	if !domain.WithinLookback(uc.CreatedAt, now, 24*time.Hour) {
		return nil, nil
	}
	if uc.EmailSequenceState.HasMarker("welcome", "") {
		return nil, nil
	}

	title := uc.Challenge.Title
	return &scanner.Candidate{
		Collection:  doc.Collection,
		DocID:       doc.ID,
		MarkerField: "welcome",
		Request: notify.Request{
			UserID:          uc.UserID,
			SequenceID:      s.ID(),
			FallbackSubject: fmt.Sprintf("Welcome to %s!", title),
			FallbackHTML: fmt.Sprintf(
				`<p>You're in! <strong>%s</strong> is officially on your calendar.</p>`+
					`<p>Your first workout is waiting in the app. See you there.</p>`,
				esc(title)),
			Vars: notify.Vars{"challengeTitle": title},
		},
	}, nil
}

// ---- challenge-start ------------------------------------------------------

// ChallengeStart tells participants their challenge kicks off within the next
// day. Delivery is scheduled provider-side for the start instant itself.
type ChallengeStart struct{}

func NewChallengeStart() ChallengeStart { return ChallengeStart{} }

func (ChallengeStart) ID() string { return "challenge-start" }

func (ChallengeStart) Query(now time.Time) store.Query {
	return store.Query{Collection: domain.CollectionUserChallenges, OrderBy: "challenge.startDate", Limit: 300}.
		Where("challenge.startDate", store.OpGt, now).
		Where("challenge.startDate", store.OpLte, now.Add(24*time.Hour))
}

func (s ChallengeStart) Evaluate(_ context.Context, doc store.Document, now time.Time) (*scanner.Candidate, error) {
	uc, err := decodeChallenge(doc)
	if err != nil {
		return nil, err
	}
	start := uc.Challenge.StartDate
	if !start.After(now) || start.Sub(now) > 24*time.Hour {
		return nil, nil
	}
	if uc.EmailSequenceState.HasMarker("start", "") {
		return nil, nil
	}

	title := uc.Challenge.Title
	return &scanner.Candidate{
		Collection:  doc.Collection,
		DocID:       doc.ID,
		MarkerField: "start",
		Request: notify.Request{
			UserID:          uc.UserID,
			SequenceID:      s.ID(),
			FallbackSubject: fmt.Sprintf("%s starts today", title),
			FallbackHTML: fmt.Sprintf(
				`<p><strong>%s</strong> starts today. Day one sets the tone.</p>`+
					`<p>Open the app and log your first workout.</p>`,
				esc(title)),
			Vars:        notify.Vars{"challengeTitle": title},
			ScheduledAt: start,
		},
	}, nil
}

// ---- challenge-halfway ----------------------------------------------------

// ChallengeHalfway fires once when a participant crosses the midpoint of a
// challenge they are still active in.
type ChallengeHalfway struct{}

func NewChallengeHalfway() ChallengeHalfway { return ChallengeHalfway{} }

func (ChallengeHalfway) ID() string { return "challenge-halfway" }

func (ChallengeHalfway) Query(now time.Time) store.Query {
	return store.Query{Collection: domain.CollectionUserChallenges, OrderBy: "challenge.endDate", Limit: 500}.
		Where("challenge.startDate", store.OpLte, now).
		Where("challenge.endDate", store.OpGt, now)
}

func (s ChallengeHalfway) Evaluate(_ context.Context, doc store.Document, now time.Time) (*scanner.Candidate, error) {
	uc, err := decodeChallenge(doc)
	if err != nil {
		return nil, err
	}
	start, end := uc.Challenge.StartDate, uc.Challenge.EndDate
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return nil, nil
	}
	mid := start.Add(end.Sub(start) / 2)
	// Only the invocation window right after the midpoint is eligible, so a
	// record joined late never gets a stale halfway email.
	if !domain.WithinLookback(mid, now, 24*time.Hour) {
		return nil, nil
	}
	if uc.EmailSequenceState.HasMarker("halfway", "") {
		return nil, nil
	}

	title := uc.Challenge.Title
	daysLeft := int(end.Sub(now).Hours() / 24)
	return &scanner.Candidate{
		Collection:  doc.Collection,
		DocID:       doc.ID,
		MarkerField: "halfway",
		Request: notify.Request{
			UserID:          uc.UserID,
			SequenceID:      s.ID(),
			FallbackSubject: fmt.Sprintf("Halfway through %s", title),
			FallbackHTML: fmt.Sprintf(
				`<p>You're halfway through <strong>%s</strong> — %d days to go.</p>`+
					`<p>The back half is where results show. Keep going.</p>`,
				esc(title), daysLeft),
			Vars: notify.Vars{
				"challengeTitle": title,
				"daysLeft":       strconv.Itoa(daysLeft),
			},
		},
	}, nil
}

// ---- challenge-ending-soon ------------------------------------------------

// ChallengeEndingSoon nudges participants as a challenge closes out, once per
// window bucket: 72 hours out and again 24 hours out.
type ChallengeEndingSoon struct{}

func NewChallengeEndingSoon() ChallengeEndingSoon { return ChallengeEndingSoon{} }

func (ChallengeEndingSoon) ID() string { return "challenge-ending-soon" }

func (ChallengeEndingSoon) Query(now time.Time) store.Query {
	// 73h leaves headroom so a record right at the 72h edge is still seen.
	return store.Query{Collection: domain.CollectionUserChallenges, OrderBy: "challenge.endDate", Limit: 400}.
		Where("challenge.endDate", store.OpGt, now).
		Where("challenge.endDate", store.OpLte, now.Add(73*time.Hour))
}

func (s ChallengeEndingSoon) Evaluate(_ context.Context, doc store.Document, now time.Time) (*scanner.Candidate, error) {
	uc, err := decodeChallenge(doc)
	if err != nil {
		return nil, err
	}
	if uc.IsCompleted {
		return nil, nil
	}
	bucket, ok := domain.HourBucket(uc.Challenge.EndDate.Sub(now))
	if !ok {
		return nil, nil
	}
	milestone := strconv.Itoa(bucket)
	if uc.EmailSequenceState.HasMarker("endingSoon", milestone) {
		return nil, nil
	}

	title := uc.Challenge.Title
	return &scanner.Candidate{
		Collection:  doc.Collection,
		DocID:       doc.ID,
		MarkerField: "endingSoon",
		Milestone:   milestone,
		Request: notify.Request{
			UserID:          uc.UserID,
			SequenceID:      s.ID(),
			FallbackSubject: fmt.Sprintf("%s ends in %d hours", title, bucket),
			FallbackHTML: fmt.Sprintf(
				`<p><strong>%s</strong> wraps up in under %d hours.</p>`+
					`<p>There's still time to close out strong.</p>`,
				esc(title), bucket),
			Vars: notify.Vars{
				"challengeTitle": title,
				"hoursLeft":      milestone,
			},
			Tags: []string{milestone},
		},
	}, nil
}

// ---- challenge-complete ---------------------------------------------------

// ChallengeComplete congratulates participants who finished a challenge.
type ChallengeComplete struct{}

func NewChallengeComplete() ChallengeComplete { return ChallengeComplete{} }

func (ChallengeComplete) ID() string { return "challenge-complete" }

func (ChallengeComplete) Query(now time.Time) store.Query {
	return store.Query{Collection: domain.CollectionUserChallenges, OrderBy: "updatedAt", Desc: true, Limit: 500}.
		Where("updatedAt", store.OpGte, now.Add(-48*time.Hour))
}

func (s ChallengeComplete) Evaluate(_ context.Context, doc store.Document, now time.Time) (*scanner.Candidate, error) {
	uc, err := decodeChallenge(doc)
	if err != nil {
		return nil, err
	}
	if !uc.IsCompleted {
		return nil, nil
	}
	if uc.EmailSequenceState.HasMarker("completion", "") {
		return nil, nil
	}

	title := uc.Challenge.Title
	workouts := len(uc.CompletedWorkouts)
	return &scanner.Candidate{
		Collection:  doc.Collection,
		DocID:       doc.ID,
		MarkerField: "completion",
		Request: notify.Request{
			UserID:          uc.UserID,
			SequenceID:      s.ID(),
			FallbackSubject: fmt.Sprintf("You finished %s 🎉", title),
			FallbackHTML: fmt.Sprintf(
				`<p>That's a wrap on <strong>%s</strong> — %d workouts logged.</p>`+
					`<p>Take a moment. You earned it.</p>`,
				esc(title), workouts),
			Vars: notify.Vars{
				"challengeTitle": title,
				"workoutCount":   strconv.Itoa(workouts),
			},
		},
	}, nil
}
