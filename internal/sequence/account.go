package sequence

import (
	"context"
	"time"

	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/domain"
	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/notify"
	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/scanner"
	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/store"
)

// ---- mental-checkin -------------------------------------------------------

// MentalCheckin is an admin-scheduled daily prompt to recently active users.
// The schedule config gates the run to once per day; the per-date marker
// keeps overlapping invocations from double-sending to the same user.
type MentalCheckin struct{}

func NewMentalCheckin() MentalCheckin { return MentalCheckin{} }

func (MentalCheckin) ID() string { return "mental-checkin" }

func (MentalCheckin) ScheduleID() string { return "mental-checkin" }

func (MentalCheckin) Query(now time.Time) store.Query {
	return store.Query{Collection: domain.CollectionUsers, OrderBy: "updatedAt", Desc: true, Limit: 900}.
		Where("updatedAt", store.OpGte, now.Add(-30*24*time.Hour))
}

func (s MentalCheckin) Evaluate(_ context.Context, doc store.Document, now time.Time) (*scanner.Candidate, error) {
	u, err := decodeUser(doc)
	if err != nil {
		return nil, err
	}
	date := domain.DateUTC(now)
	if u.EmailSequenceState.HasMarker("checkin", date) {
		return nil, nil
	}

	return &scanner.Candidate{
		Collection:  doc.Collection,
		DocID:       doc.ID,
		MarkerField: "checkin",
		Milestone:   date,
		Request: notify.Request{
			UserID:          doc.ID,
			SequenceID:      s.ID(),
			FallbackSubject: "How are you feeling today?",
			FallbackHTML: `<p>Quick check-in: how's your head, not just your body?</p>` +
				`<p>Take thirty seconds in the app to log how you're doing.</p>`,
			Tags: []string{date},
		},
	}, nil
}

// ---- username-reminder ----------------------------------------------------

// UsernameReminder is an admin-scheduled nudge to users who never picked a
// username. It fires at most once per user, ever.
type UsernameReminder struct{}

func NewUsernameReminder() UsernameReminder { return UsernameReminder{} }

func (UsernameReminder) ID() string { return "username-reminder" }

func (UsernameReminder) ScheduleID() string { return "username-reminder" }

func (UsernameReminder) Query(time.Time) store.Query {
	return store.Query{Collection: domain.CollectionUsers, OrderBy: "createdAt", Limit: 500}
}

func (s UsernameReminder) Evaluate(_ context.Context, doc store.Document, _ time.Time) (*scanner.Candidate, error) {
	u, err := decodeUser(doc)
	if err != nil {
		return nil, err
	}
	if u.Username != "" {
		return nil, nil
	}
	if u.EmailSequenceState.HasMarker("usernameReminder", "") {
		return nil, nil
	}

	return &scanner.Candidate{
		Collection:  doc.Collection,
		DocID:       doc.ID,
		MarkerField: "usernameReminder",
		Request: notify.Request{
			UserID:          doc.ID,
			SequenceID:      s.ID(),
			FallbackSubject: "Claim your username",
			FallbackHTML: `<p>Your profile still has no username.</p>` +
				`<p>Pick one in the app so friends can find you and cheer you on.</p>`,
		},
	}, nil
}

// ---- registration-nudge ---------------------------------------------------

// RegistrationNudge follows up with users who signed up but never finished
// registration, between one and seven days after signup.
type RegistrationNudge struct{}

func NewRegistrationNudge() RegistrationNudge { return RegistrationNudge{} }

func (RegistrationNudge) ID() string { return "registration-nudge" }

func (RegistrationNudge) Query(now time.Time) store.Query {
	return store.Query{Collection: domain.CollectionUsers, OrderBy: "createdAt", Limit: 300}.
		Where("createdAt", store.OpLte, now.Add(-24*time.Hour)).
		Where("createdAt", store.OpGte, now.Add(-7*24*time.Hour))
}

func (s RegistrationNudge) Evaluate(_ context.Context, doc store.Document, _ time.Time) (*scanner.Candidate, error) {
	u, err := decodeUser(doc)
	if err != nil {
		return nil, err
	}
	if u.RegistrationComplete {
		return nil, nil
	}
	if u.EmailSequenceState.HasMarker("registrationNudge", "") {
		return nil, nil
	}

	return &scanner.Candidate{
		Collection:  doc.Collection,
		DocID:       doc.ID,
		MarkerField: "registrationNudge",
		Request: notify.Request{
			UserID:          doc.ID,
			SequenceID:      s.ID(),
			FallbackSubject: "Finish setting up your account",
			FallbackHTML: `<p>You're one step away from your first challenge.</p>` +
				`<p>Finish registration and we'll take it from there.</p>`,
		},
	}, nil
}
