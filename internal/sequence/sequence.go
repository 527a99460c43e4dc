// Package sequence defines the lifecycle notification sequences: for each
// one, the bounded candidate query, the milestone eligibility rules, and the
// compiled-in fallback template.
package sequence

import (
	"fmt"
	"html"

	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/domain"
	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/scanner"
	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/store"
)

// Deps is what the sequences need from the surrounding application.
type Deps struct {
	Store     store.Store
	DefaultTZ string // used when a user carries no timezone preference
}

// All returns every sequence in the order scheduled runs execute them.
func All(d Deps) []scanner.Sequence {
	return []scanner.Sequence{
		NewChallengeWelcome(),
		NewChallengeStart(),
		NewChallengeHalfway(),
		NewChallengeEndingSoon(),
		NewChallengeComplete(),
		NewFirstWorkout(),
		NewStreakMilestone(),
		NewInactivityWinback(),
		NewWorkoutReminder(d),
		NewMentalCheckin(),
		NewUsernameReminder(),
		NewRegistrationNudge(),
	}
}

// esc escapes a value inlined into compiled-in fallback HTML. Stored
// templates get their escaping from token substitution instead.
func esc(s string) string {
	return html.EscapeString(s)
}

// decodeChallenge decodes a participation record. Malformed data is a
// per-record failure, not a fatal one.
func decodeChallenge(doc store.Document) (domain.UserChallenge, error) {
	var uc domain.UserChallenge
	if err := doc.DataTo(&uc); err != nil {
		return uc, fmt.Errorf("decode challenge %s: %w", doc.ID, err)
	}
	if uc.UserID == "" {
		return uc, fmt.Errorf("challenge %s: missing userId", doc.ID)
	}
	return uc, nil
}

func decodeUser(doc store.Document) (domain.User, error) {
	var u domain.User
	if err := doc.DataTo(&u); err != nil {
		return u, fmt.Errorf("decode user %s: %w", doc.ID, err)
	}
	return u, nil
}
