package domain

import "time"

// Collection names in the record store.
const (
	CollectionUsers           = "users"
	CollectionUserChallenges  = "user-challenges"
	CollectionTemplates       = "email-templates"
	CollectionScheduleConfigs = "schedule-configs"
)

// Preferences is the user-owned notification preference block.
type Preferences struct {
	EmailOptOut  bool   `json:"emailOptOut,omitempty"`
	ReminderTime string `json:"reminderTime,omitempty"` // HH:MM in the user's timezone
	Timezone     string `json:"timezone,omitempty"`     // IANA name
}

// User is an account record. The orchestrator reads identity and preferences
// and writes only idempotency markers into EmailSequenceState.
type User struct {
	Email                string        `json:"email"`
	DisplayName          string        `json:"displayName,omitempty"`
	Username             string        `json:"username,omitempty"`
	RegistrationComplete bool          `json:"registrationComplete,omitempty"`
	CreatedAt            time.Time     `json:"createdAt,omitempty"`
	UpdatedAt            time.Time     `json:"updatedAt,omitempty"`
	Preferences          Preferences   `json:"preferences,omitempty"`
	EmailSequenceState   SequenceState `json:"emailSequenceState,omitempty"`
}

// ChallengeSummary is the challenge denormalized onto each participation
// record by the product surface.
type ChallengeSummary struct {
	ID        string    `json:"id,omitempty"`
	Title     string    `json:"title,omitempty"`
	StartDate time.Time `json:"startDate,omitempty"`
	EndDate   time.Time `json:"endDate,omitempty"`
}

// CompletedWorkout is one finished activity within a challenge.
type CompletedWorkout struct {
	ID          string    `json:"id,omitempty"`
	Title       string    `json:"title,omitempty"`
	CompletedAt time.Time `json:"completedAt"`
}

// UserChallenge is a user's participation in a time-boxed challenge. The
// product surface mutates progress continuously; this subsystem touches only
// EmailSequenceState.
type UserChallenge struct {
	UserID             string             `json:"userId"`
	Challenge          ChallengeSummary   `json:"challenge,omitempty"`
	CreatedAt          time.Time          `json:"createdAt,omitempty"`
	UpdatedAt          time.Time          `json:"updatedAt,omitempty"`
	CompletedWorkouts  []CompletedWorkout `json:"completedWorkouts,omitempty"`
	CurrentStreak      int                `json:"currentStreak,omitempty"`
	IsCompleted        bool               `json:"isCompleted,omitempty"`
	EmailSequenceState SequenceState      `json:"emailSequenceState,omitempty"`
}

// LastCompletion returns the most recent workout completion time, if any.
func (c UserChallenge) LastCompletion() (time.Time, bool) {
	var last time.Time
	for _, w := range c.CompletedWorkouts {
		if w.CompletedAt.After(last) {
			last = w.CompletedAt
		}
	}
	return last, !last.IsZero()
}

// Template is an admin-edited subject/body pair for one sequence.
type Template struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}
