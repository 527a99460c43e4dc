package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/domain"
	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/store"
)

// Recipient is a canonical delivery target.
type Recipient struct {
	Email string
	Name  string
}

// RecipientResolver turns a user id and/or raw address into a Recipient.
type RecipientResolver struct {
	store store.Store
}

func NewRecipientResolver(s store.Store) *RecipientResolver {
	return &RecipientResolver{store: s}
}

// Resolve returns nil (a deliberate skip, not an error) when no contactable
// address can be determined or the user has opted out of email. An error
// means the user lookup itself failed.
func (r *RecipientResolver) Resolve(ctx context.Context, userID, toEmail, firstName string) (*Recipient, error) {
	var user domain.User
	haveUser := false
	if userID != "" {
		doc, err := r.store.Get(ctx, domain.CollectionUsers, userID)
		switch {
		case err == nil:
			if err := doc.DataTo(&user); err != nil {
				return nil, fmt.Errorf("decode user %s: %w", userID, err)
			}
			haveUser = true
		case errors.Is(err, store.ErrNotFound):
			// fall through to the explicit address, if any
		default:
			return nil, fmt.Errorf("fetch user %s: %w", userID, err)
		}
	}

	if haveUser && user.Preferences.EmailOptOut {
		return nil, nil
	}

	email := strings.TrimSpace(toEmail)
	if email == "" {
		email = strings.TrimSpace(user.Email)
	}
	if email == "" {
		return nil, nil
	}

	return &Recipient{Email: email, Name: displayName(firstName, user)}, nil
}

// displayName precedence: explicit first name, first token of the display
// name, username, then a generic greeting.
func displayName(firstName string, user domain.User) string {
	if n := strings.TrimSpace(firstName); n != "" {
		return n
	}
	if fields := strings.Fields(user.DisplayName); len(fields) > 0 {
		return fields[0]
	}
	if user.Username != "" {
		return user.Username
	}
	return "there"
}
