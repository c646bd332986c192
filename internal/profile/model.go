package profile

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Profile is the application-owned row of display/gamification data, one per
// authenticated user. It is created lazily on first login and never deleted.
type Profile struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	AvatarURL string    `db:"avatar_url" json:"avatarUrl"`
	Points    int       `db:"points" json:"points"`
	Level     int       `db:"level" json:"level"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Update carries the caller-editable profile fields. Nil means "leave as is".
type Update struct {
	Username  *string
	AvatarURL *string
}

// Store defines persistence for profiles. "Not found" is an expected state
// (first login), so Find reports it through the found flag rather than an
// error.
type Store interface {
	Find(ctx context.Context, id uuid.UUID) (Profile, bool, error)
	Insert(ctx context.Context, p Profile) (Profile, error)
	Update(ctx context.Context, id uuid.UUID, update Update) (Profile, error)
	AddPoints(ctx context.Context, id uuid.UUID, points int) (Profile, error)
}

const defaultLevel = 1

// NewDefault builds the profile row for a user who has none yet. The username
// falls back to the email local part, and the avatar to a deterministic
// placeholder seeded by the email address.
func NewDefault(id uuid.UUID, username, email string) Profile {
	if strings.TrimSpace(username) == "" {
		username = usernameFromEmail(email)
	}

	now := time.Now().UTC()
	return Profile{
		ID:        id,
		Username:  username,
		AvatarURL: placeholderAvatarURL(email),
		Points:    0,
		Level:     defaultLevel,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func usernameFromEmail(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found || local == "" {
		return "user"
	}
	return local
}

func placeholderAvatarURL(email string) string {
	return fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/svg?seed=%s", url.QueryEscape(email))
}
