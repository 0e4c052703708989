package goSession

import (
	"context"

	"github.com/MrEthical07/goSession/permission"
	"github.com/MrEthical07/goSession/store"
)

// User is the account record. See store.User.
type User = store.User

// Role is the account role. See store.Role.
type Role = store.Role

const (
	RoleUser  = store.RoleUser
	RoleAdmin = store.RoleAdmin
)

// Store is the persistence contract the engine depends on.
type Store = store.Store

// Mailer sends HTML email. Send must not retain body after returning.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Identity is the resolved caller of one request.
type Identity struct {
	// User is nil for anonymous requests.
	User  *User
	Level permission.Level
}

// Authenticated reports whether the identity carries a user.
func (i *Identity) Authenticated() bool {
	return i != nil && i.User != nil
}

// UserID returns the user's id, or "" when anonymous.
func (i *Identity) UserID() string {
	if !i.Authenticated() {
		return ""
	}
	return i.User.ID
}

// LevelOf maps u onto the permission scale; nil is a Stranger.
func LevelOf(u *User) permission.Level {
	if u == nil {
		return permission.Stranger
	}
	return permission.Of(u)
}

func identityFor(u *User) *Identity {
	return &Identity{User: u, Level: LevelOf(u)}
}

// Anonymous returns the identity of a request without valid credentials.
func Anonymous() *Identity {
	return &Identity{Level: permission.Stranger}
}
