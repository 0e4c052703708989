package permission

import (
	"fmt"
	"strings"
)

// Level is a position on the capability scale. Higher values grant more.
type Level uint8

const (
	// Stranger is an anonymous request.
	Stranger Level = iota
	// Unverified is a signed-in user whose email is not confirmed.
	Unverified
	// User is a signed-in user with a confirmed email.
	User
	// Admin is an administrator, regardless of verification.
	Admin
)

// Subject is anything that can be classified on the scale.
type Subject interface {
	IsAdmin() bool
	IsVerified() bool
}

// Of returns the level of s. A nil Subject is a Stranger.
//
// Callers holding a typed nil pointer must pass an untyped nil instead;
// goSession.LevelOf does this for *User.
func Of(s Subject) Level {
	switch {
	case s == nil:
		return Stranger
	case s.IsAdmin():
		return Admin
	case !s.IsVerified():
		return Unverified
	default:
		return User
	}
}

// Allows reports whether level lies within [min, max].
func Allows(level, min, max Level) bool {
	return level >= min && level <= max
}

// AtLeast reports whether level is min or higher.
func AtLeast(level, min Level) bool {
	return Allows(level, min, Admin)
}

func (l Level) String() string {
	switch l {
	case Stranger:
		return "stranger"
	case Unverified:
		return "unverified"
	case User:
		return "user"
	case Admin:
		return "admin"
	default:
		return fmt.Sprintf("level(%d)", uint8(l))
	}
}

// Parse converts a level name, case-insensitively, back into a Level.
func Parse(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "stranger":
		return Stranger, nil
	case "unverified":
		return Unverified, nil
	case "user":
		return User, nil
	case "admin":
		return Admin, nil
	default:
		return Stranger, fmt.Errorf("unknown permission level %q", name)
	}
}
