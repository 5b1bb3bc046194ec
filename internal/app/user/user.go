/*
Package user contains core data structures and logic related to user
identity within the chat service.

It defines the User snapshot struct shared by both sub-protocols and the
deterministic pseudo-anonymous display-name derivation used for users who
never picked a name.
*/
package user

import (
	"strconv"
	"strings"
)

// Kind classifies how a participant is logged in.
type Kind int

const (
	// KindAnonymous is a user with no name at all; the display name is
	// derived from the numeric user id.
	KindAnonymous Kind = iota

	// KindTemporary is a user who claimed a name without a password.
	KindTemporary

	// KindRegistered is a fully authenticated account.
	KindRegistered
)

// String returns the lowercase label used in log output.
func (k Kind) String() string {
	switch k {
	case KindTemporary:
		return "temporary"
	case KindRegistered:
		return "registered"
	default:
		return "anonymous"
	}
}

// User represents an identity snapshot, not a live handle. Fields that are
// only known in certain contexts (session id, ip, moderation id) stay zero
// elsewhere.
type User struct {
	// UID is the numeric user id. Randomly generated for the local user,
	// reported by the server for everyone else.
	UID int64

	// DisplayName is the original-case name. Empty for anonymous users,
	// whose name is derived on demand.
	DisplayName string

	// Kind classifies the login type.
	Kind Kind

	// SessionID is the connection-scoped id, present only while online.
	SessionID int

	// LoginTime is seconds since epoch, float precision.
	LoginTime float64

	// IP is visible to moderators only.
	IP string

	// ModerationID is the opaque id needed to ban or delete, when known.
	ModerationID string

	// AnonSeed is the timestamp hint scraped from a message's leading
	// name-color tag, used to derive the anonymous display name.
	AnonSeed string
}

// Name returns the display name, deriving it for anonymous users that
// carry no stored name.
func (u User) Name() string {
	if u.Kind == KindAnonymous && u.DisplayName == "" {
		return AnonName(u.UID, u.AnonSeed)
	}
	return u.DisplayName
}

// Key returns the lowercased name used for equality and lookups.
func (u User) Key() string {
	return strings.ToLower(u.Name())
}

// AnonName derives the deterministic pseudo-anonymous display name for a
// numeric user id. Decimal digits 4 through 8 of the id are each added to
// the digit at the same position in the seed, keeping only the last decimal
// digit of the sum. An empty seed falls back to "3452".
func AnonName(uid int64, seed string) string {
	if seed == "" {
		seed = "3452"
	}

	digits := strconv.FormatInt(uid, 10)
	switch {
	case len(digits) >= 8:
		digits = digits[4:8]
	case len(digits) > 4:
		digits = digits[4:]
	default:
		digits = ""
	}

	var b strings.Builder
	b.WriteString("Anon")
	for i := 0; i < len(digits); i++ {
		d := int(digits[i] - '0')
		s := 0
		if i < len(seed) && seed[i] >= '0' && seed[i] <= '9' {
			s = int(seed[i] - '0')
		}
		b.WriteByte(byte('0' + (d+s)%10))
	}
	return b.String()
}
