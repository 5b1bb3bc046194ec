/*
Package randx provides generators for the random identifiers the wire
protocol needs.

It covers the 16-digit numeric user id sent with login commands, the 5-digit
epoch token that invalidates stale keepalive loops after a reconnect, and a
UUID connection id used to correlate log lines across a reconnect.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const (
	// uidMin is the lowest generated user id (inclusive). The anon display
	// name derivation reads decimal digits 4 through 8, so ids are always
	// 16 digits long.
	uidMin = int64(1_000_000_000_000_000)

	// uidSpan is the size of the user id range [uidMin, uidMin+uidSpan).
	uidSpan = int64(9_000_000_000_000_000)

	// epochMin is the lowest keepalive epoch token (inclusive).
	epochMin = 10_000

	// epochSpan is the size of the epoch token range.
	epochSpan = 90_000
)

// UID generates a random 16-digit numeric user id using crypto/rand.
func UID() (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(uidSpan))
	if err != nil {
		return 0, fmt.Errorf("failed to generate random user id: %w", err)
	}
	return uidMin + n.Int64(), nil
}

// KeepaliveEpoch generates a random 5-digit epoch token. A keepalive loop
// captures the token at start and exits once the session's current token
// no longer matches.
func KeepaliveEpoch() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(epochSpan))
	if err != nil {
		return 0, fmt.Errorf("failed to generate keepalive epoch: %w", err)
	}
	return epochMin + int(n.Int64()), nil
}

// ConnectionID generates a UUID v4 string identifying one (re)connection
// attempt in log output.
func ConnectionID() string {
	return uuid.New().String()
}
