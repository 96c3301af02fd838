package recorder

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"meridian-hq/meridian/pkg/audit"
)

// entryHash computes the SHA-256 hash of an entry's content together with the
// previous entry's hash. The timestamp is hashed in RFC 3339 nanosecond form
// so the hash is stable across storage round trips.
func entryHash(e *audit.Entry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s|%s|%s|%s|%s|%s",
		e.ID,
		e.UserID,
		e.Username,
		e.Action,
		e.EntityType,
		e.EntityID,
		e.Changes,
		e.Status,
		e.ErrorMessage,
		e.Timestamp.UTC().Format("2006-01-02T15:04:05.999999999Z07:00"),
		e.PrevHash,
	)
	return hex.EncodeToString(h.Sum(nil))
}
