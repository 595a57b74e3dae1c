package queue

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID returns a time-prefixed identifier: the unix millisecond timestamp in
// base 36, a dash, and twelve random hex characters. Collisions are not
// detected.
func NewID(now time.Time) string {
	prefix := strconv.FormatInt(now.UnixMilli(), 36)
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "-" + random[:12]
}
