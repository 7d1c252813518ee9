package scoring

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Activity is the persisted state the context fingerprint is computed from:
// how many questionnaire sessions and observation episodes a subject has
// completed, and when the most recent of each finished.
type Activity struct {
	SessionCount  int
	LastSessionAt *time.Time
	EpisodeCount  int
	LastEpisodeAt *time.Time
}

// Fingerprint digests a subject's completed activity into an opaque string.
// It is a pure function of the stored counts and timestamps: equal inputs
// always produce an equal digest, so callers can compare against a previously
// stored value to decide whether downstream regeneration is needed.
func Fingerprint(a Activity) string {
	canonical := fmt.Sprintf("sessions:%d:%s|episodes:%d:%s",
		a.SessionCount, canonicalTime(a.LastSessionAt),
		a.EpisodeCount, canonicalTime(a.LastEpisodeAt))
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

func canonicalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Stale reports whether the downstream artifact needs regeneration: the stored
// digest is missing, differs from the fresh one, or any activity completed
// after the artifact was last updated.
func Stale(storedDigest string, freshDigest string, artifactUpdatedAt *time.Time, a Activity) bool {
	if storedDigest == "" || storedDigest != freshDigest {
		return true
	}
	if artifactUpdatedAt == nil {
		return true
	}
	if a.LastSessionAt != nil && a.LastSessionAt.After(*artifactUpdatedAt) {
		return true
	}
	if a.LastEpisodeAt != nil && a.LastEpisodeAt.After(*artifactUpdatedAt) {
		return true
	}
	return false
}
