package progression

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/example/fasecards/pkg/models"
)

// UnlockMode selects when finishing a phase opens the next one
type UnlockMode string

const (
	// UnlockAlways advances on any completed session, whatever the score
	UnlockAlways UnlockMode = "always"
	// UnlockMinScore advances only when the session score reaches MinScore
	UnlockMinScore UnlockMode = "min_score"
)

// DefaultMinScore is the threshold used by UnlockMinScore when none is configured
const DefaultMinScore = 70

// UnlockPolicy decides whether a session is good enough to unlock the next phase
type UnlockPolicy struct {
	Mode     UnlockMode
	MinScore float64
}

// DefaultPolicy unlocks unconditionally
func DefaultPolicy() UnlockPolicy {
	return UnlockPolicy{Mode: UnlockAlways, MinScore: DefaultMinScore}
}

// ParseUnlockMode converts a configuration string into an UnlockMode
func ParseUnlockMode(s string) (UnlockMode, error) {
	switch UnlockMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", UnlockAlways:
		return UnlockAlways, nil
	case UnlockMinScore:
		return UnlockMinScore, nil
	default:
		return "", errors.Wrapf(models.ErrInvalidInput, "unknown unlock policy %q", s)
	}
}

// Allows reports whether a session with the given score may unlock the next phase
func (p UnlockPolicy) Allows(score float64) bool {
	if p.Mode == UnlockMinScore {
		return score >= p.MinScore
	}
	return true
}

// HighWater returns the best of the stored and new score and whether the new one improved it
func HighWater(best, score float64) (float64, bool) {
	if score > best {
		return score, true
	}
	return best, false
}
