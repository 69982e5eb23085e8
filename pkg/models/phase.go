package models

import (
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

// phasePattern matches the digits following the "Fase" token, e.g. "Fase 2: Verbs"
var phasePattern = regexp.MustCompile(`Fase\s*(\d+)`)

// ParsePhase extracts the phase number encoded in a collection title.
// Only used for collections authored before the explicit phase column existed.
func ParsePhase(title string) (int, error) {
	m := phasePattern.FindStringSubmatch(title)
	if m == nil {
		return 0, errors.Wrapf(ErrInvalidInput, "no phase in title %q", title)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, errors.Wrapf(ErrInvalidInput, "bad phase %q in title %q", m[1], title)
	}
	return n, nil
}

func resolvePhase(explicit int, title string) (int, error) {
	if explicit > 0 {
		return explicit, nil
	}
	return ParsePhase(title)
}
