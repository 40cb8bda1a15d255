// Package votes reconstructs per-member vote breakdowns from a printed tally
// and the free-text detail that names dissenting or abstaining members.
package votes

import (
	"fmt"
	"strconv"
	"strings"

	ierrors "github.com/otherjamesbrown/council-records/pkg/errors"
)

// Tally is the numeric form of an "A-N[-B]" vote count.
type Tally struct {
	Ayes     int
	Nays     int
	Abstains int
}

// Present returns the number of members who cast a vote.
func (t Tally) Present() int {
	return t.Ayes + t.Nays + t.Abstains
}

// String formats the tally the way minutes print it. Abstentions are only
// included when non-zero.
func (t Tally) String() string {
	if t.Abstains > 0 {
		return fmt.Sprintf("%d-%d-%d", t.Ayes, t.Nays, t.Abstains)
	}
	return fmt.Sprintf("%d-%d", t.Ayes, t.Nays)
}

// ParseTally parses "9-0", "8-1" or "7-0-2". Missing groups are zero.
func ParseTally(s string) (Tally, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, "-")
	if s == "" || len(parts) > 3 {
		return Tally{}, fmt.Errorf("%w: malformed tally %q", ierrors.ErrValidation, s)
	}

	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Tally{}, fmt.Errorf("%w: malformed tally %q", ierrors.ErrValidation, s)
		}
		nums[i] = n
	}
	return Tally{Ayes: nums[0], Nays: nums[1], Abstains: nums[2]}, nil
}
