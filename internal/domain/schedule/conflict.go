package schedule

import "fmt"

// ══════════════════════════════════════════════════════════════════════════════
// CONFLICT DETECTION
// ══════════════════════════════════════════════════════════════════════════════

// Conflict names the first colliding pair found between a candidate set and
// an existing set of slots.
type Conflict struct {
	Candidate WeeklySlot
	Existing  WeeklySlot
}

// String renders the pair for user-facing messages.
func (c Conflict) String() string {
	return fmt.Sprintf("%s overlaps %s", c.Candidate, c.Existing)
}

// HasConflict reports whether any candidate slot overlaps any existing slot.
// It stops at the first colliding pair; an empty side never conflicts.
func HasConflict(candidate, existing []WeeklySlot) bool {
	_, found := FindConflict(candidate, existing)
	return found
}

// FindConflict returns the first colliding pair in candidate-major order.
func FindConflict(candidate, existing []WeeklySlot) (Conflict, bool) {
	for _, c := range candidate {
		for _, e := range existing {
			if c.Overlaps(e) {
				return Conflict{Candidate: c, Existing: e}, true
			}
		}
	}
	return Conflict{}, false
}
