package attendance

import (
	"github.com/classmark/classmark-hub/internal/domain/schedule"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// State is the classification of one attendance mark.
type State string

const (
	// StateOnTime - the student arrived within the tolerance.
	StateOnTime State = "on_time"
	// StateLate - the student arrived after the tolerance but is still counted present.
	StateLate State = "late"
	// StateAbsent - the student is counted absent.
	StateAbsent State = "absent"
)

// States lists all states in display order.
var States = []State{StateOnTime, StateLate, StateAbsent}

// IsValid checks that the state is known.
func (s State) IsValid() bool {
	switch s {
	case StateOnTime, StateLate, StateAbsent:
		return true
	default:
		return false
	}
}

// IsPresent reports whether the state counts towards attendance.
func (s State) IsPresent() bool {
	return s == StateOnTime || s == StateLate
}

// String returns the stored label.
func (s State) String() string {
	return string(s)
}

// StrategyKind selects the rule table used to classify a mark.
type StrategyKind string

const (
	// StrategyPresent treats anything up to three tolerances as on time.
	StrategyPresent StrategyKind = "standard_present"
	// StrategyLateWindow has an on-time window, a late window, then absent.
	StrategyLateWindow StrategyKind = "standard_late_window"
	// StrategyAbsentOnly has no late state: past the tolerance means absent.
	StrategyAbsentOnly StrategyKind = "standard_absent_only"
)

// DefaultStrategy is used for groups that never configured a strategy.
const DefaultStrategy = StrategyLateWindow

// StrategyKinds lists every supported strategy.
var StrategyKinds = []StrategyKind{StrategyPresent, StrategyLateWindow, StrategyAbsentOnly}

// IsValid checks that the strategy is known.
func (k StrategyKind) IsValid() bool {
	switch k {
	case StrategyPresent, StrategyLateWindow, StrategyAbsentOnly:
		return true
	default:
		return false
	}
}

// String returns the stored label.
func (k StrategyKind) String() string {
	return string(k)
}

// ══════════════════════════════════════════════════════════════════════════════
// CLASSIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// Classify decides the attendance state of a mark.
//
// delta is marked - classStart in minutes; an early mark counts as delta 0.
// With t the tolerance:
//
//	strategy               delta<=t   t<delta<=3t   delta>3t
//	standard_late_window   on_time    late          absent
//	standard_present       on_time    on_time       absent
//	standard_absent_only   on_time    absent        absent
//
// Tolerance is trusted; range checks happen where groups are configured.
// An unknown kind is classified with DefaultStrategy.
func Classify(kind StrategyKind, marked, classStart schedule.TimeOfDay, tolerance int) State {
	delta := LateMinutes(marked, classStart)

	switch {
	case delta <= tolerance:
		return StateOnTime
	case delta <= 3*tolerance:
		switch kind {
		case StrategyPresent:
			return StateOnTime
		case StrategyAbsentOnly:
			return StateAbsent
		default:
			return StateLate
		}
	default:
		return StateAbsent
	}
}

// LateMinutes returns how many minutes after classStart the mark was made,
// never negative.
func LateMinutes(marked, classStart schedule.TimeOfDay) int {
	delta := schedule.Difference(marked, classStart)
	if delta < 0 {
		return 0
	}
	return delta
}

// Classifier binds a strategy and a tolerance so callers resolve group
// configuration once and classify many marks.
type Classifier struct {
	kind      StrategyKind
	tolerance int
}

// NewClassifier builds a Classifier.
func NewClassifier(kind StrategyKind, tolerance int) Classifier {
	return Classifier{kind: kind, tolerance: tolerance}
}

// Kind returns the bound strategy.
func (c Classifier) Kind() StrategyKind {
	return c.kind
}

// Tolerance returns the bound tolerance in minutes.
func (c Classifier) Tolerance() int {
	return c.tolerance
}

// Classify classifies one mark against the class start time.
func (c Classifier) Classify(marked, classStart schedule.TimeOfDay) State {
	return Classify(c.kind, marked, classStart, c.tolerance)
}
