// Package group holds the class group aggregate and its attendance settings.
package group

import (
	"strings"
	"time"

	"github.com/classmark/classmark-hub/internal/domain/attendance"
	"github.com/classmark/classmark-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// MinTolerance and MaxTolerance bound ToleranceMinutes, inclusive.
	MinTolerance = 0
	MaxTolerance = 60

	// DefaultTolerance applies to groups that never set one.
	DefaultTolerance ToleranceMinutes = 10
)

// ToleranceMinutes is the grace period after class start, in [0, 60].
type ToleranceMinutes int

// IsValid checks the range.
func (t ToleranceMinutes) IsValid() bool {
	return t >= MinTolerance && t <= MaxTolerance
}

// Int returns the underlying value.
func (t ToleranceMinutes) Int() int {
	return int(t)
}

// NewToleranceMinutes validates a tolerance.
func NewToleranceMinutes(minutes int) (ToleranceMinutes, error) {
	t := ToleranceMinutes(minutes)
	if !t.IsValid() {
		return 0, shared.ErrInvalidToleranceRange
	}
	return t, nil
}

// ResolveStrategy maps a stored or submitted label to a strategy kind.
// An empty label means "not configured" and yields attendance.DefaultStrategy.
// Any other unknown label fails with shared.ErrUnrecognizedStrategyKind.
func ResolveStrategy(label string) (attendance.StrategyKind, error) {
	s := strings.ToLower(strings.TrimSpace(label))
	if s == "" {
		return attendance.DefaultStrategy, nil
	}
	kind := attendance.StrategyKind(s)
	if !kind.IsValid() {
		return "", shared.ErrUnrecognizedStrategyKind
	}
	return kind, nil
}

// Settings is the resolved attendance configuration of a group.
type Settings struct {
	Tolerance ToleranceMinutes
	Strategy  attendance.StrategyKind
}

// DefaultSettings returns the settings of a group that never configured anything.
func DefaultSettings() Settings {
	return Settings{Tolerance: DefaultTolerance, Strategy: attendance.DefaultStrategy}
}

// Classifier builds the classifier for these settings.
func (s Settings) Classifier() attendance.Classifier {
	return attendance.NewClassifier(s.Strategy, s.Tolerance.Int())
}

// NewSettings validates raw tolerance and strategy input.
// A nil tolerance takes the default; an empty label takes the default strategy.
func NewSettings(tolerance *int, strategyLabel string) (Settings, error) {
	s := DefaultSettings()
	if tolerance != nil {
		t, err := NewToleranceMinutes(*tolerance)
		if err != nil {
			return Settings{}, err
		}
		s.Tolerance = t
	}
	kind, err := ResolveStrategy(strategyLabel)
	if err != nil {
		return Settings{}, err
	}
	s.Strategy = kind
	return s, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: GROUP
// ══════════════════════════════════════════════════════════════════════════════

// Group is a class group students enroll in. Tolerance and StrategyLabel hold
// exactly what was stored: nil and "" mean the group never configured them.
type Group struct {
	ID            string
	Name          string
	SubjectCode   shared.SubjectCode
	Tolerance     *int
	StrategyLabel string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewGroupParams holds the input for NewGroup.
type NewGroupParams struct {
	ID          string
	Name        string
	SubjectCode string
	Tolerance   *int
	Strategy    string
}

// NewGroup validates the input and builds a Group.
func NewGroup(params NewGroupParams) (*Group, error) {
	if params.ID == "" {
		return nil, shared.NewDomainError("group", "NewGroup", shared.ErrInvalidID, "group ID is required")
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, shared.ErrInvalidGroupName
	}
	code, err := shared.NewSubjectCode(params.SubjectCode)
	if err != nil {
		return nil, err
	}

	g := &Group{
		ID:          params.ID,
		Name:        name,
		SubjectCode: code,
	}
	if params.Tolerance != nil || params.Strategy != "" {
		settings, err := NewSettings(params.Tolerance, params.Strategy)
		if err != nil {
			return nil, err
		}
		g.apply(settings, params.Tolerance != nil, params.Strategy != "")
	}

	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now
	return g, nil
}

// Settings resolves the stored values, filling in defaults.
// A stored label that is no longer recognized fails with
// shared.ErrUnrecognizedStrategyKind; a stored tolerance outside the range
// fails with shared.ErrInvalidToleranceRange.
func (g *Group) Settings() (Settings, error) {
	s := DefaultSettings()
	if g.Tolerance != nil {
		t, err := NewToleranceMinutes(*g.Tolerance)
		if err != nil {
			return Settings{}, err
		}
		s.Tolerance = t
	}
	kind, err := ResolveStrategy(g.StrategyLabel)
	if err != nil {
		return Settings{}, err
	}
	s.Strategy = kind
	return s, nil
}

// Configure stores validated settings on the group.
func (g *Group) Configure(s Settings) {
	g.apply(s, true, true)
	g.UpdatedAt = time.Now().UTC()
}

func (g *Group) apply(s Settings, tolerance, strategy bool) {
	if tolerance {
		t := s.Tolerance.Int()
		g.Tolerance = &t
	}
	if strategy {
		g.StrategyLabel = s.Strategy.String()
	}
}
