package schedule

import (
	"time"

	"github.com/classmark/classmark-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULE ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Entry is one stored weekly class time of a group. Times are kept as
// "HH:MM" text, the way they are stored and submitted.
type Entry struct {
	ID        string
	GroupID   string
	Day       Weekday
	StartTime string
	EndTime   string
	Room      string
	CreatedAt time.Time
}

// NewEntryParams holds the input for NewEntry.
type NewEntryParams struct {
	ID        string
	GroupID   string
	Day       string
	StartTime string
	EndTime   string
	Room      string
}

// NewEntry validates the parameters and builds an Entry.
func NewEntry(params NewEntryParams) (*Entry, error) {
	if params.ID == "" || params.GroupID == "" {
		return nil, shared.NewDomainError("schedule", "NewEntry", shared.ErrInvalidID, "entry and group IDs are required")
	}

	slot, err := ParseWeeklySlot(params.Day, params.StartTime, params.EndTime)
	if err != nil {
		return nil, err
	}

	return &Entry{
		ID:        params.ID,
		GroupID:   params.GroupID,
		Day:       slot.Day,
		StartTime: slot.Start.String(),
		EndTime:   slot.End.String(),
		Room:      params.Room,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Slot parses the stored times into a WeeklySlot.
// A malformed stored time fails with shared.ErrInvalidTimeFormat.
func (e *Entry) Slot() (WeeklySlot, error) {
	start, err := ParseTimeOfDay(e.StartTime)
	if err != nil {
		return WeeklySlot{}, err
	}
	end, err := ParseTimeOfDay(e.EndTime)
	if err != nil {
		return WeeklySlot{}, err
	}
	return NewWeeklySlot(e.Day, start, end)
}

// Start returns the parsed start time.
func (e *Entry) Start() (TimeOfDay, error) {
	return ParseTimeOfDay(e.StartTime)
}

// End returns the parsed end time.
func (e *Entry) End() (TimeOfDay, error) {
	return ParseTimeOfDay(e.EndTime)
}

// SlotsFromEntries parses every entry, failing on the first malformed one.
func SlotsFromEntries(entries []*Entry) ([]WeeklySlot, error) {
	slots := make([]WeeklySlot, 0, len(entries))
	for _, e := range entries {
		s, err := e.Slot()
		if err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, nil
}

// EntryConflict is a Conflict resolved back to the stored entries.
type EntryConflict struct {
	Candidate *Entry
	Existing  *Entry
	Slots     Conflict
}

// String renders the colliding slots.
func (c EntryConflict) String() string {
	return c.Slots.String()
}

// FindEntryConflict runs the detector over stored entries and reports the
// first colliding pair together with the entries that produced it.
func FindEntryConflict(candidate, existing []*Entry) (EntryConflict, bool, error) {
	cs, err := SlotsFromEntries(candidate)
	if err != nil {
		return EntryConflict{}, false, err
	}
	es, err := SlotsFromEntries(existing)
	if err != nil {
		return EntryConflict{}, false, err
	}

	for i, c := range cs {
		for j, e := range es {
			if c.Overlaps(e) {
				return EntryConflict{
					Candidate: candidate[i],
					Existing:  existing[j],
					Slots:     Conflict{Candidate: c, Existing: e},
				}, true, nil
			}
		}
	}
	return EntryConflict{}, false, nil
}
