// Package schedule models recurring weekly class times and detects overlaps
// between them.
//
// The package is pure: no I/O, no clocks, no logging. Everything here is
// safe for concurrent use.
//
// # Time of day
//
// TimeOfDay is minutes since midnight, built only from strict "HH:MM" text:
//
//	t, err := schedule.ParseTimeOfDay("08:25") // 505
//	t.String()                                 // "08:25"
//
// # Conflicts
//
// Two WeeklySlot values conflict when they share a weekday and their closed
// ranges intersect. Touching endpoints count as a conflict:
//
//	a, _ := schedule.ParseWeeklySlot("mon", "08:00", "10:00")
//	b, _ := schedule.ParseWeeklySlot("mon", "10:00", "12:00")
//	schedule.HasConflict([]schedule.WeeklySlot{a}, []schedule.WeeklySlot{b}) // true
package schedule
