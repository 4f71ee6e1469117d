// Package attendance classifies attendance marks as on time, late or absent
// and defines the stored record of that decision.
//
// Classification is a pure function of the strategy kind, the mark time,
// the class start time and the group tolerance:
//
//	c := attendance.NewClassifier(attendance.StrategyLateWindow, 10)
//	c.Classify(schedule.MustParseTimeOfDay("08:25"), schedule.MustParseTimeOfDay("08:00")) // late
//
// Strategies are a closed set; adding one means adding a constant and a
// branch in Classify.
package attendance
