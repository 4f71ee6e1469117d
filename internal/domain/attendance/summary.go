package attendance

import "sort"

// Summary tallies attendance states for one student or one group.
type Summary struct {
	StudentID string `json:"student_id,omitempty"`
	OnTime    int    `json:"on_time"`
	Late      int    `json:"late"`
	Absent    int    `json:"absent"`
}

// Add counts one state.
func (s *Summary) Add(state State) {
	switch state {
	case StateOnTime:
		s.OnTime++
	case StateLate:
		s.Late++
	case StateAbsent:
		s.Absent++
	}
}

// Count returns the tally of one state.
func (s Summary) Count(state State) int {
	switch state {
	case StateOnTime:
		return s.OnTime
	case StateLate:
		return s.Late
	case StateAbsent:
		return s.Absent
	default:
		return 0
	}
}

// Present returns the number of records that count as attended.
func (s Summary) Present() int {
	n := 0
	for _, state := range States {
		if state.IsPresent() {
			n += s.Count(state)
		}
	}
	return n
}

// Total returns the number of counted records.
func (s Summary) Total() int {
	return s.OnTime + s.Late + s.Absent
}

// AttendanceRate returns the share of present records (on time or late), 0..1.
func (s Summary) AttendanceRate() float64 {
	total := s.Total()
	if total == 0 {
		return 0
	}
	return float64(s.Present()) / float64(total)
}

// PunctualityRate returns the share of on-time records, 0..1.
func (s Summary) PunctualityRate() float64 {
	total := s.Total()
	if total == 0 {
		return 0
	}
	return float64(s.OnTime) / float64(total)
}

// Summarize groups records by student. The result is sorted by student ID
// and includes an overall tally.
func Summarize(records []*Record) (perStudent []Summary, overall Summary) {
	byStudent := make(map[string]*Summary)
	for _, r := range records {
		s, ok := byStudent[r.StudentID]
		if !ok {
			s = &Summary{StudentID: r.StudentID}
			byStudent[r.StudentID] = s
		}
		s.Add(r.State)
		overall.Add(r.State)
	}

	perStudent = make([]Summary, 0, len(byStudent))
	for _, s := range byStudent {
		perStudent = append(perStudent, *s)
	}
	sort.Slice(perStudent, func(i, j int) bool {
		return perStudent[i].StudentID < perStudent[j].StudentID
	})
	return perStudent, overall
}
