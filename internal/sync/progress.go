package sync

import (
	"fmt"
	"sort"
	"time"
)

// DayState is the backfill status of one calendar day.
type DayState string

const (
	DayPending DayState = "pending"
	DaySyncing DayState = "syncing"
	DayDone    DayState = "done"
	DayError   DayState = "error"
)

// DayStatus is one day-cell of the backfill grid.
type DayStatus struct {
	State  DayState `json:"state"`
	Reason string   `json:"reason,omitempty"` // set only for DayError
}

// MonthProgress holds the day-cells of one calendar month.
type MonthProgress struct {
	Year  int                `json:"year"`
	Month time.Month         `json:"month"`
	Days  map[int]*DayStatus `json:"days"`
}

// Progress is the resumable backfill checkpoint: one status flag per
// calendar day of the available history. It is persisted wholesale after
// every mutation, so the stored copy is always a valid (if stale) snapshot.
// Year/month rollups are computed on demand and never stored — the day
// cells are the only source of truth.
type Progress struct {
	Months []*MonthProgress `json:"months"`
}

// NewProgress builds a grid covering every day from `from` through `to`
// (inclusive, in loc), all cells pending.
func NewProgress(from, to time.Time, loc *time.Location) *Progress {
	if loc == nil {
		loc = time.Local
	}
	p := &Progress{}

	day := time.Date(from.In(loc).Year(), from.In(loc).Month(), from.In(loc).Day(), 0, 0, 0, 0, loc)
	last := time.Date(to.In(loc).Year(), to.In(loc).Month(), to.In(loc).Day(), 0, 0, 0, 0, loc)
	for !day.After(last) {
		m := p.month(day.Year(), day.Month())
		if m == nil {
			m = &MonthProgress{Year: day.Year(), Month: day.Month(), Days: make(map[int]*DayStatus)}
			p.Months = append(p.Months, m)
		}
		m.Days[day.Day()] = &DayStatus{State: DayPending}
		day = day.AddDate(0, 0, 1)
	}
	return p
}

// month returns the MonthProgress for (year, month), or nil.
func (p *Progress) month(year int, month time.Month) *MonthProgress {
	for _, m := range p.Months {
		if m.Year == year && m.Month == month {
			return m
		}
	}
	return nil
}

// Years returns the covered years, ascending.
func (p *Progress) Years() []int {
	seen := make(map[int]bool)
	var years []int
	for _, m := range p.Months {
		if !seen[m.Year] {
			seen[m.Year] = true
			years = append(years, m.Year)
		}
	}
	sort.Ints(years)
	return years
}

// Day returns the status of one day-cell. The second return is false when
// the day is outside the grid.
func (p *Progress) Day(year int, month time.Month, day int) (DayStatus, bool) {
	m := p.month(year, month)
	if m == nil {
		return DayStatus{}, false
	}
	st, ok := m.Days[day]
	if !ok {
		return DayStatus{}, false
	}
	return *st, true
}

// SetDay applies a day-cell transition, enforcing the permitted machine:
// pending→syncing, syncing→(done|error), error→pending (retry), and
// syncing→syncing (re-run of a day interrupted mid-flight). Anything else
// is rejected.
func (p *Progress) SetDay(year int, month time.Month, day int, next DayStatus) error {
	m := p.month(year, month)
	if m == nil {
		return fmt.Errorf("day %04d-%02d-%02d is outside the backfill range", year, month, day)
	}
	st, ok := m.Days[day]
	if !ok {
		return fmt.Errorf("day %04d-%02d-%02d is outside the backfill range", year, month, day)
	}
	if !transitionAllowed(st.State, next.State) {
		return fmt.Errorf("day %04d-%02d-%02d: transition %s → %s not permitted",
			year, month, day, st.State, next.State)
	}
	*st = next
	return nil
}

// transitionAllowed encodes the day-cell state machine.
func transitionAllowed(from, to DayState) bool {
	switch from {
	case DayPending:
		return to == DaySyncing
	case DaySyncing:
		return to == DayDone || to == DayError || to == DaySyncing
	case DayError:
		return to == DayPending
	default:
		return false
	}
}

// RetryFailed resets every error cell to pending in bulk, returning how many
// cells changed. Done and pending cells are untouched.
func (p *Progress) RetryFailed() int {
	var n int
	for _, m := range p.Months {
		for _, st := range m.Days {
			if st.State == DayError {
				*st = DayStatus{State: DayPending}
				n++
			}
		}
	}
	return n
}

// NextRunnable returns the earliest day still needing work: pending cells
// and cells left syncing by an interrupted run (sub-day progress is not
// tracked, so a syncing day is simply re-run). The last return is false when
// nothing is runnable.
func (p *Progress) NextRunnable() (int, time.Month, int, bool) {
	months := make([]*MonthProgress, len(p.Months))
	copy(months, p.Months)
	sort.Slice(months, func(i, j int) bool {
		if months[i].Year != months[j].Year {
			return months[i].Year < months[j].Year
		}
		return months[i].Month < months[j].Month
	})

	for _, m := range months {
		days := make([]int, 0, len(m.Days))
		for d := range m.Days {
			days = append(days, d)
		}
		sort.Ints(days)
		for _, d := range days {
			if st := m.Days[d]; st.State == DayPending || st.State == DaySyncing {
				return m.Year, m.Month, d, true
			}
		}
	}
	return 0, 0, 0, false
}

// MonthStatus rolls the month's day-cells up into one state: done only when
// every day is done; error when any day errored; syncing when any day is in
// flight; pending otherwise.
func (p *Progress) MonthStatus(year int, month time.Month) DayState {
	m := p.month(year, month)
	if m == nil {
		return DayPending
	}
	states := make([]DayState, 0, len(m.Days))
	for _, st := range m.Days {
		states = append(states, st.State)
	}
	return rollup(states)
}

// YearStatus rolls a whole year up the same way.
func (p *Progress) YearStatus(year int) DayState {
	var states []DayState
	for _, m := range p.Months {
		if m.Year != year {
			continue
		}
		for _, st := range m.Days {
			states = append(states, st.State)
		}
	}
	return rollup(states)
}

// Counts tallies day-cells by state, for progress display.
func (p *Progress) Counts() map[DayState]int {
	counts := make(map[DayState]int)
	for _, m := range p.Months {
		for _, st := range m.Days {
			counts[st.State]++
		}
	}
	return counts
}

func rollup(states []DayState) DayState {
	if len(states) == 0 {
		return DayPending
	}
	allDone := true
	anySyncing := false
	for _, s := range states {
		switch s {
		case DayError:
			return DayError
		case DaySyncing:
			anySyncing = true
		}
		if s != DayDone {
			allDone = false
		}
	}
	if anySyncing {
		return DaySyncing
	}
	if allDone {
		return DayDone
	}
	return DayPending
}
