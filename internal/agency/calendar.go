package agency

import (
	"fmt"
	"time"
)

// Month identifies a calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// NewMonth validates year and month.
func NewMonth(year, month int) (Month, error) {
	if month < 1 || month > 12 {
		return Month{}, fmt.Errorf("month %d out of range 1-12", month)
	}
	if year < 1 || year > 9999 {
		return Month{}, fmt.Errorf("year %d out of range", year)
	}
	return Month{Year: year, Month: time.Month(month)}, nil
}

// Start is the first day of the month in UTC.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the last day of the month in UTC.
func (m Month) End() time.Time {
	return time.Date(m.Year, m.Month+1, 0, 0, 0, 0, 0, time.UTC)
}

// Next returns the following month.
func (m Month) Next() Month {
	return MonthOf(m.Start().AddDate(0, 1, 0))
}

// Prev returns the preceding month.
func (m Month) Prev() Month {
	return MonthOf(m.Start().AddDate(0, -1, 0))
}

// Index orders months; useful for range predicates in SQL.
func (m Month) Index() int {
	return m.Year*12 + int(m.Month) - 1
}

// Before reports whether m precedes o.
func (m Month) Before(o Month) bool {
	return m.Index() < o.Index()
}

// Window returns the inclusive day range covered by the month.
func (m Month) Window() Window {
	return Window{From: m.Start(), To: m.End()}
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Quarter returns the 1-based quarter of the month.
func (m Month) Quarter() int {
	return (int(m.Month)-1)/3 + 1
}

// Window is an inclusive range of calendar days.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// MonthWindow spans whole months from the month of from to the month of to.
func MonthWindow(from, to time.Time) Window {
	return Window{From: MonthOf(from).Start(), To: MonthOf(to).End()}
}

// Months lists every calendar month touched by the window.
func (w Window) Months() []Month {
	if w.To.Before(w.From) {
		return nil
	}
	last := MonthOf(w.To)
	var months []Month
	for m := MonthOf(w.From); !last.Before(m); m = m.Next() {
		months = append(months, m)
	}
	return months
}

// Contains reports whether day lies inside the window.
func (w Window) Contains(day time.Time) bool {
	return !day.Before(w.From) && !day.After(w.To)
}

// Intersect returns the overlap of two windows and whether it is non-empty.
func (w Window) Intersect(o Window) (Window, bool) {
	from := w.From
	if o.From.After(from) {
		from = o.From
	}
	to := w.To
	if o.To.Before(to) {
		to = o.To
	}
	if to.Before(from) {
		return Window{}, false
	}
	return Window{From: from, To: to}, true
}

// InclusiveMonths counts calendar months from start's month to end's month,
// both included. It is zero or negative when end precedes start's month.
func InclusiveMonths(start, end time.Time) int {
	return (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month()) + 1
}

// InclusiveDays counts days from start to end, both included.
func InclusiveDays(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(s).Hours()/24) + 1
}

// WorkingDays counts Monday to Friday days in the month.
func (m Month) WorkingDays() int {
	count := 0
	for d := m.Start(); d.Month() == m.Month; d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			count++
		}
	}
	return count
}

// DateOnly strips the clock and location from t.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
