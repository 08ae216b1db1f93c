// ABOUTME: Upcoming important dates derived from People birth dates
// ABOUTME: Each birthday is projected to its next occurrence on or after a given day

package family

import (
	"context"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DateKindBirthday is the only kind of important date.
const DateKindBirthday = "birthday"

// MaxDateWindow bounds the look-ahead of ImportantDates in days.
const MaxDateWindow = 366

// birthLayouts are tried in order. Layouts without a year leave the age unknown.
var birthLayouts = []struct {
	layout  string
	hasYear bool
}{
	{"2006-01-02", true},
	{"2006-1-2", true},
	{"2006/01/02", true},
	{"01/02/2006", true},
	{"1/2/2006", true},
	{"January 2, 2006", true},
	{"Jan 2, 2006", true},
	{"2 January 2006", true},
	{"01-02", false},
	{"1/2", false},
	{"January 2", false},
	{"Jan 2", false},
}

// ImportantDate is one upcoming anniversary of a person.
type ImportantDate struct {
	PersonID    string `json:"personId"`
	DisplayName string `json:"displayName"`
	Kind        string `json:"kind"`
	Date        string `json:"date"`
	NextDate    string `json:"nextDate"`
	DaysUntil   int    `json:"daysUntil"`
	Age         *int   `json:"age,omitempty"`
}

// parseBirthDate returns the month, day and year (0 when absent) of v.
func parseBirthDate(v string) (time.Month, int, int, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, 0, 0, false
	}
	for _, l := range birthLayouts {
		t, err := time.Parse(l.layout, v)
		if err != nil {
			continue
		}
		year := 0
		if l.hasYear {
			year = t.Year()
		}
		return t.Month(), t.Day(), year, true
	}
	return 0, 0, 0, false
}

// nextOccurrence returns the first month/day on or after today. A Feb 29
// date falls on Feb 28 in common years.
func nextOccurrence(today time.Time, month time.Month, day int) time.Time {
	on := func(year int) time.Time {
		d := day
		if month == time.February && day == 29 && !isLeap(year) {
			d = 28
		}
		return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
	}
	next := on(today.Year())
	if next.Before(today) {
		next = on(today.Year() + 1)
	}
	return next
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// ImportantDates returns the birthdays falling within days of now, soonest
// first. now is read as a calendar day; days is clamped to [0, MaxDateWindow].
func (s *Service) ImportantDates(ctx context.Context, tenantKey string, now time.Time, days int) ([]ImportantDate, error) {
	people, err := s.People(ctx, tenantKey)
	if err != nil {
		return nil, err
	}
	days = min(max(days, 0), MaxDateWindow)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	out := make([]ImportantDate, 0)
	for _, p := range people {
		month, day, year, ok := parseBirthDate(p.BirthDate)
		if !ok {
			continue
		}
		next := nextOccurrence(today, month, day)
		until := int(next.Sub(today).Hours() / 24)
		if until > days {
			continue
		}
		d := ImportantDate{
			PersonID:    p.PersonID,
			DisplayName: p.DisplayName,
			Kind:        DateKindBirthday,
			Date:        strings.TrimSpace(p.BirthDate),
			NextDate:    next.Format("2006-01-02"),
			DaysUntil:   until,
		}
		if year > 0 && year <= next.Year() {
			age := next.Year() - year
			d.Age = &age
		}
		out = append(out, d)
	}

	c := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DaysUntil != out[j].DaysUntil {
			return out[i].DaysUntil < out[j].DaysUntil
		}
		return c.CompareString(out[i].DisplayName, out[j].DisplayName) < 0
	})
	return out, nil
}
