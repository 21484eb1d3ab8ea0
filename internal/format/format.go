// Package format turns business events into provider-neutral calendar
// events. Formatting never fails: missing data falls back to the defaults
// below so a sync is never blocked on incomplete upstream records.
//
//	title missing        -> "Untitled Event"
//	start time missing   -> 09:00
//	end time missing     -> 17:00, or start + 1h when that is not after start
//	"HH:MM"              -> "HH:MM:00"
//	end date missing     -> start date (unless multi-day)
//	date missing         -> today in the configured zone
//	description missing  -> synthesized from contact, guests and sessions
package format

import (
	"fmt"
	"strings"
	"time"

	"calsync/internal/models"
)

const (
	PlaceholderTitle = "Untitled Event"
	DefaultStartTime = "09:00:00"
	DefaultEndTime   = "17:00:00"
	DefaultDuration  = time.Hour

	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// Formatter builds CalendarEvents in a fixed time zone.
type Formatter struct {
	loc *time.Location
	now func() time.Time
}

// New returns a Formatter for the given zone. A nil zone means UTC.
func New(loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return &Formatter{loc: loc, now: time.Now}
}

// Format converts an event. It is total.
func (f *Formatter) Format(e models.Event) models.CalendarEvent {
	title := strings.TrimSpace(e.Name)
	if title == "" {
		title = PlaceholderTitle
	}

	startDate := f.parseDate(e.Date)
	endDate := startDate
	if e.MultiDay && strings.TrimSpace(e.EndDate) != "" {
		endDate = f.parseDate(e.EndDate)
	}

	start := f.combine(startDate, e.StartTime, DefaultStartTime)
	end := f.combine(endDate, e.EndTime, DefaultEndTime)
	endMissing := NormalizeTime(e.EndTime, "") == ""
	switch {
	case !e.MultiDay && endMissing && !end.After(start):
		end = start.Add(DefaultDuration)
	case end.Before(start):
		if e.MultiDay {
			end = start
		} else {
			// Same-day events ending "before" they start run past midnight.
			end = end.AddDate(0, 0, 1)
		}
	}

	description := e.Description
	if strings.TrimSpace(description) == "" {
		description = FallbackDescription(e)
	}

	return models.CalendarEvent{
		Title:       title,
		Description: description,
		Start:       start,
		End:         end,
		TimeZone:    f.loc.String(),
		Location:    strings.TrimSpace(e.Location),
	}
}

// NormalizeTime returns s as "HH:MM:SS", or def when s is empty or
// unparseable.
func NormalizeTime(s, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if strings.Count(s, ":") == 1 && !strings.ContainsAny(s, "AaPp") {
		s += ":00"
	}
	for _, layout := range []string{timeLayout, "3:04:05 PM", "3:04 PM", "3:04PM"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(timeLayout)
		}
	}
	return def
}

func (f *Formatter) parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if len(s) >= len(dateLayout) {
		if d, err := time.ParseInLocation(dateLayout, s[:len(dateLayout)], f.loc); err == nil {
			return d
		}
	}
	now := f.now().In(f.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, f.loc)
}

func (f *Formatter) combine(date time.Time, clock, def string) time.Time {
	t, _ := time.Parse(timeLayout, NormalizeTime(clock, def))
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), t.Second(), 0, f.loc)
}

// FallbackDescription renders the minimal description used when no
// pre-built one is supplied.
func FallbackDescription(e models.Event) string {
	var b strings.Builder
	line := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}

	line("Contact", e.Contact.Name)
	line("Phone", e.Contact.Phone)
	line("Guests", guestLine(e.Guests))

	for i, s := range e.Sessions {
		b.WriteString("\n")
		name := strings.TrimSpace(s.Name)
		if name == "" {
			name = fmt.Sprintf("Session %d", i+1)
		}
		fmt.Fprintf(&b, "%s\n", name)
		line("Date", s.Date)
		if s.StartTime != "" || s.EndTime != "" {
			line("Time", strings.Trim(strings.TrimSpace(s.StartTime)+" - "+strings.TrimSpace(s.EndTime), " -"))
		}
		line("Guests", guestLine(s.Guests))
	}
	return strings.TrimRight(b.String(), "\n")
}

func guestLine(g models.Guests) string {
	switch {
	case g.Total() == 0:
		return ""
	case g.Children == 0:
		return fmt.Sprintf("%d", g.Adults)
	default:
		return fmt.Sprintf("%d (%d adults, %d children)", g.Total(), g.Adults, g.Children)
	}
}
