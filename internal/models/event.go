package models

import "time"

// Event is the business-side event record handed to the sync service.
// Dates use the "2006-01-02" layout and times "15:04" or "15:04:05"; any of
// them may be empty.
type Event struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Date        string    `json:"date"`
	EndDate     string    `json:"endDate,omitempty"`
	StartTime   string    `json:"startTime,omitempty"`
	EndTime     string    `json:"endTime,omitempty"`
	MultiDay    bool      `json:"multiDay,omitempty"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"` // pre-built, used verbatim when set
	Contact     Contact   `json:"contact"`
	Guests      Guests    `json:"guests"`
	Sessions    []Session `json:"sessions,omitempty"`
}

// Contact is the primary contact for an event.
type Contact struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Guests holds head counts.
type Guests struct {
	Adults   int `json:"adults,omitempty"`
	Children int `json:"children,omitempty"`
}

// Total returns the combined guest count.
func (g Guests) Total() int {
	return g.Adults + g.Children
}

// Session is one sub-session of an event that aggregates several.
type Session struct {
	Name      string `json:"name,omitempty"`
	Date      string `json:"date,omitempty"`
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
	Guests    Guests `json:"guests"`
}

// CalendarEvent is the provider-neutral event built fresh for every sync
// operation. Start and End always carry an explicit location.
type CalendarEvent struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string // IANA name of Start/End's location
	Location    string
}
