// Package timesource reads wall-clock time in the display zone and applies
// the trick offset to it.
package timesource

import (
	"fmt"
	"strings"
	"time"
	// Embedded zone database so the display zone resolves on minimal images.
	_ "time/tzdata"

	"github.com/zoobzio/clockz"
)

// DefaultZone is the display zone used when none is configured.
const DefaultZone = "Europe/Madrid"

const day = 24 * time.Hour

var weekdays = [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}

var months = [...]string{"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre"}

// Source reads the current time in one fixed zone.
type Source struct {
	clock clockz.Clock
	loc   *time.Location
}

// New creates a source for the named IANA zone.
func New(clock clockz.Clock, zone string) (*Source, error) {
	if zone == "" {
		zone = DefaultZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load zone %q: %w", zone, err)
	}
	return &Source{clock: clock, loc: loc}, nil
}

// Now returns the current instant in the display zone.
func (s *Source) Now() time.Time {
	return s.clock.Now().In(s.loc)
}

// Location returns the display zone.
func (s *Source) Location() *time.Location {
	return s.loc
}

// Reading is the displayed time of day.
type Reading struct {
	Hours   int
	Minutes int
	Seconds int
	// Date is the long Spanish date of the real (unshifted) day.
	Date string
}

// Clock returns "HH:MM".
func (r Reading) Clock() string {
	return fmt.Sprintf("%02d:%02d", r.Hours, r.Minutes)
}

func (r Reading) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", r.Hours, r.Minutes, r.Seconds)
}

// Read returns the time of day shifted by offset, wrapping around midnight.
// Only the time of day is shifted; the date line always shows the real day.
func (s *Source) Read(offset time.Duration) Reading {
	return ReadAt(s.Now(), offset)
}

// ReadAt is Read for an explicit instant, already in the display zone.
func ReadAt(now time.Time, offset time.Duration) Reading {
	h, m, sec := now.Clock()
	tod := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second + time.Duration(now.Nanosecond())

	shifted := (tod + offset) % day
	if shifted < 0 {
		shifted += day
	}
	total := int(shifted / time.Second)

	return Reading{
		Hours:   total / 3600,
		Minutes: total % 3600 / 60,
		Seconds: total % 60,
		Date:    SpanishDate(now),
	}
}

// SpanishDate formats t as e.g. "Lunes, 5 de enero".
func SpanishDate(t time.Time) string {
	wd := weekdays[t.Weekday()]
	return fmt.Sprintf("%s%s, %d de %s", strings.ToUpper(wd[:1]), wd[1:], t.Day(), months[t.Month()-1])
}
