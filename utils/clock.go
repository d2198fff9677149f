// utils/clock.go
package utils

import (
	"log"
	"os"
	"time"
)

// Clock supplies "now" and the tenant-local calendar day. Streaks, daily
// rewards and season boundaries all key off Today, so tests can pin time.
type Clock interface {
	Now() time.Time
	Today() string // "2006-01-02" in the tenant's timezone
}

const DateLayout = "2006-01-02"

type tenantClock struct {
	loc *time.Location
}

// NewClock reads TENANT_TIMEZONE (IANA name, e.g. "Europe/London");
// falls back to UTC when unset or invalid.
func NewClock() Clock {
	tz := os.Getenv("TENANT_TIMEZONE")
	if tz == "" {
		return tenantClock{loc: time.UTC}
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("⚠️  Invalid TENANT_TIMEZONE %q, falling back to UTC: %v", tz, err)
		return tenantClock{loc: time.UTC}
	}
	return tenantClock{loc: loc}
}

func (c tenantClock) Now() time.Time { return time.Now().In(c.loc) }

func (c tenantClock) Today() string { return c.Now().Format(DateLayout) }

// FixedClock pins the clock for tests.
type FixedClock struct {
	T time.Time
}

func (f FixedClock) Now() time.Time { return f.T }

func (f FixedClock) Today() string { return f.T.Format(DateLayout) }

// PrevDay returns the calendar day before a "2006-01-02" day.
func PrevDay(day string) string {
	t, err := time.Parse(DateLayout, day)
	if err != nil {
		return day
	}
	return t.AddDate(0, 0, -1).Format(DateLayout)
}
