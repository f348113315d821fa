package billing

import (
	"regexp"
	"time"
)

// Period is a calendar month used as the unit of aggregation. Start
// and End are the first and last day of the month, inclusive, in the
// business timezone.
type Period struct {
	Year  int
	Month time.Month
	Label string
	Start time.Time
	End   time.Time
}

// businessLocation is the firm's fixed timezone. Period boundaries are
// always computed here regardless of the server clock's zone.
var businessLocation = loadBusinessLocation()

func loadBusinessLocation() *time.Location {
	loc, err := time.LoadLocation("America/Costa_Rica")
	if err != nil {
		return time.FixedZone("CST", -6*60*60)
	}
	return loc
}

var (
	overrideDateOnly = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	overrideFull     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`)
)

// ParseReferenceOverride interprets a test-only reference date. Only a
// date-only or full ISO-8601 timestamp is honored; anything else is
// rejected so the caller falls back to the real clock.
func ParseReferenceOverride(s string) (time.Time, bool) {
	switch {
	case overrideDateOnly.MatchString(s):
		t, err := time.ParseInLocation("2006-01-02", s, businessLocation)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	case overrideFull.MatchString(s):
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	default:
		return time.Time{}, false
	}
}

// ResolvePeriod maps a reference instant to the billing period clients
// are charged for: always the calendar month immediately preceding the
// reference month. A January reference resolves to December of the
// prior year.
func ResolvePeriod(ref time.Time) Period {
	ref = ref.In(businessLocation)
	year, month := ref.Year(), ref.Month()
	if month == time.January {
		year--
		month = time.December
	} else {
		month--
	}
	return PeriodOf(year, month)
}

// PeriodOf builds the period value for an explicit year and month.
func PeriodOf(year int, month time.Month) Period {
	start := time.Date(year, month, 1, 0, 0, 0, 0, businessLocation)
	end := start.AddDate(0, 1, -1)
	return Period{
		Year:  year,
		Month: month,
		Label: start.Format("2006-01"),
		Start: start,
		End:   end,
	}
}
