package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Naive timestamp errors. Their messages are returned to API clients as is.
var (
	ErrTimezoneNotAllowed = errors.New("Datetime must be naive (without timezone).")                             //nolint:staticcheck // client-facing sentence
	ErrInvalidNaiveTime   = errors.New("Datetime has wrong format. Use YYYY-MM-DDThh:mm[:ss[.uuuuuu]] instead.") //nolint:staticcheck // client-facing sentence
)

// naiveTimeLayout is the canonical storage and wire format.
const naiveTimeLayout = "2006-01-02T15:04:05"

var naiveTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
}

// zoneSuffix matches a UTC designator or numeric offset at the end of the time part.
var zoneSuffix = regexp.MustCompile(`(?i)(z|[+-]\d{2}(:?\d{2})?)$`)

// NaiveTime is a wall-clock timestamp with no time zone attached.
// The underlying time.Time always uses time.UTC as a placeholder location.
type NaiveTime struct {
	t time.Time
}

// NewNaiveTime drops the location of t and keeps its wall clock reading.
func NewNaiveTime(t time.Time) NaiveTime {
	return NaiveTime{t: time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)}
}

// ParseNaiveTime parses YYYY-MM-DDThh:mm[:ss[.fraction]]; a space may replace the T.
// Values carrying Z or a numeric offset are rejected with ErrTimezoneNotAllowed.
func ParseNaiveTime(s string) (NaiveTime, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}

	if len(s) > 10 && zoneSuffix.MatchString(s[10:]) {
		return NaiveTime{}, ErrTimezoneNotAllowed
	}

	for _, layout := range naiveTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NaiveTime{t: t}, nil
		}
	}
	return NaiveTime{}, ErrInvalidNaiveTime
}

// Time returns the wall clock reading in time.UTC.
func (n NaiveTime) Time() time.Time {
	return n.t
}

// IsZero reports whether n is the zero value.
func (n NaiveTime) IsZero() bool {
	return n.t.IsZero()
}

// Equal reports whether both values have the same wall clock reading.
func (n NaiveTime) Equal(other NaiveTime) bool {
	return n.t.Equal(other.t)
}

// String formats n without an offset, adding a fraction only when non-zero.
func (n NaiveTime) String() string {
	if n.t.Nanosecond() == 0 {
		return n.t.Format(naiveTimeLayout)
	}
	return n.t.Format(naiveTimeLayout + ".999999999")
}
