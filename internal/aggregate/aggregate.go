// Package aggregate partitions records into calendar-day buckets using the
// first recognised timestamp field of each record.
package aggregate

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/phrazzld/dayreport/internal/domain"
	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
)

// DayLayout is the format of a day key.
const DayLayout = "2006-01-02"

// DateFields lists the record members consulted for a timestamp, in priority order.
var DateFields = []string{
	"date",
	"createTime",
	"create_time",
	"createdAt",
	"created_at",
	"time",
	"timestamp",
	"dateTime",
	"datetime",
}

// maxEpochMillis bounds representable timestamps to +/- 100,000,000 days.
const maxEpochMillis = 8.64e15

// Buckets maps a day key to the records dated on that day, in input order.
type Buckets map[string][]domain.Record

// Days returns the day keys in ascending order.
func (b Buckets) Days() []string {
	days := make([]string, 0, len(b))
	for day := range b {
		days = append(days, day)
	}
	sort.Strings(days)
	return days
}

// Total counts the records across all buckets.
func (b Buckets) Total() int {
	n := 0
	for _, recs := range b {
		n += len(recs)
	}
	return n
}

// Aggregator assigns records to days in a fixed location.
type Aggregator struct {
	loc *time.Location
	now func() time.Time
}

// New creates an Aggregator. A nil location means time.Local and a nil
// clock means time.Now; the clock dates records without a usable timestamp.
func New(loc *time.Location, now func() time.Time) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Aggregator{loc: loc, now: now}
}

// Group partitions records by day. Every input record lands in exactly one
// bucket, and records keep their relative order within a bucket.
func (a *Aggregator) Group(records []domain.Record) Buckets {
	out := make(Buckets)
	now := a.now()
	for _, r := range records {
		day := a.dayOf(r, now)
		out[day] = append(out[day], r)
	}
	return out
}

// DayKey returns the day a single record belongs to.
func (a *Aggregator) DayKey(r domain.Record) string {
	return a.dayOf(r, a.now())
}

func (a *Aggregator) dayOf(r domain.Record, now time.Time) string {
	t, ok := a.timestamp(r)
	if !ok {
		t = now
	}
	return t.In(a.loc).Format(DayLayout)
}

// timestamp reads the first present date field. Later fields are not
// consulted once one is present, even if it fails to parse.
func (a *Aggregator) timestamp(r domain.Record) (time.Time, bool) {
	for _, name := range DateFields {
		v, ok := r.Field(name)
		if !ok || !truthy(v) {
			continue
		}
		return a.parse(v)
	}
	return time.Time{}, false
}

func (a *Aggregator) parse(v gjson.Result) (time.Time, bool) {
	switch v.Type {
	case gjson.Number:
		return fromMillis(v.Float())
	case gjson.String:
		s := strings.TrimSpace(v.String())
		// Digit-only strings are epoch milliseconds, never compact dates.
		if isInteger(s) {
			if ms, ok := leadingInt(s); ok {
				return fromMillis(float64(ms))
			}
			return time.Time{}, false
		}
		if t, err := cast.ToTimeInDefaultLocationE(s, a.loc); err == nil {
			return t, true
		}
		if t, err := dateparse.ParseIn(s, a.loc); err == nil {
			return t, true
		}
		if ms, ok := leadingInt(s); ok {
			return fromMillis(float64(ms))
		}
	}
	return time.Time{}, false
}

// isInteger reports whether s is an optionally signed run of digits.
func isInteger(s string) bool {
	if s != "" && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func fromMillis(ms float64) (time.Time, bool) {
	if math.IsNaN(ms) || math.Abs(ms) > maxEpochMillis {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)), true
}

// leadingInt parses an optionally signed run of digits at the start of s.
func leadingInt(s string) (int64, bool) {
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// truthy reports whether a member counts as present: null, false, zero and
// the empty string do not.
func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.Number:
		return v.Float() != 0
	case gjson.String:
		return v.String() != ""
	default:
		return true
	}
}
