// ABOUTME: Elapsed-time buckets for the "last contacted" picker
// ABOUTME: Round-trips stored dates to coarse options and back
package cadence

import (
	"math"
	"strings"
	"time"
)

// Bucket is a coarse "how long ago" option.
type Bucket string

const (
	BucketToday     Bucket = "today"
	BucketYesterday Bucket = "yesterday"
	BucketWeek      Bucket = "week"
	BucketMonth     Bucket = "month"
	Bucket3Months   Bucket = "3months"
	Bucket6Months   Bucket = "6months"
	BucketYear      Bucket = "year"
	BucketCustom    Bucket = "custom"
)

// Buckets lists every option in elapsed order.
var Buckets = []Bucket{
	BucketToday, BucketYesterday, BucketWeek, BucketMonth,
	Bucket3Months, Bucket6Months, BucketYear, BucketCustom,
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
	"01/02/2006",
}

// ParseDate accepts the date shapes stored documents and forms use.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// BucketFromElapsed classifies dateString against the current time.
func BucketFromElapsed(dateString string) Bucket {
	return BucketFromElapsedAt(dateString, time.Now())
}

// BucketFromElapsedAt classifies dateString against now. Unparseable input is
// custom; future dates count as today.
func BucketFromElapsedAt(dateString string, now time.Time) Bucket {
	t, ok := ParseDate(dateString)
	if !ok {
		return BucketCustom
	}
	return BucketForDays(ElapsedDays(t, now))
}

// ElapsedDays is the number of whole days between t and now, rounded down.
func ElapsedDays(t, now time.Time) int {
	return int(math.Floor(now.Sub(t).Hours() / 24))
}

// BucketForDays maps whole elapsed days onto a bucket.
func BucketForDays(days int) Bucket {
	switch {
	case days <= 0:
		return BucketToday
	case days == 1:
		return BucketYesterday
	case days <= 7:
		return BucketWeek
	case days <= 30:
		return BucketMonth
	case days <= 90:
		return Bucket3Months
	case days <= 180:
		return Bucket6Months
	case days <= 365:
		return BucketYear
	}
	return BucketCustom
}

// DateForBucket returns a representative date for b, chosen so that
// BucketFromElapsedAt maps it back to b. Custom has no date.
func DateForBucket(b Bucket, now time.Time) (time.Time, bool) {
	switch b {
	case BucketToday:
		return now, true
	case BucketYesterday:
		return now.AddDate(0, 0, -1), true
	case BucketWeek:
		return now.AddDate(0, 0, -7), true
	case BucketMonth:
		return now.AddDate(0, 0, -30), true
	case Bucket3Months:
		return now.AddDate(0, 0, -90), true
	case Bucket6Months:
		return now.AddDate(0, 0, -180), true
	case BucketYear:
		return now.AddDate(0, 0, -365), true
	}
	return time.Time{}, false
}
