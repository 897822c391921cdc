// Package timebucket derives the Year/Month/Day/Hour buckets used to
// partition the spatiotemporal index.
package timebucket

import (
	"fmt"
	"time"
)

// Granularity is the bucket level.
type Granularity int

const (
	Year Granularity = iota
	Month
	Day
	Hour
)

// Bucket identifies one time partition, deterministically derived from
// a timestamp and a granularity.
type Bucket struct {
	Granularity Granularity
	Year        int
	Month       int
	Day         int
	Hour        int
}

// Key returns a stable string key for map indexing.
func (b Bucket) Key() string {
	switch b.Granularity {
	case Year:
		return fmt.Sprintf("%04d", b.Year)
	case Month:
		return fmt.Sprintf("%04d-%02d", b.Year, b.Month)
	case Day:
		return fmt.Sprintf("%04d-%02d-%02d", b.Year, b.Month, b.Day)
	case Hour:
		return fmt.Sprintf("%04d-%02d-%02dT%02d", b.Year, b.Month, b.Day, b.Hour)
	default:
		return ""
	}
}

// Parent returns the next coarser bucket, or ok=false if already Year.
func (b Bucket) Parent() (Bucket, bool) {
	switch b.Granularity {
	case Hour:
		return Bucket{Granularity: Day, Year: b.Year, Month: b.Month, Day: b.Day}, true
	case Day:
		return Bucket{Granularity: Month, Year: b.Year, Month: b.Month}, true
	case Month:
		return Bucket{Granularity: Year, Year: b.Year}, true
	default:
		return Bucket{}, false
	}
}

// From derives all four bucket levels from t, finest first.
func From(t time.Time) [4]Bucket {
	t = t.UTC()
	return [4]Bucket{
		{Granularity: Hour, Year: t.Year(), Month: int(t.Month()), Day: t.Day(), Hour: t.Hour()},
		{Granularity: Day, Year: t.Year(), Month: int(t.Month()), Day: t.Day()},
		{Granularity: Month, Year: t.Year(), Month: int(t.Month())},
		{Granularity: Year, Year: t.Year()},
	}
}
