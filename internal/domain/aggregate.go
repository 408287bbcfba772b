package domain

import (
	"sort"
	"time"
)

// Granularity selects the fixed bucket width used for analytics aggregation.
type Granularity string

const (
	GranularityMinute Granularity = "minute"
	GranularityHour   Granularity = "hour"
	GranularityDay    Granularity = "day"
	GranularityWeek   Granularity = "week"
	GranularityMonth  Granularity = "month"
)

// ParseGranularity maps an interval query value to a Granularity.
// Unrecognized values fall back to hour-width buckets.
func ParseGranularity(s string) Granularity {
	switch Granularity(s) {
	case GranularityMinute, GranularityHour, GranularityDay, GranularityWeek, GranularityMonth:
		return Granularity(s)
	default:
		return GranularityHour
	}
}

// widthMillis returns the bucket width in milliseconds. The month width is a
// fixed 30-day approximation, not calendar-aware.
func (g Granularity) widthMillis() int64 {
	switch g {
	case GranularityMinute:
		return 60_000
	case GranularityDay:
		return 86_400_000
	case GranularityWeek:
		return 604_800_000
	case GranularityMonth:
		return 2_592_000_000
	default:
		return 3_600_000
	}
}

// label formats a bucket start for presentation. Labels are metadata only,
// never bucket identity.
func (g Granularity) label(start time.Time) string {
	switch g {
	case GranularityMinute:
		return start.Format("15:04")
	case GranularityHour:
		return start.Format("15:00")
	default:
		return start.Format("Jan 2")
	}
}

// Bucket summarizes every reading falling inside one fixed-width interval.
type Bucket struct {
	Start         time.Time
	Label         string
	MeanTemp      float64
	MeanHumidity  float64
	MeanHeatIndex float64
}

// Aggregate groups readings into fixed-width time buckets and returns one
// summary per non-empty bucket, ascending by bucket start.
//
// MeanHeatIndex is computed from the bucket's mean temperature and mean
// humidity, not by averaging per-reading heat indices. The regression is
// nonlinear so the two are not equivalent; this matches the behavior
// consumers already depend on.
func Aggregate(readings []TelemetryReading, g Granularity) []Bucket {
	if len(readings) == 0 {
		return nil
	}

	width := g.widthMillis()
	type acc struct {
		sumTemp     float64
		sumHumidity float64
		count       int
	}
	sums := make(map[int64]*acc)
	for _, r := range readings {
		key := floorDiv(r.ObservedAt.UnixMilli(), width)
		a := sums[key]
		if a == nil {
			a = &acc{}
			sums[key] = a
		}
		a.sumTemp += r.Temp
		a.sumHumidity += r.Humidity
		a.count++
	}

	keys := make([]int64, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	buckets := make([]Bucket, 0, len(keys))
	for _, k := range keys {
		a := sums[k]
		start := time.UnixMilli(k * width).UTC()
		meanTemp := a.sumTemp / float64(a.count)
		meanHumidity := a.sumHumidity / float64(a.count)
		buckets = append(buckets, Bucket{
			Start:         start,
			Label:         g.label(start),
			MeanTemp:      meanTemp,
			MeanHumidity:  meanHumidity,
			MeanHeatIndex: HeatIndex(meanTemp, meanHumidity),
		})
	}
	return buckets
}

// floorDiv divides rounding toward negative infinity, so pre-1970 timestamps
// still land in the bucket containing them.
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
