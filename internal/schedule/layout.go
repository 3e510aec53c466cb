package schedule

import (
	"sort"
	"time"

	"weekcal/internal/model"
)

const (
	// GridDays is the number of weekday rows (Monday..Friday).
	GridDays = 5
	// RowSpan is the height shared by the bars of one hour bucket.
	RowSpan = 0.8

	secondsPerDay = 24 * 60 * 60
)

// UncatalogedColor is the ColorIndex of bars whose source is missing from the catalog.
const UncatalogedColor = -1

// Layout places events on the Monday..Friday grid.
//
// Events are split by weekday, sorted by start, and grouped by the integer
// hour of their start. The k events of one hour bucket share the RowSpan of
// their weekday row in equal slices, in start order. Weekend events are
// dropped. Bars are emitted weekday by weekday, bucket by bucket (first
// start hour first), and the first bar of every source carries the legend
// label.
func Layout(events model.EventSet, catalog model.SourceCatalog) []model.LayoutBar {
	var days [GridDays][]model.Event
	for _, ev := range events.Events() {
		wd := ev.WeekdayIndex()
		if wd >= GridDays {
			continue
		}
		days[wd] = append(days[wd], ev)
	}

	bars := make([]model.LayoutBar, 0, events.Len())
	labelled := make(map[string]bool)

	for wd, dayEvents := range days {
		sort.SliceStable(dayEvents, func(i, j int) bool {
			return dayEvents[i].Start.Before(dayEvents[j].Start)
		})

		for _, bucket := range hourBuckets(dayEvents) {
			k := len(bucket)
			height := RowSpan / float64(k)
			alpha := DensityAlpha(k)

			for i, ev := range bucket {
				colorIndex, ok := catalog.ColorIndex(ev.SourceID)
				if !ok {
					colorIndex = UncatalogedColor
				}
				bars = append(bars, model.LayoutBar{
					WeekdayIndex:      wd,
					RowStart:          float64(wd) - RowSpan/2 + float64(i)*height,
					RowHeight:         height,
					StartHourFraction: float64(ev.Start.Hour()) + float64(ev.Start.Minute())/60,
					DurationHours:     DurationHours(ev),
					SourceID:          ev.SourceID,
					ColorIndex:        colorIndex,
					Alpha:             alpha,
					Title:             ev.Title,
					ShowLabelInLegend: !labelled[ev.SourceID],
					Start:             ev.Start,
					End:               ev.End,
				})
				labelled[ev.SourceID] = true
			}
		}
	}

	return bars
}

// DurationHours is the time-of-day distance from start to end, ignoring
// dates. It wraps around midnight, so 23:00-01:00 is two hours and an event
// ending at its start time-of-day has zero length.
func DurationHours(ev model.Event) float64 {
	d := (secondOfDay(ev.End) - secondOfDay(ev.Start)) % secondsPerDay
	if d < 0 {
		d += secondsPerDay
	}
	return float64(d) / 3600
}

// hourBuckets groups day-sorted events by start hour, buckets ordered by
// first appearance.
func hourBuckets(events []model.Event) [][]model.Event {
	var buckets [][]model.Event
	index := make(map[int]int)
	for _, ev := range events {
		h := ev.Start.Hour()
		i, ok := index[h]
		if !ok {
			i = len(buckets)
			index[h] = i
			buckets = append(buckets, nil)
		}
		buckets[i] = append(buckets[i], ev)
	}
	return buckets
}

func secondOfDay(t time.Time) int {
	h, m, s := t.Clock()
	return h*3600 + m*60 + s
}
