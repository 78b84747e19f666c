package srs

import (
	"time"

	"github.com/samber/lo"
)

const ForecastDays = 7

// Window is one day of the review forecast. The first window starts now and
// later ones start at local midnight. Every window ends at 23:59:59.999.
type Window struct {
	Weekday time.Weekday
	Start   time.Time
	End     time.Time
}

type ForecastDay struct {
	Window
	Count int
	// RunningTotal is the number of reviews waiting by the end of the day if
	// none are done, seeded with the reviews available now.
	RunningTotal int
}

func Windows(now time.Time, days int) []Window {
	out := make([]Window, 0, days)
	for i := 0; i < days; i++ {
		day := now.AddDate(0, 0, i)
		y, m, d := day.Date()
		start := day
		if i != 0 {
			start = time.Date(y, m, d, 0, 0, 0, 0, day.Location())
		}
		end := time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), day.Location())
		out = append(out, Window{Weekday: start.Weekday(), Start: start, End: end})
	}
	return out
}

// Forecast buckets upcoming review times into the next ForecastDays days.
// Times at or before now belong to availableNow and are not bucketed.
func Forecast(now time.Time, availableNow int, upcoming []time.Time) []ForecastDay {
	windows := Windows(now, ForecastDays)
	out := make([]ForecastDay, 0, len(windows))
	running := availableNow
	for _, w := range windows {
		count := lo.CountBy(upcoming, func(t time.Time) bool {
			return t.After(now) && !t.Before(w.Start) && !t.After(w.End)
		})
		running += count
		out = append(out, ForecastDay{Window: w, Count: count, RunningTotal: running})
	}
	return out
}
