package domain

import "time"

type TimeOfDay string

const (
	TimeSunrise TimeOfDay = "sunrise"
	TimeDay     TimeOfDay = "day"
	TimeSunset  TimeOfDay = "sunset"
	TimeNight   TimeOfDay = "night"
)

// TimeOfDayFromHour buckets a 0-23 hour: [5,7) sunrise, [7,17) day,
// [17,19) sunset, everything else night.
func TimeOfDayFromHour(hour int) TimeOfDay {
	switch {
	case hour >= 5 && hour < 7:
		return TimeSunrise
	case hour >= 7 && hour < 17:
		return TimeDay
	case hour >= 17 && hour < 19:
		return TimeSunset
	default:
		return TimeNight
	}
}

// TimeOfDayAt uses the local hour of t.
func TimeOfDayAt(t time.Time) TimeOfDay {
	return TimeOfDayFromHour(t.Hour())
}
