package authority

import "github.com/nathoo/qicore/types"

// Calendar constants: a month is 30 days and a year 12 months.
const (
	MinutesPerHour = 60
	HoursPerDay    = 24
	DaysPerMonth   = 30
	MonthsPerYear  = 12
	MinutesPerDay  = MinutesPerHour * HoursPerDay
)

// TimeAdvance reports a clock change.
type TimeAdvance struct {
	From        types.WorldTime `json:"from"`
	To          types.WorldTime `json:"to"`
	Minutes     int             `json:"minutes"`
	DayCrossed  bool            `json:"dayCrossed"`
	DaysCrossed int             `json:"daysCrossed"`
}

// Advance moves t forward by minutes, carrying minute into hour, hour into
// day, day into month and month into year. Negative minutes are treated as
// zero.
func Advance(t types.WorldTime, minutes int) TimeAdvance {
	if minutes < 0 {
		minutes = 0
	}
	out := t
	out.TotalMinutes += int64(minutes)

	total := out.Minute + minutes
	out.Minute = total % MinutesPerHour
	hours := out.Hour + total/MinutesPerHour
	out.Hour = hours % HoursPerDay
	days := hours / HoursPerDay

	// Day and Month are 1-based.
	d := out.Day - 1 + days
	out.Day = d%DaysPerMonth + 1
	m := out.Month - 1 + d/DaysPerMonth
	out.Month = m%MonthsPerYear + 1
	out.Year += m / MonthsPerYear

	return TimeAdvance{
		From:        t,
		To:          out,
		Minutes:     minutes,
		DayCrossed:  days > 0,
		DaysCrossed: days,
	}
}
