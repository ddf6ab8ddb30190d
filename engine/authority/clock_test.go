package authority

import (
	"testing"

	"github.com/nathoo/qicore/types"
)

func TestAdvance(t *testing.T) {
	start := types.WorldTime{Year: 1, Month: 1, Day: 1, Hour: 6, TotalMinutes: 360}
	tests := []struct {
		name    string
		from    types.WorldTime
		minutes int
		want    types.WorldTime
		days    int
	}{
		{"minutes only", start, 45,
			types.WorldTime{Year: 1, Month: 1, Day: 1, Hour: 6, Minute: 45, TotalMinutes: 405}, 0},
		{"hour carry", start, 125,
			types.WorldTime{Year: 1, Month: 1, Day: 1, Hour: 8, Minute: 5, TotalMinutes: 485}, 0},
		{"midnight", start, 18 * 60,
			types.WorldTime{Year: 1, Month: 1, Day: 2, Hour: 0, TotalMinutes: 1440}, 1},
		{"month carry",
			types.WorldTime{Year: 1, Month: 1, Day: 30, Hour: 23, Minute: 59}, 1,
			types.WorldTime{Year: 1, Month: 2, Day: 1, TotalMinutes: 1}, 1},
		{"year carry",
			types.WorldTime{Year: 3, Month: 12, Day: 30, Hour: 12}, 12 * 60,
			types.WorldTime{Year: 4, Month: 1, Day: 1, TotalMinutes: 720}, 1},
		{"many days", start, 45 * MinutesPerDay,
			types.WorldTime{Year: 1, Month: 2, Day: 16, Hour: 6, TotalMinutes: 360 + 45*1440}, 45},
		{"zero", start, 0, start, 0},
		{"negative", start, -30, start, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Advance(tt.from, tt.minutes)
			if got.To != tt.want {
				t.Errorf("To = %+v, want %+v", got.To, tt.want)
			}
			if got.DaysCrossed != tt.days {
				t.Errorf("DaysCrossed = %d, want %d", got.DaysCrossed, tt.days)
			}
			if got.DayCrossed != (tt.days > 0) {
				t.Errorf("DayCrossed = %v", got.DayCrossed)
			}
			if got.From != tt.from {
				t.Errorf("From = %+v, want %+v", got.From, tt.from)
			}
		})
	}
}
