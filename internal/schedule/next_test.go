package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PulseMail/internal/models"
)

func date(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func TestNextRun(t *testing.T) {
	tests := []struct {
		name string
		spec models.Spec
		now  time.Time
		want time.Time
	}{
		{
			name: "daily time passed rolls to tomorrow",
			spec: models.DailySpec{At: models.Clock{Hour: 9}},
			now:  date(2024, 1, 15, 10, 0),
			want: date(2024, 1, 16, 9, 0),
		},
		{
			name: "daily later today",
			spec: models.DailySpec{At: models.Clock{Hour: 9}},
			now:  date(2024, 1, 15, 8, 59),
			want: date(2024, 1, 15, 9, 0),
		},
		{
			name: "daily exactly now is already due",
			spec: models.DailySpec{At: models.Clock{Hour: 9}},
			now:  date(2024, 1, 15, 9, 0),
			want: date(2024, 1, 16, 9, 0),
		},
		{
			name: "daily across year end",
			spec: models.DailySpec{At: models.Clock{Hour: 0, Minute: 30}},
			now:  date(2023, 12, 31, 23, 0),
			want: date(2024, 1, 1, 0, 30),
		},
		{
			// 2024-01-15 is a Monday
			name: "weekly same weekday time passed is a week later",
			spec: models.WeeklySpec{Weekday: 0, At: models.Clock{Hour: 9}},
			now:  date(2024, 1, 15, 10, 0),
			want: date(2024, 1, 22, 9, 0),
		},
		{
			name: "weekly same weekday time still ahead is today",
			spec: models.WeeklySpec{Weekday: 0, At: models.Clock{Hour: 9}},
			now:  date(2024, 1, 15, 8, 0),
			want: date(2024, 1, 15, 9, 0),
		},
		{
			name: "weekly later in the week",
			spec: models.WeeklySpec{Weekday: 4, At: models.Clock{Hour: 17, Minute: 45}},
			now:  date(2024, 1, 15, 10, 0),
			want: date(2024, 1, 19, 17, 45),
		},
		{
			name: "weekly wraps past sunday",
			spec: models.WeeklySpec{Weekday: 1, At: models.Clock{Hour: 8}},
			now:  date(2024, 1, 20, 12, 0),
			want: date(2024, 1, 23, 8, 0),
		},
		{
			name: "weekly sunday",
			spec: models.WeeklySpec{Weekday: 6, At: models.Clock{Hour: 8}},
			now:  date(2024, 1, 15, 12, 0),
			want: date(2024, 1, 21, 8, 0),
		},
		{
			name: "monthly day 31 from leap february",
			spec: models.MonthlySpec{Day: 31},
			now:  date(2024, 2, 15, 0, 0),
			want: date(2024, 3, 31, 0, 0),
		},
		{
			name: "monthly day 31 skips 30-day month",
			spec: models.MonthlySpec{Day: 31, At: models.Clock{Hour: 12}},
			now:  date(2024, 4, 10, 0, 0),
			want: date(2024, 5, 31, 12, 0),
		},
		{
			name: "monthly day 31 after it passed skips april",
			spec: models.MonthlySpec{Day: 31, At: models.Clock{Hour: 12}},
			now:  date(2024, 3, 31, 13, 0),
			want: date(2024, 5, 31, 12, 0),
		},
		{
			name: "monthly later this month",
			spec: models.MonthlySpec{Day: 20, At: models.Clock{Hour: 6}},
			now:  date(2024, 6, 10, 0, 0),
			want: date(2024, 6, 20, 6, 0),
		},
		{
			name: "monthly december wraps to january",
			spec: models.MonthlySpec{Day: 5, At: models.Clock{Hour: 6}},
			now:  date(2024, 12, 10, 0, 0),
			want: date(2025, 1, 5, 6, 0),
		},
		{
			name: "monthly day 29 in non-leap february",
			spec: models.MonthlySpec{Day: 29},
			now:  date(2023, 2, 1, 0, 0),
			want: date(2023, 3, 29, 0, 0),
		},
		{
			name: "interval minutes",
			spec: models.IntervalSpec{Unit: models.UnitMinutes, Value: 15},
			now:  date(2024, 1, 15, 10, 0),
			want: date(2024, 1, 15, 10, 15),
		},
		{
			name: "interval days",
			spec: models.IntervalSpec{Unit: models.UnitDays, Value: 2},
			now:  date(2024, 2, 28, 10, 0),
			want: date(2024, 3, 1, 10, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextRun(tt.spec, tt.now)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestNextRunOnceIsVerbatim(t *testing.T) {
	past := date(2020, 5, 1, 9, 0)
	got, err := NextRun(models.OnceSpec{At: past}, date(2024, 1, 1, 0, 0))
	require.NoError(t, err)
	assert.True(t, past.Equal(got))
}

func TestNextRunStrictlyAfterNow(t *testing.T) {
	specs := recurringSpecs()
	start := time.Date(2023, 12, 25, 0, 0, 0, 0, time.UTC)
	for _, spec := range specs {
		for now := start; now.Before(start.AddDate(0, 3, 0)); now = now.Add(7*time.Hour + 13*time.Minute + 29*time.Second) {
			got, err := NextRun(spec, now)
			require.NoError(t, err)
			require.True(t, got.After(now), "%s at %s gave %s", Describe(spec), now, got)
		}
	}
}

func TestNextRunKeepsLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, loc)

	got, err := NextRun(models.DailySpec{At: models.Clock{Hour: 9}}, now)
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 1, 16, 9, 0, 0, 0, loc).Equal(got), "got %s", got)
	assert.Equal(t, loc, got.Location())
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "daily at 09:00", Describe(models.DailySpec{At: models.Clock{Hour: 9}}))
	assert.Equal(t, "every Sunday at 07:30", Describe(models.WeeklySpec{Weekday: 6, At: models.Clock{Hour: 7, Minute: 30}}))
	assert.Equal(t, "every 2 hours", Describe(models.IntervalSpec{Unit: models.UnitHours, Value: 2}))
}

func recurringSpecs() []models.Spec {
	specs := []models.Spec{
		models.DailySpec{At: models.Clock{Hour: 0, Minute: 0}},
		models.DailySpec{At: models.Clock{Hour: 9, Minute: 30}},
		models.DailySpec{At: models.Clock{Hour: 23, Minute: 59}},
		models.IntervalSpec{Unit: models.UnitMinutes, Value: 5},
		models.IntervalSpec{Unit: models.UnitHours, Value: 3},
		models.IntervalSpec{Unit: models.UnitDays, Value: 1},
	}
	for wd := 0; wd < 7; wd++ {
		specs = append(specs, models.WeeklySpec{Weekday: wd, At: models.Clock{Hour: 14, Minute: 15}})
	}
	for _, day := range []int{1, 15, 28, 29, 30, 31} {
		specs = append(specs, models.MonthlySpec{Day: day, At: models.Clock{Hour: 8}})
	}
	return specs
}
