package checks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAddMonths(t *testing.T) {
	cases := []struct {
		name   string
		start  time.Time
		months int
		want   time.Time
	}{
		{"twelve months", date(2025, time.January, 15), 12, date(2026, time.January, 15)},
		{"year end rollover", date(2025, time.November, 10), 3, date(2026, time.February, 10)},
		{"clamp to february", date(2025, time.January, 31), 1, date(2025, time.February, 28)},
		{"clamp to leap february", date(2023, time.December, 31), 26, date(2026, time.February, 28)},
		{"leap year february", date(2024, time.January, 31), 1, date(2024, time.February, 29)},
		{"clamp to thirty days", date(2025, time.March, 31), 1, date(2025, time.April, 30)},
		{"end of january plus twelve", date(2025, time.January, 31), 12, date(2026, time.January, 31)},
		{"multiple years", date(2025, time.June, 1), 36, date(2028, time.June, 1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, AddMonths(tc.start, tc.months))
		})
	}
}

func TestNextDue(t *testing.T) {
	checkDate := date(2025, time.March, 10)

	due := NextDue(checkDate, 12, true)
	require.NotNil(t, due)
	assert.Equal(t, date(2026, time.March, 10), *due)

	assert.Nil(t, NextDue(checkDate, 12, false), "failed checks produce no due date")
	assert.Nil(t, NextDue(checkDate, 0, true), "no cadence requirement, no due date")
}
