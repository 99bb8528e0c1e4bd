package register

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2026-03")
	require.NoError(t, err)
	assert.Equal(t, 2026, p.Year)
	assert.Equal(t, time.March, p.Month)
	assert.Equal(t, "2026-03", p.String())

	_, err = ParsePeriod("03/2026")
	assert.Error(t, err)
}

func TestPeriodDays(t *testing.T) {
	tests := []struct {
		period string
		days   int
	}{
		{"2026-01", 31},
		{"2026-02", 28},
		{"2024-02", 29}, // leap year
		{"2026-04", 30},
	}
	for _, tc := range tests {
		p, err := ParsePeriod(tc.period)
		require.NoError(t, err)
		assert.Equal(t, tc.days, p.Days(), tc.period)
	}
}

func TestPeriodContains(t *testing.T) {
	p, err := ParsePeriod("2026-03")
	require.NoError(t, err)

	assert.True(t, p.Contains(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, p.Contains(time.Date(2026, time.March, 31, 23, 59, 0, 0, time.UTC)))
	assert.False(t, p.Contains(time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, p.Contains(time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)))
}

func TestPeriodStartEnd(t *testing.T) {
	p := Period{Year: 2026, Month: time.February}
	assert.Equal(t, "2026-02-01", p.Start().Format("2006-01-02"))
	assert.Equal(t, "2026-02-28", p.End().Format("2006-01-02"))
}
