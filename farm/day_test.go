package farm_test

import (
	"testing"
	"time"

	"github.com/orchardops/farm-engine/farm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDay(t *testing.T) {
	d, err := farm.ParseDay("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, farm.NewDay(2024, time.February, 29), d)
	assert.Equal(t, "2024-02-29", d.String())
	assert.Equal(t, "20240229", d.Compact())

	for _, bad := range []string{"", "2024/11/10", "2023-02-29", "10-11-2024"} {
		_, err := farm.ParseDay(bad)
		assert.Error(t, err, bad)
	}
}

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		from, to string
		want     int
	}{
		{"2024-11-10", "2024-11-10", 0},
		{"2024-11-03", "2024-11-10", 7},
		{"2024-02-28", "2024-03-01", 2},
		{"2024-12-31", "2025-01-01", 1},
		{"2024-11-10", "2024-11-08", -2},
	}
	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			assert.Equal(t, tt.want, farm.DaysBetween(farm.MustParseDay(tt.from), farm.MustParseDay(tt.to)))
		})
	}
}

func TestDayOf_UsesLocation(t *testing.T) {
	shanghai, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)

	// 20:00 UTC is the next morning in Shanghai
	at := time.Date(2024, time.November, 10, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, "2024-11-10", farm.DayOf(at, time.UTC).String())
	assert.Equal(t, "2024-11-11", farm.DayOf(at, shanghai).String())
}

func TestDay_Comparison(t *testing.T) {
	a := farm.MustParseDay("2024-11-01")
	b := a.AddDays(1)

	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.True(t, b.Equal(farm.MustParseDay("2024-11-02")))
	assert.False(t, a.IsZero())
	assert.True(t, farm.Day{}.IsZero())
}
