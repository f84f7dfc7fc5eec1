package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goose-osm/goose/internal/domain"
)

// 2024-01-01 is a Monday.
func at(day int, hour, minute int) time.Time {
	return time.Date(2024, time.January, day, hour, minute, 0, 0, time.UTC)
}

func TestParse_WeekdayRange(t *testing.T) {
	s, err := Parse("Mo-Fr 08:00-19:00")
	require.NoError(t, err)

	assert.True(t, s.IsOpenAt(at(1, 8, 0)))
	assert.True(t, s.IsOpenAt(at(5, 18, 59)))
	assert.False(t, s.IsOpenAt(at(1, 19, 0)))
	assert.False(t, s.IsOpenAt(at(1, 7, 59)))
	assert.False(t, s.IsOpenAt(at(6, 12, 0)), "saturday")
	assert.False(t, s.IsOpenAt(at(7, 12, 0)), "sunday")
}

func TestParse_MultipleRules(t *testing.T) {
	s, err := Parse("Mo-Fr 08:00-12:00,14:00-18:00; Sa 09:00-12:00; Su off")
	require.NoError(t, err)

	assert.True(t, s.IsOpenAt(at(2, 10, 0)))
	assert.False(t, s.IsOpenAt(at(2, 13, 0)))
	assert.True(t, s.IsOpenAt(at(2, 15, 30)))
	assert.True(t, s.IsOpenAt(at(6, 11, 0)))
	assert.False(t, s.IsOpenAt(at(7, 11, 0)))

	assert.Equal(t, []string{
		"Monday: 08:00 - 12:00, 14:00 - 18:00",
		"Tuesday: 08:00 - 12:00, 14:00 - 18:00",
		"Wednesday: 08:00 - 12:00, 14:00 - 18:00",
		"Thursday: 08:00 - 12:00, 14:00 - 18:00",
		"Friday: 08:00 - 12:00, 14:00 - 18:00",
		"Saturday: 09:00 - 12:00",
		"Sunday: closed",
	}, s.WeekSummary())
}

func TestParse_CommaSeparatedRules(t *testing.T) {
	s, err := Parse("Mo-Fr 08:00-12:00, Sa 09:00-11:00")
	require.NoError(t, err)

	assert.True(t, s.IsOpenAt(at(6, 10, 0)))
	assert.False(t, s.IsOpenAt(at(6, 11, 30)))
	assert.True(t, s.IsOpenAt(at(3, 9, 0)))
}

func TestParse_LaterRuleOverrides(t *testing.T) {
	s, err := Parse("Mo-Sa 09:00-18:00; We 09:00-12:00")
	require.NoError(t, err)

	assert.True(t, s.IsOpenAt(at(2, 15, 0)))
	assert.False(t, s.IsOpenAt(at(3, 15, 0)))
	assert.Equal(t, []Interval{{Start: 9 * 60, End: 12 * 60}}, s.Day(time.Wednesday))
}

func TestParse_AlwaysOpen(t *testing.T) {
	s, err := Parse("24/7")
	require.NoError(t, err)

	for day := 1; day <= 7; day++ {
		assert.True(t, s.IsOpenAt(at(day, 0, 0)))
		assert.True(t, s.IsOpenAt(at(day, 23, 59)))
	}
	assert.Equal(t, "Monday: 00:00 - 24:00", s.WeekSummary()[0])
}

func TestParse_PastMidnight(t *testing.T) {
	s, err := Parse("Fr-Sa 20:00-02:00")
	require.NoError(t, err)

	assert.True(t, s.IsOpenAt(at(5, 23, 0)))
	assert.True(t, s.IsOpenAt(at(6, 1, 30)), "friday night spills into saturday")
	assert.True(t, s.IsOpenAt(at(7, 1, 59)), "saturday night spills into sunday")
	assert.False(t, s.IsOpenAt(at(7, 2, 0)))
	assert.False(t, s.IsOpenAt(at(5, 1, 0)), "thursday was closed")
	assert.Equal(t, "Friday: 20:00 - 02:00", s.WeekSummary()[4])
}

func TestParse_WrappingDayRange(t *testing.T) {
	s, err := Parse("Sa-Mo 10:00-16:00")
	require.NoError(t, err)

	assert.True(t, s.IsOpenAt(at(6, 12, 0)))
	assert.True(t, s.IsOpenAt(at(7, 12, 0)))
	assert.True(t, s.IsOpenAt(at(1, 12, 0)))
	assert.False(t, s.IsOpenAt(at(2, 12, 0)))
}

func TestParse_DayListWithSpaces(t *testing.T) {
	s, err := Parse("Mo, We 10:00-12:00")
	require.NoError(t, err)

	assert.True(t, s.IsOpenAt(at(1, 11, 0)))
	assert.False(t, s.IsOpenAt(at(2, 11, 0)))
	assert.True(t, s.IsOpenAt(at(3, 11, 0)))
}

func TestParse_DaysWithoutTimesMeansWholeDay(t *testing.T) {
	s, err := Parse("Sa,Su")
	require.NoError(t, err)

	assert.True(t, s.IsOpenAt(at(6, 3, 0)))
	assert.False(t, s.IsOpenAt(at(1, 3, 0)))
}

func TestParse_HolidaysIgnored(t *testing.T) {
	s, err := Parse("Mo-Fr 09:00-17:00; PH off")
	require.NoError(t, err)
	assert.True(t, s.IsOpenAt(at(1, 10, 0)))

	s, err = Parse("Mo,PH 09:00-17:00")
	require.NoError(t, err)
	assert.True(t, s.IsOpenAt(at(1, 10, 0)))
	assert.False(t, s.IsOpenAt(at(2, 10, 0)))
}

func TestParse_UsesWallClockOfLocation(t *testing.T) {
	s, err := Parse("Mo-Fr 08:00-19:00")
	require.NoError(t, err)

	paris := time.FixedZone("CET", 3600)
	instant := time.Date(2024, time.January, 1, 18, 30, 0, 0, time.UTC)
	assert.False(t, s.IsOpenAt(instant.In(paris)), "19:30 in Paris")
	assert.True(t, s.IsOpenAt(instant))
}

func TestParse_Errors(t *testing.T) {
	for _, raw := range []string{
		"",
		" ; ",
		"Jan-Mar 09:00-12:00",
		"Mo-Fr 8h-12h",
		"Mo-Fr 08:00",
		"Mo-Fr 08:00-12:60",
		"Xx 08:00-12:00",
		"Mo-Xx 08:00-12:00",
		"sunrise-sunset",
		"Mo-Fr 25:00-26:00",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := Parse(raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrScheduleParseFailed)
		})
	}
}

func TestSchedule_String(t *testing.T) {
	s, err := Parse("Mo-Su 09:00-19:00")
	require.NoError(t, err)
	assert.Equal(t, "Mo-Su 09:00-19:00", s.String())
}
