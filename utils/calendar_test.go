package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tahseel/models"
)

// gst pins the tests to a fixed offset so they do not depend on the host's
// tzdata. An empty Timezone makes CalendarConfig fall back to the same zone.
var gst = time.FixedZone("GST", 4*60*60)

func testCalendarConfig() models.CalendarConfig {
	return models.CalendarConfig{
		BusinessHoursStart: 9,
		BusinessHoursEnd:   18,
		WorkingDays:        []int{0, 1, 2, 3, 4}, // Sunday through Thursday
		RespectRamadan:     true,
		AvoidPrayerTimes:   true,
		PreferredSendHours: []int{10, 11, 14, 16},
	}
}

func newTestOracle(holidays []models.Holiday) *CalendarOracle {
	return NewCalendarOracle(testCalendarConfig(), holidays, models.DubaiPrayerTimes)
}

func at(y int, m time.Month, d, hour, min int) time.Time {
	return time.Date(y, m, d, hour, min, 0, 0, gst)
}

func TestIsBusinessDayWeekend(t *testing.T) {
	oracle := newTestOracle(nil)

	// 2026-01-11 is a Sunday, the start of the UAE business week
	assert.True(t, oracle.IsBusinessDay(at(2026, time.January, 11, 12, 0)))
	assert.True(t, oracle.IsBusinessDay(at(2026, time.January, 15, 12, 0))) // Thursday

	assert.False(t, oracle.IsBusinessDay(at(2026, time.January, 16, 12, 0))) // Friday
	assert.False(t, oracle.IsBusinessDay(at(2026, time.January, 17, 12, 0))) // Saturday
}

func TestHolidayOverridesWorkingDay(t *testing.T) {
	holiday := models.Holiday{
		Date: time.Date(2026, time.January, 12, 0, 0, 0, 0, time.UTC), // a Monday
		Name: "Test Holiday",
	}
	oracle := newTestOracle([]models.Holiday{holiday})

	assert.False(t, oracle.IsBusinessDay(at(2026, time.January, 12, 12, 0)))

	got, ok := oracle.HolidayOn(at(2026, time.January, 12, 12, 0))
	require.True(t, ok)
	assert.Equal(t, "Test Holiday", got.Name)

	// The next business time skips over the holiday to Tuesday opening
	next, err := oracle.NextBusinessTime(at(2026, time.January, 12, 10, 0))
	require.NoError(t, err)
	assert.Equal(t, at(2026, time.January, 13, 9, 0), next)
}

func TestIsWithinBusinessHours(t *testing.T) {
	oracle := newTestOracle(nil)

	assert.False(t, oracle.IsWithinBusinessHours(at(2026, time.January, 12, 8, 59)))
	assert.True(t, oracle.IsWithinBusinessHours(at(2026, time.January, 12, 9, 0)))
	assert.True(t, oracle.IsWithinBusinessHours(at(2026, time.January, 12, 17, 59)))
	assert.False(t, oracle.IsWithinBusinessHours(at(2026, time.January, 12, 18, 0)))
}

func TestPrayerWindow(t *testing.T) {
	oracle := newTestOracle(nil)

	// January in Dubai: Maghrib 17:50, Isha 19:10. With a 30 minute buffer the
	// blocked window is [17:20, 19:40].
	assert.True(t, oracle.IsNearPrayerTime(at(2026, time.January, 12, 17, 20), 30))
	assert.True(t, oracle.IsNearPrayerTime(at(2026, time.January, 12, 17, 50), 30))
	assert.True(t, oracle.IsNearPrayerTime(at(2026, time.January, 12, 18, 30), 30))
	assert.True(t, oracle.IsNearPrayerTime(at(2026, time.January, 12, 19, 40), 30))

	assert.False(t, oracle.IsNearPrayerTime(at(2026, time.January, 12, 17, 19), 30))
	assert.False(t, oracle.IsNearPrayerTime(at(2026, time.January, 12, 19, 41), 30))
	assert.False(t, oracle.IsNearPrayerTime(at(2026, time.January, 12, 12, 0), 30))
}

func TestPrayerWindowDisabledWithoutTable(t *testing.T) {
	oracle := NewCalendarOracle(testCalendarConfig(), nil, nil)
	assert.False(t, oracle.IsNearPrayerTime(at(2026, time.January, 12, 18, 0), 30))
}

func TestNextBusinessTimeRollsOverWeekend(t *testing.T) {
	oracle := newTestOracle(nil)

	// Thursday after hours rolls to Sunday opening
	next, err := oracle.NextBusinessTime(at(2026, time.January, 15, 19, 0))
	require.NoError(t, err)
	assert.Equal(t, at(2026, time.January, 18, 9, 0), next)

	// Friday midday rolls to Sunday too
	next, err = oracle.NextBusinessTime(at(2026, time.January, 16, 12, 0))
	require.NoError(t, err)
	assert.Equal(t, at(2026, time.January, 18, 9, 0), next)
}

func TestNextBusinessTimePrayerConflictRollsToPreferredSlot(t *testing.T) {
	oracle := newTestOracle(nil)

	// Monday 17:30 sits inside the evening prayer window and no preferred
	// hour remains before close, so the search lands on Tuesday's first
	// preferred slot.
	next, err := oracle.NextBusinessTime(at(2026, time.January, 12, 17, 30))
	require.NoError(t, err)
	assert.Equal(t, at(2026, time.January, 13, 10, 0), next)
}

func TestOptimalSendTimeSnapsToPreferredHours(t *testing.T) {
	oracle := newTestOracle(nil)

	// Before opening: floor is 09:00, snapped up to the 10:00 slot
	got, err := oracle.OptimalSendTime(at(2026, time.January, 12, 7, 0))
	require.NoError(t, err)
	assert.Equal(t, at(2026, time.January, 12, 10, 0), got)

	// Already inside a preferred hour: minutes are kept
	got, err = oracle.OptimalSendTime(at(2026, time.January, 12, 10, 30))
	require.NoError(t, err)
	assert.Equal(t, at(2026, time.January, 12, 10, 30), got)

	// Midday gap snaps forward to 14:00
	got, err = oracle.OptimalSendTime(at(2026, time.January, 12, 12, 15))
	require.NoError(t, err)
	assert.Equal(t, at(2026, time.January, 12, 14, 0), got)

	// Past the last preferred hour: next business day's first slot
	got, err = oracle.OptimalSendTime(at(2026, time.January, 12, 17, 0))
	require.NoError(t, err)
	assert.Equal(t, at(2026, time.January, 13, 10, 0), got)
}

func TestRamadanShortensHours(t *testing.T) {
	oracle := newTestOracle(nil)

	// 2026-03-01 falls inside the 2026 Ramadan window (Feb 18 - Mar 19)
	ramadanDay := at(2026, time.March, 1, 12, 0) // a Sunday
	require.True(t, oracle.IsRamadan(ramadanDay))

	start, end := oracle.RamadanHours()
	assert.Equal(t, 10, start)
	assert.Equal(t, 15, end)

	assert.False(t, oracle.IsWithinBusinessHours(at(2026, time.March, 1, 9, 30)))
	assert.True(t, oracle.IsWithinBusinessHours(at(2026, time.March, 1, 12, 0)))
	assert.False(t, oracle.IsWithinBusinessHours(at(2026, time.March, 1, 15, 30)))

	// Outside the window the regular hours apply
	assert.False(t, oracle.IsRamadan(at(2026, time.March, 22, 12, 0)))
	assert.True(t, oracle.IsWithinBusinessHours(at(2026, time.March, 22, 9, 30)))
}

func TestRamadanDisabledByConfig(t *testing.T) {
	cfg := testCalendarConfig()
	cfg.RespectRamadan = false
	oracle := NewCalendarOracle(cfg, nil, models.DubaiPrayerTimes)

	assert.True(t, oracle.IsWithinBusinessHours(at(2026, time.March, 1, 9, 30)))
}

func TestNoSendWindowWithoutWorkingDays(t *testing.T) {
	cfg := testCalendarConfig()
	cfg.WorkingDays = nil
	oracle := NewCalendarOracle(cfg, nil, models.DubaiPrayerTimes)

	_, err := oracle.NextBusinessTime(at(2026, time.January, 12, 10, 0))
	assert.ErrorIs(t, err, ErrNoSendWindow)
}

func TestNoSendWindowWithInvertedHours(t *testing.T) {
	cfg := testCalendarConfig()
	cfg.BusinessHoursStart = 18
	cfg.BusinessHoursEnd = 9
	oracle := NewCalendarOracle(cfg, nil, models.DubaiPrayerTimes)

	_, err := oracle.NextBusinessTime(at(2026, time.January, 12, 10, 0))
	assert.ErrorIs(t, err, ErrNoSendWindow)

	_, err = oracle.OptimalSendTime(at(2026, time.January, 12, 10, 0))
	assert.ErrorIs(t, err, ErrNoSendWindow)
}

func TestBusinessDaysBetween(t *testing.T) {
	oracle := newTestOracle(nil)

	// Sunday through Saturday: five working days
	count := oracle.BusinessDaysBetween(
		at(2026, time.January, 11, 0, 0),
		at(2026, time.January, 17, 0, 0),
	)
	assert.Equal(t, 5, count)

	// Inverted range counts nothing
	count = oracle.BusinessDaysBetween(
		at(2026, time.January, 17, 0, 0),
		at(2026, time.January, 11, 0, 0),
	)
	assert.Equal(t, 0, count)
}

func TestUpcomingHolidays(t *testing.T) {
	oracle := newTestOracle(models.UAEHolidays())

	upcoming := oracle.UpcomingHolidays(at(2025, time.November, 20, 9, 0), 30)
	require.Len(t, upcoming, 3)
	assert.Equal(t, "Commemoration Day", upcoming[0].Name)
	assert.Equal(t, "National Day", upcoming[1].Name)
	assert.Equal(t, "National Day Holiday", upcoming[2].Name)
}

func TestNextBusinessTimeAlwaysAdvances(t *testing.T) {
	oracle := newTestOracle(models.UAEHolidays())

	// The returned instant is never before the query and always passes every
	// check, across a spread of query times.
	from := at(2025, time.November, 1, 0, 0)
	for i := 0; i < 60; i++ {
		query := from.Add(time.Duration(i) * 11 * time.Hour)
		got, err := oracle.NextBusinessTime(query)
		require.NoError(t, err)
		assert.False(t, got.Before(query), "result before query time %v", query)
		assert.True(t, oracle.IsBusinessDay(got))
		assert.True(t, oracle.IsWithinBusinessHours(got))
		assert.False(t, oracle.IsNearPrayerTime(got, DefaultPrayerBufferMinutes))
	}
}
