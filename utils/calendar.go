package utils

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"tahseel/models"
)

// ErrNoSendWindow is returned when the configuration admits no valid send
// slot (no working days, inverted hours, or a permanently conflicting
// prayer window).
var ErrNoSendWindow = errors.New("calendar configuration admits no valid send window")

const (
	// DefaultPrayerBufferMinutes brackets the Maghrib-Isha window.
	DefaultPrayerBufferMinutes = 30

	// maxDayAdvances bounds the search loop so a degenerate configuration
	// fails fast instead of spinning.
	maxDayAdvances = 400

	// Ramadan working hours are shortened: a later start and an earlier end.
	ramadanStartOffset = 1
	ramadanEndOffset   = 3
)

// CalendarOracle answers business-calendar queries. It is pure: all state is
// the configuration and the reference tables handed to it at construction.
type CalendarOracle struct {
	Config   models.CalendarConfig
	Prayers  models.PrayerTimeTable
	holidays map[string]models.Holiday
	ordered  []models.Holiday
}

// NewCalendarOracle builds an oracle over the given holiday table. A nil
// prayer table disables the prayer check regardless of configuration.
func NewCalendarOracle(cfg models.CalendarConfig, holidays []models.Holiday, prayers models.PrayerTimeTable) *CalendarOracle {
	byDate := make(map[string]models.Holiday, len(holidays))
	ordered := make([]models.Holiday, len(holidays))
	copy(ordered, holidays)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Date.Before(ordered[j].Date) })
	for _, h := range ordered {
		byDate[h.Date.UTC().Format("2006-01-02")] = h
	}
	return &CalendarOracle{
		Config:   cfg,
		Prayers:  prayers,
		holidays: byDate,
		ordered:  ordered,
	}
}

// HolidayOn returns the holiday record for the date, if any.
func (o *CalendarOracle) HolidayOn(date time.Time) (models.Holiday, bool) {
	h, ok := o.holidays[date.In(o.Config.Location()).Format("2006-01-02")]
	return h, ok
}

// IsBusinessDay reports whether the date is a working weekday with no holiday
// record. Holidays override the working-day set.
func (o *CalendarOracle) IsBusinessDay(date time.Time) bool {
	local := date.In(o.Config.Location())
	if !o.Config.IsWorkingDay(local.Weekday()) {
		return false
	}
	_, holiday := o.HolidayOn(local)
	return !holiday
}

// IsRamadan reports whether the date falls inside the configured Ramadan
// window for its year. Years missing from the table simply report false.
func (o *CalendarOracle) IsRamadan(date time.Time) bool {
	local := date.In(o.Config.Location())
	window, ok := models.RamadanWindows[local.Year()]
	if !ok {
		return false
	}
	d := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	return !d.Before(window.Start) && !d.After(window.End)
}

// RamadanHours returns the business-hours override applied during Ramadan.
func (o *CalendarOracle) RamadanHours() (start, end int) {
	start = o.Config.BusinessHoursStart + ramadanStartOffset
	end = o.Config.BusinessHoursEnd - ramadanEndOffset
	if end < start {
		end = start
	}
	return start, end
}

// effectiveHours returns the business hours for the given day, applying the
// Ramadan override when both flags call for it.
func (o *CalendarOracle) effectiveHours(date time.Time) (start, end int) {
	if o.Config.RespectRamadan && o.IsRamadan(date) {
		return o.RamadanHours()
	}
	return o.Config.BusinessHoursStart, o.Config.BusinessHoursEnd
}

// IsWithinBusinessHours reports whether the instant's local hour falls in
// [start, end), after the Ramadan adjustment.
func (o *CalendarOracle) IsWithinBusinessHours(t time.Time) bool {
	local := t.In(o.Config.Location())
	start, end := o.effectiveHours(local)
	return local.Hour() >= start && local.Hour() < end
}

// IsNearPrayerTime reports whether the instant falls inside the evening
// buffer window [Maghrib - buffer, Isha + buffer]. Only the two night-time
// prayers are checked: business hours already end before the earlier ones,
// so this narrowing is intentional.
func (o *CalendarOracle) IsNearPrayerTime(t time.Time, bufferMinutes int) bool {
	if o.Prayers == nil {
		return false
	}
	local := t.In(o.Config.Location())
	times, ok := o.Prayers[local.Month()]
	if !ok {
		return false
	}
	maghrib, err1 := atClock(local, times.Maghrib)
	isha, err2 := atClock(local, times.Isha)
	if err1 != nil || err2 != nil {
		return false
	}
	buffer := time.Duration(bufferMinutes) * time.Minute
	windowStart := maghrib.Add(-buffer)
	windowEnd := isha.Add(buffer)
	return !local.Before(windowStart) && !local.After(windowEnd)
}

// NextBusinessTime finds the earliest instant at or after from that is a
// business day, within business hours, and clear of the prayer window when
// prayer avoidance is on. The search is a bounded iterative loop; degenerate
// configurations surface ErrNoSendWindow instead of spinning.
func (o *CalendarOracle) NextBusinessTime(from time.Time) (time.Time, error) {
	if len(o.Config.WorkingDays) == 0 {
		return time.Time{}, ErrNoSendWindow
	}

	loc := o.Config.Location()
	t := from.In(loc)
	preferFirstSlot := false

	for i := 0; i < maxDayAdvances; i++ {
		if !o.IsBusinessDay(t) {
			t = startOfNextDay(t)
			continue
		}

		start, end := o.effectiveHours(t)
		if start >= end {
			t = startOfNextDay(t)
			continue
		}

		if t.Hour() < start {
			hour := start
			if preferFirstSlot {
				if h, ok := o.firstPreferredHour(start, end); ok {
					hour = h
				}
				preferFirstSlot = false
			}
			t = atHour(t, hour)
		}
		if t.Hour() >= end {
			t = startOfNextDay(t)
			continue
		}

		if o.Config.AvoidPrayerTimes && o.IsNearPrayerTime(t, DefaultPrayerBufferMinutes) {
			// Jump to the next preferred hour on the same day if one is
			// left inside business hours, otherwise roll to the next
			// business day's first preferred slot.
			if h, ok := o.nextPreferredHour(t.Hour(), end); ok {
				t = atHour(t, h)
				continue
			}
			preferFirstSlot = true
			t = startOfNextDay(t)
			continue
		}

		return t, nil
	}

	return time.Time{}, ErrNoSendWindow
}

// OptimalSendTime is NextBusinessTime snapped to the nearest preferred hour
// that is not earlier than the computed floor and still passes every check.
func (o *CalendarOracle) OptimalSendTime(from time.Time) (time.Time, error) {
	floor, err := o.NextBusinessTime(from)
	if err != nil {
		return time.Time{}, err
	}
	if len(o.Config.PreferredSendHours) == 0 {
		return floor, nil
	}

	t := floor
	for i := 0; i < maxDayAdvances; i++ {
		start, end := o.effectiveHours(t)
		if candidate, ok := o.snapToPreferred(t, start, end); ok {
			return candidate, nil
		}
		// No usable preferred slot remains today; restart from the next day.
		next, err := o.NextBusinessTime(startOfNextDay(t))
		if err != nil {
			return time.Time{}, err
		}
		t = next
	}
	return time.Time{}, ErrNoSendWindow
}

// snapToPreferred picks the earliest preferred hour >= t's hour that stays
// inside business hours and clear of the prayer window.
func (o *CalendarOracle) snapToPreferred(t time.Time, start, end int) (time.Time, bool) {
	hours := append([]int(nil), o.Config.PreferredSendHours...)
	sort.Ints(hours)
	for _, h := range hours {
		if h < t.Hour() || h < start || h >= end {
			continue
		}
		candidate := atHour(t, h)
		if candidate.Hour() == t.Hour() {
			candidate = t // already on a preferred hour, keep the minutes
		}
		if o.Config.AvoidPrayerTimes && o.IsNearPrayerTime(candidate, DefaultPrayerBufferMinutes) {
			continue
		}
		return candidate, true
	}
	return time.Time{}, false
}

// firstPreferredHour returns the earliest configured preferred hour inside
// [start, end).
func (o *CalendarOracle) firstPreferredHour(start, end int) (int, bool) {
	hours := append([]int(nil), o.Config.PreferredSendHours...)
	sort.Ints(hours)
	for _, h := range hours {
		if h >= start && h < end {
			return h, true
		}
	}
	return 0, false
}

// nextPreferredHour returns the earliest preferred hour strictly after the
// given hour and still before end.
func (o *CalendarOracle) nextPreferredHour(after, end int) (int, bool) {
	hours := append([]int(nil), o.Config.PreferredSendHours...)
	sort.Ints(hours)
	for _, h := range hours {
		if h > after && h < end {
			return h, true
		}
	}
	return 0, false
}

// BusinessDaysBetween counts business days in [start, end], inclusive.
func (o *CalendarOracle) BusinessDaysBetween(start, end time.Time) int {
	loc := o.Config.Location()
	from := startOfDay(start.In(loc))
	to := startOfDay(end.In(loc))
	if to.Before(from) {
		return 0
	}
	count := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if o.IsBusinessDay(d) {
			count++
		}
	}
	return count
}

// UpcomingHolidays returns holidays in [now, now+days], ascending by date.
func (o *CalendarOracle) UpcomingHolidays(now time.Time, days int) []models.Holiday {
	loc := o.Config.Location()
	from := startOfDay(now.In(loc))
	to := from.AddDate(0, 0, days)
	var upcoming []models.Holiday
	for _, h := range o.ordered {
		d := h.Date.UTC()
		day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
		if day.Before(from) || day.After(to) {
			continue
		}
		upcoming = append(upcoming, h)
	}
	return upcoming
}

// atClock places an "HH:MM" clock reading on the same calendar day as t.
func atClock(t time.Time, clock string) (time.Time, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(clock, "%d:%d", &hour, &minute); err != nil {
		return time.Time{}, fmt.Errorf("invalid clock value %q: %w", clock, err)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, t.Location()), nil
}

func atHour(t time.Time, hour int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, t.Location())
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func startOfNextDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1)
}
