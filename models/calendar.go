package models

import (
	"time"

	"gorm.io/gorm"
)

// Holiday categories and observance granularity.
const (
	HolidayCivil     = "civil"
	HolidayReligious = "religious"
	HolidayCultural  = "cultural"

	ObservanceFull    = "full"
	ObservanceHalf    = "half"
	ObservanceEvening = "evening"
)

// Holiday is one public-holiday calendar day. At most one record per date.
// Movable holidays follow the lunar calendar; their dates are approximate and
// the table needs a yearly update.
type Holiday struct {
	gorm.Model
	Date       time.Time `gorm:"uniqueIndex;not null" json:"date"`
	Name       string    `gorm:"not null" json:"name"`
	NameArabic string    `json:"name_arabic"`
	Category   string    `gorm:"default:'civil'" json:"category"`   // civil, religious, cultural
	Observance string    `gorm:"default:'full'" json:"observance"`  // full, half, evening
	IsMovable  bool      `gorm:"default:false" json:"is_movable"`
}

// CalendarConfig is plain configuration data supplied per evaluation. The
// calendar oracle never mutates it.
type CalendarConfig struct {
	BusinessHoursStart int    `json:"business_hours_start"` // local hour, inclusive
	BusinessHoursEnd   int    `json:"business_hours_end"`   // local hour, exclusive
	WorkingDays        []int  `json:"working_days"`         // 0=Sunday .. 6=Saturday
	Timezone           string `json:"timezone"`
	RespectRamadan     bool   `json:"respect_ramadan"`
	AvoidPrayerTimes   bool   `json:"avoid_prayer_times"`
	PreferredSendHours []int  `json:"preferred_send_hours"` // ordered, local hours
}

// IsWorkingDay reports whether the weekday is part of the configured business week.
func (c CalendarConfig) IsWorkingDay(weekday time.Weekday) bool {
	for _, d := range c.WorkingDays {
		if int(weekday) == d {
			return true
		}
	}
	return false
}

// Location resolves the configured timezone, falling back to Gulf Standard Time.
func (c CalendarConfig) Location() *time.Location {
	if c.Timezone != "" {
		if loc, err := time.LoadLocation(c.Timezone); err == nil {
			return loc
		}
	}
	return time.FixedZone("GST", 4*60*60)
}

// DefaultUAECalendar is the conventional UAE setup: Sunday-Thursday week,
// 09:00-18:00, mid-morning and mid-afternoon preferred send slots.
func DefaultUAECalendar() CalendarConfig {
	return CalendarConfig{
		BusinessHoursStart: 9,
		BusinessHoursEnd:   18,
		WorkingDays:        []int{0, 1, 2, 3, 4},
		Timezone:           "Asia/Dubai",
		RespectRamadan:     true,
		AvoidPrayerTimes:   true,
		PreferredSendHours: []int{10, 11, 14, 16},
	}
}

// PrayerTimes holds the five daily prayers as "HH:MM" local time-of-day for
// one month. Only Maghrib and Isha constrain sending; the earlier prayers all
// fall inside or before ordinary business hours.
type PrayerTimes struct {
	Fajr    string `json:"fajr"`
	Dhuhr   string `json:"dhuhr"`
	Asr     string `json:"asr"`
	Maghrib string `json:"maghrib"`
	Isha    string `json:"isha"`
}

// PrayerTimeTable maps month (1-12) to that month's prayer times for a
// reference city.
type PrayerTimeTable map[time.Month]PrayerTimes

// DubaiPrayerTimes is a mid-month approximation for Dubai. Good enough for a
// buffer window; not suitable for religious observance.
var DubaiPrayerTimes = PrayerTimeTable{
	time.January:   {Fajr: "05:45", Dhuhr: "12:25", Asr: "15:30", Maghrib: "17:50", Isha: "19:10"},
	time.February:  {Fajr: "05:35", Dhuhr: "12:30", Asr: "15:45", Maghrib: "18:10", Isha: "19:25"},
	time.March:     {Fajr: "05:10", Dhuhr: "12:25", Asr: "15:50", Maghrib: "18:25", Isha: "19:40"},
	time.April:     {Fajr: "04:40", Dhuhr: "12:20", Asr: "15:50", Maghrib: "18:40", Isha: "19:55"},
	time.May:       {Fajr: "04:15", Dhuhr: "12:15", Asr: "15:45", Maghrib: "18:55", Isha: "20:15"},
	time.June:      {Fajr: "04:00", Dhuhr: "12:20", Asr: "15:45", Maghrib: "19:10", Isha: "20:35"},
	time.July:      {Fajr: "04:10", Dhuhr: "12:25", Asr: "15:50", Maghrib: "19:10", Isha: "20:35"},
	time.August:    {Fajr: "04:30", Dhuhr: "12:25", Asr: "15:50", Maghrib: "18:50", Isha: "20:10"},
	time.September: {Fajr: "04:45", Dhuhr: "12:15", Asr: "15:40", Maghrib: "18:20", Isha: "19:35"},
	time.October:   {Fajr: "04:55", Dhuhr: "12:05", Asr: "15:20", Maghrib: "17:50", Isha: "19:05"},
	time.November:  {Fajr: "05:15", Dhuhr: "12:05", Asr: "15:10", Maghrib: "17:35", Isha: "18:50"},
	time.December:  {Fajr: "05:35", Dhuhr: "12:15", Asr: "15:15", Maghrib: "17:35", Isha: "18:55"},
}

// RamadanWindow is the fixed date range for one year. Dates shift against the
// civil calendar every year; the table must be extended for new years rather
// than computed from lunar astronomy.
type RamadanWindow struct {
	Start time.Time
	End   time.Time
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// RamadanWindows holds approximate Ramadan ranges per calendar year.
var RamadanWindows = map[int]RamadanWindow{
	2024: {Start: day(2024, time.March, 11), End: day(2024, time.April, 9)},
	2025: {Start: day(2025, time.March, 1), End: day(2025, time.March, 30)},
	2026: {Start: day(2026, time.February, 18), End: day(2026, time.March, 19)},
}

// UAEHolidays is the seed table of public holidays. Movable entries are
// approximate and confirmed annually by the authorities.
func UAEHolidays() []Holiday {
	return []Holiday{
		// 2025
		{Date: day(2025, time.January, 1), Name: "New Year's Day", NameArabic: "رأس السنة الميلادية", Category: HolidayCivil},
		{Date: day(2025, time.March, 30), Name: "Eid Al Fitr", NameArabic: "عيد الفطر", Category: HolidayReligious, IsMovable: true},
		{Date: day(2025, time.March, 31), Name: "Eid Al Fitr Holiday", NameArabic: "عطلة عيد الفطر", Category: HolidayReligious, IsMovable: true},
		{Date: day(2025, time.April, 1), Name: "Eid Al Fitr Holiday", NameArabic: "عطلة عيد الفطر", Category: HolidayReligious, IsMovable: true},
		{Date: day(2025, time.June, 5), Name: "Arafat Day", NameArabic: "يوم عرفة", Category: HolidayReligious, IsMovable: true},
		{Date: day(2025, time.June, 6), Name: "Eid Al Adha", NameArabic: "عيد الأضحى", Category: HolidayReligious, IsMovable: true},
		{Date: day(2025, time.June, 7), Name: "Eid Al Adha Holiday", NameArabic: "عطلة عيد الأضحى", Category: HolidayReligious, IsMovable: true},
		{Date: day(2025, time.June, 26), Name: "Islamic New Year", NameArabic: "رأس السنة الهجرية", Category: HolidayReligious, IsMovable: true},
		{Date: day(2025, time.September, 4), Name: "Prophet Muhammad's Birthday", NameArabic: "المولد النبوي", Category: HolidayReligious, IsMovable: true},
		{Date: day(2025, time.December, 1), Name: "Commemoration Day", NameArabic: "يوم الشهيد", Category: HolidayCivil},
		{Date: day(2025, time.December, 2), Name: "National Day", NameArabic: "اليوم الوطني", Category: HolidayCivil},
		{Date: day(2025, time.December, 3), Name: "National Day Holiday", NameArabic: "عطلة اليوم الوطني", Category: HolidayCivil},
		// 2026
		{Date: day(2026, time.January, 1), Name: "New Year's Day", NameArabic: "رأس السنة الميلادية", Category: HolidayCivil},
		{Date: day(2026, time.March, 20), Name: "Eid Al Fitr", NameArabic: "عيد الفطر", Category: HolidayReligious, IsMovable: true},
		{Date: day(2026, time.March, 21), Name: "Eid Al Fitr Holiday", NameArabic: "عطلة عيد الفطر", Category: HolidayReligious, IsMovable: true},
		{Date: day(2026, time.March, 22), Name: "Eid Al Fitr Holiday", NameArabic: "عطلة عيد الفطر", Category: HolidayReligious, IsMovable: true},
		{Date: day(2026, time.May, 26), Name: "Arafat Day", NameArabic: "يوم عرفة", Category: HolidayReligious, IsMovable: true},
		{Date: day(2026, time.May, 27), Name: "Eid Al Adha", NameArabic: "عيد الأضحى", Category: HolidayReligious, IsMovable: true},
		{Date: day(2026, time.May, 28), Name: "Eid Al Adha Holiday", NameArabic: "عطلة عيد الأضحى", Category: HolidayReligious, IsMovable: true},
		{Date: day(2026, time.June, 16), Name: "Islamic New Year", NameArabic: "رأس السنة الهجرية", Category: HolidayReligious, IsMovable: true},
		{Date: day(2026, time.August, 25), Name: "Prophet Muhammad's Birthday", NameArabic: "المولد النبوي", Category: HolidayReligious, IsMovable: true},
		{Date: day(2026, time.December, 1), Name: "Commemoration Day", NameArabic: "يوم الشهيد", Category: HolidayCivil},
		{Date: day(2026, time.December, 2), Name: "National Day", NameArabic: "اليوم الوطني", Category: HolidayCivil},
		{Date: day(2026, time.December, 3), Name: "National Day Holiday", NameArabic: "عطلة اليوم الوطني", Category: HolidayCivil},
	}
}
