package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"tahseel/utils"
)

type CalendarController struct {
	Oracle *utils.CalendarOracle
	Logger *log.Logger
}

func NewCalendarController(oracle *utils.CalendarOracle, logger *log.Logger) *CalendarController {
	return &CalendarController{Oracle: oracle, Logger: logger}
}

// parseFrom reads the optional "from" query parameter (RFC 3339), defaulting
// to the current instant.
func (cc *CalendarController) parseFrom(c *fiber.Ctx) (time.Time, error) {
	raw := c.Query("from")
	if raw == "" {
		return time.Now(), nil
	}
	return time.Parse(time.RFC3339, raw)
}

// GetNextBusinessTime returns the earliest compliant send instant at or after
// the given time.
func (cc *CalendarController) GetNextBusinessTime(c *fiber.Ctx) error {
	from, err := cc.parseFrom(c)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "from must be RFC 3339", err)
	}

	next, err := cc.Oracle.NextBusinessTime(from)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnprocessableEntity, "No valid send window", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"from":               from,
		"next_business_time": next,
	}))
}

// GetOptimalSendTime returns the next compliant instant snapped to the
// configured preferred hours.
func (cc *CalendarController) GetOptimalSendTime(c *fiber.Ctx) error {
	from, err := cc.parseFrom(c)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "from must be RFC 3339", err)
	}

	optimal, err := cc.Oracle.OptimalSendTime(from)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnprocessableEntity, "No valid send window", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"from":              from,
		"optimal_send_time": optimal,
	}))
}

// CheckBusinessDay reports business-day, Ramadan and prayer-window state for
// an instant.
func (cc *CalendarController) CheckBusinessDay(c *fiber.Ctx) error {
	from, err := cc.parseFrom(c)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "from must be RFC 3339", err)
	}

	response := fiber.Map{
		"date":                  from,
		"is_business_day":       cc.Oracle.IsBusinessDay(from),
		"is_within_hours":       cc.Oracle.IsWithinBusinessHours(from),
		"is_ramadan":            cc.Oracle.IsRamadan(from),
		"is_near_prayer_window": cc.Oracle.IsNearPrayerTime(from, utils.DefaultPrayerBufferMinutes),
	}
	if holiday, ok := cc.Oracle.HolidayOn(from); ok {
		response["holiday"] = holiday
	}
	return c.JSON(utils.SuccessResponse(response))
}

// GetUpcomingHolidays lists holidays in the next N days (default 90).
func (cc *CalendarController) GetUpcomingHolidays(c *fiber.Ctx) error {
	days := c.QueryInt("days", 90)
	if days <= 0 || days > 730 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "days must be between 1 and 730", nil)
	}

	holidays := cc.Oracle.UpcomingHolidays(time.Now(), days)
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"days":     days,
		"holidays": holidays,
	}))
}

// GetBusinessDaysBetween counts business days in an inclusive range.
func (cc *CalendarController) GetBusinessDaysBetween(c *fiber.Ctx) error {
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "start must be RFC 3339", err)
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "end must be RFC 3339", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"start":         start,
		"end":           end,
		"business_days": cc.Oracle.BusinessDaysBetween(start, end),
	}))
}
