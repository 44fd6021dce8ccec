package monitor

import (
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"
)

//ferryHolidayCalendar holds the holidays the ferry system sails a reduced schedule on,
//used to populate the holiday forecast feature
type ferryHolidayCalendar struct {
	calendar *cal.BusinessCalendar
}

//makeFerryHolidayCalendar builds ferryHolidayCalendar
//TODO:: should be configurable per operator rather than being hardcoded as it is now.
func makeFerryHolidayCalendar() *ferryHolidayCalendar {
	calendar := cal.NewBusinessCalendar()
	calendar.AddHoliday(
		us.NewYear,
		us.MlkDay,
		us.MemorialDay,
		us.IndependenceDay,
		us.LaborDay,
		us.ThanksgivingDay,
		us.ChristmasDay,
		us.Juneteenth,
	)
	return &ferryHolidayCalendar{calendar: calendar}
}

//isHoliday returns true if at is on an observed holiday
func (f *ferryHolidayCalendar) isHoliday(at time.Time) bool {
	_, observed, _ := f.calendar.IsHoliday(at)
	return observed
}
