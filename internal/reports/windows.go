package reports

import "time"

// NamedRange labels a DateRange for warmup and logging.
type NamedRange struct {
	Name  string
	Range DateRange
}

// StandardWindows returns the windows the dashboard opens most often,
// anchored on the UTC calendar day of now.
func StandardWindows(now time.Time) []NamedRange {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	quarterStart := bucketStart(today, GranularityQuarter)
	yearStart := bucketStart(today, GranularityYear)
	prevMonthStart := monthStart.AddDate(0, -1, 0)

	return []NamedRange{
		{Name: "today", Range: DateRange{Start: today, End: today}},
		{Name: "month_to_date", Range: DateRange{Start: monthStart, End: today}},
		{Name: "previous_month", Range: DateRange{Start: prevMonthStart, End: monthStart.AddDate(0, 0, -1)}},
		{Name: "quarter_to_date", Range: DateRange{Start: quarterStart, End: today}},
		{Name: "year_to_date", Range: DateRange{Start: yearStart, End: today}},
	}
}
