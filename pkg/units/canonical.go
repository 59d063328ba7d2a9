// Package units provides canonical billing units and period conversions.
package units

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Unit represents a billed quantity.
type Unit string

const (
	UnitHours   Unit = "Hrs"
	UnitGBMonth Unit = "GB-Mo"
	UnitUnknown Unit = ""
)

// HoursPerMonth is 24 hours x 30.44 days.
const HoursPerMonth = "730.56"

// MonthsPerYear for annualisation.
const MonthsPerYear = 12

var (
	hoursPerMonth = decimal.RequireFromString(HoursPerMonth)
	monthsPerYear = decimal.NewFromInt(MonthsPerYear)
	hoursPerYear  = decimal.NewFromInt(8760)
)

// NormalizeUnit maps the unit spellings found in AWS price lists to a canonical Unit.
func NormalizeUnit(raw string) Unit {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "hrs", "hr", "hours", "hour":
		return UnitHours
	case "gb-mo", "gb-month", "gb-months":
		return UnitGBMonth
	default:
		return UnitUnknown
	}
}

// HourlyToMonthly converts an hourly rate to a monthly amount at full utilisation.
func HourlyToMonthly(hourly decimal.Decimal) decimal.Decimal {
	return hourly.Mul(hoursPerMonth)
}

// MonthlyToAnnual multiplies a monthly amount by twelve.
func MonthlyToAnnual(monthly decimal.Decimal) decimal.Decimal {
	return monthly.Mul(monthsPerYear)
}

// AmortizeUpfront spreads an upfront fee over the hours of a term in years.
func AmortizeUpfront(fee decimal.Decimal, years int) decimal.Decimal {
	if years <= 0 {
		return decimal.Zero
	}
	return fee.Div(hoursPerYear.Mul(decimal.NewFromInt(int64(years))))
}

// Percent converts a 0..100 percentage to a fraction.
func Percent(p float64) decimal.Decimal {
	return decimal.NewFromFloat(p).Div(decimal.NewFromInt(100))
}
