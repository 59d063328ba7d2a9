package pricing

import "github.com/shopspring/decimal"

// osMultipliers approximate license uplift relative to the Linux rate.
var osMultipliers = map[OperatingSystem]decimal.Decimal{
	OSLinux:   decimal.RequireFromString("1.0"),
	OSWindows: decimal.RequireFromString("1.4"),
	OSRHEL:    decimal.RequireFromString("1.2"),
	OSSUSE:    decimal.RequireFromString("1.15"),
}

// OSMultiplier returns the license uplift for os. Unknown values and the
// empty OS of storage dimensions get 1.
func OSMultiplier(os OperatingSystem) decimal.Decimal {
	if m, ok := osMultipliers[os]; ok {
		return m
	}
	return decimal.NewFromInt(1)
}
